package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"

	"github.com/coreledger/coreledger/pkg/types"
)

// Signer signs transaction content with an ECDSA P-256 private key.
type Signer interface {
	// Sign produces an ASN.1 DER ECDSA signature over the SHA-256 digest
	// of content.
	Sign(content []byte) ([]byte, error)
	// PublicKeyHex returns the hex-encoded SPKI public key — the address.
	PublicKeyHex() string
}

// Verifier verifies ECDSA P-256 signatures against a hex SPKI public key.
type Verifier interface {
	Verify(publicKeyHex string, content, signature []byte) bool
}

// PrivateKey wraps an ECDSA P-256 private key, the concrete scheme the
// ledger's Signer component is fixed to: NIST P-256 curve, SHA-256
// message digest, SPKI-encoded public keys, hex everywhere on the wire.
type PrivateKey struct {
	key *ecdsa.PrivateKey
}

// GenerateKey creates a new random P-256 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromDER parses a private key from the compact EC private-key
// DER form (SEC1), the export format §4.3 specifies.
func PrivateKeyFromDER(der []byte) (*PrivateKey, error) {
	key, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse EC private key: %w", err)
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("private key is not on P-256")
	}
	return &PrivateKey{key: key}, nil
}

// ExportDER serialises the private key in the compact EC private-key
// DER form, for import-private/export-private round-tripping.
func (pk *PrivateKey) ExportDER() ([]byte, error) {
	return x509.MarshalECPrivateKey(pk.key)
}

// Sign produces an ASN.1 DER ECDSA signature over the SHA-256 digest of
// content.
func (pk *PrivateKey) Sign(content []byte) ([]byte, error) {
	digest := sha256.Sum256(content)
	sig, err := ecdsa.SignASN1(rand.Reader, pk.key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("ecdsa sign: %w", err)
	}
	return sig, nil
}

// SignHex is a convenience wrapper returning the hex-encoded signature
// the wire format requires.
func (pk *PrivateKey) SignHex(content []byte) (string, error) {
	sig, err := pk.Sign(content)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

// PublicKeyHex returns the hex-encoded SPKI public key — the wallet's
// address.
func (pk *PrivateKey) PublicKeyHex() string {
	der, err := x509.MarshalPKIXPublicKey(&pk.key.PublicKey)
	if err != nil {
		// Marshalling a valid ecdsa.PublicKey on a named curve never
		// fails; treat it as unreachable rather than surfacing an error
		// from every call site.
		return ""
	}
	return hex.EncodeToString(der)
}

// Address returns the public key hex wrapped as a types.Address.
func (pk *PrivateKey) Address() types.Address {
	return types.Address(pk.PublicKeyHex())
}

// Zero overwrites the private scalar's backing memory. The standard
// library does not expose the scalar directly; D is the only secret
// component and is cleared best-effort.
func (pk *PrivateKey) Zero() {
	if pk.key == nil || pk.key.D == nil {
		return
	}
	bits := pk.key.D.Bits()
	for i := range bits {
		bits[i] = 0
	}
}

// VerifySignature checks an ECDSA signature over content against a
// hex-encoded SPKI public key. Returns false on any malformed input —
// never raises across the boundary.
func VerifySignature(publicKeyHex string, content, signature []byte) bool {
	pub, err := parseSPKIPublicKey(publicKeyHex)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(content)
	return ecdsa.VerifyASN1(pub, digest[:], signature)
}

func parseSPKIPublicKey(publicKeyHex string) (*ecdsa.PublicKey, error) {
	der, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid public key hex: %w", err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse SPKI public key: %w", err)
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not ECDSA")
	}
	if pub.Curve != elliptic.P256() {
		return nil, fmt.Errorf("public key is not on P-256")
	}
	return pub, nil
}

// ECDSAVerifier implements Verifier.
type ECDSAVerifier struct{}

// Verify checks a signature against a hex SPKI public key and content.
func (v ECDSAVerifier) Verify(publicKeyHex string, content, signature []byte) bool {
	return VerifySignature(publicKeyHex, content, signature)
}
