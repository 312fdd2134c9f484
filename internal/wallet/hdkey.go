package wallet

import (
	"fmt"

	"github.com/coreledger/coreledger/pkg/crypto"
	"github.com/coreledger/coreledger/pkg/types"
	"github.com/tyler-smith/go-bip32"
)

// BIP-44 derivation path constants.
// Full path: m/44'/coin'/account'/change/index
const (
	// PurposeBIP44 is the BIP-44 purpose field (hardened).
	PurposeBIP44 = bip32.FirstHardenedChild + 44

	// CoinType is this ledger's (unregistered) coin type (hardened).
	CoinType = bip32.FirstHardenedChild + 7707

	// ChangeExternal is the chain of receiving addresses.
	ChangeExternal = 0

	// ChangeInternal is the chain of change addresses.
	ChangeInternal = 1
)

// HDKey is a BIP-32 node in the wallet's derivation tree. The BIP-32
// tree supplies deterministic 32-byte key material per path; the
// ledger's actual signing keys are P-256, produced by mapping that
// material onto the curve's scalar field (crypto.PrivateKeyFromSeed).
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates the master HD key from a 64-byte BIP-39 seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// DeriveChild derives the child at index. Add
// bip32.FirstHardenedChild for hardened derivation.
func (k *HDKey) DeriveChild(index uint32) (*HDKey, error) {
	child, err := k.key.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive child %d: %w", index, err)
	}
	return &HDKey{key: child}, nil
}

// DerivePath derives along a sequence of indices.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	current := k
	for _, idx := range indices {
		child, err := current.DeriveChild(idx)
		if err != nil {
			return nil, err
		}
		current = child
	}
	return current, nil
}

// DeriveAccount derives the key at m/44'/7707'/account'/change/index.
func (k *HDKey) DeriveAccount(account, change, index uint32) (*HDKey, error) {
	return k.DerivePath(
		PurposeBIP44,
		CoinType,
		bip32.FirstHardenedChild+account,
		change,
		index,
	)
}

// keyMaterial returns this node's raw 32 bytes of private key material.
func (k *HDKey) keyMaterial() ([]byte, error) {
	if !k.key.IsPrivate {
		return nil, fmt.Errorf("public-only key has no private material")
	}
	raw := k.key.Key
	// bip32 private keys carry a leading 0x00 pad byte.
	if len(raw) == 33 && raw[0] == 0 {
		raw = raw[1:]
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("unexpected key material length %d", len(raw))
	}
	return raw, nil
}

// Signer maps this node's key material onto a P-256 signing key.
func (k *HDKey) Signer() (*crypto.PrivateKey, error) {
	material, err := k.keyMaterial()
	if err != nil {
		return nil, err
	}
	return crypto.PrivateKeyFromSeed(material)
}

// Address returns the ledger address of this node's signing key: the
// hex-encoded SPKI form of its P-256 public key.
func (k *HDKey) Address() (types.Address, error) {
	signer, err := k.Signer()
	if err != nil {
		return "", err
	}
	return signer.Address(), nil
}

// IsPrivate reports whether this node carries private key material.
func (k *HDKey) IsPrivate() bool {
	return k.key.IsPrivate
}

// Depth returns the derivation depth (0 for the master key).
func (k *HDKey) Depth() uint8 {
	return k.key.Depth
}
