package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"
	"math/big"
)

// PrivateKeyFromSeed maps 32 bytes of derived seed material onto a
// P-256 private scalar: k = 1 + (seed mod (n-1)), which is uniform
// enough over the group and never zero. The mapping is deterministic —
// the same seed always yields the same key — which is what HD
// derivation needs.
func PrivateKeyFromSeed(seed []byte) (*PrivateKey, error) {
	if len(seed) != 32 {
		return nil, fmt.Errorf("seed must be 32 bytes, got %d", len(seed))
	}

	curve := elliptic.P256()
	nMinusOne := new(big.Int).Sub(curve.Params().N, big.NewInt(1))

	d := new(big.Int).SetBytes(seed)
	d.Mod(d, nMinusOne)
	d.Add(d, big.NewInt(1))

	key := &ecdsa.PrivateKey{D: d}
	key.Curve = curve
	key.X, key.Y = curve.ScalarBaseMult(d.Bytes())
	return &PrivateKey{key: key}, nil
}
