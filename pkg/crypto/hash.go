// Package crypto provides the cryptographic primitives (hashing, signing)
// the ledger's consensus rules are built on.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/coreledger/coreledger/pkg/types"
)

// Hash computes the SHA-256 digest of data and returns its canonical
// lowercase-hex textual form. Every consensus-critical digest in the
// system — transaction ids, block hashes, merkle nodes — goes through
// this function on UTF-8 encoded string content.
func Hash(data []byte) types.Hash {
	sum := sha256.Sum256(data)
	return types.Hash(hex.EncodeToString(sum[:]))
}

// HashString is a convenience wrapper hashing a UTF-8 string directly,
// avoiding a throwaway []byte(s) conversion at call sites that already
// have the string form.
func HashString(s string) types.Hash {
	sum := sha256.Sum256([]byte(s))
	return types.Hash(hex.EncodeToString(sum[:]))
}

// Hasher is a reusable SHA-256 scratch state for hot loops (the miner's
// nonce search) that must not allocate per call. Hot paths use SumBytes
// and compare raw digests; the hex form is only materialised once a
// digest is actually worth keeping.
type Hasher struct {
	buf [sha256.Size]byte
}

// SumBytes hashes data into the Hasher's scratch buffer and returns the
// raw 32-byte digest. No heap allocation: the digest lives in the
// Hasher and the returned copy stays on the caller's stack.
func (h *Hasher) SumBytes(data []byte) [sha256.Size]byte {
	h.buf = sha256.Sum256(data)
	return h.buf
}

// Sum hashes data and returns the hex string form. The returned string
// is a fresh allocation (Go strings are immutable) — do not call this
// per iteration in a hot loop; use SumBytes there instead.
func (h *Hasher) Sum(data []byte) types.Hash {
	h.buf = sha256.Sum256(data)
	return types.Hash(hex.EncodeToString(h.buf[:]))
}
