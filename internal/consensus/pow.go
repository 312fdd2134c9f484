package consensus

import (
	"context"
	"strconv"

	"github.com/coreledger/coreledger/pkg/block"
	"github.com/coreledger/coreledger/pkg/crypto"
)

// yieldInterval is how often the nonce search checks for cancellation.
// The hot path between yields must not allocate per iteration.
const yieldInterval = 10_000

// Seal searches nonces starting from 0 until b's hash satisfies
// Difficulty leading hex zeros, or ctx is cancelled. On success it sets
// b.Nonce and returns nil. It never mutates any other field of b.
//
// The loop body is allocation-free: the header prefix is built once,
// each nonce is appended into the same buffer, and the difficulty check
// runs on the raw digest. Hex encoding happens only for the winning
// nonce, when Block.Hash is eventually recomputed on demand.
func Seal(ctx context.Context, b *block.Block) error {
	prefix := []byte(strconv.FormatUint(b.Index, 10) +
		strconv.FormatInt(b.Timestamp, 10) +
		string(b.PreviousHash) +
		string(b.MerkleRoot))
	buf := make([]byte, len(prefix), len(prefix)+20)
	copy(buf, prefix)
	var hasher crypto.Hasher

	for nonce := uint64(0); ; nonce++ {
		if nonce%yieldInterval == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		buf = strconv.AppendUint(buf[:len(prefix)], nonce, 10)
		digest := hasher.SumBytes(buf)
		if hasLeadingZeroNibbles(digest, Difficulty) {
			b.Nonce = nonce
			return nil
		}
	}
}

// hasLeadingZeroNibbles reports whether the digest's hex form would
// start with n '0' characters, without encoding it: each hex character
// is one nibble, high nibble first.
func hasLeadingZeroNibbles(digest [32]byte, n int) bool {
	if n > len(digest)*2 {
		n = len(digest) * 2
	}
	for i := 0; i < n/2; i++ {
		if digest[i] != 0 {
			return false
		}
	}
	if n%2 == 1 && digest[n/2]>>4 != 0 {
		return false
	}
	return true
}
