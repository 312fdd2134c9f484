// Package merkle computes the deterministic merkle root over an ordered
// list of hex leaf digests, in the Bitcoin shape: pairwise-hash,
// duplicate the odd one out, repeat until one root remains.
package merkle

import (
	"strings"

	"github.com/coreledger/coreledger/pkg/crypto"
	"github.com/coreledger/coreledger/pkg/types"
)

// Root computes the merkle root over leaves, an ordered sequence of hex
// leaf strings. Empty/whitespace entries are filtered out first.
//
//  1. If the filtered list is empty, return hash_hex("").
//  2. While more than one element remains, produce the next level: for
//     each pair (i, i+1), concatenate the hex strings and hash; if the
//     level has odd length, the last element is paired with itself.
//  3. Return the single remaining element.
func Root(leaves []string) types.Hash {
	level := make([]string, 0, len(leaves))
	for _, l := range leaves {
		if strings.TrimSpace(l) == "" {
			continue
		}
		level = append(level, l)
	}

	if len(level) == 0 {
		return crypto.HashString("")
	}

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]string, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = string(crypto.HashString(level[i] + level[i+1]))
		}
		level = next
	}

	return types.Hash(level[0])
}
