// Package chain implements the ordered block sequence: append-with-
// validation, unconditional replace, and static full-chain validation.
// It holds no lock of its own — NodeCoordinator serialises all mutation.
package chain

import (
	"github.com/coreledger/coreledger/internal/consensus"
	"github.com/coreledger/coreledger/pkg/block"
)

// Chain holds an ordered list of blocks, initialised with the
// deterministic genesis block.
type Chain struct {
	blocks []*block.Block
}

// New creates a chain seeded with the deterministic genesis block.
func New() *Chain {
	return &Chain{blocks: []*block.Block{Genesis()}}
}

// FromBlocks wraps an already-validated block list (e.g. loaded from the
// store or accepted via Replace). Callers are responsible for having
// validated it with IsValidChain first.
func FromBlocks(blocks []*block.Block) *Chain {
	return &Chain{blocks: blocks}
}

// Blocks returns the chain's blocks. The slice is a live view; callers
// that need a stable snapshot should copy it.
func (c *Chain) Blocks() []*block.Block {
	return c.blocks
}

// Latest returns the tail block.
func (c *Chain) Latest() *block.Block {
	return c.blocks[len(c.blocks)-1]
}

// Len returns the number of blocks in the chain.
func (c *Chain) Len() int {
	return len(c.blocks)
}

// Append validates candidate against the current tip and, for non-genesis
// blocks, the consensus rules (coinbase, difficulty, balances). It
// returns true and appends iff every check holds; otherwise the chain is
// left unchanged.
func (c *Chain) Append(candidate *block.Block) bool {
	latest := c.Latest()
	if candidate.PreviousHash != latest.Hash() {
		return false
	}
	if candidate.Index > 0 {
		if !consensus.ValidateCoinbase(candidate) {
			return false
		}
		if !consensus.ValidateDifficulty(candidate) {
			return false
		}
		if !consensus.ValidateBalances(c.blocks, candidate) {
			return false
		}
	}
	c.blocks = append(c.blocks, candidate)
	return true
}

// Replace unconditionally replaces the chain with blocks. The caller is
// responsible for having validated blocks (typically via IsValidChain)
// before calling Replace.
func (c *Chain) Replace(blocks []*block.Block) {
	c.blocks = blocks
}

// IsValidChain statically validates a candidate block list: genesis
// (index 0) must equal the fixed genesis value; every subsequent block
// must link to its predecessor's hash, pass the coinbase check, satisfy
// the difficulty target, and contain no user transaction whose amount
// exceeds its sender's balance against the prefix preceding it.
func IsValidChain(blocks []*block.Block) bool {
	if len(blocks) == 0 {
		return false
	}
	if blocks[0].Hash() != Genesis().Hash() {
		return false
	}
	for i := 1; i < len(blocks); i++ {
		b := blocks[i]
		if b.PreviousHash != blocks[i-1].Hash() {
			return false
		}
		if !consensus.ValidateCoinbase(b) {
			return false
		}
		if !consensus.ValidateDifficulty(b) {
			return false
		}
		if !consensus.ValidateBalances(blocks[:i], b) {
			return false
		}
	}
	return true
}
