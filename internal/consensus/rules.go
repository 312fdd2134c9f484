// Package consensus implements the pure, deterministic rules blocks must
// satisfy to extend the chain: the reward schedule, the coinbase check,
// the proof-of-work difficulty check, and the account balance replay.
// Every function here is side-effect free and returns a boolean or a
// value — never an error, never a panic — consensus rule violations are
// reported as "false", not exceptional control flow.
package consensus

import (
	"github.com/coreledger/coreledger/pkg/block"
	"github.com/coreledger/coreledger/pkg/types"
)

// Constants fixed at compile time. Changing any of these forks the
// network: every node must agree on them.
const (
	// InitialBlockReward is the coinbase amount at height 0, before any halving.
	InitialBlockReward int64 = 50
	// HalvingInterval is the number of blocks between reward halvings.
	HalvingInterval uint64 = 210_000
	// DefaultDifficulty is the network's difficulty: the number of
	// leading hex '0' characters a block hash must have. Dynamic
	// difficulty adjustment is explicitly out of scope.
	DefaultDifficulty = 3
	// MaxHalvings is the number of halvings after which the reward is
	// defined to saturate at zero rather than underflow via a 64-bit shift.
	MaxHalvings = 64
)

// Difficulty is the effective difficulty. It is a variable only so a
// private test network can lower the PoW target at startup; production
// nodes never touch it, and changing it forks the node off the network.
var Difficulty = DefaultDifficulty

// CoinbaseFrom is the sentinel sender address for coinbase transactions.
const CoinbaseFrom = types.SystemAddress

// RewardFor computes the block reward at height, halving every
// HalvingInterval blocks and saturating to 0 once 64 halvings have
// elapsed.
func RewardFor(height uint64) int64 {
	halvings := height / HalvingInterval
	if halvings >= MaxHalvings {
		return 0
	}
	return InitialBlockReward >> halvings
}

// ValidateCoinbase reports whether b's first transaction is a
// well-formed coinbase for a block at this height: present, sent from
// the system sentinel, and not exceeding the reward owed at b.Index.
func ValidateCoinbase(b *block.Block) bool {
	if len(b.Transactions) == 0 {
		return false
	}
	cb := b.Transactions[0]
	if cb.From != CoinbaseFrom {
		return false
	}
	return cb.Amount <= RewardFor(b.Index)
}

// ValidateDifficulty reports whether b's hash carries the required
// number of leading hex '0' characters.
func ValidateDifficulty(b *block.Block) bool {
	return b.Hash().HasLeadingZeros(Difficulty)
}

// ValidateBalances replays every transaction in precedingChain (in
// order) to build a running address -> balance mapping, then checks
// each non-coinbase transaction in b against it in order, updating the
// mapping after each so later transactions in the same block see
// earlier ones' effects. Arithmetic is signed; balances may go negative
// during replay (coinbase-only credits are a legitimate path to a
// positive balance with no debit), but a user transaction is rejected if
// its amount exceeds the sender's balance at the point it is applied.
func ValidateBalances(precedingChain []*block.Block, b *block.Block) bool {
	balances := make(map[types.Address]int64)
	for _, blk := range precedingChain {
		applyBlock(balances, blk)
	}

	for _, t := range b.Transactions {
		if t.IsCoinbase() {
			balances[t.To] += t.Amount
			continue
		}
		if t.Amount > balances[t.From] {
			return false
		}
		balances[t.From] -= t.Amount
		balances[t.To] += t.Amount
	}
	return true
}

func applyBlock(balances map[types.Address]int64, b *block.Block) {
	for _, t := range b.Transactions {
		if t.IsCoinbase() {
			balances[t.To] += t.Amount
			continue
		}
		balances[t.From] -= t.Amount
		balances[t.To] += t.Amount
	}
}

// BalanceAfter computes a single address's balance after replaying every
// transaction in chain, in order. Used by NodeCoordinator.get_balance.
func BalanceAfter(chain []*block.Block, addr types.Address) int64 {
	balances := make(map[types.Address]int64)
	for _, blk := range chain {
		applyBlock(balances, blk)
	}
	return balances[addr]
}
