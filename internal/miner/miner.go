// Package miner implements block production: a cancellable
// template-build + proof-of-work search loop feeding the chain.
package miner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coreledger/coreledger/internal/consensus"
	klog "github.com/coreledger/coreledger/internal/log"
	"github.com/coreledger/coreledger/pkg/block"
	"github.com/coreledger/coreledger/pkg/tx"
	"github.com/coreledger/coreledger/pkg/types"
)

const (
	// SnapshotLimit is the maximum number of mempool transactions
	// included in a block template, coinbase excluded.
	SnapshotLimit = 100

	// retryDelay is how long the continuous loop pauses after a failed
	// attempt (stale template, lost append race) before retrying.
	retryDelay = 100 * time.Millisecond
)

// Mining failure modes. Both are expected under concurrency: the loop
// retries on either.
var (
	// ErrStaleTemplate means the chain tip moved while the nonce search
	// was running; the sealed block extends an outdated tip.
	ErrStaleTemplate = errors.New("miner: chain tip changed during nonce search")

	// ErrAppendRejected means the final append under the chain lock
	// failed — typically a race with a concurrently accepted peer block.
	ErrAppendRejected = errors.New("miner: append rejected")
)

// Ledger is the miner's view of the chain: a tip snapshot for template
// assembly and a serialised, re-validating append for the finished
// block. The node coordinator implements it with its chain lock held
// across Append.
type Ledger interface {
	Latest() *block.Block
	Append(*block.Block) bool
}

// Pool is the miner's view of the mempool.
type Pool interface {
	Snapshot(limit int) []*tx.Transaction
	RemoveConfirmed(txs []*tx.Transaction)
}

// Miner searches for proof-of-work blocks crediting rewardAddr.
// Start/Stop drive a continuous loop; MineOne produces a single block.
type Miner struct {
	ledger     Ledger
	pool       Pool
	rewardAddr types.Address

	// OnMined, when set, is invoked from the mining loop after each
	// successfully appended block, outside any lock. The coordinator
	// uses it to persist and broadcast.
	OnMined func(*block.Block)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a miner over the given ledger and mempool.
func New(ledger Ledger, pool Pool, rewardAddr types.Address) *Miner {
	return &Miner{ledger: ledger, pool: pool, rewardAddr: rewardAddr}
}

// MineOne performs a single mining attempt:
//
//  1. Snapshot the tip and up to SnapshotLimit mempool transactions.
//  2. Prepend a fresh coinbase for the reward owed at the new height.
//  3. Search nonces until the difficulty target is met or ctx is
//     cancelled.
//  4. Re-check the tip; if it moved, fail with ErrStaleTemplate.
//  5. Append through the ledger, which re-validates under the chain
//     lock; on failure, ErrAppendRejected.
//  6. Remove the block's transactions from the mempool, best-effort.
//
// A cancelled search returns ctx's error; a block that already won the
// append is returned even if ctx is cancelled afterwards — cancellation
// never leaves a half-appended chain.
func (m *Miner) MineOne(ctx context.Context) (*block.Block, error) {
	tip := m.ledger.Latest()
	index := tip.Index + 1
	prevHash := tip.Hash()

	pending := m.pool.Snapshot(SnapshotLimit)
	timestamp := time.Now().UTC().Unix()
	coinbase := tx.NewCoinbase(m.rewardAddr, consensus.RewardFor(index), timestamp)
	txs := make([]*tx.Transaction, 0, 1+len(pending))
	txs = append(txs, coinbase)
	txs = append(txs, pending...)

	candidate := block.New(index, timestamp, prevHash, txs, 0)
	if err := consensus.Seal(ctx, candidate); err != nil {
		return nil, err
	}

	// The template was snapshotted lock-free; a block accepted in the
	// meantime makes it stale. This check is advisory — the append
	// below re-validates under the lock and is authoritative.
	if m.ledger.Latest().Hash() != prevHash {
		return nil, ErrStaleTemplate
	}

	if !m.ledger.Append(candidate) {
		return nil, ErrAppendRejected
	}

	m.pool.RemoveConfirmed(candidate.Transactions)
	return candidate, nil
}

// Start launches the continuous mining loop. Idempotent: calling Start
// while running is a no-op.
func (m *Miner) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
}

// Stop signals cancellation and waits for the loop to exit. Safe to
// call when not running.
func (m *Miner) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the continuous loop is active.
func (m *Miner) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Miner) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	logger := klog.Miner

	for {
		b, err := m.MineOne(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug().Msg("Mining loop cancelled")
				return
			}
			logger.Debug().Err(err).Msg("Mining attempt failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}

		logger.Info().
			Uint64("height", b.Index).
			Str("hash", b.Hash().String()[:16]).
			Int("txs", len(b.Transactions)).
			Msg("Block mined")

		if m.OnMined != nil {
			m.OnMined(b)
		}
	}
}
