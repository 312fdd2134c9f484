// Package mempool holds unconfirmed transactions awaiting block
// inclusion: a thread-safe mapping from transaction id to transaction.
package mempool

import (
	"errors"
	"sort"
	"sync"

	"github.com/coreledger/coreledger/pkg/tx"
	"github.com/coreledger/coreledger/pkg/types"
)

// Mempool errors.
var (
	ErrAlreadyExists = errors.New("transaction already in mempool")
	ErrBadSignature  = errors.New("transaction signature does not verify")
	ErrInsufficient  = errors.New("amount exceeds available balance")
)

// ConfirmedBalance reports addr's confirmed chain balance. It is
// injected by the coordinator so the mempool has no direct chain
// dependency — see the NodeCoordinator collaborator contract.
type ConfirmedBalance func(addr types.Address) int64

// entry pairs a transaction with its insertion order, so Snapshot can
// return a stable ordering without depending on map iteration order.
type entry struct {
	tx  *tx.Transaction
	seq uint64
}

// Pool holds unconfirmed transactions keyed by id.
type Pool struct {
	mu      sync.RWMutex
	entries map[types.Hash]*entry
	nextSeq uint64
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{entries: make(map[types.Hash]*entry)}
}

// Add validates transaction and inserts it. The balance check is a
// best-effort pre-filter: available = confirmedBalance(tx.From) minus
// the sum of amounts already pending from the same sender; it is not a
// transactional guard against double-spend across concurrent admits —
// the block-level balance replay in the consensus package is
// authoritative.
func (p *Pool) Add(transaction *tx.Transaction, confirmedBalance ConfirmedBalance) error {
	if !transaction.ValidateSignature() {
		return ErrBadSignature
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.entries[transaction.ID]; exists {
		return ErrAlreadyExists
	}

	if !transaction.IsCoinbase() {
		available := confirmedBalance(transaction.From)
		for _, e := range p.entries {
			if e.tx.From == transaction.From {
				available -= e.tx.Amount
			}
		}
		if transaction.Amount > available {
			return ErrInsufficient
		}
	}

	p.entries[transaction.ID] = &entry{tx: transaction, seq: p.nextSeq}
	p.nextSeq++
	return nil
}

// Remove best-effort removes a transaction by id.
func (p *Pool) Remove(id types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, id)
}

// RemoveConfirmed best-effort removes every transaction in txs, keyed by
// id. Typically called after a block carrying them is accepted.
func (p *Pool) RemoveConfirmed(txs []*tx.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range txs {
		delete(p.entries, t.ID)
	}
}

// Snapshot returns a stable, insertion-ordered slice of up to limit
// current entries. There is no guarantee the returned transactions will
// still be present in the pool by the time the caller acts on them. A
// negative limit returns every entry.
func (p *Pool) Snapshot(limit int) []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	if limit > len(entries) || limit < 0 {
		limit = len(entries)
	}
	result := make([]*tx.Transaction, limit)
	for i := 0; i < limit; i++ {
		result[i] = entries[i].tx
	}
	return result
}

// Count returns the number of transactions currently pending.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Clear removes every pending transaction.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[types.Hash]*entry)
}
