package node

import (
	"context"
	"sort"
	"sync"

	"github.com/coreledger/coreledger/internal/chain"
	"github.com/coreledger/coreledger/internal/consensus"
	klog "github.com/coreledger/coreledger/internal/log"
	"github.com/coreledger/coreledger/internal/mempool"
	"github.com/coreledger/coreledger/internal/miner"
	"github.com/coreledger/coreledger/pkg/block"
	"github.com/coreledger/coreledger/pkg/tx"
	"github.com/coreledger/coreledger/pkg/types"
)

// Transport is the coordinator's outbound view of the peer network.
// Broadcasts are fire-and-forget: delivery is never assumed, individual
// peer failures are logged and swallowed by the implementation.
type Transport interface {
	BroadcastBlock(b *block.Block) error
	BroadcastTransaction(t *tx.Transaction) error
	// RequestChain asks one peer for its full chain.
	RequestChain(ctx context.Context, peer string) ([]*block.Block, error)
}

// Store persists the chain. Load returns the persisted block list
// (possibly empty); Save is a best-effort idempotent overwrite with no
// atomicity beyond last-writer-wins.
type Store interface {
	Load() []*block.Block
	Save(blocks []*block.Block) error
}

// Coordinator is the only component that mutates the chain or persists
// it. Every chain-mutating operation runs under one exclusive lock;
// persistence and broadcasts happen after the lock is released so no
// I/O is ever done while holding it.
type Coordinator struct {
	mu    sync.Mutex
	chain *chain.Chain

	pool      *mempool.Pool
	store     Store     // nil disables persistence
	transport Transport // nil disables broadcasts and chain requests
	miner     *miner.Miner
}

// NewCoordinator creates a coordinator over a fresh genesis-only chain.
// store and transport may be nil (tests, ephemeral nodes). rewardAddr
// is credited by the coordinator's miner.
func NewCoordinator(pool *mempool.Pool, store Store, transport Transport, rewardAddr types.Address) *Coordinator {
	c := &Coordinator{
		chain:     chain.New(),
		pool:      pool,
		store:     store,
		transport: transport,
	}
	c.miner = miner.New(c, pool, rewardAddr)
	c.miner.OnMined = func(b *block.Block) {
		c.persist()
		c.broadcastBlock(b)
	}
	return c
}

// SetTransport wires the transport after construction. The p2p layer
// needs the coordinator's handlers before it can start, so the two are
// connected in this order at node assembly time.
func (c *Coordinator) SetTransport(t Transport) {
	c.transport = t
}

// Miner returns the coordinator's miner for start/stop control.
func (c *Coordinator) Miner() *miner.Miner {
	return c.miner
}

// Latest returns the chain tip, read under the lock.
func (c *Coordinator) Latest() *block.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chain.Latest()
}

// GetChain returns a snapshot copy of the chain's block list.
func (c *Coordinator) GetChain() []*block.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	blocks := c.chain.Blocks()
	out := make([]*block.Block, len(blocks))
	copy(out, blocks)
	return out
}

// ChainLen returns the current chain length.
func (c *Coordinator) ChainLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chain.Len()
}

// GetBalance walks the chain under the lock and returns addr's
// confirmed balance. O(chain · tx) — balances are recomputed, never
// materialised.
func (c *Coordinator) GetBalance(addr types.Address) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return consensus.BalanceAfter(c.chain.Blocks(), addr)
}

// Append validates and appends a locally mined block under the lock.
// It is the miner's Ledger contract; peers' blocks go through
// TryAcceptBlock instead.
func (c *Coordinator) Append(b *block.Block) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chain.Append(b)
}

// MineBlock performs a single mining attempt and, on success, persists
// and broadcasts the new block.
func (c *Coordinator) MineBlock(ctx context.Context) (*block.Block, error) {
	b, err := c.miner.MineOne(ctx)
	if err != nil {
		return nil, err
	}
	klog.Node.Info().
		Uint64("height", b.Index).
		Str("hash", b.Hash().String()[:16]).
		Msg("Mined block accepted")
	c.persist()
	c.broadcastBlock(b)
	return b, nil
}

// SubmitTransaction admits a client transaction into the mempool and,
// on success, broadcasts it to peers.
func (c *Coordinator) SubmitTransaction(t *tx.Transaction) error {
	if err := c.pool.Add(t, c.GetBalance); err != nil {
		return err
	}
	c.broadcastTransaction(t)
	return nil
}

// TryAcceptBlock validates and appends an externally received block
// under the lock. On success it removes the block's transactions from
// the mempool and persists. On false the chain is unchanged — the
// caller may then request the sender's chain.
func (c *Coordinator) TryAcceptBlock(b *block.Block) bool {
	c.mu.Lock()
	ok := c.chain.Append(b)
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.pool.RemoveConfirmed(b.Transactions)
	c.persist()
	return true
}

// TryReplaceChain swaps in a remote chain iff it is valid and strictly
// longer than the local one. The input may arrive unordered; it is
// sorted by index first. Shorter-or-equal chains are ignored — the tie
// goes to the local chain, by design, to avoid oscillation.
func (c *Coordinator) TryReplaceChain(remote []*block.Block) bool {
	if len(remote) == 0 {
		return false
	}
	sorted := make([]*block.Block, len(remote))
	copy(sorted, remote)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	if !chain.IsValidChain(sorted) {
		return false
	}

	c.mu.Lock()
	if len(sorted) <= c.chain.Len() {
		c.mu.Unlock()
		return false
	}
	c.chain.Replace(sorted)
	c.mu.Unlock()

	klog.Node.Info().Int("length", len(sorted)).Msg("Chain replaced by longer remote chain")
	c.persist()
	return true
}

// InitializeFromStore loads the persisted chain and, if it is non-empty
// and valid, swaps it in. Anything else — no store, nothing persisted,
// invalid data — is ignored and the node keeps its genesis-only chain.
func (c *Coordinator) InitializeFromStore() {
	if c.store == nil {
		return
	}
	blocks := c.store.Load()
	if len(blocks) == 0 {
		return
	}
	if !chain.IsValidChain(blocks) {
		klog.Node.Warn().Msg("Persisted chain failed validation, starting from genesis")
		return
	}
	c.mu.Lock()
	c.chain.Replace(blocks)
	c.mu.Unlock()
	klog.Node.Info().Int("length", len(blocks)).Msg("Chain loaded from store")
}

// HandleBlock processes a block received from a peer. If the append is
// rejected — which may just mean this node is behind — it requests the
// sender's chain and attempts a longest-chain replacement. Returns
// false only if the block was rejected and no replacement happened.
func (c *Coordinator) HandleBlock(ctx context.Context, from string, b *block.Block) bool {
	if c.TryAcceptBlock(b) {
		klog.Node.Debug().
			Uint64("height", b.Index).
			Str("from", from).
			Msg("Peer block accepted")
		return true
	}
	if c.transport == nil {
		return false
	}

	remote, err := c.transport.RequestChain(ctx, from)
	if err != nil {
		klog.Node.Debug().Err(err).Str("from", from).Msg("Chain request failed")
		return false
	}
	return c.TryReplaceChain(remote)
}

// HandleTransaction processes a transaction received from a peer.
// Unlike SubmitTransaction it does not re-broadcast: gossip already
// propagates it.
func (c *Coordinator) HandleTransaction(t *tx.Transaction) error {
	return c.pool.Add(t, c.GetBalance)
}

// HandleChainRequest serves a peer's request for this node's chain.
func (c *Coordinator) HandleChainRequest() []*block.Block {
	return c.GetChain()
}

// persist saves a chain snapshot outside the lock. A write failure is
// logged and swallowed: the in-memory chain stays authoritative and the
// next mutation retries.
func (c *Coordinator) persist() {
	if c.store == nil {
		return
	}
	if err := c.store.Save(c.GetChain()); err != nil {
		klog.Node.Warn().Err(err).Msg("Chain persistence failed")
	}
}

func (c *Coordinator) broadcastBlock(b *block.Block) {
	if c.transport == nil {
		return
	}
	if err := c.transport.BroadcastBlock(b); err != nil {
		klog.Node.Warn().Err(err).Msg("Block broadcast failed")
	}
}

func (c *Coordinator) broadcastTransaction(t *tx.Transaction) {
	if c.transport == nil {
		return
	}
	if err := c.transport.BroadcastTransaction(t); err != nil {
		klog.Node.Warn().Err(err).Msg("Transaction broadcast failed")
	}
}
