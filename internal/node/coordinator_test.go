package node

import (
	"context"
	"testing"
	"time"

	"github.com/coreledger/coreledger/internal/chain"
	"github.com/coreledger/coreledger/internal/consensus"
	"github.com/coreledger/coreledger/internal/mempool"
	"github.com/coreledger/coreledger/pkg/block"
	"github.com/coreledger/coreledger/pkg/crypto"
	"github.com/coreledger/coreledger/pkg/tx"
)

// fakeStore is an in-memory chain store.
type fakeStore struct {
	saved []*block.Block
	fail  bool
}

func (s *fakeStore) Load() []*block.Block { return s.saved }

func (s *fakeStore) Save(blocks []*block.Block) error {
	if s.fail {
		return context.DeadlineExceeded
	}
	s.saved = blocks
	return nil
}

// fakeTransport records broadcasts and serves a canned remote chain.
type fakeTransport struct {
	blocks      []*block.Block
	txs         []*tx.Transaction
	remoteChain []*block.Block
}

func (t *fakeTransport) BroadcastBlock(b *block.Block) error {
	t.blocks = append(t.blocks, b)
	return nil
}

func (t *fakeTransport) BroadcastTransaction(transfer *tx.Transaction) error {
	t.txs = append(t.txs, transfer)
	return nil
}

func (t *fakeTransport) RequestChain(context.Context, string) ([]*block.Block, error) {
	return t.remoteChain, nil
}

func newTestCoordinator() (*Coordinator, *fakeStore, *fakeTransport) {
	store := &fakeStore{}
	transport := &fakeTransport{}
	c := NewCoordinator(mempool.New(), store, transport, "miner-addr")
	return c, store, transport
}

// mineOn extends blocks with one sealed block carrying txs.
func mineOn(t *testing.T, blocks []*block.Block, txs []*tx.Transaction) []*block.Block {
	t.Helper()
	tip := blocks[len(blocks)-1]
	index := tip.Index + 1
	all := append([]*tx.Transaction{tx.NewCoinbase("remote-miner", consensus.RewardFor(index), 1700000000)}, txs...)
	b := block.New(index, 1700000000, tip.Hash(), all, 0)
	if err := consensus.Seal(context.Background(), b); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	return append(append([]*block.Block{}, blocks...), b)
}

func TestCoordinator_GenesisDeterminism(t *testing.T) {
	a, _, _ := newTestCoordinator()
	b, _, _ := newTestCoordinator()

	chainA, chainB := a.GetChain(), b.GetChain()
	if len(chainA) != 1 || len(chainB) != 1 {
		t.Fatalf("fresh chains should be length 1, got %d and %d", len(chainA), len(chainB))
	}
	if chainA[0].Hash() != chainB[0].Hash() {
		t.Error("two fresh nodes must share the genesis block")
	}
}

func TestCoordinator_MineBlock(t *testing.T) {
	c, store, transport := newTestCoordinator()

	b, err := c.MineBlock(context.Background())
	if err != nil {
		t.Fatalf("MineBlock: %v", err)
	}
	if b.Index != 1 {
		t.Errorf("Index = %d, want 1", b.Index)
	}
	if b.Transactions[0].Amount != consensus.InitialBlockReward {
		t.Errorf("coinbase = %d, want %d", b.Transactions[0].Amount, consensus.InitialBlockReward)
	}
	if c.ChainLen() != 2 {
		t.Errorf("ChainLen = %d, want 2", c.ChainLen())
	}
	if len(store.saved) != 2 {
		t.Errorf("store saved %d blocks, want 2", len(store.saved))
	}
	if len(transport.blocks) != 1 {
		t.Errorf("broadcast %d blocks, want 1", len(transport.blocks))
	}
}

func TestCoordinator_SubmitTransaction(t *testing.T) {
	c, _, transport := newTestCoordinator()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	// No confirmed balance yet: rejection, no broadcast.
	transfer, err := tx.New(key, "bob", 5, time.Now().Unix())
	if err != nil {
		t.Fatalf("tx.New: %v", err)
	}
	if err := c.SubmitTransaction(transfer); err == nil {
		t.Fatal("transaction from empty address should be rejected")
	}
	if len(transport.txs) != 0 {
		t.Fatal("rejected transaction must not be broadcast")
	}

	// Fund the sender by mining into its address.
	funded := NewCoordinator(mempool.New(), &fakeStore{}, transport, key.Address())
	if _, err := funded.MineBlock(context.Background()); err != nil {
		t.Fatalf("MineBlock: %v", err)
	}
	if err := funded.SubmitTransaction(transfer); err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}
	if len(transport.txs) != 1 {
		t.Fatal("accepted transaction should be broadcast")
	}
}

func TestCoordinator_TryAcceptBlock(t *testing.T) {
	c, store, _ := newTestCoordinator()

	longer := mineOn(t, c.GetChain(), nil)
	b := longer[1]

	if !c.TryAcceptBlock(b) {
		t.Fatal("valid successor block should be accepted")
	}
	if c.ChainLen() != 2 {
		t.Errorf("ChainLen = %d, want 2", c.ChainLen())
	}
	if len(store.saved) != 2 {
		t.Error("accepted block should be persisted")
	}

	// A duplicate no longer links to the tip.
	if c.TryAcceptBlock(b) {
		t.Error("duplicate block should be rejected")
	}
}

func TestCoordinator_TryAcceptBlock_RemovesMempoolEntries(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pool := mempool.New()
	c := NewCoordinator(pool, &fakeStore{}, &fakeTransport{}, key.Address())
	if _, err := c.MineBlock(context.Background()); err != nil {
		t.Fatalf("MineBlock: %v", err)
	}

	transfer, err := tx.New(key, "bob", 5, time.Now().Unix())
	if err != nil {
		t.Fatalf("tx.New: %v", err)
	}
	if err := c.SubmitTransaction(transfer); err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}

	accepted := mineOn(t, c.GetChain(), []*tx.Transaction{transfer})
	if !c.TryAcceptBlock(accepted[len(accepted)-1]) {
		t.Fatal("block carrying the pending transaction should be accepted")
	}
	if pool.Count() != 0 {
		t.Errorf("pool count = %d, want 0 after confirmation", pool.Count())
	}
}

func TestCoordinator_TryReplaceChain(t *testing.T) {
	c, _, _ := newTestCoordinator()

	// Build a longer remote chain from the same genesis.
	remote := mineOn(t, []*block.Block{chain.Genesis()}, nil)
	remote = mineOn(t, remote, nil)

	if !c.TryReplaceChain(remote) {
		t.Fatal("longer valid chain should replace")
	}
	if c.ChainLen() != 3 {
		t.Errorf("ChainLen = %d, want 3", c.ChainLen())
	}

	// Equal length: tie goes to the local chain.
	equal := c.GetChain()
	if c.TryReplaceChain(equal) {
		t.Error("equal-length chain must not replace")
	}

	// Empty and invalid chains are ignored.
	if c.TryReplaceChain(nil) {
		t.Error("empty chain must not replace")
	}
	bad := mineOn(t, c.GetChain(), nil)
	bad[1] = bad[2] // break the linkage
	if c.TryReplaceChain(bad) {
		t.Error("invalid chain must not replace")
	}
}

func TestCoordinator_TryReplaceChain_ToleratesUnorderedInput(t *testing.T) {
	c, _, _ := newTestCoordinator()

	remote := mineOn(t, []*block.Block{chain.Genesis()}, nil)
	remote = mineOn(t, remote, nil)
	shuffled := []*block.Block{remote[2], remote[0], remote[1]}

	if !c.TryReplaceChain(shuffled) {
		t.Fatal("unordered remote chain should be sorted and accepted")
	}
}

func TestCoordinator_HandleBlock_ForkResolution(t *testing.T) {
	// Node A: genesis + 2 local blocks. Node B (remote): genesis + 3.
	a, _, transport := newTestCoordinator()
	if _, err := a.MineBlock(context.Background()); err != nil {
		t.Fatalf("MineBlock: %v", err)
	}
	if _, err := a.MineBlock(context.Background()); err != nil {
		t.Fatalf("MineBlock: %v", err)
	}

	remote := mineOn(t, []*block.Block{chain.Genesis()}, nil)
	remote = mineOn(t, remote, nil)
	remote = mineOn(t, remote, nil)
	transport.remoteChain = remote

	// B's tip does not extend A's tip; the append fails, A requests B's
	// chain and swaps it in.
	tip := remote[len(remote)-1]
	if !a.HandleBlock(context.Background(), "peer-b", tip) {
		t.Fatal("fork should resolve via chain replacement")
	}
	if a.ChainLen() != 4 {
		t.Errorf("ChainLen = %d, want 4", a.ChainLen())
	}
	got := a.GetChain()
	for i := range remote {
		if got[i].Hash() != remote[i].Hash() {
			t.Fatalf("block %d differs from remote chain", i)
		}
	}
}

func TestCoordinator_InitializeFromStore(t *testing.T) {
	persisted := mineOn(t, []*block.Block{chain.Genesis()}, nil)
	store := &fakeStore{saved: persisted}

	c := NewCoordinator(mempool.New(), store, nil, "miner-addr")
	c.InitializeFromStore()
	if c.ChainLen() != 2 {
		t.Errorf("ChainLen = %d, want 2 from store", c.ChainLen())
	}
}

func TestCoordinator_InitializeFromStore_IgnoresInvalid(t *testing.T) {
	persisted := mineOn(t, []*block.Block{chain.Genesis()}, nil)
	persisted[1] = block.New(1, 1, "junk-prev-hash", persisted[1].Transactions, 0)
	store := &fakeStore{saved: persisted}

	c := NewCoordinator(mempool.New(), store, nil, "miner-addr")
	c.InitializeFromStore()
	if c.ChainLen() != 1 {
		t.Errorf("ChainLen = %d, want 1 (invalid store ignored)", c.ChainLen())
	}
}

func TestCoordinator_PersistenceFailureIsNonFatal(t *testing.T) {
	store := &fakeStore{fail: true}
	c := NewCoordinator(mempool.New(), store, &fakeTransport{}, "miner-addr")

	// The in-memory chain stays authoritative even when saves fail.
	if _, err := c.MineBlock(context.Background()); err != nil {
		t.Fatalf("MineBlock: %v", err)
	}
	if c.ChainLen() != 2 {
		t.Errorf("ChainLen = %d, want 2", c.ChainLen())
	}
}

func TestCoordinator_GetBalance(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	c := NewCoordinator(mempool.New(), &fakeStore{}, &fakeTransport{}, key.Address())
	if _, err := c.MineBlock(context.Background()); err != nil {
		t.Fatalf("MineBlock: %v", err)
	}

	if got := c.GetBalance(key.Address()); got != consensus.InitialBlockReward {
		t.Errorf("balance = %d, want %d", got, consensus.InitialBlockReward)
	}
	if got := c.GetBalance("nobody"); got != 0 {
		t.Errorf("unknown address balance = %d, want 0", got)
	}
}
