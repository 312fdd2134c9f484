package p2p

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coreledger/coreledger/internal/chain"
	"github.com/coreledger/coreledger/pkg/block"
	"github.com/coreledger/coreledger/pkg/tx"
	"github.com/libp2p/go-libp2p/core/peer"
)

// startTestNode brings up a node on an ephemeral localhost port with
// discovery off and no persistence.
func startTestNode(t *testing.T) *Node {
	t.Helper()
	n := New(Config{
		ListenAddr: "127.0.0.1",
		Port:       0,
		NoDiscover: true,
	})
	n.SetGenesisHash(chain.Genesis().Hash())
	if err := n.Start(); err != nil {
		t.Fatalf("start node: %v", err)
	}
	t.Cleanup(func() { n.Stop() })
	return n
}

func connectNodes(t *testing.T, a, b *Node) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	info := peer.AddrInfo{ID: b.host.ID(), Addrs: b.host.Addrs()}
	if err := a.host.Connect(ctx, info); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func TestGossip_BlockPropagates(t *testing.T) {
	a := startTestNode(t)
	b := startTestNode(t)
	received := make(chan *block.Block, 1)
	b.SetBlockHandler(func(from peer.ID, data []byte) {
		var blk block.Block
		if err := json.Unmarshal(data, &blk); err != nil {
			return
		}
		select {
		case received <- &blk:
		default:
		}
	})

	connectNodes(t, a, b)

	want := chain.Genesis()

	// GossipSub needs a moment to graft the mesh; retry the publish
	// until the subscriber sees it.
	deadline := time.After(15 * time.Second)
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	for {
		if err := a.BroadcastBlock(want); err != nil {
			t.Fatalf("broadcast: %v", err)
		}
		select {
		case got := <-received:
			if got.Hash() != want.Hash() {
				t.Fatalf("received hash %s, want %s", got.Hash(), want.Hash())
			}
			return
		case <-deadline:
			t.Fatal("block did not propagate")
		case <-tick.C:
		}
	}
}

func TestGossip_TransactionPropagates(t *testing.T) {
	a := startTestNode(t)
	b := startTestNode(t)

	received := make(chan *tx.Transaction, 1)
	b.SetTxHandler(func(from peer.ID, data []byte) {
		var transfer tx.Transaction
		if err := json.Unmarshal(data, &transfer); err != nil {
			return
		}
		select {
		case received <- &transfer:
		default:
		}
	})

	connectNodes(t, a, b)

	want := tx.NewCoinbase("miner", 50, 1700000000)

	deadline := time.After(15 * time.Second)
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	for {
		if err := a.BroadcastTransaction(want); err != nil {
			t.Fatalf("broadcast: %v", err)
		}
		select {
		case got := <-received:
			if got.ID != want.ID {
				t.Fatalf("received id %s, want %s", got.ID, want.ID)
			}
			return
		case <-deadline:
			t.Fatal("transaction did not propagate")
		case <-tick.C:
		}
	}
}

func TestSyncer_RequestChain(t *testing.T) {
	a := startTestNode(t)
	b := startTestNode(t)

	served := []*block.Block{chain.Genesis()}
	NewSyncer(b).RegisterHandler(func() []*block.Block { return served })

	connectNodes(t, a, b)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	got, err := NewSyncer(a).RequestChain(ctx, b.host.ID())
	if err != nil {
		t.Fatalf("RequestChain: %v", err)
	}
	if len(got) != 1 || got[0].Hash() != chain.Genesis().Hash() {
		t.Fatalf("got %d blocks, want the genesis chain", len(got))
	}
}

func TestBroadcast_BeforeStart(t *testing.T) {
	n := New(Config{})
	if err := n.BroadcastBlock(chain.Genesis()); err == nil {
		t.Error("broadcast before Start should fail")
	}
	if err := n.BroadcastTransaction(tx.NewCoinbase("m", 1, 1)); err == nil {
		t.Error("broadcast before Start should fail")
	}
}

func TestDisconnectPeer(t *testing.T) {
	a := startTestNode(t)
	b := startTestNode(t)
	connectNodes(t, a, b)

	// The notifier tracks the peer; allow it to fire.
	waitFor(t, func() bool { return a.PeerCount() == 1 })

	if err := a.DisconnectPeer(b.host.ID()); err != nil {
		t.Fatalf("DisconnectPeer: %v", err)
	}
	waitFor(t, func() bool { return a.PeerCount() == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
