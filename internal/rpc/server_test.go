package rpc_test

import (
	"context"
	"testing"
	"time"

	"github.com/coreledger/coreledger/internal/consensus"
	"github.com/coreledger/coreledger/internal/mempool"
	"github.com/coreledger/coreledger/internal/node"
	"github.com/coreledger/coreledger/internal/rpc"
	"github.com/coreledger/coreledger/internal/rpcclient"
	"github.com/coreledger/coreledger/internal/wallet"
	"github.com/coreledger/coreledger/pkg/crypto"
	"github.com/coreledger/coreledger/pkg/tx"
)

// startServer brings up an RPC server over a fresh coordinator and
// returns a client pointed at it.
func startServer(t *testing.T) (*rpcclient.Client, *node.Coordinator, *mempool.Pool, *rpc.Server) {
	t.Helper()
	pool := mempool.New()
	coord := node.NewCoordinator(pool, nil, nil, "miner-addr")

	srv := rpc.New("127.0.0.1:0", coord, pool)
	ks, err := wallet.NewKeystore(t.TempDir())
	if err != nil {
		t.Fatalf("NewKeystore: %v", err)
	}
	srv.SetKeystore(ks)

	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	return rpcclient.New("http://" + srv.Addr() + "/"), coord, pool, srv
}

func TestChainGetInfo(t *testing.T) {
	client, coord, _, _ := startServer(t)

	info, err := client.ChainInfo()
	if err != nil {
		t.Fatalf("ChainInfo: %v", err)
	}
	if info.Length != 1 || info.Height != 0 {
		t.Errorf("fresh chain info = %+v", info)
	}
	if info.TipHash != coord.Latest().Hash() {
		t.Error("tip hash mismatch")
	}
	if info.Difficulty != consensus.Difficulty {
		t.Errorf("difficulty = %d, want %d", info.Difficulty, consensus.Difficulty)
	}
}

func TestChainGetBlockByHeight(t *testing.T) {
	client, coord, _, _ := startServer(t)
	if _, err := coord.MineBlock(context.Background()); err != nil {
		t.Fatalf("MineBlock: %v", err)
	}

	b, err := client.BlockByHeight(1)
	if err != nil {
		t.Fatalf("BlockByHeight: %v", err)
	}
	if b.Index != 1 {
		t.Errorf("Index = %d, want 1", b.Index)
	}
	if b.Hash != b.Block.Hash() {
		t.Error("result hash should equal the recomputed block hash")
	}

	if _, err := client.BlockByHeight(99); err == nil {
		t.Error("out-of-range height should error")
	}
}

func TestTxSubmit_Unfunded(t *testing.T) {
	client, _, _, _ := startServer(t)

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	transfer, err := tx.New(key, "bob", 5, time.Now().Unix())
	if err != nil {
		t.Fatalf("tx.New: %v", err)
	}
	if err := client.Call("tx.submit", rpc.TxSubmitParams{Transaction: transfer}, nil); err == nil {
		t.Fatal("unfunded transaction should be rejected")
	}
}

func TestTxSubmit_Funded(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	// A server whose miner rewards the sender's address.
	pool := mempool.New()
	coord := node.NewCoordinator(pool, nil, nil, key.Address())
	srv := rpc.New("127.0.0.1:0", coord, pool)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()
	client := rpcclient.New("http://" + srv.Addr() + "/")

	if _, err := coord.MineBlock(context.Background()); err != nil {
		t.Fatalf("MineBlock: %v", err)
	}

	transfer, err := tx.New(key, "bob", 5, time.Now().Unix())
	if err != nil {
		t.Fatalf("tx.New: %v", err)
	}
	var res rpc.TxSubmitResult
	if err := client.Call("tx.submit", rpc.TxSubmitParams{Transaction: transfer}, &res); err != nil {
		t.Fatalf("tx.submit: %v", err)
	}
	if res.ID != transfer.ID {
		t.Error("submit should echo the transaction id")
	}
	if pool.Count() != 1 {
		t.Errorf("pool count = %d, want 1", pool.Count())
	}
}

func TestMempoolMethods(t *testing.T) {
	client, _, _, _ := startServer(t)

	info, err := client.MempoolInfo()
	if err != nil {
		t.Fatalf("MempoolInfo: %v", err)
	}
	if info.Count != 0 {
		t.Errorf("Count = %d, want 0", info.Count)
	}

	var content rpc.MempoolContentResult
	if err := client.Call("mempool.getContent", nil, &content); err != nil {
		t.Fatalf("mempool.getContent: %v", err)
	}
	if len(content.Transactions) != 0 {
		t.Error("fresh mempool should be empty")
	}
}

func TestMiningMethods(t *testing.T) {
	client, coord, _, _ := startServer(t)

	var status rpc.MiningStatusResult
	if err := client.Call("mining.status", nil, &status); err != nil {
		t.Fatalf("mining.status: %v", err)
	}
	if status.Running {
		t.Error("miner should start idle")
	}

	var mined rpc.BlockResult
	if err := client.Call("mining.mineOne", nil, &mined); err != nil {
		t.Fatalf("mining.mineOne: %v", err)
	}
	if mined.Index != 1 {
		t.Errorf("mined Index = %d, want 1", mined.Index)
	}
	if coord.ChainLen() != 2 {
		t.Errorf("ChainLen = %d, want 2", coord.ChainLen())
	}
}

func TestMethodNotFound(t *testing.T) {
	client, _, _, _ := startServer(t)
	err := client.Call("no.such.method", nil, nil)
	rpcErr, ok := err.(*rpcclient.RPCError)
	if !ok {
		t.Fatalf("err = %v, want RPCError", err)
	}
	if rpcErr.Code != rpc.CodeMethodNotFound {
		t.Errorf("code = %d, want %d", rpcErr.Code, rpc.CodeMethodNotFound)
	}
}

func TestNetMethodsWithoutP2P(t *testing.T) {
	client, _, _, _ := startServer(t)
	if err := client.Call("net.getPeerInfo", nil, nil); err == nil {
		t.Error("net methods should fail when networking is disabled")
	}
}
