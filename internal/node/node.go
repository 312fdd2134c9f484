// Package node ties the ledger together: the coordinator that owns all
// chain mutation, and the full node that wires it to storage, the p2p
// transport, the RPC server, and the miner.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/coreledger/coreledger/config"
	"github.com/coreledger/coreledger/internal/chain"
	"github.com/coreledger/coreledger/internal/consensus"
	klog "github.com/coreledger/coreledger/internal/log"
	"github.com/coreledger/coreledger/internal/mempool"
	"github.com/coreledger/coreledger/internal/p2p"
	"github.com/coreledger/coreledger/internal/rpc"
	"github.com/coreledger/coreledger/internal/storage"
	"github.com/coreledger/coreledger/internal/wallet"
	"github.com/coreledger/coreledger/pkg/block"
	"github.com/coreledger/coreledger/pkg/tx"
	"github.com/libp2p/go-libp2p/core/peer"
)

// Node is a fully assembled ledger node.
type Node struct {
	cfg   *config.Config
	db    storage.DB
	pool  *mempool.Pool
	coord *Coordinator

	p2pNode   *p2p.Node   // nil when networking is disabled
	syncer    *p2p.Syncer // nil until the p2p host is up
	rpcServer *rpc.Server // nil when RPC is disabled
	keystore  *wallet.Keystore

	ctx    context.Context
	cancel context.CancelFunc
}

// New assembles a node from configuration. The chain is loaded from the
// store immediately; networking and RPC start in Start.
func New(cfg *config.Config) (*Node, error) {
	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{cfg: cfg, ctx: ctx, cancel: cancel}

	// An empty data directory means a fully in-memory node (tests,
	// throwaway local networks).
	if cfg.DataDir == "" {
		n.db = storage.NewMemory()
	} else {
		db, err := storage.NewBadger(filepath.Join(cfg.ChainDataDir(), "chain"))
		if err != nil {
			cancel()
			return nil, fmt.Errorf("open chain database: %w", err)
		}
		n.db = db
	}

	if cfg.Network == config.Testnet && cfg.Mining.TestDifficulty > 0 {
		consensus.Difficulty = cfg.Mining.TestDifficulty
		klog.Node.Warn().Int("difficulty", consensus.Difficulty).Msg("Difficulty overridden for local testing")
	}

	if cfg.Wallet.Enabled {
		ks, err := wallet.NewKeystore(cfg.KeystoreDir())
		if err != nil {
			n.db.Close()
			cancel()
			return nil, fmt.Errorf("open keystore: %w", err)
		}
		n.keystore = ks
	}

	rewardAddr, err := resolveRewardAddress(cfg)
	if err != nil {
		n.db.Close()
		cancel()
		return nil, err
	}

	n.pool = mempool.New()
	n.coord = NewCoordinator(n.pool, chain.NewStore(n.db), nil, rewardAddr)
	n.coord.InitializeFromStore()

	if cfg.P2P.Enabled {
		n.p2pNode = p2p.New(p2p.Config{
			ListenAddr: cfg.P2P.ListenAddr,
			Port:       cfg.P2P.Port,
			Seeds:      cfg.P2P.Seeds,
			MaxPeers:   cfg.P2P.MaxPeers,
			NoDiscover: cfg.P2P.NoDiscover,
			DHTServer:  cfg.P2P.DHTServer,
			DB:         n.db,
			DataDir:    cfg.DataDir,
		})
		n.p2pNode.SetGenesisHash(chain.Genesis().Hash())
		n.p2pNode.SetChainLenFn(n.coord.ChainLen)
		n.p2pNode.SetBlockHandler(n.handleGossipBlock)
		n.p2pNode.SetTxHandler(n.handleGossipTx)
		n.p2pNode.SetPeerConnectedHandler(n.syncFromPeer)
	}

	if cfg.RPC.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		n.rpcServer = rpc.New(addr, n.coord, n.pool)
		n.rpcServer.SetAllowedIPs(cfg.RPC.AllowedIPs)
		n.rpcServer.SetCORSOrigins(cfg.RPC.CORSOrigins)
		if n.p2pNode != nil {
			n.rpcServer.SetP2P(n.p2pNode)
		}
		if n.keystore != nil {
			n.rpcServer.SetKeystore(n.keystore)
		}
	}

	return n, nil
}

// Coordinator exposes the node's coordinator.
func (n *Node) Coordinator() *Coordinator {
	return n.coord
}

// RPCAddr returns the RPC server's bound address, or "" if disabled.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Start brings up networking, RPC, and (if configured) the miner.
func (n *Node) Start() error {
	if n.p2pNode != nil {
		if err := n.p2pNode.Start(); err != nil {
			return fmt.Errorf("start p2p: %w", err)
		}
		n.syncer = p2p.NewSyncer(n.p2pNode)
		n.syncer.RegisterHandler(n.coord.HandleChainRequest)
		n.coord.SetTransport(&p2pTransport{node: n.p2pNode, syncer: n.syncer})
		klog.Node.Info().Str("peer_id", n.p2pNode.ID().String()).Msg("P2P started")
	}

	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			return fmt.Errorf("start rpc: %w", err)
		}
	}

	if n.cfg.Mining.Enabled {
		n.coord.Miner().Start()
		klog.Node.Info().Msg("Miner started")
	}

	klog.Node.Info().
		Int("chain_length", n.coord.ChainLen()).
		Msg("Node started")
	return nil
}

// Stop shuts the node down: miner first (awaiting its exit), then RPC,
// transport, and storage.
func (n *Node) Stop() {
	n.coord.Miner().Stop()
	n.cancel()

	if n.rpcServer != nil {
		n.rpcServer.Stop()
	}
	if n.p2pNode != nil {
		n.p2pNode.Stop()
	}
	n.db.Close()
	klog.Node.Info().Msg("Node stopped")
}

// handleGossipBlock processes an inbound block from the gossip mesh.
// Structurally invalid payloads penalise the sender; a chain-level
// rejection does not — it usually just means one of us is behind, and
// HandleBlock already follows up with a chain request.
func (n *Node) handleGossipBlock(from peer.ID, data []byte) {
	var b block.Block
	if err := json.Unmarshal(data, &b); err != nil {
		n.penalise(from, p2p.PenaltyInvalidBlock, "undecodable block")
		return
	}
	if err := b.ValidateStructure(); err != nil {
		n.penalise(from, p2p.PenaltyInvalidBlock, err.Error())
		return
	}
	n.coord.HandleBlock(n.ctx, from.String(), &b)
}

// handleGossipTx processes an inbound transaction from the gossip mesh.
func (n *Node) handleGossipTx(from peer.ID, data []byte) {
	var transfer tx.Transaction
	if err := json.Unmarshal(data, &transfer); err != nil {
		n.penalise(from, p2p.PenaltyInvalidTx, "undecodable transaction")
		return
	}
	if !transfer.ValidateSignature() {
		n.penalise(from, p2p.PenaltyInvalidTx, "bad transaction signature")
		return
	}
	// Duplicates and balance rejections are normal gossip noise.
	n.coord.HandleTransaction(&transfer)
}

// syncFromPeer requests a newly connected peer's chain and applies the
// longest-chain rule — the startup catch-up path.
func (n *Node) syncFromPeer(id peer.ID) {
	if n.syncer == nil {
		return
	}
	remote, err := n.syncer.RequestChain(n.ctx, id)
	if err != nil {
		klog.Node.Debug().Err(err).Str("peer", id.String()).Msg("Startup chain request failed")
		return
	}
	if n.coord.TryReplaceChain(remote) {
		klog.Node.Info().
			Int("length", n.coord.ChainLen()).
			Msg("Synced to longer chain from peer")
	}
}

func (n *Node) penalise(id peer.ID, penalty int, reason string) {
	if n.p2pNode != nil && n.p2pNode.BanManager != nil {
		n.p2pNode.BanManager.RecordOffense(id, penalty, reason)
	}
}

// p2pTransport adapts the p2p node + syncer to the coordinator's
// Transport contract.
type p2pTransport struct {
	node   *p2p.Node
	syncer *p2p.Syncer
}

func (t *p2pTransport) BroadcastBlock(b *block.Block) error {
	return t.node.BroadcastBlock(b)
}

func (t *p2pTransport) BroadcastTransaction(transfer *tx.Transaction) error {
	return t.node.BroadcastTransaction(transfer)
}

func (t *p2pTransport) RequestChain(ctx context.Context, peerStr string) ([]*block.Block, error) {
	id, err := peer.Decode(peerStr)
	if err != nil {
		return nil, fmt.Errorf("bad peer id %q: %w", peerStr, err)
	}
	return t.syncer.RequestChain(ctx, id)
}
