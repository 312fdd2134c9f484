package rpc

import (
	"context"

	"github.com/coreledger/coreledger/internal/miner"
	"github.com/coreledger/coreledger/pkg/types"
)

func (s *Server) handleChainGetChain() (interface{}, *Error) {
	blocks := s.ledger.GetChain()
	out := make([]*BlockResult, len(blocks))
	for i, b := range blocks {
		out[i] = NewBlockResult(b)
	}
	return out, nil
}

func (s *Server) handleChainGetBlockByHeight(req *Request) (interface{}, *Error) {
	var params BlockByHeightParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}

	blocks := s.ledger.GetChain()
	if params.Height >= uint64(len(blocks)) {
		return nil, errRejected("block height out of range")
	}
	return NewBlockResult(blocks[params.Height]), nil
}

func (s *Server) handleChainGetBlockByHash(req *Request) (interface{}, *Error) {
	var params BlockByHashParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	want, err := types.ParseHash(params.Hash)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}

	for _, b := range s.ledger.GetChain() {
		if b.Hash() == want {
			return NewBlockResult(b), nil
		}
	}
	return nil, errRejected("block not found")
}

func (s *Server) handleChainGetBalance(req *Request) (interface{}, *Error) {
	var params BalanceParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.Address == "" {
		return nil, errInvalidParams("missing address")
	}
	addr := types.Address(params.Address)
	return &BalanceResult{Address: addr, Balance: s.ledger.GetBalance(addr)}, nil
}

func (s *Server) handleTxSubmit(req *Request) (interface{}, *Error) {
	var params TxSubmitParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.Transaction == nil {
		return nil, errInvalidParams("missing transaction")
	}
	if err := params.Transaction.Validate(); err != nil {
		return nil, errRejected(err.Error())
	}
	if err := s.ledger.SubmitTransaction(params.Transaction); err != nil {
		return nil, errRejected(err.Error())
	}
	return &TxSubmitResult{ID: params.Transaction.ID}, nil
}

func (s *Server) handleMempoolGetInfo() (interface{}, *Error) {
	return &MempoolInfoResult{Count: s.pool.Count()}, nil
}

func (s *Server) handleMempoolGetContent() (interface{}, *Error) {
	return &MempoolContentResult{Transactions: s.pool.Snapshot(-1)}, nil
}

func (s *Server) handleNetGetPeerInfo() (interface{}, *Error) {
	if s.p2pNode == nil {
		return nil, errRejected("networking disabled")
	}
	peers := s.p2pNode.PeerList()
	infos := make([]PeerInfo, len(peers))
	for i, p := range peers {
		infos[i] = PeerInfo{
			ID:          p.ID.String(),
			ConnectedAt: p.ConnectedAt.Unix(),
			Source:      p.Source,
		}
	}
	return &PeerInfoResult{Count: len(infos), Peers: infos}, nil
}

func (s *Server) handleNetGetNodeInfo() (interface{}, *Error) {
	if s.p2pNode == nil {
		return nil, errRejected("networking disabled")
	}
	return &NodeInfoResult{
		PeerID: s.p2pNode.ID().String(),
		Addrs:  s.p2pNode.Addrs(),
		Height: s.ledger.Latest().Index,
	}, nil
}

func (s *Server) handleNetGetBanList() (interface{}, *Error) {
	if s.p2pNode == nil || s.p2pNode.BanManager == nil {
		return nil, errRejected("networking disabled")
	}
	bans := s.p2pNode.BanManager.BanList()
	out := make([]BanEntry, len(bans))
	for i, b := range bans {
		out[i] = BanEntry{ID: b.ID, Reason: b.Reason, ExpiresAt: b.ExpiresAt}
	}
	return out, nil
}

func (s *Server) handleMiningStart() (interface{}, *Error) {
	s.ledger.Miner().Start()
	return &MiningStatusResult{Running: true}, nil
}

func (s *Server) handleMiningStop() (interface{}, *Error) {
	s.ledger.Miner().Stop()
	return &MiningStatusResult{Running: false}, nil
}

func (s *Server) handleMiningStatus() (interface{}, *Error) {
	return &MiningStatusResult{Running: s.ledger.Miner().Running()}, nil
}

// handleMiningMineOne performs a single blocking mining attempt — a
// local-testing convenience; a continuously mining node uses
// mining.start instead.
func (s *Server) handleMiningMineOne(ctx context.Context) (interface{}, *Error) {
	b, err := s.ledger.MineBlock(ctx)
	if err != nil {
		if err == miner.ErrStaleTemplate || err == miner.ErrAppendRejected {
			return nil, errRejected(err.Error())
		}
		return nil, errInternal(err.Error())
	}
	return NewBlockResult(b), nil
}
