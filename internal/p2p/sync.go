package p2p

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/coreledger/coreledger/pkg/block"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
)

const (
	// chainReadTimeout bounds reading a chain response.
	chainReadTimeout = 30 * time.Second

	// maxChainResponseBytes limits a chain response (32 MB).
	maxChainResponseBytes = 32 * 1024 * 1024
)

// ChainResponse carries a peer's full chain.
type ChainResponse struct {
	Blocks []*block.Block `json:"blocks"`
}

// Syncer serves and issues full-chain requests over the ChainProtocol
// stream. A request has no body: opening the stream is the request, the
// response is the serving node's entire chain. The requester applies
// the longest-chain rule, so partial or paginated transfers would buy
// nothing — the whole candidate chain is needed for validation anyway.
type Syncer struct {
	host host.Host
}

// NewSyncer creates a syncer on the node's host.
func NewSyncer(n *Node) *Syncer {
	return &Syncer{host: n.host}
}

// RegisterHandler installs the chain-request stream handler. provider
// returns the local chain snapshot to serve.
func (s *Syncer) RegisterHandler(provider func() []*block.Block) {
	s.host.SetStreamHandler(ChainProtocol, func(stream network.Stream) {
		defer stream.Close()
		resp := ChainResponse{Blocks: provider()}
		_ = json.NewEncoder(stream).Encode(&resp)
	})
}

// RequestChain asks one peer for its full chain.
func (s *Syncer) RequestChain(ctx context.Context, peerID peer.ID) ([]*block.Block, error) {
	stream, err := s.host.NewStream(ctx, peerID, ChainProtocol)
	if err != nil {
		return nil, fmt.Errorf("open chain stream: %w", err)
	}
	defer stream.Close()

	// Nothing to send; the stream open is the request.
	stream.CloseWrite()

	_ = stream.SetReadDeadline(time.Now().Add(chainReadTimeout))

	var resp ChainResponse
	if err := json.NewDecoder(io.LimitReader(stream, maxChainResponseBytes)).Decode(&resp); err != nil {
		return nil, fmt.Errorf("read chain response: %w", err)
	}
	return resp.Blocks, nil
}
