// Package rpc exposes the node over a JSON-RPC 2.0 HTTP endpoint:
// chain reads, transaction submission, mempool and network inspection,
// mining control, and wallet operations.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/coreledger/coreledger/internal/consensus"
	klog "github.com/coreledger/coreledger/internal/log"
	"github.com/coreledger/coreledger/internal/mempool"
	"github.com/coreledger/coreledger/internal/miner"
	"github.com/coreledger/coreledger/internal/p2p"
	"github.com/coreledger/coreledger/internal/wallet"
	"github.com/coreledger/coreledger/pkg/block"
	"github.com/coreledger/coreledger/pkg/tx"
	"github.com/coreledger/coreledger/pkg/types"
)

// maxRequestBytes bounds a request body.
const maxRequestBytes = 1 << 20

// Ledger is the server's view of the node coordinator.
type Ledger interface {
	GetChain() []*block.Block
	Latest() *block.Block
	ChainLen() int
	GetBalance(addr types.Address) int64
	SubmitTransaction(t *tx.Transaction) error
	MineBlock(ctx context.Context) (*block.Block, error)
	Miner() *miner.Miner
}

// Server is the JSON-RPC HTTP server.
type Server struct {
	addr   string
	ledger Ledger
	pool   *mempool.Pool

	p2pNode  *p2p.Node        // nil when networking is disabled
	keystore *wallet.Keystore // nil when the wallet surface is disabled

	allowed     []*net.IPNet
	corsOrigins []string

	listener net.Listener
	httpSrv  *http.Server
}

// New creates a server bound to addr (host:port; port 0 picks a free
// one, see Addr).
func New(addr string, ledger Ledger, pool *mempool.Pool) *Server {
	return &Server{addr: addr, ledger: ledger, pool: pool}
}

// SetP2P enables the net.* method family.
func (s *Server) SetP2P(n *p2p.Node) {
	s.p2pNode = n
}

// SetKeystore enables the wallet.* method family.
func (s *Server) SetKeystore(ks *wallet.Keystore) {
	s.keystore = ks
}

// SetAllowedIPs restricts callers to the given CIDRs or bare IPs.
// Empty means allow all.
func (s *Server) SetAllowedIPs(entries []string) {
	s.allowed = parseAllowedIPs(entries)
}

// SetCORSOrigins sets the allowed CORS origins ("*" allows all).
func (s *Server) SetCORSOrigins(origins []string) {
	s.corsOrigins = origins
}

func parseAllowedIPs(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, e := range entries {
		if _, n, err := net.ParseCIDR(e); err == nil {
			nets = append(nets, n)
			continue
		}
		if ip := net.ParseIP(e); ip != nil {
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
		}
	}
	return nets
}

// Start begins serving. Non-blocking; errors after startup are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	s.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			klog.RPC.Error().Err(err).Msg("RPC server stopped")
		}
	}()

	klog.RPC.Info().Str("addr", ln.Addr().String()).Msg("RPC server listening")
	return nil
}

// Addr returns the bound address (useful when started with port 0).
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	s.setCORSHeaders(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && !s.isIPAllowed(net.ParseIP(host)) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeResponse(w, Response{JSONRPC: "2.0", Error: &Error{Code: CodeParse, Message: "read body"}})
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeResponse(w, Response{JSONRPC: "2.0", Error: &Error{Code: CodeParse, Message: "parse request"}})
		return
	}
	if req.Method == "" {
		writeResponse(w, Response{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: CodeInvalidRequest, Message: "missing method"}})
		return
	}

	result, rpcErr := s.dispatch(r.Context(), &req)
	writeResponse(w, Response{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rpcErr})
}

func (s *Server) dispatch(ctx context.Context, req *Request) (interface{}, *Error) {
	switch req.Method {
	// Chain reads.
	case "chain.getInfo":
		return s.handleChainGetInfo()
	case "chain.getChain":
		return s.handleChainGetChain()
	case "chain.getBlockByHeight":
		return s.handleChainGetBlockByHeight(req)
	case "chain.getBlockByHash":
		return s.handleChainGetBlockByHash(req)
	case "chain.getBalance":
		return s.handleChainGetBalance(req)

	// Transactions.
	case "tx.submit":
		return s.handleTxSubmit(req)

	// Mempool.
	case "mempool.getInfo":
		return s.handleMempoolGetInfo()
	case "mempool.getContent":
		return s.handleMempoolGetContent()

	// Network.
	case "net.getPeerInfo":
		return s.handleNetGetPeerInfo()
	case "net.getNodeInfo":
		return s.handleNetGetNodeInfo()
	case "net.getBanList":
		return s.handleNetGetBanList()

	// Mining.
	case "mining.start":
		return s.handleMiningStart()
	case "mining.stop":
		return s.handleMiningStop()
	case "mining.status":
		return s.handleMiningStatus()
	case "mining.mineOne":
		return s.handleMiningMineOne(ctx)

	// Wallet.
	case "wallet.create":
		return s.handleWalletCreate(req)
	case "wallet.restore":
		return s.handleWalletRestore(req)
	case "wallet.list":
		return s.handleWalletList()
	case "wallet.accounts":
		return s.handleWalletAccounts(req)
	case "wallet.newAddress":
		return s.handleWalletNewAddress(req)
	case "wallet.getBalance":
		return s.handleWalletGetBalance(req)
	case "wallet.send":
		return s.handleWalletSend(req)

	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}
	}
}

func (s *Server) handleChainGetInfo() (interface{}, *Error) {
	tip := s.ledger.Latest()
	return &ChainInfoResult{
		Length:     s.ledger.ChainLen(),
		Height:     tip.Index,
		TipHash:    tip.Hash(),
		Difficulty: consensus.Difficulty,
	}, nil
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) isIPAllowed(ip net.IP) bool {
	if len(s.allowed) == 0 || ip == nil {
		return true
	}
	for _, n := range s.allowed {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.corsOrigins) == 0 {
		return
	}
	for _, allowed := range s.corsOrigins {
		if allowed == "*" || allowed == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			return
		}
	}
}

// parseParams decodes req.Params into target.
func parseParams(req *Request, target interface{}) *Error {
	if len(req.Params) == 0 {
		return errInvalidParams("missing params")
	}
	if err := json.Unmarshal(req.Params, target); err != nil {
		return errInvalidParams(fmt.Sprintf("bad params: %v", err))
	}
	return nil
}
