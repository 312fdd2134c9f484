package rpc

import (
	"encoding/json"

	"github.com/coreledger/coreledger/pkg/block"
	"github.com/coreledger/coreledger/pkg/tx"
	"github.com/coreledger/coreledger/pkg/types"
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC error codes. The -32xxx range follows the spec; -320xx is
// this server's application range.
const (
	CodeParse          = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603

	// CodeRejected covers consensus/mempool rejections: the request was
	// well-formed but the ledger said no.
	CodeRejected = -32000
)

func errInvalidParams(msg string) *Error {
	return &Error{Code: CodeInvalidParams, Message: msg}
}

func errRejected(msg string) *Error {
	return &Error{Code: CodeRejected, Message: msg}
}

func errInternal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// BlockResult is a block plus its recomputed hash. The hash never
// travels in the chain's canonical serialisation, but RPC consumers
// want it without recomputing.
type BlockResult struct {
	*block.Block
	Hash types.Hash `json:"hash"`
}

// NewBlockResult wraps a block for RPC output.
func NewBlockResult(b *block.Block) *BlockResult {
	return &BlockResult{Block: b, Hash: b.Hash()}
}

// ChainInfoResult summarises the local chain.
type ChainInfoResult struct {
	Length     int        `json:"length"`
	Height     uint64     `json:"height"`
	TipHash    types.Hash `json:"tip_hash"`
	Difficulty int        `json:"difficulty"`
}

// BlockByHeightParams selects a block by height.
type BlockByHeightParams struct {
	Height uint64 `json:"height"`
}

// BlockByHashParams selects a block by hash.
type BlockByHashParams struct {
	Hash string `json:"hash"`
}

// BalanceParams names an address.
type BalanceParams struct {
	Address string `json:"address"`
}

// BalanceResult reports an address's confirmed balance.
type BalanceResult struct {
	Address types.Address `json:"address"`
	Balance int64         `json:"balance"`
}

// TxSubmitParams carries a fully signed transaction.
type TxSubmitParams struct {
	Transaction *tx.Transaction `json:"transaction"`
}

// TxSubmitResult acknowledges an admitted transaction.
type TxSubmitResult struct {
	ID types.Hash `json:"id"`
}

// MempoolInfoResult summarises the mempool.
type MempoolInfoResult struct {
	Count int `json:"count"`
}

// MempoolContentResult lists pending transactions.
type MempoolContentResult struct {
	Transactions []*tx.Transaction `json:"transactions"`
}

// PeerInfo describes one connected peer.
type PeerInfo struct {
	ID          string `json:"id"`
	ConnectedAt int64  `json:"connected_at"`
	Source      string `json:"source,omitempty"`
}

// PeerInfoResult lists connected peers.
type PeerInfoResult struct {
	Count int        `json:"count"`
	Peers []PeerInfo `json:"peers"`
}

// NodeInfoResult describes this node.
type NodeInfoResult struct {
	PeerID string   `json:"peer_id"`
	Addrs  []string `json:"addrs"`
	Height uint64   `json:"height"`
}

// BanEntry is one active peer ban.
type BanEntry struct {
	ID        string `json:"id"`
	Reason    string `json:"reason"`
	ExpiresAt int64  `json:"expires_at"`
}

// MiningStatusResult reports the mining loop state.
type MiningStatusResult struct {
	Running bool `json:"running"`
}

// WalletNameParams names a wallet.
type WalletNameParams struct {
	Wallet string `json:"wallet"`
}

// WalletAuthParams names a wallet and supplies its password.
type WalletAuthParams struct {
	Wallet   string `json:"wallet"`
	Password string `json:"password"`
}

// WalletRestoreParams restores a wallet from a mnemonic.
type WalletRestoreParams struct {
	Wallet   string `json:"wallet"`
	Password string `json:"password"`
	Mnemonic string `json:"mnemonic"`
}

// WalletCreateResult returns the one-time mnemonic and first address.
type WalletCreateResult struct {
	Mnemonic string        `json:"mnemonic,omitempty"`
	Address  types.Address `json:"address"`
}

// WalletListResult lists wallet names.
type WalletListResult struct {
	Wallets []string `json:"wallets"`
}

// WalletAccountsResult lists a wallet's derived addresses.
type WalletAccountsResult struct {
	Addresses []types.Address `json:"addresses"`
}

// WalletSendParams signs and submits a transfer from a wallet account.
// From is optional; empty means the wallet's first address.
type WalletSendParams struct {
	Wallet   string        `json:"wallet"`
	Password string        `json:"password"`
	From     types.Address `json:"from,omitempty"`
	To       types.Address `json:"to"`
	Amount   int64         `json:"amount"`
}

// WalletSendResult acknowledges a sent transaction.
type WalletSendResult struct {
	ID   types.Hash    `json:"id"`
	From types.Address `json:"from"`
}
