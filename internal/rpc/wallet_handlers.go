package rpc

import (
	"time"

	"github.com/coreledger/coreledger/internal/wallet"
	"github.com/coreledger/coreledger/pkg/tx"
	"github.com/coreledger/coreledger/pkg/types"
)

func (s *Server) requireKeystore() *Error {
	if s.keystore == nil {
		return errRejected("wallet disabled")
	}
	return nil
}

func (s *Server) handleWalletCreate(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireKeystore(); rpcErr != nil {
		return nil, rpcErr
	}
	var params WalletAuthParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.Wallet == "" || params.Password == "" {
		return nil, errInvalidParams("wallet and password required")
	}

	mnemonic, addr, err := s.keystore.Create(params.Wallet, []byte(params.Password))
	if err != nil {
		return nil, errRejected(err.Error())
	}
	// The mnemonic crosses the RPC boundary exactly once, at creation.
	return &WalletCreateResult{Mnemonic: mnemonic, Address: addr}, nil
}

func (s *Server) handleWalletRestore(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireKeystore(); rpcErr != nil {
		return nil, rpcErr
	}
	var params WalletRestoreParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.Wallet == "" || params.Password == "" {
		return nil, errInvalidParams("wallet and password required")
	}
	if !wallet.ValidateMnemonic(params.Mnemonic) {
		return nil, errInvalidParams("invalid mnemonic")
	}

	addr, err := s.keystore.Restore(params.Wallet, params.Mnemonic, []byte(params.Password))
	if err != nil {
		return nil, errRejected(err.Error())
	}
	return &WalletCreateResult{Address: addr}, nil
}

func (s *Server) handleWalletList() (interface{}, *Error) {
	if rpcErr := s.requireKeystore(); rpcErr != nil {
		return nil, rpcErr
	}
	names, err := s.keystore.List()
	if err != nil {
		return nil, errInternal(err.Error())
	}
	return &WalletListResult{Wallets: names}, nil
}

func (s *Server) handleWalletAccounts(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireKeystore(); rpcErr != nil {
		return nil, rpcErr
	}
	var params WalletNameParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}

	accounts, err := s.keystore.Accounts(params.Wallet)
	if err != nil {
		return nil, errRejected(err.Error())
	}
	addrs := make([]types.Address, len(accounts))
	for i, a := range accounts {
		addrs[i] = a.Address
	}
	return &WalletAccountsResult{Addresses: addrs}, nil
}

func (s *Server) handleWalletNewAddress(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireKeystore(); rpcErr != nil {
		return nil, rpcErr
	}
	var params WalletAuthParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}

	addr, err := s.keystore.NewAddress(params.Wallet, []byte(params.Password))
	if err != nil {
		return nil, errRejected(err.Error())
	}
	return &WalletCreateResult{Address: addr}, nil
}

// handleWalletGetBalance sums the confirmed balances of every address
// in the wallet.
func (s *Server) handleWalletGetBalance(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireKeystore(); rpcErr != nil {
		return nil, rpcErr
	}
	var params WalletNameParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}

	accounts, err := s.keystore.Accounts(params.Wallet)
	if err != nil {
		return nil, errRejected(err.Error())
	}
	var total int64
	for _, a := range accounts {
		total += s.ledger.GetBalance(a.Address)
	}
	return &BalanceResult{Balance: total}, nil
}

func (s *Server) handleWalletSend(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireKeystore(); rpcErr != nil {
		return nil, rpcErr
	}
	var params WalletSendParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.To == "" {
		return nil, errInvalidParams("missing to address")
	}
	if params.Amount <= 0 {
		return nil, errInvalidParams("amount must be > 0")
	}

	w, err := s.keystore.Unlock(params.Wallet, []byte(params.Password))
	if err != nil {
		return nil, errRejected(err.Error())
	}

	signer, err := w.DefaultSigner()
	if params.From != "" {
		signer, err = w.SignerForAddress(params.From)
	}
	if err != nil {
		return nil, errRejected(err.Error())
	}

	transfer, err := tx.New(signer, params.To, params.Amount, time.Now().UTC().Unix())
	if err != nil {
		return nil, errRejected(err.Error())
	}
	if err := s.ledger.SubmitTransaction(transfer); err != nil {
		return nil, errRejected(err.Error())
	}
	return &WalletSendResult{ID: transfer.ID, From: transfer.From}, nil
}
