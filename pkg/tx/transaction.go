// Package tx implements the ledger's value-transfer transaction: an
// immutable record of value, identity and signature.
package tx

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/coreledger/coreledger/pkg/crypto"
	"github.com/coreledger/coreledger/pkg/types"
)

// Transaction is an immutable value-transfer record. A coinbase
// transaction has From == types.SystemAddress and a nil Signature.
type Transaction struct {
	From      types.Address `json:"from"`
	To        types.Address `json:"to"`
	Amount    int64         `json:"amount"`
	Timestamp int64         `json:"timestamp"`
	Signature *string       `json:"signature"`
	ID        types.Hash    `json:"id"`
}

// signingContent builds the canonical unsigned content string the id and
// signature are computed over: from||to||amount||timestamp, a UTF-8
// string concatenation of the fields in this exact order.
func signingContent(from, to types.Address, amount, timestamp int64) string {
	return string(from) + string(to) + strconv.FormatInt(amount, 10) + strconv.FormatInt(timestamp, 10)
}

// SigningContent returns t's canonical unsigned content string.
func (t *Transaction) SigningContent() string {
	return signingContent(t.From, t.To, t.Amount, t.Timestamp)
}

func (t *Transaction) computeID() types.Hash {
	return crypto.HashString(t.SigningContent())
}

// IsCoinbase reports whether t is a coinbase (block-reward) transaction.
func (t *Transaction) IsCoinbase() bool {
	return t.From.IsSystem()
}

// New builds a signed, non-coinbase transaction from key's address to
// "to" for amount, stamped with timestamp. amount must be > 0.
func New(key *crypto.PrivateKey, to types.Address, amount, timestamp int64) (*Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be > 0, got %d", amount)
	}
	from := key.Address()
	content := signingContent(from, to, amount, timestamp)
	sigHex, err := key.SignHex([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	t := &Transaction{
		From:      from,
		To:        to,
		Amount:    amount,
		Timestamp: timestamp,
		Signature: &sigHex,
	}
	t.ID = t.computeID()
	return t, nil
}

// NewCoinbase builds the unsigned reward transaction for a mined block,
// crediting amount to rewardAddr from the system sentinel address.
func NewCoinbase(rewardAddr types.Address, amount, timestamp int64) *Transaction {
	t := &Transaction{
		From:      types.SystemAddress,
		To:        rewardAddr,
		Amount:    amount,
		Timestamp: timestamp,
		Signature: nil,
	}
	t.ID = t.computeID()
	return t
}

// ValidateSignature reports whether t's id matches its content and, for
// non-coinbase transactions, whether the signature verifies against the
// public key encoded in From. Never panics; malformed input is false.
func (t *Transaction) ValidateSignature() bool {
	if t.computeID() != t.ID {
		return false
	}
	if t.IsCoinbase() {
		return true
	}
	if t.Signature == nil {
		return false
	}
	sig, err := hex.DecodeString(*t.Signature)
	if err != nil {
		return false
	}
	return crypto.VerifySignature(string(t.From), []byte(t.SigningContent()), sig)
}
