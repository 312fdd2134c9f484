// Package block defines the block data model and its canonical hashing.
package block

import (
	"strconv"

	"github.com/coreledger/coreledger/pkg/crypto"
	"github.com/coreledger/coreledger/pkg/merkle"
	"github.com/coreledger/coreledger/pkg/tx"
	"github.com/coreledger/coreledger/pkg/types"
)

// Block is an immutable header plus an ordered transaction list. Hash is
// never stored: it is always recomputed from the other fields.
type Block struct {
	Index        uint64            `json:"index"`
	Timestamp    int64             `json:"timestamp"`
	PreviousHash types.Hash        `json:"previousHash"`
	Transactions []*tx.Transaction `json:"transactions"`
	MerkleRoot   types.Hash        `json:"merkleRoot"`
	Nonce        uint64            `json:"nonce"`
}

// New builds a block with the merkle root computed from txs.
func New(index uint64, timestamp int64, previousHash types.Hash, txs []*tx.Transaction, nonce uint64) *Block {
	return &Block{
		Index:        index,
		Timestamp:    timestamp,
		PreviousHash: previousHash,
		Transactions: txs,
		MerkleRoot:   ComputeMerkleRoot(txs),
		Nonce:        nonce,
	}
}

// ComputeMerkleRoot computes the merkle root over a block's transaction ids.
func ComputeMerkleRoot(txs []*tx.Transaction) types.Hash {
	leaves := make([]string, len(txs))
	for i, t := range txs {
		leaves[i] = string(t.ID)
	}
	return merkle.Root(leaves)
}

// SigningBytes returns the UTF-8 bytes hashed to produce the block hash:
// index||timestamp||previousHash||merkleRoot||nonce.
func (b *Block) SigningBytes() []byte {
	s := strconv.FormatUint(b.Index, 10) +
		strconv.FormatInt(b.Timestamp, 10) +
		string(b.PreviousHash) +
		string(b.MerkleRoot) +
		strconv.FormatUint(b.Nonce, 10)
	return []byte(s)
}

// Hash recomputes the block's hash from its fields. It is never persisted.
func (b *Block) Hash() types.Hash {
	return crypto.Hash(b.SigningBytes())
}

// Coinbase returns the block's first (coinbase) transaction, or nil if empty.
func (b *Block) Coinbase() *tx.Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	return b.Transactions[0]
}
