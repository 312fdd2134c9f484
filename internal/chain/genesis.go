package chain

import (
	"github.com/coreledger/coreledger/pkg/block"
	"github.com/coreledger/coreledger/pkg/tx"
	"github.com/coreledger/coreledger/pkg/types"
)

// Genesis returns the deterministic genesis block shared by every node:
// index 0, timestamp 0, the all-zero previous hash, nonce 0, and a
// single fixed system->genesis transaction. Its signing content,
// "system"+"genesis"+"0"+"0", spells "systemgenesis00" — the
// transaction id is hash_hex of that string. The block's hash is
// therefore identical across every implementation.
func Genesis() *block.Block {
	genesisTx := tx.NewCoinbase(types.Address("genesis"), 0, 0)
	return block.New(0, 0, types.ZeroHash, []*tx.Transaction{genesisTx}, 0)
}
