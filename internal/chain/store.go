package chain

import (
	"encoding/json"
	"fmt"

	"github.com/coreledger/coreledger/internal/storage"
	"github.com/coreledger/coreledger/pkg/block"
)

// chainKey is the single key the whole chain is stored under. The store
// contract is intentionally simple — load() returns an ordered list of
// blocks (possibly empty), save() is a best-effort idempotent overwrite —
// so a single JSON array satisfies it without needing a per-block index.
var chainKey = []byte("chain")

// Store persists the entire chain as one JSON array under a single key.
// It implements the NodeCoordinator's Store collaborator contract: load
// returns the persisted block list (nil if never saved), save overwrites
// it. There is no atomicity beyond last-writer-wins, and no partial
// load/save path — the whole chain moves as one unit.
type Store struct {
	db storage.DB
}

// NewStore creates a Store backed by db.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// Load returns the persisted block list, or nil if nothing has been
// saved yet. A read or decode failure is treated as "nothing persisted"
// — the store is best-effort, never fatal to the caller.
func (s *Store) Load() []*block.Block {
	data, err := s.db.Get(chainKey)
	if err != nil {
		return nil
	}
	var blocks []*block.Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil
	}
	return blocks
}

// Save overwrites the persisted chain with blocks.
func (s *Store) Save(blocks []*block.Block) error {
	data, err := json.Marshal(blocks)
	if err != nil {
		return fmt.Errorf("marshal chain: %w", err)
	}
	return s.db.Put(chainKey, data)
}
