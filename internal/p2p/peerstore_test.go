package p2p

import (
	"fmt"
	"testing"
	"time"

	"github.com/coreledger/coreledger/internal/storage"
)

func TestPeerStore_SaveLoadAll(t *testing.T) {
	ps := NewPeerStore(storage.NewMemory())

	rec := PeerRecord{
		ID:       "peer-a",
		Addrs:    []string{"/ip4/127.0.0.1/tcp/4001"},
		LastSeen: time.Now().Unix(),
		Source:   "seed",
	}
	if err := ps.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	records, err := ps.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(records) != 1 || records[0].ID != "peer-a" || records[0].Source != "seed" {
		t.Fatalf("LoadAll = %+v", records)
	}
}

func TestPeerStore_CapacityCap(t *testing.T) {
	ps := NewPeerStore(storage.NewMemory())

	now := time.Now().Unix()
	for i := 0; i < maxPersistedPeers+10; i++ {
		rec := PeerRecord{ID: fmt.Sprintf("peer-%d", i), LastSeen: now}
		if err := ps.Save(rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	count, err := ps.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != maxPersistedPeers {
		t.Fatalf("count = %d, want %d", count, maxPersistedPeers)
	}

	// Updating a known peer is always allowed at capacity.
	if err := ps.Save(PeerRecord{ID: "peer-0", LastSeen: now + 1}); err != nil {
		t.Fatalf("update at capacity: %v", err)
	}
}

func TestPeerStore_PruneStale(t *testing.T) {
	ps := NewPeerStore(storage.NewMemory())

	fresh := PeerRecord{ID: "fresh", LastSeen: time.Now().Unix()}
	stale := PeerRecord{ID: "stale", LastSeen: time.Now().Add(-48 * time.Hour).Unix()}
	for _, rec := range []PeerRecord{fresh, stale} {
		if err := ps.Save(rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	pruned, err := ps.PruneStale(staleThreshold)
	if err != nil {
		t.Fatalf("PruneStale: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1", pruned)
	}

	records, _ := ps.LoadAll()
	if len(records) != 1 || records[0].ID != "fresh" {
		t.Fatalf("remaining = %+v, want only fresh", records)
	}
}
