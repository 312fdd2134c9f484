package p2p

import (
	"testing"
	"time"

	"github.com/coreledger/coreledger/internal/storage"
)

func TestBanStore_PutForEach(t *testing.T) {
	bs := NewBanStore(storage.NewMemory())

	rec := &BanRecord{
		ID:        "peer-a",
		Reason:    "invalid block",
		Score:     100,
		BannedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}
	if err := bs.Put(rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var seen []*BanRecord
	if err := bs.ForEach(func(r *BanRecord) error {
		seen = append(seen, r)
		return nil
	}); err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if len(seen) != 1 || seen[0].ID != "peer-a" || seen[0].Reason != "invalid block" {
		t.Fatalf("ForEach saw %+v", seen)
	}
}

func TestBanStore_PruneExpired(t *testing.T) {
	bs := NewBanStore(storage.NewMemory())

	expired := &BanRecord{ID: "old", ExpiresAt: time.Now().Add(-time.Hour).Unix()}
	active := &BanRecord{ID: "new", ExpiresAt: time.Now().Add(time.Hour).Unix()}
	permanent := &BanRecord{ID: "perm", ExpiresAt: 0}
	for _, r := range []*BanRecord{expired, active, permanent} {
		if err := bs.Put(r); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	pruned, err := bs.PruneExpired()
	if err != nil {
		t.Fatalf("PruneExpired: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1", pruned)
	}

	count := 0
	bs.ForEach(func(*BanRecord) error { count++; return nil })
	if count != 2 {
		t.Fatalf("remaining = %d, want 2 (active + permanent)", count)
	}
}

func TestBanStore_PruneCorrupt(t *testing.T) {
	db := storage.NewMemory()
	bs := NewBanStore(db)
	db.Put([]byte(banKeyPrefix+"junk"), []byte("{not json"))

	pruned, err := bs.PruneExpired()
	if err != nil {
		t.Fatalf("PruneExpired: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1 corrupt record", pruned)
	}
}

func TestBanRecord_IsExpired(t *testing.T) {
	perm := &BanRecord{ExpiresAt: 0}
	if perm.IsExpired() {
		t.Error("permanent ban should never expire")
	}
	past := &BanRecord{ExpiresAt: time.Now().Add(-time.Minute).Unix()}
	if !past.IsExpired() {
		t.Error("past expiry should be expired")
	}
	future := &BanRecord{ExpiresAt: time.Now().Add(time.Minute).Unix()}
	if future.IsExpired() {
		t.Error("future expiry should not be expired")
	}
}
