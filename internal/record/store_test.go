package record

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/storage"
)

type tickClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestRecordStore(t *testing.T) (*Store, storage.BlobStore) {
	t.Helper()
	blobs := storage.NewMemoryStore()
	clock := &tickClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewStore(blobs, zap.NewNop(), WithClock(clock.Now)), blobs
}

func TestAddAndList(t *testing.T) {
	s, _ := newTestRecordStore(t)
	ctx := context.Background()

	first := s.Add(ctx, "Shibuya 1K", json.RawMessage(`{"price":32000000}`), json.RawMessage(`{"grossYield":5.1}`))
	second := s.Add(ctx, "Osaka 2LDK", json.RawMessage(`{"price":21000000}`), json.RawMessage(`{"grossYield":6.8}`))

	if first.ID == "" || second.ID == "" {
		t.Fatal("Add must assign IDs")
	}
	if first.ID == second.ID {
		t.Fatal("IDs must be unique")
	}
	if first.Synced || second.Synced {
		t.Error("new records must start unsynced")
	}

	list := s.List(ctx)
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}
	// Newest first.
	if list[0].ID != second.ID {
		t.Errorf("expected newest record first, got %s", list[0].Title)
	}
}

func TestUpdateMarksUnsynced(t *testing.T) {
	s, _ := newTestRecordStore(t)
	ctx := context.Background()

	rec := s.Add(ctx, "Draft", nil, nil)
	s.MarkSynced(ctx, rec.ID)

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Synced {
		t.Fatal("MarkSynced did not stick")
	}

	updated, err := s.Update(ctx, rec.ID, "Final", json.RawMessage(`{"price":1}`), nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Synced {
		t.Error("Update must mark the record unsynced")
	}
	if updated.Title != "Final" {
		t.Errorf("expected updated title, got %q", updated.Title)
	}
	if !updated.UpdatedAt.After(rec.UpdatedAt) {
		t.Error("Update must advance UpdatedAt")
	}
	if updated.ID != rec.ID {
		t.Error("Update must never change the ID")
	}
}

func TestToggleFavorite(t *testing.T) {
	s, _ := newTestRecordStore(t)
	ctx := context.Background()

	rec := s.Add(ctx, "Fav me", nil, nil)
	s.MarkSynced(ctx, rec.ID)

	toggled, err := s.ToggleFavorite(ctx, rec.ID)
	if err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}
	if !toggled.Favorite {
		t.Error("expected favorite true after toggle")
	}
	if toggled.Synced {
		t.Error("favorite toggle must mark the record unsynced")
	}

	back, err := s.ToggleFavorite(ctx, rec.ID)
	if err != nil {
		t.Fatalf("ToggleFavorite again: %v", err)
	}
	if back.Favorite {
		t.Error("expected favorite false after second toggle")
	}
}

func TestDelete(t *testing.T) {
	s, _ := newTestRecordStore(t)
	ctx := context.Background()

	rec := s.Add(ctx, "Doomed", nil, nil)
	if err := s.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestMarkSyncedMissingIDIsNoop(t *testing.T) {
	s, _ := newTestRecordStore(t)
	// Record deleted while upload in flight: must not panic or resurrect.
	s.MarkSynced(context.Background(), "gone")
}

func TestPersistenceAcrossReload(t *testing.T) {
	blobs := storage.NewMemoryStore()
	ctx := context.Background()

	s1 := NewStore(blobs, zap.NewNop())
	rec := s1.Add(ctx, "Keep", json.RawMessage(`{"price":5}`), nil)
	s1.MarkSynced(ctx, rec.ID)
	s1.SetLastSyncedAt(ctx, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	s2 := NewStore(blobs, zap.NewNop())
	got, err := s2.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if got.Title != "Keep" || !got.Synced {
		t.Errorf("record did not survive reload intact: %+v", got)
	}
	last := s2.LastSyncedAt(ctx)
	if last == nil || !last.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("lastSyncedAt did not survive reload: %v", last)
	}
}

func TestCorruptBlobStartsEmpty(t *testing.T) {
	blobs := storage.NewMemoryStore()
	ctx := context.Background()
	if err := blobs.Write(ctx, "records:all", []byte("{broken")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := NewStore(blobs, zap.NewNop())
	if got := s.List(ctx); len(got) != 0 {
		t.Errorf("expected empty collection from corrupt blob, got %d", len(got))
	}

	// Store remains usable.
	rec := s.Add(ctx, "Fresh", nil, nil)
	if _, err := s.Get(ctx, rec.ID); err != nil {
		t.Errorf("Get after recovery: %v", err)
	}
}

func TestMutationSucceedsWhenMediumFails(t *testing.T) {
	flaky := storage.NewFlakyStore(storage.NewMemoryStore())
	s := NewStore(flaky, zap.NewNop())
	ctx := context.Background()

	flaky.FailWrites(true)
	rec := s.Add(ctx, "Optimistic", nil, nil)
	if rec.ID == "" {
		t.Fatal("Add must succeed even when the medium rejects writes")
	}
	// The in-memory collection stays authoritative.
	if _, err := s.Get(ctx, rec.ID); err != nil {
		t.Errorf("Get after failed persist: %v", err)
	}
}

func TestReplaceAllSortsNewestFirst(t *testing.T) {
	s, _ := newTestRecordStore(t)
	ctx := context.Background()

	old := Record{ID: "old", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	mid := Record{ID: "mid", CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	young := Record{ID: "young", CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}

	s.ReplaceAll(ctx, []Record{old, young, mid})

	list := s.List(ctx)
	if len(list) != 3 {
		t.Fatalf("expected 3 records, got %d", len(list))
	}
	for i, want := range []string{"young", "mid", "old"} {
		if list[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, list[i].ID)
		}
	}
}
