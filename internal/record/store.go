package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/storage"
)

const (
	recordsKey    = "records:all"
	lastSyncedKey = "records:last_synced_at"
)

// ErrNotFound is returned for operations on an ID the store does not hold.
var ErrNotFound = errors.New("record: not found")

// Store is the local record collection, ordered newest-first. Mutations apply
// to local state synchronously and optimistically: the in-memory collection
// is authoritative and a failed persistence write is logged, not surfaced, so
// the UI flow never blocks on the medium.
type Store struct {
	blobs storage.BlobStore
	log   *zap.Logger
	now   func() time.Time

	mu           sync.Mutex
	records      []Record
	lastSyncedAt *time.Time
	loaded       bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a record store over the given medium. The persisted
// collection is loaded lazily on first use; a corrupt blob starts empty.
func NewStore(blobs storage.BlobStore, log *zap.Logger, opts ...StoreOption) *Store {
	s := &Store{
		blobs: blobs,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}

// ensureLoaded reads the persisted collection. Caller must hold s.mu.
func (s *Store) ensureLoaded(ctx context.Context) {
	if s.loaded {
		return
	}
	s.loaded = true

	raw, err := s.blobs.Read(ctx, recordsKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// First run.
	case err != nil:
		s.log.Warn("record store load failed, starting empty", zap.Error(err))
	default:
		var records []Record
		if uerr := json.Unmarshal(raw, &records); uerr != nil {
			s.log.Warn("record store blob corrupt, starting empty", zap.Error(uerr))
		} else {
			sortRecords(records)
			s.records = records
		}
	}

	if raw, err := s.blobs.Read(ctx, lastSyncedKey); err == nil {
		var t time.Time
		if uerr := json.Unmarshal(raw, &t); uerr == nil && !t.IsZero() {
			s.lastSyncedAt = &t
		}
	}
}

// persistLocked writes the collection blob. Failures are logged only.
func (s *Store) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(s.records)
	if err != nil {
		s.log.Warn("record store marshal failed", zap.Error(err))
		return
	}
	if err := s.blobs.Write(ctx, recordsKey, raw); err != nil {
		s.log.Warn("record store write failed", zap.Error(err))
	}
}

func (s *Store) indexOfLocked(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}

// Add creates a new record with a fresh ID and returns it. The record starts
// unsynced; pushing it to the cloud is the caller's (detached) concern.
func (s *Store) Add(ctx context.Context, title string, inputs, results json.RawMessage) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	now := s.now()
	rec := Record{
		ID:        uuid.NewString(),
		Title:     title,
		Inputs:    append(json.RawMessage(nil), inputs...),
		Results:   append(json.RawMessage(nil), results...),
		CreatedAt: now,
		UpdatedAt: now,
		Synced:    false,
	}
	s.records = append([]Record{rec}, s.records...)
	s.persistLocked(ctx)
	return rec.Clone()
}

// Update replaces the mutable fields of an existing record and marks it
// unsynced so the next sync cycle re-uploads it.
func (s *Store) Update(ctx context.Context, id, title string, inputs, results json.RawMessage) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	i := s.indexOfLocked(id)
	if i < 0 {
		return Record{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	rec := &s.records[i]
	rec.Title = title
	rec.Inputs = append(json.RawMessage(nil), inputs...)
	rec.Results = append(json.RawMessage(nil), results...)
	rec.UpdatedAt = s.now()
	rec.Synced = false
	s.persistLocked(ctx)
	return rec.Clone(), nil
}

// ToggleFavorite flips the favorite flag and marks the record unsynced.
func (s *Store) ToggleFavorite(ctx context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	i := s.indexOfLocked(id)
	if i < 0 {
		return Record{}, fmt.Errorf("toggle favorite %s: %w", id, ErrNotFound)
	}
	rec := &s.records[i]
	rec.Favorite = !rec.Favorite
	rec.UpdatedAt = s.now()
	rec.Synced = false
	s.persistLocked(ctx)
	return rec.Clone(), nil
}

// Delete removes the record locally. Remote deletion is the sync layer's
// best-effort follow-up; the local removal is not rolled back if that fails.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	i := s.indexOfLocked(id)
	if i < 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	s.persistLocked(ctx)
	return nil
}

// Get returns the record with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	i := s.indexOfLocked(id)
	if i < 0 {
		return Record{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return s.records[i].Clone(), nil
}

// List returns the full collection, newest-first.
func (s *Store) List(ctx context.Context) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out
}

// MarkSynced sets the synced flag for a single ID. A missing ID is ignored:
// the record may have been deleted while its upload was in flight.
func (s *Store) MarkSynced(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	if i := s.indexOfLocked(id); i >= 0 {
		s.records[i].Synced = true
		s.persistLocked(ctx)
	}
}

// ReplaceAll installs a merged collection, e.g. the result of reconciliation.
func (s *Store) ReplaceAll(ctx context.Context, records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	merged := make([]Record, 0, len(records))
	for _, rec := range records {
		merged = append(merged, rec.Clone())
	}
	sortRecords(merged)
	s.records = merged
	s.persistLocked(ctx)
}

// LastSyncedAt returns the completion time of the last clean sync, or nil.
func (s *Store) LastSyncedAt(ctx context.Context) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	if s.lastSyncedAt == nil {
		return nil
	}
	t := *s.lastSyncedAt
	return &t
}

// SetLastSyncedAt records the completion time of a clean sync.
func (s *Store) SetLastSyncedAt(ctx context.Context, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	s.lastSyncedAt = &t
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := s.blobs.Write(ctx, lastSyncedKey, raw); err != nil {
		s.log.Warn("last-synced-at write failed", zap.Error(err))
	}
}
