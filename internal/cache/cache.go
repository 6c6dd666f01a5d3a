// Package cache provides the quota-bounded, TTL-expiring cache used for
// derived data such as computed market estimates.
//
// Responsibilities:
//   - Persist opaque JSON payloads keyed by namespaced strings
//   - Track per-entry metadata (size, creation, expiry, access statistics)
//   - Enforce a hard byte quota with frequency-weighted LRU eviction
//   - Expire entries lazily on read and in a periodic cleanup scan
//   - Never fail a caller: every storage or codec error degrades to a miss
//
// The cache is strictly best-effort. A broken medium must not break the
// primary application flow, so Set/Remove report success as a bool and Get
// reports a miss instead of an error.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/metrics"
	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/storage"
)

const (
	// indexVersion is bumped whenever the shape of any cached payload changes
	// incompatibly. A mismatch on load wipes the cache; that is the only
	// supported migration path.
	indexVersion = "1"

	indexKey      = "cache:index"
	payloadPrefix = "cache:payload:"

	// DefaultQuota is the hard byte budget for all payloads combined.
	DefaultQuota = 50 << 20 // 50 MiB

	// DefaultTTL applies when Set is called without an explicit TTL.
	DefaultTTL = 7 * 24 * time.Hour

	// DefaultCleanupInterval gates the opportunistic expired-entry scan.
	DefaultCleanupInterval = 24 * time.Hour
)

var errIndexFlush = errors.New("cache: index flush failed")

// entryMetadata describes one cached payload.
type entryMetadata struct {
	Key          string     `json:"key"`
	Size         int64      `json:"size"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"` // nil = never expires
	AccessCount  int64      `json:"access_count"`
	LastAccessed time.Time  `json:"last_accessed"`
}

// expired reports whether the entry's TTL has passed at time now.
func (m *entryMetadata) expired(now time.Time) bool {
	return m.ExpiresAt != nil && now.After(*m.ExpiresAt)
}

// score ranks an entry for eviction: frequency first, recency as a tie-break.
// The recency term stays below one access-count unit across any realistic
// lastAccessed spread, so a frequently used entry always outranks a cold one.
func (m *entryMetadata) score() float64 {
	return float64(m.AccessCount) + float64(m.LastAccessed.UnixNano())/1e18
}

// indexRoot is the persisted metadata index. Invariant: TotalSize equals the
// sum of Size over Entries, and every entry has a payload blob in the medium.
type indexRoot struct {
	Version     string                    `json:"version"`
	LastCleanup time.Time                 `json:"last_cleanup"`
	Entries     map[string]*entryMetadata `json:"entries"`
	TotalSize   int64                     `json:"total_size"`
}

func newIndexRoot(now time.Time) *indexRoot {
	return &indexRoot{
		Version:     indexVersion,
		LastCleanup: now,
		Entries:     make(map[string]*entryMetadata),
	}
}

// Stats is a point-in-time summary of the cache contents.
type Stats struct {
	TotalSize   int64     `json:"total_size"`
	EntryCount  int       `json:"entry_count"`
	OldestEntry time.Time `json:"oldest_entry"`
	NewestEntry time.Time `json:"newest_entry"`
}

// Engine is the bounded cache. All public methods are safe for concurrent
// use; the metadata index and size counter are guarded by a single mutex so
// the size-accounting invariant holds on a multi-threaded runtime.
type Engine struct {
	store           storage.BlobStore
	log             *zap.Logger
	quota           int64
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	now             func() time.Time

	mu     sync.Mutex
	index  *indexRoot
	loaded bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithQuota overrides the default byte quota.
func WithQuota(bytes int64) Option {
	return func(e *Engine) { e.quota = bytes }
}

// WithDefaultTTL overrides the default entry lifetime.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.defaultTTL = ttl }
}

// WithCleanupInterval overrides how often the opportunistic init-time scan
// may run. The public Cleanup method always scans.
func WithCleanupInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.cleanupInterval = d
		}
	}
}

// WithClock overrides the time source. Tests use this to simulate expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a cache engine on top of the given medium. Initialization is
// lazy: the index is loaded (and validated) on the first public call.
func New(store storage.BlobStore, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		log:             log,
		quota:           DefaultQuota,
		defaultTTL:      DefaultTTL,
		cleanupInterval: DefaultCleanupInterval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetOption adjusts a single Set call.
type SetOption func(*setOptions)

type setOptions struct {
	ttl      time.Duration
	noExpiry bool
}

// WithTTL sets an explicit lifetime for the entry being written.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) { o.ttl = ttl }
}

// WithNoExpiry marks the entry as never expiring.
func WithNoExpiry() SetOption {
	return func(o *setOptions) { o.noExpiry = true }
}

// ensureLoaded loads and validates the persisted index. A missing index is
// created fresh; a corrupt or version-mismatched index wipes the whole cache.
// Caller must hold e.mu.
func (e *Engine) ensureLoaded(ctx context.Context) {
	if e.loaded {
		return
	}
	e.loaded = true

	raw, err := e.store.Read(ctx, indexKey)
	switch {
	case err == nil:
		var idx indexRoot
		if uerr := json.Unmarshal(raw, &idx); uerr != nil || idx.Version != indexVersion {
			e.log.Warn("cache index invalid, wiping cache",
				zap.Error(uerr),
				zap.String("found_version", idx.Version),
				zap.String("expected_version", indexVersion))
			e.wipeLocked(ctx)
			return
		}
		if idx.Entries == nil {
			idx.Entries = make(map[string]*entryMetadata)
		}
		e.index = &idx
	default:
		// Missing or unreadable index: start fresh. Any stray payloads from a
		// previous life are removed so the no-orphans invariant holds.
		e.wipeLocked(ctx)
		return
	}

	e.publishGauges()

	// Opportunistic cleanup, at most once per interval.
	if e.now().Sub(e.index.LastCleanup) >= e.cleanupInterval {
		e.cleanupLocked(ctx)
	}
}

// wipeLocked deletes every payload blob and installs a fresh empty index.
func (e *Engine) wipeLocked(ctx context.Context) {
	keys, err := e.store.Keys(ctx, payloadPrefix)
	if err != nil {
		e.log.Warn("cache wipe: listing payloads failed", zap.Error(err))
	}
	for _, k := range keys {
		if derr := e.store.Delete(ctx, k); derr != nil {
			e.log.Warn("cache wipe: payload delete failed", zap.String("key", k), zap.Error(derr))
		}
	}
	e.index = newIndexRoot(e.now())
	e.persistIndexLocked(ctx)
	e.publishGauges()
}

// persistIndexLocked writes the index blob. Returns false on failure; the
// in-memory index remains authoritative until the next successful write.
func (e *Engine) persistIndexLocked(ctx context.Context) bool {
	raw, err := json.Marshal(e.index)
	if err != nil {
		e.log.Warn("cache index marshal failed", zap.Error(err))
		return false
	}
	if err := e.store.Write(ctx, indexKey, raw); err != nil {
		e.log.Warn("cache index write failed", zap.Error(err))
		return false
	}
	return true
}

func (e *Engine) publishGauges() {
	metrics.CacheBytes.Set(float64(e.index.TotalSize))
	metrics.CacheEntries.Set(float64(len(e.index.Entries)))
}

func payloadKey(key string) string { return payloadPrefix + key }

// Get reads the entry for key into out. It returns false on a miss, an
// expired entry (which is removed), or any storage/codec failure.
func (e *Engine) Get(ctx context.Context, key string, out any) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLoaded(ctx)

	now := e.now()
	meta, ok := e.index.Entries[key]
	if ok && meta.expired(now) {
		e.removeEntryLocked(ctx, key)
		e.persistIndexLocked(ctx)
		metrics.CacheExpired.Inc()
		metrics.CacheMisses.Inc()
		return false
	}

	raw, err := e.store.Read(ctx, payloadKey(key))
	if err != nil {
		if ok {
			// Metadata without payload violates the no-orphans invariant;
			// drop the stale entry.
			e.removeMetaLocked(key)
			e.persistIndexLocked(ctx)
		}
		metrics.CacheMisses.Inc()
		return false
	}
	if !ok {
		// Payload without metadata is an orphan; remove it.
		e.removeEntryLocked(ctx, key)
		metrics.CacheMisses.Inc()
		return false
	}

	if err := json.Unmarshal(raw, out); err != nil {
		e.log.Warn("cache payload decode failed", zap.String("key", key), zap.Error(err))
		e.removeEntryLocked(ctx, key)
		e.persistIndexLocked(ctx)
		metrics.CacheMisses.Inc()
		return false
	}

	meta.AccessCount++
	meta.LastAccessed = now
	e.persistIndexLocked(ctx)
	metrics.CacheHits.Inc()
	return true
}

// Set serializes value and stores it under key with the given options,
// evicting cold entries first if the write would exceed the quota. It returns
// false on any serialization or storage failure; it never panics or errors.
func (e *Engine) Set(ctx context.Context, key string, value any, opts ...SetOption) bool {
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		e.log.Warn("cache payload encode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	size := int64(len(raw))
	if size > e.quota {
		e.log.Warn("cache payload larger than quota, not cached",
			zap.String("key", key), zap.Int64("size", size), zap.Int64("quota", e.quota))
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLoaded(ctx)

	now := e.now()

	// Replacement frees the previous entry's bytes; account for that before
	// deciding whether eviction is needed.
	var prevSize int64
	if prev, ok := e.index.Entries[key]; ok {
		prevSize = prev.Size
	}
	if need := e.index.TotalSize - prevSize + size - e.quota; need > 0 {
		e.evictLocked(ctx, need, key)
	}
	if e.index.TotalSize-prevSize+size > e.quota {
		// Eviction could not free enough space. Refuse the write rather than
		// break the quota invariant.
		e.persistIndexLocked(ctx)
		return false
	}

	if err := e.store.Write(ctx, payloadKey(key), raw); err != nil {
		e.log.Warn("cache payload write failed", zap.String("key", key), zap.Error(err))
		// Eviction may already have removed entries; the persisted index must
		// reflect that or it holds metadata for deleted payloads.
		e.persistIndexLocked(ctx)
		e.publishGauges()
		return false
	}

	var expiresAt *time.Time
	if !o.noExpiry {
		ttl := o.ttl
		if ttl <= 0 {
			ttl = e.defaultTTL
		}
		t := now.Add(ttl)
		expiresAt = &t
	}

	e.index.Entries[key] = &entryMetadata{
		Key:          key,
		Size:         size,
		CreatedAt:    now,
		ExpiresAt:    expiresAt,
		AccessCount:  1,
		LastAccessed: now,
	}
	e.index.TotalSize += size - prevSize

	if !e.persistIndexLocked(ctx) {
		// The payload landed but the index did not. Roll the payload back so
		// the medium and the (next-loaded) index stay consistent.
		if derr := e.store.Delete(ctx, payloadKey(key)); derr != nil {
			e.log.Warn("cache payload rollback failed", zap.String("key", key), zap.Error(derr))
		}
		e.removeMetaLocked(key)
		return false
	}

	e.publishGauges()
	return true
}

// Remove deletes the entry for key. It returns false only on a storage
// failure; removing a missing key succeeds.
func (e *Engine) Remove(ctx context.Context, key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLoaded(ctx)

	if err := e.store.Delete(ctx, payloadKey(key)); err != nil {
		e.log.Warn("cache payload delete failed", zap.String("key", key), zap.Error(err))
		return false
	}
	e.removeMetaLocked(key)
	e.persistIndexLocked(ctx)
	e.publishGauges()
	return true
}

// Has reports whether a live (non-expired) entry exists for key. An expired
// entry found here is removed, same as on Get.
func (e *Engine) Has(ctx context.Context, key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLoaded(ctx)

	meta, ok := e.index.Entries[key]
	if !ok {
		return false
	}
	if meta.expired(e.now()) {
		e.removeEntryLocked(ctx, key)
		e.persistIndexLocked(ctx)
		metrics.CacheExpired.Inc()
		return false
	}
	return true
}

// ClearAll wipes every payload and resets the index.
func (e *Engine) ClearAll(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = true
	e.wipeLocked(ctx)
	return nil
}

// Cleanup scans the index for expired entries and removes them, returning the
// number removed. A failed removal is logged and skipped; the scan continues.
func (e *Engine) Cleanup(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLoaded(ctx)
	return e.cleanupLocked(ctx)
}

func (e *Engine) cleanupLocked(ctx context.Context) int {
	now := e.now()
	removed := 0
	for key, meta := range e.index.Entries {
		if !meta.expired(now) {
			continue
		}
		if err := e.store.Delete(ctx, payloadKey(key)); err != nil {
			// Keep the entry so a later cleanup retries the delete.
			e.log.Warn("cache cleanup: payload delete failed",
				zap.String("key", key), zap.Error(err))
			continue
		}
		e.removeMetaLocked(key)
		removed++
		metrics.CacheExpired.Inc()
	}
	e.index.LastCleanup = now
	e.persistIndexLocked(ctx)
	e.publishGauges()
	if removed > 0 {
		e.log.Info("cache cleanup complete", zap.Int("removed", removed))
	}
	return removed
}

// Stats returns a summary of the current cache contents.
func (e *Engine) Stats(ctx context.Context) Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLoaded(ctx)

	st := Stats{
		TotalSize:  e.index.TotalSize,
		EntryCount: len(e.index.Entries),
	}
	for _, meta := range e.index.Entries {
		if st.OldestEntry.IsZero() || meta.CreatedAt.Before(st.OldestEntry) {
			st.OldestEntry = meta.CreatedAt
		}
		if meta.CreatedAt.After(st.NewestEntry) {
			st.NewestEntry = meta.CreatedAt
		}
	}
	return st
}

// Close flushes the index one last time. The engine does not own the medium;
// closing that is the caller's job.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		return nil
	}
	if !e.persistIndexLocked(context.Background()) {
		return errIndexFlush
	}
	return nil
}

// evictLocked removes entries in ascending score order until at least need
// bytes are freed or no candidates remain. The key being written is excluded.
func (e *Engine) evictLocked(ctx context.Context, need int64, exclude string) {
	candidates := make([]*entryMetadata, 0, len(e.index.Entries))
	for key, meta := range e.index.Entries {
		if key == exclude {
			continue
		}
		candidates = append(candidates, meta)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score() < candidates[j].score()
	})

	var freed int64
	for _, meta := range candidates {
		if freed >= need {
			break
		}
		if err := e.store.Delete(ctx, payloadKey(meta.Key)); err != nil {
			e.log.Warn("cache eviction: payload delete failed",
				zap.String("key", meta.Key), zap.Error(err))
			continue
		}
		e.removeMetaLocked(meta.Key)
		freed += meta.Size
		metrics.CacheEvictions.Inc()
	}
	if freed < need {
		e.log.Warn("cache eviction freed less than requested",
			zap.Int64("freed", freed), zap.Int64("requested", need))
	}
}

// removeEntryLocked deletes the payload (best effort) and the metadata.
func (e *Engine) removeEntryLocked(ctx context.Context, key string) {
	if err := e.store.Delete(ctx, payloadKey(key)); err != nil {
		e.log.Warn("cache payload delete failed", zap.String("key", key), zap.Error(err))
	}
	e.removeMetaLocked(key)
}

// removeMetaLocked drops the index entry and adjusts the size counter.
func (e *Engine) removeMetaLocked(key string) {
	if meta, ok := e.index.Entries[key]; ok {
		e.index.TotalSize -= meta.Size
		delete(e.index.Entries, key)
	}
}
