package cloudsync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/metrics"
)

// DefaultSyncTimeout bounds one full push-pull-merge cycle so a hung remote
// call cannot hold the in-flight guard forever.
const DefaultSyncTimeout = 30 * time.Second

// SyncState is a snapshot of the orchestrator for the status API and the
// websocket stream.
type SyncState struct {
	Syncing      bool       `json:"syncing"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// Orchestrator runs sync cycles: at most one in flight, push before pull,
// lastSyncedAt advanced only when the pull completed cleanly.
type Orchestrator struct {
	syncer  *Syncer
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time

	// notify is invoked after every state change, outside the state lock.
	notify func(SyncState)

	// intervalCh carries live interval updates into Run's ticker loop.
	intervalCh chan time.Duration

	mu           sync.Mutex
	syncing      bool
	lastSyncedAt *time.Time
	lastError    error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout overrides the per-cycle deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithNotifier registers a callback for state changes.
func WithNotifier(fn func(SyncState)) Option {
	return func(o *Orchestrator) { o.notify = fn }
}

// WithNow overrides the time source.
func WithNow(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator. The persisted last-synced-at stamp
// from the local store seeds the in-memory one so a restart does not forget
// the last clean sync.
func NewOrchestrator(ctx context.Context, syncer *Syncer, log *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		syncer:     syncer,
		log:        log,
		timeout:    DefaultSyncTimeout,
		now:        time.Now,
		notify:     func(SyncState) {},
		intervalCh: make(chan time.Duration, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.lastSyncedAt = syncer.local.LastSyncedAt(ctx)
	return o
}

// State returns the current snapshot.
func (o *Orchestrator) State() SyncState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

func (o *Orchestrator) stateLocked() SyncState {
	st := SyncState{Syncing: o.syncing}
	if o.lastSyncedAt != nil {
		t := *o.lastSyncedAt
		st.LastSyncedAt = &t
	}
	if o.lastError != nil {
		st.LastError = o.lastError.Error()
	}
	return st
}

// SyncWithCloud runs one cycle. If a cycle is already in flight the call is a
// no-op and returns false immediately; otherwise it returns true once the
// cycle finished, clean or not. The cycle error is readable via State.
func (o *Orchestrator) SyncWithCloud(ctx context.Context) bool {
	o.mu.Lock()
	if o.syncing {
		o.mu.Unlock()
		metrics.SyncAttempts.WithLabelValues("skipped").Inc()
		o.log.Debug("sync already in flight, skipping")
		return false
	}
	o.syncing = true
	o.lastError = nil
	st := o.stateLocked()
	o.mu.Unlock()
	o.notify(st)

	start := o.now()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	pushFailures := o.syncer.PushUnsynced(ctx)
	pullErr := o.syncer.PullAndMerge(ctx)

	o.mu.Lock()
	o.syncing = false
	if pullErr != nil {
		o.lastError = pullErr
		metrics.SyncAttempts.WithLabelValues("error").Inc()
		o.log.Warn("sync cycle failed", zap.Error(pullErr),
			zap.Int("push_failures", pushFailures))
	} else {
		done := o.now()
		o.lastSyncedAt = &done
		o.syncer.local.SetLastSyncedAt(ctx, done)
		metrics.SyncAttempts.WithLabelValues("success").Inc()
		o.log.Info("sync cycle complete",
			zap.Int("push_failures", pushFailures),
			zap.Duration("took", done.Sub(start)))
	}
	st = o.stateLocked()
	o.mu.Unlock()

	metrics.SyncDuration.Observe(o.now().Sub(start).Seconds())
	o.notify(st)
	return true
}

// SetInterval reschedules the running auto-sync loop. Non-positive values
// and calls while no loop is running are ignored.
func (o *Orchestrator) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case o.intervalCh <- d:
	default:
	}
}

// Run triggers a cycle every interval until ctx is cancelled. An immediate
// first cycle brings a freshly started daemon up to date without waiting a
// full interval.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) {
	o.SyncWithCloud(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-o.intervalCh:
			ticker.Reset(d)
			o.log.Info("auto-sync interval updated", zap.Duration("interval", d))
		case <-ticker.C:
			o.SyncWithCloud(ctx)
		}
	}
}
