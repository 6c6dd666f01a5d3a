package cloudsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/record"
	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/storage"
)

func newTestOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, *record.Store, *fakeRemote) {
	t.Helper()
	local := record.NewStore(storage.NewMemoryStore(), zap.NewNop())
	rem := newFakeRemote()
	syncer := NewSyncer(local, rem, zap.NewNop())
	o := NewOrchestrator(context.Background(), syncer, zap.NewNop(), opts...)
	return o, local, rem
}

func TestSyncWithCloudCleanCycle(t *testing.T) {
	ctx := context.Background()
	o, local, rem := newTestOrchestrator(t)

	rec := local.Add(ctx, "Condo cash flow", nil, nil)

	require.True(t, o.SyncWithCloud(ctx))

	st := o.State()
	assert.False(t, st.Syncing)
	assert.Empty(t, st.LastError)
	require.NotNil(t, st.LastSyncedAt)

	got, err := local.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.Synced)
	assert.Contains(t, rem.records, rec.ID)
}

func TestSyncWithCloudFetchFailure(t *testing.T) {
	ctx := context.Background()
	o, local, rem := newTestOrchestrator(t)
	rem.failList = true

	rec := local.Add(ctx, "kept despite failure", nil, nil)

	require.True(t, o.SyncWithCloud(ctx))

	st := o.State()
	assert.False(t, st.Syncing)
	assert.NotEmpty(t, st.LastError)
	assert.Nil(t, st.LastSyncedAt, "failed cycle must not advance last-synced-at")

	// Push still ran before the failed pull.
	got, err := local.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.Synced)
}

func TestSyncWithCloudClearsLastError(t *testing.T) {
	ctx := context.Background()
	o, _, rem := newTestOrchestrator(t)

	rem.failList = true
	o.SyncWithCloud(ctx)
	require.NotEmpty(t, o.State().LastError)

	rem.failList = false
	o.SyncWithCloud(ctx)
	st := o.State()
	assert.Empty(t, st.LastError)
	assert.NotNil(t, st.LastSyncedAt)
}

func TestSyncWithCloudReentrancyGuard(t *testing.T) {
	ctx := context.Background()
	o, _, rem := newTestOrchestrator(t)
	rem.listGate = make(chan struct{})

	started := make(chan struct{})
	done := make(chan bool, 1)
	go func() {
		close(started)
		done <- o.SyncWithCloud(ctx)
	}()
	<-started

	// Wait until the first cycle is visibly in flight.
	require.Eventually(t, func() bool {
		return o.State().Syncing
	}, time.Second, time.Millisecond)

	assert.False(t, o.SyncWithCloud(ctx), "second concurrent call must be a no-op")

	close(rem.listGate)
	assert.True(t, <-done)
	assert.False(t, o.State().Syncing)
}

func TestSyncWithCloudTimeoutReleasesGuard(t *testing.T) {
	ctx := context.Background()
	o, _, rem := newTestOrchestrator(t, WithTimeout(20*time.Millisecond))
	rem.listGate = make(chan struct{}) // never released

	require.True(t, o.SyncWithCloud(ctx))

	st := o.State()
	assert.False(t, st.Syncing, "guard must release after the deadline")
	assert.NotEmpty(t, st.LastError)
	assert.Nil(t, st.LastSyncedAt)

	// A later cycle proceeds normally.
	rem.listGate = nil
	require.True(t, o.SyncWithCloud(ctx))
	assert.Empty(t, o.State().LastError)
}

func TestOrchestratorNotifier(t *testing.T) {
	var mu sync.Mutex
	var states []SyncState

	o, _, _ := newTestOrchestrator(t, WithNotifier(func(st SyncState) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	}))

	o.SyncWithCloud(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, states, 2)
	assert.True(t, states[0].Syncing)
	assert.False(t, states[1].Syncing)
	assert.NotNil(t, states[1].LastSyncedAt)
}

func TestRunRespectsIntervalUpdate(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(ctx, time.Hour)
	}()

	// The immediate first cycle completes.
	require.Eventually(t, func() bool {
		return o.State().LastSyncedAt != nil
	}, time.Second, time.Millisecond)
	first := *o.State().LastSyncedAt

	// Tightening the interval triggers another cycle long before the hour.
	o.SetInterval(10 * time.Millisecond)
	require.Eventually(t, func() bool {
		st := o.State()
		return st.LastSyncedAt != nil && st.LastSyncedAt.After(first)
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestOrchestratorSeedsLastSyncedAtFromStore(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	local := record.NewStore(blobs, zap.NewNop())
	stamp := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	local.SetLastSyncedAt(ctx, stamp)

	reloaded := record.NewStore(blobs, zap.NewNop())
	o := NewOrchestrator(ctx, NewSyncer(reloaded, newFakeRemote(), zap.NewNop()), zap.NewNop())

	st := o.State()
	require.NotNil(t, st.LastSyncedAt)
	assert.True(t, stamp.Equal(*st.LastSyncedAt))
}
