// Package cloudsync keeps the local record collection and the cloud store
// convergent. The synchronizer pushes unsynced local records, pulls the
// owner's full remote set, and merges with remote-wins semantics; the
// orchestrator wraps that in a guarded, deadline-bounded cycle.
package cloudsync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/metrics"
	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/record"
	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/remote"
)

// Syncer moves records between the local store and the cloud store. All
// methods are owner-scoped through the remote client's principal.
type Syncer struct {
	local  *record.Store
	remote remote.Store
	log    *zap.Logger
}

// NewSyncer wires a synchronizer over the local and remote stores.
func NewSyncer(local *record.Store, rs remote.Store, log *zap.Logger) *Syncer {
	return &Syncer{local: local, remote: rs, log: log}
}

// UploadOne pushes a single record to the cloud store and, on success, marks
// exactly that ID synced locally. The upsert is idempotent, so re-pushing an
// already-acknowledged record is harmless.
func (s *Syncer) UploadOne(ctx context.Context, rec record.Record) error {
	if _, err := s.remote.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("upload %s: %w", rec.ID, err)
	}
	s.local.MarkSynced(ctx, rec.ID)
	metrics.RecordsPushed.Inc()
	return nil
}

// PushUnsynced uploads every local record whose synced flag is false. A
// per-record failure is logged and counted but does not stop the loop: the
// record stays unsynced and is retried next cycle. Returns the number of
// failures.
func (s *Syncer) PushUnsynced(ctx context.Context) int {
	failures := 0
	for _, rec := range s.local.List(ctx) {
		if rec.Synced {
			continue
		}
		if err := s.UploadOne(ctx, rec); err != nil {
			failures++
			metrics.PushFailures.Inc()
			s.log.Warn("record upload failed, will retry next cycle",
				zap.String("id", rec.ID),
				zap.Error(err))
		}
	}
	return failures
}

// FetchAll pulls the owner's complete remote collection, newest-first. A
// missing principal surfaces as ErrNotAuthenticated; it is never flattened
// into an empty result.
func (s *Syncer) FetchAll(ctx context.Context) ([]record.Record, error) {
	records, err := s.remote.ListByOwner(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	return records, nil
}

// DeleteOne removes a record locally first, then best-effort deletes the
// remote copy. A remote failure does not resurrect the local record; the
// remote copy is re-adopted on the next pull if it still exists.
func (s *Syncer) DeleteOne(ctx context.Context, id string) error {
	if err := s.local.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.remote.Delete(ctx, id); err != nil {
		s.log.Warn("remote delete failed, record may reappear on next sync",
			zap.String("id", id),
			zap.Error(err))
	}
	return nil
}

// uploadDetached fires one best-effort upload outside the caller's request.
// No retry loop: a failure leaves the record unsynced and the next cycle
// re-uploads it.
func (s *Syncer) uploadDetached(rec record.Record) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.UploadOne(ctx, rec); err != nil {
			s.log.Debug("detached upload failed, next cycle retries",
				zap.String("id", rec.ID),
				zap.Error(err))
		}
	}()
}

// Create commits a new record locally and returns it immediately; the upload
// happens in a single detached best-effort call.
func (s *Syncer) Create(ctx context.Context, title string, inputs, results json.RawMessage) record.Record {
	rec := s.local.Add(ctx, title, inputs, results)
	s.uploadDetached(rec)
	return rec
}

// Update commits the edit locally, marks the record unsynced and fires a
// detached best-effort re-upload.
func (s *Syncer) Update(ctx context.Context, id, title string, inputs, results json.RawMessage) (record.Record, error) {
	rec, err := s.local.Update(ctx, id, title, inputs, results)
	if err != nil {
		return record.Record{}, err
	}
	s.uploadDetached(rec)
	return rec, nil
}

// ToggleFavorite flips the flag locally and returns immediately; a single
// detached best-effort patch carries the change to the cloud so the toggle
// round-trips without re-uploading the payload. There is no retry loop: if
// the patch fails the record stays unsynced and the next cycle re-uploads it.
func (s *Syncer) ToggleFavorite(ctx context.Context, id string) (record.Record, error) {
	prev, err := s.local.Get(ctx, id)
	if err != nil {
		return record.Record{}, err
	}
	rec, err := s.local.ToggleFavorite(ctx, id)
	if err != nil {
		return record.Record{}, err
	}

	// A record the cloud never acknowledged has no remote copy to patch; the
	// next cycle uploads it whole.
	if !prev.Synced {
		return rec, nil
	}

	go func() {
		patchCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		fields := map[string]any{
			"favorite":   rec.Favorite,
			"updated_at": rec.UpdatedAt,
		}
		if err := s.remote.UpdateField(patchCtx, id, fields); err != nil {
			s.log.Debug("favorite patch failed, next cycle re-uploads",
				zap.String("id", id),
				zap.Error(err))
			return
		}
		s.local.MarkSynced(patchCtx, id)
	}()
	return rec, nil
}

// reconcile merges the local and remote collections. Remote is authoritative
// for every ID it holds; local records the cloud never acknowledged survive
// as unsynced; local records the cloud acknowledged but no longer lists were
// deleted elsewhere and are dropped. The result is newest-first with no
// duplicate IDs, and neither input slice is mutated.
func (s *Syncer) reconcile(local, remoteRecs []record.Record) []record.Record {
	remoteByID := make(map[string]record.Record, len(remoteRecs))
	for _, rec := range remoteRecs {
		remoteByID[rec.ID] = rec
	}

	merged := make([]record.Record, 0, len(remoteRecs)+len(local))
	for _, rec := range remoteRecs {
		r := rec.Clone()
		r.Synced = true
		merged = append(merged, r)
	}

	for _, rec := range local {
		if rr, shared := remoteByID[rec.ID]; shared {
			if !rec.Synced && !rr.UpdatedAt.Equal(rec.UpdatedAt) {
				s.log.Warn("unsynced local edit overwritten by remote copy",
					zap.String("id", rec.ID),
					zap.Time("local_updated_at", rec.UpdatedAt),
					zap.Time("remote_updated_at", rr.UpdatedAt),
					zap.String("local_title", rec.Title),
					zap.ByteString("local_inputs", rec.Inputs))
			}
			continue
		}
		if rec.Synced {
			// Acknowledged by the cloud before but absent now: deleted from
			// another device.
			continue
		}
		merged = append(merged, rec.Clone())
	}

	record.SortNewestFirst(merged)
	return merged
}

// PullAndMerge fetches the remote collection, reconciles it with the current
// local one, and installs the merged result. On fetch failure the local
// collection is left untouched and the error is returned.
func (s *Syncer) PullAndMerge(ctx context.Context) error {
	remoteRecs, err := s.FetchAll(ctx)
	if err != nil {
		return err
	}
	metrics.RecordsPulled.Add(float64(len(remoteRecs)))

	merged := s.reconcile(s.local.List(ctx), remoteRecs)
	s.local.ReplaceAll(ctx, merged)
	return nil
}
