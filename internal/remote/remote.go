// Package remote is the client for the cloud record store. The cloud API is
// the authoritative copy of every record once fetched; this package only
// speaks its CRUD contract and scopes every call to the current principal.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/record"
)

// ErrRemote wraps any network or endpoint failure. Callers surface it to the
// sync orchestrator; nothing in this package retries.
var ErrRemote = errors.New("remote: request failed")

// APIError is a non-2xx response from the cloud API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote: api status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return ErrRemote }

// Store is the cloud CRUD contract, keyed by record ID and scoped to the
// authenticated principal on every call.
type Store interface {
	// Upsert inserts or replaces the record by ID. It is idempotent: repeated
	// calls with identical content produce no duplicate and no error. The
	// endpoint rejects writes against another principal's ID.
	Upsert(ctx context.Context, rec record.Record) (record.Record, error)

	// ListByOwner returns every record the current principal owns, newest
	// first by CreatedAt. A missing principal is ErrNotAuthenticated, which
	// is distinct from an empty result.
	ListByOwner(ctx context.Context) ([]record.Record, error)

	// Delete removes the record by ID, scoped to the current principal so a
	// stale ID can never delete another owner's record.
	Delete(ctx context.Context, id string) error

	// UpdateField patches a subset of fields (favorite flag, title) without
	// re-uploading the whole payload.
	UpdateField(ctx context.Context, id string, fields map[string]any) error
}
