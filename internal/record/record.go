// Package record owns the local collection of saved property analyses. The
// collection is the device's working copy: user mutations commit here first,
// synchronously, and cloud reconciliation later folds in the remote state.
package record

import (
	"encoding/json"
	"time"
)

// Record is one saved property analysis: the investor's inputs (price, rent,
// loan terms, expense assumptions) and the computed results (yields, cash
// flow, amortization summary). The persistence layer treats both as opaque
// JSON; only the envelope fields matter here.
type Record struct {
	// ID is client-generated at creation, globally unique, and never changes.
	// It is the join key between the local and remote copies.
	ID string `json:"id"`

	Title    string `json:"title"`
	Favorite bool   `json:"favorite"`

	// Inputs and Results are opaque to the sync layer.
	Inputs  json.RawMessage `json:"inputs,omitempty"`
	Results json.RawMessage `json:"results,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Synced is local-only state: true once the cloud store has acknowledged
	// this ID with the current content. It is never sent to the remote store.
	Synced bool `json:"synced"`
}

// Clone returns a deep copy so callers cannot alias the store's slices.
func (r Record) Clone() Record {
	c := r
	if r.Inputs != nil {
		c.Inputs = append(json.RawMessage(nil), r.Inputs...)
	}
	if r.Results != nil {
		c.Results = append(json.RawMessage(nil), r.Results...)
	}
	return c
}

// SortNewestFirst orders records by CreatedAt descending, ID as a stable
// tie-break, in place.
func SortNewestFirst(records []Record) {
	sortRecords(records)
}
