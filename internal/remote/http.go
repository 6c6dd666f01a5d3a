package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/auth"
	"github.com/yuususuu8-jpg/real-estate-investor-sub000/internal/record"
)

// wireRecord is the cloud representation of a record. The local-only synced
// flag never crosses the wire; the owner ID does, so the API can enforce
// per-principal scoping server-side as well.
type wireRecord struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Title     string          `json:"title"`
	Favorite  bool            `json:"favorite"`
	Inputs    json.RawMessage `json:"inputs,omitempty"`
	Results   json.RawMessage `json:"results,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toWire(rec record.Record, ownerID string) wireRecord {
	return wireRecord{
		ID:        rec.ID,
		OwnerID:   ownerID,
		Title:     rec.Title,
		Favorite:  rec.Favorite,
		Inputs:    rec.Inputs,
		Results:   rec.Results,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func fromWire(w wireRecord) record.Record {
	return record.Record{
		ID:        w.ID,
		Title:     w.Title,
		Favorite:  w.Favorite,
		Inputs:    w.Inputs,
		Results:   w.Results,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

// HTTPStore talks JSON to the cloud record API.
type HTTPStore struct {
	baseURL string
	client  *http.Client
	auth    auth.Provider
	log     *zap.Logger
}

// NewHTTPStore creates a client for the cloud API at baseURL. The timeout
// bounds each individual request; the per-sync deadline lives in the
// orchestrator's context.
func NewHTTPStore(baseURL string, timeout time.Duration, provider auth.Provider, log *zap.Logger) *HTTPStore {
	return &HTTPStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		auth:    provider,
		log:     log,
	}
}

// do issues an authenticated request and decodes a JSON response into out
// (when out is non-nil).
func (s *HTTPStore) do(ctx context.Context, method, path string, body, out any) error {
	token, err := s.auth.Token(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		raw, merr := json.Marshal(body)
		if merr != nil {
			return fmt.Errorf("%w: encode request: %v", ErrRemote, merr)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrRemote, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrRemote, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s %s: %w", method, path, auth.ErrNotAuthenticated)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: string(msg)}
	}

	if out != nil {
		if derr := json.NewDecoder(resp.Body).Decode(out); derr != nil {
			return fmt.Errorf("%w: decode response: %v", ErrRemote, derr)
		}
	}
	return nil
}

func (s *HTTPStore) Upsert(ctx context.Context, rec record.Record) (record.Record, error) {
	pr, err := s.auth.CurrentPrincipal(ctx)
	if err != nil {
		return record.Record{}, err
	}

	var saved wireRecord
	path := "/api/v1/records/" + url.PathEscape(rec.ID)
	if err := s.do(ctx, http.MethodPut, path, toWire(rec, pr.ID), &saved); err != nil {
		return record.Record{}, err
	}
	return fromWire(saved), nil
}

func (s *HTTPStore) ListByOwner(ctx context.Context) ([]record.Record, error) {
	if _, err := s.auth.CurrentPrincipal(ctx); err != nil {
		return nil, err
	}

	var wires []wireRecord
	if err := s.do(ctx, http.MethodGet, "/api/v1/records", nil, &wires); err != nil {
		return nil, err
	}

	records := make([]record.Record, 0, len(wires))
	for _, w := range wires {
		records = append(records, fromWire(w))
	}
	// The API returns newest-first already; re-sort defensively so the merge
	// ordering contract never depends on the server.
	record.SortNewestFirst(records)
	return records, nil
}

func (s *HTTPStore) Delete(ctx context.Context, id string) error {
	if _, err := s.auth.CurrentPrincipal(ctx); err != nil {
		return err
	}
	return s.do(ctx, http.MethodDelete, "/api/v1/records/"+url.PathEscape(id), nil, nil)
}

func (s *HTTPStore) UpdateField(ctx context.Context, id string, fields map[string]any) error {
	if _, err := s.auth.CurrentPrincipal(ctx); err != nil {
		return err
	}
	return s.do(ctx, http.MethodPatch, "/api/v1/records/"+url.PathEscape(id), fields, nil)
}
