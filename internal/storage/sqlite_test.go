package storage

import (
	"context"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) BlobStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBlobRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Write(ctx, "cache:payload:a", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := s.Read(ctx, "cache:payload:a")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != `{"v":1}` {
		t.Errorf("expected payload round trip, got %q", got)
	}

	// Replace
	if err := s.Write(ctx, "cache:payload:a", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Write replace: %v", err)
	}
	got, err = s.Read(ctx, "cache:payload:a")
	if err != nil {
		t.Fatalf("Read after replace: %v", err)
	}
	if string(got) != `{"v":2}` {
		t.Errorf("expected replaced payload, got %q", got)
	}
}

func TestBlobNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Read(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBlobDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Write(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting a missing key is not an error.
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
}

func TestBlobKeysByPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"cache:payload:a", "cache:payload:b", "records:all"} {
		if err := s.Write(ctx, k, []byte("x")); err != nil {
			t.Fatalf("Write %s: %v", k, err)
		}
	}

	keys, err := s.Keys(ctx, "cache:payload:")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 cache payload keys, got %d (%v)", len(keys), keys)
	}

	all, err := s.Keys(ctx, "")
	if err != nil {
		t.Fatalf("Keys all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 keys total, got %d", len(all))
	}
}

func TestMemoryStoreMatchesContract(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Write(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Read: %q, %v", got, err)
	}

	// Mutating the returned slice must not corrupt the stored value.
	got[0] = 'x'
	again, _ := s.Read(ctx, "k")
	if string(again) != "v" {
		t.Errorf("stored value mutated through returned slice")
	}

	if _, err := s.Read(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFlakyStoreInjection(t *testing.T) {
	s := NewFlakyStore(NewMemoryStore())
	ctx := context.Background()

	if err := s.Write(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	s.FailReads(true)
	if _, err := s.Read(ctx, "k"); !errors.Is(err, ErrInjected) {
		t.Errorf("expected ErrInjected on read, got %v", err)
	}
	s.FailReads(false)
	if _, err := s.Read(ctx, "k"); err != nil {
		t.Errorf("expected read to recover, got %v", err)
	}

	s.FailWrites(true)
	if err := s.Write(ctx, "k2", []byte("v")); !errors.Is(err, ErrInjected) {
		t.Errorf("expected ErrInjected on write, got %v", err)
	}
}
