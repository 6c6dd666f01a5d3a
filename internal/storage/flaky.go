package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrInjected is returned by a FlakyStore operation that has been forced to fail.
var ErrInjected = errors.New("storage: injected failure")

// FlakyStore wraps a BlobStore and fails selected operations on demand. The
// cache engine and record store must degrade gracefully when the medium
// misbehaves; tests use this wrapper to exercise those paths.
type FlakyStore struct {
	Inner BlobStore

	mu          sync.Mutex
	failReads   bool
	failWrites  bool
	failDeletes bool
}

// NewFlakyStore wraps inner with failure injection disabled.
func NewFlakyStore(inner BlobStore) *FlakyStore {
	return &FlakyStore{Inner: inner}
}

// FailReads toggles failure of Read calls.
func (s *FlakyStore) FailReads(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReads = fail
}

// FailWrites toggles failure of Write calls.
func (s *FlakyStore) FailWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = fail
}

// FailDeletes toggles failure of Delete calls.
func (s *FlakyStore) FailDeletes(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDeletes = fail
}

func (s *FlakyStore) Read(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	fail := s.failReads
	s.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return s.Inner.Read(ctx, key)
}

func (s *FlakyStore) Write(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	fail := s.failWrites
	s.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return s.Inner.Write(ctx, key, value)
}

func (s *FlakyStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	fail := s.failDeletes
	s.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return s.Inner.Delete(ctx, key)
}

func (s *FlakyStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.Inner.Keys(ctx, prefix)
}

func (s *FlakyStore) Close() error { return s.Inner.Close() }
