package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kilianp07/bustrack/core/model"
)

// MemoryStore keeps buckets in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]*Bucket
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: map[string]*Bucket{}}
}

// Append adds a sample to the key's bucket and replaces its metadata.
func (s *MemoryStore) Append(_ context.Context, key Key, sample model.Sample, meta model.JourneyMeta) error {
	if err := key.Validate(); err != nil {
		return err
	}
	id := key.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[id]
	if !ok {
		b = &Bucket{Key: key}
		s.buckets[id] = b
	}
	if n := len(b.Samples); n > 0 && !sample.ObservedAt.After(b.Samples[n-1].ObservedAt) {
		return ErrOutOfOrder
	}
	b.Samples = append(b.Samples, sample)
	b.Meta = meta
	return nil
}

// Keys lists the buckets in scope ordered by their encoded key.
func (s *MemoryStore) Keys(_ context.Context, scope Scope) ([]Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Key, 0, len(s.buckets))
	for _, b := range s.buckets {
		if scope.Matches(b.Key) {
			res = append(res, b.Key)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res, nil
}

// Load returns a copy of the bucket stored under key.
func (s *MemoryStore) Load(_ context.Context, key Key) (Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buckets[key.String()]
	if !ok {
		return Bucket{}, ErrNotFound
	}
	out := Bucket{Key: b.Key, Meta: b.Meta, Samples: make([]model.Sample, len(b.Samples))}
	copy(out.Samples, b.Samples)
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// RawKeys lists every bucket name.
func (s *MemoryStore) RawKeys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]string, 0, len(s.buckets))
	for id := range s.buckets {
		res = append(res, id)
	}
	sort.Strings(res)
	return res, nil
}
