package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/schoolerp/backend/internal/domain/finance"
)

// InMemorySequenceStore implements finance.SequenceStore with a map guarded
// by a mutex. Counters live only as long as the process and are not shared
// across instances; use it for single-instance setups and tests.
type InMemorySequenceStore struct {
	mu       sync.Mutex
	counters map[finance.SequenceKey]int
	source   ReferenceSource
}

// NewInMemorySequenceStore creates a new in-memory sequence store
func NewInMemorySequenceStore(source ReferenceSource) *InMemorySequenceStore {
	return &InMemorySequenceStore{
		counters: make(map[finance.SequenceKey]int),
		source:   source,
	}
}

// Next returns the next ordinal for key
func (s *InMemorySequenceStore) Next(ctx context.Context, key finance.SequenceKey) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.counters[key]
	if !ok && s.source != nil {
		refs, err := s.source.FindReferences(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", finance.ErrSequenceUnavailable, err)
		}
		last = finance.MaxOrdinal(key, refs)
	}
	last++
	s.counters[key] = last
	return last, nil
}

var _ finance.SequenceStore = (*InMemorySequenceStore)(nil)
