package tracking

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultDedupCapacity bounds the in-memory flag set.
const DefaultDedupCapacity = 10000

// DedupStore remembers which funnel steps were already reported.
// It is advisory: a failing store never blocks delivery.
type DedupStore interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// MemoryDedupStore keeps flags in a bounded LRU; the oldest flag is dropped
// when the store is full, and every flag expires after the ttl.
type MemoryDedupStore struct {
	flags *expirable.LRU[string, struct{}]
}

func NewMemoryDedupStore(capacity int, ttl time.Duration) *MemoryDedupStore {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryDedupStore{flags: expirable.NewLRU[string, struct{}](capacity, nil, ttl)}
}

func (s *MemoryDedupStore) Seen(_ context.Context, key string) (bool, error) {
	_, ok := s.flags.Get(key)
	return ok, nil
}

func (s *MemoryDedupStore) Mark(_ context.Context, key string) error {
	s.flags.Add(key, struct{}{})
	return nil
}
