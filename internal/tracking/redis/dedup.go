package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/kit-checkout/internal/tracking"
	goredis "github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "kit-checkout:"

type DedupStore struct {
	client goredis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewDedupStore(client goredis.Cmdable, prefix string, ttl time.Duration) tracking.DedupStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DedupStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *DedupStore) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("dedup lookup %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *DedupStore) Mark(ctx context.Context, key string) error {
	if err := s.client.Set(ctx, s.prefix+key, "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("dedup mark %s: %w", key, err)
	}
	return nil
}

// NewClientFromURL parses a redis:// URL and verifies the connection.
func NewClientFromURL(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.MaxRetries = 3

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// HealthCheck pings the store with a short deadline.
func HealthCheck(ctx context.Context, client goredis.Cmdable) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
