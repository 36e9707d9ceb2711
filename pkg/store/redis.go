package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/ethpandaops/cohorts/pkg/report"
)

// RedisStore keeps the JSON encoded bundle under one key. A publish is a
// single SET so concurrent readers see either the old or the new bundle.
type RedisStore struct {
	client *redis.Client
	key    string

	// decoded caches the last bundle read, keyed by its encoded form
	mu      sync.Mutex
	raw     string
	decoded *report.Bundle
}

// NewRedisStore creates a store on key
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    key,
	}
}

// Publish implements Store
func (s *RedisStore) Publish(ctx context.Context, bundle *report.Bundle) error {
	if bundle == nil {
		return ErrNilBundle
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to publish bundle: %w", err)
	}

	return nil
}

// Current implements Store
func (s *RedisStore) Current(ctx context.Context) (*report.Bundle, error) {
	data, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoBundle
		}

		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.decoded != nil && data == s.raw {
		return s.decoded, nil
	}

	var bundle report.Bundle
	if err := json.Unmarshal([]byte(data), &bundle); err != nil {
		return nil, fmt.Errorf("failed to decode bundle: %w", err)
	}

	s.raw = data
	s.decoded = &bundle

	return &bundle, nil
}
