// Package store publishes the current report bundle. Publication replaces
// the previous bundle in a single step so readers never observe a partially
// written bundle.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/ethpandaops/cohorts/pkg/report"
)

// Backend selects the store implementation
type Backend string

const (
	// BackendMemory keeps the bundle in process memory
	BackendMemory Backend = "memory"
	// BackendRedis keeps the bundle in a single Redis key shared by every process
	BackendRedis Backend = "redis"
)

var (
	// ErrNoBundle is returned before the first successful publication
	ErrNoBundle = errors.New("no report bundle has been published")
	// ErrNilBundle is returned when publishing nil
	ErrNilBundle = errors.New("cannot publish a nil bundle")
	// ErrUnknownBackend is returned for an unsupported backend
	ErrUnknownBackend = errors.New("unknown store backend")
	// ErrRedisClientRequired is returned when the redis backend has no client
	ErrRedisClientRequired = errors.New("redis client is required for the redis store")
)

// Store holds the currently published bundle
type Store interface {
	// Publish atomically replaces the current bundle
	Publish(ctx context.Context, bundle *report.Bundle) error
	// Current returns the published bundle or ErrNoBundle
	Current(ctx context.Context) (*report.Bundle, error)
}

// Config configures the store
type Config struct {
	Backend Backend `yaml:"backend" default:"redis"`
	Key     string  `yaml:"key" default:"bundle"`
}

// Validate validates the store configuration
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendRedis:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
}

// New creates the configured store. key is the fully prefixed redis key.
func New(cfg *Config, client *redis.Client, key string) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		if client == nil {
			return nil, ErrRedisClientRequired
		}

		return NewRedisStore(client, key), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// MemoryStore keeps the bundle behind an atomic pointer
type MemoryStore struct {
	current atomic.Pointer[report.Bundle]
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Publish implements Store
func (s *MemoryStore) Publish(_ context.Context, bundle *report.Bundle) error {
	if bundle == nil {
		return ErrNilBundle
	}

	s.current.Store(bundle)

	return nil
}

// Current implements Store
func (s *MemoryStore) Current(_ context.Context) (*report.Bundle, error) {
	bundle := s.current.Load()
	if bundle == nil {
		return nil, ErrNoBundle
	}

	return bundle, nil
}
