package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	defaultLeaseTTL      = 10 * time.Second
	defaultRenewInterval = 3 * time.Second
)

// ErrElectorStopped is returned when the elector is stopped while waiting for leadership
var ErrElectorStopped = errors.New("elector stopped while waiting for leadership")

// LeaderElector decides which replica owns the refresh schedule
type LeaderElector interface {
	Start(ctx context.Context) error
	Stop() error
	IsLeader() bool
	WaitForLeadership(ctx context.Context) error
	Promoted() <-chan struct{}
	Demoted() <-chan struct{}
}

// ElectorOption customises a LeaderElector
type ElectorOption func(*elector)

// WithLease overrides the lease duration and renewal interval
func WithLease(ttl, renew time.Duration) ElectorOption {
	return func(e *elector) {
		e.leaseTTL = ttl
		e.renewInterval = renew
	}
}

type elector struct {
	log        logrus.FieldLogger
	redis      *redis.Client
	instanceID string
	leaderKey  string

	leaseTTL      time.Duration
	renewInterval time.Duration

	isLeader bool
	mu       sync.RWMutex

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	promoted chan struct{}
	demoted  chan struct{}
}

// NewLeaderElector creates a Redis lease based elector on leaderKey
func NewLeaderElector(log logrus.FieldLogger, redisOpt *redis.Options, leaderKey string, opts ...ElectorOption) LeaderElector {
	e := &elector{
		redis:         redis.NewClient(redisOpt),
		instanceID:    uuid.New().String(),
		leaderKey:     leaderKey,
		leaseTTL:      defaultLeaseTTL,
		renewInterval: defaultRenewInterval,
		done:          make(chan struct{}),
		promoted:      make(chan struct{}, 1),
		demoted:       make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.log = log.WithFields(logrus.Fields{
		"component":   "election",
		"instance_id": e.instanceID,
	})

	return e
}

func (e *elector) Start(ctx context.Context) error {
	e.log.WithField("key", e.leaderKey).Info("Starting leader election")

	e.wg.Add(1)
	go e.run(ctx)

	return nil
}

func (e *elector) Stop() error {
	e.stopOnce.Do(func() {
		e.log.Info("Stopping leader election")
		close(e.done)

		e.wg.Wait()
		e.relinquish(context.Background())

		if err := e.redis.Close(); err != nil {
			e.log.WithError(err).Warn("Failed to close Redis client")
		}
	})

	return nil
}

func (e *elector) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.renewInterval)
	defer ticker.Stop()

	e.step(ctx)

	for {
		select {
		case <-e.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.step(ctx)
		}
	}
}

func (e *elector) step(ctx context.Context) {
	wasLeader := e.IsLeader()
	acquired := e.tryAcquire(ctx)

	switch {
	case acquired && !wasLeader:
		e.setLeader(true)
		e.log.Info("Promoted to leader")
		notify(e.promoted)
	case !acquired && wasLeader:
		e.setLeader(false)
		e.log.Info("Demoted from leader")
		notify(e.demoted)
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (e *elector) tryAcquire(ctx context.Context) bool {
	ok, err := e.redis.SetNX(ctx, e.leaderKey, e.instanceID, e.leaseTTL).Result()
	if err != nil {
		e.log.WithError(err).Debug("Failed to acquire leader lock")
		return false
	}

	if ok {
		return true
	}

	owner, err := e.redis.Get(ctx, e.leaderKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			e.log.WithError(err).Debug("Failed to check lock owner")
		}
		return false
	}

	if owner != e.instanceID {
		e.log.WithField("current_leader", owner).Debug("Another instance holds leadership")
		return false
	}

	if err := e.redis.Expire(ctx, e.leaderKey, e.leaseTTL).Err(); err != nil {
		e.log.WithError(err).Warn("Failed to renew leader lease")
		return false
	}

	return true
}

func (e *elector) relinquish(ctx context.Context) {
	if !e.IsLeader() {
		return
	}

	owner, err := e.redis.Get(ctx, e.leaderKey).Result()
	if err == nil && owner == e.instanceID {
		if err := e.redis.Del(ctx, e.leaderKey).Err(); err != nil {
			e.log.WithError(err).Warn("Failed to delete leader lock")
		} else {
			e.log.Info("Relinquished leader lock")
		}
	}

	e.setLeader(false)
}

func (e *elector) setLeader(isLeader bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.isLeader = isLeader
}

func (e *elector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

func (e *elector) WaitForLeadership(ctx context.Context) error {
	if e.IsLeader() {
		return nil
	}

	select {
	case <-e.promoted:
		notify(e.promoted)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context canceled while waiting for leadership: %w", ctx.Err())
	case <-e.done:
		return ErrElectorStopped
	}
}

func (e *elector) Promoted() <-chan struct{} {
	return e.promoted
}

func (e *elector) Demoted() <-chan struct{} {
	return e.demoted
}

var _ LeaderElector = (*elector)(nil)
