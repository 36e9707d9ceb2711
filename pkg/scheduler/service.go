package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/cohorts/pkg/observability"
	r "github.com/ethpandaops/cohorts/pkg/redis"
	"github.com/ethpandaops/cohorts/pkg/refresh"
)

// Service defines the public interface for the scheduler
type Service interface {
	// Start joins leader election. The leader registers the refresh schedule.
	Start(ctx context.Context) error
	// Stop leaves leader election and stops any running schedule
	Stop() error
}

type service struct {
	log        logrus.FieldLogger
	cfg        *Config
	refreshCfg *refresh.Config
	asynqOpt   asynq.RedisConnOpt
	elector    LeaderElector

	mu        sync.Mutex
	scheduler *asynq.Scheduler

	done chan struct{}
	wg   sync.WaitGroup
}

// NewService creates a scheduler that enqueues refresh tasks with refreshCfg's options
func NewService(log logrus.FieldLogger, cfg *Config, redisOpt *redis.Options, refreshCfg *refresh.Config, opts ...ElectorOption) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := refreshCfg.Validate(); err != nil {
		return nil, err
	}

	return &service{
		log:        log.WithField("service", "scheduler"),
		cfg:        cfg,
		refreshCfg: refreshCfg,
		asynqOpt:   r.NewAsynqRedisOptions(redisOpt),
		elector:    NewLeaderElector(log, redisOpt, cfg.LeaderKey, opts...),
		done:       make(chan struct{}),
	}, nil
}

func (s *service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Info("Scheduler disabled")
		return nil
	}

	if err := s.elector.Start(ctx); err != nil {
		return fmt.Errorf("failed to start leader election: %w", err)
	}

	s.wg.Add(1)
	go s.handleLeaderElection(ctx)

	s.log.WithField("schedule", s.cfg.Schedule).Info("Scheduler service started (participating in leader election)")

	return nil
}

func (s *service) Stop() error {
	if !s.cfg.Enabled {
		return nil
	}

	close(s.done)

	if err := s.elector.Stop(); err != nil {
		s.log.WithError(err).Warn("Failed to stop leader elector")
	}

	s.wg.Wait()
	s.stopScheduler()

	s.log.Info("Scheduler service stopped")

	return nil
}

func (s *service) handleLeaderElection(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.elector.Promoted():
			s.log.Info("Promoted to scheduler leader")

			if err := s.startScheduler(); err != nil {
				observability.RecordError("scheduler", "start")
				s.log.WithError(err).Error("Failed to start scheduler")
			}
		case <-s.elector.Demoted():
			s.log.Info("Demoted from scheduler leader")
			s.stopScheduler()
		}
	}
}

// startScheduler builds a fresh asynq scheduler since a shut down one cannot be restarted
func (s *service) startScheduler() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		return nil
	}

	sched := asynq.NewScheduler(s.asynqOpt, &asynq.SchedulerOpts{
		Location:        time.UTC,
		LogLevel:        asynq.InfoLevel,
		PostEnqueueFunc: s.afterEnqueue,
	})

	entryID, err := s.register(sched)
	if err != nil {
		return err
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start asynq scheduler: %w", err)
	}

	s.scheduler = sched
	s.log.WithFields(logrus.Fields{
		"entry_id": entryID,
		"schedule": s.cfg.Schedule,
	}).Info("Registered refresh schedule")

	return nil
}

func (s *service) register(sched *asynq.Scheduler) (string, error) {
	task, err := refresh.NewTask(refresh.Payload{Trigger: refresh.TriggerSchedule})
	if err != nil {
		return "", fmt.Errorf("failed to build refresh task: %w", err)
	}

	entryID, err := sched.Register(s.cfg.Schedule, task, s.refreshCfg.Options()...)
	if err != nil {
		return "", fmt.Errorf("failed to register refresh schedule: %w", err)
	}

	return entryID, nil
}

func (s *service) stopScheduler() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler == nil {
		return
	}

	s.scheduler.Shutdown()
	s.scheduler = nil
}

func (s *service) afterEnqueue(info *asynq.TaskInfo, err error) {
	switch {
	case err == nil:
		observability.RecordTaskEnqueued(refresh.TriggerSchedule, "queued")
		s.log.WithField("task_id", info.ID).Debug("Scheduled refresh enqueued")
	case errors.Is(err, asynq.ErrDuplicateTask), errors.Is(err, asynq.ErrTaskIDConflict):
		observability.RecordTaskEnqueued(refresh.TriggerSchedule, "duplicate")
		s.log.Debug("Scheduled refresh skipped, one is already queued")
	default:
		observability.RecordTaskEnqueued(refresh.TriggerSchedule, "error")
		s.log.WithError(err).Warn("Failed to enqueue scheduled refresh")
	}
}
