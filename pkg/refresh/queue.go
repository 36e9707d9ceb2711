package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/cohorts/pkg/observability"
)

// Enqueuer is the subset of *asynq.Client used by Queue
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue enqueues refresh tasks
type Queue struct {
	log    logrus.FieldLogger
	client Enqueuer
	config *Config
	now    func() time.Time
}

// NewQueue creates a queue on an Asynq client
func NewQueue(log logrus.FieldLogger, client Enqueuer, cfg *Config) *Queue {
	return &Queue{
		log:    log.WithField("component", "refresh-queue"),
		client: client,
		config: cfg,
		now:    time.Now,
	}
}

// Enqueue requests a refresh. It reports false without error when an
// identical refresh is already queued.
func (q *Queue) Enqueue(ctx context.Context, trigger string) (bool, error) {
	task, err := NewTask(Payload{Trigger: trigger, RequestedAt: q.now().UTC()})
	if err != nil {
		return false, fmt.Errorf("failed to build refresh task: %w", err)
	}

	info, err := q.client.EnqueueContext(ctx, task, q.config.Options()...)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
			observability.RecordTaskEnqueued(trigger, "duplicate")
			q.log.WithField("trigger", trigger).Debug("Refresh already queued")

			return false, nil
		}

		observability.RecordTaskEnqueued(trigger, "error")

		return false, fmt.Errorf("failed to enqueue refresh: %w", err)
	}

	observability.RecordTaskEnqueued(trigger, "queued")
	q.log.WithFields(logrus.Fields{
		"trigger": trigger,
		"task_id": info.ID,
		"queue":   info.Queue,
	}).Info("Enqueued refresh")

	return true, nil
}
