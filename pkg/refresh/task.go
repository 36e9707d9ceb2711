// Package refresh schedules and executes report refreshes on an Asynq queue.
package refresh

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// TypeRefresh is the task type of a report refresh
const TypeRefresh = "report:refresh"

const (
	// TriggerManual marks refreshes requested through the API
	TriggerManual = "manual"
	// TriggerSchedule marks refreshes enqueued by the scheduler
	TriggerSchedule = "schedule"
	// TriggerStartup marks the refresh enqueued when the service starts
	TriggerStartup = "startup"
)

// ErrInProgress is returned by a Refresher when another refresh is already running
var ErrInProgress = errors.New("refresh already in progress")

// Payload is the body of a refresh task
type Payload struct {
	Trigger     string    `json:"trigger"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewTask builds a refresh task
func NewTask(payload Payload, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TypeRefresh, data, opts...), nil
}

// Options returns the enqueue options every refresh task carries. Unique
// collapses triggers that arrive while a refresh is still queued.
func (c *Config) Options() []asynq.Option {
	opts := []asynq.Option{
		asynq.Queue(c.Queue),
		asynq.MaxRetry(c.MaxRetry),
		asynq.Timeout(c.Timeout),
	}

	if c.UniqueTTL > 0 {
		opts = append(opts, asynq.Unique(c.UniqueTTL))
	}

	return opts
}
