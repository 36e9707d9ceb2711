package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/cohorts/pkg/observability"
)

// Refresher runs one refresh
type Refresher interface {
	Refresh(ctx context.Context, trigger string) error
}

// Handler processes refresh tasks
type Handler struct {
	log       logrus.FieldLogger
	refresher Refresher
}

// NewHandler creates a task handler around refresher
func NewHandler(log logrus.FieldLogger, refresher Refresher) *Handler {
	return &Handler{
		log:       log.WithField("component", "refresh-handler"),
		refresher: refresher,
	}
}

// ProcessTask implements asynq.Handler. A refresh that finds another one
// running is treated as done; any other failure is retried by Asynq.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload Payload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		observability.RecordError("refresh-handler", "unmarshal_error")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	log := h.log.WithFields(logrus.Fields{
		"trigger":      payload.Trigger,
		"requested_at": payload.RequestedAt,
	})

	err := h.refresher.Refresh(ctx, payload.Trigger)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInProgress):
		log.Info("Skipping refresh, another refresh is running")
		return nil
	default:
		log.WithError(err).Error("Refresh failed")
		return err
	}
}

// Routes returns the task handlers keyed by task type
func (h *Handler) Routes() map[string]asynq.Handler {
	return map[string]asynq.Handler{
		TypeRefresh: h,
	}
}
