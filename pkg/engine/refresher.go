package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/cohorts/pkg/observability"
	"github.com/ethpandaops/cohorts/pkg/records"
	"github.com/ethpandaops/cohorts/pkg/refresh"
	"github.com/ethpandaops/cohorts/pkg/report"
	"github.com/ethpandaops/cohorts/pkg/store"
)

// ErrRefreshInProgress is returned when Refresh is called while another refresh runs
var ErrRefreshInProgress = refresh.ErrInProgress

// Fetcher produces a snapshot of input records
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]records.InputRecord, error)
}

// Refresher recomputes the report from a fresh snapshot and publishes it.
// At most one refresh runs at a time per process.
type Refresher struct {
	log     logrus.FieldLogger
	fetcher Fetcher
	store   store.Store
	config  report.Config

	mu sync.Mutex
}

// NewRefresher creates a refresher
func NewRefresher(log logrus.FieldLogger, fetcher Fetcher, st store.Store, cfg report.Config) *Refresher {
	return &Refresher{
		log:     log.WithField("component", "refresher"),
		fetcher: fetcher,
		store:   st,
		config:  cfg,
	}
}

// Refresh fetches, computes and publishes one bundle. On any failure, or when
// ctx is cancelled before publication, the previously published bundle stays
// current.
func (r *Refresher) Refresh(ctx context.Context, trigger string) error {
	if !r.mu.TryLock() {
		observability.RecordRefreshSkipped(trigger)
		return ErrRefreshInProgress
	}
	defer r.mu.Unlock()

	log := r.log.WithField("trigger", trigger)
	start := time.Now()
	status := "error"

	observability.RecordRefreshStart()
	defer func() {
		observability.RecordRefreshComplete(trigger, status, time.Since(start).Seconds())
	}()

	inputs, err := r.fetch(ctx)
	if err != nil {
		return err
	}

	bundle, err := report.Compute(ctx, inputs, r.config)
	if err != nil {
		if ctx.Err() != nil {
			status = "cancelled"
			return err
		}

		observability.RecordError("refresher", "compute")
		return fmt.Errorf("failed to compute report: %w", err)
	}

	observability.RecordStats(bundle.Stats)

	if err := ctx.Err(); err != nil {
		status = "cancelled"
		log.WithField("run_id", bundle.RunID).Warn("Discarding report, refresh was cancelled")

		return err
	}

	if err := r.store.Publish(ctx, bundle); err != nil {
		observability.RecordError("refresher", "publish")
		return fmt.Errorf("failed to publish report: %w", err)
	}

	status = "success"
	observability.RecordPublish(len(bundle.Monthly), len(bundle.Weekly), bundle.GeneratedAt)

	log.WithFields(logrus.Fields{
		"run_id":      bundle.RunID,
		"raw":         bundle.Stats.Raw,
		"clean":       bundle.Stats.Clean,
		"duplicates":  bundle.Stats.Duplicates,
		"monthly":     len(bundle.Monthly),
		"weekly":      len(bundle.Weekly),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Published report")

	return nil
}

func (r *Refresher) fetch(ctx context.Context) ([]records.InputRecord, error) {
	start := time.Now()

	inputs, err := r.fetcher.Fetch(ctx)
	if err != nil {
		observability.RecordSourceFetch(r.fetcher.Name(), "error", time.Since(start).Seconds())
		observability.RecordError("refresher", "fetch")

		return nil, fmt.Errorf("failed to fetch from %s: %w", r.fetcher.Name(), err)
	}

	observability.RecordSourceFetch(r.fetcher.Name(), "success", time.Since(start).Seconds())

	r.log.WithFields(logrus.Fields{
		"source":  r.fetcher.Name(),
		"records": len(inputs),
	}).Debug("Fetched snapshot")

	return inputs, nil
}
