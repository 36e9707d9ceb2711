// Package report runs the analytics pipeline over an input snapshot and
// produces an immutable result bundle.
package report

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/cohorts/pkg/cohort"
	"github.com/ethpandaops/cohorts/pkg/ltv"
	"github.com/ethpandaops/cohorts/pkg/period"
	"github.com/ethpandaops/cohorts/pkg/records"
)

// Stage names a step of Compute, reported through WithProgress
type Stage string

const (
	// StageParse converts input rows into raw records
	StageParse Stage = "parse"
	// StageClean filters and deduplicates raw records
	StageClean Stage = "clean"
	// StageMonthly builds the monthly summaries
	StageMonthly Stage = "monthly"
	// StageWeekly builds the weekly summaries
	StageWeekly Stage = "weekly"
	// StageLTV estimates lifetime value
	StageLTV Stage = "ltv"
)

// Stages lists every stage in pipeline order
//
//nolint:gochecknoglobals // fixed list
var Stages = []Stage{StageParse, StageClean, StageMonthly, StageWeekly, StageLTV}

// Bundle is the complete output of one run. A bundle is never modified once
// Compute returns it.
type Bundle struct {
	RunID       string           `json:"run_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	Monthly     []cohort.Summary `json:"monthly"`
	Weekly      []cohort.Summary `json:"weekly"`
	LTV         ltv.Metrics      `json:"ltv"`
	Stats       records.Stats    `json:"stats"`
}

// Option customises Compute
type Option func(*options)

type options struct {
	progress func(Stage)
	now      func() time.Time
}

// WithProgress registers a callback invoked once as each stage completes. The
// monthly, weekly and ltv stages run concurrently so the callback must be safe
// for concurrent use.
func WithProgress(fn func(Stage)) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithClock overrides the clock used for GeneratedAt
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Compute validates cfg and runs the full pipeline over inputs. Malformed
// rows are counted and excluded. The monthly, weekly and ltv computations
// share the clean set read-only and run concurrently. A cancelled context
// aborts the run and no bundle is returned.
func Compute(ctx context.Context, inputs []records.InputRecord, cfg Config, opts ...Option) (*Bundle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{progress: func(Stage) {}, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	cutoff, err := cfg.Cutoff()
	if err != nil {
		return nil, err
	}

	estimator, err := ltv.NewEstimator(cfg.ChurnThresholdDays)
	if err != nil {
		return nil, err
	}

	raw, malformed := records.ParseAll(inputs, cfg.DateFormats)
	o.progress(StageParse)

	result := records.NewCleaner(cfg.DenylistedEmails).Clean(raw)
	result.Stats.Raw = len(inputs)
	result.Stats.MalformedValue = malformed
	o.progress(StageClean)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bundle := &Bundle{
		RunID:       uuid.NewString(),
		GeneratedAt: o.now().UTC(),
		Stats:       result.Stats,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}

		bundle.Monthly = cohort.Summarize(result.Clean, result.Headline, period.MonthlyStrategy{})
		o.progress(StageMonthly)

		return nil
	})

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}

		strategy := period.NewWeeklyStrategy(cutoff, visitTimes(result.Headline))
		bundle.Weekly = cohort.Summarize(result.Clean, result.Headline, strategy)
		o.progress(StageWeekly)

		return nil
	})

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}

		bundle.LTV = estimator.Estimate(result.Clean)
		o.progress(StageLTV)

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return bundle, nil
}

// Summaries returns the summaries of the given granularity
func (b *Bundle) Summaries(g period.Granularity) ([]cohort.Summary, error) {
	switch g {
	case period.Monthly:
		return b.Monthly, nil
	case period.Weekly:
		return b.Weekly, nil
	default:
		return nil, period.ErrUnknownGranularity
	}
}

func visitTimes(raw []records.RawRecord) []time.Time {
	out := make([]time.Time, 0, len(raw))
	for i := range raw {
		out = append(out, raw[i].VisitTime)
	}

	return out
}
