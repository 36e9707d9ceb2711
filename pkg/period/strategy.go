package period

import (
	"slices"
	"time"
)

// Strategy assigns timestamps to periods. Assign reports false for
// timestamps the strategy excludes.
type Strategy interface {
	Granularity() Granularity
	Assign(t time.Time) (Period, bool)
}

// MonthlyStrategy maps every timestamp to its calendar month
type MonthlyStrategy struct{}

// Granularity implements Strategy
func (MonthlyStrategy) Granularity() Granularity {
	return Monthly
}

// Assign implements Strategy
func (MonthlyStrategy) Assign(t time.Time) (Period, bool) {
	if t.IsZero() {
		return Period{}, false
	}

	return Month(t), true
}

// WeeklyStrategy buckets timestamps at or after a cutoff into contiguous
// Monday-aligned weeks spanning the in-range population. The first week
// starts on the Monday on or before the earliest in-range timestamp.
type WeeklyStrategy struct {
	cutoff time.Time
	first  Period
	last   Period
	empty  bool
}

// NewWeeklyStrategy derives the weekly bins from the timestamps at or after
// cutoff.
func NewWeeklyStrategy(cutoff time.Time, timestamps []time.Time) *WeeklyStrategy {
	s := &WeeklyStrategy{cutoff: cutoff, empty: true}

	var start, end time.Time

	for _, t := range timestamps {
		if t.IsZero() || t.Before(cutoff) {
			continue
		}

		if s.empty || t.Before(start) {
			start = t
		}

		if s.empty || t.After(end) {
			end = t
		}

		s.empty = false
	}

	if s.empty {
		return s
	}

	s.first = Week(start)
	s.last = Week(end)

	return s
}

// Granularity implements Strategy
func (s *WeeklyStrategy) Granularity() Granularity {
	return Weekly
}

// Assign implements Strategy. Bins are left-closed and right-open: a
// timestamp exactly on a Monday midnight belongs to the week starting there.
func (s *WeeklyStrategy) Assign(t time.Time) (Period, bool) {
	if s.empty || t.IsZero() || t.Before(s.cutoff) {
		return Period{}, false
	}

	p := Week(t)
	if p.Before(s.first) || s.last.Before(p) {
		return Period{}, false
	}

	return p, true
}

// Bucket groups items by the period their timestamp is assigned to. Items the
// strategy excludes are dropped.
func Bucket[T any](items []T, timestamp func(T) time.Time, s Strategy) map[Period][]T {
	out := make(map[Period][]T)

	for _, item := range items {
		p, ok := s.Assign(timestamp(item))
		if !ok {
			continue
		}

		out[p] = append(out[p], item)
	}

	return out
}

// Sorted returns the keys of a bucket map in chronological order
func Sorted[T any](buckets map[Period]T) []Period {
	keys := make([]Period, 0, len(buckets))
	for p := range buckets {
		keys = append(keys, p)
	}

	SortPeriods(keys)

	return keys
}

// SortPeriods sorts periods chronologically in place
func SortPeriods(periods []Period) {
	slices.SortFunc(periods, Period.Compare)
}
