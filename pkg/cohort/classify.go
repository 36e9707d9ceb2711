// Package cohort labels customer activity as new or returning relative to
// each customer's first-activity period and folds the result into
// per-period summaries.
package cohort

import (
	"time"

	"github.com/ethpandaops/cohorts/pkg/period"
	"github.com/ethpandaops/cohorts/pkg/records"
)

// Class is the cohort label of a record within its period
type Class string

const (
	// New marks activity inside the customer's first-activity period
	New Class = "new"
	// Returning marks activity in any later period
	Returning Class = "returning"
)

// First is a customer's earliest activity within one run
type First struct {
	Time   time.Time
	Period period.Period
}

// Classified is a clean record with its assigned period and cohort label
type Classified struct {
	Record records.CleanRecord
	Period period.Period
	Class  Class
}

// FirstActivity maps each customer email to its earliest visit among the
// records the strategy can assign. Records the strategy excludes never
// contribute to a baseline.
func FirstActivity(recs []records.CleanRecord, s period.Strategy) map[string]First {
	firsts := make(map[string]First)

	for i := range recs {
		r := &recs[i]

		p, ok := s.Assign(r.VisitTime)
		if !ok {
			continue
		}

		if f, seen := firsts[r.Email]; seen && !r.VisitTime.Before(f.Time) {
			continue
		}

		firsts[r.Email] = First{Time: r.VisitTime, Period: p}
	}

	return firsts
}

// Classify assigns each record to a period and labels it new when the period
// matches the customer's first-activity period, returning otherwise. Output
// preserves input order and omits records the strategy excludes.
func Classify(recs []records.CleanRecord, s period.Strategy) []Classified {
	firsts := FirstActivity(recs, s)
	out := make([]Classified, 0, len(recs))

	for i := range recs {
		p, ok := s.Assign(recs[i].VisitTime)
		if !ok {
			continue
		}

		class := Returning
		if firsts[recs[i].Email].Period == p {
			class = New
		}

		out = append(out, Classified{Record: recs[i], Period: p, Class: class})
	}

	return out
}
