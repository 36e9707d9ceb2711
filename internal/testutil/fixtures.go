package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/ethpandaops/cohorts/pkg/records"
	"github.com/ethpandaops/cohorts/pkg/report"
)

// Input builds an input record
func Input(id, email, customerID, visit, value string) records.InputRecord {
	return records.InputRecord{
		RecordID:      id,
		Email:         email,
		CustomerID:    customerID,
		VisitDate:     visit,
		PurchaseValue: value,
	}
}

// Transactions is a small log spanning two months: alice is new in January
// and returns in February, bob is new in February, and one record is a
// duplicate of alice's first visit.
func Transactions() []records.InputRecord {
	return []records.InputRecord{
		Input("1", "alice@example.com", "c1", "2024-01-03", "100"),
		Input("1", "alice@example.com", "c1", "2024-01-03", "100"),
		Input("2", "alice@example.com", "c1", "2024-02-06", "50"),
		Input("3", "bob@example.com", "c2", "2024-02-07", "30"),
	}
}

// ReportConfig returns a valid report configuration with a cutoff before
// every fixture record.
func ReportConfig() report.Config {
	return report.Config{
		WeeklyCutoffDate:   "2024-01-01",
		DateFormats:        []string{"2006-01-02"},
		ChurnThresholdDays: 180,
	}
}

// FixedClock is the generation time of SampleBundle
//
//nolint:gochecknoglobals // test fixture
var FixedClock = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// SampleBundle computes a bundle from Transactions
func SampleBundle(t *testing.T) *report.Bundle {
	t.Helper()

	bundle, err := report.Compute(context.Background(), Transactions(), ReportConfig(), report.WithClock(func() time.Time {
		return FixedClock
	}))
	if err != nil {
		t.Fatalf("failed to compute sample bundle: %v", err)
	}

	return bundle
}
