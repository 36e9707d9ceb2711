package ltv

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/cohorts/pkg/records"
)

func rec(email string, at time.Time, value string) records.CleanRecord {
	return records.CleanRecord{
		Email:         email,
		CustomerID:    "id-" + email,
		VisitTime:     at,
		PurchaseValue: decimal.RequireFromString(value),
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewEstimator(t *testing.T) {
	tests := []struct {
		name    string
		days    int
		wantErr error
	}{
		{name: "default", days: DefaultChurnThresholdDays},
		{name: "zero", days: 0, wantErr: ErrInvalidChurnThreshold},
		{name: "negative", days: -1, wantErr: ErrInvalidChurnThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEstimator(tt.days)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, e)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, e)
		})
	}
}

func TestEstimate(t *testing.T) {
	e, err := NewEstimator(DefaultChurnThresholdDays)
	require.NoError(t, err)

	tests := []struct {
		name string
		recs []records.CleanRecord
		want Metrics
	}{
		{
			name: "empty input",
			recs: nil,
			want: Metrics{},
		},
		{
			name: "two customers",
			recs: []records.CleanRecord{
				rec("a@example.com", day(2024, time.January, 5), "10"),
				rec("a@example.com", day(2024, time.February, 10), "20"),
				rec("b@example.com", day(2024, time.February, 1), "5"),
			},
			want: Metrics{
				BasicLTV:                  17.5,
				AvgPurchaseValue:          35.0 / 3,
				AvgPurchaseFrequency:      1.5,
				AvgDaysBetweenVisits:      36,
				AvgCustomerLifespanMonths: 5,
				AdvancedLTV:               35.0 / 3 * 1.5 * 5,
				UniqueCustomers:           2,
				TotalRevenue:              35,
			},
		},
		{
			name: "single visit customers fall back to a one day gap",
			recs: []records.CleanRecord{
				rec("a@example.com", day(2024, time.January, 5), "10"),
				rec("b@example.com", day(2024, time.January, 6), "30"),
			},
			want: Metrics{
				BasicLTV:                  20,
				AvgPurchaseValue:          20,
				AvgPurchaseFrequency:      1,
				AvgDaysBetweenVisits:      1,
				AvgCustomerLifespanMonths: 180,
				AdvancedLTV:               3600,
				UniqueCustomers:           2,
				TotalRevenue:              40,
			},
		},
		{
			name: "same day visits guard the lifespan",
			recs: []records.CleanRecord{
				rec("a@example.com", time.Date(2024, time.January, 5, 9, 0, 0, 0, time.UTC), "10"),
				rec("a@example.com", time.Date(2024, time.January, 5, 17, 0, 0, 0, time.UTC), "10"),
			},
			want: Metrics{
				BasicLTV:                  20,
				AvgPurchaseValue:          10,
				AvgPurchaseFrequency:      2,
				AvgDaysBetweenVisits:      0,
				AvgCustomerLifespanMonths: 1,
				AdvancedLTV:               20,
				UniqueCustomers:           1,
				TotalRevenue:              20,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Estimate(tt.recs)

			assert.InDelta(t, tt.want.BasicLTV, got.BasicLTV, 1e-9)
			assert.InDelta(t, tt.want.AdvancedLTV, got.AdvancedLTV, 1e-6)
			assert.InDelta(t, tt.want.AvgPurchaseValue, got.AvgPurchaseValue, 1e-9)
			assert.InDelta(t, tt.want.AvgPurchaseFrequency, got.AvgPurchaseFrequency, 1e-9)
			assert.InDelta(t, tt.want.AvgDaysBetweenVisits, got.AvgDaysBetweenVisits, 1e-9)
			assert.InDelta(t, tt.want.AvgCustomerLifespanMonths, got.AvgCustomerLifespanMonths, 1e-9)
			assert.InDelta(t, tt.want.TotalRevenue, got.TotalRevenue, 1e-9)
			assert.Equal(t, tt.want.UniqueCustomers, got.UniqueCustomers)
		})
	}
}

func TestEstimateUsesChurnThreshold(t *testing.T) {
	e, err := NewEstimator(90)
	require.NoError(t, err)

	got := e.Estimate([]records.CleanRecord{
		rec("a@example.com", day(2024, time.January, 1), "1"),
		rec("a@example.com", day(2024, time.January, 31), "1"),
	})
	assert.InDelta(t, 3.0, got.AvgCustomerLifespanMonths, 1e-9)
}

func TestMeanGapDaysIgnoresInputOrder(t *testing.T) {
	visits := map[string][]time.Time{
		"a": {day(2024, time.March, 1), day(2024, time.January, 1), day(2024, time.January, 11)},
	}

	// gaps: 10 and 50
	assert.InDelta(t, 30.0, meanGapDays(visits), 1e-9)
	assert.Equal(t, day(2024, time.March, 1), visits["a"][0])
}

func TestWholeDays(t *testing.T) {
	assert.Equal(t, int64(0), wholeDays(23*time.Hour))
	assert.Equal(t, int64(1), wholeDays(47*time.Hour))
	assert.Equal(t, int64(-1), wholeDays(-time.Hour))
}
