// Package ltv estimates population-level customer lifetime value from a
// clean record set.
package ltv

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ethpandaops/cohorts/pkg/records"
)

// DefaultChurnThresholdDays is the churn window used when none is configured
const DefaultChurnThresholdDays = 180

// ErrInvalidChurnThreshold is returned for a non-positive churn threshold
var ErrInvalidChurnThreshold = errors.New("churn threshold must be positive")

// Metrics are the lifetime value figures of one run
type Metrics struct {
	BasicLTV                  float64 `json:"basic_ltv"`
	AdvancedLTV               float64 `json:"advanced_ltv"`
	AvgPurchaseValue          float64 `json:"avg_purchase_value"`
	AvgPurchaseFrequency      float64 `json:"avg_purchase_frequency"`
	AvgCustomerLifespanMonths float64 `json:"avg_customer_lifespan_months"`
	UniqueCustomers           int     `json:"unique_customers"`
	TotalRevenue              float64 `json:"total_revenue"`
	AvgDaysBetweenVisits      float64 `json:"avg_days_between_visits"`
}

// Estimator computes Metrics
type Estimator struct {
	churnThresholdDays int
}

// NewEstimator creates an estimator converting the mean visit gap into a
// lifespan using churnThresholdDays.
func NewEstimator(churnThresholdDays int) (*Estimator, error) {
	if churnThresholdDays <= 0 {
		return nil, ErrInvalidChurnThreshold
	}

	return &Estimator{churnThresholdDays: churnThresholdDays}, nil
}

// Estimate computes the metrics over recs. Customers are identified by email.
// An empty input yields all-zero metrics.
func (e *Estimator) Estimate(recs []records.CleanRecord) Metrics {
	if len(recs) == 0 {
		return Metrics{}
	}

	visits := make(map[string][]time.Time)
	total := decimal.Zero

	for i := range recs {
		total = total.Add(recs[i].PurchaseValue)
		visits[recs[i].Email] = append(visits[recs[i].Email], recs[i].VisitTime)
	}

	customers := decimal.NewFromInt(int64(len(visits)))
	count := decimal.NewFromInt(int64(len(recs)))

	avgValue := total.Div(count)
	frequency := count.Div(customers)

	avgGap := meanGapDays(visits)

	lifespan := 1.0
	if avgGap > 0 {
		lifespan = float64(e.churnThresholdDays) / avgGap
	}

	return Metrics{
		BasicLTV:                  total.Div(customers).InexactFloat64(),
		AdvancedLTV:               avgValue.Mul(frequency).InexactFloat64() * lifespan,
		AvgPurchaseValue:          avgValue.InexactFloat64(),
		AvgPurchaseFrequency:      frequency.InexactFloat64(),
		AvgCustomerLifespanMonths: lifespan,
		UniqueCustomers:           len(visits),
		TotalRevenue:              total.InexactFloat64(),
		AvgDaysBetweenVisits:      avgGap,
	}
}

// meanGapDays pools the whole-day gaps between consecutive visits of every
// customer. Without any gap it falls back to one day.
func meanGapDays(visits map[string][]time.Time) float64 {
	var (
		sum  int64
		gaps int64
	)

	for _, times := range visits {
		if len(times) < 2 {
			continue
		}

		sorted := make([]time.Time, len(times))
		copy(sorted, times)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

		for i := 1; i < len(sorted); i++ {
			sum += wholeDays(sorted[i].Sub(sorted[i-1]))
			gaps++
		}
	}

	if gaps == 0 {
		return 1
	}

	return float64(sum) / float64(gaps)
}

func wholeDays(d time.Duration) int64 {
	days := int64(d / (24 * time.Hour))
	if d%(24*time.Hour) < 0 {
		days--
	}

	return days
}
