package cohort

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/ethpandaops/cohorts/pkg/period"
	"github.com/ethpandaops/cohorts/pkg/records"
)

// Summary holds the customer counts and revenue split of one period
type Summary struct {
	Period                   period.Period   `json:"period"`
	TotalCustomers           int             `json:"total_customers"`
	NewCustomers             int             `json:"new_customers"`
	ReturningCustomers       int             `json:"returning_customers"`
	NewPercentage            float64         `json:"new_percentage"`
	ReturningPercentage      float64         `json:"returning_percentage"`
	TotalRevenue             decimal.Decimal `json:"total_revenue"`
	NewCustomerRevenue       decimal.Decimal `json:"new_customer_revenue"`
	ReturningCustomerRevenue decimal.Decimal `json:"returning_customer_revenue"`
	UnattributedRevenue      decimal.Decimal `json:"unattributed_revenue"`
}

type bucket struct {
	customers map[string]struct{}
	newcomers map[string]struct{}
	newRev    decimal.Decimal
	returnRev decimal.Decimal
	headline  decimal.Decimal
}

func newBucket() *bucket {
	return &bucket{
		customers: make(map[string]struct{}),
		newcomers: make(map[string]struct{}),
		newRev:    decimal.Zero,
		returnRev: decimal.Zero,
		headline:  decimal.Zero,
	}
}

// Aggregate folds classified records and the headline population into one
// summary per non-empty period, in chronological order. Headline records
// carry total revenue and may include records without a usable identity;
// whatever the classified records do not account for is reported as
// unattributed revenue.
func Aggregate(classified []Classified, headline []records.RawRecord, s period.Strategy) []Summary {
	buckets := make(map[period.Period]*bucket)

	get := func(p period.Period) *bucket {
		b, ok := buckets[p]
		if !ok {
			b = newBucket()
			buckets[p] = b
		}

		return b
	}

	for i := range classified {
		c := &classified[i]
		b := get(c.Period)
		b.customers[c.Record.Email] = struct{}{}

		switch c.Class {
		case New:
			b.newcomers[c.Record.Email] = struct{}{}
			b.newRev = b.newRev.Add(c.Record.PurchaseValue)
		case Returning:
			b.returnRev = b.returnRev.Add(c.Record.PurchaseValue)
		}
	}

	for i := range headline {
		p, ok := s.Assign(headline[i].VisitTime)
		if !ok {
			continue
		}

		b := get(p)
		b.headline = b.headline.Add(headline[i].PurchaseValue)
	}

	summaries := make([]Summary, 0, len(buckets))
	for _, p := range period.Sorted(buckets) {
		summaries = append(summaries, buckets[p].summary(p))
	}

	return summaries
}

func (b *bucket) summary(p period.Period) Summary {
	total := len(b.customers)
	newCount := len(b.newcomers)
	returning := total - newCount

	return Summary{
		Period:                   p,
		TotalCustomers:           total,
		NewCustomers:             newCount,
		ReturningCustomers:       returning,
		NewPercentage:            percentage(newCount, total),
		ReturningPercentage:      percentage(returning, total),
		TotalRevenue:             b.headline,
		NewCustomerRevenue:       b.newRev,
		ReturningCustomerRevenue: b.returnRev,
		UnattributedRevenue:      b.headline.Sub(b.newRev).Sub(b.returnRev),
	}
}

// Summarize runs classification and aggregation for one granularity
func Summarize(clean []records.CleanRecord, headline []records.RawRecord, s period.Strategy) []Summary {
	return Aggregate(Classify(clean, s), headline, s)
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}

	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
