package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/ethpandaops/cohorts/pkg/cohort"
	"github.com/ethpandaops/cohorts/pkg/period"
)

// MetricRow is one line of the metrics table
type MetricRow struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
}

// MetricRows renders the lifetime value metrics as a two column table with
// values rounded to two decimal places.
func (b *Bundle) MetricRows() []MetricRow {
	return []MetricRow{
		{Metric: "Basic LTV", Value: round2(b.LTV.BasicLTV)},
		{Metric: "Advanced LTV", Value: round2(b.LTV.AdvancedLTV)},
		{Metric: "Average Purchase Value", Value: round2(b.LTV.AvgPurchaseValue)},
		{Metric: "Average Purchase Frequency", Value: round2(b.LTV.AvgPurchaseFrequency)},
		{Metric: "Average Customer Lifespan (Months)", Value: round2(b.LTV.AvgCustomerLifespanMonths)},
	}
}

// summaryHeader is the column order of summary CSV output
//
//nolint:gochecknoglobals // fixed header
var summaryHeader = []string{
	"period",
	"period_start",
	"period_end",
	"total_customers",
	"new_customers",
	"returning_customers",
	"new_percentage",
	"returning_percentage",
	"total_revenue",
	"new_customer_revenue",
	"returning_customer_revenue",
	"unattributed_revenue",
}

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// WriteSummariesCSV writes one row per period
func WriteSummariesCSV(w io.Writer, summaries []cohort.Summary) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(summaryHeader); err != nil {
		return err
	}

	for i := range summaries {
		s := &summaries[i]

		row := []string{
			s.Period.Label(),
			s.Period.Start().Format(period.DateLayout),
			s.Period.LastDay().Format(period.DateLayout),
			strconv.Itoa(s.TotalCustomers),
			strconv.Itoa(s.NewCustomers),
			strconv.Itoa(s.ReturningCustomers),
			strconv.FormatFloat(s.NewPercentage, 'f', 2, 64),
			strconv.FormatFloat(s.ReturningPercentage, 'f', 2, 64),
			s.TotalRevenue.StringFixed(2),
			s.NewCustomerRevenue.StringFixed(2),
			s.ReturningCustomerRevenue.StringFixed(2),
			s.UnattributedRevenue.StringFixed(2),
		}

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write %s: %w", s.Period, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// WriteMetricsCSV writes the metrics table
func WriteMetricsCSV(w io.Writer, rows []MetricRow) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"metric", "value"}); err != nil {
		return err
	}

	for _, r := range rows {
		if err := cw.Write([]string{r.Metric, strconv.FormatFloat(r.Value, 'f', 2, 64)}); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
