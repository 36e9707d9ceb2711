package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/cohorts/pkg/records"
)

// Source produces a complete snapshot of transaction records
type Source interface {
	// Name identifies the source in logs and metrics
	Name() string
	// Fetch reads the full snapshot
	Fetch(ctx context.Context) ([]records.InputRecord, error)
	// Close releases any held connections
	Close() error
}

// New creates the source selected by cfg
func New(log logrus.FieldLogger, cfg *Config) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	since, err := cfg.SinceTime()
	if err != nil {
		return nil, err
	}

	log = log.WithField("component", "source")

	switch cfg.Kind {
	case KindCSV:
		return NewCSVSource(log, cfg.CSV), nil
	case KindClickHouse:
		src, err := NewClickHouseSource(log, &cfg.ClickHouse, NewQueryRenderer(since))
		if err != nil {
			return nil, err
		}

		return src, nil
	case KindSQL:
		src, err := NewSQLSource(log, cfg.SQL, NewQueryRenderer(since))
		if err != nil {
			return nil, err
		}

		return src, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// field identifies an InputRecord column
type field int

const (
	fieldRecordID field = iota
	fieldEmail
	fieldCustomerID
	fieldVisitDate
	fieldPurchaseValue
	fieldCount
)

// columnAliases lists the accepted header names per field, compared after
// normalizeHeader.
//
//nolint:gochecknoglobals // static alias table
var columnAliases = [fieldCount][]string{
	fieldRecordID:      {"record_id", "id", "booking_id", "bnow__booking__c"},
	fieldEmail:         {"email", "customer_email", "bnow__customer_email__c"},
	fieldCustomerID:    {"customer_id", "customer", "bnow__customer_id__c"},
	fieldVisitDate:     {"visit_date", "visit_timestamp", "visited_at", "bnow__all_products_processed__c"},
	fieldPurchaseValue: {"purchase_value", "value", "amount", "bnow__balance_paid__c"},
}

//nolint:gochecknoglobals // static name table
var fieldNames = [fieldCount]string{"record_id", "email", "customer_id", "visit_date", "purchase_value"}

// columnMap maps each field to its column index, -1 when absent
type columnMap [fieldCount]int

// mapColumns resolves header positions. record_id is optional, every other
// field is required.
func mapColumns(headers []string) (columnMap, error) {
	normalized := normalizeHeaders(headers)

	var cols columnMap

	for f := field(0); f < fieldCount; f++ {
		idx, ok := findColumn(normalized, columnAliases[f])
		if !ok && f != fieldRecordID {
			return cols, fmt.Errorf("%w: %s", ErrMissingColumn, fieldNames[f])
		}

		cols[f] = idx
	}

	return cols, nil
}

func (m columnMap) record(values []string) records.InputRecord {
	return records.InputRecord{
		RecordID:      getValue(values, m[fieldRecordID]),
		Email:         getValue(values, m[fieldEmail]),
		CustomerID:    getValue(values, m[fieldCustomerID]),
		VisitDate:     getValue(values, m[fieldVisitDate]),
		PurchaseValue: getValue(values, m[fieldPurchaseValue]),
	}
}

func normalizeHeaders(headers []string) map[string]int {
	result := make(map[string]int, len(headers))

	for idx, header := range headers {
		normalized := normalizeHeader(header)
		if _, exists := result[normalized]; !exists {
			result[normalized] = idx
		}
	}

	return result
}

func normalizeHeader(value string) string {
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(strings.TrimSpace(value))

	return strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(value)
}

func findColumn(headers map[string]int, names []string) (int, bool) {
	for _, name := range names {
		if idx, ok := headers[normalizeHeader(name)]; ok {
			return idx, true
		}
	}

	return -1, false
}

func getValue(values []string, idx int) string {
	if idx < 0 || idx >= len(values) {
		return ""
	}

	return strings.TrimSpace(values[idx])
}
