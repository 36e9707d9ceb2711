package records

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrMalformedTimestamp is returned when a visit date matches none of the configured layouts
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	// ErrMalformedValue is returned when a purchase value is not numeric
	ErrMalformedValue = errors.New("malformed purchase value")
)

// ParseTime parses value with the first matching layout and returns the
// instant located in UTC. Zoned values are converted to UTC rather than
// keeping their local wall clock, so "2024-02-01T00:30:00+02:00" becomes
// 2024-01-31 22:30 UTC and buckets into January. Values without an offset
// are read as UTC.
func ParseTime(value string, layouts []string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrMalformedTimestamp)
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, value)
}

// ParseValue parses a purchase value. An empty value counts as zero.
func ParseValue(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedValue, value)
	}

	return d, nil
}

// Parse converts an InputRecord into a RawRecord. An unparseable timestamp
// leaves VisitTime unset rather than failing; a non-numeric purchase value is
// returned as ErrMalformedValue.
func Parse(in InputRecord, layouts []string) (RawRecord, error) {
	value, err := ParseValue(in.PurchaseValue)
	if err != nil {
		return RawRecord{}, err
	}

	raw := RawRecord{
		RecordID:      strings.TrimSpace(in.RecordID),
		Email:         in.Email,
		CustomerID:    in.CustomerID,
		PurchaseValue: value,
	}

	if visit, timeErr := ParseTime(in.VisitDate, layouts); timeErr == nil {
		raw.VisitTime = visit
	}

	return raw, nil
}

// ParseAll parses every input, skipping rows with malformed purchase values.
// It returns the parsed rows and the number of rows skipped.
func ParseAll(inputs []InputRecord, layouts []string) ([]RawRecord, int) {
	out := make([]RawRecord, 0, len(inputs))
	malformed := 0

	for _, in := range inputs {
		raw, err := Parse(in, layouts)
		if err != nil {
			malformed++
			continue
		}

		out = append(out, raw)
	}

	return out, malformed
}
