// Package records validates and filters raw transaction records into the
// canonical working set used by the analytics pipeline.
package records

import (
	"time"

	"github.com/shopspring/decimal"
)

// InputRecord is a transaction row as delivered by an upstream connector.
// Every field is kept as text; conversion happens in Parse.
type InputRecord struct {
	RecordID      string `json:"record_id,omitempty"`
	Email         string `json:"email"`
	CustomerID    string `json:"customer_id"`
	VisitDate     string `json:"visit_date"`
	PurchaseValue string `json:"purchase_value"`
}

// RawRecord is a parsed transaction. VisitTime is the zero time when the
// source timestamp was missing or could not be parsed.
type RawRecord struct {
	RecordID      string
	Email         string
	CustomerID    string
	VisitTime     time.Time
	PurchaseValue decimal.Decimal
}

// HasVisitTime reports whether the record carries a usable timestamp
func (r RawRecord) HasVisitTime() bool {
	return !r.VisitTime.IsZero()
}

// CleanRecord is a RawRecord guaranteed to have a customer id, an email that
// is not denylisted and a parsed visit time.
type CleanRecord struct {
	RecordID      string          `json:"record_id,omitempty"`
	Email         string          `json:"email"`
	CustomerID    string          `json:"customer_id"`
	VisitTime     time.Time       `json:"visit_time"`
	PurchaseValue decimal.Decimal `json:"purchase_value"`
}

// Stats counts what happened to the input while parsing and cleaning.
type Stats struct {
	Raw                int `json:"raw"`
	Clean              int `json:"clean"`
	Headline           int `json:"headline"`
	Duplicates         int `json:"duplicates"`
	MissingCustomerID  int `json:"missing_customer_id"`
	MissingEmail       int `json:"missing_email"`
	MalformedTimestamp int `json:"malformed_timestamp"`
	MalformedValue     int `json:"malformed_value"`
	Denylisted         int `json:"denylisted"`
}
