// Package period provides calendar-aligned reporting periods and the
// strategies that assign timestamps to them.
package period

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Granularity names a period variant
type Granularity string

const (
	// Monthly groups records by calendar month
	Monthly Granularity = "monthly"
	// Weekly groups records by Monday-aligned seven day windows
	Weekly Granularity = "weekly"

	// DateLayout renders period boundaries
	DateLayout = "2006-01-02"

	secondsPerDay = 24 * 60 * 60
	daysPerWeek   = 7
)

var (
	// ErrUnknownGranularity is returned when decoding a period of an unknown variant
	ErrUnknownGranularity = errors.New("unknown period granularity")
	// ErrNotMonday is returned when decoding a weekly period that does not start on a Monday
	ErrNotMonday = errors.New("weekly period must start on a Monday")
)

// referenceMonday anchors week indices so that weekly periods from different
// runs compare equal when they cover the same days.
//
//nolint:gochecknoglobals // immutable anchor
var referenceMonday = time.Date(1970, time.January, 5, 0, 0, 0, 0, time.UTC)

//nolint:gochecknoglobals // day number of referenceMonday
var referenceDay = dayNumber(referenceMonday)

// Period is an ordered reporting bucket. The zero value is not a valid period.
// Periods are comparable with == and usable as map keys.
type Period struct {
	granularity Granularity
	index       int64
}

// Month returns the calendar month containing t
func Month(t time.Time) Period {
	return Period{
		granularity: Monthly,
		index:       int64(t.Year())*12 + int64(t.Month()) - 1,
	}
}

// Week returns the Monday-aligned week containing t
func Week(t time.Time) Period {
	return Period{
		granularity: Weekly,
		index:       floorDiv(dayNumber(t)-referenceDay, daysPerWeek),
	}
}

// Granularity returns the period variant
func (p Period) Granularity() Granularity {
	return p.granularity
}

// IsZero reports whether p is the zero value
func (p Period) IsZero() bool {
	return p.granularity == ""
}

// Start returns the first instant of the period
func (p Period) Start() time.Time {
	if p.granularity == Weekly {
		return referenceMonday.AddDate(0, 0, int(p.index)*7)
	}

	return time.Date(int(p.index/12), time.Month(p.index%12+1), 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant after the period
func (p Period) End() time.Time {
	if p.granularity == Weekly {
		return p.Start().AddDate(0, 0, 7)
	}

	return p.Start().AddDate(0, 1, 0)
}

// LastDay returns the date of the last day in the period
func (p Period) LastDay() time.Time {
	return p.End().AddDate(0, 0, -1)
}

// Next returns the period immediately following p
func (p Period) Next() Period {
	return Period{granularity: p.granularity, index: p.index + 1}
}

// Compare orders periods chronologically. Periods of different granularity
// are ordered by their start.
func (p Period) Compare(o Period) int {
	if p.granularity == o.granularity {
		switch {
		case p.index < o.index:
			return -1
		case p.index > o.index:
			return 1
		default:
			return 0
		}
	}

	return p.Start().Compare(o.Start())
}

// Before reports whether p sorts before o
func (p Period) Before(o Period) bool {
	return p.Compare(o) < 0
}

// Label renders the period for display. Months render as "2024-01", weeks as
// the closed date range "Jan 01, 2024 - Jan 07, 2024".
func (p Period) Label() string {
	switch p.granularity {
	case Monthly:
		return p.Start().Format("2006-01")
	case Weekly:
		return fmt.Sprintf("%s - %s", p.Start().Format("Jan 02, 2006"), p.LastDay().Format("Jan 02, 2006"))
	default:
		return ""
	}
}

// String implements fmt.Stringer
func (p Period) String() string {
	return p.Label()
}

type periodJSON struct {
	Granularity Granularity `json:"granularity"`
	Label       string      `json:"label"`
	Start       string      `json:"start"`
	End         string      `json:"end"`
}

// MarshalJSON encodes the period with its label and closed date range
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(periodJSON{
		Granularity: p.granularity,
		Label:       p.Label(),
		Start:       p.Start().Format(DateLayout),
		End:         p.LastDay().Format(DateLayout),
	})
}

// UnmarshalJSON restores a period from its granularity and start date
func (p *Period) UnmarshalJSON(data []byte) error {
	var raw periodJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	start, err := time.Parse(DateLayout, raw.Start)
	if err != nil {
		return fmt.Errorf("invalid period start: %w", err)
	}

	switch raw.Granularity {
	case Monthly:
		*p = Month(start)
	case Weekly:
		if start.Weekday() != time.Monday {
			return fmt.Errorf("%w: %s", ErrNotMonday, raw.Start)
		}
		*p = Week(start)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownGranularity, raw.Granularity)
	}

	return nil
}

// dayNumber counts whole UTC days since the Unix epoch. It works on Unix
// seconds because a time.Duration cannot span the full range of time.Time.
func dayNumber(t time.Time) int64 {
	return floorDiv(t.UTC().Unix(), secondsPerDay)
}

func floorDiv(n, d int64) int64 {
	q := n / d
	if n%d < 0 {
		q--
	}

	return q
}
