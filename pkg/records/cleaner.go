package records

import "strings"

// Result is the output of a cleaning pass.
type Result struct {
	// Clean is the validated, deduplicated, denylist-filtered working set.
	Clean []CleanRecord
	// Headline holds every record with a usable timestamp whose email is not
	// denylisted, including records without a customer identity. It is the
	// population headline revenue is computed over.
	Headline []RawRecord
	Stats    Stats
}

// Cleaner filters raw records into clean records
type Cleaner struct {
	denylist map[string]struct{}
}

// NewCleaner creates a cleaner that drops records whose email exactly
// matches one of the denylisted addresses (case-sensitive).
func NewCleaner(denylist []string) *Cleaner {
	set := make(map[string]struct{}, len(denylist))
	for _, email := range denylist {
		set[email] = struct{}{}
	}

	return &Cleaner{denylist: set}
}

// IsDenylisted reports whether email is on the denylist
func (c *Cleaner) IsDenylisted(email string) bool {
	_, ok := c.denylist[email]
	return ok
}

// Clean applies, in order: record id deduplication, then drops records with a
// missing customer id, a missing email, an unparsed timestamp or a
// denylisted email. The input is not modified and the output order follows
// the input order.
func (c *Cleaner) Clean(raw []RawRecord) Result {
	res := Result{
		Clean:    make([]CleanRecord, 0, len(raw)),
		Headline: make([]RawRecord, 0, len(raw)),
		Stats:    Stats{Raw: len(raw)},
	}

	seen := make(map[string]struct{})

	for _, r := range raw {
		if r.RecordID != "" {
			if _, dup := seen[r.RecordID]; dup {
				res.Stats.Duplicates++
				continue
			}
			seen[r.RecordID] = struct{}{}
		}

		denylisted := c.IsDenylisted(r.Email)
		if r.HasVisitTime() && !denylisted {
			res.Headline = append(res.Headline, r)
		}

		switch {
		case isBlank(r.CustomerID):
			res.Stats.MissingCustomerID++
		case isBlank(r.Email):
			res.Stats.MissingEmail++
		case !r.HasVisitTime():
			res.Stats.MalformedTimestamp++
		case denylisted:
			res.Stats.Denylisted++
		default:
			res.Clean = append(res.Clean, CleanRecord(r))
		}
	}

	res.Stats.Clean = len(res.Clean)
	res.Stats.Headline = len(res.Headline)

	return res
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
