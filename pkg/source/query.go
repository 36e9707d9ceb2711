package source

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
)

const sqlTimeLayout = "2006-01-02 15:04:05"

// QueryRenderer renders source query templates with Sprig functions. The
// snapshot window is exposed as .since and .until (SQL datetime literals),
// .since_date and .until_date (YYYY-MM-DD) and .since_rfc3339 and
// .until_rfc3339.
type QueryRenderer struct {
	funcMap template.FuncMap
	since   time.Time
	now     func() time.Time
}

// NewQueryRenderer creates a renderer whose window starts at since. A zero
// since renders as the unix epoch.
func NewQueryRenderer(since time.Time) *QueryRenderer {
	return &QueryRenderer{
		funcMap: sprig.TxtFuncMap(),
		since:   since,
		now:     time.Now,
	}
}

// Render executes the query template
func (r *QueryRenderer) Render(query string) (string, error) {
	tmpl, err := template.New("query").Funcs(r.funcMap).Option("missingkey=error").Parse(query)
	if err != nil {
		return "", fmt.Errorf("failed to parse query template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, r.variables()); err != nil {
		return "", fmt.Errorf("failed to execute query template: %w", err)
	}

	return buf.String(), nil
}

func (r *QueryRenderer) variables() map[string]interface{} {
	since := r.since.UTC()
	if r.since.IsZero() {
		since = time.Unix(0, 0).UTC()
	}

	now := r.now().UTC()
	until := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	return map[string]interface{}{
		"since":         since.Format(sqlTimeLayout),
		"since_date":    since.Format(sinceLayout),
		"since_rfc3339": since.Format(time.RFC3339),
		"until":         until.Format(sqlTimeLayout),
		"until_date":    until.Format(sinceLayout),
		"until_rfc3339": until.Format(time.RFC3339),
	}
}
