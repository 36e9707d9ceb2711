package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/cohorts/pkg/clickhouse"
	"github.com/ethpandaops/cohorts/pkg/records"
)

// ClickHouseSource reads the snapshot with a templated ClickHouse query
type ClickHouseSource struct {
	log      logrus.FieldLogger
	client   clickhouse.ClientInterface
	query    string
	renderer *QueryRenderer
}

// NewClickHouseSource creates a ClickHouse source with its own HTTP client
func NewClickHouseSource(log logrus.FieldLogger, cfg *ClickHouseConfig, renderer *QueryRenderer) (*ClickHouseSource, error) {
	client, err := clickhouse.NewClient(log, &cfg.Config)
	if err != nil {
		return nil, err
	}

	return NewClickHouseSourceWithClient(log, client, cfg.Query, renderer), nil
}

// NewClickHouseSourceWithClient creates a ClickHouse source on an existing client
func NewClickHouseSourceWithClient(log logrus.FieldLogger, client clickhouse.ClientInterface, query string, renderer *QueryRenderer) *ClickHouseSource {
	return &ClickHouseSource{
		log:      log.WithField("source", string(KindClickHouse)),
		client:   client,
		query:    query,
		renderer: renderer,
	}
}

// Name implements Source
func (s *ClickHouseSource) Name() string {
	return string(KindClickHouse)
}

// Fetch implements Source
func (s *ClickHouseSource) Fetch(ctx context.Context) ([]records.InputRecord, error) {
	query, err := s.renderer.Render(s.query)
	if err != nil {
		return nil, err
	}

	rows, err := clickhouse.QueryMany[map[string]flexString](ctx, s.client, query)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return []records.InputRecord{}, nil
	}

	headers := make([]string, 0, len(rows[0]))
	for name := range rows[0] {
		headers = append(headers, name)
	}

	sort.Strings(headers)

	cols, err := mapColumns(headers)
	if err != nil {
		return nil, err
	}

	out := make([]records.InputRecord, 0, len(rows))
	values := make([]string, len(headers))

	for _, row := range rows {
		for i, name := range headers {
			values[i] = string(row[name])
		}

		out = append(out, cols.record(values))
	}

	s.log.WithField("rows", len(out)).Debug("Read clickhouse snapshot")

	return out, nil
}

// Close implements Source
func (s *ClickHouseSource) Close() error {
	return s.client.Stop()
}

// flexString accepts JSON strings, numbers and null
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*f = flexString(s)
	case len(data) > 0 && (data[0] == '{' || data[0] == '['):
		return fmt.Errorf("unsupported column value %s", data)
	default:
		*f = flexString(data)
	}

	return nil
}
