package clickhouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Define static errors
var (
	ErrClickHouseResponse = errors.New("clickhouse error")
)

// response represents the JSON output format of the ClickHouse HTTP interface
type response struct {
	Data []json.RawMessage `json:"data"`
	Meta []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"meta"`
	Rows     int `json:"rows"`
	RowsRead int `json:"rows_read"` //nolint:tagliatelle // ClickHouse API uses snake_case
}

// ClientInterface defines the methods for reading from ClickHouse
type ClientInterface interface {
	// Query runs a SELECT and returns each row as a JSON object
	Query(ctx context.Context, query string) ([]json.RawMessage, error)
	// Execute runs a query and returns the raw response body
	Execute(ctx context.Context, query string) ([]byte, error)
	// Start verifies connectivity
	Start(ctx context.Context) error
	// Stop closes idle connections
	Stop() error
}

// client implements the ClientInterface using HTTP
type client struct {
	log          logrus.FieldLogger
	httpClient   *http.Client
	baseURL      string
	database     string
	username     string
	password     string
	debug        bool
	queryTimeout time.Duration
}

// NewClient creates a new HTTP-based ClickHouse client
func NewClient(log logrus.FieldLogger, cfg *Config) (ClientInterface, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.SetDefaults()

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     cfg.KeepAlive,
	}

	return &client{
		log:          log.WithField("component", "clickhouse-http"),
		httpClient:   &http.Client{Transport: transport},
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		database:     cfg.Database,
		username:     cfg.Username,
		password:     cfg.Password,
		debug:        cfg.Debug,
		queryTimeout: cfg.QueryTimeout,
	}, nil
}

func (c *client) Start(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := c.Execute(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	c.log.Info("Connected to ClickHouse HTTP interface")

	return nil
}

func (c *client) Stop() error {
	c.httpClient.CloseIdleConnections()

	c.log.Info("Closed ClickHouse HTTP client")

	return nil
}

func (c *client) Query(ctx context.Context, query string) ([]json.RawMessage, error) {
	body, err := c.do(ctx, strings.TrimRight(strings.TrimSpace(query), ";")+" FORMAT JSON")
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	var result response
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return result.Data, nil
}

func (c *client) Execute(ctx context.Context, query string) ([]byte, error) {
	body, err := c.do(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execution failed: %w", err)
	}

	return body, nil
}

// QueryMany runs query and decodes every row into T
func QueryMany[T any](ctx context.Context, c ClientInterface, query string) ([]T, error) {
	rows, err := c.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make([]T, len(rows))
	for i, row := range rows {
		if err := json.Unmarshal(row, &out[i]); err != nil {
			return nil, fmt.Errorf("failed to unmarshal row %d: %w", i, err)
		}
	}

	return out, nil
}

func (c *client) do(ctx context.Context, query string) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-ClickHouse-Format", "JSON")

	if c.database != "" {
		req.Header.Set("X-ClickHouse-Database", c.database)
	}

	if c.username != "" {
		req.Header.Set("X-ClickHouse-User", c.username)
		req.Header.Set("X-ClickHouse-Key", c.password)
	}

	if c.debug {
		c.log.WithField("query", query).Debug("Executing ClickHouse query")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.log.WithError(closeErr).Debug("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Exception string `json:"exception"`
		}

		if jsonErr := json.Unmarshal(body, &errorResp); jsonErr == nil && errorResp.Exception != "" {
			return nil, fmt.Errorf("%w (status %d): %s", ErrClickHouseResponse, resp.StatusCode, errorResp.Exception)
		}

		return nil, fmt.Errorf("%w (status %d): %s", ErrClickHouseResponse, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if c.debug && len(body) < 1000 {
		c.log.WithField("response", string(body)).Debug("ClickHouse response")
	}

	return body, nil
}
