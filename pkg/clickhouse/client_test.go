package clickhouse

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*Config)) ClientInterface {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &Config{URL: server.URL + "/"}
	for _, m := range mutate {
		m(cfg)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	c, err := NewClient(log, cfg)
	require.NoError(t, err)

	return c
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(logrus.New(), &Config{})
	require.ErrorIs(t, err, ErrURLRequired)
}

func TestClient_QueryMany(t *testing.T) {
	var gotQuery string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotQuery = string(body)

		assert.Equal(t, "sales", r.Header.Get("X-ClickHouse-Database"))
		assert.Equal(t, "reader", r.Header.Get("X-ClickHouse-User"))
		assert.Equal(t, "secret", r.Header.Get("X-ClickHouse-Key"))

		_, _ = io.WriteString(w, `{
			"meta": [{"name": "email", "type": "String"}, {"name": "value", "type": "Float64"}],
			"data": [{"email": "a@example.com", "value": 10.5}, {"email": "b@example.com", "value": 3}],
			"rows": 2,
			"rows_read": 2
		}`)
	}, func(cfg *Config) {
		cfg.Database = "sales"
		cfg.Username = "reader"
		cfg.Password = "secret"
	})

	type row struct {
		Email string  `json:"email"`
		Value float64 `json:"value"`
	}

	rows, err := QueryMany[row](context.Background(), c, "SELECT email, value FROM visits;")
	require.NoError(t, err)

	assert.Equal(t, "SELECT email, value FROM visits FORMAT JSON", gotQuery)
	assert.Equal(t, []row{{Email: "a@example.com", Value: 10.5}, {Email: "b@example.com", Value: 3}}, rows)
}

func TestClient_QueryManyEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"meta": [], "data": [], "rows": 0}`)
	})

	rows, err := QueryMany[map[string]any](context.Background(), c, "SELECT 1 WHERE 0")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "json exception",
			status:  http.StatusBadRequest,
			body:    `{"exception": "Code: 60. Table default.visits does not exist"}`,
			wantMsg: "Table default.visits does not exist",
		},
		{
			name:    "plain text error",
			status:  http.StatusInternalServerError,
			body:    "Code: 241. Memory limit exceeded\n",
			wantMsg: "Memory limit exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.Query(context.Background(), "SELECT 1")
			require.ErrorIs(t, err, ErrClickHouseResponse)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestClient_StartStop(t *testing.T) {
	var queries []string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		queries = append(queries, string(body))
		_, _ = io.WriteString(w, "1\n")
	})

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Stop())
	assert.Equal(t, []string{"SELECT 1"}, queries)
}

func TestClient_MalformedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "not json")
	})

	_, err := c.Query(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse response")
}
