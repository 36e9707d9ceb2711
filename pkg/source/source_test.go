package source

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/cohorts/pkg/clickhouse"
	"github.com/ethpandaops/cohorts/pkg/records"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:   "csv",
			config: Config{Kind: KindCSV, CSV: CSVConfig{Path: "visits.csv"}},
		},
		{
			name:    "csv without path",
			config:  Config{Kind: KindCSV},
			wantErr: ErrPathRequired,
		},
		{
			name: "clickhouse",
			config: Config{Kind: KindClickHouse, ClickHouse: ClickHouseConfig{
				Config: clickhouse.Config{URL: "http://localhost:8123"},
				Query:  "SELECT * FROM visits",
			}},
		},
		{
			name: "clickhouse without query",
			config: Config{Kind: KindClickHouse, ClickHouse: ClickHouseConfig{
				Config: clickhouse.Config{URL: "http://localhost:8123"},
			}},
			wantErr: ErrQueryRequired,
		},
		{
			name:    "clickhouse without url",
			config:  Config{Kind: KindClickHouse, ClickHouse: ClickHouseConfig{Query: "SELECT 1"}},
			wantErr: clickhouse.ErrURLRequired,
		},
		{
			name:   "postgres",
			config: Config{Kind: KindSQL, SQL: SQLConfig{DSN: "postgres://u:p@localhost/db", Query: "SELECT 1"}},
		},
		{
			name:    "sql without dsn",
			config:  Config{Kind: KindSQL, SQL: SQLConfig{Query: "SELECT 1"}},
			wantErr: ErrDSNRequired,
		},
		{
			name:    "sql with unsupported scheme",
			config:  Config{Kind: KindSQL, SQL: SQLConfig{DSN: "sqlite://file.db", Query: "SELECT 1"}},
			wantErr: ErrUnsupportedDSN,
		},
		{
			name:    "unknown kind",
			config:  Config{Kind: "salesforce"},
			wantErr: ErrUnknownKind,
		},
		{
			name:    "invalid since",
			config:  Config{Kind: KindCSV, Since: "yesterday", CSV: CSVConfig{Path: "visits.csv"}},
			wantErr: ErrInvalidSince,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNew(t *testing.T) {
	src, err := New(testLogger(), &Config{Kind: KindCSV, CSV: CSVConfig{Path: "visits.csv"}})
	require.NoError(t, err)
	assert.Equal(t, "csv", src.Name())
	require.NoError(t, src.Close())

	src, err = New(testLogger(), &Config{Kind: KindSQL, SQL: SQLConfig{
		DSN:   "mariadb://reader:secret@db:3306/bookings",
		Query: "SELECT * FROM visits",
	}})
	require.NoError(t, err)
	assert.Equal(t, "sql", src.Name())
	require.NoError(t, src.Close())

	_, err = New(testLogger(), &Config{Kind: "ftp"})
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		delimiter string
		want      []records.InputRecord
		wantErr   error
	}{
		{
			name: "canonical headers",
			input: "record_id,email,customer_id,visit_date,purchase_value\n" +
				"b1,a@example.com,c1,2024-01-05,10.50\n",
			want: []records.InputRecord{
				{RecordID: "b1", Email: "a@example.com", CustomerID: "c1", VisitDate: "2024-01-05", PurchaseValue: "10.50"},
			},
		},
		{
			name: "crm export headers without record id",
			input: "Bnow__Customer_Email__c,Bnow__All_Products_Processed__c,Bnow__Balance_Paid__c,Bnow__Customer_ID__c\n" +
				"a@example.com,2024-01-05T10:00:00.000+0000,,c1\n",
			want: []records.InputRecord{
				{Email: "a@example.com", CustomerID: "c1", VisitDate: "2024-01-05T10:00:00.000+0000"},
			},
		},
		{
			name:      "semicolon delimited with spaced headers",
			input:     "Customer Email; Customer-ID; Visit Date; Amount\na@example.com; c1; 2024-01-05; 3\n",
			delimiter: ";",
			want: []records.InputRecord{
				{Email: "a@example.com", CustomerID: "c1", VisitDate: "2024-01-05", PurchaseValue: "3"},
			},
		},
		{
			name:  "short rows leave missing fields empty",
			input: "email,customer_id,visit_date,purchase_value\na@example.com,c1\n",
			want: []records.InputRecord{
				{Email: "a@example.com", CustomerID: "c1"},
			},
		},
		{
			name:    "missing required column",
			input:   "email,customer_id,purchase_value\na@example.com,c1,3\n",
			wantErr: ErrMissingColumn,
		},
		{
			name:      "multi character delimiter",
			input:     "email\n",
			delimiter: "||",
			wantErr:   ErrInvalidDelimiter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadCSV(context.Background(), strings.NewReader(tt.input), tt.delimiter)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCSVSource_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visits.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"email,customer_id,visit_date,purchase_value\n"+
			"a@example.com,c1,2024-01-05,10\n"+
			"b@example.com,c2,2024-02-01,5\n",
	), 0o600))

	src := NewCSVSource(testLogger(), CSVConfig{Path: path})

	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b@example.com", got[1].Email)

	_, err = NewCSVSource(testLogger(), CSVConfig{Path: filepath.Join(t.TempDir(), "missing.csv")}).Fetch(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestQueryRenderer(t *testing.T) {
	r := NewQueryRenderer(time.Date(2023, time.August, 28, 0, 0, 0, 0, time.UTC))
	r.now = func() time.Time { return time.Date(2024, time.March, 13, 15, 30, 0, 0, time.UTC) }

	got, err := r.Render(`SELECT * FROM visits WHERE visit_date >= '{{ .since }}' AND visit_date < '{{ .until }}' AND site = {{ "Jungle World" | squote }}`)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM visits WHERE visit_date >= '2023-08-28 00:00:00' AND visit_date < '2024-03-14 00:00:00' AND site = 'Jungle World'`, got)

	got, err = NewQueryRenderer(time.Time{}).Render("{{ .since_date }}")
	require.NoError(t, err)
	assert.Equal(t, "1970-01-01", got)

	_, err = r.Render("{{ .unknown }}")
	require.Error(t, err)

	_, err = r.Render("{{ .since ")
	require.Error(t, err)
}

func TestDriverFor(t *testing.T) {
	tests := []struct {
		name       string
		dsn        string
		wantDriver string
		wantDSN    string
		wantErr    error
	}{
		{
			name:       "postgres",
			dsn:        "postgres://u:p@localhost:5432/db?sslmode=disable",
			wantDriver: "pgx",
			wantDSN:    "postgres://u:p@localhost:5432/db?sslmode=disable",
		},
		{
			name:       "postgresql",
			dsn:        "postgresql://u:p@localhost/db",
			wantDriver: "pgx",
			wantDSN:    "postgresql://u:p@localhost/db",
		},
		{
			name:       "mariadb url",
			dsn:        "mariadb://reader:secret@db:3306/bookings",
			wantDriver: "mysql",
		},
		{
			name:    "mysql without database",
			dsn:     "mysql://reader:secret@db:3306/",
			wantErr: ErrUnsupportedDSN,
		},
		{
			name:    "unknown scheme",
			dsn:     "sqlserver://u:p@db",
			wantErr: ErrUnsupportedDSN,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, dsn, err := driverFor(tt.dsn)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.NotContains(t, err.Error(), "secret")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantDriver, driver)

			if driver != "mysql" {
				assert.Equal(t, tt.wantDSN, dsn)
				return
			}

			parsed, err := mysql.ParseDSN(dsn)
			require.NoError(t, err)
			assert.Equal(t, "reader", parsed.User)
			assert.Equal(t, "secret", parsed.Passwd)
			assert.Equal(t, "tcp", parsed.Net)
			assert.Equal(t, "db:3306", parsed.Addr)
			assert.Equal(t, "bookings", parsed.DBName)
			assert.True(t, parsed.ParseTime)
			assert.True(t, parsed.InterpolateParams)
		})
	}
}

func TestStringify(t *testing.T) {
	at := time.Date(2024, time.January, 5, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "", stringify(nil))
	assert.Equal(t, "12.50", stringify([]byte("12.50")))
	assert.Equal(t, "abc", stringify("abc"))
	assert.Equal(t, "2024-01-05T10:00:00Z", stringify(at))
	assert.Equal(t, "42", stringify(int64(42)))
	assert.Equal(t, "1.5", stringify(1.5))
	assert.Equal(t, "true", stringify(true))
}

func TestFlexString(t *testing.T) {
	var row map[string]flexString
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x","b":12.5,"c":null,"d":7}`), &row))

	assert.Equal(t, flexString("x"), row["a"])
	assert.Equal(t, flexString("12.5"), row["b"])
	assert.Equal(t, flexString(""), row["c"])
	assert.Equal(t, flexString("7"), row["d"])

	require.Error(t, json.Unmarshal([]byte(`{"a":[1]}`), &row))
}

type fakeClickHouse struct {
	rows    []json.RawMessage
	queries []string
	stopped bool
}

func (f *fakeClickHouse) Query(_ context.Context, query string) ([]json.RawMessage, error) {
	f.queries = append(f.queries, query)
	return f.rows, nil
}

func (f *fakeClickHouse) Execute(_ context.Context, _ string) ([]byte, error) {
	return nil, nil
}

func (f *fakeClickHouse) Start(_ context.Context) error {
	return nil
}

func (f *fakeClickHouse) Stop() error {
	f.stopped = true
	return nil
}

func TestClickHouseSource_Fetch(t *testing.T) {
	client := &fakeClickHouse{rows: []json.RawMessage{
		json.RawMessage(`{"email":"a@example.com","customer_id":"c1","visit_date":"2024-01-05 10:00:00","purchase_value":10.5}`),
		json.RawMessage(`{"email":"b@example.com","customer_id":null,"visit_date":"2024-02-01 00:00:00","purchase_value":"5"}`),
	}}

	src := NewClickHouseSourceWithClient(testLogger(), client, "SELECT * FROM visits WHERE visit_date >= '{{ .since }}'",
		NewQueryRenderer(time.Date(2023, time.August, 28, 0, 0, 0, 0, time.UTC)))

	got, err := src.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"SELECT * FROM visits WHERE visit_date >= '2023-08-28 00:00:00'"}, client.queries)
	assert.Equal(t, []records.InputRecord{
		{Email: "a@example.com", CustomerID: "c1", VisitDate: "2024-01-05 10:00:00", PurchaseValue: "10.5"},
		{Email: "b@example.com", VisitDate: "2024-02-01 00:00:00", PurchaseValue: "5"},
	}, got)

	require.NoError(t, src.Close())
	assert.True(t, client.stopped)
}

func TestClickHouseSource_FetchEmpty(t *testing.T) {
	src := NewClickHouseSourceWithClient(testLogger(), &fakeClickHouse{}, "SELECT 1", NewQueryRenderer(time.Time{}))

	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
