package source

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/cohorts/pkg/records"
)

// SQLSource reads the snapshot from Postgres or MySQL/MariaDB
type SQLSource struct {
	log      logrus.FieldLogger
	db       *sql.DB
	driver   string
	query    string
	renderer *QueryRenderer
}

// NewSQLSource opens a connection pool for cfg.DSN. postgres:// and
// postgresql:// DSNs use pgx, mysql:// and mariadb:// use go-sql-driver.
func NewSQLSource(log logrus.FieldLogger, cfg SQLConfig, renderer *QueryRenderer) (*SQLSource, error) {
	driver, dsn, err := driverFor(cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return NewSQLSourceWithDB(log, db, driver, cfg.Query, renderer), nil
}

// NewSQLSourceWithDB creates a sql source on an existing pool
func NewSQLSourceWithDB(log logrus.FieldLogger, db *sql.DB, driver, query string, renderer *QueryRenderer) *SQLSource {
	return &SQLSource{
		log:      log.WithFields(logrus.Fields{"source": string(KindSQL), "driver": driver}),
		db:       db,
		driver:   driver,
		query:    query,
		renderer: renderer,
	}
}

// Name implements Source
func (s *SQLSource) Name() string {
	return string(KindSQL)
}

// Fetch implements Source
func (s *SQLSource) Fetch(ctx context.Context) ([]records.InputRecord, error) {
	query, err := s.renderer.Render(s.query)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.log.WithError(closeErr).Debug("Failed to close rows")
		}
	}()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	cols, err := mapColumns(columns)
	if err != nil {
		return nil, err
	}

	out := make([]records.InputRecord, 0)
	raw := make([]interface{}, len(columns))
	dest := make([]interface{}, len(columns))
	values := make([]string, len(columns))

	for i := range raw {
		dest[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, v := range raw {
			values[i] = stringify(v)
		}

		out = append(out, cols.record(values))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	s.log.WithField("rows", len(out)).Debug("Read sql snapshot")

	return out, nil
}

// Close implements Source
func (s *SQLSource) Close() error {
	return s.db.Close()
}

// driverFor picks the database/sql driver for a DSN and normalises URL style
// MySQL DSNs into the go-sql-driver format.
func driverFor(dsn string) (driver, dataSource string, err error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", dsn, nil
	case strings.HasPrefix(dsn, "mysql://"), strings.HasPrefix(dsn, "mariadb://"):
		converted, err := toMySQLDSN(dsn)
		if err != nil {
			return "", "", err
		}

		return "mysql", converted, nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedDSN, redact(dsn))
	}
}

func toMySQLDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.InterpolateParams = true

	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}

	if cfg.User == "" || cfg.Addr == "" || cfg.DBName == "" {
		return "", fmt.Errorf("%w: user, host and database are required", ErrUnsupportedDSN)
	}

	for key, vals := range u.Query() {
		if len(vals) == 0 {
			continue
		}

		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}

		cfg.Params[key] = vals[0]
	}

	return cfg.FormatDSN(), nil
}

func redact(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		return u.Redacted()
	}

	return dsn
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
