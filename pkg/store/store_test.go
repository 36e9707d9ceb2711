package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/cohorts/internal/testutil"
	"github.com/ethpandaops/cohorts/pkg/cohort"
	"github.com/ethpandaops/cohorts/pkg/period"
	"github.com/ethpandaops/cohorts/pkg/report"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	return testutil.NewMiniredisClient(t)
}

func testBundle(runID string) *report.Bundle {
	jan := time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)

	return &report.Bundle{
		RunID:       runID,
		GeneratedAt: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
		Monthly: []cohort.Summary{{
			Period:             period.Month(jan),
			TotalCustomers:     1,
			NewCustomers:       1,
			NewPercentage:      100,
			TotalRevenue:       decimal.RequireFromString("10.50"),
			NewCustomerRevenue: decimal.RequireFromString("10.50"),
		}},
		Weekly: []cohort.Summary{{
			Period:         period.Week(jan),
			TotalCustomers: 1,
			NewCustomers:   1,
		}},
	}
}

func assertSameBundle(t *testing.T, want, got *report.Bundle) {
	t.Helper()

	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)

	gotJSON, err := json.Marshal(got)
	require.NoError(t, err)

	assert.JSONEq(t, string(wantJSON), string(gotJSON))
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, (&Config{Backend: BackendMemory}).Validate())
	require.NoError(t, (&Config{Backend: BackendRedis}).Validate())
	require.ErrorIs(t, (&Config{Backend: "s3"}).Validate(), ErrUnknownBackend)
}

func TestNew(t *testing.T) {
	_, client := setupTestRedis(t)

	s, err := New(&Config{Backend: BackendMemory}, nil, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(&Config{Backend: BackendRedis}, client, "cohorts:bundle")
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)

	_, err = New(&Config{Backend: BackendRedis}, nil, "cohorts:bundle")
	require.ErrorIs(t, err, ErrRedisClientRequired)

	_, err = New(&Config{Backend: "s3"}, client, "cohorts:bundle")
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestStores(t *testing.T) {
	_, client := setupTestRedis(t)

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client, "cohorts:bundle"),
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Current(ctx)
			require.ErrorIs(t, err, ErrNoBundle)

			require.ErrorIs(t, s.Publish(ctx, nil), ErrNilBundle)

			first := testBundle("run-1")
			require.NoError(t, s.Publish(ctx, first))

			got, err := s.Current(ctx)
			require.NoError(t, err)
			assertSameBundle(t, first, got)

			second := testBundle("run-2")
			require.NoError(t, s.Publish(ctx, second))

			got, err = s.Current(ctx)
			require.NoError(t, err)
			assert.Equal(t, "run-2", got.RunID)
		})
	}
}

func TestRedisStore_RoundTripPreservesPeriods(t *testing.T) {
	_, client := setupTestRedis(t)
	s := NewRedisStore(client, "cohorts:bundle")
	ctx := context.Background()

	bundle := testBundle("run-1")
	require.NoError(t, s.Publish(ctx, bundle))

	got, err := s.Current(ctx)
	require.NoError(t, err)

	require.Len(t, got.Monthly, 1)
	assert.Equal(t, bundle.Monthly[0].Period, got.Monthly[0].Period)
	assert.Equal(t, bundle.Weekly[0].Period, got.Weekly[0].Period)
	assert.True(t, bundle.Monthly[0].TotalRevenue.Equal(got.Monthly[0].TotalRevenue))

	// unchanged payload is served from the decoded cache
	again, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Same(t, got, again)
}

func TestRedisStore_Errors(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := NewRedisStore(client, "cohorts:bundle")
	ctx := context.Background()

	require.NoError(t, mr.Set("cohorts:bundle", "{not json"))
	_, err := s.Current(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode bundle")

	mr.Close()
	_, err = s.Current(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoBundle)
}

func TestMemoryStore_ConcurrentReaders(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Publish(ctx, testBundle("run-0")))

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				b, err := s.Current(ctx)
				assert.NoError(t, err)
				assert.Len(t, b.Monthly, 1)
			}
		}()
	}

	for i := 0; i < 100; i++ {
		require.NoError(t, s.Publish(ctx, testBundle("run-n")))
	}

	wg.Wait()
}
