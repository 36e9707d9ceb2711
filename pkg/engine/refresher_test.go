package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/cohorts/internal/testutil"
	"github.com/ethpandaops/cohorts/pkg/records"
	"github.com/ethpandaops/cohorts/pkg/refresh"
	"github.com/ethpandaops/cohorts/pkg/report"
	"github.com/ethpandaops/cohorts/pkg/store"
)

var errUpstream = errors.New("upstream unavailable")

type fakeFetcher struct {
	mu      sync.Mutex
	inputs  []records.InputRecord
	err     error
	block   chan struct{}
	entered chan struct{}
	calls   int
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) Fetch(ctx context.Context) ([]records.InputRecord, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.entered != nil {
		close(f.entered)
	}

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return f.inputs, f.err
}

type failingStore struct {
	store.Store
}

func (failingStore) Publish(context.Context, *report.Bundle) error {
	return errUpstream
}

func TestRefresher_Publishes(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewRefresher(logrus.New(), &fakeFetcher{inputs: testutil.Transactions()}, st, testutil.ReportConfig())

	require.NoError(t, r.Refresh(context.Background(), refresh.TriggerManual))

	bundle, err := st.Current(context.Background())
	require.NoError(t, err)
	assert.Len(t, bundle.Monthly, 2)
	assert.Equal(t, 4, bundle.Stats.Raw)
	assert.Equal(t, 1, bundle.Stats.Duplicates)
	assert.InDelta(t, 90.0, bundle.LTV.BasicLTV, 1e-9)
}

func TestRefresher_FailureKeepsPreviousBundle(t *testing.T) {
	previous := testutil.SampleBundle(t)

	tests := []struct {
		name    string
		fetcher *fakeFetcher
		config  report.Config
	}{
		{name: "fetch error", fetcher: &fakeFetcher{err: errUpstream}, config: testutil.ReportConfig()},
		{name: "invalid config", fetcher: &fakeFetcher{inputs: testutil.Transactions()}, config: report.Config{DateFormats: []string{"2006-01-02"}, ChurnThresholdDays: 180}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			require.NoError(t, st.Publish(context.Background(), previous))

			r := NewRefresher(logrus.New(), tt.fetcher, st, tt.config)
			require.Error(t, r.Refresh(context.Background(), refresh.TriggerSchedule))

			current, err := st.Current(context.Background())
			require.NoError(t, err)
			assert.Same(t, previous, current)
		})
	}
}

func TestRefresher_PublishError(t *testing.T) {
	r := NewRefresher(logrus.New(), &fakeFetcher{inputs: testutil.Transactions()}, failingStore{}, testutil.ReportConfig())

	err := r.Refresh(context.Background(), refresh.TriggerManual)
	require.ErrorIs(t, err, errUpstream)
}

func TestRefresher_CancelledBeforePublish(t *testing.T) {
	st := store.NewMemoryStore()
	fetcher := &fakeFetcher{
		inputs:  testutil.Transactions(),
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	r := NewRefresher(logrus.New(), fetcher, st, testutil.ReportConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Refresh(ctx, refresh.TriggerManual)
	}()

	<-fetcher.entered
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("refresh did not return after cancellation")
	}

	_, err := st.Current(context.Background())
	require.ErrorIs(t, err, store.ErrNoBundle)
}

func TestRefresher_InProgress(t *testing.T) {
	st := store.NewMemoryStore()
	fetcher := &fakeFetcher{
		inputs:  testutil.Transactions(),
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	r := NewRefresher(logrus.New(), fetcher, st, testutil.ReportConfig())

	done := make(chan error, 1)
	go func() {
		done <- r.Refresh(context.Background(), refresh.TriggerSchedule)
	}()

	<-fetcher.entered

	err := r.Refresh(context.Background(), refresh.TriggerManual)
	require.ErrorIs(t, err, ErrRefreshInProgress)
	require.ErrorIs(t, err, refresh.ErrInProgress)

	close(fetcher.block)
	require.NoError(t, <-done)

	_, err = st.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
}

func TestRefresher_HandlerTreatsInProgressAsDone(t *testing.T) {
	fetcher := &fakeFetcher{
		inputs:  testutil.Transactions(),
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	r := NewRefresher(logrus.New(), fetcher, store.NewMemoryStore(), testutil.ReportConfig())

	go func() {
		_ = r.Refresh(context.Background(), refresh.TriggerSchedule)
	}()
	<-fetcher.entered
	defer close(fetcher.block)

	task, err := refresh.NewTask(refresh.Payload{Trigger: refresh.TriggerManual})
	require.NoError(t, err)

	require.NoError(t, refresh.NewHandler(logrus.New(), r).ProcessTask(context.Background(), task))
}
