package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // pprof is intentionally exposed when pprofAddr is configured
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/cohorts/pkg/api"
	"github.com/ethpandaops/cohorts/pkg/observability"
	"github.com/ethpandaops/cohorts/pkg/refresh"
	"github.com/ethpandaops/cohorts/pkg/scheduler"
	"github.com/ethpandaops/cohorts/pkg/source"
	"github.com/ethpandaops/cohorts/pkg/store"
)

// Service runs the long-lived cohorts server
type Service struct {
	config *Config
	log    logrus.FieldLogger

	source    source.Source
	store     store.Store
	refresher *Refresher
	queue     *refresh.Queue

	asynqClient *asynq.Client
	worker      refresh.Service
	scheduler   scheduler.Service
	api         api.Service

	// Servers
	healthServer *http.Server
	pprofServer  *http.Server

	redisClient *redis.Client
}

// NewService wires all components from cfg
func NewService(log logrus.FieldLogger, cfg *Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	redisOptions, err := cfg.Redis.Options()
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisClient, asynqOpt, err := cfg.Redis.NewClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client: %w", err)
	}

	src, err := source.New(log, &cfg.Source)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to create source: %w", err)
	}

	st, err := store.New(&cfg.Store, redisClient, cfg.Redis.PrefixKey(cfg.Store.Key))
	if err != nil {
		_ = redisClient.Close()
		_ = src.Close()
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	refreshCfg := cfg.Refresh
	refreshCfg.Queue = cfg.Redis.PrefixQueue(cfg.Refresh.Queue)

	schedulerCfg := cfg.Scheduler
	schedulerCfg.LeaderKey = cfg.Redis.PrefixKey(cfg.Scheduler.LeaderKey)

	refresher := NewRefresher(log, src, st, cfg.Report)

	workerService, err := refresh.NewWorker(log, &refreshCfg, asynqOpt, refresher)
	if err != nil {
		_ = redisClient.Close()
		_ = src.Close()
		return nil, fmt.Errorf("failed to create refresh worker: %w", err)
	}

	schedulerService, err := scheduler.NewService(log, &schedulerCfg, redisOptions, &refreshCfg)
	if err != nil {
		_ = redisClient.Close()
		_ = src.Close()
		return nil, fmt.Errorf("failed to create scheduler service: %w", err)
	}

	asynqClient := asynq.NewClient(asynqOpt)
	queue := refresh.NewQueue(log, asynqClient, &refreshCfg)

	return &Service{
		log:    log.WithField("service", "engine"),
		config: cfg,

		redisClient: redisClient,
		source:      src,
		store:       st,
		refresher:   refresher,
		queue:       queue,
		asynqClient: asynqClient,
		worker:      workerService,
		scheduler:   schedulerService,
		api:         api.NewService(&cfg.API, st, queue, log),
	}, nil
}

// Refresher returns the refresher used by the worker
func (a *Service) Refresher() *Refresher {
	return a.refresher
}

// Start starts every component
func (a *Service) Start(ctx context.Context) error {
	a.log.Info("Starting cohorts engine...")

	observability.StartMetricsServer(a.log, a.config.MetricsAddr)

	if a.config.HealthCheckAddr != "" {
		a.startHealthCheck()
	}

	if a.config.PProfAddr != "" {
		a.startPProf()
	}

	if err := a.redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if err := a.worker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start refresh worker: %w", err)
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if err := a.api.Start(ctx); err != nil {
		return fmt.Errorf("failed to start API service: %w", err)
	}

	if a.config.RefreshOnStart {
		if _, err := a.queue.Enqueue(ctx, refresh.TriggerStartup); err != nil {
			a.log.WithError(err).Warn("Failed to enqueue startup refresh")
		}
	}

	a.log.Info("Cohorts engine started successfully")

	return nil
}

// Stop gracefully shuts down every component
func (a *Service) Stop() error {
	a.log.Info("Shutting down engine...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopService := func(name string, stopFunc func() error) {
		if stopFunc == nil {
			return
		}
		if err := stopFunc(); err != nil {
			a.log.WithError(err).Errorf("Failed to stop %s", name)
		}
	}

	// 1. Stop scheduler first (stop creating new tasks)
	if a.scheduler != nil {
		stopService("scheduler service", a.scheduler.Stop)
	}

	// 2. Stop API (stop accepting manual refreshes)
	if a.api != nil {
		stopService("API service", a.api.Stop)
	}

	// 3. Stop worker (finish in-flight refresh)
	if a.worker != nil {
		stopService("refresh worker", a.worker.Stop)
	}

	if a.asynqClient != nil {
		stopService("asynq client", a.asynqClient.Close)
	}

	if a.source != nil {
		stopService("source", a.source.Close)
	}

	// 4. Close Redis (now safe, nothing is using it)
	if a.redisClient != nil {
		stopService("Redis client", a.redisClient.Close)
	}

	if a.healthServer != nil {
		stopService("health check server", func() error { return a.healthServer.Shutdown(ctx) })
	}
	if a.pprofServer != nil {
		stopService("pprof server", func() error { return a.pprofServer.Shutdown(ctx) })
	}

	stopService("metrics server", func() error { return observability.StopMetricsServer(ctx) })

	return nil
}

func (a *Service) healthHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Ready once Redis answers; the report itself may still be computing.
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := a.redisClient.Ping(r.Context()).Err(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("redis unavailable"))

			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return mux
}

func (a *Service) startHealthCheck() {
	a.log.WithField("addr", a.config.HealthCheckAddr).Info("Starting health check server")

	a.healthServer = &http.Server{
		Addr:              a.config.HealthCheckAddr,
		Handler:           a.healthHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := a.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("Health check server failed")
		}
	}()
}

func (a *Service) startPProf() {
	a.log.WithField("addr", a.config.PProfAddr).Info("Starting pprof server")

	a.pprofServer = &http.Server{
		Addr:              a.config.PProfAddr,
		ReadHeaderTimeout: 120 * time.Second,
	}

	go func() {
		if err := a.pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("Pprof server failed")
		}
	}()
}
