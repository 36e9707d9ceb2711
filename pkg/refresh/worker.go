package refresh

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Service defines the public interface for the worker service
type Service interface {
	// Start initializes and starts the worker service
	Start(ctx context.Context) error

	// Stop gracefully shuts down the worker service
	Stop() error
}

// worker runs an Asynq server consuming the refresh queue
type worker struct {
	config   *Config
	log      logrus.FieldLogger
	redisOpt asynq.RedisConnOpt
	handler  *Handler
	server   *asynq.Server
}

// NewWorker creates a worker service
func NewWorker(log logrus.FieldLogger, cfg *Config, redisOpt asynq.RedisConnOpt, refresher Refresher) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &worker{
		config:   cfg,
		log:      log.WithField("service", "worker"),
		redisOpt: redisOpt,
		handler:  NewHandler(log, refresher),
	}, nil
}

// Start initializes and starts the worker service
func (w *worker) Start(_ context.Context) error {
	srv := asynq.NewServer(w.redisOpt, asynq.Config{
		Concurrency:     w.config.Concurrency,
		Queues:          map[string]int{w.config.Queue: 1},
		ShutdownTimeout: w.config.ShutdownTimeout,
		Logger:          newAsynqLogger(w.log),
	})

	mux := asynq.NewServeMux()
	for taskType, handler := range w.handler.Routes() {
		mux.Handle(taskType, handler)
	}

	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}

	w.server = srv

	w.log.WithFields(logrus.Fields{
		"queue":       w.config.Queue,
		"concurrency": w.config.Concurrency,
	}).Info("Worker service started successfully")

	return nil
}

// Stop gracefully shuts down the worker service
func (w *worker) Stop() error {
	if w.server != nil {
		w.server.Shutdown()
	}

	w.log.Info("Worker service stopped successfully")

	return nil
}

// asynqLogger forwards Asynq's internal logs to logrus
type asynqLogger struct {
	log logrus.FieldLogger
}

func newAsynqLogger(log logrus.FieldLogger) *asynqLogger {
	return &asynqLogger{log: log.WithField("component", "asynq")}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.log.Debug(args...) }
func (l *asynqLogger) Info(args ...interface{})  { l.log.Info(args...) }
func (l *asynqLogger) Warn(args ...interface{})  { l.log.Warn(args...) }
func (l *asynqLogger) Error(args ...interface{}) { l.log.Error(args...) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.log.Fatal(args...) }

// Ensure worker implements the interface
var _ Service = (*worker)(nil)
