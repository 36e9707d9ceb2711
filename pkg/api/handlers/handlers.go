// Package handlers implements the request handlers of the cohorts API.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/cohorts/pkg/cohort"
	"github.com/ethpandaops/cohorts/pkg/period"
	"github.com/ethpandaops/cohorts/pkg/refresh"
	"github.com/ethpandaops/cohorts/pkg/report"
	"github.com/ethpandaops/cohorts/pkg/store"
)

// BundleReader returns the currently published bundle
type BundleReader interface {
	Current(ctx context.Context) (*report.Bundle, error)
}

// RefreshTrigger requests an asynchronous refresh
type RefreshTrigger interface {
	Enqueue(ctx context.Context, trigger string) (bool, error)
}

// Server holds the dependencies of the handlers
type Server struct {
	reader  BundleReader
	trigger RefreshTrigger
	log     logrus.FieldLogger
}

// NewServer creates a new API server instance
func NewServer(reader BundleReader, trigger RefreshTrigger, log logrus.FieldLogger) *Server {
	return &Server{
		reader:  reader,
		trigger: trigger,
		log:     log.WithField("component", "api.handlers"),
	}
}

// RegisterRoutes mounts the handlers on router
func (s *Server) RegisterRoutes(router fiber.Router) {
	router.Get("/reports", s.GetReports)
	router.Get("/reports/monthly", s.GetSummaries(period.Monthly))
	router.Get("/reports/weekly", s.GetSummaries(period.Weekly))
	router.Get("/reports/ltv", s.GetLTV)
	router.Post("/refresh", s.PostRefresh)
}

// SummariesResponse is the body of the per-granularity endpoints
type SummariesResponse struct {
	RunID       string           `json:"run_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	Granularity string           `json:"granularity"`
	Periods     []cohort.Summary `json:"periods"`
}

// LTVResponse is the body of the lifetime value endpoint
type LTVResponse struct {
	RunID       string             `json:"run_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Metrics     []report.MetricRow `json:"metrics"`
}

// RefreshResponse is the body of the refresh endpoint
type RefreshResponse struct {
	Status string `json:"status"`
}

// GetReports handles GET /api/v1/reports
func (s *Server) GetReports(c fiber.Ctx) error {
	bundle, err := s.current(c)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(bundle)
}

// GetSummaries handles GET /api/v1/reports/{monthly,weekly}. The format query
// parameter selects json (default) or csv.
func (s *Server) GetSummaries(granularity period.Granularity) fiber.Handler {
	return func(c fiber.Ctx) error {
		format := c.Query("format", "json")
		if format != "json" && format != "csv" {
			return ErrUnsupportedFormat
		}

		bundle, err := s.current(c)
		if err != nil {
			return err
		}

		summaries, err := bundle.Summaries(granularity)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if format == "csv" {
			var buf bytes.Buffer
			if err := report.WriteSummariesCSV(&buf, summaries); err != nil {
				return err
			}

			c.Set(fiber.HeaderContentType, "text/csv")
			c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+string(granularity)+`.csv"`)

			return c.Status(fiber.StatusOK).Send(buf.Bytes())
		}

		return c.Status(fiber.StatusOK).JSON(SummariesResponse{
			RunID:       bundle.RunID,
			GeneratedAt: bundle.GeneratedAt,
			Granularity: string(granularity),
			Periods:     summaries,
		})
	}
}

// GetLTV handles GET /api/v1/reports/ltv
func (s *Server) GetLTV(c fiber.Ctx) error {
	bundle, err := s.current(c)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(LTVResponse{
		RunID:       bundle.RunID,
		GeneratedAt: bundle.GeneratedAt,
		Metrics:     bundle.MetricRows(),
	})
}

// PostRefresh handles POST /api/v1/refresh
func (s *Server) PostRefresh(c fiber.Ctx) error {
	if s.trigger == nil {
		return ErrRefreshUnavailable
	}

	queued, err := s.trigger.Enqueue(c.Context(), refresh.TriggerManual)
	if err != nil {
		s.log.WithError(err).Error("Failed to enqueue refresh")
		return fiber.NewError(fiber.StatusServiceUnavailable, "failed to enqueue refresh")
	}

	status := "queued"
	if !queued {
		status = "already_queued"
	}

	return c.Status(fiber.StatusAccepted).JSON(RefreshResponse{Status: status})
}

func (s *Server) current(c fiber.Ctx) (*report.Bundle, error) {
	bundle, err := s.reader.Current(c.Context())
	if err != nil {
		if errors.Is(err, store.ErrNoBundle) {
			return nil, ErrNoReport
		}

		s.log.WithError(err).Error("Failed to read published bundle")

		return nil, err
	}

	return bundle, nil
}
