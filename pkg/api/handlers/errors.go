package handlers

import "github.com/gofiber/fiber/v3"

// ErrNoReport is returned when no bundle has been published yet
var ErrNoReport = fiber.NewError(fiber.StatusNotFound, "no report has been published yet")

// ErrRefreshUnavailable is returned when the service was started without a refresh queue
var ErrRefreshUnavailable = fiber.NewError(fiber.StatusServiceUnavailable, "refresh is not available")

// ErrUnsupportedFormat is returned for an unknown format query parameter
var ErrUnsupportedFormat = fiber.NewError(fiber.StatusBadRequest, "unsupported format, expected json or csv")
