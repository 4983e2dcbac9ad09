package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/alem-hub/transcript-hub/internal/domain/shared"
	"github.com/alem-hub/transcript-hub/pkg/logger"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

// requestContext assigns a request ID, attaches a request-scoped logger and
// timeout to the user context, and logs the request when it completes.
func (s *Server) requestContext(c *fiber.Ctx) error {
	requestID := c.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(HeaderRequestID, requestID)

	reqLog := s.logger.WithRequestID(requestID)
	ctx := logger.WithContext(c.UserContext(), reqLog)
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}
	c.SetUserContext(ctx)

	start := time.Now()
	err := c.Next()
	if err != nil {
		// Let the error handler write the response so the logged status is final.
		if herr := s.app.ErrorHandler(c, err); herr != nil {
			return herr
		}
	}

	reqLog.Info("http request",
		logger.String("method", c.Method()),
		logger.String("path", c.Path()),
		logger.Int("status", c.Response().StatusCode()),
		logger.Latency(time.Since(start)),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

// Response is the JSON envelope of every API response.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func success(c *fiber.Ctx, code int, message string, data any) error {
	return c.Status(code).JSON(Response{Status: "success", Message: message, Data: data})
}

func failure(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(Response{Status: "error", Message: message})
}

// errorHandler maps domain error kinds to HTTP status codes.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return failure(c, fe.Code, fe.Message)
	}

	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		logger.FromContextOr(c.UserContext(), s.logger).Error("request failed", logger.Err(err))
	}
	return failure(c, code, messageFor(err, code))
}

func statusFor(err error) int {
	switch {
	case shared.IsAlreadyExists(err):
		return fiber.StatusConflict
	case shared.IsNotFound(err):
		return fiber.StatusNotFound
	case shared.IsValidation(err):
		return fiber.StatusBadRequest
	case shared.IsStorage(err):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func messageFor(err error, code int) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	if code == fiber.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}
