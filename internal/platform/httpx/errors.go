// Package httpx provides HTTP response utilities.
package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/waa-mobile/waapos/internal/shared"
)

// ErrMalformedBody is returned when a request body cannot be decoded.
var ErrMalformedBody = errors.New("malformed request body")

// Status maps domain errors to an HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, shared.ErrValidation), errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrStockInsufficient), errors.Is(err, shared.ErrIdempotencyConflict):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Storage failures never leak driver detail to the client.
func RespondError(w http.ResponseWriter, err error) {
	status := Status(err)
	switch status {
	case http.StatusBadRequest:
		problem := ProblemDetail{Title: "Validation Failed", Status: status, Detail: err.Error()}
		var verr *shared.ValidationError
		if errors.As(err, &verr) {
			problem.Field = verr.Field
		}
		JSON(w, status, problem)
	case http.StatusUnauthorized:
		Problem(w, status, "Unauthorized", err.Error())
	case http.StatusForbidden:
		Problem(w, status, "Forbidden", err.Error())
	case http.StatusNotFound:
		Problem(w, status, "Not Found", err.Error())
	case http.StatusConflict:
		problem := ProblemDetail{Title: "Conflict", Status: status, Detail: err.Error()}
		var serr *shared.StockInsufficientError
		if errors.As(err, &serr) {
			problem.Title = "Insufficient Stock"
			problem.Item = serr.Item
			problem.Available = &serr.Available
		}
		JSON(w, status, problem)
	case http.StatusGatewayTimeout:
		Problem(w, status, "Timeout", "")
	default:
		Problem(w, status, "Internal Error", "the operation was not completed")
	}
}

// Fail logs err at a level matching its status and writes the problem response.
func Fail(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	if logger != nil {
		attrs := []any{slog.Any("error", err), slog.String("path", r.URL.Path)}
		if id := middleware.GetReqID(r.Context()); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
			attrs = append(attrs, slog.String("trace_id", sc.TraceID().String()))
		}
		if Status(err) >= http.StatusInternalServerError {
			logger.Error(op+" failed", attrs...)
		} else {
			logger.Warn(op+" rejected", attrs...)
		}
	}
	RespondError(w, err)
}
