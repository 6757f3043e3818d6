package errors

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"
)

type runIDKey struct{}

// WithRunID stores the run identifier used as the correlation id of envelopes
// created under ctx.
func WithRunID(ctx context.Context, runID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the run identifier stored in ctx, if any.
func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(runIDKey{}).(string)
	return value
}

// Error creation helpers for common error types

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope("INVALID_INPUT", message)
}

func NewConfigInvalidError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope("CONFIG_INVALID", message)
}

func NewDatabaseError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope("DATABASE_ERROR", message)
}

// WrapExternalService builds an EXTERNAL_SERVICE_ERROR envelope for a failed
// API call. err may be nil when the failure is a non-success status.
func WrapExternalService(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope("EXTERNAL_SERVICE_ERROR", message)
	envelope = envelope.WithCorrelationID(extractCorrelationID(ctx))
	envelope = withWrappedError(envelope, err)
	return envelope
}

// WrapDatabase builds a DATABASE_ERROR envelope for a failed journal
// operation.
func WrapDatabase(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	envelope := NewDatabaseError(message)
	envelope = envelope.WithCorrelationID(extractCorrelationID(ctx))
	return withWrappedError(envelope, err)
}

// FromStatus maps an unexpected API status to an envelope carrying the status
// code and response body.
func FromStatus(ctx context.Context, statusCode int, body string, message string) *errors.ErrorEnvelope {
	code := CodeFromHTTPStatus(statusCode)
	envelope := errors.NewErrorEnvelope(code, message)
	envelope = envelope.WithCorrelationID(extractCorrelationID(ctx))

	updated, err := envelope.WithContext(map[string]interface{}{
		"status_code": statusCode,
		"body":        body,
	})
	if err == nil {
		envelope = updated
	}
	if statusCode >= http.StatusInternalServerError {
		if withSeverity, err := envelope.WithSeverity(errors.SeverityHigh); err == nil {
			envelope = withSeverity
		}
	} else if withSeverity, err := envelope.WithSeverity(errors.SeverityMedium); err == nil {
		envelope = withSeverity
	}
	return envelope
}

// CodeFromHTTPStatus resolves the envelope code for an API response status.
func CodeFromHTTPStatus(statusCode int) string {
	switch statusCode {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		return "EXTERNAL_SERVICE_ERROR"
	}
}

// StatusCode returns the status_code context value of an envelope, or 0.
func StatusCode(err error) int {
	envelope, ok := err.(*errors.ErrorEnvelope)
	if !ok || envelope == nil || envelope.Context == nil {
		return 0
	}
	switch value := envelope.Context["status_code"].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	default:
		return 0
	}
}

// IsCode reports whether err is an envelope with the given code.
func IsCode(err error, code string) bool {
	envelope, ok := err.(*errors.ErrorEnvelope)
	return ok && envelope != nil && envelope.Code == code
}

// EnsureEnvelope normalizes any error into a gofulmen ErrorEnvelope.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		env := errors.NewErrorEnvelope("INTERNAL_ERROR", "unexpected nil error")
		env, _ = env.WithSeverity(errors.SeverityCritical)
		return env
	}

	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope
	}

	env := errors.NewErrorEnvelope("INTERNAL_ERROR", "unexpected error")
	env, _ = env.WithContext(map[string]interface{}{
		"wrapped_error": err.Error(),
	})
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

// extractCorrelationID uses the run id from ctx, falling back to a new UUID.
func extractCorrelationID(ctx context.Context) string {
	if runID := RunID(ctx); runID != "" {
		return runID
	}
	return uuid.New().String()
}

func withWrappedError(envelope *errors.ErrorEnvelope, err error) *errors.ErrorEnvelope {
	if envelope == nil || err == nil {
		return envelope
	}

	updated, updateErr := envelope.WithContext(map[string]interface{}{
		"wrapped_error": err.Error(),
	})
	if updateErr != nil {
		return envelope
	}
	return updated
}

// StatusDetail renders "<status> <body>" for a status envelope, falling back
// to the error text.
func StatusDetail(err error) string {
	if err == nil {
		return ""
	}
	envelope, ok := err.(*errors.ErrorEnvelope)
	if !ok || envelope == nil {
		return err.Error()
	}
	status := StatusCode(err)
	if status == 0 {
		if wrapped, ok := envelope.Context["wrapped_error"].(string); ok && wrapped != "" {
			return wrapped
		}
		return envelope.Message
	}
	body, _ := envelope.Context["body"].(string)
	return strings.TrimSpace(fmt.Sprintf("%d %s", status, body))
}
