// Package errors turns domain failures into gofulmen error envelopes and
// writes them as JSON API responses.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tilerelay/tilerelay/internal/fetch"
	"github.com/tilerelay/tilerelay/internal/iiif"
	"github.com/tilerelay/tilerelay/internal/metrics"
	"github.com/tilerelay/tilerelay/internal/observability"
	"github.com/tilerelay/tilerelay/internal/server/middleware"
)

// Envelope codes
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeNotFound            = "NOT_FOUND"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeManifestNotFound    = "MANIFEST_NOT_FOUND"
	CodeManifestUnavailable = "MANIFEST_UNAVAILABLE"
	CodeExternalService     = "EXTERNAL_SERVICE_ERROR"
	CodeTimeout             = "TIMEOUT"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeConfigInvalid       = "CONFIG_INVALID"
	CodeInternal            = "INTERNAL_ERROR"
)

var statusByCode = map[string]int{
	CodeInvalidInput:        http.StatusBadRequest,
	CodeNotFound:            http.StatusNotFound,
	CodeMethodNotAllowed:    http.StatusMethodNotAllowed,
	CodeManifestNotFound:    http.StatusNotFound,
	CodeManifestUnavailable: http.StatusBadGateway,
	CodeExternalService:     http.StatusBadGateway,
	CodeTimeout:             http.StatusGatewayTimeout,
	CodeServiceUnavailable:  http.StatusServiceUnavailable,
}

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

func NewServiceUnavailableError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeServiceUnavailable, message)
}

func NewConfigInvalidError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeConfigInvalid, message)
}

func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

// Wrap builds an envelope for err carrying the request correlation ID and
// any extra context.
func Wrap(ctx context.Context, code string, err error, message string, extra map[string]interface{}) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(code, message)
	id := correlationID(ctx)
	envelope = envelope.WithCorrelationID(id)
	envelope = envelope.WithTraceID(id)

	data := make(map[string]interface{}, len(extra)+1)
	for k, v := range extra {
		data[k] = v
	}
	if err != nil {
		data["wrapped_error"] = err.Error()
	}
	if len(data) > 0 {
		if updated, updateErr := envelope.WithContext(data); updateErr == nil {
			envelope = updated
		}
	}
	return envelope
}

// FromDomain maps resolution, fetch and context failures onto envelopes.
func FromDomain(ctx context.Context, err error) *errors.ErrorEnvelope {
	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		return envelope
	}

	var manifestErr *iiif.ManifestFetchError
	var statusErr *fetch.StatusError
	switch {
	case err == nil:
		return EnsureEnvelope(nil)
	case stderrors.Is(err, iiif.ErrNotFound):
		return Wrap(ctx, CodeManifestNotFound, err, "No IIIF manifest could be located for this URL", nil)
	case stderrors.Is(err, context.DeadlineExceeded):
		return Wrap(ctx, CodeTimeout, err, "Upstream did not answer in time", nil)
	case stderrors.As(err, &manifestErr):
		return Wrap(ctx, CodeManifestUnavailable, err, "The IIIF manifest could not be fetched or used",
			map[string]interface{}{"manifest_url": manifestErr.URL})
	case stderrors.As(err, &statusErr):
		return Wrap(ctx, CodeExternalService, err, "Upstream page could not be fetched",
			map[string]interface{}{"upstream_url": statusErr.URL, "upstream_status": statusErr.StatusCode})
	default:
		return Wrap(ctx, CodeInternal, err, "unexpected error", nil)
	}
}

func correlationID(ctx context.Context) string {
	if ctx != nil {
		if id := middleware.GetRequestID(ctx); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

// EnsureEnvelope normalizes any error into a gofulmen ErrorEnvelope.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		env := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error")
		env, _ = env.WithSeverity(errors.SeverityCritical)
		return env
	}

	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope
	}

	env := errors.NewErrorEnvelope(CodeInternal, "unexpected error")
	env, _ = env.WithContext(map[string]interface{}{
		"wrapped_error": err.Error(),
	})
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

// EnsureCorrelationID attaches a correlation ID from ctx when the envelope has none.
func EnsureCorrelationID(envelope *errors.ErrorEnvelope, ctx context.Context) *errors.ErrorEnvelope {
	if envelope == nil || envelope.CorrelationID != "" {
		return envelope
	}

	var id string
	if ctx != nil {
		id = middleware.GetRequestID(ctx)
	}
	if id == "" {
		id = "fallback-" + errors.GenerateCorrelationID()
	}
	return envelope.WithCorrelationID(id)
}

// HTTPStatusFromEnvelope resolves the HTTP status for an envelope.
func HTTPStatusFromEnvelope(envelope *errors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	return HTTPStatusFromCode(envelope.Code)
}

// HTTPStatusFromCode resolves the HTTP status for an envelope code.
func HTTPStatusFromCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ResponseDetails merges envelope details and context into one API-safe map.
func ResponseDetails(envelope *errors.ErrorEnvelope) map[string]interface{} {
	if envelope == nil {
		return nil
	}

	details := make(map[string]interface{}, len(envelope.Details)+len(envelope.Context))
	for key, value := range envelope.Details {
		details[key] = value
	}
	for key, value := range envelope.Context {
		if _, exists := details[key]; !exists {
			details[key] = value
		}
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// HTTPErrorDetail is the error body returned to callers.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HTTPErrorResponse wraps HTTPErrorDetail.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// RespondWithError maps err and writes it as a JSON error response.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	var ctx context.Context
	if r != nil {
		ctx = r.Context()
	}
	RespondWithEnvelope(w, r, FromDomain(ctx, err))
}

// RespondWithEnvelope logs, counts and writes envelope.
func RespondWithEnvelope(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope) {
	if w == nil {
		return
	}

	var ctx context.Context
	if r != nil {
		ctx = r.Context()
	}
	envelope = EnsureCorrelationID(envelope, ctx)
	statusCode := HTTPStatusFromEnvelope(envelope)

	logHTTPError(envelope, statusCode)
	metrics.RecordError(envelope.Code, statusCode)
	if r != nil {
		metrics.RecordErrorByEndpoint(r.URL.Path, envelope.Code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPErrorDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			Details:   ResponseDetails(envelope),
			RequestID: envelope.CorrelationID,
		},
	})
}

func logHTTPError(envelope *errors.ErrorEnvelope, statusCode int) {
	logger := observability.ServerLogger
	if logger == nil || envelope == nil {
		return
	}

	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", statusCode),
	}
	if envelope.Severity != "" {
		fields = append(fields, zap.String("severity", string(envelope.Severity)))
	}
	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}
	if envelope.CorrelationID != "" {
		fields = append(fields, zap.String("request_id", envelope.CorrelationID))
	}

	switch {
	case envelope.Severity == errors.SeverityCritical || envelope.Severity == errors.SeverityHigh:
		logger.Error(envelope.Message, fields...)
	case statusCode >= http.StatusInternalServerError || envelope.Severity == errors.SeverityMedium:
		logger.Warn(envelope.Message, fields...)
	default:
		logger.Info(envelope.Message, fields...)
	}
}
