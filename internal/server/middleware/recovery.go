package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/tilerelay/tilerelay/internal/metrics"
	"github.com/tilerelay/tilerelay/internal/observability"
)

// Recovery turns a handler panic into a critical INTERNAL_ERROR envelope.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			envelope := errors.NewErrorEnvelope("INTERNAL_ERROR", fmt.Sprintf("panic: %v", rec)).
				WithCorrelationID(GetRequestID(r.Context()))
			envelope, _ = envelope.WithSeverity(errors.SeverityCritical)

			metrics.RecordPanic()
			if observability.ServerLogger != nil {
				observability.ServerLogger.Error("Recovered from panic",
					zap.String("path", r.URL.Path),
					zap.String("request_id", envelope.CorrelationID),
					zap.String("stack_trace", string(debug.Stack())))
			}

			// errors imports this package, so the body is written here
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{
					"code":       envelope.Code,
					"message":    envelope.Message,
					"request_id": envelope.CorrelationID,
				},
			})
		}()

		next.ServeHTTP(w, r)
	})
}
