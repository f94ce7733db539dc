// Package response writes the JSON responses of the wiki API.
//
// Every /api response is wrapped in an envelope: {"code": <http status>, "data": <payload>}.
// Errors carry a message instead of data.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/information-sharing-networks/wiki-harness/internal/logger"
)

// Envelope is the wrapper around every API payload.
type Envelope struct {
	Code    int    `json:"code" example:"200"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

// ErrorEnvelope documents the error shape for swaggo.
type ErrorEnvelope struct {
	Code      int    `json:"code" example:"401"`
	Data      any    `json:"data" swaggertype:"object"`
	Message   string `json:"message" example:"authentication required"`
	RequestID string `json:"requestId,omitempty"`
}

// Data sends payload wrapped in the API envelope.
func Data(w http.ResponseWriter, statusCode int, payload any) {
	JSON(w, statusCode, Envelope{Code: statusCode, Data: payload})
}

// Error sends an error envelope and logs the failure against the request.
// Server errors are logged at error level, everything else at warn.
func Error(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	reqLogger := logger.ContextRequestLogger(r.Context())
	attrs := []any{
		slog.Int("status_code", statusCode),
		slog.String("message", message),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	if statusCode >= http.StatusInternalServerError {
		reqLogger.Error("request failed", attrs...)
	} else {
		reqLogger.Warn("request failed", attrs...)
	}

	JSON(w, statusCode, ErrorEnvelope{
		Code:      statusCode,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// JSON sends payload as is.
func JSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			// headers are already written
			slog.Error("Failed to encode JSON response",
				slog.String("error", err.Error()),
			)
		}
	}
}
