package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/pkg/core/services"
)

// APIError is the body of every error response
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]any    `json:"details,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	meta := map[string]string{}
	if id := requestIDFrom(r.Context()); id != "" {
		meta["request_id"] = id
	}
	writeJSON(w, status, APIError{
		Code:    code,
		Message: message,
		Details: details,
		Meta:    meta,
	})
}

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindConflict:
		return http.StatusConflict
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError maps a service error onto its HTTP status. Internal causes are logged, not returned.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	se := services.AsServiceError(err)
	status := statusFor(se.Kind)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err))
		writeAPIError(w, r, status, se.Code, se.Message, nil)
		return
	}
	writeAPIError(w, r, status, se.Code, se.Message, se.Details)
}
