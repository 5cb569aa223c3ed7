package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/forge/internal/apperr"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error            string            `json:"error"`
	Message          string            `json:"message"`
	Details          map[string]string `json:"details,omitempty"`
	ValidationErrors []string          `json:"validation_errors,omitempty"`
}

// readJSON decodes a JSON request body with a size limit. It writes the 400
// itself and returns false when the body is unusable.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, apperr.ErrValidation.Error(), "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, apperr.ErrValidation.Error(), "invalid request body: "+err.Error())
		}
		return v, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// statusFor maps an error's kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes err with its kind's status. Unclassified errors are
// logged and reported without their text.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, status, apperr.CodeInternal, "internal server error")
		return
	}
	writeJSON(w, status, errorResponse{
		Error:   apperr.Code(err),
		Message: err.Error(),
		Details: apperr.DetailsOf(err),
	})
}
