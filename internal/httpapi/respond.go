package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/service"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 64 << 10

type errorBody struct {
	Error      string            `json:"error"`
	Message    string            `json:"message"`
	Resolution *types.Resolution `json:"resolution,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

// errorStatus maps a workflow error to its HTTP status and machine code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrRequestNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, service.ErrNotOwner):
		return http.StatusForbidden, "not_owner"
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, service.ErrNotEligible):
		return http.StatusForbidden, "not_eligible"
	case errors.Is(err, service.ErrAlreadyResolved):
		return http.StatusConflict, "already_resolved"
	case errors.Is(err, service.ErrWrongStage):
		return http.StatusConflict, "wrong_stage"
	case errors.Is(err, service.ErrDeadlocked):
		return http.StatusConflict, "deadlocked"
	case errors.Is(err, service.ErrConflict):
		return http.StatusServiceUnavailable, "conflict"
	}
	return http.StatusInternalServerError, "internal_error"
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).WithError(err).Error("request failed")
		writeError(w, status, code, "unexpected server error")
		return
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, code, err.Error())
}

// decodeJSON reads a size-capped body, rejecting unknown fields, and runs
// struct validation.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", validationMessage(err))
		return false
	}
	return true
}
