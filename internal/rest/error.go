package rest

import (
	"errors"
	"net/http"

	"github.com/pbinitiative/zenexec/internal/log"
	"github.com/pbinitiative/zenexec/pkg/bpmn"
	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenexec/pkg/storage"
)

type ApiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// writeEngineError maps engine errors to status codes. Lookups of unknown keys are
// checked first, the engine wraps them into its own error type.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var engineErr *bpmn.BpmnEngineError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, ApiError{Message: err.Error(), Type: "NOT_FOUND"})
	case errors.Is(err, bpmn.ErrTaskAlreadyClaimed), errors.Is(err, bpmn.ErrTaskHidden), errors.Is(err, bpmn.ErrConcurrentModification):
		writeError(w, r, http.StatusConflict, ApiError{Message: err.Error(), Type: "CONFLICT"})
	case errors.Is(err, runtime.ErrInvalidDefinition):
		writeError(w, r, http.StatusBadRequest, ApiError{Message: err.Error(), Type: "INVALID_DEFINITION"})
	case errors.As(err, &engineErr):
		writeError(w, r, http.StatusUnprocessableEntity, ApiError{Message: err.Error(), Type: "ENGINE_ERROR"})
	default:
		log.Errorf(r.Context(), "operator API request %s %s failed: %s", r.Method, r.URL.Path, err)
		writeError(w, r, http.StatusInternalServerError, ApiError{Message: err.Error(), Type: "ERROR"})
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, resp ApiError) {
	writeJson(w, status, resp)
}

// badRequest answers requests that do not match the API document.
func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusBadRequest, ApiError{Message: err.Error(), Type: "BAD_REQUEST"})
}
