package httpapi

import (
	"encoding/json"
	"net/http"

	"inferd/internal/coordinator"
	"inferd/internal/engine"
	"inferd/internal/supervisor"
	"inferd/pkg/types"
)

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeServiceError maps the typed coordinator/supervisor/engine errors to
// HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("busy")
	}
	writeJSONError(w, status, err.Error())
}

func statusForError(err error) int {
	switch {
	case coordinator.IsModelNotFound(err):
		return http.StatusNotFound
	case coordinator.IsInvalidRequest(err):
		return http.StatusBadRequest
	case coordinator.IsNotReady(err):
		return http.StatusConflict
	case coordinator.IsBusy(err):
		return http.StatusTooManyRequests
	case engine.IsUnavailable(err):
		return http.StatusServiceUnavailable
	case supervisor.IsTimeout(err):
		return http.StatusGatewayTimeout
	case supervisor.IsRepetition(err):
		return http.StatusBadGateway
	case coordinator.IsConstruction(err), coordinator.IsLoadFailed(err), coordinator.IsGeneration(err):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
