package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"questguild/internal/apperr"
	"questguild/internal/worker"
)

type errorBody struct {
	Code     apperr.Code       `json:"code"`
	Kind     apperr.Kind       `json:"kind"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// respond waits for f and writes its value. An empty result is 204.
func respond[T any](s *Server, w http.ResponseWriter, r *http.Request, f *worker.Future[T]) {
	res := f.Wait(r.Context())
	switch res.Outcome {
	case worker.OutcomeErr:
		s.writeError(w, res.Err)
	case worker.OutcomeEmpty:
		w.WriteHeader(http.StatusNoContent)
	default:
		s.writeJSON(w, http.StatusOK, res.Value)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("server encode: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	body := errorBody{
		Code:    apperr.CodeOf(err),
		Kind:    apperr.KindOf(err),
		Message: err.Error(),
	}
	var de *apperr.Error
	if errors.As(err, &de) {
		body.Metadata = de.Metadata
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Printf("server: %v", err)
	}
	s.writeJSON(w, status, body)
}

func statusFor(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.CodeNotLoggedIn:
		return http.StatusUnauthorized
	case apperr.CodeTaskNotOwned, apperr.CodeEquipmentNotOwned, apperr.CodeGuildNotLeader:
		return http.StatusForbidden
	case apperr.CodeBusy, apperr.CodeShutdown:
		return http.StatusServiceUnavailable
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindPrecondition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
