package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"knowledgegpt-backend/internal/middleware"
	"knowledgegpt-backend/internal/models"
	"knowledgegpt-backend/internal/services"
	"knowledgegpt-backend/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

// handleServiceError maps session errors onto HTTP responses. Persistence
// failures never reach here; they travel as warnings in successful responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *session.ValidationError
		authErr       *session.AuthError
		modelErr      *session.ModelError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationErr.Fields, r))
	case errors.Is(err, session.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHENTICATED", "Please log in to continue", r))
	case errors.Is(err, session.ErrSessionNotFound):
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHENTICATED", "Session has ended, please log in again", r))
	case errors.As(err, &authErr):
		writeJSON(w, http.StatusUnauthorized, errorResp("AUTH_FAILED", authMessage(authErr), r))
	case errors.As(err, &modelErr):
		writeJSON(w, http.StatusBadGateway, errorResp("MODEL_ERROR", modelErr.Error(), r))
	case errors.Is(err, session.ErrAlreadyAuthenticated):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Session is already signed in", r))
	case errors.Is(err, session.ErrChatNotFound), errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Not found", r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}

// authMessage appends the provider's reason only when it is one of the known
// user-facing failures. Transport errors can carry request URLs and keys.
func authMessage(e *session.AuthError) string {
	if e.Err != nil && services.IsUserFacing(e.Err) {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}
