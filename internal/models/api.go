package models

import (
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by document stores when a document does not exist.
var ErrNotFound = errors.New("document not found")

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Event is pushed to a session's WebSocket connections after its state changes.
type Event struct {
	Type      string      `json:"type"`
	SessionID uuid.UUID   `json:"session_id"`
	Payload   interface{} `json:"payload"`
}

const (
	EventMessageAppended     = "message_appended"
	EventChatSaved           = "chat_saved"
	EventPersistenceWarning  = "persistence_warning"
	EventFlashcardsGenerated = "flashcards_generated"
	EventFeatureToggled      = "feature_toggled"
	EventFeedbackRecorded    = "feedback_recorded"
)

// ErrInvalidInput marks errors caused by unusable user input, such as an
// unsupported file type or a malformed video URL.
var ErrInvalidInput = errors.New("invalid input")
