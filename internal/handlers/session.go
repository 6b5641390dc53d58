package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"knowledgegpt-backend/internal/middleware"
	"knowledgegpt-backend/internal/models"
	"knowledgegpt-backend/internal/session"
)

// SessionHandler exposes the operations of the caller's session controller.
type SessionHandler struct {
	sessions       Sessions
	uploadMaxBytes int64
	logger         *zap.Logger
}

func NewSessionHandler(sessions Sessions, uploadMaxBytes int64, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, uploadMaxBytes: uploadMaxBytes, logger: logger.Named("session")}
}

// controller resolves the session named by the request's token. It writes
// the error response itself when the session is gone.
func (h *SessionHandler) controller(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	claims := middleware.GetSession(r.Context())
	if claims == nil {
		handleServiceError(w, r, session.ErrNotAuthenticated)
		return nil, false
	}

	c, err := h.sessions.Get(r.Context(), claims.SessionID)
	if err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) {
			h.logger.Error("session lookup failed", zap.String("session_id", claims.SessionID.String()), zap.Error(err))
		}
		handleServiceError(w, r, err)
		return nil, false
	}
	return c, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return false
	}
	return true
}

func (h *SessionHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	snap, err := c.Snapshot(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *SessionHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	var req models.PostMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	reply, err := c.PostMessage(r.Context(), req.Text)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	messages, err := c.Messages(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.PostMessageResponse{Reply: reply, Messages: messages})
}

func (h *SessionHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	names, err := c.Archive(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chats": names})
}

func (h *SessionHandler) SaveChat(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	var req models.SaveChatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := c.SaveChat(r.Context(), req.Name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := models.SaveChatResponse{
		ChatName:     result.ChatName,
		MessageCount: result.MessageCount,
		Persisted:    result.Persisted,
		RetryQueued:  result.RetryQueued,
	}
	if result.Warning != nil {
		resp.Warning = result.Warning.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *SessionHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	// chi matches on RawPath when the request carried escapes such as %2F.
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	messages, err := c.ArchivedChat(r.Context(), name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ArchivedChat{Name: name, Messages: messages})
}

func (h *SessionHandler) GenerateFlashcards(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	var req models.GenerateFlashcardsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := c.GenerateFlashcards(r.Context(), req.Topic)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := models.GenerateFlashcardsResponse{Flashcards: result.Cards, Current: result.Current}
	if result.Warning != nil {
		resp.Warning = result.Warning.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) CurrentFlashcard(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	view, found, err := c.CurrentFlashcard(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeFlashcard(w, view, found)
}

func (h *SessionHandler) NextFlashcard(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	view, found, err := c.NextFlashcard(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeFlashcard(w, view, found)
}

// writeFlashcard reports an empty set as a null card rather than an error.
func writeFlashcard(w http.ResponseWriter, view models.FlashcardView, found bool) {
	var current *models.FlashcardView
	if found {
		current = &view
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"flashcard": current})
}

func (h *SessionHandler) Safety(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	report, err := c.ComputeSafety(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *SessionHandler) Features(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	enabled, err := c.Features(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	on := make(map[session.Feature]bool, len(enabled))
	for _, f := range enabled {
		on[f] = true
	}
	states := make([]models.FeatureState, 0, len(session.AllFeatures))
	for _, f := range session.AllFeatures {
		states = append(states, models.FeatureState{Feature: string(f), Enabled: on[f]})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"features": states})
}

func (h *SessionHandler) ToggleFeature(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	feature := chi.URLParam(r, "feature")
	enabled, err := c.Toggle(r.Context(), feature)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.FeatureState{Feature: feature, Enabled: enabled})
}

func (h *SessionHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	feedback, err := c.Feedback(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.FeedbackResponse{Feedback: feedback})
}

func (h *SessionHandler) RecordFeedback(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	var req models.FeedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}

	feedback, err := c.RecordFeedback(r.Context(), req.Text)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.FeedbackResponse{Feedback: feedback})
}

func (h *SessionHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	var req models.SummarizeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	summary, err := c.Summarize(r.Context(), req.Text)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SummarizeResponse{Summary: summary})
}

func (h *SessionHandler) SummarizeUpload(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxBytes)
	if err := r.ParseMultipartForm(h.uploadMaxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "Uploaded file is too large", r))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Expected a multipart form upload", r))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"file": "is required"}, r))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Failed to read uploaded file", r))
		return
	}

	summary, err := c.SummarizeDocument(r.Context(), header.Filename, data)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SummarizeResponse{Summary: summary})
}

func (h *SessionHandler) SummarizeVideo(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	var req models.SummarizeVideoRequest
	if !decodeBody(w, r, &req) {
		return
	}

	summary, err := c.SummarizeVideo(r.Context(), req.URL)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SummarizeResponse{Summary: summary})
}
