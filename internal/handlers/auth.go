package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"knowledgegpt-backend/internal/middleware"
	"knowledgegpt-backend/internal/models"
	"knowledgegpt-backend/internal/session"
)

// Sessions is the part of the session registry the handlers use.
type Sessions interface {
	Create() *session.Controller
	Bind(ctx context.Context, c *session.Controller) error
	Get(ctx context.Context, id uuid.UUID) (*session.Controller, error)
	End(ctx context.Context, id uuid.UUID) error
	TTL() time.Duration
}

type AuthHandler struct {
	sessions Sessions
	jwtAuth  *middleware.JWTAuth
	logger   *zap.Logger
}

func NewAuthHandler(sessions Sessions, jwtAuth *middleware.JWTAuth, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, jwtAuth: jwtAuth, logger: logger.Named("auth")}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	c := h.sessions.Create()
	result, err := c.Register(r.Context(), req.Name, req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp, ok := h.issue(w, r, c, result.Identity)
	if !ok {
		return
	}
	if result.Warning != nil {
		resp.Warning = result.Warning.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	c := h.sessions.Create()
	identity, err := c.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp, ok := h.issue(w, r, c, identity)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// issue registers the authenticated controller and signs its token.
func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, c *session.Controller, identity models.UserIdentity) (models.AuthResponse, bool) {
	if err := h.sessions.Bind(r.Context(), c); err != nil {
		h.logger.Error("failed to bind session", zap.String("uid", identity.UID), zap.Error(err))
		handleServiceError(w, r, err)
		return models.AuthResponse{}, false
	}

	token, err := h.jwtAuth.GenerateSessionToken(c.ID(), identity.UID, identity.Email)
	if err != nil {
		h.logger.Error("failed to sign session token", zap.Error(err))
		h.sessions.End(r.Context(), c.ID())
		handleServiceError(w, r, err)
		return models.AuthResponse{}, false
	}

	return models.AuthResponse{
		Token:     token,
		ExpiresIn: int(h.sessions.TTL().Seconds()),
		User:      identity,
	}, true
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetSession(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHENTICATED", "Please log in to continue", r))
		return
	}

	if err := h.sessions.End(r.Context(), claims.SessionID); err != nil {
		h.logger.Error("failed to end session", zap.String("session_id", claims.SessionID.String()), zap.Error(err))
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
