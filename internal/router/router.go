package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"knowledgegpt-backend/internal/handlers"
	"knowledgegpt-backend/internal/middleware"
	"knowledgegpt-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.SessionHandler,
	wsHub *websocket.Hub,
	frontendURL string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)

			// Logout requires auth
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// ──── Session Routes ────
		r.Route("/session", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", sessionHandler.Snapshot)
			r.Post("/messages", sessionHandler.PostMessage)

			r.Route("/chats", func(r chi.Router) {
				r.Get("/", sessionHandler.ListChats)
				r.Post("/", sessionHandler.SaveChat)
				r.Get("/{name}", sessionHandler.GetChat)
			})

			r.Route("/flashcards", func(r chi.Router) {
				r.Post("/", sessionHandler.GenerateFlashcards)
				r.Get("/current", sessionHandler.CurrentFlashcard)
				r.Post("/next", sessionHandler.NextFlashcard)
			})

			r.Get("/safety", sessionHandler.Safety)

			r.Route("/features", func(r chi.Router) {
				r.Get("/", sessionHandler.Features)
				r.Post("/{feature}/toggle", sessionHandler.ToggleFeature)
			})

			r.Get("/feedback", sessionHandler.GetFeedback)
			r.Put("/feedback", sessionHandler.RecordFeedback)

			r.Route("/summaries", func(r chi.Router) {
				r.Post("/", sessionHandler.Summarize)
				r.Post("/upload", sessionHandler.SummarizeUpload)
				r.Post("/youtube", sessionHandler.SummarizeVideo)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
