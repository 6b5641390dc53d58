package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"knowledgegpt-backend/internal/config"
	"knowledgegpt-backend/internal/database"
	"knowledgegpt-backend/internal/handlers"
	"knowledgegpt-backend/internal/logging"
	"knowledgegpt-backend/internal/middleware"
	"knowledgegpt-backend/internal/router"
	"knowledgegpt-backend/internal/services"
	"knowledgegpt-backend/internal/session"
	"knowledgegpt-backend/internal/websocket"
	"knowledgegpt-backend/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second
	sweepInterval   = time.Minute
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, archive retry workers and session sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("🚀 Starting KnowledgeGPT Backend...")
	logger.Info("✓ Environment variables loaded",
		zap.String("document_store", cfg.DocumentStore),
		zap.String("auth_provider", cfg.AuthProvider),
		zap.String("summarizer", cfg.Summarizer))

	// ──── Step 2: Open Document Store ────
	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("✗ Document store initialization failed", zap.Error(err))
		return err
	}
	defer stores.Close()
	logger.Info("✓ Document store ready", zap.String("backend", cfg.DocumentStore))

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("✗ Redis connection failed", zap.Error(err))
		return err
	}
	defer redisClients.Close()
	logger.Info("✓ Redis connected")

	// ──── Step 4: Initialize Model Clients ────
	geminiService, err := services.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiChatModel, cfg.GeminiConcurrentReqs, logger)
	if err != nil {
		logger.Error("✗ Gemini client initialization failed", zap.Error(err))
		return err
	}
	defer geminiService.Close()
	logger.Info("✓ Gemini chat client initialized", zap.String("model", cfg.GeminiChatModel))

	summarizer, err := newSummarizer(ctx, cfg, logger)
	if err != nil {
		logger.Error("✗ Summarizer initialization failed", zap.Error(err))
		return err
	}
	logger.Info("✓ Summarizer initialized", zap.String("backend", cfg.Summarizer))

	authProvider, err := newAuthProvider(cfg, stores)
	if err != nil {
		logger.Error("✗ Auth provider initialization failed", zap.Error(err))
		return err
	}
	logger.Info("✓ Auth provider initialized", zap.String("backend", cfg.AuthProvider))

	// ──── Step 5: Sessions, Events and Workers ────
	retryPool := worker.NewPool(redisClients.State, stores.Documents, cfg.ArchiveRetryWorkers, cfg.ArchiveMaxRetries, logger)

	registry := session.NewRegistry(redisClients.State, session.Deps{
		Auth:        authProvider,
		Store:       stores.Documents,
		Chat:        geminiService,
		Summarizer:  summarizer,
		Extractor:   services.NewFileExtractService(),
		Transcripts: services.NewYouTubeService(logger),
		Events:      websocket.NewPublisher(redisClients.PubSub),
		Retrier:     retryPool,
		Logger:      logger,
	}, cfg.SessionTTL)

	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret, cfg.SessionTTL)
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, registry, logger)
	logger.Info("✓ WebSocket hub started")

	// ──── Step 6: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		handlers.NewAuthHandler(registry, jwtAuth, logger),
		handlers.NewSessionHandler(registry, cfg.UploadMaxBytes, logger),
		wsHub,
		cfg.FrontendURL,
		logger,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(fmt.Sprintf("✓ KnowledgeGPT Backend ready on http://localhost:%s", cfg.Port))
		logger.Info(fmt.Sprintf("  API: http://localhost:%s/api/v1", cfg.Port))
		logger.Info(fmt.Sprintf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return retryPool.Run(gctx)
	})

	g.Go(func() error {
		return registry.Run(gctx, sweepInterval)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		wsHub.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("✗ Server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("✓ Shutdown complete")
	return nil
}

func newSummarizer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (session.Summarizer, error) {
	switch cfg.Summarizer {
	case config.SummarizerGemini:
		return services.NewGenAISummarizer(ctx, cfg.GeminiAPIKey, cfg.GenAISummaryModel, logger)
	default:
		return services.NewHuggingFaceSummarizer(cfg.HFAPIURL, cfg.HFSummarizationModel, cfg.HFAPIToken), nil
	}
}

func newAuthProvider(cfg *config.Config, stores *storeSet) (session.AuthProvider, error) {
	switch cfg.AuthProvider {
	case config.AuthLocal:
		creds, ok := stores.Documents.(services.CredentialStore)
		if !ok {
			return nil, fmt.Errorf("document store %s cannot hold local credentials", cfg.DocumentStore)
		}
		return services.NewLocalAuth(creds), nil
	default:
		return services.NewFirebaseAuth(cfg.FirebaseAPIKey, cfg.FirebaseAuthURL), nil
	}
}
