package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"knowledgegpt-backend/internal/config"
	"knowledgegpt-backend/internal/database"
	"knowledgegpt-backend/internal/repository"
	"knowledgegpt-backend/internal/session"
)

// storeSet is the configured document store plus whatever must be closed
// when the process exits.
type storeSet struct {
	Documents session.DocumentStore
	closers   []func()
}

func (s *storeSet) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects the configured document store and brings its schema
// up to date.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storeSet, error) {
	switch cfg.DocumentStore {
	case config.StorePostgres:
		opts := postgresOptions(cfg)
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, opts)
		if err != nil {
			return nil, fmt.Errorf("postgres connection failed: %w", err)
		}
		applied, err := database.RunMigrations(ctx, pool, cfg.MigrationsDir, opts, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
		logger.Info("✓ Database migrations applied", zap.Int("applied", applied))
		return &storeSet{Documents: repository.NewPostgresStore(pool), closers: []func(){pool.Close}}, nil

	case config.StoreFirestore:
		client, err := database.NewFirestoreClient(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredsFile)
		if err != nil {
			return nil, fmt.Errorf("firestore client failed: %w", err)
		}
		return &storeSet{
			Documents: repository.NewFirestoreStore(client),
			closers:   []func(){func() { client.Close() }},
		}, nil

	default:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite open failed: %w", err)
		}
		return &storeSet{Documents: repository.NewSQLiteStore(db), closers: []func(){func() { db.Close() }}}, nil
	}
}

func postgresOptions(cfg *config.Config) database.PostgresOptions {
	return database.PostgresOptions{
		MaxConns:        int32(cfg.PGMaxConns),
		MinConns:        int32(cfg.PGMinConns),
		MaxConnLifetime: cfg.PGConnMaxLifetime,
		MigrationsTable: cfg.MigrationsTable,
	}
}
