package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"knowledgegpt-backend/internal/config"
	"knowledgegpt-backend/internal/database"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.NotNil(t, root.RunE, "bare invocation should serve")
}

func TestNewAuthProvider_LocalNeedsSQLStore(t *testing.T) {
	cfg := &config.Config{AuthProvider: config.AuthLocal, DocumentStore: config.StoreFirestore}

	_, err := newAuthProvider(cfg, &storeSet{})
	require.Error(t, err)
}

func TestOpenStores_SQLite(t *testing.T) {
	cfg := &config.Config{DocumentStore: config.StoreSQLite, SQLitePath: t.TempDir() + "/kg.db"}

	stores, err := openStores(t.Context(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer stores.Close()
	assert.NotNil(t, stores.Documents)

	auth, err := newAuthProvider(&config.Config{AuthProvider: config.AuthLocal, DocumentStore: config.StoreSQLite}, stores)
	require.NoError(t, err)
	assert.NotNil(t, auth)
}

func TestPostgresOptions_FromConfig(t *testing.T) {
	cfg := &config.Config{
		PGMaxConns:        25,
		PGMinConns:        5,
		PGConnMaxLifetime: time.Hour,
		MigrationsTable:   "kgpt_migrations",
	}

	assert.Equal(t, database.PostgresOptions{
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: time.Hour,
		MigrationsTable: "kgpt_migrations",
	}, postgresOptions(cfg))
}
