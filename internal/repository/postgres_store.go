package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"knowledgegpt-backend/internal/models"
)

const pgUniqueViolation = "23505"

// PostgresStore keeps profiles, credentials and chat records in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) PutUserProfile(ctx context.Context, uid string, profile models.Profile) error {
	query := `
		INSERT INTO user_profiles (uid, name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (uid) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query, uid, profile.Name, profile.Email)
	return err
}

func (s *PostgresStore) GetUserProfile(ctx context.Context, uid string) (models.Profile, error) {
	var p models.Profile
	err := s.pool.QueryRow(ctx, "SELECT name, email FROM user_profiles WHERE uid = $1", uid).Scan(&p.Name, &p.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Profile{}, ErrNotFound
	}
	return p, err
}

// PutChatRecord is idempotent on the record id so retries never duplicate a chat.
func (s *PostgresStore) PutChatRecord(ctx context.Context, rec models.ChatRecord) error {
	messages, err := json.Marshal(rec.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}

	query := `
		INSERT INTO chat_records (id, uid, user_name, user_email, chat_name, messages, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		rec.ID, rec.UID, rec.User, rec.UserEmail, rec.ChatName, string(messages), rec.Timestamp,
	)
	return err
}

func (s *PostgresStore) CreateCredential(ctx context.Context, cred models.Credential) error {
	query := `
		INSERT INTO credentials (uid, email, password_hash)
		VALUES ($1, $2, $3)`

	_, err := s.pool.Exec(ctx, query, cred.UID, strings.ToLower(cred.Email), cred.PasswordHash)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrEmailTaken
	}
	return err
}

func (s *PostgresStore) GetCredentialByEmail(ctx context.Context, email string) (models.Credential, error) {
	var c models.Credential
	query := `SELECT uid, email, password_hash, created_at FROM credentials WHERE email = $1`

	err := s.pool.QueryRow(ctx, query, strings.ToLower(email)).Scan(&c.UID, &c.Email, &c.PasswordHash, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Credential{}, ErrNotFound
	}
	return c, err
}
