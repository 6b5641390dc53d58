package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"knowledgegpt-backend/internal/models"
)

// SQLiteStore is the single-file document store used for local development.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) PutUserProfile(ctx context.Context, uid string, profile models.Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (uid, name, email, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (uid) DO UPDATE SET name = excluded.name, email = excluded.email, updated_at = excluded.updated_at`,
		uid, profile.Name, profile.Email, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUserProfile(ctx context.Context, uid string) (models.Profile, error) {
	var p models.Profile
	err := s.db.QueryRowContext(ctx, "SELECT name, email FROM user_profiles WHERE uid = ?", uid).Scan(&p.Name, &p.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Profile{}, ErrNotFound
		}
		return models.Profile{}, fmt.Errorf("failed to query profile: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) PutChatRecord(ctx context.Context, rec models.ChatRecord) error {
	messages, err := json.Marshal(rec.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO chat_records (id, uid, user_name, user_email, chat_name, messages_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UID, rec.User, rec.UserEmail, rec.ChatName, string(messages), rec.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert chat record: %w", err)
	}
	return nil
}

// ChatRecords lists a user's saved chats, newest first.
func (s *SQLiteStore) ChatRecords(ctx context.Context, uid string) ([]models.ChatRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, uid, user_name, user_email, chat_name, messages_json, created_at
		FROM chat_records WHERE uid = ? ORDER BY created_at DESC`, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat records: %w", err)
	}
	defer rows.Close()

	var records []models.ChatRecord
	for rows.Next() {
		var rec models.ChatRecord
		var messages string
		if err := rows.Scan(&rec.ID, &rec.UID, &rec.User, &rec.UserEmail, &rec.ChatName, &messages, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat record: %w", err)
		}
		if err := json.Unmarshal([]byte(messages), &rec.Messages); err != nil {
			return nil, fmt.Errorf("decode messages of %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) CreateCredential(ctx context.Context, cred models.Credential) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO credentials (uid, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		cred.UID, strings.ToLower(cred.Email), cred.PasswordHash, time.Now().UTC())
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCredentialByEmail(ctx context.Context, email string) (models.Credential, error) {
	var c models.Credential
	err := s.db.QueryRowContext(ctx,
		"SELECT uid, email, password_hash, created_at FROM credentials WHERE email = ?",
		strings.ToLower(email)).Scan(&c.UID, &c.Email, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Credential{}, ErrNotFound
		}
		return models.Credential{}, fmt.Errorf("failed to query credential: %w", err)
	}
	return c, nil
}
