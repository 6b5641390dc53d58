package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"knowledgegpt-backend/internal/models"
	"knowledgegpt-backend/internal/repository"
)

// CredentialStore is implemented by the SQL document stores.
type CredentialStore interface {
	CreateCredential(ctx context.Context, cred models.Credential) error
	GetCredentialByEmail(ctx context.Context, email string) (models.Credential, error)
}

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("an account with this email already exists")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrPasswordTooShort   = errors.New("Password must be at least 8 characters")
	ErrPasswordNoNumber   = errors.New("Password must contain at least one number")
)

// IsUserFacing reports whether err carries a reason that is safe to show to
// the person signing in.
func IsUserFacing(err error) bool {
	var fbErr *FirebaseError
	if errors.As(err, &fbErr) {
		return true
	}
	for _, known := range []error{ErrInvalidCredentials, ErrEmailInUse, ErrInvalidEmail, ErrPasswordTooShort, ErrPasswordNoNumber} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// LocalAuth is a self-hosted auth provider storing bcrypt hashes next to the
// user profiles.
type LocalAuth struct {
	store CredentialStore
	cost  int
}

func NewLocalAuth(store CredentialStore) *LocalAuth {
	return &LocalAuth{store: store, cost: 12}
}

func (a *LocalAuth) CreateUser(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if !emailRegex.MatchString(email) {
		return "", ErrInvalidEmail
	}
	if err := validatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	cred := models.Credential{UID: uuid.NewString(), Email: email, PasswordHash: string(hash)}
	if err := a.store.CreateCredential(ctx, cred); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return "", ErrEmailInUse
		}
		return "", err
	}
	return cred.UID, nil
}

func (a *LocalAuth) SignIn(ctx context.Context, email, password string) (string, error) {
	cred, err := a.store.GetCredentialByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return cred.UID, nil
}

func validatePassword(pw string) error {
	if len(pw) < 8 {
		return ErrPasswordTooShort
	}
	hasNumber := false
	for _, ch := range pw {
		if unicode.IsDigit(ch) {
			hasNumber = true
			break
		}
	}
	if !hasNumber {
		return ErrPasswordNoNumber
	}
	return nil
}
