package repository

import (
	"errors"

	"knowledgegpt-backend/internal/models"
)

var (
	// ErrNotFound is returned when a profile or credential does not exist.
	ErrNotFound = models.ErrNotFound
	// ErrEmailTaken is returned when a credential for the email already exists.
	ErrEmailTaken = errors.New("email already registered")
)
