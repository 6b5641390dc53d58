package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"knowledgegpt-backend/internal/models"
)

const (
	usersCollection = "users"
	chatsCollection = "chats"
)

// FirestoreStore keeps profiles in the "users" collection keyed by uid and
// saved chats in the "chats" collection keyed by record id.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) PutUserProfile(ctx context.Context, uid string, profile models.Profile) error {
	if _, err := s.client.Collection(usersCollection).Doc(uid).Set(ctx, profile); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

func (s *FirestoreStore) GetUserProfile(ctx context.Context, uid string) (models.Profile, error) {
	snap, err := s.client.Collection(usersCollection).Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return models.Profile{}, ErrNotFound
		}
		return models.Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}

	var p models.Profile
	if err := snap.DataTo(&p); err != nil {
		return models.Profile{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	return p, nil
}

func (s *FirestoreStore) PutChatRecord(ctx context.Context, rec models.ChatRecord) error {
	if _, err := s.client.Collection(chatsCollection).Doc(rec.ID).Set(ctx, rec); err != nil {
		return fmt.Errorf("failed to write chat record: %w", err)
	}
	return nil
}
