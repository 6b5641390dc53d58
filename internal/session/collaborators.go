package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"knowledgegpt-backend/internal/models"
	"knowledgegpt-backend/internal/study"
)

// AuthProvider creates accounts and checks credentials. Both methods return
// the provider's opaque user id.
type AuthProvider interface {
	CreateUser(ctx context.Context, email, password string) (string, error)
	SignIn(ctx context.Context, email, password string) (string, error)
}

// DocumentStore persists user profiles and saved chats. GetUserProfile
// returns models.ErrNotFound when the uid has no profile.
type DocumentStore interface {
	PutUserProfile(ctx context.Context, uid string, profile models.Profile) error
	GetUserProfile(ctx context.Context, uid string) (models.Profile, error)
	PutChatRecord(ctx context.Context, record models.ChatRecord) error
}

// ChatModel produces the next assistant reply. history holds the earlier
// turns of the conversation, not including prompt.
type ChatModel interface {
	Converse(ctx context.Context, history []models.Message, prompt string) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, text string, minLength, maxLength int) (string, error)
}

// TextExtractor turns an uploaded document into plain text.
type TextExtractor interface {
	ExtractText(filename string, data []byte) (string, error)
}

// TranscriptSource fetches the spoken text of a video.
type TranscriptSource interface {
	Transcript(ctx context.Context, videoURL string) (string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// ArchiveRetrier takes over chat records whose first write failed.
type ArchiveRetrier interface {
	Enqueue(ctx context.Context, record models.ChatRecord) error
}

// Deps are the collaborators shared by every controller. Auth, Store, Chat and
// Summarizer are required; the rest are optional.
type Deps struct {
	Auth        AuthProvider
	Store       DocumentStore
	Chat        ChatModel
	Summarizer  Summarizer
	Extractor   TextExtractor
	Transcripts TranscriptSource
	Scorer      study.Scorer
	Events      EventPublisher
	Retrier     ArchiveRetrier
	Logger      *zap.Logger
	Now         func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Scorer == nil {
		d.Scorer = study.NewKeywordScorer()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}
