package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"knowledgegpt-backend/internal/models"
)

// Channel is the Redis pub/sub channel carrying a session's events.
func Channel(sessionID uuid.UUID) string {
	return "session_updates:" + sessionID.String()
}

// Publisher sends session events over Redis so that whichever replica holds
// the session's sockets can deliver them.
type Publisher struct {
	redis *redis.Client
}

func NewPublisher(redisClient *redis.Client) *Publisher {
	return &Publisher{redis: redisClient}
}

func (p *Publisher) Publish(ctx context.Context, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.redis.Publish(ctx, Channel(event.SessionID), data).Err()
}
