package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const leaseKeyPrefix = "session:"

// Registry maps session ids to live controllers. A controller is only
// reachable while its Redis lease exists, so a lease can be revoked from any
// replica by deleting the key.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Controller

	redis *redis.Client
	ttl   time.Duration
	deps  Deps
	log   *zap.Logger
}

func NewRegistry(rdb *redis.Client, deps Deps, ttl time.Duration) *Registry {
	deps = deps.withDefaults()
	return &Registry{
		sessions: make(map[uuid.UUID]*Controller),
		redis:    rdb,
		ttl:      ttl,
		deps:     deps,
		log:      deps.Logger.Named("sessions"),
	}
}

// TTL is how long a bound session lives.
func (r *Registry) TTL() time.Duration { return r.ttl }

// Create returns an unauthenticated controller. It is not registered until
// Bind is called, so a failed login leaves nothing behind.
func (r *Registry) Create() *Controller {
	return NewController(r.deps)
}

// Bind registers an authenticated controller and writes its lease.
func (r *Registry) Bind(ctx context.Context, c *Controller) error {
	identity, ok := c.Identity()
	if !ok {
		return ErrNotAuthenticated
	}

	if err := r.redis.Set(ctx, leaseKey(c.ID()), identity.UID, r.ttl).Err(); err != nil {
		return fmt.Errorf("write session lease: %w", err)
	}

	r.mu.Lock()
	r.sessions[c.ID()] = c
	r.mu.Unlock()

	r.log.Debug("session bound", zap.String("session_id", c.ID().String()), zap.String("uid", identity.UID))
	return nil
}

// Get returns the controller for id. A controller whose lease has expired or
// been revoked is dropped and reported as ErrSessionNotFound.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*Controller, error) {
	r.mu.RLock()
	c, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	n, err := r.redis.Exists(ctx, leaseKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("check session lease: %w", err)
	}
	if n == 0 {
		r.drop(id)
		return nil, ErrSessionNotFound
	}
	return c, nil
}

// End removes the controller and its lease.
func (r *Registry) End(ctx context.Context, id uuid.UUID) error {
	r.drop(id)
	if err := r.redis.Del(ctx, leaseKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete session lease: %w", err)
	}
	return nil
}

// Len reports the number of registered controllers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops every controller whose lease no longer exists and returns how
// many were dropped.
func (r *Registry) Sweep(ctx context.Context) (int, error) {
	r.mu.RLock()
	ids := make([]uuid.UUID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	if len(ids) == 0 {
		return 0, nil
	}

	pipe := r.redis.Pipeline()
	cmds := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Exists(ctx, leaseKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("check session leases: %w", err)
	}

	dropped := 0
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			r.drop(ids[i])
			dropped++
		}
	}
	return dropped, nil
}

// Run sweeps expired sessions every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := r.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.log.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				r.log.Info("expired sessions dropped", zap.Int("count", n))
			}
		}
	}
}

func (r *Registry) drop(id uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func leaseKey(id uuid.UUID) string {
	return leaseKeyPrefix + id.String()
}
