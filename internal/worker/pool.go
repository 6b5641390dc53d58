package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"knowledgegpt-backend/internal/models"
)

const (
	QueueChatRecords  = "queue:chat-records"
	defaultPopTimeout = 5 * time.Second
	lockTTL           = time.Minute
)

// RecordStore is where queued chat records are finally written.
type RecordStore interface {
	PutChatRecord(ctx context.Context, record models.ChatRecord) error
}

// job is the queue envelope. Attempt counts the failed writes so far.
type job struct {
	Record  models.ChatRecord `json:"record"`
	Attempt int               `json:"attempt"`
}

// Pool retries chat-record writes that failed during SaveChat. Records are
// keyed by id, so a write repeated after a lost acknowledgement is harmless.
type Pool struct {
	redis       *redis.Client
	store       RecordStore
	workerCount int
	maxRetries  int
	popTimeout  time.Duration
	backoff     func(attempt int) time.Duration
	lock        func(ctx context.Context, key string, workerID int) (bool, error)
	logger      *zap.Logger
}

func NewPool(redisClient *redis.Client, store RecordStore, workerCount, maxRetries int, logger *zap.Logger) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	p := &Pool{
		redis:       redisClient,
		store:       store,
		workerCount: workerCount,
		maxRetries:  maxRetries,
		popTimeout:  defaultPopTimeout,
		backoff:     exponentialBackoff,
		logger:      logger.Named("archive-retry"),
	}
	p.lock = p.acquireLock
	return p
}

func (p *Pool) acquireLock(ctx context.Context, key string, workerID int) (bool, error) {
	return p.redis.SetNX(ctx, key, workerID, lockTTL).Result()
}

func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// Enqueue hands a record to the pool for another write attempt.
func (p *Pool) Enqueue(ctx context.Context, record models.ChatRecord) error {
	return p.push(ctx, job{Record: record})
}

func (p *Pool) push(ctx context.Context, j job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode chat record job: %w", err)
	}
	if err := p.redis.RPush(ctx, QueueChatRecords, data).Err(); err != nil {
		return fmt.Errorf("queue chat record: %w", err)
	}
	return nil
}

// Run starts the workers and blocks until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workerCount; i++ {
		id := i
		g.Go(func() error {
			p.worker(ctx, id)
			return nil
		})
	}

	p.logger.Info("Started archive retry workers", zap.Int("workers", p.workerCount))
	return g.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			p.logger.Debug("Worker shutting down", zap.Int("worker", id))
			return
		}

		result, err := p.redis.BLPop(ctx, p.popTimeout, QueueChatRecords).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				p.logger.Warn("Failed to pop chat record job", zap.Int("worker", id), zap.Error(err))
				sleep(ctx, time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var j job
		if err := json.Unmarshal([]byte(result[1]), &j); err != nil {
			p.logger.Error("Dropping unreadable chat record job", zap.Int("worker", id), zap.Error(err))
			continue
		}

		p.process(ctx, id, j)
	}
}

func (p *Pool) process(ctx context.Context, workerID int, j job) {
	fields := []zap.Field{
		zap.Int("worker", workerID),
		zap.String("record_id", j.Record.ID),
		zap.String("chat_name", j.Record.ChatName),
	}

	lockKey := fmt.Sprintf("chat_record_lock:%s", j.Record.ID)
	locked, err := p.lock(ctx, lockKey, workerID)
	if err != nil {
		// The job is already off the queue; put it back without charging an attempt.
		backoff := p.backoff(j.Attempt + 1)
		p.logger.Error("Failed to lock chat record, re-queueing",
			append(fields, zap.Duration("backoff", backoff), zap.Error(err))...)
		p.requeue(j, backoff, fields)
		return
	}
	if !locked {
		// Another worker has this record
		return
	}
	defer p.redis.Del(context.WithoutCancel(ctx), lockKey)

	err = p.store.PutChatRecord(ctx, j.Record)
	if err == nil {
		p.logger.Info("Chat record persisted on retry", append(fields, zap.Int("attempt", j.Attempt+1))...)
		return
	}

	j.Attempt++
	if j.Attempt >= p.maxRetries {
		p.logger.Error("Chat record dropped after max retries", append(fields, zap.Int("attempts", j.Attempt), zap.Error(err))...)
		return
	}

	backoff := p.backoff(j.Attempt)
	p.logger.Warn("Chat record write failed, retrying",
		append(fields, zap.Int("attempt", j.Attempt), zap.Duration("backoff", backoff), zap.Error(err))...)

	p.requeue(j, backoff, fields)
}

// requeue pushes j back onto the queue once delay has passed.
func (p *Pool) requeue(j job, delay time.Duration, fields []zap.Field) {
	time.AfterFunc(delay, func() {
		if err := p.push(context.Background(), j); err != nil {
			p.logger.Error("Failed to re-queue chat record", append(fields, zap.Error(err))...)
		}
	})
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
