// Package index provides asynchronous search indexing over a Redis
// stream and Elasticsearch.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PascalRepond/rero-mef/internal/model"
	"github.com/PascalRepond/rero-mef/internal/repository"
)

const (
	// StreamKey is the Redis stream for index tasks.
	StreamKey = "stream:index_tasks"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:index_tasks:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 1000000
)

// Task operations.
const (
	OpIndex  = "index"
	OpDelete = "delete"
)

// TaskPayload is the compressed task format for the Redis stream. The
// record itself stays in Postgres; the worker loads it by pid, so a
// task enqueued twice indexes the latest state either way.
type TaskPayload struct {
	Entity     string `json:"e"`
	Pid        string `json:"p"`
	Op         string `json:"op"`
	EnqueuedAt int64  `json:"t"` // Unix milliseconds
}

// Publisher enqueues index tasks to the Redis stream. It implements
// service.IndexQueue; the caller accounts for publish outcomes.
type Publisher struct {
	redis  *redis.Client
	logger *slog.Logger
}

// NewPublisher creates a new index task publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		redis:  client,
		logger: logger.With("component", "index.publisher"),
	}
}

// EnqueueIndex schedules a record for (re)indexing.
func (p *Publisher) EnqueueIndex(ctx context.Context, e model.Entity, pid string) error {
	return p.publish(ctx, TaskPayload{
		Entity:     string(e),
		Pid:        pid,
		Op:         OpIndex,
		EnqueuedAt: time.Now().UnixMilli(),
	})
}

// EnqueueDelete schedules a record's removal from the index.
func (p *Publisher) EnqueueDelete(ctx context.Context, e model.Entity, pid string) error {
	return p.publish(ctx, TaskPayload{
		Entity:     string(e),
		Pid:        pid,
		Op:         OpDelete,
		EnqueuedAt: time.Now().UnixMilli(),
	})
}

// EnqueueAll schedules every pid a store holds. Used by full reindex.
func (p *Publisher) EnqueueAll(ctx context.Context, store *repository.RecordStore) (int, error) {
	count := 0
	err := store.AllPids(ctx, func(pid string) error {
		if err := p.EnqueueIndex(ctx, store.Entity(), pid); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

func (p *Publisher) publish(ctx context.Context, task TaskPayload) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	streamID, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}

	p.logger.Debug("index task published",
		"entity", task.Entity,
		"pid", task.Pid,
		"op", task.Op,
		"stream_id", streamID,
	)
	return nil
}
