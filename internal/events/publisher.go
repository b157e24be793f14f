// Package events publishes scrape progress to a Redis stream so other
// services can follow long runs without polling checkpoint files. Publishing
// is best effort; a broken stream never fails the run.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/unidata/uni-rankings-scraper/internal/models"
)

const StreamName = "stream:rankings_scrape"

// Event types carried on the stream.
const (
	EventBatchCompleted = "BATCH_COMPLETED"
	EventBatchFailed    = "BATCH_FAILED"
	EventRunCompleted   = "RUN_COMPLETED"
)

// RedisClient is the subset of redis.Client the publisher needs. Tests
// substitute a mock.
type RedisClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// Event is the payload serialized into the stream's "data" field.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// Publisher emits progress events. A nil *Publisher is valid and drops every
// event, so callers never have to branch on whether events are enabled.
type Publisher struct {
	client RedisClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client RedisClient) *Publisher {
	return &Publisher{
		client: client,
		stream: StreamName,
		logger: slog.Default().With("component", "events"),
	}
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (p *Publisher) BatchCompleted(ctx context.Context, result models.BatchResult, num int) {
	if p == nil {
		return
	}
	p.publish(ctx, EventBatchCompleted, map[string]any{
		"batch_id":  result.BatchID,
		"batch_num": num,
		"records":   len(result.Records),
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	})
}

func (p *Publisher) BatchFailed(ctx context.Context, batchID string, num int, err error) {
	if p == nil {
		return
	}
	p.publish(ctx, EventBatchFailed, map[string]any{
		"batch_id":  batchID,
		"batch_num": num,
		"error":     err.Error(),
	})
}

func (p *Publisher) RunCompleted(ctx context.Context, total, succeeded, failed int) {
	if p == nil {
		return
	}
	p.publish(ctx, EventRunCompleted, map[string]any{
		"total":     total,
		"succeeded": succeeded,
		"failed":    failed,
	})
}

func (p *Publisher) publish(ctx context.Context, eventType string, payload map[string]any) {
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal event", "type", eventType, "error", err)
		return
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type": eventType,
			"data": string(data),
		},
	}).Err()
	if err != nil {
		p.logger.Error("failed to publish event",
			"stream", p.stream, "type", eventType, "error", err)
		return
	}
	p.logger.Debug("published event", "stream", p.stream, "type", eventType)
}

func (p *Publisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
