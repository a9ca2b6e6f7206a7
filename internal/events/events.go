// Package events publishes pipeline run summaries to Redis so other processes
// can follow scheduled runs.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amishk599/jobpipe/internal/pipeline"
)

// Summary is the JSON message published after every run.
type Summary struct {
	RunID      string                `json:"run_id"`
	Mode       string                `json:"mode"`
	Stages     []pipeline.StageStats `json:"stages"`
	ItemErrors int                   `json:"item_errors"`
	Eligible   int                   `json:"eligible"`
	Cancelled  bool                  `json:"cancelled"`
	Error      string                `json:"error,omitempty"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

// NewSummary builds the summary of a finished run.
func NewSummary(res pipeline.RunResult, runErr error) Summary {
	s := Summary{
		RunID:      res.RunID,
		Mode:       res.Mode,
		Stages:     res.Stages,
		ItemErrors: len(res.Errors),
		Eligible:   len(res.Eligible),
		Cancelled:  res.Cancelled,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	if runErr != nil {
		s.Error = runErr.Error()
	}
	return s
}

// Publisher announces finished runs.
type Publisher interface {
	Publish(ctx context.Context, s Summary) error
	Close() error
}

// Nop discards summaries. Used when no Redis URL is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Summary) error { return nil }
func (Nop) Close() error                           { return nil }

// RedisPublisher publishes summaries on a channel and keeps the most recent
// one under "<channel>:last".
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher parses redisURL and verifies connectivity.
func NewRedisPublisher(ctx context.Context, redisURL, channel string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisPublisher{rdb: rdb, channel: channel}, nil
}

func (p *RedisPublisher) lastKey() string { return p.channel + ":last" }

// Publish sends s to the channel and records it as the latest run.
func (p *RedisPublisher) Publish(ctx context.Context, s Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling run summary: %w", err)
	}
	pipe := p.rdb.TxPipeline()
	pipe.Publish(ctx, p.channel, data)
	pipe.Set(ctx, p.lastKey(), data, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publishing run %s: %w", s.RunID, err)
	}
	return nil
}

// Last returns the most recently published summary. ok is false when no run
// has been published yet.
func (p *RedisPublisher) Last(ctx context.Context) (s Summary, ok bool, err error) {
	data, err := p.rdb.Get(ctx, p.lastKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Summary{}, false, nil
	}
	if err != nil {
		return Summary{}, false, fmt.Errorf("reading last run: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Summary{}, false, fmt.Errorf("decoding last run: %w", err)
	}
	return s, true, nil
}

// Subscribe returns a subscription to run summaries on the channel.
func (p *RedisPublisher) Subscribe(ctx context.Context) *redis.PubSub {
	return p.rdb.Subscribe(ctx, p.channel)
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
