package sinks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/datasetcrawler/internal/progress"
)

const (
	// DefaultRedisKey is the list the crawler appends events to.
	DefaultRedisKey    = "datasetcrawler:events"
	defaultRedisMaxLen = 10000
)

// RedisConfig configures the Redis list sink.
type RedisConfig struct {
	Addr   string
	Key    string
	MaxLen int64
}

// cappedList appends values to a list and trims it to maxLen entries.
type cappedList interface {
	AppendCapped(ctx context.Context, key string, maxLen int64, values ...any) error
	Close() error
}

type redisList struct {
	client *redis.Client
}

// AppendCapped issues RPUSH and LTRIM in a single MULTI/EXEC round trip.
func (l redisList) AppendCapped(ctx context.Context, key string, maxLen int64, values ...any) error {
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, -maxLen, -1)
		return nil
	})
	return err
}

func (l redisList) Close() error {
	return l.client.Close()
}

// RedisSink appends every event as a JSON document to a capped Redis list.
type RedisSink struct {
	client cappedList
	key    string
	maxLen int64
}

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(ctx context.Context, cfg RedisConfig) (*RedisSink, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newRedisSink(redisList{client: client}, cfg), nil
}

func newRedisSink(client cappedList, cfg RedisConfig) *RedisSink {
	key := cfg.Key
	if key == "" {
		key = DefaultRedisKey
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = defaultRedisMaxLen
	}
	return &RedisSink{client: client, key: key, maxLen: maxLen}
}

// Consume pushes the batch and trims the list to the configured length.
func (s *RedisSink) Consume(ctx context.Context, batch []progress.Event) error {
	if len(batch) == 0 {
		return nil
	}
	values := make([]any, 0, len(batch))
	for _, evt := range batch {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		values = append(values, payload)
	}
	if err := s.client.AppendCapped(ctx, s.key, s.maxLen, values...); err != nil {
		return fmt.Errorf("push events to redis: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisSink) Close(context.Context) error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
