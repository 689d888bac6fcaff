package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"industryinsider/internal/prompts"
)

// RedisStore keeps each history as a JSON list under session:<id>:history.
// Every read or write refreshes the TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and checks the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// History returns the session's messages, creating an empty list on first access.
func (s *RedisStore) History(ctx context.Context, id string) ([]prompts.Message, error) {
	key := historyKey(id)

	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		if err := s.client.Set(ctx, key, "[]", s.ttl).Err(); err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		return []prompts.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var msgs []prompts.Message
	if err := json.Unmarshal([]byte(val), &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	_ = s.client.Expire(ctx, key, s.ttl).Err()
	if msgs == nil {
		msgs = []prompts.Message{}
	}
	return msgs, nil
}

// Save replaces the session's messages.
func (s *RedisStore) Save(ctx context.Context, id string, msgs []prompts.Message) error {
	if msgs == nil {
		msgs = []prompts.Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, historyKey(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear empties the session's history.
func (s *RedisStore) Clear(ctx context.Context, id string) error {
	return s.Save(ctx, id, nil)
}

func historyKey(id string) string {
	return fmt.Sprintf("session:%s:history", id)
}
