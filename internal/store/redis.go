package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"whatsapp-concierge/internal/domain"
)

const stateTTL = 24 * time.Hour

// RedisStore shares state between replicas. State expires after a day of
// inactivity; counters and history are kept until overwritten or trimmed.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if client == nil {
		panic("store: redis client cannot be nil")
	}
	if prefix == "" {
		prefix = "concierge"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) GetState(ctx context.Context, chatID string) (*domain.ChatState, error) {
	var state domain.ChatState
	if err := s.getJSON(ctx, s.key("state", chatID), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *RedisStore) SaveState(ctx context.Context, chatID string, state *domain.ChatState) error {
	return s.setJSON(ctx, s.key("state", chatID), state, stateTTL)
}

func (s *RedisStore) DeleteState(ctx context.Context, chatID string) error {
	if err := s.redis.Del(ctx, s.key("state", chatID)).Err(); err != nil {
		return fmt.Errorf("store: delete state: %w", err)
	}
	return nil
}

func (s *RedisStore) GetStat(ctx context.Context, chatID string) (*domain.Stat, error) {
	var stat domain.Stat
	if err := s.getJSON(ctx, s.key("stat", chatID), &stat); err != nil {
		return nil, err
	}
	return &stat, nil
}

func (s *RedisStore) SaveStat(ctx context.Context, chatID string, stat *domain.Stat) error {
	return s.setJSON(ctx, s.key("stat", chatID), stat, 0)
}

func (s *RedisStore) AppendHistory(ctx context.Context, chatID string, entry domain.HistoryEntry, limit int) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("store: marshal history entry: %w", err)
	}
	key := s.key("history", chatID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	if limit > 0 {
		pipe.LTrim(ctx, key, int64(-limit), -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: append history: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, chatID string) ([]domain.HistoryEntry, error) {
	raw, err := s.redis.LRange(ctx, s.key("history", chatID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("store: load history: %w", err)
	}
	entries := make([]domain.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var e domain.HistoryEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("store: decode history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *RedisStore) Close() error {
	return s.redis.Close()
}

func (s *RedisStore) key(kind, chatID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, kind, chatID)
}

func (s *RedisStore) getJSON(ctx context.Context, key string, out any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("store: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("store: decode %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	if err := s.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}
