package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ragstack/rag-backend/internal/core"
)

const (
	keyPrefix       = "conversation:"
	DefaultTTL      = time.Hour
	DefaultMaxTurns = 50
)

// RedisStore is the durable session store. Each session lives under one
// time-expiring key holding the JSON-encoded turn list; every write resets
// the TTL, reads do not.
type RedisStore struct {
	rdb      *redis.Client
	ttl      time.Duration
	maxTurns int
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration, maxTurns int) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &RedisStore{rdb: rdb, ttl: ttl, maxTurns: maxTurns}
}

// Ping verifies connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, turn core.ConversationTurn) error {
	turns, err := s.History(ctx, sessionID)
	if err != nil {
		return err
	}
	turns = append(turns, turn)
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}

	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", sessionID, err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+sessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("storing session %s (%d turns): %w", sessionID, len(turns), err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, sessionID string) ([]core.ConversationTurn, error) {
	data, err := s.rdb.Get(ctx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching session %s: %w", sessionID, err)
	}
	var turns []core.ConversationTurn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", sessionID, err)
	}
	return turns, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("clearing session %s: %w", sessionID, err)
	}
	return nil
}
