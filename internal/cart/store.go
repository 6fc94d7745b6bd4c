package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chowline/internal/domain"
)

// Store persists cart snapshots so a session reload does not lose state.
type Store interface {
	Save(ctx context.Context, userID string, snap domain.CartSnapshot) error
	Load(ctx context.Context, userID string) (domain.CartSnapshot, bool, error)
	Delete(ctx context.Context, userID string) error
}

const cartTTL = 72 * time.Hour

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func cartKey(userID string) string { return "cart:" + userID }

func (s *RedisStore) Save(ctx context.Context, userID string, snap domain.CartSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal cart snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, cartKey(userID), b, cartTTL).Err(); err != nil {
		return fmt.Errorf("save cart for %s: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, userID string) (domain.CartSnapshot, bool, error) {
	b, err := s.rdb.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CartSnapshot{}, false, nil
	}
	if err != nil {
		return domain.CartSnapshot{}, false, fmt.Errorf("load cart for %s: %w", userID, err)
	}
	var snap domain.CartSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return domain.CartSnapshot{}, false, fmt.Errorf("decode cart for %s: %w", userID, err)
	}
	return snap, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete cart for %s: %w", userID, err)
	}
	return nil
}
