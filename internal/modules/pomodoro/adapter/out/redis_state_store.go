package out

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	pomodorout "studypomo/internal/modules/pomodoro/port/out"
	"studypomo/internal/platform/config"
	apperrors "studypomo/internal/platform/errors"
)

var errStoreClosed = errors.New("state store closed")

// RedisStateStore keeps snapshots in Redis so several devices can share one
// timer.
type RedisStateStore struct {
	client *redis.Client
	prefix string
}

// OpenRedisStateStore connects and pings before returning.
func OpenRedisStateStore(cfg config.RedisConfig, prefix string) (*RedisStateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	return &RedisStateStore{client: client, prefix: prefix}, nil
}

var _ pomodorout.PersistenceAdapter = (*RedisStateStore)(nil)

func (s *RedisStateStore) Get(ctx context.Context, key string) (string, error) {
	if s.client == nil {
		return "", errStoreClosed
	}
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisStateStore) Set(ctx context.Context, key, value string) error {
	if s.client == nil {
		return errStoreClosed
	}
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStateStore) Remove(ctx context.Context, key string) error {
	if s.client == nil {
		return errStoreClosed
	}
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStateStore) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
