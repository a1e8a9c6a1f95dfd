package modelstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"greentwin/internal/anomaly"
)

// kv is the subset of the redis client the store needs
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps model blobs under <key_prefix><machine_id>
type RedisStore struct {
	client kv
	closer func() error
	prefix string
}

// NewRedisStore connects to redis and verifies the connection
func NewRedisStore(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, closer: client.Close, prefix: prefix}, nil
}

// Key returns the redis key for a machine
func (s *RedisStore) Key(machineID string) string {
	return s.prefix + machineID
}

func (s *RedisStore) Load(ctx context.Context, machineID string) (*anomaly.Model, error) {
	blob, err := s.client.Get(ctx, s.Key(machineID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decode(machineID, blob)
}

func (s *RedisStore) Save(ctx context.Context, machineID string, m *anomaly.Model) error {
	blob, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.Key(machineID), blob, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
