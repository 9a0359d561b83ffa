package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrNotFound is returned by a Backend when no value is stored under a key.
var ErrNotFound = errors.New("key not found")

// Backend is the key-value storage holding the serialized records.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// RedisBackend stores records as plain Redis strings.
type RedisBackend struct {
	Client *redis.Client
}

// NewRedisBackend wraps a connected client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{Client: client}
}

// Get reads key, mapping redis.Nil to ErrNotFound.
func (b *RedisBackend) Get(ctx context.Context, key string) (string, error) {
	val, err := b.Client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get %s from Redis: %w", key, err)
	}
	return val, nil
}

// Set overwrites key without expiry.
func (b *RedisBackend) Set(ctx context.Context, key, value string) error {
	if err := b.Client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s in Redis: %w", key, err)
	}
	return nil
}

// MemoryBackend keeps records in process memory.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]string)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	val, ok := b.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (b *MemoryBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	return nil
}

// RedisOptions selects the Redis server and database.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// InitializeRedisClient creates and tests a Redis client connection
func InitializeRedisClient(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	// Ping Redis to check connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", opts.Addr, err)
	}

	logger.Info("connected to Redis", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return rdb, nil
}
