package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds connection settings for the key/value store.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Store is a typed wrapper over the Redis client. One Store (and its
// underlying connection pool) is shared by the whole process.
type Store struct {
	client *redis.Client
}

// New wraps an existing Redis client. Used by tests that dial miniredis.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Dial connects to Redis and verifies the connection with a ping.
func Dial(cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("kv: connect to %s: %w", cfg.Addr, err)
	}

	return &Store{client: client}, nil
}

// Get reads a string value. A missing key returns "" with no error.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("kv: get %s: %w", key, err)
	}
	return val, nil
}

// Set writes a value unconditionally. ttl <= 0 means no expiry; a positive
// ttl is reset on every write.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("kv: set %s: %w", key, err)
	}
	return nil
}

// Exists reports whether the key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("kv: exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Incr atomically increments an integer counter and returns the new value.
// A missing key starts at 0, so the first Incr returns 1.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("kv: incr %s: %w", key, err)
	}
	return n, nil
}

// IncrFloat atomically adds delta to a float accumulator and returns the
// new value.
func (s *Store) IncrFloat(ctx context.Context, key string, delta float64) (float64, error) {
	v, err := s.client.IncrByFloat(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("kv: incrbyfloat %s: %w", key, err)
	}
	return v, nil
}

// Client exposes the underlying Redis client for callers that need
// server-side scripting.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
