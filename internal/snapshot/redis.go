package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/tokenledger/internal/domain"
	"github.com/davidbz/tokenledger/internal/observability"
)

// RedisScheme prefixes snapshot targets that live in Redis.
const RedisScheme = "redis:"

// ErrSnapshotNotFound indicates the requested snapshot key does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// IsRedisTarget reports whether target addresses a Redis key.
func IsRedisTarget(target string) bool {
	return strings.HasPrefix(target, RedisScheme)
}

// RedisWriter stores snapshots as JSON strings under a key prefix.
type RedisWriter struct {
	client *redis.Client
	prefix string
}

// NewRedisWriter creates a Redis snapshot writer.
func NewRedisWriter(client *redis.Client, prefix string) *RedisWriter {
	return &RedisWriter{
		client: client,
		prefix: prefix,
	}
}

// Key returns the Redis key that stores target.
func (w *RedisWriter) Key(target string) string {
	return w.prefix + strings.TrimPrefix(target, RedisScheme)
}

// Write replaces the value stored for target with the encoded snapshot.
func (w *RedisWriter) Write(ctx context.Context, target string, snapshot domain.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := w.Key(target)
	if err := w.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot %s: %w", key, err)
	}

	observability.FromContext(ctx).Debug("snapshot stored in redis",
		observability.String("key", key),
		observability.Int("bytes", len(data)))

	return nil
}

// Read loads the snapshot stored for target.
func (w *RedisWriter) Read(ctx context.Context, target string) (domain.Snapshot, error) {
	var snapshot domain.Snapshot

	key := w.Key(target)
	data, err := w.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return snapshot, fmt.Errorf("%w: %s", ErrSnapshotNotFound, key)
	}
	if err != nil {
		return snapshot, fmt.Errorf("failed to load snapshot %s: %w", key, err)
	}

	if err := json.Unmarshal(data, &snapshot); err != nil {
		return snapshot, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}

	return snapshot, nil
}
