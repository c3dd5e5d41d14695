package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/davidbz/tokenledger/internal/domain"
)

// ErrRedisDisabled indicates a redis target without a configured client.
var ErrRedisDisabled = errors.New("redis snapshots are not configured")

// Router dispatches a snapshot to the writer matching its target.
type Router struct {
	json   *FileWriter
	yaml   *FileWriter
	sqlite *SQLiteWriter
	redis  *RedisWriter
}

// NewRouter creates a router. redis may be nil.
func NewRouter(redis *RedisWriter) *Router {
	return &Router{
		json:   NewFileWriter(EncodingJSON),
		yaml:   NewFileWriter(EncodingYAML),
		sqlite: NewSQLiteWriter(),
		redis:  redis,
	}
}

// Write implements domain.SnapshotWriter.
func (r *Router) Write(ctx context.Context, target string, snapshot domain.Snapshot) error {
	writer, err := r.writerFor(target)
	if err != nil {
		return err
	}

	return writer.Write(ctx, target, snapshot)
}

func (r *Router) writerFor(target string) (domain.SnapshotWriter, error) {
	switch {
	case target == "":
		return nil, errors.New("snapshot target cannot be empty")
	case IsRedisTarget(target):
		if r.redis == nil {
			return nil, fmt.Errorf("%w: %s", ErrRedisDisabled, target)
		}
		return r.redis, nil
	case IsSQLitePath(target):
		return r.sqlite, nil
	case EncodingFor(target) == EncodingYAML:
		return r.yaml, nil
	default:
		return r.json, nil
	}
}
