package branch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const notFoundMarker = "__not_found__"

// CachedDirectory is a Redis read-through cache in front of another
// Directory. Redis failures fall through to the inner directory.
type CachedDirectory struct {
	inner  Directory
	client redis.Cmdable
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewCachedDirectory(inner Directory, client redis.Cmdable, ttl time.Duration, prefix string, logger *slog.Logger) *CachedDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "bank:branch:"
	}
	return &CachedDirectory{inner: inner, client: client, ttl: ttl, prefix: prefix, logger: logger}
}

func (d *CachedDirectory) Status(ctx context.Context, code string) (Status, error) {
	key := d.prefix + code
	raw, err := d.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if raw == notFoundMarker {
			return Status{}, ErrBranchNotFound
		}
		var st Status
		if jsonErr := json.Unmarshal([]byte(raw), &st); jsonErr == nil {
			return st, nil
		}
	case !errors.Is(err, redis.Nil):
		d.logger.Warn("branch cache read failed", "branch_code", code, "error", err)
	}

	st, err := d.inner.Status(ctx, code)
	if errors.Is(err, ErrBranchNotFound) {
		d.store(ctx, key, notFoundMarker)
		return Status{}, err
	}
	if err != nil {
		return Status{}, err
	}
	if payload, jsonErr := json.Marshal(st); jsonErr == nil {
		d.store(ctx, key, string(payload))
	}
	return st, nil
}

func (d *CachedDirectory) store(ctx context.Context, key, value string) {
	if err := d.client.Set(ctx, key, value, d.ttl).Err(); err != nil {
		d.logger.Warn("branch cache write failed", "key", key, "error", err)
	}
}
