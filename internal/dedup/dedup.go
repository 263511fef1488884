// Package dedup remembers webhook update ids that were fully ingested so that
// provider redeliveries are acknowledged without repeating the writes.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mediavault/mediavault/internal/config"
)

// ErrNotConfigured is returned by New when no redis address is set.
var ErrNotConfigured = errors.New("redis dedup not configured")

const markerValue = "1"

// client is the subset of the redis client the store calls.
type client interface {
	Exists(ctx context.Context, keys ...string) *goredis.IntCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// RedisStore keeps one expiring key per ingested update id.
type RedisStore struct {
	rdb    client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// New connects to redis and verifies the connection with a ping.
func New(ctx context.Context, log *slog.Logger, cfg config.RedisConfig) (*RedisStore, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        strings.TrimSpace(cfg.Addr),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newStore(rdb, cfg.KeyPrefix, cfg.TTL(), log), nil
}

func newStore(rdb client, prefix string, ttl time.Duration, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = config.DefaultDedupKeyPrefix
	}
	if ttl <= 0 {
		ttl = time.Duration(config.DefaultDedupTTLHours) * time.Hour
	}
	return &RedisStore{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		logger: log.With(slog.String("service", "dedup")),
	}
}

// Key returns the redis key for an update id.
func (s *RedisStore) Key(updateID int) string {
	return s.prefix + strconv.Itoa(updateID)
}

// Seen reports whether updateID was marked within the TTL window.
func (s *RedisStore) Seen(ctx context.Context, updateID int) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.Key(updateID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Mark records updateID as fully ingested.
func (s *RedisStore) Mark(ctx context.Context, updateID int) error {
	if err := s.rdb.Set(ctx, s.Key(updateID), markerValue, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	s.logger.Debug("update marked", slog.Int("update_id", updateID), slog.Duration("ttl", s.ttl))
	return nil
}

// Ping checks the redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the redis connection pool.
func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// Noop never reports an update as seen.
type Noop struct{}

func (Noop) Seen(context.Context, int) (bool, error) { return false, nil }

func (Noop) Mark(context.Context, int) error { return nil }
