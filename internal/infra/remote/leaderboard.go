package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/ecolearn/ecolearn/internal/domain"
	"github.com/ecolearn/ecolearn/internal/infra/logger"
	"github.com/ecolearn/ecolearn/internal/infra/metrics"
)

// DefaultLeaderboardSize is the dashboard's top-N.
const DefaultLeaderboardSize = 3

// leaderboardFetchTimeout bounds a shared fetch, which outlives the caller
// that started it.
const leaderboardFetchTimeout = 15 * time.Second

// LeaderboardSource is the read half of domain.RemoteSync.
type LeaderboardSource interface {
	FetchLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardRow, error)
}

// Cache stores encoded leaderboard pages.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Leaderboard reads the remote leaderboard through an optional cache.
// Concurrent misses for the same page share one remote fetch; a caller that
// gives up does not cancel it for the others.
type Leaderboard struct {
	src   LeaderboardSource
	cache Cache
	ttl   time.Duration
	group singleflight.Group
	log   *logger.Logger
}

// NewLeaderboard wraps src. cache may be nil.
func NewLeaderboard(src LeaderboardSource, cache Cache, ttl time.Duration, log *logger.Logger) *Leaderboard {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Leaderboard{src: src, cache: cache, ttl: ttl, log: log.With("service", "Leaderboard")}
}

// Top returns the first limit institutions.
func (l *Leaderboard) Top(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	key := "leaderboard:" + strconv.Itoa(limit)

	if rows, ok := l.cached(ctx, key); ok {
		return rows, nil
	}

	ch := l.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), leaderboardFetchTimeout)
		defer cancel()

		rows, err := l.src.FetchLeaderboard(ctx, limit)
		if err != nil {
			return nil, err
		}
		l.store(ctx, key, rows)
		return rows, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.LeaderboardRow), nil
	}
}

func (l *Leaderboard) cached(ctx context.Context, key string) ([]domain.LeaderboardRow, bool) {
	if l.cache == nil {
		return nil, false
	}
	raw, ok, err := l.cache.Get(ctx, key)
	if err != nil {
		metrics.LeaderboardCache.WithLabelValues("error").Inc()
		l.log.Warn("leaderboard cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		metrics.LeaderboardCache.WithLabelValues("miss").Inc()
		return nil, false
	}
	var rows []domain.LeaderboardRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		metrics.LeaderboardCache.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.LeaderboardCache.WithLabelValues("hit").Inc()
	return rows, true
}

func (l *Leaderboard) store(ctx context.Context, key string, rows []domain.LeaderboardRow) {
	if l.cache == nil {
		return
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := l.cache.Set(ctx, key, raw, l.ttl); err != nil {
		l.log.Warn("leaderboard cache write failed", "key", key, "error", err)
	}
}

// ─── Redis Cache ────────────────────────────────────────────────────────────

// RedisCache implements Cache on a Redis server.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache connects to addr and pings it.
func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{rdb: rdb, prefix: "ecolearn:"}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.prefix+key, val, ttl).Err()
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
