package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/tradepost-backend/pkg/config"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const keyNamespace = "tp"

// Key families under the tp: namespace.
const (
	familyIdempotency = "idempotency"
	familyRateLimit   = "rate_limit"
	familySession     = "session"
	familyLock        = "lock"
)

var errNotInitialized = errors.New("redis client not initialized")

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Incr(context.Context, string) *redis.IntCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Client is the Redis surface shared by sessions, idempotency keys, rate
// limits and the cron lock.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// IdempotencyStore exposes minimal operations used by idempotency helpers.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

// New connects and pings Redis.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "redis_db", opts.DB), "redis connection established")
	}
	return &Client{store: raw, raw: raw}, nil
}

// optionsFromConfig prefers TRADEPOST_REDIS_URL; explicit pool and timeout
// settings fill whatever the URL leaves unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password}
	default:
		return nil, errors.New("redis url or address is required")
	}

	orDefault(&opts.DB, cfg.DB)
	orDefault(&opts.PoolSize, cfg.PoolSize)
	orDefault(&opts.MinIdleConns, cfg.MinIdleConns)
	orDefault(&opts.DialTimeout, cfg.DialTimeout)
	orDefault(&opts.ReadTimeout, cfg.ReadTimeout)
	orDefault(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

// orDefault sets *dst to v when *dst is still the zero value.
func orDefault[T comparable](dst *T, v T) {
	var zero T
	if *dst == zero {
		*dst = v
	}
}

func (c *Client) conn() (cmdable, error) {
	if c == nil || c.store == nil {
		return nil, errNotInitialized
	}
	return c.store, nil
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	conn, err := c.conn()
	if err != nil {
		return err
	}
	return conn.Set(ctx, key, value, ttl).Err()
}

// Get returns redis.Nil when key is absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	conn, err := c.conn()
	if err != nil {
		return "", err
	}
	return conn.Get(ctx, key).Result()
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	conn, err := c.conn()
	if err != nil {
		return false, err
	}
	return conn.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	conn, err := c.conn()
	if err != nil {
		return err
	}
	return conn.Del(ctx, keys...).Err()
}

// DelIfEquals deletes key when its value equals expected and reports whether
// anything was removed.
func (c *Client) DelIfEquals(ctx context.Context, key, expected string) (bool, error) {
	if c == nil || c.raw == nil {
		return false, errNotInitialized
	}
	n, err := compareAndDelete.Run(ctx, c.raw, []string{key}, expected).Int64()
	return n == 1, err
}

// IncrWithTTL increments key and starts its TTL on the first increment.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	conn, err := c.conn()
	if err != nil {
		return 0, err
	}
	count, err := conn.Incr(ctx, key).Result()
	if err != nil || count != 1 || ttl <= 0 {
		return count, err
	}
	return count, conn.Expire(ctx, key, ttl).Err()
}

// FixedWindowAllow counts one hit against scope and reports whether the
// window is still under limit.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	count, err := c.IncrWithTTL(ctx, c.RateLimitKey(scope), window)
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(familyIdempotency, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return buildKey(familyRateLimit, scope)
}

func (c *Client) AccessSessionKey(accessID string) string {
	return buildKey(familySession, "access", accessID)
}

func (c *Client) LockKey(name string) string {
	return buildKey(familyLock, name)
}

func (c *Client) Ping(ctx context.Context) error {
	conn, err := c.conn()
	if err != nil {
		return err
	}
	return conn.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func buildKey(parts ...string) string {
	key := []string{keyNamespace}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			key = append(key, part)
		}
	}
	return strings.Join(key, ":")
}
