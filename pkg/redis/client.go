package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/livelihood-backend/pkg/config"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Keyspace is the second segment of every key this service writes.
type Keyspace string

const (
	namespace = "lv"

	KeyspaceIdempotency Keyspace = "idempotency"
	KeyspaceRateLimit   Keyspace = "rate_limit"
	KeyspaceSession     Keyspace = "session"
)

var (
	ErrNotInitialized = errors.New("redis client not initialized")
	// ErrMiss is returned by Get and GetDel when the key does not exist.
	ErrMiss = redis.Nil
)

// Key joins non-empty parts under the service namespace, e.g. lv:session:access:<jti>.
func Key(space Keyspace, parts ...string) string {
	segments := []string{namespace, string(space)}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			segments = append(segments, part)
		}
	}
	return strings.Join(segments, ":")
}

func SessionKey(accessID string) string { return Key(KeyspaceSession, "access", accessID) }

// UserSessionsKey indexes the access ids a user has opened sessions under.
func UserSessionsKey(userID string) string { return Key(KeyspaceSession, "user", userID) }

func RateLimitKey(scope string) string { return Key(KeyspaceRateLimit, scope) }

func IdempotencyKey(scope, id string) string { return Key(KeyspaceIdempotency, scope, id) }

// commands is the subset of go-redis the service relies on.
type commands interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	ExpireNX(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
}

// Client backs refresh sessions, request throttling and idempotent replays.
type Client struct {
	cmd   commands
	close func() error
}

func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"redis_addr": opts.Addr, "redis_db": opts.DB}), "redis connection established")
	}
	return &Client{cmd: raw, close: raw.Close}, nil
}

// optionsFromConfig prefers the URL form; pool and timeout settings from
// config fill whatever the URL leaves unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
		if opts.DB == 0 {
			opts.DB = cfg.DB
		}
	case cfg.Address == "":
		return nil, errors.New("redis url or address is required")
	}

	fill := func(dst *time.Duration, src time.Duration) {
		if *dst == 0 {
			*dst = src
		}
	}
	fill(&opts.DialTimeout, cfg.DialTimeout)
	fill(&opts.ReadTimeout, cfg.ReadTimeout)
	fill(&opts.WriteTimeout, cfg.WriteTimeout)
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	return opts, nil
}

func (c *Client) ready() error {
	if c == nil || c.cmd == nil {
		return ErrNotInitialized
	}
	return nil
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.cmd.Set(ctx, key, value, ttl).Err()
}

// SetNX writes value only when key is absent and reports whether it did.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.cmd.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	return c.cmd.Get(ctx, key).Result()
}

// GetDel reads and removes key in one round trip, so only one caller can
// ever consume a given value.
func (c *Client) GetDel(ctx context.Context, key string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	return c.cmd.GetDel(ctx, key).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.cmd.Del(ctx, keys...).Err()
}

// AddMember adds member to the set at key and pushes the set's expiry out to ttl.
func (c *Client) AddMember(ctx context.Context, key, member string, ttl time.Duration) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.cmd.SAdd(ctx, key, member).Err(); err != nil {
		return err
	}
	return c.cmd.Expire(ctx, key, ttl).Err()
}

// Members lists the set at key; a missing key is an empty set.
func (c *Client) Members(ctx context.Context, key string) ([]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.cmd.SMembers(ctx, key).Result()
}

// Window is the state of one fixed-window counter after a hit.
type Window struct {
	Count   int64
	Limit   int64
	ResetIn time.Duration
}

func (w Window) Allowed() bool { return w.Count <= w.Limit }

func (w Window) Remaining() int64 {
	if w.Count >= w.Limit {
		return 0
	}
	return w.Limit - w.Count
}

// Allow counts one hit against scope. The window starts at the first hit;
// ExpireNX runs on every hit so a counter never outlives a lost EXPIRE.
func (c *Client) Allow(ctx context.Context, scope string, limit int64, window time.Duration) (Window, error) {
	if err := c.ready(); err != nil {
		return Window{}, err
	}
	key := RateLimitKey(scope)
	count, err := c.cmd.Incr(ctx, key).Result()
	if err != nil {
		return Window{}, err
	}
	if err := c.cmd.ExpireNX(ctx, key, window).Err(); err != nil {
		return Window{}, err
	}
	resetIn, err := c.cmd.PTTL(ctx, key).Result()
	if err != nil || resetIn <= 0 {
		resetIn = window
	}
	return Window{Count: count, Limit: limit, ResetIn: resetIn}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.cmd.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.close == nil {
		return nil
	}
	return c.close()
}
