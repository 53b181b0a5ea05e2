package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/livelihood-backend/pkg/config"
)

func TestAllowCountsWithinWindow(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryCommands()
	client := &Client{cmd: mem}

	for i := int64(1); i <= 2; i++ {
		w, err := client.Allow(ctx, "login:ip:1.2.3.4", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, w.Allowed())
		assert.Equal(t, i, w.Count)
		assert.Equal(t, 2-i, w.Remaining())
	}

	w, err := client.Allow(ctx, "login:ip:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, w.Allowed())
	assert.Zero(t, w.Remaining())
	assert.Equal(t, time.Minute, w.ResetIn)
	assert.Equal(t, 1, mem.expiresSet["lv:rate_limit:login:ip:1.2.3.4"], "ttl is only set once")
}

func TestGetDelConsumesOnce(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newMemoryCommands()}

	key := SessionKey("jti-1")
	require.NoError(t, client.Set(ctx, key, "user:token", time.Hour))

	got, err := client.GetDel(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "user:token", got)

	_, err = client.GetDel(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestSetNXOnlyWritesOnce(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newMemoryCommands()}

	ok, err := client.SetNX(ctx, "k", "first", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, "k", "second", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := client.Get(ctx, "k")
	assert.Equal(t, "first", got)
}

func TestSetMembersExpireWithLatestAdd(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryCommands()
	client := &Client{cmd: mem}
	key := UserSessionsKey("user-1")

	require.NoError(t, client.AddMember(ctx, key, "jti-1", time.Hour))
	require.NoError(t, client.AddMember(ctx, key, "jti-2", 2*time.Hour))
	require.NoError(t, client.AddMember(ctx, key, "jti-1", 2*time.Hour))

	members, err := client.Members(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"jti-1", "jti-2"}, members)
	assert.Equal(t, 2*time.Hour, mem.ttls[key])

	require.NoError(t, client.Del(ctx, key))
	members, err = client.Members(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "lv:idempotency:user-1|POST|/x:abc", IdempotencyKey("user-1|POST|/x", "abc"))
	assert.Equal(t, "lv:rate_limit:api:ip:10.0.0.1", RateLimitKey("api:ip:10.0.0.1"))
	assert.Equal(t, "lv:session:access:jti", SessionKey("jti"))
	assert.Equal(t, "lv:session:user:u-1", UserSessionsKey("u-1"))
	assert.Equal(t, "lv:idempotency:id", IdempotencyKey(" ", "id"), "blank parts are skipped")
}

func TestZeroClientIsNotInitialized(t *testing.T) {
	var client *Client
	assert.ErrorIs(t, client.Ping(context.Background()), ErrNotInitialized)
	assert.NoError(t, client.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:pw@cache:6380/2", PoolSize: 7, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, opts.DB)
}

// memoryCommands is an in-process stand-in that ignores TTLs except to
// record when ExpireNX actually applied one.
type memoryCommands struct {
	data       map[string]string
	sets       map[string]map[string]struct{}
	ttls       map[string]time.Duration
	expiresSet map[string]int
}

func newMemoryCommands() *memoryCommands {
	return &memoryCommands{
		data:       map[string]string{},
		sets:       map[string]map[string]struct{}{},
		ttls:       map[string]time.Duration{},
		expiresSet: map[string]int{},
	}
}

func (m *memoryCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *memoryCommands) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryCommands) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.Set(ctx, key, value, ttl)
	return redis.NewBoolResult(true, nil)
}

func (m *memoryCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryCommands) GetDel(ctx context.Context, key string) *redis.StringCmd {
	cmd := m.Get(ctx, key)
	delete(m.data, key)
	delete(m.ttls, key)
	return cmd
}

func (m *memoryCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
		delete(m.sets, key)
		delete(m.ttls, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *memoryCommands) Incr(_ context.Context, key string) *redis.IntCmd {
	var n int64
	if v, ok := m.data[key]; ok {
		if _, err := fmt.Sscan(v, &n); err != nil {
			return redis.NewIntResult(0, errors.New("ERR value is not an integer"))
		}
	}
	n++
	m.data[key] = fmt.Sprint(n)
	return redis.NewIntResult(n, nil)
}

func (m *memoryCommands) ExpireNX(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	if m.ttls[key] > 0 {
		return redis.NewBoolResult(false, nil)
	}
	m.ttls[key] = ttl
	m.expiresSet[key]++
	return redis.NewBoolResult(true, nil)
}

func (m *memoryCommands) PTTL(_ context.Context, key string) *redis.DurationCmd {
	return redis.NewDurationResult(m.ttls[key], nil)
}

func (m *memoryCommands) SAdd(_ context.Context, key string, members ...any) *redis.IntCmd {
	set, ok := m.sets[key]
	if !ok {
		set = map[string]struct{}{}
		m.sets[key] = set
	}
	var added int64
	for _, member := range members {
		name := fmt.Sprint(member)
		if _, ok := set[name]; !ok {
			set[name] = struct{}{}
			added++
		}
	}
	return redis.NewIntResult(added, nil)
}

func (m *memoryCommands) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	out := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		out = append(out, member)
	}
	sort.Strings(out)
	return redis.NewStringSliceResult(out, nil)
}

func (m *memoryCommands) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}
