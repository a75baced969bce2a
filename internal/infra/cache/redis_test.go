package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis keeps keys in a map and honours SetNX semantics.
type fakeRedis struct {
	keys   map[string]time.Duration
	values map[string]string
	err    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: map[string]time.Duration{}, values: map[string]string{}}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, _ interface{}, ttl time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.keys[key] = ttl
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			n++
		}
		delete(f.keys, k)
		delete(f.values, k)
	}
	return redis.NewIntResult(n, nil)
}

func TestEventDeduper_FirstSeen(t *testing.T) {
	fake := newFakeRedis()
	d := &EventDeduper{client: fake, ttl: time.Hour}
	ctx := context.Background()

	first, err := d.FirstSeen(ctx, "open:evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.FirstSeen(ctx, "open:evt-1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := d.FirstSeen(ctx, "click:evt-1")
	require.NoError(t, err)
	assert.True(t, other)

	assert.Equal(t, time.Hour, fake.keys["leadforge:event:open:evt-1"])
}

func TestEventDeduper_ForgetAllowsRetry(t *testing.T) {
	d := &EventDeduper{client: newFakeRedis(), ttl: time.Hour}
	ctx := context.Background()

	first, err := d.FirstSeen(ctx, "click:evt-2")
	require.NoError(t, err)
	require.True(t, first)

	require.NoError(t, d.Forget(ctx, "click:evt-2"))
	again, err := d.FirstSeen(ctx, "click:evt-2")
	require.NoError(t, err)
	assert.True(t, again)
}

func TestEventDeduper_Error(t *testing.T) {
	d := &EventDeduper{client: &fakeRedis{err: errors.New("connection refused")}, ttl: time.Hour}

	_, err := d.FirstSeen(context.Background(), "reply:evt-9")
	assert.ErrorContains(t, err, "connection refused")
	assert.ErrorContains(t, d.Forget(context.Background(), "reply:evt-9"), "connection refused")
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}
