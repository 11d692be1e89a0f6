package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()
	_, ok, err := c.Get(ctx, "list:products")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "list:products", []byte(`[{"_id":"a"}]`), time.Minute))
	b, ok, err := c.Get(ctx, "list:products")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"_id":"a"}]`, string(b))

	require.NoError(t, c.Set(ctx, "list:categories", []byte(`[]`), time.Minute))
	require.NoError(t, c.Delete(ctx, "list:products", "list:categories"))
	_, ok, _ = c.Get(ctx, "list:products")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "list:categories")
	assert.False(t, ok)
	require.NoError(t, c.Delete(ctx))
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestMemoryExpiry(t *testing.T) {
	c := NewMemory()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	require.NoError(t, c.Set(ctx, "forever", []byte("v"), 0))

	now = now.Add(999 * time.Millisecond)
	_, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Millisecond)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestMemoryCopiesValues(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	v := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", v, 0))
	v[0] = 'x'
	got, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestNewPicksBackend(t *testing.T) {
	assert.IsType(t, &Memory{}, New("", "", 0))
	c := New("localhost:6379", "", 0)
	assert.IsType(t, &Redis{}, c)
	require.NoError(t, c.Close())
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	c := NewRedis(addr, os.Getenv("REDIS_PASSWORD"), 0, "inventory-test:")
	defer func() { _ = c.Close() }()
	require.NoError(t, c.Ping(context.Background()))
	exercise(t, c)
}
