package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	_, ok := m.Get(ctx, "http://x/a.jpg")
	assert.False(t, ok)

	m.Set(ctx, "http://x/a.jpg", "net wt 500 g")
	got, ok := m.Get(ctx, "http://x/a.jpg")
	require.True(t, ok)
	assert.Equal(t, "net wt 500 g", got)

	// empty text is a valid recognition result
	m.Set(ctx, "http://x/blank.jpg", "")
	got, ok = m.Get(ctx, "http://x/blank.jpg")
	assert.True(t, ok)
	assert.Empty(t, got)
	assert.Equal(t, 2, m.Len())
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(20 * time.Millisecond)
	m.Set(ctx, "k", "v")
	time.Sleep(60 * time.Millisecond)
	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestNop(t *testing.T) {
	var c TextCache = Nop{}
	c.Set(context.Background(), "k", "v")
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestNewRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedis(ctx, RedisOptions{Addr: "127.0.0.1:1"}, nil)
	assert.Error(t, err)
}
