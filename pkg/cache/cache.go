// Package cache stores recognized image text keyed by image link, so rows
// that share an image run OCR once.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TextCache is safe for concurrent use.
type TextCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, text string)
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (string, bool) { return "", false }
func (Nop) Set(context.Context, string, string)        {}

// Memory is an in-process cache with per-entry expiry.
type Memory struct {
	c *gocache.Cache
}

// NewMemory returns a Memory cache; ttl <= 0 keeps entries until exit.
func NewMemory(ttl time.Duration) *Memory {
	cleanup := ttl
	if ttl <= 0 {
		ttl = gocache.NoExpiration
		cleanup = 0
	}
	return &Memory{c: gocache.New(ttl, cleanup)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (m *Memory) Set(_ context.Context, key, text string) {
	m.c.SetDefault(key, text)
}

// Len reports the number of stored entries, including expired ones not yet
// cleaned up.
func (m *Memory) Len() int {
	return m.c.ItemCount()
}
