package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions configures a Redis-backed text cache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Redis shares recognized text across processes. Backend errors are logged
// and treated as misses.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, o RedisOptions, log *zap.Logger) (*Redis, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", o.Addr, err)
	}
	return newRedis(client, o, log), nil
}

func newRedis(client *redis.Client, o RedisOptions, log *zap.Logger) *Redis {
	prefix := o.Prefix
	if prefix == "" {
		prefix = "imgmeasure:text:"
	}
	return &Redis{client: client, prefix: prefix, ttl: o.TTL, log: log}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	s, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("redis get failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return s, true
}

func (r *Redis) Set(ctx context.Context, key, text string) {
	if err := r.client.Set(ctx, r.prefix+key, text, r.ttl).Err(); err != nil {
		r.log.Warn("redis set failed", zap.String("key", key), zap.Error(err))
	}
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
