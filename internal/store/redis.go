package store

import (
	"context"
	"fmt"

	"github.com/beetlebugorg/osmtile/pkg/osmtile"
	"github.com/redis/go-redis/v9"
)

// RedisSink stores each tile's PNG bytes under {prefix}{z}/{x}/{y}.
type RedisSink struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to a redis:// URL and pings the server.
func OpenRedis(ctx context.Context, url, prefix string) (*RedisSink, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis sink: parse url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis sink: ping: %w", err)
	}
	return NewRedisSink(client, prefix), nil
}

// NewRedisSink wraps an existing client.
func NewRedisSink(client *redis.Client, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "tile:"
	}
	return &RedisSink{client: client, prefix: prefix}
}

// Key returns the Redis key for a tile.
func (s *RedisSink) Key(t osmtile.Tile) string {
	return s.prefix + t.String()
}

// Put implements osmtile.TileSink. Tiles do not expire.
func (s *RedisSink) Put(ctx context.Context, t osmtile.Tile, png []byte) error {
	if err := s.client.Set(ctx, s.Key(t), png, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.Key(t), err)
	}
	return nil
}

// Get returns a stored tile, or redis.Nil when absent.
func (s *RedisSink) Get(ctx context.Context, t osmtile.Tile) ([]byte, error) {
	return s.client.Get(ctx, s.Key(t)).Bytes()
}

// Close closes the client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
