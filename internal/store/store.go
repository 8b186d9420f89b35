// Package store persists rendered tiles to the file system, Redis or
// PostgreSQL.
package store

import (
	"context"
	"fmt"
	"io"

	"github.com/beetlebugorg/osmtile/pkg/osmtile"
)

// Kind names a sink backend.
type Kind string

const (
	KindFile     Kind = "file"
	KindRedis    Kind = "redis"
	KindPostgres Kind = "postgres"
)

// Sink is a tile sink that holds resources.
type Sink interface {
	osmtile.TileSink
	io.Closer
}

// Config selects and configures a backend.
type Config struct {
	Kind Kind

	// Dir is the output root for KindFile.
	Dir string

	// RedisURL is a redis:// URL for KindRedis.
	RedisURL string

	// RedisPrefix is prepended to every Redis key.
	RedisPrefix string

	// PostgresDSN is a lib/pq connection string for KindPostgres.
	PostgresDSN string
}

// Open creates the configured sink and checks that it is reachable.
func Open(ctx context.Context, cfg Config) (Sink, error) {
	var (
		sink Sink
		err  error
	)
	switch cfg.Kind {
	case KindFile, "":
		sink, err = NewFileSink(cfg.Dir)
	case KindRedis:
		sink, err = OpenRedis(ctx, cfg.RedisURL, cfg.RedisPrefix)
	case KindPostgres:
		sink, err = OpenPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown sink %q (want file, redis or postgres)", cfg.Kind)
	}
	if err != nil {
		return nil, err
	}
	return sink, nil
}
