package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/beetlebugorg/osmtile/pkg/osmtile"
	_ "github.com/lib/pq"
)

const (
	createTilesTable = `CREATE TABLE IF NOT EXISTS tiles (
	z    INTEGER NOT NULL,
	x    INTEGER NOT NULL,
	y    INTEGER NOT NULL,
	data BYTEA   NOT NULL,
	PRIMARY KEY (z, x, y)
)`

	upsertTile = `INSERT INTO tiles (z, x, y, data) VALUES ($1, $2, $3, $4)
ON CONFLICT (z, x, y) DO UPDATE SET data = EXCLUDED.data`
)

// execer is the subset of *sql.DB the sink uses.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresSink upserts tiles into a tiles(z, x, y, data) table.
type PostgresSink struct {
	db     execer
	closer func() error
}

// OpenPostgres connects with lib/pq and creates the tiles table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres sink: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres sink: ping: %w", err)
	}
	s := &PostgresSink{db: db, closer: db.Close}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the tiles table.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTilesTable); err != nil {
		return fmt.Errorf("postgres sink: create table: %w", err)
	}
	return nil
}

// Put implements osmtile.TileSink.
func (s *PostgresSink) Put(ctx context.Context, t osmtile.Tile, png []byte) error {
	if _, err := s.db.ExecContext(ctx, upsertTile, t.Z, t.X, t.Y, png); err != nil {
		return fmt.Errorf("postgres upsert %s: %w", t, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
