package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/beetlebugorg/osmtile/pkg/osmtile"
	"github.com/redis/go-redis/v9"
)

var (
	testTile = osmtile.NewTile(17, 109227, 53246)
	testPNG  = []byte("\x89PNG\r\n\x1a\nfake")
)

func TestFileSink(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tiles")
	sink, err := NewFileSink(root)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	defer sink.Close()

	if err := sink.Put(context.Background(), testTile, testPNG); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	want := filepath.Join(root, "17", "109227", "53246.png")
	if got := sink.Path(testTile); got != want {
		t.Errorf("Expected path %s, got %s", want, got)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("Tile not written: %v", err)
	}
	if !bytes.Equal(data, testPNG) {
		t.Error("Stored bytes differ")
	}

	// Overwrite leaves no temporary files behind
	if err := sink.Put(context.Background(), testTile, []byte("second")); err != nil {
		t.Fatalf("Second put failed: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(want))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 file in tile directory, got %d", len(entries))
	}
}

func TestFileSinkEmptyRoot(t *testing.T) {
	if _, err := NewFileSink(""); err == nil {
		t.Error("Expected error for empty root")
	}
}

func TestRedisSink(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sink := NewRedisSink(client, "")
	defer sink.Close()

	if got := sink.Key(testTile); got != "tile:17/109227/53246" {
		t.Errorf("Unexpected key %s", got)
	}

	ctx := context.Background()
	if err := sink.Put(ctx, testTile, testPNG); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := sink.Get(ctx, testTile)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, testPNG) {
		t.Error("Stored bytes differ")
	}
	if mr.TTL("tile:17/109227/53246") != 0 {
		t.Error("Expected tiles without expiry")
	}

	if _, err := sink.Get(ctx, osmtile.NewTile(1, 0, 0)); !errors.Is(err, redis.Nil) {
		t.Errorf("Expected redis.Nil for absent tile, got %v", err)
	}
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	sink, err := Open(context.Background(), Config{
		Kind:        KindRedis,
		RedisURL:    "redis://" + mr.Addr() + "/0",
		RedisPrefix: "osm:",
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sink.Close()

	if err := sink.Put(context.Background(), testTile, testPNG); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !mr.Exists("osm:17/109227/53246") {
		t.Error("Expected prefixed key in redis")
	}
}

func TestOpenRedisUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	addr := mr.Addr()
	mr.Close()

	if _, err := OpenRedis(context.Background(), "redis://"+addr, ""); err == nil {
		t.Error("Expected ping error for a closed server")
	}
	if _, err := OpenRedis(context.Background(), "not a url", ""); err == nil {
		t.Error("Expected parse error")
	}
}

// fakeExecer records statements instead of talking to PostgreSQL.
type fakeExecer struct {
	queries []string
	args    [][]any
	err     error
}

func (f *fakeExecer) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	return nil, f.err
}

func TestPostgresSink(t *testing.T) {
	db := &fakeExecer{}
	sink := &PostgresSink{db: db}

	ctx := context.Background()
	if err := sink.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
	if err := sink.Put(ctx, testTile, testPNG); err != nil {
		t.Fatal(err)
	}

	if len(db.queries) != 2 {
		t.Fatalf("Expected 2 statements, got %d", len(db.queries))
	}
	if !strings.HasPrefix(db.queries[0], "CREATE TABLE IF NOT EXISTS tiles") {
		t.Errorf("Unexpected schema statement %q", db.queries[0])
	}
	if !strings.Contains(db.queries[1], "ON CONFLICT (z, x, y)") {
		t.Errorf("Expected upsert, got %q", db.queries[1])
	}
	args := db.args[1]
	if len(args) != 4 || args[0] != 17 || args[1] != 109227 || args[2] != 53246 {
		t.Errorf("Unexpected arguments %v", args)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("Close without pool failed: %v", err)
	}
}

func TestPostgresSinkError(t *testing.T) {
	sink := &PostgresSink{db: &fakeExecer{err: errors.New("connection reset")}}
	err := sink.Put(context.Background(), testTile, testPNG)
	if err == nil || !strings.Contains(err.Error(), "17/109227/53246") {
		t.Errorf("Expected error naming the tile, got %v", err)
	}
}

func TestOpenUnknownKind(t *testing.T) {
	if _, err := Open(context.Background(), Config{Kind: "s3"}); err == nil {
		t.Error("Expected error for unknown sink")
	}
}

func TestOpenFile(t *testing.T) {
	sink, err := Open(context.Background(), Config{Kind: KindFile, Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := sink.(*FileSink); !ok {
		t.Errorf("Expected *FileSink, got %T", sink)
	}
}
