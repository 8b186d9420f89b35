package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/beetlebugorg/osmtile/pkg/osmtile"
)

// FileSink writes tiles to {root}/{z}/{x}/{y}.png.
type FileSink struct {
	root string
}

// NewFileSink creates the output root if needed.
func NewFileSink(root string) (*FileSink, error) {
	if root == "" {
		return nil, fmt.Errorf("file sink: empty output directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("file sink: %w", err)
	}
	return &FileSink{root: root}, nil
}

// Path returns the file a tile is written to.
func (s *FileSink) Path(t osmtile.Tile) string {
	return filepath.Join(s.root, strconv.Itoa(t.Z), strconv.Itoa(t.X), strconv.Itoa(t.Y)+".png")
}

// Put writes the tile through a temporary file and renames it into place,
// so readers never see a partial PNG.
func (s *FileSink) Put(_ context.Context, t osmtile.Tile, png []byte) error {
	path := s.Path(t)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tile-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(png); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Close implements io.Closer.
func (s *FileSink) Close() error {
	return nil
}
