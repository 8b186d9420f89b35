package osmtile

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// TileSink persists rendered tiles.
type TileSink interface {
	Put(ctx context.Context, t Tile, png []byte) error
}

// TileStatus is the outcome of rendering one tile.
type TileStatus int

const (
	// TileRendered means the tile was drawn and stored.
	TileRendered TileStatus = iota
	// TileEmpty means the tile had nothing to draw and was not stored.
	TileEmpty
	// TileFailed means rendering or storing the tile failed.
	TileFailed
)

// String implements fmt.Stringer.
func (s TileStatus) String() string {
	switch s {
	case TileRendered:
		return "rendered"
	case TileEmpty:
		return "empty"
	default:
		return "failed"
	}
}

// TileResult describes one finished tile.
type TileResult struct {
	Tile     Tile
	Status   TileStatus
	Duration time.Duration
	Err      error
}

// BatchObserver is notified after every tile, e.g. to update metrics.
// Implementations must be safe for concurrent use.
type BatchObserver interface {
	ObserveTile(res TileResult)
}

// BatchOptions controls parallel rendering.
type BatchOptions struct {
	// Workers specifies the number of render goroutines.
	// If 0, defaults to runtime.NumCPU().
	Workers int

	// Progress is an optional callback called after each tile.
	// Parameters: (done, total).
	Progress func(done, total int)

	// Observer is an optional per-tile hook.
	Observer BatchObserver

	// Logger receives per-tile failures. Defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultBatchOptions returns batch options with sensible defaults.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		Workers: runtime.NumCPU(),
		Logger:  zap.NewNop(),
	}
}

// BatchSummary totals the outcome of a batch.
type BatchSummary struct {
	Rendered int
	Empty    int
	Failed   int
	Errors   []error
}

// RenderTilesParallel renders tiles with a bounded worker pool and writes
// every non-empty tile to sink.
//
// Each task owns its canvas; the index is only read. A failure in one tile,
// including a panic during clipping or rasterization, is logged and counted
// without affecting the others. When ctx is cancelled no new tiles are
// started and the tiles not yet started are left out of the summary.
//
// Example:
//
//	summary := osmtile.RenderTilesParallel(ctx, renderer, tiles, sink, osmtile.BatchOptions{
//	    Workers: 8,
//	    Progress: func(done, total int) {
//	        fmt.Printf("\rRendering: %d/%d", done, total)
//	    },
//	})
func RenderTilesParallel(ctx context.Context, r *Renderer, tiles []Tile, sink TileSink, opts BatchOptions) BatchSummary {
	var summary BatchSummary
	if len(tiles) == 0 {
		return summary
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Determine worker count
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(tiles) {
		workers = len(tiles)
	}

	jobs := make(chan Tile)
	results := make(chan TileResult, workers)

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				results <- renderOne(ctx, r, t, sink)
			}
		}()
	}

	// Send jobs until done or cancelled
	go func() {
		defer close(jobs)
		for _, t := range tiles {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- t:
			}
		}
	}()

	// Wait for workers to finish in a separate goroutine
	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for res := range results {
		done++
		switch res.Status {
		case TileRendered:
			summary.Rendered++
		case TileEmpty:
			summary.Empty++
		default:
			summary.Failed++
			summary.Errors = append(summary.Errors, res.Err)
			logger.Warn("tile failed",
				zap.Int("z", res.Tile.Z),
				zap.Int("x", res.Tile.X),
				zap.Int("y", res.Tile.Y),
				zap.Error(res.Err))
		}
		if opts.Observer != nil {
			opts.Observer.ObserveTile(res)
		}
		if opts.Progress != nil {
			opts.Progress(done, len(tiles))
		}
	}
	return summary
}

// renderOne renders and stores a single tile, converting panics into a
// *RenderError.
func renderOne(ctx context.Context, r *Renderer, t Tile, sink TileSink) (res TileResult) {
	start := time.Now()
	res.Tile = t
	defer func() {
		if p := recover(); p != nil {
			res.Status = TileFailed
			res.Err = &RenderError{Tile: t, Err: fmt.Errorf("panic: %v", p)}
		}
		res.Duration = time.Since(start)
	}()

	img, err := r.RenderTile(t)
	if errors.Is(err, ErrEmptyTile) {
		res.Status = TileEmpty
		return res
	}
	if err != nil {
		res.Status = TileFailed
		res.Err = err
		return res
	}

	data, err := EncodePNG(img)
	if err != nil {
		res.Status = TileFailed
		res.Err = &RenderError{Tile: t, Err: err}
		return res
	}
	if err := sink.Put(ctx, t, data); err != nil {
		res.Status = TileFailed
		res.Err = &RenderError{Tile: t, Err: fmt.Errorf("store: %w", err)}
		return res
	}
	res.Status = TileRendered
	return res
}

// BuildOptions controls parallel index construction.
type BuildOptions struct {
	// Workers specifies the number of ingest goroutines, each with its own
	// index shard. If 0, defaults to runtime.NumCPU().
	Workers int

	// Measurer measures building labels. Must be safe for concurrent use.
	// Labels are skipped when nil.
	Measurer Measurer

	// Projection maps longitude/latitude to the plane.
	// Defaults to Web Mercator.
	Projection orb.Projection

	// Logger receives per-element diagnostics.
	Logger *zap.Logger
}

// DefaultBuildOptions returns build options using every CPU.
func DefaultBuildOptions(m Measurer) BuildOptions {
	return BuildOptions{
		Workers:  runtime.NumCPU(),
		Measurer: m,
		Logger:   zap.NewNop(),
	}
}

// BuildIndexParallel ingests ways and relations into a frozen index.
//
// Input is split into contiguous shards, one per worker. Every worker owns
// an Ingestor writing into a shard-local ZoomIndexSet, so no locking is
// needed during ingestion. Shards are merged in shard order and the result
// is frozen, so the paint order does not depend on goroutine scheduling.
func BuildIndexParallel(ways []Way, relations []Relation, styles *StyleTable, opts BuildOptions) (*ZoomIndexSet, IngestStats) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if n := len(ways) + len(relations); workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	ingestOpts := IngestOptions{
		Projection: opts.Projection,
		Measurer:   opts.Measurer,
		Logger:     opts.Logger,
	}

	shards := make([]*ZoomIndexSet, workers)
	stats := make([]IngestStats, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx := NewZoomIndexSet()
			in := NewIngestor(idx, styles, ingestOpts)
			for _, w := range shard(ways, i, workers) {
				in.HandleWay(w)
			}
			for _, r := range shard(relations, i, workers) {
				in.HandleRelation(r)
			}
			shards[i] = idx
			stats[i] = in.Stats()
		}(i)
	}
	wg.Wait()

	merged := shards[0]
	var sum IngestStats
	sum.Add(stats[0])
	for i := 1; i < workers; i++ {
		merged.Merge(shards[i])
		sum.Add(stats[i])
	}
	merged.Freeze()
	return merged, sum
}

// shard returns the i-th of n contiguous chunks of items.
func shard[T any](items []T, i, n int) []T {
	size := (len(items) + n - 1) / n
	lo := i * size
	if lo > len(items) {
		lo = len(items)
	}
	hi := lo + size
	if hi > len(items) {
		hi = len(items)
	}
	return items[lo:hi]
}
