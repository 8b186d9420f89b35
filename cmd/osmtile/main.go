// Command osmtile renders an OpenStreetMap extract into a {z}/{x}/{y}.png
// raster tile pyramid.
//
// Usage:
//
//	osmtile -in map.osm -out tiles -minzoom 10 -maxzoom 18
//	osmtile -in city.osm.pbf -sink redis -redis redis://localhost:6379/0
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beetlebugorg/osmtile/internal/config"
	"github.com/beetlebugorg/osmtile/internal/logger"
	"github.com/beetlebugorg/osmtile/internal/metrics"
	"github.com/beetlebugorg/osmtile/internal/source"
	"github.com/beetlebugorg/osmtile/internal/store"
	"github.com/beetlebugorg/osmtile/pkg/osmtile"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "osmtile: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "osmtile: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("build failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	start := time.Now()

	var fontData []byte
	if cfg.FontPath != "" {
		data, err := os.ReadFile(cfg.FontPath)
		if err != nil {
			return fmt.Errorf("read font: %w", err)
		}
		fontData = data
	}

	styles := osmtile.DefaultStyleTable()
	styles.FontSize = cfg.FontSize

	measurer, err := osmtile.NewFontMeasurer(fontData, cfg.FontSize)
	if err != nil {
		return err
	}

	sink, err := store.Open(ctx, cfg.Sink)
	if err != nil {
		return err
	}
	defer sink.Close()

	ds, err := source.Load(ctx, cfg.Input, source.Options{Procs: cfg.Workers, Logger: log})
	if err != nil {
		return err
	}
	log.Info("input bounds",
		zap.Float64("min_lon", ds.Bounds.Min[0]),
		zap.Float64("min_lat", ds.Bounds.Min[1]),
		zap.Float64("max_lon", ds.Bounds.Max[0]),
		zap.Float64("max_lat", ds.Bounds.Max[1]))

	index, stats := osmtile.BuildIndexParallel(ds.Ways, ds.Relations, styles, osmtile.BuildOptions{
		Workers:  cfg.Workers,
		Measurer: measurer,
		Logger:   log,
	})
	log.Info("index built",
		zap.Int("features", stats.Features),
		zap.Int("labels", stats.Labels),
		zap.Int("repaired", stats.Repaired),
		zap.Int("skipped", stats.Skipped),
		zap.Int("registrations", index.Total()))

	collector := metrics.New()
	collector.ObserveIndex(index)

	raster := osmtile.DefaultRasterOptions()
	raster.SeamExtension = cfg.Seam
	raster.FontSize = cfg.FontSize
	renderer, err := osmtile.NewRenderer(index, styles, osmtile.RenderOptions{
		Raster: raster,
		Font:   measurer.Source(),
	})
	if err != nil {
		return err
	}

	var total osmtile.BatchSummary
	for z := cfg.MinZoom; z <= cfg.MaxZoom; z++ {
		x0, y0, x1, y1 := osmtile.TileRange(ds.Bounds, z)
		log.Info("rendering zoom",
			zap.Int("z", z),
			zap.Int("x_start", x0), zap.Int("x_end", x1),
			zap.Int("y_start", y0), zap.Int("y_end", y1))

		tiles := osmtile.TilesInBound(ds.Bounds, z, z)
		summary := osmtile.RenderTilesParallel(ctx, renderer, tiles, sink, osmtile.BatchOptions{
			Workers:  cfg.Workers,
			Observer: collector,
			Logger:   log,
		})
		total.Rendered += summary.Rendered
		total.Empty += summary.Empty
		total.Failed += summary.Failed

		if ctx.Err() != nil {
			log.Warn("interrupted", zap.Int("z", z))
			break
		}
	}

	log.Info("done",
		zap.Int("rendered", total.Rendered),
		zap.Int("empty", total.Empty),
		zap.Int("failed", total.Failed),
		zap.Duration("elapsed", time.Since(start)))

	if cfg.MetricsFile != "" {
		if err := collector.WriteTextfile(cfg.MetricsFile); err != nil {
			return err
		}
	}
	return ctx.Err()
}
