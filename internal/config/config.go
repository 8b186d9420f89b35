// Package config loads CLI settings from a .env file, the environment and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/beetlebugorg/osmtile/internal/store"
	"github.com/beetlebugorg/osmtile/pkg/osmtile"
	"github.com/joho/godotenv"
)

// Config holds every setting of a tile build.
type Config struct {
	Input       string
	MinZoom     int
	MaxZoom     int
	Workers     int
	FontPath    string
	FontSize    float64
	Seam        float64
	LogLevel    string
	LogFormat   string
	MetricsFile string
	Sink        store.Config
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Input:     "map.osm",
		MinZoom:   osmtile.MinZoom,
		MaxZoom:   osmtile.MaxZoom,
		Workers:   runtime.NumCPU(),
		FontSize:  20,
		Seam:      osmtile.DefaultSeamExtension,
		LogLevel:  "info",
		LogFormat: "console",
		Sink: store.Config{
			Kind:        store.KindFile,
			Dir:         "tiles",
			RedisPrefix: "tile:",
		},
	}
}

// Load reads .env files (missing files are ignored), then environment
// variables prefixed OSMTILE_, then flags from args.
func Load(args []string, envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}

	fs := flag.NewFlagSet("osmtile", flag.ContinueOnError)
	fs.StringVar(&cfg.Input, "in", cfg.Input, "input .osm or .osm.pbf file")
	fs.StringVar(&cfg.Sink.Dir, "out", cfg.Sink.Dir, "output directory for the file sink")
	fs.IntVar(&cfg.MinZoom, "minzoom", cfg.MinZoom, "lowest zoom to render")
	fs.IntVar(&cfg.MaxZoom, "maxzoom", cfg.MaxZoom, "highest zoom to render")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of worker goroutines")
	fs.StringVar(&cfg.FontPath, "font", cfg.FontPath, "label font file (default: built-in Go Regular)")
	fs.Float64Var(&cfg.FontSize, "fontsize", cfg.FontSize, "label font size in points")
	sink := string(cfg.Sink.Kind)
	fs.StringVar(&sink, "sink", sink, "tile sink: file, redis or postgres")
	fs.StringVar(&cfg.Sink.RedisURL, "redis", cfg.Sink.RedisURL, "redis:// URL for the redis sink")
	fs.StringVar(&cfg.Sink.PostgresDSN, "postgres", cfg.Sink.PostgresDSN, "connection string for the postgres sink")
	fs.StringVar(&cfg.MetricsFile, "metrics", cfg.MetricsFile, "write Prometheus metrics to this textfile")
	fs.StringVar(&cfg.LogLevel, "loglevel", cfg.LogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	cfg.Sink.Kind = store.Kind(sink)

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}
	float := func(key string, dst *float64) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = f
		return nil
	}

	str("OSMTILE_INPUT", &c.Input)
	str("OSMTILE_OUTPUT", &c.Sink.Dir)
	str("OSMTILE_FONT", &c.FontPath)
	str("OSMTILE_METRICS_FILE", &c.MetricsFile)
	str("OSMTILE_REDIS_URL", &c.Sink.RedisURL)
	str("OSMTILE_REDIS_PREFIX", &c.Sink.RedisPrefix)
	str("OSMTILE_POSTGRES_DSN", &c.Sink.PostgresDSN)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	if v := getenv("OSMTILE_SINK"); v != "" {
		c.Sink.Kind = store.Kind(v)
	}

	return errors.Join(
		num("OSMTILE_MIN_ZOOM", &c.MinZoom),
		num("OSMTILE_MAX_ZOOM", &c.MaxZoom),
		num("OSMTILE_WORKERS", &c.Workers),
		float("OSMTILE_FONT_SIZE", &c.FontSize),
		float("OSMTILE_SEAM_EXTENSION", &c.Seam),
	)
}

// Validate checks ranges and required settings.
func (c *Config) Validate() error {
	if c.Input == "" {
		return errors.New("no input file")
	}
	if c.MinZoom < osmtile.MinZoom || c.MaxZoom > osmtile.MaxZoom || c.MinZoom > c.MaxZoom {
		return fmt.Errorf("zoom range %d-%d outside %d-%d", c.MinZoom, c.MaxZoom, osmtile.MinZoom, osmtile.MaxZoom)
	}
	if c.FontSize <= 0 {
		return fmt.Errorf("font size must be positive, got %g", c.FontSize)
	}
	switch c.Sink.Kind {
	case store.KindFile:
		if c.Sink.Dir == "" {
			return errors.New("file sink needs an output directory")
		}
	case store.KindRedis:
		if c.Sink.RedisURL == "" {
			return errors.New("redis sink needs OSMTILE_REDIS_URL or -redis")
		}
	case store.KindPostgres:
		if c.Sink.PostgresDSN == "" {
			return errors.New("postgres sink needs OSMTILE_POSTGRES_DSN or -postgres")
		}
	default:
		return fmt.Errorf("unknown sink %q", c.Sink.Kind)
	}
	return nil
}
