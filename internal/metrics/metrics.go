// Package metrics counts rendered tiles with Prometheus collectors and
// writes them in the node-exporter textfile format at the end of a run.
package metrics

import (
	"fmt"

	"github.com/beetlebugorg/osmtile/pkg/osmtile"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector records render outcomes. It implements osmtile.BatchObserver.
type Collector struct {
	registry *prometheus.Registry

	TilesTotal     *prometheus.CounterVec
	RenderDuration prometheus.Histogram
	FeaturesTotal  *prometheus.GaugeVec
}

var _ osmtile.BatchObserver = (*Collector)(nil)

// New creates a collector on a private registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		TilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "osmtile_tiles_total",
			Help: "Tiles processed, by outcome",
		}, []string{"status"}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "osmtile_tile_render_duration_ms",
			Help:    "Tile render duration in milliseconds",
			Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
		}),
		FeaturesTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "osmtile_index_registrations",
			Help: "Feature registrations per zoom bucket",
		}, []string{"zoom"}),
	}
	c.registry.MustRegister(c.TilesTotal, c.RenderDuration, c.FeaturesTotal)
	return c
}

// ObserveTile implements osmtile.BatchObserver.
func (c *Collector) ObserveTile(res osmtile.TileResult) {
	c.TilesTotal.WithLabelValues(res.Status.String()).Inc()
	if res.Status != osmtile.TileEmpty {
		c.RenderDuration.Observe(float64(res.Duration.Microseconds()) / 1000)
	}
}

// ObserveIndex records the size of every zoom bucket.
func (c *Collector) ObserveIndex(idx *osmtile.ZoomIndexSet) {
	for z := osmtile.MinZoom; z <= osmtile.MaxZoom; z++ {
		c.FeaturesTotal.WithLabelValues(fmt.Sprint(z)).Set(float64(idx.Len(z)))
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile writes all metrics to path for the textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
