// Package source reads OpenStreetMap XML and PBF extracts into resolved
// ways and relations for the tile builder.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/beetlebugorg/osmtile/pkg/osmtile"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"go.uber.org/zap"
)

// Format is the encoding of an OSM extract.
type Format int

const (
	// FormatXML is the .osm XML format.
	FormatXML Format = iota
	// FormatPBF is the .osm.pbf protocol buffer format.
	FormatPBF
)

// String implements fmt.Stringer.
func (f Format) String() string {
	if f == FormatPBF {
		return "pbf"
	}
	return "xml"
}

// DetectFormat picks the format from a file name.
func DetectFormat(path string) Format {
	if strings.HasSuffix(strings.ToLower(path), ".pbf") {
		return FormatPBF
	}
	return FormatXML
}

// Dataset is the resolved content of one extract.
type Dataset struct {
	// Ways holds every tagged way with its node coordinates in lon/lat.
	Ways []osmtile.Way

	// Relations holds every tagged relation with its way members resolved.
	Relations []osmtile.Relation

	// Bounds is the lon/lat extent of all nodes.
	Bounds orb.Bound

	// Nodes is the number of nodes read.
	Nodes int

	// MissingNodes counts way node references with no coordinates.
	MissingNodes int
}

// Replay feeds every way, then every relation, to h.
func (d *Dataset) Replay(h osmtile.Handler) {
	for _, w := range d.Ways {
		h.HandleWay(w)
	}
	for _, r := range d.Relations {
		h.HandleRelation(r)
	}
}

// Options configures reading.
type Options struct {
	// Procs is the number of PBF decoding goroutines.
	// If 0, defaults to runtime.NumCPU().
	Procs int

	// Logger receives progress and warnings. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Load opens and reads an extract, choosing the format from its name.
func Load(ctx context.Context, path string, opts Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	ds, err := Read(ctx, f, DetectFormat(path), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Read decodes an extract from r.
//
// Node coordinates are kept in memory so way geometry can be resolved in a
// single pass. Relations are resolved after the scan, since their member
// ways may appear later in unsorted files. Way references to missing nodes
// are dropped from the way.
func Read(ctx context.Context, r io.Reader, format Format, opts Options) (*Dataset, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var scanner osm.Scanner
	switch format {
	case FormatPBF:
		procs := opts.Procs
		if procs <= 0 {
			procs = runtime.NumCPU()
		}
		scanner = osmpbf.New(ctx, r, procs)
	default:
		scanner = osmxml.New(ctx, r)
	}
	defer scanner.Close()

	ds := &Dataset{}
	nodes := make(map[osm.NodeID]orb.Point)
	wayCoords := make(map[osm.WayID][]orb.Point)
	var relations []*osm.Relation
	hasBounds := false

	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			p := orb.Point{o.Lon, o.Lat}
			nodes[o.ID] = p
			ds.Nodes++
			if !hasBounds {
				ds.Bounds = p.Bound()
				hasBounds = true
			} else {
				ds.Bounds = ds.Bounds.Extend(p)
			}

		case *osm.Way:
			coords := make([]orb.Point, 0, len(o.Nodes))
			for _, wn := range o.Nodes {
				p, ok := nodes[wn.ID]
				if !ok {
					ds.MissingNodes++
					continue
				}
				coords = append(coords, p)
			}
			wayCoords[o.ID] = coords
			if len(o.Tags) > 0 {
				ds.Ways = append(ds.Ways, osmtile.Way{
					ID:     int64(o.ID),
					Tags:   osmtile.Tags(o.Tags.Map()),
					Coords: coords,
				})
			}

		case *osm.Relation:
			if len(o.Tags) > 0 {
				relations = append(relations, o)
			}
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("scan: %w", err)
	}

	for _, rel := range relations {
		ds.Relations = append(ds.Relations, resolveRelation(rel, wayCoords))
	}

	logger.Info("input read",
		zap.Stringer("format", format),
		zap.Int("nodes", ds.Nodes),
		zap.Int("ways", len(ds.Ways)),
		zap.Int("relations", len(ds.Relations)),
		zap.Int("missing_nodes", ds.MissingNodes))

	return ds, nil
}

// resolveRelation keeps the way members of a relation, with coordinates.
// Members referring to ways outside the extract are dropped.
func resolveRelation(rel *osm.Relation, wayCoords map[osm.WayID][]orb.Point) osmtile.Relation {
	out := osmtile.Relation{
		ID:   int64(rel.ID),
		Tags: osmtile.Tags(rel.Tags.Map()),
	}
	for _, m := range rel.Members {
		if m.Type != osm.TypeWay {
			continue
		}
		coords, ok := wayCoords[osm.WayID(m.Ref)]
		if !ok {
			continue
		}
		out.Members = append(out.Members, osmtile.Member{Role: m.Role, Coords: coords})
	}
	return out
}
