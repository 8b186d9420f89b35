package osmtile

import (
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
	"go.uber.org/zap"
)

// Tags are the key/value tags of an OSM element.
type Tags map[string]string

// Way is a tagged OSM way with its node coordinates resolved to
// longitude/latitude.
type Way struct {
	ID     int64
	Tags   Tags
	Coords []orb.Point
}

// Member is one way member of a relation with its role and resolved
// longitude/latitude coordinates.
type Member struct {
	Role   string
	Coords []orb.Point
}

// Relation is a tagged OSM relation whose way members are resolved.
type Relation struct {
	ID      int64
	Tags    Tags
	Members []Member
}

// Handler receives input elements during ingestion. Input readers drive a
// Handler; the Ingestor is the standard implementation.
type Handler interface {
	HandleWay(w Way)
	HandleRelation(r Relation)
}

// Classification is one layer an element contributes to.
type Classification struct {
	Type    SemanticType
	Subtype string
	Style   Style
}

// Classify maps tags to the layers they produce. A way may produce several
// features, e.g. a park that is also a building. Subtypes without an
// explicit style entry are not drawn.
//
// Rules:
//   - highway=<class> is a road; highway=construction uses construction=<class>
//   - building=* (other than "no") is a building
//   - the first non-empty of landuse, leisure, natural is a green area subtype
//   - waterway=<class> is a waterway line
//   - natural=water is a water area
func Classify(styles *StyleTable, tags Tags) []Classification {
	var out []Classification
	add := func(typ SemanticType, subtype string) {
		if style, ok := styles.Lookup(typ, subtype); ok {
			out = append(out, Classification{Type: typ, Subtype: subtype, Style: style})
		}
	}

	if class, ok := tags["highway"]; ok {
		if class == "construction" && tags["construction"] != "" {
			class = tags["construction"]
		}
		add(TypeRoad, class)
	}

	if v, ok := tags["building"]; ok && v != "no" {
		add(TypeBuilding, "building")
	}

	for _, key := range []string{"landuse", "leisure", "natural"} {
		if v := tags[key]; v != "" {
			add(TypeGreenArea, v)
			break
		}
	}

	if v, ok := tags["waterway"]; ok {
		add(TypeWaterway, v)
	}

	if tags["natural"] == "water" {
		add(TypeWaterArea, "water")
	}

	return out
}

// IngestOptions configures an Ingestor.
type IngestOptions struct {
	// Projection maps longitude/latitude to the plane.
	// Defaults to Web Mercator.
	Projection orb.Projection

	// Measurer measures building label text. Labels are skipped when nil.
	Measurer Measurer

	// Logger receives per-element diagnostics at debug level.
	Logger *zap.Logger
}

// DefaultIngestOptions returns options using Web Mercator and the given
// label measurer.
func DefaultIngestOptions(m Measurer) IngestOptions {
	return IngestOptions{
		Projection: project.WGS84.ToMercator,
		Measurer:   m,
		Logger:     zap.NewNop(),
	}
}

// IngestStats counts what an Ingestor did.
type IngestStats struct {
	Ways      int
	Relations int
	Features  int
	Labels    int
	Repaired  int
	Skipped   int
}

// Add accumulates another set of counters.
func (s *IngestStats) Add(o IngestStats) {
	s.Ways += o.Ways
	s.Relations += o.Relations
	s.Features += o.Features
	s.Labels += o.Labels
	s.Repaired += o.Repaired
	s.Skipped += o.Skipped
}

// Ingestor classifies input elements, builds Features and registers them in
// a ZoomIndexSet over their visibility ranges. An Ingestor is not safe for
// concurrent use; parallel builds give each worker its own Ingestor and
// index shard.
type Ingestor struct {
	index   *ZoomIndexSet
	styles  *StyleTable
	labels  *LabelPlacer
	project orb.Projection
	logger  *zap.Logger
	stats   IngestStats
}

var _ Handler = (*Ingestor)(nil)

// NewIngestor creates an ingestor writing into index.
func NewIngestor(index *ZoomIndexSet, styles *StyleTable, opts IngestOptions) *Ingestor {
	in := &Ingestor{
		index:   index,
		styles:  styles,
		project: opts.Projection,
		logger:  opts.Logger,
	}
	if in.project == nil {
		in.project = project.WGS84.ToMercator
	}
	if in.logger == nil {
		in.logger = zap.NewNop()
	}
	if opts.Measurer != nil {
		in.labels = NewLabelPlacer(opts.Measurer)
	}
	return in
}

// Stats returns the counters accumulated so far.
func (in *Ingestor) Stats() IngestStats {
	return in.stats
}

// HandleWay implements Handler.
func (in *Ingestor) HandleWay(w Way) {
	in.stats.Ways++
	for _, c := range Classify(in.styles, w.Tags) {
		var geom orb.Geometry
		if c.Type.IsLine() {
			if len(w.Coords) < 2 {
				in.skip(w.ID, c, &ErrDegenerateGeometry{Type: c.Type, Reason: "way has fewer than 2 nodes"})
				continue
			}
			geom = in.projectLine(w.Coords)
		} else {
			if len(w.Coords) < 3 {
				in.skip(w.ID, c, &ErrDegenerateGeometry{Type: c.Type, Reason: "way has fewer than 3 nodes"})
				continue
			}
			geom = orb.Polygon{in.projectRing(closeRing(w.Coords))}
		}
		in.add(w.ID, c, geom, w.Tags["name"])
	}
}

// HandleRelation implements Handler. Only type=multipolygon relations are
// used; their outer and inner member ways are joined into rings and the
// result is classified like a closed way.
func (in *Ingestor) HandleRelation(r Relation) {
	in.stats.Relations++
	if r.Tags["type"] != "multipolygon" {
		return
	}

	var classes []Classification
	for _, c := range Classify(in.styles, r.Tags) {
		if c.Type.IsArea() {
			classes = append(classes, c)
		}
	}
	if len(classes) == 0 {
		return
	}

	mp := in.assembleMultipolygon(r.Members)
	for _, c := range classes {
		if len(mp) == 0 {
			in.skip(r.ID, c, &ErrDegenerateGeometry{Type: c.Type, Reason: "multipolygon has no closed outer ring"})
			continue
		}
		var geom orb.Geometry = mp
		if len(mp) == 1 {
			geom = mp[0]
		}
		in.add(r.ID, c, geom, r.Tags["name"])
	}
}

// add validates geometry, repairing self-intersecting polygons, and indexes
// the feature together with its label.
func (in *Ingestor) add(id int64, c Classification, geom orb.Geometry, name string) {
	var opts []FeatureOption
	if c.Type == TypeBuilding && name != "" {
		opts = append(opts, WithName(name))
	}

	f, err := NewFeature(id, c.Type, c.Subtype, geom, c.Style.MinZoom, c.Style.MaxZoom, opts...)
	var invalid *ErrInvalidPolygon
	if errors.As(err, &invalid) {
		var repaired orb.MultiPolygon
		repaired, err = repairGeometry(geom)
		if err == nil {
			var g orb.Geometry = repaired
			if len(repaired) == 1 {
				g = repaired[0]
			}
			f, err = NewFeature(id, c.Type, c.Subtype, g, c.Style.MinZoom, c.Style.MaxZoom, opts...)
			if err == nil {
				in.stats.Repaired++
			}
		}
	}
	if err != nil {
		in.skip(id, c, err)
		return
	}

	in.index.InsertRange(f, f.Bound())
	in.stats.Features++

	if in.labels == nil || f.Name() == "" {
		return
	}
	label, err := in.labels.Place(in.index, f)
	if err != nil {
		in.logger.Debug("skip label", zap.Int64("id", id), zap.Error(err))
		return
	}
	if label != nil {
		in.stats.Labels++
	}
}

func (in *Ingestor) skip(id int64, c Classification, err error) {
	in.stats.Skipped++
	in.logger.Debug("skip feature",
		zap.Int64("id", id),
		zap.Stringer("type", c.Type),
		zap.String("subtype", c.Subtype),
		zap.Error(err))
}

func repairGeometry(geom orb.Geometry) (orb.MultiPolygon, error) {
	var polys []orb.Polygon
	switch g := geom.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{g}
	case orb.MultiPolygon:
		polys = g
	default:
		return nil, &ErrInvalidPolygon{Reason: "not a polygon"}
	}

	var out orb.MultiPolygon
	for _, p := range polys {
		mp, err := RepairPolygon(p)
		if err != nil {
			continue
		}
		out = append(out, mp...)
	}
	if len(out) == 0 {
		return nil, &ErrInvalidPolygon{Reason: "repair left no area"}
	}
	return out, nil
}

func (in *Ingestor) projectLine(coords []orb.Point) orb.LineString {
	ls := make(orb.LineString, len(coords))
	for i, p := range coords {
		ls[i] = in.project(p)
	}
	return ls
}

func (in *Ingestor) projectRing(r orb.Ring) orb.Ring {
	out := make(orb.Ring, len(r))
	for i, p := range r {
		out[i] = in.project(p)
	}
	return out
}

// assembleMultipolygon joins outer and inner member ways into closed rings
// and attaches each inner ring to the outer ring containing it. Members with
// an empty role count as outer.
func (in *Ingestor) assembleMultipolygon(members []Member) orb.MultiPolygon {
	var outers, inners [][]orb.Point
	for _, m := range members {
		if len(m.Coords) < 2 {
			continue
		}
		if m.Role == "inner" {
			inners = append(inners, m.Coords)
		} else {
			outers = append(outers, m.Coords)
		}
	}

	var mp orb.MultiPolygon
	for _, r := range AssembleRings(outers) {
		ring := in.projectRing(r)
		orientCCW(ring)
		mp = append(mp, orb.Polygon{ring})
	}
	for _, r := range AssembleRings(inners) {
		ring := in.projectRing(r)
		orientCW(ring)
		inside := interiorPoint(ring)
		for i := range mp {
			if planar.RingContains(mp[i][0], inside) {
				mp[i] = append(mp[i], ring)
				break
			}
		}
	}
	return mp
}

// AssembleRings joins way coordinate sequences that share end points into
// closed rings. Sequences that cannot be closed are dropped.
func AssembleRings(parts [][]orb.Point) []orb.Ring {
	pending := make([][]orb.Point, 0, len(parts))
	for _, p := range parts {
		if len(p) >= 2 {
			pending = append(pending, append([]orb.Point(nil), p...))
		}
	}

	var rings []orb.Ring
	for len(pending) > 0 {
		cur := pending[0]
		pending = pending[1:]

		for cur[0] != cur[len(cur)-1] {
			joined := false
			for i, seg := range pending {
				head, tail := cur[0], cur[len(cur)-1]
				switch {
				case seg[0] == tail:
					cur = append(cur, seg[1:]...)
				case seg[len(seg)-1] == tail:
					cur = append(cur, reversed(seg)[1:]...)
				case seg[len(seg)-1] == head:
					cur = append(append([]orb.Point(nil), seg[:len(seg)-1]...), cur...)
				case seg[0] == head:
					rs := reversed(seg)
					cur = append(append([]orb.Point(nil), rs[:len(rs)-1]...), cur...)
				default:
					continue
				}
				pending = append(pending[:i], pending[i+1:]...)
				joined = true
				break
			}
			if !joined {
				break
			}
		}

		if len(cur) >= 4 && cur[0] == cur[len(cur)-1] {
			rings = append(rings, orb.Ring(cur))
		}
	}
	return rings
}

func reversed(pts []orb.Point) []orb.Point {
	out := make([]orb.Point, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}
