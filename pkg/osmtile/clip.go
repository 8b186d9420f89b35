package osmtile

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
)

// sliverTolerance is the fraction of the tile area below which a clipped
// ring is treated as having no area.
const sliverTolerance = 1e-9

// ClippedPart is a single clipped polygon or line string, tagged with the
// subtype of the feature it came from. Exactly one of Polygon and Line is
// set. Parts are created per render call and discarded after rasterizing.
type ClippedPart struct {
	Subtype string
	Polygon orb.Polygon
	Line    orb.LineString
}

// TileLayers groups the clipped content of one tile by paint layer, in the
// order the layers are drawn.
type TileLayers struct {
	Buildings  []ClippedPart
	GreenAreas []ClippedPart
	Waterways  []ClippedPart
	WaterAreas []ClippedPart
	Roads      []ClippedPart
	Labels     []Label
}

// Empty reports whether no layer has anything to draw.
func (l *TileLayers) Empty() bool {
	return l.Len() == 0
}

// Len returns the total number of parts and labels.
func (l *TileLayers) Len() int {
	return len(l.Buildings) + len(l.GreenAreas) + len(l.Waterways) +
		len(l.WaterAreas) + len(l.Roads) + len(l.Labels)
}

// ClipTile clips candidate features to a tile bound and sorts the resulting
// parts into paint layers. Features that do not reach the tile produce no
// parts. Candidate order is preserved within each layer.
func ClipTile(bound orb.Bound, features []*Feature) TileLayers {
	var layers TileLayers
	for _, f := range features {
		switch f.Type() {
		case TypeBuilding, TypeGreenArea, TypeWaterArea:
			for _, p := range f.Polygons() {
				for _, c := range ClipPolygon(bound, p) {
					part := ClippedPart{Subtype: f.Subtype(), Polygon: c}
					switch f.Type() {
					case TypeBuilding:
						layers.Buildings = append(layers.Buildings, part)
					case TypeGreenArea:
						layers.GreenAreas = append(layers.GreenAreas, part)
					default:
						layers.WaterAreas = append(layers.WaterAreas, part)
					}
				}
			}

		case TypeRoad, TypeWaterway:
			ls, ok := f.Geometry().(orb.LineString)
			if !ok {
				continue
			}
			for _, c := range ClipLineString(bound, ls) {
				part := ClippedPart{Subtype: f.Subtype(), Line: c}
				if f.Type() == TypeRoad {
					layers.Roads = append(layers.Roads, part)
				} else {
					layers.Waterways = append(layers.Waterways, part)
				}
			}

		case TypeText:
			if l := f.Label(); l != nil {
				layers.Labels = append(layers.Labels, *l)
			}
		}
	}
	return layers
}

// ClipLineString returns the pieces of ls inside bound. The line is split
// on every exit and re-entry; pieces with zero length are dropped. A line
// entirely inside the bound is returned unchanged.
func ClipLineString(bound orb.Bound, ls orb.LineString) []orb.LineString {
	if len(ls) < 2 {
		return nil
	}
	lb := ls.Bound()
	if !lb.Intersects(bound) {
		return nil
	}
	if bound.Contains(lb.Min) && bound.Contains(lb.Max) {
		return []orb.LineString{ls.Clone()}
	}

	var out []orb.LineString
	for _, part := range clip.LineString(bound, ls) {
		part = dedupeLine(part)
		if len(part) < 2 {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ClipPolygon returns the intersection of p with bound as a list of
// polygons with holes.
//
// Rings are first oriented (exterior counter-clockwise, holes clockwise).
// Each ring crossing the bound is cut into chains that run inside it; the
// chains are then linked by walking the bound's edge counter-clockwise from
// each exit point to the next entry point, inserting the corners passed on
// the way. Rings that never cross the bound are either kept whole (inside),
// ignored (outside), or cover the tile entirely. Holes lying inside the
// bound are attached to the output ring that contains them, and rings with
// no area are dropped.
//
// A polygon entirely inside the bound is returned unchanged.
func ClipPolygon(bound orb.Bound, p orb.Polygon) []orb.Polygon {
	if len(p) == 0 || len(p[0]) < 4 {
		return nil
	}
	pb := p.Bound()
	if !pb.Intersects(bound) {
		return nil
	}
	if bound.Contains(pb.Min) && bound.Contains(pb.Max) {
		return []orb.Polygon{p.Clone()}
	}

	rc := rectClipper{bound: bound}
	var (
		chains      []*chain
		exteriors   []orb.Ring
		holes       []orb.Ring
		tileCovered bool
	)

	for i, ring := range p {
		r := dedupeRing(closeRing(ring))
		if len(r) < 4 {
			continue
		}
		if i == 0 {
			orientCCW(r)
		} else {
			orientCW(r)
		}

		start := -1
		for k, pt := range r[:len(r)-1] {
			if !bound.Contains(pt) {
				start = k
				break
			}
		}
		if start < 0 {
			if i == 0 {
				exteriors = append(exteriors, r)
			} else {
				holes = append(holes, r)
			}
			continue
		}

		crossed := false
		for _, part := range clip.LineString(bound, orb.LineString(rotateRing(r, start))) {
			part = dedupeLine(part)
			if len(part) < 2 {
				continue
			}
			chains = append(chains, rc.newChain(part))
			crossed = true
		}
		if crossed || !planar.RingContains(r, bound.Center()) {
			continue
		}
		if i > 0 {
			// The tile lies inside a hole.
			return nil
		}
		tileCovered = true
	}

	// Holes that cross a covered tile carry the whole outline themselves.
	if tileCovered && len(chains) == 0 {
		exteriors = append(exteriors, rc.ring())
	}
	exteriors = append(exteriors, rc.link(chains)...)

	minArea := sliverTolerance * (bound.Max[0] - bound.Min[0]) * (bound.Max[1] - bound.Min[1])
	var out []orb.Polygon
	for _, ext := range exteriors {
		if len(ext) < 4 || math.Abs(signedArea(ext)) <= minArea {
			continue
		}
		out = append(out, orb.Polygon{ext})
	}

	for _, h := range holes {
		if math.Abs(signedArea(h)) <= minArea {
			continue
		}
		inside := interiorPoint(h)
		for i := range out {
			if planar.RingContains(out[i][0], inside) {
				out[i] = append(out[i], h)
				break
			}
		}
	}
	return out
}

// chain is a run of a ring lying inside the clip rectangle. Both ends lie on
// the rectangle's edge; t is the perimeter position of each end.
type chain struct {
	pts    []orb.Point
	startT float64
	endT   float64
	used   bool
}

// rectClipper parameterizes the edge of a rectangle counter-clockwise from
// its south-west corner: [0,1) bottom, [1,2) right, [2,3) top, [3,4) left.
type rectClipper struct {
	bound orb.Bound
}

func (rc rectClipper) newChain(pts []orb.Point) *chain {
	return &chain{
		pts:    pts,
		startT: rc.param(pts[0]),
		endT:   rc.param(pts[len(pts)-1]),
	}
}

// param returns the perimeter position of a point on (or very near) the
// rectangle's edge.
func (rc rectClipper) param(p orb.Point) float64 {
	b := rc.bound
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]

	dBottom := math.Abs(p[1] - b.Min[1])
	dRight := math.Abs(p[0] - b.Max[0])
	dTop := math.Abs(p[1] - b.Max[1])
	dLeft := math.Abs(p[0] - b.Min[0])
	m := math.Min(math.Min(dBottom, dRight), math.Min(dTop, dLeft))

	switch m {
	case dBottom:
		return unit((p[0] - b.Min[0]) / w)
	case dRight:
		return 1 + unit((p[1]-b.Min[1])/h)
	case dTop:
		return 2 + unit((b.Max[0]-p[0])/w)
	default:
		return math.Mod(3+unit((b.Max[1]-p[1])/h), 4)
	}
}

func unit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// corner returns corner k (0 south-west, then counter-clockwise).
func (rc rectClipper) corner(k int) orb.Point {
	b := rc.bound
	switch k % 4 {
	case 0:
		return orb.Point{b.Min[0], b.Min[1]}
	case 1:
		return orb.Point{b.Max[0], b.Min[1]}
	case 2:
		return orb.Point{b.Max[0], b.Max[1]}
	default:
		return orb.Point{b.Min[0], b.Max[1]}
	}
}

// ring returns the whole rectangle as a counter-clockwise ring.
func (rc rectClipper) ring() orb.Ring {
	return orb.Ring{rc.corner(0), rc.corner(1), rc.corner(2), rc.corner(3), rc.corner(0)}
}

// link joins chains into closed rings along the rectangle's edge.
func (rc rectClipper) link(chains []*chain) []orb.Ring {
	var rings []orb.Ring
	for _, first := range chains {
		if first.used {
			continue
		}
		first.used = true
		ring := append(orb.Ring(nil), first.pts...)
		cur := first

		for guard := 0; guard <= len(chains); guard++ {
			next := first
			best := ccwDistance(cur.endT, first.startT)
			for _, c := range chains {
				if c.used {
					continue
				}
				if d := ccwDistance(cur.endT, c.startT); d < best {
					best, next = d, c
				}
			}

			ring = append(ring, rc.cornersBetween(cur.endT, best)...)
			if next == first {
				break
			}
			next.used = true
			ring = append(ring, next.pts...)
			cur = next
		}

		rings = append(rings, dedupeRing(closeRing(ring)))
	}
	return rings
}

// cornersBetween returns the corners strictly passed when walking dist
// counter-clockwise from perimeter position from.
func (rc rectClipper) cornersBetween(from, dist float64) []orb.Point {
	var pts []orb.Point
	for k := math.Floor(from) + 1; k < from+dist; k++ {
		pts = append(pts, rc.corner(int(k)))
	}
	return pts
}

func ccwDistance(from, to float64) float64 {
	d := math.Mod(to-from, 4)
	if d < 0 {
		d += 4
	}
	return d
}

// rotateRing returns a closed ring starting at vertex start.
func rotateRing(r orb.Ring, start int) orb.Ring {
	n := len(r) - 1
	out := make(orb.Ring, 0, len(r))
	for k := 0; k < n; k++ {
		out = append(out, r[(start+k)%n])
	}
	return append(out, out[0])
}

func dedupeLine(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, 0, len(ls))
	for i, p := range ls {
		if i > 0 && p == out[len(out)-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}
