package osmtile

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// ValidateGeometry checks that geom matches the semantic type and satisfies
// the structural invariants:
//
//   - roads and waterways are orb.LineString with at least 2 coordinates
//   - areas are orb.Polygon or orb.MultiPolygon whose rings are closed and
//     have at least 3 distinct coordinates
//   - area rings do not cross themselves
//   - text is an orb.Point
//
// Structural problems return *ErrDegenerateGeometry. Self-intersections
// return *ErrInvalidPolygon, which callers repair with RepairPolygon.
func ValidateGeometry(typ SemanticType, geom orb.Geometry) error {
	if geom == nil {
		return &ErrDegenerateGeometry{Type: typ, Reason: "missing geometry"}
	}

	switch {
	case typ.IsLine():
		ls, ok := geom.(orb.LineString)
		if !ok {
			return &ErrDegenerateGeometry{Type: typ, Reason: fmt.Sprintf("expected line string, got %s", geom.GeoJSONType())}
		}
		return validateLine(typ, ls)

	case typ.IsArea():
		switch g := geom.(type) {
		case orb.Polygon:
			return validatePolygon(typ, g)
		case orb.MultiPolygon:
			if len(g) == 0 {
				return &ErrDegenerateGeometry{Type: typ, Reason: "empty multipolygon"}
			}
			for _, p := range g {
				if err := validatePolygon(typ, p); err != nil {
					return err
				}
			}
			return nil
		default:
			return &ErrDegenerateGeometry{Type: typ, Reason: fmt.Sprintf("expected polygon, got %s", geom.GeoJSONType())}
		}

	case typ == TypeText:
		if _, ok := geom.(orb.Point); !ok {
			return &ErrDegenerateGeometry{Type: typ, Reason: "label anchor must be a point"}
		}
		return nil
	}

	return &ErrDegenerateGeometry{Type: typ, Reason: "unknown semantic type"}
}

func validateLine(typ SemanticType, ls orb.LineString) error {
	if len(ls) < 2 {
		return &ErrDegenerateGeometry{Type: typ, Reason: fmt.Sprintf("line has %d coordinates, need at least 2", len(ls))}
	}
	for _, p := range ls {
		if !finite(p) {
			return &ErrDegenerateGeometry{Type: typ, Reason: "non-finite coordinate"}
		}
	}
	return nil
}

func validatePolygon(typ SemanticType, p orb.Polygon) error {
	if len(p) == 0 {
		return &ErrDegenerateGeometry{Type: typ, Reason: "polygon has no rings"}
	}
	for i, r := range p {
		if err := validateRing(typ, r); err != nil {
			if i == 0 {
				return err
			}
			return fmt.Errorf("hole %d: %w", i, err)
		}
	}
	for i, r := range p {
		if ringSelfIntersects(r) {
			if i == 0 {
				return &ErrInvalidPolygon{Reason: "exterior ring crosses itself"}
			}
			return &ErrInvalidPolygon{Reason: fmt.Sprintf("hole %d crosses itself", i)}
		}
	}
	return nil
}

func validateRing(typ SemanticType, r orb.Ring) error {
	if len(r) < 4 || !r.Closed() {
		if len(r) > 0 && !r.Closed() {
			return &ErrDegenerateGeometry{Type: typ, Reason: "ring is not closed"}
		}
		return &ErrDegenerateGeometry{Type: typ, Reason: fmt.Sprintf("ring has %d coordinates, need at least 4 including closure", len(r))}
	}
	if distinctPoints(r) < 3 {
		return &ErrDegenerateGeometry{Type: typ, Reason: "ring has fewer than 3 distinct coordinates"}
	}
	for _, p := range r {
		if !finite(p) {
			return &ErrDegenerateGeometry{Type: typ, Reason: "non-finite coordinate"}
		}
	}
	return nil
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}

func distinctPoints(r orb.Ring) int {
	seen := make(map[orb.Point]struct{}, len(r))
	for _, p := range r {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// closeRing returns the coordinates as a ring, appending the first
// coordinate when the sequence is open.
func closeRing(coords []orb.Point) orb.Ring {
	r := make(orb.Ring, len(coords), len(coords)+1)
	copy(r, coords)
	if len(r) > 0 && r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return r
}

// signedArea returns the shoelace area of a ring: positive for
// counter-clockwise rings in a y-up plane.
func signedArea(r orb.Ring) float64 {
	if len(r) < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < len(r)-1; i++ {
		sum += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	last := r[len(r)-1]
	if last != r[0] {
		sum += last[0]*r[0][1] - r[0][0]*last[1]
	}
	return sum / 2
}

type segment struct {
	a, b  orb.Point
	index int
	minX  float64
	maxX  float64
}

func ringSegments(r orb.Ring) []segment {
	if len(r) < 2 {
		return nil
	}
	segs := make([]segment, 0, len(r)-1)
	for i := 0; i < len(r)-1; i++ {
		a, b := r[i], r[i+1]
		segs = append(segs, segment{
			a: a, b: b, index: i,
			minX: math.Min(a[0], b[0]),
			maxX: math.Max(a[0], b[0]),
		})
	}
	return segs
}

// ringSelfIntersects reports whether any two non-adjacent edges of a closed
// ring touch or cross, or two edges run over each other. Edges are swept in
// order of their minimum x.
func ringSelfIntersects(r orb.Ring) bool {
	found := false
	forEachCrossing(dedupeRing(r), func(i, j int, _ orb.Point, _, _ float64) bool {
		found = true
		return false
	})
	return found
}

// forEachCrossing calls fn for every intersection between edges i < j of a
// closed ring, with the intersection point and its parameters along both
// edges. Collinear edges report each endpoint of one edge that lies on the
// other. Adjacent edges only report where the ring doubles back over their
// shared vertex. Iteration stops when fn returns false.
func forEachCrossing(r orb.Ring, fn func(i, j int, p orb.Point, t, u float64) bool) {
	segs := ringSegments(r)
	n := len(segs)
	if n < 3 {
		return
	}
	sorted := make([]segment, n)
	copy(sorted, segs)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].minX < sorted[b].minX })

	for a := 0; a < n; a++ {
		s := sorted[a]
		for b := a + 1; b < n; b++ {
			o := sorted[b]
			if o.minX > s.maxX {
				break
			}
			i, j := s.index, o.index
			if i > j {
				i, j = j, i
			}
			si, sj := segs[i], segs[j]

			var shared orb.Point
			adjacent := true
			switch {
			case j == i+1:
				shared = si.b
			case i == 0 && j == n-1:
				shared = si.a
			default:
				adjacent = false
			}

			if p, t, u, ok := segmentIntersection(si.a, si.b, sj.a, sj.b); ok {
				if !adjacent && !fn(i, j, p, t, u) {
					return
				}
				continue
			}
			for _, c := range collinearTouches(si.a, si.b, sj.a, sj.b) {
				if adjacent && c.p == shared {
					continue
				}
				if !fn(i, j, c.p, c.t, c.u) {
					return
				}
			}
		}
	}
}

// parallelEpsilon is the relative cross product below which two segments
// are treated as parallel.
const parallelEpsilon = 1e-12

// segmentIntersection returns the intersection of segments ab and cd with
// parameters t along ab and u along cd. Parallel segments report no
// intersection; collinearTouches handles them.
func segmentIntersection(a, b, c, d orb.Point) (orb.Point, float64, float64, bool) {
	rx, ry := b[0]-a[0], b[1]-a[1]
	sx, sy := d[0]-c[0], d[1]-c[1]
	denom := rx*sy - ry*sx
	if math.Abs(denom) <= parallelEpsilon*math.Hypot(rx, ry)*math.Hypot(sx, sy) {
		return orb.Point{}, 0, 0, false
	}
	qx, qy := c[0]-a[0], c[1]-a[1]
	t := (qx*sy - qy*sx) / denom
	u := (qx*ry - qy*rx) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return orb.Point{}, 0, 0, false
	}
	return orb.Point{a[0] + t*rx, a[1] + t*ry}, t, u, true
}

type touch struct {
	p    orb.Point
	t, u float64
}

// collinearTouches returns the endpoints of ab lying on cd and of cd lying
// on ab when the two segments are collinear. An endpoint of ab has t of 0 or
// 1, an endpoint of cd has u of 0 or 1.
func collinearTouches(a, b, c, d orb.Point) []touch {
	rx, ry := b[0]-a[0], b[1]-a[1]
	sx, sy := d[0]-c[0], d[1]-c[1]
	rl, sl := math.Hypot(rx, ry), math.Hypot(sx, sy)
	if rl == 0 || sl == 0 || math.Abs(rx*sy-ry*sx) > parallelEpsilon*rl*sl {
		return nil
	}
	qx, qy := c[0]-a[0], c[1]-a[1]
	if math.Abs(qx*ry-qy*rx) > parallelEpsilon*rl*math.Max(rl, math.Hypot(qx, qy)) {
		return nil
	}

	along := func(p, o orb.Point, dx, dy, l float64) (float64, bool) {
		v := ((p[0]-o[0])*dx + (p[1]-o[1])*dy) / (l * l)
		return v, v >= 0 && v <= 1
	}

	var out []touch
	if t, ok := along(c, a, rx, ry, rl); ok {
		out = append(out, touch{c, t, 0})
	}
	if t, ok := along(d, a, rx, ry, rl); ok {
		out = append(out, touch{d, t, 1})
	}
	if u, ok := along(a, c, sx, sy, sl); ok {
		out = append(out, touch{a, 0, u})
	}
	if u, ok := along(b, c, sx, sy, sl); ok {
		out = append(out, touch{b, 1, u})
	}
	return out
}

// dedupeRing drops consecutive repeated coordinates.
func dedupeRing(r orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(r))
	for i, p := range r {
		if i > 0 && p == out[len(out)-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}
