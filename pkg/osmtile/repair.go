package osmtile

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// RepairPolygon removes self-intersections from a polygon.
//
// Every ring is noded at its crossing points and split into simple loops.
// Exterior loops become separate polygons (a bow-tie yields two triangles);
// loops nested inside a larger exterior loop are absorbed by it. Hole loops
// are attached to the exterior that contains them. Loops with no area are
// discarded, and so is any loop that still fails validation. Every returned
// polygon passes ValidateGeometry. If nothing with positive area remains the
// polygon cannot be repaired and *ErrInvalidPolygon is returned.
//
// Valid input is returned unchanged as a single-element MultiPolygon.
func RepairPolygon(p orb.Polygon) (orb.MultiPolygon, error) {
	if len(p) == 0 {
		return nil, &ErrInvalidPolygon{Reason: "polygon has no rings"}
	}
	if validatePolygon(TypeBuilding, p) == nil {
		return orb.MultiPolygon{p}, nil
	}

	exteriors := simpleLoops(p[0])
	sort.Slice(exteriors, func(i, j int) bool {
		return math.Abs(signedArea(exteriors[i])) > math.Abs(signedArea(exteriors[j]))
	})

	var out orb.MultiPolygon
	for _, loop := range exteriors {
		orientCCW(loop)
		if containedByAny(out, loop) {
			continue
		}
		out = append(out, orb.Polygon{loop})
	}
	if len(out) == 0 {
		return nil, &ErrInvalidPolygon{Reason: "repair left no area"}
	}

	for _, hole := range p[1:] {
		for _, loop := range simpleLoops(hole) {
			orientCW(loop)
			inside := interiorPoint(loop)
			for i := range out {
				if planar.RingContains(out[i][0], inside) {
					out[i] = append(out[i], loop)
					break
				}
			}
		}
	}

	valid := out[:0]
	for _, poly := range out {
		if validatePolygon(TypeBuilding, orb.Polygon{poly[0]}) != nil {
			continue
		}
		kept := orb.Polygon{poly[0]}
		for _, hole := range poly[1:] {
			if validatePolygon(TypeBuilding, orb.Polygon{hole}) == nil {
				kept = append(kept, hole)
			}
		}
		valid = append(valid, kept)
	}
	if len(valid) == 0 {
		return nil, &ErrInvalidPolygon{Reason: "repair left no valid ring"}
	}
	return valid, nil
}

// simpleLoops nodes a closed ring at its self-intersections and splits it
// into closed loops that no longer cross. Split points are snapped to ring
// vertices and to each other, so a node reached from several edge pairs is
// one point. Loops with fewer than 3 distinct coordinates or a negligible
// area are dropped.
func simpleLoops(r orb.Ring) []orb.Ring {
	r = dedupeRing(closeRing(r))
	if len(r) < 4 {
		return nil
	}

	type split struct {
		t float64
		p orb.Point
	}
	b := r.Bound()
	extent := math.Max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
	minArea := extent * extent * 1e-12
	snap := newSnapper(r, extent*1e-9)

	inserts := make(map[int][]split)
	const eps = 1e-12
	forEachCrossing(r, func(i, j int, p orb.Point, t, u float64) bool {
		tInner := t > eps && t < 1-eps
		uInner := u > eps && u < 1-eps
		switch {
		case tInner && uInner:
			p = snap.point(p)
			inserts[i] = append(inserts[i], split{t, p})
			inserts[j] = append(inserts[j], split{u, p})
		case uInner:
			// A vertex of edge i lies on edge j.
			v := r[i]
			if t >= 1-eps {
				v = r[i+1]
			}
			inserts[j] = append(inserts[j], split{u, v})
		case tInner:
			v := r[j]
			if u >= 1-eps {
				v = r[j+1]
			}
			inserts[i] = append(inserts[i], split{t, v})
		}
		return true
	})

	noded := make(orb.Ring, 0, len(r)+2*len(inserts))
	for i := 0; i < len(r)-1; i++ {
		noded = append(noded, r[i])
		splits := inserts[i]
		sort.Slice(splits, func(a, b int) bool { return splits[a].t < splits[b].t })
		for _, s := range splits {
			noded = append(noded, s.p)
		}
	}
	noded = dedupeRing(noded)

	var loops []orb.Ring
	emit := func(pts []orb.Point) {
		loop := closeRing(pts)
		if len(loop) < 4 || distinctPoints(loop) < 3 || math.Abs(signedArea(loop)) <= minArea {
			return
		}
		loops = append(loops, loop)
	}

	path := make([]orb.Point, 0, len(noded))
	pos := make(map[orb.Point]int, len(noded))
	for _, p := range noded {
		if k, ok := pos[p]; ok {
			emit(append([]orb.Point(nil), path[k:]...))
			for _, q := range path[k+1:] {
				delete(pos, q)
			}
			path = path[:k+1]
			continue
		}
		pos[p] = len(path)
		path = append(path, p)
	}
	emit(path)

	return loops
}

// snapper merges points closer than tol on both axes, preferring the ring's
// own vertices.
type snapper struct {
	tol float64
	pts []orb.Point
}

func newSnapper(r orb.Ring, tol float64) *snapper {
	pts := make([]orb.Point, len(r)-1)
	copy(pts, r[:len(r)-1])
	return &snapper{tol: tol, pts: pts}
}

// point returns the first known point within tolerance of p, or records p.
func (s *snapper) point(p orb.Point) orb.Point {
	for _, q := range s.pts {
		if math.Abs(q[0]-p[0]) <= s.tol && math.Abs(q[1]-p[1]) <= s.tol {
			return q
		}
	}
	s.pts = append(s.pts, p)
	return p
}

func orientCCW(r orb.Ring) {
	if signedArea(r) < 0 {
		r.Reverse()
	}
}

func orientCW(r orb.Ring) {
	if signedArea(r) > 0 {
		r.Reverse()
	}
}

func containedByAny(polys orb.MultiPolygon, loop orb.Ring) bool {
	inside := interiorPoint(loop)
	for _, p := range polys {
		if planar.RingContains(p[0], inside) {
			return true
		}
	}
	return false
}

// interiorPoint returns a point inside a simple ring: the area centroid when
// it lies inside, otherwise the midpoint of the first edge nudged toward the
// interior.
func interiorPoint(r orb.Ring) orb.Point {
	c, _ := planar.CentroidArea(r)
	if planar.RingContains(r, c) {
		return c
	}
	a, b := r[0], r[1]
	mid := orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
	dx, dy := b[0]-a[0], b[1]-a[1]
	l := math.Hypot(dx, dy)
	if l == 0 {
		return a
	}
	// Left normal points inside a counter-clockwise ring.
	n := orb.Point{-dy / l, dx / l}
	if signedArea(r) < 0 {
		n = orb.Point{-n[0], -n[1]}
	}
	step := l * 1e-6
	return orb.Point{mid[0] + n[0]*step, mid[1] + n[1]*step}
}
