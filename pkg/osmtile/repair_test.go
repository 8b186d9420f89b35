package osmtile

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
)

func TestRepairPolygonValidUnchanged(t *testing.T) {
	p := orb.Polygon{square(0, 0, 10), {{2, 2}, {2, 4}, {4, 4}, {4, 2}, {2, 2}}}
	mp, err := RepairPolygon(p)
	if err != nil {
		t.Fatalf("RepairPolygon failed: %v", err)
	}
	if len(mp) != 1 || len(mp[0]) != 2 {
		t.Fatalf("Expected one polygon with one hole, got %v", mp)
	}
	if !mp[0].Equal(p) {
		t.Errorf("Expected valid polygon unchanged, got %v", mp[0])
	}
}

func TestRepairPolygonBowTie(t *testing.T) {
	bowTie := orb.Polygon{{{0, 0}, {2, 2}, {2, 0}, {0, 2}, {0, 0}}}

	mp, err := RepairPolygon(bowTie)
	if err != nil {
		t.Fatalf("RepairPolygon failed: %v", err)
	}
	if len(mp) != 2 {
		t.Fatalf("Expected 2 triangles, got %d polygons: %v", len(mp), mp)
	}

	var total float64
	for i, p := range mp {
		if err := ValidateGeometry(TypeBuilding, p); err != nil {
			t.Errorf("polygon %d still invalid: %v", i, err)
		}
		a := signedArea(p[0])
		if a <= 0 {
			t.Errorf("polygon %d not counter-clockwise (area %f)", i, a)
		}
		total += a
	}
	if math.Abs(total-2) > 1e-9 {
		t.Errorf("Expected total area 2, got %f", total)
	}
}

func TestRepairPolygonFigureEight(t *testing.T) {
	// Two squares joined at a single crossing point
	p := orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {4, 2}, {4, 4}, {2, 4}, {2, 2}, {0, 2}, {0, 0}}}
	mp, err := RepairPolygon(p)
	if err != nil {
		t.Fatalf("RepairPolygon failed: %v", err)
	}
	if len(mp) != 2 {
		t.Fatalf("Expected 2 polygons, got %d", len(mp))
	}
}

func TestRepairPolygonNoRings(t *testing.T) {
	_, err := RepairPolygon(orb.Polygon{})
	var invalid *ErrInvalidPolygon
	if !errors.As(err, &invalid) {
		t.Errorf("Expected ErrInvalidPolygon, got %v", err)
	}
}

func TestSimpleLoopsDropsZeroArea(t *testing.T) {
	// A spike doubling back on itself encloses nothing
	loops := simpleLoops(orb.Ring{{0, 0}, {1, 0}, {2, 0}, {1, 0}, {0, 0}})
	if len(loops) != 0 {
		t.Errorf("Expected no loops, got %v", loops)
	}
}

// assertRepaired checks that every repaired polygon is valid and that the
// pieces add up to the expected area.
func assertRepaired(t *testing.T, mp orb.MultiPolygon, wantParts int, wantArea float64) {
	t.Helper()
	if len(mp) != wantParts {
		t.Errorf("Expected %d polygons, got %d: %v", wantParts, len(mp), mp)
	}
	var area float64
	for i, p := range mp {
		if err := validatePolygon(TypeBuilding, p); err != nil {
			t.Errorf("polygon %d is invalid: %v", i, err)
		}
		area += math.Abs(signedArea(p[0]))
	}
	if math.Abs(area-wantArea) > 1e-9 {
		t.Errorf("Expected total area %f, got %f", wantArea, area)
	}
}

func TestRepairPolygonCollinearOverlap(t *testing.T) {
	// Two edges run back along the line x+y=9 and cross the quadrilateral
	// 7,2 9,7 2,2 4,1, splitting it in two.
	ring := orb.Ring{{0, 9}, {1, 8}, {7, 2}, {9, 7}, {2, 2}, {4, 1}, {7, 2}, {6, 3}, {0, 9}}
	if !ringSelfIntersects(ring) {
		t.Fatal("Expected the ring to be reported as self-intersecting")
	}

	mp, err := RepairPolygon(orb.Polygon{ring})
	if err != nil {
		t.Fatalf("RepairPolygon failed: %v", err)
	}
	assertRepaired(t, mp, 2, 15)
}

func TestRepairPolygonTriplePoint(t *testing.T) {
	// Three edges cross at (10/3, 10/3), which is not exactly representable
	ring := orb.Ring{{0, 0}, {6, 6}, {10, 0}, {0, 5}, {0, 10}, {5, 0}, {0, 0}}

	mp, err := RepairPolygon(orb.Polygon{ring})
	if err != nil {
		t.Fatalf("RepairPolygon failed: %v", err)
	}
	assertRepaired(t, mp, 3, 30)
}

func TestRepairPolygonSpike(t *testing.T) {
	// A square with an antenna that doubles back over itself
	ring := orb.Ring{{0, 0}, {4, 0}, {4, 4}, {2, 4}, {2, 7}, {2, 4}, {0, 4}, {0, 0}}
	if !ringSelfIntersects(ring) {
		t.Fatal("Expected the spike to be reported")
	}

	mp, err := RepairPolygon(orb.Polygon{ring})
	if err != nil {
		t.Fatalf("RepairPolygon failed: %v", err)
	}
	assertRepaired(t, mp, 1, 16)
}

func TestSimpleLoopsAreValid(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	checked := 0
	for n := 0; n < 3000; n++ {
		ring := make(orb.Ring, 4+rng.Intn(6))
		for i := range ring {
			ring[i] = orb.Point{float64(rng.Intn(10)), float64(rng.Intn(10))}
		}
		ring = closeRing(ring)
		if !ringSelfIntersects(ring) {
			continue
		}
		checked++

		for _, loop := range simpleLoops(ring) {
			if err := validatePolygon(TypeBuilding, orb.Polygon{loop}); err != nil {
				t.Fatalf("ring %v: loop %v is invalid: %v", ring, loop, err)
			}
		}
		if mp, err := RepairPolygon(orb.Polygon{ring}); err == nil {
			for _, p := range mp {
				if err := validatePolygon(TypeBuilding, p); err != nil {
					t.Fatalf("ring %v: repaired polygon %v is invalid: %v", ring, p, err)
				}
			}
		}
	}
	if checked == 0 {
		t.Fatal("Expected some self-intersecting rings")
	}
}

func TestInteriorPoint(t *testing.T) {
	// L-shape whose centroid lies inside; and a C-shape whose centroid does not
	rings := []orb.Ring{
		{{0, 0}, {4, 0}, {4, 1}, {1, 1}, {1, 4}, {0, 4}, {0, 0}},
		{{0, 0}, {4, 0}, {4, 1}, {1, 1}, {1, 3}, {4, 3}, {4, 4}, {0, 4}, {0, 0}},
	}
	for i, r := range rings {
		p := interiorPoint(r)
		if !ringContainsStrict(r, p) {
			t.Errorf("ring %d: interior point %v is not inside", i, p)
		}
	}
}

// ringContainsStrict is an even-odd test that treats the boundary as outside.
func ringContainsStrict(r orb.Ring, p orb.Point) bool {
	in := false
	for i, j := 0, len(r)-2; i < len(r)-1; j, i = i, i+1 {
		a, b := r[i], r[j]
		if (a[1] > p[1]) != (b[1] > p[1]) {
			x := (b[0]-a[0])*(p[1]-a[1])/(b[1]-a[1]) + a[0]
			if p[0] < x {
				in = !in
			}
		}
	}
	return in
}
