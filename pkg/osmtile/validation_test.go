package osmtile

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func square(x0, y0, size float64) orb.Ring {
	return orb.Ring{{x0, y0}, {x0 + size, y0}, {x0 + size, y0 + size}, {x0, y0 + size}, {x0, y0}}
}

func TestValidateGeometry(t *testing.T) {
	bowTie := orb.Polygon{{{0, 0}, {2, 2}, {2, 0}, {0, 2}, {0, 0}}}

	tests := []struct {
		name       string
		typ        SemanticType
		geom       orb.Geometry
		degenerate bool
		invalid    bool
	}{
		{"road", TypeRoad, orb.LineString{{0, 0}, {1, 1}}, false, false},
		{"road single point", TypeRoad, orb.LineString{{0, 0}}, true, false},
		{"road as polygon", TypeRoad, orb.Polygon{square(0, 0, 1)}, true, false},
		{"road with NaN", TypeRoad, orb.LineString{{0, 0}, {math.NaN(), 1}}, true, false},
		{"building", TypeBuilding, orb.Polygon{square(0, 0, 1)}, false, false},
		{"building open ring", TypeBuilding, orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}, true, false},
		{"building two distinct points", TypeBuilding, orb.Polygon{{{0, 0}, {1, 0}, {0, 0}, {1, 0}, {0, 0}}}, true, false},
		{"building bow-tie", TypeBuilding, bowTie, false, true},
		{"water multipolygon", TypeWaterArea, orb.MultiPolygon{{square(0, 0, 1)}, {square(5, 5, 1)}}, false, false},
		{"empty multipolygon", TypeWaterArea, orb.MultiPolygon{}, true, false},
		{"text point", TypeText, orb.Point{1, 2}, false, false},
		{"text line", TypeText, orb.LineString{{0, 0}, {1, 1}}, true, false},
		{"nil geometry", TypeGreenArea, nil, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGeometry(tt.typ, tt.geom)

			var degenerate *ErrDegenerateGeometry
			var invalid *ErrInvalidPolygon
			if got := errors.As(err, &degenerate); got != tt.degenerate {
				t.Errorf("degenerate = %v, want %v (err: %v)", got, tt.degenerate, err)
			}
			if got := errors.As(err, &invalid); got != tt.invalid {
				t.Errorf("invalid = %v, want %v (err: %v)", got, tt.invalid, err)
			}
		})
	}
}

func TestValidateHoleErrorsAreWrapped(t *testing.T) {
	p := orb.Polygon{square(0, 0, 10), {{1, 1}, {2, 1}, {1, 1}}}
	err := ValidateGeometry(TypeBuilding, p)
	var degenerate *ErrDegenerateGeometry
	if !errors.As(err, &degenerate) {
		t.Fatalf("Expected wrapped ErrDegenerateGeometry, got %v", err)
	}
}

func TestSignedArea(t *testing.T) {
	ccw := square(0, 0, 2)
	if a := signedArea(ccw); a != 4 {
		t.Errorf("Expected area 4 for counter-clockwise square, got %f", a)
	}
	cw := square(0, 0, 2)
	cw.Reverse()
	if a := signedArea(cw); a != -4 {
		t.Errorf("Expected area -4 for clockwise square, got %f", a)
	}
}

func TestCloseRing(t *testing.T) {
	open := []orb.Point{{0, 0}, {1, 0}, {1, 1}}
	r := closeRing(open)
	if len(r) != 4 || !r.Closed() {
		t.Errorf("Expected closed ring of 4 points, got %v", r)
	}
	if len(open) != 3 {
		t.Errorf("closeRing modified its input")
	}

	closed := closeRing(square(0, 0, 1))
	if len(closed) != 5 {
		t.Errorf("Expected already closed ring unchanged, got %d points", len(closed))
	}
}

func TestRingSelfIntersects(t *testing.T) {
	if ringSelfIntersects(square(0, 0, 1)) {
		t.Error("square reported as self-intersecting")
	}
	if !ringSelfIntersects(orb.Ring{{0, 0}, {2, 2}, {2, 0}, {0, 2}, {0, 0}}) {
		t.Error("bow-tie not reported as self-intersecting")
	}
	// Repeated vertices are not crossings
	if ringSelfIntersects(orb.Ring{{0, 0}, {1, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}) {
		t.Error("duplicate vertex reported as self-intersection")
	}
}
