package osmtile

import (
	"math"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// fixedMeasurer reports 10 pixels per character and a 20 pixel line.
type fixedMeasurer struct{}

func (fixedMeasurer) Measure(s string) (float64, float64) {
	return float64(len(s)) * 10, 20
}

func TestLabelPlacement(t *testing.T) {
	// A named building visible from zoom 14
	center := project.WGS84.ToMercator(orb.Point{121.4737, 31.2304})
	ring := orb.Ring{
		{center[0] - 20, center[1] - 20},
		{center[0] + 20, center[1] - 20},
		{center[0] + 20, center[1] + 20},
		{center[0] - 20, center[1] + 20},
		{center[0] - 20, center[1] - 20},
	}
	building, err := NewFeature(99, TypeBuilding, "building", orb.Polygon{ring}, 14, 18, WithName("Library"))
	if err != nil {
		t.Fatal(err)
	}

	idx := NewZoomIndexSet()
	idx.InsertRange(building, building.Bound())
	label, err := NewLabelPlacer(fixedMeasurer{}).Place(idx, building)
	if err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if label == nil {
		t.Fatal("Expected a label")
	}
	if label.MinZoom() != 17 || label.MaxZoom() != 18 {
		t.Errorf("Expected label range [17, 18], got [%d, %d]", label.MinZoom(), label.MaxZoom())
	}

	anchor := label.Label().Anchor
	if math.Abs(anchor[0]-center[0]) > 1e-3 || math.Abs(anchor[1]-center[1]) > 1e-3 {
		t.Errorf("Expected anchor at building centroid %v, got %v", center, anchor)
	}
	if label.Label().Width != 70 || label.Label().Height != 20 {
		t.Errorf("Expected 70x20 label, got %fx%f", label.Label().Width, label.Label().Height)
	}

	for z := 15; z <= 18; z++ {
		tile := TileAt(121.4737, 31.2304, z)
		layers := ClipTile(tile.Bound(), idx.Query(z, tile.Bound()))
		if len(layers.Buildings) != 1 {
			t.Errorf("z%d: expected the building, got %d", z, len(layers.Buildings))
		}
		wantLabels := 0
		if z >= 17 {
			wantLabels = 1
		}
		if len(layers.Labels) != wantLabels {
			t.Errorf("z%d: expected %d labels, got %d", z, wantLabels, len(layers.Labels))
		}
	}
}

func TestLabelSkipped(t *testing.T) {
	idx := NewZoomIndexSet()
	placer := NewLabelPlacer(fixedMeasurer{})

	unnamed, _ := NewFeature(1, TypeBuilding, "building", orb.Polygon{square(0, 0, 10)}, 14, 18)
	if l, err := placer.Place(idx, unnamed); l != nil || err != nil {
		t.Errorf("Expected no label for unnamed building, got %v, %v", l, err)
	}

	// Range shifted past 18 leaves nothing
	late, _ := NewFeature(2, TypeBuilding, "building", orb.Polygon{square(0, 0, 10)}, 16, 18, WithName("Shed"))
	if l, err := placer.Place(idx, late); l != nil || err != nil {
		t.Errorf("Expected no label for a building first visible at 16, got %v, %v", l, err)
	}
	if idx.Total() != 0 {
		t.Errorf("Expected nothing indexed, got %d", idx.Total())
	}
}

func TestLabelBoundScalesWithZoom(t *testing.T) {
	l := &Label{Text: "Pier", Anchor: orb.Point{1000, 2000}, Width: 40, Height: 20}
	b17 := LabelBound(l, 17)
	b18 := LabelBound(l, 18)

	w17 := b17.Max[0] - b17.Min[0]
	w18 := b18.Max[0] - b18.Min[0]
	if math.Abs(w17-2*w18) > 1e-9 {
		t.Errorf("Expected zoom 17 footprint twice zoom 18, got %f and %f", w17, w18)
	}
	if math.Abs(w18/UnitsPerPixel(18)-40) > 1e-9 {
		t.Errorf("Expected 40 pixel footprint, got %f", w18/UnitsPerPixel(18))
	}
	if c := b18.Center(); math.Abs(c[0]-1000) > 1e-9 || math.Abs(c[1]-2000) > 1e-9 {
		t.Errorf("Expected footprint centered on anchor, got %v", c)
	}
}

func TestFontMeasurer(t *testing.T) {
	m, err := NewFontMeasurer(nil, 20)
	if err != nil {
		t.Fatalf("NewFontMeasurer failed: %v", err)
	}
	if m.Source() == nil {
		t.Fatal("Expected a font source")
	}

	short, h := m.Measure("Inn")
	long, _ := m.Measure("Municipal Library")
	if short <= 0 || h <= 0 {
		t.Errorf("Expected positive extent, got %fx%f", short, h)
	}
	if long <= short {
		t.Errorf("Expected longer text to be wider: %f <= %f", long, short)
	}

	if _, err := NewFontMeasurer([]byte("not a font"), 20); err == nil {
		t.Error("Expected error for invalid font data")
	}
}

func TestFontMeasurerConcurrent(t *testing.T) {
	m, err := NewFontMeasurer(nil, 20)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := m.Measure("Central Station")

	var wg sync.WaitGroup
	widths := make([]float64, 8)
	for i := range widths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				widths[i], _ = m.Measure("Central Station")
			}
		}(i)
	}
	wg.Wait()

	for i, w := range widths {
		if w != want {
			t.Errorf("goroutine %d: expected width %f, got %f", i, want, w)
		}
	}
}
