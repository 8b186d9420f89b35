package osmtile

import (
	"fmt"

	"github.com/gogpu/gg/text"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"golang.org/x/image/font/gofont/goregular"
)

// labelZoomOffset is how many zoom levels after its building a label appears.
const labelZoomOffset = 3

// Measurer reports the pixel extent of a label string.
type Measurer interface {
	Measure(s string) (width, height float64)
}

// FontMeasurer measures text with a gg font face. It is safe for concurrent
// use since text.Face is.
type FontMeasurer struct {
	source *text.FontSource
	face   text.Face
}

// NewFontMeasurer loads a TrueType/OpenType font and creates a face of the
// given size in points. A nil fontData uses the built-in Go Regular font.
func NewFontMeasurer(fontData []byte, size float64) (*FontMeasurer, error) {
	source, err := loadFontSource(fontData)
	if err != nil {
		return nil, err
	}
	return &FontMeasurer{source: source, face: source.Face(size)}, nil
}

func loadFontSource(fontData []byte) (*text.FontSource, error) {
	if len(fontData) == 0 {
		fontData = goregular.TTF
	}
	source, err := text.NewFontSource(fontData)
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	return source, nil
}

// Measure implements Measurer.
func (m *FontMeasurer) Measure(s string) (width, height float64) {
	return text.Measure(s, m.face)
}

// Source returns the font source backing the measurer, so the rasterizer
// can draw with the same font that labels were measured with.
func (m *FontMeasurer) Source() *text.FontSource {
	return m.source
}

// LabelPlacer turns named buildings into label pseudo-features.
type LabelPlacer struct {
	measurer Measurer
}

// NewLabelPlacer creates a placer using the given measurer.
func NewLabelPlacer(m Measurer) *LabelPlacer {
	return &LabelPlacer{measurer: m}
}

// Place creates the label for a named building and registers it in idx at
// every zoom from the building's minimum zoom + 3 through its maximum zoom.
//
// The label is anchored on the building's area centroid. At each zoom its
// index bound is the measured pixel footprint scaled to plane units, so a
// label is found by exactly the tiles its text can reach. Buildings with an
// empty name, or whose shifted range is empty, produce no label.
func (lp *LabelPlacer) Place(idx *ZoomIndexSet, building *Feature) (*Feature, error) {
	name := building.Name()
	if name == "" {
		return nil, nil
	}
	minZoom := building.MinZoom() + labelZoomOffset
	maxZoom := building.MaxZoom()
	if minZoom > maxZoom {
		return nil, nil
	}

	anchor, ok := centroid(building.Geometry())
	if !ok {
		return nil, &ErrDegenerateGeometry{Type: TypeText, Reason: "building has no area for a label anchor"}
	}

	w, h := lp.measurer.Measure(name)
	label, err := NewLabelFeature(building.ID(), Label{
		Text:   name,
		Anchor: anchor,
		Width:  w,
		Height: h,
	}, minZoom, maxZoom)
	if err != nil {
		return nil, err
	}

	for z := minZoom; z <= maxZoom; z++ {
		idx.Insert(z, label, LabelBound(label.Label(), z))
	}
	return label, nil
}

// LabelBound returns the plane-unit footprint of a label at zoom z, centered
// on its anchor.
func LabelBound(l *Label, z int) orb.Bound {
	upp := UnitsPerPixel(z)
	hw := l.Width / 2 * upp
	hh := l.Height / 2 * upp
	return orb.Bound{
		Min: orb.Point{l.Anchor[0] - hw, l.Anchor[1] - hh},
		Max: orb.Point{l.Anchor[0] + hw, l.Anchor[1] + hh},
	}
}

func centroid(g orb.Geometry) (orb.Point, bool) {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		c, area := planar.CentroidArea(g)
		if area == 0 || !finite(c) {
			return orb.Point{}, false
		}
		return c, true
	default:
		return orb.Point{}, false
	}
}
