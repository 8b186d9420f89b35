package osmtile

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"github.com/paulmach/orb"
)

const (
	// roadWidthDecay is the per-zoom divisor applied to road widths below
	// zoom 18.
	roadWidthDecay = 1.9

	// roadCasing is the width difference between a road's outer stroke and
	// its inner fill stroke. Roads no wider than this get a single stroke.
	roadCasing = 4

	// borderEpsilon is the pixel distance within which a vertex counts as
	// lying on the tile border.
	borderEpsilon = 1e-7

	// DefaultSeamExtension is how many segment lengths a stroke is extended
	// past a border endpoint so it continues seamlessly into the neighbor
	// tile.
	DefaultSeamExtension = 49
)

// RoadWidth returns the effective road stroke width in pixels at zoom z for
// a road whose width at zoom 18 is base.
func RoadWidth(base float64, z int) float64 {
	return base / math.Pow(roadWidthDecay, float64(MaxZoom-z))
}

// RasterOptions tunes rasterization.
type RasterOptions struct {
	// SeamExtension is the number of segment lengths border endpoints are
	// extended by before stroking. Zero disables extension.
	SeamExtension float64

	// FontSize is the label size in points.
	FontSize float64
}

// DefaultRasterOptions returns the standard rasterization settings.
func DefaultRasterOptions() RasterOptions {
	return RasterOptions{
		SeamExtension: DefaultSeamExtension,
		FontSize:      defaultFontSize,
	}
}

// Rasterizer paints clipped tile layers onto a 512x512 canvas.
//
// A Rasterizer holds only immutable configuration. Every Rasterize call
// creates and owns its own canvas and font face, so one Rasterizer can
// serve many goroutines.
type Rasterizer struct {
	styles *StyleTable
	font   *text.FontSource
	opts   RasterOptions
}

// NewRasterizer creates a rasterizer. A nil font source disables labels.
func NewRasterizer(styles *StyleTable, font *text.FontSource, opts RasterOptions) *Rasterizer {
	return &Rasterizer{styles: styles, font: font, opts: opts}
}

// Rasterize paints the layers of tile t, which must already be clipped to
// bound. It returns ErrEmptyTile when no layer has anything to draw.
//
// Layers are painted bottom to top: buildings, green areas, waterways,
// water areas, roads (all outer strokes, then all inner strokes), labels.
func (r *Rasterizer) Rasterize(t Tile, bound orb.Bound, layers TileLayers) (image.Image, error) {
	if layers.Empty() {
		return nil, ErrEmptyTile
	}

	dc := gg.NewContext(TileSize, TileSize)
	defer dc.Close()

	c := &canvas{
		dc:         dc,
		px:         newPixelTransform(bound),
		background: r.styles.Background,
		extension:  r.opts.SeamExtension,
	}
	dc.ClearWithColor(gg.FromColor(r.styles.Background))

	building, _ := r.styles.Default(TypeBuilding)
	for _, part := range layers.Buildings {
		style, _ := r.styles.Lookup(TypeBuilding, part.Subtype)
		if err := c.fillPolygon(part.Polygon, style.Fill); err != nil {
			return nil, err
		}
		if err := c.outlinePolygon(part.Polygon, style.Outline, building.OutlineWidth); err != nil {
			return nil, err
		}
	}

	for _, part := range layers.GreenAreas {
		style, _ := r.styles.Lookup(TypeGreenArea, part.Subtype)
		if err := c.fillPolygon(part.Polygon, style.Fill); err != nil {
			return nil, err
		}
	}

	for _, part := range layers.Waterways {
		style, _ := r.styles.Lookup(TypeWaterway, part.Subtype)
		if err := c.polyline(part.Line, style.Outline, style.OutlineWidth); err != nil {
			return nil, err
		}
	}

	for _, part := range layers.WaterAreas {
		style, _ := r.styles.Lookup(TypeWaterArea, part.Subtype)
		if err := c.fillPolygon(part.Polygon, style.Fill); err != nil {
			return nil, err
		}
	}

	if err := r.drawRoads(c, t.Z, layers.Roads); err != nil {
		return nil, err
	}

	if len(layers.Labels) > 0 && r.font != nil {
		dc.SetFont(r.font.Face(r.opts.FontSize))
		dc.SetColor(r.styles.Text)
		for _, l := range layers.Labels {
			x, y := c.px.apply(l.Anchor)
			dc.DrawStringAnchored(l.Text, x, y, 0.5, 0.5)
		}
	}

	if err := dc.FlushGPU(); err != nil {
		return nil, fmt.Errorf("flush canvas: %w", err)
	}
	return dc.Image(), nil
}

// drawRoads paints roads in two full passes so that every outer stroke lies
// beneath every inner stroke. Roads no wider than roadCasing are skipped in
// the first pass and drawn once in the second with their fill color.
func (r *Rasterizer) drawRoads(c *canvas, z int, roads []ClippedPart) error {
	type road struct {
		line  orb.LineString
		style Style
		width float64
	}
	prepared := make([]road, len(roads))
	for i, part := range roads {
		style, _ := r.styles.Lookup(TypeRoad, part.Subtype)
		prepared[i] = road{line: part.Line, style: style, width: RoadWidth(style.OutlineWidth, z)}
	}

	for _, rd := range prepared {
		if rd.width <= roadCasing {
			continue
		}
		if err := c.stroke(rd.line, rd.style.Outline, rd.width); err != nil {
			return err
		}
	}

	for _, rd := range prepared {
		var err error
		if rd.width <= roadCasing {
			err = c.stroke(rd.line, rd.style.Fill, rd.width)
		} else {
			err = c.stroke(rd.line, rd.style.Fill, rd.width-roadCasing)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// pixelTransform maps plane coordinates to tile pixels, y growing downward.
type pixelTransform struct {
	bound  orb.Bound
	scaleX float64
	scaleY float64
}

func newPixelTransform(b orb.Bound) pixelTransform {
	return pixelTransform{
		bound:  b,
		scaleX: TileSize / (b.Max[0] - b.Min[0]),
		scaleY: TileSize / (b.Max[1] - b.Min[1]),
	}
}

func (p pixelTransform) apply(pt orb.Point) (float64, float64) {
	return (pt[0] - p.bound.Min[0]) * p.scaleX, (p.bound.Max[1] - pt[1]) * p.scaleY
}

func (p pixelTransform) points(pts []orb.Point) []orb.Point {
	out := make([]orb.Point, len(pts))
	for i, pt := range pts {
		x, y := p.apply(pt)
		out[i] = orb.Point{x, y}
	}
	return out
}

// onBorder reports whether a pixel coordinate lies on the tile edge.
func onBorder(p orb.Point) bool {
	return p[0] < borderEpsilon || TileSize-p[0] < borderEpsilon ||
		p[1] < borderEpsilon || TileSize-p[1] < borderEpsilon
}

// canvas wraps a per-tile drawing context.
type canvas struct {
	dc         *gg.Context
	px         pixelTransform
	background color.RGBA
	extension  float64
}

// fillPolygon fills the exterior ring and punches each hole with the
// background color.
func (c *canvas) fillPolygon(p orb.Polygon, fill color.RGBA) error {
	if len(p) == 0 {
		return nil
	}
	if err := c.fillRing(p[0], fill); err != nil {
		return err
	}
	for _, hole := range p[1:] {
		if err := c.fillRing(hole, c.background); err != nil {
			return err
		}
	}
	return nil
}

func (c *canvas) fillRing(r orb.Ring, col color.RGBA) error {
	pts := c.px.points(r)
	if len(pts) < 3 {
		return nil
	}
	c.dc.ClearPath()
	c.dc.MoveTo(pts[0][0], pts[0][1])
	for _, pt := range pts[1:] {
		c.dc.LineTo(pt[0], pt[1])
	}
	c.dc.ClosePath()
	c.dc.SetFillRule(gg.FillRuleNonZero)
	c.dc.SetColor(col)
	if err := c.dc.Fill(); err != nil {
		return fmt.Errorf("fill ring: %w", err)
	}
	return nil
}

// outlinePolygon strokes every ring edge except those whose two endpoints
// both lie on the tile border, so clipped edges along the tile seam are not
// drawn.
func (c *canvas) outlinePolygon(p orb.Polygon, col color.RGBA, width float64) error {
	c.dc.ClearPath()
	drawn := false
	for _, r := range p {
		pts := c.px.points(r)
		for i := 1; i < len(pts); i++ {
			a, b := pts[i-1], pts[i]
			if onBorder(a) && onBorder(b) {
				continue
			}
			c.dc.MoveTo(a[0], a[1])
			c.dc.LineTo(b[0], b[1])
			drawn = true
		}
	}
	if !drawn {
		return nil
	}
	c.dc.SetLineWidth(width)
	c.dc.SetLineCap(gg.LineCapRound)
	c.dc.SetColor(col)
	if err := c.dc.Stroke(); err != nil {
		return fmt.Errorf("stroke outline: %w", err)
	}
	return nil
}

// polyline strokes a line as a single connected path with a fixed width.
func (c *canvas) polyline(ls orb.LineString, col color.RGBA, width float64) error {
	pts := c.px.points(ls)
	if len(pts) < 2 {
		return nil
	}
	c.dc.ClearPath()
	c.dc.MoveTo(pts[0][0], pts[0][1])
	for _, pt := range pts[1:] {
		c.dc.LineTo(pt[0], pt[1])
	}
	c.dc.SetLineWidth(width)
	c.dc.SetLineCap(gg.LineCapButt)
	c.dc.SetLineJoin(gg.LineJoinRound)
	c.dc.SetColor(col)
	if err := c.dc.Stroke(); err != nil {
		return fmt.Errorf("stroke line: %w", err)
	}
	return nil
}

// stroke draws a road stroke: butt-capped segments between consecutive
// vertices with the width rounded to whole pixels, a disc of diameter
// width-1 on every vertex away from the border to fill the joints, and
// border endpoints pushed outward so the stroke runs past the tile edge.
func (c *canvas) stroke(ls orb.LineString, col color.RGBA, width float64) error {
	if width <= 0 {
		return nil
	}
	pts := c.px.points(ls)
	if len(pts) < 2 {
		return nil
	}
	pw := math.Max(1, math.Round(width))

	c.dc.SetColor(col)

	if radius := (pw - 1) / 2; radius > 0 {
		c.dc.ClearPath()
		discs := false
		for _, pt := range pts {
			if onBorder(pt) {
				continue
			}
			c.dc.NewSubPath()
			c.dc.DrawCircle(pt[0], pt[1], radius)
			discs = true
		}
		if discs {
			if err := c.dc.Fill(); err != nil {
				return fmt.Errorf("fill joints: %w", err)
			}
		}
	}

	c.dc.ClearPath()
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		p1, p2 := a, b
		if onBorder(a) {
			p1 = extend(a, b, c.extension)
		}
		if onBorder(b) {
			p2 = extend(b, a, c.extension)
		}
		c.dc.MoveTo(p1[0], p1[1])
		c.dc.LineTo(p2[0], p2[1])
	}
	c.dc.SetLineWidth(pw)
	c.dc.SetLineCap(gg.LineCapButt)
	if err := c.dc.Stroke(); err != nil {
		return fmt.Errorf("stroke road: %w", err)
	}
	return nil
}

// extend pushes endpoint a away from its neighbor b by k segment lengths.
func extend(a, b orb.Point, k float64) orb.Point {
	return orb.Point{a[0] + k*(a[0]-b[0]), a[1] + k*(a[1]-b[1])}
}
