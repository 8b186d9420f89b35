package osmtile

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/gogpu/gg/text"
)

// RenderOptions configures a Renderer.
type RenderOptions struct {
	Raster RasterOptions

	// FontData is a TrueType/OpenType font for labels. Nil uses the built-in
	// Go Regular font.
	FontData []byte

	// Font overrides FontData with an already loaded font source, typically
	// the one labels were measured with.
	Font *text.FontSource
}

// DefaultRenderOptions returns options using the built-in font and the
// default rasterization settings.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Raster: DefaultRasterOptions()}
}

// Renderer runs the per-tile pipeline: query the zoom bucket, clip the
// candidates to the tile and rasterize the clipped layers.
//
// A Renderer is safe for concurrent use once its index is frozen.
type Renderer struct {
	index  *ZoomIndexSet
	styles *StyleTable
	raster *Rasterizer
}

// NewRenderer creates a renderer over a built index.
func NewRenderer(index *ZoomIndexSet, styles *StyleTable, opts RenderOptions) (*Renderer, error) {
	font := opts.Font
	if font == nil {
		var err error
		font, err = loadFontSource(opts.FontData)
		if err != nil {
			return nil, err
		}
	}
	if opts.Raster.FontSize <= 0 {
		opts.Raster.FontSize = styles.FontSize
	}
	return &Renderer{
		index:  index,
		styles: styles,
		raster: NewRasterizer(styles, font, opts.Raster),
	}, nil
}

// Layers queries and clips the content of one tile without rasterizing it.
func (r *Renderer) Layers(t Tile) TileLayers {
	bound := t.Bound()
	return ClipTile(bound, r.index.Query(t.Z, bound))
}

// RenderTile renders one tile. It returns ErrEmptyTile when nothing in the
// tile's zoom bucket reaches the tile, and a *RenderError for any other
// failure.
//
// Example:
//
//	img, err := renderer.RenderTile(osmtile.NewTile(17, 109227, 53246))
//	switch {
//	case errors.Is(err, osmtile.ErrEmptyTile):
//	    // skip
//	case err != nil:
//	    log.Printf("tile failed: %v", err)
//	default:
//	    data, _ := osmtile.EncodePNG(img)
//	    os.WriteFile("53246.png", data, 0o644)
//	}
func (r *Renderer) RenderTile(t Tile) (image.Image, error) {
	if !t.Valid() {
		return nil, &RenderError{Tile: t, Err: fmt.Errorf("tile outside zoom %d-%d or x/y range", MinZoom, MaxZoom)}
	}
	bound := t.Bound()
	layers := ClipTile(bound, r.index.Query(t.Z, bound))
	img, err := r.raster.Rasterize(t, bound, layers)
	if err == ErrEmptyTile {
		return nil, err
	}
	if err != nil {
		return nil, &RenderError{Tile: t, Err: err}
	}
	return img, nil
}

// EncodePNG encodes a rendered tile as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
