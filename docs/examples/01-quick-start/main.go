package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/beetlebugorg/osmtile/pkg/osmtile"
	"github.com/paulmach/orb"
)

func main() {
	// Describe a few ways in lon/lat, as a reader would hand them over
	ways := []osmtile.Way{
		{
			ID:   1,
			Tags: osmtile.Tags{"building": "yes", "name": "Museum"},
			Coords: []orb.Point{
				{121.4735, 31.2302}, {121.4739, 31.2302},
				{121.4739, 31.2306}, {121.4735, 31.2306},
			},
		},
		{
			ID:     2,
			Tags:   osmtile.Tags{"highway": "primary"},
			Coords: []orb.Point{{121.46, 31.2300}, {121.49, 31.2300}},
		},
	}

	// Measure labels with the built-in font
	measurer, err := osmtile.NewFontMeasurer(nil, 20)
	if err != nil {
		log.Fatal(err)
	}

	// Build the zoom index
	styles := osmtile.DefaultStyleTable()
	index, stats := osmtile.BuildIndexParallel(ways, nil, styles, osmtile.DefaultBuildOptions(measurer))
	fmt.Printf("Features: %d, labels: %d\n", stats.Features, stats.Labels)

	renderer, err := osmtile.NewRenderer(index, styles, osmtile.RenderOptions{
		Raster: osmtile.DefaultRasterOptions(),
		Font:   measurer.Source(),
	})
	if err != nil {
		log.Fatal(err)
	}

	// Render the tile under the museum at a few zoom levels
	for z := 14; z <= 18; z++ {
		tile := osmtile.TileAt(121.4737, 31.2304, z)
		img, err := renderer.RenderTile(tile)
		if errors.Is(err, osmtile.ErrEmptyTile) {
			fmt.Printf("%s: empty\n", tile)
			continue
		}
		if err != nil {
			log.Fatal(err)
		}

		data, err := osmtile.EncodePNG(img)
		if err != nil {
			log.Fatal(err)
		}
		path := filepath.Join("tiles", tile.Path())
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			log.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s: %d bytes\n", path, len(data))
	}
}
