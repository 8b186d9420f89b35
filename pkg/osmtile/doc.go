// Package osmtile renders tagged OpenStreetMap features into a pyramid of
// 512x512 raster tiles addressed as {z}/{x}/{y}.
//
// The package is split into a build phase and a render phase. During the
// build phase an Ingestor classifies ways and multipolygon relations into
// Features (roads, buildings, green areas, waterways, water areas and
// building labels) and registers each Feature in every zoom bucket of its
// visibility range. During the render phase each tile queries a single
// zoom bucket, clips the candidates exactly to the tile and rasterizes the
// clipped parts in a fixed layer order.
//
// # Basic Usage
//
//	styles := osmtile.DefaultStyleTable()
//	index := osmtile.NewZoomIndexSet()
//	measurer, err := osmtile.NewFontMeasurer(nil, styles.FontSize)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ing := osmtile.NewIngestor(index, styles, osmtile.DefaultIngestOptions(measurer))
//	ing.HandleWay(osmtile.Way{ID: 1, Tags: tags, Coords: coords})
//	index.Freeze()
//
//	renderer, err := osmtile.NewRenderer(index, styles, osmtile.DefaultRenderOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	img, err := renderer.RenderTile(osmtile.NewTile(16, 54613, 33294))
//	if errors.Is(err, osmtile.ErrEmptyTile) {
//	    // nothing to persist
//	}
//
// # Rendering a Pyramid
//
// RenderTilesParallel fans tiles out to a bounded worker pool. A failure in
// one tile is logged and reported without stopping its siblings:
//
//	tiles := osmtile.TilesInBound(bounds, 1, 18)
//	summary := osmtile.RenderTilesParallel(ctx, renderer, tiles, sink, osmtile.DefaultBatchOptions())
//	fmt.Printf("rendered %d, empty %d, failed %d\n",
//	    summary.Rendered, summary.Empty, summary.Failed)
//
// # Coordinates
//
// Feature geometry is stored in Web Mercator (EPSG:3857) meters. Tiles
// derive their plane bounding box from the slippy-map tile scheme, and
// pixel coordinates grow to the right and downward from the tile's
// north-west corner.
package osmtile
