package osmtile

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"
)

const (
	// TileSize is the edge length of every rendered tile in pixels.
	TileSize = 512

	// MinZoom and MaxZoom bound the zoom levels that can be indexed or rendered.
	MinZoom = 1
	MaxZoom = 18

	// maxLatitude is the northern (and southern) limit of Web Mercator.
	maxLatitude = 85.05112877980659

	// earthCircumference is the length of the Web Mercator plane along the equator.
	earthCircumference = 2 * math.Pi * 6378137.0
)

// Tile identifies one raster tile in the slippy-map scheme.
type Tile struct {
	Z int
	X int
	Y int
}

// NewTile returns the tile at z/x/y.
func NewTile(z, x, y int) Tile {
	return Tile{Z: z, X: x, Y: y}
}

// Valid reports whether the tile's zoom is renderable and x/y lie in [0, 2^z-1].
func (t Tile) Valid() bool {
	if t.Z < MinZoom || t.Z > MaxZoom {
		return false
	}
	n := 1 << uint(t.Z)
	return t.X >= 0 && t.X < n && t.Y >= 0 && t.Y < n
}

// Path returns the relative storage path {z}/{x}/{y}.png.
func (t Tile) Path() string {
	return fmt.Sprintf("%d/%d/%d.png", t.Z, t.X, t.Y)
}

// String implements fmt.Stringer.
func (t Tile) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// LonLatBound returns the tile's extent in WGS84 degrees.
func (t Tile) LonLatBound() orb.Bound {
	return maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Z)).Bound()
}

// Bound returns the tile's extent in Web Mercator meters.
//
// The corners of the geographic extent are projected independently; the
// projection is monotonic in both axes so the result is still a valid
// bounding box.
func (t Tile) Bound() orb.Bound {
	ll := t.LonLatBound()
	return orb.Bound{
		Min: project.WGS84.ToMercator(ll.Min),
		Max: project.WGS84.ToMercator(ll.Max),
	}
}

// TileAt returns the tile containing the given longitude/latitude at zoom z.
//
// Latitudes beyond the Web Mercator limit and longitudes at +180 are clamped
// so the returned x/y always lie in [0, 2^z-1].
func TileAt(lon, lat float64, z int) Tile {
	lat = math.Max(-maxLatitude, math.Min(maxLatitude, lat))
	lon = math.Max(-180, math.Min(180, lon))

	mt := maptile.At(orb.Point{lon, lat}, maptile.Zoom(z))
	n := 1 << uint(z)
	return Tile{
		Z: z,
		X: clampInt(int(mt.X), 0, n-1),
		Y: clampInt(int(mt.Y), 0, n-1),
	}
}

// TileRange returns the inclusive tile x/y range covering a lon/lat bound at
// zoom z. The north-west corner gives the minimum and the south-east corner
// the maximum, since tile y grows southward.
func TileRange(bound orb.Bound, z int) (minX, minY, maxX, maxY int) {
	nw := TileAt(bound.Min[0], bound.Max[1], z)
	se := TileAt(bound.Max[0], bound.Min[1], z)
	return nw.X, nw.Y, se.X, se.Y
}

// TilesInBound enumerates every tile covering a lon/lat bound for zooms
// minZoom through maxZoom, ordered by zoom, then x, then y.
//
// Example:
//
//	bounds := orb.Bound{Min: orb.Point{121.40, 31.15}, Max: orb.Point{121.55, 31.30}}
//	for _, t := range osmtile.TilesInBound(bounds, 10, 12) {
//	    fmt.Println(t.Path())
//	}
func TilesInBound(bound orb.Bound, minZoom, maxZoom int) []Tile {
	minZoom = clampInt(minZoom, MinZoom, MaxZoom)
	maxZoom = clampInt(maxZoom, MinZoom, MaxZoom)

	var tiles []Tile
	for z := minZoom; z <= maxZoom; z++ {
		x0, y0, x1, y1 := TileRange(bound, z)
		for x := x0; x <= x1; x++ {
			for y := y0; y <= y1; y++ {
				tiles = append(tiles, Tile{Z: z, X: x, Y: y})
			}
		}
	}
	return tiles
}

// UnitsPerPixel returns how many Web Mercator meters one pixel covers at
// zoom z along the equator-aligned plane axes.
func UnitsPerPixel(z int) float64 {
	return earthCircumference / (float64(int64(1)<<uint(z)) * TileSize)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
