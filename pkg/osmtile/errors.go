package osmtile

import (
	"errors"
	"fmt"
)

// ErrEmptyTile is returned by the renderer when no layer of a tile has
// anything to draw. Empty tiles are not persisted.
var ErrEmptyTile = errors.New("empty tile")

// ErrDegenerateGeometry indicates a line with fewer than 2 coordinates or a
// ring with fewer than 3 distinct coordinates.
type ErrDegenerateGeometry struct {
	Type   SemanticType
	Reason string
}

func (e *ErrDegenerateGeometry) Error() string {
	if e.Type != 0 {
		return fmt.Sprintf("degenerate geometry (%v): %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("degenerate geometry: %s", e.Reason)
}

// ErrInvalidPolygon indicates a polygon that could not be repaired into a
// valid, non-empty shape.
type ErrInvalidPolygon struct {
	Reason string
}

func (e *ErrInvalidPolygon) Error() string {
	return fmt.Sprintf("invalid polygon: %s", e.Reason)
}

// ErrInvalidZoomRange indicates a visibility range outside [MinZoom, MaxZoom]
// or with min greater than max.
type ErrInvalidZoomRange struct {
	Min, Max int
}

func (e *ErrInvalidZoomRange) Error() string {
	return fmt.Sprintf("invalid zoom range [%d, %d] (must satisfy %d <= min <= max <= %d)",
		e.Min, e.Max, MinZoom, MaxZoom)
}

// RenderError reports a failure while clipping or rasterizing one tile.
// It wraps the underlying error, including recovered panics.
type RenderError struct {
	Tile Tile
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render tile %s: %v", e.Tile, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
