package osmtile

import (
	"image/color"
	"sort"
)

// Style holds the visibility range and paint for one subtype.
type Style struct {
	MinZoom int
	MaxZoom int

	// Fill paints polygons and the inner stroke of roads.
	Fill color.RGBA

	// Outline paints building edges and the outer stroke of roads.
	Outline color.RGBA

	// OutlineWidth is the stroke width in pixels. For roads it is the
	// width at zoom 18, which RoadWidth scales down for lower zooms.
	OutlineWidth float64
}

// StyleTable maps (semantic type, subtype) to a Style.
//
// The table is static: it is built once by DefaultStyleTable and never
// modified while tiles render, so concurrent lookups need no locking.
type StyleTable struct {
	entries  map[SemanticType]map[string]Style
	defaults map[SemanticType]Style

	// Background is the canvas color and the color punched into holes.
	Background color.RGBA

	// Text is the label color.
	Text color.RGBA

	// FontSize is the label size in points.
	FontSize float64
}

func rgb(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Palette values shared between entries.
var (
	backgroundColor      = rgb(242, 239, 233)
	buildingColor        = rgb(217, 208, 201)
	buildingOutlineColor = rgb(197, 184, 174)
	waterColor           = rgb(170, 211, 223)
	roadDefaultColor     = rgb(255, 255, 255)
	roadOutlineColor     = rgb(200, 200, 200)
	greenDefaultColor    = rgb(200, 250, 204)
	textColor            = rgb(0, 0, 0)
)

const (
	buildingOutlineWidth = 2
	waterwayWidth        = 4
	roadDefaultWidth     = 20
	defaultFontSize      = 20
)

// DefaultStyleTable returns the built-in OSM-carto-like style.
//
// Roads become visible at a class-dependent zoom (motorways at 5, residential
// streets at 15, paths at 17) and stay visible through zoom 18. Buildings
// show from 14, water areas and green areas from 10, waterways from 12 or 14
// depending on their size.
func DefaultStyleTable() *StyleTable {
	road := func(minZoom int, fill, outline color.RGBA, width float64) Style {
		return Style{MinZoom: minZoom, MaxZoom: MaxZoom, Fill: fill, Outline: outline, OutlineWidth: width}
	}
	green := func(fill color.RGBA) Style {
		return Style{MinZoom: 10, MaxZoom: MaxZoom, Fill: fill}
	}
	waterway := func(minZoom int) Style {
		return Style{MinZoom: minZoom, MaxZoom: MaxZoom, Fill: waterColor, Outline: waterColor, OutlineWidth: waterwayWidth}
	}

	trunk := rgb(249, 178, 156)

	return &StyleTable{
		entries: map[SemanticType]map[string]Style{
			TypeRoad: {
				"motorway":       road(5, roadDefaultColor, roadOutlineColor, roadDefaultWidth),
				"motorway_link":  road(5, roadDefaultColor, roadOutlineColor, roadDefaultWidth),
				"trunk":          road(7, trunk, trunk, 24),
				"primary":        road(8, rgb(252, 214, 164), roadOutlineColor, 48),
				"primary_link":   road(8, roadDefaultColor, roadOutlineColor, roadDefaultWidth),
				"secondary":      road(11, roadDefaultColor, roadOutlineColor, 36),
				"secondary_link": road(11, roadDefaultColor, roadOutlineColor, roadDefaultWidth),
				"tertiary":       road(13, roadDefaultColor, roadOutlineColor, 24),
				"tertiary_link":  road(13, roadDefaultColor, roadOutlineColor, roadDefaultWidth),
				"residential":    road(15, roadDefaultColor, roadOutlineColor, roadDefaultWidth),
				"unclassified":   road(15, roadDefaultColor, roadOutlineColor, roadDefaultWidth),
				"service":        road(5, roadDefaultColor, roadOutlineColor, roadDefaultWidth),
				"path":           road(17, roadDefaultColor, roadOutlineColor, roadDefaultWidth),
				"cycleway":       road(17, roadDefaultColor, roadOutlineColor, roadDefaultWidth),
			},
			TypeGreenArea: {
				"park":              green(rgb(200, 250, 204)),
				"forest":            green(rgb(173, 209, 158)),
				"grass":             green(rgb(205, 235, 176)),
				"meadow":            green(rgb(205, 235, 176)),
				"recreation_ground": green(rgb(223, 252, 226)),
				"garden":            green(rgb(0, 255, 127)),
			},
			TypeWaterway: {
				"river":  waterway(12),
				"canal":  waterway(12),
				"stream": waterway(14),
				"drain":  waterway(14),
				"ditch":  waterway(14),
				"water":  waterway(10),
			},
			TypeBuilding: {
				"building": {MinZoom: 14, MaxZoom: MaxZoom, Fill: buildingColor, Outline: buildingOutlineColor, OutlineWidth: buildingOutlineWidth},
			},
			TypeWaterArea: {
				"water": {MinZoom: 10, MaxZoom: MaxZoom, Fill: waterColor},
			},
		},
		defaults: map[SemanticType]Style{
			TypeRoad:      road(15, roadDefaultColor, roadOutlineColor, roadDefaultWidth),
			TypeBuilding:  {MinZoom: 14, MaxZoom: MaxZoom, Fill: buildingColor, Outline: buildingOutlineColor, OutlineWidth: buildingOutlineWidth},
			TypeGreenArea: green(greenDefaultColor),
			TypeWaterway:  waterway(14),
			TypeWaterArea: {MinZoom: 10, MaxZoom: MaxZoom, Fill: waterColor},
			TypeText:      {MinZoom: 17, MaxZoom: MaxZoom, Fill: textColor},
		},
		Background: backgroundColor,
		Text:       textColor,
		FontSize:   defaultFontSize,
	}
}

// Lookup returns the style for a subtype.
//
// The boolean is true when the subtype has an explicit entry. On a miss the
// semantic type's default style is returned with false; callers decide
// whether a miss means "skip" (classification) or "paint with the default"
// (rendering). Lookup never fails for a known semantic type.
//
// Example:
//
//	style, ok := styles.Lookup(osmtile.TypeRoad, "primary")
//	// style.OutlineWidth == 48, ok == true
//
//	style, ok = styles.Lookup(osmtile.TypeRoad, "bridleway")
//	// default road style, ok == false
func (s *StyleTable) Lookup(typ SemanticType, subtype string) (Style, bool) {
	if style, ok := s.entries[typ][subtype]; ok {
		return style, true
	}
	return s.defaults[typ], false
}

// Has reports whether a subtype has an explicit entry.
func (s *StyleTable) Has(typ SemanticType, subtype string) bool {
	_, ok := s.entries[typ][subtype]
	return ok
}

// Default returns the fallback style for a semantic type.
func (s *StyleTable) Default(typ SemanticType) (Style, bool) {
	style, ok := s.defaults[typ]
	return style, ok
}

// Subtypes returns the explicitly styled subtypes of a semantic type in
// sorted order.
func (s *StyleTable) Subtypes(typ SemanticType) []string {
	keys := make([]string, 0, len(s.entries[typ]))
	for k := range s.entries[typ] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
