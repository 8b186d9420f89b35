package osmtile

import (
	"github.com/paulmach/orb"
)

// SemanticType identifies which rendering layer a Feature belongs to.
type SemanticType int

const (
	// TypeRoad is a highway line stroked in two passes.
	TypeRoad SemanticType = iota + 1
	// TypeBuilding is a filled and outlined building footprint.
	TypeBuilding
	// TypeGreenArea is a filled vegetation or leisure polygon.
	TypeGreenArea
	// TypeWaterway is a river, canal or stream line.
	TypeWaterway
	// TypeWaterArea is a filled water body polygon.
	TypeWaterArea
	// TypeText is a label pseudo-feature anchored on a building.
	TypeText
)

// String returns the name used for the type in logs and style keys.
func (t SemanticType) String() string {
	switch t {
	case TypeRoad:
		return "road"
	case TypeBuilding:
		return "building"
	case TypeGreenArea:
		return "green_area"
	case TypeWaterway:
		return "waterway"
	case TypeWaterArea:
		return "water_area"
	case TypeText:
		return "text"
	default:
		return "unknown"
	}
}

// IsArea reports whether features of this type carry polygon geometry.
func (t SemanticType) IsArea() bool {
	return t == TypeBuilding || t == TypeGreenArea || t == TypeWaterArea
}

// IsLine reports whether features of this type carry line geometry.
func (t SemanticType) IsLine() bool {
	return t == TypeRoad || t == TypeWaterway
}

// Feature is an immutable, projected map feature with a visibility range.
//
// Geometry is stored in Web Mercator meters: an orb.LineString for roads and
// waterways, an orb.Polygon or orb.MultiPolygon for areas, and an orb.Point
// (the label anchor) for text. A Feature is shared read-only by every zoom
// bucket in its visibility range.
type Feature struct {
	id       int64
	typ      SemanticType
	subtype  string
	geometry orb.Geometry
	minZoom  int
	maxZoom  int
	name     string
	label    *Label
}

// Label is the payload of a text pseudo-feature. Width and Height are the
// measured text extent in pixels.
type Label struct {
	Text   string
	Anchor orb.Point
	Width  float64
	Height float64
}

// NewFeature validates and creates a Feature.
//
// The geometry must match the semantic type (lines for roads and waterways,
// polygons for areas, a point for text) and pass the structural checks in
// ValidateGeometry. Text features should be created with NewLabelFeature.
func NewFeature(id int64, typ SemanticType, subtype string, geom orb.Geometry, minZoom, maxZoom int, opts ...FeatureOption) (*Feature, error) {
	if err := validateZoomRange(minZoom, maxZoom); err != nil {
		return nil, err
	}
	if err := ValidateGeometry(typ, geom); err != nil {
		return nil, err
	}
	f := &Feature{
		id:       id,
		typ:      typ,
		subtype:  subtype,
		geometry: geom,
		minZoom:  minZoom,
		maxZoom:  maxZoom,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// FeatureOption sets optional Feature attributes at construction.
type FeatureOption func(*Feature)

// WithName attaches a display name, used for building labels.
func WithName(name string) FeatureOption {
	return func(f *Feature) {
		f.name = name
	}
}

// NewLabelFeature creates a text pseudo-feature for a label.
func NewLabelFeature(id int64, label Label, minZoom, maxZoom int) (*Feature, error) {
	if err := validateZoomRange(minZoom, maxZoom); err != nil {
		return nil, err
	}
	if label.Text == "" {
		return nil, &ErrDegenerateGeometry{Type: TypeText, Reason: "empty label text"}
	}
	l := label
	return &Feature{
		id:       id,
		typ:      TypeText,
		subtype:  TypeText.String(),
		geometry: label.Anchor,
		minZoom:  minZoom,
		maxZoom:  maxZoom,
		name:     label.Text,
		label:    &l,
	}, nil
}

func validateZoomRange(minZoom, maxZoom int) error {
	if minZoom < MinZoom || maxZoom > MaxZoom || minZoom > maxZoom {
		return &ErrInvalidZoomRange{Min: minZoom, Max: maxZoom}
	}
	return nil
}

// ID returns the source identifier (OSM way or relation ID).
func (f *Feature) ID() int64 {
	return f.id
}

// Type returns the semantic type.
func (f *Feature) Type() SemanticType {
	return f.typ
}

// Subtype returns the style key, e.g. "primary" or "park".
func (f *Feature) Subtype() string {
	return f.subtype
}

// Geometry returns the projected geometry.
func (f *Feature) Geometry() orb.Geometry {
	return f.geometry
}

// MinZoom returns the lowest zoom at which the feature is drawn.
func (f *Feature) MinZoom() int {
	return f.minZoom
}

// MaxZoom returns the highest zoom at which the feature is drawn.
func (f *Feature) MaxZoom() int {
	return f.maxZoom
}

// VisibleAt reports whether z lies in the feature's visibility range.
func (f *Feature) VisibleAt(z int) bool {
	return z >= f.minZoom && z <= f.maxZoom
}

// Name returns the feature's display name, or "" if it has none.
func (f *Feature) Name() string {
	return f.name
}

// Label returns the label payload for text features, nil otherwise.
func (f *Feature) Label() *Label {
	return f.label
}

// Bound returns the geometry's bounding box in Web Mercator meters.
// For text features this is the anchor point only; the zoom-dependent
// label footprint is computed by LabelBound.
func (f *Feature) Bound() orb.Bound {
	return f.geometry.Bound()
}

// Polygons returns the feature's area geometry as a list of polygons.
// It returns nil for non-area features.
func (f *Feature) Polygons() []orb.Polygon {
	switch g := f.geometry.(type) {
	case orb.Polygon:
		return []orb.Polygon{g}
	case orb.MultiPolygon:
		return []orb.Polygon(g)
	default:
		return nil
	}
}
