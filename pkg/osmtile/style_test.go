package osmtile

import (
	"testing"
)

func TestStyleLookup(t *testing.T) {
	styles := DefaultStyleTable()

	primary, ok := styles.Lookup(TypeRoad, "primary")
	if !ok {
		t.Fatal("Expected explicit style for primary")
	}
	if primary.OutlineWidth != 48 || primary.MinZoom != 8 {
		t.Errorf("Unexpected primary style %+v", primary)
	}

	def, ok := styles.Lookup(TypeRoad, "bridleway")
	if ok {
		t.Error("Expected miss for bridleway")
	}
	want, _ := styles.Default(TypeRoad)
	if def != want {
		t.Errorf("Expected default road style on miss, got %+v", def)
	}
}

func TestStyleTableRanges(t *testing.T) {
	styles := DefaultStyleTable()
	for _, typ := range []SemanticType{TypeRoad, TypeBuilding, TypeGreenArea, TypeWaterway, TypeWaterArea} {
		for _, sub := range styles.Subtypes(typ) {
			s, _ := styles.Lookup(typ, sub)
			if s.MinZoom < MinZoom || s.MaxZoom > MaxZoom || s.MinZoom > s.MaxZoom {
				t.Errorf("%v/%s: bad range [%d, %d]", typ, sub, s.MinZoom, s.MaxZoom)
			}
			if s.Fill.A != 0xff {
				t.Errorf("%v/%s: fill is not opaque", typ, sub)
			}
		}
		if _, ok := styles.Default(typ); !ok {
			t.Errorf("%v has no default style", typ)
		}
	}
}

func TestStyleSubtypesSorted(t *testing.T) {
	subs := DefaultStyleTable().Subtypes(TypeWaterway)
	want := []string{"canal", "ditch", "drain", "river", "stream", "water"}
	if len(subs) != len(want) {
		t.Fatalf("Expected %v, got %v", want, subs)
	}
	for i := range want {
		if subs[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, subs)
			break
		}
	}
}

func TestClassify(t *testing.T) {
	styles := DefaultStyleTable()

	tests := []struct {
		name string
		tags Tags
		want []Classification
	}{
		{
			name: "primary road",
			tags: Tags{"highway": "primary"},
			want: []Classification{{Type: TypeRoad, Subtype: "primary"}},
		},
		{
			name: "construction uses planned class",
			tags: Tags{"highway": "construction", "construction": "secondary"},
			want: []Classification{{Type: TypeRoad, Subtype: "secondary"}},
		},
		{
			name: "unstyled road skipped",
			tags: Tags{"highway": "bridleway"},
		},
		{
			name: "building",
			tags: Tags{"building": "yes"},
			want: []Classification{{Type: TypeBuilding, Subtype: "building"}},
		},
		{
			name: "building=no",
			tags: Tags{"building": "no"},
		},
		{
			name: "landuse wins over leisure",
			tags: Tags{"landuse": "forest", "leisure": "park"},
			want: []Classification{{Type: TypeGreenArea, Subtype: "forest"}},
		},
		{
			name: "natural water is a water area",
			tags: Tags{"natural": "water"},
			want: []Classification{{Type: TypeWaterArea, Subtype: "water"}},
		},
		{
			name: "river",
			tags: Tags{"waterway": "river"},
			want: []Classification{{Type: TypeWaterway, Subtype: "river"}},
		},
		{
			name: "park building",
			tags: Tags{"building": "yes", "leisure": "park"},
			want: []Classification{
				{Type: TypeBuilding, Subtype: "building"},
				{Type: TypeGreenArea, Subtype: "park"},
			},
		},
		{
			name: "untagged",
			tags: Tags{"name": "Nowhere"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(styles, tt.tags)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d classifications, got %d: %+v", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i].Type != tt.want[i].Type || got[i].Subtype != tt.want[i].Subtype {
					t.Errorf("classification %d: expected %v/%s, got %v/%s",
						i, tt.want[i].Type, tt.want[i].Subtype, got[i].Type, got[i].Subtype)
				}
				if style, _ := styles.Lookup(got[i].Type, got[i].Subtype); style != got[i].Style {
					t.Errorf("classification %d carries a different style than the table", i)
				}
			}
		})
	}
}
