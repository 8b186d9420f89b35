package osmtile

import (
	"fmt"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// boundEpsilon pads zero-extent bounds so they form valid R-tree rectangles,
// and widens queries so features touching a tile edge are not missed.
const boundEpsilon = 1e-6

// ZoomIndexSet holds one spatial bucket per zoom level 1..18.
//
// The set is built once and read many times. During the build phase a
// single goroutine inserts features; buckets answer queries with a linear
// scan. Freeze bulk-loads every bucket into an R-tree, after which queries
// are O(log N) and safe to run from any number of goroutines.
//
// Example:
//
//	idx := osmtile.NewZoomIndexSet()
//	idx.InsertRange(road, road.Bound())
//	idx.Freeze()
//
//	tile := osmtile.NewTile(15, 27306, 13313)
//	candidates := idx.Query(tile.Z, tile.Bound())
type ZoomIndexSet struct {
	buckets [MaxZoom + 1]zoomBucket
	frozen  bool
}

type zoomBucket struct {
	entries []*indexEntry
	rtree   *rtreego.Rtree
}

// indexEntry is one feature registration in one bucket. The sequence number
// keeps query results in insertion order, which fixes paint order within a
// layer.
type indexEntry struct {
	feature *Feature
	bound   orb.Bound
	seq     int
}

// Bounds method for rtreego.Spatial interface.
func (e *indexEntry) Bounds() rtreego.Rect {
	return toRect(e.bound)
}

func toRect(b orb.Bound) rtreego.Rect {
	// Create point at southwest corner
	point := rtreego.Point{b.Min[0], b.Min[1]}

	// Create lengths (width, height), padding zero-size extents
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	if w <= 0 {
		w = boundEpsilon
	}
	if h <= 0 {
		h = boundEpsilon
	}

	rect, _ := rtreego.NewRect(point, []float64{w, h})
	return rect
}

// NewZoomIndexSet creates an empty index with one bucket per zoom level.
func NewZoomIndexSet() *ZoomIndexSet {
	return &ZoomIndexSet{}
}

// Insert registers a feature in the bucket for one zoom level.
//
// It panics if zoom lies outside [MinZoom, MaxZoom]; that is a programming
// error, not a data error. Inserting after Freeze is allowed and goes
// straight into the R-tree.
func (s *ZoomIndexSet) Insert(zoom int, f *Feature, bound orb.Bound) {
	if zoom < MinZoom || zoom > MaxZoom {
		panic(fmt.Sprintf("osmtile: insert at zoom %d outside [%d, %d]", zoom, MinZoom, MaxZoom))
	}
	b := &s.buckets[zoom]
	e := &indexEntry{feature: f, bound: bound, seq: len(b.entries)}
	b.entries = append(b.entries, e)
	if b.rtree != nil {
		b.rtree.Insert(e)
	}
}

// InsertRange registers a feature in every bucket of its visibility range.
func (s *ZoomIndexSet) InsertRange(f *Feature, bound orb.Bound) {
	for z := f.MinZoom(); z <= f.MaxZoom(); z++ {
		s.Insert(z, f, bound)
	}
}

// Query returns the features in bucket zoom whose stored bound intersects
// the query bound, in insertion order. False positives are possible; false
// negatives are not. Zoom levels outside the index return nil.
func (s *ZoomIndexSet) Query(zoom int, bound orb.Bound) []*Feature {
	if zoom < MinZoom || zoom > MaxZoom {
		return nil
	}
	b := &s.buckets[zoom]
	if len(b.entries) == 0 {
		return nil
	}

	var hits []*indexEntry
	if b.rtree == nil {
		hits = b.queryLinear(bound)
	} else {
		padded := bound.Pad(boundEpsilon)
		for _, obj := range b.rtree.SearchIntersect(toRect(padded)) {
			if e, ok := obj.(*indexEntry); ok {
				hits = append(hits, e)
			}
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })
	}

	features := make([]*Feature, len(hits))
	for i, e := range hits {
		features[i] = e.feature
	}
	return features
}

// queryLinear is the fallback used before Freeze.
func (b *zoomBucket) queryLinear(bound orb.Bound) []*indexEntry {
	var hits []*indexEntry
	for _, e := range b.entries {
		if e.bound.Intersects(bound) {
			hits = append(hits, e)
		}
	}
	return hits
}

// Freeze bulk-loads every non-empty bucket into an R-tree
// (2D, min=25 children, max=50 children).
func (s *ZoomIndexSet) Freeze() {
	for z := MinZoom; z <= MaxZoom; z++ {
		b := &s.buckets[z]
		if b.rtree != nil || len(b.entries) == 0 {
			continue
		}
		objs := make([]rtreego.Spatial, len(b.entries))
		for i, e := range b.entries {
			objs[i] = e
		}
		b.rtree = rtreego.NewTree(2, 25, 50, objs...)
	}
	s.frozen = true
}

// Frozen reports whether Freeze has been called.
func (s *ZoomIndexSet) Frozen() bool {
	return s.frozen
}

// Merge appends every registration of other into s. It is used to combine
// shard-local indexes built in parallel; other must not be used afterwards.
func (s *ZoomIndexSet) Merge(other *ZoomIndexSet) {
	for z := MinZoom; z <= MaxZoom; z++ {
		for _, e := range other.buckets[z].entries {
			s.Insert(z, e.feature, e.bound)
		}
	}
}

// Len returns the number of registrations in one bucket.
func (s *ZoomIndexSet) Len(zoom int) int {
	if zoom < MinZoom || zoom > MaxZoom {
		return 0
	}
	return len(s.buckets[zoom].entries)
}

// Total returns the number of registrations across all buckets.
func (s *ZoomIndexSet) Total() int {
	n := 0
	for z := MinZoom; z <= MaxZoom; z++ {
		n += len(s.buckets[z].entries)
	}
	return n
}
