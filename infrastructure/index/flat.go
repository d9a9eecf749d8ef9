// Package index provides the exhaustive L2 similarity index used by the
// vector store, together with its binary file format.
package index

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"slices"
)

// Index errors.
var (
	ErrDimensionMismatch  = errors.New("vector dimension mismatch")
	ErrDuplicatePosition  = errors.New("duplicate position in removal")
	ErrPositionOutOfRange = errors.New("position out of range")
)

// Absent is the position reported for search slots with no neighbor.
const Absent = -1

// MaxPadded bounds how many Absent slots Search appends past the stored
// vectors.
const MaxPadded = 1024

// Hit is one search result: a position and its squared L2 distance.
type Hit struct {
	Position int
	Distance float32
}

// FlatL2 is an exhaustive nearest-neighbor index over float32 vectors using
// squared Euclidean distance. Positions are dense: 0..Count()-1 in insertion
// order, renumbered on removal.
//
// FlatL2 is not safe for concurrent mutation. Readers holding an older fork
// may search concurrently with a writer appending to a newer fork.
type FlatL2 struct {
	dim  int
	data []float32
}

// NewFlatL2 creates an empty index for vectors of dimension dim.
func NewFlatL2(dim int) *FlatL2 {
	return &FlatL2{dim: dim}
}

// Dimension returns the vector dimension.
func (f *FlatL2) Dimension() int { return f.dim }

// Count returns the number of indexed vectors.
func (f *FlatL2) Count() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

// Fork returns an index sharing storage with f. Appending to the fork never
// changes what f observes, and Remove always writes fresh storage, so f stays
// valid for concurrent readers.
func (f *FlatL2) Fork() *FlatL2 {
	return &FlatL2{dim: f.dim, data: f.data}
}

// Add appends vectors, assigning positions Count(), Count()+1, ...
// Nothing is added when any vector has the wrong dimension.
func (f *FlatL2) Add(vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("%w: vector %d has %d values, index expects %d", ErrDimensionMismatch, i, len(v), f.dim)
		}
	}
	for _, v := range vectors {
		f.data = append(f.data, v...)
	}
	return nil
}

// Vector returns a copy of the vector at position.
func (f *FlatL2) Vector(position int) ([]float32, error) {
	if position < 0 || position >= f.Count() {
		return nil, fmt.Errorf("%w: %d", ErrPositionOutOfRange, position)
	}
	return slices.Clone(f.row(position)), nil
}

func (f *FlatL2) row(position int) []float32 {
	return f.data[position*f.dim : (position+1)*f.dim]
}

// Search returns k hits ordered by ascending distance. When fewer than k
// vectors exist the tail is padded with Absent positions and +Inf distance,
// but never beyond max(Count(), MaxPadded) hits in total. Ties are broken by
// lower position.
func (f *FlatL2) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d values, index expects %d", ErrDimensionMismatch, len(query), f.dim)
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	h := make(maxHeap, 0, min(k, f.Count()))
	for pos := range f.Count() {
		d := squaredL2(query, f.row(pos))
		if len(h) < k {
			heap.Push(&h, Hit{Position: pos, Distance: d})
			continue
		}
		if d < h[0].Distance {
			h[0] = Hit{Position: pos, Distance: d}
			heap.Fix(&h, 0)
		}
	}

	hits := []Hit(h)
	slices.SortFunc(hits, compareHits)
	for len(hits) < min(k, max(f.Count(), MaxPadded)) {
		hits = append(hits, Hit{Position: Absent, Distance: float32(math.Inf(1))})
	}
	return hits, nil
}

// Remove deletes the given positions and renumbers the survivors densely,
// preserving their relative order. It returns the number removed.
func (f *FlatL2) Remove(positions []int) (int, error) {
	drop := make(map[int]struct{}, len(positions))
	for _, p := range positions {
		if p < 0 || p >= f.Count() {
			return 0, fmt.Errorf("%w: %d", ErrPositionOutOfRange, p)
		}
		if _, dup := drop[p]; dup {
			return 0, fmt.Errorf("%w: %d", ErrDuplicatePosition, p)
		}
		drop[p] = struct{}{}
	}
	if len(drop) == 0 {
		return 0, nil
	}

	kept := make([]float32, 0, (f.Count()-len(drop))*f.dim)
	for pos := range f.Count() {
		if _, ok := drop[pos]; ok {
			continue
		}
		kept = append(kept, f.row(pos)...)
	}
	f.data = kept
	return len(drop), nil
}

// Reset drops every vector.
func (f *FlatL2) Reset() {
	f.data = nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func compareHits(a, b Hit) int {
	switch {
	case a.Distance < b.Distance:
		return -1
	case a.Distance > b.Distance:
		return 1
	default:
		return a.Position - b.Position
	}
}

// maxHeap keeps the current k best hits with the worst on top.
type maxHeap []Hit

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return compareHits(h[i], h[j]) > 0 }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)        { *h = append(*h, x.(Hit)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
