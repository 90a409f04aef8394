// Package spatial provides the proximity indexes rebuilt every tick from an
// agent snapshot: a bucket grid, a static kd-tree, a brute-force scan and the
// Partition that picks between grid and scan by density.
//
// Every index stores (position, handle) pairs where a Handle is the index of
// the agent in the dense per-tick arena. Indexes are built, frozen, queried
// and then dropped; none of them is safe for a write concurrent with a query.
package spatial

import (
	"cmp"
	"errors"
	"slices"

	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
)

// Handle identifies a point inside one index generation.
type Handle int32

// NoHandle disables self-exclusion in queries.
const NoHandle Handle = -1

// ErrInvalidGeometry is returned when an index is created with a
// non-positive or non-finite cell size or map extent.
var ErrInvalidGeometry = errors.New("spatial: invalid geometry")

// Point is one indexed entry.
type Point struct {
	Pos    geometry.Vector2D
	Handle Handle
}

// Index is the query surface shared by every backend.
type Index interface {
	// QueryRadius returns the handles whose position lies within r of center
	// (inclusive), skipping exclude.
	QueryRadius(center geometry.Vector2D, r float64, exclude Handle) []Handle
	// NearestNeighbor returns the closest handle other than exclude.
	NearestNeighbor(center geometry.Vector2D, exclude Handle) (Handle, bool)
	// KNearest returns up to k handles ordered by increasing distance.
	KNearest(center geometry.Vector2D, k int, exclude Handle) []Handle
	// Len is the number of indexed points.
	Len() int
}

var (
	_ Index = (*Grid)(nil)
	_ Index = (*KDTree)(nil)
	_ Index = (*Linear)(nil)
	_ Index = (*Partition)(nil)
)

// candidate is a handle annotated with its squared distance to a query center.
type candidate struct {
	handle Handle
	distSq float64
}

// sortCandidates orders by distance, then by handle so ties are stable
// across backends.
func sortCandidates(c []candidate) {
	slices.SortFunc(c, func(a, b candidate) int {
		if d := cmp.Compare(a.distSq, b.distSq); d != 0 {
			return d
		}
		return cmp.Compare(a.handle, b.handle)
	})
}

func handlesOf(c []candidate, k int) []Handle {
	if k > len(c) {
		k = len(c)
	}
	out := make([]Handle, k)
	for i := 0; i < k; i++ {
		out[i] = c[i].handle
	}
	return out
}

// validRadius rejects negative and NaN radii. +Inf is a valid "everything".
func validRadius(r float64) bool {
	return r >= 0
}
