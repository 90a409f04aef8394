package spatial

import (
	"math"
	"slices"

	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
)

// Linear answers every query with an exhaustive O(N) scan. It is the
// low-density backend of Partition and the reference the other indexes are
// checked against.
type Linear struct {
	points []Point
}

// NewLinear copies points into a new scan index.
func NewLinear(points []Point) *Linear {
	return &Linear{points: slices.Clone(points)}
}

// Len returns the number of points.
func (l *Linear) Len() int {
	return len(l.points)
}

// QueryRadius returns every handle within r of center, excluding exclude.
func (l *Linear) QueryRadius(center geometry.Vector2D, r float64, exclude Handle) []Handle {
	if !validRadius(r) {
		return nil
	}
	rSq := r * r
	var out []Handle
	for _, p := range l.points {
		if p.Handle != exclude && center.DistanceSquaredTo(p.Pos) <= rSq {
			out = append(out, p.Handle)
		}
	}
	return out
}

// NearestNeighbor returns the closest handle other than exclude.
func (l *Linear) NearestNeighbor(center geometry.Vector2D, exclude Handle) (Handle, bool) {
	best := candidate{handle: NoHandle, distSq: math.Inf(1)}
	for _, p := range l.points {
		if p.Handle == exclude {
			continue
		}
		c := candidate{handle: p.Handle, distSq: center.DistanceSquaredTo(p.Pos)}
		if best.handle == NoHandle || worse(best, c) {
			best = c
		}
	}
	return best.handle, best.handle != NoHandle
}

// KNearest returns up to k handles ordered by distance, ties by handle.
func (l *Linear) KNearest(center geometry.Vector2D, k int, exclude Handle) []Handle {
	if k <= 0 {
		return nil
	}
	all := make([]candidate, 0, len(l.points))
	for _, p := range l.points {
		if p.Handle != exclude {
			all = append(all, candidate{handle: p.Handle, distSq: center.DistanceSquaredTo(p.Pos)})
		}
	}
	sortCandidates(all)
	return handlesOf(all, k)
}
