package spatial

import (
	"container/heap"
	"math"
	"slices"

	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
)

type kdNode struct {
	point       Point
	left, right int32 // -1 when absent
	axis        uint8 // 0 = x, 1 = y
}

// KDTree is a static, balanced 2D tree. It is built once per epoch from a
// copy of the points and never mutated; a new epoch means a new tree.
type KDTree struct {
	nodes []kdNode
	root  int32
}

// BuildKDTree splits on the median of x at even depths and of y at odd
// depths. Medians are found by quickselect, so the build is O(N log N).
func BuildKDTree(points []Point) *KDTree {
	t := &KDTree{root: -1}
	if len(points) == 0 {
		return t
	}
	pts := slices.Clone(points)
	t.nodes = make([]kdNode, 0, len(pts))
	t.root = t.build(pts, 0)
	return t
}

func (t *KDTree) build(pts []Point, depth int) int32 {
	if len(pts) == 0 {
		return -1
	}
	axis := depth % 2
	mid := len(pts) / 2
	selectNth(pts, mid, axis)

	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, kdNode{point: pts[mid], axis: uint8(axis), left: -1, right: -1})
	left := t.build(pts[:mid], depth+1)
	right := t.build(pts[mid+1:], depth+1)
	t.nodes[idx].left = left
	t.nodes[idx].right = right
	return idx
}

// Len returns the number of points in the tree.
func (t *KDTree) Len() int {
	return len(t.nodes)
}

func coord(v geometry.Vector2D, axis int) float64 {
	if axis == 0 {
		return v.X
	}
	return v.Y
}

// kdLess is a total order: axis coordinate, then the other axis, then handle.
func kdLess(a, b Point, axis int) bool {
	if ka, kb := coord(a.Pos, axis), coord(b.Pos, axis); ka != kb {
		return ka < kb
	}
	if oa, ob := coord(a.Pos, 1-axis), coord(b.Pos, 1-axis); oa != ob {
		return oa < ob
	}
	return a.Handle < b.Handle
}

// selectNth reorders pts so that pts[n] is in sorted position, everything
// before it is not greater and everything after it is not smaller.
func selectNth(pts []Point, n, axis int) {
	lo, hi := 0, len(pts)-1
	for lo < hi {
		p := partitionPoints(pts, lo, hi, axis)
		switch {
		case n == p:
			return
		case n < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
}

func partitionPoints(pts []Point, lo, hi, axis int) int {
	mid := lo + (hi-lo)/2
	pts[mid], pts[hi] = pts[hi], pts[mid]
	pivot := pts[hi]
	store := lo
	for i := lo; i < hi; i++ {
		if kdLess(pts[i], pivot, axis) {
			pts[i], pts[store] = pts[store], pts[i]
			store++
		}
	}
	pts[store], pts[hi] = pts[hi], pts[store]
	return store
}

// QueryRadius returns every handle within r of center, excluding exclude.
func (t *KDTree) QueryRadius(center geometry.Vector2D, r float64, exclude Handle) []Handle {
	if t.root < 0 || !validRadius(r) {
		return nil
	}
	var out []Handle
	t.radius(t.root, center, r, r*r, exclude, false, &out)
	return out
}

// Around is the self-query form: any point exactly at center is treated as
// the querying point itself and dropped.
func (t *KDTree) Around(center geometry.Vector2D, r float64) []Handle {
	if t.root < 0 || !validRadius(r) {
		return nil
	}
	var out []Handle
	t.radius(t.root, center, r, r*r, NoHandle, true, &out)
	return out
}

func (t *KDTree) radius(i int32, center geometry.Vector2D, r, rSq float64, exclude Handle, dropZero bool, out *[]Handle) {
	if i < 0 {
		return
	}
	n := &t.nodes[i]
	if d := center.DistanceSquaredTo(n.point.Pos); d <= rSq && n.point.Handle != exclude && !(dropZero && d == 0) {
		*out = append(*out, n.point.Handle)
	}
	axis := int(n.axis)
	diff := coord(center, axis) - coord(n.point.Pos, axis)
	near, far := n.left, n.right
	if diff > 0 {
		near, far = n.right, n.left
	}
	t.radius(near, center, r, rSq, exclude, dropZero, out)
	// the far half-plane can only hold hits if the split line is within r
	if math.Abs(diff) <= r {
		t.radius(far, center, r, rSq, exclude, dropZero, out)
	}
}

// NearestNeighbor returns the closest handle other than exclude.
func (t *KDTree) NearestNeighbor(center geometry.Vector2D, exclude Handle) (Handle, bool) {
	nn := t.KNearest(center, 1, exclude)
	if len(nn) == 0 {
		return NoHandle, false
	}
	return nn[0], true
}

// KNearest returns up to k handles ordered by distance, ties by handle.
func (t *KDTree) KNearest(center geometry.Vector2D, k int, exclude Handle) []Handle {
	if t.root < 0 || k <= 0 {
		return nil
	}
	best := make(worstFirst, 0, k)
	t.nearest(t.root, center, k, exclude, &best)
	c := []candidate(best)
	sortCandidates(c)
	return handlesOf(c, k)
}

func (t *KDTree) nearest(i int32, center geometry.Vector2D, k int, exclude Handle, best *worstFirst) {
	if i < 0 {
		return
	}
	n := &t.nodes[i]
	if n.point.Handle != exclude {
		c := candidate{handle: n.point.Handle, distSq: center.DistanceSquaredTo(n.point.Pos)}
		switch {
		case best.Len() < k:
			heap.Push(best, c)
		case worse((*best)[0], c):
			(*best)[0] = c
			heap.Fix(best, 0)
		}
	}
	axis := int(n.axis)
	diff := coord(center, axis) - coord(n.point.Pos, axis)
	near, far := n.left, n.right
	if diff > 0 {
		near, far = n.right, n.left
	}
	t.nearest(near, center, k, exclude, best)
	// <= keeps equal-distance ties reachable so results match the other backends
	if best.Len() < k || diff*diff <= (*best)[0].distSq {
		t.nearest(far, center, k, exclude, best)
	}
}

// worse reports whether a ranks after b.
func worse(a, b candidate) bool {
	if a.distSq != b.distSq {
		return a.distSq > b.distSq
	}
	return a.handle > b.handle
}

// worstFirst is a max-heap of candidates.
type worstFirst []candidate

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
