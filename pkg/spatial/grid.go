package spatial

import (
	"fmt"
	"math"

	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
)

// gridSlot is the reverse lookup entry of one handle.
type gridSlot struct {
	pos   geometry.Vector2D
	cell  int32 // -1 when the handle is not in the grid
	index int32 // position inside the cell bucket
}

// Grid is a bucket grid covering [0, mapSize]. Points outside the map are
// clamped into the border cells, so nothing is ever dropped.
//
// Insert, Remove and Update are O(1): each handle owns exactly one slot in a
// dense reverse-lookup slice, and buckets are compacted with swap-remove.
type Grid struct {
	cellSize    float64
	invCellSize float64
	cols        int
	rows        int
	cells       [][]Handle // index = row*cols + col
	slots       []gridSlot // index = handle
	count       int
}

// NewGrid creates a grid of ceil(w/cellSize) x ceil(h/cellSize) cells.
func NewGrid(cellSize float64, mapSize geometry.Vector2D) (*Grid, error) {
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, fmt.Errorf("%w: cell size %v", ErrInvalidGeometry, cellSize)
	}
	if !(mapSize.X > 0) || !(mapSize.Y > 0) || !mapSize.IsFinite() {
		return nil, fmt.Errorf("%w: map size %s", ErrInvalidGeometry, mapSize)
	}
	cols := max(1, int(math.Ceil(mapSize.X/cellSize)))
	rows := max(1, int(math.Ceil(mapSize.Y/cellSize)))
	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       make([][]Handle, cols*rows),
	}, nil
}

// BuildGrid creates a grid and inserts every point.
func BuildGrid(cellSize float64, mapSize geometry.Vector2D, points []Point) (*Grid, error) {
	g, err := NewGrid(cellSize, mapSize)
	if err != nil {
		return nil, err
	}
	g.slots = make([]gridSlot, 0, len(points))
	for _, p := range points {
		g.Insert(p.Pos, p.Handle)
	}
	return g, nil
}

// Dims returns the number of columns and rows.
func (g *Grid) Dims() (cols, rows int) {
	return g.cols, g.rows
}

// CellSize returns the edge length of a cell.
func (g *Grid) CellSize() float64 {
	return g.cellSize
}

// Len returns the number of indexed handles.
func (g *Grid) Len() int {
	return g.count
}

// CellOf returns the clamped cell coordinates containing pos.
func (g *Grid) CellOf(pos geometry.Vector2D) (col, row int) {
	return clampCell(pos.X*g.invCellSize, g.cols), clampCell(pos.Y*g.invCellSize, g.rows)
}

func clampCell(v float64, dim int) int {
	f := math.Floor(v)
	if !(f >= 0) { // also catches NaN
		return 0
	}
	if f >= float64(dim-1) {
		return dim - 1
	}
	return int(f)
}

// Insert adds h at pos. Inserting a handle that is already present moves it,
// so a handle never owns two buckets. Negative handles are rejected.
func (g *Grid) Insert(pos geometry.Vector2D, h Handle) bool {
	if h < 0 {
		return false
	}
	if int(h) < len(g.slots) && g.slots[h].cell >= 0 {
		g.Remove(h)
	}
	for int(h) >= len(g.slots) {
		g.slots = append(g.slots, gridSlot{cell: -1})
	}
	col, row := g.CellOf(pos)
	idx := row*g.cols + col
	g.slots[h] = gridSlot{pos: pos, cell: int32(idx), index: int32(len(g.cells[idx]))}
	g.cells[idx] = append(g.cells[idx], h)
	g.count++
	return true
}

// Remove deletes h and reports whether it was present.
func (g *Grid) Remove(h Handle) bool {
	if h < 0 || int(h) >= len(g.slots) {
		return false
	}
	slot := &g.slots[h]
	if slot.cell < 0 {
		return false
	}
	bucket := g.cells[slot.cell]
	last := len(bucket) - 1
	if int(slot.index) != last {
		moved := bucket[last]
		bucket[slot.index] = moved
		g.slots[moved].index = slot.index
	}
	g.cells[slot.cell] = bucket[:last]
	slot.cell = -1
	slot.index = -1
	g.count--
	return true
}

// Update moves h to pos (remove then insert).
func (g *Grid) Update(pos geometry.Vector2D, h Handle) bool {
	g.Remove(h)
	return g.Insert(pos, h)
}

// Position returns the stored position of h.
func (g *Grid) Position(h Handle) (geometry.Vector2D, bool) {
	if h < 0 || int(h) >= len(g.slots) || g.slots[h].cell < 0 {
		return geometry.Zero, false
	}
	return g.slots[h].pos, true
}

// Reset empties the grid but keeps bucket capacity.
func (g *Grid) Reset() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.slots = g.slots[:0]
	g.count = 0
}

// ringsFor returns how many rings around the center cell a radius needs.
// The extra ring over-scans by up to one cell instead of computing exact
// cell boundaries.
func (g *Grid) ringsFor(r float64) int {
	span := r * g.invCellSize
	limit := g.cols + g.rows
	if span >= float64(limit) { // includes +Inf
		return limit
	}
	return int(math.Ceil(span)) + 1
}

// collect gathers every handle within r of center.
func (g *Grid) collect(center geometry.Vector2D, r float64, exclude Handle, out []candidate) []candidate {
	cx, cy := g.CellOf(center)
	rings := g.ringsFor(r)
	minX, maxX := max(0, cx-rings), min(g.cols-1, cx+rings)
	minY, maxY := max(0, cy-rings), min(g.rows-1, cy+rings)
	rSq := r * r
	for row := minY; row <= maxY; row++ {
		base := row * g.cols
		for col := minX; col <= maxX; col++ {
			for _, h := range g.cells[base+col] {
				if h == exclude {
					continue
				}
				if d := center.DistanceSquaredTo(g.slots[h].pos); d <= rSq {
					out = append(out, candidate{handle: h, distSq: d})
				}
			}
		}
	}
	return out
}

// coversAll reports whether rings around center reach every cell.
func (g *Grid) coversAll(center geometry.Vector2D, rings int) bool {
	cx, cy := g.CellOf(center)
	return cx-rings <= 0 && cx+rings >= g.cols-1 && cy-rings <= 0 && cy+rings >= g.rows-1
}

// QueryRadius returns every handle within r of center, excluding exclude.
func (g *Grid) QueryRadius(center geometry.Vector2D, r float64, exclude Handle) []Handle {
	if g.count == 0 || !validRadius(r) {
		return nil
	}
	found := g.collect(center, r, exclude, nil)
	out := make([]Handle, len(found))
	for i, c := range found {
		out[i] = c.handle
	}
	return out
}

// NearestNeighbor returns the closest handle to center other than exclude.
func (g *Grid) NearestNeighbor(center geometry.Vector2D, exclude Handle) (Handle, bool) {
	nn := g.KNearest(center, 1, exclude)
	if len(nn) == 0 {
		return NoHandle, false
	}
	return nn[0], true
}

// KNearest grows the search radius one cell at a time until at least k
// candidates are found, then sorts them. Every point outside the searched
// radius is farther than every point inside it, so the first k are exact.
func (g *Grid) KNearest(center geometry.Vector2D, k int, exclude Handle) []Handle {
	if k <= 0 || g.count == 0 {
		return nil
	}
	var buf []candidate
	for ring := 1; ; ring++ {
		r := g.cellSize * float64(ring)
		buf = g.collect(center, r, exclude, buf[:0])
		if len(buf) >= k {
			break
		}
		if g.coversAll(center, g.ringsFor(r)) {
			// points clamped in from outside the map may sit beyond r
			buf = g.collect(center, math.Inf(1), exclude, buf[:0])
			break
		}
	}
	sortCandidates(buf)
	return handlesOf(buf, k)
}
