package spatial

import (
	"fmt"

	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
)

// Backend names the index a Partition selected at its last Build.
type Backend int

const (
	BackendNone Backend = iota
	BackendLinear
	BackendGrid
)

func (b Backend) String() string {
	switch b {
	case BackendLinear:
		return "linear"
	case BackendGrid:
		return "grid"
	default:
		return "none"
	}
}

// Partition picks a Grid when there are at least densityThreshold points and
// a brute-force scan otherwise. The choice is made again on every Build and
// each Build allocates a fresh backend; the previous one is simply dropped.
type Partition struct {
	cellSize         float64
	densityThreshold int

	backend Backend
	index   Index
}

// NewPartition returns an empty partition. Queries before the first Build
// return empty results.
func NewPartition(cellSize float64, densityThreshold int) *Partition {
	return &Partition{cellSize: cellSize, densityThreshold: densityThreshold}
}

// Build indexes points for one tick.
func (p *Partition) Build(points []Point, mapSize geometry.Vector2D) error {
	if len(points) >= p.densityThreshold {
		g, err := BuildGrid(p.cellSize, mapSize, points)
		if err != nil {
			p.backend, p.index = BackendNone, nil
			return fmt.Errorf("partition build: %w", err)
		}
		p.backend, p.index = BackendGrid, g
		return nil
	}
	p.backend, p.index = BackendLinear, NewLinear(points)
	return nil
}

// Backend returns the index chosen at the last Build.
func (p *Partition) Backend() Backend {
	return p.backend
}

// Len returns the number of points indexed at the last Build.
func (p *Partition) Len() int {
	if p.index == nil {
		return 0
	}
	return p.index.Len()
}

// QueryRadius delegates to the selected backend.
func (p *Partition) QueryRadius(center geometry.Vector2D, r float64, exclude Handle) []Handle {
	if p.index == nil {
		return nil
	}
	return p.index.QueryRadius(center, r, exclude)
}

// NearestNeighbor delegates to the selected backend.
func (p *Partition) NearestNeighbor(center geometry.Vector2D, exclude Handle) (Handle, bool) {
	if p.index == nil {
		return NoHandle, false
	}
	return p.index.NearestNeighbor(center, exclude)
}

// KNearest delegates to the selected backend.
func (p *Partition) KNearest(center geometry.Vector2D, k int, exclude Handle) []Handle {
	if p.index == nil {
		return nil
	}
	return p.index.KNearest(center, k, exclude)
}
