package spatial

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
)

// randomPoints scatters n points over a w x h area with a fixed seed.
func randomPoints(seed uint64, n int, w, h float64) []Point {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	pts := make([]Point, n)
	for i := range pts {
		pts[i] = Point{
			Pos:    geometry.Vector2D{X: rng.Float64() * w, Y: rng.Float64() * h},
			Handle: Handle(i),
		}
	}
	return pts
}

func TestGrid_ConcreteScenario(t *testing.T) {
	// 50 agents in a 200x200 area, cell size 5 -> 40x40 cells.
	pts := randomPoints(42, 50, 200, 200)
	g, err := BuildGrid(5, geometry.Vector2D{X: 200, Y: 200}, pts)
	require.NoError(t, err)

	cols, rows := g.Dims()
	assert.Equal(t, 40, cols)
	assert.Equal(t, 40, rows)

	center := geometry.Vector2D{X: 100, Y: 100}
	oracle := NewLinear(pts).QueryRadius(center, 12, NoHandle)
	assert.ElementsMatch(t, oracle, g.QueryRadius(center, 12, NoHandle))
}

func TestIndexes_MatchBruteForce(t *testing.T) {
	mapSize := geometry.Vector2D{X: 300, Y: 200}
	for _, n := range []int{0, 1, 7, 64, 500} {
		pts := randomPoints(uint64(n)+1, n, mapSize.X, mapSize.Y)
		oracle := NewLinear(pts)
		grid, err := BuildGrid(7.5, mapSize, pts)
		require.NoError(t, err)
		tree := BuildKDTree(pts)
		part := NewPartition(7.5, 32)
		require.NoError(t, part.Build(pts, mapSize))

		backends := map[string]Index{"grid": grid, "kdtree": tree, "partition": part}
		rng := rand.New(rand.NewPCG(uint64(n), 7))
		for q := 0; q < 40; q++ {
			center := geometry.Vector2D{X: rng.Float64()*360 - 30, Y: rng.Float64()*260 - 30}
			r := rng.Float64() * 60
			exclude := NoHandle
			if n > 0 && q%2 == 0 {
				exclude = Handle(rng.IntN(n))
			}
			want := oracle.QueryRadius(center, r, exclude)
			for name, idx := range backends {
				assert.ElementsMatch(t, want, idx.QueryRadius(center, r, exclude),
					"%s n=%d center=%s r=%.2f", name, n, center, r)
			}
		}
	}
}

func TestIndexes_KNearestMatchesBruteForce(t *testing.T) {
	mapSize := geometry.Vector2D{X: 250, Y: 250}
	pts := randomPoints(99, 300, mapSize.X, mapSize.Y)
	oracle := NewLinear(pts)
	grid, err := BuildGrid(10, mapSize, pts)
	require.NoError(t, err)
	tree := BuildKDTree(pts)

	rng := rand.New(rand.NewPCG(3, 4))
	for q := 0; q < 50; q++ {
		self := Handle(rng.IntN(len(pts)))
		center := pts[self].Pos
		k := 1 + rng.IntN(12)

		want := oracle.KNearest(center, k, self)
		require.Len(t, want, k)
		assert.NotContains(t, want, self)
		assert.Equal(t, want, grid.KNearest(center, k, self), "grid k=%d", k)
		assert.Equal(t, want, tree.KNearest(center, k, self), "kdtree k=%d", k)

		nn, ok := grid.NearestNeighbor(center, self)
		require.True(t, ok)
		assert.Equal(t, want[0], nn)
		nn, ok = tree.NearestNeighbor(center, self)
		require.True(t, ok)
		assert.Equal(t, want[0], nn)
	}
}

func TestGrid_KNearestBeyondPopulation(t *testing.T) {
	pts := randomPoints(5, 6, 100, 100)
	// one point far outside the map, clamped into a border cell
	pts = append(pts, Point{Pos: geometry.Vector2D{X: 900, Y: -400}, Handle: 6})
	g, err := BuildGrid(10, geometry.Vector2D{X: 100, Y: 100}, pts)
	require.NoError(t, err)

	got := g.KNearest(geometry.Vector2D{X: 50, Y: 50}, 20, NoHandle)
	assert.Equal(t, NewLinear(pts).KNearest(geometry.Vector2D{X: 50, Y: 50}, 20, NoHandle), got)
	assert.Len(t, got, 7)
}

func TestGrid_EmptyAndDegenerate(t *testing.T) {
	g, err := NewGrid(5, geometry.Vector2D{X: 50, Y: 50})
	require.NoError(t, err)

	assert.Empty(t, g.QueryRadius(geometry.Vector2D{X: 10, Y: 10}, 100, NoHandle))
	assert.Empty(t, g.KNearest(geometry.Vector2D{}, 3, NoHandle))
	_, ok := g.NearestNeighbor(geometry.Vector2D{}, NoHandle)
	assert.False(t, ok)

	g.Insert(geometry.Vector2D{X: 10, Y: 10}, 0)
	assert.Empty(t, g.QueryRadius(geometry.Vector2D{X: 10, Y: 10}, -1, NoHandle), "negative radius")
	assert.Equal(t, []Handle{0}, g.QueryRadius(geometry.Vector2D{X: 10, Y: 10}, 0, NoHandle), "zero radius is inclusive")
	assert.Equal(t, []Handle{0}, g.QueryRadius(geometry.Vector2D{X: 49, Y: 49}, 1e9, NoHandle), "huge radius clamps to grid")
	assert.False(t, g.Insert(geometry.Vector2D{}, -3))

	for _, bad := range []struct {
		cell float64
		size geometry.Vector2D
	}{
		{0, geometry.Vector2D{X: 10, Y: 10}},
		{-1, geometry.Vector2D{X: 10, Y: 10}},
		{5, geometry.Vector2D{X: 0, Y: 10}},
		{5, geometry.Vector2D{X: 10, Y: -1}},
	} {
		_, err := NewGrid(bad.cell, bad.size)
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	}
}

func TestGrid_CellClamping(t *testing.T) {
	g, err := NewGrid(10, geometry.Vector2D{X: 95, Y: 40})
	require.NoError(t, err)
	cols, rows := g.Dims()
	require.Equal(t, 10, cols)
	require.Equal(t, 4, rows)

	tests := []struct {
		pos      geometry.Vector2D
		col, row int
	}{
		{geometry.Vector2D{X: -5, Y: -5}, 0, 0},
		{geometry.Vector2D{X: 94.9, Y: 39.9}, 9, 3},
		{geometry.Vector2D{X: 1000, Y: 1000}, 9, 3},
		{geometry.Vector2D{X: 15, Y: 25}, 1, 2},
	}
	for _, tt := range tests {
		col, row := g.CellOf(tt.pos)
		assert.Equal(t, tt.col, col, "col of %s", tt.pos)
		assert.Equal(t, tt.row, row, "row of %s", tt.pos)
	}
}

func TestGrid_ReverseLookupStaysConsistent(t *testing.T) {
	mapSize := geometry.Vector2D{X: 100, Y: 100}
	pts := randomPoints(11, 80, mapSize.X, mapSize.Y)
	g, err := BuildGrid(4, mapSize, pts)
	require.NoError(t, err)
	live := make(map[Handle]geometry.Vector2D, len(pts))
	for _, p := range pts {
		live[p.Handle] = p.Pos
	}

	rng := rand.New(rand.NewPCG(8, 9))
	for step := 0; step < 400; step++ {
		h := Handle(rng.IntN(len(pts)))
		switch rng.IntN(3) {
		case 0:
			_, present := live[h]
			assert.Equal(t, present, g.Remove(h))
			delete(live, h)
		case 1:
			pos := geometry.Vector2D{X: rng.Float64() * 100, Y: rng.Float64() * 100}
			g.Update(pos, h)
			live[h] = pos
		default:
			pos := geometry.Vector2D{X: rng.Float64() * 100, Y: rng.Float64() * 100}
			g.Insert(pos, h) // re-insert moves, never duplicates
			live[h] = pos
		}
	}

	require.Equal(t, len(live), g.Len())
	seen := make(map[Handle]int)
	for _, bucket := range g.cells {
		for _, h := range bucket {
			seen[h]++
		}
	}
	assert.Len(t, seen, len(live))
	for h, pos := range live {
		assert.Equal(t, 1, seen[h], "handle %d must own exactly one bucket entry", h)
		got, ok := g.Position(h)
		assert.True(t, ok)
		assert.Equal(t, pos, got)
	}

	all := g.QueryRadius(geometry.Vector2D{X: 50, Y: 50}, 200, NoHandle)
	assert.Len(t, all, len(live))
}

func TestPartition_SelectsBackendByDensity(t *testing.T) {
	mapSize := geometry.Vector2D{X: 200, Y: 200}
	center := geometry.Vector2D{X: 100, Y: 100}
	p := NewPartition(5, 10)
	assert.Equal(t, BackendNone, p.Backend())
	assert.Empty(t, p.QueryRadius(center, 50, NoHandle))

	sparse := randomPoints(21, 5, mapSize.X, mapSize.Y)
	require.NoError(t, p.Build(sparse, mapSize))
	assert.Equal(t, BackendLinear, p.Backend())

	oracleGrid, err := BuildGrid(5, mapSize, sparse)
	require.NoError(t, err)
	assert.ElementsMatch(t, oracleGrid.QueryRadius(center, 80, NoHandle), p.QueryRadius(center, 80, NoHandle))

	dense := randomPoints(22, 50, mapSize.X, mapSize.Y)
	require.NoError(t, p.Build(dense, mapSize))
	assert.Equal(t, BackendGrid, p.Backend())
	assert.Equal(t, 50, p.Len())

	// the choice is re-evaluated, not cached
	require.NoError(t, p.Build(sparse, mapSize))
	assert.Equal(t, BackendLinear, p.Backend())
	assert.Equal(t, "linear", p.Backend().String())
}

func TestPartition_BuildFailsOnBadMap(t *testing.T) {
	p := NewPartition(5, 1)
	err := p.Build(randomPoints(1, 3, 10, 10), geometry.Vector2D{})
	assert.ErrorIs(t, err, ErrInvalidGeometry)
	assert.Equal(t, BackendNone, p.Backend())
}

func TestKDTree_AroundDropsQueryingPoint(t *testing.T) {
	pts := []Point{
		{Pos: geometry.Vector2D{X: 0, Y: 0}, Handle: 0},
		{Pos: geometry.Vector2D{X: 1, Y: 0}, Handle: 1},
		{Pos: geometry.Vector2D{X: 0, Y: 3}, Handle: 2},
		{Pos: geometry.Vector2D{X: 9, Y: 9}, Handle: 3},
	}
	tree := BuildKDTree(pts)
	assert.Equal(t, 4, tree.Len())
	assert.ElementsMatch(t, []Handle{1, 2}, tree.Around(geometry.Vector2D{}, 3))
	assert.ElementsMatch(t, []Handle{0, 1, 2}, tree.QueryRadius(geometry.Vector2D{}, 3, NoHandle))

	empty := BuildKDTree(nil)
	assert.Empty(t, empty.QueryRadius(geometry.Vector2D{}, 10, NoHandle))
	assert.Empty(t, empty.KNearest(geometry.Vector2D{}, 2, NoHandle))
}

func TestKDTree_DuplicateCoordinates(t *testing.T) {
	// many points on the same split line exercise the <= pruning rule
	var pts []Point
	for i := 0; i < 40; i++ {
		pts = append(pts, Point{Pos: geometry.Vector2D{X: 5, Y: float64(i % 4)}, Handle: Handle(i)})
	}
	tree := BuildKDTree(pts)
	oracle := NewLinear(pts)
	for _, c := range []geometry.Vector2D{{X: 5, Y: 0}, {X: 4, Y: 2}, {X: 6.5, Y: 3}} {
		assert.ElementsMatch(t, oracle.QueryRadius(c, 1.5, NoHandle), tree.QueryRadius(c, 1.5, NoHandle))
		assert.Equal(t, oracle.KNearest(c, 9, 3), tree.KNearest(c, 9, 3))
	}
}

func BenchmarkGrid_Build(b *testing.B) {
	pts := randomPoints(1, 1000, 1000, 1000)
	mapSize := geometry.Vector2D{X: 1000, Y: 1000}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = BuildGrid(25, mapSize, pts)
	}
}

func BenchmarkGrid_QueryRadius(b *testing.B) {
	pts := randomPoints(1, 1000, 1000, 1000)
	g, _ := BuildGrid(25, geometry.Vector2D{X: 1000, Y: 1000}, pts)
	center := geometry.Vector2D{X: 500, Y: 500}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.QueryRadius(center, 50, NoHandle)
	}
}

func BenchmarkKDTree_Build(b *testing.B) {
	pts := randomPoints(1, 1000, 1000, 1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		BuildKDTree(pts)
	}
}

func BenchmarkKDTree_QueryRadius(b *testing.B) {
	tree := BuildKDTree(randomPoints(1, 1000, 1000, 1000))
	center := geometry.Vector2D{X: 500, Y: 500}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tree.QueryRadius(center, 50, NoHandle)
	}
}
