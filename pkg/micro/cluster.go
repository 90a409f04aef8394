package micro

import (
	"math"
	"slices"

	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/spatial"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/swarm"
)

// NoCluster marks an agent with no cluster to engage.
const NoCluster = -1

// maxClusterCells bounds the grid built for sparse, widely spread targets.
const maxClusterCells = 1 << 20

// Cluster is a group of target points chained together by gaps no larger
// than the clustering radius.
type Cluster struct {
	Centroid geometry.Vector2D `json:"centroid" msgpack:"centroid"`
	Members  []int             `json:"members" msgpack:"members"` // indices into the clustered points, ascending
}

// ClusterTargets groups points by single linkage: two points share a
// cluster when a chain of points, each within radius of the next, joins
// them. Clusters are ordered by their lowest member index. Non-finite
// points belong to no cluster. A +Inf radius joins every finite point into
// one cluster; a negative or NaN radius only joins coincident points.
func ClusterTargets(points []geometry.Vector2D, radius float64) []Cluster {
	return clusterTargets(points, radius, swarm.DefaultConfig().DensityThreshold)
}

func clusterTargets(points []geometry.Vector2D, radius float64, densityThreshold int) []Cluster {
	if len(points) == 0 {
		return nil
	}
	if !(radius >= 0) {
		radius = 0
	}

	// shift into the positive quadrant so the grid covers every point
	lo := geometry.Vector2D{X: math.Inf(1), Y: math.Inf(1)}
	hi := geometry.Vector2D{X: math.Inf(-1), Y: math.Inf(-1)}
	indexed := make([]spatial.Point, 0, len(points))
	for i, p := range points {
		if !p.IsFinite() {
			continue
		}
		lo = geometry.Vector2D{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y)}
		hi = geometry.Vector2D{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y)}
		indexed = append(indexed, spatial.Point{Handle: spatial.Handle(i)})
	}
	if len(indexed) == 0 {
		return nil
	}
	if math.IsInf(radius, 1) {
		members := make([]int, len(indexed))
		for j, p := range indexed {
			members[j] = int(p.Handle)
		}
		return []Cluster{{Centroid: centroidOf(points, members), Members: members}}
	}
	for j := range indexed {
		indexed[j].Pos = points[indexed[j].Handle].Sub(lo)
	}

	cellSize := radius
	if cellSize == 0 {
		cellSize = 1
	}
	extent := hi.Sub(lo)
	mapSize := geometry.Vector2D{X: extent.X + cellSize, Y: extent.Y + cellSize}
	var index spatial.Index = spatial.NewLinear(indexed)
	if math.Ceil(mapSize.X/cellSize)*math.Ceil(mapSize.Y/cellSize) <= maxClusterCells {
		partition := spatial.NewPartition(cellSize, densityThreshold)
		// a finite cell size and extent always build; keep the scan otherwise
		if err := partition.Build(indexed, mapSize); err == nil {
			index = partition
		}
	}

	seen := make([]bool, len(points))
	var clusters []Cluster
	for _, start := range indexed {
		if seen[start.Handle] {
			continue
		}
		seen[start.Handle] = true
		members := []int{int(start.Handle)}
		for head := 0; head < len(members); head++ {
			at := points[members[head]].Sub(lo)
			for _, h := range index.QueryRadius(at, radius, spatial.Handle(members[head])) {
				if !seen[h] {
					seen[h] = true
					members = append(members, int(h))
				}
			}
		}
		slices.Sort(members)
		clusters = append(clusters, Cluster{Centroid: centroidOf(points, members), Members: members})
	}
	return clusters
}

func centroidOf(points []geometry.Vector2D, members []int) geometry.Vector2D {
	var sum geometry.Vector2D
	for _, m := range members {
		sum = sum.Add(points[m])
	}
	return sum.Mul(1 / float64(len(members)))
}

// AssignClusters gives each agent the index of the cluster whose centroid
// is closest, ties going to the lower index. It is a greedy O(N*M) pass:
// agents do not spread across clusters and nothing is globally optimal.
// With no clusters every agent gets NoCluster.
func AssignClusters(agents []geometry.Vector2D, clusters []Cluster) []int {
	out := make([]int, len(agents))
	for i, a := range agents {
		out[i] = NoCluster
		best := math.Inf(1)
		for c, cl := range clusters {
			if d := a.DistanceSquaredTo(cl.Centroid); d < best {
				best = d
				out[i] = c
			}
		}
	}
	return out
}
