package micro

import (
	"fmt"

	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/spatial"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/swarm"
)

// World is the frozen view of one frame. It is built once per tick by
// Freeze and never modified afterwards, so any number of goroutines may
// query it at the same time.
type World struct {
	tick    uint64
	dt      float64
	mapSize geometry.Vector2D

	// controlled agents first, then uncontrolled neighbors; the index in
	// this slice is the spatial handle
	bodies     []swarm.AgentSample
	controlled int
	obstacles  []swarm.AgentSample

	bodyIndex     *spatial.Partition
	obstacleIndex *spatial.Partition

	enemies   []geometry.Vector2D
	clusters  []Cluster
	sanitized int
}

// Freeze copies and sanitizes the samples of frame, indexes friendly agents
// and obstacles, and clusters the enemies. Non-finite samples are zeroed
// and counted rather than rejected. A frame with a non-positive map size or
// with two controlled agents sharing an ID fails with ErrInvalidFrame.
func (c *MicroController) Freeze(frame *Frame) (*World, error) {
	if frame == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrInvalidFrame)
	}
	if !(frame.MapSize.X > 0) || !(frame.MapSize.Y > 0) || !frame.MapSize.IsFinite() {
		return nil, fmt.Errorf("%w: tick %d: map size %s", ErrInvalidFrame, frame.Tick, frame.MapSize)
	}

	w := &World{
		tick:       frame.Tick,
		dt:         frame.DT,
		mapSize:    frame.MapSize,
		bodies:     make([]swarm.AgentSample, 0, len(frame.Agents)+len(frame.Neighbors)),
		controlled: len(frame.Agents),
	}

	ids := make(map[string]struct{}, len(frame.Agents))
	for _, a := range frame.Agents {
		if _, dup := ids[a.ID]; dup {
			return nil, fmt.Errorf("%w: tick %d: duplicate agent id %q", ErrInvalidFrame, frame.Tick, a.ID)
		}
		ids[a.ID] = struct{}{}
	}

	w.bodies = w.appendSanitized(w.bodies, frame.Agents)
	w.bodies = w.appendSanitized(w.bodies, frame.Neighbors)
	w.obstacles = w.appendSanitized(nil, frame.Obstacles)
	enemies := w.appendSanitized(nil, frame.Enemies)
	w.enemies = swarm.Positions(enemies)
	if w.sanitized > 0 {
		c.logger.Warnf("tick %d: zeroed %d non-finite samples", frame.Tick, w.sanitized)
	}

	w.bodyIndex = spatial.NewPartition(c.cfg.CellSize, c.cfg.DensityThreshold)
	if err := w.bodyIndex.Build(points(w.bodies), frame.MapSize); err != nil {
		return nil, fmt.Errorf("freeze tick %d agents: %w", frame.Tick, err)
	}
	w.obstacleIndex = spatial.NewPartition(c.cfg.CellSize, c.cfg.DensityThreshold)
	if err := w.obstacleIndex.Build(points(w.obstacles), frame.MapSize); err != nil {
		return nil, fmt.Errorf("freeze tick %d obstacles: %w", frame.Tick, err)
	}
	w.clusters = clusterTargets(w.enemies, c.cfg.ClusterRadius, c.cfg.DensityThreshold)

	c.logger.Debugf("tick %d frozen: %d bodies on %s, %d obstacles on %s, %d enemies in %d clusters",
		frame.Tick, len(w.bodies), w.bodyIndex.Backend(), len(w.obstacles), w.obstacleIndex.Backend(),
		len(w.enemies), len(w.clusters))
	return w, nil
}

func (w *World) appendSanitized(dst, src []swarm.AgentSample) []swarm.AgentSample {
	for _, s := range src {
		clean, changed := s.Sanitized()
		if changed {
			w.sanitized++
		}
		dst = append(dst, clean)
	}
	return dst
}

func points(samples []swarm.AgentSample) []spatial.Point {
	pts := make([]spatial.Point, len(samples))
	for i, s := range samples {
		pts[i] = spatial.Point{Pos: s.Position, Handle: spatial.Handle(i)}
	}
	return pts
}

// Tick is the frame tick this world was frozen from.
func (w *World) Tick() uint64 { return w.tick }

// DT is the frame time step.
func (w *World) DT() float64 { return w.dt }

// MapSize is the frame map size.
func (w *World) MapSize() geometry.Vector2D { return w.mapSize }

// Agents returns the sanitized controlled agents. The slice is shared; do
// not modify it.
func (w *World) Agents() []swarm.AgentSample { return w.bodies[:w.controlled] }

// Clusters returns the enemy clusters. The slice is shared; do not modify it.
func (w *World) Clusters() []Cluster { return w.clusters }

// Sanitized counts the samples that had non-finite values zeroed.
func (w *World) Sanitized() int { return w.sanitized }

// Backend reports the index chosen for friendly agents.
func (w *World) Backend() spatial.Backend { return w.bodyIndex.Backend() }

// NearbyAgents returns the friendly agents, controlled or not, within r of
// controlled agent i, excluding i itself.
func (w *World) NearbyAgents(i int, r float64) []swarm.AgentSample {
	if i < 0 || i >= w.controlled {
		return nil
	}
	handles := w.bodyIndex.QueryRadius(w.bodies[i].Position, r, spatial.Handle(i))
	out := make([]swarm.AgentSample, len(handles))
	for j, h := range handles {
		out[j] = w.bodies[h]
	}
	return out
}

// NearestAgent returns the closest friendly agent to controlled agent i.
func (w *World) NearestAgent(i int) (swarm.AgentSample, bool) {
	if i < 0 || i >= w.controlled {
		return swarm.AgentSample{}, false
	}
	h, ok := w.bodyIndex.NearestNeighbor(w.bodies[i].Position, spatial.Handle(i))
	if !ok {
		return swarm.AgentSample{}, false
	}
	return w.bodies[h], true
}

// ObstaclesNear returns the positions of obstacles within r of pos.
func (w *World) ObstaclesNear(pos geometry.Vector2D, r float64) []geometry.Vector2D {
	handles := w.obstacleIndex.QueryRadius(pos, r, spatial.NoHandle)
	out := make([]geometry.Vector2D, len(handles))
	for j, h := range handles {
		out[j] = w.obstacles[h].Position
	}
	return out
}
