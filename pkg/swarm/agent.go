// Package swarm holds the value types shared across the engine: the
// immutable controller configuration and the per-tick agent samples.
package swarm

import (
	"math"

	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
)

// AgentSample is one agent as seen in a tick snapshot. Samples are rebuilt
// from the caller's state every tick; nothing in this module keeps them.
type AgentSample struct {
	ID       string            `json:"id" msgpack:"id"`
	Position geometry.Vector2D `json:"position" msgpack:"position"`
	Velocity geometry.Vector2D `json:"velocity" msgpack:"velocity"`
	Radius   float64           `json:"radius,omitempty" msgpack:"radius,omitempty"` // 0 when unknown
}

// DistanceTo gives the cartesian distance between two samples.
func (a AgentSample) DistanceTo(other AgentSample) float64 {
	return a.Position.DistanceTo(other.Position)
}

// Sanitized replaces non-finite position or velocity components with zero
// and reports whether anything had to change.
func (a AgentSample) Sanitized() (AgentSample, bool) {
	changed := false
	if !a.Position.IsFinite() {
		a.Position = geometry.Zero
		changed = true
	}
	if !a.Velocity.IsFinite() {
		a.Velocity = geometry.Zero
		changed = true
	}
	if a.Radius < 0 || math.IsNaN(a.Radius) {
		a.Radius = 0
		changed = true
	}
	return a, changed
}

// Positions extracts the positions of samples in order.
func Positions(samples []AgentSample) []geometry.Vector2D {
	out := make([]geometry.Vector2D, len(samples))
	for i, s := range samples {
		out[i] = s.Position
	}
	return out
}
