// Package behavior implements the per-agent steering rules: potential field
// navigation, Boids flocking and the PID loop that smooths the result.
package behavior

import (
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/swarm"
)

// Kinematic is the position and velocity of one agent.
type Kinematic struct {
	Position geometry.Vector2D
	Velocity geometry.Vector2D
}

// Boids is Craig Reynolds' flocking model (1986): separation, alignment and
// cohesion, each with its own scope, added on top of the current velocity.
// https://en.wikipedia.org/wiki/Boids
type Boids struct {
	separationDistance float64
	alignmentRadius    float64
	cohesionRadius     float64

	separationWeight float64
	alignmentWeight  float64
	cohesionWeight   float64

	alignmentScope swarm.AlignmentScope
	maxSpeed       float64
}

// NewBoids copies the relevant tunables out of cfg.
func NewBoids(cfg swarm.Config) *Boids {
	return &Boids{
		separationDistance: cfg.SeparationDistance,
		alignmentRadius:    cfg.AlignmentRadius,
		cohesionRadius:     cfg.CohesionRadius,
		separationWeight:   cfg.SeparationWeight,
		alignmentWeight:    cfg.AlignmentWeight,
		cohesionWeight:     cfg.CohesionWeight,
		alignmentScope:     cfg.AlignmentScope,
		maxSpeed:           cfg.MaxSpeed,
	}
}

// Separation averages (self-n)/d weighted by 1/d over neighbors closer than
// the separation distance.
func (b *Boids) Separation(self Kinematic, neighbors []Kinematic) geometry.Vector2D {
	var acc geometry.Vector2D
	count := 0
	for _, n := range neighbors {
		away := self.Position.Sub(n.Position)
		d := away.Len()
		if d == 0 || d >= b.separationDistance {
			continue
		}
		acc = acc.Add(away.SaturatingMul(1 / (d * d))).Saturate()
		count++
	}
	if count == 0 {
		return geometry.Zero
	}
	return acc.Mul(1 / float64(count))
}

// Alignment returns the average qualifying neighbor velocity minus our own.
//
// With AlignmentBySpeed a neighbor qualifies when its own speed is below
// AlignmentRadius, regardless of where it is. That differs from the
// positional scoping of the other two rules and is kept for compatibility;
// AlignmentByDistance scopes by position instead.
func (b *Boids) Alignment(self Kinematic, neighbors []Kinematic) geometry.Vector2D {
	var sum geometry.Vector2D
	count := 0
	for _, n := range neighbors {
		d := self.Position.DistanceTo(n.Position)
		if d == 0 {
			continue
		}
		if b.alignmentScope == swarm.AlignmentByDistance {
			if d >= b.alignmentRadius {
				continue
			}
		} else if n.Velocity.Len() >= b.alignmentRadius {
			continue
		}
		sum = sum.Add(n.Velocity.Saturate()).Saturate()
		count++
	}
	if count == 0 {
		return geometry.Zero
	}
	return sum.Mul(1 / float64(count)).Sub(self.Velocity).Saturate()
}

// Cohesion returns the offset from our position to the average position of
// neighbors closer than the cohesion radius.
func (b *Boids) Cohesion(self Kinematic, neighbors []Kinematic) geometry.Vector2D {
	var sum geometry.Vector2D
	count := 0
	for _, n := range neighbors {
		d := self.Position.DistanceTo(n.Position)
		if d == 0 || d >= b.cohesionRadius {
			continue
		}
		sum = sum.Add(n.Position.Saturate()).Saturate()
		count++
	}
	if count == 0 {
		return geometry.Zero
	}
	return sum.Mul(1 / float64(count)).Sub(self.Position).Saturate()
}

// DesiredVelocity is current velocity plus the three weighted rules, capped
// at MaxSpeed. With no qualifying neighbors it is the current velocity.
// Each weighted term saturates instead of overflowing, so a huge weight
// still steers along its rule.
func (b *Boids) DesiredVelocity(self Kinematic, neighbors []Kinematic) geometry.Vector2D {
	v := self.Velocity.Saturate()
	v = v.Add(b.Separation(self, neighbors).SaturatingMul(b.separationWeight)).Saturate()
	v = v.Add(b.Alignment(self, neighbors).SaturatingMul(b.alignmentWeight)).Saturate()
	v = v.Add(b.Cohesion(self, neighbors).SaturatingMul(b.cohesionWeight)).Saturate()
	return v.ClampLen(b.maxSpeed)
}
