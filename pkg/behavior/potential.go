package behavior

import (
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/swarm"
)

// PotentialField turns one goal plus nearby agents and obstacles into a
// single bounded force.
//
// Attraction has a constant magnitude whatever the distance to the goal.
// Slowing down on arrival is left to the PID.
type PotentialField struct {
	strength   float64
	repulsion  float64
	separation float64
	epsilon    float64
	maxSpeed   float64
}

// NewPotentialField copies the relevant tunables out of cfg.
func NewPotentialField(cfg swarm.Config) *PotentialField {
	return &PotentialField{
		strength:   cfg.PotentialFieldStrength,
		repulsion:  cfg.ObstacleRepulsion,
		separation: cfg.SeparationDistance,
		epsilon:    cfg.RepulsionEpsilon,
		maxSpeed:   cfg.MaxSpeed,
	}
}

// Attraction points at target with magnitude strength, or is zero when pos
// is already on the target.
func (pf *PotentialField) Attraction(pos, target geometry.Vector2D) geometry.Vector2D {
	return target.Sub(pos).Saturate().Normalize().SaturatingMul(pf.strength)
}

// Repulsion sums repulsion/(d+eps) pushes away from every neighbor closer
// than the separation distance and every obstacle closer than twice that.
// Contributions are summed, not averaged. Coincident sources are skipped.
// A sum too large for float64 saturates along its direction.
func (pf *PotentialField) Repulsion(pos geometry.Vector2D, neighbors, obstacles []geometry.Vector2D) geometry.Vector2D {
	total := pf.push(pos, neighbors, pf.separation)
	return total.Add(pf.push(pos, obstacles, 2*pf.separation)).Saturate()
}

func (pf *PotentialField) push(pos geometry.Vector2D, sources []geometry.Vector2D, reach float64) geometry.Vector2D {
	var acc geometry.Vector2D
	for _, src := range sources {
		away := pos.Sub(src)
		d := away.Len()
		if d == 0 || d >= reach {
			continue
		}
		acc = acc.Add(away.SaturatingMul(pf.repulsion / (d + pf.epsilon) / d)).Saturate()
	}
	return acc
}

// Force is attraction plus repulsion, rescaled so it never exceeds MaxSpeed.
func (pf *PotentialField) Force(pos, target geometry.Vector2D, neighbors, obstacles []geometry.Vector2D) geometry.Vector2D {
	f := pf.Attraction(pos, target).Add(pf.Repulsion(pos, neighbors, obstacles))
	return f.Saturate().ClampLen(pf.maxSpeed)
}

// MaxSpeed is the cap applied by Force.
func (pf *PotentialField) MaxSpeed() float64 {
	return pf.maxSpeed
}
