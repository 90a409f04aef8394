package behavior

import (
	"math"

	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/swarm"
)

// PIDController is a scalar proportional-integral-derivative loop.
// Each instance belongs to exactly one agent and is not safe for
// concurrent use.
type PIDController struct {
	gains swarm.PIDConfig

	integral  float64
	lastError float64
	primed    bool // a step has run since the last reset
}

// NewPIDController returns a controller with zeroed state.
func NewPIDController(gains swarm.PIDConfig) *PIDController {
	return &PIDController{gains: gains}
}

// Update returns the command for one step toward target.
//
// The integral is clamped to MaxIntegral before Ki is applied. The
// derivative is (error - lastError)/dt and is skipped when dt <= 0. After a
// Reset lastError is zero, so the first derivative is error/dt unless
// SoftStart is set, in which case it is taken from -currentVel. The result
// is clamped to MaxOutput.
func (p *PIDController) Update(current, target, currentVel, dt float64) float64 {
	e := saturate(target - current)
	out := saturate(p.gains.Kp * e)

	if dt > 0 {
		p.integral = clampAbs(p.integral+saturate(e*dt), p.gains.MaxIntegral)
	}
	out += saturate(p.gains.Ki * p.integral)

	if dt > 0 {
		rate := saturate((e - p.lastError) / dt)
		if p.gains.SoftStart && !p.primed {
			rate = -saturate(currentVel)
		}
		out += saturate(p.gains.Kd * rate)
	}
	p.lastError = e
	p.primed = true

	return clampAbs(out, p.gains.MaxOutput)
}

// Reset zeroes the integrator and forgets the last error.
func (p *PIDController) Reset() {
	p.integral = 0
	p.lastError = 0
	p.primed = false
}

// saturate maps NaN to zero and caps the magnitude at
// geometry.MaxMagnitude, so a few saturated terms always add up to a
// finite value.
func saturate(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-geometry.MaxMagnitude, math.Min(geometry.MaxMagnitude, v))
}

func clampAbs(v, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return math.Max(-limit, math.Min(limit, v))
}

// PID2D runs the same loop on a position error vector. Integral and output
// clamps act on magnitude, so the direction is preserved.
type PID2D struct {
	gains swarm.PIDConfig

	integral  geometry.Vector2D
	lastError geometry.Vector2D
	primed    bool
}

// NewPID2D returns a controller with zeroed state.
func NewPID2D(gains swarm.PIDConfig) *PID2D {
	return &PID2D{gains: gains}
}

// Update returns the velocity command for one step from current toward
// target. See PIDController.Update for the per-term rules.
func (p *PID2D) Update(current, target, currentVel geometry.Vector2D, dt float64) geometry.Vector2D {
	e := target.Sub(current).Saturate()
	out := e.SaturatingMul(p.gains.Kp)

	if dt > 0 {
		p.integral = p.integral.Add(e.SaturatingMul(dt)).Saturate().ClampLen(p.gains.MaxIntegral)
	}
	out = out.Add(p.integral.SaturatingMul(p.gains.Ki)).Saturate()

	if dt > 0 {
		rate := e.Sub(p.lastError).SaturatingMul(1 / dt)
		if p.gains.SoftStart && !p.primed {
			rate = currentVel.Saturate().Mul(-1)
		}
		out = out.Add(rate.SaturatingMul(p.gains.Kd)).Saturate()
	}
	p.lastError = e
	p.primed = true

	return out.ClampLen(p.gains.MaxOutput)
}

// Reset zeroes the integrator and forgets the last error. Call it whenever
// the agent is given a new target.
func (p *PID2D) Reset() {
	p.integral = geometry.Zero
	p.lastError = geometry.Zero
	p.primed = false
}
