package micro

import (
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/swarm"
)

type smoothState struct {
	pid    *behavior.PID2D
	target geometry.Vector2D
}

// Smoother owns one PID2D per targeted agent and turns the raw commands of
// a tick into damped ones. It has a single writer: use one Smoother per
// caller and never call Apply concurrently.
type Smoother struct {
	gains     swarm.PIDConfig
	maxSpeed  float64
	tolerance float64
	states    map[string]*smoothState
}

// NewSmoother returns an empty smoother using the PID gains of cfg.
func NewSmoother(cfg swarm.Config) *Smoother {
	return &Smoother{
		gains:     cfg.PID,
		maxSpeed:  cfg.MaxSpeed,
		tolerance: cfg.RetargetTolerance,
		states:    make(map[string]*smoothState),
	}
}

// Apply returns a copy of commands where each targeted command has its
// velocity replaced by PID(position -> target) plus its repulsion, capped at
// MaxSpeed. A controller is reset when its target moved more than the
// retarget tolerance since the previous tick. Agents whose command has no
// target, and agents absent from frame, lose their controller. A nil frame
// returns an unchanged copy and keeps every controller.
func (s *Smoother) Apply(frame *Frame, commands []Command) []Command {
	if frame == nil {
		return append([]Command(nil), commands...)
	}
	samples := make(map[string]swarm.AgentSample, len(frame.Agents))
	for _, a := range frame.Agents {
		clean, _ := a.Sanitized()
		samples[a.ID] = clean
	}
	for id := range s.states {
		if _, ok := samples[id]; !ok {
			delete(s.states, id)
		}
	}

	out := make([]Command, len(commands))
	for i, cmd := range commands {
		out[i] = cmd
		self, ok := samples[cmd.AgentID]
		if !ok || !cmd.HasTarget {
			s.Forget(cmd.AgentID)
			continue
		}
		st := s.states[cmd.AgentID]
		switch {
		case st == nil:
			st = &smoothState{pid: behavior.NewPID2D(s.gains)}
			s.states[cmd.AgentID] = st
		case st.target.DistanceTo(cmd.Target) > s.tolerance:
			st.pid.Reset()
		}
		st.target = cmd.Target

		v := st.pid.Update(self.Position, cmd.Target, self.Velocity, frame.DT)
		out[i].Velocity = v.Add(cmd.Repulsion.Saturate()).Saturate().ClampLen(s.maxSpeed)
	}
	return out
}

// Forget drops the controller of one agent, for instance when it dies.
func (s *Smoother) Forget(id string) {
	delete(s.states, id)
}

// Len is the number of agents with a live controller.
func (s *Smoother) Len() int {
	return len(s.states)
}
