// Package micro is the per-tick façade over the spatial indexes and the
// steering behaviors. A MicroController holds no per-agent state: every
// call to Compute freezes a fresh World from the frame, plans formation
// slots and cluster targets, then steers every controlled agent in
// parallel against that frozen view. Per-agent PID state lives in a
// caller-owned Smoother.
package micro

import (
	"errors"
	"fmt"
	"runtime"

	golog "github.com/tochemey/goakt/v3/log"
	"golang.org/x/sync/errgroup"

	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/swarm"
)

var (
	// ErrInvalidFrame is returned when a frame cannot be frozen.
	ErrInvalidFrame = errors.New("invalid frame")
	// ErrUnknownMode is returned for an order whose mode is not recognized.
	ErrUnknownMode = errors.New("unknown order mode")
)

// Mode selects how an agent is steered.
type Mode string

const (
	ModeHold      Mode = "hold"      // stay put, only avoid neighbors and obstacles
	ModeSeek      Mode = "seek"      // potential field toward Order.Goal
	ModeFlock     Mode = "flock"     // boids with obstacle avoidance
	ModeFormation Mode = "formation" // potential field toward the assigned slot of Order.Group
	ModeEngage    Mode = "engage"    // potential field toward the nearest enemy cluster
)

// Order is the per-agent instruction supplied by the caller. Agents with no
// order hold.
type Order struct {
	Mode  Mode              `json:"mode" msgpack:"mode"`
	Goal  geometry.Vector2D `json:"goal,omitempty" msgpack:"goal,omitempty"`
	Group string            `json:"group,omitempty" msgpack:"group,omitempty"`
}

// Frame is the caller's snapshot for one tick.
type Frame struct {
	Tick    uint64            `json:"tick" msgpack:"tick"`
	DT      float64           `json:"dt" msgpack:"dt"`
	MapSize geometry.Vector2D `json:"mapSize" msgpack:"mapSize"`

	Agents    []swarm.AgentSample `json:"agents" msgpack:"agents"`                           // controlled this tick
	Neighbors []swarm.AgentSample `json:"neighbors,omitempty" msgpack:"neighbors,omitempty"` // friendly but not controlled
	Obstacles []swarm.AgentSample `json:"obstacles,omitempty" msgpack:"obstacles,omitempty"`
	Enemies   []swarm.AgentSample `json:"enemies,omitempty" msgpack:"enemies,omitempty"`

	Orders     map[string]Order         `json:"orders,omitempty" msgpack:"orders,omitempty"`         // by agent ID
	Formations map[string]FormationSpec `json:"formations,omitempty" msgpack:"formations,omitempty"` // by group
}

// Command is the output for one controlled agent.
type Command struct {
	AgentID   string            `json:"agentId" msgpack:"agentId"`
	Velocity  geometry.Vector2D `json:"velocity" msgpack:"velocity"`
	Repulsion geometry.Vector2D `json:"repulsion" msgpack:"repulsion"`
	Target    geometry.Vector2D `json:"target" msgpack:"target"`
	HasTarget bool              `json:"hasTarget" msgpack:"hasTarget"`
	Slot      int               `json:"slot" msgpack:"slot"`       // NoSlot unless in formation
	Cluster   int               `json:"cluster" msgpack:"cluster"` // NoCluster unless engaging
}

// MicroController computes one Command per controlled agent per tick.
// Its configuration is fixed at construction and it is safe for
// concurrent use.
type MicroController struct {
	cfg     swarm.Config
	field   *behavior.PotentialField
	boids   *behavior.Boids
	logger  golog.Logger
	workers int
}

// Option configures a MicroController.
type Option func(*MicroController)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger golog.Logger) Option {
	return func(c *MicroController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithWorkers bounds the number of agents steered concurrently.
// Values below one are ignored.
func WithWorkers(n int) Option {
	return func(c *MicroController) {
		if n > 0 {
			c.workers = n
		}
	}
}

// New validates cfg and returns a controller. An invalid configuration
// fails with an error wrapping swarm.ErrInvalidConfig.
func New(cfg swarm.Config, opts ...Option) (*MicroController, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &MicroController{
		cfg:     cfg,
		field:   behavior.NewPotentialField(cfg),
		boids:   behavior.NewBoids(cfg),
		logger:  golog.DiscardLogger,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns a copy of the controller configuration.
func (c *MicroController) Config() swarm.Config {
	return c.cfg
}

// directive is what planning decided for one agent before steering.
type directive struct {
	mode      Mode
	target    geometry.Vector2D
	hasTarget bool
	slot      int
	cluster   int
}

// Compute freezes frame and returns one command per agent in frame.Agents,
// in the same order. Apart from formation slots, which are handed out in
// agent order, the command for an agent does not depend on the order of
// the other agents.
func (c *MicroController) Compute(frame *Frame) ([]Command, error) {
	w, err := c.Freeze(frame)
	if err != nil {
		return nil, err
	}
	plan := c.plan(frame, w)

	commands := make([]Command, len(plan))
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i := range plan {
		g.Go(func() error {
			cmd, err := c.steer(w, i, plan[i])
			if err != nil {
				return err
			}
			commands[i] = cmd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute tick %d: %w", frame.Tick, err)
	}
	c.logger.Debugf("tick %d: %d commands, %d agents indexed (%s), %d enemy clusters",
		w.tick, len(commands), w.bodyIndex.Len(), w.bodyIndex.Backend(), len(w.clusters))
	return commands, nil
}

// plan resolves orders into targets. It runs before the parallel phase
// because slot and cluster assignment look at the whole group.
func (c *MicroController) plan(frame *Frame, w *World) []directive {
	plan := make([]directive, w.controlled)
	groups := make(map[string][]int)
	var groupOrder []string
	var engaging []int

	for i := range plan {
		order, ok := frame.Orders[w.bodies[i].ID]
		if !ok || order.Mode == "" {
			order.Mode = ModeHold
		}
		d := directive{mode: order.Mode, slot: NoSlot, cluster: NoCluster}
		switch order.Mode {
		case ModeSeek:
			d.target, d.hasTarget = order.Goal.Sanitize(), true
		case ModeFormation:
			if _, seen := groups[order.Group]; !seen {
				groupOrder = append(groupOrder, order.Group)
			}
			groups[order.Group] = append(groups[order.Group], i)
		case ModeEngage:
			engaging = append(engaging, i)
		}
		plan[i] = d
	}

	for _, group := range groupOrder {
		members := groups[group]
		spec, ok := frame.Formations[group]
		if !ok {
			c.logger.Warnf("tick %d: no formation for group %q, %d agents hold", w.tick, group, len(members))
			continue
		}
		if !(spec.Spacing > 0) {
			spec.Spacing = c.cfg.FormationSpacing
		}
		samples := make([]swarm.AgentSample, len(members))
		for j, i := range members {
			samples[j] = w.bodies[i]
		}
		for j, a := range AssignFormation(samples, spec) {
			if a.Slot == NoSlot {
				continue
			}
			d := &plan[members[j]]
			d.slot, d.target, d.hasTarget = a.Slot, a.Target, true
		}
	}

	if len(engaging) > 0 {
		positions := make([]geometry.Vector2D, len(engaging))
		for j, i := range engaging {
			positions[j] = w.bodies[i].Position
		}
		for j, cl := range AssignClusters(positions, w.clusters) {
			if cl == NoCluster {
				continue
			}
			d := &plan[engaging[j]]
			d.cluster, d.target, d.hasTarget = cl, w.clusters[cl].Centroid, true
		}
	}
	return plan
}

// steer computes the command for controlled agent i. It only reads w.
func (c *MicroController) steer(w *World, i int, d directive) (Command, error) {
	self := w.bodies[i]
	cmd := Command{AgentID: self.ID, Slot: d.slot, Cluster: d.cluster}

	nearby := w.NearbyAgents(i, c.cfg.NeighborRadius())
	nearPos := make([]geometry.Vector2D, len(nearby))
	for j, n := range nearby {
		nearPos[j] = n.Position
	}
	obstacles := w.ObstaclesNear(self.Position, 2*c.cfg.SeparationDistance)

	switch d.mode {
	case ModeHold, ModeSeek, ModeFormation, ModeEngage:
		cmd.Repulsion = c.field.Repulsion(self.Position, nearPos, obstacles)
		if d.hasTarget {
			cmd.Target, cmd.HasTarget = d.target, true
			cmd.Velocity = c.field.Force(self.Position, d.target, nearPos, obstacles)
		} else {
			cmd.Velocity = cmd.Repulsion
		}
	case ModeFlock:
		kin := make([]behavior.Kinematic, len(nearby))
		for j, n := range nearby {
			kin[j] = behavior.Kinematic{Position: n.Position, Velocity: n.Velocity}
		}
		cmd.Repulsion = c.field.Repulsion(self.Position, nil, obstacles)
		desired := c.boids.DesiredVelocity(behavior.Kinematic{Position: self.Position, Velocity: self.Velocity}, kin)
		cmd.Velocity = desired.Add(cmd.Repulsion)
	default:
		return Command{}, fmt.Errorf("agent %q: %w: %q", self.ID, ErrUnknownMode, d.mode)
	}

	cmd.Velocity = cmd.Velocity.Saturate().ClampLen(c.cfg.MaxSpeed)
	cmd.Repulsion = cmd.Repulsion.Saturate().ClampLen(c.cfg.MaxSpeed)
	return cmd, nil
}
