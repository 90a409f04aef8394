package micro

import (
	"math"

	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/swarm"
)

// FormationType identifies the shape of a group formation.
type FormationType string

const (
	FormationCircle FormationType = "circle" // ring around the center, slot 0 in front
	FormationLine   FormationType = "line"   // side by side, perpendicular to facing
	FormationWedge  FormationType = "wedge"  // V shape, slot 0 at the point
)

// FormationSpec describes where a group should stand.
type FormationSpec struct {
	Type   FormationType     `json:"type" msgpack:"type"`
	Center geometry.Vector2D `json:"center" msgpack:"center"`
	Facing geometry.Vector2D `json:"facing" msgpack:"facing"` // zero means +X
	// MemberCount is the number of slots. Zero means one per assigned agent.
	MemberCount int     `json:"memberCount,omitempty" msgpack:"memberCount,omitempty"`
	Spacing     float64 `json:"spacing,omitempty" msgpack:"spacing,omitempty"` // gap between neighboring slots
}

// SlotAssignment binds one agent to one formation slot.
type SlotAssignment struct {
	AgentID string
	Slot    int // NoSlot when the formation has fewer slots than agents
	Target  geometry.Vector2D
}

// NoSlot marks an agent that did not get a formation slot.
const NoSlot = -1

// frame returns the unit forward and right vectors of the formation.
// Right is forward rotated 90 degrees clockwise in screen coordinates.
func (s FormationSpec) frame() (fwd, right geometry.Vector2D) {
	fwd = s.Facing.Sanitize().Normalize()
	if fwd == geometry.Zero {
		fwd = geometry.Vector2D{X: 1, Y: 0}
	}
	return fwd, fwd.Perp()
}

func (s FormationSpec) spacing() float64 {
	if s.Spacing > 0 && !math.IsInf(s.Spacing, 0) {
		return s.Spacing
	}
	return 1
}

// FormationSlots returns the world positions of the MemberCount slots of
// spec. The result depends only on spec, so equal specs give equal slots.
func FormationSlots(spec FormationSpec) []geometry.Vector2D {
	n := max(spec.MemberCount, 0)
	slots := make([]geometry.Vector2D, n)
	if n == 0 {
		return slots
	}
	center := spec.Center.Sanitize()
	fwd, right := spec.frame()
	gap := spec.spacing()

	// local offsets are (forward, right) pairs
	local := func(f, r float64) geometry.Vector2D {
		return center.Add(fwd.Mul(f)).Add(right.Mul(r))
	}

	switch spec.Type {
	case FormationCircle:
		if n == 1 {
			slots[0] = center
			break
		}
		// neighboring slots sit one spacing apart along the chord
		radius := gap / (2 * math.Sin(math.Pi/float64(n)))
		for i := range slots {
			theta := 2 * math.Pi * float64(i) / float64(n)
			slots[i] = local(radius*math.Cos(theta), radius*math.Sin(theta))
		}

	case FormationLine:
		mid := float64(n-1) / 2
		for i := range slots {
			slots[i] = local(0, (float64(i)-mid)*gap)
		}

	case FormationWedge:
		slots[0] = center
		for i := 1; i < n; i++ {
			rank := float64((i + 1) / 2)
			side := rank * gap
			if i%2 == 1 {
				side = -side
			}
			slots[i] = local(-rank*gap, side)
		}

	default:
		for i := range slots {
			slots[i] = center
		}
	}
	return slots
}

// AssignFormation gives agent i slot i. The pairing follows the order of
// agents, not proximity, so reordering the input reorders the slots.
// A zero MemberCount is replaced by len(agents); agents beyond the slot
// count get NoSlot.
func AssignFormation(agents []swarm.AgentSample, spec FormationSpec) []SlotAssignment {
	if spec.MemberCount <= 0 {
		spec.MemberCount = len(agents)
	}
	slots := FormationSlots(spec)
	out := make([]SlotAssignment, len(agents))
	for i, a := range agents {
		out[i] = SlotAssignment{AgentID: a.ID, Slot: NoSlot}
		if i < len(slots) {
			out[i].Slot = i
			out[i].Target = slots[i]
		}
	}
	return out
}
