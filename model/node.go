package model

import "math"

// NodeID is the stable identifier of a node within a topology. The access
// point is conventionally 0 and stations are numbered 1..N, which is also
// the flow ID used in statistics.
type NodeID int

// NodeKind distinguishes the role a node plays in the BSS.
type NodeKind int

const (
	NodeKindUnknown NodeKind = iota
	NodeKindAccessPoint
	NodeKindStation
)

func (k NodeKind) String() string {
	switch k {
	case NodeKindAccessPoint:
		return "ap"
	case NodeKindStation:
		return "station"
	default:
		return "unknown"
	}
}

// Position is a point in 3D space, in the same distance unit as the
// propagation range (metres in the default scenario).
type Position struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// DistanceTo returns the straight-line distance between two points.
func (p Position) DistanceTo(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	dz := p.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// NodeDefinition describes a node before it is instantiated in a
// simulation. Positions are fixed for the life of the node.
type NodeDefinition struct {
	ID       NodeID
	Name     string
	Kind     NodeKind
	Position Position
}
