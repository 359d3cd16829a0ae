// Package pathfind computes waypoint routes over a scanned navigation
// mesh. It reads the model's surfaces and spatial index and never mutates
// them; the caller serializes access with scanning, as with every model
// operation.
package pathfind

import "github.com/opennav/groundmesh/internal/geomath"

// Status describes how much of the requested route was resolved.
type Status int

const (
	// PathInvalid means no route could be produced at all: the source is
	// not on any surface, or source and destination share a cell.
	PathInvalid Status = iota

	// PathPartial means the route ends at the closest reachable cell
	// instead of the destination.
	PathPartial

	// PathComplete means the route reaches the destination cell.
	PathComplete
)

func (s Status) String() string {
	switch s {
	case PathPartial:
		return "partial"
	case PathComplete:
		return "complete"
	default:
		return "invalid"
	}
}

// MoveType tags how an agent enters a waypoint.
type MoveType int

const (
	// Walk is a step within the current surface.
	Walk MoveType = iota

	// SurfaceEntry is the landing step of a jump onto another surface.
	SurfaceEntry
)

func (m MoveType) String() string {
	if m == SurfaceEntry {
		return "surface-entry"
	}
	return "walk"
}

// Waypoint is one step of a computed route.
type Waypoint struct {
	Position geomath.Vec3
	Move     MoveType
	Coord    geomath.Point
}

// Path is an ordered waypoint sequence with a completeness status. A path
// with no waypoints is always invalid.
type Path struct {
	Waypoints []Waypoint
	Status    Status
}

// Behaviour selects the search strategy.
type Behaviour int

const (
	// SurfaceBound restricts the search to the source surface.
	SurfaceBound Behaviour = iota

	// PreferPerformance crosses surfaces via a greedy local jump hunt:
	// fast, but it may miss an existing route.
	PreferPerformance

	// PreferResults runs one exhaustive search over the whole indexed
	// space, gap cells included: finds a route whenever the data holds
	// one, at higher cost.
	PreferResults
)

func (b Behaviour) String() string {
	switch b {
	case PreferPerformance:
		return "inter-surface-prefer-performance"
	case PreferResults:
		return "inter-surface-prefer-results"
	default:
		return "surface-bound"
	}
}

// Agent is the per-request search configuration.
type Agent struct {
	Behaviour Behaviour

	// JumpDistance is the longest jump the agent can make, in world units,
	// combining elevation delta and horizontal gap.
	JumpDistance float64

	// JumpPenalty is added to the traversal cost of every jump.
	JumpPenalty float64
}
