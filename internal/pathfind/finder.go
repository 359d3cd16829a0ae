package pathfind

import (
	"log/slog"

	"github.com/opennav/groundmesh/internal/geomath"
	"github.com/opennav/groundmesh/internal/navmesh"
)

// searchLimit bounds a search loop by the worst-case number of open-list
// pops over the given cell count: the start push plus at most one push per
// neighbor edge. The bound can never cut a search short of draining the
// open list; it only guards against a bookkeeping bug looping forever.
func searchLimit(cells int) int { return 8*cells + 1 }

// Finder computes routes against a model it holds read-only.
type Finder struct {
	model *navmesh.Model
}

// NewFinder returns a finder over the given model.
func NewFinder(m *navmesh.Model) *Finder {
	return &Finder{model: m}
}

// Find computes a route between two world positions using the agent's
// strategy. It degrades to a partial path when the destination is out of
// reach and to an invalid path when the source is not indexed or resolves
// to the destination cell; it never fails with an error.
func (f *Finder) Find(from, to geomath.Vec3, agent Agent) Path {
	tileSize := f.model.Settings().TileSize
	src := geomath.WorldToTile(from, tileSize)
	dst := geomath.WorldToTile(to, tileSize)

	if src == dst {
		return Path{Status: PathInvalid}
	}
	srcSurf, ok := f.model.SurfaceAt(src)
	if !ok {
		return Path{Status: PathInvalid}
	}

	switch agent.Behaviour {
	case SurfaceBound:
		return f.findSurfaceBound(srcSurf, src, dst)
	case PreferPerformance:
		return f.findLocal(srcSurf, src, dst, agent)
	case PreferResults:
		return f.findGlobal(srcSurf, src, dst, agent)
	default:
		slog.Warn("unknown pathfinding behaviour", "behaviour", int(agent.Behaviour))
		return Path{Status: PathInvalid}
	}
}

// searchNode is one expansion of an A*-family search. Parent back-pointers
// reconstruct the route after the goal (or the closest approach) is found.
type searchNode struct {
	node   *navmesh.Node
	surf   *navmesh.Surface // nil for off-surface gap cells
	parent *searchNode

	g float64 // accumulated cost from the source
	h float64 // Euclidean distance to the goal

	// gap is the horizontal world distance accumulated since the search
	// last stood on a surface; baseElev is the elevation it jumped from.
	gap      float64
	baseElev float64
}

func (n *searchNode) f() float64 { return n.g + n.h }

// reconstruct traces parent pointers from the terminal node back to the
// source and emits waypoints in travel order. A waypoint whose surface
// differs from its parent's is tagged as a surface entry.
func (f *Finder) reconstruct(terminal *searchNode) []Waypoint {
	tileSize := f.model.Settings().TileSize

	var chain []*searchNode
	for n := terminal; n != nil; n = n.parent {
		chain = append(chain, n)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	waypoints := make([]Waypoint, len(chain))
	for i, n := range chain {
		move := Walk
		if n.parent != nil && n.surf != n.parent.surf {
			move = SurfaceEntry
		}
		waypoints[i] = Waypoint{
			Position: n.node.WorldPos(tileSize),
			Move:     move,
			Coord:    n.node.Coord,
		}
	}
	return waypoints
}
