package pathfind

import (
	"math"

	"github.com/opennav/groundmesh/internal/geomath"
	"github.com/opennav/groundmesh/internal/navmesh"
)

// findGlobal runs the prefer-results strategy: one unified A* over every
// indexed cell, off-surface gap cells included. A jump (an elevation step
// beyond StepHeight or any travel off the current surface) is feasible
// while the Pythagorean combination of elevation delta and accumulated
// horizontal gap distance stays within the agent's jump distance, and each
// jump adds the agent's penalty to the traversal cost. Exhaustive within
// the indexed data.
func (f *Finder) findGlobal(srcSurf *navmesh.Surface, src, dst geomath.Point, agent Agent) Path {
	settings := f.model.Settings()
	tree := f.model.Tree()

	startNode, ok := tree.Get(src)
	if !ok {
		return Path{Status: PathInvalid}
	}

	start := &searchNode{
		node:     startNode,
		surf:     srcSurf,
		h:        src.Dist(dst),
		baseElev: startNode.Elevation,
	}

	open := []*searchNode{start}
	closed := make(map[geomath.Point]struct{})
	best := start

	limit := searchLimit(tree.Len())
	for i := 0; i < limit && len(open) > 0; i++ {
		cur := open[0]
		open = open[1:]

		if _, done := closed[cur.node.Coord]; done {
			continue
		}
		closed[cur.node.Coord] = struct{}{}

		if cur.h < best.h {
			best = cur
		}
		if cur.node.Coord == dst {
			return Path{Waypoints: f.reconstruct(cur), Status: PathComplete}
		}

		for _, nb := range geomath.Neighbors8(cur.node.Coord) {
			if _, done := closed[nb]; done {
				continue
			}
			n, ok := tree.Get(nb)
			if !ok {
				continue
			}
			next, ok := f.expandGlobal(cur, n, dst, settings, agent)
			if !ok {
				continue
			}
			open = geomath.InsertSorted(open, next, (*searchNode).f)
		}
	}

	return Path{Waypoints: f.reconstruct(best), Status: PathPartial}
}

// expandGlobal builds the successor for stepping from cur onto n, or
// reports false when the step would overstretch the agent's jump reach.
func (f *Finder) expandGlobal(cur *searchNode, n *navmesh.Node, dst geomath.Point, settings navmesh.Settings, agent Agent) (*searchNode, bool) {
	nbSurf, _ := f.model.SurfaceAt(n.Coord)

	stepTiles := cur.node.Coord.Manhattan(n.Coord)
	stepDist := settings.TileSize * float64(stepTiles)
	if stepTiles == 2 {
		stepDist = settings.TileSize * math.Sqrt2
	}

	next := &searchNode{
		node:   n,
		surf:   nbSurf,
		parent: cur,
		h:      n.Coord.Dist(dst),
	}

	elevStep := math.Abs(n.Elevation - cur.node.Elevation)
	if nbSurf != nil && nbSurf == cur.surf && elevStep <= settings.StepHeight {
		// Plain walk within the current surface.
		next.g = cur.g + float64(stepTiles)
		next.baseElev = n.Elevation
		return next, true
	}

	// Part of a jump: check reach against the elevation delta from the
	// take-off point combined with the horizontal gap crossed so far.
	gap := cur.gap + stepDist
	dz := math.Abs(n.Elevation - cur.baseElev)
	if math.Hypot(dz, gap) > agent.JumpDistance {
		return nil, false
	}

	next.g = cur.g + float64(stepTiles)
	if cur.surf != nil {
		// The jump begins on this edge; later gap cells and the landing
		// ride on the same penalty.
		next.g += agent.JumpPenalty
	}
	if nbSurf != nil {
		next.gap = 0
		next.baseElev = n.Elevation
	} else {
		next.gap = gap
		next.baseElev = cur.baseElev
	}
	return next, true
}
