package pathfind

import (
	"sort"

	"github.com/opennav/groundmesh/internal/geomath"
	"github.com/opennav/groundmesh/internal/navmesh"
)

// maxGreedySteps bounds the local jump hunt so it stays cheap even on
// large surfaces.
const maxGreedySteps = 256

// findLocal runs the prefer-performance strategy: a surface-bound search
// toward the destination, then a greedy walk hunting for the first viable
// jump onto another surface. Accepting the first jump keeps the search
// local and fast, at the price of possibly missing a route the global
// strategy would find.
func (f *Finder) findLocal(srcSurf *navmesh.Surface, src, dst geomath.Point, agent Agent) Path {
	leg, complete := f.surfaceSearch(srcSurf, src, dst)
	if leg == nil {
		return Path{Status: PathInvalid}
	}
	if complete {
		return Path{Waypoints: f.reconstruct(leg), Status: PathComplete}
	}

	jumpFrom, jumpTo := f.huntJump(srcSurf, leg.node.Coord, dst, agent)
	if jumpTo == nil {
		return Path{Waypoints: f.reconstruct(leg), Status: PathPartial}
	}

	// Route to the jump anchor stays within the source surface, so this
	// leg is complete by construction.
	anchorLeg, _ := f.surfaceSearch(srcSurf, src, jumpFrom.Coord)
	if anchorLeg == nil {
		return Path{Waypoints: f.reconstruct(leg), Status: PathPartial}
	}

	landSurf, _ := f.model.SurfaceAt(jumpTo.Coord)
	land := &searchNode{
		node:     jumpTo,
		surf:     landSurf,
		parent:   anchorLeg,
		baseElev: jumpTo.Elevation,
	}

	status := PathPartial
	waypoints := f.reconstruct(land)
	if jumpTo.Coord == dst {
		status = PathComplete
	} else if landSurf != nil {
		tail, tailComplete := f.surfaceSearch(landSurf, jumpTo.Coord, dst)
		if tail != nil && tail.node.Coord != jumpTo.Coord {
			tailPoints := f.reconstruct(tail)
			waypoints = append(waypoints, tailPoints[1:]...)
		}
		if tailComplete {
			status = PathComplete
		}
	}
	return Path{Waypoints: waypoints, Status: status}
}

// huntJump walks greedily from start across the source surface, examining
// 8-neighbors ordered by distance to the goal, and returns the first pair
// (anchor node on the source surface, landing node on another surface)
// within the agent's jump distance. Nil landing means no jump was found.
func (f *Finder) huntJump(srcSurf *navmesh.Surface, start, dst geomath.Point, agent Agent) (*navmesh.Node, *navmesh.Node) {
	tileSize := f.model.Settings().TileSize
	tree := f.model.Tree()

	cur := start
	visited := map[geomath.Point]struct{}{start: {}}

	for range maxGreedySteps {
		curNode, ok := srcSurf.Node(cur)
		if !ok {
			return nil, nil
		}

		nbs := geomath.Neighbors8(cur)
		sorted := nbs[:]
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Dist(dst) < sorted[j].Dist(dst)
		})

		// First viable cross-surface landing wins.
		for _, nb := range sorted {
			n, ok := tree.Get(nb)
			if !ok {
				continue
			}
			nbSurf, onSurface := f.model.SurfaceAt(nb)
			if !onSurface || nbSurf == srcSurf {
				continue
			}
			if curNode.WorldPos(tileSize).Dist(n.WorldPos(tileSize)) <= agent.JumpDistance {
				return curNode, n
			}
		}

		// Otherwise step toward the goal within the surface.
		moved := false
		for _, nb := range sorted {
			if _, seen := visited[nb]; seen {
				continue
			}
			if srcSurf.ContainsElement(nb) {
				visited[nb] = struct{}{}
				cur = nb
				moved = true
				break
			}
		}
		if !moved {
			return nil, nil
		}
	}
	return nil, nil
}
