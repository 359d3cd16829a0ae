package pathfind

import (
	"github.com/opennav/groundmesh/internal/geomath"
	"github.com/opennav/groundmesh/internal/navmesh"
)

// findSurfaceBound runs the single-surface strategy: classic grid A*
// restricted to the source surface.
func (f *Finder) findSurfaceBound(surf *navmesh.Surface, src, dst geomath.Point) Path {
	terminal, complete := f.surfaceSearch(surf, src, dst)
	if terminal == nil {
		return Path{Status: PathInvalid}
	}
	status := PathPartial
	if complete {
		status = PathComplete
	}
	return Path{Waypoints: f.reconstruct(terminal), Status: status}
}

// surfaceSearch is A* over the members of one surface. Cost-to-here
// accumulates Manhattan steps, the heuristic is Euclidean distance to the
// goal, and the open list is a sorted-insert list so equal costs expand in
// insertion order. When the goal is unreachable it returns the node that
// came closest, with complete=false.
func (f *Finder) surfaceSearch(surf *navmesh.Surface, src, dst geomath.Point) (terminal *searchNode, complete bool) {
	startNode, ok := surf.Node(src)
	if !ok {
		return nil, false
	}

	start := &searchNode{
		node:     startNode,
		surf:     surf,
		h:        src.Dist(dst),
		baseElev: startNode.Elevation,
	}

	open := []*searchNode{start}
	closed := make(map[geomath.Point]struct{})
	best := start

	limit := searchLimit(surf.Len())
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
			return cur, true
		}

		for _, nb := range geomath.Neighbors8(cur.node.Coord) {
			if _, done := closed[nb]; done {
				continue
			}
			n, ok := surf.Node(nb)
			if !ok {
				continue
			}
			next := &searchNode{
				node:     n,
				surf:     surf,
				parent:   cur,
				g:        cur.g + float64(cur.node.Coord.Manhattan(nb)),
				h:        nb.Dist(dst),
				baseElev: n.Elevation,
			}
			open = geomath.InsertSorted(open, next, (*searchNode).f)
		}
	}

	return best, false
}
