package navmesh

import (
	"math"
	"math/rand"
	"sort"

	"github.com/opennav/groundmesh/internal/geomath"
)

// Surface is a mutable set of nodes sharing approximately one elevation
// plane. Node membership is keyed by coordinate (set semantics); the scalar
// elevation is a noise-weighted average recomputed on every mutation.
// Surfaces are identified by a monotonically increasing id assigned by the
// owning Model and never reused.
type Surface struct {
	id        int64
	nodes     map[geomath.Point]*Node
	elevation float64
}

// NewSurface builds a surface over the given nodes.
func NewSurface(id int64, nodes []*Node) *Surface {
	s := &Surface{id: id, nodes: make(map[geomath.Point]*Node, len(nodes))}
	for _, n := range nodes {
		s.nodes[n.Coord] = n
	}
	s.recompute()
	return s
}

// ID returns the surface identifier.
func (s *Surface) ID() int64 { return s.id }

// Len returns the number of member nodes.
func (s *Surface) Len() int { return len(s.nodes) }

// IsEmpty reports whether the surface has no members.
func (s *Surface) IsEmpty() bool { return len(s.nodes) == 0 }

// Elevation returns the cached noise-weighted average elevation.
func (s *Surface) Elevation() float64 { return s.elevation }

// ContainsElement reports whether the surface holds a node at coord.
func (s *Surface) ContainsElement(coord geomath.Point) bool {
	_, ok := s.nodes[coord]
	return ok
}

// Node returns the member node at coord.
func (s *Surface) Node(coord geomath.Point) (*Node, bool) {
	n, ok := s.nodes[coord]
	return n, ok
}

// Each calls fn for every member node.
func (s *Surface) Each(fn func(*Node)) {
	for _, n := range s.nodes {
		fn(n)
	}
}

// Nodes returns the member nodes in map order.
func (s *Surface) Nodes() []*Node {
	out := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out
}

// Overlaps reports whether the two surfaces share at least one coordinate.
func (s *Surface) Overlaps(o *Surface) bool {
	small, big := s, o
	if len(big.nodes) < len(small.nodes) {
		small, big = big, small
	}
	for c := range small.nodes {
		if _, ok := big.nodes[c]; ok {
			return true
		}
	}
	return false
}

// CanMerge reports whether o can be folded into s: the node sets must
// intersect, and the weighted elevation over just the shared nodes must
// stay within threshold of both surfaces' own elevations. Disjoint
// surfaces can never merge, regardless of elevation similarity.
func (s *Surface) CanMerge(o *Surface, threshold float64) bool {
	small, big := s, o
	if len(big.nodes) < len(small.nodes) {
		small, big = big, small
	}
	var shared []*Node
	for c, n := range small.nodes {
		if _, ok := big.nodes[c]; ok {
			shared = append(shared, n)
		}
	}
	if len(shared) == 0 {
		return false
	}
	sortNodes(shared)
	sharedElev, ok := weightedElevation(shared)
	if !ok {
		return false
	}
	return math.Abs(sharedElev-s.elevation) <= threshold &&
		math.Abs(sharedElev-o.elevation) <= threshold
}

// Merge unions o's nodes into s. On coordinate conflicts the incoming
// node wins. The elevation is recomputed, never copied.
func (s *Surface) Merge(o *Surface) {
	for c, n := range o.nodes {
		s.nodes[c] = n
	}
	s.recompute()
}

// Except removes the given coordinates from the surface.
func (s *Surface) Except(coords ...geomath.Point) {
	for _, c := range coords {
		delete(s.nodes, c)
	}
	s.recompute()
}

// ExceptSurface removes every coordinate held by o.
func (s *Surface) ExceptSurface(o *Surface) {
	for c := range o.nodes {
		delete(s.nodes, c)
	}
	s.recompute()
}

// Intersect keeps only the coordinates present in keep.
func (s *Surface) Intersect(keep map[geomath.Point]struct{}) {
	for c := range s.nodes {
		if _, ok := keep[c]; !ok {
			delete(s.nodes, c)
		}
	}
	s.recompute()
}

// ClosestElement returns the member node nearest to ref by grid distance.
func (s *Surface) ClosestElement(ref geomath.Point) (*Node, bool) {
	var best *Node
	bestDist := math.Inf(1)
	for _, n := range s.nodes {
		if d := n.Coord.Dist(ref); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best, best != nil
}

// RandomElement returns a uniformly random member node.
func (s *Surface) RandomElement(rng *rand.Rand) (*Node, bool) {
	if len(s.nodes) == 0 {
		return nil, false
	}
	i := rng.Intn(len(s.nodes))
	for _, n := range s.nodes {
		if i == 0 {
			return n, true
		}
		i--
	}
	return nil, false
}

// recompute refreshes the cached elevation. When the total weight is not
// positive (every member too noisy) the previous elevation is kept.
// Summation runs in coordinate order so equal node sets always produce
// bit-identical elevations, whatever order the map yields them in; the
// snapshot content hash depends on that.
func (s *Surface) recompute() {
	nodes := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	sortNodes(nodes)
	if e, ok := weightedElevation(nodes); ok {
		s.elevation = e
	}
}

// sortNodes orders nodes by coordinate, X before Y.
func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i].Coord, nodes[j].Coord
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
}

// weightedElevation averages node elevations, biasing toward flat nodes:
// weight = floor((0.1 - deviation) * 100), so a node with deviation ≥ 0.1
// contributes zero or negative weight. Reports false when the weight sum
// is not positive.
func weightedElevation(nodes []*Node) (float64, bool) {
	var acc, sum float64
	for _, n := range nodes {
		w := math.Floor((0.1 - n.Deviation) * 100)
		acc += n.Elevation * w
		sum += w
	}
	if sum <= 0 {
		return 0, false
	}
	return acc / sum, true
}
