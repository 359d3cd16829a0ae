package navmesh

import (
	"log/slog"
	"math"

	"github.com/opennav/groundmesh/internal/geomath"
)

// quadCapacity is the number of elements a leaf holds before it must
// subdivide.
const quadCapacity = 4

// minQuadRank is the subdivision floor: a quad with rank below it may not
// split further, so a capacity overflow there is a hard error.
const minQuadRank = 2

// Bounds is an axis-aligned square of grid cells: [MinX, MinX+Size) ×
// [MinY, MinY+Size).
type Bounds struct {
	MinX, MinY int
	Size       int
}

// Contains reports whether p falls inside b.
func (b Bounds) Contains(p geomath.Point) bool {
	return p.X >= b.MinX && p.X < b.MinX+b.Size &&
		p.Y >= b.MinY && p.Y < b.MinY+b.Size
}

// Intersects reports whether b and o share any cell.
func (b Bounds) Intersects(o Bounds) bool {
	return b.MinX < o.MinX+o.Size && o.MinX < b.MinX+b.Size &&
		b.MinY < o.MinY+o.Size && o.MinY < b.MinY+b.Size
}

// quadrant returns the i-th child square (0: NW, 1: NE, 2: SW, 3: SE).
func (b Bounds) quadrant(i int) Bounds {
	half := b.Size / 2
	q := Bounds{MinX: b.MinX, MinY: b.MinY, Size: half}
	if i&1 != 0 {
		q.MinX += half
	}
	if i&2 != 0 {
		q.MinY += half
	}
	return q
}

// centerDist returns the squared distance from the bounds center to p.
func (b Bounds) centerDist(p geomath.Point) float64 {
	cx := float64(b.MinX) + float64(b.Size)/2
	cy := float64(b.MinY) + float64(b.Size)/2
	dx := float64(p.X) + 0.5 - cx
	dy := float64(p.Y) + 0.5 - cy
	return dx*dx + dy*dy
}

// noChildren marks a leaf quad in the arena.
var noChildren = [4]int{-1, -1, -1, -1}

// quad is one tree cell in the arena. A quad either holds up to
// quadCapacity elements (leaf) or exactly four children, never both.
// Parent and children are arena indices, which sidesteps reference cycles
// between parent and child quads.
type quad struct {
	bounds   Bounds
	rank     int
	parent   int // arena index, -1 for a root quad
	children [4]int
	elems    []*Node
	leaf     bool
}

// SpatialTree is a sparse grid of fixed-size adaptive quad-trees. Root
// quads are ChunkSize cells wide, addressed by a collision-free key derived
// from the coordinate (see rootKey). Not safe for concurrent use; the
// owning Model serializes access.
type SpatialTree struct {
	rootSize int
	rootRank int

	roots map[int64]int // root key → arena index
	arena []quad
	free  []int

	index map[geomath.Point]*Node // coordinate → node, for O(1) lookup
}

// NewSpatialTree returns an empty tree with the given root quad size
// (cells per side, power of two = 2^rank).
func NewSpatialTree(rootSize, rootRank int) *SpatialTree {
	return &SpatialTree{
		rootSize: rootSize,
		rootRank: rootRank,
		roots:    make(map[int64]int),
		index:    make(map[geomath.Point]*Node),
	}
}

// rootKey maps a coordinate to the stable key of its rootSize-aligned cell.
// The coordinate is snapped to the root grid, each signed grid index is
// folded onto the naturals, and the two are combined with Cantor pairing.
// The pairing is a bijection: distinct root cells can never collide, which
// the tree relies on for correctness.
func rootKey(p geomath.Point, rootSize int) int64 {
	a := foldSigned(int64(floorDiv(p.X, rootSize)))
	b := foldSigned(int64(floorDiv(p.Y, rootSize)))
	return (a+b)*(a+b+1)/2 + b
}

// foldSigned maps a signed integer onto the naturals (0,-1,1,-2,… →
// 0,1,2,3,…).
func foldSigned(v int64) int64 {
	if v >= 0 {
		return 2 * v
	}
	return -2*v - 1
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// rootBounds returns the root quad square containing p.
func (t *SpatialTree) rootBounds(p geomath.Point) Bounds {
	return Bounds{
		MinX: floorDiv(p.X, t.rootSize) * t.rootSize,
		MinY: floorDiv(p.Y, t.rootSize) * t.rootSize,
		Size: t.rootSize,
	}
}

// alloc takes a quad slot from the free list or grows the arena.
func (t *SpatialTree) alloc(b Bounds, rank, parent int) int {
	q := quad{bounds: b, rank: rank, parent: parent, children: noChildren, leaf: true}
	if n := len(t.free); n > 0 {
		qi := t.free[n-1]
		t.free = t.free[:n-1]
		t.arena[qi] = q
		return qi
	}
	t.arena = append(t.arena, q)
	return len(t.arena) - 1
}

// Insert adds nodes to the tree. A node whose coordinate already exists
// replaces the stored node in place. Returns true only if every insert
// succeeded; a failed node is logged and skipped, the rest of the batch
// continues.
func (t *SpatialTree) Insert(nodes ...*Node) bool {
	ok := true
	for _, n := range nodes {
		if !t.InsertOne(n) {
			ok = false
		}
	}
	return ok
}

// InsertOne adds a single node, creating its root quad on demand.
func (t *SpatialTree) InsertOne(n *Node) bool {
	key := rootKey(n.Coord, t.rootSize)
	qi, ok := t.roots[key]
	if !ok {
		qi = t.alloc(t.rootBounds(n.Coord), t.rootRank, -1)
		t.roots[key] = qi
	}
	if !t.insertAt(qi, n) {
		return false
	}
	t.index[n.Coord] = n
	return true
}

func (t *SpatialTree) insertAt(qi int, n *Node) bool {
	for {
		if !t.arena[qi].leaf {
			next := -1
			for _, ci := range t.arena[qi].children {
				if t.arena[ci].bounds.Contains(n.Coord) {
					next = ci
					break
				}
			}
			if next < 0 {
				slog.Error("spatial tree: coordinate outside all child quads",
					"coord", n.Coord, "bounds", t.arena[qi].bounds)
				return false
			}
			qi = next
			continue
		}

		q := &t.arena[qi]
		for i, e := range q.elems {
			if e.Coord == n.Coord {
				q.elems[i] = n
				return true
			}
		}
		if len(q.elems) < quadCapacity {
			q.elems = append(q.elems, n)
			return true
		}
		if q.rank < minQuadRank {
			slog.Error("spatial tree: quad capacity exceeded at minimum rank",
				"coord", n.Coord, "bounds", q.bounds, "rank", q.rank)
			return false
		}
		t.subdivide(qi)
	}
}

// subdivide splits a full leaf into four quadrant children and
// redistributes its elements.
func (t *SpatialTree) subdivide(qi int) {
	elems := t.arena[qi].elems
	bounds := t.arena[qi].bounds
	rank := t.arena[qi].rank

	var children [4]int
	for i := range children {
		children[i] = t.alloc(bounds.quadrant(i), rank-1, qi)
	}

	q := &t.arena[qi]
	q.children = children
	q.elems = nil
	q.leaf = false

	for _, e := range elems {
		for _, ci := range children {
			if t.arena[ci].bounds.Contains(e.Coord) {
				t.arena[ci].elems = append(t.arena[ci].elems, e)
				break
			}
		}
	}
}

// Remove deletes the given nodes by coordinate and returns the set of
// coordinates actually removed. Leaves emptied by removal are merged back
// into their parents.
func (t *SpatialTree) Remove(nodes ...*Node) map[geomath.Point]struct{} {
	removed := make(map[geomath.Point]struct{}, len(nodes))
	for _, n := range nodes {
		if t.RemoveAt(n.Coord) {
			removed[n.Coord] = struct{}{}
		}
	}
	return removed
}

// RemoveAt deletes the node at the given coordinate, if present.
func (t *SpatialTree) RemoveAt(coord geomath.Point) bool {
	if _, ok := t.index[coord]; !ok {
		return false
	}

	key := rootKey(coord, t.rootSize)
	qi, ok := t.roots[key]
	if !ok {
		return false
	}

	// Descend to the owning leaf.
	for !t.arena[qi].leaf {
		next := -1
		for _, ci := range t.arena[qi].children {
			if t.arena[ci].bounds.Contains(coord) {
				next = ci
				break
			}
		}
		if next < 0 {
			return false
		}
		qi = next
	}

	q := &t.arena[qi]
	found := false
	for i, e := range q.elems {
		if e.Coord == coord {
			q.elems = append(q.elems[:i], q.elems[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return false
	}
	delete(t.index, coord)

	if len(q.elems) == 0 {
		t.mergeUp(qi, key)
	}
	return true
}

// mergeUp walks the parent chain from an emptied leaf, collapsing any
// parent whose children are all empty leaves back into a single empty
// leaf. An empty root quad is released entirely.
func (t *SpatialTree) mergeUp(qi int, key int64) {
	for {
		parent := t.arena[qi].parent
		if parent < 0 {
			if t.arena[qi].leaf && len(t.arena[qi].elems) == 0 {
				delete(t.roots, key)
				t.free = append(t.free, qi)
			}
			return
		}

		allEmpty := true
		for _, ci := range t.arena[parent].children {
			c := t.arena[ci]
			if !c.leaf || len(c.elems) > 0 {
				allEmpty = false
				break
			}
		}
		if !allEmpty {
			return
		}

		for _, ci := range t.arena[parent].children {
			t.free = append(t.free, ci)
		}
		p := &t.arena[parent]
		p.children = noChildren
		p.leaf = true
		p.elems = nil
		qi = parent
	}
}

// Get returns the node stored at the given coordinate.
func (t *SpatialTree) Get(coord geomath.Point) (*Node, bool) {
	n, ok := t.index[coord]
	return n, ok
}

// Len returns the number of indexed nodes.
func (t *SpatialTree) Len() int {
	return len(t.index)
}

// QueryBounds returns all nodes whose coordinates fall inside b.
func (t *SpatialTree) QueryBounds(b Bounds) []*Node {
	var out []*Node
	for _, qi := range t.roots {
		if t.arena[qi].bounds.Intersects(b) {
			out = t.collectBounds(qi, b, out)
		}
	}
	return out
}

func (t *SpatialTree) collectBounds(qi int, b Bounds, out []*Node) []*Node {
	q := t.arena[qi]
	if q.leaf {
		for _, e := range q.elems {
			if b.Contains(e.Coord) {
				out = append(out, e)
			}
		}
		return out
	}
	for _, ci := range q.children {
		if t.arena[ci].bounds.Intersects(b) {
			out = t.collectBounds(ci, b, out)
		}
	}
	return out
}

// QueryAround returns the elements of the populated leaf nearest to p: the
// leaf containing p when it has elements, otherwise the closest populated
// sibling leaf. When p lies outside every root quad, the nearest root by
// center distance is searched instead. Returns nil when the tree is empty.
func (t *SpatialTree) QueryAround(p geomath.Point) []*Node {
	if qi, ok := t.roots[rootKey(p, t.rootSize)]; ok && t.arena[qi].bounds.Contains(p) {
		if out := t.nearestElems(qi, p); out != nil {
			return out
		}
	}

	best, bestDist := -1, math.Inf(1)
	for _, qi := range t.roots {
		if d := t.arena[qi].bounds.centerDist(p); d < bestDist {
			best, bestDist = qi, d
		}
	}
	if best < 0 {
		return nil
	}
	return t.nearestElems(best, p)
}

// nearestElems returns the elements of the populated leaf nearest p within
// quad qi, or nil when the whole subtree is empty.
func (t *SpatialTree) nearestElems(qi int, p geomath.Point) []*Node {
	q := t.arena[qi]
	if q.leaf {
		if len(q.elems) == 0 {
			return nil
		}
		out := make([]*Node, len(q.elems))
		copy(out, q.elems)
		return out
	}

	order := q.children
	// Insertion sort by center distance; four entries.
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && t.arena[order[j]].bounds.centerDist(p) < t.arena[order[j-1]].bounds.centerDist(p); j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	for _, ci := range order {
		if out := t.nearestElems(ci, p); out != nil {
			return out
		}
	}
	return nil
}

// Each calls fn for every indexed node.
func (t *SpatialTree) Each(fn func(*Node)) {
	for _, n := range t.index {
		fn(n)
	}
}

// VisitBounds calls fn with the bounds of every live quad. Debug hook for
// visualization overlays; no-op safe.
func (t *SpatialTree) VisitBounds(fn func(Bounds)) {
	for _, qi := range t.roots {
		t.visitBounds(qi, fn)
	}
}

func (t *SpatialTree) visitBounds(qi int, fn func(Bounds)) {
	q := t.arena[qi]
	fn(q.bounds)
	if q.leaf {
		return
	}
	for _, ci := range q.children {
		t.visitBounds(ci, fn)
	}
}

// Clear drops every node and quad.
func (t *SpatialTree) Clear() {
	t.roots = make(map[int64]int)
	t.arena = t.arena[:0]
	t.free = t.free[:0]
	t.index = make(map[geomath.Point]*Node)
}
