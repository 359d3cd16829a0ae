package navmesh

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opennav/groundmesh/internal/geomath"
)

func flatNodes(minX, minY, w, h int, elevation float64) []*Node {
	var out []*Node
	for x := minX; x < minX+w; x++ {
		for y := minY; y < minY+h; y++ {
			out = append(out, NewNode(geomath.Point{X: x, Y: y}, elevation, 0))
		}
	}
	return out
}

func TestSurfaceElevationWeighting(t *testing.T) {
	// Flat nodes (deviation 0, weight 10) dominate noisy ones.
	flat := NewNode(geomath.Point{X: 0, Y: 0}, 1.0, 0)     // weight 10
	noisy := NewNode(geomath.Point{X: 1, Y: 0}, 5.0, 0.08) // weight 2

	s := NewSurface(1, []*Node{flat, noisy})
	// (1.0*10 + 5.0*2) / 12
	assert.InDelta(t, 20.0/12.0, s.Elevation(), 1e-9)
}

func TestSurfaceElevationOrderIndependent(t *testing.T) {
	// Same node set, opposite insertion order: the elevations must match
	// to the last bit, or the snapshot hash flaps on unchanged content.
	var nodes []*Node
	for i := range 64 {
		nodes = append(nodes, NewNode(
			geomath.Point{X: i % 8, Y: i / 8},
			float64(i)*0.137,
			float64(i%5)*0.01,
		))
	}
	reversed := make([]*Node, len(nodes))
	for i, n := range nodes {
		reversed[len(nodes)-1-i] = n
	}

	a := NewSurface(1, nodes)
	b := NewSurface(2, reversed)
	assert.Equal(t, a.Elevation(), b.Elevation())
}

func TestSurfaceElevationZeroWeightKeepsPrevious(t *testing.T) {
	s := NewSurface(1, flatNodes(0, 0, 2, 2, 3.0))
	require.InDelta(t, 3.0, s.Elevation(), 1e-9)

	// All-noisy incoming set: total weight ≤ 0, elevation must not move.
	noisy := NewSurface(2, []*Node{NewNode(geomath.Point{X: 9, Y: 9}, 50, 0.5)})
	s.Merge(noisy)
	assert.InDelta(t, 3.0, s.Elevation(), 1e-9, "zero-weight members cannot shift elevation")

	// A surface made only of noisy nodes reports elevation 0 (never set).
	assert.Equal(t, 0.0, noisy.Elevation())
}

func TestSurfaceMergeIdempotent(t *testing.T) {
	a := NewSurface(1, flatNodes(0, 0, 3, 3, 0))
	b := NewSurface(2, flatNodes(2, 0, 3, 3, 0))

	a.Merge(b)
	afterFirst := a.Len()
	members := make(map[geomath.Point]struct{})
	a.Each(func(n *Node) { members[n.Coord] = struct{}{} })

	a.Merge(b)
	assert.Equal(t, afterFirst, a.Len(), "second merge must not change membership")
	a.Each(func(n *Node) {
		_, ok := members[n.Coord]
		assert.True(t, ok)
	})
}

func TestSurfaceMergeIncomingWins(t *testing.T) {
	a := NewSurface(1, []*Node{NewNode(geomath.Point{X: 0, Y: 0}, 1.0, 0)})
	b := NewSurface(2, []*Node{NewNode(geomath.Point{X: 0, Y: 0}, 2.0, 0)})

	a.Merge(b)
	n, ok := a.Node(geomath.Point{X: 0, Y: 0})
	require.True(t, ok)
	assert.Equal(t, 2.0, n.Elevation, "conflicting coordinate takes the incoming node")
	assert.Equal(t, 1, a.Len())
}

func TestCanMerge(t *testing.T) {
	t.Run("disjoint never merges", func(t *testing.T) {
		a := NewSurface(1, flatNodes(0, 0, 2, 2, 0))
		b := NewSurface(2, flatNodes(10, 10, 2, 2, 0))
		assert.False(t, a.CanMerge(b, 100), "same elevation but no shared cells")
	})

	t.Run("overlapping same level merges", func(t *testing.T) {
		a := NewSurface(1, flatNodes(0, 0, 3, 3, 0))
		b := NewSurface(2, flatNodes(2, 0, 3, 3, 0))
		assert.True(t, a.CanMerge(b, 0.3))
	})

	t.Run("shared cells at odds with elevation", func(t *testing.T) {
		// The shared column sits at 5.0 while surface a averages near 0:
		// the shared-node elevation disagrees with a beyond threshold.
		a := NewSurface(1, append(flatNodes(0, 0, 4, 1, 0), NewNode(geomath.Point{X: 4, Y: 0}, 5, 0)))
		b := NewSurface(2, append(flatNodes(5, 0, 4, 1, 5), NewNode(geomath.Point{X: 4, Y: 0}, 5, 0)))
		assert.False(t, a.CanMerge(b, 0.3))
	})
}

func TestSurfaceOverlaps(t *testing.T) {
	a := NewSurface(1, flatNodes(0, 0, 3, 3, 0))
	b := NewSurface(2, flatNodes(2, 2, 3, 3, 0))
	c := NewSurface(3, flatNodes(5, 5, 3, 3, 0))

	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))
	assert.False(t, a.Overlaps(c))
}

func TestSurfaceExceptIntersect(t *testing.T) {
	s := NewSurface(1, flatNodes(0, 0, 3, 3, 0))

	s.Except(geomath.Point{X: 0, Y: 0}, geomath.Point{X: 1, Y: 1})
	assert.Equal(t, 7, s.Len())
	assert.False(t, s.ContainsElement(geomath.Point{X: 0, Y: 0}))

	keep := map[geomath.Point]struct{}{
		{X: 2, Y: 2}: {},
		{X: 2, Y: 1}: {},
		{X: 9, Y: 9}: {}, // not a member, ignored
	}
	s.Intersect(keep)
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.ContainsElement(geomath.Point{X: 2, Y: 2}))

	s.Intersect(nil)
	assert.True(t, s.IsEmpty())
}

func TestSurfaceClosestElement(t *testing.T) {
	s := NewSurface(1, flatNodes(0, 0, 5, 5, 0))

	n, ok := s.ClosestElement(geomath.Point{X: 10, Y: 10})
	require.True(t, ok)
	assert.Equal(t, geomath.Point{X: 4, Y: 4}, n.Coord)

	empty := NewSurface(2, nil)
	_, ok = empty.ClosestElement(geomath.Point{})
	assert.False(t, ok)
}

func TestSurfaceRandomElement(t *testing.T) {
	s := NewSurface(1, flatNodes(0, 0, 4, 4, 0))
	rng := rand.New(rand.NewSource(7))

	for range 20 {
		n, ok := s.RandomElement(rng)
		require.True(t, ok)
		assert.True(t, s.ContainsElement(n.Coord))
	}
}
