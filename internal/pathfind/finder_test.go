package pathfind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opennav/groundmesh/internal/geomath"
	"github.com/opennav/groundmesh/internal/navmesh"
)

func testSettings() navmesh.Settings {
	s := navmesh.DefaultSettings()
	s.TileSize = 1
	s.ChunkSize = 16
	s.KernelSize = 3
	s.KernelStdDevTol = 0.2
	s.MaxSlopeDeg = 25
	s.MinElevation = -1
	s.StepHeight = 0.1
	return s
}

func cellSampler(f func(geomath.Point) float64) navmesh.HeightSampler {
	return func(origin geomath.Vec3, _ float64, _ uint32) (float64, bool) {
		return f(geomath.WorldToTile(origin, 1)), true
	}
}

// flatModel scans a flat 10×10 grid: one surface over cells (1..8, 1..8).
func flatModel(t *testing.T) *navmesh.Model {
	t.Helper()
	m, err := navmesh.NewModel(testSettings(), cellSampler(func(geomath.Point) float64 { return 0 }))
	require.NoError(t, err)
	require.NoError(t, m.Scan(geomath.Vec3{X: 5, Z: 5}, 10))
	require.Len(t, m.Surfaces(), 1)
	return m
}

// plateauHeight is the terrain of the cross-surface scenarios: a lower
// plateau at 0 for x < 5 and an upper one at 0.3 for x >= 5. The 0.3 step
// exceeds StepHeight, so flood fill never crosses it, while the seam cells
// stay under the deviation and slope limits and remain walkable.
func plateauHeight(p geomath.Point) float64 {
	if p.X >= 5 {
		return 0.3
	}
	return 0
}

// plateauModel scans both plateaus into two separate surfaces.
func plateauModel(t *testing.T) *navmesh.Model {
	t.Helper()
	m, err := navmesh.NewModel(testSettings(), cellSampler(plateauHeight))
	require.NoError(t, err)
	require.NoError(t, m.Scan(geomath.Vec3{X: 4, Z: 4}, 10))
	require.NoError(t, m.Scan(geomath.Vec3{X: 8, Z: 4}, 10))
	require.Len(t, m.Surfaces(), 2)
	return m
}

func world(x, y int) geomath.Vec3 {
	return geomath.Vec3{X: float64(x) + 0.5, Z: float64(y) + 0.5}
}

func pathCost(p Path) int {
	cost := 0
	for i := 1; i < len(p.Waypoints); i++ {
		cost += p.Waypoints[i-1].Coord.Manhattan(p.Waypoints[i].Coord)
	}
	return cost
}

func surfaceEntries(p Path) []Waypoint {
	var out []Waypoint
	for _, w := range p.Waypoints {
		if w.Move == SurfaceEntry {
			out = append(out, w)
		}
	}
	return out
}

func requireContiguous(t *testing.T, p Path) {
	t.Helper()
	for i := 1; i < len(p.Waypoints); i++ {
		d := p.Waypoints[i-1].Coord.Manhattan(p.Waypoints[i].Coord)
		require.LessOrEqual(t, d, 2, "waypoints %d and %d are not 8-adjacent", i-1, i)
	}
}

func TestFindSameCellInvalid(t *testing.T) {
	f := NewFinder(flatModel(t))
	p := f.Find(world(4, 4), geomath.Vec3{X: 4.9, Z: 4.9}, Agent{Behaviour: SurfaceBound})
	assert.Equal(t, PathInvalid, p.Status)
	assert.Empty(t, p.Waypoints)
}

func TestFindUnindexedSourceInvalid(t *testing.T) {
	f := NewFinder(flatModel(t))
	for _, b := range []Behaviour{SurfaceBound, PreferPerformance, PreferResults} {
		p := f.Find(world(50, 50), world(4, 4), Agent{Behaviour: b})
		assert.Equal(t, PathInvalid, p.Status, "behaviour %v", b)
	}
}

func TestFindUnknownBehaviourInvalid(t *testing.T) {
	f := NewFinder(flatModel(t))
	p := f.Find(world(2, 2), world(7, 7), Agent{Behaviour: Behaviour(99)})
	assert.Equal(t, PathInvalid, p.Status)
}

func TestSurfaceBoundComplete(t *testing.T) {
	f := NewFinder(flatModel(t))
	p := f.Find(world(2, 2), world(7, 7), Agent{Behaviour: SurfaceBound})

	require.Equal(t, PathComplete, p.Status)
	require.NotEmpty(t, p.Waypoints)
	assert.Equal(t, geomath.Point{X: 2, Y: 2}, p.Waypoints[0].Coord)
	assert.Equal(t, geomath.Point{X: 7, Y: 7}, p.Waypoints[len(p.Waypoints)-1].Coord)
	requireContiguous(t, p)
	assert.Empty(t, surfaceEntries(p), "single-surface route never jumps")

	// Euclidean-to-goal is admissible against Manhattan step costs, so the
	// route cost must be exactly the Manhattan distance.
	assert.Equal(t, 10, pathCost(p))
}

func TestSurfaceBoundPartialTowardsUnreachable(t *testing.T) {
	f := NewFinder(flatModel(t))
	p := f.Find(world(2, 2), world(20, 20), Agent{Behaviour: SurfaceBound})

	require.Equal(t, PathPartial, p.Status)
	require.NotEmpty(t, p.Waypoints)
	assert.Equal(t, geomath.Point{X: 8, Y: 8}, p.Waypoints[len(p.Waypoints)-1].Coord,
		"partial route ends at the closest surface cell")
	requireContiguous(t, p)
}

func TestSurfaceBoundIgnoresOtherSurfaces(t *testing.T) {
	f := NewFinder(plateauModel(t))
	p := f.Find(world(2, 4), world(8, 4), Agent{Behaviour: SurfaceBound})

	require.Equal(t, PathPartial, p.Status)
	last := p.Waypoints[len(p.Waypoints)-1].Coord
	assert.Equal(t, geomath.Point{X: 4, Y: 4}, last, "stops at the seam of the source surface")
}

func TestGlobalCrossesSurfaces(t *testing.T) {
	m := plateauModel(t)
	f := NewFinder(m)
	agent := Agent{Behaviour: PreferResults, JumpDistance: 2, JumpPenalty: 5}

	p := f.Find(world(2, 4), world(8, 4), agent)

	require.Equal(t, PathComplete, p.Status)
	assert.Equal(t, geomath.Point{X: 2, Y: 4}, p.Waypoints[0].Coord)
	assert.Equal(t, geomath.Point{X: 8, Y: 4}, p.Waypoints[len(p.Waypoints)-1].Coord)
	requireContiguous(t, p)

	entries := surfaceEntries(p)
	require.Len(t, entries, 1, "exactly one jump between the plateaus")
	assert.Equal(t, 5, entries[0].Coord.X, "jump lands on the first upper-plateau column")
	assert.InDelta(t, 0.3, entries[0].Position.Y, 1e-9)
}

func TestGlobalRespectsJumpDistance(t *testing.T) {
	f := NewFinder(plateauModel(t))
	agent := Agent{Behaviour: PreferResults, JumpDistance: 0.2, JumpPenalty: 5}

	p := f.Find(world(2, 4), world(8, 4), agent)

	require.Equal(t, PathPartial, p.Status)
	last := p.Waypoints[len(p.Waypoints)-1].Coord
	assert.Equal(t, geomath.Point{X: 4, Y: 4}, last, "too short a jump keeps the agent on its plateau")
	assert.Empty(t, surfaceEntries(p))
}

func TestGlobalReachesFrontierCell(t *testing.T) {
	// A single scan of the two-plateau terrain: the upper seam cells are
	// walkable but beyond StepHeight, so they are indexed without joining
	// any surface. The exhaustive strategy can still route onto them.
	m, err := navmesh.NewModel(testSettings(), cellSampler(plateauHeight))
	require.NoError(t, err)
	require.NoError(t, m.Scan(geomath.Vec3{X: 4, Z: 4}, 10))
	require.Len(t, m.Surfaces(), 1)

	dst := geomath.Point{X: 5, Y: 4}
	_, indexed := m.Tree().Get(dst)
	require.True(t, indexed, "seam cell is indexed")
	_, onSurface := m.SurfaceAt(dst)
	require.False(t, onSurface, "seam cell belongs to no surface")

	f := NewFinder(m)
	p := f.Find(world(2, 4), world(5, 4), Agent{Behaviour: PreferResults, JumpDistance: 2})

	require.Equal(t, PathComplete, p.Status)
	last := p.Waypoints[len(p.Waypoints)-1]
	assert.Equal(t, dst, last.Coord)
	assert.Equal(t, SurfaceEntry, last.Move, "leaving the surface is the start of a jump")
}

func TestSearchExhaustsWideDetour(t *testing.T) {
	// A tall wall splits the floor, with a narrow passage at the far end.
	// The heuristic leads the search straight into the wall, so it must
	// expand most of the mesh before finding the way around; the route
	// still has to come back Complete, however large the detour.
	terrain := cellSampler(func(p geomath.Point) float64 {
		if p.X == 70 && p.Y < 95 {
			return 5
		}
		return 0
	})
	m, err := navmesh.NewModel(testSettings(), terrain)
	require.NoError(t, err)
	require.NoError(t, m.Scan(geomath.Vec3{X: 50, Z: 50}, 100))
	require.Len(t, m.Surfaces(), 1, "the passage joins both halves into one surface")

	f := NewFinder(m)
	for _, b := range []Behaviour{SurfaceBound, PreferResults} {
		p := f.Find(world(10, 50), world(90, 50), Agent{Behaviour: b, JumpDistance: 2})
		require.Equal(t, PathComplete, p.Status, "behaviour %v", b)
		assert.Equal(t, geomath.Point{X: 90, Y: 50}, p.Waypoints[len(p.Waypoints)-1].Coord)
		assert.Empty(t, surfaceEntries(p))
		requireContiguous(t, p)
	}
}

func TestLocalCompletesWithinSurface(t *testing.T) {
	f := NewFinder(flatModel(t))
	p := f.Find(world(2, 2), world(7, 7), Agent{Behaviour: PreferPerformance, JumpDistance: 2})

	require.Equal(t, PathComplete, p.Status)
	assert.Equal(t, 10, pathCost(p))
	assert.Empty(t, surfaceEntries(p))
}

func TestLocalJumpsToNeighborSurface(t *testing.T) {
	f := NewFinder(plateauModel(t))
	agent := Agent{Behaviour: PreferPerformance, JumpDistance: 2}

	p := f.Find(world(2, 4), world(8, 4), agent)

	require.Equal(t, PathComplete, p.Status)
	assert.Equal(t, geomath.Point{X: 2, Y: 4}, p.Waypoints[0].Coord)
	assert.Equal(t, geomath.Point{X: 8, Y: 4}, p.Waypoints[len(p.Waypoints)-1].Coord)
	requireContiguous(t, p)
	require.Len(t, surfaceEntries(p), 1)
}

func TestLocalWithoutReachPartial(t *testing.T) {
	f := NewFinder(plateauModel(t))
	agent := Agent{Behaviour: PreferPerformance, JumpDistance: 0.2}

	p := f.Find(world(2, 4), world(8, 4), agent)

	require.Equal(t, PathPartial, p.Status)
	assert.Empty(t, surfaceEntries(p))
}

func TestStatusAndMoveStrings(t *testing.T) {
	assert.Equal(t, "invalid", PathInvalid.String())
	assert.Equal(t, "partial", PathPartial.String())
	assert.Equal(t, "complete", PathComplete.String())
	assert.Equal(t, "walk", Walk.String())
	assert.Equal(t, "surface-entry", SurfaceEntry.String())
	assert.Equal(t, "surface-bound", SurfaceBound.String())
	assert.Equal(t, "inter-surface-prefer-performance", PreferPerformance.String())
	assert.Equal(t, "inter-surface-prefer-results", PreferResults.String())
}
