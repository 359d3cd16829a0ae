package navmesh

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/opennav/groundmesh/internal/geomath"
)

// HeightSampler abstracts the engine's downward ground raycast: given a ray
// origin, length and layer mask it reports the ground height hit, if any.
type HeightSampler func(origin geomath.Vec3, rayLength float64, mask uint32) (height float64, hit bool)

// DebugDraw receives a line segment per sampled ray and per quad bound when
// installed. Purely observational; nil is fine.
type DebugDraw func(from, to geomath.Vec3)

const (
	// missedSample is the sentinel elevation recorded when the height
	// sampler reports no hit.
	missedSample = -100.0

	// castClearance is how far above the scan origin a sample ray starts,
	// so nearby geometry above the device does not shadow the ground.
	castClearance = 5.0

	// castDepth is how far below the scan origin a sample ray reaches.
	castDepth = 25.0
)

// Model owns the spatial tree and the surface list and drives the scan
// lifecycle: sample → classify → invalidate → flood-fill → merge.
//
// Not safe for concurrent use: Scan, Prune, Clear and path queries must run
// on one logical thread. Every operation runs to completion within the
// calling stack; there is no cancellation. Callers bound scan area and
// invocation frequency to control latency.
type Model struct {
	settings Settings
	sampler  HeightSampler
	tree     *SpatialTree
	surfaces []*Surface
	nextID   int64
	debug    DebugDraw
}

// NewModel validates the settings and returns an empty model.
func NewModel(settings Settings, sampler HeightSampler) (*Model, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if sampler == nil {
		return nil, fmt.Errorf("height sampler must not be nil")
	}
	return &Model{
		settings: settings,
		sampler:  sampler,
		tree:     NewSpatialTree(settings.ChunkSize, settings.chunkRank()),
	}, nil
}

// SetDebugDraw installs the optional visualization hook.
func (m *Model) SetDebugDraw(fn DebugDraw) { m.debug = fn }

// Settings returns the model configuration.
func (m *Model) Settings() Settings { return m.settings }

// Tree returns the spatial index. Callers must treat it as read-only.
func (m *Model) Tree() *SpatialTree { return m.tree }

// Surfaces returns the live surfaces. Callers must treat them as read-only.
func (m *Model) Surfaces() []*Surface { return m.surfaces }

// SurfaceAt returns the surface owning the given coordinate.
func (m *Model) SurfaceAt(coord geomath.Point) (*Surface, bool) {
	for _, s := range m.surfaces {
		if s.ContainsElement(coord) {
			return s, true
		}
	}
	return nil, false
}

// cellSample is the per-cell result of one scan pass.
type cellSample struct {
	elevation float64
	deviation float64
	walkable  bool
}

// Scan samples a cells×cells window centered at origin, classifies
// walkability, invalidates cells that stopped being walkable, flood-fills
// the contiguous walkable area around the window center and merges it into
// the surface list. The window must be at least KernelSize cells wide.
func (m *Model) Scan(origin geomath.Vec3, cells int) error {
	if cells < m.settings.KernelSize {
		return fmt.Errorf("scan window %d narrower than kernel size %d", cells, m.settings.KernelSize)
	}

	center := geomath.WorldToTile(origin, m.settings.TileSize)
	half := cells / 2

	heights := m.sample(origin, center, half, cells)
	window := m.classify(center, half, cells, heights)

	occupied := m.invalidate(window)
	eligible, frontier := m.floodFill(center, window, occupied)

	// Frontier cells are walkable but not step-reachable: they stay out of
	// every surface yet remain indexed, so cross-surface searches can use
	// them as gap cells.
	m.tree.Insert(frontier...)

	m.mergeNodes(eligible)
	return nil
}

// sample casts one downward ray per window cell, recording the hit height
// or the miss sentinel.
func (m *Model) sample(origin geomath.Vec3, center geomath.Point, half, cells int) [][]float64 {
	heights := make([][]float64, cells)
	rayLen := castClearance + castDepth
	for ix := range cells {
		heights[ix] = make([]float64, cells)
		for iy := range cells {
			c := geomath.Point{X: center.X - half + ix, Y: center.Y - half + iy}
			at := geomath.TileToWorld(c, m.settings.TileSize, origin.Y+castClearance)
			h, hit := m.sampler(at, rayLen, m.settings.GroundMask)
			if !hit {
				h = missedSample
			}
			heights[ix][iy] = h
			if m.debug != nil {
				m.debug(at, at.Add(geomath.Vec3{Y: -rayLen}))
			}
		}
	}
	return heights
}

// classify fits a plane to each interior cell's kernel neighborhood and
// derives slope and elevation noise. Boundary cells inside the kernel
// half-size margin stay unclassified.
func (m *Model) classify(center geomath.Point, half, cells int, heights [][]float64) map[geomath.Point]cellSample {
	kh := m.settings.KernelSize / 2
	window := make(map[geomath.Point]cellSample, cells*cells)

	kernelCells := m.settings.KernelSize * m.settings.KernelSize
	points := make([]geomath.Vec3, 0, kernelCells)
	samples := make([]float64, 0, kernelCells)

	for ix := kh; ix < cells-kh; ix++ {
		for iy := kh; iy < cells-kh; iy++ {
			points = points[:0]
			samples = samples[:0]
			for dx := -kh; dx <= kh; dx++ {
				for dy := -kh; dy <= kh; dy++ {
					h := heights[ix+dx][iy+dy]
					c := geomath.Point{X: center.X - half + ix + dx, Y: center.Y - half + iy + dy}
					points = append(points, geomath.TileToWorld(c, m.settings.TileSize, h))
					samples = append(samples, h)
				}
			}

			elevation := heights[ix][iy]
			deviation := geomath.StdDev(samples)

			walkable := false
			if normal, err := geomath.FitPlane(points); err == nil {
				slope := geomath.SlopeDegrees(normal)
				walkable = deviation < m.settings.KernelStdDevTol &&
					slope < m.settings.MaxSlopeDeg &&
					elevation > m.settings.MinElevation
			}

			coord := geomath.Point{X: center.X - half + ix, Y: center.Y - half + iy}
			window[coord] = cellSample{
				elevation: elevation,
				deviation: deviation,
				walkable:  walkable,
			}
		}
	}
	return window
}

// invalidate removes freshly non-walkable cells from the spatial tree and
// excises them from every surface, dropping surfaces left empty. Returns
// the set of invalidated coordinates; flood fill marks them closed.
func (m *Model) invalidate(window map[geomath.Point]cellSample) map[geomath.Point]struct{} {
	occupied := make(map[geomath.Point]struct{})
	for coord, cs := range window {
		if cs.walkable {
			continue
		}
		occupied[coord] = struct{}{}
		m.tree.RemoveAt(coord)
	}
	if len(occupied) == 0 {
		return occupied
	}

	// One Except per surface: each call recomputes the elevation, so the
	// removals are batched instead of issued per coordinate.
	for _, s := range m.surfaces {
		var gone []geomath.Point
		for coord := range occupied {
			if s.ContainsElement(coord) {
				gone = append(gone, coord)
			}
		}
		if len(gone) > 0 {
			s.Except(gone...)
		}
	}
	m.dropEmptySurfaces()
	return occupied
}

// floodFill expands breadth-first from the window center across 8-connected
// neighbors, tracking per cell the minimum elevation step seen over all
// frontier paths. A cell becomes eligible once that step is within
// StepHeight. Invalidated cells are visited so they close, but never join
// the eligible set. Walkable cells that stay beyond StepHeight are returned
// separately as frontier nodes.
func (m *Model) floodFill(center geomath.Point, window map[geomath.Point]cellSample, occupied map[geomath.Point]struct{}) (eligible, frontier []*Node) {
	start, ok := window[center]
	if !ok || !start.walkable {
		return nil, nil
	}

	dist := map[geomath.Point]float64{center: 0}
	closed := map[geomath.Point]struct{}{center: struct{}{}}
	queue := []geomath.Point{center}

	eligible = append(eligible, NewNode(center, start.elevation, start.deviation))
	edge := make(map[geomath.Point]*Node)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		curElev := window[cur].elevation

		for _, nb := range geomath.Neighbors8(cur) {
			cs, ok := window[nb]
			if !ok {
				continue
			}

			d := math.Abs(cs.elevation - curElev)
			if prev, seen := dist[nb]; !seen || d < prev {
				dist[nb] = d
			}

			if _, done := closed[nb]; done {
				continue
			}
			if _, inv := occupied[nb]; inv {
				closed[nb] = struct{}{}
				continue
			}
			if dist[nb] > m.settings.StepHeight {
				// May still become eligible via a flatter path; until then
				// it is a frontier candidate.
				if f, seen := edge[nb]; seen {
					f.FrontierDist = dist[nb]
				} else {
					f := NewNode(nb, cs.elevation, cs.deviation)
					f.FrontierDist = dist[nb]
					edge[nb] = f
				}
				continue
			}

			closed[nb] = struct{}{}
			queue = append(queue, nb)
			delete(edge, nb)

			n := NewNode(nb, cs.elevation, cs.deviation)
			n.FrontierDist = dist[nb]
			eligible = append(eligible, n)
		}
	}

	for _, f := range edge {
		frontier = append(frontier, f)
	}
	return eligible, frontier
}

// mergeNodes indexes the eligible nodes and folds them into the surface
// list: no overlap means a brand-new surface; otherwise the first
// overlapping surface that passes CanMerge (threshold 2×StepHeight)
// anchors the merge, remaining overlapping surfaces are merged into the
// anchor when mergeable or lose the candidate's cells when not.
func (m *Model) mergeNodes(nodes []*Node) {
	if len(nodes) == 0 {
		return
	}

	// Only nodes the tree actually accepted may join a surface; every
	// surface member must stay indexed.
	indexed := nodes[:0]
	for _, n := range nodes {
		if m.tree.InsertOne(n) {
			indexed = append(indexed, n)
		}
	}
	if len(indexed) == 0 {
		return
	}

	cand := NewSurface(m.allocID(), indexed)

	var overlapping []*Surface
	for _, s := range m.surfaces {
		if s.Overlaps(cand) {
			overlapping = append(overlapping, s)
		}
	}
	if len(overlapping) == 0 {
		m.surfaces = append(m.surfaces, cand)
		return
	}

	threshold := 2 * m.settings.StepHeight

	// First-in-list wins as anchor; surface identity stability depends on
	// this tie-break.
	var anchor *Surface
	for _, s := range overlapping {
		if s.CanMerge(cand, threshold) {
			anchor = s
			break
		}
	}

	if anchor == nil {
		// Overlap without elevation agreement: the fresh scan data wins,
		// the stale surfaces lose the contested cells.
		for _, s := range overlapping {
			s.ExceptSurface(cand)
		}
		m.surfaces = append(m.surfaces, cand)
		m.dropEmptySurfaces()
		return
	}

	anchor.Merge(cand)
	for _, s := range overlapping {
		if s == anchor {
			continue
		}
		if anchor.CanMerge(s, threshold) {
			anchor.Merge(s)
			s.Intersect(nil) // emptied; dropped below
		} else {
			s.ExceptSurface(cand)
		}
	}
	m.dropEmptySurfaces()
}

// Prune keeps only the nodes within a cells×cells window centered at
// origin, intersects every surface with the kept set and drops surfaces
// left empty.
func (m *Model) Prune(origin geomath.Vec3, cells int) {
	center := geomath.WorldToTile(origin, m.settings.TileSize)
	half := cells / 2
	b := Bounds{MinX: center.X - half, MinY: center.Y - half, Size: cells}

	var outside []geomath.Point
	kept := make(map[geomath.Point]struct{})
	m.tree.Each(func(n *Node) {
		if b.Contains(n.Coord) {
			kept[n.Coord] = struct{}{}
		} else {
			outside = append(outside, n.Coord)
		}
	})
	for _, c := range outside {
		m.tree.RemoveAt(c)
	}

	for _, s := range m.surfaces {
		s.Intersect(kept)
	}
	m.dropEmptySurfaces()

	slog.Debug("pruned navmesh", "kept", len(kept), "removed", len(outside), "surfaces", len(m.surfaces))
}

// Clear drops every node and surface.
func (m *Model) Clear() {
	m.tree.Clear()
	m.surfaces = nil
}

// RandomPosition picks a uniformly random surface, then a uniformly random
// node within it. Larger surfaces are not weighted more, so the draw is not
// uniform over the whole mesh; acceptable for spawn-point use.
func (m *Model) RandomPosition(rng *rand.Rand) (geomath.Vec3, bool) {
	if len(m.surfaces) == 0 {
		return geomath.Vec3{}, false
	}
	s := m.surfaces[rng.Intn(len(m.surfaces))]
	n, ok := s.RandomElement(rng)
	if !ok {
		return geomath.Vec3{}, false
	}
	return n.WorldPos(m.settings.TileSize), true
}

func (m *Model) allocID() int64 {
	m.nextID++
	return m.nextID
}

func (m *Model) dropEmptySurfaces() {
	live := m.surfaces[:0]
	for _, s := range m.surfaces {
		if !s.IsEmpty() {
			live = append(live, s)
		}
	}
	m.surfaces = live
}
