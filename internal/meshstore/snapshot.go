// Package meshstore persists scanned navigation meshes to PostgreSQL.
// It lives outside the mesh core: the model never depends on it, and a
// loaded snapshot is plain data, not a live model.
package meshstore

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/opennav/groundmesh/internal/navmesh"
)

// NodeData is one persisted grid cell.
type NodeData struct {
	X, Y      int
	Elevation float64
	Deviation float64
}

// SurfaceData is one persisted surface with its member cells.
type SurfaceData struct {
	ID        int64
	Elevation float64
	Nodes     []NodeData
}

// Snapshot is a persisted mesh: every surface with its nodes, plus a
// content hash for change detection.
type Snapshot struct {
	Name     string
	Hash     string
	TileSize float64
	Surfaces []SurfaceData
}

// CaptureSnapshot freezes the model's surfaces into a snapshot. Surfaces
// and nodes are sorted so identical content always hashes identically.
func CaptureSnapshot(name string, m *navmesh.Model) Snapshot {
	snap := Snapshot{Name: name, TileSize: m.Settings().TileSize}

	for _, s := range m.Surfaces() {
		sd := SurfaceData{ID: s.ID(), Elevation: s.Elevation()}
		s.Each(func(n *navmesh.Node) {
			sd.Nodes = append(sd.Nodes, NodeData{
				X:         n.Coord.X,
				Y:         n.Coord.Y,
				Elevation: n.Elevation,
				Deviation: n.Deviation,
			})
		})
		sort.Slice(sd.Nodes, func(i, j int) bool {
			a, b := sd.Nodes[i], sd.Nodes[j]
			if a.X != b.X {
				return a.X < b.X
			}
			return a.Y < b.Y
		})
		snap.Surfaces = append(snap.Surfaces, sd)
	}
	sort.Slice(snap.Surfaces, func(i, j int) bool {
		return snap.Surfaces[i].ID < snap.Surfaces[j].ID
	})

	snap.Hash = contentHash(snap)
	return snap
}

// contentHash returns the hex BLAKE2b-256 digest over the canonical byte
// encoding of the snapshot's surfaces and nodes.
func contentHash(snap Snapshot) string {
	h, _ := blake2b.New256(nil)
	var buf [8]byte

	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	writeF64 := func(v float64) { writeU64(math.Float64bits(v)) }

	writeF64(snap.TileSize)
	for _, s := range snap.Surfaces {
		writeU64(uint64(s.ID))
		writeF64(s.Elevation)
		writeU64(uint64(len(s.Nodes)))
		for _, n := range s.Nodes {
			writeU64(uint64(int64(n.X)))
			writeU64(uint64(int64(n.Y)))
			writeF64(n.Elevation)
			writeF64(n.Deviation)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
