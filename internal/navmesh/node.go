package navmesh

import "github.com/opennav/groundmesh/internal/geomath"

// Node is one elevation-sampled grid cell.
//
// Identity is the grid coordinate: collections key by Coord and treat two
// nodes with the same coordinate as the same cell. Nodes are shared by
// reference between the spatial tree and surfaces, so the flood-fill scratch
// field is never lost to a value copy. Elevation and Deviation are written
// once per scan pass.
type Node struct {
	Coord     geomath.Point
	Elevation float64
	Deviation float64

	// FrontierDist is flood-fill scratch: the minimum elevation step seen
	// across frontier paths reaching this cell. Owned by Model.Scan.
	FrontierDist float64
}

// NewNode returns a node for the given cell.
func NewNode(coord geomath.Point, elevation, deviation float64) *Node {
	return &Node{Coord: coord, Elevation: elevation, Deviation: deviation}
}

// WorldPos returns the world position at the center of the node's cell.
func (n *Node) WorldPos(tileSize float64) geomath.Vec3 {
	return geomath.TileToWorld(n.Coord, tileSize, n.Elevation)
}
