package geomath

import "math"

// Point is an integer grid coordinate. Two nodes with the same Point refer
// to the same cell: collections key by Point, never by node contents.
type Point struct {
	X, Y int
}

// Add returns p shifted by d.
func (p Point) Add(d Point) Point {
	return Point{p.X + d.X, p.Y + d.Y}
}

// Manhattan returns the grid Manhattan distance to o.
func (p Point) Manhattan(o Point) int {
	return absInt(p.X-o.X) + absInt(p.Y-o.Y)
}

// Dist returns the Euclidean distance to o in grid units.
func (p Point) Dist(o Point) float64 {
	dx := float64(p.X - o.X)
	dy := float64(p.Y - o.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Vec3 is a world-space position, Y up.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v scaled by f.
func (v Vec3) Scale(f float64) Vec3 {
	return Vec3{v.X * f, v.Y * f, v.Z * f}
}

// Len returns the vector length.
func (v Vec3) Len() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Dist returns the 3D Euclidean distance to o.
func (v Vec3) Dist(o Vec3) float64 {
	return v.Sub(o).Len()
}

// Normalized returns v scaled to unit length. Zero vectors stay zero.
func (v Vec3) Normalized() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// WorldToTile maps a world position onto the grid (XZ plane, floor snap).
func WorldToTile(v Vec3, tileSize float64) Point {
	return Point{
		X: int(math.Floor(v.X / tileSize)),
		Y: int(math.Floor(v.Z / tileSize)),
	}
}

// TileToWorld maps a grid coordinate back to the world position at the
// center of the cell, at the given elevation.
func TileToWorld(p Point, tileSize, elevation float64) Vec3 {
	return Vec3{
		X: (float64(p.X) + 0.5) * tileSize,
		Y: elevation,
		Z: (float64(p.Y) + 0.5) * tileSize,
	}
}

// neighborOffsets enumerates the 8-connected neighborhood clockwise from
// north. Order is fixed: flood fill and search determinism depend on it.
var neighborOffsets = [8]Point{
	{0, -1}, {1, -1}, {1, 0}, {1, 1},
	{0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
}

// Neighbors8 returns the 8-connected neighbors of p in a fixed clockwise
// order starting at north.
func Neighbors8(p Point) [8]Point {
	var out [8]Point
	for i, d := range neighborOffsets {
		out[i] = p.Add(d)
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
