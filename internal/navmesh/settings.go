package navmesh

import (
	"fmt"
	"math/bits"
)

// Settings is the immutable model configuration. Validate before use.
type Settings struct {
	// TileSize is the cell edge length in meters.
	TileSize float64

	// ChunkSize is the number of cells per root quad side. Must be a power
	// of two ≥ 4 so a root quad can subdivide down to its rank floor.
	ChunkSize int

	// KernelSize is the plane-fit neighborhood edge in cells, odd ≥ 1.
	KernelSize int

	// KernelStdDevTol is the walkability ceiling for the standard deviation
	// of kernel elevations.
	KernelStdDevTol float64

	// MaxSlopeDeg is the maximum walkable slope from horizontal in degrees.
	MaxSlopeDeg float64

	// MinElevation rejects cells at or below this height (ray misses land
	// far below it via the miss sentinel).
	MinElevation float64

	// StepHeight is the maximum elevation delta between adjacent walkable
	// cells during flood fill.
	StepHeight float64

	// GroundMask is passed through to the height sampler as its layer
	// filter; the model does not interpret it.
	GroundMask uint32
}

// DefaultSettings returns settings tuned for room-scale AR scanning.
func DefaultSettings() Settings {
	return Settings{
		TileSize:        0.3,
		ChunkSize:       16,
		KernelSize:      3,
		KernelStdDevTol: 0.05,
		MaxSlopeDeg:     25,
		MinElevation:    -50,
		StepHeight:      0.15,
		GroundMask:      ^uint32(0),
	}
}

// Validate reports the first configuration error, if any.
func (s Settings) Validate() error {
	if s.TileSize <= 0 {
		return fmt.Errorf("tile size must be positive, got %v", s.TileSize)
	}
	if s.KernelSize < 1 || s.KernelSize%2 == 0 {
		return fmt.Errorf("kernel size must be odd and >= 1, got %d", s.KernelSize)
	}
	if s.ChunkSize < 4 || bits.OnesCount(uint(s.ChunkSize)) != 1 {
		return fmt.Errorf("chunk size must be a power of two >= 4, got %d", s.ChunkSize)
	}
	if s.StepHeight < 0 {
		return fmt.Errorf("step height must not be negative, got %v", s.StepHeight)
	}
	if s.MaxSlopeDeg <= 0 || s.MaxSlopeDeg >= 90 {
		return fmt.Errorf("max slope must be in (0, 90) degrees, got %v", s.MaxSlopeDeg)
	}
	return nil
}

// chunkRank derives the subdivision rank from ChunkSize (size = 2^rank).
func (s Settings) chunkRank() int {
	return bits.TrailingZeros(uint(s.ChunkSize))
}
