package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/opennav/groundmesh/internal/geomath"
	"github.com/opennav/groundmesh/internal/navmesh"
)

// heightmap is a rectangular elevation grid loaded from CSV. Rows map to
// the Z axis, columns to X. NaN cells are ray misses.
type heightmap struct {
	cells    [][]float64 // [row][col]
	tileSize float64
}

// loadHeightmap reads a CSV of float elevations. Blank cells and "nan"
// read as misses.
func loadHeightmap(path string, tileSize float64) (*heightmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening heightmap %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing heightmap %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("heightmap %s is empty", path)
	}

	hm := &heightmap{tileSize: tileSize}
	for ri, rec := range records {
		row := make([]float64, len(rec))
		for ci, field := range rec {
			field = strings.TrimSpace(field)
			if field == "" || strings.EqualFold(field, "nan") {
				row[ci] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("heightmap %s row %d col %d: %w", path, ri+1, ci+1, err)
			}
			row[ci] = v
		}
		hm.cells = append(hm.cells, row)
	}
	return hm, nil
}

// width and depth in cells.
func (h *heightmap) width() int { return len(h.cells[0]) }
func (h *heightmap) depth() int { return len(h.cells) }

// center returns the world position over the middle of the grid.
func (h *heightmap) center() geomath.Vec3 {
	return geomath.Vec3{
		X: float64(h.width()) / 2 * h.tileSize,
		Z: float64(h.depth()) / 2 * h.tileSize,
	}
}

// sampler adapts the grid to the model's height sampler contract: a
// downward ray at a world position reads the covering cell, out-of-range
// or NaN cells miss.
func (h *heightmap) sampler() navmesh.HeightSampler {
	return func(origin geomath.Vec3, rayLength float64, _ uint32) (float64, bool) {
		p := geomath.WorldToTile(origin, h.tileSize)
		if p.Y < 0 || p.Y >= h.depth() || p.X < 0 || p.X >= h.width() {
			return 0, false
		}
		v := h.cells[p.Y][p.X]
		if math.IsNaN(v) {
			return 0, false
		}
		if v > origin.Y || v < origin.Y-rayLength {
			return 0, false // outside the ray segment
		}
		return v, true
	}
}
