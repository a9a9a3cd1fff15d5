// Package spatial provides cache-efficient spatial data structures for
// broad-phase collision detection.
//
// Structures use preallocated slices with integer indices (not pointers)
// to minimize GC pressure and keep the caller's arena as the single owner.
package spatial

import (
	"math"
	"slices"
)

// SpatialGrid buckets entities into fixed-size XY cells.
// Uses preallocated slices with entity indices (not pointers) for GC efficiency.
//
// The grid covers [minX,maxX]x[minY,maxY]; positions outside are clamped into
// the edge cells, so queries stay correct for anything the caller inserts.
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col])
type SpatialGrid struct {
	originX, originY float64
	cellSize         float64
	invCellSize      float64 // 1/cellSize for faster division
	cols, rows       int
	cells            [][]uint32 // cells[row*cols+col] = list of entity indices
	scratch          []uint32   // reusable buffer for query results
	maxRadius        float64    // largest inserted radius, pads every query
}

// NewSpatialGrid creates a grid over the given XY extent.
// maxEntities is used to preallocate cell capacity.
func NewSpatialGrid(minX, minY, maxX, maxY, cellSize float64, maxEntities int) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	cols := int(math.Ceil((maxX - minX) / cellSize))
	rows := int(math.Ceil((maxY - minY) / cellSize))

	// Ensure at least 1x1 grid
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	avgPerCell := maxEntities / len(cells)
	if avgPerCell < 4 {
		avgPerCell = 4
	}
	for i := range cells {
		cells[i] = make([]uint32, 0, avgPerCell)
	}

	return &SpatialGrid{
		originX:     minX,
		originY:     minY,
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 64),
	}
}

// Clear resets all cells without deallocating underlying memory.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0] // Keep capacity, reset length
	}
	g.maxRadius = 0
}

// Insert adds an entity centered at (x, y) with radius r.
// The entityID should be the index into your entity slice.
func (g *SpatialGrid) Insert(entityID uint32, x, y, r float64) {
	idx := g.cellIndex(x, y)
	g.cells[idx] = append(g.cells[idx], entityID)
	if r > g.maxRadius {
		g.maxRadius = r
	}
}

func (g *SpatialGrid) col(x float64) int {
	c := int(math.Floor((x - g.originX) * g.invCellSize))
	return min(max(c, 0), g.cols-1)
}

func (g *SpatialGrid) row(y float64) int {
	r := int(math.Floor((y - g.originY) * g.invCellSize))
	return min(max(r, 0), g.rows-1)
}

// cellIndex computes the clamped cell index for a position.
func (g *SpatialGrid) cellIndex(x, y float64) int {
	return g.row(y)*g.cols + g.col(x)
}

// QueryRadius returns the IDs of every entity whose sphere could touch a
// sphere of the given radius at (cx, cy), in ascending ID order.
//
// IMPORTANT: The returned slice is reused on subsequent calls.
// Copy the results if you need to persist them.
//
// Candidates may lie outside the radius; the caller must perform the
// precise overlap check (narrow phase).
func (g *SpatialGrid) QueryRadius(cx, cy, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	reach := radius + g.maxRadius
	minCol, maxCol := g.col(cx-reach), g.col(cx+reach)
	minRow, maxRow := g.row(cy-reach), g.row(cy+reach)

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}

	// Callers rely on arena order to pick the first hit deterministically.
	slices.Sort(g.scratch)
	return g.scratch
}

// Stats returns occupancy figures for /api/stats and profiling.
func (g *SpatialGrid) Stats() GridStats {
	var totalEntities, maxInCell, nonEmpty int
	for _, cell := range g.cells {
		count := len(cell)
		totalEntities += count
		if count > maxInCell {
			maxInCell = count
		}
		if count > 0 {
			nonEmpty++
		}
	}

	avgPerCell := 0.0
	if nonEmpty > 0 {
		avgPerCell = float64(totalEntities) / float64(nonEmpty)
	}

	return GridStats{
		Cols:           g.cols,
		Rows:           g.rows,
		CellSize:       g.cellSize,
		NonEmptyCells:  nonEmpty,
		TotalEntities:  totalEntities,
		MaxInCell:      maxInCell,
		AvgPerNonEmpty: avgPerCell,
	}
}

// GridStats describes grid shape and occupancy.
type GridStats struct {
	Cols           int     `json:"cols"`
	Rows           int     `json:"rows"`
	CellSize       float64 `json:"cellSize"`
	NonEmptyCells  int     `json:"nonEmptyCells"`
	TotalEntities  int     `json:"totalEntities"`
	MaxInCell      int     `json:"maxInCell"`
	AvgPerNonEmpty float64 `json:"avgPerNonEmpty"`
}
