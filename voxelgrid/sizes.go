package voxelgrid

import (
	"errors"
	"fmt"
	"math"

	"github.com/seqsense/pcgol/mat"
)

var (
	// ErrInvalidSizes is returned when a grid sizing has a non-positive
	// cell size or non-positive cell counts.
	ErrInvalidSizes = errors.New("cell size and cell counts must be positive")
	// ErrInvalidIndex is returned by mutable accesses to an out-of-bounds
	// index.
	ErrInvalidIndex = errors.New("index out of grid bounds")
)

// GridIndex addresses a single cell of a grid.
type GridIndex struct {
	X, Y, Z int64
}

func (i GridIndex) String() string {
	return fmt.Sprintf("(%d,%d,%d)", i.X, i.Y, i.Z)
}

// GridSizes describes an axis-aligned grid of uniform cubic cells.
type GridSizes struct {
	cellSize    float32
	invCellSize float32
	numX        int64
	numY        int64
	numZ        int64
}

// NewGridSizes builds a sizing of numX*numY*numZ cells of cellSize edge
// length.
func NewGridSizes(cellSize float32, numX, numY, numZ int64) (GridSizes, error) {
	if cellSize <= 0 || numX <= 0 || numY <= 0 || numZ <= 0 {
		return GridSizes{}, ErrInvalidSizes
	}
	return GridSizes{
		cellSize:    cellSize,
		invCellSize: 1 / cellSize,
		numX:        numX,
		numY:        numY,
		numZ:        numZ,
	}, nil
}

func (s GridSizes) CellSize() float32 {
	return s.cellSize
}

func (s GridSizes) InvCellSize() float32 {
	return s.invCellSize
}

func (s GridSizes) NumX() int64 { return s.numX }
func (s GridSizes) NumY() int64 { return s.numY }
func (s GridSizes) NumZ() int64 { return s.numZ }

func (s GridSizes) TotalCells() int64 {
	return s.numX * s.numY * s.numZ
}

func (s GridSizes) Contains(i GridIndex) bool {
	return i.X >= 0 && i.X < s.numX &&
		i.Y >= 0 && i.Y < s.numY &&
		i.Z >= 0 && i.Z < s.numZ
}

// Addr linearizes an index as X + numX*(Y + numY*Z).
func (s GridSizes) Addr(i GridIndex) (int64, bool) {
	if !s.Contains(i) {
		return 0, false
	}
	return i.X + s.numX*(i.Y+s.numY*i.Z), true
}

// IndexOf returns the index of the cell containing a grid-frame location.
// The floor rounds toward negative infinity, so locations below the grid
// origin produce negative indices usable for bounds checks.
func (s GridSizes) IndexOf(p mat.Vec3) GridIndex {
	return GridIndex{
		X: int64(math.Floor(float64(p[0] * s.invCellSize))),
		Y: int64(math.Floor(float64(p[1] * s.invCellSize))),
		Z: int64(math.Floor(float64(p[2] * s.invCellSize))),
	}
}

// CenterOf returns the grid-frame location of the center of a cell.
func (s GridSizes) CenterOf(i GridIndex) mat.Vec3 {
	return mat.Vec3{
		(float32(i.X) + 0.5) * s.cellSize,
		(float32(i.Y) + 0.5) * s.cellSize,
		(float32(i.Z) + 0.5) * s.cellSize,
	}
}
