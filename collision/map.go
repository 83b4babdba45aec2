package collision

import (
	"errors"
	"sync/atomic"

	"github.com/seqsense/pcgol/mat"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/voxelgrid"
)

// ErrComponentsInvalid is returned by operations that require up-to-date
// connected components while the map has been mutated since the last
// labelling pass.
var ErrComponentsInvalid = errors.New("connected components are not valid")

// Map is a dense occupancy grid with per-cell connected component ids.
// Any mutation through the grid interface invalidates the components until
// UpdateConnectedComponents (or ForceComponentsValid) runs again.
type Map struct {
	*voxelgrid.Grid[Cell]

	frame           string
	numComponents   uint32
	componentsValid atomic.Bool
}

// NewMap builds a map placed at origin, using def both as the initial cell
// value and as the out-of-bounds sentinel.
func NewMap(origin mat.Mat4, frame string, sizes voxelgrid.GridSizes, def Cell) *Map {
	return NewMapWithOOB(origin, frame, sizes, def, def)
}

// NewMapWithOOB builds a map with distinct default and out-of-bounds cells.
func NewMapWithOOB(origin mat.Mat4, frame string, sizes voxelgrid.GridSizes, def, oob Cell) *Map {
	m := &Map{
		Grid:  voxelgrid.New(origin, sizes, def, oob),
		frame: frame,
	}
	m.installHooks()
	return m
}

func (m *Map) installHooks() {
	m.Grid.SetMutationHooks(
		func(voxelgrid.GridIndex) bool {
			m.componentsValid.Store(false)
			return true
		},
		func() bool {
			m.componentsValid.Store(false)
			return true
		},
	)
}

// Resolution is the uniform cell edge length.
func (m *Map) Resolution() float32 {
	return m.Sizes().CellSize()
}

func (m *Map) Frame() string {
	return m.frame
}

func (m *Map) SetFrame(frame string) {
	m.frame = frame
}

func (m *Map) AreComponentsValid() bool {
	return m.componentsValid.Load()
}

// ForceComponentsValid marks the stored components as current. Use only
// when the caller knows a mutation preserved them.
func (m *Map) ForceComponentsValid() {
	m.componentsValid.Store(true)
}

func (m *Map) ForceComponentsInvalid() {
	m.componentsValid.Store(false)
}

// NumConnectedComponents returns the component count from the last
// labelling pass, or ok=false if the components are invalid.
func (m *Map) NumConnectedComponents() (uint32, bool) {
	if !m.componentsValid.Load() {
		return 0, false
	}
	return m.numComponents, true
}

// Clone deep-copies the map. The clone invalidates its own components on
// mutation, independently of the original.
func (m *Map) Clone() *Map {
	clone := &Map{
		Grid:          m.Grid.Clone(),
		frame:         m.frame,
		numComponents: m.numComponents,
	}
	clone.componentsValid.Store(m.componentsValid.Load())
	clone.installHooks()
	return clone
}

// IsFilled reports whether the cell at i is occupied, optionally counting
// unknown cells as filled. ok is false for out-of-bounds indices.
func (m *Map) IsFilled(i voxelgrid.GridIndex, unknownIsFilled bool) (filled, ok bool) {
	cell, ok := m.Query(i)
	if !ok {
		return false, false
	}
	occupancy := cell.Occupancy()
	if occupancy > 0.5 {
		return true, true
	}
	if unknownIsFilled && occupancy == 0.5 {
		return true, true
	}
	return false, true
}

var faceNeighborOffsets = [6]voxelgrid.GridIndex{
	{X: -1}, {X: 1},
	{Y: -1}, {Y: 1},
	{Z: -1}, {Z: 1},
}

// IsSurfaceIndex reports whether any face-neighbor of the cell at i has a
// different occupancy class. Out-of-bounds neighbors count as a distinct
// class. ok is false for out-of-bounds indices.
func (m *Map) IsSurfaceIndex(i voxelgrid.GridIndex) (surface, ok bool) {
	cell, ok := m.Query(i)
	if !ok {
		return false, false
	}
	class := ClassOf(cell.Occupancy())
	for _, d := range faceNeighborOffsets {
		n := voxelgrid.GridIndex{X: i.X + d.X, Y: i.Y + d.Y, Z: i.Z + d.Z}
		ncell, ok := m.Query(n)
		if !ok || ClassOf(ncell.Occupancy()) != class {
			return true, true
		}
	}
	return false, true
}

// IsConnectedComponentSurfaceIndex reports whether any face-neighbor of
// the cell at i carries a different component id. Out-of-bounds neighbors
// count as id 0. ok is false while components are invalid or for
// out-of-bounds indices.
func (m *Map) IsConnectedComponentSurfaceIndex(i voxelgrid.GridIndex) (surface, ok bool) {
	if !m.componentsValid.Load() {
		return false, false
	}
	cell, ok := m.Query(i)
	if !ok {
		return false, false
	}
	component := cell.Component()
	for _, d := range faceNeighborOffsets {
		n := voxelgrid.GridIndex{X: i.X + d.X, Y: i.Y + d.Y, Z: i.Z + d.Z}
		if m.componentAt(n) != component {
			return true, true
		}
	}
	return false, true
}

// componentAt is the component id of the cell at i, 0 for out-of-bounds.
func (m *Map) componentAt(i voxelgrid.GridIndex) uint32 {
	cell, ok := m.Query(i)
	if !ok {
		return 0
	}
	return cell.Component()
}

// CheckIfCandidateCorner reports whether the cell at i touches component
// boundaries along at least two axes, making its corners candidates for
// corner-like surface features. ok is false while components are invalid
// or for out-of-bounds indices.
func (m *Map) CheckIfCandidateCorner(i voxelgrid.GridIndex) (candidate, ok bool) {
	if !m.componentsValid.Load() {
		return false, false
	}
	cell, ok := m.Query(i)
	if !ok {
		return false, false
	}
	component := cell.Component()
	differingAxes := 0
	for axis := 0; axis < 3; axis++ {
		neg := faceNeighborOffsets[axis*2]
		pos := faceNeighborOffsets[axis*2+1]
		lo := voxelgrid.GridIndex{X: i.X + neg.X, Y: i.Y + neg.Y, Z: i.Z + neg.Z}
		hi := voxelgrid.GridIndex{X: i.X + pos.X, Y: i.Y + pos.Y, Z: i.Z + pos.Z}
		if m.componentAt(lo) != component || m.componentAt(hi) != component {
			differingAxes++
		}
	}
	return differingAxes >= 2, true
}

// CheckIfCandidateCornerGridFrame evaluates CheckIfCandidateCorner for the
// cell containing a grid-frame location.
func (m *Map) CheckIfCandidateCornerGridFrame(p mat.Vec3) (candidate, ok bool) {
	return m.CheckIfCandidateCorner(m.Sizes().IndexOf(p))
}

// CheckIfCandidateCornerWorld evaluates CheckIfCandidateCorner for the
// cell containing a world location.
func (m *Map) CheckIfCandidateCornerWorld(p mat.Vec3) (candidate, ok bool) {
	return m.CheckIfCandidateCorner(m.WorldIndexOf(p))
}
