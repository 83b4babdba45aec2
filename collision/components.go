package collision

import (
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/topology"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/voxelgrid"
)

// UpdateConnectedComponents labels 6-connected components of equal
// occupancy class, writes the ids into the cells, marks the components
// valid, and returns the component count.
func (m *Map) UpdateConnectedComponents() uint32 {
	sizes := m.Sizes()
	data := m.RawData()

	classAt := func(addr int64) OccupancyClass {
		return ClassOf(data[addr].Occupancy())
	}
	areConnected := func(a, b voxelgrid.GridIndex) bool {
		aa, ok := sizes.Addr(a)
		if !ok {
			return false
		}
		ba, ok := sizes.Addr(b)
		if !ok {
			return false
		}
		return classAt(aa) == classAt(ba)
	}
	getComponent := func(i voxelgrid.GridIndex) uint32 {
		addr, ok := sizes.Addr(i)
		if !ok {
			return 0
		}
		return data[addr].Component()
	}
	markComponent := func(i voxelgrid.GridIndex, component uint32) {
		addr, ok := sizes.Addr(i)
		if !ok {
			return
		}
		data[addr].SetComponent(component)
	}

	m.numComponents = topology.ComputeConnectedComponents(
		sizes, areConnected, getComponent, markComponent)
	m.componentsValid.Store(true)
	return m.numComponents
}

// ExtractComponentSurfaces collects the component-surface cells of every
// component whose occupancy class is selected by the mask. Fails with
// ErrComponentsInvalid unless components are valid.
func (m *Map) ExtractComponentSurfaces(mask ComponentTypes) (map[uint32]map[voxelgrid.GridIndex]uint8, error) {
	if !m.componentsValid.Load() {
		return nil, ErrComponentsInvalid
	}
	isSurfaceIndex := func(i voxelgrid.GridIndex) bool {
		cell, ok := m.Query(i)
		if !ok || !mask.includes(ClassOf(cell.Occupancy())) {
			return false
		}
		surface, _ := m.IsConnectedComponentSurfaceIndex(i)
		return surface
	}
	return topology.ExtractComponentSurfaces(m.Sizes(), m.componentAt, isSurfaceIndex), nil
}

// ExtractFilledComponentSurfaces extracts surfaces of filled components.
func (m *Map) ExtractFilledComponentSurfaces() (map[uint32]map[voxelgrid.GridIndex]uint8, error) {
	return m.ExtractComponentSurfaces(FilledComponents)
}

// ExtractEmptyComponentSurfaces extracts surfaces of empty components.
func (m *Map) ExtractEmptyComponentSurfaces() (map[uint32]map[voxelgrid.GridIndex]uint8, error) {
	return m.ExtractComponentSurfaces(EmptyComponents)
}

// ExtractUnknownComponentSurfaces extracts surfaces of unknown components.
func (m *Map) ExtractUnknownComponentSurfaces() (map[uint32]map[voxelgrid.GridIndex]uint8, error) {
	return m.ExtractComponentSurfaces(UnknownComponents)
}

// ComputeComponentTopology computes holes and voids for every component
// selected by the mask. Fails with ErrComponentsInvalid unless components
// are valid.
func (m *Map) ComputeComponentTopology(mask ComponentTypes, logf topology.LogFunc) (map[uint32]topology.HolesAndVoids, error) {
	surfaces, err := m.ExtractComponentSurfaces(mask)
	if err != nil {
		return nil, err
	}
	invariants := make(map[uint32]topology.HolesAndVoids, len(surfaces))
	for component, surface := range surfaces {
		invariants[component] = topology.ComputeHolesAndVoidsInSurface(
			component, surface, m.componentAt, logf)
	}
	return invariants, nil
}
