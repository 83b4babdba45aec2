// Package topology labels face-connected components of a voxel grid and
// derives topological invariants (holes and voids) from component
// surfaces. The algorithms are parameterized by callbacks so the same
// machinery labels occupancy classes or any user-defined partition.
package topology

import (
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/voxelgrid"
)

const initialQueueCap = 8192

var faceNeighborOffsets = [6]voxelgrid.GridIndex{
	{X: -1}, {X: 1},
	{Y: -1}, {Y: 1},
	{Z: -1}, {Z: 1},
}

// ComputeConnectedComponents resets every cell's component to 0, then
// sweeps the grid in linearization order assigning ids starting at 1 and
// flood-filling through face neighbors for which areConnected holds.
// getComponent must return 0 for unmarked and out-of-bounds cells. The
// returned count is the number of equivalence classes.
func ComputeConnectedComponents(
	sizes voxelgrid.GridSizes,
	areConnected func(a, b voxelgrid.GridIndex) bool,
	getComponent func(voxelgrid.GridIndex) uint32,
	markComponent func(voxelgrid.GridIndex, uint32),
) uint32 {
	forEachIndex(sizes, func(i voxelgrid.GridIndex) {
		markComponent(i, 0)
	})

	totalCells := sizes.TotalCells()
	var markedCells int64
	var components uint32
	for z := int64(0); z < sizes.NumZ(); z++ {
		for y := int64(0); y < sizes.NumY(); y++ {
			for x := int64(0); x < sizes.NumX(); x++ {
				i := voxelgrid.GridIndex{X: x, Y: y, Z: z}
				if getComponent(i) != 0 {
					continue
				}
				components++
				markedCells += markConnectedComponent(
					sizes, areConnected, getComponent, markComponent, i, components)
				if markedCells == totalCells {
					return components
				}
			}
		}
	}
	return components
}

// markConnectedComponent BFS-fills one component from start and returns
// the number of cells marked.
func markConnectedComponent(
	sizes voxelgrid.GridSizes,
	areConnected func(a, b voxelgrid.GridIndex) bool,
	getComponent func(voxelgrid.GridIndex) uint32,
	markComponent func(voxelgrid.GridIndex, uint32),
	start voxelgrid.GridIndex,
	component uint32,
) int64 {
	// Components tend to take a small fraction of the grid; hint the
	// visited set at 1/32 of the cell count.
	queued := make(map[voxelgrid.GridIndex]struct{}, sizes.TotalCells()/32+1)
	queue := make([]voxelgrid.GridIndex, 0, initialQueueCap)
	queue = append(queue, start)
	queued[start] = struct{}{}

	var marked int64
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		markComponent(cur, component)
		marked++
		for _, d := range faceNeighborOffsets {
			n := voxelgrid.GridIndex{X: cur.X + d.X, Y: cur.Y + d.Y, Z: cur.Z + d.Z}
			if getComponent(n) != 0 {
				continue
			}
			if !areConnected(cur, n) {
				continue
			}
			if _, ok := queued[n]; ok {
				continue
			}
			queued[n] = struct{}{}
			queue = append(queue, n)
		}
	}
	return marked
}

// ExtractComponentSurfaces collects, per component id, the set of cells
// for which isSurfaceIndex holds.
func ExtractComponentSurfaces(
	sizes voxelgrid.GridSizes,
	getComponent func(voxelgrid.GridIndex) uint32,
	isSurfaceIndex func(voxelgrid.GridIndex) bool,
) map[uint32]map[voxelgrid.GridIndex]uint8 {
	surfaces := make(map[uint32]map[voxelgrid.GridIndex]uint8)
	forEachIndex(sizes, func(i voxelgrid.GridIndex) {
		if !isSurfaceIndex(i) {
			return
		}
		component := getComponent(i)
		surface, ok := surfaces[component]
		if !ok {
			surface = make(map[voxelgrid.GridIndex]uint8)
			surfaces[component] = surface
		}
		surface[i] = 1
	})
	return surfaces
}

func forEachIndex(sizes voxelgrid.GridSizes, fn func(voxelgrid.GridIndex)) {
	for z := int64(0); z < sizes.NumZ(); z++ {
		for y := int64(0); y < sizes.NumY(); y++ {
			for x := int64(0); x < sizes.NumX(); x++ {
				fn(voxelgrid.GridIndex{X: x, Y: y, Z: z})
			}
		}
	}
}

// ExtractStaticSurface flattens a surface set into a vector of indices,
// for contexts needing a 1-dimensional index into the surface.
func ExtractStaticSurface(raw map[voxelgrid.GridIndex]uint8) []voxelgrid.GridIndex {
	static := make([]voxelgrid.GridIndex, 0, len(raw))
	for i, v := range raw {
		if v == 1 {
			static = append(static, i)
		}
	}
	return static
}

// ConvertToDynamicSurface rebuilds the set form of a flattened surface.
func ConvertToDynamicSurface(static []voxelgrid.GridIndex) map[voxelgrid.GridIndex]uint8 {
	dynamic := make(map[voxelgrid.GridIndex]uint8, len(static))
	for _, i := range static {
		dynamic[i] = 1
	}
	return dynamic
}

// BuildSurfaceIndexMap maps each surface index to its position in the
// flattened surface.
func BuildSurfaceIndexMap(static []voxelgrid.GridIndex) map[voxelgrid.GridIndex]int {
	indexMap := make(map[voxelgrid.GridIndex]int, len(static))
	for pos, i := range static {
		indexMap[i] = pos
	}
	return indexMap
}
