package topology

import (
	"math/bits"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/voxelgrid"
)

// HolesAndVoids are the per-component topological invariants beyond the
// component count itself: the number of holes (non-contractible loops,
// Betti number 1) and the number of voids (enclosed cavities, Betti
// number 2).
type HolesAndVoids struct {
	NumHoles int32
	NumVoids int32
}

// LogFunc receives progress messages from the topology engine. A nil
// LogFunc disables logging.
type LogFunc func(format string, args ...interface{})

// Exposed-edge mask bits of a surface vertex, one per axis-aligned edge
// incident to the vertex.
const (
	edgeZNeg uint8 = 1 << iota
	edgeZPos
	edgeYNeg
	edgeYPos
	edgeXNeg
	edgeXPos
)

var edgeDirections = [6]struct {
	bit    uint8
	offset voxelgrid.GridIndex
}{
	{edgeZNeg, voxelgrid.GridIndex{Z: -1}},
	{edgeZPos, voxelgrid.GridIndex{Z: 1}},
	{edgeYNeg, voxelgrid.GridIndex{Y: -1}},
	{edgeYPos, voxelgrid.GridIndex{Y: 1}},
	{edgeXNeg, voxelgrid.GridIndex{X: -1}},
	{edgeXPos, voxelgrid.GridIndex{X: 1}},
}

// ComputeHolesAndVoidsInSurface computes the invariants of one component
// surface. surface holds the component's surface voxels, and getComponent
// must return the component id of any index (0 outside the grid).
//
// The hole count uses the closed-form from Chen and Rong, "Linear Time
// Recognition Algorithms for Topological Invariants in 3D":
//
//	#holes = 1 + (M5 + 2*M6 - M3) / 8
//
// where Mk is the number of surface vertices with k exposed edges. The
// formula holds on a single closed surface; every additional disconnected
// sub-surface indicates an enclosed void and contributes one hole, so the
// final count is raw holes + voids.
func ComputeHolesAndVoidsInSurface(
	component uint32,
	surface map[voxelgrid.GridIndex]uint8,
	getComponent func(voxelgrid.GridIndex) uint32,
	logf LogFunc,
) HolesAndVoids {
	surfaceVertices := extractSurfaceVertices(component, surface, getComponent)
	if logf != nil {
		logf("surface with %d voxels has %d surface vertices",
			len(surface), len(surfaceVertices))
	}

	// Count the exposed edges of every surface vertex and tally the
	// vertices with 3, 5, and 6 of them.
	var m3, m5, m6 int32
	vertexConnectivity := make(map[voxelgrid.GridIndex]uint8, len(surfaceVertices))
	for v := range surfaceVertices {
		mask := exposedEdgeMask(component, v, getComponent)
		vertexConnectivity[v] = mask
		switch bits.OnesCount8(mask) {
		case 3:
			m3++
		case 5:
			m5++
		case 6:
			m6++
		}
	}

	numSurfaces := computeConnectivityOfSurfaceVertices(vertexConnectivity)
	numVoids := numSurfaces - 1
	rawHoles := 1 + (m5+2*m6-m3)/8
	holes := rawHoles + numVoids
	if logf != nil {
		logf("M3=%d M5=%d M6=%d holes=%d surfaces=%d voids=%d",
			m3, m5, m6, holes, numSurfaces, numVoids)
	}
	return HolesAndVoids{NumHoles: holes, NumVoids: numVoids}
}

// extractSurfaceVertices converts each surface voxel into its 8 corner
// vertices and keeps the corners that actually lie on the component
// surface: at least one of the three voxels sharing the corner along
// face-adjacent axes is outside the component.
func extractSurfaceVertices(
	component uint32,
	surface map[voxelgrid.GridIndex]uint8,
	getComponent func(voxelgrid.GridIndex) uint32,
) map[voxelgrid.GridIndex]uint8 {
	vertices := make(map[voxelgrid.GridIndex]uint8, len(surface)*8)
	for i := range surface {
		axisNeighbors := [3][2]uint32{
			{
				getComponent(voxelgrid.GridIndex{X: i.X - 1, Y: i.Y, Z: i.Z}),
				getComponent(voxelgrid.GridIndex{X: i.X + 1, Y: i.Y, Z: i.Z}),
			},
			{
				getComponent(voxelgrid.GridIndex{X: i.X, Y: i.Y - 1, Z: i.Z}),
				getComponent(voxelgrid.GridIndex{X: i.X, Y: i.Y + 1, Z: i.Z}),
			},
			{
				getComponent(voxelgrid.GridIndex{X: i.X, Y: i.Y, Z: i.Z - 1}),
				getComponent(voxelgrid.GridIndex{X: i.X, Y: i.Y, Z: i.Z + 1}),
			},
		}
		for dx := int64(0); dx <= 1; dx++ {
			for dy := int64(0); dy <= 1; dy++ {
				for dz := int64(0); dz <= 1; dz++ {
					if component != axisNeighbors[0][dx] ||
						component != axisNeighbors[1][dy] ||
						component != axisNeighbors[2][dz] {
						vertices[voxelgrid.GridIndex{
							X: i.X + dx, Y: i.Y + dy, Z: i.Z + dz,
						}] = 1
					}
				}
			}
		}
	}
	return vertices
}

// exposedEdgeMask checks the six edges incident to a surface vertex. An
// edge is exposed iff the four voxels around it straddle the component
// surface: neither all inside nor all outside the component.
func exposedEdgeMask(
	component uint32,
	v voxelgrid.GridIndex,
	getComponent func(voxelgrid.GridIndex) uint32,
) uint8 {
	// The 8 voxels surrounding the vertex, indexed by {-1,0} offsets.
	var inComponent [2][2][2]bool
	for dx := int64(0); dx <= 1; dx++ {
		for dy := int64(0); dy <= 1; dy++ {
			for dz := int64(0); dz <= 1; dz++ {
				c := getComponent(voxelgrid.GridIndex{
					X: v.X - 1 + dx, Y: v.Y - 1 + dy, Z: v.Z - 1 + dz,
				})
				inComponent[dx][dy][dz] = c == component
			}
		}
	}

	edgeVoxels := func(axis int, side int64) (inside int) {
		for a := int64(0); a <= 1; a++ {
			for b := int64(0); b <= 1; b++ {
				var dx, dy, dz int64
				switch axis {
				case 0:
					dx, dy, dz = side, a, b
				case 1:
					dx, dy, dz = a, side, b
				default:
					dx, dy, dz = a, b, side
				}
				if inComponent[dx][dy][dz] {
					inside++
				}
			}
		}
		return inside
	}

	var mask uint8
	for axis, axisBits := range [3][2]uint8{
		{edgeXNeg, edgeXPos},
		{edgeYNeg, edgeYPos},
		{edgeZNeg, edgeZPos},
	} {
		for side := int64(0); side <= 1; side++ {
			if inside := edgeVoxels(axis, side); inside > 0 && inside < 4 {
				mask |= axisBits[side]
			}
		}
	}
	return mask
}

// computeConnectivityOfSurfaceVertices counts the connected pieces of the
// surface-vertex graph whose edges are the exposed edges recorded in each
// vertex's mask.
func computeConnectivityOfSurfaceVertices(
	vertexConnectivity map[voxelgrid.GridIndex]uint8,
) int32 {
	var components int32
	processed := 0
	vertexComponents := make(map[voxelgrid.GridIndex]int32, len(vertexConnectivity))
	for start := range vertexConnectivity {
		if vertexComponents[start] > 0 {
			continue
		}
		components++
		queued := make(map[voxelgrid.GridIndex]struct{}, len(vertexConnectivity))
		queue := make([]voxelgrid.GridIndex, 0, initialQueueCap)
		queue = append(queue, start)
		queued[start] = struct{}{}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			vertexComponents[cur] = components
			processed++
			connectivity := vertexConnectivity[cur]
			for _, e := range edgeDirections {
				if connectivity&e.bit == 0 {
					continue
				}
				n := voxelgrid.GridIndex{
					X: cur.X + e.offset.X,
					Y: cur.Y + e.offset.Y,
					Z: cur.Z + e.offset.Z,
				}
				if _, exists := vertexConnectivity[n]; !exists {
					continue
				}
				if _, ok := queued[n]; ok {
					continue
				}
				queued[n] = struct{}{}
				queue = append(queue, n)
			}
		}
		if processed == len(vertexConnectivity) {
			break
		}
	}
	return components
}
