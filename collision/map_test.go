package collision

import (
	"testing"

	"github.com/seqsense/pcgol/mat"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/voxelgrid"
)

func newTestMap(t *testing.T, nx, ny, nz int64, defaultOccupancy float32) *Map {
	t.Helper()
	sizes, err := voxelgrid.NewGridSizes(1, nx, ny, nz)
	if err != nil {
		t.Fatal(err)
	}
	return NewMap(mat.Translate(0, 0, 0), "world", sizes, NewCell(defaultOccupancy))
}

func fill(t *testing.T, m *Map, indices []voxelgrid.GridIndex, occupancy float32) {
	t.Helper()
	for _, i := range indices {
		if err := m.Set(i, NewCell(occupancy)); err != nil {
			t.Fatal(err)
		}
	}
}

func TestMap_ComponentsInvalidation(t *testing.T) {
	m := newTestMap(t, 3, 3, 3, 0)

	if _, ok := m.NumConnectedComponents(); ok {
		t.Error("Expected components to start invalid")
	}
	if k := m.UpdateConnectedComponents(); k != 1 {
		t.Errorf("Expected 1 component, got: %d", k)
	}
	if k, ok := m.NumConnectedComponents(); !ok || k != 1 {
		t.Errorf("Expected valid count 1, got: %d (ok=%v)", k, ok)
	}

	// Indexed write invalidates.
	if err := m.Set(voxelgrid.GridIndex{1, 1, 1}, NewCell(1)); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.NumConnectedComponents(); ok {
		t.Error("Expected mutation to invalidate components")
	}

	m.UpdateConnectedComponents()
	// Raw mutable access invalidates too.
	m.MutableRawData()
	if _, ok := m.NumConnectedComponents(); ok {
		t.Error("Expected raw access to invalidate components")
	}

	m.ForceComponentsValid()
	if _, ok := m.NumConnectedComponents(); !ok {
		t.Error("Expected force-valid to restore validity")
	}
	m.ForceComponentsInvalid()
	if _, ok := m.NumConnectedComponents(); ok {
		t.Error("Expected force-invalid to clear validity")
	}
}

func TestMap_IsSurfaceIndex(t *testing.T) {
	m := newTestMap(t, 5, 5, 5, 0)
	fill(t, m, []voxelgrid.GridIndex{
		{1, 1, 1}, {2, 1, 1}, {1, 2, 1}, {2, 2, 1},
		{1, 1, 2}, {2, 1, 2}, {1, 2, 2}, {2, 2, 2},
	}, 1)

	// A filled cell of the block touches empty neighbors.
	if surface, ok := m.IsSurfaceIndex(voxelgrid.GridIndex{1, 1, 1}); !ok || !surface {
		t.Errorf("Expected (1,1,1) to be a surface index, got: %v (ok=%v)", surface, ok)
	}
	// An empty cell far from the block is interior to the empty region...
	if surface, ok := m.IsSurfaceIndex(voxelgrid.GridIndex{3, 3, 3}); !ok || surface {
		t.Errorf("Expected (3,3,3) not to be a surface index, got: %v (ok=%v)", surface, ok)
	}
	// ...but boundary cells are surface: OOB neighbors count as a
	// distinct class.
	if surface, ok := m.IsSurfaceIndex(voxelgrid.GridIndex{4, 3, 3}); !ok || !surface {
		t.Errorf("Expected (4,3,3) to be a surface index, got: %v (ok=%v)", surface, ok)
	}
	if _, ok := m.IsSurfaceIndex(voxelgrid.GridIndex{5, 0, 0}); ok {
		t.Error("Expected OOB index to be rejected")
	}
}

func TestMap_IsConnectedComponentSurfaceIndex(t *testing.T) {
	m := newTestMap(t, 5, 5, 5, 0)
	fill(t, m, []voxelgrid.GridIndex{{2, 2, 2}}, 1)

	if _, ok := m.IsConnectedComponentSurfaceIndex(voxelgrid.GridIndex{2, 2, 2}); ok {
		t.Error("Expected invalid components to be rejected")
	}
	m.UpdateConnectedComponents()
	if surface, ok := m.IsConnectedComponentSurfaceIndex(voxelgrid.GridIndex{2, 2, 2}); !ok || !surface {
		t.Errorf("Expected (2,2,2) to be a component surface index, got: %v (ok=%v)", surface, ok)
	}
	// Grid boundary cells neighbor component id 0 outside the grid.
	if surface, ok := m.IsConnectedComponentSurfaceIndex(voxelgrid.GridIndex{0, 0, 0}); !ok || !surface {
		t.Errorf("Expected (0,0,0) to be a component surface index, got: %v (ok=%v)", surface, ok)
	}
}

func TestMap_CheckIfCandidateCorner(t *testing.T) {
	m := newTestMap(t, 5, 5, 5, 0)
	fill(t, m, []voxelgrid.GridIndex{
		{1, 1, 1}, {2, 1, 1}, {1, 2, 1}, {2, 2, 1},
		{1, 1, 2}, {2, 1, 2}, {1, 2, 2}, {2, 2, 2},
	}, 1)

	if _, ok := m.CheckIfCandidateCorner(voxelgrid.GridIndex{1, 1, 1}); ok {
		t.Error("Expected invalid components to be rejected")
	}
	m.UpdateConnectedComponents()

	// A block corner differs along all three axes.
	if candidate, ok := m.CheckIfCandidateCorner(voxelgrid.GridIndex{1, 1, 1}); !ok || !candidate {
		t.Errorf("Expected (1,1,1) to be a candidate corner, got: %v (ok=%v)", candidate, ok)
	}
	// An empty cell deep inside its component differs along no axis.
	if candidate, ok := m.CheckIfCandidateCorner(voxelgrid.GridIndex{3, 3, 3}); !ok || candidate {
		t.Errorf("Expected (3,3,3) not to be a candidate corner, got: %v (ok=%v)", candidate, ok)
	}

	// World and grid-frame forms address the containing cell.
	if candidate, ok := m.CheckIfCandidateCornerWorld(mat.Vec3{1.5, 1.5, 1.5}); !ok || !candidate {
		t.Errorf("Expected world location in (1,1,1) to be a candidate corner, got: %v (ok=%v)", candidate, ok)
	}
	if candidate, ok := m.CheckIfCandidateCornerGridFrame(mat.Vec3{3.5, 3.5, 3.5}); !ok || candidate {
		t.Errorf("Expected grid-frame location in (3,3,3) not to be a candidate corner, got: %v (ok=%v)", candidate, ok)
	}
}

func TestMap_Clone(t *testing.T) {
	m := newTestMap(t, 3, 3, 3, 0)
	fill(t, m, []voxelgrid.GridIndex{{0, 0, 0}}, 1)
	m.UpdateConnectedComponents()

	c := m.Clone()
	if c.Frame() != "world" || c.Resolution() != 1 {
		t.Errorf("Expected clone to carry frame and resolution, got: %q, %f", c.Frame(), c.Resolution())
	}
	if k, ok := c.NumConnectedComponents(); !ok || k != 2 {
		t.Errorf("Expected clone to carry 2 valid components, got: %d (ok=%v)", k, ok)
	}

	// Clone mutation must not touch the original, nor its validity.
	if err := c.Set(voxelgrid.GridIndex{1, 1, 1}, NewCell(1)); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.NumConnectedComponents(); !ok {
		t.Error("Expected original to stay valid after clone mutation")
	}
	if _, ok := c.NumConnectedComponents(); ok {
		t.Error("Expected clone to be invalidated by its own mutation")
	}
	cell := m.At(voxelgrid.GridIndex{1, 1, 1})
	if cell.Occupancy() != 0 {
		t.Errorf("Expected original cell to be unchanged, got: %f", cell.Occupancy())
	}
}

func TestMap_IsFilled(t *testing.T) {
	m := newTestMap(t, 2, 1, 1, 0.5)
	fill(t, m, []voxelgrid.GridIndex{{0, 0, 0}}, 1)

	if filled, ok := m.IsFilled(voxelgrid.GridIndex{0, 0, 0}, false); !ok || !filled {
		t.Errorf("Expected filled cell, got: %v (ok=%v)", filled, ok)
	}
	if filled, ok := m.IsFilled(voxelgrid.GridIndex{1, 0, 0}, false); !ok || filled {
		t.Errorf("Expected unknown cell not to be filled, got: %v (ok=%v)", filled, ok)
	}
	if filled, ok := m.IsFilled(voxelgrid.GridIndex{1, 0, 0}, true); !ok || !filled {
		t.Errorf("Expected unknown cell to be filled with unknownIsFilled, got: %v (ok=%v)", filled, ok)
	}
	if _, ok := m.IsFilled(voxelgrid.GridIndex{2, 0, 0}, false); ok {
		t.Error("Expected OOB index to be rejected")
	}
}
