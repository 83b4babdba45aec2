package collision

import (
	"math"
	"testing"

	"github.com/seqsense/pcgol/mat"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/voxelgrid"
)

// sphereMap builds a discrete solid sphere of the given radius centered
// at (c,c,c).
func sphereMap(t *testing.T, n int64, c, radius float64) *Map {
	t.Helper()
	m := newTestMap(t, n, n, n, 0)
	data := m.RawData()
	m.ForEach(func(i voxelgrid.GridIndex, _ Cell) {
		dx, dy, dz := float64(i.X)-c, float64(i.Y)-c, float64(i.Z)-c
		if dx*dx+dy*dy+dz*dz <= radius*radius {
			addr, _ := m.Sizes().Addr(i)
			data[addr].SetOccupancy(1)
		}
	})
	return m
}

func filledComponent(t *testing.T, m *Map) uint32 {
	t.Helper()
	var component uint32
	m.ForEach(func(_ voxelgrid.GridIndex, c Cell) {
		if ClassOf(c.Occupancy()) == Filled && component == 0 {
			component = c.Component()
		}
	})
	if component == 0 {
		t.Fatal("no filled cells")
	}
	return component
}

func TestComputeComponentTopology_SolidSphere(t *testing.T) {
	m := sphereMap(t, 9, 4, 3)
	m.UpdateConnectedComponents()

	invariants, err := m.ComputeComponentTopology(FilledComponents, nil)
	if err != nil {
		t.Fatal(err)
	}
	hv, ok := invariants[filledComponent(t, m)]
	if !ok {
		t.Fatalf("Expected invariants for the filled component, got: %v", invariants)
	}
	if hv.NumHoles != 0 || hv.NumVoids != 0 {
		t.Errorf("Expected solid sphere to have 0 holes and 0 voids, got: %+v", hv)
	}
}

func TestComputeComponentTopology_HollowSphere(t *testing.T) {
	m := sphereMap(t, 9, 4, 3)
	// Re-mark the interior within radius sqrt(2) empty, leaving a closed
	// shell (two cells thick along the axes) around a cavity.
	data := m.RawData()
	m.ForEach(func(i voxelgrid.GridIndex, _ Cell) {
		dx, dy, dz := float64(i.X)-4, float64(i.Y)-4, float64(i.Z)-4
		if dx*dx+dy*dy+dz*dz <= 2 {
			addr, _ := m.Sizes().Addr(i)
			data[addr].SetOccupancy(0)
		}
	})
	if k := m.UpdateConnectedComponents(); k != 3 {
		t.Fatalf("Expected shell, cavity and outside components, got: %d", k)
	}

	invariants, err := m.ComputeComponentTopology(FilledComponents|EmptyComponents, nil)
	if err != nil {
		t.Fatal(err)
	}

	shell := filledComponent(t, m)
	hv, ok := invariants[shell]
	if !ok {
		t.Fatalf("Expected invariants for the shell component, got: %v", invariants)
	}
	if hv.NumVoids != 1 {
		t.Errorf("Expected hollow sphere to have 1 void, got: %+v", hv)
	}

	cavityCell := m.At(voxelgrid.GridIndex{4, 4, 4})
	cavity := cavityCell.Component()
	if cavity == shell {
		t.Fatal("Expected the cavity to be its own component")
	}
	hv, ok = invariants[cavity]
	if !ok {
		t.Fatalf("Expected invariants for the cavity component, got: %v", invariants)
	}
	if hv.NumVoids != 0 {
		t.Errorf("Expected the enclosed cavity to have 0 voids, got: %+v", hv)
	}
}

func TestComputeComponentTopology_Torus(t *testing.T) {
	sizes, err := voxelgrid.NewGridSizes(1, 13, 13, 5)
	if err != nil {
		t.Fatal(err)
	}
	m := NewMap(mat.Translate(0, 0, 0), "world", sizes, NewCell(0))
	data := m.RawData()
	m.ForEach(func(i voxelgrid.GridIndex, _ Cell) {
		dx, dy, dz := float64(i.X)-6, float64(i.Y)-6, float64(i.Z)-2
		radial := math.Sqrt(dx*dx+dy*dy) - 3
		if radial*radial+dz*dz <= 1 {
			addr, _ := m.Sizes().Addr(i)
			data[addr].SetOccupancy(1)
		}
	})
	m.UpdateConnectedComponents()

	invariants, err := m.ComputeComponentTopology(FilledComponents, nil)
	if err != nil {
		t.Fatal(err)
	}
	hv, ok := invariants[filledComponent(t, m)]
	if !ok {
		t.Fatalf("Expected invariants for the torus component, got: %v", invariants)
	}
	if hv.NumHoles != 1 || hv.NumVoids != 0 {
		t.Errorf("Expected torus to have 1 hole and 0 voids, got: %+v", hv)
	}
}

func TestComputeComponentTopology_RequiresValidComponents(t *testing.T) {
	m := newTestMap(t, 3, 3, 3, 0)
	if _, err := m.ComputeComponentTopology(FilledComponents, nil); err != ErrComponentsInvalid {
		t.Errorf("Expected ErrComponentsInvalid, got: %v", err)
	}
}
