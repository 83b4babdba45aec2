package voxelgrid

import (
	"testing"

	"github.com/seqsense/pcgol/mat"
)

func newTestGrid(t *testing.T) *Grid[int] {
	t.Helper()
	s, err := NewGridSizes(1, 2, 3, 4)
	if err != nil {
		t.Fatal(err)
	}
	return New(mat.Translate(0, 0, 0), s, 7, -1)
}

func TestGrid_Access(t *testing.T) {
	g := newTestGrid(t)

	if v := g.At(GridIndex{1, 2, 3}); v != 7 {
		t.Errorf("Expected default cell 7, got: %d", v)
	}
	if v := g.At(GridIndex{2, 0, 0}); v != -1 {
		t.Errorf("Expected OOB sentinel -1, got: %d", v)
	}
	if _, ok := g.Query(GridIndex{0, 3, 0}); ok {
		t.Error("Expected Query to report out of bounds")
	}

	if err := g.Set(GridIndex{1, 1, 1}, 42); err != nil {
		t.Fatal(err)
	}
	if v := g.At(GridIndex{1, 1, 1}); v != 42 {
		t.Errorf("Expected 42 after Set, got: %d", v)
	}
	if err := g.Set(GridIndex{0, 0, 4}, 1); err != ErrInvalidIndex {
		t.Errorf("Expected ErrInvalidIndex, got: %v", err)
	}
	if _, err := g.Ref(GridIndex{0, 0, -1}); err != ErrInvalidIndex {
		t.Errorf("Expected ErrInvalidIndex, got: %v", err)
	}
}

func TestGrid_MutationHooks(t *testing.T) {
	g := newTestGrid(t)
	var indexCalls, rawCalls int
	g.SetMutationHooks(
		func(GridIndex) bool { indexCalls++; return true },
		func() bool { rawCalls++; return true },
	)

	g.Set(GridIndex{0, 0, 0}, 1)
	if _, err := g.Ref(GridIndex{1, 0, 0}); err != nil {
		t.Fatal(err)
	}
	g.Set(GridIndex{-1, 0, 0}, 1) // OOB write must not fire the hook
	if indexCalls != 2 {
		t.Errorf("Expected 2 indexed hook calls, got: %d", indexCalls)
	}

	g.MutableRawData()
	g.RawData()
	if rawCalls != 1 {
		t.Errorf("Expected 1 raw hook call, got: %d", rawCalls)
	}
}

func TestGrid_Clone(t *testing.T) {
	g := newTestGrid(t)
	g.Set(GridIndex{1, 2, 3}, 10)

	c := g.Clone()
	if v := c.At(GridIndex{1, 2, 3}); v != 10 {
		t.Errorf("Expected clone to carry 10, got: %d", v)
	}

	c.Set(GridIndex{0, 0, 0}, 20)
	g.Set(GridIndex{1, 0, 0}, 30)
	if v := g.At(GridIndex{0, 0, 0}); v != 7 {
		t.Errorf("Expected original to be unchanged by clone mutation, got: %d", v)
	}
	if v := c.At(GridIndex{1, 0, 0}); v != 7 {
		t.Errorf("Expected clone to be unchanged by original mutation, got: %d", v)
	}
}

func TestGrid_ForEach(t *testing.T) {
	g := newTestGrid(t)
	var visited []GridIndex
	g.ForEach(func(i GridIndex, v int) {
		visited = append(visited, i)
	})
	if len(visited) != 24 {
		t.Fatalf("Expected 24 cells, got: %d", len(visited))
	}
	// Linearization order: x fastest, then y, then z.
	expectedHead := []GridIndex{
		{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}, {0, 2, 0}, {1, 2, 0}, {0, 0, 1},
	}
	for n, expected := range expectedHead {
		if visited[n] != expected {
			t.Errorf("Expected visit %d to be %v, got: %v", n, expected, visited[n])
		}
	}
	// The immutable read at an index must agree with the iteration value.
	data := g.RawData()
	for n, i := range visited {
		if g.At(i) != data[n] {
			t.Errorf("Expected At(%v) to equal raw data at %d", i, n)
		}
	}
}

func TestGrid_Transforms(t *testing.T) {
	s, err := NewGridSizes(0.5, 4, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	g := New(mat.Translate(10, 20, 30), s, 0, 0)

	p := g.WorldToGridFrame(mat.Vec3{10.25, 20.75, 31.75})
	expected := mat.Vec3{0.25, 0.75, 1.75}
	if p.Sub(expected).Norm() > 1e-6 {
		t.Errorf("Expected grid-frame %v, got: %v", expected, p)
	}
	if i := g.WorldIndexOf(mat.Vec3{10.25, 20.75, 31.75}); (i != GridIndex{0, 1, 3}) {
		t.Errorf("Expected index (0,1,3), got: %v", i)
	}
	back := g.WorldCenterOf(GridIndex{0, 1, 3})
	expectedCenter := mat.Vec3{10.25, 20.75, 31.75}
	if back.Sub(expectedCenter).Norm() > 1e-6 {
		t.Errorf("Expected world center %v, got: %v", expectedCenter, back)
	}
}
