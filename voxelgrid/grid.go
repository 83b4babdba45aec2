package voxelgrid

import (
	"github.com/seqsense/pcgol/mat"
)

// Grid is a dense 3D array of cells with an affine placement in world
// space. Immutable out-of-bounds reads return the grid's OOB sentinel;
// out-of-bounds mutable accesses fail with ErrInvalidIndex, and in-bounds
// ones fire the mutation hooks.
type Grid[T any] struct {
	sizes     GridSizes
	origin    mat.Mat4
	invOrigin mat.Mat4
	def       T
	oob       T
	data      []T

	onMutableIndex func(GridIndex) bool
	onMutableRaw   func() bool
}

// New allocates a grid filled with the default cell. The origin transform
// places the grid frame in world space; its affine inverse is cached.
func New[T any](origin mat.Mat4, sizes GridSizes, def, oob T) *Grid[T] {
	data := make([]T, sizes.TotalCells())
	for i := range data {
		data[i] = def
	}
	return &Grid[T]{
		sizes:     sizes,
		origin:    origin,
		invOrigin: origin.InvAffine(),
		def:       def,
		oob:       oob,
		data:      data,
	}
}

func (g *Grid[T]) Sizes() GridSizes {
	return g.sizes
}

func (g *Grid[T]) Origin() mat.Mat4 {
	return g.origin
}

func (g *Grid[T]) InverseOrigin() mat.Mat4 {
	return g.invOrigin
}

func (g *Grid[T]) DefaultValue() T { return g.def }
func (g *Grid[T]) OOBValue() T     { return g.oob }

func (g *Grid[T]) IsInitialized() bool {
	return g != nil && len(g.data) > 0
}

// SetMutationHooks installs the callbacks fired after a successful mutable
// indexed access and before a mutable raw-data access. The returned value
// of a hook is informational.
func (g *Grid[T]) SetMutationHooks(onIndex func(GridIndex) bool, onRaw func() bool) {
	g.onMutableIndex = onIndex
	g.onMutableRaw = onRaw
}

// At returns the cell at i, or the OOB sentinel if i is out of bounds.
func (g *Grid[T]) At(i GridIndex) T {
	addr, ok := g.sizes.Addr(i)
	if !ok {
		return g.oob
	}
	return g.data[addr]
}

// Query returns the cell at i and whether i was in bounds.
func (g *Grid[T]) Query(i GridIndex) (T, bool) {
	addr, ok := g.sizes.Addr(i)
	if !ok {
		var zero T
		return zero, false
	}
	return g.data[addr], true
}

// Set writes the cell at i, firing the indexed mutation hook.
func (g *Grid[T]) Set(i GridIndex, v T) error {
	addr, ok := g.sizes.Addr(i)
	if !ok {
		return ErrInvalidIndex
	}
	g.data[addr] = v
	if g.onMutableIndex != nil {
		g.onMutableIndex(i)
	}
	return nil
}

// Ref returns a mutable pointer to the cell at i, firing the indexed
// mutation hook.
func (g *Grid[T]) Ref(i GridIndex) (*T, error) {
	addr, ok := g.sizes.Addr(i)
	if !ok {
		return nil, ErrInvalidIndex
	}
	if g.onMutableIndex != nil {
		g.onMutableIndex(i)
	}
	return &g.data[addr], nil
}

// RawData exposes the backing sequence for bulk reads without firing the
// raw mutation hook. The slice aliases grid memory, so writes through it
// bypass the hook.
func (g *Grid[T]) RawData() []T {
	return g.data
}

// MutableRawData exposes the backing sequence for bulk writes, firing the
// raw mutation hook.
func (g *Grid[T]) MutableRawData() []T {
	if g.onMutableRaw != nil {
		g.onMutableRaw()
	}
	return g.data
}

// Clone deep-copies the grid. Mutation hooks are not carried over; wrapper
// types re-install their own against the clone.
func (g *Grid[T]) Clone() *Grid[T] {
	data := make([]T, len(g.data))
	copy(data, g.data)
	return &Grid[T]{
		sizes:     g.sizes,
		origin:    g.origin,
		invOrigin: g.invOrigin,
		def:       g.def,
		oob:       g.oob,
		data:      data,
	}
}

// ForEach visits every cell in linearization order (x fastest, then y,
// then z).
func (g *Grid[T]) ForEach(fn func(GridIndex, T)) {
	addr := 0
	for z := int64(0); z < g.sizes.numZ; z++ {
		for y := int64(0); y < g.sizes.numY; y++ {
			for x := int64(0); x < g.sizes.numX; x++ {
				fn(GridIndex{X: x, Y: y, Z: z}, g.data[addr])
				addr++
			}
		}
	}
}

// WorldToGridFrame applies the cached inverse origin transform.
func (g *Grid[T]) WorldToGridFrame(p mat.Vec3) mat.Vec3 {
	return g.invOrigin.TransformAffine(p)
}

// GridFrameToWorld applies the origin transform.
func (g *Grid[T]) GridFrameToWorld(p mat.Vec3) mat.Vec3 {
	return g.origin.TransformAffine(p)
}

// WorldIndexOf returns the index of the cell containing a world location.
func (g *Grid[T]) WorldIndexOf(p mat.Vec3) GridIndex {
	return g.sizes.IndexOf(g.WorldToGridFrame(p))
}

// WorldCenterOf returns the world location of the center of a cell.
func (g *Grid[T]) WorldCenterOf(i GridIndex) mat.Vec3 {
	return g.GridFrameToWorld(g.sizes.CenterOf(i))
}
