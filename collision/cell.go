package collision

import (
	"math"
	"sync/atomic"
)

// Cell is a single voxel record: an occupancy value and a connected
// component id. Both fields are read and written through atomics so that
// concurrent raycasting fusion never tears a value, while the struct stays
// at exactly two 32-bit words for raw bulk copies.
type Cell struct {
	occupancy uint32
	component uint32
}

func NewCell(occupancy float32) Cell {
	return Cell{occupancy: math.Float32bits(occupancy)}
}

func NewCellWithComponent(occupancy float32, component uint32) Cell {
	return Cell{
		occupancy: math.Float32bits(occupancy),
		component: component,
	}
}

func (c *Cell) Occupancy() float32 {
	return math.Float32frombits(atomic.LoadUint32(&c.occupancy))
}

func (c *Cell) SetOccupancy(occupancy float32) {
	atomic.StoreUint32(&c.occupancy, math.Float32bits(occupancy))
}

func (c *Cell) Component() uint32 {
	return atomic.LoadUint32(&c.component)
}

func (c *Cell) SetComponent(component uint32) {
	atomic.StoreUint32(&c.component, component)
}

// OccupancyClass partitions occupancy values: filled above 0.5, empty
// below, unknown at exactly 0.5.
type OccupancyClass uint8

const (
	Empty OccupancyClass = iota
	Filled
	Unknown
)

func ClassOf(occupancy float32) OccupancyClass {
	switch {
	case occupancy > 0.5:
		return Filled
	case occupancy < 0.5:
		return Empty
	default:
		return Unknown
	}
}

// ComponentTypes selects which occupancy classes an extraction covers.
type ComponentTypes uint8

const (
	FilledComponents ComponentTypes = 1 << iota
	EmptyComponents
	UnknownComponents
)

func (t ComponentTypes) includes(class OccupancyClass) bool {
	switch class {
	case Filled:
		return t&FilledComponents != 0
	case Empty:
		return t&EmptyComponents != 0
	default:
		return t&UnknownComponents != 0
	}
}
