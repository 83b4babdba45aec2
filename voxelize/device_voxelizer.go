package voxelize

import (
	"fmt"
	"time"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/collision"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/voxelize/device"
)

// deviceVoxelizer drives an accelerator backend through the device.Helper
// capability set: prepare tracking grids, raycast each cloud, filter on
// the device, retrieve the fused cells, clean up.
type deviceVoxelizer struct {
	name   string
	helper device.Helper
	logf   LogFunc
}

func newDeviceVoxelizer(name string, helper device.Helper, logf LogFunc) (*deviceVoxelizer, error) {
	if !helper.IsAvailable() {
		return nil, fmt.Errorf("%s voxelizer is not available", name)
	}
	return &deviceVoxelizer{name: name, helper: helper, logf: logf}, nil
}

func (v *deviceVoxelizer) VoxelizePointClouds(
	staticEnvironment *collision.Map,
	stepSizeMultiplier float64,
	options FilterOptions,
	clouds []PointCloud,
) (*collision.Map, Runtime, error) {
	if err := validateVoxelizeArgs(staticEnvironment, stepSizeMultiplier, options); err != nil {
		return nil, Runtime{}, err
	}

	sizes := staticEnvironment.Sizes()
	totalCells := sizes.TotalCells()
	invGridOrigin := staticEnvironment.InverseOrigin()
	invStepSize := float32(1.0 / (float64(sizes.CellSize()) * stepSizeMultiplier))
	invCellSize := sizes.InvCellSize()

	defer v.helper.CleanupAllocatedMemory()

	start := time.Now()
	offsets, err := v.helper.PrepareTrackingGrids(totalCells, int32(len(clouds)))
	if err != nil {
		return nil, Runtime{}, err
	}
	if len(offsets) != len(clouds) {
		return nil, Runtime{}, device.ErrAllocationFailed
	}

	for i, cloud := range clouds {
		points := make([]float32, 0, cloud.Size()*3)
		for p := 0; p < cloud.Size(); p++ {
			loc := cloud.Point(p)
			points = append(points, loc[0], loc[1], loc[2])
		}
		err := v.helper.RaycastPoints(
			points, cloud.OriginTransform(), invGridOrigin,
			invStepSize, invCellSize,
			int32(sizes.NumX()), int32(sizes.NumY()), int32(sizes.NumZ()),
			offsets[i])
		if err != nil {
			return nil, Runtime{}, err
		}
	}
	raycasted := time.Now()

	if err := v.helper.PrepareFilterGrid(totalCells, staticEnvironment.RawData()); err != nil {
		return nil, Runtime{}, err
	}
	err = v.helper.FilterTrackingGrids(
		totalCells, int32(len(clouds)),
		options.PercentSeenFree,
		options.OutlierPointsThreshold, options.NumCamerasSeenFree)
	if err != nil {
		return nil, Runtime{}, err
	}

	output := staticEnvironment.Clone()
	if err := v.helper.RetrieveFilteredGrid(totalCells, output.MutableRawData()); err != nil {
		return nil, Runtime{}, err
	}
	done := time.Now()

	rt := Runtime{
		Raycasting: raycasted.Sub(start),
		Filtering:  done.Sub(raycasted),
	}
	if v.logf != nil {
		v.logf("%s raycasting time %v, filtering time %v", v.name, rt.Raycasting, rt.Filtering)
	}
	return output, rt, nil
}
