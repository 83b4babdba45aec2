package voxelize

import (
	"fmt"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/config"
)

// FromConfig builds a voxelizer and filter options from a loaded
// configuration.
func FromConfig(c *config.Voxelizer, logf LogFunc) (Voxelizer, FilterOptions, error) {
	if err := c.Validate(); err != nil {
		return nil, FilterOptions{}, err
	}
	options := FilterOptions{
		PercentSeenFree:        c.Filter.PercentSeenFree,
		OutlierPointsThreshold: c.Filter.OutlierPointsThreshold,
		NumCamerasSeenFree:     c.Filter.NumCamerasSeenFree,
	}
	deviceOptions := map[string]int32{}
	if c.Workers > 0 {
		deviceOptions[NumThreadsOption] = int32(c.Workers)
	}
	var backend BackendOption
	switch c.Backend {
	case "cpu":
		backend = CPU
	case "opencl":
		backend = OpenCL
	case "cuda":
		backend = CUDA
	case "best_available":
		backend = BestAvailable
	default:
		return nil, FilterOptions{}, fmt.Errorf("unknown backend %q", c.Backend)
	}
	v, err := NewVoxelizer(backend, deviceOptions, logf)
	if err != nil {
		return nil, FilterOptions{}, err
	}
	return v, options, nil
}
