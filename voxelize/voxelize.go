// Package voxelize fuses point-cloud observations into a collision map by
// per-ray traversal of per-camera tracking grids and a cross-camera
// agreement filter.
package voxelize

import (
	"errors"
	"time"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/collision"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/voxelize/device"
)

var (
	// ErrInvalidStepSize is returned when the raycast step multiplier is
	// outside (0, 1].
	ErrInvalidStepSize = errors.New("step size multiplier is not in (0, 1]")
	// ErrUninitializedGrid is returned when the static environment has no
	// cells.
	ErrUninitializedGrid = errors.New("static environment is not initialized")
	// ErrNoBackendAvailable is returned when best-available backend
	// selection finds no working backend.
	ErrNoBackendAvailable = errors.New("no voxelizer backend available")
)

// TrackingCell accumulates per-camera ray observations of one cell.
// Counters are incremented atomically by concurrent rays.
type TrackingCell struct {
	SeenFree   int32
	SeenFilled int32
}

// FilterOptions is the cross-camera agreement policy.
type FilterOptions struct {
	// PercentSeenFree is the fraction of a camera's observations of a
	// cell that must be free for the camera to vote free. In [0, 1].
	PercentSeenFree float32
	// OutlierPointsThreshold is the number of filled observations a
	// camera tolerates as outliers before voting filled.
	OutlierPointsThreshold int32
	// NumCamerasSeenFree is the number of free votes needed to mark a
	// cell free.
	NumCamerasSeenFree int32
}

// DefaultFilterOptions requires unanimously-free observations from a
// single camera and tolerates no outlier points.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{
		PercentSeenFree:        1.0,
		OutlierPointsThreshold: 0,
		NumCamerasSeenFree:     1,
	}
}

func (o FilterOptions) Validate() error {
	if o.PercentSeenFree < 0 || o.PercentSeenFree > 1 {
		return errors.New("percent seen free is not in [0, 1]")
	}
	if o.OutlierPointsThreshold < 0 {
		return errors.New("outlier points threshold is negative")
	}
	if o.NumCamerasSeenFree < 1 {
		return errors.New("num cameras seen free is less than 1")
	}
	return nil
}

// Runtime reports how long the raycasting and filtering phases of one
// voxelization call took.
type Runtime struct {
	Raycasting time.Duration
	Filtering  time.Duration
}

// Voxelizer fuses point clouds into a fresh collision map derived from a
// static environment.
type Voxelizer interface {
	VoxelizePointClouds(
		staticEnvironment *collision.Map,
		stepSizeMultiplier float64,
		options FilterOptions,
		clouds []PointCloud,
	) (*collision.Map, Runtime, error)
}

// BackendOption selects a voxelizer implementation.
type BackendOption int

const (
	BestAvailable BackendOption = iota
	CPU
	OpenCL
	CUDA
)

func (b BackendOption) String() string {
	switch b {
	case BestAvailable:
		return "BestAvailable"
	case CPU:
		return "CPU"
	case OpenCL:
		return "OpenCL"
	case CUDA:
		return "CUDA"
	}
	return "unknown"
}

// AvailableBackend describes one usable backend.
type AvailableBackend struct {
	Name          string
	Option        BackendOption
	DeviceOptions map[string]int32
}

// AvailableBackends enumerates the backends usable in this process, in
// preference order. The CPU backend is always present.
func AvailableBackends() []AvailableBackend {
	var backends []AvailableBackend
	if device.NewCUDAHelper(nil).IsAvailable() {
		backends = append(backends, AvailableBackend{Name: "CUDA", Option: CUDA})
	}
	if device.NewOpenCLHelper(nil).IsAvailable() {
		backends = append(backends, AvailableBackend{Name: "OpenCL", Option: OpenCL})
	}
	return append(backends, AvailableBackend{Name: "CPU", Option: CPU})
}

// LogFunc receives progress messages from backend selection and
// voxelizers. A nil LogFunc disables logging.
type LogFunc func(format string, args ...interface{})

// NewVoxelizer builds the requested backend. Device options are
// backend-specific integer tunables (device index, thread count, ...).
func NewVoxelizer(backend BackendOption, deviceOptions map[string]int32, logf LogFunc) (Voxelizer, error) {
	switch backend {
	case BestAvailable:
		return NewBestAvailableVoxelizer(deviceOptions, logf)
	case CPU:
		return NewCPUVoxelizer(deviceOptions, logf), nil
	case OpenCL:
		return newDeviceVoxelizer("OpenCL", device.NewOpenCLHelper(deviceOptions), logf)
	case CUDA:
		return newDeviceVoxelizer("CUDA", device.NewCUDAHelper(deviceOptions), logf)
	}
	return nil, errors.New("invalid backend option")
}

// NewBestAvailableVoxelizer tries accelerated backends in order CUDA,
// OpenCL, CPU and returns the first that initializes.
func NewBestAvailableVoxelizer(deviceOptions map[string]int32, logf LogFunc) (Voxelizer, error) {
	for _, backend := range []BackendOption{CUDA, OpenCL, CPU} {
		v, err := NewVoxelizer(backend, deviceOptions, logf)
		if err != nil {
			if logf != nil {
				logf("%s voxelizer is not available: %v", backend, err)
			}
			continue
		}
		if logf != nil {
			logf("using %s voxelizer", backend)
		}
		return v, nil
	}
	return nil, ErrNoBackendAvailable
}
