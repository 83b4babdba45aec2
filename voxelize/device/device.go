// Package device defines the capability set an accelerator backend
// implements for point-cloud voxelization. Backends exchange only
// tracking-grid buffers, scalar parameters, and the input/output cell
// arrays.
package device

import (
	"errors"

	"github.com/seqsense/pcgol/mat"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/collision"
)

var (
	// ErrAllocationFailed is returned when a backend cannot allocate its
	// tracking or filter buffers.
	ErrAllocationFailed = errors.New("failed to allocate device buffers")

	errNotAvailable = errors.New("device backend is not available")
)

// Helper is the raycaster+filter capability set of one accelerator.
type Helper interface {
	IsAvailable() bool
	// PrepareTrackingGrids allocates numCameras tracking grids of
	// totalCells cells each and returns their device offsets.
	PrepareTrackingGrids(totalCells int64, numCameras int32) ([]int64, error)
	// RaycastPoints walks the rays of one camera's flattened xyz point
	// buffer into the tracking grid at trackingOffset.
	RaycastPoints(
		points []float32,
		cloudOrigin, invGridOrigin mat.Mat4,
		invStepSize, invCellSize float32,
		numX, numY, numZ int32,
		trackingOffset int64,
	) error
	// PrepareFilterGrid uploads the static environment cells.
	PrepareFilterGrid(totalCells int64, cells []collision.Cell) error
	FilterTrackingGrids(
		totalCells int64, numCameras int32,
		percentSeenFree float32,
		outlierPointsThreshold, numCamerasSeenFree int32,
	) error
	// RetrieveFilteredGrid downloads the filtered cells into out.
	RetrieveFilteredGrid(totalCells int64, out []collision.Cell) error
	CleanupAllocatedMemory()
}

// unavailableHelper stands in for accelerators this build has no binding
// for, so backend selection can probe and fall through uniformly.
type unavailableHelper struct{}

func (unavailableHelper) IsAvailable() bool { return false }

func (unavailableHelper) PrepareTrackingGrids(int64, int32) ([]int64, error) {
	return nil, errNotAvailable
}

func (unavailableHelper) RaycastPoints([]float32, mat.Mat4, mat.Mat4, float32, float32, int32, int32, int32, int64) error {
	return errNotAvailable
}

func (unavailableHelper) PrepareFilterGrid(int64, []collision.Cell) error {
	return errNotAvailable
}

func (unavailableHelper) FilterTrackingGrids(int64, int32, float32, int32, int32) error {
	return errNotAvailable
}

func (unavailableHelper) RetrieveFilteredGrid(int64, []collision.Cell) error {
	return errNotAvailable
}

func (unavailableHelper) CleanupAllocatedMemory() {}

// NewOpenCLHelper returns the OpenCL backend helper. The pure-Go build
// has no OpenCL binding, so the helper reports unavailable.
func NewOpenCLHelper(options map[string]int32) Helper {
	_ = options
	return unavailableHelper{}
}

// NewCUDAHelper returns the CUDA backend helper. The pure-Go build has no
// CUDA binding, so the helper reports unavailable.
func NewCUDAHelper(options map[string]int32) Helper {
	_ = options
	return unavailableHelper{}
}
