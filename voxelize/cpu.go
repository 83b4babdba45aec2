package voxelize

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seqsense/pcgol/mat"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/collision"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/voxelgrid"
)

// NumThreadsOption is the device-option key bounding CPU worker count.
const NumThreadsOption = "CPU_NUM_THREADS"

// CPUVoxelizer raycasts and filters on the host with a fixed worker pool.
// Rays of one camera are partitioned across workers; cameras are
// processed sequentially so tracking grids never alias.
type CPUVoxelizer struct {
	workers int
	logf    LogFunc
}

func NewCPUVoxelizer(options map[string]int32, logf LogFunc) *CPUVoxelizer {
	workers := runtime.NumCPU()
	if n, ok := options[NumThreadsOption]; ok && n > 0 {
		workers = int(n)
	}
	return &CPUVoxelizer{workers: workers, logf: logf}
}

func (v *CPUVoxelizer) VoxelizePointClouds(
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

	start := time.Now()
	trackingGrids := make([][]TrackingCell, len(clouds))
	for i, cloud := range clouds {
		trackingGrids[i] = make([]TrackingCell, totalCells)
		v.raycastPointCloud(cloud, invGridOrigin, invStepSize, sizes, trackingGrids[i])
	}
	raycasted := time.Now()

	output := staticEnvironment.Clone()
	v.filterTrackingGrids(trackingGrids, options, output)
	done := time.Now()

	rt := Runtime{
		Raycasting: raycasted.Sub(start),
		Filtering:  done.Sub(raycasted),
	}
	if v.logf != nil {
		v.logf("raycasting time %v, filtering time %v", rt.Raycasting, rt.Filtering)
	}
	return output, rt, nil
}

func validateVoxelizeArgs(staticEnvironment *collision.Map, stepSizeMultiplier float64, options FilterOptions) error {
	if staticEnvironment == nil || !staticEnvironment.IsInitialized() {
		return ErrUninitializedGrid
	}
	if stepSizeMultiplier <= 0 || stepSizeMultiplier > 1 {
		return ErrInvalidStepSize
	}
	return options.Validate()
}

// raycastPointCloud walks every point's ray through the tracking grid,
// counting pass-through cells as seen-free and the terminal cell as
// seen-filled.
func (v *CPUVoxelizer) raycastPointCloud(
	cloud PointCloud,
	invGridOrigin mat.Mat4,
	invStepSize float32,
	sizes voxelgrid.GridSizes,
	tracking []TrackingCell,
) {
	// Camera frame -> grid frame in one transform.
	gridFromCamera := invGridOrigin.MulAffine(cloud.OriginTransform())
	originGrid := gridFromCamera.TransformAffine(mat.Vec3{})

	size := cloud.Size()
	workers := v.workers
	if workers > size {
		workers = 1
	}
	chunk := (size + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		begin := w * chunk
		end := begin + chunk
		if end > size {
			end = size
		}
		if begin >= end {
			break
		}
		wg.Add(1)
		go func(begin, end int) {
			defer wg.Done()
			for i := begin; i < end; i++ {
				pointGrid := gridFromCamera.TransformAffine(cloud.Point(i))
				castRay(originGrid, pointGrid, invStepSize, sizes, tracking)
			}
		}(begin, end)
	}
	wg.Wait()
}

func castRay(
	originGrid, pointGrid mat.Vec3,
	invStepSize float32,
	sizes voxelgrid.GridSizes,
	tracking []TrackingCell,
) {
	pointIndex := sizes.IndexOf(pointGrid)
	ray := pointGrid.Sub(originGrid)
	length := ray.Norm()
	if length > 0 {
		unit := ray.Mul(1 / length)
		stepSize := 1 / invStepSize
		numSteps := int64(math.Floor(float64(length * invStepSize)))
		for step := int64(0); step <= numSteps; step++ {
			cur := originGrid.Add(unit.Mul(float32(step) * stepSize))
			index := sizes.IndexOf(cur)
			if index == pointIndex {
				break
			}
			if addr, ok := sizes.Addr(index); ok {
				atomic.AddInt32(&tracking[addr].SeenFree, 1)
			}
		}
	}
	if addr, ok := sizes.Addr(pointIndex); ok {
		atomic.AddInt32(&tracking[addr].SeenFilled, 1)
	}
}

// filterTrackingGrids folds the per-camera ternary votes into the output
// occupancy.
func (v *CPUVoxelizer) filterTrackingGrids(
	trackingGrids [][]TrackingCell,
	options FilterOptions,
	output *collision.Map,
) {
	data := output.MutableRawData()
	totalCells := len(data)

	workers := v.workers
	if workers > totalCells {
		workers = 1
	}
	chunk := (totalCells + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		begin := w * chunk
		end := begin + chunk
		if end > totalCells {
			end = totalCells
		}
		if begin >= end {
			break
		}
		wg.Add(1)
		go func(begin, end int) {
			defer wg.Done()
			for addr := begin; addr < end; addr++ {
				filterCell(trackingGrids, options, addr, &data[addr])
			}
		}(begin, end)
	}
	wg.Wait()
	output.ForceComponentsInvalid()
}

func filterCell(trackingGrids [][]TrackingCell, options FilterOptions, addr int, cell *collision.Cell) {
	var camerasFilled, camerasFree int32
	for _, grid := range trackingGrids {
		seenFree := atomic.LoadInt32(&grid[addr].SeenFree)
		seenFilled := atomic.LoadInt32(&grid[addr].SeenFilled)
		if seenFilled > options.OutlierPointsThreshold {
			camerasFilled++
		} else if seenFree > 0 &&
			float32(seenFree) >= options.PercentSeenFree*float32(seenFree+seenFilled) {
			camerasFree++
		}
	}
	switch {
	case camerasFilled > 0:
		cell.SetOccupancy(1)
	case camerasFree >= options.NumCamerasSeenFree:
		cell.SetOccupancy(0)
	}
	// Otherwise the cell keeps its static-environment occupancy.
}
