package voxelize

import (
	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
)

// PointCloud is one camera's observation: point locations in the camera
// frame plus the camera pose in world frame.
type PointCloud interface {
	// OriginTransform is the camera pose in world frame.
	OriginTransform() mat.Mat4
	Size() int
	// Point returns the i-th point location in camera frame.
	Point(i int) mat.Vec3
}

type vec3SlicePointCloud struct {
	origin mat.Mat4
	points []mat.Vec3
}

// PointCloudFromSlice wraps a point slice as a PointCloud. The slice is
// not copied.
func PointCloudFromSlice(origin mat.Mat4, points []mat.Vec3) PointCloud {
	return &vec3SlicePointCloud{origin: origin, points: points}
}

func (c *vec3SlicePointCloud) OriginTransform() mat.Mat4 { return c.origin }
func (c *vec3SlicePointCloud) Size() int                 { return len(c.points) }
func (c *vec3SlicePointCloud) Point(i int) mat.Vec3      { return c.points[i] }

// NewPointCloud adapts a pcgol point cloud. Point locations are copied
// out once so raycasting workers index them without touching the
// underlying field blob.
func NewPointCloud(origin mat.Mat4, cloud *pc.PointCloud) (PointCloud, error) {
	it, err := cloud.Vec3Iterator()
	if err != nil {
		return nil, err
	}
	points := make([]mat.Vec3, 0, cloud.Points)
	for ; it.IsValid(); it.Incr() {
		points = append(points, it.Vec3())
	}
	return &vec3SlicePointCloud{origin: origin, points: points}, nil
}
