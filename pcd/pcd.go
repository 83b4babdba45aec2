// Package pcd reads and writes PCD point-cloud files, keeping only what
// raycasting voxelization consumes: x/y/z point locations and the capture
// viewpoint as a rigid transform.
package pcd

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/seqsense/pcgol/mat"
	lzf "github.com/zhuyie/golzf"
)

// Format is the PCD DATA encoding.
type Format int

const (
	ASCII Format = iota
	Binary
	BinaryCompressed
)

// Cloud is a parsed point cloud. It satisfies the voxelizer's PointCloud
// interface: points are in the capture (camera) frame and Viewpoint is
// the capture pose.
type Cloud struct {
	Viewpoint mat.Mat4
	Points    []mat.Vec3
}

func (c *Cloud) OriginTransform() mat.Mat4 { return c.Viewpoint }
func (c *Cloud) Size() int                 { return len(c.Points) }
func (c *Cloud) Point(i int) mat.Vec3      { return c.Points[i] }

type header struct {
	fields    []string
	size      []int
	typ       []string
	count     []int
	points    int
	viewpoint []float32
	format    Format
}

// Read parses a PCD stream. Only float32 x/y/z fields are materialized;
// other fields are skipped by stride.
func Read(r io.Reader) (*Cloud, error) {
	rb := bufio.NewReader(r)
	h, err := readHeader(rb)
	if err != nil {
		return nil, err
	}

	offsets, stride, err := xyzOffsets(h)
	if err != nil {
		return nil, err
	}

	cloud := &Cloud{
		Viewpoint: viewpointTransform(h.viewpoint),
		Points:    make([]mat.Vec3, 0, h.points),
	}

	switch h.format {
	case ASCII:
		xi, yi, zi := offsets[0], offsets[1], offsets[2]
		for len(cloud.Points) < h.points {
			line, err := rb.ReadString('\n')
			if err != nil && err != io.EOF {
				return nil, err
			}
			args := strings.Fields(line)
			if len(args) > 0 {
				p, perr := parseASCIIPoint(args, xi, yi, zi)
				if perr != nil {
					return nil, perr
				}
				cloud.Points = append(cloud.Points, p)
			}
			if err == io.EOF {
				break
			}
		}
		if len(cloud.Points) != h.points {
			return nil, errors.New("wrong number of ascii points")
		}
	case Binary:
		data := make([]byte, h.points*stride)
		if _, err := io.ReadFull(rb, data); err != nil {
			return nil, err
		}
		appendBinaryPoints(cloud, data, offsets, stride, h.points)
	case BinaryCompressed:
		data, err := readCompressedBody(rb, h, stride)
		if err != nil {
			return nil, err
		}
		appendBinaryPoints(cloud, data, offsets, stride, h.points)
	}
	return cloud, nil
}

func readHeader(rb *bufio.Reader) (*header, error) {
	h := &header{viewpoint: []float32{0, 0, 0, 1, 0, 0, 0}}
L_HEADER:
	for {
		line, _, err := rb.ReadLine()
		if err != nil {
			return nil, err
		}
		args := strings.Fields(string(line))
		if len(args) == 0 || strings.HasPrefix(args[0], "#") {
			continue
		}
		if len(args) < 2 {
			return nil, errors.New("header field must have value")
		}
		switch args[0] {
		case "FIELDS":
			h.fields = args[1:]
		case "SIZE":
			h.size = make([]int, len(args)-1)
			for i, s := range args[1:] {
				if h.size[i], err = strconv.Atoi(s); err != nil {
					return nil, err
				}
			}
		case "TYPE":
			h.typ = args[1:]
		case "COUNT":
			h.count = make([]int, len(args)-1)
			for i, s := range args[1:] {
				if h.count[i], err = strconv.Atoi(s); err != nil {
					return nil, err
				}
			}
		case "POINTS":
			if h.points, err = strconv.Atoi(args[1]); err != nil {
				return nil, err
			}
		case "VIEWPOINT":
			if len(args) != 8 {
				return nil, errors.New("viewpoint must have 7 values")
			}
			for i, s := range args[1:] {
				f, err := strconv.ParseFloat(s, 32)
				if err != nil {
					return nil, err
				}
				h.viewpoint[i] = float32(f)
			}
		case "DATA":
			switch args[1] {
			case "ascii":
				h.format = ASCII
			case "binary":
				h.format = Binary
			case "binary_compressed":
				h.format = BinaryCompressed
			default:
				return nil, errors.New("unknown data format")
			}
			break L_HEADER
		}
	}
	if len(h.fields) != len(h.size) {
		return nil, errors.New("size field size is wrong")
	}
	if len(h.fields) != len(h.typ) {
		return nil, errors.New("type field size is wrong")
	}
	if h.count == nil {
		h.count = make([]int, len(h.fields))
		for i := range h.count {
			h.count[i] = 1
		}
	}
	if len(h.fields) != len(h.count) {
		return nil, errors.New("count field size is wrong")
	}
	return h, nil
}

// xyzOffsets locates the x, y, z float fields. For ascii the offsets are
// column positions; for binary they are byte offsets within the stride.
func xyzOffsets(h *header) (offsets [3]int, stride int, err error) {
	found := 0
	column := 0
	for i, name := range h.fields {
		switch name {
		case "x", "y", "z":
			if h.typ[i] != "F" || h.size[i] != 4 {
				return offsets, 0, errors.New("x/y/z fields must be 4-byte float")
			}
			axis := int(name[0] - 'x')
			if h.format == ASCII {
				offsets[axis] = column
			} else {
				offsets[axis] = stride
			}
			found++
		}
		column += h.count[i]
		stride += h.size[i] * h.count[i]
	}
	if found != 3 {
		return offsets, 0, errors.New("pointcloud has no x/y/z fields")
	}
	return offsets, stride, nil
}

func parseASCIIPoint(args []string, xi, yi, zi int) (mat.Vec3, error) {
	var p mat.Vec3
	for axis, col := range [3]int{xi, yi, zi} {
		if col >= len(args) {
			return p, errors.New("short ascii point line")
		}
		f, err := strconv.ParseFloat(args[col], 32)
		if err != nil {
			return p, err
		}
		p[axis] = float32(f)
	}
	return p, nil
}

func appendBinaryPoints(cloud *Cloud, data []byte, offsets [3]int, stride, points int) {
	for p := 0; p < points; p++ {
		base := p * stride
		cloud.Points = append(cloud.Points, mat.Vec3{
			math.Float32frombits(binary.LittleEndian.Uint32(data[base+offsets[0]:])),
			math.Float32frombits(binary.LittleEndian.Uint32(data[base+offsets[1]:])),
			math.Float32frombits(binary.LittleEndian.Uint32(data[base+offsets[2]:])),
		})
	}
}

// readCompressedBody decompresses an LZF payload and reorders it from the
// field-major layout of binary_compressed back to point-major.
func readCompressedBody(rb *bufio.Reader, h *header, stride int) ([]byte, error) {
	var nCompressed, nUncompressed int32
	if err := binary.Read(rb, binary.LittleEndian, &nCompressed); err != nil {
		return nil, err
	}
	if err := binary.Read(rb, binary.LittleEndian, &nUncompressed); err != nil {
		return nil, err
	}
	compressed := make([]byte, nCompressed)
	if _, err := io.ReadFull(rb, compressed); err != nil {
		return nil, err
	}
	dec := make([]byte, nUncompressed)
	n, err := lzf.Decompress(compressed, dec)
	if err != nil {
		return nil, err
	}
	if int(nUncompressed) != n {
		return nil, errors.New("wrong uncompressed size")
	}

	head := make([]int, len(h.fields))
	offset := make([]int, len(h.fields))
	var pos, off int
	for i := range h.fields {
		head[i] = pos
		offset[i] = off
		pos += h.size[i] * h.count[i] * h.points
		off += h.size[i] * h.count[i]
	}
	data := make([]byte, h.points*stride)
	for p := 0; p < h.points; p++ {
		for i := range head {
			size := h.size[i] * h.count[i]
			to := p*stride + offset[i]
			from := head[i] + p*size
			copy(data[to:to+size], dec[from:from+size])
		}
	}
	return data, nil
}

// viewpointTransform converts the PCD viewpoint (tx ty tz qw qx qy qz)
// into a rigid transform.
func viewpointTransform(v []float32) mat.Mat4 {
	tx, ty, tz := v[0], v[1], v[2]
	w, x, y, z := v[3], v[4], v[5], v[6]
	// Column-major rotation from the unit quaternion.
	return mat.Mat4{
		1 - 2*(y*y+z*z), 2 * (x*y + w*z), 2 * (x*z - w*y), 0,
		2 * (x*y - w*z), 1 - 2*(x*x+z*z), 2 * (y*z + w*x), 0,
		2 * (x*z + w*y), 2 * (y*z - w*x), 1 - 2*(x*x+y*y), 0,
		tx, ty, tz, 1,
	}
}

// Write emits a cloud with x/y/z float fields in the requested format.
func Write(c *Cloud, w io.Writer, format Format) error {
	bw := bufio.NewWriter(w)
	var formatName string
	switch format {
	case ASCII:
		formatName = "ascii"
	case Binary:
		formatName = "binary"
	case BinaryCompressed:
		formatName = "binary_compressed"
	default:
		return errors.New("unknown data format")
	}
	fmt.Fprintf(bw, "VERSION 0.7\n")
	fmt.Fprintf(bw, "FIELDS x y z\n")
	fmt.Fprintf(bw, "SIZE 4 4 4\n")
	fmt.Fprintf(bw, "TYPE F F F\n")
	fmt.Fprintf(bw, "COUNT 1 1 1\n")
	fmt.Fprintf(bw, "WIDTH %d\n", len(c.Points))
	fmt.Fprintf(bw, "HEIGHT 1\n")
	fmt.Fprintf(bw, "VIEWPOINT %s\n", viewpointString(c.Viewpoint))
	fmt.Fprintf(bw, "POINTS %d\n", len(c.Points))
	fmt.Fprintf(bw, "DATA %s\n", formatName)

	switch format {
	case ASCII:
		for _, p := range c.Points {
			fmt.Fprintf(bw, "%g %g %g\n", p[0], p[1], p[2])
		}
	case Binary:
		for _, p := range c.Points {
			for _, v := range p {
				if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
					return err
				}
			}
		}
	case BinaryCompressed:
		// Field-major payload: all x, then all y, then all z.
		raw := make([]byte, 0, len(c.Points)*12)
		for axis := 0; axis < 3; axis++ {
			for _, p := range c.Points {
				raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(p[axis]))
			}
		}
		compressed := make([]byte, len(raw)+len(raw)/16+64+3)
		n, err := lzf.Compress(raw, compressed)
		if err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, int32(n)); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, int32(len(raw))); err != nil {
			return err
		}
		if _, err := bw.Write(compressed[:n]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// viewpointString recovers tx ty tz qw qx qy qz from a rigid transform.
func viewpointString(m mat.Mat4) string {
	w := float32(math.Sqrt(math.Max(0, float64(1+m[0]+m[5]+m[10]))) / 2)
	var x, y, z float32
	if w > 1e-6 {
		x = (m[6] - m[9]) / (4 * w)
		y = (m[8] - m[2]) / (4 * w)
		z = (m[1] - m[4]) / (4 * w)
	} else {
		// Near-180-degree rotations: recover the dominant axis directly.
		x = float32(math.Sqrt(math.Max(0, float64(1+m[0]-m[5]-m[10]))) / 2)
		y = float32(math.Sqrt(math.Max(0, float64(1-m[0]+m[5]-m[10]))) / 2)
		z = float32(math.Sqrt(math.Max(0, float64(1-m[0]-m[5]+m[10]))) / 2)
		if m[6]+m[9] < 0 {
			y = -y
		}
		if m[8]+m[2] < 0 {
			z = -z
		}
	}
	return fmt.Sprintf("%g %g %g %g %g %g %g", m[12], m[13], m[14], w, x, y, z)
}
