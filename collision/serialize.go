package collision

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/seqsense/pcgol/mat"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/voxelgrid"
)

// Byte-stream layout (little-endian):
//
//	origin transform  12 x float32, row-major 3x4
//	cell sizes        3 x float64
//	cell counts       3 x int64
//	default cell      float32 occupancy, uint32 component
//	oob cell          float32 occupancy, uint32 component
//	frame             uint32 length prefix + bytes
//	component count   uint32
//	components valid  uint8
//	cells             per cell: float32 occupancy, uint32 component,
//	                  x-major within rows, y-major within planes

// Serialize writes the normative byte stream.
func (m *Map) Serialize(w io.Writer) error {
	bw := bufio.NewWriter(w)

	origin := m.Origin()
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			if err := writeF32(bw, origin[4*col+row]); err != nil {
				return err
			}
		}
	}

	sizes := m.Sizes()
	cell := float64(sizes.CellSize())
	for _, v := range []float64{cell, cell, cell} {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, v := range []int64{sizes.NumX(), sizes.NumY(), sizes.NumZ()} {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	def := m.DefaultValue()
	oob := m.OOBValue()
	if err := writeCell(bw, &def); err != nil {
		return err
	}
	if err := writeCell(bw, &oob); err != nil {
		return err
	}

	frame := []byte(m.frame)
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(frame))); err != nil {
		return err
	}
	if _, err := bw.Write(frame); err != nil {
		return err
	}

	if err := binary.Write(bw, binary.LittleEndian, m.numComponents); err != nil {
		return err
	}
	valid := uint8(0)
	if m.componentsValid.Load() {
		valid = 1
	}
	if err := bw.WriteByte(valid); err != nil {
		return err
	}

	data := m.RawData()
	for i := range data {
		if err := writeCell(bw, &data[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Deserialize reads a map from the normative byte stream.
func Deserialize(r io.Reader) (*Map, error) {
	br := bufio.NewReader(r)

	var origin mat.Mat4
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			v, err := readF32(br)
			if err != nil {
				return nil, err
			}
			origin[4*col+row] = v
		}
	}
	origin[3], origin[7], origin[11], origin[15] = 0, 0, 0, 1

	var cellSizes [3]float64
	for i := range cellSizes {
		if err := binary.Read(br, binary.LittleEndian, &cellSizes[i]); err != nil {
			return nil, err
		}
	}
	if cellSizes[0] != cellSizes[1] || cellSizes[1] != cellSizes[2] {
		return nil, voxelgrid.ErrInvalidSizes
	}
	var counts [3]int64
	for i := range counts {
		if err := binary.Read(br, binary.LittleEndian, &counts[i]); err != nil {
			return nil, err
		}
	}
	sizes, err := voxelgrid.NewGridSizes(float32(cellSizes[0]), counts[0], counts[1], counts[2])
	if err != nil {
		return nil, err
	}

	def, err := readCell(br)
	if err != nil {
		return nil, err
	}
	oob, err := readCell(br)
	if err != nil {
		return nil, err
	}

	var frameLen uint32
	if err := binary.Read(br, binary.LittleEndian, &frameLen); err != nil {
		return nil, err
	}
	frame := make([]byte, frameLen)
	if _, err := io.ReadFull(br, frame); err != nil {
		return nil, err
	}

	var numComponents uint32
	if err := binary.Read(br, binary.LittleEndian, &numComponents); err != nil {
		return nil, err
	}
	valid, err := br.ReadByte()
	if err != nil {
		return nil, err
	}

	m := NewMapWithOOB(origin, string(frame), sizes, def, oob)
	data := m.RawData()
	for i := range data {
		c, err := readCell(br)
		if err != nil {
			return nil, err
		}
		data[i] = c
	}
	m.numComponents = numComponents
	m.componentsValid.Store(valid != 0)
	return m, nil
}

func writeF32(w io.Writer, v float32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readF32(r io.Reader) (float32, error) {
	var v float32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func writeCell(w io.Writer, c *Cell) error {
	if err := writeF32(w, c.Occupancy()); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, c.Component())
}

func readCell(r io.Reader) (Cell, error) {
	occupancy, err := readF32(r)
	if err != nil {
		return Cell{}, err
	}
	var component uint32
	if err := binary.Read(r, binary.LittleEndian, &component); err != nil {
		return Cell{}, err
	}
	return NewCellWithComponent(occupancy, component), nil
}

// File wrapper around the normative stream: a magic tag, a format
// version, and a compression flag. The compressed form wraps the stream
// in zstd.
var fileMagic = [4]byte{'V', 'G', 'T', 'C'}

const fileVersion = 1

var errBadFileHeader = errors.New("not a collision map file")

// SaveToFile writes the map to path, optionally zstd-compressed.
func SaveToFile(m *Map, path string, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := []byte{fileMagic[0], fileMagic[1], fileMagic[2], fileMagic[3], fileVersion, 0}
	if compress {
		header[5] = 1
	}
	if _, err := f.Write(header); err != nil {
		return err
	}
	if !compress {
		return m.Serialize(f)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := m.Serialize(enc); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// LoadFromFile reads a map written by SaveToFile.
func LoadFromFile(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, 6)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, err
	}
	if [4]byte(header[:4]) != fileMagic {
		return nil, errBadFileHeader
	}
	if header[4] != fileVersion {
		return nil, fmt.Errorf("unsupported collision map file version %d", header[4])
	}
	switch header[5] {
	case 0:
		return Deserialize(f)
	case 1:
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return Deserialize(dec)
	default:
		return nil, errBadFileHeader
	}
}
