package volume

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Volume is an immutable grid of 8-bit densities. Voxel (x, y, z) lives at
// data[x + y*Width + z*Width*Height]. A new selection builds a new Volume;
// existing ones are never mutated.
type Volume struct {
	ID     uuid.UUID
	Name   string
	Width  int
	Height int
	Depth  int
	data   []uint8
}

// New copies data into a fresh Volume with a new ID.
func New(name string, width, height, depth int, data []uint8) (*Volume, error) {
	if width < 1 || height < 1 || depth < 1 {
		return nil, fmt.Errorf("volume %q: invalid dimensions %dx%dx%d", name, width, height, depth)
	}
	if len(data) != width*height*depth {
		return nil, fmt.Errorf("volume %q: %d voxels for %dx%dx%d", name, len(data), width, height, depth)
	}
	return &Volume{
		ID:     uuid.New(),
		Name:   name,
		Width:  width,
		Height: height,
		Depth:  depth,
		data:   append([]uint8(nil), data...),
	}, nil
}

// Uniform builds a volume where every voxel has the given density.
func Uniform(name string, width, height, depth int, density uint8) *Volume {
	data := make([]uint8, width*height*depth)
	for i := range data {
		data[i] = density
	}
	v, err := New(name, width, height, depth, data)
	if err != nil {
		panic(err)
	}
	return v
}

// Data returns the voxel array. Read-only.
func (v *Volume) Data() []uint8 { return v.data }

func (v *Volume) Voxel(x, y, z int) uint8 {
	return v.data[x+y*v.Width+z*v.Width*v.Height]
}

// Sample returns the trilinearly filtered density at p in [0, 1]^3.
// Coordinates outside the cube clamp to the edge voxels.
func (v *Volume) Sample(p mgl32.Vec3) float32 {
	x0, x1, fx := axis(p[0], v.Width)
	y0, y1, fy := axis(p[1], v.Height)
	z0, z1, fz := axis(p[2], v.Depth)

	c000 := float32(v.Voxel(x0, y0, z0))
	c100 := float32(v.Voxel(x1, y0, z0))
	c010 := float32(v.Voxel(x0, y1, z0))
	c110 := float32(v.Voxel(x1, y1, z0))
	c001 := float32(v.Voxel(x0, y0, z1))
	c101 := float32(v.Voxel(x1, y0, z1))
	c011 := float32(v.Voxel(x0, y1, z1))
	c111 := float32(v.Voxel(x1, y1, z1))

	c00 := c000 + (c100-c000)*fx
	c10 := c010 + (c110-c010)*fx
	c01 := c001 + (c101-c001)*fx
	c11 := c011 + (c111-c011)*fx
	c0 := c00 + (c10-c00)*fy
	c1 := c01 + (c11-c01)*fy

	return (c0 + (c1-c0)*fz) / 255
}

// axis maps a normalized coordinate onto voxel centers: 0 hits the first
// voxel, 1 the last.
func axis(t float32, n int) (int, int, float32) {
	if n == 1 || !(t > 0) {
		return 0, 0, 0
	}
	x := t * float32(n-1)
	if x >= float32(n-1) {
		return n - 1, n - 1, 0
	}
	i := int(x)
	return i, i + 1, x - float32(i)
}
