package raycast

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Sentinel is the clear value of the ray-geometry buffer. Back-face
// fragments always write alpha 1, so alpha 0 means the pixel's ray misses
// the cube.
var Sentinel = mgl32.Vec4{0, 0, 0, 0}

// Texture is a readable grid of float texels.
type Texture interface {
	Size() (width, height int)
	At(x, y int) mgl32.Vec4
}

// RenderTarget is the output of one pass that a later pass reads.
type RenderTarget interface {
	Read() Texture
}

// FloatTarget is an RGBA float32 offscreen target, the CPU counterpart of
// the GPU's RGBA32Float ray-geometry texture.
type FloatTarget struct {
	width  int
	height int
	pix    []float32
}

func NewFloatTarget(width, height int) *FloatTarget {
	t := &FloatTarget{}
	t.Resize(width, height)
	return t
}

// Resize reallocates the texel store. Contents are reset to Sentinel.
func (t *FloatTarget) Resize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	t.width, t.height = width, height
	t.pix = make([]float32, width*height*4)
}

func (t *FloatTarget) Size() (int, int) { return t.width, t.height }

func (t *FloatTarget) Read() Texture { return t }

func (t *FloatTarget) Clear(v mgl32.Vec4) {
	for i := 0; i < len(t.pix); i += 4 {
		t.pix[i], t.pix[i+1], t.pix[i+2], t.pix[i+3] = v[0], v[1], v[2], v[3]
	}
}

func (t *FloatTarget) Set(x, y int, v mgl32.Vec4) {
	if x < 0 || y < 0 || x >= t.width || y >= t.height {
		return
	}
	i := (y*t.width + x) * 4
	copy(t.pix[i:i+4], v[:])
}

// At returns Sentinel outside the target.
func (t *FloatTarget) At(x, y int) mgl32.Vec4 {
	if x < 0 || y < 0 || x >= t.width || y >= t.height {
		return Sentinel
	}
	i := (y*t.width + x) * 4
	return mgl32.Vec4{t.pix[i], t.pix[i+1], t.pix[i+2], t.pix[i+3]}
}

// Hit reports whether the texel holds an exit point.
func Hit(texel mgl32.Vec4) bool {
	return texel[3] > 0
}
