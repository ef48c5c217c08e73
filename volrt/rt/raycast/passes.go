package raycast

import (
	"image"
	"image/color"

	"github.com/gekko3d/volumert/volrt/rt/core"
	"github.com/gekko3d/volumert/volrt/rt/render"

	"github.com/go-gl/mathgl/mgl32"
)

var cubeMesh = core.UnitCube()

// GeometryPass renders the cube's back faces into a float target. Each
// covered texel holds the ray's exit point in texture space with alpha 1.
type GeometryPass struct{}

func (GeometryPass) Render(f *render.Frame, target *FloatTarget) {
	target.Clear(Sentinel)
	w, h := target.Size()
	rasterize(cubeMesh, f.MVP(), w, h, CullFront, func(x, y int, tex mgl32.Vec3) {
		target.Set(x, y, mgl32.Vec4{tex[0], tex[1], tex[2], 1})
	})
}

// MarchPass renders the cube's front faces. The fragment position is the
// entry point, the geometry texel at the same pixel the exit point.
type MarchPass struct{}

// Render clears out to the background and marches every covered pixel.
// It returns how many rays were marched.
func (MarchPass) Render(f *render.Frame, geometry RenderTarget, out *image.RGBA) int {
	bg := toRGBA(mgl32.Vec3{f.Background[0], f.Background[1], f.Background[2]})
	fill(out, bg)
	if !f.Ready() {
		return 0
	}

	exits := geometry.Read()
	b := out.Bounds()
	marched := 0
	rasterize(cubeMesh, f.MVP(), b.Dx(), b.Dy(), CullBack, func(x, y int, entry mgl32.Vec3) {
		texel := exits.At(x, y)
		if !Hit(texel) {
			return
		}
		exit := mgl32.Vec3{texel[0], texel[1], texel[2]}
		c := MarchRay(entry, exit, f.Volume, f.Transfer, f.Params)
		out.SetRGBA(b.Min.X+x, b.Min.Y+y, toRGBA(Over(c, f.Background)))
		marched++
	})
	return marched
}

func fill(img *image.RGBA, c color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func toRGBA(c mgl32.Vec3) color.RGBA {
	return color.RGBA{R: unit8(c[0]), G: unit8(c[1]), B: unit8(c[2]), A: 255}
}

func unit8(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
