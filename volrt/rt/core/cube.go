package core

import "github.com/go-gl/mathgl/mgl32"

// Box is the volume's bounding cube. Object space spans [-0.5, 0.5]^3 and
// texture space [0, 1]^3; Model places the cube in the world.
type Box struct {
	Center      mgl32.Vec3
	Orientation mgl32.Quat
	Size        mgl32.Vec3
}

// NewBox is the unit cube at the origin, as the datasets are authored.
func NewBox() *Box {
	return &Box{Orientation: mgl32.QuatIdent(), Size: mgl32.Vec3{1, 1, 1}}
}

// Model maps object space to world space: scale, then orient, then move.
func (b *Box) Model() mgl32.Mat4 {
	m := mgl32.Scale3D(b.Size.Elem())
	m = b.Orientation.Mat4().Mul4(m)
	return mgl32.Translate3D(b.Center.Elem()).Mul4(m)
}

// ObjectToTexture maps a cube-local point to its volume coordinate.
func ObjectToTexture(p mgl32.Vec3) mgl32.Vec3 {
	return p.Add(mgl32.Vec3{0.5, 0.5, 0.5})
}

// CubeVertex matches the WGSL vertex input of both ray-casting passes.
type CubeVertex struct {
	Pos [3]float32
}

// UnitCube returns the 12 triangles of the [-0.5, 0.5]^3 cube as a flat
// triangle list. Every triangle winds counter-clockwise seen from outside.
func UnitCube() []CubeVertex {
	faces := []struct{ n, u, v mgl32.Vec3 }{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}},
	}

	verts := make([]CubeVertex, 0, 36)
	for _, f := range faces {
		c := f.n.Mul(0.5)
		u := f.u.Mul(0.5)
		v := f.v.Mul(0.5)
		quad := [4]mgl32.Vec3{
			c.Sub(u).Sub(v),
			c.Add(u).Sub(v),
			c.Add(u).Add(v),
			c.Sub(u).Add(v),
		}
		for _, i := range [6]int{0, 1, 2, 0, 2, 3} {
			verts = append(verts, CubeVertex{Pos: quad[i]})
		}
	}
	return verts
}
