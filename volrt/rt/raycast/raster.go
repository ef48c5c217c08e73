package raycast

import (
	"github.com/gekko3d/volumert/volrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
)

type Cull uint8

const (
	CullNone Cull = iota
	CullFront
	CullBack
)

// fragmentFunc receives the pixel and the perspective-correct texture-space
// position of the surface covering its center.
type fragmentFunc func(x, y int, tex mgl32.Vec3)

type clipVertex struct {
	pos mgl32.Vec4
	tex mgl32.Vec3
}

type screenVertex struct {
	x, y float32
	invW float32
	tex  mgl32.Vec3
}

// rasterize draws a triangle list in a width x height viewport. Faces are
// counter-clockwise when front-facing. Triangles are clipped against the
// near plane; there is no depth test.
func rasterize(tris []core.CubeVertex, mvp mgl32.Mat4, width, height int, cull Cull, frag fragmentFunc) {
	if width <= 0 || height <= 0 {
		return
	}
	for i := 0; i+2 < len(tris); i += 3 {
		var in [3]clipVertex
		for k := 0; k < 3; k++ {
			p := mgl32.Vec3(tris[i+k].Pos)
			in[k] = clipVertex{
				pos: mvp.Mul4x1(p.Vec4(1)),
				tex: core.ObjectToTexture(p),
			}
		}
		poly := clipNear(in[:])
		if len(poly) < 3 {
			continue
		}
		sv := make([]screenVertex, len(poly))
		for k, v := range poly {
			invW := 1 / v.pos[3]
			sv[k] = screenVertex{
				x:    (v.pos[0]*invW*0.5 + 0.5) * float32(width),
				y:    (0.5 - v.pos[1]*invW*0.5) * float32(height),
				invW: invW,
				tex:  v.tex,
			}
		}
		for k := 1; k+1 < len(sv); k++ {
			drawTriangle(sv[0], sv[k], sv[k+1], width, height, cull, frag)
		}
	}
}

// clipNear keeps the part of the polygon with z >= -w (OpenGL near plane).
func clipNear(poly []clipVertex) []clipVertex {
	out := make([]clipVertex, 0, len(poly)+1)
	for i := range poly {
		a := poly[i]
		b := poly[(i+1)%len(poly)]
		da := a.pos[2] + a.pos[3]
		db := b.pos[2] + b.pos[3]
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			t := da / (da - db)
			out = append(out, clipVertex{
				pos: a.pos.Add(b.pos.Sub(a.pos).Mul(t)),
				tex: a.tex.Add(b.tex.Sub(a.tex).Mul(t)),
			})
		}
	}
	return out
}

func edge(a, b screenVertex, px, py float32) float32 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

func drawTriangle(v0, v1, v2 screenVertex, width, height int, cull Cull, frag fragmentFunc) {
	area := edge(v0, v1, v2.x, v2.y)
	if area == 0 {
		return
	}
	// Screen y points down, so a counter-clockwise (front) face has
	// negative area here.
	front := area < 0
	if (cull == CullFront && front) || (cull == CullBack && !front) {
		return
	}

	minX := clampInt(int(min3(v0.x, v1.x, v2.x)), 0, width-1)
	maxX := clampInt(int(max3(v0.x, v1.x, v2.x)), 0, width-1)
	minY := clampInt(int(min3(v0.y, v1.y, v2.y)), 0, height-1)
	maxY := clampInt(int(max3(v0.y, v1.y, v2.y)), 0, height-1)

	for y := minY; y <= maxY; y++ {
		py := float32(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float32(x) + 0.5
			w0 := edge(v1, v2, px, py) / area
			w1 := edge(v2, v0, px, py) / area
			w2 := edge(v0, v1, px, py) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			p0, p1, p2 := w0*v0.invW, w1*v1.invW, w2*v2.invW
			denom := p0 + p1 + p2
			if denom == 0 {
				continue
			}
			tex := v0.tex.Mul(p0).Add(v1.tex.Mul(p1)).Add(v2.tex.Mul(p2)).Mul(1 / denom)
			frag(x, y, tex)
		}
	}
}

func min3(a, b, c float32) float32 {
	return min(a, min(b, c))
}

func max3(a, b, c float32) float32 {
	return max(a, max(b, c))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
