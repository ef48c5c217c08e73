package raycast

import (
	"github.com/gekko3d/volumert/volrt/rt/core"
	"github.com/gekko3d/volumert/volrt/rt/transfer"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// ReferenceSteps is the sampling rate, per unit of texture space, at
	// which transfer-function opacity is taken literally. Other rates are
	// corrected so the composited opacity does not depend on step count.
	ReferenceSteps = 256

	// EarlyExitAlpha stops a ray once it is effectively opaque.
	EarlyExitAlpha = 0.99
)

// DensitySampler returns the density at a texture-space position.
type DensitySampler interface {
	Sample(p mgl32.Vec3) float32
}

// MarchRay composites params.StepCount samples between entry and exit
// front to back. The result is premultiplied: rgb already carries alpha.
func MarchRay(entry, exit mgl32.Vec3, vol DensitySampler, tf *transfer.TransferFunction, params core.RenderParameters) mgl32.Vec4 {
	n := params.StepCount
	if n < 1 {
		return mgl32.Vec4{}
	}
	ray := exit.Sub(entry)
	length := ray.Len()
	if length == 0 {
		return mgl32.Vec4{}
	}
	delta := ray.Mul(1 / float32(n))
	exponent := length / float32(n) * ReferenceSteps

	var acc mgl32.Vec3
	var accAlpha float32
	pos := entry.Add(delta.Mul(0.5))
	for i := 0; i < n; i++ {
		s := tf.Sample(vol.Sample(pos))
		a := CorrectOpacity(s[3]*params.AlphaCorrection, exponent)
		weight := (1 - accAlpha) * a
		acc = acc.Add(mgl32.Vec3{s[0], s[1], s[2]}.Mul(weight))
		accAlpha += weight
		if accAlpha >= EarlyExitAlpha {
			break
		}
		pos = pos.Add(delta)
	}
	return mgl32.Vec4{acc[0], acc[1], acc[2], accAlpha}
}

// CorrectOpacity clamps a to [0, 1] and rescales it for a step that is
// exponent times the reference step: 1 - (1 - a)^exponent.
func CorrectOpacity(a, exponent float32) float32 {
	if !(a > 0) {
		return 0
	}
	if a >= 1 {
		return 1
	}
	return 1 - math32.Pow(1-a, exponent)
}

// Over composites a premultiplied sample over an opaque background.
func Over(src mgl32.Vec4, background mgl32.Vec4) mgl32.Vec3 {
	k := 1 - src[3]
	return mgl32.Vec3{
		src[0] + background[0]*k,
		src[1] + background[1]*k,
		src[2] + background[2]*k,
	}
}
