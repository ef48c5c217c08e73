package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/volumert/volrt/rt/core"
	"github.com/gekko3d/volumert/volrt/rt/raycast"

	"github.com/go-gl/mathgl/mgl32"
)

// UniformSize is the byte size of the WGSL Uniforms struct:
//
//	mvp: mat4x4<f32>           -- 0
//	background: vec4<f32>      -- 64
//	steps: f32                 -- 80
//	alpha_correction: f32      -- 84
//	reference_steps: f32       -- 88
//	early_exit: f32            -- 92
const UniformSize = 96

// ClipRemap converts OpenGL clip depth [-w, w] to WebGPU's [0, w].
var ClipRemap = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// PackUniforms lays out the per-frame uniforms shared by both passes.
func PackUniforms(mvp mgl32.Mat4, background mgl32.Vec4, params core.RenderParameters) []byte {
	buf := make([]byte, UniformSize)
	put := func(offset int, v float32) {
		binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(v))
	}

	m := ClipRemap.Mul4(mvp)
	for i, v := range m {
		put(i*4, v)
	}
	for i, v := range background {
		put(64+i*4, v)
	}
	put(80, float32(params.StepCount))
	put(84, params.AlphaCorrection)
	put(88, raycast.ReferenceSteps)
	put(92, raycast.EarlyExitAlpha)
	return buf
}
