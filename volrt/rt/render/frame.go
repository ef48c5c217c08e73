// Package render defines the contract between the frame orchestrator and
// the ray-casting backends.
package render

import (
	"github.com/gekko3d/volumert/volrt/rt/core"
	"github.com/gekko3d/volumert/volrt/rt/transfer"
	"github.com/gekko3d/volumert/volrt/rt/volume"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraSource is the externally driven camera. Renderers only see the
// matrices copied into a Frame.
type CameraSource interface {
	ViewMatrix() mgl32.Mat4
	ProjectionMatrix(aspect float32) mgl32.Mat4
}

// Frame is an immutable snapshot of everything one frame reads.
type Frame struct {
	Index      uint64
	Width      int
	Height     int
	Model      mgl32.Mat4
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Params     core.RenderParameters
	Volume     *volume.Volume
	Transfer   *transfer.TransferFunction
	Background mgl32.Vec4
	Overlay    []string
}

// MVP returns Projection * View * Model.
func (f *Frame) MVP() mgl32.Mat4 {
	return f.Projection.Mul4(f.View).Mul4(f.Model)
}

// Ready reports whether the frame has a volume and transfer function to
// march through. Frames that are not ready clear to the background.
func (f *Frame) Ready() bool {
	return f.Volume != nil && f.Transfer != nil
}

// FrameRenderer runs the ray-geometry pass followed by the ray-march pass.
// Errors wrapping core.ErrGraphicsContext are fatal.
type FrameRenderer interface {
	Resize(width, height int) error
	Render(f *Frame) error
	Release()
}
