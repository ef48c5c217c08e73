package gpu

import (
	"fmt"

	"github.com/gekko3d/volumert/volrt/rt/core"

	"github.com/cogentcore/webgpu/wgpu"
)

// RayGeometryFormat keeps exit coordinates at full float precision.
const RayGeometryFormat = wgpu.TextureFormatRGBA32Float

// OffscreenTarget is the pass 1 render target, sized to the viewport.
type OffscreenTarget struct {
	Texture *wgpu.Texture
	View    *wgpu.TextureView
	Width   uint32
	Height  uint32
}

func (t *OffscreenTarget) Resize(device *wgpu.Device, width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	if t.Texture != nil && t.Width == width && t.Height == height {
		return nil
	}
	t.Release()

	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Ray Geometry Target",
		Size:          wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        RayGeometryFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("%w: ray geometry target: %v", core.ErrGraphicsContext, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("%w: ray geometry view: %v", core.ErrGraphicsContext, err)
	}
	t.Texture, t.View = tex, view
	t.Width, t.Height = width, height
	return nil
}

func (t *OffscreenTarget) Release() {
	if t.View != nil {
		t.View.Release()
		t.View = nil
	}
	if t.Texture != nil {
		t.Texture.Release()
		t.Texture = nil
	}
}
