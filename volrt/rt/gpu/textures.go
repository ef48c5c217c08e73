package gpu

import (
	"fmt"

	"github.com/gekko3d/volumert/volrt/rt/core"
	"github.com/gekko3d/volumert/volrt/rt/transfer"
	"github.com/gekko3d/volumert/volrt/rt/volume"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

// SampledTexture is a texture plus its default view.
type SampledTexture struct {
	Texture *wgpu.Texture
	View    *wgpu.TextureView
}

func (t *SampledTexture) Release() {
	if t == nil {
		return
	}
	if t.View != nil {
		t.View.Release()
	}
	if t.Texture != nil {
		t.Texture.Release()
	}
}

// uploadVolume creates a single-mip 3D R8 texture. The caller swaps it in
// only after this returns, so a frame never samples a partial upload.
func uploadVolume(device *wgpu.Device, queue *wgpu.Queue, v *volume.Volume) (*SampledTexture, error) {
	size := wgpu.Extent3D{
		Width:              uint32(v.Width),
		Height:             uint32(v.Height),
		DepthOrArrayLayers: uint32(v.Depth),
	}
	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Volume " + v.Name,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension3D,
		Format:        wgpu.TextureFormatR8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: volume texture: %v", core.ErrGraphicsContext, err)
	}
	queue.WriteTexture(tex.AsImageCopy(), v.Data(), &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(v.Width),
		RowsPerImage: uint32(v.Height),
	}, &size)

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("%w: volume view: %v", core.ErrGraphicsContext, err)
	}
	return &SampledTexture{Texture: tex, View: view}, nil
}

// uploadTransfer creates a Resolution x 1 RGBA8 texture from the table.
func uploadTransfer(device *wgpu.Device, queue *wgpu.Queue, tf *transfer.TransferFunction) (*SampledTexture, error) {
	size := wgpu.Extent3D{Width: uint32(tf.Resolution()), Height: 1, DepthOrArrayLayers: 1}
	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Transfer Function",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: transfer texture: %v", core.ErrGraphicsContext, err)
	}
	queue.WriteTexture(tex.AsImageCopy(), tf.Pix(), &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  size.Width * 4,
		RowsPerImage: 1,
	}, &size)

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("%w: transfer view: %v", core.ErrGraphicsContext, err)
	}
	return &SampledTexture{Texture: tex, View: view}, nil
}

// boundTextures tracks which volume and transfer function are on the GPU.
type boundTextures struct {
	volumeID uuid.UUID
	volume   *SampledTexture
	transfer *transfer.TransferFunction
	table    *SampledTexture
}

// needs reports which uploads a frame requires.
func (b *boundTextures) needs(v *volume.Volume, tf *transfer.TransferFunction) (vol, table bool) {
	vol = v != nil && (b.volume == nil || b.volumeID != v.ID)
	table = tf != nil && (b.table == nil || b.transfer != tf)
	return vol, table
}

func (b *boundTextures) release() {
	b.volume.Release()
	b.table.Release()
	b.volume, b.table = nil, nil
	b.transfer = nil
	b.volumeID = uuid.Nil
}
