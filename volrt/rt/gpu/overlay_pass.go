package gpu

import (
	"fmt"
	"unsafe"

	"github.com/gekko3d/volumert/volrt/rt/core"
	"github.com/gekko3d/volumert/volrt/rt/overlay"
	"github.com/gekko3d/volumert/volrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
)

const overlayFontSize = 16

var overlayColor = [4]float32{1, 1, 1, 0.9}

// OverlayPass draws the stats lines on top of the marched image.
type OverlayPass struct {
	Device *wgpu.Device
	Queue  *wgpu.Queue

	Atlas     *overlay.Atlas
	AtlasTex  *SampledTexture
	Pipeline  *wgpu.RenderPipeline
	BindGroup *wgpu.BindGroup

	VertexBuffer *wgpu.Buffer
	VertexCount  uint32
}

func NewOverlayPass(device *wgpu.Device, queue *wgpu.Queue, format wgpu.TextureFormat, sampler *wgpu.Sampler) (*OverlayPass, error) {
	atlas, err := overlay.NewAtlas(overlayFontSize)
	if err != nil {
		return nil, err
	}
	p := &OverlayPass{Device: device, Queue: queue, Atlas: atlas}
	if err := p.setup(format, sampler); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

func (p *OverlayPass) setup(format wgpu.TextureFormat, sampler *wgpu.Sampler) error {
	w, h := p.Atlas.Image.Bounds().Dx(), p.Atlas.Image.Bounds().Dy()
	size := wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1}
	tex, err := p.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Overlay Atlas",
		Size:          size,
		Format:        wgpu.TextureFormatR8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return fmt.Errorf("%w: overlay atlas: %v", core.ErrGraphicsContext, err)
	}
	p.Queue.WriteTexture(tex.AsImageCopy(), p.Atlas.Image.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(p.Atlas.Image.Stride),
		RowsPerImage: uint32(h),
	}, &size)
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("%w: overlay atlas view: %v", core.ErrGraphicsContext, err)
	}
	p.AtlasTex = &SampledTexture{Texture: tex, View: view}

	mod, err := p.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Overlay Text Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.TextWGSL},
	})
	if err != nil {
		return fmt.Errorf("%w: overlay shader: %v", core.ErrGraphicsContext, err)
	}

	p.Pipeline, err = p.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Overlay Text Pipeline",
		Vertex: wgpu.VertexState{
			Module:     mod,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: uint64(unsafe.Sizeof(overlay.TextVertex{})),
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
					{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     mod,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: format,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
					Alpha: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOne,
						Operation: wgpu.BlendOperationAdd,
					},
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: overlay pipeline: %v", core.ErrGraphicsContext, err)
	}

	p.BindGroup, err = p.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Overlay BG",
		Layout: p.Pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: p.AtlasTex.View},
			{Binding: 1, Sampler: sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: overlay bind group: %v", core.ErrGraphicsContext, err)
	}
	return nil
}

// Update rebuilds the glyph quads for this frame's lines.
func (p *OverlayPass) Update(lines []string, screenW, screenH int) {
	p.VertexCount = 0
	if len(lines) == 0 {
		return
	}
	items := make([]overlay.TextItem, 0, len(lines))
	lh := p.Atlas.LineHeight(1)
	for i, line := range lines {
		items = append(items, overlay.TextItem{
			Text:     line,
			Position: [2]float32{8, 8 + float32(i)*lh},
			Scale:    1,
			Color:    overlayColor,
		})
	}
	vertices := p.Atlas.BuildVertices(items, screenW, screenH)
	if len(vertices) == 0 {
		return
	}
	vSize := uint64(len(vertices) * int(unsafe.Sizeof(overlay.TextVertex{})))
	if p.VertexBuffer == nil || p.VertexBuffer.GetSize() < vSize {
		if p.VertexBuffer != nil {
			p.VertexBuffer.Release()
		}
		buf, err := p.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "Overlay VB",
			Size:  vSize,
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			p.VertexBuffer = nil
			return
		}
		p.VertexBuffer = buf
	}
	p.Queue.WriteBuffer(p.VertexBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), vSize))
	p.VertexCount = uint32(len(vertices))
}

func (p *OverlayPass) Draw(pass *wgpu.RenderPassEncoder) {
	if p.VertexCount == 0 || p.VertexBuffer == nil {
		return
	}
	pass.SetPipeline(p.Pipeline)
	pass.SetBindGroup(0, p.BindGroup, nil)
	pass.SetVertexBuffer(0, p.VertexBuffer, 0, p.VertexBuffer.GetSize())
	pass.Draw(p.VertexCount, 1, 0, 0)
}

func (p *OverlayPass) Release() {
	if p.VertexBuffer != nil {
		p.VertexBuffer.Release()
		p.VertexBuffer = nil
	}
	if p.BindGroup != nil {
		p.BindGroup.Release()
		p.BindGroup = nil
	}
	if p.Pipeline != nil {
		p.Pipeline.Release()
		p.Pipeline = nil
	}
	p.AtlasTex.Release()
	p.AtlasTex = nil
}
