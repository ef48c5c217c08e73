package gpu

import (
	"fmt"
	"unsafe"

	"github.com/gekko3d/volumert/volrt/rt/core"
	"github.com/gekko3d/volumert/volrt/rt/render"
	"github.com/gekko3d/volumert/volrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Renderer runs both ray-casting passes with WebGPU and presents to a
// glfw window surface.
type Renderer struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	GeometryPipeline *wgpu.RenderPipeline
	MarchPipeline    *wgpu.RenderPipeline
	MarchLayout      *wgpu.BindGroupLayout

	CubeBuffer    *wgpu.Buffer
	CubeVertices  uint32
	UniformBuffer *wgpu.Buffer
	Sampler       *wgpu.Sampler

	Geometry   OffscreenTarget
	GeometryBG *wgpu.BindGroup
	MarchBG    *wgpu.BindGroup

	Overlay *OverlayPass

	textures boundTextures
	acquire  surfaceAcquire
	logger   core.Logger
}

func NewRenderer(window *glfw.Window, logger core.Logger) (*Renderer, error) {
	r := &Renderer{logger: core.OrNop(logger)}
	if err := r.init(window); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) init(window *glfw.Window) error {
	r.Instance = wgpu.CreateInstance(nil)
	r.Surface = r.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))

	adapter, err := r.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: r.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("%w: adapter: %v", core.ErrGraphicsContext, err)
	}
	r.Adapter = adapter

	r.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("%w: device: %v", core.ErrGraphicsContext, err)
	}
	r.Queue = r.Device.GetQueue()

	width, height := window.GetFramebufferSize()
	caps := r.Surface.GetCapabilities(adapter)
	if len(caps.Formats) == 0 || len(caps.AlphaModes) == 0 {
		return fmt.Errorf("%w: surface reports no formats", core.ErrGraphicsContext)
	}
	r.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	r.Surface.Configure(adapter, r.Device, r.Config)

	if err := r.createPipelines(); err != nil {
		return err
	}
	if err := r.createResources(); err != nil {
		return err
	}
	if err := r.Geometry.Resize(r.Device, r.Config.Width, r.Config.Height); err != nil {
		return err
	}

	r.Overlay, err = NewOverlayPass(r.Device, r.Queue, r.Config.Format, r.Sampler)
	if err != nil {
		r.logger.Warnf("stats overlay disabled: %v", err)
		r.Overlay = nil
	}
	return nil
}

func (r *Renderer) createPipelines() error {
	geomModule, err := r.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Ray Geometry VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.RayGeometryWGSL},
	})
	if err != nil {
		return fmt.Errorf("%w: ray geometry shader: %v", core.ErrGraphicsContext, err)
	}
	marchModule, err := r.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Ray March VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.RayMarchWGSL},
	})
	if err != nil {
		return fmt.Errorf("%w: ray march shader: %v", core.ErrGraphicsContext, err)
	}

	cubeLayout := []wgpu.VertexBufferLayout{{
		ArrayStride: uint64(unsafe.Sizeof(core.CubeVertex{})),
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		},
	}}

	// Pass 1: front faces culled, so each pixel keeps the far side of the cube.
	r.GeometryPipeline, err = r.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Ray Geometry Pipeline",
		Vertex: wgpu.VertexState{
			Module:     geomModule,
			EntryPoint: "vs_main",
			Buffers:    cubeLayout,
		},
		Fragment: &wgpu.FragmentState{
			Module:     geomModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    RayGeometryFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeFront,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: ray geometry pipeline: %v", core.ErrGraphicsContext, err)
	}

	r.MarchLayout, err = r.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Ray March BGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: UniformSize,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension3D,
				},
			},
			{
				Binding:    3,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    4,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: ray march layout: %v", core.ErrGraphicsContext, err)
	}
	marchPipelineLayout, err := r.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{r.MarchLayout},
	})
	if err != nil {
		return fmt.Errorf("%w: ray march pipeline layout: %v", core.ErrGraphicsContext, err)
	}

	// Pass 2: back faces culled; output is premultiplied over the cleared
	// background.
	r.MarchPipeline, err = r.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Ray March Pipeline",
		Layout: marchPipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     marchModule,
			EntryPoint: "vs_main",
			Buffers:    cubeLayout,
		},
		Fragment: &wgpu.FragmentState{
			Module:     marchModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: r.Config.Format,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
					Alpha: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: ray march pipeline: %v", core.ErrGraphicsContext, err)
	}
	return nil
}

func (r *Renderer) createResources() error {
	cube := core.UnitCube()
	r.CubeVertices = uint32(len(cube))
	vSize := uint64(len(cube) * int(unsafe.Sizeof(core.CubeVertex{})))

	var err error
	r.CubeBuffer, err = r.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Cube VB",
		Size:  vSize,
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("%w: cube buffer: %v", core.ErrGraphicsContext, err)
	}
	r.Queue.WriteBuffer(r.CubeBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&cube[0])), vSize))

	r.UniformBuffer, err = r.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Ray Uniforms",
		Size:  UniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("%w: uniform buffer: %v", core.ErrGraphicsContext, err)
	}

	// Linear filtering on single-mip textures: no level-of-detail blending
	// across slices.
	r.Sampler, err = r.Device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("%w: sampler: %v", core.ErrGraphicsContext, err)
	}

	r.GeometryBG, err = r.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Ray Geometry BG",
		Layout: r.GeometryPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: r.UniformBuffer, Size: UniformSize},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: ray geometry bind group: %v", core.ErrGraphicsContext, err)
	}
	return nil
}

// Resize reconfigures the surface and reallocates the pass 1 target to the
// new framebuffer size.
func (r *Renderer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	w, h := uint32(width), uint32(height)
	if r.Config.Width == w && r.Config.Height == h && r.Geometry.Texture != nil {
		return nil
	}
	r.Config.Width, r.Config.Height = w, h
	r.Surface.Configure(r.Adapter, r.Device, r.Config)
	if err := r.Geometry.Resize(r.Device, w, h); err != nil {
		return err
	}
	r.releaseMarchBG()
	r.logger.Debugf("gpu targets resized to %dx%d", w, h)
	return nil
}

// syncTextures uploads a changed volume or transfer function. Old textures
// are released only after the new bind group exists.
func (r *Renderer) syncTextures(f *render.Frame) error {
	needVolume, needTable := r.textures.needs(f.Volume, f.Transfer)
	if needVolume {
		tex, err := uploadVolume(r.Device, r.Queue, f.Volume)
		if err != nil {
			return err
		}
		old := r.textures.volume
		r.textures.volume, r.textures.volumeID = tex, f.Volume.ID
		r.releaseMarchBG()
		old.Release()
		r.logger.Debugf("uploaded volume %s (%s)", f.Volume.Name, f.Volume.ID)
	}
	if needTable {
		tex, err := uploadTransfer(r.Device, r.Queue, f.Transfer)
		if err != nil {
			return err
		}
		old := r.textures.table
		r.textures.table, r.textures.transfer = tex, f.Transfer
		r.releaseMarchBG()
		old.Release()
	}
	if r.MarchBG == nil && r.textures.volume != nil && r.textures.table != nil {
		bg, err := r.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  "Ray March BG",
			Layout: r.MarchLayout,
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: r.UniformBuffer, Size: UniformSize},
				{Binding: 1, TextureView: r.Geometry.View},
				{Binding: 2, TextureView: r.textures.volume.View},
				{Binding: 3, TextureView: r.textures.table.View},
				{Binding: 4, Sampler: r.Sampler},
			},
		})
		if err != nil {
			return fmt.Errorf("%w: ray march bind group: %v", core.ErrGraphicsContext, err)
		}
		r.MarchBG = bg
	}
	return nil
}

func (r *Renderer) releaseMarchBG() {
	if r.MarchBG != nil {
		r.MarchBG.Release()
		r.MarchBG = nil
	}
}

// Render encodes pass 1 then pass 2 into one command buffer. Submission
// order guarantees pass 2 reads a finished pass 1 target.
func (r *Renderer) Render(f *render.Frame) error {
	if err := r.Resize(f.Width, f.Height); err != nil {
		return err
	}
	if err := r.syncTextures(f); err != nil {
		return err
	}
	r.Queue.WriteBuffer(r.UniformBuffer, 0, PackUniforms(f.MVP(), f.Background, f.Params))
	if r.Overlay != nil {
		r.Overlay.Update(f.Overlay, int(r.Config.Width), int(r.Config.Height))
	}

	next, err := r.Surface.GetCurrentTexture()
	if err != nil {
		// Outdated or timed out around resize and minimize. Reconfigure and
		// skip the frame.
		r.Surface.Configure(r.Adapter, r.Device, r.Config)
		return r.acquire.failed(err)
	}
	r.acquire.succeeded()
	defer next.Release()
	view, err := next.CreateView(nil)
	if err != nil {
		return fmt.Errorf("%w: surface view: %v", core.ErrGraphicsContext, err)
	}
	defer view.Release()

	encoder, err := r.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("%w: command encoder: %v", core.ErrGraphicsContext, err)
	}

	// Pass 1: ray exit points. Cleared to the miss sentinel.
	gPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Ray Geometry Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       r.Geometry.View,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	})
	gPass.SetPipeline(r.GeometryPipeline)
	gPass.SetBindGroup(0, r.GeometryBG, nil)
	gPass.SetVertexBuffer(0, r.CubeBuffer, 0, r.CubeBuffer.GetSize())
	gPass.Draw(r.CubeVertices, 1, 0, 0)
	if err := gPass.End(); err != nil {
		return fmt.Errorf("%w: ray geometry pass: %v", core.ErrGraphicsContext, err)
	}

	// Pass 2: march and composite over the background.
	bg := f.Background
	mPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Ray March Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: float64(bg[0]), G: float64(bg[1]), B: float64(bg[2]), A: 1},
		}},
	})
	if f.Ready() && r.MarchBG != nil {
		mPass.SetPipeline(r.MarchPipeline)
		mPass.SetBindGroup(0, r.MarchBG, nil)
		mPass.SetVertexBuffer(0, r.CubeBuffer, 0, r.CubeBuffer.GetSize())
		mPass.Draw(r.CubeVertices, 1, 0, 0)
	}
	if r.Overlay != nil {
		r.Overlay.Draw(mPass)
	}
	if err := mPass.End(); err != nil {
		return fmt.Errorf("%w: ray march pass: %v", core.ErrGraphicsContext, err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("%w: encoder finish: %v", core.ErrGraphicsContext, err)
	}
	r.Queue.Submit(cmd)
	r.Surface.Present()
	return nil
}

func (r *Renderer) Release() {
	if r.Overlay != nil {
		r.Overlay.Release()
		r.Overlay = nil
	}
	r.releaseMarchBG()
	r.textures.release()
	r.Geometry.Release()
	if r.GeometryBG != nil {
		r.GeometryBG.Release()
		r.GeometryBG = nil
	}
	if r.Sampler != nil {
		r.Sampler.Release()
		r.Sampler = nil
	}
	if r.UniformBuffer != nil {
		r.UniformBuffer.Release()
		r.UniformBuffer = nil
	}
	if r.CubeBuffer != nil {
		r.CubeBuffer.Release()
		r.CubeBuffer = nil
	}
	if r.MarchPipeline != nil {
		r.MarchPipeline.Release()
		r.MarchPipeline = nil
	}
	if r.MarchLayout != nil {
		r.MarchLayout.Release()
		r.MarchLayout = nil
	}
	if r.GeometryPipeline != nil {
		r.GeometryPipeline.Release()
		r.GeometryPipeline = nil
	}
	if r.Queue != nil {
		r.Queue.Release()
		r.Queue = nil
	}
	if r.Device != nil {
		r.Device.Release()
		r.Device = nil
	}
	if r.Adapter != nil {
		r.Adapter.Release()
		r.Adapter = nil
	}
	if r.Surface != nil {
		r.Surface.Release()
		r.Surface = nil
	}
	if r.Instance != nil {
		r.Instance.Release()
		r.Instance = nil
	}
}

var _ render.FrameRenderer = (*Renderer)(nil)
