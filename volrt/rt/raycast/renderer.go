package raycast

import (
	"image"
	"image/color"

	"github.com/gekko3d/volumert/volrt/rt/core"
	"github.com/gekko3d/volumert/volrt/rt/overlay"
	"github.com/gekko3d/volumert/volrt/rt/render"

	"golang.org/x/image/font"
)

// Renderer is the software backend. It runs the same two passes as the
// GPU backend on a single goroutine.
type Renderer struct {
	Geometry *FloatTarget
	Frame    *image.RGBA
	Marched  int

	face   font.Face
	logger core.Logger
}

func NewRenderer(width, height int, logger core.Logger) *Renderer {
	r := &Renderer{
		Geometry: NewFloatTarget(0, 0),
		logger:   core.OrNop(logger),
	}
	r.Resize(width, height)
	return r
}

// Resize matches the ray-geometry target and the framebuffer to the
// viewport, pixel for pixel.
func (r *Renderer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	if w, h := r.Geometry.Size(); w == width && h == height && r.Frame != nil {
		return nil
	}
	r.Geometry.Resize(width, height)
	r.Frame = image.NewRGBA(image.Rect(0, 0, width, height))
	r.logger.Debugf("cpu targets resized to %dx%d", width, height)
	return nil
}

func (r *Renderer) Render(f *render.Frame) error {
	if err := r.Resize(f.Width, f.Height); err != nil {
		return err
	}
	GeometryPass{}.Render(f, r.Geometry)
	r.Marched = MarchPass{}.Render(f, r.Geometry, r.Frame)
	if len(f.Overlay) > 0 {
		r.drawOverlay(f.Overlay)
	}
	return nil
}

func (r *Renderer) drawOverlay(lines []string) {
	if r.face == nil {
		face, err := overlay.NewFace(13)
		if err != nil {
			r.logger.Warnf("overlay disabled: %v", err)
			return
		}
		r.face = face
	}
	overlay.DrawLines(r.Frame, r.face, lines, 8, 8, color.RGBA{R: 255, G: 255, A: 255})
}

// MarchedPixels is the number of pixels the last frame marched.
func (r *Renderer) MarchedPixels() int { return r.Marched }

// Snapshot copies the last rendered frame.
func (r *Renderer) Snapshot() *image.RGBA {
	out := image.NewRGBA(r.Frame.Bounds())
	copy(out.Pix, r.Frame.Pix)
	return out
}

func (r *Renderer) Release() {
	if r.face != nil {
		r.face.Close()
		r.face = nil
	}
}

var _ render.FrameRenderer = (*Renderer)(nil)
