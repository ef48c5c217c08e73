package transfer

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/gekko3d/volumert/volrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
)

const DefaultResolution = 256

// AlphaMode selects how opacity is derived from the gradient.
type AlphaMode uint8

const (
	// AlphaDensity makes table alpha equal to the lookup coordinate, so
	// opacity grows linearly with density.
	AlphaDensity AlphaMode = iota
	// AlphaLuminance uses the Rec.601 luma of the interpolated color.
	AlphaLuminance
)

func (m AlphaMode) String() string {
	switch m {
	case AlphaDensity:
		return "density"
	case AlphaLuminance:
		return "luminance"
	}
	return fmt.Sprintf("AlphaMode(%d)", uint8(m))
}

func ParseAlphaMode(s string) (AlphaMode, error) {
	switch s {
	case "", "density":
		return AlphaDensity, nil
	case "luminance":
		return AlphaLuminance, nil
	}
	return AlphaDensity, fmt.Errorf("unknown alpha mode %q", s)
}

// Stop is one gradient control point.
type Stop struct {
	Position float32
	Color    mgl32.Vec3
}

type Options struct {
	Resolution int
	Alpha      AlphaMode
}

// DefaultStops are the initial UI values.
func DefaultStops() []Stop {
	return []Stop{
		{Position: 0.1, Color: MustParseColor("#00FA58")},
		{Position: 0.7, Color: MustParseColor("#CC6600")},
		{Position: 1.0, Color: MustParseColor("#F2F200")},
	}
}

// TransferFunction is an immutable RGBA8 lookup table. A stop change
// produces a new TransferFunction; tables are never patched.
type TransferFunction struct {
	stops []Stop
	alpha AlphaMode
	pix   []uint8
}

// Build validates stops and evaluates the gradient into a fresh table.
// Stops are used in the given order.
func Build(stops []Stop, opts Options) (*TransferFunction, error) {
	if err := ValidateStops(stops); err != nil {
		return nil, err
	}
	res := opts.Resolution
	if res == 0 {
		res = DefaultResolution
	}
	if res < 2 {
		return nil, fmt.Errorf("%w: resolution %d below 2", core.ErrInvalidStopSet, res)
	}

	tf := &TransferFunction{
		stops: append([]Stop(nil), stops...),
		alpha: opts.Alpha,
		pix:   make([]uint8, res*4),
	}
	for i := 0; i < res; i++ {
		c := tf.eval(float64(i) / float64(res-1))
		copy(tf.pix[i*4:], []uint8{c.R, c.G, c.B, c.A})
	}
	return tf, nil
}

func ValidateStops(stops []Stop) error {
	if len(stops) < 2 {
		return fmt.Errorf("%w: need at least 2 stops, got %d", core.ErrInvalidStopSet, len(stops))
	}
	for i, s := range stops {
		p := float64(s.Position)
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("%w: stop %d position %v outside [0, 1]", core.ErrInvalidStopSet, i, s.Position)
		}
		for ch, v := range s.Color {
			if math.IsNaN(float64(v)) || v < 0 || v > 1 {
				return fmt.Errorf("%w: stop %d channel %d value %v outside [0, 1]", core.ErrInvalidStopSet, i, ch, v)
			}
		}
	}
	return nil
}

func (tf *TransferFunction) Resolution() int { return len(tf.pix) / 4 }

func (tf *TransferFunction) AlphaMode() AlphaMode { return tf.alpha }

// Stops returns a copy of the stops the table was built from.
func (tf *TransferFunction) Stops() []Stop {
	return append([]Stop(nil), tf.stops...)
}

// Pix is the RGBA8 table, Resolution()*4 bytes. Callers must not modify it.
func (tf *TransferFunction) Pix() []uint8 { return tf.pix }

// Entry returns table entry i, clamped to the table.
func (tf *TransferFunction) Entry(i int) color.NRGBA {
	n := tf.Resolution()
	if i < 0 {
		i = 0
	}
	if i >= n {
		i = n - 1
	}
	p := tf.pix[i*4 : i*4+4]
	return color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
}

// Lookup evaluates the gradient at t in [0, 1], quantized to 8 bits.
// Entry(i) == Lookup(i / (Resolution()-1)).
func (tf *TransferFunction) Lookup(t float32) color.NRGBA {
	return tf.eval(float64(t))
}

// Sample reads the table with linear filtering and clamp-to-edge, the way
// the GPU samples the uploaded texture. Channels are in [0, 1].
func (tf *TransferFunction) Sample(t float32) mgl32.Vec4 {
	n := tf.Resolution()
	x := float64(t) * float64(n-1)
	if !(x > 0) {
		x = 0
	}
	if x > float64(n-1) {
		x = float64(n - 1)
	}
	i0 := int(x)
	i1 := i0 + 1
	if i1 >= n {
		i1 = n - 1
	}
	f := float32(x - float64(i0))
	a := tf.pix[i0*4 : i0*4+4]
	b := tf.pix[i1*4 : i1*4+4]
	var out mgl32.Vec4
	for ch := 0; ch < 4; ch++ {
		va := float32(a[ch]) / 255
		vb := float32(b[ch]) / 255
		out[ch] = va + (vb-va)*f
	}
	return out
}

// Image renders the table as a Resolution() x height strip.
func (tf *TransferFunction) Image(height int) *image.NRGBA {
	if height < 1 {
		height = 1
	}
	n := tf.Resolution()
	img := image.NewNRGBA(image.Rect(0, 0, n, height))
	for y := 0; y < height; y++ {
		copy(img.Pix[y*img.Stride:], tf.pix)
	}
	return img
}

func (tf *TransferFunction) eval(t float64) color.NRGBA {
	rgb := gradient(tf.stops, t)
	var a float64
	switch tf.alpha {
	case AlphaLuminance:
		a = 0.299*rgb[0] + 0.587*rgb[1] + 0.114*rgb[2]
	default:
		a = t
	}
	return color.NRGBA{
		R: quantize64(rgb[0]),
		G: quantize64(rgb[1]),
		B: quantize64(rgb[2]),
		A: quantize64(a),
	}
}

// gradient interpolates stops in list order. Before the first stop and
// after the last the end colors hold. The first adjacent pair that brackets
// t wins; a zero-width span yields the later stop.
func gradient(stops []Stop, t float64) [3]float64 {
	first, last := stops[0], stops[len(stops)-1]
	if t <= float64(first.Position) {
		return vec64(first.Color)
	}
	if t >= float64(last.Position) {
		return vec64(last.Color)
	}
	// first < t < last, so some ascending pair brackets t.
	for k := 0; k+1 < len(stops); k++ {
		p0, p1 := float64(stops[k].Position), float64(stops[k+1].Position)
		if p0 <= t && t <= p1 {
			if p1 == p0 {
				return vec64(stops[k+1].Color)
			}
			f := (t - p0) / (p1 - p0)
			c0, c1 := vec64(stops[k].Color), vec64(stops[k+1].Color)
			return [3]float64{
				c0[0] + (c1[0]-c0[0])*f,
				c0[1] + (c1[1]-c0[1])*f,
				c0[2] + (c1[2]-c0[2])*f,
			}
		}
	}
	return vec64(last.Color)
}

func vec64(c mgl32.Vec3) [3]float64 {
	return [3]float64{float64(c[0]), float64(c[1]), float64(c[2])}
}

func quantize64(v float64) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(v * 255))
}

func quantize(v float32) uint8 {
	return quantize64(float64(v))
}
