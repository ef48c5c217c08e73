package transfer

import (
	"errors"
	"image/color"
	"testing"

	"github.com/gekko3d/volumert/volrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_DefaultStopsScenario(t *testing.T) {
	tf, err := Build(DefaultStops(), Options{})
	require.NoError(t, err)
	require.Equal(t, DefaultResolution, tf.Resolution())
	require.Len(t, tf.Pix(), DefaultResolution*4)

	tests := []struct {
		name string
		t    float32
		rgb  [3]uint8
	}{
		{"first stop", 0.1, [3]uint8{0, 250, 88}},
		{"midway between first and second", 0.4, [3]uint8{102, 176, 44}},
		{"second stop", 0.7, [3]uint8{204, 102, 0}},
		{"last stop", 1.0, [3]uint8{242, 242, 0}},
		{"before first stop", 0.0, [3]uint8{0, 250, 88}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tf.Lookup(tt.t)
			assert.Equal(t, tt.rgb, [3]uint8{c.R, c.G, c.B})
		})
	}
}

func TestBuild_ClampedEndpoints(t *testing.T) {
	stops := []Stop{
		{Position: 0.25, Color: MustParseColor("#102030")},
		{Position: 0.75, Color: MustParseColor("#A0B0C0")},
	}
	tf, err := Build(stops, Options{Resolution: 64})
	require.NoError(t, err)

	first, last := tf.Entry(0), tf.Entry(63)
	assert.Equal(t, color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0}, first)
	assert.Equal(t, color.NRGBA{R: 0xA0, G: 0xB0, B: 0xC0, A: 255}, last)

	// Out-of-range indices clamp to the table.
	assert.Equal(t, first, tf.Entry(-5))
	assert.Equal(t, last, tf.Entry(1000))
}

func TestBuild_EntryMatchesLookup(t *testing.T) {
	tf, err := Build(DefaultStops(), Options{})
	require.NoError(t, err)
	n := tf.Resolution()
	for i := 0; i < n; i++ {
		want := tf.Lookup(float32(i) / float32(n-1))
		got := tf.Entry(i)
		if !assert.InDelta(t, want.R, got.R, 1) || !assert.InDelta(t, want.G, got.G, 1) || !assert.InDelta(t, want.B, got.B, 1) {
			t.Fatalf("entry %d: table %v, lookup %v", i, got, want)
		}
	}
}

func TestBuild_Idempotent(t *testing.T) {
	a, err := Build(DefaultStops(), Options{})
	require.NoError(t, err)
	b, err := Build(DefaultStops(), Options{})
	require.NoError(t, err)

	assert.Equal(t, a.Pix(), b.Pix())
	assert.NotSame(t, a, b)
}

func TestBuild_CopiesStops(t *testing.T) {
	stops := DefaultStops()
	tf, err := Build(stops, Options{})
	require.NoError(t, err)

	stops[0].Color = mgl32.Vec3{1, 1, 1}
	assert.Equal(t, color.NRGBA{R: 0, G: 250, B: 88, A: 0}, tf.Entry(0))
	assert.Equal(t, DefaultStops(), tf.Stops())
}

func TestBuild_InvalidStopSets(t *testing.T) {
	red := mgl32.Vec3{1, 0, 0}
	tests := []struct {
		name  string
		stops []Stop
	}{
		{"no stops", nil},
		{"single stop", []Stop{{Position: 0.5, Color: red}}},
		{"negative position", []Stop{{Position: -0.1, Color: red}, {Position: 1, Color: red}}},
		{"position above one", []Stop{{Position: 0, Color: red}, {Position: 1.5, Color: red}}},
		{"channel out of range", []Stop{{Position: 0, Color: mgl32.Vec3{2, 0, 0}}, {Position: 1, Color: red}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tf, err := Build(tt.stops, Options{})
			assert.Nil(t, tf)
			assert.True(t, errors.Is(err, core.ErrInvalidStopSet), "got %v", err)
		})
	}

	_, err := Build(DefaultStops(), Options{Resolution: 1})
	assert.ErrorIs(t, err, core.ErrInvalidStopSet)
}

func TestGradient_StopOrderIsKept(t *testing.T) {
	black := mgl32.Vec3{0, 0, 0}
	red := mgl32.Vec3{1, 0, 0}
	blue := mgl32.Vec3{0, 0, 1}
	white := mgl32.Vec3{1, 1, 1}

	t.Run("tie", func(t *testing.T) {
		tf, err := Build([]Stop{
			{Position: 0, Color: black},
			{Position: 0.5, Color: red},
			{Position: 0.5, Color: blue},
			{Position: 1, Color: white},
		}, Options{})
		require.NoError(t, err)

		c := tf.Lookup(0.5)
		assert.Equal(t, [3]uint8{255, 0, 0}, [3]uint8{c.R, c.G, c.B})
		c = tf.Lookup(0.75)
		assert.Equal(t, [3]uint8{128, 128, 255}, [3]uint8{c.R, c.G, c.B})
	})

	t.Run("descending list", func(t *testing.T) {
		tf, err := Build([]Stop{
			{Position: 0.8, Color: red},
			{Position: 0.2, Color: blue},
		}, Options{})
		require.NoError(t, err)

		// Not re-sorted: everything up to the first stop takes its color.
		c := tf.Lookup(0.5)
		assert.Equal(t, [3]uint8{255, 0, 0}, [3]uint8{c.R, c.G, c.B})
		c = tf.Lookup(0.9)
		assert.Equal(t, [3]uint8{0, 0, 255}, [3]uint8{c.R, c.G, c.B})
	})
}

func TestBuild_AlphaModes(t *testing.T) {
	density, err := Build(DefaultStops(), Options{})
	require.NoError(t, err)
	assert.Equal(t, AlphaDensity, density.AlphaMode())
	assert.Equal(t, uint8(0), density.Entry(0).A)
	assert.Equal(t, uint8(255), density.Entry(255).A)
	assert.Equal(t, uint8(102), density.Lookup(0.4).A)

	lum, err := Build([]Stop{
		{Position: 0, Color: mgl32.Vec3{0, 0, 0}},
		{Position: 1, Color: mgl32.Vec3{1, 1, 1}},
	}, Options{Alpha: AlphaLuminance})
	require.NoError(t, err)
	for i := 0; i < lum.Resolution(); i++ {
		e := lum.Entry(i)
		assert.InDelta(t, e.R, e.A, 1)
	}
}

func TestSample_LinearBetweenTexels(t *testing.T) {
	tf, err := Build([]Stop{
		{Position: 0, Color: mgl32.Vec3{0, 0, 0}},
		{Position: 1, Color: mgl32.Vec3{1, 1, 1}},
	}, Options{Resolution: 2})
	require.NoError(t, err)

	s := tf.Sample(0.25)
	assert.InDelta(t, 0.25, s[0], 1e-6)
	assert.InDelta(t, 0.25, s[3], 1e-6)

	assert.Equal(t, tf.Sample(0), tf.Sample(-1))
	assert.Equal(t, tf.Sample(1), tf.Sample(2))
}

func TestImage_RepeatsTable(t *testing.T) {
	tf, err := Build(DefaultStops(), Options{})
	require.NoError(t, err)

	img := tf.Image(4)
	require.Equal(t, 256, img.Bounds().Dx())
	require.Equal(t, 4, img.Bounds().Dy())
	for y := 0; y < 4; y++ {
		assert.Equal(t, tf.Entry(128), img.NRGBAAt(128, y))
	}
}

func TestParseAlphaMode(t *testing.T) {
	m, err := ParseAlphaMode("luminance")
	require.NoError(t, err)
	assert.Equal(t, AlphaLuminance, m)

	m, err = ParseAlphaMode("")
	require.NoError(t, err)
	assert.Equal(t, AlphaDensity, m)

	_, err = ParseAlphaMode("gamma")
	assert.Error(t, err)
}
