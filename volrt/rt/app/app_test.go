package app

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gekko3d/volumert/volrt/rt/core"
	"github.com/gekko3d/volumert/volrt/rt/raycast"
	"github.com/gekko3d/volumert/volrt/rt/render"
	"github.com/gekko3d/volumert/volrt/rt/transfer"
	"github.com/gekko3d/volumert/volrt/rt/volume"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var layout = volume.Layout{Slices: 4, SlicesPerRow: 2}

// writeUniformAtlas stores a 2x2x4 volume of constant density.
func writeUniformAtlas(t *testing.T, path string, density uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = density
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func testProvider(t *testing.T) *volume.Provider {
	t.Helper()
	c := volume.NewCatalog(t.TempDir())
	for _, id := range volume.AllDatasets() {
		require.NoError(t, c.Set(volume.Dataset{ID: id, File: id.String() + ".png", Layout: layout}))
		writeUniformAtlas(t, c.Path(id), uint8(60*(int(id)+1)))
	}
	return volume.NewProvider(c, nil)
}

// recorder captures every frame it is asked to render.
type recorder struct {
	mu     sync.Mutex
	frames []render.Frame
	err    error
}

func (r *recorder) Resize(w, h int) error { return nil }

func (r *recorder) Render(f *render.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, *f)
	return r.err
}

func (r *recorder) Release() {}

func (r *recorder) last() render.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames[len(r.frames)-1]
}

func testOptions() Options {
	return Options{
		Width:      64,
		Height:     48,
		Params:     core.DefaultRenderParameters(),
		Stops:      transfer.DefaultStops(),
		Background: mgl32.Vec4{0, 0, 0, 1},
	}
}

func newTestApp(t *testing.T, r render.FrameRenderer) *App {
	t.Helper()
	a, err := New(r, testProvider(t), core.NewOrbitCamera(), testOptions())
	require.NoError(t, err)
	return a
}

func TestNew_RejectsInvalidInitialState(t *testing.T) {
	opts := testOptions()
	opts.Params.StepCount = 0
	_, err := New(&recorder{}, testProvider(t), core.NewOrbitCamera(), opts)
	assert.ErrorIs(t, err, core.ErrInvalidParameters)

	opts = testOptions()
	opts.Stops = opts.Stops[:1]
	_, err = New(&recorder{}, testProvider(t), core.NewOrbitCamera(), opts)
	assert.ErrorIs(t, err, core.ErrInvalidStopSet)
}

func TestRenderFrame_Snapshot(t *testing.T) {
	rec := &recorder{}
	a := newTestApp(t, rec)
	vol, err := a.SelectVolume("foot")
	require.NoError(t, err)

	stats, err := a.RenderFrame()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Index)
	assert.Equal(t, vol.ID, stats.VolumeID)
	assert.Equal(t, "foot", stats.Volume)
	assert.Equal(t, 64, stats.Width)

	f := rec.last()
	assert.Same(t, vol, f.Volume)
	assert.Equal(t, core.DefaultRenderParameters(), f.Params)
	assert.Equal(t, a.Camera.ProjectionMatrix(64.0/48.0), f.Projection)
	assert.Equal(t, mgl32.Ident4(), f.Model)
	assert.Nil(t, f.Overlay)
}

func TestSetParameters_AppliedAtNextFrame(t *testing.T) {
	rec := &recorder{}
	a := newTestApp(t, rec)

	p := core.RenderParameters{StepCount: 64, AlphaCorrection: 2}
	require.NoError(t, a.SetParameters(p))
	assert.Equal(t, p, a.Parameters())

	_, err := a.RenderFrame()
	require.NoError(t, err)
	assert.Equal(t, p, rec.last().Params)
}

func TestSetParameters_RejectsZeroSteps(t *testing.T) {
	rec := &recorder{}
	a := newTestApp(t, rec)

	err := a.SetParameters(core.RenderParameters{StepCount: 0, AlphaCorrection: 1})
	assert.ErrorIs(t, err, core.ErrInvalidParameters)

	_, err = a.RenderFrame()
	require.NoError(t, err)
	assert.Equal(t, core.DefaultRenderParameters(), rec.last().Params)
}

func TestSetTransferStops(t *testing.T) {
	rec := &recorder{}
	a := newTestApp(t, rec)
	_, err := a.RenderFrame()
	require.NoError(t, err)
	before := rec.last().Transfer

	err = a.SetTransferStops([]transfer.Stop{{Position: 2, Color: mgl32.Vec3{1, 0, 0}}})
	assert.ErrorIs(t, err, core.ErrInvalidStopSet)
	_, err = a.RenderFrame()
	require.NoError(t, err)
	assert.Same(t, before, rec.last().Transfer, "invalid stops must keep the previous table")

	stops := []transfer.Stop{
		{Position: 0, Color: mgl32.Vec3{0, 0, 1}},
		{Position: 1, Color: mgl32.Vec3{1, 0, 0}},
	}
	require.NoError(t, a.SetTransferStops(stops))
	_, err = a.RenderFrame()
	require.NoError(t, err)
	after := rec.last().Transfer
	assert.NotSame(t, before, after)
	assert.Equal(t, stops, after.Stops())
	assert.Same(t, after, a.TransferFunction())
}

func TestApply_RebuiltStopsReachNextFrame(t *testing.T) {
	rec := &recorder{}
	a := newTestApp(t, rec)
	_, err := a.RenderFrame()
	require.NoError(t, err)
	before := rec.last()

	s := Settings{
		Params: core.RenderParameters{StepCount: 64, AlphaCorrection: 0.5},
		Stops: []transfer.Stop{
			{Position: 0, Color: mgl32.Vec3{0, 0, 1}},
			{Position: 1, Color: mgl32.Vec3{1, 0, 0}},
		},
		AlphaMode:  transfer.AlphaLuminance,
		Background: mgl32.Vec4{1, 1, 1, 1},
	}
	require.NoError(t, a.Apply(s))
	assert.Same(t, before.Transfer, rec.last().Transfer, "nothing changes until the next frame")

	_, err = a.RenderFrame()
	require.NoError(t, err)
	f := rec.last()
	assert.NotSame(t, before.Transfer, f.Transfer)
	assert.Equal(t, s.Stops, f.Transfer.Stops())
	assert.Equal(t, transfer.AlphaLuminance, f.Transfer.AlphaMode())
	assert.Equal(t, s.Params, f.Params)
	assert.Equal(t, s.Background, f.Background)

	// Later stop edits keep the applied alpha mode.
	require.NoError(t, a.SetTransferStops(s.Stops))
	assert.Equal(t, transfer.AlphaLuminance, a.TransferFunction().AlphaMode())
}

func TestApply_InvalidSettingsChangeNothing(t *testing.T) {
	rec := &recorder{}
	a := newTestApp(t, rec)

	err := a.Apply(Settings{
		Params: core.RenderParameters{StepCount: 32, AlphaCorrection: 1},
		Stops:  []transfer.Stop{{Position: 0.5, Color: mgl32.Vec3{1, 1, 1}}},
	})
	assert.ErrorIs(t, err, core.ErrInvalidStopSet)

	_, err = a.RenderFrame()
	require.NoError(t, err)
	f := rec.last()
	assert.Equal(t, core.DefaultRenderParameters(), f.Params)
	assert.Equal(t, transfer.DefaultStops(), f.Transfer.Stops())
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, f.Background)
}

func TestSelectVolume_FailureKeepsPrevious(t *testing.T) {
	rec := &recorder{}
	a := newTestApp(t, rec)
	prev, err := a.SelectVolume("bonsai")
	require.NoError(t, err)

	_, err = a.SelectVolume("skull")
	assert.ErrorIs(t, err, core.ErrDatasetLoad)

	require.NoError(t, os.Remove(a.Provider.Catalog().Path(volume.Teapot)))
	_, err = a.SelectVolume("teapot")
	assert.ErrorIs(t, err, core.ErrDatasetLoad)

	_, err = a.RenderFrame()
	require.NoError(t, err)
	assert.Same(t, prev, rec.last().Volume)
}

func TestOnResize(t *testing.T) {
	rec := &recorder{}
	a := newTestApp(t, rec)

	a.OnResize(1920, 1080)
	a.OnResize(0, 0)
	_, err := a.RenderFrame()
	require.NoError(t, err)

	f := rec.last()
	assert.Equal(t, 1920, f.Width)
	assert.Equal(t, 1080, f.Height)
	assert.Equal(t, a.Camera.ProjectionMatrix(1920.0/1080.0), f.Projection)
}

func TestRenderFrame_ResizesCPUTargets(t *testing.T) {
	r := raycast.NewRenderer(800, 600, nil)
	a, err := New(r, testProvider(t), core.NewOrbitCamera(), Options{
		Width:      800,
		Height:     600,
		Params:     core.RenderParameters{StepCount: 2, AlphaCorrection: 1},
		Stops:      transfer.DefaultStops(),
		Background: mgl32.Vec4{0, 0, 0, 1},
	})
	require.NoError(t, err)
	_, err = a.SelectVolume("bonsai")
	require.NoError(t, err)

	_, err = a.RenderFrame()
	require.NoError(t, err)

	a.OnResize(1920, 1080)
	_, err = a.RenderFrame()
	require.NoError(t, err)
	w, h := r.Geometry.Size()
	assert.Equal(t, [2]int{1920, 1080}, [2]int{w, h})
	assert.Equal(t, image.Rect(0, 0, 1920, 1080), r.Frame.Bounds())
}

// A dataset switch racing the render loop must yield frames that show
// either the old or the new volume in full.
func TestSelectVolume_FramesNeverTorn(t *testing.T) {
	r := raycast.NewRenderer(24, 24, nil)
	a, err := New(r, testProvider(t), core.NewOrbitCamera(), Options{
		Width:      24,
		Height:     24,
		Params:     core.RenderParameters{StepCount: 8, AlphaCorrection: 1},
		Stops:      transfer.DefaultStops(),
		Background: mgl32.Vec4{0, 0, 0, 1},
	})
	require.NoError(t, err)
	_, err = a.SelectVolume("bonsai")
	require.NoError(t, err)

	// Reference images for every dataset.
	refs := make(map[string]*image.RGBA)
	for _, id := range volume.AllDatasets() {
		_, err := a.SelectVolume(id.String())
		require.NoError(t, err)
		stats, err := a.RenderFrame()
		require.NoError(t, err)
		refs[stats.Volume] = r.Snapshot()
	}

	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		for i := 0; i < 30; i++ {
			id := volume.AllDatasets()[i%3]
			if _, err := a.SelectVolume(id.String()); err != nil {
				errs <- err
				return
			}
		}
	}()

	for i := 0; i < 30; i++ {
		stats, err := a.RenderFrame()
		require.NoError(t, err)
		ref, ok := refs[stats.Volume]
		require.True(t, ok)
		require.Equal(t, ref.Pix, r.Frame.Pix, "frame %d does not match %s", stats.Index, stats.Volume)
	}
	assert.NoError(t, <-errs)
}

func TestRun_TicksOncePerFrame(t *testing.T) {
	rec := &recorder{}
	a := newTestApp(t, rec)
	base := time.Unix(1000, 0)
	n := 0
	a.Clock = NewClock(func() time.Time {
		n++
		return base.Add(time.Duration(n) * 16 * time.Millisecond)
	})

	var ticks []Tick
	err := a.Run(func(tk Tick) bool {
		ticks = append(ticks, tk)
		return len(ticks) <= 3
	})
	require.NoError(t, err)
	require.Len(t, ticks, 4)
	assert.Len(t, rec.frames, 3)
	for i, tk := range ticks {
		assert.Equal(t, uint64(i+1), tk.Index)
	}
	assert.Equal(t, time.Duration(0), ticks[0].Delta)
	assert.Equal(t, 16*time.Millisecond, ticks[1].Delta)
	assert.InDelta(t, 62.5, a.Profiler.FPS(), 1e-6)
}

func TestRun_StopsOnGraphicsError(t *testing.T) {
	rec := &recorder{err: fmt.Errorf("%w: device lost", core.ErrGraphicsContext)}
	a := newTestApp(t, rec)

	calls := 0
	err := a.Run(func(Tick) bool {
		calls++
		return true
	})
	assert.True(t, errors.Is(err, core.ErrGraphicsContext))
	assert.Equal(t, 1, calls)
}

func TestRun_ContinuesOnOtherErrors(t *testing.T) {
	rec := &recorder{err: errors.New("transient")}
	a := newTestApp(t, rec)

	calls := 0
	err := a.Run(func(Tick) bool {
		calls++
		return calls < 3
	})
	require.NoError(t, err)
	assert.Len(t, rec.frames, 2)
}

func TestRun_SkipsFrameWhenSurfaceUnavailable(t *testing.T) {
	rec := &recorder{err: fmt.Errorf("%w: outdated", core.ErrSurfaceUnavailable)}
	var out, errOut bytes.Buffer
	opts := testOptions()
	opts.Logger = core.NewLogger(&out, &errOut, "", false, 0)
	a, err := New(rec, testProvider(t), core.NewOrbitCamera(), opts)
	require.NoError(t, err)

	calls := 0
	err = a.Run(func(Tick) bool {
		calls++
		return calls < 4
	})
	require.NoError(t, err)
	assert.Len(t, rec.frames, 3)
	assert.Contains(t, errOut.String(), "WARN: frame 1: surface texture unavailable")
	assert.NotContains(t, errOut.String(), "ERROR")
}

func TestRenderFrame_StatsOverlay(t *testing.T) {
	rec := &recorder{}
	a := newTestApp(t, rec)
	a.ShowStats = true
	_, err := a.SelectVolume("teapot")
	require.NoError(t, err)

	_, err = a.RenderFrame()
	require.NoError(t, err)
	lines := rec.last().Overlay
	assert.Contains(t, lines, "volume   teapot")
	assert.Contains(t, lines, "steps    256")
}

func TestProfiler_Lines(t *testing.T) {
	p := NewProfiler()
	p.BeginScope("update")
	p.EndScope("update")
	p.BeginScope("render")
	p.EndScope("render")
	p.BeginScope("update")
	p.SetCount("marched", 12)
	p.Frame(20 * time.Millisecond)

	lines := p.Lines()
	require.Len(t, lines, 4)
	assert.Equal(t, "FPS 50.0", lines[0])
	assert.Contains(t, lines[1], "update")
	assert.Contains(t, lines[2], "render")
	assert.Equal(t, "marched  12", lines[3])
}
