// Package app sequences the two ray-casting passes each frame and stages
// parameter changes from UI and watcher goroutines.
package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gekko3d/volumert/volrt/rt/core"
	"github.com/gekko3d/volumert/volrt/rt/render"
	"github.com/gekko3d/volumert/volrt/rt/transfer"
	"github.com/gekko3d/volumert/volrt/rt/volume"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Tick is one advance of the frame clock.
type Tick struct {
	Index uint64
	Time  time.Time
	Delta time.Duration
}

// Clock advances exactly once per Run iteration.
type Clock struct {
	now   func() time.Time
	last  time.Time
	index uint64
}

func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

func (c *Clock) Advance() Tick {
	t := c.now()
	var delta time.Duration
	if !c.last.IsZero() {
		delta = t.Sub(c.last)
	}
	c.last = t
	c.index++
	return Tick{Index: c.index, Time: t, Delta: delta}
}

// FrameStats describes what a rendered frame actually used.
type FrameStats struct {
	Index    uint64
	VolumeID uuid.UUID
	Volume   string
	Params   core.RenderParameters
	Transfer *transfer.TransferFunction
	Width    int
	Height   int
	Elapsed  time.Duration
}

type marchCounter interface {
	MarchedPixels() int
}

// staged holds changes waiting for the next frame start.
type staged struct {
	params     *core.RenderParameters
	transfer   *transfer.TransferFunction
	alphaMode  *transfer.AlphaMode
	background *mgl32.Vec4
	width      int
	height     int
}

// Settings is the live-editable subset of the renderer state, as reloaded
// from the config file.
type Settings struct {
	Params     core.RenderParameters
	Stops      []transfer.Stop
	AlphaMode  transfer.AlphaMode
	Background mgl32.Vec4
}

type App struct {
	Renderer   render.FrameRenderer
	Provider   *volume.Provider
	Camera     render.CameraSource
	Box        *core.Box
	Profiler   *Profiler
	Clock      *Clock
	Background mgl32.Vec4
	ShowStats  bool

	mu        sync.Mutex
	pending   staged
	params    core.RenderParameters
	transfer  *transfer.TransferFunction
	alphaMode transfer.AlphaMode
	width     int
	height    int

	frame  uint64
	logger core.Logger
}

type Options struct {
	Width      int
	Height     int
	Params     core.RenderParameters
	Stops      []transfer.Stop
	AlphaMode  transfer.AlphaMode
	Background mgl32.Vec4
	ShowStats  bool
	Logger     core.Logger
}

// New builds the initial transfer function and parameters. Both must be
// valid: there is no last-known-good state to fall back to yet.
func New(renderer render.FrameRenderer, provider *volume.Provider, camera render.CameraSource, opts Options) (*App, error) {
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	tf, err := transfer.Build(opts.Stops, transfer.Options{Alpha: opts.AlphaMode})
	if err != nil {
		return nil, err
	}
	return &App{
		Renderer:   renderer,
		Provider:   provider,
		Camera:     camera,
		Box:        core.NewBox(),
		Profiler:   NewProfiler(),
		Clock:      NewClock(nil),
		Background: opts.Background,
		ShowStats:  opts.ShowStats,
		params:     opts.Params,
		transfer:   tf,
		alphaMode:  opts.AlphaMode,
		width:      opts.Width,
		height:     opts.Height,
		logger:     core.OrNop(opts.Logger),
	}, nil
}

// SetParameters stages p for the next frame. Invalid values are rejected
// and the current parameters stay in effect.
func (a *App) SetParameters(p core.RenderParameters) error {
	if err := p.Validate(); err != nil {
		a.logger.Warnf("set parameters: %v", err)
		return err
	}
	a.mu.Lock()
	a.pending.params = &p
	a.mu.Unlock()
	return nil
}

// Parameters returns the staged parameters if any, else the current ones.
func (a *App) Parameters() core.RenderParameters {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending.params != nil {
		return *a.pending.params
	}
	return a.params
}

// SetTransferStops rebuilds the transfer function off the render goroutine
// and stages the complete table.
func (a *App) SetTransferStops(stops []transfer.Stop) error {
	a.mu.Lock()
	mode := a.alphaMode
	if a.pending.alphaMode != nil {
		mode = *a.pending.alphaMode
	}
	a.mu.Unlock()

	tf, err := transfer.Build(stops, transfer.Options{Alpha: mode})
	if err != nil {
		a.logger.Warnf("set transfer stops: %v", err)
		return err
	}
	a.mu.Lock()
	a.pending.transfer = tf
	a.mu.Unlock()
	return nil
}

// TransferFunction returns the staged table if any, else the current one.
func (a *App) TransferFunction() *transfer.TransferFunction {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending.transfer != nil {
		return a.pending.transfer
	}
	return a.transfer
}

// Apply validates every part of s before staging any of it, so a bad
// settings file changes nothing.
func (a *App) Apply(s Settings) error {
	if err := s.Params.Validate(); err != nil {
		a.logger.Warnf("apply settings: %v", err)
		return err
	}
	tf, err := transfer.Build(s.Stops, transfer.Options{Alpha: s.AlphaMode})
	if err != nil {
		a.logger.Warnf("apply settings: %v", err)
		return err
	}
	mode, bg := s.AlphaMode, s.Background
	a.mu.Lock()
	a.pending.params = &s.Params
	a.pending.transfer = tf
	a.pending.alphaMode = &mode
	a.pending.background = &bg
	a.mu.Unlock()
	return nil
}

// SelectVolume loads name and publishes it once fully decoded. On failure
// the previous volume keeps rendering.
func (a *App) SelectVolume(name string) (*volume.Volume, error) {
	v, err := a.Provider.SelectByName(name)
	if err != nil {
		a.logger.Warnf("select volume %q: %v", name, err)
		return nil, err
	}
	return v, nil
}

// OnResize stages a viewport change. Non-positive sizes (minimized
// windows) are ignored.
func (a *App) OnResize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	a.mu.Lock()
	a.pending.width, a.pending.height = width, height
	a.mu.Unlock()
}

func (a *App) applyPending() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending.params != nil {
		a.params = *a.pending.params
	}
	if a.pending.transfer != nil {
		a.transfer = a.pending.transfer
	}
	if a.pending.alphaMode != nil {
		a.alphaMode = *a.pending.alphaMode
	}
	if a.pending.background != nil {
		a.Background = *a.pending.background
	}
	if a.pending.width > 0 && a.pending.height > 0 {
		a.width, a.height = a.pending.width, a.pending.height
	}
	a.pending = staged{}
}

// RenderFrame applies staged changes, snapshots them into a Frame and runs
// pass 1 then pass 2.
func (a *App) RenderFrame() (FrameStats, error) {
	start := time.Now()

	a.Profiler.BeginScope("update")
	a.applyPending()
	a.frame++

	f := &render.Frame{
		Index:      a.frame,
		Width:      a.width,
		Height:     a.height,
		Model:      a.Box.Model(),
		Params:     a.params,
		Volume:     a.Provider.Active(),
		Transfer:   a.transfer,
		Background: a.Background,
	}
	aspect := float32(1)
	if a.height > 0 {
		aspect = float32(a.width) / float32(a.height)
	}
	f.View = a.Camera.ViewMatrix()
	f.Projection = a.Camera.ProjectionMatrix(aspect)
	a.Profiler.EndScope("update")

	if a.ShowStats {
		f.Overlay = a.overlayLines(f)
	}

	a.Profiler.BeginScope("render")
	err := a.Renderer.Render(f)
	a.Profiler.EndScope("render")

	stats := FrameStats{
		Index:    f.Index,
		Params:   f.Params,
		Transfer: f.Transfer,
		Width:    f.Width,
		Height:   f.Height,
		Elapsed:  time.Since(start),
	}
	if f.Volume != nil {
		stats.VolumeID = f.Volume.ID
		stats.Volume = f.Volume.Name
	}
	if mc, ok := a.Renderer.(marchCounter); ok {
		a.Profiler.SetCount("marched", mc.MarchedPixels())
	}
	if err != nil {
		return stats, fmt.Errorf("frame %d: %w", f.Index, err)
	}
	return stats, nil
}

func (a *App) overlayLines(f *render.Frame) []string {
	lines := a.Profiler.Lines()
	name := "none"
	if f.Volume != nil {
		name = f.Volume.Name
	}
	return append(lines,
		fmt.Sprintf("volume   %s", name),
		fmt.Sprintf("steps    %d", f.Params.StepCount),
		fmt.Sprintf("alpha    %.2f", f.Params.AlphaCorrection),
	)
}

// Run advances the clock once per iteration, asks poll whether to keep
// going, then renders one frame. Graphics context errors end the loop;
// anything else, an unavailable surface included, drops one frame.
func (a *App) Run(poll func(Tick) bool) error {
	for {
		tick := a.Clock.Advance()
		if !poll(tick) {
			return nil
		}
		a.Profiler.Frame(tick.Delta)
		if _, err := a.RenderFrame(); err != nil {
			if errors.Is(err, core.ErrGraphicsContext) {
				a.logger.Errorf("render loop stopped: %v", err)
				return err
			}
			a.logger.Warnf("%v", err)
		}
	}
}
