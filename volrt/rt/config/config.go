// Package config loads the viewer settings from YAML over built-in
// defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gekko3d/volumert/volrt/rt/core"
	"github.com/gekko3d/volumert/volrt/rt/transfer"
	"github.com/gekko3d/volumert/volrt/rt/volume"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

type Backend string

const (
	BackendGPU Backend = "gpu"
	BackendCPU Backend = "cpu"
)

type Window struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

type Assets struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

type Stop struct {
	Position float32 `yaml:"position"`
	Color    string  `yaml:"color"`
}

type Camera struct {
	FovY        float32 `yaml:"fov_y"`
	Near        float32 `yaml:"near"`
	Far         float32 `yaml:"far"`
	Distance    float32 `yaml:"distance"`
	Sensitivity float32 `yaml:"sensitivity"`
}

type Config struct {
	Window          Window  `yaml:"window"`
	Assets          Assets  `yaml:"assets"`
	Dataset         string  `yaml:"dataset"`
	Backend         Backend `yaml:"backend"`
	Steps           int     `yaml:"steps"`
	AlphaCorrection float32 `yaml:"alpha_correction"`
	AlphaMode       string  `yaml:"alpha_mode"`
	Background      string  `yaml:"background"`
	Stops           []Stop  `yaml:"stops"`
	Camera          Camera  `yaml:"camera"`
	Stats           bool    `yaml:"stats"`
	Debug           bool    `yaml:"debug"`
}

func Default() Config {
	params := core.DefaultRenderParameters()
	cam := core.NewOrbitCamera()
	stops := transfer.DefaultStops()
	cs := make([]Stop, len(stops))
	for i, s := range stops {
		cs[i] = Stop{Position: s.Position, Color: transfer.FormatColor(s.Color)}
	}
	return Config{
		Window:          Window{Width: 1280, Height: 720, Title: "volrt"},
		Assets:          Assets{Dir: "assets", Watch: true},
		Dataset:         volume.Bonsai.String(),
		Backend:         BackendGPU,
		Steps:           params.StepCount,
		AlphaCorrection: params.AlphaCorrection,
		AlphaMode:       transfer.AlphaDensity.String(),
		Background:      "#000000",
		Stops:           cs,
		Camera: Camera{
			FovY:        cam.FovY,
			Near:        cam.Near,
			Far:         cam.Far,
			Distance:    cam.Distance,
			Sensitivity: cam.Sensitivity,
		},
		Stats: true,
	}
}

// Load reads path over Default. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, leaving unset fields untouched, and
// validates the result. Unknown keys are errors.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return cfg.Validate()
}

func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if c.Backend != BackendGPU && c.Backend != BackendCPU {
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if _, err := volume.ParseDatasetID(c.Dataset); err != nil {
		return err
	}
	if err := c.RenderParameters().Validate(); err != nil {
		return err
	}
	if _, err := transfer.ParseAlphaMode(c.AlphaMode); err != nil {
		return err
	}
	if _, err := c.BackgroundColor(); err != nil {
		return err
	}
	if _, err := c.TransferStops(); err != nil {
		return err
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("camera near/far %g/%g out of order", c.Camera.Near, c.Camera.Far)
	}
	return nil
}

func (c Config) RenderParameters() core.RenderParameters {
	return core.RenderParameters{StepCount: c.Steps, AlphaCorrection: c.AlphaCorrection}
}

// TransferStops parses the stop colors and checks the set.
func (c Config) TransferStops() ([]transfer.Stop, error) {
	stops := make([]transfer.Stop, len(c.Stops))
	for i, s := range c.Stops {
		col, err := transfer.ParseColor(s.Color)
		if err != nil {
			return nil, fmt.Errorf("%w: stop %d: %v", core.ErrInvalidStopSet, i, err)
		}
		stops[i] = transfer.Stop{Position: s.Position, Color: col}
	}
	if err := transfer.ValidateStops(stops); err != nil {
		return nil, err
	}
	return stops, nil
}

func (c Config) TransferAlphaMode() transfer.AlphaMode {
	m, err := transfer.ParseAlphaMode(c.AlphaMode)
	if err != nil {
		return transfer.AlphaDensity
	}
	return m
}

// BackgroundColor is the opaque clear color.
func (c Config) BackgroundColor() (mgl32.Vec4, error) {
	col, err := transfer.ParseColor(c.Background)
	if err != nil {
		return mgl32.Vec4{}, fmt.Errorf("background: %w", err)
	}
	return col.Vec4(1), nil
}

// ApplyCamera copies the camera settings onto cam.
func (c Config) ApplyCamera(cam *core.OrbitCamera) {
	cam.FovY = c.Camera.FovY
	cam.Near = c.Camera.Near
	cam.Far = c.Camera.Far
	if c.Camera.Distance > 0 {
		cam.Distance = c.Camera.Distance
	}
	if c.Camera.Sensitivity > 0 {
		cam.Sensitivity = c.Camera.Sensitivity
	}
}
