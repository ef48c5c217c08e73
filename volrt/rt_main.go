package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gekko3d/volumert/volrt/rt/app"
	"github.com/gekko3d/volumert/volrt/rt/config"
	"github.com/gekko3d/volumert/volrt/rt/core"
	"github.com/gekko3d/volumert/volrt/rt/gpu"
	"github.com/gekko3d/volumert/volrt/rt/raycast"
	"github.com/gekko3d/volumert/volrt/rt/volume"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

const (
	stepDelta  = 16
	alphaDelta = 0.05
	zoomStep   = 0.9
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	backend := flag.String("backend", "", "Renderer backend: gpu or cpu")
	dataset := flag.String("dataset", "", "Initial dataset: bonsai, foot or teapot")
	snapshot := flag.String("snapshot", "", "Render one frame with the CPU backend and write it to this PNG")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if *debug {
		cfg.Debug = true
	}
	if *backend != "" {
		cfg.Backend = config.Backend(*backend)
	}
	if *dataset != "" {
		cfg.Dataset = *dataset
	}
	if *snapshot != "" {
		cfg.Backend = config.BackendCPU
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger := core.NewDefaultLogger("volrt", cfg.Debug)

	provider := volume.NewProvider(volume.NewCatalog(cfg.Assets.Dir), logger)
	if _, err := provider.SelectByName(cfg.Dataset); err != nil {
		panic(err)
	}

	camera := core.NewOrbitCamera()
	cfg.ApplyCamera(camera)

	if cfg.Backend == config.BackendCPU {
		out := *snapshot
		if out == "" {
			out = "volrt.png"
		}
		if err := runSnapshot(cfg, provider, camera, logger, out); err != nil {
			panic(err)
		}
		return
	}

	if err := runWindow(cfg, *configPath, provider, camera, logger); err != nil {
		panic(err)
	}
}

// liveSettings is the part of cfg that can change while the window is open.
func liveSettings(cfg config.Config) (app.Settings, error) {
	stops, err := cfg.TransferStops()
	if err != nil {
		return app.Settings{}, err
	}
	bg, err := cfg.BackgroundColor()
	if err != nil {
		return app.Settings{}, err
	}
	return app.Settings{
		Params:     cfg.RenderParameters(),
		Stops:      stops,
		AlphaMode:  cfg.TransferAlphaMode(),
		Background: bg,
	}, nil
}

func appOptions(cfg config.Config, logger core.Logger) (app.Options, error) {
	s, err := liveSettings(cfg)
	if err != nil {
		return app.Options{}, err
	}
	return app.Options{
		Width:      cfg.Window.Width,
		Height:     cfg.Window.Height,
		Params:     s.Params,
		Stops:      s.Stops,
		AlphaMode:  s.AlphaMode,
		Background: s.Background,
		ShowStats:  cfg.Stats,
		Logger:     logger,
	}, nil
}

func runSnapshot(cfg config.Config, provider *volume.Provider, camera *core.OrbitCamera, logger core.Logger, out string) error {
	renderer := raycast.NewRenderer(cfg.Window.Width, cfg.Window.Height, logger)
	defer renderer.Release()

	opts, err := appOptions(cfg, logger)
	if err != nil {
		return err
	}
	opts.ShowStats = false
	application, err := app.New(renderer, provider, camera, opts)
	if err != nil {
		return err
	}

	stats, err := application.RenderFrame()
	if err != nil {
		return err
	}
	if err := writePNG(out, renderer.Snapshot()); err != nil {
		return err
	}
	preview := strings.TrimSuffix(out, filepath.Ext(out)) + ".tf.png"
	if err := writePNG(preview, stats.Transfer.Image(32)); err != nil {
		return err
	}
	logger.Infof("wrote %s and %s (%s, %d marched px, %v)", out, preview, stats.Volume, renderer.MarchedPixels(), stats.Elapsed)
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func runWindow(cfg config.Config, configPath string, provider *volume.Provider, camera *core.OrbitCamera, logger core.Logger) error {
	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		return err
	}
	defer window.Destroy()

	renderer, err := gpu.NewRenderer(window, logger)
	if err != nil {
		return err
	}
	defer renderer.Release()

	opts, err := appOptions(cfg, logger)
	if err != nil {
		return err
	}
	opts.Width, opts.Height = window.GetFramebufferSize()
	application, err := app.New(renderer, provider, camera, opts)
	if err != nil {
		return err
	}

	// Warm the cache so 1/2/3 switch without a decode stall.
	go func() {
		if err := provider.Preload(volume.AllDatasets()...); err != nil {
			logger.Warnf("preload: %v", err)
		}
	}()

	if cfg.Assets.Watch {
		watcher, err := volume.NewWatcher(provider)
		if err != nil {
			logger.Warnf("asset watcher disabled: %v", err)
		} else {
			watcher.Start()
			defer watcher.Close()
		}
	}

	// Edits to the config file restage steps, alpha, stops and background.
	if configPath != "" {
		cw, err := config.NewWatcher(configPath, logger, func(c config.Config) {
			s, err := liveSettings(c)
			if err == nil {
				err = application.Apply(s)
			}
			if err != nil {
				logger.Warnf("config %s not applied: %v", configPath, err)
				return
			}
			logger.Infof("config %s applied", configPath)
		})
		if err != nil {
			logger.Warnf("config watcher disabled: %v", err)
		} else {
			cw.Start()
			defer cw.Close()
		}
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.OnResize(width, height)
	})

	var dragging bool
	var lastX, lastY float64
	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft {
			return
		}
		dragging = action == glfw.Press
		lastX, lastY = w.GetCursorPos()
	})
	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		if !dragging {
			return
		}
		camera.Rotate(float32(xpos-lastX), float32(ypos-lastY))
		lastX, lastY = xpos, ypos
	})
	window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		if yoff > 0 {
			camera.Zoom(zoomStep)
		} else if yoff < 0 {
			camera.Zoom(1 / zoomStep)
		}
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press && action != glfw.Repeat {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.Key1, glfw.Key2, glfw.Key3:
			id := volume.DatasetID(key - glfw.Key1)
			// Decoding happens off the render thread; the provider
			// publishes the volume only when it is complete.
			go application.SelectVolume(id.String())
		case glfw.KeyUp, glfw.KeyDown:
			p := application.Parameters()
			if key == glfw.KeyUp {
				p.StepCount = min(p.StepCount+stepDelta, core.MaxStepCount)
			} else {
				p.StepCount = max(p.StepCount-stepDelta, core.MinStepCount)
			}
			application.SetParameters(p)
		case glfw.KeyLeftBracket, glfw.KeyRightBracket:
			p := application.Parameters()
			if key == glfw.KeyRightBracket {
				p.AlphaCorrection = min(p.AlphaCorrection+alphaDelta, core.MaxAlphaCorrection)
			} else {
				p.AlphaCorrection = max(p.AlphaCorrection-alphaDelta, core.MinAlphaCorrection)
			}
			application.SetParameters(p)
		case glfw.KeyS:
			application.ShowStats = !application.ShowStats
		}
	})

	return application.Run(func(app.Tick) bool {
		glfw.PollEvents()
		return !window.ShouldClose()
	})
}
