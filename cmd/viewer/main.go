// Command viewer opens a window and draws the demo scene through the transform pipeline
// on the OpenGL or WebGPU backend.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine"
	"github.com/Carmen-Shannon/oxy-fixed/engine/camera"
	"github.com/Carmen-Shannon/oxy-fixed/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-fixed/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fixed/engine/window"
	"github.com/Carmen-Shannon/oxy-fixed/internal/demo"
	"github.com/chewxy/math32"
)

func init() {
	// GLFW and GL contexts must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	backend := flag.String("backend", "", "override the renderer backend (opengl, wgpu)")
	flag.Parse()

	if err := run(*configPath, *backend); err != nil {
		fmt.Fprintln(os.Stderr, "viewer:", err)
		os.Exit(1)
	}
}

func run(configPath, backendOverride string) error {
	cfg, err := demo.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.Renderer.Backend = common.Coalesce(backendOverride, cfg.Renderer.Backend)

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	backendType, err := cfg.BackendType()
	if err != nil {
		return err
	}
	if backendType == renderer.BackendTypeSoftware {
		return fmt.Errorf("the software backend has no window surface; use softviewer")
	}

	api := window.ClientAPIOpenGL
	if backendType == renderer.BackendTypeWGPU {
		api = window.ClientAPINone
	}
	w := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
		window.WithSizeLimits(320, 200, 0, 0),
		window.WithClientAPI(api),
		window.WithVSync(cfg.PresentMode() == renderer.PresentModeVSync),
	)

	p := pipeline.NewPipeline()
	r := renderer.NewRenderer(backendType, p,
		renderer.WithWindow(w),
		renderer.WithClearColor(renderer.Color(cfg.Renderer.ClearColor)),
		renderer.WithPresentMode(cfg.PresentMode()),
		renderer.WithMSAA(renderer.MSAASampleCount(cfg.Renderer.MSAA)),
	)
	if err := r.Initialize(); err != nil {
		return err
	}
	defer r.Cleanup()

	scene, err := demo.NewScene(cfg)
	if err != nil {
		return err
	}
	if err := scene.Upload(r); err != nil {
		return err
	}
	defer scene.Release(r)

	orbit := demo.NewOrbit(cfg)
	cam := camera.NewCamera(
		camera.WithFov(cfg.Camera.FovDegrees*math32.Pi/180),
		camera.WithClipPlanes(cfg.Camera.Near, cfg.Camera.Far),
		camera.WithController(orbit.Controller()),
	)

	eng := engine.NewEngine(
		engine.WithWindow(w),
		engine.WithRenderer(r),
		engine.WithPipeline(p),
		engine.WithCamera(cam),
		engine.WithTickRate(cfg.Engine.TickRate),
		engine.WithRenderFrameLimit(cfg.Engine.FrameLimit),
		engine.WithProfiling(cfg.Engine.Profiling),
	)

	w.SetKeyDownCallback(func(k common.Key) {
		if k == common.KeyEsc {
			eng.Quit()
			return
		}
		scene.KeyDown(k)
	})
	w.SetKeyUpCallback(scene.KeyUp)
	w.SetMiddleMouseDownCallback(orbit.ButtonDown)
	w.SetMiddleMouseUpCallback(orbit.ButtonUp)
	w.SetMouseMoveCallback(orbit.Move)
	w.SetScrollCallback(orbit.Scroll)

	eng.SetRenderCallback(func(dt float32) {
		scene.Update(dt)
		if err := scene.Draw(p, r); err != nil {
			common.ComponentLogger("viewer").Error("draw failed", "error", err)
			eng.Quit()
		}
	})

	common.ComponentLogger("viewer").Info("viewer running", "backend", backendType.String(), "controls", "WASD move, Q/E turn, G grid, F wireframe, P projection, middle-drag orbit, wheel zoom, Esc quit")
	eng.Run()
	return nil
}
