// Command softviewer draws the demo scene with the software rasterizer and shows the result in an ebiten window.
// It needs no OpenGL or WebGPU driver.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine"
	"github.com/Carmen-Shannon/oxy-fixed/engine/camera"
	"github.com/Carmen-Shannon/oxy-fixed/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-fixed/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fixed/internal/demo"
	"github.com/chewxy/math32"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	workers := flag.Int("workers", 0, "override the number of raster workers")
	flag.Parse()

	if err := run(*configPath, *workers); err != nil {
		fmt.Fprintln(os.Stderr, "softviewer:", err)
		os.Exit(1)
	}
}

func run(configPath string, workers int) error {
	cfg, err := demo.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.Renderer.RasterWorkers = common.Coalesce(workers, cfg.Renderer.RasterWorkers)

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	log := common.ComponentLogger("softviewer")

	p := pipeline.NewPipeline()
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, p,
		renderer.WithSurfaceSize(cfg.Window.Width, cfg.Window.Height),
		renderer.WithClearColor(renderer.Color(cfg.Renderer.ClearColor)),
		renderer.WithRasterWorkers(cfg.Renderer.RasterWorkers),
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
		engine.WithRenderer(r),
		engine.WithPipeline(p),
		engine.WithCamera(cam),
		engine.WithProfiling(cfg.Engine.Profiling),
	)
	eng.Resize(cfg.Window.Width, cfg.Window.Height)

	g := &softGame{eng: eng, r: r, scene: scene, orbit: orbit}
	eng.SetRenderCallback(func(dt float32) {
		scene.Update(dt)
		if err := scene.Draw(p, r); err != nil {
			g.err = err
		}
	})

	ebiten.SetWindowTitle(cfg.Window.Title + " (software)")
	ebiten.SetWindowSize(cfg.Window.Width, cfg.Window.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetVsyncEnabled(cfg.PresentMode() == renderer.PresentModeVSync)
	if cfg.Engine.FrameLimit > 0 {
		ebiten.SetTPS(int(cfg.Engine.FrameLimit))
	}

	log.Info("softviewer running", "workers", cfg.Renderer.RasterWorkers, "controls", "WASD move, Q/E turn, G grid, F wireframe, P projection, middle-drag orbit, wheel zoom, Esc quit")
	err = ebiten.RunGame(g)
	eng.Quit()
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// softGame hosts the engine inside ebiten's loop. Ebiten calls Update, Draw and Layout from one goroutine,
// so the scene and pipeline never see concurrent access.
type softGame struct {
	eng   engine.Engine
	r     renderer.Renderer
	scene *demo.Scene
	orbit *demo.Orbit

	frame  *ebiten.Image
	keys   []ebiten.Key
	err    error
	width  int
	height int
}

var _ ebiten.Game = &softGame{}

func (g *softGame) Update() error {
	if g.err != nil {
		return g.err
	}

	g.keys = inpututil.AppendJustPressedKeys(g.keys[:0])
	for _, k := range g.keys {
		if k == ebiten.KeyEscape {
			return ebiten.Termination
		}
		if key, ok := translateKey(k); ok {
			g.scene.KeyDown(key)
		}
	}
	g.keys = inpututil.AppendJustReleasedKeys(g.keys[:0])
	for _, k := range g.keys {
		if key, ok := translateKey(k); ok {
			g.scene.KeyUp(key)
		}
	}

	cx, cy := ebiten.CursorPosition()
	x, y := int32(cx), int32(cy)
	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonMiddle):
		g.orbit.ButtonDown(x, y)
	case inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonMiddle):
		g.orbit.ButtonUp(x, y)
	default:
		g.orbit.Move(x, y)
	}
	if _, dy := ebiten.Wheel(); dy != 0 {
		g.orbit.Scroll(float32(dy))
	}
	return nil
}

func (g *softGame) Draw(screen *ebiten.Image) {
	if err := g.eng.Frame(); err != nil {
		g.err = err
		return
	}

	img := g.r.Image()
	if img == nil {
		return
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if g.frame == nil || g.frame.Bounds().Dx() != w || g.frame.Bounds().Dy() != h {
		if g.frame != nil {
			g.frame.Deallocate()
		}
		g.frame = ebiten.NewImage(w, h)
	}
	g.frame.WritePixels(img.Pix)
	screen.DrawImage(g.frame, nil)
}

func (g *softGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != g.width || outsideHeight != g.height {
		g.width, g.height = outsideWidth, outsideHeight
		g.eng.Resize(outsideWidth, outsideHeight)
	}
	return outsideWidth, outsideHeight
}

var ebitenKeys = map[ebiten.Key]common.Key{
	ebiten.KeyW:          common.KeyW,
	ebiten.KeyA:          common.KeyA,
	ebiten.KeyS:          common.KeyS,
	ebiten.KeyD:          common.KeyD,
	ebiten.KeyQ:          common.KeyQ,
	ebiten.KeyE:          common.KeyE,
	ebiten.KeyG:          common.KeyG,
	ebiten.KeyF:          common.KeyF,
	ebiten.KeyP:          common.KeyP,
	ebiten.KeySpace:      common.KeySpace,
	ebiten.KeyArrowUp:    common.KeyUp,
	ebiten.KeyArrowDown:  common.KeyDown,
	ebiten.KeyArrowLeft:  common.KeyLeft,
	ebiten.KeyArrowRight: common.KeyRight,
}

func translateKey(k ebiten.Key) (common.Key, bool) {
	key, ok := ebitenKeys[k]
	return key, ok
}
