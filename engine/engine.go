package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/camera"
	"github.com/Carmen-Shannon/oxy-fixed/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-fixed/engine/profiler"
	"github.com/Carmen-Shannon/oxy-fixed/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fixed/engine/window"
)

// engine implements the Engine interface.
// Ticks run on their own goroutine; frames run on the goroutine that called Run or Frame.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	mu      *sync.Mutex
	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   window.Window
	renderer renderer.Renderer
	pipeline pipeline.Pipeline
	camera   camera.Camera

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	lastRender       time.Time

	// Pending surface size, applied at the start of the next frame.
	width, height int
	resized       bool
}

// Engine is the main entry point for the engine.
// It drives the tick loop and the frame loop: each frame applies pending resizes, writes the camera into the
// pipeline, uploads viewport and projection, clears, runs the render callback and flushes.
type Engine interface {
	// Window returns the underlying window, or nil for headless engines.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer frames are drawn with.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// Pipeline returns the transform pipeline the renderer reads from.
	//
	// Returns:
	//   - pipeline.Pipeline: the pipeline
	Pipeline() pipeline.Pipeline

	// Camera returns the camera applied at the start of every frame, or nil.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for game logic updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// It runs on the tick goroutine and must not touch the pipeline or renderer.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called each frame between clear and flush.
	// The modelview stack must have the same depth when the callback returns as when it was called.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Resize records a new surface size. The viewport and backend surface are updated at the start of the next frame.
	// The window's resize callback calls this automatically.
	//
	// Parameters:
	//   - width, height: the new size in pixels
	Resize(width, height int)

	// Frame renders a single frame on the calling goroutine.
	// Used by hosts that own their own loop; Run calls it for every window iteration.
	//
	// Returns:
	//   - error: the error returned by the renderer's Flush, if any
	Frame() error

	// Run starts the tick goroutine and the frame loop on the calling goroutine.
	// Blocks until the window closes or Quit is called.
	Run()

	// Quit signals all engine goroutines to stop and shuts down the engine.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// A renderer is required. When no pipeline is given, the renderer's state is used if it is a full Pipeline.
//
// Parameters:
//   - options: functional options for engine configuration (window, renderer, camera, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel:  make(chan time.Duration, 1),
		quitChannel:      make(chan struct{}),
		mu:               &sync.Mutex{},
		wg:               sync.WaitGroup{},
		profiler:         profiler.NewProfiler(time.Second),
		profilingEnabled: false,
		engineTickRate:   time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.renderer == nil {
		panic("engine: a renderer is required")
	}
	if e.pipeline == nil {
		p, ok := e.renderer.State().(pipeline.Pipeline)
		if !ok {
			panic("engine: a pipeline is required")
		}
		e.pipeline = p
	}

	if e.window != nil {
		e.Resize(e.window.Width(), e.window.Height())
		e.window.SetResizeCallback(e.Resize)
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Pipeline() pipeline.Pipeline {
	return e.pipeline
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.width, e.height = width, height
	e.resized = true
}

func (e *engine) Run() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.handleEngine()
	defer e.wg.Wait()
	defer e.signalQuit()

	if e.window == nil {
		for !e.quitting() {
			e.step()
		}
		return
	}

	e.window.SetUpdateCallback(func() {
		if e.quitting() {
			_ = e.window.Close()
			return
		}
		e.step()
	})
	e.window.ProcessMessages()
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		close(e.quitChannel)
	})
}

func (e *engine) quitting() bool {
	select {
	case <-e.quitChannel:
		return true
	default:
		return false
	}
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// step renders one frame and sleeps off the rest of the frame budget.
// A panic inside the frame stops the engine instead of crashing the process.
func (e *engine) step() {
	defer func() {
		if r := recover(); r != nil {
			common.ComponentLogger("engine").Error("frame panicked", "panic", r)
			e.signalQuit()
		}
	}()

	start := time.Now()
	if err := e.Frame(); err != nil {
		common.ComponentLogger("engine").Error("frame failed", "error", err)
	}

	if e.renderFrameLimit > 0 {
		if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

func (e *engine) Frame() error {
	now := time.Now()
	var dt float32
	if !e.lastRender.IsZero() {
		dt = float32(now.Sub(e.lastRender).Seconds())
	}
	e.lastRender = now

	e.mu.Lock()
	width, height, resized := e.width, e.height, e.resized
	e.resized = false
	e.mu.Unlock()

	p, r := e.pipeline, e.renderer
	if resized {
		p.SetViewport(0, 0, float32(width), float32(height))
		r.Resize(width, height)
	}
	if e.camera != nil {
		e.camera.Apply(p)
	}
	r.UpdateViewport()
	r.UpdateProjection()
	r.ClearColorAndDepth()

	depth := modelViewDepth(p)
	if e.renderCallback != nil {
		e.renderCallback(dt)
	}
	if after := modelViewDepth(p); after != depth {
		common.ComponentLogger("engine").Warn("modelview stack unbalanced at end of frame", "before", depth, "after", after)
	}

	err := r.Flush()
	if e.profilingEnabled && e.profiler != nil {
		e.profiler.Tick()
	}
	if err != nil {
		return fmt.Errorf("flush failed: %w", err)
	}
	return nil
}

// modelViewDepth returns the modelview stack depth without changing the active stack.
func modelViewDepth(p pipeline.Pipeline) int {
	active := p.ActiveStack()
	p.SetActiveStack(pipeline.ModelView)
	depth := p.Depth()
	p.SetActiveStack(active)
	return depth
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	if running {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
