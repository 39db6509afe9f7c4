package engine

import (
	"bytes"
	"image/color"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/camera"
	"github.com/Carmen-Shannon/oxy-fixed/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-fixed/engine/renderer"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const size = 32

func newHeadless(t *testing.T, options ...EngineBuilderOption) Engine {
	t.Helper()

	p := pipeline.NewPipeline()
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, p, renderer.WithSurfaceSize(size, size), renderer.WithRasterWorkers(1))
	require.NoError(t, r.Initialize())
	t.Cleanup(r.Cleanup)

	e := NewEngine(append([]EngineBuilderOption{WithRenderer(r), WithPipeline(p)}, options...)...)
	e.Resize(size, size)
	return e
}

func redTriangle() *renderer.Mesh {
	red := renderer.Color{1, 0, 0, 1}
	return &renderer.Mesh{
		Positions: []common.Vec3{{X: -0.5, Y: -0.5}, {X: 0.5, Y: -0.5}, {Y: 0.5}},
		Indices:   []uint32{0, 1, 2},
		Material:  renderer.Material{Ambient: red, Diffuse: red, Specular: red},
	}
}

func TestNewEngineRequiresRenderer(t *testing.T) {
	assert.Panics(t, func() { NewEngine() })
}

func TestNewEngineUsesRendererPipeline(t *testing.T) {
	p := pipeline.NewPipeline()
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, p, renderer.WithSurfaceSize(size, size))
	e := NewEngine(WithRenderer(r))
	assert.Same(t, p, e.Pipeline())
	assert.Nil(t, e.Window())
	assert.Nil(t, e.Camera())
}

func TestFrameAppliesResizeAndCamera(t *testing.T) {
	ctrl := camera.NewCameraController(camera.WithRadiusBounds(1, 100), camera.WithRadius(5), camera.WithElevation(0))
	cam := camera.NewCamera(camera.WithFov(math32.Pi/2), camera.WithController(ctrl))
	e := newHeadless(t, WithCamera(cam))

	var frames int
	e.SetRenderCallback(func(float32) {
		frames++
		require.NoError(t, e.Renderer().DrawMeshes([]*renderer.Mesh{redTriangle()}))
	})

	require.NoError(t, e.Frame())
	assert.Equal(t, 1, frames)
	assert.Equal(t, pipeline.Viewport{Width: size, Height: size}, e.Pipeline().Viewport())
	assert.True(t, e.Pipeline().Top().ApproxEqual(common.Translation(0, 0, -5), 1e-4))

	img := e.Renderer().Image()
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(size/2, size/2-1))
	assert.Equal(t, color.RGBA{77, 77, 77, 255}, img.RGBAAt(0, 0))

	e.Resize(size/2, size)
	require.NoError(t, e.Frame())
	assert.Equal(t, pipeline.Viewport{Width: size / 2, Height: size}, e.Pipeline().Viewport())
	assert.Equal(t, size/2, e.Renderer().Image().Bounds().Dx())
}

func TestFrameWarnsOnUnbalancedStack(t *testing.T) {
	var buf bytes.Buffer
	common.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	defer common.SetLogger(nil)

	e := newHeadless(t)
	e.SetRenderCallback(func(float32) {
		e.Pipeline().MustPush()
	})
	require.NoError(t, e.Frame())
	assert.Contains(t, buf.String(), "modelview stack unbalanced")

	buf.Reset()
	e.SetRenderCallback(func(float32) {
		p := e.Pipeline()
		p.SetActiveStack(pipeline.Projection)
		p.MustPush()
		p.MustPop()
		p.SetActiveStack(pipeline.ModelView)
		p.MustPush()
		p.MustPop()
	})
	require.NoError(t, e.Frame())
	assert.NotContains(t, buf.String(), "unbalanced")
}

func TestRunHeadlessUntilQuit(t *testing.T) {
	e := newHeadless(t, WithTickRate(1000), WithRenderFrameLimit(1000))

	var ticks atomic.Int32
	e.SetTickCallback(func(float32) { ticks.Add(1) })

	var frames int
	e.SetRenderCallback(func(float32) {
		frames++
		if frames == 20 {
			e.Quit()
		}
	})

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after Quit")
	}
	assert.Equal(t, 20, frames)
	e.Quit()
}

func TestRunRecoversFromPanic(t *testing.T) {
	e := newHeadless(t)
	e.SetRenderCallback(func(float32) { panic("boom") })

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after a panicking frame")
	}
}

func TestSetRenderFrameLimit(t *testing.T) {
	e := newHeadless(t).(*engine)
	e.SetRenderFrameLimit(50)
	assert.Equal(t, 20*time.Millisecond, e.renderFrameLimit)
	e.SetRenderFrameLimit(0)
	assert.Equal(t, time.Duration(0), e.renderFrameLimit)

	e.SetTickRate(0)
	assert.Equal(t, time.Second/60, e.engineTickRate)
}
