package renderer

import (
	"image/color"
	"testing"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const surfaceSize = 64

var (
	clearGrey = color.RGBA{77, 77, 77, 255}
	pureRed   = color.RGBA{255, 0, 0, 255}
	pureGreen = color.RGBA{0, 255, 0, 255}
)

func newTestRenderer(t *testing.T) (Renderer, pipeline.Pipeline) {
	t.Helper()

	p := pipeline.NewPipeline()
	p.SetViewport(0, 0, surfaceSize, surfaceSize)

	r := NewRenderer(BackendTypeSoftware, p, WithSurfaceSize(surfaceSize, surfaceSize), WithRasterWorkers(2))
	require.NoError(t, r.Initialize())
	t.Cleanup(r.Cleanup)

	r.UpdateViewport()
	r.ClearColorAndDepth()
	return r, p
}

// pixel reads the image at window coordinates, where y grows upwards.
func pixel(r Renderer, x, y int) color.RGBA {
	return r.Image().RGBAAt(x, surfaceSize-1-y)
}

func flatMaterial(c Color) Material {
	return Material{Ambient: c, Diffuse: c, Specular: Color{0, 0, 0, 1}}
}

// triangle returns a counter-clockwise triangle around the origin at depth z.
func triangle(z float32, mat Material) *Mesh {
	n := common.Vec3{Z: 1}
	return &Mesh{
		Positions: []common.Vec3{{X: -0.5, Y: -0.5, Z: z}, {X: 0.5, Y: -0.5, Z: z}, {X: 0, Y: 0.5, Z: z}},
		Normals:   []common.Vec3{n, n, n},
		Indices:   []uint32{0, 1, 2},
		Material:  mat,
	}
}

func TestNewRendererPanics(t *testing.T) {
	assert.Panics(t, func() { NewRenderer(BackendTypeSoftware, nil) })
	assert.Panics(t, func() { NewRenderer(RendererBackendType(42), pipeline.NewPipeline()) })
}

func TestSoftwareInitializeNeedsSurface(t *testing.T) {
	r := NewRenderer(BackendTypeSoftware, pipeline.NewPipeline())
	assert.Error(t, r.Initialize())
	assert.Nil(t, r.Image())
}

func TestClearColorAndDepth(t *testing.T) {
	r, _ := newTestRenderer(t)
	assert.Equal(t, BackendTypeSoftware, r.BackendType())
	assert.Equal(t, clearGrey, pixel(r, 0, 0))
	assert.Equal(t, clearGrey, pixel(r, 63, 63))

	r.SetClearColor(Color{0, 0, 1, 1})
	r.ClearColorAndDepth()
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, pixel(r, 10, 10))
}

func TestDrawMeshesUsesModelViewTop(t *testing.T) {
	r, p := newTestRenderer(t)
	p.SetOrthographic(-1, 1, -1, 1, -1, 1)
	r.UpdateProjection()

	require.NoError(t, r.DrawMeshes([]*Mesh{triangle(0, flatMaterial(ColorRed))}))
	assert.Equal(t, pureRed, pixel(r, 32, 28))
	assert.Equal(t, clearGrey, pixel(r, 2, 2))

	r.ClearColorAndDepth()
	p.MustPush()
	p.PostTranslate(-0.5, 0, 0)
	require.NoError(t, r.DrawMeshes([]*Mesh{triangle(0, flatMaterial(ColorRed))}))
	p.MustPop()

	assert.Equal(t, pureRed, pixel(r, 16, 28))
	assert.Equal(t, clearGrey, pixel(r, 48, 28))
	assert.Equal(t, 0, p.Depth())
}

func TestProjectionAppliedOnUpdate(t *testing.T) {
	r, p := newTestRenderer(t)
	p.SetOrthographic(-2, 2, -2, 2, -1, 1)

	// Until UpdateProjection the backend keeps the identity projection.
	require.NoError(t, r.DrawMeshes([]*Mesh{triangle(0, flatMaterial(ColorRed))}))
	assert.Equal(t, pureRed, pixel(r, 32, 19))

	r.ClearColorAndDepth()
	r.UpdateProjection()
	require.NoError(t, r.DrawMeshes([]*Mesh{triangle(0, flatMaterial(ColorRed))}))
	assert.Equal(t, clearGrey, pixel(r, 32, 19))
	assert.Equal(t, pureRed, pixel(r, 32, 30))
}

func TestProjectionStackComposes(t *testing.T) {
	r, p := newTestRenderer(t)
	p.SetOrthographic(-1, 1, -1, 1, -1, 1)
	p.SetActiveStack(pipeline.Projection)
	p.PostTranslate(0.5, 0, 0)
	p.SetActiveStack(pipeline.ModelView)
	r.UpdateProjection()

	require.NoError(t, r.DrawMeshes([]*Mesh{triangle(0, flatMaterial(ColorRed))}))
	assert.Equal(t, pureRed, pixel(r, 48, 28))
	assert.Equal(t, clearGrey, pixel(r, 16, 28))
}

func TestBackFacesAreCulled(t *testing.T) {
	r, _ := newTestRenderer(t)
	m := triangle(0, flatMaterial(ColorRed))
	m.Indices = []uint32{0, 2, 1}

	require.NoError(t, r.DrawMeshes([]*Mesh{m}))
	assert.Equal(t, clearGrey, pixel(r, 32, 28))
}

func TestDepthTest(t *testing.T) {
	r, p := newTestRenderer(t)
	p.SetOrthographic(-1, 1, -1, 1, -1, 1)
	r.UpdateProjection()

	near := triangle(0.5, flatMaterial(Color{0, 1, 0, 1}))
	far := triangle(-0.5, flatMaterial(ColorRed))

	require.NoError(t, r.DrawMeshes([]*Mesh{near, far}))
	assert.Equal(t, pureGreen, pixel(r, 32, 28))

	r.ClearColorAndDepth()
	r.DisableDepthTest()
	require.NoError(t, r.DrawMeshes([]*Mesh{near, far}))
	assert.Equal(t, pureRed, pixel(r, 32, 28))

	r.EnableDepthTest()
	r.ClearColorAndDepth()
	require.NoError(t, r.DrawMeshes([]*Mesh{far, near}))
	assert.Equal(t, pureGreen, pixel(r, 32, 28))
}

func TestTransparentMeshesBlend(t *testing.T) {
	r, _ := newTestRenderer(t)
	half := Color{1, 1, 1, 0.5}

	require.NoError(t, r.DrawMeshes([]*Mesh{triangle(0, Material{Ambient: half, Diffuse: half, Specular: half})}))
	got := pixel(r, 32, 28)
	assert.InDelta(t, 166, got.R, 1)
	assert.InDelta(t, 166, got.G, 1)
	assert.InDelta(t, 166, got.B, 1)
}

func TestLighting(t *testing.T) {
	r, _ := newTestRenderer(t)
	blue := Material{Ambient: Color{0, 0, 0, 1}, Diffuse: Color{0, 0, 1, 1}}
	light := DefaultLight()
	light.Type = LightTypeDirectional
	light.Direction = common.Vec3{Z: -1}

	// Only the global ambient term contributes without lights, and the material ambient is black.
	require.NoError(t, r.DrawMeshes([]*Mesh{triangle(0, blue)}))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, pixel(r, 32, 28))

	require.NoError(t, r.SetLightProperties(0, light))
	require.NoError(t, r.EnableLight(0))
	r.ClearColorAndDepth()
	require.NoError(t, r.DrawMeshes([]*Mesh{triangle(0, blue)}))
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, pixel(r, 32, 28))

	require.NoError(t, r.DisableLight(0))
	r.ClearColorAndDepth()
	require.NoError(t, r.DrawMeshes([]*Mesh{triangle(0, blue)}))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, pixel(r, 32, 28))
}

func TestLightIndexBounds(t *testing.T) {
	r, _ := newTestRenderer(t)
	for _, i := range []int{-1, MaxLights} {
		assert.ErrorIs(t, r.EnableLight(i), ErrLightIndex)
		assert.ErrorIs(t, r.DisableLight(i), ErrLightIndex)
		assert.ErrorIs(t, r.SetLightProperties(i, DefaultLight()), ErrLightIndex)
	}
}

func TestLightPositionCapturedInEyeSpace(t *testing.T) {
	p := pipeline.NewPipeline()
	p.PostTranslate(0, 0, -5)
	r := NewRenderer(BackendTypeSoftware, p, WithSurfaceSize(8, 8)).(*renderer)

	require.NoError(t, r.SetLightProperties(2, Light{Position: common.Vec3{X: 1}, Type: LightTypePoint}))
	assert.Equal(t, common.Vec4{X: 1, Y: 0, Z: -5, W: 1}, r.draw.lights[2].eyePos)

	// Later modelview changes do not move a captured light.
	p.PostTranslate(0, 3, 0)
	assert.Equal(t, common.Vec4{X: 1, Y: 0, Z: -5, W: 1}, r.draw.lights[2].eyePos)
}

func TestDrawMeshesRejectsInvalidMesh(t *testing.T) {
	r, _ := newTestRenderer(t)
	bad := triangle(0, flatMaterial(ColorRed))
	bad.Indices = []uint32{0, 1, 7}

	assert.Error(t, r.DrawMeshes([]*Mesh{triangle(0, flatMaterial(ColorRed)), bad}))
	assert.Equal(t, clearGrey, pixel(r, 32, 28), "nothing is drawn when any mesh is invalid")
	assert.Error(t, r.DrawMeshesWireframe([]*Mesh{nil}, ColorBlack, 1))
}

func TestDrawLines(t *testing.T) {
	r, _ := newTestRenderer(t)

	r.DrawLines([]common.Vec3{{X: -1}, {X: 1}}, ColorBlack, 1)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, pixel(r, 10, 32))
	assert.Equal(t, clearGrey, pixel(r, 10, 40))

	// A single point is not a strip.
	r.ClearColorAndDepth()
	r.DrawLines([]common.Vec3{{}}, ColorBlack, 1)
	assert.Equal(t, clearGrey, pixel(r, 32, 32))
}

func TestDrawPoints(t *testing.T) {
	r, _ := newTestRenderer(t)

	r.DrawPoints([]common.Vec3{{}}, ColorRed, 3)
	assert.Equal(t, pureRed, pixel(r, 32, 32))
	assert.Equal(t, pureRed, pixel(r, 31, 31))
	assert.Equal(t, clearGrey, pixel(r, 35, 35))
}

func TestDrawGridFromAbove(t *testing.T) {
	r, p := newTestRenderer(t)
	p.SetOrthographic(-1, 1, -1, 1, -1, 1)
	r.UpdateProjection()

	// Looking down -Y the XZ grid fills the view.
	p.PostRotateX(1.5707964)
	r.DrawGrid(2, 2)

	assert.Equal(t, color.RGBA{0, 0, 0, 255}, pixel(r, 32, 10))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, pixel(r, 10, 32))
	assert.Equal(t, clearGrey, pixel(r, 16, 16))
}

func TestWireframeDrawsEdgesOnly(t *testing.T) {
	r, p := newTestRenderer(t)
	p.SetOrthographic(-1, 1, -1, 1, -1, 1)
	r.UpdateProjection()

	require.NoError(t, r.DrawMeshesWireframe([]*Mesh{triangle(0, flatMaterial(ColorRed))}, ColorRed, 1))
	assert.Equal(t, clearGrey, pixel(r, 32, 28))
	assert.Equal(t, pureRed, pixel(r, 32, 16))
}

func TestTextureLifecycle(t *testing.T) {
	r, _ := newTestRenderer(t)
	tex := &Texture{Width: 2, Height: 1, Format: common.ImageFormatRGB, Pixels: []byte{255, 255, 255, 255, 255, 255}}

	require.NoError(t, r.UploadToGPU(tex))
	assert.True(t, tex.Resident())
	first := tex.ID()

	require.NoError(t, r.UploadToGPU(tex))
	assert.NotEqual(t, first, tex.ID(), "re-uploading replaces the backend texture")

	r.EvictFromGPU(tex)
	assert.False(t, tex.Resident())
	r.EvictFromGPU(tex)

	assert.Error(t, r.UploadToGPU(&Texture{Width: 4, Height: 4, Format: common.ImageFormatRGBA, Pixels: make([]byte, 3)}))
	assert.Error(t, r.UploadToGPU(nil))
}

func TestDrawUnitQuads(t *testing.T) {
	r, _ := newTestRenderer(t)
	white := &Texture{Width: 1, Height: 1, Format: common.ImageFormatRGBA, Pixels: []byte{255, 255, 255, 255}}
	require.NoError(t, r.UploadToGPU(white))

	r.DrawUnitQuads([]UnitQuad{{U0: 0, V0: 0, U1: 1, V1: 1, Width: 0.5, Height: 1}, {U0: 0, V0: 0, U1: 1, V1: 1, Width: 0.5, Height: 1}}, white, ColorWhite)

	assert.Equal(t, color.RGBA{255, 255, 255, 255}, pixel(r, 40, 48))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, pixel(r, 56, 48), "second quad starts where the first ended")
	assert.Equal(t, clearGrey, pixel(r, 16, 48))
	assert.Equal(t, clearGrey, pixel(r, 40, 16))
}

func TestEmptyViewportDrawsNothing(t *testing.T) {
	r, p := newTestRenderer(t)
	p.SetViewport(0, 0, 0, 0)
	r.UpdateViewport()

	require.NoError(t, r.DrawMeshes([]*Mesh{triangle(0, flatMaterial(ColorRed))}))
	r.DrawPoints([]common.Vec3{{}}, ColorRed, 4)
	assert.Equal(t, clearGrey, pixel(r, 32, 28))
}

func TestResize(t *testing.T) {
	r, _ := newTestRenderer(t)
	r.Resize(32, 16)
	assert.Equal(t, 32, r.Image().Bounds().Dx())
	assert.Equal(t, 16, r.Image().Bounds().Dy())

	r.Resize(0, 10)
	assert.Equal(t, 32, r.Image().Bounds().Dx())
	assert.NoError(t, r.Flush())
}
