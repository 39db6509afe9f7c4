package demo

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-fixed/engine/renderer"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const surfaceSize = 64

func newTestTarget(t *testing.T) (pipeline.Pipeline, renderer.Renderer) {
	t.Helper()

	p := pipeline.NewPipeline()
	p.SetViewport(0, 0, surfaceSize, surfaceSize)
	p.SetActiveStack(pipeline.Projection)
	p.SetPerspective(common.PerspectiveFov(math32.Pi/3, 1, 0.1, 4000))
	p.SetActiveStack(pipeline.ModelView)

	r := renderer.NewRenderer(renderer.BackendTypeSoftware, p, renderer.WithSurfaceSize(surfaceSize, surfaceSize), renderer.WithRasterWorkers(1))
	require.NoError(t, r.Initialize())
	t.Cleanup(r.Cleanup)

	r.UpdateViewport()
	r.UpdateProjection()
	r.ClearColorAndDepth()
	return p, r
}

func countColor(img *image.RGBA, c color.RGBA) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) == c {
				n++
			}
		}
	}
	return n
}

func TestSceneToggles(t *testing.T) {
	s, err := NewScene(DefaultConfig())
	require.NoError(t, err)
	assert.True(t, s.showGrid)

	s.KeyDown(common.KeyG)
	s.KeyDown(common.KeyG) // repeat while held
	assert.False(t, s.showGrid)

	s.KeyUp(common.KeyG)
	s.KeyDown(common.KeyG)
	assert.True(t, s.showGrid)

	s.KeyDown(common.KeyF)
	s.KeyDown(common.KeyP)
	assert.True(t, s.wireframe)
	assert.True(t, s.ortho)
}

func TestSceneUpdate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scene.MoveSpeed = 100
	cfg.Scene.TurnSpeed = 1
	s, err := NewScene(cfg)
	require.NoError(t, err)

	s.KeyDown(common.KeyW)
	s.Update(0.5)
	x, z, rot := s.Position()
	assert.InDelta(t, 0, x, 1e-4)
	assert.InDelta(t, 50, z, 1e-4)
	assert.Equal(t, float32(0), rot)
	s.KeyUp(common.KeyW)

	s.KeyDown(common.KeyD)
	s.Update(0.5)
	x, _, _ = s.Position()
	assert.InDelta(t, -50, x, 1e-4)
	s.KeyUp(common.KeyD)

	s.KeyDown(common.KeyE)
	s.Update(0.25)
	_, _, rot = s.Position()
	assert.InDelta(t, 0.25, rot, 1e-6)

	s.Update(0)
	_, _, rot2 := s.Position()
	assert.Equal(t, rot, rot2)
}

func TestSceneDrawsTriangle(t *testing.T) {
	p, r := newTestTarget(t)
	s, err := NewScene(DefaultConfig())
	require.NoError(t, err)
	s.KeyDown(common.KeyG)

	require.NoError(t, s.Draw(p, r))
	assert.Equal(t, 0, p.Depth())
	assert.Greater(t, countColor(r.Image(), color.RGBA{255, 0, 0, 255}), 0)
}

func TestSceneWireframeAndGrid(t *testing.T) {
	p, r := newTestTarget(t)
	s, err := NewScene(DefaultConfig())
	require.NoError(t, err)
	s.KeyDown(common.KeyF)

	require.NoError(t, s.Draw(p, r))
	img := r.Image()
	assert.Zero(t, countColor(img, color.RGBA{255, 0, 0, 255}), "wireframe draws no filled triangle")
	assert.Greater(t, countColor(img, color.RGBA{255, 255, 255, 255}), 0)
	assert.Greater(t, countColor(img, color.RGBA{0, 0, 0, 255}), 0, "grid lines are black")
}

func TestSceneOrthographic(t *testing.T) {
	p, r := newTestTarget(t)
	s, err := NewScene(DefaultConfig())
	require.NoError(t, err)
	s.KeyDown(common.KeyP)

	require.NoError(t, s.Draw(p, r))
	assert.Equal(t, pipeline.Orthographic, p.ProjectionKind())
	assert.Equal(t, pipeline.Frustum{Left: -32, Right: 32, Bottom: -32, Top: 32, Near: 0.1, Far: 4000}, p.Frustum())
	assert.Equal(t, pipeline.ModelView, p.ActiveStack())
}

func TestSceneLight(t *testing.T) {
	p, r := newTestTarget(t)
	cfg := DefaultConfig()
	cfg.Scene.Light = true
	s, err := NewScene(cfg)
	require.NoError(t, err)
	s.KeyDown(common.KeyG)

	require.NoError(t, s.Draw(p, r))
	// The light adds its ambient term on top of the global ambient, which saturates red.
	assert.Greater(t, countColor(r.Image(), color.RGBA{255, 0, 0, 255}), 0)
}

func TestSceneTexture(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	path := filepath.Join(t.TempDir(), "tex.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	cfg := DefaultConfig()
	cfg.Scene.Texture = path
	s, err := NewScene(cfg)
	require.NoError(t, err)

	_, r := newTestTarget(t)
	require.NoError(t, s.Upload(r))
	assert.True(t, s.mesh.Texture.Resident())
	s.Release(r)
	assert.False(t, s.mesh.Texture.Resident())

	cfg.Scene.Texture = filepath.Join(t.TempDir(), "missing.png")
	_, err = NewScene(cfg)
	assert.Error(t, err)
}

func writeModel(t *testing.T) string {
	t.Helper()

	var bin bytes.Buffer
	require.NoError(t, binary.Write(&bin, binary.LittleEndian, []float32{-100, 0, 0, 100, 0, 0, 0, 200, 0}))
	doc := fmt.Sprintf(`{
  "asset": {"version": "2.0"},
  "scenes": [{"nodes": [0]}],
  "nodes": [{"mesh": 0}],
  "meshes": [{"primitives": [{"attributes": {"POSITION": 0}, "material": 0}]}],
  "materials": [{"pbrMetallicRoughness": {"baseColorFactor": [0, 1, 0, 1]}}],
  "accessors": [{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"}],
  "bufferViews": [{"buffer": 0, "byteLength": 36}],
  "buffers": [{"byteLength": 36, "uri": "data:application/octet-stream;base64,%s"}]
}`, base64.StdEncoding.EncodeToString(bin.Bytes()))

	path := filepath.Join(t.TempDir(), "green.gltf")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestSceneModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scene.Model = writeModel(t)
	cfg.Scene.ModelPosition = [3]float32{0, 100, -600}
	s, err := NewScene(cfg)
	require.NoError(t, err)
	require.NotNil(t, s.model)
	s.KeyDown(common.KeyG)

	p, r := newTestTarget(t)
	require.NoError(t, s.Upload(r))
	require.NoError(t, s.Draw(p, r))
	assert.Equal(t, 0, p.Depth())
	assert.Greater(t, countColor(r.Image(), color.RGBA{0, 255, 0, 255}), 0)
	assert.Greater(t, countColor(r.Image(), color.RGBA{255, 0, 0, 255}), 0)

	cfg.Scene.Model = filepath.Join(t.TempDir(), "missing.glb")
	_, err = NewScene(cfg)
	assert.Error(t, err)
}
