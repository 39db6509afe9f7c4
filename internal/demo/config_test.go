package demo

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-fixed/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())

	assert.Equal(t, 1280, c.Window.Width)
	assert.Equal(t, 720, c.Window.Height)
	assert.Equal(t, "opengl", c.Renderer.Backend)
	assert.Equal(t, [4]float32{0.3, 0.3, 0.3, 1}, c.Renderer.ClearColor)
	assert.Equal(t, float32(60), c.Camera.FovDegrees)
	assert.Equal(t, float32(0.1), c.Camera.Near)
	assert.Equal(t, float32(4000), c.Camera.Far)
	assert.Equal(t, float32(5000), c.Scene.GridSize)
	assert.Equal(t, 100, c.Scene.GridLines)
	assert.Equal(t, float32(1), c.Scene.ModelScale)
	assert.Equal(t, [3]float32{0, 0, -800}, c.Scene.ModelPosition)
	assert.Equal(t, renderer.PresentModeVSync, c.PresentMode())

	level, err := c.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestReadConfigMergesDefaults(t *testing.T) {
	c, err := ReadConfig(strings.NewReader(`
[window]
width = 800

[renderer]
backend = "Software"
vsync = false
raster_workers = 3

[scene]
grid_lines = 10
light = true

[log]
level = "debug"
`))
	require.NoError(t, err)

	assert.Equal(t, 800, c.Window.Width)
	assert.Equal(t, 720, c.Window.Height)
	assert.Equal(t, 3, c.Renderer.RasterWorkers)
	assert.Equal(t, 10, c.Scene.GridLines)
	assert.Equal(t, float32(5000), c.Scene.GridSize)
	assert.True(t, c.Scene.Light)
	assert.Equal(t, renderer.PresentModeUncapped, c.PresentMode())

	bt, err := c.BackendType()
	require.NoError(t, err)
	assert.Equal(t, renderer.BackendTypeSoftware, bt)

	level, err := c.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestReadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown key", "[window]\ncolour = 1\n"},
		{"malformed", "[window\n"},
		{"bad backend", "[renderer]\nbackend = \"vulkan\"\n"},
		{"bad msaa", "[renderer]\nmsaa = 2\n"},
		{"far before near", "[camera]\nnear = 10.0\nfar = 5.0\n"},
		{"negative grid", "[scene]\ngrid_lines = -1\n"},
		{"bad level", "[log]\nlevel = \"loud\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadConfig(strings.NewReader(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	c, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)

	path := filepath.Join(t.TempDir(), "viewer.toml")
	require.NoError(t, os.WriteFile(path, []byte("[window]\ntitle = \"test\"\n"), 0o644))
	c, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "test", c.Window.Title)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
