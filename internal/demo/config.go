package demo

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/renderer"
	"github.com/pelletier/go-toml/v2"
)

// Config is the viewer configuration file. Zero values are replaced by defaults.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Camera   CameraConfig   `toml:"camera"`
	Scene    SceneConfig    `toml:"scene"`
	Engine   EngineConfig   `toml:"engine"`
	Log      LogConfig      `toml:"log"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type RendererConfig struct {
	// Backend is "opengl", "wgpu" or "software".
	Backend       string     `toml:"backend"`
	VSync         *bool      `toml:"vsync"`
	ClearColor    [4]float32 `toml:"clear_color"`
	MSAA          int        `toml:"msaa"`
	RasterWorkers int        `toml:"raster_workers"`
}

type CameraConfig struct {
	FovDegrees float32 `toml:"fov"`
	Near       float32 `toml:"near"`
	Far        float32 `toml:"far"`
}

type SceneConfig struct {
	GridSize  float32 `toml:"grid_size"`
	GridLines int     `toml:"grid_lines"`
	// MoveSpeed is in units per second, TurnSpeed in radians per second.
	MoveSpeed float32 `toml:"move_speed"`
	TurnSpeed float32 `toml:"turn_speed"`
	Light     bool    `toml:"light"`
	Texture   string  `toml:"texture"`
	// Model is an optional .gltf or .glb file drawn at ModelPosition. A zero position selects the default, 800 units ahead.
	Model         string     `toml:"model"`
	ModelScale    float32    `toml:"model_scale"`
	ModelPosition [3]float32 `toml:"model_position"`
}

type EngineConfig struct {
	TickRate   float64 `toml:"tick_rate"`
	FrameLimit float64 `toml:"frame_limit"`
	Profiling  bool    `toml:"profiling"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	var c Config
	c.applyDefaults()
	return c
}

// LoadConfig reads a TOML file and fills unset fields with defaults.
// An empty path returns DefaultConfig.
//
// Parameters:
//   - path: path to the TOML file, or ""
//
// Returns:
//   - Config: the merged configuration
//   - error: error if the file cannot be read, is not valid TOML, or fails validation
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	fp, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config: %w", err)
	}
	defer fp.Close()

	c, err := ReadConfig(bufio.NewReader(fp))
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// ReadConfig decodes TOML from r, rejecting unknown keys, and fills unset fields with defaults.
//
// Parameters:
//   - r: the TOML source
//
// Returns:
//   - Config: the merged configuration
//   - error: error if decoding or validation fails
func ReadConfig(r io.Reader) (Config, error) {
	var c Config
	d := toml.NewDecoder(r)
	d.DisallowUnknownFields()
	if err := d.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	vsync := true

	c.Window.Title = common.Coalesce(c.Window.Title, "oxy-fixed viewer")
	c.Window.Width = common.Coalesce(c.Window.Width, 1280)
	c.Window.Height = common.Coalesce(c.Window.Height, 720)

	c.Renderer.Backend = common.Coalesce(c.Renderer.Backend, "opengl")
	c.Renderer.VSync = common.Coalesce(c.Renderer.VSync, &vsync)
	c.Renderer.ClearColor = common.Coalesce(c.Renderer.ClearColor, [4]float32(renderer.ColorClearDefault))
	c.Renderer.MSAA = common.Coalesce(c.Renderer.MSAA, int(renderer.MSAA4x))

	c.Camera.FovDegrees = common.Coalesce(c.Camera.FovDegrees, 60)
	c.Camera.Near = common.Coalesce(c.Camera.Near, 0.1)
	c.Camera.Far = common.Coalesce(c.Camera.Far, 4000)

	c.Scene.GridSize = common.Coalesce(c.Scene.GridSize, 5000)
	c.Scene.GridLines = common.Coalesce(c.Scene.GridLines, 100)
	c.Scene.MoveSpeed = common.Coalesce(c.Scene.MoveSpeed, 200)
	c.Scene.TurnSpeed = common.Coalesce(c.Scene.TurnSpeed, 1)
	c.Scene.ModelScale = common.Coalesce(c.Scene.ModelScale, 1)
	c.Scene.ModelPosition = common.Coalesce(c.Scene.ModelPosition, [3]float32{0, 0, -800})

	c.Engine.TickRate = common.Coalesce(c.Engine.TickRate, 60)

	c.Log.Level = common.Coalesce(c.Log.Level, "info")
}

// Validate checks fields that have no sensible default.
func (c Config) Validate() error {
	if _, err := c.BackendType(); err != nil {
		return err
	}
	if c.Window.Width < 0 || c.Window.Height < 0 {
		return fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	switch renderer.MSAASampleCount(c.Renderer.MSAA) {
	case renderer.MSAAOff, renderer.MSAA4x:
	default:
		return fmt.Errorf("msaa must be 1 or 4, got %d", c.Renderer.MSAA)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("camera planes must satisfy 0 < near < far, got near %g far %g", c.Camera.Near, c.Camera.Far)
	}
	if c.Scene.GridLines < 0 {
		return fmt.Errorf("grid_lines must not be negative, got %d", c.Scene.GridLines)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// BackendType parses Renderer.Backend.
func (c Config) BackendType() (renderer.RendererBackendType, error) {
	return renderer.ParseBackendType(strings.ToLower(c.Renderer.Backend))
}

// PresentMode maps Renderer.VSync to a present mode.
func (c Config) PresentMode() renderer.PresentMode {
	if c.Renderer.VSync != nil && !*c.Renderer.VSync {
		return renderer.PresentModeUncapped
	}
	return renderer.PresentModeVSync
}

// LogLevel parses Log.Level ("debug", "info", "warn" or "error").
func (c Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return l, nil
}
