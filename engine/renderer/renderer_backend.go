package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/pipeline"
)

// RendererBackendType identifies the graphics API implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeOpenGL selects the fixed-function OpenGL 2.1 backend. Requires a current GL context.
	BackendTypeOpenGL RendererBackendType = iota
	// BackendTypeWGPU selects the WebGPU backend, which emulates the fixed-function pipeline with one WGSL program.
	BackendTypeWGPU
	// BackendTypeSoftware selects the CPU rasterizer. It needs no window and renders into an image.
	BackendTypeSoftware
)

func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeOpenGL:
		return "opengl"
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	default:
		return fmt.Sprintf("RendererBackendType(%d)", int(t))
	}
}

// ParseBackendType maps a configuration string to a RendererBackendType.
//
// Parameters:
//   - s: "opengl", "gl", "wgpu", "webgpu" or "software"
//
// Returns:
//   - RendererBackendType: the matching backend type
//   - error: error if s names no known backend
func ParseBackendType(s string) (RendererBackendType, error) {
	switch s {
	case "opengl", "gl":
		return BackendTypeOpenGL, nil
	case "wgpu", "webgpu":
		return BackendTypeWGPU, nil
	case "software", "soft", "cpu":
		return BackendTypeSoftware, nil
	default:
		return 0, fmt.Errorf("unknown renderer backend %q", s)
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing on the WGPU backend.
type MSAASampleCount uint32

const (
	MSAAOff MSAASampleCount = 1
	MSAA4x  MSAASampleCount = 4
)

// drawState is the fixed-function state shared by every backend and toggled through the Renderer.
type drawState struct {
	clearColor Color
	depthTest  bool
	lights     [MaxLights]lightSlot
}

// lightSlot is a light as captured by SetLightProperties, with its position and direction already in eye space.
type lightSlot struct {
	enabled  bool
	light    Light
	eyePos   common.Vec4
	eyeDir   common.Vec3
	captured bool
}

// RendererBackend is implemented once per graphics API. The Renderer front-end validates arguments,
// takes a pipeline Snapshot and hands both to the backend, so backends never see a live Pipeline.
type RendererBackend interface {
	// Initialize acquires API resources and applies the default fixed-function state.
	Initialize(state *drawState) error

	// Cleanup releases everything Initialize and UploadTexture acquired.
	Cleanup()

	// ConfigureSurface resizes the render target.
	ConfigureSurface(width, height int)

	// SetPresentMode changes how frames are presented. Backends without a swap chain ignore it.
	SetPresentMode(mode PresentMode)

	// SetDepthTest toggles depth testing for subsequent draws.
	SetDepthTest(enabled bool)

	// Clear clears the color and depth buffers using state.clearColor.
	Clear(state *drawState)

	// Flush completes all queued work and presents the frame.
	Flush() error

	// ApplyViewport maps normalized device coordinates onto v.
	ApplyViewport(v pipeline.Viewport)

	// ApplyProjection installs the projection described by snap.
	ApplyProjection(snap pipeline.Snapshot)

	// ApplyLights pushes the enabled light slots to the API.
	ApplyLights(state *drawState)

	DrawLineList(snap pipeline.Snapshot, segments []common.Vec3, color Color, width float32)
	DrawPoints(snap pipeline.Snapshot, points []common.Vec3, color Color, size float32)
	DrawUnitQuads(snap pipeline.Snapshot, quads []UnitQuad, tex *Texture, tint Color)
	DrawMeshes(snap pipeline.Snapshot, meshes []*Mesh, state *drawState)

	// UploadTexture creates the API texture for tex and returns its non-zero handle.
	UploadTexture(tex *Texture) (uint32, error)

	// EvictTexture deletes the API texture with the given handle.
	EvictTexture(id uint32)
}
