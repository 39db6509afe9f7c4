package renderer

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-fixed/engine/window"
)

// ErrLightIndex is returned when a light slot outside [0, MaxLights) is addressed.
var ErrLightIndex = errors.New("light index out of range")

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	state pipeline.State

	backendType RendererBackendType
	backend     RendererBackend
	draw        drawState
	initialized bool

	// Pre-creation config collected from builder options
	window               window.Window
	width, height        int
	forceFallbackAdapter bool
	presentMode          PresentMode
	msaa                 MSAASampleCount
	rasterWorkers        int
}

// Renderer executes fixed-function draw operations against a graphics backend.
//
// Every draw reads the current modelview and projection from the pipeline State the renderer was built with;
// the renderer never mutates the pipeline. Application code composes transforms on the pipeline and then calls
// the draw methods, bracketing nested transforms with Push and Pop.
type Renderer interface {
	// Initialize acquires backend resources and applies the default state: smooth shading, depth test on,
	// back-face culling, a grey clear color, color-material lighting with white global ambient and
	// modulated texturing.
	//
	// Returns:
	//   - error: an error if the backend cannot be initialized
	Initialize() error

	// Cleanup releases backend resources. The renderer must not be used afterwards.
	Cleanup()

	// BackendType returns the backend this renderer draws with.
	//
	// Returns:
	//   - RendererBackendType: the backend type
	BackendType() RendererBackendType

	// State returns the pipeline state the renderer reads from.
	//
	// Returns:
	//   - pipeline.State: the read-only pipeline view
	State() pipeline.State

	// Resize reconfigures the backend surface for a new framebuffer size.
	// The pipeline viewport is not changed; callers update it and then call UpdateViewport.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode changes how frames are presented.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// SetClearColor changes the color used by ClearColorAndDepth.
	//
	// Parameters:
	//   - c: the new clear color
	SetClearColor(c Color)

	EnableDepthTest()
	DisableDepthTest()

	// ClearColorAndDepth clears the color and depth buffers.
	ClearColorAndDepth()

	// Flush completes all queued work and presents the frame.
	//
	// Returns:
	//   - error: an error if presenting fails
	Flush() error

	// UpdateViewport applies the pipeline's viewport to the backend.
	UpdateViewport()

	// UpdateProjection applies the pipeline's projection kind, frustum and projection stack top to the backend.
	UpdateProjection()

	// EnableLight turns on a light slot.
	//
	// Parameters:
	//   - index: light slot in [0, MaxLights)
	//
	// Returns:
	//   - error: ErrLightIndex if index is out of range
	EnableLight(index int) error

	// DisableLight turns off a light slot.
	//
	// Parameters:
	//   - index: light slot in [0, MaxLights)
	//
	// Returns:
	//   - error: ErrLightIndex if index is out of range
	DisableLight(index int) error

	// SetLightProperties stores a light in a slot. Position and direction are transformed by the
	// current modelview top, so lights set after the camera transform follow the world.
	//
	// Parameters:
	//   - index: light slot in [0, MaxLights)
	//   - light: the light description
	//
	// Returns:
	//   - error: ErrLightIndex if index is out of range
	SetLightProperties(index int, light Light) error

	// DrawGrid draws an unlit black grid on the XZ plane centered at the origin.
	//
	// Parameters:
	//   - width: edge length of the grid
	//   - linesPerAxis: number of cells along each axis
	DrawGrid(width float32, linesPerAxis int)

	// DrawPoints draws unlit points.
	//
	// Parameters:
	//   - points: point positions
	//   - color: point color
	//   - size: point size in pixels
	DrawPoints(points []common.Vec3, color Color, size float32)

	// DrawLines draws an unlit line strip through points.
	//
	// Parameters:
	//   - points: strip vertices; fewer than two draws nothing
	//   - color: line color
	//   - width: line width in pixels
	DrawLines(points []common.Vec3, color Color, width float32)

	// DrawUnitQuads draws glyph quads laid out left to right with color blending, no depth test and no culling.
	//
	// Parameters:
	//   - quads: the glyph cells
	//   - tex: glyph atlas; may be nil or not resident, in which case quads are untextured
	//   - tint: color multiplied with the atlas
	DrawUnitQuads(quads []UnitQuad, tex *Texture, tint Color)

	// DrawMeshesWireframe draws the triangle edges of each mesh, unlit.
	//
	// Parameters:
	//   - meshes: the meshes to outline
	//   - color: line color
	//   - width: line width in pixels
	//
	// Returns:
	//   - error: an error if a mesh fails validation; nothing is drawn in that case
	DrawMeshesWireframe(meshes []*Mesh, color Color, width float32) error

	// DrawMeshes draws lit, optionally textured meshes. Meshes whose material has any alpha below one
	// are alpha blended.
	//
	// Parameters:
	//   - meshes: the meshes to draw
	//
	// Returns:
	//   - error: an error if a mesh fails validation; nothing is drawn in that case
	DrawMeshes(meshes []*Mesh) error

	// UploadToGPU creates a backend texture from tex with mipmaps, repeat wrapping and linear filtering.
	// Uploading a resident texture replaces it.
	//
	// Parameters:
	//   - tex: the texture to upload
	//
	// Returns:
	//   - error: an error if the texture is invalid or the backend fails
	UploadToGPU(tex *Texture) error

	// EvictFromGPU deletes the backend texture of tex. Non-resident textures are ignored.
	//
	// Parameters:
	//   - tex: the texture to evict
	EvictFromGPU(tex *Texture)

	// Image returns the last rendered frame for backends that render into CPU memory.
	//
	// Returns:
	//   - *image.RGBA: the frame, or nil for GPU backends
	Image() *image.RGBA
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer that reads transforms from state and draws with the given backend.
// No API resources are acquired until Initialize is called.
//
// Parameters:
//   - backendType: the graphics backend to use
//   - state: the pipeline the renderer reads matrices, projection and viewport from
//   - options: variadic list of RendererBuilderOption functions
//
// Returns:
//   - Renderer: the newly created renderer
func NewRenderer(backendType RendererBackendType, state pipeline.State, options ...RendererBuilderOption) Renderer {
	if state == nil {
		panic("renderer: pipeline state must not be nil")
	}

	r := &renderer{
		mu:          &sync.Mutex{},
		state:       state,
		backendType: backendType,
		presentMode: PresentModeVSync,
		msaa:        MSAA4x,
		draw: drawState{
			clearColor: ColorClearDefault,
			depthTest:  true,
		},
	}

	for _, opt := range options {
		opt(r)
	}

	if r.window != nil {
		r.width = common.Coalesce(r.width, r.window.Width())
		r.height = common.Coalesce(r.height, r.window.Height())
	}

	switch backendType {
	case BackendTypeOpenGL:
		r.backend = newGLRendererBackend(r.window)
	case BackendTypeWGPU:
		r.backend = newWGPURendererBackend(r.window, r.forceFallbackAdapter, r.msaa)
	case BackendTypeSoftware:
		r.backend = newSoftwareRendererBackend(r.width, r.height, r.rasterWorkers)
	default:
		panic(fmt.Sprintf("renderer: unknown backend type %d", int(backendType)))
	}
	r.backend.SetPresentMode(r.presentMode)

	return r
}

func (r *renderer) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.backend.Initialize(&r.draw); err != nil {
		return fmt.Errorf("failed to initialize %s renderer: %w", r.backendType, err)
	}
	if r.width > 0 && r.height > 0 {
		r.backend.ConfigureSurface(r.width, r.height)
	}
	r.initialized = true

	common.ComponentLogger("renderer").Info("backend initialized", "backend", r.backendType.String(), "width", r.width, "height", r.height)
	return nil
}

func (r *renderer) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return
	}
	r.backend.Cleanup()
	r.initialized = false
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) State() pipeline.State {
	return r.state
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if width <= 0 || height <= 0 {
		return
	}
	r.width, r.height = width, height
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presentMode = mode
	r.backend.SetPresentMode(mode)
}

func (r *renderer) SetClearColor(c Color) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draw.clearColor = c
}

func (r *renderer) EnableDepthTest() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draw.depthTest = true
	r.backend.SetDepthTest(true)
}

func (r *renderer) DisableDepthTest() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draw.depthTest = false
	r.backend.SetDepthTest(false)
}

func (r *renderer) ClearColorAndDepth() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.Clear(&r.draw)
}

func (r *renderer) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.Flush()
}

func (r *renderer) UpdateViewport() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.ApplyViewport(r.state.Viewport())
}

func (r *renderer) UpdateProjection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.ApplyProjection(r.state.Snapshot())
}

func (r *renderer) EnableLight(index int) error {
	return r.setLightEnabled(index, true)
}

func (r *renderer) DisableLight(index int) error {
	return r.setLightEnabled(index, false)
}

func (r *renderer) setLightEnabled(index int, enabled bool) error {
	if index < 0 || index >= MaxLights {
		return fmt.Errorf("%w: %d", ErrLightIndex, index)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	slot := &r.draw.lights[index]
	slot.enabled = enabled
	if enabled && !slot.captured {
		r.captureLight(slot, DefaultLight())
	}
	r.backend.ApplyLights(&r.draw)
	return nil
}

func (r *renderer) SetLightProperties(index int, light Light) error {
	if index < 0 || index >= MaxLights {
		return fmt.Errorf("%w: %d", ErrLightIndex, index)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.captureLight(&r.draw.lights[index], light)
	r.backend.ApplyLights(&r.draw)
	return nil
}

// captureLight transforms the light into eye space with the modelview top current at call time.
// Directional lights store the direction towards the light with w = 0.
func (r *renderer) captureLight(slot *lightSlot, light Light) {
	mv := r.state.Matrix(pipeline.ModelView)

	slot.light = light
	slot.captured = true
	slot.eyeDir = mv.TransformVector(light.Direction).Normalize()
	if light.Type == LightTypeDirectional {
		toLight := slot.eyeDir.Scale(-1)
		slot.eyePos = common.Vec4{X: toLight.X, Y: toLight.Y, Z: toLight.Z, W: 0}
		return
	}
	slot.eyePos = mv.TransformPoint(light.Position)
}

func (r *renderer) DrawGrid(width float32, linesPerAxis int) {
	segments := gridSegments(width, linesPerAxis)
	if len(segments) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.DrawLineList(r.state.Snapshot(), segments, ColorBlack, 1)
}

func (r *renderer) DrawPoints(points []common.Vec3, color Color, size float32) {
	if len(points) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.DrawPoints(r.state.Snapshot(), points, color, size)
}

func (r *renderer) DrawLines(points []common.Vec3, color Color, width float32) {
	segments := stripSegments(points)
	if len(segments) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.DrawLineList(r.state.Snapshot(), segments, color, width)
}

func (r *renderer) DrawUnitQuads(quads []UnitQuad, tex *Texture, tint Color) {
	if len(quads) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.DrawUnitQuads(r.state.Snapshot(), quads, tex, tint)
}

func (r *renderer) DrawMeshesWireframe(meshes []*Mesh, color Color, width float32) error {
	if err := validateMeshes(meshes); err != nil {
		return err
	}
	segments := wireframeSegments(meshes)
	if len(segments) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.DrawLineList(r.state.Snapshot(), segments, color, width)
	return nil
}

func (r *renderer) DrawMeshes(meshes []*Mesh) error {
	if err := validateMeshes(meshes); err != nil {
		return err
	}
	if len(meshes) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.DrawMeshes(r.state.Snapshot(), meshes, &r.draw)
	return nil
}

func validateMeshes(meshes []*Mesh) error {
	for i, m := range meshes {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("mesh %d: %w", i, err)
		}
	}
	return nil
}

func (r *renderer) UploadToGPU(tex *Texture) error {
	if err := tex.validate(); err != nil {
		return fmt.Errorf("failed to upload texture: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if tex.id != 0 {
		r.backend.EvictTexture(tex.id)
		tex.id = 0
	}
	id, err := r.backend.UploadTexture(tex)
	if err != nil {
		return fmt.Errorf("failed to upload texture: %w", err)
	}
	tex.id = id

	common.ComponentLogger("renderer").Debug("texture uploaded", "id", id, "width", tex.Width, "height", tex.Height, "format", tex.Format.String())
	return nil
}

func (r *renderer) EvictFromGPU(tex *Texture) {
	if !tex.Resident() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.EvictTexture(tex.id)
	tex.id = 0
}

func (r *renderer) Image() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sw, ok := r.backend.(*softwareRendererBackendImpl); ok {
		return sw.Image()
	}
	return nil
}
