package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/pipeline"
	"github.com/chewxy/math32"
)

type cameraImpl struct {
	mu *sync.Mutex

	up common.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	controller CameraController
}

// Camera defines the interface for the camera system.
// The camera holds perspective settings and writes its projection and view into a transform pipeline via Apply.
// Position and target come from an attached CameraController.
type Camera interface {
	// Up returns the camera's up vector.
	//
	// Returns:
	//   - common.Vec3: the up vector
	Up() common.Vec3

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the fixed aspect ratio (width / height).
	// Zero means the aspect is taken from the pipeline viewport on every Apply.
	//
	// Returns:
	//   - float32: the aspect ratio, or 0 for automatic
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// ViewMatrix returns the world-to-eye matrix computed from the controller.
	// Returns the identity when no controller is attached.
	//
	// Returns:
	//   - common.Matrix4: the view matrix, row-major
	ViewMatrix() common.Matrix4

	// Frustum returns the perspective frustum for the given aspect ratio.
	// A fixed camera aspect takes precedence over the argument.
	//
	// Parameters:
	//   - aspect: the viewport aspect ratio
	//
	// Returns:
	//   - pipeline.Frustum: the six frustum scalars
	Frustum(aspect float32) pipeline.Frustum

	// Apply writes the camera into p. The projection stack top becomes the identity and the perspective frustum is set;
	// the modelview stack top is replaced with the view matrix. The active stack is left on ModelView.
	//
	// Parameters:
	//   - p: the pipeline to write into
	Apply(p pipeline.Pipeline)

	// Controller returns the attached CameraController.
	// Returns nil if no controller is attached.
	//
	// Returns:
	//   - CameraController: the attached controller or nil
	Controller() CameraController

	// SetUp sets the camera's up vector.
	//
	// Parameters:
	//   - up: the up vector
	SetUp(up common.Vec3)

	// SetFov sets the vertical field of view in radians.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// SetAspect sets a fixed aspect ratio (width / height). Zero restores the automatic aspect.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetNear sets the near clipping plane distance.
	//
	// Parameters:
	//   - near: near plane distance
	SetNear(near float32)

	// SetFar sets the far clipping plane distance.
	//
	// Parameters:
	//   - far: far plane distance
	SetFar(far float32)

	// SetController attaches a CameraController to the camera.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl CameraController)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with default perspective settings: 45 degree field of view,
// automatic aspect, near 1 and far 10000.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:   &sync.Mutex{},
		up:   common.Vec3{Y: 1},
		fov:  45.0 * (math32.Pi / 180.0),
		near: 1,
		far:  10000,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *cameraImpl) Up() common.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) ViewMatrix() common.Matrix4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix()
}

func (c *cameraImpl) Frustum(aspect float32) pipeline.Frustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frustum(aspect)
}

func (c *cameraImpl) Apply(p pipeline.Pipeline) {
	c.mu.Lock()
	f := c.frustum(p.Viewport().Aspect())
	view := c.viewMatrix()
	c.mu.Unlock()

	p.SetActiveStack(pipeline.Projection)
	p.LoadIdentity()
	p.SetPerspective(f.Left, f.Right, f.Bottom, f.Top, f.Near, f.Far)
	p.SetActiveStack(pipeline.ModelView)
	p.Replace(view)
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetUp(up common.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = up
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
}

// viewMatrix reads position and target from the controller. Caller must hold the mutex.
func (c *cameraImpl) viewMatrix() common.Matrix4 {
	if c.controller == nil {
		return common.Identity()
	}
	return common.LookAt(c.controller.Position(), c.controller.Target(), c.up)
}

// frustum resolves the aspect and builds the frustum. Caller must hold the mutex.
func (c *cameraImpl) frustum(aspect float32) pipeline.Frustum {
	if c.aspect > 0 {
		aspect = c.aspect
	}
	if aspect <= 0 {
		aspect = 1
	}
	l, r, b, t, n, f := common.PerspectiveFov(c.fov, aspect, c.near, c.far)
	return pipeline.Frustum{Left: l, Right: r, Bottom: b, Top: t, Near: n, Far: f}
}
