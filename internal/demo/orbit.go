package demo

import (
	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/camera"
	"github.com/chewxy/math32"
)

// Orbit turns middle-button drags and wheel steps into camera orbit and zoom around the model position.
// It starts with the eye at the origin looking at the model, so the initial view is the identity.
type Orbit struct {
	ctrl camera.CameraController

	dragging     bool
	lastX, lastY int32
}

// NewOrbit creates the orbit controls for cfg.
//
// Parameters:
//   - cfg: the merged viewer configuration
//
// Returns:
//   - *Orbit: the controls; attach Controller to the camera
func NewOrbit(cfg Config) *Orbit {
	target := common.Vec3{X: cfg.Scene.ModelPosition[0], Y: cfg.Scene.ModelPosition[1], Z: cfg.Scene.ModelPosition[2]}
	back := target.Scale(-1)
	radius := back.Length()

	return &Orbit{
		ctrl: camera.NewCameraController(
			camera.WithTarget(target),
			camera.WithRadiusBounds(radius/20, radius*4),
			camera.WithZoomSpeed(radius/16),
			camera.WithRadius(radius),
			camera.WithAzimuth(math32.Atan2(back.X, back.Z)),
			camera.WithElevation(math32.Asin(back.Y/radius)),
		),
	}
}

// Controller returns the controller driving the camera view.
func (o *Orbit) Controller() camera.CameraController {
	return o.ctrl
}

// ButtonDown starts a drag at (x, y).
func (o *Orbit) ButtonDown(x, y int32) {
	o.dragging = true
	o.lastX, o.lastY = x, y
}

// ButtonUp ends the drag.
func (o *Orbit) ButtonUp(_, _ int32) {
	o.dragging = false
}

// Move orbits by the cursor travel since the last event while dragging.
func (o *Orbit) Move(x, y int32) {
	if !o.dragging {
		return
	}
	o.ctrl.Drag(float32(x-o.lastX), float32(y-o.lastY))
	o.lastX, o.lastY = x, y
}

// Scroll zooms toward the model for positive delta.
func (o *Orbit) Scroll(delta float32) {
	o.ctrl.Zoom(delta)
}
