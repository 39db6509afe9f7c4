package camera

import "github.com/Carmen-Shannon/oxy-fixed/common"

// CameraController owns the eye position and look-at target a Camera turns into its view matrix.
// The eye orbits the target on a sphere (radius, azimuth, elevation) and can be panned, which moves
// eye and target together.
type CameraController interface {
	orbitCameraController
	planarCameraController

	// Position returns the eye in world space.
	Position() common.Vec3

	// Target returns the look-at point in world space.
	Target() common.Vec3

	// SetTarget moves the orbit pivot and places the eye on the sphere around it.
	//
	// Parameters:
	//   - target: world-space pivot
	SetTarget(target common.Vec3)

	// SetPosition places the eye directly, leaving the orbit angles as they are.
	// The next orbit or zoom call snaps the eye back onto the sphere.
	//
	// Parameters:
	//   - position: world-space eye
	SetPosition(position common.Vec3)

	// Zoom shrinks the orbit radius by delta * zoom speed, within the radius bounds.
	//
	// Parameters:
	//   - delta: positive moves toward the target
	Zoom(delta float32)
}

type orbitCameraController interface {
	// OrbitLeft and OrbitRight step the azimuth by the orbit speed.
	OrbitLeft()
	OrbitRight()

	// OrbitUp and OrbitDown step the elevation by the orbit speed, within the elevation bounds.
	OrbitUp()
	OrbitDown()

	// Drag orbits by a cursor movement in pixels scaled by the mouse sensitivity.
	// Positive dx turns the eye left around the target; positive dy raises it.
	//
	// Parameters:
	//   - dx, dy: cursor travel since the previous event
	Drag(dx, dy float32)

	// Radius returns the distance from the eye to the target.
	Radius() float32

	// SetRadius sets the distance to the target, clamped to RadiusBounds.
	SetRadius(radius float32)

	// RadiusBounds returns the zoom limits.
	//
	// Returns:
	//   - lo: closest allowed distance
	//   - hi: farthest allowed distance
	RadiusBounds() (lo, hi float32)

	// Azimuth returns the angle around +Y in radians; zero puts the eye on +Z of the target.
	Azimuth() float32

	SetAzimuth(azimuth float32)

	// Elevation returns the angle above the XZ plane in radians.
	Elevation() float32

	// SetElevation sets the elevation, clamped to ElevationBounds.
	SetElevation(elevation float32)

	// ElevationBounds returns the tilt limits in radians.
	ElevationBounds() (lo, hi float32)
}

type planarCameraController interface {
	// PanRight moves eye and target along the view's right axis by delta * pan speed.
	PanRight(delta float32)

	// PanUp moves eye and target along the view's up axis by delta * pan speed.
	PanUp(delta float32)

	// PanForward moves eye and target toward the target by delta * pan speed.
	PanForward(delta float32)
}
