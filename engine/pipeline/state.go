package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-fixed/common"
)

// StackSelector names one of the two matrix stacks owned by a Pipeline.
type StackSelector int

const (
	// ModelView selects the stack holding object and view transforms.
	ModelView StackSelector = iota
	// Projection selects the stack holding projection transforms.
	Projection
)

func (s StackSelector) String() string {
	switch s {
	case ModelView:
		return "modelview"
	case Projection:
		return "projection"
	default:
		return fmt.Sprintf("StackSelector(%d)", int(s))
	}
}

// ProjectionKind tags the stored frustum as perspective or orthographic.
type ProjectionKind int

const (
	// Perspective maps the frustum with a glFrustum-style divide by -z.
	Perspective ProjectionKind = iota
	// Orthographic maps the box with a glOrtho-style parallel projection.
	Orthographic
)

func (k ProjectionKind) String() string {
	switch k {
	case Perspective:
		return "perspective"
	case Orthographic:
		return "orthographic"
	default:
		return fmt.Sprintf("ProjectionKind(%d)", int(k))
	}
}

// Frustum holds the six scalars of a view volume. Left, right, bottom and top are extents on the near plane;
// Near and Far are positive plane distances, not z coordinates.
type Frustum struct {
	Left, Right, Bottom, Top, Near, Far float32
}

// Viewport is the on-screen rectangle the projected scene maps onto.
type Viewport struct {
	X, Y, Width, Height float32
}

// Aspect returns Width / Height, or 1 when the viewport has no height.
func (v Viewport) Aspect() float32 {
	if v.Height == 0 {
		return 1
	}
	return v.Width / v.Height
}

// State is the read-only view of a Pipeline consumed by renderer backends.
// Backends never mutate the pipeline; they read the current matrices and configuration through this interface.
type State interface {
	// ActiveStack returns the stack currently targeted by stack operations.
	//
	// Returns:
	//   - StackSelector: ModelView or Projection
	ActiveStack() StackSelector

	// Top returns a copy of the matrix on top of the active stack.
	//
	// Returns:
	//   - common.Matrix4: the top matrix, row-major
	Top() common.Matrix4

	// TopColumnMajor returns the top of the active stack in column-major order.
	//
	// Returns:
	//   - [16]float32: the top matrix, column-major
	TopColumnMajor() [16]float32

	// Matrix returns a copy of the top of the named stack regardless of which stack is active.
	//
	// Parameters:
	//   - s: the stack to read
	//
	// Returns:
	//   - common.Matrix4: the top matrix of s, row-major
	Matrix(s StackSelector) common.Matrix4

	// ProjectionKind returns whether the stored frustum is perspective or orthographic.
	//
	// Returns:
	//   - ProjectionKind: the current projection tag
	ProjectionKind() ProjectionKind

	// Frustum returns the six stored frustum scalars exactly as they were set.
	//
	// Returns:
	//   - Frustum: the stored view volume
	Frustum() Frustum

	// Viewport returns the four stored viewport scalars exactly as they were set.
	//
	// Returns:
	//   - Viewport: the stored viewport
	Viewport() Viewport

	// Snapshot returns a value copy of everything a backend needs to draw a frame.
	// The copy is safe to hand to another goroutine.
	//
	// Returns:
	//   - Snapshot: the copied state
	Snapshot() Snapshot
}

// Snapshot is a detached copy of pipeline state taken at a frame boundary.
type Snapshot struct {
	ModelView  common.Matrix4
	Projection common.Matrix4
	Kind       ProjectionKind
	Frustum    Frustum
	Viewport   Viewport
}

// ProjectionMatrix builds the projection for the stored frustum and composes the projection stack top onto it.
// Perspective frustums use the glFrustum layout and orthographic ones the glOrtho layout, so clip depth is in [-1, 1].
//
// Returns:
//   - common.Matrix4: frustum or ortho matrix multiplied by the projection stack top
func (s Snapshot) ProjectionMatrix() common.Matrix4 {
	f := s.Frustum
	var p common.Matrix4
	if s.Kind == Perspective {
		p = common.FrustumMatrix(f.Left, f.Right, f.Bottom, f.Top, f.Near, f.Far)
	} else {
		p = common.OrthoMatrix(f.Left, f.Right, f.Bottom, f.Top, f.Near, f.Far)
	}
	return p.Mul(s.Projection)
}

// ModelViewProjection returns ProjectionMatrix() * ModelView.
func (s Snapshot) ModelViewProjection() common.Matrix4 {
	return s.ProjectionMatrix().Mul(s.ModelView)
}
