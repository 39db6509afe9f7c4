package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-fixed/common"
)

const (
	// DefaultModelViewDepth is the capacity of the modelview stack when WithModelViewDepth is not given.
	DefaultModelViewDepth = 256
	// DefaultProjectionDepth is the capacity of the projection stack when WithProjectionDepth is not given.
	DefaultProjectionDepth = 10
)

type pipelineImpl struct {
	modelView  *matrixStack
	projection *matrixStack
	active     StackSelector

	modelViewDepth  int
	projectionDepth int

	kind     ProjectionKind
	frustum  Frustum
	viewport Viewport
}

// Pipeline is the CPU-side transformation pipeline: two bounded matrix stacks (modelview and projection),
// a selector choosing which one stack operations target, and the projection and viewport configuration
// a renderer reads when the render target changes.
//
// A Pipeline has a single writer. It carries no lock; hand Snapshot values to other goroutines instead of the Pipeline itself.
type Pipeline interface {
	State

	// SetActiveStack switches which stack subsequent stack operations target.
	// Stack contents are not touched.
	//
	// Parameters:
	//   - s: ModelView or Projection
	SetActiveStack(s StackSelector)

	// Depth returns the top index of the active stack. A freshly built pipeline reports 0.
	//
	// Returns:
	//   - int: the current top index
	Depth() int

	// Capacity returns the fixed capacity of the active stack.
	//
	// Returns:
	//   - int: the number of matrices the active stack can hold
	Capacity() int

	// Push duplicates the top of the active stack so the new top equals the previous one.
	// On overflow the stack is left untouched and a *StackBoundsError wrapping ErrStackBounds is returned.
	//
	// Returns:
	//   - error: nil, or a stack bounds error when the stack is full
	Push() error

	// Pop removes the top of the active stack and returns it. The base frame is never popped:
	// at index 0 the stack is left untouched and a *StackBoundsError wrapping ErrStackBounds is returned.
	//
	// Returns:
	//   - common.Matrix4: the matrix that was on top before the call
	//   - error: nil, or a stack bounds error at the base frame
	Pop() (common.Matrix4, error)

	// MustPush is Push that panics on a bounds violation.
	MustPush()

	// MustPop is Pop that panics on a bounds violation.
	//
	// Returns:
	//   - common.Matrix4: the matrix that was on top before the call
	MustPop() common.Matrix4

	// LoadIdentity overwrites the top of the active stack with the identity.
	LoadIdentity()

	// Replace overwrites the top of the active stack with m.
	//
	// Parameters:
	//   - m: the new top matrix, row-major
	Replace(m common.Matrix4)

	// PostMultiply sets the top of the active stack to m * top, applying m after the current transform.
	//
	// Parameters:
	//   - m: the matrix to compose
	PostMultiply(m common.Matrix4)

	// PreMultiply sets the top of the active stack to top * m, applying m before the current transform.
	//
	// Parameters:
	//   - m: the matrix to compose
	PreMultiply(m common.Matrix4)

	// PostTranslate post-multiplies a translation by (x, y, z).
	PostTranslate(x, y, z float32)
	// PostRotateX post-multiplies a right-handed rotation of rad radians about X.
	PostRotateX(rad float32)
	// PostRotateY post-multiplies a right-handed rotation of rad radians about Y.
	PostRotateY(rad float32)
	// PostRotateZ post-multiplies a right-handed rotation of rad radians about Z.
	PostRotateZ(rad float32)
	// PostScale post-multiplies a non-uniform scale.
	PostScale(x, y, z float32)

	// PreTranslate pre-multiplies a translation by (x, y, z).
	PreTranslate(x, y, z float32)
	// PreRotateX pre-multiplies a right-handed rotation of rad radians about X.
	PreRotateX(rad float32)
	// PreRotateY pre-multiplies a right-handed rotation of rad radians about Y.
	PreRotateY(rad float32)
	// PreRotateZ pre-multiplies a right-handed rotation of rad radians about Z.
	PreRotateZ(rad float32)
	// PreScale pre-multiplies a non-uniform scale.
	PreScale(x, y, z float32)

	// SetPerspective stores the six frustum scalars verbatim and tags the projection as perspective.
	// The projection stack is not touched.
	//
	// Parameters:
	//   - left, right, bottom, top: near plane extents
	//   - near, far: positive plane distances
	SetPerspective(left, right, bottom, top, near, far float32)

	// SetOrthographic stores the six frustum scalars verbatim and tags the projection as orthographic.
	// The projection stack is not touched.
	//
	// Parameters:
	//   - left, right, bottom, top: view volume extents
	//   - near, far: plane distances
	SetOrthographic(left, right, bottom, top, near, far float32)

	// SetViewport stores the viewport rectangle verbatim. No validation is applied.
	//
	// Parameters:
	//   - x, y: lower-left corner in pixels
	//   - width, height: size in pixels
	SetViewport(x, y, width, height float32)
}

var _ Pipeline = &pipelineImpl{}

// NewPipeline creates a Pipeline with both stacks at index 0 holding the identity, the modelview stack active,
// a perspective projection with a zero frustum and a zero viewport.
//
// Parameters:
//   - options: variadic list of PipelineBuilderOption functions to configure stack capacities
//
// Returns:
//   - Pipeline: the newly created pipeline
func NewPipeline(options ...PipelineBuilderOption) Pipeline {
	p := &pipelineImpl{
		modelViewDepth:  DefaultModelViewDepth,
		projectionDepth: DefaultProjectionDepth,
		active:          ModelView,
		kind:            Perspective,
	}

	for _, option := range options {
		option(p)
	}

	if p.modelViewDepth < 1 || p.projectionDepth < 1 {
		panic(fmt.Sprintf("pipeline: stack capacities must be at least 1 (modelview %d, projection %d)", p.modelViewDepth, p.projectionDepth))
	}

	p.modelView = newMatrixStack(ModelView, p.modelViewDepth)
	p.projection = newMatrixStack(Projection, p.projectionDepth)
	return p
}

func (p *pipelineImpl) stack(s StackSelector) *matrixStack {
	switch s {
	case ModelView:
		return p.modelView
	case Projection:
		return p.projection
	default:
		panic(fmt.Sprintf("pipeline: unknown stack selector %d", int(s)))
	}
}

func (p *pipelineImpl) current() *matrixStack {
	return p.stack(p.active)
}

func (p *pipelineImpl) SetActiveStack(s StackSelector) {
	p.stack(s)
	p.active = s
}

func (p *pipelineImpl) ActiveStack() StackSelector {
	return p.active
}

func (p *pipelineImpl) Depth() int {
	return p.current().top
}

func (p *pipelineImpl) Capacity() int {
	return len(p.current().data)
}

func (p *pipelineImpl) Push() error {
	return p.current().push()
}

func (p *pipelineImpl) Pop() (common.Matrix4, error) {
	return p.current().pop()
}

func (p *pipelineImpl) MustPush() {
	if err := p.Push(); err != nil {
		panic(err)
	}
}

func (p *pipelineImpl) MustPop() common.Matrix4 {
	m, err := p.Pop()
	if err != nil {
		panic(err)
	}
	return m
}

func (p *pipelineImpl) Top() common.Matrix4 {
	return p.current().peek()
}

func (p *pipelineImpl) TopColumnMajor() [16]float32 {
	return p.current().peek().ColumnMajor()
}

func (p *pipelineImpl) Matrix(s StackSelector) common.Matrix4 {
	return p.stack(s).peek()
}

func (p *pipelineImpl) LoadIdentity() {
	p.current().set(common.Identity())
}

func (p *pipelineImpl) Replace(m common.Matrix4) {
	p.current().set(m)
}

func (p *pipelineImpl) PostMultiply(m common.Matrix4) {
	s := p.current()
	s.set(m.Mul(s.peek()))
}

func (p *pipelineImpl) PreMultiply(m common.Matrix4) {
	s := p.current()
	s.set(s.peek().Mul(m))
}

func (p *pipelineImpl) PostTranslate(x, y, z float32) { p.PostMultiply(common.Translation(x, y, z)) }
func (p *pipelineImpl) PostRotateX(rad float32)       { p.PostMultiply(common.RotationX(rad)) }
func (p *pipelineImpl) PostRotateY(rad float32)       { p.PostMultiply(common.RotationY(rad)) }
func (p *pipelineImpl) PostRotateZ(rad float32)       { p.PostMultiply(common.RotationZ(rad)) }
func (p *pipelineImpl) PostScale(x, y, z float32)     { p.PostMultiply(common.Scaling(x, y, z)) }

func (p *pipelineImpl) PreTranslate(x, y, z float32) { p.PreMultiply(common.Translation(x, y, z)) }
func (p *pipelineImpl) PreRotateX(rad float32)       { p.PreMultiply(common.RotationX(rad)) }
func (p *pipelineImpl) PreRotateY(rad float32)       { p.PreMultiply(common.RotationY(rad)) }
func (p *pipelineImpl) PreRotateZ(rad float32)       { p.PreMultiply(common.RotationZ(rad)) }
func (p *pipelineImpl) PreScale(x, y, z float32)     { p.PreMultiply(common.Scaling(x, y, z)) }

func (p *pipelineImpl) SetPerspective(left, right, bottom, top, near, far float32) {
	p.kind = Perspective
	p.frustum = Frustum{Left: left, Right: right, Bottom: bottom, Top: top, Near: near, Far: far}
}

func (p *pipelineImpl) SetOrthographic(left, right, bottom, top, near, far float32) {
	p.kind = Orthographic
	p.frustum = Frustum{Left: left, Right: right, Bottom: bottom, Top: top, Near: near, Far: far}
}

func (p *pipelineImpl) ProjectionKind() ProjectionKind {
	return p.kind
}

func (p *pipelineImpl) Frustum() Frustum {
	return p.frustum
}

func (p *pipelineImpl) SetViewport(x, y, width, height float32) {
	p.viewport = Viewport{X: x, Y: y, Width: width, Height: height}
}

func (p *pipelineImpl) Viewport() Viewport {
	return p.viewport
}

func (p *pipelineImpl) Snapshot() Snapshot {
	return Snapshot{
		ModelView:  p.modelView.peek(),
		Projection: p.projection.peek(),
		Kind:       p.kind,
		Frustum:    p.frustum,
		Viewport:   p.viewport,
	}
}
