package pipeline

import "github.com/Carmen-Shannon/oxy-fixed/common"

// matrixStack is a bounded array of matrices addressed by a single top index.
// It never grows: capacity is fixed at construction and 0 <= top < len(data) always holds.
type matrixStack struct {
	selector StackSelector
	data     []common.Matrix4
	top      int
}

func newMatrixStack(selector StackSelector, capacity int) *matrixStack {
	s := &matrixStack{
		selector: selector,
		data:     make([]common.Matrix4, capacity),
	}
	s.data[0] = common.Identity()
	return s
}

func (s *matrixStack) push() error {
	if s.top+1 >= len(s.data) {
		return &StackBoundsError{Stack: s.selector, Op: "push", Index: s.top, Capacity: len(s.data)}
	}
	s.data[s.top+1] = s.data[s.top]
	s.top++
	return nil
}

// pop returns the old top and then moves the index down.
func (s *matrixStack) pop() (common.Matrix4, error) {
	if s.top == 0 {
		return common.Matrix4{}, &StackBoundsError{Stack: s.selector, Op: "pop", Index: s.top, Capacity: len(s.data)}
	}
	m := s.data[s.top]
	s.top--
	return m, nil
}

func (s *matrixStack) peek() common.Matrix4 {
	return s.data[s.top]
}

func (s *matrixStack) set(m common.Matrix4) {
	s.data[s.top] = m
}
