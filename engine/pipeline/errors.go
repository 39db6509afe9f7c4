package pipeline

import (
	"errors"
	"fmt"
)

// ErrStackBounds is the single failure kind of a Pipeline: a push past the capacity of a stack
// or a pop of its base frame. Match with errors.Is.
var ErrStackBounds = errors.New("matrix stack bounds violation")

// StackBoundsError describes which stack was over- or underflowed and where.
type StackBoundsError struct {
	// Stack is the stack the operation targeted.
	Stack StackSelector
	// Op is "push" or "pop".
	Op string
	// Index is the top index at the time of the failed call.
	Index int
	// Capacity is the fixed capacity of the stack.
	Capacity int
}

func (e *StackBoundsError) Error() string {
	if e.Op == "pop" {
		return fmt.Sprintf("%s: pop on %s stack at base frame (index %d)", ErrStackBounds, e.Stack, e.Index)
	}
	return fmt.Sprintf("%s: push on %s stack at index %d exceeds capacity %d", ErrStackBounds, e.Stack, e.Index, e.Capacity)
}

func (e *StackBoundsError) Unwrap() error {
	return ErrStackBounds
}
