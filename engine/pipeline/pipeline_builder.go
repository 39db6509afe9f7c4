package pipeline

// PipelineBuilderOption is a functional option for configuring a Pipeline via NewPipeline.
type PipelineBuilderOption func(*pipelineImpl)

// WithModelViewDepth sets the capacity of the modelview stack.
// The capacity bounds how deeply transforms can be nested; it is fixed for the lifetime of the pipeline.
//
// Parameters:
//   - depth: number of matrices the stack can hold, at least 1
//
// Returns:
//   - PipelineBuilderOption: a function that sets the modelview stack capacity
func WithModelViewDepth(depth int) PipelineBuilderOption {
	return func(p *pipelineImpl) {
		p.modelViewDepth = depth
	}
}

// WithProjectionDepth sets the capacity of the projection stack.
//
// Parameters:
//   - depth: number of matrices the stack can hold, at least 1
//
// Returns:
//   - PipelineBuilderOption: a function that sets the projection stack capacity
func WithProjectionDepth(depth int) PipelineBuilderOption {
	return func(p *pipelineImpl) {
		p.projectionDepth = depth
	}
}
