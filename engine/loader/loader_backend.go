package loader

import "io"

// loaderBackend imports one model file format into a flattened Model.
type loaderBackend interface {
	// Load imports the model at path.
	//
	// Parameters:
	//   - path: the file to load
	//
	// Returns:
	//   - *Model: the imported model
	//   - error: error if loading fails
	Load(path string) (*Model, error)

	// LoadReader imports a model from a stream.
	//
	// Parameters:
	//   - r: the model data
	//   - isBinary: true if r holds the binary variant of the format
	//
	// Returns:
	//   - *Model: the imported model
	//   - error: error if loading fails
	LoadReader(r io.Reader, isBinary bool) (*Model, error)

	// Extensions lists the lower-case file extensions the backend accepts, with the leading dot.
	Extensions() []string
}
