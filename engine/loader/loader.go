package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/renderer"
)

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

// Model is an imported asset flattened into world-space meshes ready for Renderer.DrawMeshes.
type Model struct {
	Name   string
	Meshes []*renderer.Mesh
	// Textures lists each distinct texture referenced by Meshes once.
	Textures []*renderer.Texture

	// BoundsMin and BoundsMax enclose every mesh position.
	BoundsMin, BoundsMax common.Vec3
}

// Center returns the midpoint of the model's bounding box.
func (m *Model) Center() common.Vec3 {
	return m.BoundsMin.Add(m.BoundsMax).Scale(0.5)
}

func (m *Model) computeBounds() {
	first := true
	for _, mesh := range m.Meshes {
		for _, p := range mesh.Positions {
			if first {
				m.BoundsMin, m.BoundsMax = p, p
				first = false
				continue
			}
			m.BoundsMin = common.Vec3{X: min(m.BoundsMin.X, p.X), Y: min(m.BoundsMin.Y, p.Y), Z: min(m.BoundsMin.Z, p.Z)}
			m.BoundsMax = common.Vec3{X: max(m.BoundsMax.X, p.X), Y: max(m.BoundsMax.Y, p.Y), Z: max(m.BoundsMax.Z, p.Z)}
		}
	}
}

// scale multiplies every position and the bounds by s.
func (m *Model) scale(s float32) {
	for _, mesh := range m.Meshes {
		for i := range mesh.Positions {
			mesh.Positions[i] = mesh.Positions[i].Scale(s)
		}
	}
	m.BoundsMin, m.BoundsMax = m.BoundsMin.Scale(s), m.BoundsMax.Scale(s)
	if s < 0 {
		m.BoundsMin, m.BoundsMax = m.BoundsMax, m.BoundsMin
	}
}

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	renderer renderer.Renderer
	scale    float32

	modelCache map[string]*Model

	backend loaderBackend
}

// Loader imports model files into renderer meshes and caches them by path or name.
// With a renderer attached, model textures are uploaded on load and evicted on Evict.
type Loader interface {
	// Load imports a model file and caches the result by path.
	// A cached model is returned without touching the file.
	//
	// Parameters:
	//   - path: the model file; its extension selects the backend
	//
	// Returns:
	//   - *Model: the loaded model
	//   - error: error if the format is unsupported, loading fails, or a texture upload fails
	Load(path string) (*Model, error)

	// LoadReader imports a model from a stream and caches it under name.
	//
	// Parameters:
	//   - name: the cache key
	//   - r: the model data
	//   - isBinary: true for binary variants such as GLB
	//
	// Returns:
	//   - *Model: the loaded model
	//   - error: error if loading or a texture upload fails
	LoadReader(name string, r io.Reader, isBinary bool) (*Model, error)

	// Get returns a cached model, or nil.
	Get(name string) *Model

	// Models returns a copy of the cache.
	Models() map[string]*Model

	// Evict drops a model from the cache and evicts its textures from the attached renderer.
	//
	// Parameters:
	//   - name: the cache key
	Evict(name string)
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the type of loader backend to use (e.g., BackendTypeGLTF)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		modelCache: make(map[string]*Model),
		scale:      1,
	}

	switch backendType {
	case BackendTypeGLTF:
		l.backend = newGLTFLoaderBackend()
	default:
		panic(fmt.Sprintf("unknown loader backend type %d", backendType))
	}

	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(path string) (*Model, error) {
	if m := l.Get(path); m != nil {
		return m, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(l.backend.Extensions(), ext) {
		return nil, fmt.Errorf("unsupported model format: %q", ext)
	}

	m, err := l.backend.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return l.store(path, m)
}

func (l *loader) LoadReader(name string, r io.Reader, isBinary bool) (*Model, error) {
	if m := l.Get(name); m != nil {
		return m, nil
	}

	m, err := l.backend.LoadReader(r, isBinary)
	if err != nil {
		return nil, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}
	if m.Name == "" {
		m.Name = name
	}
	return l.store(name, m)
}

// store applies the loader scale, uploads textures and caches m under key.
func (l *loader) store(key string, m *Model) (*Model, error) {
	if l.scale != 1 {
		m.scale(l.scale)
	}

	if l.renderer != nil {
		for _, tex := range m.Textures {
			if err := l.renderer.UploadToGPU(tex); err != nil {
				return nil, fmt.Errorf("model %q: %w", key, err)
			}
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.modelCache[key]; ok {
		// Lost a race with another Load of the same key.
		l.release(m)
		return cached, nil
	}
	l.modelCache[key] = m

	vertices := 0
	for _, mesh := range m.Meshes {
		vertices += len(mesh.Positions)
	}
	common.ComponentLogger("loader").Debug("model loaded", "key", key, "meshes", len(m.Meshes), "vertices", vertices, "textures", len(m.Textures))
	return m, nil
}

func (l *loader) Get(name string) *Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelCache[name]
}

func (l *loader) Models() map[string]*Model {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]*Model, len(l.modelCache))
	for k, v := range l.modelCache {
		result[k] = v
	}
	return result
}

func (l *loader) Evict(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.modelCache[name]
	if !ok {
		return
	}
	delete(l.modelCache, name)
	l.release(m)
}

func (l *loader) release(m *Model) {
	if l.renderer == nil {
		return
	}
	for _, tex := range m.Textures {
		l.renderer.EvictFromGPU(tex)
	}
}
