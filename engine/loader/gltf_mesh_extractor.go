package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/renderer"
)

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	parser gltfParser
}

// gltfMeshExtractor converts glTF primitives into renderer meshes in the mesh's local space.
type gltfMeshExtractor interface {
	// ExtractMesh returns one renderer mesh per triangle primitive of the glTF mesh.
	// The second slice holds each primitive's material index, or -1 when it has none.
	//
	// Parameters:
	//   - meshIndex: the glTF mesh to extract
	//
	// Returns:
	//   - []*renderer.Mesh: the primitives, without material or texture
	//   - []int: the material index of each primitive
	//   - error: error if a primitive is malformed or not made of triangles
	ExtractMesh(meshIndex int) ([]*renderer.Mesh, []int, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

func newGLTFMeshExtractor(parser gltfParser) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{parser: parser}
}

func (e *gltfMeshExtractorImpl) ExtractMesh(meshIndex int) ([]*renderer.Mesh, []int, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, nil, errNoDocument
	}
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return nil, nil, fmt.Errorf("mesh index %d out of range", meshIndex)
	}

	src := &doc.Meshes[meshIndex]
	meshes := make([]*renderer.Mesh, 0, len(src.Primitives))
	materials := make([]int, 0, len(src.Primitives))
	for i := range src.Primitives {
		prim := &src.Primitives[i]
		m, err := e.extractPrimitive(prim)
		if err != nil {
			return nil, nil, fmt.Errorf("mesh %d primitive %d: %w", meshIndex, i, err)
		}
		meshes = append(meshes, m)

		material := -1
		if prim.Material != nil {
			material = *prim.Material
		}
		materials = append(materials, material)
	}
	return meshes, materials, nil
}

func (e *gltfMeshExtractorImpl) extractPrimitive(prim *gltfPrimitive) (*renderer.Mesh, error) {
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		return nil, fmt.Errorf("unsupported primitive mode %d: only triangles are supported", *prim.Mode)
	}

	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("primitive has no POSITION attribute")
	}
	pos, err := e.parser.ReadFloats(posAccessor, gltfAccessorTypeVec3)
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	m := &renderer.Mesh{Positions: toVec3s(pos)}
	n := len(m.Positions)

	if idx, ok := prim.Attributes["NORMAL"]; ok {
		normals, err := e.parser.ReadFloats(idx, gltfAccessorTypeVec3)
		if err != nil {
			return nil, fmt.Errorf("failed to read normals: %w", err)
		}
		if len(normals)/3 != n {
			return nil, fmt.Errorf("NORMAL has %d elements, POSITION has %d", len(normals)/3, n)
		}
		m.Normals = toVec3s(normals)
	}

	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		uvs, err := e.parser.ReadFloats(idx, gltfAccessorTypeVec2)
		if err != nil {
			return nil, fmt.Errorf("failed to read texcoords: %w", err)
		}
		if len(uvs)/2 != n {
			return nil, fmt.Errorf("TEXCOORD_0 has %d elements, POSITION has %d", len(uvs)/2, n)
		}
		m.UVs = make([]renderer.UV, n)
		for i := range m.UVs {
			m.UVs[i] = renderer.UV{U: uvs[i*2], V: uvs[i*2+1]}
		}
	}

	if prim.Indices != nil {
		m.Indices, err = e.parser.ReadIndices(*prim.Indices)
		if err != nil {
			return nil, fmt.Errorf("failed to read indices: %w", err)
		}
	} else {
		m.Indices = make([]uint32, n)
		for i := range m.Indices {
			m.Indices[i] = uint32(i)
		}
	}

	if m.Normals == nil && len(m.Indices) >= 3 {
		m.Normals = generateNormals(m.Positions, m.Indices)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func toVec3s(f []float32) []common.Vec3 {
	out := make([]common.Vec3, len(f)/3)
	for i := range out {
		out[i] = common.Vec3{X: f[i*3], Y: f[i*3+1], Z: f[i*3+2]}
	}
	return out
}

// generateNormals computes smooth vertex normals by summing area-weighted face normals.
// Vertices on no triangle get +Y.
//
// Parameters:
//   - positions: the vertex positions
//   - indices: triangle indices
//
// Returns:
//   - []common.Vec3: one unit normal per position
func generateNormals(positions []common.Vec3, indices []uint32) []common.Vec3 {
	n := len(positions)
	normals := make([]common.Vec3, n)

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= n || int(i1) >= n || int(i2) >= n {
			continue
		}
		p0 := positions[i0]
		face := positions[i1].Sub(p0).Cross(positions[i2].Sub(p0))
		normals[i0] = normals[i0].Add(face)
		normals[i1] = normals[i1].Add(face)
		normals[i2] = normals[i2].Add(face)
	}

	for i := range normals {
		if normals[i].Length() < 1e-6 {
			normals[i] = common.Vec3{Y: 1}
			continue
		}
		normals[i] = normals[i].Normalize()
	}
	return normals
}
