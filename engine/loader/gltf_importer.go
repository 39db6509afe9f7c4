package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/renderer"
)

// maxNodeDepth bounds the node hierarchy walk so a cyclic document cannot recurse forever.
const maxNodeDepth = 64

// gltfImporterImpl is the implementation of the gltfImporter interface.
type gltfImporterImpl struct{}

// gltfImporter parses a document and flattens its default scene into world-space meshes.
type gltfImporter interface {
	// Import loads and flattens a .gltf or .glb file.
	//
	// Parameters:
	//   - path: the file path
	//
	// Returns:
	//   - *Model: the flattened model, named after the file
	//   - error: error if parsing or extraction fails
	Import(path string) (*Model, error)

	// ImportReader loads and flattens a document from r.
	//
	// Parameters:
	//   - r: the document source
	//   - isGLB: true if r holds binary GLB data
	//
	// Returns:
	//   - *Model: the flattened model
	//   - error: error if parsing or extraction fails
	ImportReader(r io.Reader, isGLB bool) (*Model, error)
}

var _ gltfImporter = &gltfImporterImpl{}

func newGLTFImporter() gltfImporter {
	return &gltfImporterImpl{}
}

func (imp *gltfImporterImpl) Import(path string) (*Model, error) {
	parser := newGLTFParser()
	if err := parser.Parse(path); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return imp.importFromParser(parser, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
}

func (imp *gltfImporterImpl) ImportReader(r io.Reader, isGLB bool) (*Model, error) {
	parser := newGLTFParser()
	if err := parser.ParseReader(r, isGLB, ""); err != nil {
		return nil, fmt.Errorf("failed to parse from reader: %w", err)
	}
	return imp.importFromParser(parser, "")
}

// importFromParser bakes every node's world transform into a copy of its mesh.
// Documents without scenes place each mesh once at the origin.
func (imp *gltfImporterImpl) importFromParser(parser gltfParser, name string) (*Model, error) {
	doc := parser.Document()
	if doc == nil {
		return nil, errNoDocument
	}

	b := &gltfModelBuilder{
		meshes:    newGLTFMeshExtractor(parser),
		materials: newGLTFMaterialExtractor(parser),
		doc:       doc,
		model:     &Model{Name: name},
		seenTex:   make(map[*renderer.Texture]bool),
	}

	if len(doc.Scenes) == 0 {
		for i := range doc.Meshes {
			if err := b.addMesh(i, common.Identity()); err != nil {
				return nil, err
			}
		}
		return b.finish(), nil
	}

	sceneIdx := 0
	if doc.Scene != nil {
		sceneIdx = *doc.Scene
	}
	if sceneIdx < 0 || sceneIdx >= len(doc.Scenes) {
		return nil, fmt.Errorf("scene index %d out of range", sceneIdx)
	}
	if name == "" {
		b.model.Name = doc.Scenes[sceneIdx].Name
	}
	for _, root := range doc.Scenes[sceneIdx].Nodes {
		if err := b.walk(root, common.Identity(), 0); err != nil {
			return nil, err
		}
	}
	return b.finish(), nil
}

type gltfModelBuilder struct {
	meshes    gltfMeshExtractor
	materials gltfMaterialExtractor
	doc       *gltfDocument
	model     *Model
	seenTex   map[*renderer.Texture]bool
}

func (b *gltfModelBuilder) walk(nodeIdx int, parent common.Matrix4, depth int) error {
	if depth > maxNodeDepth {
		return fmt.Errorf("node hierarchy deeper than %d", maxNodeDepth)
	}
	if nodeIdx < 0 || nodeIdx >= len(b.doc.Nodes) {
		return fmt.Errorf("node index %d out of range", nodeIdx)
	}

	node := &b.doc.Nodes[nodeIdx]
	world := parent.Mul(nodeMatrix(node))
	if node.Mesh != nil {
		if err := b.addMesh(*node.Mesh, world); err != nil {
			return fmt.Errorf("node %d: %w", nodeIdx, err)
		}
	}
	for _, child := range node.Children {
		if err := b.walk(child, world, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (b *gltfModelBuilder) addMesh(meshIdx int, world common.Matrix4) error {
	meshes, materials, err := b.meshes.ExtractMesh(meshIdx)
	if err != nil {
		return err
	}

	normalMatrix := common.Identity()
	if inv, ok := world.Invert(); ok {
		normalMatrix = inv.Transpose()
	}

	for i, m := range meshes {
		mat, tex, err := b.materials.ExtractMaterial(materials[i])
		if err != nil {
			return err
		}
		m.Material, m.Texture = mat, tex

		for j, p := range m.Positions {
			w := world.TransformPoint(p)
			m.Positions[j] = common.Vec3{X: w.X, Y: w.Y, Z: w.Z}
		}
		for j, n := range m.Normals {
			m.Normals[j] = normalMatrix.TransformVector(n).Normalize()
		}

		b.model.Meshes = append(b.model.Meshes, m)
		if tex != nil && !b.seenTex[tex] {
			b.seenTex[tex] = true
			b.model.Textures = append(b.model.Textures, tex)
		}
	}
	return nil
}

func (b *gltfModelBuilder) finish() *Model {
	b.model.computeBounds()
	return b.model
}

// nodeMatrix returns a node's local transform: its matrix if given, otherwise T * R * S.
func nodeMatrix(n *gltfNode) common.Matrix4 {
	if n.Matrix != nil {
		return common.FromColumnMajor(*n.Matrix)
	}

	m := common.Identity()
	if t := n.Translation; t != nil {
		m = common.Translation(t[0], t[1], t[2])
	}
	if q := n.Rotation; q != nil {
		m = m.Mul(quaternionMatrix(q[0], q[1], q[2], q[3]))
	}
	if s := n.Scale; s != nil {
		m = m.Mul(common.Scaling(s[0], s[1], s[2]))
	}
	return m
}

// quaternionMatrix converts a unit quaternion to a rotation matrix.
func quaternionMatrix(x, y, z, w float32) common.Matrix4 {
	return common.Matrix4{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w), 0,
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w), 0,
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y), 0,
		0, 0, 0, 1,
	}
}
