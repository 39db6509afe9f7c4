package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-fixed/engine/renderer"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// triangleBin lays out one triangle: positions at 0, uint16 indices at 36, normalized uint8 UVs at 44.
func triangleBin() []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, []float32{0, 0, 0, 1, 0, 0, 0, 1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, []uint16{0, 1, 2, 0})
	buf.Write([]byte{0, 0, 255, 0, 0, 255})
	return buf.Bytes()
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// triangleDoc returns a document drawing the triangle once through a node with the given fields.
// The buffer is referenced by data URI unless bufferURI is false, in which case it is left for a GLB chunk.
func triangleDoc(bin []byte, node map[string]any, bufferURI bool) map[string]any {
	node["mesh"] = 0
	buffer := map[string]any{"byteLength": len(bin)}
	if bufferURI {
		buffer["uri"] = dataURI("application/octet-stream", bin)
	}
	return map[string]any{
		"asset":  map[string]any{"version": "2.0"},
		"scene":  0,
		"scenes": []any{map[string]any{"name": "tri", "nodes": []int{0}}},
		"nodes":  []any{node},
		"meshes": []any{map[string]any{"primitives": []any{map[string]any{
			"attributes": map[string]int{"POSITION": 0, "TEXCOORD_0": 2},
			"indices":    1,
			"material":   0,
		}}}},
		"accessors": []any{
			map[string]any{"bufferView": 0, "componentType": gltfComponentTypeFloat, "count": 3, "type": "VEC3"},
			map[string]any{"bufferView": 1, "componentType": gltfComponentTypeUnsignedShort, "count": 3, "type": "SCALAR"},
			map[string]any{"bufferView": 2, "componentType": gltfComponentTypeUnsignedByte, "normalized": true, "count": 3, "type": "VEC2"},
		},
		"bufferViews": []any{
			map[string]any{"buffer": 0, "byteOffset": 0, "byteLength": 36},
			map[string]any{"buffer": 0, "byteOffset": 36, "byteLength": 6},
			map[string]any{"buffer": 0, "byteOffset": 44, "byteLength": 6},
		},
		"buffers": []any{buffer},
		"materials": []any{map[string]any{
			"name":                 "red",
			"pbrMetallicRoughness": map[string]any{"baseColorFactor": []float32{1, 0, 0, 0.5}},
		}},
	}
}

func marshal(t *testing.T, doc map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func glb(t *testing.T, doc map[string]any, bin []byte) []byte {
	t.Helper()
	js := marshal(t, doc)
	for len(js)%4 != 0 {
		js = append(js, ' ')
	}
	for len(bin)%4 != 0 {
		bin = append(bin, 0)
	}

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, gltfGLBHeader{Magic: gltfGLBMagic, Version: gltfGLBVersion, Length: uint32(12 + 8 + len(js) + 8 + len(bin))})
	_ = binary.Write(&buf, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(js)), ChunkType: gltfGLBChunkJSON})
	buf.Write(js)
	_ = binary.Write(&buf, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(bin)), ChunkType: gltfGLBChunkBIN})
	buf.Write(bin)
	return buf.Bytes()
}

func assertVec3(t *testing.T, want, got common.Vec3) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-5)
	assert.InDelta(t, want.Y, got.Y, 1e-5)
	assert.InDelta(t, want.Z, got.Z, 1e-5)
}

func TestLoadReaderTriangle(t *testing.T) {
	doc := triangleDoc(triangleBin(), map[string]any{"translation": []float32{10, 0, 0}}, true)

	l := NewLoader(BackendTypeGLTF)
	m, err := l.LoadReader("tri", bytes.NewReader(marshal(t, doc)), false)
	require.NoError(t, err)

	assert.Equal(t, "tri", m.Name)
	require.Len(t, m.Meshes, 1)
	mesh := m.Meshes[0]
	assert.Equal(t, []uint32{0, 1, 2}, mesh.Indices)
	assertVec3(t, common.Vec3{X: 10}, mesh.Positions[0])
	assertVec3(t, common.Vec3{X: 11}, mesh.Positions[1])
	assertVec3(t, common.Vec3{X: 10, Y: 1}, mesh.Positions[2])

	// Normals are generated from the counter-clockwise winding.
	for _, n := range mesh.Normals {
		assertVec3(t, common.Vec3{Z: 1}, n)
	}
	assert.Equal(t, []renderer.UV{{U: 0, V: 0}, {U: 1, V: 0}, {U: 0, V: 1}}, mesh.UVs)

	// OPAQUE materials drop the base color alpha.
	assert.Equal(t, renderer.Color{1, 0, 0, 1}, mesh.Material.Diffuse)
	assert.False(t, mesh.Material.Transparent())
	assert.Nil(t, mesh.Texture)

	assertVec3(t, common.Vec3{X: 10}, m.BoundsMin)
	assertVec3(t, common.Vec3{X: 11, Y: 1}, m.BoundsMax)
	assertVec3(t, common.Vec3{X: 10.5, Y: 0.5}, m.Center())

	assert.Same(t, m, l.Get("tri"))
	assert.Len(t, l.Models(), 1)
}

func TestBlendMaterialKeepsAlpha(t *testing.T) {
	doc := triangleDoc(triangleBin(), map[string]any{}, true)
	doc["materials"].([]any)[0].(map[string]any)["alphaMode"] = "BLEND"

	m, err := NewLoader(BackendTypeGLTF).LoadReader("blend", bytes.NewReader(marshal(t, doc)), false)
	require.NoError(t, err)
	assert.True(t, m.Meshes[0].Material.Transparent())
}

func TestNodeTransforms(t *testing.T) {
	s := math32.Sin(math32.Pi / 4)
	tests := []struct {
		name string
		node map[string]any
		want common.Vec3 // where (1, 0, 0) lands
	}{
		{"identity", map[string]any{}, common.Vec3{X: 1}},
		{"scale", map[string]any{"scale": []float32{2, 2, 2}}, common.Vec3{X: 2}},
		{"rotate y 90", map[string]any{"rotation": []float32{0, s, 0, s}}, common.Vec3{Z: -1}},
		{"trs order", map[string]any{"translation": []float32{0, 5, 0}, "rotation": []float32{0, s, 0, s}, "scale": []float32{3, 3, 3}}, common.Vec3{Y: 5, Z: -3}},
		{"matrix", map[string]any{"matrix": []float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 7, 8, 9, 1}}, common.Vec3{X: 8, Y: 8, Z: 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := triangleDoc(triangleBin(), tt.node, true)
			m, err := NewLoader(BackendTypeGLTF).LoadReader(tt.name, bytes.NewReader(marshal(t, doc)), false)
			require.NoError(t, err)
			assertVec3(t, tt.want, m.Meshes[0].Positions[1])
			assert.InDelta(t, 1, m.Meshes[0].Normals[0].Length(), 1e-5)
		})
	}
}

func TestChildNodesInheritTransform(t *testing.T) {
	doc := triangleDoc(triangleBin(), map[string]any{"translation": []float32{0, 0, -5}}, true)
	doc["nodes"] = []any{
		map[string]any{"translation": []float32{1, 0, 0}, "children": []int{1}},
		doc["nodes"].([]any)[0],
	}

	m, err := NewLoader(BackendTypeGLTF).LoadReader("child", bytes.NewReader(marshal(t, doc)), false)
	require.NoError(t, err)
	require.Len(t, m.Meshes, 1)
	assertVec3(t, common.Vec3{X: 1, Z: -5}, m.Meshes[0].Positions[0])
}

func TestDocumentWithoutScenes(t *testing.T) {
	doc := triangleDoc(triangleBin(), map[string]any{"translation": []float32{9, 9, 9}}, true)
	delete(doc, "scene")
	delete(doc, "scenes")

	m, err := NewLoader(BackendTypeGLTF).LoadReader("bare", bytes.NewReader(marshal(t, doc)), false)
	require.NoError(t, err)
	require.Len(t, m.Meshes, 1)
	assertVec3(t, common.Vec3{}, m.Meshes[0].Positions[0])
}

func TestLoadGLBFileAndCache(t *testing.T) {
	bin := triangleBin()
	path := filepath.Join(t.TempDir(), "tri.glb")
	require.NoError(t, os.WriteFile(path, glb(t, triangleDoc(bin, map[string]any{}, false), bin), 0o644))

	l := NewLoader(BackendTypeGLTF, WithScale(2))
	m, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tri", m.Name)
	assertVec3(t, common.Vec3{X: 2}, m.Meshes[0].Positions[1])
	assertVec3(t, common.Vec3{X: 2, Y: 2}, m.BoundsMax)

	again, err := l.Load(path)
	require.NoError(t, err)
	assert.Same(t, m, again)

	l.Evict(path)
	assert.Nil(t, l.Get(path))
}

func TestExternalBuffer(t *testing.T) {
	dir := t.TempDir()
	bin := triangleBin()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tri.bin"), bin, 0o644))

	doc := triangleDoc(bin, map[string]any{}, false)
	doc["buffers"].([]any)[0].(map[string]any)["uri"] = "tri.bin"
	path := filepath.Join(dir, "tri.gltf")
	require.NoError(t, os.WriteFile(path, marshal(t, doc), 0o644))

	m, err := NewLoader(BackendTypeGLTF).Load(path)
	require.NoError(t, err)
	assert.Len(t, m.Meshes[0].Positions, 3)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func texturedDoc(t *testing.T) map[string]any {
	doc := triangleDoc(triangleBin(), map[string]any{}, true)
	// Two instances of the same mesh share one decoded texture.
	doc["nodes"] = []any{map[string]any{"mesh": 0}, map[string]any{"mesh": 0, "translation": []float32{0, 0, 1}}}
	doc["scenes"] = []any{map[string]any{"nodes": []int{0, 1}}}
	doc["images"] = []any{map[string]any{"uri": dataURI("image/png", pngBytes(t))}}
	doc["textures"] = []any{map[string]any{"source": 0}}
	doc["materials"] = []any{map[string]any{"pbrMetallicRoughness": map[string]any{"baseColorTexture": map[string]any{"index": 0}}}}
	return doc
}

func TestBaseColorTexture(t *testing.T) {
	m, err := NewLoader(BackendTypeGLTF).LoadReader("tex", bytes.NewReader(marshal(t, texturedDoc(t))), false)
	require.NoError(t, err)

	require.Len(t, m.Meshes, 2)
	require.Len(t, m.Textures, 1)
	tex := m.Textures[0]
	assert.Same(t, tex, m.Meshes[0].Texture)
	assert.Same(t, tex, m.Meshes[1].Texture)
	assert.Equal(t, 2, tex.Width)
	assert.Equal(t, common.ImageFormatRGBA, tex.Format)
	assert.Equal(t, renderer.ColorWhite, m.Meshes[0].Material.Diffuse)
}

func TestRendererUploadAndEvict(t *testing.T) {
	p := pipeline.NewPipeline()
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, p, renderer.WithSurfaceSize(8, 8), renderer.WithRasterWorkers(1))
	require.NoError(t, r.Initialize())
	t.Cleanup(r.Cleanup)

	l := NewLoader(BackendTypeGLTF, WithRenderer(r))
	m, err := l.LoadReader("tex", bytes.NewReader(marshal(t, texturedDoc(t))), false)
	require.NoError(t, err)
	assert.True(t, m.Textures[0].Resident())

	l.Evict("tex")
	assert.False(t, m.Textures[0].Resident())
	l.Evict("tex")
}

func TestWithModel(t *testing.T) {
	pre := &Model{Name: "pre"}
	l := NewLoader(BackendTypeGLTF, WithModel("pre.gltf", pre))

	m, err := l.Load("pre.gltf")
	require.NoError(t, err)
	assert.Same(t, pre, m)
}

func TestLoadErrors(t *testing.T) {
	mutate := func(f func(doc map[string]any)) []byte {
		doc := triangleDoc(triangleBin(), map[string]any{}, true)
		f(doc)
		return marshal(t, doc)
	}
	prim := func(doc map[string]any) map[string]any {
		return doc["meshes"].([]any)[0].(map[string]any)["primitives"].([]any)[0].(map[string]any)
	}

	tests := []struct {
		name  string
		data  []byte
		isGLB bool
	}{
		{"not json", []byte("{"), false},
		{"version 1", mutate(func(d map[string]any) { d["asset"] = map[string]any{"version": "1.0"} }), false},
		{"required extension", mutate(func(d map[string]any) { d["extensionsRequired"] = []string{"KHR_draco_mesh_compression"} }), false},
		{"no position", mutate(func(d map[string]any) { prim(d)["attributes"] = map[string]int{} }), false},
		{"line mode", mutate(func(d map[string]any) { prim(d)["mode"] = 1 }), false},
		{"bad material", mutate(func(d map[string]any) { prim(d)["material"] = 3 }), false},
		{"bad node", mutate(func(d map[string]any) { d["scenes"] = []any{map[string]any{"nodes": []int{4}}} }), false},
		{"bad scene", mutate(func(d map[string]any) { d["scene"] = 2 }), false},
		{"cyclic nodes", mutate(func(d map[string]any) { d["nodes"] = []any{map[string]any{"children": []int{0}}} }), false},
		{"short buffer", mutate(func(d map[string]any) { d["buffers"].([]any)[0].(map[string]any)["byteLength"] = 4096 }), false},
		{"accessor past view", mutate(func(d map[string]any) { d["accessors"].([]any)[0].(map[string]any)["count"] = 30 }), false},
		{"unnormalized uv", mutate(func(d map[string]any) { delete(d["accessors"].([]any)[2].(map[string]any), "normalized") }), false},
		{"negative count", mutate(func(d map[string]any) { d["accessors"].([]any)[0].(map[string]any)["count"] = -3 }), false},
		{"negative accessor offset", mutate(func(d map[string]any) { d["accessors"].([]any)[0].(map[string]any)["byteOffset"] = -12 }), false},
		{"negative view offset", mutate(func(d map[string]any) { d["bufferViews"].([]any)[0].(map[string]any)["byteOffset"] = -4 }), false},
		{"negative view length", mutate(func(d map[string]any) { d["bufferViews"].([]any)[1].(map[string]any)["byteLength"] = -6 }), false},
		{"view past buffer", mutate(func(d map[string]any) { d["bufferViews"].([]any)[2].(map[string]any)["byteOffset"] = 1 << 20 }), false},
		{"bad glb magic", []byte("nope\x02\x00\x00\x00\x0c\x00\x00\x00"), true},
		{"oversized glb chunk", oversizedChunkGLB(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(BackendTypeGLTF).LoadReader(tt.name, bytes.NewReader(tt.data), tt.isGLB)
			assert.Error(t, err)
		})
	}

	_, err := NewLoader(BackendTypeGLTF).Load("model.obj")
	assert.ErrorContains(t, err, "unsupported model format")

	_, err = NewLoader(BackendTypeGLTF).Load(filepath.Join(t.TempDir(), "missing.gltf"))
	assert.Error(t, err)
}

// oversizedChunkGLB is a 20-byte GLB whose only chunk claims 0xF0000000 bytes.
func oversizedChunkGLB() []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, gltfGLBHeader{Magic: gltfGLBMagic, Version: gltfGLBVersion, Length: 20})
	_ = binary.Write(&buf, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: 0xF0000000, ChunkType: gltfGLBChunkJSON})
	return buf.Bytes()
}

func TestParserRangeErrors(t *testing.T) {
	doc := triangleDoc(triangleBin(), map[string]any{}, true)
	doc["accessors"].([]any)[0].(map[string]any)["count"] = -3
	doc["bufferViews"].([]any)[1].(map[string]any)["byteOffset"] = -12

	p := newGLTFParser()
	require.NoError(t, p.ParseReader(bytes.NewReader(marshal(t, doc)), false, ""))

	_, err := p.ReadFloats(0, "VEC3")
	assert.ErrorIs(t, err, errOutOfBounds)
	_, err = p.ReadBufferView(1)
	assert.ErrorIs(t, err, errOutOfBounds)

	g := newGLTFParser()
	assert.ErrorIs(t, g.ParseReader(bytes.NewReader(oversizedChunkGLB()), true, ""), errOutOfBounds)
}

func TestGenerateNormalsDegenerate(t *testing.T) {
	normals := generateNormals([]common.Vec3{{}, {}, {}, {X: 1}}, []uint32{0, 1, 2})
	for _, n := range normals {
		assert.Equal(t, common.Vec3{Y: 1}, n)
	}
}
