package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridSegments(t *testing.T) {
	segs := gridSegments(10, 2)
	require.Len(t, segs, 12)

	// First pair runs along X at z = -5, second along Z at x = -5.
	assert.Equal(t, common.Vec3{X: -5, Z: -5}, segs[0])
	assert.Equal(t, common.Vec3{X: 5, Z: -5}, segs[1])
	assert.Equal(t, common.Vec3{X: -5, Z: -5}, segs[2])
	assert.Equal(t, common.Vec3{X: -5, Z: 5}, segs[3])

	// Last line sits on the far edge.
	assert.Equal(t, common.Vec3{X: 5, Z: 5}, segs[11])

	for _, v := range segs {
		assert.Zero(t, v.Y)
	}

	assert.Nil(t, gridSegments(10, 0))
}

func TestStripSegments(t *testing.T) {
	pts := []common.Vec3{{X: 0}, {X: 1}, {X: 2}}
	assert.Equal(t, []common.Vec3{{X: 0}, {X: 1}, {X: 1}, {X: 2}}, stripSegments(pts))
	assert.Nil(t, stripSegments(pts[:1]))
}

func TestWireframeSegments(t *testing.T) {
	m := &Mesh{
		Positions: []common.Vec3{{X: 0}, {X: 1}, {Y: 1}},
		Indices:   []uint32{0, 1, 2},
	}
	segs := wireframeSegments([]*Mesh{m})
	require.Len(t, segs, 6)
	assert.Equal(t, []common.Vec3{{X: 0}, {X: 1}, {X: 0}, {Y: 1}, {X: 1}, {Y: 1}}, segs)
}

func TestUnitQuadsAdvanceLeft(t *testing.T) {
	quads := []UnitQuad{
		{U0: 0, V0: 0, U1: 0.5, V1: 1, Width: 8, Height: 16},
		{U0: 0.5, V0: 0, U1: 1, V1: 1, Width: 4, Height: 16},
	}
	pos, uvs := unitQuadCorners(quads)
	require.Len(t, pos, 8)
	require.Len(t, uvs, 8)

	assert.Equal(t, common.Vec3{X: 0, Y: 16}, pos[0])
	assert.Equal(t, common.Vec3{X: 8}, pos[2])
	assert.Equal(t, common.Vec3{X: 8, Y: 16}, pos[4], "second quad starts where the first ended")
	assert.Equal(t, common.Vec3{X: 12, Y: 16}, pos[7])

	assert.Equal(t, UV{0, 0}, uvs[0])
	assert.Equal(t, UV{0, 1}, uvs[1])
	assert.Equal(t, UV{0.5, 1}, uvs[2])
	assert.Equal(t, UV{0.5, 0}, uvs[3])

	m := unitQuadMesh(quads, nil, ColorWhite)
	require.NoError(t, m.Validate())
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3, 4, 5, 6, 4, 6, 7}, m.Indices)
}

func TestMeshValidate(t *testing.T) {
	tri := func() *Mesh {
		return &Mesh{
			Positions: []common.Vec3{{}, {X: 1}, {Y: 1}},
			Indices:   []uint32{0, 1, 2},
		}
	}

	assert.NoError(t, tri().Validate())

	m := tri()
	m.Indices = []uint32{0, 1, 3}
	assert.Error(t, m.Validate())

	m = tri()
	m.Indices = []uint32{0, 1}
	assert.Error(t, m.Validate())

	m = tri()
	m.Normals = []common.Vec3{{}}
	assert.Error(t, m.Validate())

	var nilMesh *Mesh
	assert.Error(t, nilMesh.Validate())
}

func TestMaterialTransparent(t *testing.T) {
	assert.False(t, Material{ColorWhite, ColorWhite, ColorWhite}.Transparent())
	assert.True(t, Material{ColorWhite, Color{1, 1, 1, 0.5}, ColorWhite}.Transparent())
}
