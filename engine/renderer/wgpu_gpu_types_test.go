package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPUTypeSizes(t *testing.T) {
	assert.Equal(t, 48, (&gpuVertex{}).Size())
	assert.Equal(t, 96, len(common.StructToBytes(&gpuLight{})))
	assert.Equal(t, 1024, (&gpuDrawUniforms{}).Size())
	assert.Len(t, common.SliceToBytes([]gpuVertex{{}, {}}), 96)
}

func TestFixedFunctionSourceEmbedded(t *testing.T) {
	assert.Contains(t, fixedFunctionSource, "fn vs_main")
	assert.Contains(t, fixedFunctionSource, "fn fs_main")
}

func TestBuildMipChain(t *testing.T) {
	pix := []byte{
		0, 0, 0, 255, 100, 0, 0, 255, 200, 0, 0, 255, 255, 0, 0, 255,
		0, 0, 0, 255, 100, 0, 0, 255, 200, 0, 0, 255, 255, 0, 0, 255,
	}
	levels := buildMipChain(pix, 4, 2)
	require.Len(t, levels, 3)

	assert.Equal(t, 4, levels[0].width)
	assert.Equal(t, 2, levels[1].width)
	assert.Equal(t, 1, levels[1].height)
	assert.Equal(t, []byte{50, 0, 0, 255, 228, 0, 0, 255}, levels[1].pix)

	assert.Equal(t, 1, levels[2].width)
	assert.Equal(t, 1, levels[2].height)
	assert.Equal(t, byte(139), levels[2].pix[0])
}

func TestBuildMipChainSinglePixel(t *testing.T) {
	levels := buildMipChain([]byte{1, 2, 3, 4}, 1, 1)
	require.Len(t, levels, 1)
	assert.Equal(t, []byte{1, 2, 3, 4}, levels[0].pix)
}

func TestNewGPULights(t *testing.T) {
	var slots [MaxLights]lightSlot
	spot := DefaultLight()
	spot.Type = LightTypeSpot
	spot.InnerCone = 10
	spot.OuterCone = 20
	slots[0] = lightSlot{enabled: true, light: spot, eyePos: common.Vec4{X: 1, Y: 2, Z: 3, W: 1}, eyeDir: common.Vec3{Z: -1}, captured: true}
	slots[1] = lightSlot{enabled: false, light: DefaultLight(), captured: true}

	out := newGPULights(&slots)
	assert.Equal(t, [4]float32{1, 2, 3, 1}, out[0].Position)
	assert.Equal(t, [4]float32{0, 0, -1, 0}, out[0].Direction)
	assert.Equal(t, float32(1), out[0].Attenuation[3])
	assert.Equal(t, float32(1), out[0].Cone[2])
	assert.Greater(t, out[0].Cone[0], out[0].Cone[1])

	assert.Equal(t, gpuLight{}, out[1], "disabled slots are zeroed")
}

func TestNewDrawUniforms(t *testing.T) {
	mv := common.Translation(1, 2, 3)
	mat := Material{Ambient: ColorWhite, Diffuse: Color{1, 0, 0, 0.5}, Specular: ColorWhite}

	u := newDrawUniforms(common.Identity(), mv, mat, false, nil)
	assert.Equal(t, mv.ColumnMajor(), u.MVP)
	assert.Equal(t, mv.ColumnMajor(), u.ModelView)
	assert.Equal(t, [4]float32(mat.Diffuse), u.Diffuse)
	assert.Equal(t, float32(0), u.Params[0])
	assert.Equal(t, gpuLight{}, u.Lights[0])

	var slots [MaxLights]lightSlot
	slots[0] = lightSlot{enabled: true, light: DefaultLight(), eyePos: common.Vec4{Z: 1}, captured: true}
	u = newDrawUniforms(common.Identity(), mv, mat, true, &slots)
	assert.Equal(t, float32(1), u.Params[0])
	assert.Equal(t, float32(1), u.Lights[0].Attenuation[3])
}

func TestMeshVerticesDefaults(t *testing.T) {
	m := &Mesh{Positions: []common.Vec3{{X: 1}, {Y: 1}}}
	out := meshVertices(m, ColorWhite)
	require.Len(t, out, 2)
	assert.Equal(t, [3]float32{0, 1, 0}, out[0].Normal)
	assert.Equal(t, [2]float32{0, 0}, out[1].TexCoord)
	assert.Equal(t, [4]float32(ColorWhite), out[1].Color)
}

func TestWGPUEvictDefersWhileDrawsRecorded(t *testing.T) {
	b := newWGPURendererBackend(nil, false, 0)
	b.textures[1] = &wgpuTexture{}
	b.textures[2] = &wgpuTexture{}

	b.EvictTexture(1)
	assert.NotContains(t, b.textures, uint32(1))
	assert.Empty(t, b.retired)

	b.draws = append(b.draws, wgpuDraw{vertexCount: 3})
	b.EvictTexture(2)
	assert.NotContains(t, b.textures, uint32(2))
	require.Len(t, b.retired, 1)

	b.resetFrame()
	assert.Empty(t, b.retired)
	assert.Empty(t, b.draws)
}
