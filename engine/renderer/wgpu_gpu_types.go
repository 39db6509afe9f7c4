package renderer

import (
	_ "embed"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/chewxy/math32"
)

// fixedFunctionSource is the single WGSL program the WGPU backend draws everything with.
// Its Uniforms and VertexInput structs match gpuDrawUniforms and gpuVertex exactly.
//
//go:embed assets/fixed_function.wgsl
var fixedFunctionSource string

// gpuVertex is the interleaved vertex layout shared by every WGPU draw.
// Size: 48 bytes, no padding.
type gpuVertex struct {
	Position [3]float32 // offset  0
	Normal   [3]float32 // offset 12
	TexCoord [2]float32 // offset 24
	Color    [4]float32 // offset 32
}

// Size returns the size of the gpuVertex struct in bytes.
func (v *gpuVertex) Size() int {
	return int(unsafe.Sizeof(*v))
}

// gpuLight mirrors the WGSL Light struct. Size: 96 bytes.
type gpuLight struct {
	Position    [4]float32 // eye space; w = 0 for directional
	Direction   [4]float32 // eye space spot direction
	Ambient     [4]float32
	Diffuse     [4]float32
	Attenuation [4]float32 // constant, linear, quadratic, enabled
	Cone        [4]float32 // cos(inner), cos(outer), spot flag, unused
}

// gpuDrawUniforms mirrors the WGSL Uniforms struct bound at group 0. Matrices are column-major.
// Size: 1024 bytes.
type gpuDrawUniforms struct {
	MVP           [16]float32
	ModelView     [16]float32
	NormalMatrix  [16]float32
	Ambient       [4]float32
	Diffuse       [4]float32
	GlobalAmbient [4]float32
	Params        [4]float32 // x lit
	Lights        [MaxLights]gpuLight
}

// Size returns the size of the gpuDrawUniforms struct in bytes.
func (u *gpuDrawUniforms) Size() int {
	return int(unsafe.Sizeof(*u))
}

// newGPULights packs the enabled slots of the draw state for upload.
func newGPULights(lights *[MaxLights]lightSlot) [MaxLights]gpuLight {
	var out [MaxLights]gpuLight
	for i := range lights {
		slot := &lights[i]
		if !slot.enabled {
			continue
		}
		l := slot.light
		g := &out[i]
		g.Position = [4]float32{slot.eyePos.X, slot.eyePos.Y, slot.eyePos.Z, slot.eyePos.W}
		g.Direction = [4]float32{slot.eyeDir.X, slot.eyeDir.Y, slot.eyeDir.Z, 0}
		g.Ambient = l.Ambient
		g.Diffuse = l.Diffuse
		g.Attenuation = [4]float32{l.AttenuationConstant, l.AttenuationLinear, l.AttenuationQuadratic, 1}
		if l.Type == LightTypeSpot && l.OuterCone < 180 {
			g.Cone = [4]float32{
				math32.Cos(math32.Min(l.InnerCone, l.OuterCone) * math32.Pi / 180),
				math32.Cos(l.OuterCone * math32.Pi / 180),
				1,
				0,
			}
		}
	}
	return out
}

// newDrawUniforms builds the group 0 uniforms for one draw. projection already maps depth to [0, 1].
func newDrawUniforms(projection, modelView common.Matrix4, mat Material, lit bool, lights *[MaxLights]lightSlot) gpuDrawUniforms {
	inv, _ := modelView.Invert()
	u := gpuDrawUniforms{
		MVP:           projection.Mul(modelView).ColumnMajor(),
		ModelView:     modelView.ColumnMajor(),
		NormalMatrix:  inv.Transpose().ColumnMajor(),
		Ambient:       mat.Ambient,
		Diffuse:       mat.Diffuse,
		GlobalAmbient: globalAmbient,
	}
	if lit {
		u.Params[0] = 1
		u.Lights = newGPULights(lights)
	}
	return u
}

// flatVertices builds unlit vertices that all carry color c.
func flatVertices(points []common.Vec3, c Color) []gpuVertex {
	out := make([]gpuVertex, len(points))
	for i, p := range points {
		out[i] = gpuVertex{Position: [3]float32{p.X, p.Y, p.Z}, Color: c}
	}
	return out
}

// meshVertices interleaves a mesh's parallel arrays. Missing normals default to +Y and missing UVs to the origin.
func meshVertices(m *Mesh, c Color) []gpuVertex {
	out := make([]gpuVertex, len(m.Positions))
	for i, p := range m.Positions {
		n := m.Normal(uint32(i))
		uv := m.UV(uint32(i))
		out[i] = gpuVertex{
			Position: [3]float32{p.X, p.Y, p.Z},
			Normal:   [3]float32{n.X, n.Y, n.Z},
			TexCoord: [2]float32{uv.U, uv.V},
			Color:    c,
		}
	}
	return out
}

// mipLevel is one level of a texture's mip chain as tightly packed RGBA8.
type mipLevel struct {
	width, height int
	pix           []byte
}

// buildMipChain box-filters rgba down to 1x1. The first level is rgba itself.
func buildMipChain(rgba []byte, width, height int) []mipLevel {
	levels := []mipLevel{{width: width, height: height, pix: rgba}}
	for width > 1 || height > 1 {
		prev := levels[len(levels)-1]
		width, height = max(1, width/2), max(1, height/2)
		pix := make([]byte, width*height*4)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				x0, y0 := min(2*x, prev.width-1), min(2*y, prev.height-1)
				x1, y1 := min(2*x+1, prev.width-1), min(2*y+1, prev.height-1)
				for c := 0; c < 4; c++ {
					sum := int(prev.pix[(y0*prev.width+x0)*4+c]) +
						int(prev.pix[(y0*prev.width+x1)*4+c]) +
						int(prev.pix[(y1*prev.width+x0)*4+c]) +
						int(prev.pix[(y1*prev.width+x1)*4+c])
					pix[(y*width+x)*4+c] = uint8((sum + 2) / 4)
				}
			}
		}
		levels = append(levels, mipLevel{width: width, height: height, pix: pix})
	}
	return levels
}
