package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-fixed/common"
)

// MaxLights is the number of fixed-function light slots a backend exposes.
const MaxLights = 8

// Color is an RGBA color with components in [0, 1].
type Color [4]float32

var (
	ColorBlack = Color{0, 0, 0, 1}
	ColorWhite = Color{1, 1, 1, 1}
	ColorRed   = Color{1, 0, 0, 1}
	// ColorClearDefault is the grey the renderer clears to unless WithClearColor is given.
	ColorClearDefault = Color{0.3, 0.3, 0.3, 1}
)

// Opaque reports whether the alpha component is at least 1.
func (c Color) Opaque() bool {
	return c[3] >= 1
}

// Mul returns the component-wise product of c and o.
func (c Color) Mul(o Color) Color {
	return Color{c[0] * o[0], c[1] * o[1], c[2] * o[2], c[3] * o[3]}
}

// UV is a texture coordinate.
type UV struct {
	U, V float32
}

// UnitQuad describes one glyph cell for DrawUnitQuads: a texture sub-rectangle and the size of the quad it maps onto.
// Quads are laid out left to right, each starting where the previous one ended.
type UnitQuad struct {
	U0, V0, U1, V1 float32
	Width, Height  float32
}

// Material holds the per-mesh colors used with color-material lighting.
type Material struct {
	Ambient  Color
	Diffuse  Color
	Specular Color
}

// Transparent reports whether any of the material colors has alpha below 1.
// Transparent meshes are drawn with source-alpha blending.
func (m Material) Transparent() bool {
	return !m.Ambient.Opaque() || !m.Diffuse.Opaque() || !m.Specular.Opaque()
}

// Mesh is indexed triangle data with one material and an optional texture.
// Positions, Normals and UVs are parallel arrays; Normals and UVs may be empty.
type Mesh struct {
	Positions []common.Vec3
	Normals   []common.Vec3
	UVs       []UV
	Indices   []uint32

	Material Material
	// Texture is bound while drawing the mesh when it has been uploaded.
	Texture *Texture
}

// Validate checks that the parallel arrays agree in length and every index is in range.
//
// Returns:
//   - error: nil if the mesh can be drawn
func (m *Mesh) Validate() error {
	if m == nil {
		return fmt.Errorf("mesh is nil")
	}
	n := len(m.Positions)
	if len(m.Normals) != 0 && len(m.Normals) != n {
		return fmt.Errorf("mesh has %d normals for %d positions", len(m.Normals), n)
	}
	if len(m.UVs) != 0 && len(m.UVs) != n {
		return fmt.Errorf("mesh has %d uvs for %d positions", len(m.UVs), n)
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("mesh index count %d is not a multiple of 3", len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= n {
			return fmt.Errorf("mesh index %d at position %d out of range (%d vertices)", idx, i, n)
		}
	}
	return nil
}

// Normal returns the normal of vertex i, or +Y when the mesh carries no normals.
func (m *Mesh) Normal(i uint32) common.Vec3 {
	if len(m.Normals) == 0 {
		return common.Vec3{Y: 1}
	}
	return m.Normals[i]
}

// UV returns the texture coordinate of vertex i, or the origin when the mesh carries no UVs.
func (m *Mesh) UV(i uint32) UV {
	if len(m.UVs) == 0 {
		return UV{}
	}
	return m.UVs[i]
}

// Texture is CPU-side image data plus the handle a backend assigned when it was uploaded.
// A zero ID means the texture is not resident on any backend.
type Texture struct {
	Width  int
	Height int
	Format common.ImageFormat
	Pixels []byte

	id uint32
}

// NewTextureFromFile decodes an image file into an RGBA Texture.
//
// Parameters:
//   - path: path to a PNG, JPEG, BMP or WebP file
//
// Returns:
//   - *Texture: the decoded texture, not yet uploaded
//   - error: error if the file cannot be read or decoded
func NewTextureFromFile(path string) (*Texture, error) {
	pix, w, h, err := common.DecodeImageFile(path)
	if err != nil {
		return nil, err
	}
	return &Texture{Width: w, Height: h, Format: common.ImageFormatRGBA, Pixels: pix}, nil
}

// ID returns the backend handle, or 0 when the texture has not been uploaded.
func (t *Texture) ID() uint32 {
	if t == nil {
		return 0
	}
	return t.id
}

// Resident reports whether the texture has a backend handle.
func (t *Texture) Resident() bool {
	return t.ID() != 0
}

// validate checks the pixel buffer against the declared size and format.
func (t *Texture) validate() error {
	if t == nil {
		return fmt.Errorf("texture is nil")
	}
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("texture has invalid size %dx%d", t.Width, t.Height)
	}
	c := t.Format.Components()
	if c == 0 {
		return fmt.Errorf("texture has unknown format %s", t.Format)
	}
	if need := t.Width * t.Height * c; len(t.Pixels) < need {
		return fmt.Errorf("texture %dx%d %s needs %d bytes, has %d", t.Width, t.Height, t.Format, need, len(t.Pixels))
	}
	return nil
}

// LightType selects how a Light's position and direction are interpreted.
type LightType int

const (
	LightTypePoint LightType = iota
	LightTypeSpot
	LightTypeDirectional
)

// Light describes one fixed-function light slot.
// Position and Direction are given in the space of the modelview matrix current when the light is set,
// matching how fixed-function OpenGL captures light positions.
type Light struct {
	Position  common.Vec3
	Direction common.Vec3
	Up        common.Vec3

	// InnerCone and OuterCone are spot cone angles in degrees.
	InnerCone float32
	OuterCone float32

	AttenuationConstant  float32
	AttenuationLinear    float32
	AttenuationQuadratic float32

	Diffuse  Color
	Specular Color
	Ambient  Color

	Type LightType
}

// DefaultLight returns a white point light at the origin with no attenuation.
func DefaultLight() Light {
	return Light{
		Direction:           common.Vec3{Z: -1},
		Up:                  common.Vec3{Y: 1},
		InnerCone:           180,
		OuterCone:           180,
		AttenuationConstant: 1,
		Diffuse:             ColorWhite,
		Specular:            ColorWhite,
		Ambient:             Color{0, 0, 0, 1},
		Type:                LightTypePoint,
	}
}
