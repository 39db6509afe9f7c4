package common

import (
	"unsafe"

	"github.com/chewxy/math32"
)

// Matrix4 is a 4x4 transform stored in row-major order: element (row, col) lives at index row*4+col.
// Vectors are treated as columns, so a translation lives in the last column (indices 3, 7 and 11).
// Backends that expect column-major storage (OpenGL, WGSL uniforms) must go through ColumnMajor.
type Matrix4 [16]float32

// Vec3 is a three component float32 vector.
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 is a four component float32 vector, used for homogeneous coordinates and RGBA colors.
type Vec4 struct {
	X, Y, Z, W float32
}

// Identity returns the 4x4 identity matrix.
//
// Returns:
//   - Matrix4: the identity matrix
func Identity() Matrix4 {
	return Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// At returns the element at the given row and column.
func (m Matrix4) At(row, col int) float32 {
	return m[row*4+col]
}

// Mul returns the product m * b.
// Applied to a column vector, b acts first and m second.
//
// Parameters:
//   - b: right-hand matrix
//
// Returns:
//   - Matrix4: the product m * b
func (m Matrix4) Mul(b Matrix4) Matrix4 {
	var out Matrix4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[r*4+k] * b[k*4+c]
			}
			out[r*4+c] = sum
		}
	}
	return out
}

// Transpose returns the transpose of m.
func (m Matrix4) Transpose() Matrix4 {
	var out Matrix4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[c*4+r] = m[r*4+c]
		}
	}
	return out
}

// ColumnMajor returns the 16 elements of m in column-major order, as expected by glLoadMatrixf,
// glMultMatrixf and WGSL mat4x4<f32> uniforms.
//
// Returns:
//   - [16]float32: column-major copy of m
func (m Matrix4) ColumnMajor() [16]float32 {
	return [16]float32(m.Transpose())
}

// FromColumnMajor builds a row-major Matrix4 from column-major storage.
//
// Parameters:
//   - cm: 16 elements in column-major order
//
// Returns:
//   - Matrix4: the equivalent row-major matrix
func FromColumnMajor(cm [16]float32) Matrix4 {
	return Matrix4(cm).Transpose()
}

// Invert computes the inverse of m using the Laplace expansion (cofactor) method.
// The expansion is layout agnostic: inverting the transposed storage yields the transposed inverse.
// If m is singular the identity is returned together with false.
//
// Returns:
//   - Matrix4: the inverse of m, or the identity when singular
//   - bool: true if m was invertible
func (m Matrix4) Invert() (Matrix4, bool) {
	s0 := m[0]*m[5] - m[4]*m[1]
	s1 := m[0]*m[6] - m[4]*m[2]
	s2 := m[0]*m[7] - m[4]*m[3]
	s3 := m[1]*m[6] - m[5]*m[2]
	s4 := m[1]*m[7] - m[5]*m[3]
	s5 := m[2]*m[7] - m[6]*m[3]

	c5 := m[10]*m[15] - m[14]*m[11]
	c4 := m[9]*m[15] - m[13]*m[11]
	c3 := m[9]*m[14] - m[13]*m[10]
	c2 := m[8]*m[15] - m[12]*m[11]
	c1 := m[8]*m[14] - m[12]*m[10]
	c0 := m[8]*m[13] - m[12]*m[9]

	det := s0*c5 - s1*c4 + s2*c3 + s3*c2 - s4*c1 + s5*c0
	if det == 0 {
		return Identity(), false
	}
	inv := 1 / det

	return Matrix4{
		(m[5]*c5 - m[6]*c4 + m[7]*c3) * inv,
		(-m[1]*c5 + m[2]*c4 - m[3]*c3) * inv,
		(m[13]*s5 - m[14]*s4 + m[15]*s3) * inv,
		(-m[9]*s5 + m[10]*s4 - m[11]*s3) * inv,

		(-m[4]*c5 + m[6]*c2 - m[7]*c1) * inv,
		(m[0]*c5 - m[2]*c2 + m[3]*c1) * inv,
		(-m[12]*s5 + m[14]*s2 - m[15]*s1) * inv,
		(m[8]*s5 - m[10]*s2 + m[11]*s1) * inv,

		(m[4]*c4 - m[5]*c2 + m[7]*c0) * inv,
		(-m[0]*c4 + m[1]*c2 - m[3]*c0) * inv,
		(m[12]*s4 - m[13]*s2 + m[15]*s0) * inv,
		(-m[8]*s4 + m[9]*s2 - m[11]*s0) * inv,

		(-m[4]*c3 + m[5]*c1 - m[6]*c0) * inv,
		(m[0]*c3 - m[1]*c1 + m[2]*c0) * inv,
		(-m[12]*s3 + m[13]*s1 - m[14]*s0) * inv,
		(m[8]*s3 - m[9]*s1 + m[10]*s0) * inv,
	}, true
}

// ApproxEqual reports whether every element of m is within eps of the matching element of b.
func (m Matrix4) ApproxEqual(b Matrix4, eps float32) bool {
	for i := range m {
		if math32.Abs(m[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

// TransformPoint multiplies m by the homogeneous point (v, 1).
//
// Parameters:
//   - v: the point to transform
//
// Returns:
//   - Vec4: the transformed point, w not divided out
func (m Matrix4) TransformPoint(v Vec3) Vec4 {
	return Vec4{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z + m[3],
		Y: m[4]*v.X + m[5]*v.Y + m[6]*v.Z + m[7],
		Z: m[8]*v.X + m[9]*v.Y + m[10]*v.Z + m[11],
		W: m[12]*v.X + m[13]*v.Y + m[14]*v.Z + m[15],
	}
}

// TransformVector multiplies the upper 3x3 block of m by v, ignoring translation.
func (m Matrix4) TransformVector(v Vec3) Vec3 {
	return Vec3{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		Y: m[4]*v.X + m[5]*v.Y + m[6]*v.Z,
		Z: m[8]*v.X + m[9]*v.Y + m[10]*v.Z,
	}
}

// Translation returns a matrix translating by (x, y, z).
//
// Parameters:
//   - x, y, z: translation along each axis
//
// Returns:
//   - Matrix4: the translation matrix
func Translation(x, y, z float32) Matrix4 {
	return Matrix4{
		1, 0, 0, x,
		0, 1, 0, y,
		0, 0, 1, z,
		0, 0, 0, 1,
	}
}

// RotationX returns a right-handed rotation about the X axis.
//
// Parameters:
//   - rad: rotation angle in radians
//
// Returns:
//   - Matrix4: the rotation matrix
func RotationX(rad float32) Matrix4 {
	s, c := math32.Sincos(rad)
	return Matrix4{
		1, 0, 0, 0,
		0, c, -s, 0,
		0, s, c, 0,
		0, 0, 0, 1,
	}
}

// RotationY returns a right-handed rotation about the Y axis.
//
// Parameters:
//   - rad: rotation angle in radians
//
// Returns:
//   - Matrix4: the rotation matrix
func RotationY(rad float32) Matrix4 {
	s, c := math32.Sincos(rad)
	return Matrix4{
		c, 0, s, 0,
		0, 1, 0, 0,
		-s, 0, c, 0,
		0, 0, 0, 1,
	}
}

// RotationZ returns a right-handed rotation about the Z axis.
//
// Parameters:
//   - rad: rotation angle in radians
//
// Returns:
//   - Matrix4: the rotation matrix
func RotationZ(rad float32) Matrix4 {
	s, c := math32.Sincos(rad)
	return Matrix4{
		c, -s, 0, 0,
		s, c, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Scaling returns a non-uniform scale matrix.
func Scaling(x, y, z float32) Matrix4 {
	return Matrix4{
		x, 0, 0, 0,
		0, y, 0, 0,
		0, 0, z, 0,
		0, 0, 0, 1,
	}
}

// FrustumMatrix builds a perspective projection with the same layout as glFrustum.
// near and far are positive distances; the result maps view space into clip space with z in [-1, 1].
//
// Parameters:
//   - left, right, bottom, top: extents of the near plane
//   - near, far: distances to the near and far planes
//
// Returns:
//   - Matrix4: the projection matrix
func FrustumMatrix(left, right, bottom, top, near, far float32) Matrix4 {
	rl := right - left
	tb := top - bottom
	fn := far - near
	return Matrix4{
		2 * near / rl, 0, (right + left) / rl, 0,
		0, 2 * near / tb, (top + bottom) / tb, 0,
		0, 0, -(far + near) / fn, -2 * far * near / fn,
		0, 0, -1, 0,
	}
}

// OrthoMatrix builds an orthographic projection with the same layout as glOrtho.
//
// Parameters:
//   - left, right, bottom, top: extents of the view volume
//   - near, far: distances to the near and far planes
//
// Returns:
//   - Matrix4: the projection matrix
func OrthoMatrix(left, right, bottom, top, near, far float32) Matrix4 {
	rl := right - left
	tb := top - bottom
	fn := far - near
	return Matrix4{
		2 / rl, 0, 0, -(right + left) / rl,
		0, 2 / tb, 0, -(top + bottom) / tb,
		0, 0, -2 / fn, -(far + near) / fn,
		0, 0, 0, 1,
	}
}

// ClipDepthZeroToOne remaps OpenGL clip depth [-1, 1] to the [0, 1] range WebGPU expects.
// Multiply it on the left of a GL-style projection.
func ClipDepthZeroToOne() Matrix4 {
	return Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 0.5, 0.5,
		0, 0, 0, 1,
	}
}

// PerspectiveFov returns the near-plane frustum extents for a symmetric perspective projection.
// The result feeds straight into a pipeline's SetPerspective.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near, far: clip plane distances
//
// Returns:
//   - left, right, bottom, top, near, far: the six frustum scalars
func PerspectiveFov(fovY, aspect, near, far float32) (left, right, bottom, top, zNear, zFar float32) {
	fh := math32.Tan(fovY/2) * near
	fw := fh * aspect
	return -fw, fw, -fh, fh, near, far
}

// LookAt creates a view matrix that positions and orients the camera.
// The resulting matrix transforms world coordinates to view space.
//
// Parameters:
//   - eye: camera position in world space
//   - center: target point the camera looks at
//   - up: up vector defining camera orientation (typically 0,1,0)
//
// Returns:
//   - Matrix4: the view matrix
func LookAt(eye, center, up Vec3) Matrix4 {
	z := eye.Sub(center).Normalize()
	x := up.Cross(z).Normalize()
	y := z.Cross(x)

	return Matrix4{
		x.X, x.Y, x.Z, -x.Dot(eye),
		y.X, y.Y, y.Z, -y.Dot(eye),
		z.X, z.Y, z.Z, -z.Dot(eye),
		0, 0, 0, 1,
	}
}

func (v Vec3) Add(b Vec3) Vec3 {
	return Vec3{v.X + b.X, v.Y + b.Y, v.Z + b.Z}
}

func (v Vec3) Sub(b Vec3) Vec3 {
	return Vec3{v.X - b.X, v.Y - b.Y, v.Z - b.Z}
}

func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(b Vec3) float32 {
	return v.X*b.X + v.Y*b.Y + v.Z*b.Z
}

func (v Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		v.Y*b.Z - v.Z*b.Y,
		v.Z*b.X - v.X*b.Z,
		v.X*b.Y - v.Y*b.X,
	}
}

func (v Vec3) Length() float32 {
	return math32.Sqrt(v.Dot(v))
}

// Normalize returns v scaled to unit length. A zero vector is returned unchanged.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(size)*len(data))
}

// StructToBytes reinterprets a pointer to a struct as a raw byte slice.
func StructToBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(unsafe.Sizeof(*v)))
}
