package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

const eps = 1e-5

func assertVec4(t *testing.T, want, got Vec4) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, eps, "x")
	assert.InDelta(t, want.Y, got.Y, eps, "y")
	assert.InDelta(t, want.Z, got.Z, eps, "z")
	assert.InDelta(t, want.W, got.W, eps, "w")
}

func TestMatrix4Mul(t *testing.T) {
	a := Translation(1, 2, 3)
	assert.Equal(t, a, Identity().Mul(a))
	assert.Equal(t, a, a.Mul(Identity()))

	// Mul applies the right operand first.
	m := Translation(10, 0, 0).Mul(Scaling(2, 2, 2))
	assertVec4(t, Vec4{12, 0, 0, 1}, m.TransformPoint(Vec3{1, 0, 0}))

	m = Scaling(2, 2, 2).Mul(Translation(10, 0, 0))
	assertVec4(t, Vec4{22, 0, 0, 1}, m.TransformPoint(Vec3{1, 0, 0}))
}

func TestRotationsAreRightHanded(t *testing.T) {
	half := math32.Pi / 2
	tests := []struct {
		name string
		m    Matrix4
		in   Vec3
		want Vec4
	}{
		{"x turns y into z", RotationX(half), Vec3{0, 1, 0}, Vec4{0, 0, 1, 1}},
		{"y turns z into x", RotationY(half), Vec3{0, 0, 1}, Vec4{1, 0, 0, 1}},
		{"z turns x into y", RotationZ(half), Vec3{1, 0, 0}, Vec4{0, 1, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertVec4(t, tt.want, tt.m.TransformPoint(tt.in))
		})
	}
}

func TestColumnMajor(t *testing.T) {
	cm := Translation(1, 2, 3).ColumnMajor()
	assert.Equal(t, float32(1), cm[12])
	assert.Equal(t, float32(2), cm[13])
	assert.Equal(t, float32(3), cm[14])

	m := RotationY(0.3).Mul(Translation(4, 5, 6))
	assert.Equal(t, m, FromColumnMajor(m.ColumnMajor()))
	assert.Equal(t, m.At(1, 3), m[7])
}

func TestInvert(t *testing.T) {
	m := Translation(1, -2, 3).Mul(RotationX(0.7)).Mul(Scaling(2, 3, 4))
	inv, ok := m.Invert()
	assert.True(t, ok)
	assert.True(t, m.Mul(inv).ApproxEqual(Identity(), eps), "%v", m.Mul(inv))

	inv, ok = Scaling(0, 1, 1).Invert()
	assert.False(t, ok)
	assert.Equal(t, Identity(), inv)
}

func TestFrustumMatrixDepthRange(t *testing.T) {
	p := FrustumMatrix(-1, 1, -1, 1, 1, 100)

	near := p.TransformPoint(Vec3{0, 0, -1})
	assert.InDelta(t, -1, near.Z/near.W, eps)

	far := p.TransformPoint(Vec3{0, 0, -100})
	assert.InDelta(t, 1, far.Z/far.W, eps)

	corner := p.TransformPoint(Vec3{1, 1, -1})
	assert.InDelta(t, 1, corner.X/corner.W, eps)
	assert.InDelta(t, 1, corner.Y/corner.W, eps)

	zo := ClipDepthZeroToOne().Mul(p).TransformPoint(Vec3{0, 0, -1})
	assert.InDelta(t, 0, zo.Z/zo.W, eps)
}

func TestOrthoMatrix(t *testing.T) {
	p := OrthoMatrix(0, 800, 0, 600, 1, 10)
	assertVec4(t, Vec4{-1, -1, -1, 1}, p.TransformPoint(Vec3{0, 0, -1}))
	assertVec4(t, Vec4{1, 1, 1, 1}, p.TransformPoint(Vec3{800, 600, -10}))
}

func TestPerspectiveFov(t *testing.T) {
	l, r, b, top, n, f := PerspectiveFov(math32.Pi/2, 2, 1, 100)
	assert.InDelta(t, -2, l, eps)
	assert.InDelta(t, 2, r, eps)
	assert.InDelta(t, -1, b, eps)
	assert.InDelta(t, 1, top, eps)
	assert.Equal(t, float32(1), n)
	assert.Equal(t, float32(100), f)
}

func TestLookAt(t *testing.T) {
	v := LookAt(Vec3{0, 0, 5}, Vec3{}, Vec3{0, 1, 0})
	assertVec4(t, Vec4{0, 0, -5, 1}, v.TransformPoint(Vec3{}))

	v = LookAt(Vec3{5, 0, 0}, Vec3{}, Vec3{0, 1, 0})
	assertVec4(t, Vec4{0, 0, -5, 1}, v.TransformPoint(Vec3{}))
	assertVec4(t, Vec4{0, 1, -5, 1}, v.TransformPoint(Vec3{0, 1, 0}))
}

func TestVec3(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	assert.Equal(t, Vec3{0, 0, 1}, x.Cross(y))
	assert.Equal(t, float32(0), x.Dot(y))
	assert.InDelta(t, 1, Vec3{3, 4, 0}.Normalize().Length(), eps)
	assert.Equal(t, Vec3{}, Vec3{}.Normalize())
}
