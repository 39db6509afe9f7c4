package renderer

import "github.com/Carmen-Shannon/oxy-fixed/common"

// quadIndices triangulates the four corners produced by unitQuadCorners.
var quadIndices = [6]uint32{0, 1, 2, 0, 2, 3}

// gridSegments returns line-list vertices for a square grid on the XZ plane centered at the origin.
// Each axis gets linesPerAxis+1 lines spanning width units.
func gridSegments(width float32, linesPerAxis int) []common.Vec3 {
	if linesPerAxis <= 0 {
		return nil
	}
	half := width / 2
	step := width / float32(linesPerAxis)
	out := make([]common.Vec3, 0, (linesPerAxis+1)*4)
	for i := 0; i <= linesPerAxis; i++ {
		o := -half + step*float32(i)
		out = append(out,
			common.Vec3{X: -half, Z: o}, common.Vec3{X: half, Z: o},
			common.Vec3{X: o, Z: -half}, common.Vec3{X: o, Z: half},
		)
	}
	return out
}

// stripSegments expands a line strip into a line list: (p0,p1), (p1,p2), ...
func stripSegments(points []common.Vec3) []common.Vec3 {
	if len(points) < 2 {
		return nil
	}
	out := make([]common.Vec3, 0, (len(points)-1)*2)
	for i := 0; i+1 < len(points); i++ {
		out = append(out, points[i], points[i+1])
	}
	return out
}

// wireframeSegments returns the three edges of every triangle as a line list.
// Shared edges are emitted once per triangle that owns them.
func wireframeSegments(meshes []*Mesh) []common.Vec3 {
	var out []common.Vec3
	for _, m := range meshes {
		for i := 0; i+2 < len(m.Indices); i += 3 {
			v1 := m.Positions[m.Indices[i]]
			v2 := m.Positions[m.Indices[i+1]]
			v3 := m.Positions[m.Indices[i+2]]
			out = append(out, v1, v2, v1, v3, v2, v3)
		}
	}
	return out
}

// unitQuadCorners lays the quads out left to right on the XY plane.
// Each quad contributes four corners (top-left, bottom-left, bottom-right, top-right) with matching UVs.
func unitQuadCorners(quads []UnitQuad) ([]common.Vec3, []UV) {
	pos := make([]common.Vec3, 0, len(quads)*4)
	uvs := make([]UV, 0, len(quads)*4)
	var left float32
	for _, q := range quads {
		pos = append(pos,
			common.Vec3{X: left, Y: q.Height},
			common.Vec3{X: left},
			common.Vec3{X: left + q.Width},
			common.Vec3{X: left + q.Width, Y: q.Height},
		)
		uvs = append(uvs,
			UV{q.U0, q.V0},
			UV{q.U0, q.V1},
			UV{q.U1, q.V1},
			UV{q.U1, q.V0},
		)
		left += q.Width
	}
	return pos, uvs
}

// unitQuadMesh wraps the quad corners in a Mesh so triangle backends can draw them like any other geometry.
func unitQuadMesh(quads []UnitQuad, tex *Texture, tint Color) *Mesh {
	pos, uvs := unitQuadCorners(quads)
	idx := make([]uint32, 0, len(quads)*6)
	for i := range quads {
		base := uint32(i * 4)
		for _, q := range quadIndices {
			idx = append(idx, base+q)
		}
	}
	return &Mesh{
		Positions: pos,
		UVs:       uvs,
		Indices:   idx,
		Material:  Material{Ambient: tint, Diffuse: tint, Specular: tint},
		Texture:   tex,
	}
}
