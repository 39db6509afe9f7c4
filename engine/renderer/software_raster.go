package renderer

import (
	"image"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/chewxy/math32"
)

// blendMode is the color blend equation used by the software rasterizer.
type blendMode int

const (
	blendNone blendMode = iota
	// blendAlpha is SRC_ALPHA, ONE_MINUS_SRC_ALPHA.
	blendAlpha
	// blendColor is SRC_COLOR, ONE_MINUS_SRC_COLOR.
	blendColor
)

// rasterState is the per-draw fixed-function state the rasterizer consults for each fragment.
type rasterState struct {
	depthTest bool
	cull      bool
	blend     blendMode
	tex       *softTexture
}

// rasterVertex is a vertex after transformation and lighting, still in clip space.
type rasterVertex struct {
	clip  common.Vec4
	color Color
	uv    UV
}

func lerpVertex(a, b rasterVertex, t float32) rasterVertex {
	out := rasterVertex{
		clip: common.Vec4{
			X: a.clip.X + (b.clip.X-a.clip.X)*t,
			Y: a.clip.Y + (b.clip.Y-a.clip.Y)*t,
			Z: a.clip.Z + (b.clip.Z-a.clip.Z)*t,
			W: a.clip.W + (b.clip.W-a.clip.W)*t,
		},
		uv: UV{U: a.uv.U + (b.uv.U-a.uv.U)*t, V: a.uv.V + (b.uv.V-a.uv.V)*t},
	}
	for i := range out.color {
		out.color[i] = a.color[i] + (b.color[i]-a.color[i])*t
	}
	return out
}

// clipDistances are the signed distances to the near (z >= -w) and far (z <= w) planes.
// Both are non-negative for vertices inside the depth range.
var clipDistances = [2]func(v common.Vec4) float32{
	func(v common.Vec4) float32 { return v.Z + v.W },
	func(v common.Vec4) float32 { return v.W - v.Z },
}

// clipPolygon clips a convex polygon against the near and far planes.
// x and y are left unclipped; the rasterizer's bounding box keeps fragments inside the target.
func clipPolygon(in []rasterVertex) []rasterVertex {
	poly := in
	for _, dist := range clipDistances {
		if len(poly) == 0 {
			return nil
		}
		out := make([]rasterVertex, 0, len(poly)+1)
		for i := range poly {
			a := poly[i]
			b := poly[(i+1)%len(poly)]
			da, db := dist(a.clip), dist(b.clip)
			if da >= 0 {
				out = append(out, a)
			}
			if (da >= 0) != (db >= 0) {
				out = append(out, lerpVertex(a, b, da/(da-db)))
			}
		}
		poly = out
	}
	return poly
}

// segmentGuard widens the x and y clip planes for segments so wide lines at the edge keep their full width.
const segmentGuard = 1.05

// sideDistances are the signed distances to the left, right, bottom and top planes widened by segmentGuard.
var sideDistances = [4]func(v common.Vec4) float32{
	func(v common.Vec4) float32 { return v.W*segmentGuard + v.X },
	func(v common.Vec4) float32 { return v.W*segmentGuard - v.X },
	func(v common.Vec4) float32 { return v.W*segmentGuard + v.Y },
	func(v common.Vec4) float32 { return v.W*segmentGuard - v.Y },
}

// clipSegment clips a line segment against the depth range and then the guarded x and y planes,
// so the window-space segment never extends far past the viewport.
func clipSegment(a, b common.Vec4) (common.Vec4, common.Vec4, bool) {
	var ok bool
	for _, dist := range clipDistances {
		if a, b, ok = clipSegmentPlane(a, b, dist); !ok {
			return a, b, false
		}
	}
	for _, dist := range sideDistances {
		if a, b, ok = clipSegmentPlane(a, b, dist); !ok {
			return a, b, false
		}
	}
	return a, b, true
}

func clipSegmentPlane(a, b common.Vec4, dist func(common.Vec4) float32) (common.Vec4, common.Vec4, bool) {
	da, db := dist(a), dist(b)
	switch {
	case da < 0 && db < 0:
		return a, b, false
	case da < 0:
		a = lerpVec4(a, b, da/(da-db))
	case db < 0:
		b = lerpVec4(b, a, db/(db-da))
	}
	return a, b, true
}

func lerpVec4(a, b common.Vec4, t float32) common.Vec4 {
	return common.Vec4{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
		W: a.W + (b.W-a.W)*t,
	}
}

// windowPoint is a vertex in window coordinates: x and y in pixels with the origin bottom-left,
// z mapped to [0, 1].
type windowPoint struct {
	x, y, z float32
	invW    float32
}

// viewportTransform maps a clip-space position through the perspective divide and the viewport.
func viewportTransform(v common.Vec4, vp viewportRect) windowPoint {
	invW := 1 / v.W
	return windowPoint{
		x:    vp.x + (v.X*invW+1)*0.5*vp.w,
		y:    vp.y + (v.Y*invW+1)*0.5*vp.h,
		z:    (v.Z*invW + 1) * 0.5,
		invW: invW,
	}
}

// viewportRect is the active viewport and the pixel rectangle fragments may be written to.
type viewportRect struct {
	x, y, w, h float32

	minX, minY, maxX, maxY int
}

func (v viewportRect) empty() bool {
	return v.maxX < v.minX || v.maxY < v.minY
}

// screenTri is a triangle set up for rasterization.
type screenTri struct {
	p     [3]windowPoint
	color [3]Color
	uv    [3]UV
	area  float32

	minX, minY, maxX, maxY int
}

// edge is twice the signed area of (a, b, c); positive when the three points wind counter-clockwise.
func edge(ax, ay, bx, by, cx, cy float32) float32 {
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}

// setupTriangle projects a clipped triangle to the window and computes its bounds.
// It returns false for triangles that are degenerate, culled or fully outside vp.
func setupTriangle(v0, v1, v2 rasterVertex, vp viewportRect, cull bool) (screenTri, bool) {
	var t screenTri
	for i, v := range [3]rasterVertex{v0, v1, v2} {
		t.p[i] = viewportTransform(v.clip, vp)
		t.color[i] = v.color
		t.uv[i] = v.uv
	}
	t.area = edge(t.p[0].x, t.p[0].y, t.p[1].x, t.p[1].y, t.p[2].x, t.p[2].y)
	if t.area == 0 || math32.IsNaN(t.area) || math32.IsInf(t.area, 0) {
		return t, false
	}
	if cull && t.area < 0 {
		return t, false
	}

	minX := math32.Min(t.p[0].x, math32.Min(t.p[1].x, t.p[2].x))
	maxX := math32.Max(t.p[0].x, math32.Max(t.p[1].x, t.p[2].x))
	minY := math32.Min(t.p[0].y, math32.Min(t.p[1].y, t.p[2].y))
	maxY := math32.Max(t.p[0].y, math32.Max(t.p[1].y, t.p[2].y))

	t.minX = max(vp.minX, int(math32.Floor(minX)))
	t.maxX = min(vp.maxX, int(math32.Ceil(maxX)))
	t.minY = max(vp.minY, int(math32.Floor(minY)))
	t.maxY = min(vp.maxY, int(math32.Ceil(maxY)))
	if t.maxX < t.minX || t.maxY < t.minY {
		return t, false
	}
	return t, true
}

// appendTriangles clips one triangle and appends the set-up pieces to dst.
func appendTriangles(dst []screenTri, v0, v1, v2 rasterVertex, vp viewportRect, cull bool) []screenTri {
	poly := clipPolygon([]rasterVertex{v0, v1, v2})
	for i := 1; i+1 < len(poly); i++ {
		if t, ok := setupTriangle(poly[0], poly[i], poly[i+1], vp, cull); ok {
			dst = append(dst, t)
		}
	}
	return dst
}

// frameTarget is a color image plus a depth buffer of the same size.
// Window row y maps to image row height-1-y.
type frameTarget struct {
	color  *image.RGBA
	depth  []float32
	width  int
	height int
}

func newFrameTarget(width, height int) *frameTarget {
	return &frameTarget{
		color:  image.NewRGBA(image.Rect(0, 0, width, height)),
		depth:  make([]float32, width*height),
		width:  width,
		height: height,
	}
}

func (f *frameTarget) clear(c Color) {
	r, g, b, a := toByte(c[0]), toByte(c[1]), toByte(c[2]), toByte(c[3])
	pix := f.color.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, a
	}
	for i := range f.depth {
		f.depth[i] = 1
	}
}

// fragment runs the depth test and blending for one pixel in window coordinates.
func (f *frameTarget) fragment(x, y int, z float32, c Color, st *rasterState) {
	row := f.height - 1 - y
	di := row*f.width + x
	if st.depthTest {
		if !(z < f.depth[di]) {
			return
		}
		f.depth[di] = z
	}

	off := row*f.color.Stride + x*4
	px := f.color.Pix[off : off+4 : off+4]
	switch st.blend {
	case blendAlpha:
		a := clamp01(c[3])
		for i := 0; i < 4; i++ {
			px[i] = toByte(c[i]*a + float32(px[i])/255*(1-a))
		}
	case blendColor:
		for i := 0; i < 4; i++ {
			s := clamp01(c[i])
			px[i] = toByte(s*s + float32(px[i])/255*(1-s))
		}
	default:
		for i := 0; i < 4; i++ {
			px[i] = toByte(c[i])
		}
	}
}

// stamp writes a size x size square of fragments centered on (x, y), clipped to vp.
func (f *frameTarget) stamp(x, y, z, size float32, c Color, vp viewportRect, st *rasterState) {
	n := max(1, int(math32.Round(size)))
	x0 := int(math32.Floor(x - float32(n-1)/2))
	y0 := int(math32.Floor(y - float32(n-1)/2))
	for py := max(y0, vp.minY); py <= min(y0+n-1, vp.maxY); py++ {
		for px := max(x0, vp.minX); px <= min(x0+n-1, vp.maxX); px++ {
			f.fragment(px, py, z, c, st)
		}
	}
}

// rasterizeBand draws the rows [y0, y1) of every triangle. Bands are disjoint, so several may run at once.
func (f *frameTarget) rasterizeBand(tris []screenTri, y0, y1 int, st *rasterState) {
	for ti := range tris {
		t := &tris[ti]
		ys, ye := max(t.minY, y0), min(t.maxY, y1-1)
		if ys > ye {
			continue
		}
		p0, p1, p2 := t.p[0], t.p[1], t.p[2]
		invArea := 1 / t.area

		for py := ys; py <= ye; py++ {
			cy := float32(py) + 0.5
			for px := t.minX; px <= t.maxX; px++ {
				cx := float32(px) + 0.5
				b0 := edge(p1.x, p1.y, p2.x, p2.y, cx, cy) * invArea
				b1 := edge(p2.x, p2.y, p0.x, p0.y, cx, cy) * invArea
				b2 := edge(p0.x, p0.y, p1.x, p1.y, cx, cy) * invArea
				if b0 < 0 || b1 < 0 || b2 < 0 {
					continue
				}

				z := b0*p0.z + b1*p1.z + b2*p2.z

				// Perspective-correct weights for color and texture coordinates.
				w0, w1, w2 := b0*p0.invW, b1*p1.invW, b2*p2.invW
				norm := 1 / (w0 + w1 + w2)
				w0, w1, w2 = w0*norm, w1*norm, w2*norm

				var c Color
				for i := range c {
					c[i] = w0*t.color[0][i] + w1*t.color[1][i] + w2*t.color[2][i]
				}
				if st.tex != nil {
					u := w0*t.uv[0].U + w1*t.uv[1].U + w2*t.uv[2].U
					v := w0*t.uv[0].V + w1*t.uv[1].V + w2*t.uv[2].V
					c = c.Mul(st.tex.sample(u, v))
				}
				f.fragment(px, py, z, c, st)
			}
		}
	}
}

// drawSegment draws a clipped segment in window coordinates with a simple DDA.
func (f *frameTarget) drawSegment(a, b windowPoint, c Color, width float32, vp viewportRect, st *rasterState) {
	dx, dy := b.x-a.x, b.y-a.y
	steps := int(math32.Ceil(math32.Max(math32.Abs(dx), math32.Abs(dy))))
	if steps == 0 {
		f.stamp(a.x, a.y, a.z, width, c, vp, st)
		return
	}
	inv := 1 / float32(steps)
	for i := 0; i <= steps; i++ {
		t := float32(i) * inv
		f.stamp(a.x+dx*t, a.y+dy*t, a.z+(b.z-a.z)*t, width, c, vp, st)
	}
}

// softTexture is an uploaded texture held as tightly packed RGBA bytes.
type softTexture struct {
	width, height int
	pix           []byte
}

// sample returns the bilinear filtered texel at (u, v) with repeat wrapping.
func (t *softTexture) sample(u, v float32) Color {
	fx := u*float32(t.width) - 0.5
	fy := v*float32(t.height) - 0.5
	x0f, y0f := math32.Floor(fx), math32.Floor(fy)
	ax, ay := fx-x0f, fy-y0f
	x0, y0 := wrap(int(x0f), t.width), wrap(int(y0f), t.height)
	x1, y1 := wrap(x0+1, t.width), wrap(y0+1, t.height)

	var out Color
	for i := 0; i < 4; i++ {
		top := t.texel(x0, y0, i)*(1-ax) + t.texel(x1, y0, i)*ax
		bot := t.texel(x0, y1, i)*(1-ax) + t.texel(x1, y1, i)*ax
		out[i] = top*(1-ay) + bot*ay
	}
	return out
}

func (t *softTexture) texel(x, y, ch int) float32 {
	return float32(t.pix[(y*t.width+x)*4+ch]) / 255
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func toByte(v float32) uint8 {
	return uint8(clamp01(v)*255 + 0.5)
}
