package renderer

import (
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/pipeline"
	"github.com/chewxy/math32"
)

// minBandRows keeps bands from getting so thin that task overhead dominates.
const minBandRows = 16

// globalAmbient is the light model ambient term, white as set up at initialization.
var globalAmbient = Color{1, 1, 1, 1}

type softwareRendererBackendImpl struct {
	target *frameTarget
	width  int
	height int

	viewport   pipeline.Viewport
	rect       viewportRect
	projection common.Matrix4
	depthTest  bool

	textures map[uint32]*softTexture
	nextID   uint32

	workers int
	pool    worker.DynamicWorkerPool
	taskID  int
}

var _ RendererBackend = &softwareRendererBackendImpl{}

func newSoftwareRendererBackend(width, height, workers int) *softwareRendererBackendImpl {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	b := &softwareRendererBackendImpl{
		projection: common.Identity(),
		depthTest:  true,
		textures:   make(map[uint32]*softTexture),
		workers:    workers,
	}
	b.ConfigureSurface(width, height)
	return b
}

// Image returns the color buffer. It is reused across frames and reallocated on resize.
func (b *softwareRendererBackendImpl) Image() *image.RGBA {
	if b.target == nil {
		return nil
	}
	return b.target.color
}

func (b *softwareRendererBackendImpl) Initialize(state *drawState) error {
	if b.target == nil {
		return fmt.Errorf("software renderer needs a surface size")
	}
	if b.pool == nil {
		b.pool = worker.NewDynamicWorkerPool(b.workers, 256, time.Second)
	}
	b.depthTest = state.depthTest
	b.target.clear(state.clearColor)
	return nil
}

func (b *softwareRendererBackendImpl) Cleanup() {
	if b.pool != nil {
		b.pool.Stop()
		b.pool = nil
	}
	clear(b.textures)
}

func (b *softwareRendererBackendImpl) ConfigureSurface(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if b.target != nil && b.width == width && b.height == height {
		return
	}
	b.width, b.height = width, height
	b.target = newFrameTarget(width, height)
	b.ApplyViewport(b.viewport)
}

func (b *softwareRendererBackendImpl) SetPresentMode(PresentMode) {}

func (b *softwareRendererBackendImpl) SetDepthTest(enabled bool) {
	b.depthTest = enabled
}

func (b *softwareRendererBackendImpl) Clear(state *drawState) {
	if b.target != nil {
		b.target.clear(state.clearColor)
	}
}

func (b *softwareRendererBackendImpl) Flush() error {
	return nil
}

func (b *softwareRendererBackendImpl) ApplyViewport(v pipeline.Viewport) {
	b.viewport = v
	r := viewportRect{x: v.X, y: v.Y, w: v.Width, h: v.Height, minX: 0, minY: 0, maxX: -1, maxY: -1}
	if v.Width > 0 && v.Height > 0 {
		r.minX = max(0, int(math32.Floor(v.X)))
		r.minY = max(0, int(math32.Floor(v.Y)))
		r.maxX = min(b.width-1, int(math32.Ceil(v.X+v.Width))-1)
		r.maxY = min(b.height-1, int(math32.Ceil(v.Y+v.Height))-1)
	}
	b.rect = r
}

func (b *softwareRendererBackendImpl) ApplyProjection(snap pipeline.Snapshot) {
	b.projection = snap.ProjectionMatrix()
}

// ApplyLights is a no-op: lights are read from the draw state on every DrawMeshes call.
func (b *softwareRendererBackendImpl) ApplyLights(*drawState) {}

func (b *softwareRendererBackendImpl) drawable() bool {
	return b.target != nil && !b.rect.empty()
}

func (b *softwareRendererBackendImpl) DrawLineList(snap pipeline.Snapshot, segments []common.Vec3, color Color, width float32) {
	if !b.drawable() {
		return
	}
	mvp := b.projection.Mul(snap.ModelView)
	st := rasterState{depthTest: b.depthTest}
	for i := 0; i+1 < len(segments); i += 2 {
		a, c, ok := clipSegment(mvp.TransformPoint(segments[i]), mvp.TransformPoint(segments[i+1]))
		if !ok || a.W <= 0 || c.W <= 0 {
			continue
		}
		b.target.drawSegment(viewportTransform(a, b.rect), viewportTransform(c, b.rect), color, width, b.rect, &st)
	}
}

func (b *softwareRendererBackendImpl) DrawPoints(snap pipeline.Snapshot, points []common.Vec3, color Color, size float32) {
	if !b.drawable() {
		return
	}
	mvp := b.projection.Mul(snap.ModelView)
	st := rasterState{depthTest: b.depthTest}
	for _, p := range points {
		clip := mvp.TransformPoint(p)
		if clip.W <= 0 || clipDistances[0](clip) < 0 || clipDistances[1](clip) < 0 {
			continue
		}
		w := viewportTransform(clip, b.rect)
		b.target.stamp(w.x, w.y, w.z, size, color, b.rect, &st)
	}
}

func (b *softwareRendererBackendImpl) DrawUnitQuads(snap pipeline.Snapshot, quads []UnitQuad, tex *Texture, tint Color) {
	if !b.drawable() {
		return
	}
	mesh := unitQuadMesh(quads, tex, tint)
	mvp := b.projection.Mul(snap.ModelView)

	verts := make([]rasterVertex, len(mesh.Positions))
	for i, p := range mesh.Positions {
		verts[i] = rasterVertex{clip: mvp.TransformPoint(p), color: tint, uv: mesh.UVs[i]}
	}
	st := rasterState{blend: blendColor, tex: b.textures[tex.ID()]}
	b.rasterizeTriangles(b.assemble(verts, mesh.Indices, false), &st)
}

// normalMatrixOf returns the inverse transpose of mv, or the identity when mv is singular.
func normalMatrixOf(mv common.Matrix4) common.Matrix4 {
	inv, ok := mv.Invert()
	if !ok {
		return common.Identity()
	}
	return inv.Transpose()
}

func (b *softwareRendererBackendImpl) DrawMeshes(snap pipeline.Snapshot, meshes []*Mesh, state *drawState) {
	if !b.drawable() {
		return
	}
	mv := snap.ModelView
	mvp := b.projection.Mul(mv)
	normalMatrix := normalMatrixOf(mv)

	for _, m := range meshes {
		verts := make([]rasterVertex, len(m.Positions))
		for i, p := range m.Positions {
			verts[i] = rasterVertex{
				clip:  mvp.TransformPoint(p),
				color: shadeVertex(mv, normalMatrix, p, m.Normal(uint32(i)), m.Material, &state.lights),
				uv:    m.UV(uint32(i)),
			}
		}
		st := rasterState{depthTest: b.depthTest, cull: true, tex: b.textures[m.Texture.ID()]}
		if m.Material.Transparent() {
			st.blend = blendAlpha
		}
		// Each mesh is a separate barrier so blended meshes composite in submission order.
		b.rasterizeTriangles(b.assemble(verts, m.Indices, st.cull), &st)
	}
}

// assemble clips and sets up the indexed triangles of one draw.
func (b *softwareRendererBackendImpl) assemble(verts []rasterVertex, indices []uint32, cull bool) []screenTri {
	tris := make([]screenTri, 0, len(indices)/3)
	for i := 0; i+2 < len(indices); i += 3 {
		tris = appendTriangles(tris, verts[indices[i]], verts[indices[i+1]], verts[indices[i+2]], b.rect, cull)
	}
	return tris
}

// rasterizeTriangles splits the viewport into row bands and rasterizes each band on the worker pool.
// It returns once every band is done.
func (b *softwareRendererBackendImpl) rasterizeTriangles(tris []screenTri, st *rasterState) {
	if len(tris) == 0 {
		return
	}
	y0, y1 := b.rect.minY, b.rect.maxY+1
	if b.pool == nil || b.workers == 1 {
		b.target.rasterizeBand(tris, y0, y1, st)
		return
	}

	rows := y1 - y0
	bandRows := max(minBandRows, (rows+b.workers*2-1)/(b.workers*2))

	// A WaitGroup is the per-draw barrier; pool.Wait blocks until workers idle out.
	var wg sync.WaitGroup
	for start := y0; start < y1; start += bandRows {
		end := min(start+bandRows, y1)
		wg.Add(1)
		b.taskID++
		b.pool.SubmitTask(worker.Task{
			ID:      b.taskID,
			Payload: [2]int{start, end},
			Do: func() (any, error) {
				defer wg.Done()
				b.target.rasterizeBand(tris, start, end, st)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (b *softwareRendererBackendImpl) UploadTexture(tex *Texture) (uint32, error) {
	pix, err := common.ToRGBA(tex.Format, tex.Pixels, tex.Width, tex.Height)
	if err != nil {
		return 0, err
	}
	b.nextID++
	b.textures[b.nextID] = &softTexture{width: tex.Width, height: tex.Height, pix: pix}
	return b.nextID, nil
}

func (b *softwareRendererBackendImpl) EvictTexture(id uint32) {
	delete(b.textures, id)
}

// shadeVertex evaluates color-material Gouraud lighting for one vertex in eye space:
// global ambient times material ambient, plus per light ambient and Lambert diffuse scaled by
// distance attenuation and the spot cone. Specular highlights are not evaluated.
func shadeVertex(mv, normalMatrix common.Matrix4, pos, normal common.Vec3, mat Material, lights *[MaxLights]lightSlot) Color {
	e := mv.TransformPoint(pos)
	eye := common.Vec3{X: e.X, Y: e.Y, Z: e.Z}
	if e.W != 0 && e.W != 1 {
		eye = eye.Scale(1 / e.W)
	}
	n := normalMatrix.TransformVector(normal).Normalize()

	var acc Color
	for i := 0; i < 3; i++ {
		acc[i] = globalAmbient[i] * mat.Ambient[i]
	}

	for li := range lights {
		slot := &lights[li]
		if !slot.enabled {
			continue
		}
		l := slot.light

		toLight := common.Vec3{X: slot.eyePos.X, Y: slot.eyePos.Y, Z: slot.eyePos.Z}
		attenuation := float32(1)
		if slot.eyePos.W != 0 {
			toLight = toLight.Sub(eye)
			d := toLight.Length()
			if denom := l.AttenuationConstant + l.AttenuationLinear*d + l.AttenuationQuadratic*d*d; denom > 0 {
				attenuation = 1 / denom
			}
		}
		toLight = toLight.Normalize()

		if l.Type == LightTypeSpot {
			attenuation *= spotFactor(toLight.Scale(-1).Dot(slot.eyeDir), l.InnerCone, l.OuterCone)
		}
		if attenuation == 0 {
			continue
		}

		diffuse := math32.Max(0, n.Dot(toLight))
		for i := 0; i < 3; i++ {
			acc[i] += attenuation * (l.Ambient[i]*mat.Ambient[i] + diffuse*l.Diffuse[i]*mat.Diffuse[i])
		}
	}

	for i := 0; i < 3; i++ {
		acc[i] = clamp01(acc[i])
	}
	acc[3] = clamp01(mat.Diffuse[3])
	return acc
}

// spotFactor fades linearly from 1 inside the inner cone to 0 at the outer cone.
// Cone angles are half-angles in degrees; 180 or more disables the cone.
func spotFactor(cosAngle, inner, outer float32) float32 {
	if outer >= 180 {
		return 1
	}
	cosOuter := math32.Cos(outer * math32.Pi / 180)
	cosInner := math32.Cos(math32.Min(inner, outer) * math32.Pi / 180)
	switch {
	case cosAngle < cosOuter:
		return 0
	case cosAngle >= cosInner || cosInner == cosOuter:
		return 1
	default:
		return (cosAngle - cosOuter) / (cosInner - cosOuter)
	}
}
