package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-fixed/engine/window"
	"github.com/go-gl/gl/v2.1/gl"
)

// glRendererBackendImpl drives the OpenGL 2.1 fixed-function pipeline through client-side vertex arrays.
// Every method must run on the OS thread that owns the window's GL context.
//
// go-gl reference: https://pkg.go.dev/github.com/go-gl/gl/v2.1/gl
type glRendererBackendImpl struct {
	window    window.Window
	depthTest bool
	vsync     bool
}

var _ RendererBackend = &glRendererBackendImpl{}

func newGLRendererBackend(w window.Window) *glRendererBackendImpl {
	return &glRendererBackendImpl{window: w, depthTest: true, vsync: true}
}

func (b *glRendererBackendImpl) Initialize(state *drawState) error {
	if b.window == nil {
		return fmt.Errorf("opengl backend requires a window")
	}
	if b.window.ClientAPI() != window.ClientAPIOpenGL {
		return fmt.Errorf("opengl backend requires a window created with %s, got %s", window.ClientAPIOpenGL, b.window.ClientAPI())
	}
	b.window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		return fmt.Errorf("failed to load OpenGL entry points: %w", err)
	}
	b.window.SetVSync(b.vsync)

	gl.ShadeModel(gl.SMOOTH)

	b.SetDepthTest(state.depthTest)
	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.BACK)

	c := state.clearColor
	gl.ClearColor(c[0], c[1], c[2], c[3])

	gl.Enable(gl.COLOR_MATERIAL)
	gl.Enable(gl.LIGHTING)
	gl.Enable(gl.NORMALIZE)
	ambient := [4]float32(globalAmbient)
	gl.LightModelfv(gl.LIGHT_MODEL_AMBIENT, &ambient[0])

	gl.TexEnvi(gl.TEXTURE_ENV, gl.TEXTURE_ENV_MODE, gl.MODULATE)
	gl.EnableClientState(gl.VERTEX_ARRAY)

	common.ComponentLogger("renderer").Debug("opengl state initialized")
	return glError("initialize")
}

func (b *glRendererBackendImpl) Cleanup() {}

func (b *glRendererBackendImpl) ConfigureSurface(int, int) {}

func (b *glRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.vsync = mode == PresentModeVSync
	if b.window != nil {
		b.window.SetVSync(b.vsync)
	}
}

func (b *glRendererBackendImpl) SetDepthTest(enabled bool) {
	b.depthTest = enabled
	if enabled {
		gl.Enable(gl.DEPTH_TEST)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
}

func (b *glRendererBackendImpl) Clear(state *drawState) {
	c := state.clearColor
	gl.ClearColor(c[0], c[1], c[2], c[3])
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

func (b *glRendererBackendImpl) Flush() error {
	gl.Finish()
	if err := glError("flush"); err != nil {
		return err
	}
	b.window.SwapBuffers()
	return nil
}

func (b *glRendererBackendImpl) ApplyViewport(v pipeline.Viewport) {
	gl.Viewport(int32(v.X), int32(v.Y), int32(v.Width), int32(v.Height))
}

// ApplyProjection rebuilds the GL projection matrix as frustum (or ortho) times the projection stack top.
func (b *glRendererBackendImpl) ApplyProjection(snap pipeline.Snapshot) {
	f := snap.Frustum
	gl.MatrixMode(gl.PROJECTION)
	gl.LoadIdentity()
	if snap.Kind == pipeline.Perspective {
		gl.Frustum(float64(f.Left), float64(f.Right), float64(f.Bottom), float64(f.Top), float64(f.Near), float64(f.Far))
	} else {
		gl.Ortho(float64(f.Left), float64(f.Right), float64(f.Bottom), float64(f.Top), float64(f.Near), float64(f.Far))
	}
	top := snap.Projection.ColumnMajor()
	gl.MultMatrixf(&top[0])
	gl.MatrixMode(gl.MODELVIEW)
}

// ApplyLights uploads every slot. Positions are already in eye space, so they are specified under an identity modelview.
func (b *glRendererBackendImpl) ApplyLights(state *drawState) {
	gl.MatrixMode(gl.MODELVIEW)
	gl.PushMatrix()
	gl.LoadIdentity()
	defer gl.PopMatrix()

	for i := range state.lights {
		slot := &state.lights[i]
		id := uint32(gl.LIGHT0 + i)
		if !slot.enabled {
			gl.Disable(id)
			continue
		}
		l := slot.light

		pos := [4]float32{slot.eyePos.X, slot.eyePos.Y, slot.eyePos.Z, slot.eyePos.W}
		gl.Lightfv(id, gl.POSITION, &pos[0])
		gl.Lightfv(id, gl.AMBIENT, &l.Ambient[0])
		gl.Lightfv(id, gl.DIFFUSE, &l.Diffuse[0])
		gl.Lightfv(id, gl.SPECULAR, &l.Specular[0])
		gl.Lightf(id, gl.CONSTANT_ATTENUATION, l.AttenuationConstant)
		gl.Lightf(id, gl.LINEAR_ATTENUATION, l.AttenuationLinear)
		gl.Lightf(id, gl.QUADRATIC_ATTENUATION, l.AttenuationQuadratic)

		// GL only accepts cutoffs in [0, 90] or exactly 180.
		cutoff := float32(180)
		if l.Type == LightTypeSpot && l.OuterCone < 90 {
			cutoff = max(0, l.OuterCone)
			dir := [3]float32{slot.eyeDir.X, slot.eyeDir.Y, slot.eyeDir.Z}
			gl.Lightfv(id, gl.SPOT_DIRECTION, &dir[0])
		}
		gl.Lightf(id, gl.SPOT_CUTOFF, cutoff)
		gl.Enable(id)
	}
}

// withModelView loads the snapshot's modelview for the duration of draw.
func withModelView(snap pipeline.Snapshot, draw func()) {
	gl.MatrixMode(gl.MODELVIEW)
	gl.PushMatrix()
	gl.LoadIdentity()
	mv := snap.ModelView.ColumnMajor()
	gl.MultMatrixf(&mv[0])
	draw()
	gl.PopMatrix()
}

// beginUnlit switches off lighting and texturing for flat colored lines and points.
func beginUnlit(c Color) {
	gl.Disable(gl.LIGHTING)
	gl.Disable(gl.TEXTURE_2D)
	gl.DisableClientState(gl.NORMAL_ARRAY)
	gl.DisableClientState(gl.TEXTURE_COORD_ARRAY)
	gl.Color4f(c[0], c[1], c[2], c[3])
}

func endUnlit() {
	gl.Color4f(1, 1, 1, 1)
	gl.Enable(gl.LIGHTING)
}

func (b *glRendererBackendImpl) DrawLineList(snap pipeline.Snapshot, segments []common.Vec3, color Color, width float32) {
	withModelView(snap, func() {
		beginUnlit(color)
		gl.LineWidth(width)
		gl.VertexPointer(3, gl.FLOAT, 0, gl.Ptr(segments))
		gl.DrawArrays(gl.LINES, 0, int32(len(segments)))
		gl.LineWidth(1)
		endUnlit()
	})
}

func (b *glRendererBackendImpl) DrawPoints(snap pipeline.Snapshot, points []common.Vec3, color Color, size float32) {
	withModelView(snap, func() {
		beginUnlit(color)
		gl.PointSize(size)
		gl.VertexPointer(3, gl.FLOAT, 0, gl.Ptr(points))
		gl.DrawArrays(gl.POINTS, 0, int32(len(points)))
		gl.PointSize(1)
		endUnlit()
	})
}

func (b *glRendererBackendImpl) DrawUnitQuads(snap pipeline.Snapshot, quads []UnitQuad, tex *Texture, tint Color) {
	mesh := unitQuadMesh(quads, tex, tint)
	withModelView(snap, func() {
		beginUnlit(tint)
		if tex.Resident() {
			gl.Enable(gl.TEXTURE_2D)
			gl.BindTexture(gl.TEXTURE_2D, tex.ID())
		}
		gl.Disable(gl.CULL_FACE)
		gl.Disable(gl.DEPTH_TEST)
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.SRC_COLOR, gl.ONE_MINUS_SRC_COLOR)

		gl.EnableClientState(gl.TEXTURE_COORD_ARRAY)
		gl.VertexPointer(3, gl.FLOAT, 0, gl.Ptr(mesh.Positions))
		gl.TexCoordPointer(2, gl.FLOAT, 0, gl.Ptr(mesh.UVs))
		gl.DrawElements(gl.TRIANGLES, int32(len(mesh.Indices)), gl.UNSIGNED_INT, gl.Ptr(mesh.Indices))
		gl.DisableClientState(gl.TEXTURE_COORD_ARRAY)

		gl.Disable(gl.BLEND)
		gl.Enable(gl.CULL_FACE)
		b.SetDepthTest(b.depthTest)
		gl.BindTexture(gl.TEXTURE_2D, 0)
		gl.Disable(gl.TEXTURE_2D)
		endUnlit()
	})
}

func (b *glRendererBackendImpl) DrawMeshes(snap pipeline.Snapshot, meshes []*Mesh, _ *drawState) {
	withModelView(snap, func() {
		for _, m := range meshes {
			b.drawMesh(m)
		}
	})
}

func (b *glRendererBackendImpl) drawMesh(m *Mesh) {
	if len(m.Indices) == 0 {
		return
	}

	transparent := m.Material.Transparent()
	if transparent {
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	}

	// Color-material tracking: each Color4f updates the property selected just before it.
	mat := m.Material
	gl.ColorMaterial(gl.FRONT, gl.AMBIENT)
	gl.Color4f(mat.Ambient[0], mat.Ambient[1], mat.Ambient[2], mat.Ambient[3])
	gl.ColorMaterial(gl.FRONT, gl.SPECULAR)
	gl.Color4f(mat.Specular[0], mat.Specular[1], mat.Specular[2], mat.Specular[3])
	gl.ColorMaterial(gl.FRONT, gl.DIFFUSE)
	gl.Color4f(mat.Diffuse[0], mat.Diffuse[1], mat.Diffuse[2], mat.Diffuse[3])

	textured := m.Texture.Resident() && len(m.UVs) > 0
	if textured {
		gl.Enable(gl.TEXTURE_2D)
		gl.BindTexture(gl.TEXTURE_2D, m.Texture.ID())
		gl.EnableClientState(gl.TEXTURE_COORD_ARRAY)
		gl.TexCoordPointer(2, gl.FLOAT, 0, gl.Ptr(m.UVs))
	}
	if len(m.Normals) > 0 {
		gl.EnableClientState(gl.NORMAL_ARRAY)
		gl.NormalPointer(gl.FLOAT, 0, gl.Ptr(m.Normals))
	} else {
		gl.Normal3f(0, 1, 0)
	}

	gl.VertexPointer(3, gl.FLOAT, 0, gl.Ptr(m.Positions))
	gl.DrawElements(gl.TRIANGLES, int32(len(m.Indices)), gl.UNSIGNED_INT, gl.Ptr(m.Indices))

	gl.DisableClientState(gl.NORMAL_ARRAY)
	if textured {
		gl.DisableClientState(gl.TEXTURE_COORD_ARRAY)
		gl.BindTexture(gl.TEXTURE_2D, 0)
		gl.Disable(gl.TEXTURE_2D)
	}
	if transparent {
		gl.Disable(gl.BLEND)
	}
}

// glFormat maps an ImageFormat to the GL pixel format and the internal format it is stored as.
func glFormat(f common.ImageFormat) (format uint32, internal int32, err error) {
	switch f {
	case common.ImageFormatRGBA:
		return gl.RGBA, gl.RGBA, nil
	case common.ImageFormatBGRA:
		return gl.BGRA, gl.RGBA, nil
	case common.ImageFormatRGB:
		return gl.RGB, gl.RGB, nil
	case common.ImageFormatBGR:
		return gl.BGR, gl.RGB, nil
	case common.ImageFormatLuminanceAlpha:
		return gl.LUMINANCE_ALPHA, gl.LUMINANCE_ALPHA, nil
	case common.ImageFormatLuminance:
		return gl.LUMINANCE, gl.LUMINANCE, nil
	case common.ImageFormatAlpha:
		return gl.ALPHA, gl.ALPHA, nil
	default:
		return 0, 0, fmt.Errorf("unsupported image format %s", f)
	}
}

func (b *glRendererBackendImpl) UploadTexture(tex *Texture) (uint32, error) {
	format, internal, err := glFormat(tex.Format)
	if err != nil {
		return 0, err
	}

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, int32(tex.Format.UnpackAlignment()))

	// GL 2.1 builds the mip chain on upload when GENERATE_MIPMAP is set before TexImage2D.
	gl.TexParameteri(gl.TEXTURE_2D, gl.GENERATE_MIPMAP, gl.TRUE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(tex.Width), int32(tex.Height), 0, format, gl.UNSIGNED_BYTE, gl.Ptr(tex.Pixels))
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if err := glError("upload texture"); err != nil {
		gl.DeleteTextures(1, &id)
		return 0, err
	}
	return id, nil
}

func (b *glRendererBackendImpl) EvictTexture(id uint32) {
	gl.DeleteTextures(1, &id)
}

// glError drains the GL error queue and reports the first error seen.
func glError(op string) error {
	var first uint32
	for code := gl.GetError(); code != gl.NO_ERROR; code = gl.GetError() {
		if first == 0 {
			first = code
		}
	}
	if first != 0 {
		return fmt.Errorf("opengl error 0x%04x during %s", first, op)
	}
	return nil
}
