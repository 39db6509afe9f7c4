package demo

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/loader"
	"github.com/Carmen-Shannon/oxy-fixed/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-fixed/engine/renderer"
	"github.com/chewxy/math32"
)

// groundOffset is how far below the eye the grid plane sits.
const groundOffset = -100

// Scene is the viewer test scene: a grid and a red triangle 500 units ahead, moved around with the keyboard.
// It is driven from a single goroutine: key events, Update and Draw must not run concurrently.
type Scene struct {
	keys common.KeyState

	x, z, rotY float32

	moveSpeed, turnSpeed float32
	gridSize             float32
	gridLines            int
	near, far            float32

	showGrid  bool
	wireframe bool
	ortho     bool
	light     bool

	mesh *renderer.Mesh

	model    *loader.Model
	modelPos common.Vec3
}

// NewScene builds the scene from cfg. The texture and model, if configured, are decoded but not uploaded; see Upload.
//
// Parameters:
//   - cfg: the merged viewer configuration
//
// Returns:
//   - *Scene: the scene
//   - error: error if the configured texture cannot be loaded
func NewScene(cfg Config) (*Scene, error) {
	red := renderer.ColorRed
	n := common.Vec3{Z: 1}
	s := &Scene{
		keys:      common.KeyState{},
		moveSpeed: cfg.Scene.MoveSpeed,
		turnSpeed: cfg.Scene.TurnSpeed,
		gridSize:  cfg.Scene.GridSize,
		gridLines: cfg.Scene.GridLines,
		near:      cfg.Camera.Near,
		far:       cfg.Camera.Far,
		showGrid:  true,
		light:     cfg.Scene.Light,
		mesh: &renderer.Mesh{
			Positions: []common.Vec3{{X: -50, Z: -500}, {X: 50, Z: -500}, {Y: 50, Z: -500}},
			Normals:   []common.Vec3{n, n, n},
			UVs:       []renderer.UV{{U: 0, V: 0}, {U: 1, V: 0}, {U: 0.5, V: 1}},
			Indices:   []uint32{0, 1, 2},
			Material:  renderer.Material{Ambient: red, Diffuse: red, Specular: red},
		},
	}

	if cfg.Scene.Texture != "" {
		tex, err := renderer.NewTextureFromFile(cfg.Scene.Texture)
		if err != nil {
			return nil, fmt.Errorf("failed to load scene texture: %w", err)
		}
		white := renderer.ColorWhite
		s.mesh.Texture = tex
		s.mesh.Material = renderer.Material{Ambient: white, Diffuse: white, Specular: white}
	}

	if cfg.Scene.Model != "" {
		m, err := loader.NewLoader(loader.BackendTypeGLTF, loader.WithScale(cfg.Scene.ModelScale)).Load(cfg.Scene.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to load scene model: %w", err)
		}
		pos := cfg.Scene.ModelPosition
		s.model = m
		s.modelPos = common.Vec3{X: pos[0], Y: pos[1], Z: pos[2]}
	}
	return s, nil
}

// Upload makes the scene and model textures resident on r.
func (s *Scene) Upload(r renderer.Renderer) error {
	for _, tex := range s.textures() {
		if err := r.UploadToGPU(tex); err != nil {
			return err
		}
	}
	return nil
}

// Release evicts the scene and model textures from r.
func (s *Scene) Release(r renderer.Renderer) {
	for _, tex := range s.textures() {
		r.EvictFromGPU(tex)
	}
}

func (s *Scene) textures() []*renderer.Texture {
	var out []*renderer.Texture
	if s.mesh.Texture != nil {
		out = append(out, s.mesh.Texture)
	}
	if s.model != nil {
		out = append(out, s.model.Textures...)
	}
	return out
}

// KeyDown records a held key. G, F and P toggle the grid, wireframe and orthographic projection.
func (s *Scene) KeyDown(k common.Key) {
	if !s.keys.Down(k) {
		switch k {
		case common.KeyG:
			s.showGrid = !s.showGrid
		case common.KeyF:
			s.wireframe = !s.wireframe
		case common.KeyP:
			s.ortho = !s.ortho
		}
	}
	s.keys.Press(k)
}

// KeyUp releases a held key.
func (s *Scene) KeyUp(k common.Key) {
	s.keys.Release(k)
}

// Position returns the world offset and rotation applied before drawing.
func (s *Scene) Position() (x, z, rotY float32) {
	return s.x, s.z, s.rotY
}

// Update integrates held keys over dt seconds. W and S move along the view direction, A and D strafe,
// Q and E turn.
func (s *Scene) Update(dt float32) {
	var forward, strafe float32
	if s.keys.Down(common.KeyW) || s.keys.Down(common.KeyUp) {
		forward++
	}
	if s.keys.Down(common.KeyS) || s.keys.Down(common.KeyDown) {
		forward--
	}
	if s.keys.Down(common.KeyD) {
		strafe++
	}
	if s.keys.Down(common.KeyA) {
		strafe--
	}
	if s.keys.Down(common.KeyQ) || s.keys.Down(common.KeyLeft) {
		s.rotY -= s.turnSpeed * dt
	}
	if s.keys.Down(common.KeyE) || s.keys.Down(common.KeyRight) {
		s.rotY += s.turnSpeed * dt
	}

	// The world moves opposite to the viewer.
	step := s.moveSpeed * dt
	sin, cos := math32.Sincos(s.rotY + math32.Pi/2)
	s.x += cos*forward*step - sin*strafe*step
	s.z += sin*forward*step + cos*strafe*step
}

// Draw renders the scene into the current modelview. The modelview depth is unchanged on return.
// In orthographic mode the projection is replaced with a pixel-sized box over the current viewport.
//
// Parameters:
//   - p: the pipeline the renderer reads from
//   - r: the renderer
//
// Returns:
//   - error: error if the stack overflows or the mesh fails validation
func (s *Scene) Draw(p pipeline.Pipeline, r renderer.Renderer) error {
	if s.ortho {
		vp := p.Viewport()
		p.SetActiveStack(pipeline.Projection)
		p.LoadIdentity()
		p.SetOrthographic(-vp.Width/2, vp.Width/2, -vp.Height/2, vp.Height/2, s.near, s.far)
		p.SetActiveStack(pipeline.ModelView)
		r.UpdateProjection()
	}

	if s.light {
		sun := renderer.DefaultLight()
		sun.Type = renderer.LightTypeDirectional
		sun.Direction = common.Vec3{X: -0.3, Y: -1, Z: -0.5}.Normalize()
		sun.Ambient = renderer.Color{0.2, 0.2, 0.2, 1}
		if err := r.SetLightProperties(0, sun); err != nil {
			return err
		}
		if err := r.EnableLight(0); err != nil {
			return err
		}
	} else if err := r.DisableLight(0); err != nil {
		return err
	}

	if err := p.Push(); err != nil {
		return err
	}
	defer p.MustPop()

	p.PostTranslate(s.x, groundOffset, s.z)
	p.PostRotateY(s.rotY)

	if s.showGrid {
		r.DrawGrid(s.gridSize, s.gridLines)
	}
	if err := s.drawMeshes(r, []*renderer.Mesh{s.mesh}); err != nil {
		return err
	}
	if s.model == nil {
		return nil
	}

	if err := p.Push(); err != nil {
		return err
	}
	defer p.MustPop()
	// Pre-multiplied so the offset is in world space.
	p.PreTranslate(s.modelPos.X, s.modelPos.Y, s.modelPos.Z)
	return s.drawMeshes(r, s.model.Meshes)
}

func (s *Scene) drawMeshes(r renderer.Renderer, meshes []*renderer.Mesh) error {
	if s.wireframe {
		return r.DrawMeshesWireframe(meshes, renderer.ColorWhite, 1)
	}
	return r.DrawMeshes(meshes)
}
