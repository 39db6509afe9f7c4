package renderer

import (
	"errors"
	"fmt"
	"math/bits"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-fixed/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuPipelineKey identifies one cached render pipeline variant.
type wgpuPipelineKey struct {
	topology  wgpu.PrimitiveTopology
	blend     blendMode
	depthTest bool
	cull      bool
}

// wgpuDraw is one recorded draw, replayed into the render pass at Flush.
type wgpuDraw struct {
	key      wgpuPipelineKey
	viewport pipeline.Viewport
	slot     int
	texture  *wgpu.BindGroup

	firstVertex uint32
	vertexCount uint32
	firstIndex  uint32
	indexCount  uint32
}

// wgpuUniformSlot is a uniform buffer and the group 0 bind group pointing at it.
// Slots are reused across frames; a frame uses as many as it has draws.
type wgpuUniformSlot struct {
	buffer    *wgpu.Buffer
	bindGroup *wgpu.BindGroup
}

// wgpuTexture is an uploaded texture together with its group 1 bind group.
type wgpuTexture struct {
	texture   *wgpu.Texture
	view      *wgpu.TextureView
	bindGroup *wgpu.BindGroup
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	window               window.Window
	forceFallbackAdapter bool

	surfaceFormat    *wgpu.TextureFormat
	msaaTextureView  *wgpu.TextureView
	depthTextureView *wgpu.TextureView
	width, height    int

	presentMode wgpu.PresentMode
	sampleCount MSAASampleCount

	shaderModule     *wgpu.ShaderModule
	uniformLayout    *wgpu.BindGroupLayout
	textureLayout    *wgpu.BindGroupLayout
	pipelineLayout   *wgpu.PipelineLayout
	pipelines        map[wgpuPipelineKey]*wgpu.RenderPipeline
	sampler          *wgpu.Sampler
	whiteTexture     *wgpuTexture
	textures         map[uint32]*wgpuTexture
	nextTextureID    uint32
	uniformSlots     []wgpuUniformSlot
	vertexBuffer     *wgpu.Buffer
	vertexBufferSize uint64
	indexBuffer      *wgpu.Buffer
	indexBufferSize  uint64

	// Frame recording state, reset by Clear and Flush.
	projection common.Matrix4
	viewport   pipeline.Viewport
	depthTest  bool
	clearColor Color
	vertices   []gpuVertex
	indices    []uint32
	uniforms   []gpuDrawUniforms
	draws      []wgpuDraw
	// retired holds textures evicted while recorded draws may still bind them.
	retired []*wgpuTexture
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(w window.Window, forceFallbackAdapter bool, sampleCount MSAASampleCount) *wgpuRendererBackendImpl {
	return &wgpuRendererBackendImpl{
		mu:                   &sync.Mutex{},
		window:               w,
		forceFallbackAdapter: forceFallbackAdapter,
		presentMode:          wgpu.PresentModeFifo,
		sampleCount:          common.Coalesce(sampleCount, MSAA4x),
		pipelines:            make(map[wgpuPipelineKey]*wgpu.RenderPipeline),
		textures:             make(map[uint32]*wgpuTexture),
		projection:           common.ClipDepthZeroToOne(),
		depthTest:            true,
		clearColor:           ColorClearDefault,
	}
}

func (b *wgpuRendererBackendImpl) Initialize(state *drawState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.window == nil {
		return errors.New("wgpu backend requires a window")
	}
	if b.window.ClientAPI() != window.ClientAPINone {
		return fmt.Errorf("wgpu backend requires a window created with %s, got %s", window.ClientAPINone, b.window.ClientAPI())
	}

	runtime.LockOSThread()
	b.instance = wgpu.CreateInstance(nil)
	b.surface = b.instance.CreateSurface(b.window.SurfaceDescriptor())

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return fmt.Errorf("failed to request adapter: %w", err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{Label: "Fixed Function Device"})
	if err != nil {
		return fmt.Errorf("failed to request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	if err := b.createProgram(); err != nil {
		return err
	}

	b.depthTest = state.depthTest
	b.clearColor = state.clearColor
	return nil
}

// createProgram compiles the WGSL program and creates the layouts, sampler and default texture shared by every draw.
func (b *wgpuRendererBackendImpl) createProgram() error {
	var err error
	b.shaderModule, err = b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Fixed Function Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: fixedFunctionSource},
	})
	if err != nil {
		return fmt.Errorf("failed to compile fixed function shader: %w", err)
	}

	uniformEntry := wgpu.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
	}
	uniformEntry.Buffer.Type = wgpu.BufferBindingTypeUniform
	uniformEntry.Buffer.MinBindingSize = uint64((&gpuDrawUniforms{}).Size())
	b.uniformLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Draw Uniforms Layout",
		Entries: []wgpu.BindGroupLayoutEntry{uniformEntry},
	})
	if err != nil {
		return err
	}

	textureEntry := wgpu.BindGroupLayoutEntry{Binding: 0, Visibility: wgpu.ShaderStageFragment}
	textureEntry.Texture.SampleType = wgpu.TextureSampleTypeFloat
	textureEntry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	samplerEntry := wgpu.BindGroupLayoutEntry{Binding: 1, Visibility: wgpu.ShaderStageFragment}
	samplerEntry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	b.textureLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Texture Layout",
		Entries: []wgpu.BindGroupLayoutEntry{textureEntry, samplerEntry},
	})
	if err != nil {
		return err
	}

	b.pipelineLayout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Fixed Function Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{b.uniformLayout, b.textureLayout},
	})
	if err != nil {
		return err
	}

	b.sampler, err = b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Repeat Linear Sampler",
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return err
	}

	b.whiteTexture, err = b.createTexture("White Texture", []byte{255, 255, 255, 255}, 1, 1)
	return err
}

func (b *wgpuRendererBackendImpl) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetFrame()
	for id, t := range b.textures {
		t.release()
		delete(b.textures, id)
	}
	if b.whiteTexture != nil {
		b.whiteTexture.release()
		b.whiteTexture = nil
	}
	for _, s := range b.uniformSlots {
		s.bindGroup.Release()
		s.buffer.Release()
	}
	b.uniformSlots = nil
	for k, p := range b.pipelines {
		p.Release()
		delete(b.pipelines, k)
	}
	if b.vertexBuffer != nil {
		b.vertexBuffer.Release()
		b.vertexBuffer = nil
	}
	if b.indexBuffer != nil {
		b.indexBuffer.Release()
		b.indexBuffer = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
}

func (t *wgpuTexture) release() {
	if t.bindGroup != nil {
		t.bindGroup.Release()
	}
	if t.view != nil {
		t.view.Release()
	}
	if t.texture != nil {
		t.texture.Release()
	}
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.width, b.height = width, height
	if b.device == nil {
		return
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	count := uint32(b.sampleCount)
	if count > 1 {
		// The pass draws into the MSAA texture and resolves into the swapchain view.
		msaaTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: "MSAA Texture",
			Size: wgpu.Extent3D{
				Width:              uint32(width),
				Height:             uint32(height),
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        *b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			panic(err)
		}
		b.msaaTextureView, err = msaaTexture.CreateView(nil)
		if err != nil {
			panic(err)
		}
	} else {
		b.msaaTextureView = nil
	}

	// Depth texture sample count must match the color attachment.
	depthTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		panic(err)
	}
	b.depthTextureView, err = depthTexture.CreateView(nil)
	if err != nil {
		panic(err)
	}
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) SetDepthTest(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.depthTest = enabled
}

// Clear discards the draws recorded so far; the render pass clears with clearColor when it begins.
func (b *wgpuRendererBackendImpl) Clear(state *drawState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearColor = state.clearColor
	b.resetFrame()
}

func (b *wgpuRendererBackendImpl) resetFrame() {
	b.vertices = b.vertices[:0]
	b.indices = b.indices[:0]
	b.uniforms = b.uniforms[:0]
	b.draws = b.draws[:0]
	for _, t := range b.retired {
		t.release()
	}
	b.retired = b.retired[:0]
}

func (b *wgpuRendererBackendImpl) ApplyViewport(v pipeline.Viewport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.viewport = v
}

func (b *wgpuRendererBackendImpl) ApplyProjection(snap pipeline.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.projection = common.ClipDepthZeroToOne().Mul(snap.ProjectionMatrix())
}

// ApplyLights is a no-op: every lit draw snapshots the light slots into its own uniforms.
func (b *wgpuRendererBackendImpl) ApplyLights(*drawState) {}

// record appends one draw. indices are relative to verts and may be nil for non-indexed draws.
// key.depthTest requests depth testing; it is only honored while the backend has it enabled.
func (b *wgpuRendererBackendImpl) record(key wgpuPipelineKey, u gpuDrawUniforms, verts []gpuVertex, indices []uint32, tex *Texture) {
	if len(verts) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	key.depthTest = key.depthTest && b.depthTest

	d := wgpuDraw{
		key:         key,
		viewport:    b.viewport,
		slot:        len(b.uniforms),
		texture:     b.textureBindGroup(tex),
		firstVertex: uint32(len(b.vertices)),
		vertexCount: uint32(len(verts)),
		firstIndex:  uint32(len(b.indices)),
		indexCount:  uint32(len(indices)),
	}
	b.vertices = append(b.vertices, verts...)
	b.indices = append(b.indices, indices...)
	b.uniforms = append(b.uniforms, u)
	b.draws = append(b.draws, d)
}

func (b *wgpuRendererBackendImpl) textureBindGroup(tex *Texture) *wgpu.BindGroup {
	if t, ok := b.textures[tex.ID()]; ok {
		return t.bindGroup
	}
	if b.whiteTexture == nil {
		return nil
	}
	return b.whiteTexture.bindGroup
}

func (b *wgpuRendererBackendImpl) currentProjection() common.Matrix4 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.projection
}

func (b *wgpuRendererBackendImpl) DrawLineList(snap pipeline.Snapshot, segments []common.Vec3, color Color, _ float32) {
	key := wgpuPipelineKey{topology: wgpu.PrimitiveTopologyLineList, depthTest: true}
	u := newDrawUniforms(b.currentProjection(), snap.ModelView, Material{}, false, nil)
	b.record(key, u, flatVertices(segments, color), nil, nil)
}

func (b *wgpuRendererBackendImpl) DrawPoints(snap pipeline.Snapshot, points []common.Vec3, color Color, _ float32) {
	key := wgpuPipelineKey{topology: wgpu.PrimitiveTopologyPointList, depthTest: true}
	u := newDrawUniforms(b.currentProjection(), snap.ModelView, Material{}, false, nil)
	b.record(key, u, flatVertices(points, color), nil, nil)
}

func (b *wgpuRendererBackendImpl) DrawUnitQuads(snap pipeline.Snapshot, quads []UnitQuad, tex *Texture, tint Color) {
	mesh := unitQuadMesh(quads, tex, tint)
	key := wgpuPipelineKey{topology: wgpu.PrimitiveTopologyTriangleList, blend: blendColor}
	u := newDrawUniforms(b.currentProjection(), snap.ModelView, mesh.Material, false, nil)
	b.record(key, u, meshVertices(mesh, tint), mesh.Indices, tex)
}

func (b *wgpuRendererBackendImpl) DrawMeshes(snap pipeline.Snapshot, meshes []*Mesh, state *drawState) {
	for _, m := range meshes {
		key := wgpuPipelineKey{topology: wgpu.PrimitiveTopologyTriangleList, depthTest: true, cull: true}
		if m.Material.Transparent() {
			key.blend = blendAlpha
		}
		u := newDrawUniforms(b.currentProjection(), snap.ModelView, m.Material, true, &state.lights)
		b.record(key, u, meshVertices(m, m.Material.Diffuse), m.Indices, m.Texture)
	}
}

func (b *wgpuRendererBackendImpl) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.resetFrame()

	if b.device == nil {
		return errors.New("wgpu backend is not initialized")
	}
	if b.depthTextureView == nil {
		return errors.New("wgpu surface is not configured")
	}

	if err := b.uploadFrame(); err != nil {
		return err
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	defer surfaceTexture.Release()

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return err
	}
	defer view.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	color := wgpu.RenderPassColorAttachment{
		View:    view,
		LoadOp:  wgpu.LoadOpClear,
		StoreOp: wgpu.StoreOpStore,
		ClearValue: wgpu.Color{
			R: float64(b.clearColor[0]), G: float64(b.clearColor[1]), B: float64(b.clearColor[2]), A: float64(b.clearColor[3]),
		},
	}
	if b.sampleCount > 1 {
		// Don't store MSAA data, just resolve.
		color.View = b.msaaTextureView
		color.ResolveTarget = view
		color.StoreOp = wgpu.StoreOpDiscard
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{color},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthTextureView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})

	for _, d := range b.draws {
		if !b.setViewport(pass, d.viewport) {
			continue
		}
		p, err := b.renderPipeline(d.key)
		if err != nil {
			pass.End()
			return err
		}
		pass.SetPipeline(p)
		pass.SetBindGroup(0, b.uniformSlots[d.slot].bindGroup, nil)
		pass.SetBindGroup(1, d.texture, nil)
		pass.SetVertexBuffer(0, b.vertexBuffer, 0, wgpu.WholeSize)
		if d.indexCount > 0 {
			pass.SetIndexBuffer(b.indexBuffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
			pass.DrawIndexed(d.indexCount, 1, d.firstIndex, int32(d.firstVertex), 0)
		} else {
			pass.Draw(d.vertexCount, 1, d.firstVertex, 0)
		}
	}
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	b.surface.Present()
	return nil
}

// setViewport converts a bottom-left origin viewport to WebGPU's top-left origin and clamps it to the surface.
// It reports false when nothing of the viewport is visible.
func (b *wgpuRendererBackendImpl) setViewport(pass *wgpu.RenderPassEncoder, v pipeline.Viewport) bool {
	if v.Width <= 0 || v.Height <= 0 {
		return false
	}
	x := max(0, v.X)
	y := max(0, float32(b.height)-(v.Y+v.Height))
	w := min(v.Width, float32(b.width)-x)
	h := min(v.Height, float32(b.height)-y)
	if w <= 0 || h <= 0 {
		return false
	}
	pass.SetViewport(x, y, w, h, 0, 1)
	return true
}

// uploadFrame writes the frame's vertices, indices and per-draw uniforms, growing GPU buffers as needed.
func (b *wgpuRendererBackendImpl) uploadFrame() error {
	if len(b.vertices) > 0 {
		buf, size, err := b.ensureBuffer(b.vertexBuffer, b.vertexBufferSize, uint64(len(b.vertices)*(&gpuVertex{}).Size()), wgpu.BufferUsageVertex|wgpu.BufferUsageCopyDst, "Frame Vertex Buffer")
		if err != nil {
			return err
		}
		b.vertexBuffer, b.vertexBufferSize = buf, size
		b.queue.WriteBuffer(b.vertexBuffer, 0, common.SliceToBytes(b.vertices))
	}
	if len(b.indices) > 0 {
		buf, size, err := b.ensureBuffer(b.indexBuffer, b.indexBufferSize, uint64(len(b.indices)*4), wgpu.BufferUsageIndex|wgpu.BufferUsageCopyDst, "Frame Index Buffer")
		if err != nil {
			return err
		}
		b.indexBuffer, b.indexBufferSize = buf, size
		b.queue.WriteBuffer(b.indexBuffer, 0, common.SliceToBytes(b.indices))
	}

	for len(b.uniformSlots) < len(b.uniforms) {
		slot, err := b.newUniformSlot()
		if err != nil {
			return err
		}
		b.uniformSlots = append(b.uniformSlots, slot)
	}
	for i := range b.uniforms {
		b.queue.WriteBuffer(b.uniformSlots[i].buffer, 0, common.StructToBytes(&b.uniforms[i]))
	}
	return nil
}

// ensureBuffer returns buf when it holds at least need bytes, otherwise a new buffer sized to the next power of two.
func (b *wgpuRendererBackendImpl) ensureBuffer(buf *wgpu.Buffer, size, need uint64, usage wgpu.BufferUsage, label string) (*wgpu.Buffer, uint64, error) {
	if buf != nil && size >= need {
		return buf, size, nil
	}
	if buf != nil {
		buf.Release()
	}
	grown := uint64(1) << bits.Len64(need-1)
	created, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  grown,
		Usage: usage,
	})
	if err != nil {
		return nil, 0, err
	}
	return created, grown, nil
}

func (b *wgpuRendererBackendImpl) newUniformSlot() (wgpuUniformSlot, error) {
	size := uint64((&gpuDrawUniforms{}).Size())
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Draw Uniforms",
		Size:  size,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return wgpuUniformSlot{}, err
	}
	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Draw Uniforms Bind Group",
		Layout: b.uniformLayout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		}},
	})
	if err != nil {
		buf.Release()
		return wgpuUniformSlot{}, err
	}
	return wgpuUniformSlot{buffer: buf, bindGroup: bg}, nil
}

// renderPipeline returns the cached pipeline for key, creating it on first use.
func (b *wgpuRendererBackendImpl) renderPipeline(key wgpuPipelineKey) (*wgpu.RenderPipeline, error) {
	if p, ok := b.pipelines[key]; ok {
		return p, nil
	}

	target := wgpu.ColorTargetState{
		Format:    *b.surfaceFormat,
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	switch key.blend {
	case blendAlpha:
		target.Blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorSrcAlpha, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
			Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
		}
	case blendColor:
		target.Blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorSrc, DstFactor: wgpu.BlendFactorOneMinusSrc, Operation: wgpu.BlendOperationAdd},
			Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorSrc, DstFactor: wgpu.BlendFactorOneMinusSrc, Operation: wgpu.BlendOperationAdd},
		}
	}

	cull := wgpu.CullModeNone
	if key.cull {
		cull = wgpu.CullModeBack
	}
	depthCompare := wgpu.CompareFunctionLess
	if !key.depthTest {
		depthCompare = wgpu.CompareFunctionAlways
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("Fixed Function Pipeline %+v", key),
		Layout: b.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     b.shaderModule,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: uint64((&gpuVertex{}).Size()),
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
					{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
					{Format: wgpu.VertexFormatFloat32x4, Offset: 32, ShaderLocation: 3},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     b.shaderModule,
			EntryPoint: "fs_main",
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  key.topology,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cull,
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(b.sampleCount),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: key.depthTest,
			DepthCompare:      depthCompare,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create render pipeline: %w", err)
	}
	b.pipelines[key] = created
	return created, nil
}

func (b *wgpuRendererBackendImpl) UploadTexture(tex *Texture) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device == nil {
		return 0, errors.New("wgpu backend is not initialized")
	}
	rgba, err := common.ToRGBA(tex.Format, tex.Pixels, tex.Width, tex.Height)
	if err != nil {
		return 0, err
	}
	t, err := b.createTexture("Uploaded Texture", rgba, tex.Width, tex.Height)
	if err != nil {
		return 0, err
	}
	b.nextTextureID++
	b.textures[b.nextTextureID] = t
	return b.nextTextureID, nil
}

// createTexture uploads rgba with a full CPU-built mip chain and creates its bind group.
func (b *wgpuRendererBackendImpl) createTexture(label string, rgba []byte, width, height int) (*wgpuTexture, error) {
	levels := buildMipChain(rgba, width, height)

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8Unorm,
		MipLevelCount: uint32(len(levels)),
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}

	for i, l := range levels {
		b.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  tex,
				MipLevel: uint32(i),
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			l.pix,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(l.width * 4),
				RowsPerImage: uint32(l.height),
			},
			&wgpu.Extent3D{
				Width:              uint32(l.width),
				Height:             uint32(l.height),
				DepthOrArrayLayers: 1,
			},
		)
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label + " Bind Group",
		Layout: b.textureLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Sampler: b.sampler},
		},
	})
	if err != nil {
		view.Release()
		tex.Release()
		return nil, err
	}
	return &wgpuTexture{texture: tex, view: view, bindGroup: bg}, nil
}

func (b *wgpuRendererBackendImpl) EvictTexture(id uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.textures[id]
	if !ok {
		return
	}
	delete(b.textures, id)
	if len(b.draws) > 0 {
		b.retired = append(b.retired, t)
		return
	}
	t.release()
}
