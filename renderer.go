package engine

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
	lin "github.com/xlab/linmath"
)

// Camera produces the view-projection half of the push constant matrix.
type Camera struct {
	Eye    lin.Vec3
	Center lin.Vec3
	Up     lin.Vec3

	FOVDegrees float32
	Near       float32
	Far        float32
}

// ViewProjection builds the projection*view matrix for the given aspect
// ratio, with the Y flip Vulkan clip space wants.
func (c *Camera) ViewProjection(extent vk.Extent2D) lin.Mat4x4 {
	var view, proj, vp lin.Mat4x4
	view.LookAt(&c.Eye, &c.Center, &c.Up)
	ratio := float32(extent.Width) / float32(extent.Height)
	proj.Perspective(lin.DegreesToRadians(c.FOVDegrees), ratio, c.Near, c.Far)
	proj[1][1] *= -1
	vp.Mult(&proj, &view)
	return vp
}

// RendererAttributes configures NewRenderer.
type RendererAttributes struct {
	// ShadersDir holds the compiled <name>.vert.spv / <name>.frag.spv pair.
	ShadersDir string
	// ShaderName selects the shader pair; defaults to "mesh".
	ShaderName string
	// InFlightFramesCount must match the pacer's slot count; defaults to 2.
	InFlightFramesCount int
	// SupersampleFactor scales the render targets relative to the window;
	// the pacer's blit filters the result back down. Defaults to 2.
	SupersampleFactor uint32
	ClearColor        [4]float32
}

// rendererSlot is the per-frame render target set. Each in-flight frame
// draws into its own target so slots never alias.
type rendererSlot struct {
	target      *Image
	depth       *Image
	framebuffer *Framebuffer
}

func (s *rendererSlot) destroy(allocator Allocator) {
	if s.framebuffer != nil {
		s.framebuffer.Destroy()
	}
	if s.depth != nil {
		s.depth.Destroy(allocator)
	}
	if s.target != nil {
		s.target.Destroy(allocator)
	}
}

// Renderer is the FrameRenderer the example programs drive: one mesh drawn
// with a camera fed through push constants into supersampled per-slot render
// targets.
type Renderer struct {
	Context *Context

	// Camera and Model are read every frame; mutate them between frames to
	// animate.
	Camera Camera
	Model  lin.Mat4x4

	attrs     rendererConfig
	allocator *PoolAllocator
	pass      *RenderPass
	belt      *StagingBelt
	geometry  *GPUGeometry

	pipeline       vk.Pipeline
	pipelineLayout vk.PipelineLayout

	slots  []rendererSlot
	extent vk.Extent2D
	staged bool
}

type rendererConfig struct {
	slotCount         int
	supersampleFactor uint32
	clearColor        [4]float32
}

// NewRenderer creates the render pass, the pipeline and the device-local
// geometry buffers. Render targets appear at the first Resize.
func NewRenderer(ctx *Context, geometry Geometry, attrs RendererAttributes) (*Renderer, error) {
	if attrs.ShaderName == "" {
		attrs.ShaderName = "mesh"
	}
	if attrs.InFlightFramesCount <= 0 {
		attrs.InFlightFramesCount = 2
	}
	if attrs.SupersampleFactor == 0 {
		attrs.SupersampleFactor = 2
	}

	r := &Renderer{
		Context: ctx,
		Camera: Camera{
			Eye:        lin.Vec3{2, 2, 2},
			Up:         lin.Vec3{0, 0, 1},
			FOVDegrees: 45,
			Near:       0.1,
			Far:        100,
		},
		attrs: rendererConfig{
			slotCount:         attrs.InFlightFramesCount,
			supersampleFactor: attrs.SupersampleFactor,
			clearColor:        attrs.ClearColor,
		},
		allocator: NewPoolAllocator(ctx),
	}
	r.Model.Identity()

	var err error
	r.pass, err = NewRenderPass(ctx, RenderTargetFormat, DepthFormat)
	if err != nil {
		r.allocator.Destroy()
		return nil, err
	}

	config := NewGraphicsPipelineConfig(ctx)
	config.AddPushConstantRange(vk.ShaderStageVertexBit, uint32(unsafe.Sizeof(lin.Mat4x4{})))
	err = config.AddShaderStageFromFile(
		ShaderPath(attrs.ShadersDir, attrs.ShaderName, "vert"), "main", vk.ShaderStageVertexBit)
	if err == nil {
		err = config.AddShaderStageFromFile(
			ShaderPath(attrs.ShadersDir, attrs.ShaderName, "frag"), "main", vk.ShaderStageFragmentBit)
	}
	if err == nil {
		r.pipeline, r.pipelineLayout, err = config.CreatePipeline(r.pass)
	}
	config.Destroy()
	if err != nil {
		r.pass.Destroy()
		r.allocator.Destroy()
		return nil, err
	}

	r.geometry, err = NewGPUGeometry(ctx, r.allocator, "mesh", geometry)
	if err == nil {
		r.belt, err = NewStagingBelt(ctx, r.allocator, geometry.Size())
	}
	if err != nil {
		r.destroyPipeline()
		r.pass.Destroy()
		r.allocator.Destroy()
		return nil, err
	}

	return r, nil
}

// Render records one frame into the slot's render target and returns it for
// the pacer to blit. The first frame also records the geometry upload.
func (r *Renderer) Render(cmd *Commands, frameIndex int) (*Image, error) {
	if len(r.slots) == 0 {
		return nil, fmt.Errorf("renderer has no render targets; Resize was never called")
	}
	slot := &r.slots[frameIndex]

	if !r.staged {
		if err := r.belt.StageGeometry(r.geometry, cmd); err != nil {
			return nil, fmt.Errorf("error staging geometry: %w", err)
		}
		cmd.MemoryBarrier(vk.PipelineStageTransferBit, vk.PipelineStageVertexInputBit,
			vk.AccessTransferWriteBit, vk.AccessVertexAttributeReadBit|vk.AccessIndexReadBit)
		r.staged = true
	}

	mvp := r.Camera.ViewProjection(r.extent)
	var pushed lin.Mat4x4
	pushed.Mult(&mvp, &r.Model)

	slot.target.ResetState()
	slot.depth.ResetState()

	cmd.BeginRendering(r.pass, slot.framebuffer, slot.target, slot.depth, r.attrs.clearColor).
		SetViewport(r.extent).
		SetScissor(r.extent).
		BindPipeline(r.pipeline).
		BindVertexBuffer(r.geometry.VertexBuffer).
		BindIndexBuffer(r.geometry.IndexBuffer).
		PushConstants(r.pipelineLayout, vk.ShaderStageVertexBit,
			ToBytes(unsafe.Pointer(&pushed), int(unsafe.Sizeof(pushed)))).
		DrawIndexed(r.geometry.IndexRange(), Range{Start: 0, End: 1}).
		EndRendering()

	return slot.target, nil
}

// Resize recreates the per-slot render targets at the supersampled extent.
// The pacer calls this with the device idle.
func (r *Renderer) Resize(extent vk.Extent2D) error {
	for i := range r.slots {
		r.slots[i].destroy(r.allocator)
	}

	r.extent = vk.Extent2D{
		Width:  extent.Width * r.attrs.supersampleFactor,
		Height: extent.Height * r.attrs.supersampleFactor,
	}

	r.slots = make([]rendererSlot, r.attrs.slotCount)
	for i := range r.slots {
		slot := &r.slots[i]
		var err error
		slot.target, err = NewRenderTarget(r.Context, r.allocator,
			fmt.Sprintf("render target %d", i), r.extent)
		if err == nil {
			slot.depth, err = NewDepthBuffer(r.Context, r.allocator,
				fmt.Sprintf("depth buffer %d", i), r.extent)
		}
		if err == nil {
			slot.framebuffer, err = NewFramebuffer(r.Context, r.pass, slot.target, slot.depth, r.extent)
		}
		if err != nil {
			return fmt.Errorf("error creating render targets: %w", err)
		}
	}
	return nil
}

func (r *Renderer) destroyPipeline() {
	vk.DestroyPipeline(r.Context.VKDevice, r.pipeline, nil)
	vk.DestroyPipelineLayout(r.Context.VKDevice, r.pipelineLayout, nil)
}

// Destroy tears the renderer down. The pacer calls this with the device
// idle.
func (r *Renderer) Destroy() {
	for i := range r.slots {
		r.slots[i].destroy(r.allocator)
	}
	r.belt.Destroy(r.allocator)
	r.geometry.Destroy(r.allocator)
	r.destroyPipeline()
	r.pass.Destroy()
	r.allocator.Destroy()
}
