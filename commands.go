package engine

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Range is a half-open [Start, End) range of vertices, indices or instances.
type Range struct {
	Start uint32
	End   uint32
}

func (r Range) Count() uint32 {
	return r.End - r.Start
}

// SemaphoreStage pairs a semaphore with the pipeline stage it gates.
type SemaphoreStage struct {
	Semaphore vk.Semaphore
	Stage     vk.PipelineStageFlagBits
}

// Commands records one-shot work into a command buffer. Recording methods
// chain on the receiver; Submit ends the recording and hands it to a queue.
// A Commands must not be reused after Submit; take a fresh one per frame.
type Commands struct {
	Context *Context

	VKCommandBuffer vk.CommandBuffer

	submitted bool
}

// NewCommands resets the buffer and begins a one-time-submit recording.
func NewCommands(ctx *Context, buffer vk.CommandBuffer) (*Commands, error) {
	err := vk.Error(vk.ResetCommandBuffer(buffer, 0))
	if err != nil {
		return nil, fmt.Errorf("error resetting command buffer: %w", err)
	}
	err = vk.Error(vk.BeginCommandBuffer(buffer, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}))
	if err != nil {
		return nil, fmt.Errorf("error beginning command buffer: %w", err)
	}
	return &Commands{Context: ctx, VKCommandBuffer: buffer}, nil
}

// TransitionImageLayout records an unconditional barrier moving image from
// its tracked state into newState, then updates the tracked state.
func (c *Commands) TransitionImageLayout(image *Image, newState ImageState) *Commands {
	old := image.State

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       old.Access,
		DstAccessMask:       newState.Access,
		OldLayout:           old.Layout,
		NewLayout:           newState.Layout,
		SrcQueueFamilyIndex: old.QueueFamily,
		DstQueueFamilyIndex: newState.QueueFamily,
		Image:               image.VKImage,
		SubresourceRange:    image.Attributes.SubresourceRange,
	}
	// Ownership transfer needs both families; anything else must pass
	// Ignored on both sides.
	if old.QueueFamily == vk.QueueFamilyIgnored || newState.QueueFamily == vk.QueueFamilyIgnored {
		barrier.SrcQueueFamilyIndex = vk.QueueFamilyIgnored
		barrier.DstQueueFamilyIndex = vk.QueueFamilyIgnored
	}

	vk.CmdPipelineBarrier(c.VKCommandBuffer,
		old.Stage, newState.Stage, 0,
		0, nil, 0, nil,
		1, []vk.ImageMemoryBarrier{barrier})

	image.State = newState
	return c
}

// EnsureImageLayout transitions image into target unless the tracked state
// already covers it, in which case nothing is recorded.
func (c *Commands) EnsureImageLayout(image *Image, target ImageState) *Commands {
	if target.IsSubsetOf(image.State) {
		return c
	}
	return c.TransitionImageLayout(image, target)
}

// MemoryBarrier records a global memory barrier between two stages, used to
// make staged uploads visible to their first consumers.
func (c *Commands) MemoryBarrier(srcStage, dstStage vk.PipelineStageFlagBits, srcAccess, dstAccess vk.AccessFlagBits) *Commands {
	vk.CmdPipelineBarrier(c.VKCommandBuffer,
		vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage), 0,
		1, []vk.MemoryBarrier{{
			SType:         vk.StructureTypeMemoryBarrier,
			SrcAccessMask: vk.AccessFlags(srcAccess),
			DstAccessMask: vk.AccessFlags(dstAccess),
		}},
		0, nil, 0, nil)
	return c
}

// CopyBuffer records a copy of size bytes between two buffers.
func (c *Commands) CopyBuffer(src, dst *Buffer, srcOffset, dstOffset, size uint64) *Commands {
	vk.CmdCopyBuffer(c.VKCommandBuffer, src.VKBuffer, dst.VKBuffer, 1, []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(srcOffset),
		DstOffset: vk.DeviceSize(dstOffset),
		Size:      vk.DeviceSize(size),
	}})
	return c
}

// CopyBufferToImage ensures dst is a transfer destination and records a copy
// of tightly packed texels covering dst's whole extent.
func (c *Commands) CopyBufferToImage(src *Buffer, srcOffset uint64, dst *Image) *Commands {
	c.EnsureImageLayout(dst, ImageStateTransferDestination())
	vk.CmdCopyBufferToImage(c.VKCommandBuffer, src.VKBuffer, dst.VKImage,
		vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
			BufferOffset:     vk.DeviceSize(srcOffset),
			ImageSubresource: dst.SubresourceLayers(),
			ImageExtent:      dst.Attributes.Extent,
		}})
	return c
}

// BlitImageExtent ensures transfer states on both images and records a
// scaling blit between the given extents with linear filtering.
func (c *Commands) BlitImageExtent(src *Image, srcExtent vk.Extent2D, dst *Image, dstExtent vk.Extent2D) *Commands {
	c.EnsureImageLayout(src, ImageStateTransferSource())
	c.EnsureImageLayout(dst, ImageStateTransferDestination())

	blit := vk.ImageBlit{
		SrcSubresource: src.SubresourceLayers(),
		SrcOffsets: [2]vk.Offset3D{
			{},
			{X: int32(srcExtent.Width), Y: int32(srcExtent.Height), Z: 1},
		},
		DstSubresource: dst.SubresourceLayers(),
		DstOffsets: [2]vk.Offset3D{
			{},
			{X: int32(dstExtent.Width), Y: int32(dstExtent.Height), Z: 1},
		},
	}
	vk.CmdBlitImage(c.VKCommandBuffer,
		src.VKImage, vk.ImageLayoutTransferSrcOptimal,
		dst.VKImage, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{blit}, vk.FilterLinear)
	return c
}

// BlitFullImage blits the whole of src over the whole of dst.
func (c *Commands) BlitFullImage(src, dst *Image) *Commands {
	return c.BlitImageExtent(src, src.Extent2D(), dst, dst.Extent2D())
}

// BeginRendering ensures the attachment states on target and depth, then
// begins the clear-then-store pass over the framebuffer's full area.
func (c *Commands) BeginRendering(pass *RenderPass, fb *Framebuffer, target, depth *Image, clearColor [4]float32) *Commands {
	c.EnsureImageLayout(target, ImageStateColorAttachment())
	c.EnsureImageLayout(depth, ImageStateDepthStencilAttachment())

	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(clearColor[:])
	clearValues[1].SetDepthStencil(1, 0)

	vk.CmdBeginRenderPass(c.VKCommandBuffer, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass.VKRenderPass,
		Framebuffer: fb.VKFramebuffer,
		RenderArea: vk.Rect2D{
			Extent: fb.Extent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}, vk.SubpassContentsInline)
	return c
}

func (c *Commands) EndRendering() *Commands {
	vk.CmdEndRenderPass(c.VKCommandBuffer)
	return c
}

// SetViewport sets a full-extent viewport with the standard depth range.
func (c *Commands) SetViewport(extent vk.Extent2D) *Commands {
	vk.CmdSetViewport(c.VKCommandBuffer, 0, 1, []vk.Viewport{{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	return c
}

func (c *Commands) SetScissor(extent vk.Extent2D) *Commands {
	vk.CmdSetScissor(c.VKCommandBuffer, 0, 1, []vk.Rect2D{{Extent: extent}})
	return c
}

func (c *Commands) BindPipeline(pipeline vk.Pipeline) *Commands {
	vk.CmdBindPipeline(c.VKCommandBuffer, vk.PipelineBindPointGraphics, pipeline)
	return c
}

func (c *Commands) BindVertexBuffer(buffer *Buffer) *Commands {
	vk.CmdBindVertexBuffers(c.VKCommandBuffer, 0, 1,
		[]vk.Buffer{buffer.VKBuffer}, []vk.DeviceSize{0})
	return c
}

// BindIndexBuffer binds buffer as 32-bit indices.
func (c *Commands) BindIndexBuffer(buffer *Buffer) *Commands {
	vk.CmdBindIndexBuffer(c.VKCommandBuffer, buffer.VKBuffer, 0, vk.IndexTypeUint32)
	return c
}

func (c *Commands) PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlagBits, data []byte) *Commands {
	vk.CmdPushConstants(c.VKCommandBuffer, layout, vk.ShaderStageFlags(stages),
		0, uint32(len(data)), unsafe.Pointer(&data[0]))
	return c
}

// Draw draws the given vertex range for the given instance range.
func (c *Commands) Draw(vertices, instances Range) *Commands {
	vk.CmdDraw(c.VKCommandBuffer, vertices.Count(), instances.Count(), vertices.Start, instances.Start)
	return c
}

// DrawIndexed draws the given index range for the given instance range.
func (c *Commands) DrawIndexed(indices, instances Range) *Commands {
	vk.CmdDrawIndexed(c.VKCommandBuffer, indices.Count(), instances.Count(), indices.Start, 0, instances.Start)
	return c
}

// Submit ends the recording and submits it to queue. wait and signal are
// optional semaphore/stage pairs; fence may be vk.NullFence.
func (c *Commands) Submit(queue *Queue, wait, signal *SemaphoreStage, fence vk.Fence) error {
	if c.submitted {
		return fmt.Errorf("command buffer already submitted")
	}

	err := vk.Error(vk.EndCommandBuffer(c.VKCommandBuffer))
	if err != nil {
		return fmt.Errorf("error ending command buffer: %w", err)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{c.VKCommandBuffer},
	}
	if wait != nil {
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{wait.Semaphore}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(wait.Stage)}
	}
	if signal != nil {
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{signal.Semaphore}
	}

	err = vk.Error(vk.QueueSubmit(queue.VKQueue, 1, []vk.SubmitInfo{submitInfo}, fence))
	if err != nil {
		return fmt.Errorf("error submitting command buffer: %w", err)
	}
	c.submitted = true
	return nil
}
