package engine

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// RenderPass carries a fixed attachment policy: clear then store, for one
// color attachment and one depth attachment. Both attachments enter and
// leave the pass in their attachment-optimal layouts, so the recorder's
// barrier tracking stays valid across the pass.
type RenderPass struct {
	Context     *Context
	ColorFormat vk.Format
	DepthFormat vk.Format

	VKRenderPass vk.RenderPass
}

// NewRenderPass creates the clear-then-store pass used for every frame.
func NewRenderPass(ctx *Context, colorFormat, depthFormat vk.Format) (*RenderPass, error) {
	attachments := []vk.AttachmentDescription{
		{
			Format:         colorFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
		},
		{
			Format:         depthFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutDepthStencilAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}

	colorRef := vk.AttachmentReference{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}
	depthRef := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vk.AttachmentReference{colorRef},
		PDepthStencilAttachment: &depthRef,
	}

	dependency := vk.SubpassDependency{
		SrcSubpass: vk.SubpassExternal,
		DstSubpass: 0,
		SrcStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit |
			vk.PipelineStageEarlyFragmentTestsBit),
		DstStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit |
			vk.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit |
			vk.AccessDepthStencilAttachmentWriteBit),
	}

	var pass vk.RenderPass
	err := vk.Error(vk.CreateRenderPass(ctx.VKDevice, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}, nil, &pass))
	if err != nil {
		return nil, fmt.Errorf("error creating render pass: %w", err)
	}

	return &RenderPass{
		Context:      ctx,
		ColorFormat:  colorFormat,
		DepthFormat:  depthFormat,
		VKRenderPass: pass,
	}, nil
}

func (r *RenderPass) Destroy() {
	vk.DestroyRenderPass(r.Context.VKDevice, r.VKRenderPass, nil)
}

// Framebuffer binds one render target and one depth buffer to a RenderPass.
type Framebuffer struct {
	Context *Context
	Extent  vk.Extent2D

	VKFramebuffer vk.Framebuffer
}

// NewFramebuffer creates a framebuffer over the target and depth views.
func NewFramebuffer(ctx *Context, pass *RenderPass, target, depth *Image, extent vk.Extent2D) (*Framebuffer, error) {
	var fb vk.Framebuffer
	err := vk.Error(vk.CreateFramebuffer(ctx.VKDevice, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass.VKRenderPass,
		AttachmentCount: 2,
		PAttachments:    []vk.ImageView{target.VKView, depth.VKView},
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}, nil, &fb))
	if err != nil {
		return nil, fmt.Errorf("error creating framebuffer: %w", err)
	}
	return &Framebuffer{Context: ctx, Extent: extent, VKFramebuffer: fb}, nil
}

func (f *Framebuffer) Destroy() {
	vk.DestroyFramebuffer(f.Context.VKDevice, f.VKFramebuffer, nil)
}
