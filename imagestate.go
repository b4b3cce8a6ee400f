package engine

import (
	vk "github.com/vulkan-go/vulkan"
)

// ImageState is the synchronization state an image is left in by the last
// recorded command: which accesses may touch it, what layout it is in, which
// pipeline stages those accesses run in, and which queue family owns it. It
// is tracked at recording time, never queried from the driver.
type ImageState struct {
	Access      vk.AccessFlags
	Layout      vk.ImageLayout
	Stage       vk.PipelineStageFlags
	QueueFamily uint32
}

// IsSubsetOf reports whether a transition into s is redundant given the image
// is already in other: the layout matches, other's access and stage masks
// cover s's, and ownership is compatible.
func (s ImageState) IsSubsetOf(other ImageState) bool {
	if s.Layout != other.Layout {
		return false
	}
	if other.Access&s.Access != s.Access {
		return false
	}
	if other.Stage&s.Stage != s.Stage {
		return false
	}
	return s.QueueFamily == vk.QueueFamilyIgnored || s.QueueFamily == other.QueueFamily
}

// ImageStateIgnored is the state of an image with undefined content, used as
// the source of a transition that discards. The stage is top-of-pipe because
// a barrier's source stage mask may not be empty.
func ImageStateIgnored() ImageState {
	return ImageState{
		Access:      0,
		Layout:      vk.ImageLayoutUndefined,
		Stage:       vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		QueueFamily: vk.QueueFamilyIgnored,
	}
}

// ImageStateColorAttachment is the state required to render into an image.
func ImageStateColorAttachment() ImageState {
	return ImageState{
		Access:      vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		Layout:      vk.ImageLayoutColorAttachmentOptimal,
		Stage:       vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		QueueFamily: vk.QueueFamilyIgnored,
	}
}

// ImageStateDepthStencilAttachment is the state required for depth testing.
func ImageStateDepthStencilAttachment() ImageState {
	return ImageState{
		Access:      vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
		Layout:      vk.ImageLayoutDepthStencilAttachmentOptimal,
		Stage:       vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit),
		QueueFamily: vk.QueueFamilyIgnored,
	}
}

// ImageStateTransferSource is the state required to copy or blit from an
// image.
func ImageStateTransferSource() ImageState {
	return ImageState{
		Access:      vk.AccessFlags(vk.AccessTransferReadBit),
		Layout:      vk.ImageLayoutTransferSrcOptimal,
		Stage:       vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		QueueFamily: vk.QueueFamilyIgnored,
	}
}

// ImageStateTransferDestination is the state required to copy or blit into an
// image.
func ImageStateTransferDestination() ImageState {
	return ImageState{
		Access:      vk.AccessFlags(vk.AccessTransferWriteBit),
		Layout:      vk.ImageLayoutTransferDstOptimal,
		Stage:       vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		QueueFamily: vk.QueueFamilyIgnored,
	}
}

// ImageStatePresent is the state a swapchain image must be in before it is
// handed to the presentation engine.
func ImageStatePresent() ImageState {
	return ImageState{
		Access:      vk.AccessFlags(vk.AccessTransferReadBit),
		Layout:      vk.ImageLayoutPresentSrc,
		Stage:       vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		QueueFamily: vk.QueueFamilyIgnored,
	}
}

// ImageStateShaderRead is the state required to sample an image from a
// fragment shader.
func ImageStateShaderRead() ImageState {
	return ImageState{
		Access:      vk.AccessFlags(vk.AccessShaderReadBit),
		Layout:      vk.ImageLayoutShaderReadOnlyOptimal,
		Stage:       vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		QueueFamily: vk.QueueFamilyIgnored,
	}
}
