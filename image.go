package engine

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// ImageAttributes configures image creation.
type ImageAttributes struct {
	Name     string
	Extent   vk.Extent3D
	Format   vk.Format
	Usage    vk.ImageUsageFlagBits
	Location MemoryLocation
	Linear   bool
	// SubresourceRange selects aspect and mip/layer ranges for the view and
	// for every barrier recorded against this image.
	SubresourceRange vk.ImageSubresourceRange
}

// Image couples a native image with its view, its allocation and the
// synchronization State the last recorded command left it in. Images wrapped
// from an external owner (the swapchain) carry a nil Allocation.
type Image struct {
	Context    *Context
	Allocation *Allocation
	Attributes ImageAttributes
	State      ImageState

	VKImage vk.Image
	VKView  vk.ImageView
}

func colorSubresourceRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LevelCount: 1,
		LayerCount: 1,
	}
}

func depthSubresourceRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
		LevelCount: 1,
		LayerCount: 1,
	}
}

// NewImage creates an image, allocates memory for it and creates a 2D view
// covering its subresource range. The image starts in the Ignored state.
func NewImage(ctx *Context, allocator Allocator, attrs ImageAttributes) (*Image, error) {
	tiling := vk.ImageTilingOptimal
	if attrs.Linear {
		tiling = vk.ImageTilingLinear
	}

	var handle vk.Image
	err := vk.Error(vk.CreateImage(ctx.VKDevice, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        attrs.Format,
		Extent:        attrs.Extent,
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        tiling,
		Usage:         vk.ImageUsageFlags(attrs.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &handle))
	if err != nil {
		return nil, fmt.Errorf("error creating image '%s': %w", attrs.Name, err)
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(ctx.VKDevice, handle, &requirements)
	requirements.Deref()

	allocation, err := allocator.Allocate(AllocationCreateInfo{
		Name:           attrs.Name,
		Size:           uint64(requirements.Size),
		Alignment:      uint64(requirements.Alignment),
		MemoryTypeBits: requirements.MemoryTypeBits,
		Location:       attrs.Location,
		Linear:         attrs.Linear,
	})
	if err != nil {
		vk.DestroyImage(ctx.VKDevice, handle, nil)
		return nil, err
	}

	err = vk.Error(vk.BindImageMemory(ctx.VKDevice, handle,
		allocation.VKDeviceMemory(), vk.DeviceSize(allocation.Offset)))
	if err != nil {
		allocator.Free(allocation)
		vk.DestroyImage(ctx.VKDevice, handle, nil)
		return nil, fmt.Errorf("error binding image '%s': %w", attrs.Name, err)
	}

	img := &Image{
		Context:    ctx,
		Allocation: allocation,
		Attributes: attrs,
		State:      ImageStateIgnored(),
		VKImage:    handle,
	}
	if err := img.createView(); err != nil {
		allocator.Free(allocation)
		vk.DestroyImage(ctx.VKDevice, handle, nil)
		return nil, err
	}
	return img, nil
}

// NewRenderTarget creates a device-local color image the renderer can draw
// into, blit from, and sample.
func NewRenderTarget(ctx *Context, allocator Allocator, name string, extent vk.Extent2D) (*Image, error) {
	return NewImage(ctx, allocator, ImageAttributes{
		Name:   name,
		Extent: vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		Format: RenderTargetFormat,
		Usage: vk.ImageUsageColorAttachmentBit |
			vk.ImageUsageTransferSrcBit |
			vk.ImageUsageSampledBit,
		Location:         MemoryLocationDeviceOnly,
		SubresourceRange: colorSubresourceRange(),
	})
}

// NewDepthBuffer creates a device-local depth attachment.
func NewDepthBuffer(ctx *Context, allocator Allocator, name string, extent vk.Extent2D) (*Image, error) {
	return NewImage(ctx, allocator, ImageAttributes{
		Name:             name,
		Extent:           vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		Format:           DepthFormat,
		Usage:            vk.ImageUsageDepthStencilAttachmentBit,
		Location:         MemoryLocationDeviceOnly,
		SubresourceRange: depthSubresourceRange(),
	})
}

// WrapImage wraps an externally owned native image, creating only the view.
// Destroy releases the view but never the image or any memory.
func WrapImage(ctx *Context, handle vk.Image, attrs ImageAttributes) (*Image, error) {
	img := &Image{
		Context:    ctx,
		Attributes: attrs,
		State:      ImageStateIgnored(),
		VKImage:    handle,
	}
	if err := img.createView(); err != nil {
		return nil, err
	}
	return img, nil
}

func (i *Image) createView() error {
	err := vk.Error(vk.CreateImageView(i.Context.VKDevice, &vk.ImageViewCreateInfo{
		SType:            vk.StructureTypeImageViewCreateInfo,
		Image:            i.VKImage,
		ViewType:         vk.ImageViewType2d,
		Format:           i.Attributes.Format,
		SubresourceRange: i.Attributes.SubresourceRange,
	}, nil, &i.VKView))
	if err != nil {
		return fmt.Errorf("error creating view for image '%s': %w", i.Attributes.Name, err)
	}
	return nil
}

// ResetState declares the image's content undefined again, typically at the
// start of a frame before it is rendered over. Records nothing.
func (i *Image) ResetState() {
	i.State = ImageStateIgnored()
}

// SubresourceLayers derives the transfer subresource from the image's range.
func (i *Image) SubresourceLayers() vk.ImageSubresourceLayers {
	r := i.Attributes.SubresourceRange
	return vk.ImageSubresourceLayers{
		AspectMask:     r.AspectMask,
		MipLevel:       r.BaseMipLevel,
		BaseArrayLayer: r.BaseArrayLayer,
		LayerCount:     r.LayerCount,
	}
}

// Extent2D returns the image's extent without the depth dimension.
func (i *Image) Extent2D() vk.Extent2D {
	return vk.Extent2D{Width: i.Attributes.Extent.Width, Height: i.Attributes.Extent.Height}
}

// Destroy releases the view, and for owned images the image and its memory.
func (i *Image) Destroy(allocator Allocator) {
	vk.DestroyImageView(i.Context.VKDevice, i.VKView, nil)
	if i.Allocation == nil {
		return
	}
	vk.DestroyImage(i.Context.VKDevice, i.VKImage, nil)
	allocator.Free(i.Allocation)
}
