package engine

import (
	"fmt"
	"math"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// PresentationWindow is the two-method contract the engine needs from a
// window. *glfw.Window satisfies it.
type PresentationWindow interface {
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
	GetFramebufferSize() (int, int)
}

// Swapchain owns the surface and the presentable image set for one window.
// It starts dirty with no native object; the first Resize creates it, and
// every out-of-date signal marks it dirty again for recreation by the frame
// loop.
type Swapchain struct {
	Context *Context
	Window  PresentationWindow

	Format            vk.Format
	ColorSpace        vk.ColorSpace
	PresentMode       vk.PresentMode
	Extent            vk.Extent2D
	DesiredImageCount uint32

	// Images wrap the presentable images; they are owned by the swapchain
	// and only their views are destroyed on recreation.
	Images []*Image
	// Dirty means the native object is missing or stale and must be
	// recreated before the next acquire.
	Dirty bool

	VKSurface   vk.Surface
	VKSwapchain vk.Swapchain
}

// NewSwapchain creates the surface and negotiates format, present mode and
// image count. No native swapchain exists yet; the swapchain is born dirty.
func NewSwapchain(ctx *Context, window PresentationWindow) (*Swapchain, error) {
	surfacePtr, err := window.CreateWindowSurface(ctx.Instance.VKInstance, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating window surface: %w", err)
	}
	surface := vk.SurfaceFromPointer(surfacePtr)

	s := &Swapchain{
		Context:     ctx,
		Window:      window,
		VKSurface:   surface,
		VKSwapchain: vk.NullSwapchain,
		Dirty:       true,
	}

	formats, err := ctx.PhysicalDevice.GetSurfaceFormats(surface)
	if err != nil {
		s.destroySurface()
		return nil, fmt.Errorf("error querying surface formats: %w", err)
	}
	preferred := formats.Filter(func(f vk.SurfaceFormat) bool {
		return f.Format == RenderTargetFormat
	})
	if len(preferred) == 0 {
		s.destroySurface()
		return nil, fmt.Errorf("surface does not support the engine's render target format")
	}
	s.Format = preferred[0].Format
	s.ColorSpace = preferred[0].ColorSpace

	modes, err := ctx.PhysicalDevice.GetSurfacePresentModes(surface)
	if err != nil {
		s.destroySurface()
		return nil, fmt.Errorf("error querying present modes: %w", err)
	}
	s.PresentMode = vk.PresentModeFifo
	if modes.Contains(vk.PresentModeMailbox) {
		s.PresentMode = vk.PresentModeMailbox
	}

	caps, err := ctx.PhysicalDevice.GetSurfaceCapabilities(surface)
	if err != nil {
		s.destroySurface()
		return nil, fmt.Errorf("error querying surface capabilities: %w", err)
	}
	s.DesiredImageCount = caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && s.DesiredImageCount > caps.MaxImageCount {
		s.DesiredImageCount = caps.MaxImageCount
	}

	return s, nil
}

// Resize recreates the native swapchain at the window's current framebuffer
// size. A zero-area framebuffer is a no-op which leaves the dirty flag and
// the image set untouched, so a minimized window parks the frame loop
// instead of erroring.
func (s *Swapchain) Resize() error {
	width, height := s.Window.GetFramebufferSize()
	if width == 0 || height == 0 {
		return nil
	}

	caps, err := s.Context.PhysicalDevice.GetSurfaceCapabilities(s.VKSurface)
	if err != nil {
		return fmt.Errorf("error querying surface capabilities: %w", err)
	}

	extent := vk.Extent2D{Width: uint32(width), Height: uint32(height)}
	caps.CurrentExtent.Deref()
	if caps.CurrentExtent.Width != math.MaxUint32 {
		extent = caps.CurrentExtent
	}

	old := s.VKSwapchain

	var swapchain vk.Swapchain
	err = vk.Error(vk.CreateSwapchain(s.Context.VKDevice, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.VKSurface,
		MinImageCount:    s.DesiredImageCount,
		ImageFormat:      s.Format,
		ImageColorSpace:  s.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit |
			vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      s.PresentMode,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}, nil, &swapchain))
	if err != nil {
		return fmt.Errorf("error creating swapchain: %w", err)
	}

	for _, img := range s.Images {
		img.Destroy(nil)
	}
	if old != vk.NullSwapchain {
		vk.DestroySwapchain(s.Context.VKDevice, old, nil)
	}

	s.VKSwapchain = swapchain
	s.Extent = extent
	s.Dirty = false

	var imageCount uint32
	err = vk.Error(vk.GetSwapchainImages(s.Context.VKDevice, s.VKSwapchain, &imageCount, nil))
	if err != nil {
		return fmt.Errorf("error querying swapchain images: %w", err)
	}
	handles := make([]vk.Image, imageCount)
	err = vk.Error(vk.GetSwapchainImages(s.Context.VKDevice, s.VKSwapchain, &imageCount, handles))
	if err != nil {
		return fmt.Errorf("error querying swapchain images: %w", err)
	}

	s.Images = make([]*Image, imageCount)
	for i, handle := range handles {
		s.Images[i], err = WrapImage(s.Context, handle, ImageAttributes{
			Name:   fmt.Sprintf("swapchain image %d", i),
			Extent: vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
			Format: s.Format,
			Usage: vk.ImageUsageColorAttachmentBit |
				vk.ImageUsageTransferDstBit,
			Location:         MemoryLocationUnknown,
			SubresourceRange: colorSubresourceRange(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// AcquireNextImage blocks until an image is available and returns its index.
// A suboptimal result marks the swapchain dirty but the index stays usable
// for this frame. Out-of-date fails; the frame loop reacts by marking dirty
// and skipping the frame.
func (s *Swapchain) AcquireNextImage(semaphore vk.Semaphore) (uint32, error) {
	var index uint32
	res := vk.AcquireNextImage(s.Context.VKDevice, s.VKSwapchain, math.MaxUint64,
		semaphore, vk.NullFence, &index)
	switch res {
	case vk.Success:
		return index, nil
	case vk.Suboptimal:
		s.Dirty = true
		return index, nil
	default:
		return 0, fmt.Errorf("error acquiring swapchain image: %w", vk.Error(res))
	}
}

// Present hands image index to the presentation engine. Out-of-date and
// suboptimal mark the swapchain dirty without failing the frame.
func (s *Swapchain) Present(index uint32, waitSemaphore vk.Semaphore) error {
	res := vk.QueuePresent(s.Context.PresentQueue.VKQueue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{waitSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.VKSwapchain},
		PImageIndices:      []uint32{index},
	})
	switch res {
	case vk.Success:
		return nil
	case vk.Suboptimal, vk.ErrorOutOfDate:
		s.Dirty = true
		return nil
	default:
		return fmt.Errorf("error presenting swapchain image: %w", vk.Error(res))
	}
}

func (s *Swapchain) destroySurface() {
	vk.DestroySurface(s.Context.Instance.VKInstance, s.VKSurface, nil)
}

// Destroy releases the image views, the native swapchain and the surface.
func (s *Swapchain) Destroy() {
	for _, img := range s.Images {
		img.Destroy(nil)
	}
	s.Images = nil
	if s.VKSwapchain != vk.NullSwapchain {
		vk.DestroySwapchain(s.Context.VKDevice, s.VKSwapchain, nil)
	}
	s.destroySurface()
}
