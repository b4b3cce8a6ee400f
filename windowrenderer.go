package engine

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// FrameRenderer is the scene hook the pacer drives. Render records the
// frame's work into cmd and returns the image the pacer should blit to the
// swapchain. Resize is called after the swapchain changes extent.
type FrameRenderer interface {
	Render(cmd *Commands, frameIndex int) (*Image, error)
	Resize(extent vk.Extent2D) error
	Destroy()
}

// Frame is one in-flight frame slot.
type Frame struct {
	VKCommandBuffer vk.CommandBuffer

	ImageAvailableSemaphore vk.Semaphore
	RenderFinishedSemaphore vk.Semaphore
	InFlightFence           vk.Fence
}

// WindowRendererAttributes configures NewWindowRenderer.
type WindowRendererAttributes struct {
	// InFlightFramesCount is the number of frame slots; defaults to 2.
	InFlightFramesCount int
}

// WindowRenderer paces frames for one window over a fixed ring of in-flight
// slots: wait for the slot's fence, recreate a dirty swapchain, acquire,
// record through the FrameRenderer, blit the result to the swapchain image
// and present. Resize storms are absorbed by skipping frames.
type WindowRenderer struct {
	Context     *Context
	Window      PresentationWindow
	Swapchain   *Swapchain
	CommandPool *CommandPool
	Renderer    FrameRenderer

	frames     []Frame
	frameIndex int
}

// NewWindowRenderer creates the swapchain, the command pool and the frame
// slots. The swapchain starts dirty; the first Render creates it and sizes
// the renderer.
func NewWindowRenderer(ctx *Context, window PresentationWindow, renderer FrameRenderer, attrs WindowRendererAttributes) (*WindowRenderer, error) {
	if attrs.InFlightFramesCount <= 0 {
		attrs.InFlightFramesCount = 2
	}

	swapchain, err := NewSwapchain(ctx, window)
	if err != nil {
		return nil, err
	}

	pool, err := NewCommandPool(ctx, ctx.QueueFamilies.Graphics)
	if err != nil {
		swapchain.Destroy()
		return nil, fmt.Errorf("error creating command pool: %w", err)
	}

	buffers, err := pool.AllocateCommandBuffers(attrs.InFlightFramesCount)
	if err != nil {
		pool.Destroy()
		swapchain.Destroy()
		return nil, fmt.Errorf("error allocating frame command buffers: %w", err)
	}

	w := &WindowRenderer{
		Context:     ctx,
		Window:      window,
		Swapchain:   swapchain,
		CommandPool: pool,
		Renderer:    renderer,
		frames:      make([]Frame, attrs.InFlightFramesCount),
	}

	for i := range w.frames {
		frame := &w.frames[i]
		frame.VKCommandBuffer = buffers[i]
		if frame.ImageAvailableSemaphore, err = ctx.CreateSemaphore(); err != nil {
			return nil, fmt.Errorf("error creating frame semaphore: %w", err)
		}
		if frame.RenderFinishedSemaphore, err = ctx.CreateSemaphore(); err != nil {
			return nil, fmt.Errorf("error creating frame semaphore: %w", err)
		}
		// Signaled, so the first wait on a fresh slot passes.
		if frame.InFlightFence, err = ctx.CreateFence(true); err != nil {
			return nil, fmt.Errorf("error creating frame fence: %w", err)
		}
	}

	return w, nil
}

// FrameIndex returns the current slot index.
func (w *WindowRenderer) FrameIndex() int {
	return w.frameIndex
}

func (w *WindowRenderer) advance() {
	w.frameIndex = (w.frameIndex + 1) % len(w.frames)
}

func (w *WindowRenderer) degenerate() bool {
	width, height := w.Window.GetFramebufferSize()
	return width == 0 || height == 0
}

// Render runs one frame. A minimized window or a stale swapchain never
// fails the call; the frame is skipped and a later call picks up again.
func (w *WindowRenderer) Render() error {
	// A zero-area window can never present; park before touching the
	// device. A dirty swapchain stays dirty for the next sized frame.
	if w.degenerate() {
		return nil
	}

	frame := &w.frames[w.frameIndex]

	if err := w.Context.WaitForFence(frame.InFlightFence); err != nil {
		return fmt.Errorf("error waiting for frame fence: %w", err)
	}

	if w.Swapchain.Dirty {
		if err := w.Context.WaitIdle(); err != nil {
			return err
		}
		if err := w.Swapchain.Resize(); err != nil {
			return err
		}
		// Still dirty means the window is zero-area; park until it isn't.
		if w.Swapchain.Dirty {
			return nil
		}
		if err := w.Renderer.Resize(w.Swapchain.Extent); err != nil {
			return err
		}
	}

	index, err := w.Swapchain.AcquireNextImage(frame.ImageAvailableSemaphore)
	if err != nil {
		w.Swapchain.Dirty = true
		return nil
	}

	if err := w.Context.ResetFence(frame.InFlightFence); err != nil {
		return fmt.Errorf("error resetting frame fence: %w", err)
	}

	cmd, err := NewCommands(w.Context, frame.VKCommandBuffer)
	if err != nil {
		return err
	}

	target, err := w.Renderer.Render(cmd, w.frameIndex)
	if err != nil {
		return fmt.Errorf("error rendering frame: %w", err)
	}

	// The swapchain image's previous content is irrelevant; discard it by
	// transitioning from undefined.
	swapchainImage := w.Swapchain.Images[index]
	swapchainImage.ResetState()

	cmd.TransitionImageLayout(swapchainImage, ImageStateTransferDestination()).
		BlitImageExtent(target, target.Extent2D(), swapchainImage, w.Swapchain.Extent).
		TransitionImageLayout(swapchainImage, ImageStatePresent())

	err = cmd.Submit(w.Context.GraphicsQueue,
		&SemaphoreStage{Semaphore: frame.ImageAvailableSemaphore, Stage: vk.PipelineStageTransferBit},
		&SemaphoreStage{Semaphore: frame.RenderFinishedSemaphore},
		frame.InFlightFence)
	if err != nil {
		return err
	}

	if err := w.Swapchain.Present(index, frame.RenderFinishedSemaphore); err != nil {
		return err
	}

	w.advance()
	return nil
}

// Resize marks the swapchain stale; the next Render recreates it. Safe to
// call from window resize callbacks.
func (w *WindowRenderer) Resize() {
	w.Swapchain.Dirty = true
}

// Destroy waits for the device to go idle, then tears everything down
// innermost first.
func (w *WindowRenderer) Destroy() {
	w.Context.WaitIdle()
	w.Renderer.Destroy()
	for i := range w.frames {
		frame := &w.frames[i]
		w.Context.DestroySemaphore(frame.ImageAvailableSemaphore)
		w.Context.DestroySemaphore(frame.RenderFinishedSemaphore)
		w.Context.DestroyFence(frame.InFlightFence)
	}
	w.CommandPool.Destroy()
	w.Swapchain.Destroy()
}
