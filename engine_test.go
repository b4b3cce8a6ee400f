package engine

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/vulkan-go/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// newTestContext creates a headless context against a real driver, skipping
// the test when no loader or device is available.
func newTestContext(t *testing.T) *Context {
	t.Helper()

	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		t.Skipf("no Vulkan loader: %v", err)
	}
	if err := vk.Init(); err != nil {
		t.Skipf("Vulkan init failed: %v", err)
	}

	ctx, err := NewContext(ContextAttributes{App: &App{Name: "engine test"}})
	if err != nil {
		t.Skipf("no usable Vulkan device: %v", err)
	}
	return ctx
}

func TestContextQueues(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Destroy()

	if ctx.GraphicsQueue == nil || ctx.ComputeQueue == nil {
		t.Fatal("context is missing queues")
	}
	if ctx.GraphicsQueue.FamilyIndex != ctx.QueueFamilies.Graphics {
		t.Error("graphics queue family mismatch")
	}
}

func TestBufferRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Destroy()

	allocator := NewPoolAllocator(ctx)
	defer allocator.Destroy()

	buffer, err := NewBuffer(ctx, allocator, BufferAttributes{
		Name:     "roundtrip",
		Size:     256,
		Usage:    vk.BufferUsageTransferSrcBit,
		Location: MemoryLocationCPUToGPU,
	})
	if err != nil {
		t.Fatalf("creating buffer: %v", err)
	}
	defer buffer.Destroy(allocator)

	payload := []byte("through the mapping and back")
	if err := buffer.Write(payload, 32); err != nil {
		t.Fatalf("writing buffer: %v", err)
	}

	mapped, err := buffer.Allocation.Bytes()
	if err != nil {
		t.Fatalf("mapping buffer: %v", err)
	}
	if string(mapped[32:32+len(payload)]) != string(payload) {
		t.Error("mapped content does not match written payload")
	}
}

func TestDeviceOnlyBufferRejectsWrite(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Destroy()

	allocator := NewPoolAllocator(ctx)
	defer allocator.Destroy()

	buffer, err := NewBuffer(ctx, allocator, BufferAttributes{
		Name:     "device only",
		Size:     256,
		Usage:    vk.BufferUsageVertexBufferBit,
		Location: MemoryLocationDeviceOnly,
	})
	if err != nil {
		t.Fatalf("creating buffer: %v", err)
	}
	defer buffer.Destroy(allocator)

	if err := buffer.Write([]byte("nope"), 0); err != ErrNotHostVisible {
		t.Errorf("expected ErrNotHostVisible, got %v", err)
	}
}

func TestEnableLayerUnknown(t *testing.T) {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		t.Skipf("no Vulkan loader: %v", err)
	}
	if err := vk.Init(); err != nil {
		t.Skipf("Vulkan init failed: %v", err)
	}

	app := &App{Name: "engine test"}
	if _, err := app.EnableLayer("VK_LAYER_ENGINE_does_not_exist"); err == nil {
		t.Error("expected enabling an unknown layer to fail")
	}
	if len(app.EnabledLayers) != 0 {
		t.Error("failed enable mutated the layer list")
	}
}

func TestStagingBeltImageUpload(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Destroy()

	allocator := NewPoolAllocator(ctx)
	defer allocator.Destroy()

	belt, err := NewStagingBelt(ctx, allocator, 256)
	if err != nil {
		t.Fatalf("creating belt: %v", err)
	}
	defer belt.Destroy(allocator)

	img, err := NewImage(ctx, allocator, ImageAttributes{
		Name:             "upload target",
		Extent:           vk.Extent3D{Width: 4, Height: 4, Depth: 1},
		Format:           RenderTargetFormat,
		Usage:            vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit,
		Location:         MemoryLocationDeviceOnly,
		SubresourceRange: colorSubresourceRange(),
	})
	if err != nil {
		t.Fatalf("creating image: %v", err)
	}
	defer img.Destroy(allocator)

	pool, err := NewCommandPool(ctx, ctx.QueueFamilies.Transfer)
	if err != nil {
		t.Fatalf("creating command pool: %v", err)
	}
	defer pool.Destroy()

	buffers, err := pool.AllocateCommandBuffers(1)
	if err != nil {
		t.Fatalf("allocating command buffer: %v", err)
	}

	cmd, err := NewCommands(ctx, buffers[0])
	if err != nil {
		t.Fatalf("beginning commands: %v", err)
	}

	if err := belt.Write(make([]byte, 64)); err != nil {
		t.Fatalf("writing texels: %v", err)
	}
	belt.CopyImageTo(img, cmd)

	if belt.Pending() != 0 {
		t.Errorf("image copy left %d pending bytes", belt.Pending())
	}
	if !ImageStateTransferDestination().IsSubsetOf(img.State) {
		t.Errorf("image ended recording in %+v, want transfer destination", img.State)
	}

	fence, err := ctx.CreateFence(false)
	if err != nil {
		t.Fatalf("creating fence: %v", err)
	}
	defer ctx.DestroyFence(fence)

	if err := cmd.Submit(ctx.TransferQueue, nil, nil, fence); err != nil {
		t.Fatalf("submitting upload: %v", err)
	}
	if err := ctx.WaitForFence(fence); err != nil {
		t.Fatalf("waiting for upload: %v", err)
	}
	belt.Done()
}

// newPresentingContext creates a context bound to a hidden window, skipping
// when there is no display, loader or presentable device.
func newPresentingContext(t *testing.T) (*Context, *glfw.Window) {
	t.Helper()
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		t.Skipf("no display: %v", err)
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		t.Skip("glfw reports no Vulkan support")
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		glfw.Terminate()
		t.Skipf("Vulkan init failed: %v", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Visible, glfw.False)
	window, err := glfw.CreateWindow(320, 240, "engine test", nil, nil)
	if err != nil {
		glfw.Terminate()
		t.Skipf("creating window: %v", err)
	}

	app := &App{Name: "engine test"}
	for _, ext := range window.GetRequiredInstanceExtensions() {
		app.EnableExtension(ext)
	}

	ctx, err := NewContext(ContextAttributes{App: app, Window: window})
	if err != nil {
		window.Destroy()
		glfw.Terminate()
		t.Skipf("no presentable Vulkan device: %v", err)
	}

	t.Cleanup(func() {
		window.Destroy()
		glfw.Terminate()
	})
	return ctx, window
}

// blitFrameRenderer is the minimal scene hook for pacer tests: each frame
// transitions its slot's target so the pacer's blit has a defined source
// layout to work from.
type blitFrameRenderer struct {
	ctx       *Context
	allocator *PoolAllocator
	targets   []*Image
	resizes   int
}

func newBlitFrameRenderer(ctx *Context, slots int) *blitFrameRenderer {
	return &blitFrameRenderer{
		ctx:       ctx,
		allocator: NewPoolAllocator(ctx),
		targets:   make([]*Image, slots),
	}
}

func (r *blitFrameRenderer) Render(cmd *Commands, frameIndex int) (*Image, error) {
	target := r.targets[frameIndex]
	target.ResetState()
	cmd.TransitionImageLayout(target, ImageStateTransferDestination())
	return target, nil
}

func (r *blitFrameRenderer) Resize(extent vk.Extent2D) error {
	r.resizes++
	for i, target := range r.targets {
		if target != nil {
			target.Destroy(r.allocator)
		}
		var err error
		r.targets[i], err = NewRenderTarget(r.ctx, r.allocator,
			fmt.Sprintf("test target %d", i), extent)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *blitFrameRenderer) Destroy() {
	for _, target := range r.targets {
		if target != nil {
			target.Destroy(r.allocator)
		}
	}
	r.allocator.Destroy()
}

func TestWindowRendererFrameCycle(t *testing.T) {
	ctx, window := newPresentingContext(t)
	defer ctx.Destroy()

	const slots = 2
	renderer := newBlitFrameRenderer(ctx, slots)
	windowRenderer, err := NewWindowRenderer(ctx, window, renderer,
		WindowRendererAttributes{InFlightFramesCount: slots})
	if err != nil {
		t.Fatalf("creating window renderer: %v", err)
	}
	defer windowRenderer.Destroy()

	if !windowRenderer.Swapchain.Dirty {
		t.Fatal("fresh swapchain did not start dirty")
	}

	if err := windowRenderer.Render(); err != nil {
		t.Fatalf("first frame: %v", err)
	}

	if windowRenderer.Swapchain.Dirty {
		t.Error("first frame left the swapchain dirty")
	}
	if renderer.resizes != 1 {
		t.Errorf("expected one renderer resize on the first frame, got %d", renderer.resizes)
	}
	if windowRenderer.FrameIndex() != 1 {
		t.Errorf("expected slot 1 after one frame, got %d", windowRenderer.FrameIndex())
	}
	if len(windowRenderer.Swapchain.Images) == 0 {
		t.Fatal("first frame produced no swapchain images")
	}

	// The pacer blits from the produced target, which must leave it
	// transfer-source.
	if got := renderer.targets[0].State; !ImageStateTransferSource().IsSubsetOf(got) {
		t.Errorf("render target ended the frame in %+v, want transfer source", got)
	}

	// Each slot's fence is waited once per pass through the ring; 2N frames
	// take every slot through two full cycles.
	for i := 1; i < 2*slots; i++ {
		if err := windowRenderer.Render(); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if windowRenderer.FrameIndex() != 0 {
		t.Errorf("after 2N frames expected slot 0, got %d", windowRenderer.FrameIndex())
	}
	if renderer.resizes != 1 {
		t.Errorf("steady-state frames resized the renderer: %d resizes", renderer.resizes)
	}
}

func TestImageCreationAndState(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Destroy()

	allocator := NewPoolAllocator(ctx)
	defer allocator.Destroy()

	target, err := NewRenderTarget(ctx, allocator, "test target", vk.Extent2D{Width: 64, Height: 64})
	if err != nil {
		t.Fatalf("creating render target: %v", err)
	}
	defer target.Destroy(allocator)

	if !ImageStateIgnored().IsSubsetOf(target.State) {
		t.Error("fresh image is not in the ignored state")
	}

	target.State = ImageStateTransferSource()
	target.ResetState()
	if target.State.Layout != vk.ImageLayoutUndefined {
		t.Error("ResetState did not discard the tracked layout")
	}
}
