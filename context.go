package engine

import (
	"errors"
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// RenderTargetFormat and DepthFormat are the formats every render target and
// depth buffer in this engine is created with. They are validated once at
// context creation.
const (
	RenderTargetFormat = vk.FormatB8g8r8a8Unorm
	DepthFormat        = vk.FormatD32Sfloat
)

// ContextAttributes configures NewContext.
type ContextAttributes struct {
	App *App
	// Window, when set, is used to create a probe surface so the picker can
	// check present support. It may be nil for headless contexts.
	Window PresentationWindow
	// Picker selects the physical device and queue families. Defaults to
	// SingleQueueFamily.
	Picker QueueFamilyPicker
}

// Context owns the instance, the logical device and the per-role queues.
// It is the root object of the engine; everything else is created from it
// and must be destroyed before it.
type Context struct {
	Instance       *Instance
	PhysicalDevice *PhysicalDevice
	QueueFamilies  QueueFamilyAssignment

	VKDevice vk.Device

	GraphicsQueue *Queue
	PresentQueue  *Queue
	TransferQueue *Queue
	ComputeQueue  *Queue
}

// NewContext creates the instance, picks a physical device, validates the
// capabilities the engine depends on and creates the logical device with one
// queue per distinct family in the assignment.
func NewContext(attrs ContextAttributes) (*Context, error) {
	if attrs.App == nil {
		attrs.App = &App{Name: "engine"}
	}
	if attrs.Picker == nil {
		attrs.Picker = SingleQueueFamily
	}

	instance, err := attrs.App.CreateInstance()
	if err != nil {
		return nil, fmt.Errorf("error creating instance: %w", err)
	}

	surface := vk.NullSurface
	if attrs.Window != nil {
		surfacePtr, err := attrs.Window.CreateWindowSurface(instance.VKInstance, nil)
		if err != nil {
			instance.Destroy()
			return nil, fmt.Errorf("error creating probe surface: %w", err)
		}
		surface = vk.SurfaceFromPointer(surfacePtr)
	}

	devices, err := instance.PhysicalDevices()
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("error enumerating physical devices: %w", err)
	}
	if len(devices) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("no Vulkan physical devices found")
	}

	physicalDevice, assignment, err := attrs.Picker(devices, surface)
	if err != nil {
		instance.Destroy()
		return nil, err
	}

	if err := validateRequiredFeatures(physicalDevice, attrs.Window != nil); err != nil {
		instance.Destroy()
		return nil, err
	}

	ctx := &Context{
		Instance:       instance,
		PhysicalDevice: physicalDevice,
		QueueFamilies:  assignment,
	}

	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, 4)
	for _, family := range assignment.FamilyIndices() {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: uint32(family),
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	// Headless contexts never present; requesting the extension anyway
	// would fail device creation on compute-only implementations.
	var extensions []string
	if attrs.Window != nil {
		extensions = append(extensions, "VK_KHR_swapchain")
	}

	err = vk.Error(vk.CreateDevice(physicalDevice.VKPhysicalDevice, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{physicalDevice.Features},
	}, nil, &ctx.VKDevice))
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("error creating logical device: %w", err)
	}

	ctx.GraphicsQueue = ctx.getQueue(assignment.Graphics)
	ctx.PresentQueue = ctx.getQueue(assignment.Present)
	ctx.TransferQueue = ctx.getQueue(assignment.Transfer)
	ctx.ComputeQueue = ctx.getQueue(assignment.Compute)

	if surface != vk.NullSurface {
		vk.DestroySurface(instance.VKInstance, surface, nil)
	}

	return ctx, nil
}

// validateRequiredFeatures checks everything the engine assumes about the
// device up front. Each missing capability contributes its own error so a
// failing startup names every problem at once.
func validateRequiredFeatures(p *PhysicalDevice, presentation bool) error {
	var errs []error

	if presentation {
		exts, err := p.SupportedExtensions()
		if err != nil {
			return fmt.Errorf("error querying device extensions: %w", err)
		}
		found := false
		for _, ext := range exts {
			if ext == "VK_KHR_swapchain" {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, fmt.Errorf("device %s does not support VK_KHR_swapchain", p))
		}
	}

	if len(p.QueueFamilies.FilterGraphicsAndCompute()) == 0 {
		errs = append(errs, fmt.Errorf("device %s has no graphics+compute queue family", p))
	}

	if !p.SupportsFormat(DepthFormat, vk.ImageTilingOptimal,
		vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)) {
		errs = append(errs, fmt.Errorf("device %s does not support D32 depth attachments", p))
	}

	wanted := vk.FormatFeatureFlags(vk.FormatFeatureColorAttachmentBit |
		vk.FormatFeatureBlitSrcBit | vk.FormatFeatureBlitDstBit)
	if !p.SupportsFormat(RenderTargetFormat, vk.ImageTilingOptimal, wanted) {
		errs = append(errs, fmt.Errorf("device %s does not support blittable B8G8R8A8 color attachments", p))
	}

	return errors.Join(errs...)
}

func (c *Context) getQueue(family int) *Queue {
	var queue vk.Queue
	vk.GetDeviceQueue(c.VKDevice, uint32(family), 0, &queue)
	return &Queue{Context: c, FamilyIndex: family, VKQueue: queue}
}

// WaitIdle blocks until the device finishes all submitted work.
func (c *Context) WaitIdle() error {
	return vk.Error(vk.DeviceWaitIdle(c.VKDevice))
}

// Destroy destroys the logical device and then the instance. All resources
// created from this context must already be destroyed.
func (c *Context) Destroy() {
	vk.DestroyDevice(c.VKDevice, nil)
	c.Instance.Destroy()
}
