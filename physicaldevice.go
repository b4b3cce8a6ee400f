package engine

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// PhysicalDevice carries the capability data of one physical device, queried
// once at enumeration time so that pickers and validation can inspect it
// without further driver calls.
type PhysicalDevice struct {
	DeviceName string

	VKPhysicalDevice vk.PhysicalDevice

	Properties       vk.PhysicalDeviceProperties
	Features         vk.PhysicalDeviceFeatures
	MemoryProperties vk.PhysicalDeviceMemoryProperties
	QueueFamilies    QueueFamilySlice
}

func newPhysicalDevice(handle vk.PhysicalDevice) *PhysicalDevice {
	p := &PhysicalDevice{VKPhysicalDevice: handle}

	vk.GetPhysicalDeviceProperties(handle, &p.Properties)
	p.Properties.Deref()
	p.DeviceName = vk.ToString(p.Properties.DeviceName[:])

	vk.GetPhysicalDeviceFeatures(handle, &p.Features)
	p.Features.Deref()

	vk.GetPhysicalDeviceMemoryProperties(handle, &p.MemoryProperties)
	p.MemoryProperties.Deref()

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(handle, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(handle, &familyCount, families)

	p.QueueFamilies = make(QueueFamilySlice, familyCount)
	for i, family := range families {
		p.QueueFamilies[i] = &QueueFamily{Index: i, PhysicalDevice: p, VKQueueFamilyProperties: family}
		p.QueueFamilies[i].VKQueueFamilyProperties.Deref()
	}

	return p
}

func (p *PhysicalDevice) String() string {
	return p.DeviceName
}

type VKPresentModes []vk.PresentMode

func (v VKPresentModes) Contains(mode vk.PresentMode) bool {
	for _, m := range v {
		if m == mode {
			return true
		}
	}
	return false
}

type VKSurfaceFormats []vk.SurfaceFormat

func (v VKSurfaceFormats) Filter(f func(f vk.SurfaceFormat) bool) VKSurfaceFormats {
	ret := make(VKSurfaceFormats, 0)
	for _, s := range v {
		s.Deref()
		if f(s) {
			ret = append(ret, s)
		}
	}
	return ret
}

func (p *PhysicalDevice) GetSurfacePresentModes(surface vk.Surface) (VKPresentModes, error) {
	var count uint32
	err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(p.VKPhysicalDevice, surface, &count, nil))
	if err != nil {
		return nil, err
	}
	modes := make([]vk.PresentMode, count)
	err = vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(p.VKPhysicalDevice, surface, &count, modes))
	if err != nil {
		return nil, err
	}
	return modes, nil
}

func (p *PhysicalDevice) GetSurfaceFormats(surface vk.Surface) (VKSurfaceFormats, error) {
	var count uint32
	err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(p.VKPhysicalDevice, surface, &count, nil))
	if err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, count)
	err = vk.Error(vk.GetPhysicalDeviceSurfaceFormats(p.VKPhysicalDevice, surface, &count, formats))
	if err != nil {
		return nil, err
	}
	return formats, nil
}

func (p *PhysicalDevice) GetSurfaceCapabilities(surface vk.Surface) (*vk.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(p.VKPhysicalDevice, surface, &caps))
	if err != nil {
		return nil, err
	}
	caps.Deref()
	return &caps, nil
}

// SupportedExtensions returns the device extension names this physical device
// advertises.
func (p *PhysicalDevice) SupportedExtensions() ([]string, error) {
	var count uint32
	err := vk.Error(vk.EnumerateDeviceExtensionProperties(p.VKPhysicalDevice, "", &count, nil))
	if err != nil {
		return nil, err
	}
	exts := make([]vk.ExtensionProperties, count)
	err = vk.Error(vk.EnumerateDeviceExtensionProperties(p.VKPhysicalDevice, "", &count, exts))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range exts {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// SupportsFormat reports whether format advertises all wanted feature bits
// under the given tiling.
func (p *PhysicalDevice) SupportsFormat(format vk.Format, tiling vk.ImageTiling, wanted vk.FormatFeatureFlags) bool {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(p.VKPhysicalDevice, format, &props)
	props.Deref()

	var features vk.FormatFeatureFlags
	switch tiling {
	case vk.ImageTilingLinear:
		features = props.LinearTilingFeatures
	default:
		features = props.OptimalTilingFeatures
	}
	return features&wanted == wanted
}

// FindMemoryType returns the index of a memory type contained in
// memoryTypeBits which has all the requested property flags.
func (p *PhysicalDevice) FindMemoryType(memoryTypeBits uint32, properties vk.MemoryPropertyFlagBits) (uint32, error) {
	var i uint32
	for i = 0; i < p.MemoryProperties.MemoryTypeCount; i++ {
		mt := p.MemoryProperties.MemoryTypes[i]
		mt.Deref()
		if memoryTypeBits&(1<<i) != 0 &&
			vk.MemoryPropertyFlagBits(mt.PropertyFlags)&properties == properties {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no matching memory type found for bits 0x%x", memoryTypeBits)
}
