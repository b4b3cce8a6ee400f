package engine

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// DeviceMemory wraps one native memory allocation. The sub-allocator carves
// Allocations out of these; user code normally never touches DeviceMemory
// directly.
type DeviceMemory struct {
	Context *Context
	Size    uint64
	// Ptr is the persistent mapping of this memory, nil when unmapped.
	Ptr unsafe.Pointer

	VKDeviceMemory vk.DeviceMemory
}

// AllocateMemory allocates size bytes from the given memory type.
func (c *Context) AllocateMemory(size uint64, memoryTypeIndex uint32) (*DeviceMemory, error) {
	var memory vk.DeviceMemory
	err := vk.Error(vk.AllocateMemory(c.VKDevice, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: memoryTypeIndex,
	}, nil, &memory))
	if err != nil {
		return nil, err
	}
	return &DeviceMemory{Context: c, Size: size, VKDeviceMemory: memory}, nil
}

// Map maps the whole allocation and remembers the pointer.
func (m *DeviceMemory) Map() (unsafe.Pointer, error) {
	if m.Ptr != nil {
		return m.Ptr, nil
	}
	var ptr unsafe.Pointer
	err := vk.Error(vk.MapMemory(m.Context.VKDevice, m.VKDeviceMemory, 0, vk.DeviceSize(m.Size), 0, &ptr))
	if err != nil {
		return nil, err
	}
	m.Ptr = ptr
	return ptr, nil
}

func (m *DeviceMemory) Unmap() {
	if m.Ptr == nil {
		return
	}
	vk.UnmapMemory(m.Context.VKDevice, m.VKDeviceMemory)
	m.Ptr = nil
}

func (m *DeviceMemory) Destroy() {
	m.Unmap()
	vk.FreeMemory(m.Context.VKDevice, m.VKDeviceMemory, nil)
}
