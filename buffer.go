package engine

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// BufferAttributes configures NewBuffer.
type BufferAttributes struct {
	Name     string
	Size     uint64
	Usage    vk.BufferUsageFlagBits
	Location MemoryLocation
}

// Buffer couples a native buffer with the allocation backing it.
type Buffer struct {
	Context    *Context
	Allocation *Allocation
	Attributes BufferAttributes

	VKBuffer vk.Buffer
}

// NewBuffer creates a buffer, allocates memory for it from allocator and
// binds the two.
func NewBuffer(ctx *Context, allocator Allocator, attrs BufferAttributes) (*Buffer, error) {
	var handle vk.Buffer
	err := vk.Error(vk.CreateBuffer(ctx.VKDevice, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(attrs.Size),
		Usage:       vk.BufferUsageFlags(attrs.Usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &handle))
	if err != nil {
		return nil, fmt.Errorf("error creating buffer '%s': %w", attrs.Name, err)
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(ctx.VKDevice, handle, &requirements)
	requirements.Deref()

	allocation, err := allocator.Allocate(AllocationCreateInfo{
		Name:           attrs.Name,
		Size:           uint64(requirements.Size),
		Alignment:      uint64(requirements.Alignment),
		MemoryTypeBits: requirements.MemoryTypeBits,
		Location:       attrs.Location,
		Linear:         true,
	})
	if err != nil {
		vk.DestroyBuffer(ctx.VKDevice, handle, nil)
		return nil, err
	}

	err = vk.Error(vk.BindBufferMemory(ctx.VKDevice, handle,
		allocation.VKDeviceMemory(), vk.DeviceSize(allocation.Offset)))
	if err != nil {
		allocator.Free(allocation)
		vk.DestroyBuffer(ctx.VKDevice, handle, nil)
		return nil, fmt.Errorf("error binding buffer '%s': %w", attrs.Name, err)
	}

	return &Buffer{
		Context:    ctx,
		Allocation: allocation,
		Attributes: attrs,
		VKBuffer:   handle,
	}, nil
}

// Write copies data into the buffer at offset through its mapping. Fails
// with ErrNotHostVisible on device-only buffers.
func (b *Buffer) Write(data []byte, offset uint64) error {
	bytes, err := b.Allocation.Bytes()
	if err != nil {
		return err
	}
	if offset+uint64(len(data)) > b.Attributes.Size {
		return fmt.Errorf("write of %d bytes at %d exceeds buffer '%s' of %d bytes",
			len(data), offset, b.Attributes.Name, b.Attributes.Size)
	}
	copy(bytes[offset:], data)
	return nil
}

// Destroy destroys the buffer and returns its memory to allocator. Call
// exactly once, after the device is done with the buffer.
func (b *Buffer) Destroy(allocator Allocator) {
	vk.DestroyBuffer(b.Context.VKDevice, b.VKBuffer, nil)
	allocator.Free(b.Allocation)
}
