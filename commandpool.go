package engine

import (
	vk "github.com/vulkan-go/vulkan"
)

// CommandPool allocates resettable command buffers for one queue family.
type CommandPool struct {
	Context          *Context
	QueueFamilyIndex int

	VKCommandPool vk.CommandPool
}

// NewCommandPool creates a pool whose buffers may be reset individually.
func NewCommandPool(ctx *Context, queueFamilyIndex int) (*CommandPool, error) {
	var pool vk.CommandPool
	err := vk.Error(vk.CreateCommandPool(ctx.VKDevice, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: uint32(queueFamilyIndex),
	}, nil, &pool))
	if err != nil {
		return nil, err
	}
	return &CommandPool{Context: ctx, QueueFamilyIndex: queueFamilyIndex, VKCommandPool: pool}, nil
}

// AllocateCommandBuffers allocates count primary command buffers.
func (p *CommandPool) AllocateCommandBuffers(count int) ([]vk.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, count)
	err := vk.Error(vk.AllocateCommandBuffers(p.Context.VKDevice, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.VKCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}, buffers))
	if err != nil {
		return nil, err
	}
	return buffers, nil
}

func (p *CommandPool) FreeCommandBuffers(buffers []vk.CommandBuffer) {
	vk.FreeCommandBuffers(p.Context.VKDevice, p.VKCommandPool, uint32(len(buffers)), buffers)
}

func (p *CommandPool) Destroy() {
	vk.DestroyCommandPool(p.Context.VKDevice, p.VKCommandPool, nil)
}
