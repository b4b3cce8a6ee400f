package engine

import (
	"math"

	vk "github.com/vulkan-go/vulkan"
)

// CreateFence creates a fence, optionally in the signaled state so the first
// wait on a fresh frame slot returns immediately.
func (c *Context) CreateFence(signaled bool) (vk.Fence, error) {
	var flags vk.FenceCreateFlags
	if signaled {
		flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	err := vk.Error(vk.CreateFence(c.VKDevice, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: flags,
	}, nil, &fence))
	if err != nil {
		return vk.NullFence, err
	}
	return fence, nil
}

// WaitForFence blocks until fence signals. The fence is left signaled; a
// frame that bails out before resubmitting must find it still passable.
func (c *Context) WaitForFence(fence vk.Fence) error {
	return vk.Error(vk.WaitForFences(c.VKDevice, 1, []vk.Fence{fence}, vk.True, math.MaxUint64))
}

// ResetFence returns fence to the unsignaled state.
func (c *Context) ResetFence(fence vk.Fence) error {
	return vk.Error(vk.ResetFences(c.VKDevice, 1, []vk.Fence{fence}))
}

func (c *Context) DestroyFence(fence vk.Fence) {
	vk.DestroyFence(c.VKDevice, fence, nil)
}

func (c *Context) CreateSemaphore() (vk.Semaphore, error) {
	var semaphore vk.Semaphore
	err := vk.Error(vk.CreateSemaphore(c.VKDevice, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &semaphore))
	if err != nil {
		return vk.NullSemaphore, err
	}
	return semaphore, nil
}

func (c *Context) DestroySemaphore(semaphore vk.Semaphore) {
	vk.DestroySemaphore(c.VKDevice, semaphore, nil)
}
