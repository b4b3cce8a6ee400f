package engine

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Queue wraps one device queue retrieved at context creation.
type Queue struct {
	Context     *Context
	FamilyIndex int

	VKQueue vk.Queue
}

func (q *Queue) String() string {
	return fmt.Sprintf("queue (family %d)", q.FamilyIndex)
}

func (q *Queue) WaitIdle() error {
	return vk.Error(vk.QueueWaitIdle(q.VKQueue))
}
