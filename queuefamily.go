package engine

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// QueueFamily describes one queue family of a physical device.
type QueueFamily struct {
	Index          int
	PhysicalDevice *PhysicalDevice

	VKQueueFamilyProperties vk.QueueFamilyProperties
}

func (q *QueueFamily) String() string {
	return fmt.Sprintf("family %d (flags 0x%x, count %d)",
		q.Index, q.VKQueueFamilyProperties.QueueFlags, q.VKQueueFamilyProperties.QueueCount)
}

func (q *QueueFamily) IsGraphics() bool {
	return q.VKQueueFamilyProperties.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
}

func (q *QueueFamily) IsCompute() bool {
	return q.VKQueueFamilyProperties.QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0
}

func (q *QueueFamily) IsTransfer() bool {
	return q.VKQueueFamilyProperties.QueueFlags&vk.QueueFlags(vk.QueueTransferBit) != 0
}

// SupportsPresent asks the driver whether this family can present to surface.
func (q *QueueFamily) SupportsPresent(surface vk.Surface) bool {
	var supported vk.Bool32
	vk.GetPhysicalDeviceSurfaceSupport(q.PhysicalDevice.VKPhysicalDevice, uint32(q.Index), surface, &supported)
	return supported == vk.Bool32(vk.True)
}

type QueueFamilySlice []*QueueFamily

func (q QueueFamilySlice) Filter(f func(q *QueueFamily) bool) QueueFamilySlice {
	ret := make(QueueFamilySlice, 0)
	for _, family := range q {
		if f(family) {
			ret = append(ret, family)
		}
	}
	return ret
}

func (q QueueFamilySlice) FilterGraphicsAndCompute() QueueFamilySlice {
	return q.Filter(func(q *QueueFamily) bool { return q.IsGraphics() && q.IsCompute() })
}

func (q QueueFamilySlice) FilterPresent(surface vk.Surface) QueueFamilySlice {
	return q.Filter(func(q *QueueFamily) bool { return q.SupportsPresent(surface) })
}

// QueueFamilyAssignment maps the engine's queue roles to family indices.
// Roles may share a family.
type QueueFamilyAssignment struct {
	Graphics int
	Present  int
	Transfer int
	Compute  int
}

// FamilyIndices returns the distinct family indices of this assignment.
func (a QueueFamilyAssignment) FamilyIndices() []int {
	seen := map[int]bool{}
	ret := make([]int, 0, 4)
	for _, idx := range []int{a.Graphics, a.Present, a.Transfer, a.Compute} {
		if !seen[idx] {
			seen[idx] = true
			ret = append(ret, idx)
		}
	}
	return ret
}

// QueueFamilyPicker selects the physical device to use and assigns queue
// roles to its families. A nil surface means presentation is not required.
type QueueFamilyPicker func(devices []*PhysicalDevice, surface vk.Surface) (*PhysicalDevice, QueueFamilyAssignment, error)

// SingleQueueFamily is the reference picker: it takes the first device that
// has a family with both graphics and compute which can present to the
// surface, and assigns that family to every role.
func SingleQueueFamily(devices []*PhysicalDevice, surface vk.Surface) (*PhysicalDevice, QueueFamilyAssignment, error) {
	for _, device := range devices {
		candidates := device.QueueFamilies.FilterGraphicsAndCompute()
		if surface != vk.NullSurface {
			candidates = candidates.FilterPresent(surface)
		}
		if len(candidates) == 0 {
			continue
		}
		idx := candidates[0].Index
		return device, QueueFamilyAssignment{
			Graphics: idx,
			Present:  idx,
			Transfer: idx,
			Compute:  idx,
		}, nil
	}
	return nil, QueueFamilyAssignment{}, fmt.Errorf("no physical device with a graphics+compute queue family found")
}
