package engine

import (
	"errors"
	"fmt"
	"log"
	"unsafe"

	gu "github.com/docker/go-units"
	vk "github.com/vulkan-go/vulkan"
)

// ErrNotHostVisible is returned when host access is requested on an
// allocation whose memory is not mapped.
var ErrNotHostVisible = errors.New("allocation is not host visible")

// errPoolSpace signals that a pool could not fit a request; the allocator
// reacts by opening another pool.
var errPoolSpace = errors.New("insufficient pool space")

// MemoryLocation states where an allocation should live and who accesses it.
type MemoryLocation int

const (
	// MemoryLocationUnknown lets the allocator pick; used for wrapped
	// resources that carry no allocation at all.
	MemoryLocationUnknown MemoryLocation = iota
	// MemoryLocationDeviceOnly is device-local memory without host access.
	MemoryLocationDeviceOnly
	// MemoryLocationCPUToGPU is host-visible upload memory.
	MemoryLocationCPUToGPU
	// MemoryLocationGPUToCPU is host-visible readback memory.
	MemoryLocationGPUToCPU
)

func (l MemoryLocation) String() string {
	switch l {
	case MemoryLocationDeviceOnly:
		return "DeviceOnly"
	case MemoryLocationCPUToGPU:
		return "CpuToGpu"
	case MemoryLocationGPUToCPU:
		return "GpuToCpu"
	}
	return "Unknown"
}

func (l MemoryLocation) propertyFlags() vk.MemoryPropertyFlagBits {
	switch l {
	case MemoryLocationDeviceOnly:
		return vk.MemoryPropertyDeviceLocalBit
	case MemoryLocationCPUToGPU, MemoryLocationGPUToCPU:
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	}
	return 0
}

func (l MemoryLocation) hostVisible() bool {
	return l == MemoryLocationCPUToGPU || l == MemoryLocationGPUToCPU
}

// AllocationCreateInfo describes one allocation request.
type AllocationCreateInfo struct {
	Name           string
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
	Location       MemoryLocation
	// Linear separates buffers and linear images from optimally tiled
	// images, which may not share pools on some implementations.
	Linear bool
}

// Allocation is a named sub-range of one memory pool.
type Allocation struct {
	Name   string
	Offset uint64
	Size   uint64

	pool *memoryPool
}

func (a *Allocation) String() string {
	return fmt.Sprintf("%s [%d %d]", a.Name, a.Offset, a.Size)
}

// VKDeviceMemory returns the native memory this allocation lives in.
func (a *Allocation) VKDeviceMemory() vk.DeviceMemory {
	return a.pool.memory.VKDeviceMemory
}

// Bytes returns the mapped bytes of this allocation. Fails with
// ErrNotHostVisible when the backing pool is not mapped.
func (a *Allocation) Bytes() ([]byte, error) {
	if a.pool == nil || a.pool.ptr == nil {
		return nil, ErrNotHostVisible
	}
	base := unsafe.Pointer(uintptr(a.pool.ptr) + uintptr(a.Offset))
	return ToBytes(base, int(a.Size)), nil
}

// Allocator hands out sub-allocations of device memory. Resources take the
// allocator they were created with back on Destroy.
type Allocator interface {
	Allocate(info AllocationCreateInfo) (*Allocation, error)
	Free(a *Allocation)
	Destroy()
}

// memoryPool is one native allocation carved up by first-fit sub-allocation.
type memoryPool struct {
	memory *DeviceMemory
	// ptr is the persistent mapping, nil for device-only pools. Tests may
	// point it at host memory directly.
	ptr    unsafe.Pointer
	size   uint64
	allocs []*Allocation
}

func makeAlignUp(a uint64, align uint64) uint64 {
	if align == 0 {
		return a
	}
	m := a % align
	if m == 0 {
		return a
	}
	return (a - m) + align
}

func (p *memoryPool) allocate(info AllocationCreateInfo) (*Allocation, error) {
	if len(p.allocs) == 0 {
		if info.Size > p.size {
			return nil, errPoolSpace
		}
		na := &Allocation{Name: info.Name, Offset: 0, Size: info.Size, pool: p}
		p.allocs = append(p.allocs, na)
		return na, nil
	}

	if p.allocs[0].Offset >= info.Size {
		na := &Allocation{Name: info.Name, Offset: 0, Size: info.Size, pool: p}
		p.allocs = append([]*Allocation{na}, p.allocs...)
		return na, nil
	}

	for i := 0; i+1 < len(p.allocs); i++ {
		c := p.allocs[i]
		n := p.allocs[i+1]

		l := makeAlignUp(c.Offset+c.Size, info.Alignment)
		h := n.Offset
		if h >= l && h-l >= info.Size {
			na := &Allocation{Name: info.Name, Offset: l, Size: info.Size, pool: p}
			p.allocs = append(p.allocs[:i+1], append([]*Allocation{na}, p.allocs[i+1:]...)...)
			return na, nil
		}
	}

	last := p.allocs[len(p.allocs)-1]
	nl := makeAlignUp(last.Offset+last.Size, info.Alignment)
	if nl <= p.size && p.size-nl >= info.Size {
		na := &Allocation{Name: info.Name, Offset: nl, Size: info.Size, pool: p}
		p.allocs = append(p.allocs, na)
		return na, nil
	}
	return nil, errPoolSpace
}

func (p *memoryPool) free(fa *Allocation) {
	for i, a := range p.allocs {
		if a == fa {
			p.allocs = append(p.allocs[:i], p.allocs[i+1:]...)
			return
		}
	}
}

type poolKey struct {
	memoryType uint32
	linear     bool
}

// PoolAllocator is the in-module Allocator: it opens one or more fixed-size
// pools per memory type, keeping linear and optimal resources apart, and maps
// host-visible pools persistently.
type PoolAllocator struct {
	Context *Context
	// PoolSize is the size of each pool opened on demand. Requests larger
	// than this get a dedicated pool.
	PoolSize uint64

	pools map[poolKey][]*memoryPool
}

const defaultPoolSize = 64 << 20

// NewPoolAllocator creates an allocator with the default pool size.
func NewPoolAllocator(ctx *Context) *PoolAllocator {
	return &PoolAllocator{
		Context:  ctx,
		PoolSize: defaultPoolSize,
		pools:    make(map[poolKey][]*memoryPool),
	}
}

func (pa *PoolAllocator) openPool(memoryType uint32, size uint64, hostVisible bool) (*memoryPool, error) {
	memory, err := pa.Context.AllocateMemory(size, memoryType)
	if err != nil {
		return nil, fmt.Errorf("error opening %s pool: %w", gu.BytesSize(float64(size)), err)
	}
	pool := &memoryPool{memory: memory, size: size}
	if hostVisible {
		ptr, err := memory.Map()
		if err != nil {
			memory.Destroy()
			return nil, fmt.Errorf("error mapping pool: %w", err)
		}
		pool.ptr = ptr
	}
	return pool, nil
}

// Allocate finds or opens a pool for the request's memory type and carves the
// allocation out of it.
func (pa *PoolAllocator) Allocate(info AllocationCreateInfo) (*Allocation, error) {
	memoryType, err := pa.Context.PhysicalDevice.FindMemoryType(info.MemoryTypeBits, info.Location.propertyFlags())
	if err != nil {
		return nil, fmt.Errorf("error allocating '%s': %w", info.Name, err)
	}

	key := poolKey{memoryType: memoryType, linear: info.Linear}
	for _, pool := range pa.pools[key] {
		a, err := pool.allocate(info)
		if err == nil {
			return a, nil
		}
	}

	size := pa.PoolSize
	if size == 0 {
		size = defaultPoolSize
	}
	if info.Size > size {
		size = info.Size
	}
	pool, err := pa.openPool(memoryType, size, info.Location.hostVisible())
	if err != nil {
		return nil, err
	}
	pa.pools[key] = append(pa.pools[key], pool)

	a, err := pool.allocate(info)
	if err != nil {
		return nil, fmt.Errorf("error allocating '%s' (%s): %w",
			info.Name, gu.BytesSize(float64(info.Size)), err)
	}
	return a, nil
}

// Free returns an allocation's range to its pool.
func (pa *PoolAllocator) Free(a *Allocation) {
	if a == nil || a.pool == nil {
		return
	}
	a.pool.free(a)
	a.pool = nil
}

// Destroy frees all pools. Allocations still live at this point are leaks and
// get reported by name and size.
func (pa *PoolAllocator) Destroy() {
	for _, pools := range pa.pools {
		for _, pool := range pools {
			for _, a := range pool.allocs {
				log.Printf("leaked allocation '%s' (%s)", a.Name, gu.BytesSize(float64(a.Size)))
			}
			pool.memory.Destroy()
		}
	}
	pa.pools = nil
}
