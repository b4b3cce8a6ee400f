package engine

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
	lin "github.com/xlab/linmath"
)

// Vertex is the vertex format of every mesh this engine draws.
type Vertex struct {
	Position lin.Vec3
	Normal   lin.Vec3
}

// VertexBindingDescription describes the single vertex buffer binding.
func VertexBindingDescription() vk.VertexInputBindingDescription {
	return vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(Vertex{})),
		InputRate: vk.VertexInputRateVertex,
	}
}

// VertexAttributeDescriptions describes position and normal attributes.
func VertexAttributeDescriptions() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   0,
		},
		{
			Binding:  0,
			Location: 1,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Sizeof(lin.Vec3{})),
		},
	}
}

// Geometry is host-side mesh data with 32-bit indices.
type Geometry struct {
	Vertices []Vertex
	Indices  []uint32
}

func (g *Geometry) VertexBytes() []byte {
	return ToBytes(unsafe.Pointer(&g.Vertices[0]), len(g.Vertices)*int(unsafe.Sizeof(Vertex{})))
}

func (g *Geometry) IndexBytes() []byte {
	return ToBytes(unsafe.Pointer(&g.Indices[0]), len(g.Indices)*4)
}

// Size returns the total bytes this geometry occupies on the device.
func (g *Geometry) Size() uint64 {
	return uint64(len(g.VertexBytes()) + len(g.IndexBytes()))
}

// GPUGeometry is a Geometry with device-local vertex and index buffers,
// filled through the staging belt.
type GPUGeometry struct {
	Geometry

	VertexBuffer *Buffer
	IndexBuffer  *Buffer
}

// NewGPUGeometry creates the device-local buffers for g. The data is not
// uploaded yet; stage it through a StagingBelt.
func NewGPUGeometry(ctx *Context, allocator Allocator, name string, g Geometry) (*GPUGeometry, error) {
	vertexBuffer, err := NewBuffer(ctx, allocator, BufferAttributes{
		Name:     name + " vertices",
		Size:     uint64(len(g.VertexBytes())),
		Usage:    vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit,
		Location: MemoryLocationDeviceOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating vertex buffer for '%s': %w", name, err)
	}
	indexBuffer, err := NewBuffer(ctx, allocator, BufferAttributes{
		Name:     name + " indices",
		Size:     uint64(len(g.IndexBytes())),
		Usage:    vk.BufferUsageIndexBufferBit | vk.BufferUsageTransferDstBit,
		Location: MemoryLocationDeviceOnly,
	})
	if err != nil {
		vertexBuffer.Destroy(allocator)
		return nil, fmt.Errorf("error creating index buffer for '%s': %w", name, err)
	}
	return &GPUGeometry{Geometry: g, VertexBuffer: vertexBuffer, IndexBuffer: indexBuffer}, nil
}

// IndexRange covers all indices of the geometry.
func (g *GPUGeometry) IndexRange() Range {
	return Range{Start: 0, End: uint32(len(g.Indices))}
}

func (g *GPUGeometry) Destroy(allocator Allocator) {
	g.VertexBuffer.Destroy(allocator)
	g.IndexBuffer.Destroy(allocator)
}
