package engine

import (
	"errors"
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// ErrBeltCapacity is returned when a write does not fit in the belt's
// remaining space for this batch.
var ErrBeltCapacity = errors.New("staging belt capacity exceeded")

// StagingBelt funnels host-authored data into device-only resources through
// one host-visible buffer. Writes advance the write cursor; each recorded
// copy consumes the bytes between the copy cursor and the write cursor.
// Done resets both cursors once the batch's commands have finished on the
// device.
type StagingBelt struct {
	buffer *Buffer

	writeCursor uint64
	copyCursor  uint64
}

// NewStagingBelt creates a belt with a host-visible buffer of size bytes.
func NewStagingBelt(ctx *Context, allocator Allocator, size uint64) (*StagingBelt, error) {
	buffer, err := NewBuffer(ctx, allocator, BufferAttributes{
		Name:     "staging belt",
		Size:     size,
		Usage:    vk.BufferUsageTransferSrcBit,
		Location: MemoryLocationCPUToGPU,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating staging belt: %w", err)
	}
	return &StagingBelt{buffer: buffer}, nil
}

// Size returns the belt's total capacity.
func (s *StagingBelt) Size() uint64 {
	return s.buffer.Attributes.Size
}

// Pending returns the bytes written but not yet claimed by a copy.
func (s *StagingBelt) Pending() uint64 {
	return s.writeCursor - s.copyCursor
}

// Write appends data at the write cursor. On overflow the belt is left
// untouched and ErrBeltCapacity is returned.
func (s *StagingBelt) Write(data []byte) error {
	if s.writeCursor+uint64(len(data)) > s.Size() {
		return ErrBeltCapacity
	}
	if err := s.buffer.Write(data, s.writeCursor); err != nil {
		return err
	}
	s.writeCursor += uint64(len(data))
	return nil
}

// CopyTo records a copy of dst's full size from the copy cursor into dst and
// advances the cursor past it. The caller must have written that many bytes
// since the previous copy.
func (s *StagingBelt) CopyTo(dst *Buffer, cmd *Commands) {
	cmd.CopyBuffer(s.buffer, dst, s.copyCursor, 0, dst.Attributes.Size)
	s.copyCursor += dst.Attributes.Size
}

// imageStagingSize is the tightly packed byte size of one image worth of
// 4-byte texels, matching the formats this engine creates. CopyImageTo
// claims exactly this much of the belt.
func imageStagingSize(img *Image) uint64 {
	extent := img.Attributes.Extent
	return uint64(extent.Width) * uint64(extent.Height) * 4
}

// CopyImageTo records a copy of one image worth of pending texels into dst
// and advances the copy cursor past them.
func (s *StagingBelt) CopyImageTo(dst *Image, cmd *Commands) {
	cmd.CopyBufferToImage(s.buffer, s.copyCursor, dst)
	s.copyCursor += imageStagingSize(dst)
}

// StageGeometry writes g's vertex and index data into the belt and records
// the copies into its device-local buffers.
func (s *StagingBelt) StageGeometry(g *GPUGeometry, cmd *Commands) error {
	if err := s.Write(g.VertexBytes()); err != nil {
		return err
	}
	s.CopyTo(g.VertexBuffer, cmd)
	if err := s.Write(g.IndexBytes()); err != nil {
		return err
	}
	s.CopyTo(g.IndexBuffer, cmd)
	return nil
}

// Done resets both cursors. Call only after the batch's command buffer has
// been waited on; the next batch reuses the space from the start.
func (s *StagingBelt) Done() {
	s.writeCursor = 0
	s.copyCursor = 0
}

func (s *StagingBelt) Destroy(allocator Allocator) {
	s.buffer.Destroy(allocator)
}
