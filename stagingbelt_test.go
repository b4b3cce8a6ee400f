package engine

import (
	"bytes"
	"errors"
	"testing"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// hostBelt builds a belt over host memory so the cursor logic can be tested
// without a device.
func hostBelt(size uint64) (*StagingBelt, []byte) {
	backing := make([]byte, size)
	pool := &memoryPool{size: size, ptr: unsafe.Pointer(&backing[0])}
	allocation := &Allocation{Name: "test belt", Size: size, pool: pool}
	pool.allocs = append(pool.allocs, allocation)

	buffer := &Buffer{
		Allocation: allocation,
		Attributes: BufferAttributes{Name: "test belt", Size: size, Location: MemoryLocationCPUToGPU},
	}
	return &StagingBelt{buffer: buffer}, backing
}

func TestBeltWriteAdvancesCursor(t *testing.T) {
	belt, backing := hostBelt(64)

	if err := belt.Write([]byte("hello")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := belt.Write([]byte("world")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if belt.Pending() != 10 {
		t.Errorf("expected 10 pending bytes, got %d", belt.Pending())
	}
	if !bytes.Equal(backing[:10], []byte("helloworld")) {
		t.Errorf("belt content mismatch: %q", backing[:10])
	}
}

func TestBeltOverflowLeavesBeltUntouched(t *testing.T) {
	belt, backing := hostBelt(8)

	if err := belt.Write([]byte("abcd")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	err := belt.Write([]byte("too long!"))
	if !errors.Is(err, ErrBeltCapacity) {
		t.Fatalf("expected ErrBeltCapacity, got %v", err)
	}

	if belt.Pending() != 4 {
		t.Errorf("overflow moved the write cursor: %d pending", belt.Pending())
	}
	if !bytes.Equal(backing[:4], []byte("abcd")) {
		t.Errorf("overflow disturbed recorded bytes: %q", backing[:4])
	}
}

func TestBeltExactFit(t *testing.T) {
	belt, _ := hostBelt(8)

	if err := belt.Write([]byte("12345678")); err != nil {
		t.Fatalf("exact-capacity write failed: %v", err)
	}
	if err := belt.Write([]byte{0}); !errors.Is(err, ErrBeltCapacity) {
		t.Errorf("expected ErrBeltCapacity after filling the belt, got %v", err)
	}
}

func TestBeltDoneResetsCursors(t *testing.T) {
	belt, backing := hostBelt(16)

	if err := belt.Write([]byte("aaaa")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	belt.copyCursor = belt.writeCursor

	belt.Done()
	if belt.writeCursor != 0 || belt.copyCursor != 0 {
		t.Fatalf("Done did not reset cursors: write=%d copy=%d", belt.writeCursor, belt.copyCursor)
	}

	// The next batch reuses the space from the start.
	if err := belt.Write([]byte("bb")); err != nil {
		t.Fatalf("post-reset write failed: %v", err)
	}
	if !bytes.Equal(backing[:2], []byte("bb")) {
		t.Errorf("post-reset write landed at the wrong offset: %q", backing[:4])
	}
}

func TestBeltCopyConsumesPendingBytes(t *testing.T) {
	belt, _ := hostBelt(32)

	if err := belt.Write(make([]byte, 12)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// Claim the written range the way CopyTo does once it has recorded the
	// copy command for a 12 byte destination.
	belt.copyCursor += 12

	if belt.Pending() != 0 {
		t.Errorf("expected no pending bytes after copy, got %d", belt.Pending())
	}

	// Later writes extend the batch without disturbing the claimed range.
	if err := belt.Write(make([]byte, 8)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if belt.copyCursor != 12 {
		t.Errorf("later write moved the copy cursor to %d", belt.copyCursor)
	}
	if belt.Pending() != 8 {
		t.Errorf("expected 8 pending bytes, got %d", belt.Pending())
	}
}

// An image copy claims width*height*4 bytes of the belt, independent of how
// the writes that filled them were split up.
func TestBeltImageCopyAdvance(t *testing.T) {
	belt, _ := hostBelt(64)

	img := &Image{Attributes: ImageAttributes{
		Name:   "texels",
		Extent: vk.Extent3D{Width: 4, Height: 3, Depth: 1},
	}}
	if got := imageStagingSize(img); got != 48 {
		t.Fatalf("expected a 4x3 image to stage 48 bytes, got %d", got)
	}

	if err := belt.Write(make([]byte, 40)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := belt.Write(make([]byte, 8)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// Claim the image's range the way CopyImageTo does once it has
	// recorded the copy command.
	belt.copyCursor += imageStagingSize(img)

	if belt.copyCursor != 48 {
		t.Errorf("image copy advanced the cursor to %d, want 48", belt.copyCursor)
	}
	if belt.Pending() != 0 {
		t.Errorf("expected no pending bytes after the image copy, got %d", belt.Pending())
	}
}
