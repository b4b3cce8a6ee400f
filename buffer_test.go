package engine

import (
	"bytes"
	"errors"
	"testing"
	"unsafe"
)

func hostBuffer(size uint64, mapped bool) (*Buffer, []byte) {
	backing := make([]byte, size)
	pool := &memoryPool{size: size}
	if mapped {
		pool.ptr = unsafe.Pointer(&backing[0])
	}
	allocation := &Allocation{Name: "test", Size: size, pool: pool}
	pool.allocs = append(pool.allocs, allocation)

	return &Buffer{
		Allocation: allocation,
		Attributes: BufferAttributes{Name: "test", Size: size},
	}, backing
}

func TestBufferWriteNotHostVisible(t *testing.T) {
	buffer, _ := hostBuffer(16, false)

	err := buffer.Write([]byte("data"), 0)
	if !errors.Is(err, ErrNotHostVisible) {
		t.Errorf("expected ErrNotHostVisible on a device-only buffer, got %v", err)
	}
}

func TestBufferWriteAtOffset(t *testing.T) {
	buffer, backing := hostBuffer(16, true)

	if err := buffer.Write([]byte("data"), 4); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !bytes.Equal(backing[4:8], []byte("data")) {
		t.Errorf("write landed wrong: %q", backing[:8])
	}
}

func TestBufferWriteBounds(t *testing.T) {
	buffer, _ := hostBuffer(8, true)

	if err := buffer.Write([]byte("123456789"), 0); err == nil {
		t.Error("expected out-of-bounds write to fail")
	}
	if err := buffer.Write([]byte("1234"), 6); err == nil {
		t.Error("expected straddling write to fail")
	}
	if err := buffer.Write([]byte("1234"), 4); err != nil {
		t.Errorf("exact-fit write failed: %v", err)
	}
}
