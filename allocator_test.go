package engine

import (
	"testing"
)

func TestMakeAlignUp(t *testing.T) {
	cases := []struct {
		value, align, want uint64
	}{
		{0, 256, 0},
		{1, 256, 256},
		{255, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{100, 0, 100},
	}
	for _, c := range cases {
		if got := makeAlignUp(c.value, c.align); got != c.want {
			t.Errorf("makeAlignUp(%d, %d) = %d, want %d", c.value, c.align, got, c.want)
		}
	}
}

func testPool(size uint64) *memoryPool {
	return &memoryPool{size: size}
}

func alloc(t *testing.T, p *memoryPool, name string, size, align uint64) *Allocation {
	t.Helper()
	a, err := p.allocate(AllocationCreateInfo{Name: name, Size: size, Alignment: align})
	if err != nil {
		t.Fatalf("allocating %q (%d bytes): %v", name, size, err)
	}
	return a
}

func TestPoolFirstFit(t *testing.T) {
	p := testPool(1000)

	a := alloc(t, p, "a", 100, 1)
	b := alloc(t, p, "b", 100, 1)
	c := alloc(t, p, "c", 100, 1)

	if a.Offset != 0 || b.Offset != 100 || c.Offset != 200 {
		t.Fatalf("expected consecutive offsets, got %d %d %d", a.Offset, b.Offset, c.Offset)
	}

	// Freeing the middle block opens a hole the next fitting request reuses.
	p.free(b)
	d := alloc(t, p, "d", 50, 1)
	if d.Offset != 100 {
		t.Errorf("expected hole reuse at offset 100, got %d", d.Offset)
	}

	// A request too large for the hole lands after the last block.
	e := alloc(t, p, "e", 200, 1)
	if e.Offset != 300 {
		t.Errorf("expected tail allocation at offset 300, got %d", e.Offset)
	}
}

func TestPoolAlignment(t *testing.T) {
	p := testPool(1000)

	alloc(t, p, "a", 10, 1)
	b := alloc(t, p, "b", 10, 256)
	if b.Offset%256 != 0 {
		t.Errorf("allocation not aligned: offset %d", b.Offset)
	}
}

func TestPoolExhaustion(t *testing.T) {
	p := testPool(100)

	alloc(t, p, "a", 100, 1)
	if _, err := p.allocate(AllocationCreateInfo{Name: "b", Size: 1, Alignment: 1}); err == nil {
		t.Error("expected allocation failure on a full pool")
	}

	// A fresh pool rejects oversized requests outright.
	q := testPool(100)
	if _, err := q.allocate(AllocationCreateInfo{Name: "big", Size: 101, Alignment: 1}); err == nil {
		t.Error("expected allocation failure for oversized request")
	}
}

func TestPoolFreeAllReusesFromStart(t *testing.T) {
	p := testPool(100)

	a := alloc(t, p, "a", 60, 1)
	p.free(a)

	b := alloc(t, p, "b", 100, 1)
	if b.Offset != 0 {
		t.Errorf("expected reuse from offset 0, got %d", b.Offset)
	}
}

func TestAllocationBytesNotHostVisible(t *testing.T) {
	p := testPool(100)
	a := alloc(t, p, "a", 10, 1)

	if _, err := a.Bytes(); err != ErrNotHostVisible {
		t.Errorf("expected ErrNotHostVisible on an unmapped pool, got %v", err)
	}
}
