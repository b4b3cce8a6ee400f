package engine

import (
	"testing"
	"unsafe"
)

type fakeWindow struct {
	width  int
	height int
}

func (w *fakeWindow) CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error) {
	return 0, nil
}

func (w *fakeWindow) GetFramebufferSize() (int, int) {
	return w.width, w.height
}

// A minimized window reports a zero-area framebuffer; Resize must do nothing
// and leave the swapchain parked dirty with its old image set.
func TestResizeZeroExtentIsNoOp(t *testing.T) {
	placeholder := &Image{}
	s := &Swapchain{
		Window: &fakeWindow{width: 0, height: 0},
		Dirty:  true,
		Images: []*Image{placeholder},
	}

	if err := s.Resize(); err != nil {
		t.Fatalf("zero-extent resize failed: %v", err)
	}
	if !s.Dirty {
		t.Error("zero-extent resize cleared the dirty flag")
	}
	if len(s.Images) != 1 || s.Images[0] != placeholder {
		t.Error("zero-extent resize disturbed the image set")
	}

	s.Window = &fakeWindow{width: 800, height: 0}
	if err := s.Resize(); err != nil {
		t.Fatalf("zero-height resize failed: %v", err)
	}
	if !s.Dirty {
		t.Error("zero-height resize cleared the dirty flag")
	}
}
