package engine

import (
	"testing"
)

// A zero-area window must be skipped without touching the device or the
// frame slots, whether or not the swapchain is marked dirty.
func TestRenderSkipsDegenerateWindow(t *testing.T) {
	w := &WindowRenderer{
		Window:    &fakeWindow{width: 0, height: 0},
		Swapchain: &Swapchain{Dirty: false},
	}

	if err := w.Render(); err != nil {
		t.Fatalf("degenerate frame returned error: %v", err)
	}
	if w.FrameIndex() != 0 {
		t.Error("skipped frame advanced the slot index")
	}
}

// A resize storm ending in a minimized window leaves the swapchain parked
// dirty; the frame is skipped and no recreation is attempted until the
// window has size again.
func TestRenderParksDirtySwapchainOnDegenerateWindow(t *testing.T) {
	w := &WindowRenderer{
		Window:    &fakeWindow{width: 0, height: 0},
		Swapchain: &Swapchain{Dirty: true},
	}

	if err := w.Render(); err != nil {
		t.Fatalf("parked frame returned error: %v", err)
	}
	if !w.Swapchain.Dirty {
		t.Error("parked frame cleared the dirty flag")
	}
	if w.FrameIndex() != 0 {
		t.Error("parked frame advanced the slot index")
	}
}

func TestFrameSlotCycling(t *testing.T) {
	const slots = 3
	w := &WindowRenderer{frames: make([]Frame, slots)}

	for i := 0; i < 2*slots; i++ {
		if w.FrameIndex() != i%slots {
			t.Fatalf("after %d frames expected slot %d, got %d", i, i%slots, w.FrameIndex())
		}
		w.advance()
	}
	if w.FrameIndex() != 0 {
		t.Errorf("after 2N frames expected slot 0, got %d", w.FrameIndex())
	}
}
