package engine

import (
	"math/rand"
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func namedStates() map[string]ImageState {
	return map[string]ImageState{
		"ignored":      ImageStateIgnored(),
		"color":        ImageStateColorAttachment(),
		"depth":        ImageStateDepthStencilAttachment(),
		"transfer src": ImageStateTransferSource(),
		"transfer dst": ImageStateTransferDestination(),
		"present":      ImageStatePresent(),
		"shader read":  ImageStateShaderRead(),
	}
}

func TestStateIsSubsetOfItself(t *testing.T) {
	for name, state := range namedStates() {
		if !state.IsSubsetOf(state) {
			t.Errorf("state %q is not a subset of itself", name)
		}
	}
}

func TestSubsetRequiresSameLayout(t *testing.T) {
	a := ImageStateTransferSource()
	b := ImageStateTransferSource()
	b.Layout = vk.ImageLayoutTransferDstOptimal
	if a.IsSubsetOf(b) {
		t.Error("states with different layouts must not be subsets")
	}
}

func TestSubsetMaskCover(t *testing.T) {
	narrow := ImageState{
		Access: vk.AccessFlags(vk.AccessTransferReadBit),
		Layout: vk.ImageLayoutGeneral,
		Stage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
	}
	wide := ImageState{
		Access: vk.AccessFlags(vk.AccessTransferReadBit | vk.AccessTransferWriteBit),
		Layout: vk.ImageLayoutGeneral,
		Stage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit | vk.PipelineStageHostBit),
	}
	if !narrow.IsSubsetOf(wide) {
		t.Error("narrow masks must be subsets of wider masks in the same layout")
	}
	if wide.IsSubsetOf(narrow) {
		t.Error("wider masks must not be subsets of narrower masks")
	}
}

func TestSubsetQueueFamily(t *testing.T) {
	a := ImageStateColorAttachment()
	b := ImageStateColorAttachment()

	a.QueueFamily = vk.QueueFamilyIgnored
	b.QueueFamily = 3
	if !a.IsSubsetOf(b) {
		t.Error("ignored queue family must be compatible with any owner")
	}

	a.QueueFamily = 2
	if a.IsSubsetOf(b) {
		t.Error("differing concrete queue families must not be subsets")
	}

	a.QueueFamily = 3
	if !a.IsSubsetOf(b) {
		t.Error("matching concrete queue families must be compatible")
	}
}

// Randomized check of the definition: A ⊆ B iff layouts match, B's masks
// cover A's and ownership is compatible.
func TestSubsetRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	layouts := []vk.ImageLayout{
		vk.ImageLayoutUndefined,
		vk.ImageLayoutGeneral,
		vk.ImageLayoutTransferSrcOptimal,
	}
	families := []uint32{vk.QueueFamilyIgnored, 0, 1}

	randomState := func() ImageState {
		return ImageState{
			Access:      vk.AccessFlags(rng.Intn(16)),
			Layout:      layouts[rng.Intn(len(layouts))],
			Stage:       vk.PipelineStageFlags(rng.Intn(16)),
			QueueFamily: families[rng.Intn(len(families))],
		}
	}

	for i := 0; i < 10000; i++ {
		a, b := randomState(), randomState()
		want := a.Layout == b.Layout &&
			b.Access&a.Access == a.Access &&
			b.Stage&a.Stage == a.Stage &&
			(a.QueueFamily == vk.QueueFamilyIgnored || a.QueueFamily == b.QueueFamily)
		if got := a.IsSubsetOf(b); got != want {
			t.Fatalf("IsSubsetOf(%+v, %+v) = %v, want %v", a, b, got, want)
		}
	}
}

// Transitioning into a state and ensuring the same state again must elide:
// every named state is a subset of itself after the transition updated the
// tracked state.
func TestEnsureElisionPredicate(t *testing.T) {
	for name, state := range namedStates() {
		img := &Image{State: state}
		if !state.IsSubsetOf(img.State) {
			t.Errorf("ensure after transition to %q would re-emit a barrier", name)
		}
	}
}
