/*
Package engine implements the GPU resource and frame synchronization core of a
small real-time renderer built directly on Vulkan. It deliberately stays at the
explicit level of the API: device memory is sub-allocated by hand, image layout
transitions are tracked and emitted as barriers, command buffers are recorded
one frame at a time, and presentation is paced against a fixed ring of
in-flight frame slots.

The package is organized leaf-first:

The Context owns the instance, the logical device and the queues of a single
queue family picked at startup by a pluggable QueueFamilyPicker. Required
device capabilities are validated once during context creation; a missing
feature fails startup with one descriptive error per missing item instead of
failing opaquely at first use.

Buffers and Images are thin wrappers over their native handles plus the
Allocation backing them. Every Image additionally carries an ImageState, the
tuple of access mask, layout, pipeline stage mask and owning queue family that
the last recorded command left the image in. ImageState is a recording-time
tracking abstraction, not a runtime query: it is what lets the Commands
recorder compute minimal barriers.

Commands is a one-shot command buffer recorder. Its EnsureImageLayout applies
the subset relation between ImageStates to elide redundant barriers, so
higher-level operations such as BeginRendering and BlitImage can be called
without the caller reasoning about the image's prior state.

The StagingBelt funnels host-authored data into device-only memory through a
single host-visible buffer with independent write and copy cursors, reset per
upload batch.

The Swapchain owns the presentable image set for one surface and is recreated
in place whenever the surface goes out of date. The WindowRenderer drives the
acquire/record/submit/present cycle over N in-flight frame slots and absorbs
resize storms by skipping frames rather than propagating errors.

Scene content is intentionally out of scope; the Renderer in this package is a
minimal consumer of the core used by the example programs.
*/
package engine
