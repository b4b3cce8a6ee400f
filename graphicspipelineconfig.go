package engine

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// GraphicsPipelineConfig eases construction of graphics pipelines. Zero
// values of the tunables mean the defaults set by NewGraphicsPipelineConfig.
type GraphicsPipelineConfig struct {
	Context      *Context
	ShaderStages []vk.PipelineShaderStageCreateInfo

	// PushConstantRanges define the pipeline layout; this engine feeds its
	// shaders through push constants only.
	PushConstantRanges []vk.PushConstantRange

	PrimitiveTopology vk.PrimitiveTopology
	PolygonMode       vk.PolygonMode
	LineWidth         float32
	CullMode          vk.CullModeFlagBits
	FrontFace         vk.FrontFace
	DepthTestEnable   bool
	DepthWriteEnable  bool

	VertexInputBindingDescriptions   []vk.VertexInputBindingDescription
	VertexInputAttributeDescriptions []vk.VertexInputAttributeDescription

	shaders []*ShaderModule
}

// NewGraphicsPipelineConfig returns a config with the engine's defaults:
// triangle lists, back-face culling, depth test and write on, and the
// standard Vertex input layout.
func NewGraphicsPipelineConfig(ctx *Context) *GraphicsPipelineConfig {
	return &GraphicsPipelineConfig{
		Context:                          ctx,
		PrimitiveTopology:                vk.PrimitiveTopologyTriangleList,
		PolygonMode:                      vk.PolygonModeFill,
		LineWidth:                        1.0,
		CullMode:                         vk.CullModeBackBit,
		FrontFace:                        vk.FrontFaceCounterClockwise,
		DepthTestEnable:                  true,
		DepthWriteEnable:                 true,
		VertexInputBindingDescriptions:   []vk.VertexInputBindingDescription{VertexBindingDescription()},
		VertexInputAttributeDescriptions: VertexAttributeDescriptions(),
	}
}

// AddShaderStageFromFile loads a SPIR-V file and appends it as a stage. The
// module is destroyed together with the config.
func (g *GraphicsPipelineConfig) AddShaderStageFromFile(file, entryPoint string, stage vk.ShaderStageFlagBits) error {
	shader, err := LoadShaderModule(g.Context, file)
	if err != nil {
		return err
	}
	g.shaders = append(g.shaders, shader)
	g.ShaderStages = append(g.ShaderStages, shader.VKPipelineShaderStageCreateInfo(stage, entryPoint))
	return nil
}

// AddPushConstantRange appends a push constant range to the layout.
func (g *GraphicsPipelineConfig) AddPushConstantRange(stages vk.ShaderStageFlagBits, size uint32) *GraphicsPipelineConfig {
	g.PushConstantRanges = append(g.PushConstantRanges, vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(stages),
		Size:       size,
	})
	return g
}

func boolToVK(b bool) vk.Bool32 {
	if b {
		return vk.Bool32(vk.True)
	}
	return vk.Bool32(vk.False)
}

// CreatePipeline creates the pipeline layout and a pipeline for pass.
// Viewport and scissor are dynamic, so the pipeline survives resizes.
func (g *GraphicsPipelineConfig) CreatePipeline(pass *RenderPass) (vk.Pipeline, vk.PipelineLayout, error) {
	var layout vk.PipelineLayout
	err := vk.Error(vk.CreatePipelineLayout(g.Context.VKDevice, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		PushConstantRangeCount: uint32(len(g.PushConstantRanges)),
		PPushConstantRanges:    g.PushConstantRanges,
	}, nil, &layout))
	if err != nil {
		return vk.NullPipeline, vk.NullPipelineLayout, fmt.Errorf("error creating pipeline layout: %w", err)
	}

	vertexInputState := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(g.VertexInputBindingDescriptions)),
		PVertexBindingDescriptions:      g.VertexInputBindingDescriptions,
		VertexAttributeDescriptionCount: uint32(len(g.VertexInputAttributeDescriptions)),
		PVertexAttributeDescriptions:    g.VertexInputAttributeDescriptions,
	}

	inputAssemblyState := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: g.PrimitiveTopology,
	}

	// Counts only; the actual rects are dynamic state.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterState := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: g.PolygonMode,
		LineWidth:   g.LineWidth,
		CullMode:    vk.CullModeFlags(g.CullMode),
		FrontFace:   g.FrontFace,
	}

	multisampleState := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  boolToVK(g.DepthTestEnable),
		DepthWriteEnable: boolToVK(g.DepthWriteEnable),
		DepthCompareOp:   vk.CompareOpLess,
		MaxDepthBounds:   1.0,
	}

	blendAttachments := []vk.PipelineColorBlendAttachmentState{{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit |
			vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
		BlendEnable: vk.Bool32(vk.False),
	}}

	colorBlendState := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(g.ShaderStages)),
		PStages:             g.ShaderStages,
		PVertexInputState:   &vertexInputState,
		PInputAssemblyState: &inputAssemblyState,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterState,
		PMultisampleState:   &multisampleState,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendState,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          pass.VKRenderPass,
		Subpass:             0,
	}

	pipelines := make([]vk.Pipeline, 1)
	err = vk.Error(vk.CreateGraphicsPipelines(g.Context.VKDevice, vk.NullPipelineCache,
		1, []vk.GraphicsPipelineCreateInfo{createInfo}, nil, pipelines))
	if err != nil {
		vk.DestroyPipelineLayout(g.Context.VKDevice, layout, nil)
		return vk.NullPipeline, vk.NullPipelineLayout, fmt.Errorf("error creating graphics pipeline: %w", err)
	}
	return pipelines[0], layout, nil
}

// Destroy destroys the shader modules loaded by this config. Safe to call
// once the pipeline has been created.
func (g *GraphicsPipelineConfig) Destroy() {
	for _, shader := range g.shaders {
		shader.Destroy()
	}
	g.shaders = nil
}
