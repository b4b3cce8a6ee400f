package engine

import (
	"fmt"
	"os"
	"path/filepath"

	vk "github.com/vulkan-go/vulkan"
)

// ShaderModule wraps one compiled SPIR-V module.
type ShaderModule struct {
	Context     *Context
	Description string

	VKShaderModule vk.ShaderModule
}

// LoadShaderModule creates a shader module from a SPIR-V file.
func LoadShaderModule(ctx *Context, file string) (*ShaderModule, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("error reading shader '%s': %w", file, err)
	}
	var module vk.ShaderModule
	err = vk.Error(vk.CreateShaderModule(ctx.VKDevice, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(data)),
		PCode:    sliceUint32(data),
	}, nil, &module))
	if err != nil {
		return nil, fmt.Errorf("error creating shader module '%s': %w", file, err)
	}
	return &ShaderModule{Context: ctx, Description: file, VKShaderModule: module}, nil
}

// ShaderPath builds the conventional path of a compiled shader:
// <dir>/<name>.<stage>.spv where stage is "vert" or "frag".
func ShaderPath(dir, name, stage string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s.spv", name, stage))
}

func (s *ShaderModule) VKPipelineShaderStageCreateInfo(stage vk.ShaderStageFlagBits, entryPoint string) vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: s.VKShaderModule,
		PName:  safeString(entryPoint),
	}
}

func (s *ShaderModule) Destroy() {
	vk.DestroyShaderModule(s.Context.VKDevice, s.VKShaderModule, nil)
}
