package vulkan

import (
	"fmt"
	"os"
	"path/filepath"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkapp/engine/core"
)

// VulkanShaderStage is a single compiled stage ready to be plugged into a pipeline.
type VulkanShaderStage struct {
	Handle                vk.ShaderModule
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

// ShaderFileName is where the build step writes the SPIR-V for name and stage,
// e.g. shaders/grid.vert.spv.
func ShaderFileName(dir, name, stage string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s.spv", name, stage))
}

// NewShaderStage loads dir/name.stage.spv and creates its module.
func NewShaderStage(device DeviceDriver, dir, name, stage string, flag vk.ShaderStageFlagBits) (*VulkanShaderStage, error) {
	fileName := ShaderFileName(dir, name, stage)
	code, err := os.ReadFile(fileName)
	if err != nil {
		err = fmt.Errorf("%w: unable to read shader module %s: %s", core.ErrResourceCreation, fileName, err)
		core.LogError("%s", err)
		return nil, err
	}
	return NewShaderStageFromCode(device, code, flag)
}

func NewShaderStageFromCode(device DeviceDriver, code []byte, flag vk.ShaderStageFlagBits) (*VulkanShaderStage, error) {
	module, err := device.CreateShaderModule(code)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	return &VulkanShaderStage{
		Handle: module,
		ShaderStageCreateInfo: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  flag,
			Module: module,
			PName:  VulkanSafeString("main"),
		},
	}, nil
}

func (s *VulkanShaderStage) Destroy(device DeviceDriver) {
	if s.Handle != vk.NullShaderModule {
		device.DestroyShaderModule(s.Handle)
		s.Handle = vk.NullShaderModule
	}
}
