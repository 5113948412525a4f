package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkapp/engine/core"
)

// DescriptorPoolCreateInfo sizes a uniform buffer pool with one set per
// swapchain image.
func DescriptorPoolCreateInfo(imageCount uint32) (vk.DescriptorPoolCreateInfo, []vk.DescriptorPoolSize) {
	sizes := []vk.DescriptorPoolSize{
		{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: imageCount,
		},
	}
	return vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       imageCount,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, sizes
}

func DescriptorPoolCreate(device DeviceDriver, imageCount uint32) (vk.DescriptorPool, error) {
	info, _ := DescriptorPoolCreateInfo(imageCount)
	pool, err := device.CreateDescriptorPool(&info)
	if err != nil {
		core.LogError("%s", err)
		return vk.NullDescriptorPool, err
	}
	core.LogDebug("Descriptor pool created for %d sets.", imageCount)
	return pool, nil
}
