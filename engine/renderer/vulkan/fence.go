package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkapp/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(device DeviceDriver, createSignaled bool) (*VulkanFence, error) {
	handle, err := device.CreateFence(createSignaled)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	return &VulkanFence{
		Handle:     handle,
		IsSignaled: createSignaled,
	}, nil
}

func (vf *VulkanFence) Destroy(device DeviceDriver) {
	if vf.Handle != vk.NullFence {
		device.DestroyFence(vf.Handle)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

// Wait blocks until the fence is signaled. The device is always asked, the
// cached flag is bookkeeping only.
func (vf *VulkanFence) Wait(device DeviceDriver, timeoutNs uint64) error {
	result := device.WaitForFence(vf.Handle, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return resultError("vkWaitForFences", result, core.ErrDeviceDriver)
	case vk.ErrorDeviceLost:
		core.LogError("vk_fence_wait - VK_ERROR_DEVICE_LOST.")
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory:
		core.LogError("vk_fence_wait - %s.", VulkanResultString(result))
	default:
		core.LogError("vk_fence_wait - An unknown error has occurred.")
	}
	return resultError("vkWaitForFences", result, core.ErrDeviceDriver)
}

func (vf *VulkanFence) Reset(device DeviceDriver) error {
	if res := device.ResetFence(vf.Handle); res != vk.Success {
		err := fmt.Errorf("failed to reset fence: %w", resultError("vkResetFences", res, core.ErrDeviceDriver))
		core.LogError("%s", err)
		return err
	}
	vf.IsSignaled = false
	return nil
}
