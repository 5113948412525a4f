package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkapp/engine/core"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

// AllocateCommandBuffers allocates count primary command buffers from the
// graphics pool.
func AllocateCommandBuffers(device DeviceDriver, count uint32) ([]*VulkanCommandBuffer, error) {
	handles, err := device.AllocateCommandBuffers(count, true)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	out := make([]*VulkanCommandBuffer, len(handles))
	for i, handle := range handles {
		out[i] = &VulkanCommandBuffer{
			Handle: handle,
			State:  COMMAND_BUFFER_STATE_READY,
		}
	}
	return out, nil
}

func (v *VulkanCommandBuffer) Free(device DeviceDriver) {
	if v.State == COMMAND_BUFFER_STATE_NOT_ALLOCATED {
		return
	}
	device.FreeCommandBuffers([]vk.CommandBuffer{v.Handle})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

// Reset returns the buffer to the initial state. Only legal once the GPU is
// done with its previous submission.
func (v *VulkanCommandBuffer) Reset(device DeviceDriver) error {
	if res := device.ResetCommandBuffer(v.Handle); res != vk.Success {
		return resultError("vkResetCommandBuffer", res, core.ErrDeviceDriver)
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

func (v *VulkanCommandBuffer) Begin(device DeviceDriver, isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: 0,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if res := device.BeginCommandBuffer(v.Handle, beginInfo); res != vk.Success {
		return resultError("vkBeginCommandBuffer", res, core.ErrDeviceDriver)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End(device DeviceDriver) error {
	if res := device.EndCommandBuffer(v.Handle); res != vk.Success {
		return resultError("vkEndCommandBuffer", res, core.ErrDeviceDriver)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}
