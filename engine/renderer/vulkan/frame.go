package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkapp/engine/core"
)

// FrameSlot is the per-frame synchronisation set. A slot's command buffer is
// only touched after its InFlight fence has been waited on.
type FrameSlot struct {
	ImageAvailable vk.Semaphore
	RenderFinished vk.Semaphore
	InFlight       *VulkanFence
	CommandBuffer  *VulkanCommandBuffer
}

// RecordFunc records draw commands inside the active render pass.
type RecordFunc func(commandBuffer vk.CommandBuffer, imageIndex uint32)

type FrameScheduler struct {
	device     DeviceDriver
	swapchain  *SwapchainManager
	renderpass *Renderpass

	slots        [MaxFramesInFlight]*FrameSlot
	CurrentFrame uint32
	ImageIndex   uint32
	FrameNumber  uint64

	resources *ReleaseStack
}

// NewFrameScheduler creates MaxFramesInFlight slots. Fences start signaled so
// the first wait on each slot returns immediately.
func NewFrameScheduler(device DeviceDriver, swapchain *SwapchainManager, renderpass *Renderpass) (*FrameScheduler, error) {
	fs := &FrameScheduler{
		device:     device,
		swapchain:  swapchain,
		renderpass: renderpass,
		resources:  NewReleaseStack("frame scheduler"),
	}

	buffers, err := AllocateCommandBuffers(device, MaxFramesInFlight)
	if err != nil {
		return nil, err
	}
	fs.resources.Push("command buffers", func() {
		for _, cb := range buffers {
			cb.Free(device)
		}
	})

	for i := 0; i < MaxFramesInFlight; i++ {
		slot := &FrameSlot{CommandBuffer: buffers[i]}

		if slot.ImageAvailable, err = device.CreateSemaphore(); err != nil {
			fs.resources.Release()
			return nil, err
		}
		imageAvailable := slot.ImageAvailable
		fs.resources.Push("image available semaphore", func() { device.DestroySemaphore(imageAvailable) })

		if slot.RenderFinished, err = device.CreateSemaphore(); err != nil {
			fs.resources.Release()
			return nil, err
		}
		renderFinished := slot.RenderFinished
		fs.resources.Push("render finished semaphore", func() { device.DestroySemaphore(renderFinished) })

		if slot.InFlight, err = NewFence(device, true); err != nil {
			fs.resources.Release()
			return nil, err
		}
		fence := slot.InFlight
		fs.resources.Push("in flight fence", func() { fence.Destroy(device) })

		fs.slots[i] = slot
	}
	core.LogDebug("Created %d frame slots.", MaxFramesInFlight)
	return fs, nil
}

// Slot returns the slot at index i.
func (fs *FrameScheduler) Slot(i int) *FrameSlot {
	return fs.slots[i]
}

// DrawFrame renders and presents one frame through the current slot. It
// returns core.ErrSwapchainOutOfDate when the chain must be recreated; any
// other error is fatal.
func (fs *FrameScheduler) DrawFrame(record RecordFunc) error {
	chain := fs.swapchain.Current()
	if chain == nil {
		return fmt.Errorf("%w: no image chain to draw into", core.ErrDeviceDriver)
	}
	slot := fs.slots[fs.CurrentFrame]

	// Wait for the GPU to finish the previous use of this slot.
	if err := slot.InFlight.Wait(fs.device, noTimeout); err != nil {
		return err
	}

	imageIndex, res := fs.device.AcquireNextImage(chain.Handle, noTimeout, slot.ImageAvailable)
	switch res {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		// The fence stays signaled so the retry on this slot does not block.
		return core.ErrSwapchainOutOfDate
	default:
		err := resultError("vkAcquireNextImageKHR", res, core.ErrDeviceDriver)
		core.LogError("%s", err)
		return err
	}
	if int(imageIndex) >= len(chain.Framebuffers) {
		return fmt.Errorf("%w: acquired image %d out of range", core.ErrDeviceDriver, imageIndex)
	}
	fs.ImageIndex = imageIndex

	if err := slot.InFlight.Reset(fs.device); err != nil {
		return err
	}

	if err := fs.record(slot.CommandBuffer, chain, imageIndex, record); err != nil {
		core.LogError("%s", err)
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{slot.ImageAvailable},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{slot.CommandBuffer.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{slot.RenderFinished},
	}
	if res := fs.device.QueueSubmit(submitInfo, slot.InFlight.Handle); res != vk.Success {
		err := resultError("vkQueueSubmit", res, core.ErrDeviceDriver)
		core.LogError("%s", err)
		return err
	}
	slot.CommandBuffer.UpdateSubmitted()

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{slot.RenderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{chain.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	res = fs.device.QueuePresent(&presentInfo)

	// The frame was submitted either way, so the slot moves on.
	fs.advance()

	switch res {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return core.ErrSwapchainOutOfDate
	default:
		err := resultError("vkQueuePresentKHR", res, core.ErrDeviceDriver)
		core.LogError("%s", err)
		return err
	}
}

func (fs *FrameScheduler) record(cb *VulkanCommandBuffer, chain *ImageChain, imageIndex uint32, record RecordFunc) error {
	if err := cb.Reset(fs.device); err != nil {
		return err
	}
	if err := cb.Begin(fs.device, false, false, false); err != nil {
		return err
	}

	extent := chain.Config.Extent
	fs.renderpass.Begin(fs.device, cb, chain.Framebuffers[imageIndex].Handle, extent)

	fs.device.CmdSetViewport(cb.Handle, vk.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	})
	fs.device.CmdSetScissor(cb.Handle, vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: extent,
	})

	if record != nil {
		record(cb.Handle, imageIndex)
	}

	fs.renderpass.End(fs.device, cb)
	return cb.End(fs.device)
}

func (fs *FrameScheduler) advance() {
	fs.CurrentFrame = (fs.CurrentFrame + 1) % MaxFramesInFlight
	fs.FrameNumber++
}

// Destroy waits for the device to go idle, then releases every slot.
func (fs *FrameScheduler) Destroy() {
	if err := fs.device.WaitIdle(); err != nil {
		core.LogWarn("Device wait idle failed during frame scheduler teardown: %s", err)
	}
	fs.resources.Release()
	for i := range fs.slots {
		fs.slots[i] = nil
	}
}
