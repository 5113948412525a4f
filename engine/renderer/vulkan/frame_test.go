package vulkan_test

import (
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vkapp/engine/core"
	"github.com/spaghettifunk/vkapp/engine/renderer/vulkan"
	"github.com/spaghettifunk/vkapp/engine/renderer/vulkan/vulkantest"
)

func slotFences(r *vulkan.VulkanRenderer) [2]uint64 {
	s := r.Scheduler()
	return [2]uint64{
		vulkantest.FenceID(s.Slot(0).InFlight.Handle),
		vulkantest.FenceID(s.Slot(1).InFlight.Handle),
	}
}

func TestFrameSlotsAlternate(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	r := newRenderer(t, dev, vulkantest.NewFakeWindow(1280, 720))
	fences := slotFences(r)
	require.NotEqual(t, fences[0], fences[1])

	var slots []uint32
	for i := 0; i < 4; i++ {
		slots = append(slots, r.Scheduler().CurrentFrame)
		require.NoError(t, r.DrawFrame(nil))
	}

	assert.Equal(t, []uint32{0, 1, 0, 1}, slots)
	assert.Equal(t, []uint64{fences[0], fences[1], fences[0], fences[1]}, submittedFences(dev))
	assert.Equal(t, uint64(4), r.Scheduler().FrameNumber)
	assert.Equal(t, uint32(0), r.Scheduler().CurrentFrame)
	assert.Equal(t, 4, dev.Count("QueuePresent"))

	// Each slot waits on its own fence before touching its command buffer.
	assert.Equal(t, 2, dev.CountFor("WaitForFence", fences[0]))
	assert.Equal(t, 2, dev.CountFor("WaitForFence", fences[1]))

	require.NoError(t, r.Shutdown())
	assert.Zero(t, dev.LiveTotal())
	requireClean(t, dev)
}

func TestFrameSubmitWiring(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	r := newRenderer(t, dev, vulkantest.NewFakeWindow(1280, 720))
	require.NoError(t, r.DrawFrame(nil))

	slot := r.Scheduler().Slot(0)
	require.Len(t, dev.Submits, 1)
	submit := dev.Submits[0]
	assert.Equal(t, []uint64{vulkantest.SemaphoreID(slot.ImageAvailable)}, vulkantest.SemaphoreIDs(submit.PWaitSemaphores))
	assert.Equal(t, []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}, submit.PWaitDstStageMask)
	assert.Equal(t, []uint64{vulkantest.SemaphoreID(slot.RenderFinished)}, vulkantest.SemaphoreIDs(submit.PSignalSemaphores))
	assert.Equal(t, []uint64{vulkantest.CommandBufferID(slot.CommandBuffer.Handle)}, vulkantest.CommandBufferIDs(submit.PCommandBuffers))

	require.Len(t, dev.Presents, 1)
	present := dev.Presents[0]
	assert.Equal(t, []uint64{vulkantest.SemaphoreID(slot.RenderFinished)}, vulkantest.SemaphoreIDs(present.PWaitSemaphores))
	assert.Equal(t, []uint64{vulkantest.SwapchainID(r.Swapchain().Current().Handle)}, vulkantest.SwapchainIDs(present.PSwapchains))
	assert.Equal(t, []uint32{r.Scheduler().ImageIndex}, present.PImageIndices)

	require.NoError(t, r.Shutdown())
	requireClean(t, dev)
}

func TestFrameOutOfDateAcquireThenRecover(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	r := newRenderer(t, dev, vulkantest.NewFakeWindow(1280, 720))
	dev.AcquireScript[5] = vk.ErrorOutOfDate

	for i := 0; i < 4; i++ {
		require.NoError(t, r.DrawFrame(nil))
	}
	err := r.DrawFrame(nil)
	require.ErrorIs(t, err, core.ErrSwapchainOutOfDate)

	// Nothing was submitted, so the slot did not move and its fence stays signaled.
	assert.Equal(t, uint32(0), r.Scheduler().CurrentFrame)
	assert.Equal(t, uint64(4), r.Scheduler().FrameNumber)
	assert.Equal(t, 4, dev.Count("ResetFence"))
	assert.Equal(t, 4, dev.Count("QueueSubmit"))

	oldID := vulkantest.SwapchainID(r.Swapchain().Current().Handle)
	require.NoError(t, r.RecreateSwapchain())
	assert.Equal(t, uint64(2), r.Swapchain().Generation())
	assert.Equal(t, 1, dev.CountFor("DestroySwapchain", oldID))

	require.NoError(t, r.DrawFrame(nil))
	assert.Equal(t, uint32(1), r.Scheduler().CurrentFrame)
	assert.Equal(t, 5, dev.Count("QueueSubmit"))

	require.NoError(t, r.Shutdown())
	assert.Zero(t, dev.LiveTotal())
	requireClean(t, dev)
}

func TestFrameSuboptimalPresentAdvancesAndReportsStale(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	r := newRenderer(t, dev, vulkantest.NewFakeWindow(1280, 720))
	dev.PresentScript[1] = vk.Suboptimal

	err := r.DrawFrame(nil)
	require.ErrorIs(t, err, core.ErrSwapchainOutOfDate)
	assert.Equal(t, uint32(1), r.Scheduler().CurrentFrame)
	assert.Equal(t, 1, dev.Count("QueueSubmit"))

	require.NoError(t, r.RecreateSwapchain())
	require.NoError(t, r.DrawFrame(nil))
	require.NoError(t, r.DrawFrame(nil))

	require.NoError(t, r.Shutdown())
	requireClean(t, dev)
}

func TestFrameOutOfDatePresent(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	r := newRenderer(t, dev, vulkantest.NewFakeWindow(1280, 720))
	dev.PresentScript[2] = vk.ErrorOutOfDate

	require.NoError(t, r.DrawFrame(nil))
	require.ErrorIs(t, r.DrawFrame(nil), core.ErrSwapchainOutOfDate)
	assert.Equal(t, uint64(2), r.Scheduler().FrameNumber)

	require.NoError(t, r.Shutdown())
	requireClean(t, dev)
}

func TestFrameSuboptimalAcquireIsAccepted(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	r := newRenderer(t, dev, vulkantest.NewFakeWindow(1280, 720))
	dev.AcquireScript[1] = vk.Suboptimal

	require.NoError(t, r.DrawFrame(nil))
	assert.Equal(t, 1, dev.Count("QueuePresent"))

	require.NoError(t, r.Shutdown())
	requireClean(t, dev)
}

func TestFrameDeviceLostIsFatal(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	r := newRenderer(t, dev, vulkantest.NewFakeWindow(1280, 720))
	dev.AcquireScript[1] = vk.ErrorDeviceLost

	err := r.DrawFrame(nil)
	require.ErrorIs(t, err, core.ErrDeviceDriver)
	assert.NotErrorIs(t, err, core.ErrSwapchainOutOfDate)
	assert.Contains(t, err.Error(), "VK_ERROR_DEVICE_LOST")
	assert.Zero(t, dev.Count("QueueSubmit"))

	require.NoError(t, r.Shutdown())
	requireClean(t, dev)
}

func TestFrameRecordsInsideRenderPass(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	r := newRenderer(t, dev, vulkantest.NewFakeWindow(1280, 720))

	calls := 0
	var recordedImage uint32
	err := r.DrawFrame(func(cb vk.CommandBuffer, imageIndex uint32) {
		calls++
		recordedImage = imageIndex
		r.Driver().CmdDraw(cb, 6, 1, 0, 0)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, r.Scheduler().ImageIndex, recordedImage)

	ops := dev.Ops()
	indexOf := func(op string) int {
		for i, o := range ops {
			if o == op {
				return i
			}
		}
		return -1
	}
	begin, draw, end := indexOf("CmdBeginRenderPass"), indexOf("CmdDraw"), indexOf("CmdEndRenderPass")
	require.NotEqual(t, -1, draw)
	assert.Less(t, indexOf("ResetFence"), indexOf("ResetCommandBuffer"))
	assert.Less(t, indexOf("BeginCommandBuffer"), begin)
	assert.Less(t, begin, indexOf("CmdSetViewport"))
	assert.Less(t, indexOf("CmdSetScissor"), draw)
	assert.Less(t, draw, end)
	assert.Less(t, end, indexOf("EndCommandBuffer"))
	assert.Less(t, indexOf("EndCommandBuffer"), indexOf("QueueSubmit"))
	assert.Less(t, indexOf("QueueSubmit"), indexOf("QueuePresent"))

	require.NoError(t, r.Shutdown())
	requireClean(t, dev)
}

func TestFrameClearAndViewport(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	r := newRenderer(t, dev, vulkantest.NewFakeWindow(1280, 720))
	require.NoError(t, r.DrawFrame(nil))

	require.Len(t, dev.BeginInfos, 1)
	begin := dev.BeginInfos[0]
	full := vk.Rect2D{Extent: vk.Extent2D{Width: 1280, Height: 720}}
	assert.Equal(t, full, begin.RenderArea)
	require.Len(t, begin.PClearValues, 1)
	cv := begin.PClearValues[0]
	assert.Equal(t, testClearColor, *(*[4]float32)(unsafe.Pointer(&cv)))

	image := r.Scheduler().ImageIndex
	assert.Equal(t, vulkantest.FramebufferID(r.Swapchain().Current().Framebuffers[image].Handle), vulkantest.FramebufferID(begin.Framebuffer))

	require.Len(t, dev.Viewports, 1)
	assert.Equal(t, vk.Viewport{Width: 1280, Height: 720, MinDepth: 0, MaxDepth: 1}, dev.Viewports[0])
	require.Len(t, dev.Scissors, 1)
	assert.Equal(t, full, dev.Scissors[0])

	require.NoError(t, r.Shutdown())
	requireClean(t, dev)
}

func TestFrameWithoutChain(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	r := newRenderer(t, dev, vulkantest.NewFakeWindow(1280, 720))

	dev.FailCall("CreateSwapchain", 2)
	require.Error(t, r.RecreateSwapchain())
	require.ErrorIs(t, r.DrawFrame(nil), core.ErrDeviceDriver)

	require.NoError(t, r.Shutdown())
	assert.Zero(t, dev.LiveTotal())
	requireClean(t, dev)
}
