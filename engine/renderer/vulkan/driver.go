package vulkan

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkapp/engine/core"
)

// FramebufferSource is the part of the platform window the swapchain needs.
type FramebufferSource interface {
	// FramebufferSize returns the live framebuffer size in pixels.
	FramebufferSize() (uint32, uint32)
	// WaitEvents blocks until the platform delivers at least one event.
	WaitEvents()
}

// SurfaceProvider is what the graphics context consumes from the platform layer.
type SurfaceProvider interface {
	FramebufferSource
	GetInstanceProcAddress() unsafe.Pointer
	RequiredInstanceExtensions() []string
	CreateWindowSurface(instance vk.Instance) (vk.Surface, error)
}

// DeviceDriver is the device-level slice of the Vulkan API used by the
// swapchain manager, the frame scheduler and render content. *VulkanDevice is
// the production implementation; vulkantest.FakeDevice records calls in tests.
type DeviceDriver interface {
	WaitIdle() error
	QuerySwapchainSupport() (*SwapchainSupportInfo, error)
	PushConstantsLimit() uint32

	CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error)
	GetSwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error)
	DestroySwapchain(swapchain vk.Swapchain)
	CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error)
	DestroyImageView(view vk.ImageView)
	CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error)
	DestroyFramebuffer(framebuffer vk.Framebuffer)
	CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error)
	DestroyRenderPass(renderpass vk.RenderPass)
	CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error)
	DestroyDescriptorPool(pool vk.DescriptorPool)

	CreateShaderModule(code []byte) (vk.ShaderModule, error)
	DestroyShaderModule(module vk.ShaderModule)
	CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error)
	DestroyPipelineLayout(layout vk.PipelineLayout)
	CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error)
	DestroyPipeline(pipeline vk.Pipeline)

	CreateSemaphore() (vk.Semaphore, error)
	DestroySemaphore(semaphore vk.Semaphore)
	CreateFence(signaled bool) (vk.Fence, error)
	DestroyFence(fence vk.Fence)
	WaitForFence(fence vk.Fence, timeoutNs uint64) vk.Result
	ResetFence(fence vk.Fence) vk.Result

	AllocateCommandBuffers(count uint32, primary bool) ([]vk.CommandBuffer, error)
	FreeCommandBuffers(buffers []vk.CommandBuffer)
	ResetCommandBuffer(commandBuffer vk.CommandBuffer) vk.Result
	BeginCommandBuffer(commandBuffer vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result
	EndCommandBuffer(commandBuffer vk.CommandBuffer) vk.Result
	CmdBeginRenderPass(commandBuffer vk.CommandBuffer, info *vk.RenderPassBeginInfo)
	CmdEndRenderPass(commandBuffer vk.CommandBuffer)
	CmdSetViewport(commandBuffer vk.CommandBuffer, viewport vk.Viewport)
	CmdSetScissor(commandBuffer vk.CommandBuffer, scissor vk.Rect2D)
	CmdBindPipeline(commandBuffer vk.CommandBuffer, pipeline vk.Pipeline)
	CmdPushConstants(commandBuffer vk.CommandBuffer, layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte)
	CmdDraw(commandBuffer vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// AcquireNextImage signals semaphore once the returned image is available.
	AcquireNextImage(swapchain vk.Swapchain, timeoutNs uint64, semaphore vk.Semaphore) (uint32, vk.Result)
	// QueueSubmit submits to the graphics queue.
	QueueSubmit(info vk.SubmitInfo, fence vk.Fence) vk.Result
	// QueuePresent presents on the present queue.
	QueuePresent(info *vk.PresentInfo) vk.Result
}

var _ DeviceDriver = (*VulkanDevice)(nil)

func (d *VulkanDevice) WaitIdle() error {
	if res := vk.DeviceWaitIdle(d.LogicalDevice); res != vk.Success {
		return resultError("vkDeviceWaitIdle", res, core.ErrDeviceDriver)
	}
	return nil
}

func (d *VulkanDevice) QuerySwapchainSupport() (*SwapchainSupportInfo, error) {
	return DeviceQuerySwapchainSupport(d.PhysicalDevice, d.Surface)
}

func (d *VulkanDevice) PushConstantsLimit() uint32 {
	return d.Properties.Limits.MaxPushConstantsSize
}

func (d *VulkanDevice) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	var swapchain vk.Swapchain
	if res := vk.CreateSwapchain(d.LogicalDevice, info, d.Allocator, &swapchain); res != vk.Success {
		return nil, resultError("vkCreateSwapchainKHR", res, core.ErrResourceCreation)
	}
	return swapchain, nil
}

func (d *VulkanDevice) GetSwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error) {
	var count uint32
	if res := vk.GetSwapchainImages(d.LogicalDevice, swapchain, &count, nil); res != vk.Success {
		return nil, resultError("vkGetSwapchainImagesKHR", res, core.ErrResourceCreation)
	}
	images := make([]vk.Image, count)
	if res := vk.GetSwapchainImages(d.LogicalDevice, swapchain, &count, images); res != vk.Success {
		return nil, resultError("vkGetSwapchainImagesKHR", res, core.ErrResourceCreation)
	}
	return images[:count], nil
}

func (d *VulkanDevice) DestroySwapchain(swapchain vk.Swapchain) {
	vk.DestroySwapchain(d.LogicalDevice, swapchain, d.Allocator)
}

func (d *VulkanDevice) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	var view vk.ImageView
	if res := vk.CreateImageView(d.LogicalDevice, info, d.Allocator, &view); res != vk.Success {
		return nil, resultError("vkCreateImageView", res, core.ErrResourceCreation)
	}
	return view, nil
}

func (d *VulkanDevice) DestroyImageView(view vk.ImageView) {
	vk.DestroyImageView(d.LogicalDevice, view, d.Allocator)
}

func (d *VulkanDevice) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	var framebuffer vk.Framebuffer
	if res := vk.CreateFramebuffer(d.LogicalDevice, info, d.Allocator, &framebuffer); res != vk.Success {
		return nil, resultError("vkCreateFramebuffer", res, core.ErrResourceCreation)
	}
	return framebuffer, nil
}

func (d *VulkanDevice) DestroyFramebuffer(framebuffer vk.Framebuffer) {
	vk.DestroyFramebuffer(d.LogicalDevice, framebuffer, d.Allocator)
}

func (d *VulkanDevice) CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	var renderpass vk.RenderPass
	if res := vk.CreateRenderPass(d.LogicalDevice, info, d.Allocator, &renderpass); res != vk.Success {
		return nil, resultError("vkCreateRenderPass", res, core.ErrResourceCreation)
	}
	return renderpass, nil
}

func (d *VulkanDevice) DestroyRenderPass(renderpass vk.RenderPass) {
	vk.DestroyRenderPass(d.LogicalDevice, renderpass, d.Allocator)
}

func (d *VulkanDevice) CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error) {
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(d.LogicalDevice, info, d.Allocator, &pool); res != vk.Success {
		return nil, resultError("vkCreateDescriptorPool", res, core.ErrResourceCreation)
	}
	return pool, nil
}

func (d *VulkanDevice) DestroyDescriptorPool(pool vk.DescriptorPool) {
	vk.DestroyDescriptorPool(d.LogicalDevice, pool, d.Allocator)
}

func (d *VulkanDevice) CreateShaderModule(code []byte) (vk.ShaderModule, error) {
	words, err := SpirvWords(code)
	if err != nil {
		return nil, err
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(d.LogicalDevice, &info, d.Allocator, &module); res != vk.Success {
		return nil, resultError("vkCreateShaderModule", res, core.ErrResourceCreation)
	}
	return module, nil
}

func (d *VulkanDevice) DestroyShaderModule(module vk.ShaderModule) {
	vk.DestroyShaderModule(d.LogicalDevice, module, d.Allocator)
}

func (d *VulkanDevice) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(d.LogicalDevice, info, d.Allocator, &layout); res != vk.Success {
		return nil, resultError("vkCreatePipelineLayout", res, core.ErrResourceCreation)
	}
	return layout, nil
}

func (d *VulkanDevice) DestroyPipelineLayout(layout vk.PipelineLayout) {
	vk.DestroyPipelineLayout(d.LogicalDevice, layout, d.Allocator)
}

func (d *VulkanDevice) CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(d.LogicalDevice, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{*info}, d.Allocator, pipelines); res != vk.Success {
		return nil, resultError("vkCreateGraphicsPipelines", res, core.ErrResourceCreation)
	}
	return pipelines[0], nil
}

func (d *VulkanDevice) DestroyPipeline(pipeline vk.Pipeline) {
	vk.DestroyPipeline(d.LogicalDevice, pipeline, d.Allocator)
}

func (d *VulkanDevice) CreateSemaphore() (vk.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(d.LogicalDevice, &info, d.Allocator, &semaphore); res != vk.Success {
		return nil, resultError("vkCreateSemaphore", res, core.ErrResourceCreation)
	}
	return semaphore, nil
}

func (d *VulkanDevice) DestroySemaphore(semaphore vk.Semaphore) {
	vk.DestroySemaphore(d.LogicalDevice, semaphore, d.Allocator)
}

func (d *VulkanDevice) CreateFence(signaled bool) (vk.Fence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if res := vk.CreateFence(d.LogicalDevice, &info, d.Allocator, &fence); res != vk.Success {
		return nil, resultError("vkCreateFence", res, core.ErrResourceCreation)
	}
	return fence, nil
}

func (d *VulkanDevice) DestroyFence(fence vk.Fence) {
	vk.DestroyFence(d.LogicalDevice, fence, d.Allocator)
}

func (d *VulkanDevice) WaitForFence(fence vk.Fence, timeoutNs uint64) vk.Result {
	return vk.WaitForFences(d.LogicalDevice, 1, []vk.Fence{fence}, vk.True, timeoutNs)
}

func (d *VulkanDevice) ResetFence(fence vk.Fence) vk.Result {
	return vk.ResetFences(d.LogicalDevice, 1, []vk.Fence{fence})
}

func (d *VulkanDevice) AllocateCommandBuffers(count uint32, primary bool) ([]vk.CommandBuffer, error) {
	level := vk.CommandBufferLevelSecondary
	if primary {
		level = vk.CommandBufferLevelPrimary
	}
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.GraphicsCommandPool,
		Level:              level,
		CommandBufferCount: count,
	}
	buffers := make([]vk.CommandBuffer, count)
	if res := vk.AllocateCommandBuffers(d.LogicalDevice, &info, buffers); res != vk.Success {
		return nil, resultError("vkAllocateCommandBuffers", res, core.ErrResourceCreation)
	}
	return buffers, nil
}

func (d *VulkanDevice) FreeCommandBuffers(buffers []vk.CommandBuffer) {
	if len(buffers) == 0 {
		return
	}
	vk.FreeCommandBuffers(d.LogicalDevice, d.GraphicsCommandPool, uint32(len(buffers)), buffers)
}

func (d *VulkanDevice) ResetCommandBuffer(commandBuffer vk.CommandBuffer) vk.Result {
	return vk.ResetCommandBuffer(commandBuffer, 0)
}

func (d *VulkanDevice) BeginCommandBuffer(commandBuffer vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result {
	return vk.BeginCommandBuffer(commandBuffer, info)
}

func (d *VulkanDevice) EndCommandBuffer(commandBuffer vk.CommandBuffer) vk.Result {
	return vk.EndCommandBuffer(commandBuffer)
}

func (d *VulkanDevice) CmdBeginRenderPass(commandBuffer vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	vk.CmdBeginRenderPass(commandBuffer, info, vk.SubpassContentsInline)
}

func (d *VulkanDevice) CmdEndRenderPass(commandBuffer vk.CommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer)
}

func (d *VulkanDevice) CmdSetViewport(commandBuffer vk.CommandBuffer, viewport vk.Viewport) {
	vk.CmdSetViewport(commandBuffer, 0, 1, []vk.Viewport{viewport})
}

func (d *VulkanDevice) CmdSetScissor(commandBuffer vk.CommandBuffer, scissor vk.Rect2D) {
	vk.CmdSetScissor(commandBuffer, 0, 1, []vk.Rect2D{scissor})
}

func (d *VulkanDevice) CmdBindPipeline(commandBuffer vk.CommandBuffer, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(commandBuffer, vk.PipelineBindPointGraphics, pipeline)
}

func (d *VulkanDevice) CmdPushConstants(commandBuffer vk.CommandBuffer, layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(commandBuffer, layout, stages, offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (d *VulkanDevice) CmdDraw(commandBuffer vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(commandBuffer, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (d *VulkanDevice) AcquireNextImage(swapchain vk.Swapchain, timeoutNs uint64, semaphore vk.Semaphore) (uint32, vk.Result) {
	var imageIndex uint32
	res := vk.AcquireNextImage(d.LogicalDevice, swapchain, timeoutNs, semaphore, vk.NullFence, &imageIndex)
	return imageIndex, res
}

func (d *VulkanDevice) QueueSubmit(info vk.SubmitInfo, fence vk.Fence) vk.Result {
	return vk.QueueSubmit(d.GraphicsQueue, 1, []vk.SubmitInfo{info}, fence)
}

func (d *VulkanDevice) QueuePresent(info *vk.PresentInfo) vk.Result {
	return vk.QueuePresent(d.PresentQueue, info)
}

// SpirvWords repacks a SPIR-V blob into the little-endian words Vulkan expects.
func SpirvWords(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("%w: SPIR-V size %d is not a positive multiple of 4", core.ErrResourceCreation, len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("%w: bad SPIR-V magic 0x%08x", core.ErrResourceCreation, words[0])
	}
	return words, nil
}
