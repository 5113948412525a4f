package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkapp/engine/core"
)

// RenderTarget is what render content needs from the renderer to build and
// record its pipelines.
type RenderTarget interface {
	Driver() DeviceDriver
	Renderpass() *Renderpass
	Extent() vk.Extent2D
	MaxPushConstantsSize() uint32
}

type VulkanRenderer struct {
	config   core.RendererConfig
	provider SurfaceProvider

	context    *VulkanContext
	device     DeviceDriver
	swapchain  *SwapchainManager
	renderpass *Renderpass
	scheduler  *FrameScheduler

	descriptorPool vk.DescriptorPool

	// Current generation of framebuffer size. If it does not match
	// framebufferSizeLastGeneration, the swapchain should be recreated.
	framebufferSizeGeneration     uint64
	framebufferSizeLastGeneration uint64
	recreatingSwapchain           bool

	resources *ReleaseStack
}

var _ RenderTarget = (*VulkanRenderer)(nil)

func New(appName string, config core.RendererConfig, provider SurfaceProvider) *VulkanRenderer {
	return &VulkanRenderer{
		config:    config,
		provider:  provider,
		context:   NewVulkanContext(appName, config.EnableDiagnostics),
		resources: NewReleaseStack("renderer"),
	}
}

// Initialize brings up the graphics context, then the render pass, the first
// image chain, the descriptor pool and the frame slots.
func (vr *VulkanRenderer) Initialize() error {
	if err := vr.context.Initialize(vr.provider); err != nil {
		return err
	}
	vr.resources.Push("graphics context", vr.context.Destroy)

	device := vr.context.Device
	if err := vr.build(device, vr.context.Surface, vr.provider, device.Queues); err != nil {
		vr.resources.Release()
		return err
	}
	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

// NewFromDriver builds a renderer on a device that is already up, skipping
// context creation. The caller keeps ownership of the device.
func NewFromDriver(config core.RendererConfig, device DeviceDriver, surface vk.Surface, window FramebufferSource, queues QueueFamilyIndices) (*VulkanRenderer, error) {
	vr := &VulkanRenderer{
		config:    config,
		resources: NewReleaseStack("renderer"),
	}
	if err := vr.build(device, surface, window, queues); err != nil {
		vr.resources.Release()
		return nil, err
	}
	return vr, nil
}

func (vr *VulkanRenderer) build(device DeviceDriver, surface vk.Surface, window FramebufferSource, queues QueueFamilyIndices) error {
	vr.device = device
	vr.swapchain = NewSwapchainManager(device, surface, window, queues)

	format, err := vr.swapchain.PreferredFormat()
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrInitialization, err)
	}

	rp, err := RenderpassCreate(device, format.Format, vr.config.ClearColor)
	if err != nil {
		return err
	}
	vr.renderpass = rp
	vr.resources.Push("renderpass", func() { vr.renderpass.Destroy(device) })

	if err := vr.swapchain.Create(vr.renderpass); err != nil {
		return err
	}
	vr.resources.Push("swapchain", vr.swapchain.Cleanup)

	// Sized once, to the image count of the first chain.
	pool, err := DescriptorPoolCreate(device, vr.swapchain.ImageCount())
	if err != nil {
		return err
	}
	vr.descriptorPool = pool
	vr.resources.Push("descriptor pool", func() {
		device.DestroyDescriptorPool(vr.descriptorPool)
		vr.descriptorPool = vk.NullDescriptorPool
	})

	scheduler, err := NewFrameScheduler(device, vr.swapchain, vr.renderpass)
	if err != nil {
		return err
	}
	vr.scheduler = scheduler
	vr.resources.Push("frame scheduler", vr.scheduler.Destroy)
	return nil
}

// DrawFrame runs one frame through the scheduler. core.ErrSwapchainOutOfDate
// means RecreateSwapchain must run before the next frame.
func (vr *VulkanRenderer) DrawFrame(record RecordFunc) error {
	if vr.recreatingSwapchain {
		return core.ErrSwapchainOutOfDate
	}
	return vr.scheduler.DrawFrame(record)
}

// Resized records that the framebuffer changed size.
func (vr *VulkanRenderer) Resized(width, height uint32) {
	vr.framebufferSizeGeneration++
	core.LogInfo("Vulkan renderer backend->resized: w/h/gen: %d/%d/%d", width, height, vr.framebufferSizeGeneration)
}

// NeedsRecreate reports whether a resize arrived since the last recreation.
func (vr *VulkanRenderer) NeedsRecreate() bool {
	return vr.framebufferSizeGeneration != vr.framebufferSizeLastGeneration
}

func (vr *VulkanRenderer) RecreateSwapchain() error {
	// If already being recreated, do not try again.
	if vr.recreatingSwapchain {
		core.LogDebug("RecreateSwapchain called when already recreating. Booting.")
		return nil
	}
	vr.recreatingSwapchain = true
	defer func() { vr.recreatingSwapchain = false }()

	if err := vr.swapchain.Recreate(vr.renderpass); err != nil {
		return err
	}
	vr.framebufferSizeLastGeneration = vr.framebufferSizeGeneration
	return nil
}

// Shutdown waits for the device and destroys everything in reverse creation order.
func (vr *VulkanRenderer) Shutdown() error {
	if vr.device != nil {
		if err := vr.device.WaitIdle(); err != nil {
			core.LogWarn("Device wait idle failed during shutdown: %s", err)
		}
	}
	vr.resources.Release()
	return nil
}

func (vr *VulkanRenderer) Driver() DeviceDriver {
	return vr.device
}

// Device returns the logical device handle.
func (vr *VulkanRenderer) Device() vk.Device {
	if vr.context == nil || vr.context.Device == nil {
		return nil
	}
	return vr.context.Device.LogicalDevice
}

func (vr *VulkanRenderer) CommandPool() vk.CommandPool {
	if vr.context == nil || vr.context.Device == nil {
		return vk.NullCommandPool
	}
	return vr.context.Device.GraphicsCommandPool
}

func (vr *VulkanRenderer) Renderpass() *Renderpass {
	return vr.renderpass
}

func (vr *VulkanRenderer) DescriptorPool() vk.DescriptorPool {
	return vr.descriptorPool
}

func (vr *VulkanRenderer) Extent() vk.Extent2D {
	return vr.swapchain.Extent()
}

func (vr *VulkanRenderer) Swapchain() *SwapchainManager {
	return vr.swapchain
}

func (vr *VulkanRenderer) Scheduler() *FrameScheduler {
	return vr.scheduler
}

func (vr *VulkanRenderer) MaxPushConstantsSize() uint32 {
	return vr.device.PushConstantsLimit()
}
