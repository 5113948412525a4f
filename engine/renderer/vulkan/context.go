package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkapp/engine/core"
)

// VulkanContext owns the instance, the optional debug callback, the surface and
// the device. It is created once and destroyed after everything built on it.
type VulkanContext struct {
	AppName     string
	Diagnostics bool

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	resources *ReleaseStack
}

func NewVulkanContext(appName string, diagnostics bool) *VulkanContext {
	return &VulkanContext{
		AppName:     appName,
		Diagnostics: diagnostics,
		resources:   NewReleaseStack("graphics context"),
	}
}

// Initialize brings up the instance, surface and device. On failure everything
// acquired so far is released before the error is returned.
func (vc *VulkanContext) Initialize(provider SurfaceProvider) (err error) {
	defer func() {
		if err != nil {
			core.LogError("%s", err)
			vc.resources.Release()
		}
	}()

	procAddr := provider.GetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("%w: GetInstanceProcAddress is nil", core.ErrInitialization)
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return fmt.Errorf("%w: failed to initialize vk: %s", core.ErrInitialization, err)
	}

	portability := darwinPortability()
	extensions := InstanceExtensions(provider.RequiredInstanceExtensions(), vc.Diagnostics, portability)
	var layers []string
	if vc.Diagnostics {
		layers = []string{validationLayerName}
		if err := checkValidationLayers(layers); err != nil {
			return err
		}
	}

	instance, err := createInstance(vc.AppName, extensions, layers, portability, vc.Allocator)
	if err != nil {
		return err
	}
	vc.Instance = instance
	vc.resources.Push("instance", func() {
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	})

	if vc.Diagnostics {
		dbg, err := createDebugCallback(vc.Instance, vc.Allocator)
		if err != nil {
			return err
		}
		vc.debugMessenger = dbg
		vc.resources.Push("debug callback", func() {
			vk.DestroyDebugReportCallback(vc.Instance, vc.debugMessenger, vc.Allocator)
			vc.debugMessenger = vk.NullDebugReportCallback
		})
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := provider.CreateWindowSurface(vc.Instance)
	if err != nil {
		return fmt.Errorf("%w: surface creation failed: %s", core.ErrInitialization, err)
	}
	vc.Surface = surface
	vc.resources.Push("surface", func() {
		vk.DestroySurface(vc.Instance, vc.Surface, vc.Allocator)
		vc.Surface = vk.NullSurface
	})
	core.LogDebug("Vulkan surface created.")

	device, err := SelectPhysicalDevice(vc.Instance, vc.Surface)
	if err != nil {
		return err
	}
	device.Allocator = vc.Allocator
	if err := DeviceCreate(device); err != nil {
		return err
	}
	vc.Device = device
	vc.resources.Push("device", func() {
		DeviceDestroy(vc.Device)
		vc.Device = nil
	})

	core.LogInfo("Vulkan context initialized successfully.")
	return nil
}

// Destroy releases the device, surface, debug callback and instance in that order.
func (vc *VulkanContext) Destroy() {
	vc.resources.Release()
}
