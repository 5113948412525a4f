package vulkan

import (
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkapp/engine/core"
)

type VulkanDevice struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device
	Surface        vk.Surface
	Allocator      *vk.AllocationCallbacks

	Queues        QueueFamilyIndices
	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
}

type SwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// QueueFamilyIndices holds the families the graphics and present queues come from.
type QueueFamilyIndices struct {
	Graphics uint32
	Present  uint32
}

// Shared reports whether a single family serves both graphics and present.
func (q QueueFamilyIndices) Shared() bool {
	return q.Graphics == q.Present
}

// UniqueFamilies returns each distinct family once, graphics first.
func (q QueueFamilyIndices) UniqueFamilies() []uint32 {
	if q.Shared() {
		return []uint32{q.Graphics}
	}
	return []uint32{q.Graphics, q.Present}
}

// SelectQueueFamilies picks a graphics family and a present family. A family
// capable of both is preferred so that images never change queue ownership.
func SelectQueueFamilies(families []vk.QueueFamilyProperties, presentSupport func(index uint32) bool) (QueueFamilyIndices, bool) {
	graphics, present := -1, -1
	for i, family := range families {
		index := uint32(i)
		isGraphics := family.QueueCount > 0 && vk.QueueFlagBits(family.QueueFlags)&vk.QueueGraphicsBit != 0
		isPresent := presentSupport(index)
		if isGraphics && isPresent {
			return QueueFamilyIndices{Graphics: index, Present: index}, true
		}
		if isGraphics && graphics < 0 {
			graphics = i
		}
		if isPresent && present < 0 {
			present = i
		}
	}
	if graphics < 0 || present < 0 {
		return QueueFamilyIndices{}, false
	}
	return QueueFamilyIndices{Graphics: uint32(graphics), Present: uint32(present)}, true
}

// CheckDeviceExtensions returns the entries of required missing from available.
func CheckDeviceExtensions(available, required []string) []string {
	set := make(map[string]struct{}, len(available))
	for _, name := range available {
		set[name] = struct{}{}
	}
	var missing []string
	for _, name := range required {
		if _, ok := set[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func enumerateDeviceExtensions(physicalDevice vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(physicalDevice, "", &count, nil); res != vk.Success {
		return nil, resultError("vkEnumerateDeviceExtensionProperties", res, core.ErrInitialization)
	}
	properties := make([]vk.ExtensionProperties, count)
	if count > 0 {
		if res := vk.EnumerateDeviceExtensionProperties(physicalDevice, "", &count, properties); res != vk.Success {
			return nil, resultError("vkEnumerateDeviceExtensionProperties", res, core.ErrInitialization)
		}
	}
	names := make([]string, 0, count)
	for i := range properties {
		properties[i].Deref()
		names = append(names, cString(properties[i].ExtensionName[:]))
	}
	return names, nil
}

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface) (*SwapchainSupportInfo, error) {
	info := &SwapchainSupportInfo{}

	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &info.Capabilities); res != vk.Success {
		return nil, resultError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res, core.ErrDeviceDriver)
	}
	info.Capabilities.Deref()
	info.Capabilities.CurrentExtent.Deref()
	info.Capabilities.MinImageExtent.Deref()
	info.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		return nil, resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", res, core.ErrDeviceDriver)
	}
	if formatCount != 0 {
		info.Formats = make([]vk.SurfaceFormat, formatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, info.Formats); res != vk.Success {
			return nil, resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", res, core.ErrDeviceDriver)
		}
		for i := range info.Formats {
			info.Formats[i].Deref()
		}
	}

	var modeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, nil); res != vk.Success {
		return nil, resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", res, core.ErrDeviceDriver)
	}
	if modeCount != 0 {
		info.PresentModes = make([]vk.PresentMode, modeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, info.PresentModes); res != vk.Success {
			return nil, resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", res, core.ErrDeviceDriver)
		}
	}
	return info, nil
}

// SelectPhysicalDevice returns the first device that can render to and present
// on surface. Only the physical device and queue families are filled in.
func SelectPhysicalDevice(instance vk.Instance, surface vk.Surface) (*VulkanDevice, error) {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(instance, &count, nil); res != vk.Success {
		return nil, resultError("vkEnumeratePhysicalDevices", res, core.ErrInitialization)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: no devices which support Vulkan were found", core.ErrInitialization)
	}
	physicalDevices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(instance, &count, physicalDevices); res != vk.Success {
		return nil, resultError("vkEnumeratePhysicalDevices", res, core.ErrInitialization)
	}

	required := []string{swapchainExtensionName}
	for _, pd := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &properties)
		properties.Deref()
		properties.Limits.Deref()
		name := cString(properties.DeviceName[:])

		var familyCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, nil)
		families := make([]vk.QueueFamilyProperties, familyCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, families)
		for i := range families {
			families[i].Deref()
		}

		queues, ok := SelectQueueFamilies(families, func(index uint32) bool {
			var supported vk.Bool32
			res := vk.GetPhysicalDeviceSurfaceSupport(pd, index, surface, &supported)
			return res == vk.Success && supported == vk.True
		})
		if !ok {
			core.LogInfo("Device '%s' lacks a graphics or present queue, skipping.", name)
			continue
		}

		available, err := enumerateDeviceExtensions(pd)
		if err != nil {
			return nil, err
		}
		if missing := CheckDeviceExtensions(available, required); len(missing) > 0 {
			core.LogInfo("Required extensions %v not found on '%s', skipping device.", missing, name)
			continue
		}

		support, err := DeviceQuerySwapchainSupport(pd, surface)
		if err != nil {
			return nil, err
		}
		if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
			core.LogInfo("Required swapchain support not present on '%s', skipping device.", name)
			continue
		}

		core.LogInfo("Selected device: '%s'.", name)
		switch properties.DeviceType {
		case vk.PhysicalDeviceTypeIntegratedGpu:
			core.LogInfo("GPU type is Integrated.")
		case vk.PhysicalDeviceTypeDiscreteGpu:
			core.LogInfo("GPU type is Discrete.")
		case vk.PhysicalDeviceTypeVirtualGpu:
			core.LogInfo("GPU type is Virtual.")
		case vk.PhysicalDeviceTypeCpu:
			core.LogInfo("GPU type is CPU.")
		default:
			core.LogInfo("GPU type is Unknown.")
		}
		core.LogInfo(
			"Vulkan API version: %d.%d.%d",
			vk.Version(properties.ApiVersion).Major(),
			vk.Version(properties.ApiVersion).Minor(),
			vk.Version(properties.ApiVersion).Patch(),
		)
		core.LogDebug("Graphics Family Index: %d", queues.Graphics)
		core.LogDebug("Present Family Index:  %d", queues.Present)

		return &VulkanDevice{
			PhysicalDevice: pd,
			Surface:        surface,
			Queues:         queues,
			Properties:     properties,
		}, nil
	}
	return nil, fmt.Errorf("%w: no physical devices were found which meet the requirements", core.ErrInitialization)
}

// DeviceCreate creates the logical device, fetches both queues and creates the
// graphics command pool on a device returned by SelectPhysicalDevice.
func DeviceCreate(device *VulkanDevice) error {
	core.LogInfo("Creating logical device...")

	families := device.Queues.UniqueFamilies()
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, family := range families {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	available, err := enumerateDeviceExtensions(device.PhysicalDevice)
	if err != nil {
		return err
	}
	extensions := []string{swapchainExtensionName}
	if len(CheckDeviceExtensions(available, []string{portabilitySubsetExtensionName})) == 0 {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtensionName)
		extensions = append(extensions, portabilitySubsetExtensionName)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}
	var logical vk.Device
	if res := vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, device.Allocator, &logical); res != vk.Success {
		return resultError("vkCreateDevice", res, core.ErrInitialization)
	}
	device.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	var graphics, present vk.Queue
	vk.GetDeviceQueue(logical, device.Queues.Graphics, 0, &graphics)
	vk.GetDeviceQueue(logical, device.Queues.Present, 0, &present)
	device.GraphicsQueue = graphics
	device.PresentQueue = present
	core.LogInfo("Queues obtained.")

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: device.Queues.Graphics,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(logical, &poolCreateInfo, device.Allocator, &pool); res != vk.Success {
		vk.DestroyDevice(logical, device.Allocator)
		device.LogicalDevice = nil
		return resultError("vkCreateCommandPool", res, core.ErrInitialization)
	}
	device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	return nil
}

func DeviceDestroy(device *VulkanDevice) {
	device.GraphicsQueue = nil
	device.PresentQueue = nil

	if device.GraphicsCommandPool != vk.NullCommandPool {
		core.LogInfo("Destroying command pools...")
		vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, device.Allocator)
		device.GraphicsCommandPool = vk.NullCommandPool
	}

	if device.LogicalDevice != nil {
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(device.LogicalDevice, device.Allocator)
		device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	device.PhysicalDevice = nil
}

func darwinPortability() bool {
	return runtime.GOOS == "darwin"
}
