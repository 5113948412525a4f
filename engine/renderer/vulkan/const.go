package vulkan

import "math"

// MaxFramesInFlight is the number of frames the CPU may record ahead of the GPU.
const MaxFramesInFlight = 2

const (
	swapchainExtensionName              = "VK_KHR_swapchain"
	portabilitySubsetExtensionName      = "VK_KHR_portability_subset"
	portabilityEnumerationExtensionName = "VK_KHR_portability_enumeration"
	physicalDeviceProperties2Name       = "VK_KHR_get_physical_device_properties2"
	debugReportExtensionName            = "VK_EXT_debug_report"
	validationLayerName                 = "VK_LAYER_KHRONOS_validation"
)

const (
	spirvMagic uint32 = 0x07230203

	// waits on fences and image acquisition never time out
	noTimeout uint64 = math.MaxUint64

	// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
	instanceCreateEnumeratePortability = 0x00000001
)
