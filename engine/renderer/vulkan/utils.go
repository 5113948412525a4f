package vulkan

import (
	"bytes"
	"fmt"

	vk "github.com/goki/vulkan"
)

var resultNames = map[vk.Result]string{
	vk.Success:                          "VK_SUCCESS",
	vk.NotReady:                         "VK_NOT_READY",
	vk.Timeout:                          "VK_TIMEOUT",
	vk.EventSet:                         "VK_EVENT_SET",
	vk.EventReset:                       "VK_EVENT_RESET",
	vk.Incomplete:                       "VK_INCOMPLETE",
	vk.Suboptimal:                       "VK_SUBOPTIMAL_KHR",
	vk.ErrorOutOfHostMemory:             "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:           "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed:        "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:                  "VK_ERROR_DEVICE_LOST",
	vk.ErrorMemoryMapFailed:             "VK_ERROR_MEMORY_MAP_FAILED",
	vk.ErrorLayerNotPresent:             "VK_ERROR_LAYER_NOT_PRESENT",
	vk.ErrorExtensionNotPresent:         "VK_ERROR_EXTENSION_NOT_PRESENT",
	vk.ErrorFeatureNotPresent:           "VK_ERROR_FEATURE_NOT_PRESENT",
	vk.ErrorIncompatibleDriver:          "VK_ERROR_INCOMPATIBLE_DRIVER",
	vk.ErrorTooManyObjects:              "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorFormatNotSupported:          "VK_ERROR_FORMAT_NOT_SUPPORTED",
	vk.ErrorFragmentedPool:              "VK_ERROR_FRAGMENTED_POOL",
	vk.ErrorSurfaceLost:                 "VK_ERROR_SURFACE_LOST_KHR",
	vk.ErrorNativeWindowInUse:           "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR",
	vk.ErrorOutOfDate:                   "VK_ERROR_OUT_OF_DATE_KHR",
	vk.ErrorIncompatibleDisplay:         "VK_ERROR_INCOMPATIBLE_DISPLAY_KHR",
	vk.ErrorOutOfPoolMemory:             "VK_ERROR_OUT_OF_POOL_MEMORY",
	vk.ErrorInvalidExternalHandle:       "VK_ERROR_INVALID_EXTERNAL_HANDLE",
	vk.ErrorFragmentation:               "VK_ERROR_FRAGMENTATION",
	vk.ErrorFullScreenExclusiveModeLost: "VK_ERROR_FULL_SCREEN_EXCLUSIVE_MODE_LOST_EXT",
	vk.ErrorUnknown:                     "VK_ERROR_UNKNOWN",
}

// VulkanResultString returns the VK_* name of a result code.
func VulkanResultString(result vk.Result) string {
	if name, ok := resultNames[result]; ok {
		return name
	}
	return fmt.Sprintf("VkResult(%d)", int32(result))
}

// VulkanResultIsSuccess reports whether result is one of the non-error codes.
func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= vk.Success
}

// resultError wraps sentinel with the failing call and its result code.
func resultError(op string, result vk.Result, sentinel error) error {
	return fmt.Errorf("%w: %s returned %s", sentinel, op, VulkanResultString(result))
}

const end = "\x00"

// VulkanSafeString returns s terminated by a single NUL, as the C side expects.
func VulkanSafeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + end
	}
	return s
}

// VulkanSafeStrings NUL-terminates every entry of list, returning a new slice.
func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}

// cString converts a fixed size, NUL padded C char array to a Go string.
func cString(arr []byte) string {
	if i := bytes.IndexByte(arr, 0); i >= 0 {
		return string(arr[:i])
	}
	return string(arr)
}
