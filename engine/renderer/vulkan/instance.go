package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkapp/engine/core"
)

// InstanceExtensions builds the instance extension list: the platform ones, the
// portability pair when running over a portability driver and the debug report
// extension when diagnostics are on. Duplicates are dropped.
func InstanceExtensions(platform []string, diagnostics, portability bool) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(names ...string) {
		for _, name := range names {
			if _, ok := seen[name]; ok || name == "" {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	add("VK_KHR_surface")
	add(platform...)
	if portability {
		add(portabilityEnumerationExtensionName, physicalDeviceProperties2Name)
	}
	if diagnostics {
		add(debugReportExtensionName)
	}
	return out
}

func createInstance(appName string, extensions, layers []string, portability bool, allocator *vk.AllocationCallbacks) (vk.Instance, error) {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 2, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		EngineVersion:      uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("vkapp"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     VulkanSafeStrings(layers),
	}
	if portability {
		createInfo.Flags |= vk.InstanceCreateFlags(instanceCreateEnumeratePortability)
	}

	core.LogInfo("Required extensions:")
	for _, name := range extensions {
		core.LogInfo(name)
	}

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, allocator, &instance); res != vk.Success {
		return nil, resultError("vkCreateInstance", res, core.ErrInitialization)
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, allocator)
		return nil, fmt.Errorf("%w: %s", core.ErrInitialization, err)
	}
	core.LogInfo("Vulkan Instance created.")
	return instance, nil
}

func checkValidationLayers(required []string) error {
	core.LogInfo("Validation layers enabled. Enumerating...")

	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res, core.ErrInitialization)
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res, core.ErrInitialization)
	}
	available := make([]string, 0, count)
	for i := range layers {
		layers[i].Deref()
		available = append(available, cString(layers[i].LayerName[:]))
	}
	if missing := CheckDeviceExtensions(available, required); len(missing) > 0 {
		return fmt.Errorf("%w: required validation layers are missing: %v", core.ErrInitialization, missing)
	}
	core.LogInfo("All required validation layers are present.")
	return nil
}

func createDebugCallback(instance vk.Instance, allocator *vk.AllocationCallbacks) (vk.DebugReportCallback, error) {
	core.LogDebug("Creating Vulkan debugger...")
	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
			vk.DebugReportPerformanceWarningBit | vk.DebugReportInformationBit),
		PfnCallback: dbgCallbackFunc,
	}
	var dbg vk.DebugReportCallback
	if res := vk.CreateDebugReportCallback(instance, &debugCreateInfo, allocator, &dbg); res != vk.Success {
		return vk.NullDebugReportCallback, resultError("vkCreateDebugReportCallbackEXT", res, core.ErrInitialization)
	}
	core.LogDebug("Vulkan debugger created.")
	return dbg, nil
}

// DiagnosticSeverity maps debug report flags to a log level name, most severe
// bit first.
func DiagnosticSeverity(flags vk.DebugReportFlags) string {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		return "error"
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		return "warn"
	default:
		return "info"
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch DiagnosticSeverity(flags) {
	case "error":
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case "warn":
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFO: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	// never abort the call that triggered the report
	return vk.False
}
