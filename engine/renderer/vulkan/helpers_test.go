package vulkan_test

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vkapp/engine/core"
	"github.com/spaghettifunk/vkapp/engine/renderer/vulkan"
	"github.com/spaghettifunk/vkapp/engine/renderer/vulkan/vulkantest"
)

var testClearColor = [4]float32{0.1, 0.2, 0.3, 1.0}

func newRenderer(t *testing.T, dev *vulkantest.FakeDevice, win *vulkantest.FakeWindow) *vulkan.VulkanRenderer {
	t.Helper()
	cfg := core.DefaultConfig().Renderer
	cfg.ClearColor = testClearColor
	r, err := vulkan.NewFromDriver(cfg, dev, vk.NullSurface, win, vulkan.QueueFamilyIndices{})
	require.NoError(t, err)
	return r
}

// submittedFences lists the fence of every queue submission, in order.
func submittedFences(dev *vulkantest.FakeDevice) []uint64 {
	var out []uint64
	for _, e := range dev.Events {
		if e.Op == "QueueSubmit" {
			out = append(out, e.ID)
		}
	}
	return out
}

func requireClean(t *testing.T, dev *vulkantest.FakeDevice) {
	t.Helper()
	require.Empty(t, dev.Violations)
}
