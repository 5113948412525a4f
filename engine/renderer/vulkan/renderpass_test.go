package vulkan_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vkapp/engine/core"
	"github.com/spaghettifunk/vkapp/engine/renderer/vulkan"
	"github.com/spaghettifunk/vkapp/engine/renderer/vulkan/vulkantest"
)

var minimalSpirv = []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}

func TestRenderPassDescriptor(t *testing.T) {
	d := vulkan.NewRenderPassDescriptor(vk.FormatB8g8r8a8Srgb, testClearColor)

	require.Len(t, d.Attachments, 1)
	color := d.Attachments[0]
	assert.Equal(t, vk.FormatB8g8r8a8Srgb, color.Format)
	assert.Equal(t, vk.AttachmentLoadOpClear, color.LoadOp)
	assert.Equal(t, vk.AttachmentStoreOpStore, color.StoreOp)
	assert.Equal(t, vk.ImageLayoutUndefined, color.InitialLayout)
	assert.Equal(t, vk.ImageLayoutPresentSrc, color.FinalLayout)

	require.Len(t, d.Subpasses, 1)
	assert.Equal(t, vk.PipelineBindPointGraphics, d.Subpasses[0].PipelineBindPoint)
	assert.Equal(t, uint32(1), d.Subpasses[0].ColorAttachmentCount)
	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, d.ColorRefs[0].Layout)

	require.Len(t, d.Dependencies, 1)
	dep := d.Dependencies[0]
	assert.Equal(t, uint32(vk.SubpassExternal), dep.SrcSubpass)
	assert.Equal(t, uint32(0), dep.DstSubpass)
	stage := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	assert.Equal(t, stage, dep.SrcStageMask)
	assert.Equal(t, stage, dep.DstStageMask)
	assert.Equal(t, vk.AccessFlags(vk.AccessColorAttachmentWriteBit), dep.DstAccessMask)

	info := d.CreateInfo()
	assert.Equal(t, uint32(1), info.AttachmentCount)
	assert.Equal(t, uint32(1), info.SubpassCount)
	assert.Equal(t, uint32(1), info.DependencyCount)
}

func TestRenderpassCreateFailure(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	dev.FailCall("CreateRenderPass", 1)
	_, err := vulkan.RenderpassCreate(dev, vk.FormatB8g8r8a8Srgb, testClearColor)
	assert.ErrorIs(t, err, core.ErrResourceCreation)
	assert.Zero(t, dev.LiveTotal())
}

func TestDescriptorPoolCreateInfo(t *testing.T) {
	info, sizes := vulkan.DescriptorPoolCreateInfo(3)
	assert.Equal(t, uint32(3), info.MaxSets)
	assert.Equal(t, uint32(1), info.PoolSizeCount)
	require.Len(t, sizes, 1)
	assert.Equal(t, vk.DescriptorTypeUniformBuffer, sizes[0].Type)
	assert.Equal(t, uint32(3), sizes[0].DescriptorCount)

	dev := vulkantest.NewFakeDevice()
	pool, err := vulkan.DescriptorPoolCreate(dev, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, dev.Live("descriptor pool"))
	dev.DestroyDescriptorPool(pool)
	assert.Zero(t, dev.LiveTotal())
}

func TestShaderFileName(t *testing.T) {
	assert.Equal(t, filepath.Join("shaders", "grid.vert.spv"), vulkan.ShaderFileName("shaders", "grid", "vert"))
}

func TestNewShaderStageMissingFile(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	_, err := vulkan.NewShaderStage(dev, t.TempDir(), "grid", "vert", vk.ShaderStageVertexBit)
	assert.ErrorIs(t, err, core.ErrResourceCreation)
	assert.Zero(t, dev.LiveTotal())
}

func TestShaderErrorsAreLoggedVerbatim(t *testing.T) {
	var buf bytes.Buffer
	core.SetLogOutput(&buf)
	t.Cleanup(func() { core.SetLogOutput(os.Stderr) })

	dir := filepath.Join(t.TempDir(), "100%d")
	_, err := vulkan.NewShaderStage(vulkantest.NewFakeDevice(), dir, "grid", "vert", vk.ShaderStageVertexBit)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "100%d")
	assert.NotContains(t, buf.String(), "%!")
}

func TestNewShaderStageRejectsBadCode(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	_, err := vulkan.NewShaderStageFromCode(dev, []byte{1, 2, 3, 4}, vk.ShaderStageVertexBit)
	assert.ErrorIs(t, err, core.ErrResourceCreation)
}

func newStages(t *testing.T, dev *vulkantest.FakeDevice) []*vulkan.VulkanShaderStage {
	t.Helper()
	vert, err := vulkan.NewShaderStageFromCode(dev, minimalSpirv, vk.ShaderStageVertexBit)
	require.NoError(t, err)
	frag, err := vulkan.NewShaderStageFromCode(dev, minimalSpirv, vk.ShaderStageFragmentBit)
	require.NoError(t, err)
	assert.Equal(t, "main\x00", vert.ShaderStageCreateInfo.PName)
	return []*vulkan.VulkanShaderStage{vert, frag}
}

func TestGraphicsPipeline(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	rp, err := vulkan.RenderpassCreate(dev, vk.FormatB8g8r8a8Srgb, testClearColor)
	require.NoError(t, err)
	stages := newStages(t, dev)

	config := &vulkan.VulkanPipelineConfig{
		Renderpass: rp,
		Stages:     []vk.PipelineShaderStageCreateInfo{stages[0].ShaderStageCreateInfo, stages[1].ShaderStageCreateInfo},
		AlphaBlend: true,
		PushConstantRanges: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
			Size:       144,
		}},
	}
	pipeline, err := vulkan.NewGraphicsPipeline(dev, config)
	require.NoError(t, err)

	require.Len(t, dev.PipelineInfos, 1)
	info := dev.PipelineInfos[0]
	assert.Equal(t, uint32(2), info.StageCount)
	assert.Equal(t, vulkantest.RenderPassID(rp.Handle), vulkantest.RenderPassID(info.RenderPass))
	assert.Equal(t, vk.PrimitiveTopologyTriangleList, info.PInputAssemblyState.Topology)
	assert.Zero(t, info.PVertexInputState.VertexBindingDescriptionCount)
	assert.Equal(t, []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}, info.PDynamicState.PDynamicStates)
	assert.Equal(t, vk.Bool32(vk.False), info.PDepthStencilState.DepthTestEnable)
	assert.Equal(t, vk.Bool32(vk.True), info.PColorBlendState.PAttachments[0].BlendEnable)

	require.Len(t, dev.LayoutInfos, 1)
	assert.Equal(t, uint32(1), dev.LayoutInfos[0].PushConstantRangeCount)

	for _, s := range stages {
		s.Destroy(dev)
	}
	pipeline.Destroy(dev)
	pipeline.Destroy(dev)
	rp.Destroy(dev)
	assert.Zero(t, dev.LiveTotal())
	requireClean(t, dev)
}

func TestGraphicsPipelinePushConstantBudget(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	dev.PushConstantsMax = 128
	rp, err := vulkan.RenderpassCreate(dev, vk.FormatB8g8r8a8Srgb, testClearColor)
	require.NoError(t, err)

	_, err = vulkan.NewGraphicsPipeline(dev, &vulkan.VulkanPipelineConfig{
		Renderpass:         rp,
		PushConstantRanges: []vk.PushConstantRange{{Offset: 64, Size: 80}},
	})
	require.ErrorIs(t, err, core.ErrResourceCreation)
	assert.Zero(t, dev.Live("pipeline layout"))

	assert.NoError(t, vulkan.ValidatePushConstantBudget(128, 128))
	assert.ErrorIs(t, vulkan.ValidatePushConstantBudget(144, 128), core.ErrResourceCreation)

	rp.Destroy(dev)
}

func TestGraphicsPipelineFailureReleasesLayout(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	dev.FailCall("CreateGraphicsPipeline", 1)
	rp, err := vulkan.RenderpassCreate(dev, vk.FormatB8g8r8a8Srgb, testClearColor)
	require.NoError(t, err)

	_, err = vulkan.NewGraphicsPipeline(dev, &vulkan.VulkanPipelineConfig{Renderpass: rp})
	require.Error(t, err)
	assert.Zero(t, dev.Live("pipeline layout"))
	assert.Zero(t, dev.Live("pipeline"))

	rp.Destroy(dev)
	requireClean(t, dev)
}
