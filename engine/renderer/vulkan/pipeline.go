package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkapp/engine/core"
)

// maxPushConstantRanges is the most ranges a layout may declare here. Only
// 128 bytes are guaranteed, in 4 byte aligned ranges.
const maxPushConstantRanges = 32

/**
 * @brief Holds a Vulkan pipeline and its layout.
 */
type VulkanPipeline struct {
	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	/** @brief The pipeline layout. */
	PipelineLayout vk.PipelineLayout
}

type VulkanPipelineConfig struct {
	/** @brief The renderpass the pipeline renders into. */
	Renderpass *Renderpass
	/** @brief The stride of the vertex data, zero when vertices are generated in the shader. */
	Stride uint32
	/** @brief An array of attributes. */
	Attributes []vk.VertexInputAttributeDescription
	/** @brief An array of descriptor set layouts. */
	DescriptorSetLayouts []vk.DescriptorSetLayout
	/** @brief An array of stages. */
	Stages []vk.PipelineShaderStageCreateInfo
	/** @brief Primitive topology, triangle list when unset. */
	Topology vk.PrimitiveTopology
	/** @brief The face cull mode. */
	CullMode vk.CullModeFlagBits
	/** @brief Indicates if this pipeline should use wireframe mode. */
	IsWireframe bool
	/** @brief Blend color output with the attachment using source alpha. */
	AlphaBlend bool
	/** @brief An array of push constant data ranges. */
	PushConstantRanges []vk.PushConstantRange
}

// NewGraphicsPipeline builds a pipeline with dynamic viewport and scissor, so
// it survives swapchain recreation untouched.
func NewGraphicsPipeline(device DeviceDriver, config *VulkanPipelineConfig) (*VulkanPipeline, error) {
	if len(config.PushConstantRanges) > maxPushConstantRanges {
		return nil, fmt.Errorf("%w: cannot have more than %d push constant ranges, got %d",
			core.ErrResourceCreation, maxPushConstantRanges, len(config.PushConstantRanges))
	}
	var pushConstantBytes uint32
	for _, r := range config.PushConstantRanges {
		if end := r.Offset + r.Size; end > pushConstantBytes {
			pushConstantBytes = end
		}
	}
	if err := ValidatePushConstantBudget(pushConstantBytes, device.PushConstantsLimit()); err != nil {
		return nil, err
	}

	outPipeline := &VulkanPipeline{}

	// Viewport and scissor are dynamic, only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(config.CullMode),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}
	if config.IsWireframe {
		rasterizerCreateInfo.PolygonMode = vk.PolygonModeLine
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	// The render pass has no depth attachment.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable: vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	if config.AlphaBlend {
		colorBlendAttachmentState.BlendEnable = vk.True
		colorBlendAttachmentState.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		colorBlendAttachmentState.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		colorBlendAttachmentState.ColorBlendOp = vk.BlendOpAdd
		colorBlendAttachmentState.SrcAlphaBlendFactor = vk.BlendFactorOne
		colorBlendAttachmentState.DstAlphaBlendFactor = vk.BlendFactorZero
		colorBlendAttachmentState.AlphaBlendOp = vk.BlendOpAdd
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertex input, empty for shaders that generate their own vertices.
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if config.Stride > 0 {
		vertexInputInfo.VertexBindingDescriptionCount = 1
		vertexInputInfo.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0, // Binding index
			Stride:    config.Stride,
			InputRate: vk.VertexInputRateVertex, // Move to next data entry for each vertex.
		}}
		vertexInputInfo.VertexAttributeDescriptionCount = uint32(len(config.Attributes))
		vertexInputInfo.PVertexAttributeDescriptions = config.Attributes
	}

	// Input assembly
	topology := config.Topology
	if topology == 0 {
		topology = vk.PrimitiveTopologyTriangleList
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               topology,
		PrimitiveRestartEnable: vk.False,
	}

	// Pipeline layout
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(config.DescriptorSetLayouts)),
		PSetLayouts:            config.DescriptorSetLayouts,
		PushConstantRangeCount: uint32(len(config.PushConstantRanges)),
		PPushConstantRanges:    config.PushConstantRanges,
	}

	layout, err := device.CreatePipelineLayout(&pipelineLayoutCreateInfo)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	outPipeline.PipelineLayout = layout

	// Pipeline create
	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(config.Stages)),
		PStages:             config.Stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              outPipeline.PipelineLayout,
		RenderPass:          config.Renderpass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	handle, err := device.CreateGraphicsPipeline(&pipelineCreateInfo)
	if err != nil {
		device.DestroyPipelineLayout(outPipeline.PipelineLayout)
		core.LogError("%s", err)
		return nil, err
	}
	outPipeline.Handle = handle

	core.LogDebug("Graphics pipeline created!")
	return outPipeline, nil
}

func (pipeline *VulkanPipeline) Destroy(device DeviceDriver) {
	if pipeline.Handle != vk.NullPipeline {
		device.DestroyPipeline(pipeline.Handle)
		pipeline.Handle = vk.NullPipeline
	}
	if pipeline.PipelineLayout != vk.NullPipelineLayout {
		device.DestroyPipelineLayout(pipeline.PipelineLayout)
		pipeline.PipelineLayout = vk.NullPipelineLayout
	}
}

func (pipeline *VulkanPipeline) Bind(device DeviceDriver, commandBuffer vk.CommandBuffer) {
	device.CmdBindPipeline(commandBuffer, pipeline.Handle)
}

// ValidatePushConstantBudget fails when size bytes of push constants exceed
// the device limit.
func ValidatePushConstantBudget(size, limit uint32) error {
	if size > limit {
		return fmt.Errorf("%w: push constants need %d bytes, device allows %d",
			core.ErrResourceCreation, size, limit)
	}
	return nil
}
