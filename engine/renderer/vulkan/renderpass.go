package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkapp/engine/core"
)

// RenderPassDescriptor describes the single render pass used for on-screen
// rendering: one color attachment cleared on load, stored, and handed to the
// presentation engine at the end of the pass.
type RenderPassDescriptor struct {
	Format       vk.Format
	ClearColor   [4]float32
	Attachments  []vk.AttachmentDescription
	ColorRefs    []vk.AttachmentReference
	Subpasses    []vk.SubpassDescription
	Dependencies []vk.SubpassDependency
}

func NewRenderPassDescriptor(format vk.Format, clearColor [4]float32) RenderPassDescriptor {
	colorAttachment := vk.AttachmentDescription{
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,  // Do not expect any particular layout before render pass starts.
		FinalLayout:    vk.ImageLayoutPresentSrc, // Transitioned to after the render pass
	}

	colorRefs := []vk.AttachmentReference{
		{
			Attachment: 0, // Attachment description array index
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		},
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
	}

	// Image acquisition must complete before the pass writes color.
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	return RenderPassDescriptor{
		Format:       format,
		ClearColor:   clearColor,
		Attachments:  []vk.AttachmentDescription{colorAttachment},
		ColorRefs:    colorRefs,
		Subpasses:    []vk.SubpassDescription{subpass},
		Dependencies: []vk.SubpassDependency{dependency},
	}
}

func (d RenderPassDescriptor) CreateInfo() vk.RenderPassCreateInfo {
	return vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(d.Attachments)),
		PAttachments:    d.Attachments,
		SubpassCount:    uint32(len(d.Subpasses)),
		PSubpasses:      d.Subpasses,
		DependencyCount: uint32(len(d.Dependencies)),
		PDependencies:   d.Dependencies,
	}
}

type Renderpass struct {
	Handle     vk.RenderPass
	Descriptor RenderPassDescriptor
}

func RenderpassCreate(device DeviceDriver, format vk.Format, clearColor [4]float32) (*Renderpass, error) {
	descriptor := NewRenderPassDescriptor(format, clearColor)
	info := descriptor.CreateInfo()
	handle, err := device.CreateRenderPass(&info)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	core.LogDebug("Renderpass created.")
	return &Renderpass{
		Handle:     handle,
		Descriptor: descriptor,
	}, nil
}

// BeginInfo covers the whole extent and clears it with the descriptor's color.
func (rp *Renderpass) BeginInfo(framebuffer vk.Framebuffer, extent vk.Extent2D) vk.RenderPassBeginInfo {
	clearValues := make([]vk.ClearValue, 1)
	color := rp.Descriptor.ClearColor
	clearValues[0].SetColor(color[:])

	return vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp.Handle,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
}

func (rp *Renderpass) Begin(device DeviceDriver, commandBuffer *VulkanCommandBuffer, framebuffer vk.Framebuffer, extent vk.Extent2D) {
	beginInfo := rp.BeginInfo(framebuffer, extent)
	device.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (rp *Renderpass) End(device DeviceDriver, commandBuffer *VulkanCommandBuffer) {
	device.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}

func (rp *Renderpass) Destroy(device DeviceDriver) {
	if rp.Handle != vk.NullRenderPass {
		device.DestroyRenderPass(rp.Handle)
		rp.Handle = vk.NullRenderPass
	}
}
