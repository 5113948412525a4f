package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanFramebuffer struct {
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	Renderpass  *Renderpass
}

func FramebufferCreate(device DeviceDriver, renderpass *Renderpass, width, height uint32, attachments []vk.ImageView) (*VulkanFramebuffer, error) {
	// Take a copy of the attachments, the caller may reuse its slice.
	outFramebuffer := &VulkanFramebuffer{
		Attachments: append([]vk.ImageView(nil), attachments...),
		Renderpass:  renderpass,
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(outFramebuffer.Attachments)),
		PAttachments:    outFramebuffer.Attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}

	handle, err := device.CreateFramebuffer(&framebufferCreateInfo)
	if err != nil {
		return nil, err
	}
	outFramebuffer.Handle = handle
	return outFramebuffer, nil
}

func (vfb *VulkanFramebuffer) Destroy(device DeviceDriver) {
	if vfb.Handle != vk.NullFramebuffer {
		device.DestroyFramebuffer(vfb.Handle)
	}
	vfb.Handle = vk.NullFramebuffer
	vfb.Attachments = nil
	vfb.Renderpass = nil
}
