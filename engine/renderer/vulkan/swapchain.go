package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/vkapp/engine/core"
	emath "github.com/spaghettifunk/vkapp/engine/math"
)

// SurfaceConfiguration is the outcome of negotiating with the surface
// capabilities. It is recomputed on every create and recreate.
type SurfaceConfiguration struct {
	Format      vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
	ImageCount  uint32
	Transform   vk.SurfaceTransformFlagBits
}

// ImageChain is one swapchain together with everything derived from its images.
type ImageChain struct {
	ID         uuid.UUID
	Generation uint64
	Handle     vk.Swapchain
	Config     SurfaceConfiguration

	// Images are owned by the swapchain and go away with it.
	Images       []vk.Image
	Views        []vk.ImageView
	Framebuffers []*VulkanFramebuffer

	derived *ReleaseStack
}

// releaseDerived destroys framebuffers and views but keeps the swapchain handle.
func (c *ImageChain) releaseDerived() {
	c.derived.Release()
	c.Views = nil
	c.Framebuffers = nil
}

func (c *ImageChain) destroy(device DeviceDriver) {
	c.releaseDerived()
	if c.Handle != vk.NullSwapchain {
		device.DestroySwapchain(c.Handle)
		c.Handle = vk.NullSwapchain
	}
	c.Images = nil
}

// SwapchainManager owns the current image chain and, only while recreating,
// the old one.
type SwapchainManager struct {
	device  DeviceDriver
	surface vk.Surface
	window  FramebufferSource
	queues  QueueFamilyIndices

	current    *ImageChain
	old        *ImageChain
	generation uint64
}

func NewSwapchainManager(device DeviceDriver, surface vk.Surface, window FramebufferSource, queues QueueFamilyIndices) *SwapchainManager {
	return &SwapchainManager{
		device:  device,
		surface: surface,
		window:  window,
		queues:  queues,
	}
}

// PreferredFormat is the format the chain will be created with, so the render
// pass can be built before the first chain exists.
func (m *SwapchainManager) PreferredFormat() (vk.SurfaceFormat, error) {
	support, err := m.device.QuerySwapchainSupport()
	if err != nil {
		return vk.SurfaceFormat{}, err
	}
	if len(support.Formats) == 0 {
		return vk.SurfaceFormat{}, fmt.Errorf("%w: surface reports no formats", core.ErrResourceCreation)
	}
	return ChooseSurfaceFormat(support.Formats), nil
}

// Create builds the first image chain.
func (m *SwapchainManager) Create(rp *Renderpass) error {
	if m.current != nil {
		return fmt.Errorf("%w: swapchain already created", core.ErrResourceCreation)
	}
	chain, err := m.build(rp, vk.NullSwapchain)
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	m.generation = 1
	chain.Generation = m.generation
	m.current = chain

	core.LogInfoFields("Swapchain created successfully.",
		"chain", chain.ID, "generation", chain.Generation,
		"width", chain.Config.Extent.Width, "height", chain.Config.Extent.Height,
		"images", len(chain.Images))
	return nil
}

// Recreate replaces the current chain with one matching the surface as it is
// now. It blocks while the framebuffer has a zero dimension. The old swapchain
// is handed to the driver as OldSwapchain and destroyed exactly once, after
// the new chain is complete or after the attempt failed.
func (m *SwapchainManager) Recreate(rp *Renderpass) error {
	w, h := m.window.FramebufferSize()
	for w == 0 || h == 0 {
		core.LogDebug("Framebuffer size is zero, waiting for events...")
		m.window.WaitEvents()
		w, h = m.window.FramebufferSize()
	}

	if err := m.device.WaitIdle(); err != nil {
		return err
	}
	if m.current == nil {
		return fmt.Errorf("%w: no swapchain to recreate", core.ErrResourceCreation)
	}

	m.old, m.current = m.current, nil
	m.old.releaseDerived()

	chain, err := m.build(rp, m.old.Handle)

	// Retired by the create call whether or not it succeeded.
	m.old.destroy(m.device)
	m.old = nil

	if err != nil {
		core.LogError("Swapchain recreation failed: %s", err)
		return err
	}

	m.generation++
	chain.Generation = m.generation
	m.current = chain

	core.LogInfoFields("Swapchain recreated.",
		"chain", chain.ID, "generation", chain.Generation,
		"width", chain.Config.Extent.Width, "height", chain.Config.Extent.Height)
	return nil
}

// Cleanup destroys the current chain. Calling it again is a no-op.
func (m *SwapchainManager) Cleanup() {
	if m.old != nil {
		m.old.destroy(m.device)
		m.old = nil
	}
	if m.current != nil {
		m.current.destroy(m.device)
		m.current = nil
	}
}

func (m *SwapchainManager) Current() *ImageChain {
	return m.current
}

func (m *SwapchainManager) Extent() vk.Extent2D {
	if m.current == nil {
		return vk.Extent2D{}
	}
	return m.current.Config.Extent
}

func (m *SwapchainManager) Format() vk.SurfaceFormat {
	if m.current == nil {
		return vk.SurfaceFormat{}
	}
	return m.current.Config.Format
}

func (m *SwapchainManager) ImageCount() uint32 {
	if m.current == nil {
		return 0
	}
	return uint32(len(m.current.Images))
}

func (m *SwapchainManager) Generation() uint64 {
	return m.generation
}

func (m *SwapchainManager) build(rp *Renderpass, oldHandle vk.Swapchain) (*ImageChain, error) {
	support, err := m.device.QuerySwapchainSupport()
	if err != nil {
		return nil, err
	}
	w, h := m.window.FramebufferSize()
	config, err := NegotiateSurface(support, w, h)
	if err != nil {
		return nil, err
	}
	if rp != nil {
		// Framebuffers must match the render pass, which outlives recreation.
		format, ok := matchFormat(support.Formats, rp.Descriptor.Format)
		if !ok {
			return nil, fmt.Errorf("%w: surface no longer offers the render pass format %d",
				core.ErrResourceCreation, rp.Descriptor.Format)
		}
		config.Format = format
	}

	info := m.createInfo(config, oldHandle)
	handle, err := m.device.CreateSwapchain(&info)
	if err != nil {
		return nil, err
	}

	chain := &ImageChain{
		ID:      uuid.New(),
		Handle:  handle,
		Config:  config,
		derived: NewReleaseStack("image chain"),
	}

	if err := m.buildImages(chain, rp); err != nil {
		chain.destroy(m.device)
		return nil, err
	}
	return chain, nil
}

func (m *SwapchainManager) buildImages(chain *ImageChain, rp *Renderpass) error {
	images, err := m.device.GetSwapchainImages(chain.Handle)
	if err != nil {
		return err
	}
	chain.Images = images

	chain.Views = make([]vk.ImageView, 0, len(images))
	for _, image := range images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   chain.Config.Format.Format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
		view, err := m.device.CreateImageView(&viewInfo)
		if err != nil {
			return err
		}
		chain.Views = append(chain.Views, view)
		chain.derived.Push("image view", func() { m.device.DestroyImageView(view) })
	}

	extent := chain.Config.Extent
	chain.Framebuffers = make([]*VulkanFramebuffer, 0, len(chain.Views))
	for _, view := range chain.Views {
		framebuffer, err := FramebufferCreate(m.device, rp, extent.Width, extent.Height, []vk.ImageView{view})
		if err != nil {
			return err
		}
		chain.Framebuffers = append(chain.Framebuffers, framebuffer)
		chain.derived.Push("framebuffer", func() { framebuffer.Destroy(m.device) })
	}
	return nil
}

func (m *SwapchainManager) createInfo(config SurfaceConfiguration, oldHandle vk.Swapchain) vk.SwapchainCreateInfo {
	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          m.surface,
		MinImageCount:    config.ImageCount,
		ImageFormat:      config.Format.Format,
		ImageColorSpace:  config.Format.ColorSpace,
		ImageExtent:      config.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     config.Transform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      config.PresentMode,
		Clipped:          vk.True,
		OldSwapchain:     oldHandle,
	}

	if m.queues.Shared() {
		info.ImageSharingMode = vk.SharingModeExclusive
	} else {
		families := m.queues.UniqueFamilies()
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = uint32(len(families))
		info.PQueueFamilyIndices = families
	}
	return info
}

func matchFormat(formats []vk.SurfaceFormat, want vk.Format) (vk.SurfaceFormat, bool) {
	for _, format := range formats {
		if format.Format == want {
			return format, true
		}
	}
	return vk.SurfaceFormat{}, false
}

// ChooseSurfaceFormat prefers 8 bit BGRA sRGB, otherwise the first format.
func ChooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Srgb && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

// ChoosePresentMode prefers mailbox. FIFO is always available.
func ChoosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}
	return vk.PresentModeFifo
}

// ChooseExtent uses the surface's current extent unless the surface lets the
// swapchain decide, in which case the framebuffer size is used. Either way the
// result is clamped to the supported range.
func ChooseExtent(caps vk.SurfaceCapabilities, framebufferWidth, framebufferHeight uint32) vk.Extent2D {
	extent := vk.Extent2D{Width: framebufferWidth, Height: framebufferHeight}
	if caps.CurrentExtent.Width != math.MaxUint32 {
		extent = caps.CurrentExtent
	}
	min := caps.MinImageExtent
	max := caps.MaxImageExtent
	extent.Width = emath.Clamp(extent.Width, min.Width, max.Width)
	extent.Height = emath.Clamp(extent.Height, min.Height, max.Height)
	return extent
}

// ChooseImageCount asks for one image more than the minimum. A maximum of zero
// means unbounded.
func ChooseImageCount(caps vk.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func NegotiateSurface(support *SwapchainSupportInfo, framebufferWidth, framebufferHeight uint32) (SurfaceConfiguration, error) {
	if support == nil || len(support.Formats) == 0 {
		return SurfaceConfiguration{}, fmt.Errorf("%w: surface reports no formats", core.ErrResourceCreation)
	}
	caps := support.Capabilities
	return SurfaceConfiguration{
		Format:      ChooseSurfaceFormat(support.Formats),
		PresentMode: ChoosePresentMode(support.PresentModes),
		Extent:      ChooseExtent(caps, framebufferWidth, framebufferHeight),
		ImageCount:  ChooseImageCount(caps),
		Transform:   caps.CurrentTransform,
	}, nil
}
