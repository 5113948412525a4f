// Package vulkantest provides an in-memory vulkan.DeviceDriver that records
// every call and flags synchronisation misuse, so frame and swapchain logic
// can be tested without a GPU.
package vulkantest

import (
	"fmt"
	"math"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkapp/engine/core"
	"github.com/spaghettifunk/vkapp/engine/renderer/vulkan"
)

type fenceState int

const (
	fenceUnsignaled fenceState = iota
	fenceSignaled
	fencePending
)

// Event is one recorded driver call. ID identifies the object it acted on, zero
// when there is none.
type Event struct {
	Op string
	ID uint64
}

func (e Event) String() string {
	return fmt.Sprintf("%s#%d", e.Op, e.ID)
}

// FakeDevice implements vulkan.DeviceDriver. Handles are unique addresses owned
// by the fake and never reach the C side.
type FakeDevice struct {
	mu sync.Mutex

	Support          *vulkan.SwapchainSupportInfo
	PushConstantsMax uint32

	// AcquireScript and PresentScript override the result of the n-th call, 1-based.
	AcquireScript map[int]vk.Result
	PresentScript map[int]vk.Result

	Events     []Event
	Violations []string

	SwapchainInfos   []vk.SwapchainCreateInfo
	FramebufferInfos []vk.FramebufferCreateInfo
	RenderPassInfos  []vk.RenderPassCreateInfo
	DescriptorInfos  []vk.DescriptorPoolCreateInfo
	PipelineInfos    []vk.GraphicsPipelineCreateInfo
	LayoutInfos      []vk.PipelineLayoutCreateInfo
	BeginInfos       []vk.RenderPassBeginInfo
	Viewports        []vk.Viewport
	Scissors         []vk.Rect2D
	Submits          []vk.SubmitInfo
	Presents         []vk.PresentInfo
	PushConstants    [][]byte
	Draws            int
	WaitIdleCalls    int

	keep      []*uint64
	nextID    uint64
	live      map[uint64]string
	calls     map[string]int
	failures  map[string]int
	fences    map[uint64]fenceState
	cbFence   map[uint64]uint64
	images    map[uint64][]vk.Image
	imageOf   map[uint64]uint64
	retired   map[uint64]bool
	nextImage map[uint64]uint32
}

// DefaultSupport reports a surface whose current extent is width x height.
func DefaultSupport(width, height uint32) *vulkan.SwapchainSupportInfo {
	return &vulkan.SwapchainSupportInfo{
		Capabilities: vk.SurfaceCapabilities{
			MinImageCount:    2,
			MaxImageCount:    3,
			CurrentExtent:    vk.Extent2D{Width: width, Height: height},
			MinImageExtent:   vk.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:   vk.Extent2D{Width: 4096, Height: 4096},
			CurrentTransform: vk.SurfaceTransformIdentityBit,
		},
		Formats: []vk.SurfaceFormat{
			{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
	}
}

// WindowDrivenSupport reports a surface that lets the swapchain pick its extent.
func WindowDrivenSupport() *vulkan.SwapchainSupportInfo {
	return DefaultSupport(math.MaxUint32, math.MaxUint32)
}

func NewFakeDevice() *FakeDevice {
	return &FakeDevice{
		Support:          DefaultSupport(1280, 720),
		PushConstantsMax: 256,
		AcquireScript:    map[int]vk.Result{},
		PresentScript:    map[int]vk.Result{},
		live:             map[uint64]string{},
		calls:            map[string]int{},
		failures:         map[string]int{},
		fences:           map[uint64]fenceState{},
		cbFence:          map[uint64]uint64{},
		images:           map[uint64][]vk.Image{},
		imageOf:          map[uint64]uint64{},
		retired:          map[uint64]bool{},
		nextImage:        map[uint64]uint32{},
	}
}

// ID returns the identifier of a handle created by a FakeDevice.
func ID(p unsafe.Pointer) uint64 {
	if p == nil {
		return 0
	}
	return *(*uint64)(p)
}

func SwapchainID(h vk.Swapchain) uint64 { return ID(unsafe.Pointer(h)) }

func FenceID(h vk.Fence) uint64 { return ID(unsafe.Pointer(h)) }

func SemaphoreID(h vk.Semaphore) uint64 { return ID(unsafe.Pointer(h)) }

func FramebufferID(h vk.Framebuffer) uint64 { return ID(unsafe.Pointer(h)) }

func CommandBufferID(h vk.CommandBuffer) uint64 { return ID(unsafe.Pointer(h)) }

func RenderPassID(h vk.RenderPass) uint64 { return ID(unsafe.Pointer(h)) }

// SemaphoreIDs maps handles to identifiers so slices can be compared
// without reflecting over cgo pointers.
func SemaphoreIDs(hs []vk.Semaphore) []uint64 {
	ids := make([]uint64, len(hs))
	for i, h := range hs {
		ids[i] = SemaphoreID(h)
	}
	return ids
}

func SwapchainIDs(hs []vk.Swapchain) []uint64 {
	ids := make([]uint64, len(hs))
	for i, h := range hs {
		ids[i] = SwapchainID(h)
	}
	return ids
}

func CommandBufferIDs(hs []vk.CommandBuffer) []uint64 {
	ids := make([]uint64, len(hs))
	for i, h := range hs {
		ids[i] = CommandBufferID(h)
	}
	return ids
}

// FailCall makes the n-th call (1-based) to op return an error.
func (f *FakeDevice) FailCall(op string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = n
}

// Live counts the objects of kind that were created and not yet destroyed.
func (f *FakeDevice) Live(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range f.live {
		if k == kind {
			n++
		}
	}
	return n
}

// LiveTotal counts every object still alive.
func (f *FakeDevice) LiveTotal() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// Count returns how many times op was recorded.
func (f *FakeDevice) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.Events {
		if e.Op == op {
			n++
		}
	}
	return n
}

// CountFor returns how many times op was recorded against id.
func (f *FakeDevice) CountFor(op string, id uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.Events {
		if e.Op == op && e.ID == id {
			n++
		}
	}
	return n
}

// Index returns the position of the first op against id, or -1.
func (f *FakeDevice) Index(op string, id uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.Events {
		if e.Op == op && e.ID == id {
			return i
		}
	}
	return -1
}

// LastIndex returns the position of the last op, or -1.
func (f *FakeDevice) LastIndex(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.Events) - 1; i >= 0; i-- {
		if f.Events[i].Op == op {
			return i
		}
	}
	return -1
}

// Ops returns the recorded operation names, in order.
func (f *FakeDevice) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Events))
	for i, e := range f.Events {
		out[i] = e.Op
	}
	return out
}

func (f *FakeDevice) newHandle(kind string) (unsafe.Pointer, uint64) {
	f.nextID++
	p := new(uint64)
	*p = f.nextID
	f.keep = append(f.keep, p)
	if kind != "" {
		f.live[f.nextID] = kind
	}
	return unsafe.Pointer(p), f.nextID
}

func (f *FakeDevice) record(op string, id uint64) {
	f.Events = append(f.Events, Event{Op: op, ID: id})
}

func (f *FakeDevice) violate(format string, args ...interface{}) {
	f.Violations = append(f.Violations, fmt.Sprintf(format, args...))
}

// fail counts a call to op and reports whether it was scripted to fail.
func (f *FakeDevice) fail(op string) error {
	f.calls[op]++
	if n, ok := f.failures[op]; ok && n == f.calls[op] {
		return fmt.Errorf("%w: %s scripted failure", core.ErrResourceCreation, op)
	}
	return nil
}

func (f *FakeDevice) destroy(op, kind string, id uint64) {
	f.record(op, id)
	if id == 0 {
		return
	}
	if k, ok := f.live[id]; !ok || k != kind {
		f.violate("%s on #%d which is not a live %s", op, id, kind)
		return
	}
	delete(f.live, id)
}

func (f *FakeDevice) WaitIdle() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.WaitIdleCalls++
	f.record("WaitIdle", 0)
	for id, state := range f.fences {
		if state == fencePending {
			f.fences[id] = fenceSignaled
		}
	}
	return nil
}

func (f *FakeDevice) QuerySwapchainSupport() (*vulkan.SwapchainSupportInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("QuerySwapchainSupport", 0)
	if err := f.fail("QuerySwapchainSupport"); err != nil {
		return nil, err
	}
	s := *f.Support
	s.Formats = append([]vk.SurfaceFormat(nil), f.Support.Formats...)
	s.PresentModes = append([]vk.PresentMode(nil), f.Support.PresentModes...)
	return &s, nil
}

func (f *FakeDevice) PushConstantsLimit() uint32 {
	return f.PushConstantsMax
}

func (f *FakeDevice) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	old := SwapchainID(info.OldSwapchain)
	if old != 0 {
		if f.live[old] != "swapchain" {
			f.violate("CreateSwapchain with OldSwapchain #%d which is not live", old)
		}
		f.retired[old] = true
	}
	if err := f.fail("CreateSwapchain"); err != nil {
		f.record("CreateSwapchain", 0)
		return vk.NullSwapchain, err
	}
	p, id := f.newHandle("swapchain")
	f.record("CreateSwapchain", id)
	f.SwapchainInfos = append(f.SwapchainInfos, *info)

	images := make([]vk.Image, info.MinImageCount)
	for i := range images {
		ip, iid := f.newHandle("")
		images[i] = vk.Image(ip)
		f.imageOf[iid] = id
	}
	f.images[id] = images
	return vk.Swapchain(p), nil
}

func (f *FakeDevice) GetSwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := SwapchainID(swapchain)
	f.record("GetSwapchainImages", id)
	if err := f.fail("GetSwapchainImages"); err != nil {
		return nil, err
	}
	return append([]vk.Image(nil), f.images[id]...), nil
}

func (f *FakeDevice) DestroySwapchain(swapchain vk.Swapchain) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := SwapchainID(swapchain)
	f.destroy("DestroySwapchain", "swapchain", id)
	delete(f.images, id)
}

func (f *FakeDevice) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	image := ID(unsafe.Pointer(info.Image))
	if owner, ok := f.imageOf[image]; !ok || f.live[owner] != "swapchain" {
		f.violate("CreateImageView on image #%d of a dead swapchain", image)
	}
	if err := f.fail("CreateImageView"); err != nil {
		f.record("CreateImageView", 0)
		return vk.NullImageView, err
	}
	p, id := f.newHandle("image view")
	f.record("CreateImageView", id)
	return vk.ImageView(p), nil
}

func (f *FakeDevice) DestroyImageView(view vk.ImageView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroy("DestroyImageView", "image view", ID(unsafe.Pointer(view)))
}

func (f *FakeDevice) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, view := range info.PAttachments {
		if vid := ID(unsafe.Pointer(view)); f.live[vid] != "image view" {
			f.violate("CreateFramebuffer with attachment #%d which is not a live image view", vid)
		}
	}
	if rp := ID(unsafe.Pointer(info.RenderPass)); f.live[rp] != "render pass" {
		f.violate("CreateFramebuffer with render pass #%d which is not live", rp)
	}
	if err := f.fail("CreateFramebuffer"); err != nil {
		f.record("CreateFramebuffer", 0)
		return vk.NullFramebuffer, err
	}
	p, id := f.newHandle("framebuffer")
	f.record("CreateFramebuffer", id)
	f.FramebufferInfos = append(f.FramebufferInfos, *info)
	return vk.Framebuffer(p), nil
}

func (f *FakeDevice) DestroyFramebuffer(framebuffer vk.Framebuffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroy("DestroyFramebuffer", "framebuffer", FramebufferID(framebuffer))
}

func (f *FakeDevice) CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateRenderPass"); err != nil {
		f.record("CreateRenderPass", 0)
		return vk.NullRenderPass, err
	}
	p, id := f.newHandle("render pass")
	f.record("CreateRenderPass", id)
	f.RenderPassInfos = append(f.RenderPassInfos, *info)
	return vk.RenderPass(p), nil
}

func (f *FakeDevice) DestroyRenderPass(renderpass vk.RenderPass) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroy("DestroyRenderPass", "render pass", ID(unsafe.Pointer(renderpass)))
}

func (f *FakeDevice) CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateDescriptorPool"); err != nil {
		f.record("CreateDescriptorPool", 0)
		return vk.NullDescriptorPool, err
	}
	p, id := f.newHandle("descriptor pool")
	f.record("CreateDescriptorPool", id)
	f.DescriptorInfos = append(f.DescriptorInfos, *info)
	return vk.DescriptorPool(p), nil
}

func (f *FakeDevice) DestroyDescriptorPool(pool vk.DescriptorPool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroy("DestroyDescriptorPool", "descriptor pool", ID(unsafe.Pointer(pool)))
}

func (f *FakeDevice) CreateShaderModule(code []byte) (vk.ShaderModule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := vulkan.SpirvWords(code); err != nil {
		f.record("CreateShaderModule", 0)
		return vk.NullShaderModule, err
	}
	if err := f.fail("CreateShaderModule"); err != nil {
		f.record("CreateShaderModule", 0)
		return vk.NullShaderModule, err
	}
	p, id := f.newHandle("shader module")
	f.record("CreateShaderModule", id)
	return vk.ShaderModule(p), nil
}

func (f *FakeDevice) DestroyShaderModule(module vk.ShaderModule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroy("DestroyShaderModule", "shader module", ID(unsafe.Pointer(module)))
}

func (f *FakeDevice) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreatePipelineLayout"); err != nil {
		f.record("CreatePipelineLayout", 0)
		return vk.NullPipelineLayout, err
	}
	p, id := f.newHandle("pipeline layout")
	f.record("CreatePipelineLayout", id)
	f.LayoutInfos = append(f.LayoutInfos, *info)
	return vk.PipelineLayout(p), nil
}

func (f *FakeDevice) DestroyPipelineLayout(layout vk.PipelineLayout) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroy("DestroyPipelineLayout", "pipeline layout", ID(unsafe.Pointer(layout)))
}

func (f *FakeDevice) CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stage := range info.PStages {
		if sid := ID(unsafe.Pointer(stage.Module)); f.live[sid] != "shader module" {
			f.violate("CreateGraphicsPipeline with shader module #%d which is not live", sid)
		}
	}
	if err := f.fail("CreateGraphicsPipeline"); err != nil {
		f.record("CreateGraphicsPipeline", 0)
		return vk.NullPipeline, err
	}
	p, id := f.newHandle("pipeline")
	f.record("CreateGraphicsPipeline", id)
	f.PipelineInfos = append(f.PipelineInfos, *info)
	return vk.Pipeline(p), nil
}

func (f *FakeDevice) DestroyPipeline(pipeline vk.Pipeline) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroy("DestroyPipeline", "pipeline", ID(unsafe.Pointer(pipeline)))
}

func (f *FakeDevice) CreateSemaphore() (vk.Semaphore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateSemaphore"); err != nil {
		f.record("CreateSemaphore", 0)
		return vk.NullSemaphore, err
	}
	p, id := f.newHandle("semaphore")
	f.record("CreateSemaphore", id)
	return vk.Semaphore(p), nil
}

func (f *FakeDevice) DestroySemaphore(semaphore vk.Semaphore) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroy("DestroySemaphore", "semaphore", SemaphoreID(semaphore))
}

func (f *FakeDevice) CreateFence(signaled bool) (vk.Fence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateFence"); err != nil {
		f.record("CreateFence", 0)
		return vk.NullFence, err
	}
	p, id := f.newHandle("fence")
	f.record("CreateFence", id)
	f.fences[id] = fenceUnsignaled
	if signaled {
		f.fences[id] = fenceSignaled
	}
	return vk.Fence(p), nil
}

func (f *FakeDevice) DestroyFence(fence vk.Fence) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := FenceID(fence)
	if f.fences[id] == fencePending {
		f.violate("DestroyFence on in-flight fence #%d", id)
	}
	f.destroy("DestroyFence", "fence", id)
	delete(f.fences, id)
}

// WaitForFence completes pending work at once. Waiting on a fence nothing will
// ever signal is reported as a violation and returns VK_TIMEOUT.
func (f *FakeDevice) WaitForFence(fence vk.Fence, timeoutNs uint64) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := FenceID(fence)
	f.record("WaitForFence", id)
	switch f.fences[id] {
	case fencePending, fenceSignaled:
		f.fences[id] = fenceSignaled
		return vk.Success
	default:
		f.violate("WaitForFence on #%d which was reset and never submitted", id)
		return vk.Timeout
	}
}

func (f *FakeDevice) ResetFence(fence vk.Fence) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := FenceID(fence)
	f.record("ResetFence", id)
	if f.fences[id] == fencePending {
		f.violate("ResetFence on #%d before waiting for it", id)
	}
	f.fences[id] = fenceUnsignaled
	return vk.Success
}

func (f *FakeDevice) AllocateCommandBuffers(count uint32, primary bool) ([]vk.CommandBuffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("AllocateCommandBuffers"); err != nil {
		f.record("AllocateCommandBuffers", 0)
		return nil, err
	}
	out := make([]vk.CommandBuffer, count)
	for i := range out {
		p, id := f.newHandle("command buffer")
		f.record("AllocateCommandBuffer", id)
		out[i] = vk.CommandBuffer(p)
	}
	return out, nil
}

func (f *FakeDevice) FreeCommandBuffers(buffers []vk.CommandBuffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cb := range buffers {
		id := CommandBufferID(cb)
		f.checkIdle("FreeCommandBuffers", id)
		f.destroy("FreeCommandBuffer", "command buffer", id)
	}
}

// checkIdle flags touching a command buffer whose last submission may still run.
func (f *FakeDevice) checkIdle(op string, cb uint64) {
	if fence, ok := f.cbFence[cb]; ok && f.fences[fence] == fencePending {
		f.violate("%s on command buffer #%d while fence #%d is in flight", op, cb, fence)
	}
}

func (f *FakeDevice) ResetCommandBuffer(commandBuffer vk.CommandBuffer) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := CommandBufferID(commandBuffer)
	f.record("ResetCommandBuffer", id)
	f.checkIdle("ResetCommandBuffer", id)
	return vk.Success
}

func (f *FakeDevice) BeginCommandBuffer(commandBuffer vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := CommandBufferID(commandBuffer)
	f.record("BeginCommandBuffer", id)
	f.checkIdle("BeginCommandBuffer", id)
	return vk.Success
}

func (f *FakeDevice) EndCommandBuffer(commandBuffer vk.CommandBuffer) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("EndCommandBuffer", CommandBufferID(commandBuffer))
	return vk.Success
}

func (f *FakeDevice) CmdBeginRenderPass(commandBuffer vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CmdBeginRenderPass", FramebufferID(info.Framebuffer))
	if fb := FramebufferID(info.Framebuffer); f.live[fb] != "framebuffer" {
		f.violate("CmdBeginRenderPass on framebuffer #%d which is not live", fb)
	}
	copied := *info
	copied.PClearValues = append([]vk.ClearValue(nil), info.PClearValues...)
	f.BeginInfos = append(f.BeginInfos, copied)
}

func (f *FakeDevice) CmdEndRenderPass(commandBuffer vk.CommandBuffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CmdEndRenderPass", CommandBufferID(commandBuffer))
}

func (f *FakeDevice) CmdSetViewport(commandBuffer vk.CommandBuffer, viewport vk.Viewport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CmdSetViewport", CommandBufferID(commandBuffer))
	f.Viewports = append(f.Viewports, viewport)
}

func (f *FakeDevice) CmdSetScissor(commandBuffer vk.CommandBuffer, scissor vk.Rect2D) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CmdSetScissor", CommandBufferID(commandBuffer))
	f.Scissors = append(f.Scissors, scissor)
}

func (f *FakeDevice) CmdBindPipeline(commandBuffer vk.CommandBuffer, pipeline vk.Pipeline) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := ID(unsafe.Pointer(pipeline))
	f.record("CmdBindPipeline", id)
	if f.live[id] != "pipeline" {
		f.violate("CmdBindPipeline with pipeline #%d which is not live", id)
	}
}

func (f *FakeDevice) CmdPushConstants(commandBuffer vk.CommandBuffer, layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CmdPushConstants", ID(unsafe.Pointer(layout)))
	f.PushConstants = append(f.PushConstants, append([]byte(nil), data...))
}

func (f *FakeDevice) CmdDraw(commandBuffer vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CmdDraw", uint64(vertexCount))
	f.Draws++
}

func (f *FakeDevice) AcquireNextImage(swapchain vk.Swapchain, timeoutNs uint64, semaphore vk.Semaphore) (uint32, vk.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := SwapchainID(swapchain)
	f.calls["AcquireNextImage"]++
	f.record("AcquireNextImage", id)
	if f.live[id] != "swapchain" || f.retired[id] {
		f.violate("AcquireNextImage on swapchain #%d which is retired or dead", id)
	}
	if res, ok := f.AcquireScript[f.calls["AcquireNextImage"]]; ok && res != vk.Success && res != vk.Suboptimal {
		return 0, res
	}
	count := uint32(len(f.images[id]))
	if count == 0 {
		return 0, vk.ErrorSurfaceLost
	}
	index := f.nextImage[id] % count
	f.nextImage[id] = index + 1
	if res, ok := f.AcquireScript[f.calls["AcquireNextImage"]]; ok {
		return index, res
	}
	return index, vk.Success
}

func (f *FakeDevice) QueueSubmit(info vk.SubmitInfo, fence vk.Fence) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := FenceID(fence)
	f.record("QueueSubmit", id)
	if f.fences[id] != fenceUnsignaled {
		f.violate("QueueSubmit with fence #%d which is not unsignaled", id)
	}
	f.fences[id] = fencePending
	for _, cb := range info.PCommandBuffers {
		f.cbFence[CommandBufferID(cb)] = id
	}
	f.Submits = append(f.Submits, info)
	return vk.Success
}

func (f *FakeDevice) QueuePresent(info *vk.PresentInfo) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["QueuePresent"]++
	var id uint64
	if len(info.PSwapchains) > 0 {
		id = SwapchainID(info.PSwapchains[0])
	}
	f.record("QueuePresent", id)
	f.Presents = append(f.Presents, *info)
	if res, ok := f.PresentScript[f.calls["QueuePresent"]]; ok {
		return res
	}
	return vk.Success
}

var _ vulkan.DeviceDriver = (*FakeDevice)(nil)

// FakeWindow is a vulkan.FramebufferSource whose size changes on WaitEvents,
// the way a minimised window comes back.
type FakeWindow struct {
	mu sync.Mutex

	Width, Height uint32
	// Pending sizes are applied one per WaitEvents call.
	Pending   [][2]uint32
	WaitCalls int
	SizeCalls int
}

func NewFakeWindow(width, height uint32) *FakeWindow {
	return &FakeWindow{Width: width, Height: height}
}

func (w *FakeWindow) FramebufferSize() (uint32, uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.SizeCalls++
	return w.Width, w.Height
}

func (w *FakeWindow) WaitEvents() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.WaitCalls++
	if len(w.Pending) > 0 {
		w.Width, w.Height = w.Pending[0][0], w.Pending[0][1]
		w.Pending = w.Pending[1:]
	}
}

func (w *FakeWindow) Resize(width, height uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Width, w.Height = width, height
}
