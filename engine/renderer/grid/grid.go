package grid

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkapp/engine/core"
	"github.com/spaghettifunk/vkapp/engine/renderer/vulkan"
)

const (
	shaderName = "grid"
	// a single quad covering the screen, generated in the vertex shader
	vertexCount = 4
)

var pushStages = vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)

// Grid draws the infinite ground plane with a single full screen quad.
type Grid struct {
	target    vulkan.RenderTarget
	shaderDir string
	extent    vk.Extent2D

	pipeline *vulkan.VulkanPipeline
	requests <-chan string
}

// New validates the push constant budget and builds the grid pipeline from
// the SPIR-V in shaderDir.
func New(target vulkan.RenderTarget, shaderDir string) (*Grid, error) {
	if err := vulkan.ValidatePushConstantBudget(PushConstantsSize, target.MaxPushConstantsSize()); err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	g := &Grid{
		target:    target,
		shaderDir: shaderDir,
		extent:    target.Extent(),
	}
	pipeline, err := g.buildPipeline()
	if err != nil {
		return nil, err
	}
	g.pipeline = pipeline
	core.LogInfoFields("grid created", "shaders", shaderDir, "width", g.extent.Width, "height", g.extent.Height)
	return g, nil
}

// Watch makes ReloadIfRequested consume reload requests from requests.
func (g *Grid) Watch(requests <-chan string) {
	g.requests = requests
}

// Record binds the pipeline, pushes pc and draws the quad. It must run inside
// the render pass.
func (g *Grid) Record(commandBuffer vk.CommandBuffer, pc PushConstants) {
	device := g.target.Driver()
	g.pipeline.Bind(device, commandBuffer)
	device.CmdPushConstants(commandBuffer, g.pipeline.PipelineLayout, pushStages, 0, pc.Bytes())
	device.CmdDraw(commandBuffer, vertexCount, 1, 0, 0)
}

// Resize records the new extent. Viewport and scissor are dynamic, so the
// pipeline itself is kept.
func (g *Grid) Resize(extent vk.Extent2D) {
	g.extent = extent
	core.LogDebugFields("grid resized", "width", extent.Width, "height", extent.Height)
}

func (g *Grid) Extent() vk.Extent2D {
	return g.extent
}

// ReloadIfRequested drains pending reload requests and, if there were any,
// rebuilds the pipeline. A failed rebuild keeps the current pipeline and
// returns the error. Must be called from the render thread between frames.
func (g *Grid) ReloadIfRequested() (bool, error) {
	if g.requests == nil {
		return false, nil
	}
	var changed []string
	for drained := false; !drained; {
		select {
		case name, ok := <-g.requests:
			if !ok {
				g.requests = nil
				drained = true
				break
			}
			changed = append(changed, name)
		default:
			drained = true
		}
	}
	if len(changed) == 0 {
		return false, nil
	}
	core.LogInfoFields("reloading grid shaders", "changed", changed)
	if err := g.Reload(); err != nil {
		core.LogWarn("grid shader reload failed, keeping the previous pipeline: %s", err)
		return false, err
	}
	return true, nil
}

// Reload waits for the device to go idle and swaps in a freshly built pipeline.
func (g *Grid) Reload() error {
	device := g.target.Driver()
	if err := device.WaitIdle(); err != nil {
		return fmt.Errorf("%w: wait idle before shader reload: %s", core.ErrDeviceDriver, err)
	}
	pipeline, err := g.buildPipeline()
	if err != nil {
		return err
	}
	if g.pipeline != nil {
		g.pipeline.Destroy(device)
	}
	g.pipeline = pipeline
	return nil
}

func (g *Grid) Destroy() {
	if g.pipeline == nil {
		return
	}
	g.pipeline.Destroy(g.target.Driver())
	g.pipeline = nil
	core.LogDebug("grid destroyed")
}

func (g *Grid) buildPipeline() (*vulkan.VulkanPipeline, error) {
	device := g.target.Driver()

	vert, err := vulkan.NewShaderStage(device, g.shaderDir, shaderName, "vert", vk.ShaderStageVertexBit)
	if err != nil {
		return nil, err
	}
	defer vert.Destroy(device)

	frag, err := vulkan.NewShaderStage(device, g.shaderDir, shaderName, "frag", vk.ShaderStageFragmentBit)
	if err != nil {
		return nil, err
	}
	defer frag.Destroy(device)

	return vulkan.NewGraphicsPipeline(device, &vulkan.VulkanPipelineConfig{
		Renderpass: g.target.Renderpass(),
		Stages: []vk.PipelineShaderStageCreateInfo{
			vert.ShaderStageCreateInfo,
			frag.ShaderStageCreateInfo,
		},
		Topology:   vk.PrimitiveTopologyTriangleStrip,
		CullMode:   vk.CullModeNone,
		AlphaBlend: true,
		PushConstantRanges: []vk.PushConstantRange{{
			StageFlags: pushStages,
			Offset:     0,
			Size:       PushConstantsSize,
		}},
	})
}
