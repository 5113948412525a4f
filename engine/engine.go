package engine

import (
	"errors"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkapp/engine/camera"
	"github.com/spaghettifunk/vkapp/engine/core"
	"github.com/spaghettifunk/vkapp/engine/input"
	"github.com/spaghettifunk/vkapp/engine/renderer/grid"
	"github.com/spaghettifunk/vkapp/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Everything has been released
	EngineStageShutdown
)

// Window is the platform window the engine drives. *platform.Platform is the
// GLFW implementation.
type Window interface {
	vulkan.SurfaceProvider
	Startup(applicationName string, width uint32, height uint32) error
	Shutdown() error
	ShouldClose() bool
	RequestClose()
	PollEvents()
	// ConsumeResize reports and clears a pending framebuffer resize.
	ConsumeResize() bool
	SetCursorCaptured(captured bool)
	InputSystem() *input.InputSystem
}

// Renderer is the part of the Vulkan renderer the frame loop uses.
type Renderer interface {
	vulkan.RenderTarget
	DrawFrame(record vulkan.RecordFunc) error
	Resized(width, height uint32)
	NeedsRecreate() bool
	RecreateSwapchain() error
	Shutdown() error
}

type Engine struct {
	currentStage Stage
	config       *core.Config

	window     Window
	renderer   Renderer
	grid       *grid.Grid
	watcher    *grid.ShaderWatcher
	camera     *camera.Camera
	controller camera.Controller

	clock   *core.Clock
	metrics *core.FrameMetrics

	isRunning bool
	// set when a frame reported the swapchain stale, handled like a resize
	recreatePending bool

	resources *vulkan.ReleaseStack

	// newRenderer brings the renderer up once the window exists.
	newRenderer func() (Renderer, error)
}

func New(config *core.Config, window Window) *Engine {
	e := &Engine{
		currentStage: EngineStageUninitialized,
		config:       config,
		window:       window,
		clock:        core.NewClock(),
		metrics:      core.NewFrameMetrics(),
		resources:    vulkan.NewReleaseStack("engine"),
	}
	e.newRenderer = func() (Renderer, error) {
		r := vulkan.New(config.App.Name, config.Renderer, window)
		if err := r.Initialize(); err != nil {
			return nil, err
		}
		return r, nil
	}
	return e
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

// Initialize opens the window and builds the renderer, the camera and the
// grid. On failure everything created so far is released.
func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	if err := e.initialize(); err != nil {
		e.resources.Release()
		e.currentStage = EngineStageUninitialized
		return err
	}
	e.isRunning = true
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) initialize() error {
	app := e.config.App
	if err := e.window.Startup(app.Name, app.Width, app.Height); err != nil {
		return err
	}
	e.resources.Push("platform", func() {
		if err := e.window.Shutdown(); err != nil {
			core.LogError("%s", err)
		}
	})

	renderer, err := e.newRenderer()
	if err != nil {
		return err
	}
	e.renderer = renderer
	e.resources.Push("renderer", func() {
		if err := e.renderer.Shutdown(); err != nil {
			core.LogError("%s", err)
		}
	})

	extent := renderer.Extent()
	e.camera = camera.New(1)
	e.camera.SetAspect(extent.Width, extent.Height)
	e.controller = newController(e.config.Camera.Controller)

	g, err := grid.New(renderer, e.config.Renderer.ShaderDir)
	if err != nil {
		return err
	}
	e.grid = g
	e.resources.Push("grid", e.grid.Destroy)

	if e.config.Renderer.WatchShaders {
		watcher, err := grid.NewShaderWatcher(e.config.Renderer.ShaderDir)
		if err != nil {
			core.LogWarn("Shader hot reload disabled: %s", err)
			return nil
		}
		e.watcher = watcher
		e.grid.Watch(watcher.Requests())
		e.resources.Push("shader watcher", func() {
			if err := e.watcher.Close(); err != nil {
				core.LogError("%s", err)
			}
		})
	}
	return nil
}

func newController(kind string) camera.Controller {
	if kind == core.CameraControllerOrbit {
		return camera.NewOrbitController(camera.Origin)
	}
	return camera.NewFreeController()
}

// Run drives frames until the window closes, Exit is pressed or a frame fails.
func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()

	for e.isRunning && !e.window.ShouldClose() {
		if err := e.frame(); err != nil {
			core.LogError("Frame failed, shutting down: %s", err)
			e.isRunning = false
			return err
		}
	}
	core.LogInfoFields("main loop finished", "frames", e.metrics.TotalFrames())
	return nil
}

func (e *Engine) frame() error {
	e.window.PollEvents()
	in := e.window.InputSystem()
	in.Update()

	if in.ButtonDown(input.ActionExit) {
		core.LogInfo("Exit requested, shutting down.")
		e.isRunning = false
		return nil
	}
	if in.ButtonDown(input.ActionToggleMouseCapture) {
		e.window.SetCursorCaptured(!in.MouseCaptured())
	}

	delta := e.clock.Tick()
	e.controller.Update(e.camera, cameraInput(in), float32(delta))

	if e.window.ConsumeResize() {
		width, height := e.window.FramebufferSize()
		e.renderer.Resized(width, height)
	}
	if e.recreatePending || e.renderer.NeedsRecreate() {
		if err := e.recreate(); err != nil {
			return err
		}
	}

	if _, err := e.grid.ReloadIfRequested(); err != nil && errors.Is(err, core.ErrDeviceDriver) {
		return err
	}

	pc := grid.BuildPushConstants(e.camera, e.config.Grid.Scale)
	err := e.renderer.DrawFrame(func(commandBuffer vk.CommandBuffer, imageIndex uint32) {
		e.grid.Record(commandBuffer, pc)
	})
	switch {
	case errors.Is(err, core.ErrSwapchainOutOfDate):
		e.recreatePending = true
	case err != nil:
		return err
	}

	if e.metrics.Update(delta) {
		core.LogDebugFields("frame stats", "fps", e.metrics.FPS(), "frame_ms", e.metrics.FrameTime())
	}
	return nil
}

func (e *Engine) recreate() error {
	if err := e.renderer.RecreateSwapchain(); err != nil {
		return err
	}
	e.recreatePending = false
	extent := e.renderer.Extent()
	e.camera.SetAspect(extent.Width, extent.Height)
	e.grid.Resize(extent)
	return nil
}

func cameraInput(in *input.InputSystem) camera.Input {
	dx, dy := in.MouseDelta()
	return camera.Input{
		Forward:       in.Axis(input.ActionMoveForward),
		Right:         in.Axis(input.ActionMoveRight),
		Up:            in.Axis(input.ActionMoveUp),
		Sprint:        in.Button(input.ActionSprint),
		MouseCaptured: in.MouseCaptured(),
		MouseDX:       dx,
		MouseDY:       dy,
		Scroll:        in.ScrollDelta(),
	}
}

// RequestClose asks the loop to stop after the current frame. Safe from any
// goroutine.
func (e *Engine) RequestClose() {
	e.window.RequestClose()
}

// Shutdown releases the shader watcher, the grid, the renderer and the window,
// in that order. Calling it again is a no-op.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false
	e.resources.Release()
	e.currentStage = EngineStageShutdown
	core.LogInfo("Engine shut down.")
	return nil
}
