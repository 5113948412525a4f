package platform

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkapp/engine/core"
	"github.com/spaghettifunk/vkapp/engine/input"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the GLFW window. It implements vulkan.SurfaceProvider.
type Platform struct {
	Window *glfw.Window
	Input  *input.InputSystem

	// set from the framebuffer size callback, consumed once per frame
	resized atomic.Bool
}

func New() *Platform {
	return &Platform{}
}

func (p *Platform) Startup(applicationName string, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return fmt.Errorf("%w: glfw reports no Vulkan loader", core.ErrInitialization)
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return err
	}
	p.Window = window
	p.Input = input.NewInputSystem(input.DefaultBindings())

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetCursorPosCallback(p.cursorPosCallback)
	p.Window.SetScrollCallback(p.scrollCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.Show()

	core.LogInfo("Window `%s` created (%dx%d).", applicationName, width, height)
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

func (p *Platform) InputSystem() *input.InputSystem {
	return p.Input
}

func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

// RequestClose makes the next ShouldClose report true. Safe from any goroutine.
func (p *Platform) RequestClose() {
	if p.Window != nil {
		p.Window.SetShouldClose(true)
	}
	glfw.PostEmptyEvent()
}

func (p *Platform) PollEvents() {
	glfw.PollEvents()
}

func (p *Platform) WaitEvents() {
	glfw.WaitEvents()
}

func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	if w < 0 || h < 0 {
		return 0, 0
	}
	return uint32(w), uint32(h)
}

// ConsumeResize reports whether the framebuffer changed size since the last
// call, and clears the flag.
func (p *Platform) ConsumeResize() bool {
	return p.resized.Swap(false)
}

func (p *Platform) GetInstanceProcAddress() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateWindowSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, err
	}
	return vk.SurfaceFromPointer(surface), nil
}

// SetCursorCaptured hides and locks the cursor for mouse look.
func (p *Platform) SetCursorCaptured(captured bool) {
	mode := glfw.CursorNormal
	if captured {
		mode = glfw.CursorDisabled
	}
	p.Window.SetInputMode(glfw.CursorMode, mode)
	p.Input.SetMouseCaptured(captured)
	if captured {
		core.LogDebug("Mouse captured.")
	} else {
		core.LogDebug("Mouse released.")
	}
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	switch action {
	case glfw.Press:
		p.Input.ProcessKey(translateKey(key), true)
	case glfw.Release:
		p.Input.ProcessKey(translateKey(key), false)
	}
}

func (p *Platform) cursorPosCallback(w *glfw.Window, xpos, ypos float64) {
	p.Input.ProcessMouseMove(xpos, ypos)
}

func (p *Platform) scrollCallback(w *glfw.Window, xoff, yoff float64) {
	p.Input.ProcessMouseWheel(yoff)
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.resized.Store(true)
}

func translateKey(key glfw.Key) input.KeyCode {
	switch {
	case key >= glfw.KeyA && key <= glfw.KeyZ:
		return input.KEY_A + input.KeyCode(key-glfw.KeyA)
	case key == glfw.KeyEscape:
		return input.KEY_ESCAPE
	case key == glfw.KeyTab:
		return input.KEY_TAB
	case key == glfw.KeySpace:
		return input.KEY_SPACE
	case key == glfw.KeyLeftShift:
		return input.KEY_LSHIFT
	case key == glfw.KeyRightShift:
		return input.KEY_RSHIFT
	case key == glfw.KeyLeftControl:
		return input.KEY_LCONTROL
	case key == glfw.KeyUp:
		return input.KEY_UP
	case key == glfw.KeyDown:
		return input.KEY_DOWN
	case key == glfw.KeyLeft:
		return input.KEY_LEFT
	case key == glfw.KeyRight:
		return input.KEY_RIGHT
	}
	return input.KEY_UNKNOWN
}
