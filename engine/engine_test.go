package engine

import (
	"os"
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vkapp/engine/core"
	"github.com/spaghettifunk/vkapp/engine/input"
	"github.com/spaghettifunk/vkapp/engine/renderer/vulkan"
	"github.com/spaghettifunk/vkapp/engine/renderer/vulkan/vulkantest"
)

// fakeWindow closes itself after closeAfter polls. onPoll runs after every
// poll, before the frame reads input.
type fakeWindow struct {
	*vulkantest.FakeWindow
	input *input.InputSystem

	closeAfter int
	polls      int
	onPoll     func(poll int, w *fakeWindow)

	resized  bool
	captured bool
	started  bool
	shutdown int
}

func newFakeWindow(closeAfter int) *fakeWindow {
	return &fakeWindow{
		FakeWindow: vulkantest.NewFakeWindow(1280, 720),
		closeAfter: closeAfter,
	}
}

func (w *fakeWindow) Startup(applicationName string, width uint32, height uint32) error {
	w.started = true
	w.input = input.NewInputSystem(input.DefaultBindings())
	return nil
}

func (w *fakeWindow) Shutdown() error {
	w.shutdown++
	return nil
}

func (w *fakeWindow) ShouldClose() bool { return w.polls >= w.closeAfter }
func (w *fakeWindow) RequestClose()     { w.closeAfter = w.polls }

func (w *fakeWindow) PollEvents() {
	w.polls++
	if w.onPoll != nil {
		w.onPoll(w.polls, w)
	}
}

func (w *fakeWindow) ConsumeResize() bool {
	r := w.resized
	w.resized = false
	return r
}

func (w *fakeWindow) SetCursorCaptured(captured bool) {
	w.captured = captured
	w.input.SetMouseCaptured(captured)
}

func (w *fakeWindow) InputSystem() *input.InputSystem { return w.input }

func (w *fakeWindow) GetInstanceProcAddress() unsafe.Pointer { return nil }
func (w *fakeWindow) RequiredInstanceExtensions() []string   { return nil }
func (w *fakeWindow) CreateWindowSurface(instance vk.Instance) (vk.Surface, error) {
	return vk.NullSurface, nil
}

// tap presses and releases key between two frames.
func (w *fakeWindow) tap(key input.KeyCode) {
	w.input.ProcessKey(key, true)
	w.input.ProcessKey(key, false)
}

var _ Window = (*fakeWindow)(nil)

var minimalSpirv = []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}

func newTestEngine(t *testing.T, dev *vulkantest.FakeDevice, win *fakeWindow) *Engine {
	t.Helper()
	dir := t.TempDir()
	for _, stage := range []string{"vert", "frag"} {
		require.NoError(t, os.WriteFile(vulkan.ShaderFileName(dir, "grid", stage), minimalSpirv, 0o644))
	}

	cfg := core.DefaultConfig()
	cfg.Renderer.ShaderDir = dir
	cfg.Renderer.WatchShaders = false

	e := New(cfg, win)
	e.newRenderer = func() (Renderer, error) {
		r, err := vulkan.NewFromDriver(cfg.Renderer, dev, vk.NullSurface, win, vulkan.QueueFamilyIndices{})
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return e
}

func TestRunUntilWindowCloses(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	win := newFakeWindow(3)
	e := newTestEngine(t, dev, win)

	require.NoError(t, e.Initialize())
	assert.Equal(t, EngineStageInitialized, e.Stage())
	assert.True(t, win.started)

	require.NoError(t, e.Run())
	assert.Equal(t, 3, dev.Count("QueuePresent"))
	assert.Equal(t, 3, dev.Draws)
	assert.Equal(t, 3, len(dev.PushConstants))

	require.NoError(t, e.Shutdown())
	assert.Equal(t, EngineStageShutdown, e.Stage())
	assert.Equal(t, 0, dev.LiveTotal())
	assert.Equal(t, 1, win.shutdown)
	assert.Empty(t, dev.Violations)

	require.NoError(t, e.Shutdown())
	assert.Equal(t, 1, win.shutdown)
}

func TestExitAction(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	win := newFakeWindow(100)
	win.onPoll = func(poll int, w *fakeWindow) {
		if poll == 2 {
			w.tap(input.KEY_ESCAPE)
		}
	}
	e := newTestEngine(t, dev, win)
	require.NoError(t, e.Initialize())
	defer e.Shutdown()

	require.NoError(t, e.Run())
	assert.Equal(t, 2, win.polls)
	assert.Equal(t, 1, dev.Count("QueuePresent"))
}

func TestRequestCloseStopsLoop(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	win := newFakeWindow(100)
	e := newTestEngine(t, dev, win)
	win.onPoll = func(poll int, w *fakeWindow) {
		if poll == 4 {
			e.RequestClose()
		}
	}
	require.NoError(t, e.Initialize())
	defer e.Shutdown()

	require.NoError(t, e.Run())
	assert.Equal(t, 4, dev.Count("QueuePresent"))
}

func TestToggleMouseCapture(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	win := newFakeWindow(3)
	win.onPoll = func(poll int, w *fakeWindow) {
		if poll == 1 || poll == 3 {
			w.tap(input.KEY_TAB)
		}
	}
	e := newTestEngine(t, dev, win)
	require.NoError(t, e.Initialize())
	defer e.Shutdown()

	require.NoError(t, e.Run())
	assert.False(t, win.captured, "captured on the first frame, released on the third")
	assert.False(t, win.input.MouseCaptured())
}

func TestResizeRecreatesSwapchain(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	dev.Support = vulkantest.WindowDrivenSupport()
	win := newFakeWindow(3)
	win.onPoll = func(poll int, w *fakeWindow) {
		if poll == 2 {
			w.Resize(800, 600)
			w.resized = true
		}
	}
	e := newTestEngine(t, dev, win)
	require.NoError(t, e.Initialize())
	defer e.Shutdown()
	assert.InDelta(t, 1280.0/720.0, e.camera.Aspect(), 1e-5)

	require.NoError(t, e.Run())

	r := e.renderer.(*vulkan.VulkanRenderer)
	assert.Equal(t, uint64(2), r.Swapchain().Generation())
	assert.Equal(t, vk.Extent2D{Width: 800, Height: 600}, e.grid.Extent())
	assert.InDelta(t, 800.0/600.0, e.camera.Aspect(), 1e-5)
	assert.False(t, r.NeedsRecreate())
	assert.Equal(t, 3, dev.Count("QueuePresent"))
	assert.Empty(t, dev.Violations)
}

func TestOutOfDateFrameRecreatesNextIteration(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	dev.AcquireScript[2] = vk.ErrorOutOfDate
	win := newFakeWindow(3)
	e := newTestEngine(t, dev, win)
	require.NoError(t, e.Initialize())
	defer e.Shutdown()

	require.NoError(t, e.Run())

	r := e.renderer.(*vulkan.VulkanRenderer)
	assert.Equal(t, uint64(2), r.Swapchain().Generation())
	assert.False(t, e.recreatePending)
	assert.Equal(t, 2, dev.Count("QueuePresent"), "the stale frame is skipped")
	assert.Empty(t, dev.Violations)
}

func TestFatalFrameErrorStopsRun(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	dev.AcquireScript[2] = vk.ErrorDeviceLost
	win := newFakeWindow(10)
	e := newTestEngine(t, dev, win)
	require.NoError(t, e.Initialize())

	err := e.Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDeviceDriver)

	require.NoError(t, e.Shutdown())
	assert.Equal(t, 0, dev.LiveTotal())
}

func TestShaderReloadBetweenFrames(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	win := newFakeWindow(2)
	e := newTestEngine(t, dev, win)
	require.NoError(t, e.Initialize())
	defer e.Shutdown()

	requests := make(chan string, 1)
	e.grid.Watch(requests)
	win.onPoll = func(poll int, w *fakeWindow) {
		if poll == 2 {
			requests <- "grid.frag.spv"
		}
	}

	require.NoError(t, e.Run())
	assert.Equal(t, 2, dev.Count("CreateGraphicsPipeline"))
	assert.Equal(t, 1, dev.Live("pipeline"))
	assert.Equal(t, 1, dev.WaitIdleCalls)
	assert.Empty(t, dev.Violations)
}

func TestInitializeFailureReleasesEverything(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	dev.FailCall("CreateGraphicsPipeline", 1)
	win := newFakeWindow(1)
	e := newTestEngine(t, dev, win)

	err := e.Initialize()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrResourceCreation)
	assert.Equal(t, EngineStageUninitialized, e.Stage())
	assert.Equal(t, 0, dev.LiveTotal())
	assert.Equal(t, 1, win.shutdown)
	assert.Empty(t, dev.Violations)
}

func TestOrbitControllerFromConfig(t *testing.T) {
	dev := vulkantest.NewFakeDevice()
	win := newFakeWindow(1)
	e := newTestEngine(t, dev, win)
	e.config.Camera.Controller = core.CameraControllerOrbit
	require.NoError(t, e.Initialize())
	defer e.Shutdown()

	require.NoError(t, e.Run())
	assert.InDelta(t, 10, e.camera.Position.Len(), 1e-4)
}

func TestCameraInput(t *testing.T) {
	in := input.NewInputSystem(input.DefaultBindings())
	in.ProcessKey(input.KEY_W, true)
	in.ProcessKey(input.KEY_A, true)
	in.ProcessKey(input.KEY_LSHIFT, true)
	in.ProcessMouseWheel(2)
	in.Update()

	got := cameraInput(in)
	assert.Equal(t, float32(1), got.Forward)
	assert.Equal(t, float32(-1), got.Right)
	assert.Equal(t, float32(0), got.Up)
	assert.True(t, got.Sprint)
	assert.False(t, got.MouseCaptured)
	assert.Equal(t, float32(2), got.Scroll)
}
