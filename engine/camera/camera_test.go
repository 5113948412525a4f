package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-4

func assertVec3(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], eps, "component %d: want %v, got %v", i, want, got)
	}
}

func TestNewCameraLooksDownNegativeZ(t *testing.T) {
	c := New(16.0 / 9.0)
	assertVec3(t, DefaultPosition, c.Position)
	assertVec3(t, mgl32.Vec3{0, 0, -1}, c.Front())
	assertVec3(t, mgl32.Vec3{1, 0, 0}, c.Right())
	assertVec3(t, mgl32.Vec3{0, 1, 0}, c.Up())
	assert.Equal(t, DefaultFov, c.Fov())
}

func TestProjectionFlipsY(t *testing.T) {
	c := New(1)
	p := c.Projection()
	assert.Less(t, p.At(1, 1), float32(0))

	// A point above the view axis lands in the upper half, which is -Y in Vulkan.
	clip := c.ViewProjection().Mul4x1(mgl32.Vec4{0, 3, -5, 1})
	require.Greater(t, clip.W(), float32(0))
	assert.Less(t, clip.Y()/clip.W(), float32(0))

	ahead := c.ViewProjection().Mul4x1(mgl32.Vec4{0, 2, -5, 1})
	assert.InDelta(t, 0, ahead.X()/ahead.W(), eps)
	assert.InDelta(t, 0, ahead.Y()/ahead.W(), eps)
}

func TestRotationClampsPitch(t *testing.T) {
	c := New(1)
	c.Rotate(0, 200)
	assert.Equal(t, MaxPitch, c.Pitch())
	c.Rotate(0, -500)
	assert.Equal(t, MinPitch, c.Pitch())
	c.Rotate(90, 0)
	assert.Equal(t, DefaultYaw+90, c.Yaw())
}

func TestZoomClampsFov(t *testing.T) {
	c := New(1)
	c.Zoom(10)
	assert.Equal(t, DefaultFov-10, c.Fov())
	c.Zoom(1000)
	assert.Equal(t, MinFov, c.Fov())
	c.Zoom(-1000)
	assert.Equal(t, MaxFov, c.Fov())
}

func TestSetAspectIgnoresZeroHeight(t *testing.T) {
	c := New(2)
	c.SetAspect(800, 0)
	assert.Equal(t, float32(2), c.Aspect())
	c.SetAspect(800, 400)
	assert.Equal(t, float32(2), c.Aspect())
	c.SetAspect(1280, 1024)
	assert.Equal(t, float32(1.25), c.Aspect())
}

func TestFreeControllerMoves(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want mgl32.Vec3
	}{
		{"forward", Input{Forward: 1}, mgl32.Vec3{0, 2, 0}},
		{"backward", Input{Forward: -1}, mgl32.Vec3{0, 2, 10}},
		{"sprint", Input{Forward: 1, Sprint: true}, mgl32.Vec3{0, 2, -10}},
		{"strafe right", Input{Right: 1}, mgl32.Vec3{5, 2, 5}},
		{"up", Input{Up: 1}, mgl32.Vec3{0, 7, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(1)
			NewFreeController().Update(c, tt.in, 1)
			assertVec3(t, tt.want, c.Position)
		})
	}
}

func TestFreeControllerLookNeedsCapture(t *testing.T) {
	c := New(1)
	f := NewFreeController()

	f.Update(c, Input{MouseDX: 100, MouseDY: 50}, 0.016)
	assert.Equal(t, DefaultYaw, c.Yaw())
	assert.Equal(t, DefaultPitch, c.Pitch())

	f.Update(c, Input{MouseCaptured: true, MouseDX: 100, MouseDY: 50}, 0.016)
	assert.InDelta(t, DefaultYaw+10, c.Yaw(), eps)
	assert.InDelta(t, 5, c.Pitch(), eps)
}

func TestFreeControllerScrollZooms(t *testing.T) {
	c := New(1)
	NewFreeController().Update(c, Input{Scroll: 1}, 0.016)
	assert.Equal(t, DefaultFov-FreeZoomSpeed, c.Fov())
}

func TestOrbitControllerPlacesCameraOnSphere(t *testing.T) {
	c := New(1)
	o := NewOrbitController(Origin)
	o.Update(c, Input{}, 0.016)

	assert.InDelta(t, OrbitDistance, c.Position.Len(), eps)
	assert.InDelta(t, 5, c.Position.Y(), eps, "30 degrees of elevation")
	assertVec3(t, c.Position.Mul(-1).Normalize(), c.Front())
}

func TestOrbitControllerInput(t *testing.T) {
	c := New(1)
	o := NewOrbitController(Origin)

	o.Update(c, Input{Scroll: 2}, 0)
	assert.Equal(t, OrbitDistance-4, o.Distance)
	o.Update(c, Input{Scroll: 1000}, 0)
	assert.Equal(t, OrbitMinDistance, o.Distance)

	o.Update(c, Input{MouseCaptured: true, MouseDX: 20, MouseDY: -200}, 0)
	assert.Equal(t, float32(10), o.Theta)
	assert.Equal(t, MaxPitch, o.Phi)

	o.Update(c, Input{MouseDX: 20}, 0)
	assert.Equal(t, float32(10), o.Theta, "no orbit without capture")
}

func TestOrbitControllerPansOnGround(t *testing.T) {
	c := New(1)
	o := NewOrbitController(Origin)
	o.Update(c, Input{}, 0)

	o.Update(c, Input{Forward: 1}, 1)
	assert.InDelta(t, 0, o.Target.Y(), eps)
	assert.InDelta(t, OrbitPanSpeed, o.Target.Len(), eps)
	assert.InDelta(t, OrbitDistance, c.Position.Sub(o.Target).Len(), eps)
}

func TestControllersImplementInterface(t *testing.T) {
	var _ Controller = NewFreeController()
	var _ Controller = NewOrbitController(Origin)
}
