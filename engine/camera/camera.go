package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	emath "github.com/spaghettifunk/vkapp/engine/math"
)

var (
	Origin  = mgl32.Vec3{0, 0, 0}
	WorldUp = mgl32.Vec3{0, 1, 0}
)

const (
	DefaultYaw   float32 = -90 // looking towards -Z
	DefaultPitch float32 = 0
	DefaultFov   float32 = 45

	NearPlane float32 = 0.1
	FarPlane  float32 = 1000

	MinFov   float32 = 1
	MaxFov   float32 = 120
	MinPitch float32 = -89
	MaxPitch float32 = 89
)

// DefaultPosition is where a new camera starts.
var DefaultPosition = mgl32.Vec3{0, 2, 5}

// Camera is a perspective camera described by a position and Euler angles in
// degrees. The basis vectors are kept in sync with the angles.
type Camera struct {
	Position mgl32.Vec3

	yaw, pitch float32
	fov        float32
	aspect     float32
	near, far  float32

	front, right, up mgl32.Vec3
}

func New(aspect float32) *Camera {
	c := &Camera{
		Position: DefaultPosition,
		yaw:      DefaultYaw,
		pitch:    DefaultPitch,
		fov:      DefaultFov,
		aspect:   aspect,
		near:     NearPlane,
		far:      FarPlane,
	}
	c.updateVectors()
	return c
}

// SetAspect updates the aspect ratio from a framebuffer size. A zero height,
// as reported by a minimised window, is ignored.
func (c *Camera) SetAspect(width, height uint32) {
	if height == 0 {
		return
	}
	c.aspect = float32(width) / float32(height)
}

func (c *Camera) Aspect() float32 {
	return c.aspect
}

// Rotate adds to yaw and pitch, in degrees. Pitch stays within ±89°.
func (c *Camera) Rotate(yawDelta, pitchDelta float32) {
	c.SetRotation(c.yaw+yawDelta, c.pitch+pitchDelta)
}

func (c *Camera) SetRotation(yaw, pitch float32) {
	c.yaw = yaw
	c.pitch = emath.Clamp(pitch, MinPitch, MaxPitch)
	c.updateVectors()
}

func (c *Camera) Yaw() float32 {
	return c.yaw
}

func (c *Camera) Pitch() float32 {
	return c.pitch
}

// Zoom narrows the field of view by amount degrees.
func (c *Camera) Zoom(amount float32) {
	c.SetFov(c.fov - amount)
}

func (c *Camera) SetFov(fov float32) {
	c.fov = emath.Clamp(fov, MinFov, MaxFov)
}

func (c *Camera) Fov() float32 {
	return c.fov
}

func (c *Camera) Front() mgl32.Vec3 {
	return c.front
}

func (c *Camera) Right() mgl32.Vec3 {
	return c.right
}

func (c *Camera) Up() mgl32.Vec3 {
	return c.up
}

func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.front), c.up)
}

// Projection is a right handed perspective projection with Y flipped for the
// Vulkan clip space.
func (c *Camera) Projection() mgl32.Mat4 {
	p := mgl32.Perspective(mgl32.DegToRad(c.fov), c.aspect, c.near, c.far)
	p[5] *= -1
	return p
}

func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}

func (c *Camera) updateVectors() {
	yaw := float64(mgl32.DegToRad(c.yaw))
	pitch := float64(mgl32.DegToRad(c.pitch))
	front := mgl32.Vec3{
		float32(math.Cos(yaw) * math.Cos(pitch)),
		float32(math.Sin(pitch)),
		float32(math.Sin(yaw) * math.Cos(pitch)),
	}
	c.front = front.Normalize()
	c.right = c.front.Cross(WorldUp).Normalize()
	c.up = c.right.Cross(c.front).Normalize()
}
