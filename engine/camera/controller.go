package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	emath "github.com/spaghettifunk/vkapp/engine/math"
)

const (
	FreeMoveSpeed        float32 = 5 // units per second
	FreeSprintMultiplier float32 = 3
	FreeLookSensitivity  float32 = 0.1
	FreeZoomSpeed        float32 = 2

	OrbitDistance    float32 = 10
	OrbitTheta       float32 = 0
	OrbitPhi         float32 = 30
	OrbitSpeed       float32 = 0.5
	OrbitPanSpeed    float32 = 5
	OrbitZoomSpeed   float32 = 2
	OrbitMinDistance float32 = 1
	OrbitMaxDistance float32 = 1000
)

// Input is the slice of per-frame input a controller reads.
type Input struct {
	// Forward, Right and Up are axes in [-1, 1].
	Forward float32
	Right   float32
	Up      float32
	Sprint  bool

	MouseCaptured bool
	MouseDX       float32
	MouseDY       float32
	Scroll        float32
}

// Controller moves a camera from input. dt is in seconds.
type Controller interface {
	Update(cam *Camera, in Input, dt float32)
}

// FreeController flies the camera: mouse look, WASD/EQ movement and scroll to
// change the field of view.
type FreeController struct {
	MoveSpeed        float32
	SprintMultiplier float32
	LookSensitivity  float32
	ZoomSpeed        float32
}

func NewFreeController() *FreeController {
	return &FreeController{
		MoveSpeed:        FreeMoveSpeed,
		SprintMultiplier: FreeSprintMultiplier,
		LookSensitivity:  FreeLookSensitivity,
		ZoomSpeed:        FreeZoomSpeed,
	}
}

func (f *FreeController) Update(cam *Camera, in Input, dt float32) {
	speed := f.MoveSpeed
	if in.Sprint {
		speed *= f.SprintMultiplier
	}
	step := speed * dt

	cam.Position = cam.Position.
		Add(cam.Front().Mul(in.Forward * step)).
		Add(cam.Right().Mul(in.Right * step)).
		Add(WorldUp.Mul(in.Up * step))

	if in.MouseCaptured {
		cam.Rotate(in.MouseDX*f.LookSensitivity, in.MouseDY*f.LookSensitivity)
	}
	if in.Scroll != 0 {
		cam.Zoom(in.Scroll * f.ZoomSpeed)
	}
}

// OrbitController keeps the camera on a sphere around Target. The mouse orbits,
// scroll changes the distance and WASD pans the target on the ground plane.
type OrbitController struct {
	Target   mgl32.Vec3
	Distance float32
	// Theta is the azimuth and Phi the elevation, both in degrees.
	Theta float32
	Phi   float32

	OrbitSpeed float32
	PanSpeed   float32
	ZoomSpeed  float32
}

func NewOrbitController(target mgl32.Vec3) *OrbitController {
	return &OrbitController{
		Target:     target,
		Distance:   OrbitDistance,
		Theta:      OrbitTheta,
		Phi:        OrbitPhi,
		OrbitSpeed: OrbitSpeed,
		PanSpeed:   OrbitPanSpeed,
		ZoomSpeed:  OrbitZoomSpeed,
	}
}

func (o *OrbitController) Update(cam *Camera, in Input, dt float32) {
	if in.MouseCaptured {
		o.Theta += in.MouseDX * o.OrbitSpeed
		o.Phi -= in.MouseDY * o.OrbitSpeed
		o.Phi = emath.Clamp(o.Phi, MinPitch, MaxPitch)
	}

	if in.Scroll != 0 {
		o.Distance = emath.Clamp(o.Distance-in.Scroll*o.ZoomSpeed, OrbitMinDistance, OrbitMaxDistance)
	}

	pan := o.PanSpeed * dt
	front := cam.Front()
	ground := mgl32.Vec3{front.X(), 0, front.Z()}
	if ground.Len() > 1e-6 {
		o.Target = o.Target.Add(ground.Normalize().Mul(in.Forward * pan))
	}
	o.Target = o.Target.Add(cam.Right().Mul(in.Right * pan))

	theta := float64(mgl32.DegToRad(o.Theta))
	phi := float64(mgl32.DegToRad(o.Phi))
	offset := mgl32.Vec3{
		o.Distance * float32(math.Cos(phi)*math.Cos(theta)),
		o.Distance * float32(math.Sin(phi)),
		o.Distance * float32(math.Cos(phi)*math.Sin(theta)),
	}
	cam.Position = o.Target.Add(offset)

	dir := o.Target.Sub(cam.Position).Normalize()
	yaw := mgl32.RadToDeg(float32(math.Atan2(float64(dir.Z()), float64(dir.X()))))
	pitch := mgl32.RadToDeg(float32(math.Asin(float64(dir.Y()))))
	cam.SetRotation(yaw, pitch)
}
