package grid

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/vkapp/engine/camera"
)

// PushConstantsSize is the byte size of the push constant block shared by
// grid.vert and grid.frag.
const PushConstantsSize = 144

// PushConstants mirrors the shader block:
//
//	layout(push_constant) uniform Push {
//	    mat4  viewProj;    // 0
//	    mat4  invViewProj; // 64
//	    vec3  cameraPos;   // 128
//	    float gridScale;   // 140
//	};
type PushConstants struct {
	ViewProj    mgl32.Mat4
	InvViewProj mgl32.Mat4
	CameraPos   mgl32.Vec3
	GridScale   float32
}

func BuildPushConstants(cam *camera.Camera, gridScale float32) PushConstants {
	viewProj := cam.ViewProjection()
	return PushConstants{
		ViewProj:    viewProj,
		InvViewProj: viewProj.Inv(),
		CameraPos:   cam.Position,
		GridScale:   gridScale,
	}
}

// Bytes packs the block little endian, matrices column major.
func (p PushConstants) Bytes() []byte {
	out := make([]byte, PushConstantsSize)
	offset := 0
	put := func(values ...float32) {
		for _, v := range values {
			binary.LittleEndian.PutUint32(out[offset:], math.Float32bits(v))
			offset += 4
		}
	}
	put(p.ViewProj[:]...)
	put(p.InvViewProj[:]...)
	put(p.CameraPos[:]...)
	put(p.GridScale)
	return out
}
