package inputs

import (
	"github.com/go-gl/gl/v4.1-core/gl"
)

// Sampler wrap and filter values map onto the texture parameters a WebGL
// loader would set for the same image.

func getWrapMode(wrap string) int32 {
	switch wrap {
	case "repeat":
		return gl.REPEAT
	case "mirror":
		return gl.MIRRORED_REPEAT
	default:
		// non power-of-two images only allow clamping in WebGL
		return gl.CLAMP_TO_EDGE
	}
}

// getFilterMode returns the min and mag filters and whether the texture
// needs a mipmap chain.
func getFilterMode(filter string) (minFilter, magFilter int32, mipmaps bool) {
	switch filter {
	case "mipmap":
		return gl.LINEAR_MIPMAP_LINEAR, gl.LINEAR, true
	case "nearest":
		return gl.NEAREST, gl.NEAREST, false
	default:
		return gl.LINEAR, gl.LINEAR, false
	}
}
