package renderer

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/gotransition/inputs"
	"github.com/richinsley/gotransition/shader"
)

// Program is a linked shader program bound to the effect's uniform ABI.
type Program interface {
	Destroy()
}

// Mesh is drawable geometry.
type Mesh interface {
	Destroy()
}

// Device is the GPU capability the surface drives. The OpenGL
// implementation is GLDevice; tests substitute a recording fake.
type Device interface {
	NewProgram(src shader.Source) (Program, error)
	NewTexture(img image.Image) (inputs.Texture, error)
	NewQuad() (Mesh, error)

	// SetSize sizes the drawing buffer to width*pixelRatio by
	// height*pixelRatio pixels. displayRatio is the real framebuffer scale;
	// when it differs from pixelRatio the drawing buffer is stretched to
	// cover the whole width*displayRatio by height*displayRatio framebuffer.
	SetSize(width, height int, pixelRatio, displayRatio float64)

	// Draw clears the drawing buffer and draws mesh once with program,
	// uploading the camera matrices and every uniform in u.
	Draw(program Program, mesh Mesh, camera *OrthographicCamera, u *Uniforms)
}

// Uniforms is the value bundle pushed to the effect shader each frame.
type Uniforms struct {
	Time       float32
	Mouse      mgl32.Vec2
	Resolution mgl32.Vec4 // width, height, scaleX, scaleY
	Threshold  mgl32.Vec2
	Tex0       inputs.Texture
	Tex1       inputs.Texture
}

// AspectScale returns the per-axis UV scale that keeps an image of aspect
// imageAspect (width/height) undistorted in a width x height viewport. An
// empty viewport yields the identity scale.
func AspectScale(width, height int, imageAspect float64) (scaleX, scaleY float64) {
	if width <= 0 || height <= 0 {
		return 1, 1
	}
	w := float64(width)
	h := float64(height)
	if h/w < imageAspect {
		return 1, (h / w) * imageAspect
	}
	return (w / h) * imageAspect, 1
}
