package renderer

import "github.com/go-gl/mathgl/mgl32"

// OrthographicCamera is a parallel projection looking down -Z.
type OrthographicCamera struct {
	Left, Right, Top, Bottom float32
	Near, Far                float32

	// Aspect tracks the viewport's width/height. The frustum bounds are
	// fixed, so the effect's aspect handling happens in the shader through
	// the resolution uniform.
	Aspect float64

	Position   mgl32.Vec3
	Projection mgl32.Mat4
	View       mgl32.Mat4
}

func NewOrthographicCamera(left, right, top, bottom, near, far float32) *OrthographicCamera {
	c := &OrthographicCamera{
		Left:   left,
		Right:  right,
		Top:    top,
		Bottom: bottom,
		Near:   near,
		Far:    far,
		Aspect: 1,
	}
	c.UpdateProjectionMatrix()
	c.UpdateViewMatrix()
	return c
}

// UpdateProjectionMatrix recomputes Projection from the frustum bounds.
func (c *OrthographicCamera) UpdateProjectionMatrix() {
	c.Projection = mgl32.Ortho(c.Left, c.Right, c.Bottom, c.Top, c.Near, c.Far)
}

// UpdateViewMatrix recomputes View from Position.
func (c *OrthographicCamera) UpdateViewMatrix() {
	c.View = mgl32.Translate3D(-c.Position.X(), -c.Position.Y(), -c.Position.Z())
}

// ModelView returns the model-view matrix for a mesh with the given model
// matrix.
func (c *OrthographicCamera) ModelView(model mgl32.Mat4) mgl32.Mat4 {
	return c.View.Mul4(model)
}
