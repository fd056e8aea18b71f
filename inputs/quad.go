package inputs

import (
	"github.com/go-gl/gl/v4.1-core/gl"
)

// A 1x1 plane centred on the origin in the XY plane: position xyz, uv.
var quadVertices = []float32{
	-0.5, 0.5, 0, 0, 1,
	0.5, 0.5, 0, 1, 1,
	-0.5, -0.5, 0, 0, 0,
	0.5, -0.5, 0, 1, 0,
}

var quadIndices = []uint16{
	0, 2, 1,
	2, 3, 1,
}

// Quad is the single plane mesh the effect is drawn on.
type Quad struct {
	vao uint32
	vbo uint32
	ebo uint32
}

// NewQuad uploads the plane with position at positionLoc and uv at uvLoc.
func NewQuad(positionLoc, uvLoc uint32) *Quad {
	q := &Quad{}
	gl.GenVertexArrays(1, &q.vao)
	gl.GenBuffers(1, &q.vbo)
	gl.GenBuffers(1, &q.ebo)

	gl.BindVertexArray(q.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, q.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(quadVertices)*4, gl.Ptr(quadVertices), gl.STATIC_DRAW)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, q.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(quadIndices)*2, gl.Ptr(quadIndices), gl.STATIC_DRAW)

	stride := int32(5 * 4)
	gl.EnableVertexAttribArray(positionLoc)
	gl.VertexAttribPointer(positionLoc, 3, gl.FLOAT, false, stride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(uvLoc)
	gl.VertexAttribPointer(uvLoc, 2, gl.FLOAT, false, stride, gl.PtrOffset(3*4))

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return q
}

// Draw issues one indexed draw of the plane.
func (q *Quad) Draw() {
	gl.BindVertexArray(q.vao)
	gl.DrawElements(gl.TRIANGLES, int32(len(quadIndices)), gl.UNSIGNED_SHORT, gl.PtrOffset(0))
	gl.BindVertexArray(0)
}

func (q *Quad) Destroy() {
	if q.vao == 0 {
		return
	}
	gl.DeleteBuffers(1, &q.ebo)
	gl.DeleteBuffers(1, &q.vbo)
	gl.DeleteVertexArrays(1, &q.vao)
	q.vao, q.vbo, q.ebo = 0, 0, 0
}
