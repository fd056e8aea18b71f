package shader

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

// Uniform names the effect's fragment shader reads. The controller must
// populate every one of them each frame.
const (
	UniformTime       = "time"
	UniformMouse      = "mouse"
	UniformResolution = "resolution"
	UniformThreshold  = "uThreshold"
	UniformTex0       = "uTex0"
	UniformTex1       = "uTex1"
)

// Built-ins a WebGL host injects ahead of user shader code.
const (
	UniformProjection = "projectionMatrix"
	UniformModelView  = "modelViewMatrix"
	AttribPosition    = "position"
	AttribUV          = "uv"
)

// Attribute locations the quad mesh is laid out with.
const (
	PositionLocation = 0
	UVLocation       = 1
)

// ────────────────────────────── Host preambles ──────────────────────────────

// The effect shaders are written in WebGL 1 style (attribute/varying,
// texture2D, gl_FragColor). These preambles map that dialect onto GLSL ES 3.00
// the same way a WebGL 2 host does before handing them to the translator.

const vertexPreamble = `#version 300 es
precision highp float;
precision highp int;
#define attribute in
#define varying out
#define texture2D texture

uniform mat4 modelViewMatrix;
uniform mat4 projectionMatrix;

in vec3 position;
in vec2 uv;
`

const fragmentPreamble = `#version 300 es
precision highp float;
precision highp int;
#define varying in
#define texture2D texture
#define gl_FragColor pc_fragColor

out highp vec4 pc_fragColor;
`

//go:embed glsl/vertex.glsl
var defaultVertex string

//go:embed glsl/fragment.glsl
var defaultFragment string

// Source is an opaque vertex/fragment shader pair.
type Source struct {
	Vertex   string
	Fragment string
}

// Default returns the effect shaders bundled with the binary.
func Default() Source {
	return Source{Vertex: defaultVertex, Fragment: defaultFragment}
}

// LoadSource reads a shader pair from disk. An empty path falls back to the
// bundled shader for that stage.
func LoadSource(vertexPath, fragmentPath string) (Source, error) {
	src := Default()
	if vertexPath != "" {
		data, err := os.ReadFile(vertexPath)
		if err != nil {
			return Source{}, fmt.Errorf("failed to read vertex shader: %w", err)
		}
		src.Vertex = string(data)
	}
	if fragmentPath != "" {
		data, err := os.ReadFile(fragmentPath)
		if err != nil {
			return Source{}, fmt.Errorf("failed to read fragment shader: %w", err)
		}
		src.Fragment = string(data)
	}
	return src, nil
}

// stripVersion removes a leading #version directive so the preamble's wins.
func stripVersion(code string) string {
	trimmed := strings.TrimLeft(code, " \t\r\n")
	if !strings.HasPrefix(trimmed, "#version") {
		return code
	}
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		return trimmed[i+1:]
	}
	return ""
}

// GetVertexShader combines the host preamble with user vertex code.
func GetVertexShader(user string) string {
	return vertexPreamble + stripVersion(user)
}

// GetFragmentShader combines the host preamble with user fragment code.
func GetFragmentShader(user string) string {
	return fragmentPreamble + stripVersion(user)
}
