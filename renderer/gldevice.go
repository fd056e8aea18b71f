package renderer

import (
	"fmt"
	"image"
	"log"
	"math"
	"strings"
	"sync"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/gotransition/inputs"
	"github.com/richinsley/gotransition/shader"
	xlate "github.com/richinsley/gotransition/translator"
)

var glInitOnce sync.Once

// GLDevice draws with OpenGL 4.1 core into the currently bound framebuffer.
// On the default framebuffer a drawing buffer smaller than the display is
// rendered offscreen and stretched over the whole window.
type GLDevice struct {
	sampler       inputs.Sampler
	drawingWidth  int32
	drawingHeight int32
	displayWidth  int32
	displayHeight int32
	resolve       *OffscreenRenderer
}

// glProgram holds a linked program and the locations of the effect ABI.
type glProgram struct {
	id            uint32
	projectionLoc int32
	modelViewLoc  int32
	timeLoc       int32
	mouseLoc      int32
	resolutionLoc int32
	thresholdLoc  int32
	tex0Loc       int32
	tex1Loc       int32
}

func (p *glProgram) Destroy() {
	if p.id != 0 {
		gl.DeleteProgram(p.id)
		p.id = 0
	}
}

// NewGLDevice initializes the GL function pointers for the current context.
func NewGLDevice() (*GLDevice, error) {
	var initErr error
	glInitOnce.Do(func() {
		initErr = gl.Init()
	})
	if initErr != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", initErr)
	}

	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.ClearColor(0, 0, 0, 0)

	return &GLDevice{sampler: inputs.DefaultSampler}, nil
}

func (d *GLDevice) NewTexture(img image.Image) (inputs.Texture, error) {
	tex, err := inputs.NewImageTexture(img, d.sampler)
	if err != nil {
		return nil, err
	}
	return tex, nil
}

func (d *GLDevice) NewQuad() (Mesh, error) {
	return inputs.NewQuad(shader.PositionLocation, shader.UVLocation), nil
}

func (d *GLDevice) NewProgram(src shader.Source) (Program, error) {
	vs, err := xlate.Translate(shader.GetVertexShader(src.Vertex), "vertex")
	if err != nil {
		return nil, err
	}
	fs, err := xlate.Translate(shader.GetFragmentShader(src.Fragment), "fragment")
	if err != nil {
		return nil, err
	}

	attribs := map[string]uint32{
		vs.Lookup(shader.AttribPosition): shader.PositionLocation,
		vs.Lookup(shader.AttribUV):       shader.UVLocation,
	}
	id, err := newProgram(vs.Code, fs.Code, attribs)
	if err != nil {
		return nil, fmt.Errorf("failed to create shader program: %w", err)
	}

	location := func(t *xlate.Translated, name string) int32 {
		return gl.GetUniformLocation(id, gl.Str(t.Lookup(name)+"\x00"))
	}
	p := &glProgram{
		id:            id,
		projectionLoc: location(vs, shader.UniformProjection),
		modelViewLoc:  location(vs, shader.UniformModelView),
		timeLoc:       location(fs, shader.UniformTime),
		mouseLoc:      location(fs, shader.UniformMouse),
		resolutionLoc: location(fs, shader.UniformResolution),
		thresholdLoc:  location(fs, shader.UniformThreshold),
		tex0Loc:       location(fs, shader.UniformTex0),
		tex1Loc:       location(fs, shader.UniformTex1),
	}
	return p, nil
}

func scaledSize(width, height int, ratio float64) (int32, int32) {
	return int32(math.Floor(float64(width) * ratio)), int32(math.Floor(float64(height) * ratio))
}

// needsStretch reports whether a frame drawn into framebuffer must go
// through the resolve target. User framebuffers are sized to the drawing
// buffer by their owner.
func needsStretch(framebuffer int32, drawW, drawH, dispW, dispH int32) bool {
	return framebuffer == 0 && (drawW != dispW || drawH != dispH)
}

func (d *GLDevice) SetSize(width, height int, pixelRatio, displayRatio float64) {
	d.drawingWidth, d.drawingHeight = scaledSize(width, height, pixelRatio)
	d.displayWidth, d.displayHeight = scaledSize(width, height, displayRatio)
	if d.resolve != nil && (d.resolve.width != int(d.drawingWidth) || d.resolve.height != int(d.drawingHeight)) {
		d.resolve.Destroy()
		d.resolve = nil
	}
}

func (d *GLDevice) resolveTarget() (*OffscreenRenderer, error) {
	if d.resolve == nil {
		or, err := NewOffscreenRenderer(int(d.drawingWidth), int(d.drawingHeight))
		if err != nil {
			return nil, err
		}
		d.resolve = or
	}
	return d.resolve, nil
}

// Destroy releases the resolve target.
func (d *GLDevice) Destroy() {
	if d.resolve != nil {
		d.resolve.Destroy()
		d.resolve = nil
	}
}

func (d *GLDevice) Draw(program Program, mesh Mesh, camera *OrthographicCamera, u *Uniforms) {
	p, ok := program.(*glProgram)
	if !ok || p.id == 0 {
		return
	}
	quad, ok := mesh.(*inputs.Quad)
	if !ok {
		return
	}

	var bound int32
	gl.GetIntegerv(gl.DRAW_FRAMEBUFFER_BINDING, &bound)
	var resolve *OffscreenRenderer
	if needsStretch(bound, d.drawingWidth, d.drawingHeight, d.displayWidth, d.displayHeight) {
		var err error
		if resolve, err = d.resolveTarget(); err != nil {
			log.Printf("Drawing at %dx%d without stretching: %v", d.drawingWidth, d.drawingHeight, err)
		} else {
			resolve.Bind()
		}
	}

	gl.Viewport(0, 0, d.drawingWidth, d.drawingHeight)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	gl.UseProgram(p.id)

	modelView := camera.ModelView(mgl32.Ident4())
	if p.projectionLoc != -1 {
		gl.UniformMatrix4fv(p.projectionLoc, 1, false, &camera.Projection[0])
	}
	if p.modelViewLoc != -1 {
		gl.UniformMatrix4fv(p.modelViewLoc, 1, false, &modelView[0])
	}
	updateUniforms(p, u)
	bindTexture(p.tex0Loc, 0, u.Tex0)
	bindTexture(p.tex1Loc, 1, u.Tex1)

	quad.Draw()

	unbindTexture(0)
	unbindTexture(1)
	gl.UseProgram(0)

	if resolve != nil {
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, resolve.fbo)
		gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
		gl.Viewport(0, 0, d.displayWidth, d.displayHeight)
		gl.Clear(gl.COLOR_BUFFER_BIT)
		gl.BlitFramebuffer(0, 0, d.drawingWidth, d.drawingHeight,
			0, 0, d.displayWidth, d.displayHeight, gl.COLOR_BUFFER_BIT, gl.LINEAR)
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	}
}

func updateUniforms(p *glProgram, u *Uniforms) {
	if p.timeLoc != -1 {
		gl.Uniform1f(p.timeLoc, u.Time)
	}
	if p.mouseLoc != -1 {
		gl.Uniform2f(p.mouseLoc, u.Mouse[0], u.Mouse[1])
	}
	if p.resolutionLoc != -1 {
		gl.Uniform4f(p.resolutionLoc, u.Resolution[0], u.Resolution[1], u.Resolution[2], u.Resolution[3])
	}
	if p.thresholdLoc != -1 {
		gl.Uniform2f(p.thresholdLoc, u.Threshold[0], u.Threshold[1])
	}
}

func bindTexture(loc int32, unit uint32, tex inputs.Texture) {
	if loc == -1 || tex == nil {
		return
	}
	gl.ActiveTexture(gl.TEXTURE0 + unit)
	gl.BindTexture(gl.TEXTURE_2D, tex.GetTextureID())
	gl.Uniform1i(loc, int32(unit))
}

func unbindTexture(unit uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + unit)
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

func newProgram(vertexShaderSource, fragmentShaderSource string, attribs map[string]uint32) (uint32, error) {
	vertexShader, err := compileShader(vertexShaderSource, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	fragmentShader, err := compileShader(fragmentShaderSource, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vertexShader)
		return 0, err
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	for name, loc := range attribs {
		gl.BindAttribLocation(program, loc, gl.Str(name+"\x00"))
	}
	gl.LinkProgram(program)

	gl.DeleteShader(vertexShader)
	gl.DeleteShader(fragmentShader)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("failed to link program: %v", log)
	}

	return program, nil
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	id := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(id, 1, csources, nil)
	free()
	gl.CompileShader(id)

	var status int32
	gl.GetShaderiv(id, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(id, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(id, logLength, nil, gl.Str(logText))
		gl.DeleteShader(id)
		return 0, fmt.Errorf("failed to compile shader: %v", logText)
	}
	return id, nil
}
