package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/gotransition/assets"
	"github.com/richinsley/gotransition/graphics"
	"github.com/richinsley/gotransition/inputs"
	"github.com/richinsley/gotransition/shader"
)

// ErrLoadFailed wraps any failure that leaves a surface permanently inert.
var ErrLoadFailed = errors.New("surface initialization failed")

// State is the surface's initialization state.
type State int

const (
	Loading State = iota
	Ready
	Failed
	Destroyed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Destroyed:
		return "destroyed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	defaultPixelRatioLimit = 2
	defaultSmoothing       = 0.1
)

// DefaultThreshold is the constant uThreshold uniform.
var DefaultThreshold = mgl32.Vec2{35, 15}

// Options tunes a Surface. Zero values select the defaults.
type Options struct {
	// PixelRatioLimit caps the device pixel ratio used for the drawing
	// buffer. Defaults to 2.
	PixelRatioLimit float64
	// Smoothing is the fraction of the remaining pointer distance covered
	// per frame. Defaults to 0.1.
	Smoothing float32
	Threshold mgl32.Vec2
	// LoadTimeout bounds texture loading. Zero waits forever.
	LoadTimeout time.Duration
}

type loadResult struct {
	images [2]image.Image
	err    error
}

// Surface owns the drawing buffer, camera, quad and uniforms for one
// transition effect. All methods must be called from the GL thread.
type Surface struct {
	container graphics.Container
	device    Device
	source    shader.Source
	pair      assets.Pair
	opts      Options

	camera     *OrthographicCamera
	width      int
	height     int
	pixelRatio float64

	time        float64
	pointer     mgl32.Vec2
	imageAspect float64

	program  Program
	mesh     Mesh
	textures [2]inputs.Texture
	uniforms *Uniforms

	state   State
	err     error
	pending chan loadResult
	cancel  context.CancelFunc
}

// NewSurface sizes a drawing buffer to container, sets up the camera and
// starts loading the pair's two images from src in the background. The
// surface ignores Render, SetPointer and Resize until Poll or Wait observes
// the finished load.
func NewSurface(container graphics.Container, device Device, source shader.Source, pair assets.Pair, src assets.ImageSource, opts Options) *Surface {
	if opts.PixelRatioLimit <= 0 {
		opts.PixelRatioLimit = defaultPixelRatioLimit
	}
	if opts.Smoothing <= 0 {
		opts.Smoothing = defaultSmoothing
	}
	if opts.Threshold == (mgl32.Vec2{}) {
		opts.Threshold = DefaultThreshold
	}

	s := &Surface{
		container: container,
		device:    device,
		source:    source,
		pair:      pair,
		opts:      opts,
		pointer:   mgl32.Vec2{0.5, 0.5},
		state:     Loading,
		pending:   make(chan loadResult, 1),
	}

	s.width, s.height = container.Size()
	s.applySize()

	s.camera = NewOrthographicCamera(-0.5, 0.5, 0.5, -0.5, 0, 10)
	// one unit in front of the quad, well inside the near plane
	s.camera.Position = mgl32.Vec3{0, 0, 1}
	s.camera.UpdateViewMatrix()
	if s.width > 0 && s.height > 0 {
		s.camera.Aspect = float64(s.width) / float64(s.height)
		s.camera.UpdateProjectionMatrix()
	}

	var ctx context.Context
	if opts.LoadTimeout > 0 {
		ctx, s.cancel = context.WithTimeout(context.Background(), opts.LoadTimeout)
	} else {
		ctx, s.cancel = context.WithCancel(context.Background())
	}

	log.Printf("Loading textures for %s: %s, %s", pair.Mode, pair.First, pair.Second)
	go func() {
		images, err := assets.LoadPair(ctx, src, pair)
		s.pending <- loadResult{images: images, err: err}
	}()
	return s
}

// applySize sizes the drawing buffer at the clamped pixel ratio and tells
// the device the real one so the output still fills the container.
func (s *Surface) applySize() {
	display := s.container.PixelRatio()
	if display <= 0 {
		display = 1
	}
	s.pixelRatio = math.Min(display, s.opts.PixelRatioLimit)
	s.device.SetSize(s.width, s.height, s.pixelRatio, display)
}

// Poll completes initialization if the texture load has finished. It never
// blocks and reports the resulting state.
func (s *Surface) Poll() State {
	if s.state != Loading {
		return s.state
	}
	select {
	case res := <-s.pending:
		s.finish(res)
	default:
	}
	return s.state
}

// Wait blocks until the texture load finishes or ctx is done, then
// completes initialization.
func (s *Surface) Wait(ctx context.Context) error {
	if s.state == Loading {
		select {
		case res := <-s.pending:
			s.finish(res)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.state == Ready {
		return nil
	}
	if s.err != nil {
		return s.err
	}
	return fmt.Errorf("surface is %s", s.state)
}

func (s *Surface) finish(res loadResult) {
	s.cancel()
	if res.err != nil {
		s.fail(res.err)
		return
	}

	bounds := res.images[0].Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		s.fail(fmt.Errorf("texture 0 (%s) is empty", s.pair.First))
		return
	}

	for i, img := range res.images {
		tex, err := s.device.NewTexture(img)
		if err != nil {
			s.fail(fmt.Errorf("failed to upload texture %d: %w", i, err))
			return
		}
		s.textures[i] = tex
	}

	var err error
	s.program, err = s.device.NewProgram(s.source)
	if err != nil {
		s.fail(fmt.Errorf("failed to create shader program: %w", err))
		return
	}
	s.mesh, err = s.device.NewQuad()
	if err != nil {
		s.fail(fmt.Errorf("failed to create quad: %w", err))
		return
	}

	s.imageAspect = float64(bounds.Dx()) / float64(bounds.Dy())
	scaleX, scaleY := AspectScale(s.width, s.height, s.imageAspect)
	s.uniforms = &Uniforms{
		Time:       float32(s.time),
		Mouse:      mgl32.Vec2{0, 0},
		Resolution: mgl32.Vec4{float32(s.width), float32(s.height), float32(scaleX), float32(scaleY)},
		Threshold:  s.opts.Threshold,
		Tex0:       s.textures[0],
		Tex1:       s.textures[1],
	}
	s.state = Ready
	log.Printf("Surface ready: %dx%d, image aspect %.4f", s.width, s.height, s.imageAspect)
}

func (s *Surface) fail(err error) {
	s.releaseGPU()
	s.err = fmt.Errorf("%w: %w", ErrLoadFailed, err)
	s.state = Failed
}

// Render draws one frame at timestamp seconds.
func (s *Surface) Render(seconds float64) {
	if s.state != Ready {
		return
	}
	s.time = seconds
	s.uniforms.Time = float32(seconds)
	m := s.uniforms.Mouse
	s.uniforms.Mouse = m.Add(s.pointer.Sub(m).Mul(s.opts.Smoothing))
	s.device.Draw(s.program, s.mesh, s.camera, s.uniforms)
}

// SetPointer records the latest pointer sample, normalized to [0,1] with
// the origin at the bottom-left. The next Render eases toward it.
func (s *Surface) SetPointer(x, y float64) {
	if s.state != Ready {
		return
	}
	s.pointer = mgl32.Vec2{float32(x), float32(y)}
}

// Resize re-reads the container box and updates the resolution uniform,
// drawing buffer and camera aspect.
func (s *Surface) Resize() {
	if s.state != Ready {
		return
	}
	width, height := s.container.Size()
	if width <= 0 || height <= 0 {
		// minimized; keep the last usable size
		return
	}
	s.width, s.height = width, height
	scaleX, scaleY := AspectScale(s.width, s.height, s.imageAspect)
	s.uniforms.Resolution = mgl32.Vec4{float32(s.width), float32(s.height), float32(scaleX), float32(scaleY)}

	s.applySize()

	s.camera.Aspect = float64(s.width) / float64(s.height)
	s.camera.UpdateProjectionMatrix()
}

// Destroy cancels an in-flight load and releases GPU resources. It is safe
// to call more than once.
func (s *Surface) Destroy() {
	if s.state == Destroyed {
		return
	}
	s.cancel()
	s.releaseGPU()
	s.uniforms = nil
	s.state = Destroyed
}

func (s *Surface) releaseGPU() {
	if s.program != nil {
		s.program.Destroy()
		s.program = nil
	}
	if s.mesh != nil {
		s.mesh.Destroy()
		s.mesh = nil
	}
	for i, tex := range s.textures {
		if tex != nil {
			tex.Destroy()
			s.textures[i] = nil
		}
	}
}

// State reports the initialization state.
func (s *Surface) State() State { return s.state }

// Err returns the initialization failure, if any.
func (s *Surface) Err() error { return s.err }

// Uniforms returns the live uniform bundle, or nil before the surface is
// ready.
func (s *Surface) Uniforms() *Uniforms { return s.uniforms }

func (s *Surface) Camera() *OrthographicCamera { return s.camera }

// Size returns the container box and clamped pixel ratio last applied.
func (s *Surface) Size() (width, height int, pixelRatio float64) {
	return s.width, s.height, s.pixelRatio
}

// Pointer returns the latest raw pointer sample.
func (s *Surface) Pointer() mgl32.Vec2 { return s.pointer }

// ImageAspect returns the first texture's width/height.
func (s *Surface) ImageAspect() float64 { return s.imageAspect }
