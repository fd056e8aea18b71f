// Package rendertest provides a recording renderer.Device for tests that
// exercise the surface and page without a GPU.
package rendertest

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/gotransition/assets"
	"github.com/richinsley/gotransition/inputs"
	"github.com/richinsley/gotransition/renderer"
	"github.com/richinsley/gotransition/shader"
)

// Draw is one recorded draw call. Uniforms is a copy taken at draw time.
type Draw struct {
	Uniforms   renderer.Uniforms
	Aspect     float64
	Projection mgl32.Mat4
}

// Size is one recorded SetSize call.
type Size struct {
	Width, Height int
	PixelRatio    float64
	DisplayRatio  float64
}

// Device records every call made to it.
type Device struct {
	mu sync.Mutex

	// Fail* make the matching constructor return an error.
	FailProgram bool
	FailTexture bool

	Draws    []Draw
	Sizes    []Size
	Programs []*Resource
	Textures []*Texture
	Meshes   []*Resource
}

// Resource counts its Destroy calls.
type Resource struct {
	Destroyed int
}

func (r *Resource) Destroy() { r.Destroyed++ }

// Texture is a fake texture with the source image's dimensions.
type Texture struct {
	Resource
	ID            uint32
	Width, Height int
}

func (t *Texture) GetTextureID() uint32   { return t.ID }
func (t *Texture) Resolution() (int, int) { return t.Width, t.Height }

func NewDevice() *Device {
	return &Device{}
}

func (d *Device) NewProgram(src shader.Source) (renderer.Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailProgram {
		return nil, errors.New("rendertest: program failure")
	}
	p := &Resource{}
	d.Programs = append(d.Programs, p)
	return p, nil
}

func (d *Device) NewTexture(img image.Image) (inputs.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailTexture {
		return nil, errors.New("rendertest: texture failure")
	}
	b := img.Bounds()
	t := &Texture{ID: uint32(len(d.Textures) + 1), Width: b.Dx(), Height: b.Dy()}
	d.Textures = append(d.Textures, t)
	return t, nil
}

func (d *Device) NewQuad() (renderer.Mesh, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := &Resource{}
	d.Meshes = append(d.Meshes, m)
	return m, nil
}

func (d *Device) SetSize(width, height int, pixelRatio, displayRatio float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Sizes = append(d.Sizes, Size{Width: width, Height: height, PixelRatio: pixelRatio, DisplayRatio: displayRatio})
}

func (d *Device) Draw(program renderer.Program, mesh renderer.Mesh, camera *renderer.OrthographicCamera, u *renderer.Uniforms) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Draws = append(d.Draws, Draw{Uniforms: *u, Aspect: camera.Aspect, Projection: camera.Projection})
}

// DrawCount returns the number of draws recorded so far.
func (d *Device) DrawCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Draws)
}

// Container is a fixed size graphics.Container.
type Container struct {
	Width, Height int
	Ratio         float64
}

func (c *Container) Size() (int, int)    { return c.Width, c.Height }
func (c *Container) PixelRatio() float64 { return c.Ratio }

// Images serves in-memory images by name. Names listed in Errors fail.
type Images struct {
	Images map[string]image.Image
	Errors map[string]error

	mu    sync.Mutex
	Names []string
}

// Load implements assets.ImageSource.
func (s *Images) Load(ctx context.Context, name string) (image.Image, error) {
	s.mu.Lock()
	s.Names = append(s.Names, name)
	s.mu.Unlock()
	if err, ok := s.Errors[name]; ok {
		return nil, err
	}
	img, ok := s.Images[name]
	if !ok {
		return nil, fmt.Errorf("rendertest: no image %q", name)
	}
	return img, nil
}

// Requested returns the names Load was called with.
func (s *Images) Requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Names...)
}

// Gate wraps an ImageSource and holds every load until Open is called, so
// tests control when loading completes.
type Gate struct {
	Source assets.ImageSource

	once sync.Once
	open chan struct{}
	mu   sync.Mutex
}

func (g *Gate) ch() chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open == nil {
		g.open = make(chan struct{})
	}
	return g.open
}

// Open releases all held and future loads.
func (g *Gate) Open() {
	ch := g.ch()
	g.once.Do(func() { close(ch) })
}

func (g *Gate) Load(ctx context.Context, name string) (image.Image, error) {
	select {
	case <-g.ch():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Source.Load(ctx, name)
}

// Solid returns a w x h image for use as a texture.
func Solid(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}
