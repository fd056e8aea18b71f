package page_test

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"
	"time"

	"github.com/richinsley/gotransition/assets"
	"github.com/richinsley/gotransition/page"
	"github.com/richinsley/gotransition/renderer"
	"github.com/richinsley/gotransition/renderer/rendertest"
	"github.com/richinsley/gotransition/scheduler"
	"github.com/richinsley/gotransition/shader"
)

const eps = 1e-4

// fakeHost drives frames by hand through a real scheduler.
type fakeHost struct {
	rendertest.Container
	*scheduler.Scheduler

	now      float64
	pointers map[int]func(x, y float64)
	resizes  map[int]func()
	nextID   int
}

func newFakeHost(w, h int) *fakeHost {
	return &fakeHost{
		Container: rendertest.Container{Width: w, Height: h, Ratio: 1},
		Scheduler: scheduler.New(),
		pointers:  make(map[int]func(x, y float64)),
		resizes:   make(map[int]func()),
	}
}

func (h *fakeHost) Now() float64 { return h.now }

func (h *fakeHost) RequestFrame(cb scheduler.Callback) scheduler.Handle {
	return h.Request(cb)
}

func (h *fakeHost) CancelFrame(handle scheduler.Handle) { h.Cancel(handle) }

func (h *fakeHost) AddPointerListener(fn func(x, y float64)) func() {
	h.nextID++
	id := h.nextID
	h.pointers[id] = fn
	return func() { delete(h.pointers, id) }
}

func (h *fakeHost) AddResizeListener(fn func()) func() {
	h.nextID++
	id := h.nextID
	h.resizes[id] = fn
	return func() { delete(h.resizes, id) }
}

func (h *fakeHost) frame(ts float64) int {
	h.now = ts
	return h.Tick(ts)
}

func (h *fakeHost) pointer(x, y float64) {
	for _, fn := range h.pointers {
		fn(x, y)
	}
}

func (h *fakeHost) resize(w, ht int) {
	h.Width, h.Height = w, ht
	for _, fn := range h.resizes {
		fn()
	}
}

// fakeTarget records what the page forwards to it.
type fakeTarget struct {
	state     renderer.State
	err       error
	renders   []float64
	pointers  [][2]float64
	resizes   int
	destroyed int
}

func (f *fakeTarget) Poll() renderer.State    { return f.state }
func (f *fakeTarget) Render(seconds float64)  { f.renders = append(f.renders, seconds) }
func (f *fakeTarget) SetPointer(x, y float64) { f.pointers = append(f.pointers, [2]float64{x, y}) }
func (f *fakeTarget) Resize()                 { f.resizes++ }
func (f *fakeTarget) Destroy()                { f.destroyed++ }
func (f *fakeTarget) Err() error              { return f.err }

func ballImages() *rendertest.Images {
	return &rendertest.Images{Images: map[string]image.Image{
		"ball.jpg":     rendertest.Solid(400, 400),
		"ball-map.jpg": rendertest.Solid(400, 400),
	}}
}

func TestNewRendersImmediately(t *testing.T) {
	host := newFakeHost(800, 600)
	host.now = 250
	target := &fakeTarget{state: renderer.Ready}

	p := page.New(host, target)
	defer p.Destroy()

	if p.State() != page.Running {
		t.Fatalf("State = %v, want Running", p.State())
	}
	if len(target.renders) != 1 || math.Abs(target.renders[0]-0.25) > eps {
		t.Fatalf("renders = %v, want [0.25]", target.renders)
	}
	if host.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1 re-armed frame", host.Pending())
	}
}

func TestFrameLoop(t *testing.T) {
	host := newFakeHost(800, 600)
	target := &fakeTarget{state: renderer.Ready}
	p := page.New(host, target)
	defer p.Destroy()

	for _, ts := range []float64{16.7, 33.4, 50.1} {
		if n := host.frame(ts); n != 1 {
			t.Fatalf("frame(%v) ran %d callbacks, want 1", ts, n)
		}
	}
	want := []float64{0, 0.0167, 0.0334, 0.0501}
	if len(target.renders) != len(want) {
		t.Fatalf("renders = %v, want %v", target.renders, want)
	}
	for i := range want {
		if math.Abs(target.renders[i]-want[i]) > eps {
			t.Errorf("render %d = %v, want %v", i, target.renders[i], want[i])
		}
	}
}

func TestPointerNormalization(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		cx, cy float64
		x, y   float64
	}{
		{"top left", 800, 600, 0, 0, 0, 1},
		{"bottom right", 800, 600, 800, 600, 1, 0},
		{"center", 800, 600, 400, 300, 0.5, 0.5},
		{"quarter", 1000, 500, 250, 125, 0.25, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := newFakeHost(tt.w, tt.h)
			target := &fakeTarget{state: renderer.Ready}
			p := page.New(host, target)
			defer p.Destroy()

			host.pointer(tt.cx, tt.cy)
			if len(target.pointers) != 1 {
				t.Fatalf("pointers = %v, want one sample", target.pointers)
			}
			got := target.pointers[0]
			if math.Abs(got[0]-tt.x) > eps || math.Abs(got[1]-tt.y) > eps {
				t.Errorf("pointer = %v, want (%v, %v)", got, tt.x, tt.y)
			}
		})
	}
}

func TestPointerIgnoredOnEmptyHost(t *testing.T) {
	host := newFakeHost(0, 0)
	target := &fakeTarget{state: renderer.Ready}
	p := page.New(host, target)
	defer p.Destroy()

	host.pointer(10, 10)
	if len(target.pointers) != 0 {
		t.Errorf("pointers = %v, want none", target.pointers)
	}
}

func TestResizeForwarded(t *testing.T) {
	host := newFakeHost(800, 600)
	target := &fakeTarget{state: renderer.Ready}
	p := page.New(host, target)
	defer p.Destroy()

	host.resize(1024, 768)
	host.resize(640, 480)
	if target.resizes != 2 {
		t.Errorf("resizes = %d, want 2", target.resizes)
	}
}

func TestDestroy(t *testing.T) {
	host := newFakeHost(800, 600)
	target := &fakeTarget{state: renderer.Ready}
	p := page.New(host, target)

	p.Destroy()
	p.Destroy()

	if p.State() != page.Destroyed {
		t.Errorf("State = %v, want Destroyed", p.State())
	}
	if target.destroyed != 1 {
		t.Errorf("surface destroyed %d times, want 1", target.destroyed)
	}
	if host.Pending() != 0 {
		t.Errorf("Pending = %d, want frame request cancelled", host.Pending())
	}
	if len(host.pointers) != 0 || len(host.resizes) != 0 {
		t.Errorf("listeners left registered: %d pointer, %d resize", len(host.pointers), len(host.resizes))
	}

	renders := len(target.renders)
	host.frame(100)
	host.pointer(1, 1)
	host.resize(10, 10)
	if len(target.renders) != renders || len(target.pointers) != 0 || target.resizes != 0 {
		t.Errorf("target touched after Destroy: renders %d->%d, pointers %v, resizes %d",
			renders, len(target.renders), target.pointers, target.resizes)
	}
}

func TestDestroyFromFrameCallback(t *testing.T) {
	host := newFakeHost(800, 600)
	target := &fakeTarget{state: renderer.Ready}
	p := page.New(host, target)

	host.Request(func(float64) { p.Destroy() })
	host.frame(16)

	// the page's own frame was queued before the destroying callback and
	// has already run; nothing may be re-armed afterwards
	host.frame(32)
	if host.Pending() != 0 {
		t.Errorf("Pending = %d after Destroy, want 0", host.Pending())
	}
	if got := len(target.renders); got != 2 {
		t.Errorf("renders = %d, want 2", got)
	}
}

func TestFailedSurfaceKeepsLooping(t *testing.T) {
	host := newFakeHost(800, 600)
	target := &fakeTarget{state: renderer.Failed, err: errors.New("boom")}
	p := page.New(host, target)
	defer p.Destroy()

	host.frame(16)
	host.frame(32)
	if p.State() != page.Running {
		t.Errorf("State = %v, want Running", p.State())
	}
	if host.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", host.Pending())
	}
}

// TestEndToEnd drives a real surface on the recording device through the
// demo-2 scenario: an 800x600 host with a 400x400 image.
func TestEndToEnd(t *testing.T) {
	host := newFakeHost(800, 600)
	dev := rendertest.NewDevice()
	pair, err := assets.Lookup("demo-2")
	if err != nil {
		t.Fatal(err)
	}
	images := ballImages()
	s := renderer.NewSurface(&host.Container, dev, shader.Default(), pair, images, renderer.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	p := page.New(host, s)
	host.frame(16.7)

	if dev.DrawCount() != 2 {
		t.Fatalf("draws = %d, want 2", dev.DrawCount())
	}
	if got := dev.Draws[0].Uniforms.Time; got != 0 {
		t.Errorf("first draw time = %v, want 0", got)
	}
	if got := dev.Draws[1].Uniforms.Time; math.Abs(float64(got)-0.0167) > eps {
		t.Errorf("second draw time = %v, want 0.0167", got)
	}
	res := dev.Draws[0].Uniforms.Resolution
	// 600/800 < 1, so the width axis is the unit one
	if res[0] != 800 || res[1] != 600 || math.Abs(float64(res[2])-1) > eps || math.Abs(float64(res[3])-0.75) > eps {
		t.Errorf("resolution = %v, want [800 600 1 0.75]", res)
	}

	host.pointer(800, 0)
	host.frame(33.4)
	m := dev.Draws[2].Uniforms.Mouse
	prev := dev.Draws[1].Uniforms.Mouse
	if m[0] <= prev[0] || m[1] <= prev[1] {
		t.Errorf("mouse %v did not ease toward (1, 1) from %v", m, prev)
	}

	host.resize(1200, 600)
	host.frame(50.1)
	res = dev.Draws[3].Uniforms.Resolution
	if res[0] != 1200 || res[1] != 600 || math.Abs(float64(res[2])-1) > eps || math.Abs(float64(res[3])-0.5) > eps {
		t.Errorf("resolution after resize = %v, want [1200 600 1 0.5]", res)
	}

	p.Destroy()
	if s.State() != renderer.Destroyed {
		t.Errorf("surface state = %v, want destroyed", s.State())
	}
	host.frame(66.8)
	if dev.DrawCount() != 4 {
		t.Errorf("draws after Destroy = %d, want 4", dev.DrawCount())
	}
	for i, tex := range dev.Textures {
		if tex.Destroyed != 1 {
			t.Errorf("texture %d destroyed %d times, want 1", i, tex.Destroyed)
		}
	}
}

func TestEndToEndLoadFailure(t *testing.T) {
	host := newFakeHost(800, 600)
	dev := rendertest.NewDevice()
	pair, _ := assets.Lookup("demo-2")
	images := &rendertest.Images{Errors: map[string]error{"ball.jpg": errors.New("404")}}
	s := renderer.NewSurface(&host.Container, dev, shader.Default(), pair, images, renderer.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, renderer.ErrLoadFailed) {
		t.Fatalf("Wait = %v, want ErrLoadFailed", err)
	}

	p := page.New(host, s)
	defer p.Destroy()
	host.pointer(10, 10)
	host.resize(100, 100)
	host.frame(16)
	if dev.DrawCount() != 0 {
		t.Errorf("draws = %d, want 0 for an inert surface", dev.DrawCount())
	}
}
