// Package page coordinates a transition surface with its host: it runs the
// frame loop and forwards pointer and resize events until destroyed.
package page

import (
	"log"

	"github.com/richinsley/gotransition/graphics"
	"github.com/richinsley/gotransition/renderer"
	"github.com/richinsley/gotransition/scheduler"
)

// State is the coordinator lifecycle. Destroyed is terminal.
type State int

const (
	Constructing State = iota
	Running
	Destroyed
)

// Target is the surface a page drives. *renderer.Surface implements it.
type Target interface {
	Poll() renderer.State
	Render(seconds float64)
	SetPointer(x, y float64)
	Resize()
	Destroy()
	Err() error
}

// Page owns a Target's lifecycle on a host.
type Page struct {
	host    graphics.Host
	surface Target

	frame         scheduler.Handle
	removePointer func()
	removeResize  func()
	state         State
	reported      bool
}

// New subscribes to the host's pointer and resize events and starts the
// frame loop with the host's current timestamp.
func New(host graphics.Host, surface Target) *Page {
	p := &Page{
		host:    host,
		surface: surface,
		state:   Constructing,
	}
	p.addEventListeners()
	p.state = Running
	p.onAnimationFrame(host.Now())
	return p
}

func (p *Page) addEventListeners() {
	p.removePointer = p.host.AddPointerListener(p.onPointerMove)
	p.removeResize = p.host.AddResizeListener(p.onResize)
}

func (p *Page) removeEventListeners() {
	if p.frame != 0 {
		p.host.CancelFrame(p.frame)
		p.frame = 0
	}
	if p.removePointer != nil {
		p.removePointer()
		p.removePointer = nil
	}
	if p.removeResize != nil {
		p.removeResize()
		p.removeResize = nil
	}
}

func (p *Page) onAnimationFrame(timestamp float64) {
	p.frame = 0
	if p.state != Running {
		return
	}
	if p.surface.Poll() == renderer.Failed && !p.reported {
		p.reported = true
		log.Printf("Transition surface is inert: %v", p.surface.Err())
	}
	p.surface.Render(timestamp / 1000)
	p.frame = p.host.RequestFrame(p.onAnimationFrame)
}

// onPointerMove normalizes client coordinates to [0,1] with the origin at
// the bottom-left.
func (p *Page) onPointerMove(clientX, clientY float64) {
	w, h := p.host.Size()
	if w <= 0 || h <= 0 {
		return
	}
	x := clientX / float64(w)
	y := 1 - clientY/float64(h)
	p.surface.SetPointer(x, y)
}

func (p *Page) onResize() {
	p.surface.Resize()
}

// Destroy stops the frame loop, removes the listeners and releases the
// surface. Further calls are no-ops.
func (p *Page) Destroy() {
	if p.state == Destroyed {
		return
	}
	p.removeEventListeners()
	p.surface.Destroy()
	p.state = Destroyed
	log.Println("Page destroyed")
}

// State reports the lifecycle state.
func (p *Page) State() State { return p.state }
