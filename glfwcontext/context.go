package glfwcontext

import (
	"log"
	"runtime"

	glfw "github.com/go-gl/glfw/v3.3/glfw"
	options "github.com/richinsley/gotransition/options"
	"github.com/richinsley/gotransition/scheduler"
)

// Context owns the window, its GL context and the event plumbing the page
// coordinator subscribes to.
type Context struct {
	window *glfw.Window
	frames *scheduler.Scheduler

	// A map to store functions to be called on key presses.
	keyCallbacks map[glfw.Key]func()

	lastListener     int
	pointerListeners map[int]func(x, y float64)
	resizeListeners  map[int]func()
}

// New creates a GLFW window sized from the options and returns a Context.
func New(opts *options.Options, visible bool) (*Context, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.TransparentFramebuffer, glfw.True)

	if visible {
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Visible, glfw.False)
	}

	title := "gotransition"
	if opts.Title != nil && *opts.Title != "" {
		title = *opts.Title
	}

	win, err := glfw.CreateWindow(*opts.Width, *opts.Height, title, nil, nil)
	if err != nil {
		return nil, err
	}

	c := &Context{
		window:           win,
		frames:           scheduler.New(),
		keyCallbacks:     make(map[glfw.Key]func()),
		pointerListeners: make(map[int]func(x, y float64)),
		resizeListeners:  make(map[int]func()),
	}

	win.SetKeyCallback(c.glfwKeyCallback)
	win.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		c.DispatchPointer(xpos, ypos)
	})
	win.SetSizeCallback(func(w *glfw.Window, width, height int) {
		c.DispatchResize()
	})
	// a content scale change is a device pixel ratio change
	win.SetContentScaleCallback(func(w *glfw.Window, x, y float32) {
		c.DispatchResize()
	})

	return c, nil
}

// RegisterKeyCallback allows the main application to register a function to be
// called when a specific key is pressed.
func (c *Context) RegisterKeyCallback(key glfw.Key, f func()) {
	c.keyCallbacks[key] = f
}

func (c *Context) glfwKeyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		w.SetShouldClose(true)
	}

	if action == glfw.Press {
		if callback, ok := c.keyCallbacks[key]; ok {
			callback()
		}
	}
}

// AddPointerListener implements graphics.Host.
func (c *Context) AddPointerListener(fn func(x, y float64)) func() {
	c.lastListener++
	id := c.lastListener
	c.pointerListeners[id] = fn
	return func() { delete(c.pointerListeners, id) }
}

// AddResizeListener implements graphics.Host.
func (c *Context) AddResizeListener(fn func()) func() {
	c.lastListener++
	id := c.lastListener
	c.resizeListeners[id] = fn
	return func() { delete(c.resizeListeners, id) }
}

// DispatchPointer delivers a pointer position in window coordinates to every
// pointer listener. The recorder uses it to script pointer motion.
func (c *Context) DispatchPointer(x, y float64) {
	for _, fn := range c.pointerListeners {
		fn(x, y)
	}
}

// DispatchResize notifies every resize listener.
func (c *Context) DispatchResize() {
	for _, fn := range c.resizeListeners {
		fn()
	}
}

// RequestFrame implements graphics.Host.
func (c *Context) RequestFrame(cb scheduler.Callback) scheduler.Handle {
	return c.frames.Request(cb)
}

// CancelFrame implements graphics.Host.
func (c *Context) CancelFrame(h scheduler.Handle) {
	c.frames.Cancel(h)
}

// Tick runs the pending frame callbacks with the given timestamp in
// milliseconds without swapping or polling.
func (c *Context) Tick(timestamp float64) int {
	return c.frames.Tick(timestamp)
}

// Now returns the GLFW timer in milliseconds.
func (c *Context) Now() float64 {
	return glfw.GetTime() * 1000
}

// Size returns the window's client area in screen coordinates.
func (c *Context) Size() (int, int) {
	return c.window.GetSize()
}

// PixelRatio returns framebuffer pixels per screen coordinate.
func (c *Context) PixelRatio() float64 {
	fbWidth, _ := c.GetFramebufferSize()
	winWidth, _ := c.window.GetSize()
	if winWidth <= 0 || fbWidth <= 0 {
		return 1
	}
	return float64(fbWidth) / float64(winWidth)
}

// Run pumps frames until the window is asked to close.
func (c *Context) Run() {
	for !c.ShouldClose() {
		c.frames.Tick(c.Now())
		c.EndFrame()
	}
}

func (c *Context) DetachCurrent() {
	glfw.DetachCurrentContext()
}

// MakeCurrent makes the context current for the calling goroutine.
func (c *Context) MakeCurrent() {
	c.window.MakeContextCurrent()
}

// Shutdown destroys the window.
func (c *Context) Shutdown() {
	c.window.Destroy()
}

func (c *Context) ShouldClose() bool {
	return c.window.ShouldClose()
}

func (c *Context) EndFrame() {
	c.window.SwapBuffers()
	glfw.PollEvents()
}

func (c *Context) GetFramebufferSize() (int, int) {
	return c.window.GetFramebufferSize()
}

func (c *Context) Time() float64 {
	return glfw.GetTime()
}

// Window returns the underlying *glfw.Window.
func (c *Context) Window() *glfw.Window {
	return c.window
}

// InitGraphics initializes the main graphics subsystem (GLFW). Must be called from the main thread.
func InitGraphics() error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return err
	}
	log.Printf("GLFW Initialized")
	return nil
}

// TerminateGraphics shuts down the graphics subsystem. Must be called from the main thread.
func TerminateGraphics() {
	glfw.Terminate()
	log.Printf("GLFW Terminated")
}
