package graphics

import "github.com/richinsley/gotransition/scheduler"

// Context defines the interface for an OpenGL context.
type Context interface {
	MakeCurrent()
	Shutdown()
	ShouldClose() bool
	EndFrame()
	GetFramebufferSize() (int, int)
	Time() float64
}

// Container is the display region the effect is drawn into.
type Container interface {
	// Size returns the region's box in screen coordinates.
	Size() (int, int)
	// PixelRatio returns framebuffer pixels per screen coordinate.
	PixelRatio() float64
}

// Host is everything a page needs from its display environment: the
// container box, a frame scheduler and the pointer and resize event sources.
type Host interface {
	Container

	// Now returns the current high resolution timestamp in milliseconds.
	Now() float64
	RequestFrame(cb scheduler.Callback) scheduler.Handle
	CancelFrame(h scheduler.Handle)

	// AddPointerListener registers fn for pointer moves in client
	// coordinates (origin top-left). The returned func removes it.
	AddPointerListener(fn func(x, y float64)) (remove func())
	// AddResizeListener registers fn for viewport size changes.
	AddResizeListener(fn func()) (remove func())
}
