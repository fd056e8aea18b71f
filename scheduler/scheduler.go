// Package scheduler implements a frame callback queue in the manner of a
// browser's requestAnimationFrame. It is not safe for concurrent use; all
// calls are expected to come from the thread that owns the GL context.
package scheduler

// Handle identifies a pending frame request. The zero Handle is never issued.
type Handle uint64

// Callback receives the frame timestamp in milliseconds.
type Callback func(timestamp float64)

type entry struct {
	handle Handle
	cb     Callback
}

// Scheduler holds the callbacks waiting for the next frame.
type Scheduler struct {
	last    Handle
	pending []entry
	running []entry
}

func New() *Scheduler {
	return &Scheduler{}
}

// Request queues cb for the next Tick and returns its handle.
func (s *Scheduler) Request(cb Callback) Handle {
	s.last++
	s.pending = append(s.pending, entry{handle: s.last, cb: cb})
	return s.last
}

// Cancel removes a pending request. Unknown, zero or already fired handles
// are ignored.
func (s *Scheduler) Cancel(h Handle) {
	if h == 0 {
		return
	}
	for i := range s.pending {
		if s.pending[i].handle == h {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
	// a callback running in the current tick may cancel a sibling
	for i := range s.running {
		if s.running[i].handle == h {
			s.running[i].cb = nil
			return
		}
	}
}

// Tick runs every callback that was pending when Tick was entered and
// returns how many ran. Callbacks requested during the tick wait for the
// next one.
func (s *Scheduler) Tick(timestamp float64) int {
	s.running, s.pending = s.pending, nil
	n := 0
	for i := range s.running {
		cb := s.running[i].cb
		if cb == nil {
			continue
		}
		s.running[i].cb = nil
		cb(timestamp)
		n++
	}
	s.running = nil
	return n
}

// Pending reports the number of callbacks waiting for the next Tick.
func (s *Scheduler) Pending() int {
	return len(s.pending)
}
