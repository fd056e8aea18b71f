package assets

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownMode is returned when a mode key has no registered image pair.
var ErrUnknownMode = errors.New("unknown transition mode")

// Pair names the two images a session transitions between. First is the
// visible image, Second is the displacement map the shader samples.
type Pair struct {
	Mode   string
	First  string
	Second string
}

var (
	modesMu sync.RWMutex
	modes   = map[string]Pair{
		"demo-1": {Mode: "demo-1", First: "lady.jpg", Second: "lady-map.jpg"},
		"demo-2": {Mode: "demo-2", First: "ball.jpg", Second: "ball-map.jpg"},
		"demo-3": {Mode: "demo-3", First: "mount.jpg", Second: "mount-map.jpg"},
		"demo-4": {Mode: "demo-4", First: "canyon.jpg", Second: "canyon-map.jpg"},
	}
)

// Lookup returns the image pair registered for mode.
func Lookup(mode string) (Pair, error) {
	modesMu.RLock()
	defer modesMu.RUnlock()
	p, ok := modes[mode]
	if !ok {
		return Pair{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return p, nil
}

// Register adds or replaces the image pair for mode.
func Register(mode, first, second string) {
	modesMu.Lock()
	defer modesMu.Unlock()
	modes[mode] = Pair{Mode: mode, First: first, Second: second}
}

// Modes returns the registered mode keys in sorted order.
func Modes() []string {
	modesMu.RLock()
	defer modesMu.RUnlock()
	keys := make([]string, 0, len(modes))
	for k := range modes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
