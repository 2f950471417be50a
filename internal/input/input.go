// Package input reports the game controllers attached to this machine.
package input

import (
	"slices"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// DefaultJoydevGlob matches Linux joystick device nodes
const DefaultJoydevGlob = "/dev/input/js*"

// Static reports a fixed controller count
type Static int

// GamepadCount implements streaming.InputDevices
func (s Static) GamepadCount() int {
	if s < 0 {
		return 0
	}
	return int(s)
}

// Joydev counts joystick device nodes matching a glob
type Joydev struct {
	pattern string
	logger  *zap.Logger

	mu   sync.Mutex
	last []string
}

// NewJoydev creates a joydev scanner. A blank pattern uses DefaultJoydevGlob.
func NewJoydev(pattern string, logger *zap.Logger) *Joydev {
	if pattern == "" {
		pattern = DefaultJoydevGlob
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Joydev{pattern: pattern, logger: logger.Named("input")}
}

// Devices returns the matching device paths, sorted
func (j *Joydev) Devices() ([]string, error) {
	matches, err := doublestar.FilepathGlob(j.pattern)
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)
	return matches, nil
}

// GamepadCount implements streaming.InputDevices. Devices are rescanned on
// every call so controllers plugged in between sessions are picked up.
func (j *Joydev) GamepadCount() int {
	devices, err := j.Devices()
	if err != nil {
		j.logger.Warn("Failed to scan for controllers", zap.String("pattern", j.pattern), zap.Error(err))
		return 0
	}

	j.mu.Lock()
	changed := !slices.Equal(j.last, devices)
	j.last = devices
	j.mu.Unlock()

	if changed {
		j.logger.Info("Controllers detected", zap.Int("count", len(devices)), zap.Strings("devices", devices))
	}
	return len(devices)
}
