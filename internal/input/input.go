package input

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/driftline/engine/pkg/core"
)

// Control identifies one of the five digital vehicle controls.
type Control int

const (
	ControlAccelerate Control = iota
	ControlBrake
	ControlSteerLeft
	ControlSteerRight
	ControlHandbrake
)

func (c Control) String() string {
	switch c {
	case ControlAccelerate:
		return "accelerate"
	case ControlBrake:
		return "brake"
	case ControlSteerLeft:
		return "steer_left"
	case ControlSteerRight:
		return "steer_right"
	case ControlHandbrake:
		return "handbrake"
	default:
		return "unknown"
	}
}

// controlByName resolves the names used in config files back to controls.
var controlByName = map[string]Control{
	"accelerate":  ControlAccelerate,
	"brake":       ControlBrake,
	"steer_left":  ControlSteerLeft,
	"steer_right": ControlSteerRight,
	"handbrake":   ControlHandbrake,
}

// Bindings maps normalized key names ("w", "arrowup", "space") to controls.
type Bindings map[string]Control

// DefaultBindings returns the stock WASD + arrow key layout.
func DefaultBindings() Bindings {
	return Bindings{
		"w":          ControlAccelerate,
		"arrowup":    ControlAccelerate,
		"s":          ControlBrake,
		"arrowdown":  ControlBrake,
		"a":          ControlSteerLeft,
		"arrowleft":  ControlSteerLeft,
		"d":          ControlSteerRight,
		"arrowright": ControlSteerRight,
		"space":      ControlHandbrake,
	}
}

// ParseBindings converts a key -> control-name map (as read from config) into
// Bindings. Key names are case-insensitive. A misspelled control name is a
// config error and is reported rather than silently dropped.
func ParseBindings(raw map[string]string) (Bindings, error) {
	if len(raw) == 0 {
		return DefaultBindings(), nil
	}
	b := make(Bindings, len(raw))
	for key, name := range raw {
		control, ok := controlByName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("binding %q: unknown control %q", key, name)
		}
		b[NormalizeKey(key)] = control
	}
	return b, nil
}

// NormalizeKey lowercases a key name and folds the browser event names for
// space and the arrow keys onto their short forms.
func NormalizeKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	switch k {
	case " ", "spacebar":
		return "space"
	case "up", "down", "left", "right":
		return "arrow" + k
	default:
		return k
	}
}

// Adapter collects host key events into a control snapshot for the sim tick.
// Keys are level-triggered: a control is active from key-down to key-up.
// Writers (host callbacks) and the reader (sim loop) run on different
// goroutines, so each flag is atomic and Snapshot never blocks.
type Adapter struct {
	logger   *slog.Logger
	bindings Bindings

	accelerate atomic.Bool
	brake      atomic.Bool
	steerLeft  atomic.Bool
	steerRight atomic.Bool
	handbrake  atomic.Bool
}

// NewAdapter creates an adapter with the given bindings. Nil bindings fall
// back to DefaultBindings.
func NewAdapter(logger *slog.Logger, bindings Bindings) *Adapter {
	if bindings == nil {
		bindings = DefaultBindings()
	}
	return &Adapter{
		logger:   logger,
		bindings: bindings,
	}
}

// SetControl raises or lowers one control directly.
func (a *Adapter) SetControl(c Control, down bool) {
	switch c {
	case ControlAccelerate:
		a.accelerate.Store(down)
	case ControlBrake:
		a.brake.Store(down)
	case ControlSteerLeft:
		a.steerLeft.Store(down)
	case ControlSteerRight:
		a.steerRight.Store(down)
	case ControlHandbrake:
		a.handbrake.Store(down)
	}
}

// SetKey resolves a key name through the bindings and updates the mapped
// control. Unbound keys are ignored; the host forwards every keystroke, so
// this is the normal case, logged at debug only.
func (a *Adapter) SetKey(key string, down bool) bool {
	control, ok := a.bindings[NormalizeKey(key)]
	if !ok {
		a.logger.Debug("Ignoring unbound key", "key", key)
		return false
	}
	a.SetControl(control, down)
	return true
}

// Snapshot returns the current control state. Each flag is read atomically;
// the snapshot as a whole is not a single atomic read, which is fine for
// boolean inputs sampled once per tick.
func (a *Adapter) Snapshot() core.ControlInput {
	return core.ControlInput{
		Accelerate: a.accelerate.Load(),
		Brake:      a.brake.Load(),
		SteerLeft:  a.steerLeft.Load(),
		SteerRight: a.steerRight.Load(),
		Handbrake:  a.handbrake.Load(),
	}
}

// Reset lowers every control, e.g. when the host window loses focus and
// key-up events would otherwise be lost.
func (a *Adapter) Reset() {
	a.accelerate.Store(false)
	a.brake.Store(false)
	a.steerLeft.Store(false)
	a.steerRight.Store(false)
	a.handbrake.Store(false)
}
