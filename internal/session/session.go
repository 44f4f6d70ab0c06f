package session

import (
	"log/slog"
	"sync"

	"github.com/driftline/engine/pkg/core"
)

// Context holds the state shared between the game loop, the command
// handlers, and the logging layer: which course is loaded, which recorded
// run is active, and what phase the race is in.
type Context struct {
	mu    sync.RWMutex
	track string
	runID uint
	phase core.Phase
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{
		track: "No track loaded",
		phase: core.PhaseLoading,
	}
}

// GetTrack returns the name of the loaded track
func (c *Context) GetTrack() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.track
}

// SetTrack sets the loaded track and clears the active run
func (c *Context) SetTrack(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.track = name
	c.runID = 0
}

// GetRunID returns the storage ID of the active run, 0 when none is recording
func (c *Context) GetRunID() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runID
}

// SetRunID sets the storage ID of the active run
func (c *Context) SetRunID(id uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runID = id
}

// GetPhase returns the current race phase
func (c *Context) GetPhase() core.Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// SetPhase sets the current race phase
func (c *Context) SetPhase(p core.Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = p
}

// Attrs returns the current state as log attributes. Passed to the logging
// layer so every record carries the track, run and phase it happened in.
func (c *Context) Attrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	attrs := []slog.Attr{
		slog.String("track", c.track),
		slog.String("phase", c.phase.String()),
	}
	if c.runID != 0 {
		attrs = append(attrs, slog.Uint64("runID", uint64(c.runID)))
	}
	return attrs
}
