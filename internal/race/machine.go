package race

import (
	"time"

	"github.com/driftline/engine/pkg/core"
)

// countdownTicks is the number of external 1 Hz ticks consumed before the
// race goes green.
const countdownTicks = 3

// Events receives machine notifications. Handlers run synchronously on the
// sim goroutine and must not block.
type Events interface {
	PhaseChanged(core.PhaseChangeEvent)
	CountdownTicked(core.CountdownEvent)
	ClockTicked(core.TimeTickEvent)
	RecordBroken(core.RecordEvent)
}

// NopEvents discards all notifications.
type NopEvents struct{}

func (NopEvents) PhaseChanged(core.PhaseChangeEvent) {}
func (NopEvents) CountdownTicked(core.CountdownEvent) {}
func (NopEvents) ClockTicked(core.TimeTickEvent) {}
func (NopEvents) RecordBroken(core.RecordEvent) {}

// BestTimes is the lower-is-better store consulted when a run is won.
// Implementations must be non-blocking; the warm cache in internal/cache
// satisfies this.
type BestTimes interface {
	Get(track string) (float64, bool)
	Put(track string, elapsed float64)
}

// Machine sequences the race lifecycle:
//
//	Loading -> Countdown -> Racing -> Won | Lost
//
// Won may continue into FreeRoam or restart; Lost only restarts. The machine
// owns no timers: the countdown is ticked externally at 1 Hz and the race
// clock advances by the frame dts it is handed. One goroutine owns it.
type Machine struct {
	events Events
	best   BestTimes

	phase     core.Phase
	track     string
	remaining int
	elapsed   float64
	lastWhole int
	reason    core.LossReason

	// Now stamps outgoing events; tests pin it.
	Now func() time.Time
}

// New returns a machine in PhaseLoading. Either argument may be nil.
func New(events Events, best BestTimes) *Machine {
	if events == nil {
		events = NopEvents{}
	}
	return &Machine{
		events: events,
		best:   best,
		phase:  core.PhaseLoading,
		Now:    time.Now,
	}
}

// Phase returns the current lifecycle phase.
func (m *Machine) Phase() core.Phase { return m.phase }

// Elapsed returns the race clock in seconds.
func (m *Machine) Elapsed() float64 { return m.elapsed }

// Reason returns the loss tag for the current or most recent loss.
func (m *Machine) Reason() core.LossReason { return m.reason }

// Track returns the course the machine is bound to.
func (m *Machine) Track() string { return m.track }

// SetTrack binds the machine to a course and returns it to PhaseLoading.
func (m *Machine) SetTrack(name string) {
	m.track = name
	m.remaining = 0
	m.elapsed = 0
	m.lastWhole = 0
	m.reason = core.LossNone
	m.setPhase(core.PhaseLoading)
}

// BeginCountdown starts the pre-race countdown. The host calls this once
// assets are ready; legal from Loading only (restarts go through Restart).
func (m *Machine) BeginCountdown() {
	if m.phase != core.PhaseLoading {
		return
	}
	m.beginCountdown()
}

func (m *Machine) beginCountdown() {
	m.remaining = countdownTicks
	m.elapsed = 0
	m.lastWhole = 0
	m.reason = core.LossNone
	m.setPhase(core.PhaseCountdown)
	m.events.CountdownTicked(core.CountdownEvent{Time: m.Now(), Remaining: m.remaining})
}

// CountdownTick consumes one external 1 Hz tick. The third tick goes green;
// extra ticks in any other phase are ignored.
func (m *Machine) CountdownTick() {
	if m.phase != core.PhaseCountdown {
		return
	}
	m.remaining--
	if m.remaining > 0 {
		m.events.CountdownTicked(core.CountdownEvent{Time: m.Now(), Remaining: m.remaining})
		return
	}
	m.setPhase(core.PhaseRacing)
}

// Advance adds one frame of race clock. Only the Racing phase keeps time;
// whole-second crossings emit a clock tick for the display layer.
func (m *Machine) Advance(dt float64) {
	if m.phase != core.PhaseRacing || dt <= 0 {
		return
	}
	m.elapsed += dt
	if whole := int(m.elapsed); whole > m.lastWhole {
		m.lastWhole = whole
		m.events.ClockTicked(core.TimeTickEvent{Time: m.Now(), Elapsed: m.elapsed, Seconds: whole})
	}
}

// Apply consumes a checker verdict. Verdicts outside the Racing phase are
// ignored, which is what suspends checking in free roam.
func (m *Machine) Apply(v core.Verdict) {
	if m.phase != core.PhaseRacing {
		return
	}
	switch v {
	case core.VerdictFinished:
		m.win()
	case core.VerdictCrashed:
		m.reason = core.LossCrash
		m.setPhase(core.PhaseLost)
	case core.VerdictOutOfBounds:
		m.reason = core.LossOutOfBounds
		m.setPhase(core.PhaseLost)
	}
}

func (m *Machine) win() {
	m.setPhase(core.PhaseWon)
	if m.best == nil {
		return
	}
	prev, ok := m.best.Get(m.track)
	if ok && m.elapsed >= prev {
		return
	}
	m.best.Put(m.track, m.elapsed)
	m.events.RecordBroken(core.RecordEvent{
		Time:     m.Now(),
		Track:    m.track,
		Elapsed:  m.elapsed,
		Previous: prev,
	})
}

// EnterFreeRoam switches a won race into free driving. Legal from Won only.
func (m *Machine) EnterFreeRoam() {
	if m.phase != core.PhaseWon {
		return
	}
	m.setPhase(core.PhaseFreeRoam)
}

// Restart returns to the countdown from any terminal phase. Restarts are
// unlimited.
func (m *Machine) Restart() {
	switch m.phase {
	case core.PhaseWon, core.PhaseLost, core.PhaseFreeRoam:
		m.beginCountdown()
	}
}

// Result summarizes the finished run for the recording layer. Valid in Won
// and Lost.
func (m *Machine) Result() core.RunResult {
	return core.RunResult{
		Outcome: m.phase,
		Reason:  m.reason,
		Elapsed: m.elapsed,
		EndedAt: m.Now(),
	}
}

func (m *Machine) setPhase(to core.Phase) {
	if m.phase == to {
		return
	}
	from := m.phase
	m.phase = to
	ev := core.PhaseChangeEvent{
		Time:    m.Now(),
		From:    from,
		To:      to,
		Elapsed: m.elapsed,
	}
	if to == core.PhaseLost {
		ev.Reason = m.reason
	}
	m.events.PhaseChanged(ev)
}
