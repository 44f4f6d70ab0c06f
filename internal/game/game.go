// internal/game/game.go
package game

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/driftline/engine/internal/cache"
	"github.com/driftline/engine/internal/camera"
	"github.com/driftline/engine/internal/channel"
	"github.com/driftline/engine/internal/input"
	"github.com/driftline/engine/internal/race"
	"github.com/driftline/engine/internal/session"
	"github.com/driftline/engine/internal/sim"
	"github.com/driftline/engine/internal/track"
	"github.com/driftline/engine/internal/worker"
	"github.com/driftline/engine/pkg/core"
)

// outboundBuffer bounds the lifecycle event channel. Events are drained every
// tick, so the buffer only has to absorb one tick's worth.
const outboundBuffer = 256

// Event is one lifecycle notification bound for the host process. Function is
// the host callback selector, Data the payload the host deserializes.
type Event struct {
	Function string
	Data     any
}

// Host callback selectors for lifecycle events.
const (
	EventPhase     = ":PHASE:"
	EventCountdown = ":COUNTDOWN:"
	EventClock     = ":CLOCK:"
	EventRecord    = ":RECORD:"
)

// Dependencies carries everything a Game composes. Queues and Session are
// required; the rest fall back to defaults when zero.
type Dependencies struct {
	Logger    *slog.Logger
	Session   *session.Context
	Queues    *worker.Queues
	BestTimes race.BestTimes

	// Emit receives lifecycle events drained at the end of each Tick. Nil
	// drops them.
	Emit func(Event)

	// FrameCounter, when set, is bumped once per tick so the monitor can
	// derive the effective tick rate.
	FrameCounter *cache.SafeCounter

	Tuning   core.VehicleTuning
	Geometry core.VehicleGeometry
	Camera   core.CameraTuning

	// Bindings maps host key names to controls; nil selects the stock
	// WASD + arrow layout.
	Bindings input.Bindings

	// TrackDir is where course files live; LoadTrack resolves names against
	// it. The built-in demo course needs no directory.
	TrackDir string

	// Telemetry sampling. SampleEvery n means every n-th frame is recorded;
	// zero disables recording entirely.
	SampleEvery int
}

// Game owns the per-frame simulation loop. It composes the input adapter, the
// vehicle integrator, the track checker, the race machine and the chase
// camera, and is the single writer of all of them: every method must be
// called from the one goroutine that drives ticks.
type Game struct {
	logger  *slog.Logger
	session *session.Context
	queues  *worker.Queues

	input   *input.Adapter
	sim     *sim.Simulator
	checker *track.Checker
	machine *race.Machine
	follow  *camera.Follower

	events       channel.Channel[Event]
	emit         func(Event)
	frameCounter *cache.SafeCounter

	geometry core.VehicleGeometry
	trackDir string

	course *core.Track
	state  core.VehicleState
	pose   core.Pose
	rig    camera.Rig

	frame       uint
	simTime     float64
	lastVerdict core.Verdict

	sampleEvery int
}

// New assembles a Game from its dependencies. The race machine is wired to an
// internal collector that mirrors lifecycle events into the run event queue
// and the outbound channel.
func New(deps Dependencies) *Game {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tuning := deps.Tuning
	if tuning == (core.VehicleTuning{}) {
		tuning = core.DefaultVehicleTuning()
	}
	geometry := deps.Geometry
	if geometry == (core.VehicleGeometry{}) {
		geometry = core.DefaultVehicleGeometry()
	}
	camTuning := deps.Camera
	if camTuning == (core.CameraTuning{}) {
		camTuning = core.DefaultCameraTuning()
	}
	bindings := deps.Bindings
	if bindings == nil {
		bindings = input.DefaultBindings()
	}

	g := &Game{
		logger:       logger,
		session:      deps.Session,
		queues:       deps.Queues,
		input:        input.NewAdapter(logger, bindings),
		sim:          sim.New(tuning),
		checker:      track.NewChecker(geometry),
		follow:       camera.New(camTuning),
		events:       channel.NewBuffered[Event](outboundBuffer),
		emit:         deps.Emit,
		frameCounter: deps.FrameCounter,
		geometry:     geometry,
		trackDir:     deps.TrackDir,
		sampleEvery:  deps.SampleEvery,
	}

	g.machine = race.New(&collector{game: g}, deps.BestTimes)
	return g
}

// LoadTrack resolves a course by name, hands it to the race machine and
// resets the vehicle to the spawn pose. The name "demo" (or an empty name)
// selects the built-in course, "freeroam" the open practice field; anything
// else is read from TrackDir as <name>.json.
func (g *Game) LoadTrack(name string) error {
	var (
		course *core.Track
		err    error
	)
	switch name {
	case "", "demo":
		course = track.Demo()
	case "freeroam":
		course = track.FreeRoam()
	default:
		course, err = track.FromFile(filepath.Join(g.trackDir, name+".json"))
		if err != nil {
			return fmt.Errorf("loading track %q: %w", name, err)
		}
	}

	g.installCourse(course)
	return nil
}

// LoadTrackJSON installs a course from an inline JSON definition.
func (g *Game) LoadTrackJSON(data []byte) error {
	course, err := track.FromJSON(data)
	if err != nil {
		return fmt.Errorf("loading inline track: %w", err)
	}
	g.installCourse(course)
	return nil
}

func (g *Game) installCourse(course *core.Track) {
	g.course = course
	g.machine.SetTrack(course.Name)
	if g.session != nil {
		g.session.SetTrack(course.Name)
		g.session.SetPhase(core.PhaseLoading)
	}
	g.resetVehicle()
	g.frame = 0
	g.simTime = 0
	g.logger.Info("track loaded", "track", course.Name, "segments", len(course.Segments), "obstacles", len(course.Obstacles))
}

// BeginCountdown arms the pre-race countdown. Only valid while loading; the
// machine ignores it otherwise.
func (g *Game) BeginCountdown() {
	g.machine.BeginCountdown()
	g.drainEvents()
}

// CountdownTick advances the countdown by one step. The host calls this at
// 1 Hz; the third tick starts the race.
func (g *Game) CountdownTick() {
	g.machine.CountdownTick()
	g.drainEvents()
}

// Restart rewinds a finished run back to the countdown and puts the vehicle
// back on the spawn pose. Ignored while a run is live so the vehicle and
// the machine's clock never diverge.
func (g *Game) Restart() {
	switch g.machine.Phase() {
	case core.PhaseWon, core.PhaseLost, core.PhaseFreeRoam:
	default:
		return
	}
	g.machine.Restart()
	g.resetVehicle()
	g.input.Reset()
	g.frame = 0
	g.simTime = 0
	g.drainEvents()
}

// EnterFreeRoam switches a won run into free driving. Verdict checks are
// suspended until the next restart.
func (g *Game) EnterFreeRoam() {
	g.machine.EnterFreeRoam()
	g.drainEvents()
}

// Tick advances the whole engine by dt seconds: snapshot input, integrate the
// vehicle, judge the pose while racing, advance the race clock, pursue with
// the camera, then record telemetry and flush lifecycle events.
func (g *Game) Tick(dt float32) {
	dt = sim.ClampDT(dt)

	in := g.input.Snapshot()
	g.sim.Step(&g.state, &g.pose, in, dt)

	g.lastVerdict = core.VerdictOngoing
	if g.machine.Phase() == core.PhaseRacing && g.course != nil {
		g.lastVerdict = g.checker.Check(g.pose, g.course)
		if g.lastVerdict != core.VerdictOngoing {
			g.machine.Apply(g.lastVerdict)
		}
	}

	g.machine.Advance(float64(dt))
	g.follow.Update(&g.rig, g.pose, g.state, dt)

	g.frame++
	g.simTime += float64(dt)
	if g.frameCounter != nil {
		g.frameCounter.Inc()
	}

	g.recordSample()
	g.drainEvents()
}

// SetKey maps a raw host key event onto a control. Returns false for keys
// outside the binding table.
func (g *Game) SetKey(key string, down bool) bool {
	return g.input.SetKey(key, down)
}

// SyncKeys replaces the held-key set wholesale. The host sends the full list
// of currently held keys after focus changes so stuck controls clear.
func (g *Game) SyncKeys(keys []string) {
	g.input.Reset()
	for _, k := range keys {
		g.input.SetKey(k, true)
	}
}

// ResetInput releases every control.
func (g *Game) ResetInput() {
	g.input.Reset()
}

// Phase returns the current race phase.
func (g *Game) Phase() core.Phase { return g.machine.Phase() }

// Elapsed returns the race clock in seconds.
func (g *Game) Elapsed() float64 { return g.machine.Elapsed() }

// Frame returns the number of ticks since the last track load or restart.
func (g *Game) Frame() uint { return g.frame }

// Vehicle returns a copy of the vehicle state.
func (g *Game) Vehicle() core.VehicleState { return g.state }

// Pose returns a copy of the vehicle pose.
func (g *Game) Pose() core.Pose { return g.pose }

// Camera returns a copy of the chase camera rig.
func (g *Game) Camera() camera.Rig { return g.rig }

// Track returns the loaded course, or nil before the first load. Callers must
// not mutate it.
func (g *Game) Track() *core.Track { return g.course }

// Verdict returns the checker outcome of the last tick.
func (g *Game) Verdict() core.Verdict { return g.lastVerdict }

// Result snapshots the outcome of the current or finished run.
func (g *Game) Result() core.RunResult { return g.machine.Result() }

// resetVehicle puts the vehicle on the spawn pose and snaps the camera to its
// ideal position so the first rendered frame does not sweep across the map.
func (g *Game) resetVehicle() {
	spawn := core.Vec3{}
	if g.course != nil {
		spawn = core.Vec3{g.course.SpawnX, g.geometry.GroundLevel(), g.course.SpawnZ}
	}
	g.sim.Reset(&g.state, &g.pose, spawn)
	g.follow.Update(&g.rig, g.pose, g.state, 0)
	g.lastVerdict = core.VerdictOngoing
}

// recordSample copies the live vehicle state into the telemetry queue. The
// queue hands batches to the storage worker, so the sample must never alias
// live state.
func (g *Game) recordSample() {
	if g.sampleEvery <= 0 || g.queues == nil || g.course == nil {
		return
	}
	if g.frame%uint(g.sampleEvery) != 0 {
		return
	}
	var runID uint
	if g.session != nil {
		runID = g.session.GetRunID()
	}
	g.queues.Samples.Push(core.TelemetrySample{
		RunID:       runID,
		Frame:       g.frame,
		SimTime:     g.simTime,
		Position:    g.pose.Position,
		Yaw:         g.pose.Yaw,
		Velocity:    g.state.Velocity,
		SteerAngle:  g.state.SteerAngle,
		IsDrifting:  g.state.IsDrifting,
		DriftFactor: g.state.DriftFactor,
		Verdict:     g.lastVerdict,
	})
}

// drainEvents forwards buffered lifecycle events to the outbound sink.
func (g *Game) drainEvents() {
	for {
		select {
		case ev := <-g.events.Receive():
			if g.emit != nil {
				g.emit(ev)
			}
		default:
			return
		}
	}
}

// pushEvent records a lifecycle event both as a run event for storage and as
// an outbound host notification.
func (g *Game) pushEvent(function, name string, data map[string]any, payload any) {
	if g.queues != nil {
		var runID uint
		if g.session != nil {
			runID = g.session.GetRunID()
		}
		g.queues.Events.Push(core.RunEvent{
			RunID:   runID,
			Frame:   g.frame,
			SimTime: g.simTime,
			Name:    name,
			Data:    data,
		})
	}
	g.events.Send(Event{Function: function, Data: payload})
}

// collector adapts race machine notifications into run events and outbound
// host callbacks. It shares the game's goroutine.
type collector struct {
	game *Game
}

func (c *collector) PhaseChanged(ev core.PhaseChangeEvent) {
	g := c.game
	if g.session != nil {
		g.session.SetPhase(ev.To)
	}
	g.logger.Info("phase change", "from", ev.From.String(), "to", ev.To.String(), "reason", ev.Reason.String(), "elapsed", ev.Elapsed)
	g.pushEvent(EventPhase, "phase_change", map[string]any{
		"from":    ev.From.String(),
		"to":      ev.To.String(),
		"reason":  ev.Reason.String(),
		"elapsed": ev.Elapsed,
	}, ev)
}

func (c *collector) CountdownTicked(ev core.CountdownEvent) {
	c.game.pushEvent(EventCountdown, "countdown", map[string]any{
		"remaining": ev.Remaining,
	}, ev)
}

func (c *collector) ClockTicked(ev core.TimeTickEvent) {
	c.game.pushEvent(EventClock, "clock", map[string]any{
		"elapsed": ev.Elapsed,
		"seconds": ev.Seconds,
	}, ev)
}

func (c *collector) RecordBroken(ev core.RecordEvent) {
	g := c.game
	g.logger.Info("record broken", "track", ev.Track, "elapsed", ev.Elapsed, "previous", ev.Previous)
	g.pushEvent(EventRecord, "record", map[string]any{
		"track":    ev.Track,
		"elapsed":  ev.Elapsed,
		"previous": ev.Previous,
	}, ev)
}
