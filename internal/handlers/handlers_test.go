package handlers

import (
	"encoding/json"
	"testing"

	"github.com/driftline/engine/internal/cache"
	"github.com/driftline/engine/internal/game"
	"github.com/driftline/engine/internal/parser"
	"github.com/driftline/engine/internal/session"
	"github.com/driftline/engine/internal/worker"
	"github.com/driftline/engine/pkg/core"
)

// mockBackend implements storage.Backend for testing
type mockBackend struct {
	nextRunID uint
	started   []*core.RunMeta
	ended     map[uint]core.RunResult
	bestTimes map[string]float64
	saved     map[string]float64
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		ended:     map[uint]core.RunResult{},
		bestTimes: map[string]float64{},
		saved:     map[string]float64{},
	}
}

func (b *mockBackend) Init() error  { return nil }
func (b *mockBackend) Close() error { return nil }

func (b *mockBackend) StartRun(meta *core.RunMeta, track *core.Track) (uint, error) {
	b.nextRunID++
	b.started = append(b.started, meta)
	return b.nextRunID, nil
}

func (b *mockBackend) EndRun(runID uint, result core.RunResult) error {
	b.ended[runID] = result
	return nil
}

func (b *mockBackend) WriteSamples(samples []core.TelemetrySample) error { return nil }
func (b *mockBackend) WriteEvents(events []core.RunEvent) error          { return nil }

func (b *mockBackend) BestTime(track string) (float64, bool, error) {
	v, ok := b.bestTimes[track]
	return v, ok, nil
}

func (b *mockBackend) SaveBestTime(track string, elapsed float64) error {
	b.saved[track] = elapsed
	return nil
}

func (b *mockBackend) ExportGhost(runID uint) ([]byte, error) {
	return []byte(`{"version":1}`), nil
}

func newTestService(t *testing.T) (*Service, *mockBackend) {
	t.Helper()

	sess := session.NewContext()
	best := cache.NewBestTimeCache()
	var svc *Service
	g := game.New(game.Dependencies{
		Session:     sess,
		Queues:      worker.NewQueues(),
		BestTimes:   best,
		Emit:        func(ev game.Event) { svc.HandleGameEvent(ev) },
		SampleEvery: 1,
	})
	svc = NewService(Dependencies{
		Game:          g,
		Session:       sess,
		BestTimes:     best,
		Parser:        parser.NewParser(nil),
		ExtensionName: "driftline",
		EngineVersion: "test",
	})
	backend := newMockBackend()
	svc.SetBackend(backend)
	return svc, backend
}

func startRace(t *testing.T, svc *Service) {
	t.Helper()
	if err := svc.LoadTrack([]string{`"demo"`}); err != nil {
		t.Fatalf("LoadTrack: %v", err)
	}
	if err := svc.StartRace(nil); err != nil {
		t.Fatalf("StartRace: %v", err)
	}
	for range 3 {
		if err := svc.CountdownTick(nil); err != nil {
			t.Fatalf("CountdownTick: %v", err)
		}
	}
	if got := svc.deps.Game.Phase(); got != core.PhaseRacing {
		t.Fatalf("phase after countdown = %v, want racing", got)
	}
}

// driveToWin holds full throttle down the demo course's straight racing line
// until the finish verdict lands. The chicane trees sit off the line, so the
// run always ends in a win.
func driveToWin(t *testing.T, g *game.Game) {
	t.Helper()
	g.SetKey("w", true)
	for i := 0; i < 60*60 && g.Phase() == core.PhaseRacing; i++ {
		g.Tick(1.0 / 60)
	}
	g.SetKey("w", false)
	if g.Phase() != core.PhaseWon {
		t.Fatalf("phase after driving the line = %v, want won", g.Phase())
	}
}

func TestLoadTrackCleansQuotedArg(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.LoadTrack([]string{`"demo"`}); err != nil {
		t.Fatalf("LoadTrack: %v", err)
	}
	if svc.deps.Game.Track() == nil {
		t.Fatal("no track loaded")
	}
}

func TestLoadTrackMissingCourse(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.LoadTrack([]string{"nowhere"}); err == nil {
		t.Fatal("expected error for unknown course")
	}
}

func TestLoadTrackInlineCourse(t *testing.T) {
	svc, _ := newTestService(t)
	inline := `{"name":"editor-draft","finishZ":-100,"spawn":{"z":5},"segments":[{"zStart":20,"zEnd":-120,"width":30}]}`
	if err := svc.LoadTrack([]string{inline}); err != nil {
		t.Fatalf("LoadTrack: %v", err)
	}
	if got := svc.deps.Game.Track().Name; got != "editor-draft" {
		t.Errorf("track = %q, want editor-draft", got)
	}
}

func TestLoadTrackInlineRejectsBadJSON(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.LoadTrack([]string{`{"name":`}); err == nil {
		t.Fatal("expected error for malformed inline course")
	}
}

func TestLoadTrackAutoStart(t *testing.T) {
	svc, backend := newTestService(t)
	if err := svc.LoadTrack([]string{"demo", "true"}); err != nil {
		t.Fatalf("LoadTrack: %v", err)
	}
	if svc.deps.Game.Phase() != core.PhaseCountdown {
		t.Errorf("phase = %v, want countdown after autostart", svc.deps.Game.Phase())
	}
	if len(backend.started) != 1 {
		t.Errorf("runs started = %d, want 1", len(backend.started))
	}
}

func TestStartRaceOpensRun(t *testing.T) {
	svc, backend := newTestService(t)
	if err := svc.LoadTrack([]string{"demo"}); err != nil {
		t.Fatalf("LoadTrack: %v", err)
	}
	if err := svc.StartRace([]string{`"practice"`}); err != nil {
		t.Fatalf("StartRace: %v", err)
	}
	if len(backend.started) != 1 {
		t.Fatalf("runs started = %d, want 1", len(backend.started))
	}
	if tag := backend.started[0].Tag; tag != "practice" {
		t.Errorf("run tag = %q, want practice", tag)
	}
	if svc.deps.Session.GetRunID() != 1 {
		t.Errorf("session run id = %d, want 1", svc.deps.Session.GetRunID())
	}
	if svc.deps.Game.Phase() != core.PhaseCountdown {
		t.Errorf("phase = %v, want countdown", svc.deps.Game.Phase())
	}
}

func TestStartRaceRequiresTrack(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.StartRace(nil); err == nil {
		t.Fatal("expected error without a loaded track")
	}
}

func TestStartRaceRejectsMidRace(t *testing.T) {
	svc, backend := newTestService(t)
	startRace(t, svc)
	if err := svc.StartRace(nil); err == nil {
		t.Fatal("expected error while racing")
	}
	if len(backend.started) != 1 {
		t.Errorf("runs started = %d, want 1", len(backend.started))
	}
}

func TestTickAndInputDriveVehicle(t *testing.T) {
	svc, _ := newTestService(t)
	startRace(t, svc)

	if err := svc.SetInput([]string{`"w"`, `"down"`}); err != nil {
		t.Fatalf("SetInput: %v", err)
	}
	for range 30 {
		if err := svc.Tick([]string{"0.016"}); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	if v := svc.deps.Game.Vehicle().Velocity; v <= 0 {
		t.Errorf("velocity = %v, want > 0", v)
	}
}

func TestTickRejectsMissingDT(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.Tick(nil); err == nil {
		t.Fatal("expected error for missing dt")
	}
}

func TestSetInputRejectsBadState(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.SetInput([]string{"w", "sideways"}); err == nil {
		t.Fatal("expected error for unknown key state")
	}
}

func TestSyncInputAcceptsJSONList(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.LoadTrack([]string{"demo"}); err != nil {
		t.Fatalf("LoadTrack: %v", err)
	}
	if err := svc.SetInput([]string{"w", "down"}); err != nil {
		t.Fatalf("SetInput: %v", err)
	}
	if err := svc.SyncInput([]string{`["s","a"]`}); err != nil {
		t.Fatalf("SyncInput: %v", err)
	}
	svc.deps.Game.Tick(0.016)
	// Throttle was dropped by the sync, only brake and left steer remain.
	if v := svc.deps.Game.Vehicle().Velocity; v > 0 {
		t.Errorf("velocity = %v, want <= 0 after sync dropped throttle", v)
	}
}

func TestSyncInputRejectsBadJSONList(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.SyncInput([]string{`["w"`}); err == nil {
		t.Fatal("expected error for truncated key list")
	}
}

func TestGhostExportsCurrentRun(t *testing.T) {
	svc, _ := newTestService(t)
	startRace(t, svc)

	out, err := svc.Ghost(nil)
	if err != nil {
		t.Fatalf("Ghost: %v", err)
	}
	if out != `{"version":1}` {
		t.Errorf("ghost payload = %q", out)
	}
}

func TestGhostAcceptsExplicitRunID(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Ghost([]string{`"3"`}); err != nil {
		t.Fatalf("Ghost: %v", err)
	}
	if _, err := svc.Ghost([]string{"not-a-number"}); err == nil {
		t.Fatal("expected error for bad run id")
	}
}

func TestGhostRequiresRun(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Ghost(nil); err == nil {
		t.Fatal("expected error with no run open")
	}
}

func TestStateReportsPhaseAndPose(t *testing.T) {
	svc, _ := newTestService(t)
	startRace(t, svc)

	out, err := svc.State(nil)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	var snap stateSnapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if snap.Phase != "racing" {
		t.Errorf("phase = %q, want racing", snap.Phase)
	}
	if snap.Track == "" {
		t.Error("track name missing from state")
	}
}

func TestWinEndsRunInBackend(t *testing.T) {
	svc, backend := newTestService(t)
	startRace(t, svc)
	runID := svc.deps.Session.GetRunID()

	driveToWin(t, svc.deps.Game)

	result, ok := backend.ended[runID]
	if !ok {
		t.Fatalf("run %d not ended in backend", runID)
	}
	if result.Outcome != core.PhaseWon {
		t.Errorf("outcome = %v, want won", result.Outcome)
	}
	if result.Elapsed <= 0 {
		t.Errorf("elapsed = %v, want > 0", result.Elapsed)
	}
	// First win on a fresh cache is always a record.
	if backend.saved["demo"] != result.Elapsed {
		t.Errorf("saved best = %v, want %v", backend.saved["demo"], result.Elapsed)
	}
}

func TestRestartRejectedMidRace(t *testing.T) {
	svc, backend := newTestService(t)
	startRace(t, svc)

	svc.deps.Game.SetKey("w", true)
	for range 60 {
		if err := svc.Tick([]string{"0.016667"}); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	frame := svc.deps.Game.Frame()

	if err := svc.RestartRace(nil); err == nil {
		t.Fatal("expected error restarting a live run")
	}
	if svc.deps.Game.Phase() != core.PhaseRacing {
		t.Errorf("phase after rejected restart = %v, want racing", svc.deps.Game.Phase())
	}
	if svc.deps.Game.Frame() != frame {
		t.Errorf("frame changed on rejected restart: %d -> %d", frame, svc.deps.Game.Frame())
	}
	if len(backend.started) != 1 {
		t.Errorf("runs started = %d, want 1 (no fresh run on rejection)", len(backend.started))
	}
	if svc.deps.Session.GetRunID() != 1 {
		t.Errorf("session run id = %d, want 1", svc.deps.Session.GetRunID())
	}
}

func TestRestartOpensFreshRun(t *testing.T) {
	svc, backend := newTestService(t)
	startRace(t, svc)
	driveToWin(t, svc.deps.Game)

	if err := svc.RestartRace(nil); err != nil {
		t.Fatalf("RestartRace: %v", err)
	}
	if len(backend.started) != 2 {
		t.Fatalf("runs started = %d, want 2", len(backend.started))
	}
	if svc.deps.Session.GetRunID() != 2 {
		t.Errorf("session run id = %d, want 2", svc.deps.Session.GetRunID())
	}
	if svc.deps.Game.Phase() != core.PhaseCountdown {
		t.Errorf("phase = %v, want countdown", svc.deps.Game.Phase())
	}
}

func TestFreeRoamOnlyAfterWin(t *testing.T) {
	svc, _ := newTestService(t)
	startRace(t, svc)
	if err := svc.EnterFreeRoam(nil); err == nil {
		t.Fatal("expected error entering free roam while racing")
	}
}

func TestBestTimeFromCache(t *testing.T) {
	svc, _ := newTestService(t)
	svc.deps.BestTimes.Warm(map[string]float64{"demo": 42.5})

	out, err := svc.BestTime([]string{"demo"})
	if err != nil {
		t.Fatalf("BestTime: %v", err)
	}
	var resp bestTimeResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Found || resp.Elapsed != 42.5 {
		t.Errorf("resp = %+v, want found 42.5", resp)
	}
	if resp.Formatted != "0:42.500" {
		t.Errorf("formatted = %q, want 0:42.500", resp.Formatted)
	}
}

func TestBestTimeFallsBackToBackend(t *testing.T) {
	svc, backend := newTestService(t)
	backend.bestTimes["demo"] = 31.25

	out, err := svc.BestTime([]string{"demo"})
	if err != nil {
		t.Fatalf("BestTime: %v", err)
	}
	var resp bestTimeResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Found || resp.Elapsed != 31.25 {
		t.Errorf("resp = %+v, want found 31.25", resp)
	}
	// The miss warms the cache for next time.
	if v, ok := svc.deps.BestTimes.Get("demo"); !ok || v != 31.25 {
		t.Errorf("cache after fallback = %v/%v, want 31.25/true", v, ok)
	}
}

func TestBestTimeUnknownTrack(t *testing.T) {
	svc, _ := newTestService(t)
	out, err := svc.BestTime([]string{"never-driven"})
	if err != nil {
		t.Fatalf("BestTime: %v", err)
	}
	var resp bestTimeResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Found {
		t.Error("unknown track reported found")
	}
}

func TestRecordPersistedToBackend(t *testing.T) {
	svc, backend := newTestService(t)
	svc.HandleGameEvent(game.Event{
		Function: game.EventRecord,
		Data:     core.RecordEvent{Track: "demo", Elapsed: 19.5},
	})
	if backend.saved["demo"] != 19.5 {
		t.Errorf("saved best = %v, want 19.5", backend.saved["demo"])
	}
}

func TestSetHostVersionCleansArg(t *testing.T) {
	svc, _ := newTestService(t)
	svc.SetHostVersion(`"1.4.2"`)
	if svc.HostVersion() != "1.4.2" {
		t.Errorf("host version = %q, want 1.4.2", svc.HostVersion())
	}
}
