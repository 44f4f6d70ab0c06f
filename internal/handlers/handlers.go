// internal/handlers/handlers.go
package handlers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/driftline/engine/internal/api"
	"github.com/driftline/engine/internal/cache"
	"github.com/driftline/engine/internal/game"
	"github.com/driftline/engine/internal/logging"
	"github.com/driftline/engine/internal/parser"
	"github.com/driftline/engine/internal/session"
	"github.com/driftline/engine/internal/storage"
	"github.com/driftline/engine/internal/util"
	"github.com/driftline/engine/pkg/core"
	"github.com/driftline/engine/pkg/hostbridge"
)

// Dependencies holds everything the command handlers need
type Dependencies struct {
	Game       *game.Game
	Session    *session.Context
	BestTimes  *cache.BestTimeCache
	LogManager *logging.SlogManager
	Parser     *parser.Parser
	APIClient  *api.Client

	ExtensionName string
	EngineVersion string

	// GhostDir is where won-run ghost exports are staged before upload.
	GhostDir string
}

// Service provides handler methods for host commands. All command methods run
// on the host's call thread; the game they drive is single-threaded, so the
// host must not issue commands concurrently.
type Service struct {
	deps         Dependencies
	writeLogFunc func(functionName, data, level string)
	backend      storage.Backend

	hostVersion string
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	s := &Service{
		deps: deps,
	}
	// Default writeLog function uses the logging manager
	s.writeLogFunc = func(functionName, data, level string) {
		if deps.LogManager != nil {
			deps.LogManager.WriteLog(functionName, data, level)
		}
	}
	return s
}

// SetBackend sets the storage backend for run lifecycle handling
func (s *Service) SetBackend(b storage.Backend) {
	s.backend = b
}

// SetHostVersion records the host-reported version sent during init.
func (s *Service) SetHostVersion(v string) {
	s.hostVersion = util.CleanArg(v)
}

// HostVersion returns the host-reported version, or empty before init.
func (s *Service) HostVersion() string {
	return s.hostVersion
}

func (s *Service) writeLog(functionName, data, level string) {
	s.writeLogFunc(functionName, data, level)
}

// LoadTrack loads a course and resets the vehicle to its spawn. The course
// argument is a name or an inline JSON definition; no argument selects the
// built-in demo course. An optional second argument arms the countdown
// immediately after the load.
func (s *Service) LoadTrack(data []string) error {
	functionName := ":TRACK:LOAD:"

	autoStart := false
	if len(data) == 0 || util.CleanArg(data[0]) == "" {
		if err := s.deps.Game.LoadTrack(""); err != nil {
			s.writeLog(functionName, fmt.Sprintf(`Error loading track: %v`, err), "ERROR")
			return err
		}
	} else {
		req, err := s.deps.Parser.ParseTrackRequest(data)
		if err != nil {
			s.writeLog(functionName, fmt.Sprintf(`Error parsing track request: %v`, err), "ERROR")
			return err
		}
		if len(req.Inline) > 0 {
			err = s.deps.Game.LoadTrackJSON(req.Inline)
		} else {
			err = s.deps.Game.LoadTrack(req.Course)
		}
		if err != nil {
			s.writeLog(functionName, fmt.Sprintf(`Error loading track: %v`, err), "ERROR")
			return err
		}
		autoStart = req.AutoStart
	}
	loaded := s.deps.Game.Track().Name

	// Warm the best-time cache so the machine's record check stays in memory
	// during the race.
	if _, ok := s.deps.BestTimes.Get(loaded); !ok && s.backend != nil {
		if elapsed, ok, err := s.backend.BestTime(loaded); err != nil {
			s.writeLog(functionName, fmt.Sprintf(`Error warming best time: %v`, err), "WARN")
		} else if ok {
			s.deps.BestTimes.Put(loaded, elapsed)
		}
	}

	s.writeLog(functionName, fmt.Sprintf(`Track loaded: %s`, loaded), "INFO")

	if autoStart {
		return s.StartRace(nil)
	}
	return nil
}

// StartRace opens a storage run and arms the countdown. data[0] is an
// optional tag the host attaches to the run.
func (s *Service) StartRace(data []string) error {
	functionName := ":RACE:START:"

	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	course := s.deps.Game.Track()
	if course == nil {
		err := fmt.Errorf("no track loaded")
		s.writeLog(functionName, err.Error(), "ERROR")
		return err
	}
	if s.deps.Game.Phase() != core.PhaseLoading {
		err := fmt.Errorf("race already started, phase is %s", s.deps.Game.Phase())
		s.writeLog(functionName, err.Error(), "ERROR")
		return err
	}

	tag := ""
	if len(data) > 0 {
		tag = data[0]
	}

	if err := s.openRun(functionName, course, tag); err != nil {
		return err
	}

	s.deps.Game.BeginCountdown()
	return nil
}

// CountdownTick advances the pre-race countdown. The host calls this at 1 Hz.
func (s *Service) CountdownTick(data []string) error {
	s.deps.Game.CountdownTick()
	return nil
}

// RestartRace rewinds a finished run back to the countdown under a fresh
// storage run.
func (s *Service) RestartRace(data []string) error {
	functionName := ":RACE:RESTART:"

	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	course := s.deps.Game.Track()
	if course == nil {
		err := fmt.Errorf("no track loaded")
		s.writeLog(functionName, err.Error(), "ERROR")
		return err
	}

	switch s.deps.Game.Phase() {
	case core.PhaseWon, core.PhaseLost, core.PhaseFreeRoam:
	default:
		err := fmt.Errorf("restart only follows a finished run, phase is %s", s.deps.Game.Phase())
		s.writeLog(functionName, err.Error(), "ERROR")
		return err
	}

	tag := ""
	if len(data) > 0 {
		tag = data[0]
	}

	if err := s.openRun(functionName, course, tag); err != nil {
		return err
	}

	s.deps.Game.Restart()
	return nil
}

// EnterFreeRoam switches a won run into free driving
func (s *Service) EnterFreeRoam(data []string) error {
	functionName := ":FREEROAM:"

	if s.deps.Game.Phase() != core.PhaseWon {
		err := fmt.Errorf("free roam only follows a win, phase is %s", s.deps.Game.Phase())
		s.writeLog(functionName, err.Error(), "ERROR")
		return err
	}
	s.deps.Game.EnterFreeRoam()
	return nil
}

// SetInput applies one key transition. data is [key, state] where state is
// down/up in any of the forms the hosts send.
func (s *Service) SetInput(data []string) error {
	functionName := ":INPUT:"

	key, down, err := s.deps.Parser.ParseInput(data)
	if err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error parsing input: %v`, err), "ERROR")
		return err
	}

	// Unknown keys are not an error: the host forwards its whole keyboard.
	s.deps.Game.SetKey(key, down)
	return nil
}

// SyncInput replaces the held-key set wholesale. The host sends the full list
// of currently held keys after a focus change so stuck controls clear. Keys
// arrive either as one JSON array argument or as one key per argument.
func (s *Service) SyncInput(data []string) error {
	functionName := ":INPUT:SYNC:"

	if len(data) == 1 && strings.HasPrefix(strings.TrimSpace(util.CleanArg(data[0])), "[") {
		keys, err := s.deps.Parser.ParseKeyList(data)
		if err != nil {
			s.writeLog(functionName, fmt.Sprintf(`Error parsing key list: %v`, err), "ERROR")
			return err
		}
		s.deps.Game.SyncKeys(keys)
		return nil
	}

	keys := make([]string, 0, len(data))
	for _, v := range data {
		if k := util.CleanArg(v); k != "" {
			keys = append(keys, k)
		}
	}
	s.deps.Game.SyncKeys(keys)
	return nil
}

// Tick advances the engine by one frame. data[0] is the frame delta in
// seconds; the integrator clamps it.
func (s *Service) Tick(data []string) error {
	functionName := ":TICK:"

	dt, err := s.deps.Parser.ParseTick(data)
	if err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error parsing tick: %v`, err), "ERROR")
		return err
	}

	s.deps.Game.Tick(dt)
	return nil
}

// stateSnapshot is the :STATE: response payload. The host deserializes it
// every rendered frame, so the field set is kept flat and stable.
type stateSnapshot struct {
	Phase   string  `json:"phase"`
	Track   string  `json:"track"`
	Frame   uint    `json:"frame"`
	Elapsed float64 `json:"elapsed"`
	Verdict string  `json:"verdict"`

	Position [3]float32 `json:"position"`
	Yaw      float32    `json:"yaw"`
	Velocity float32    `json:"velocity"`

	IsDrifting  bool    `json:"isDrifting"`
	DriftFactor float32 `json:"driftFactor"`

	CameraPosition [3]float32 `json:"cameraPosition"`
	CameraTarget   [3]float32 `json:"cameraTarget"`
}

// State renders the current vehicle, camera and race state as JSON
func (s *Service) State(data []string) (string, error) {
	functionName := ":STATE:"

	g := s.deps.Game
	pose := g.Pose()
	vehicle := g.Vehicle()
	rig := g.Camera()

	track := ""
	if g.Track() != nil {
		track = g.Track().Name
	}

	snap := stateSnapshot{
		Phase:          g.Phase().String(),
		Track:          track,
		Frame:          g.Frame(),
		Elapsed:        g.Elapsed(),
		Verdict:        g.Verdict().String(),
		Position:       pose.Position,
		Yaw:            pose.Yaw,
		Velocity:       vehicle.Velocity,
		IsDrifting:     vehicle.IsDrifting,
		DriftFactor:    vehicle.DriftFactor,
		CameraPosition: rig.Position,
		CameraTarget:   rig.Target,
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error marshalling state: %v`, err), "ERROR")
		return "", err
	}
	return string(payload), nil
}

// bestTimeResponse is the :BEST: response payload
type bestTimeResponse struct {
	Track     string  `json:"track"`
	Elapsed   float64 `json:"elapsed"`
	Formatted string  `json:"formatted"`
	Found     bool    `json:"found"`
}

// BestTime answers a best-time query. data[0] names the track; an empty
// argument list means the currently loaded track. The warm cache answers
// first, the backend on a miss.
func (s *Service) BestTime(data []string) (string, error) {
	functionName := ":BEST:"

	track, err := s.deps.Parser.ParseBestQuery(data)
	if err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error parsing best query: %v`, err), "ERROR")
		return "", err
	}
	if track == "" {
		if s.deps.Game.Track() == nil {
			err := fmt.Errorf("no track loaded and none named")
			s.writeLog(functionName, err.Error(), "ERROR")
			return "", err
		}
		track = s.deps.Game.Track().Name
	}

	resp := bestTimeResponse{Track: track}
	if elapsed, ok := s.deps.BestTimes.Get(track); ok {
		resp.Elapsed = elapsed
		resp.Found = true
	} else if s.backend != nil {
		elapsed, ok, err := s.backend.BestTime(track)
		if err != nil {
			s.writeLog(functionName, fmt.Sprintf(`Error querying best time: %v`, err), "ERROR")
			return "", err
		}
		if ok {
			s.deps.BestTimes.Put(track, elapsed)
			resp.Elapsed = elapsed
			resp.Found = true
		}
	}
	if resp.Found {
		resp.Formatted = util.FormatLapTime(resp.Elapsed)
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// Ghost returns the recorded trajectory for a run as JSON. data[0] optionally
// names a run id; with no argument the current session's run is exported.
func (s *Service) Ghost(data []string) (string, error) {
	functionName := ":GHOST:"

	if s.backend == nil {
		err := fmt.Errorf("no storage backend configured")
		s.writeLog(functionName, err.Error(), "ERROR")
		return "", err
	}

	runID := s.deps.Session.GetRunID()
	if len(data) > 0 && util.CleanArg(data[0]) != "" {
		id, err := s.deps.Parser.ParseRunID(data)
		if err != nil {
			s.writeLog(functionName, fmt.Sprintf(`Error parsing run id: %v`, err), "ERROR")
			return "", err
		}
		runID = id
	}
	if runID == 0 {
		err := fmt.Errorf("no run to export")
		s.writeLog(functionName, err.Error(), "ERROR")
		return "", err
	}

	payload, err := s.backend.ExportGhost(runID)
	if err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error exporting ghost for run %d: %v`, runID, err), "ERROR")
		return "", err
	}
	return string(payload), nil
}

// HandleGameEvent mirrors a lifecycle event out to the host and applies its
// storage side effects. Wired as the game's event sink; runs on the tick
// thread, so anything slow goes to a goroutine.
func (s *Service) HandleGameEvent(ev game.Event) {
	switch ev.Function {
	case game.EventPhase:
		if pc, ok := ev.Data.(core.PhaseChangeEvent); ok {
			if pc.To == core.PhaseWon || pc.To == core.PhaseLost {
				s.finishRun()
			}
		}
	case game.EventRecord:
		if rec, ok := ev.Data.(core.RecordEvent); ok {
			s.persistRecord(rec)
		}
	}

	payload, err := json.Marshal(ev.Data)
	if err != nil {
		s.writeLog(ev.Function, fmt.Sprintf(`Error marshalling event: %v`, err), "ERROR")
		return
	}
	hostbridge.WriteCallback(s.deps.ExtensionName, ev.Function, string(payload))
}

// openRun starts a storage run and stamps its ID into the session.
func (s *Service) openRun(functionName string, course *core.Track, tag string) error {
	if s.backend == nil {
		s.deps.Session.SetRunID(0)
		return nil
	}

	meta := &core.RunMeta{
		Track:         course.Name,
		EngineVersion: s.deps.EngineVersion,
		HostVersion:   s.hostVersion,
		Tag:           tag,
	}
	runID, err := s.backend.StartRun(meta, course)
	if err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error starting run: %v`, err), "ERROR")
		return err
	}
	s.deps.Session.SetRunID(runID)
	s.writeLog(functionName, fmt.Sprintf(`Run %d started on %s`, runID, course.Name), "INFO")
	return nil
}

// finishRun closes the active storage run with the machine's result and, on a
// win, stages a ghost export for upload.
func (s *Service) finishRun() {
	functionName := ":RACE:END:"

	if s.backend == nil {
		return
	}
	runID := s.deps.Session.GetRunID()
	if runID == 0 {
		return
	}

	result := s.deps.Game.Result()
	if err := s.backend.EndRun(runID, result); err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error ending run %d: %v`, runID, err), "ERROR")
		return
	}
	s.writeLog(functionName, fmt.Sprintf(`Run %d ended: %s in %s`, runID, result.Outcome, util.FormatLapTime(result.Elapsed)), "INFO")

	if result.Outcome == core.PhaseWon && s.deps.APIClient != nil {
		go s.uploadGhost(runID, result)
	}
}

// uploadGhost exports a won run and ships it to the leaderboard server.
func (s *Service) uploadGhost(runID uint, result core.RunResult) {
	functionName := ":GHOST:UPLOAD:"

	payload, err := s.backend.ExportGhost(runID)
	if err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error exporting ghost for run %d: %v`, runID, err), "ERROR")
		return
	}

	dir := s.deps.GhostDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("ghost_%d.json", runID))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error staging ghost file: %v`, err), "ERROR")
		return
	}

	meta := core.UploadMetadata{
		Track:   s.deps.Session.GetTrack(),
		Outcome: result.Outcome.String(),
		Elapsed: result.Elapsed,
	}
	if err := s.deps.APIClient.Upload(path, meta); err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error uploading ghost for run %d: %v`, runID, err), "ERROR")
		return
	}
	s.writeLog(functionName, fmt.Sprintf(`Ghost for run %d uploaded`, runID), "INFO")
}

// persistRecord saves a broken record to the backend and the leaderboard.
// The in-memory cache is already updated by the race machine.
func (s *Service) persistRecord(rec core.RecordEvent) {
	functionName := ":RECORD:"

	if s.backend != nil {
		if err := s.backend.SaveBestTime(rec.Track, rec.Elapsed); err != nil {
			s.writeLog(functionName, fmt.Sprintf(`Error saving best time: %v`, err), "ERROR")
		}
	}
	if s.deps.APIClient != nil {
		go func() {
			if err := s.deps.APIClient.SubmitBestTime(rec.Track, rec.Elapsed); err != nil {
				s.writeLog(functionName, fmt.Sprintf(`Error submitting best time: %v`, err), "ERROR")
			}
		}()
	}
}
