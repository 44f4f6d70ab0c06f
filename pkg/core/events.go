// pkg/core/events.go
package core

import "time"

// TelemetrySample is one frame's recorded state. Samples are value copies;
// nothing downstream holds a reference into live simulation state.
type TelemetrySample struct {
	RunID       uint
	Frame       uint
	SimTime     float64 // seconds of race clock, sum of clamped dts
	Position    Vec3
	Yaw         float32
	Velocity    float32
	SteerAngle  float32
	IsDrifting  bool
	DriftFactor float32
	Verdict     Verdict
}

// PhaseChangeEvent reports a race state machine transition.
type PhaseChangeEvent struct {
	Time    time.Time
	From    Phase
	To      Phase
	Reason  LossReason // set when To is PhaseLost
	Elapsed float64    // race clock at the transition
}

// CountdownEvent is one tick of the pre-race countdown.
type CountdownEvent struct {
	Time      time.Time
	Remaining int
}

// TimeTickEvent fires when the race clock crosses a whole second.
type TimeTickEvent struct {
	Time    time.Time
	Elapsed float64
	Seconds int
}

// RecordEvent reports a new best time for a track.
type RecordEvent struct {
	Time     time.Time
	Track    string
	Elapsed  float64
	Previous float64 // 0 when no previous best existed
}

// RunMeta identifies a run being recorded.
type RunMeta struct {
	Track         string
	StartedAt     time.Time
	EngineVersion string
	HostVersion   string
	Tag           string
}

// RunResult summarizes a finished run.
type RunResult struct {
	Outcome Phase // PhaseWon or PhaseLost
	Reason  LossReason
	Elapsed float64
	EndedAt time.Time
}

// RunEvent is a run-scoped event row recorded alongside telemetry.
type RunEvent struct {
	RunID   uint
	Frame   uint
	SimTime float64
	Name    string
	Data    map[string]any
}

// UploadMetadata describes an exported run for the leaderboard upload.
type UploadMetadata struct {
	Track   string
	Outcome string
	Elapsed float64
	Tag     string
}
