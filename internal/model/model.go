package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Track{},
	&Run{},
	&BestTime{},
	&TelemetrySample{},
	&RunEvent{},
	&EnginePerformance{},
}

var DatabaseModelsSQLite = []interface{}{
	&Track{},
	&Run{},
	&BestTime{},
	&TelemetrySample{},
	&RunEvent{},
	&EnginePerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// EnginePerformance is the model for sim loop performance metrics
type EnginePerformance struct {
	Time                time.Time    `json:"time" gorm:"type:timestamptz;index:idx_time"`
	RunID               uint         `json:"runId" gorm:"index:idx_engineperformance_run_id"`
	Run                 Run          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	QueueLengths        QueueLengths `json:"queueLengths" gorm:"embedded;embeddedPrefix:queue_"`
	TickRate            float32      `json:"tickRate"` // sim ticks per second over the sample interval
	LastWriteDurationMs float32      `json:"lastWriteDurationMs"`
}

func (*EnginePerformance) TableName() string {
	return "engine_performances"
}

// QueueLengths is the model for the recording queue depths
type QueueLengths struct {
	Samples   uint16 `json:"samples"`
	Events    uint16 `json:"events"`
	Callbacks uint16 `json:"callbacks"`
}

////////////////////////
// RACE MODELS
////////////////////////

// Track is the main model for a course
type Track struct {
	gorm.Model
	Name      string         `json:"name" gorm:"size:127;uniqueIndex:idx_track_name"`
	FinishZ   float32        `json:"finishZ"`
	HasFinish bool           `json:"hasFinish" gorm:"default:true"`
	SpawnX    float32        `json:"spawnX"`
	SpawnZ    float32        `json:"spawnZ"`
	Layout    datatypes.JSON `json:"layout" gorm:"type:jsonb;default:'{}'"` // segments and obstacles as loaded

	Runs []Run
}

func (*Track) TableName() string {
	return "tracks"
}

func (t *Track) GetOrInsert(db *gorm.DB) (
	created bool,
	err error,
) {
	var existingTrack Track
	err = db.Where("name = ?", t.Name).First(&existingTrack).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// insert
			err = db.Create(t).Error
			return true, err
		}
		return false, err
	}
	// overwrite with db record if found
	*t = existingTrack
	return false, nil
}

// Run is the main model for one race attempt
type Run struct {
	gorm.Model
	TrackID       uint         `json:"trackId" gorm:"index:idx_run_track_id"`
	Track         Track        `gorm:"foreignkey:TrackID"`
	StartedAt     time.Time    `json:"startedAt" gorm:"type:timestamptz;index:idx_run_start"`
	EndedAt       sql.NullTime `json:"endedAt" gorm:"type:timestamptz;default:NULL"` // null while the run is live
	Outcome       string       `json:"outcome" gorm:"size:16"`                       // ongoing, won, lost, abandoned
	LossReason    string       `json:"lossReason" gorm:"size:32"`                    // crash, out_of_bounds, none
	Elapsed       float64      `json:"elapsed"`                                      // race clock at the end, seconds
	EngineVersion string       `json:"engineVersion" gorm:"size:64;default:0.0.0"`
	HostVersion   string       `json:"hostVersion" gorm:"size:64;default:0.0.0"`
	Tag           string       `json:"tag" gorm:"size:127"`

	Samples []TelemetrySample
	Events  []RunEvent
}

func (*Run) TableName() string {
	return "runs"
}

// BestTime is the stored record for a course. One row per track; a faster
// finish replaces it in place.
type BestTime struct {
	gorm.Model
	TrackID    uint      `json:"trackId" gorm:"uniqueIndex:idx_besttime_track_id"`
	Track      Track     `gorm:"foreignkey:TrackID"`
	RunID      uint      `json:"runId" gorm:"index:idx_besttime_run_id"` // run that set the record
	Elapsed    float64   `json:"elapsed"`
	AchievedAt time.Time `json:"achievedAt" gorm:"type:timestamptz"`
}

func (*BestTime) TableName() string {
	return "best_times"
}

////////////////////////
// TELEMETRY MODELS
////////////////////////

// TelemetrySample is the model for one captured sim frame
type TelemetrySample struct {
	ID    uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time  time.Time `json:"time" gorm:"type:timestamptz;"` // wall clock when the sample was queued
	RunID uint      `json:"runId" gorm:"index:idx_telemetrysample_run_id"`
	Run   Run       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`

	Frame       uint           `json:"frame" gorm:"index:idx_capture_frame"`     // sim frame counter
	SimTime     float64        `json:"simTime"`                                  // race clock, seconds
	Position    datatypes.JSON `json:"position" gorm:"type:jsonb;default:'[]'"`  // [x, y, z] world units
	Yaw         float32        `json:"yaw"`                                      // heading, radians
	Velocity    float32        `json:"velocity"`                                 // signed forward speed
	SteerAngle  float32        `json:"steerAngle"`
	IsDrifting  bool           `json:"isDrifting" gorm:"default:false"`
	DriftFactor float32        `json:"driftFactor"`
	Verdict     string         `json:"verdict" gorm:"size:16"` // ongoing, crashed, finished, out_of_bounds
}

func (*TelemetrySample) TableName() string {
	return "telemetry_samples"
}

// RunEvent is the model for run-scoped events: phase changes, countdown
// ticks, record breaks, whole seconds of the race clock.
type RunEvent struct {
	ID    uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time  time.Time `json:"time" gorm:"type:timestamptz;"`
	RunID uint      `json:"runId" gorm:"index:idx_runevent_run_id"`
	Run   Run       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`

	Frame   uint           `json:"frame" gorm:"index:idx_runevent_capture_frame;"`
	SimTime float64        `json:"simTime"`
	Name    string         `json:"name" gorm:"size:64"`                  // phase_change, countdown, record, clock_second
	Data    datatypes.JSON `json:"data" gorm:"type:jsonb;default:'{}'"` // event-specific payload
}

func (*RunEvent) TableName() string {
	return "run_events"
}
