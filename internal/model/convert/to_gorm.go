// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/driftline/engine/internal/model"
	"github.com/driftline/engine/pkg/core"
	"gorm.io/datatypes"
)

// trackLayout is the stored JSON shape of course geometry. Segments and
// obstacles round-trip through it unchanged.
type trackLayout struct {
	Segments  []core.TrackSegment `json:"segments"`
	Obstacles []core.Obstacle     `json:"obstacles"`
}

// positionToJSON converts a world position to a [x, y, z] JSON array for DB storage.
func positionToJSON(p core.Vec3) datatypes.JSON {
	data, _ := json.Marshal([3]float32{p.X(), p.Y(), p.Z()})
	return datatypes.JSON(data)
}

// layoutToJSON converts course geometry to datatypes.JSON for DB storage.
func layoutToJSON(t core.Track) datatypes.JSON {
	data, _ := json.Marshal(trackLayout{
		Segments:  t.Segments,
		Obstacles: t.Obstacles,
	})
	return datatypes.JSON(data)
}

// dataToJSON converts an event payload to datatypes.JSON for DB storage.
func dataToJSON(data map[string]any) datatypes.JSON {
	if len(data) == 0 {
		return datatypes.JSON("{}")
	}
	out, _ := json.Marshal(data)
	return datatypes.JSON(out)
}

// CoreToTrack converts a core.Track to a GORM model.Track.
func CoreToTrack(t core.Track) model.Track {
	return model.Track{
		Name:      t.Name,
		FinishZ:   t.FinishZ,
		HasFinish: t.HasFinish,
		SpawnX:    t.SpawnX,
		SpawnZ:    t.SpawnZ,
		Layout:    layoutToJSON(t),
	}
}

// CoreToRun converts run metadata to a GORM model.Run. TrackID is resolved
// by the storage layer once the track row exists; the outcome starts as
// ongoing and is stamped when the run ends.
func CoreToRun(m core.RunMeta) model.Run {
	return model.Run{
		StartedAt:     m.StartedAt,
		EndedAt:       sql.NullTime{},
		Outcome:       "ongoing",
		EngineVersion: m.EngineVersion,
		HostVersion:   m.HostVersion,
		Tag:           m.Tag,
	}
}

// CoreToTelemetrySample converts a core.TelemetrySample to a GORM
// model.TelemetrySample. Samples carry no wall clock of their own, so the
// writer stamps the queue drain time.
func CoreToTelemetrySample(s core.TelemetrySample, at time.Time) model.TelemetrySample {
	return model.TelemetrySample{
		Time:        at,
		RunID:       s.RunID,
		Frame:       s.Frame,
		SimTime:     s.SimTime,
		Position:    positionToJSON(s.Position),
		Yaw:         s.Yaw,
		Velocity:    s.Velocity,
		SteerAngle:  s.SteerAngle,
		IsDrifting:  s.IsDrifting,
		DriftFactor: s.DriftFactor,
		Verdict:     s.Verdict.String(),
	}
}

// CoreToRunEvent converts a core.RunEvent to a GORM model.RunEvent.
func CoreToRunEvent(e core.RunEvent, at time.Time) model.RunEvent {
	return model.RunEvent{
		Time:    at,
		RunID:   e.RunID,
		Frame:   e.Frame,
		SimTime: e.SimTime,
		Name:    e.Name,
		Data:    dataToJSON(e.Data),
	}
}

// CoreToBestTime converts a core.RecordEvent to a GORM model.BestTime.
// TrackID and RunID are resolved by the storage layer.
func CoreToBestTime(e core.RecordEvent) model.BestTime {
	return model.BestTime{
		Elapsed:    e.Elapsed,
		AchievedAt: e.Time,
	}
}
