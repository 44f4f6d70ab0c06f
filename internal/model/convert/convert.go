package convert

import (
	"encoding/json"

	"github.com/driftline/engine/internal/model"
	"github.com/driftline/engine/pkg/core"
)

// jsonToPosition converts a stored [x, y, z] JSON array back to a world
// position. Malformed rows decode to the zero vector.
func jsonToPosition(data []byte) core.Vec3 {
	var p [3]float32
	if err := json.Unmarshal(data, &p); err != nil {
		return core.Vec3{}
	}
	return core.Vec3{p[0], p[1], p[2]}
}

// verdictFromString maps a stored verdict column back to a core.Verdict.
func verdictFromString(s string) core.Verdict {
	switch s {
	case "crashed":
		return core.VerdictCrashed
	case "finished":
		return core.VerdictFinished
	case "out_of_bounds":
		return core.VerdictOutOfBounds
	default:
		return core.VerdictOngoing
	}
}

// phaseFromString maps a stored outcome column back to a core.Phase.
func phaseFromString(s string) core.Phase {
	switch s {
	case "countdown":
		return core.PhaseCountdown
	case "racing":
		return core.PhaseRacing
	case "won":
		return core.PhaseWon
	case "lost":
		return core.PhaseLost
	case "freeroam":
		return core.PhaseFreeRoam
	default:
		return core.PhaseLoading
	}
}

// lossReasonFromString maps a stored loss reason column back to a core.LossReason.
func lossReasonFromString(s string) core.LossReason {
	switch s {
	case "crash":
		return core.LossCrash
	case "out_of_bounds":
		return core.LossOutOfBounds
	default:
		return core.LossNone
	}
}

// TrackToCore converts a GORM model.Track back to a core.Track, decoding the
// stored layout JSON into segments and obstacles.
func TrackToCore(t model.Track) core.Track {
	var layout trackLayout
	// tolerate rows written before layout storage; geometry stays empty
	_ = json.Unmarshal(t.Layout, &layout)

	return core.Track{
		Name:      t.Name,
		Segments:  layout.Segments,
		Obstacles: layout.Obstacles,
		FinishZ:   t.FinishZ,
		HasFinish: t.HasFinish,
		SpawnX:    t.SpawnX,
		SpawnZ:    t.SpawnZ,
	}
}

// TelemetrySampleToCore converts a GORM model.TelemetrySample back to a
// core.TelemetrySample.
func TelemetrySampleToCore(s model.TelemetrySample) core.TelemetrySample {
	return core.TelemetrySample{
		RunID:       s.RunID,
		Frame:       s.Frame,
		SimTime:     s.SimTime,
		Position:    jsonToPosition(s.Position),
		Yaw:         s.Yaw,
		Velocity:    s.Velocity,
		SteerAngle:  s.SteerAngle,
		IsDrifting:  s.IsDrifting,
		DriftFactor: s.DriftFactor,
		Verdict:     verdictFromString(s.Verdict),
	}
}

// RunEventToCore converts a GORM model.RunEvent back to a core.RunEvent.
func RunEventToCore(e model.RunEvent) core.RunEvent {
	var data map[string]any
	_ = json.Unmarshal(e.Data, &data)

	return core.RunEvent{
		RunID:   e.RunID,
		Frame:   e.Frame,
		SimTime: e.SimTime,
		Name:    e.Name,
		Data:    data,
	}
}

// RunToMeta extracts run metadata from a stored run. The track name comes
// from the joined Track row and is empty unless it was preloaded.
func RunToMeta(r model.Run) core.RunMeta {
	return core.RunMeta{
		Track:         r.Track.Name,
		StartedAt:     r.StartedAt,
		EngineVersion: r.EngineVersion,
		HostVersion:   r.HostVersion,
		Tag:           r.Tag,
	}
}

// RunToResult extracts the final result from a stored run. Runs still marked
// ongoing report a zero EndedAt.
func RunToResult(r model.Run) core.RunResult {
	return core.RunResult{
		Outcome: phaseFromString(r.Outcome),
		Reason:  lossReasonFromString(r.LossReason),
		Elapsed: r.Elapsed,
		EndedAt: r.EndedAt.Time,
	}
}

// BestTimeToCore converts a stored record row to a core.RecordEvent. The
// track name comes from the joined Track row; Previous is not stored and
// reports zero.
func BestTimeToCore(b model.BestTime) core.RecordEvent {
	return core.RecordEvent{
		Time:    b.AchievedAt,
		Track:   b.Track.Name,
		Elapsed: b.Elapsed,
	}
}
