package v1

import (
	"time"

	"github.com/driftline/engine/pkg/core"
)

// RunData contains all the data needed to build a ghost export
type RunData struct {
	Meta    *core.RunMeta
	Track   *core.Track
	Result  *core.RunResult
	Samples []core.TelemetrySample
	Events  []core.RunEvent
}

// Build creates an Export from the recorded run data
func Build(data *RunData) Export {
	export := Export{
		EngineVersion: data.Meta.EngineVersion,
		HostVersion:   data.Meta.HostVersion,
		Track:         data.Track.Name,
		StartedAt:     data.Meta.StartedAt.UTC().Format(time.RFC3339),
		Tags:          data.Meta.Tag,
		Frames:        make([][]any, 0, len(data.Samples)),
		Events:        make([][]any, 0, len(data.Events)),
	}

	// Runs exported before they end carry no result yet
	if data.Result != nil {
		export.Outcome = data.Result.Outcome.String()
		export.LossReason = data.Result.Reason.String()
		export.Elapsed = data.Result.Elapsed
	}

	var maxFrame uint = 0

	// Convert samples
	// Format: [frameNum, simTime, [x, y, z], yaw, velocity, steerAngle, drifting, driftFactor]
	for _, s := range data.Samples {
		frame := []any{
			s.Frame,
			s.SimTime,
			[]float32{s.Position.X(), s.Position.Y(), s.Position.Z()},
			s.Yaw,
			s.Velocity,
			s.SteerAngle,
			boolToInt(s.IsDrifting),
			s.DriftFactor,
		}
		export.Frames = append(export.Frames, frame)
		if s.Frame > maxFrame {
			maxFrame = s.Frame
		}
	}

	export.EndFrame = maxFrame

	// Convert events
	// Format: [frameNum, "name", data]
	for _, evt := range data.Events {
		var payload any = evt.Data
		if len(evt.Data) == 0 {
			payload = map[string]any{}
		}
		export.Events = append(export.Events, []any{
			evt.Frame,
			evt.Name,
			payload,
		})
	}

	return export
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
