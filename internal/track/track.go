package track

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/driftline/engine/pkg/core"
)

// courseFile is the on-disk JSON course format.
type courseFile struct {
	Name    string  `json:"name"`
	FinishZ float32 `json:"finishZ"`
	NoRace  bool    `json:"noRace"` // free-drive course, no finish line
	Spawn   struct {
		X float32 `json:"x"`
		Z float32 `json:"z"`
	} `json:"spawn"`
	Segments []struct {
		ZStart  float32 `json:"zStart"`
		ZEnd    float32 `json:"zEnd"`
		XOffset float32 `json:"xOffset"`
		Width   float32 `json:"width"`
	} `json:"segments"`
	Obstacles []struct {
		X     float32 `json:"x"`
		Y     float32 `json:"y"`
		Z     float32 `json:"z"`
		Scale float32 `json:"scale"`
	} `json:"obstacles"`
}

// FromFile loads a course from a JSON file.
func FromFile(path string) (*core.Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read course file: %w", err)
	}
	return fromCourseJSON(data, path)
}

// FromJSON loads a course from an inline JSON definition, as sent by hosts
// with course editors.
func FromJSON(data []byte) (*core.Track, error) {
	return fromCourseJSON(data, "custom")
}

func fromCourseJSON(data []byte, fallbackName string) (*core.Track, error) {
	var cf courseFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse course definition: %w", err)
	}

	tr := &core.Track{
		Name:      cf.Name,
		FinishZ:   cf.FinishZ,
		HasFinish: !cf.NoRace,
		SpawnX:    cf.Spawn.X,
		SpawnZ:    cf.Spawn.Z,
	}
	if tr.Name == "" {
		tr.Name = fallbackName
	}
	for _, s := range cf.Segments {
		tr.Segments = append(tr.Segments, core.TrackSegment{
			ZStart: s.ZStart, ZEnd: s.ZEnd, XOffset: s.XOffset, Width: s.Width,
		})
	}
	for _, o := range cf.Obstacles {
		scale := o.Scale
		if scale == 0 {
			scale = 1
		}
		tr.Obstacles = append(tr.Obstacles, core.Obstacle{
			Position: core.Vec3{o.X, o.Y, o.Z},
			Scale:    scale,
		})
	}

	if problems := Audit(tr); len(problems) > 0 {
		return nil, fmt.Errorf("course %s failed validation: %s", tr.Name, problems[0])
	}
	return tr, nil
}

// Demo returns the built-in course: a straight run to -300 with a gentle
// chicane of trees on either side of the racing line.
func Demo() *core.Track {
	tr := &core.Track{
		Name:      "demo",
		FinishZ:   -300,
		HasFinish: true,
		SpawnX:    0,
		SpawnZ:    5,
		Segments: []core.TrackSegment{
			{ZStart: 20, ZEnd: -120, XOffset: 0, Width: 35},
			{ZStart: -110, ZEnd: -200, XOffset: -6, Width: 30},
			{ZStart: -190, ZEnd: -310, XOffset: 0, Width: 35},
		},
	}
	for z := float32(-40); z > -280; z -= 45 {
		side := float32(8)
		if int(z/45)%2 == 0 {
			side = -8
		}
		tr.Obstacles = append(tr.Obstacles, core.Obstacle{
			Position: core.Vec3{side, 0, z},
			Scale:    1.2,
		})
	}
	return tr
}

// FreeRoam returns the built-in free-drive course: one wide strip and no
// finish line, used by hosts that only want the driving model.
func FreeRoam() *core.Track {
	return &core.Track{
		Name:      "freeroam",
		HasFinish: false,
		SpawnZ:    5,
		Segments: []core.TrackSegment{
			{ZStart: 200, ZEnd: -1000, XOffset: 0, Width: 200},
		},
	}
}
