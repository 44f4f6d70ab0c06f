package track

import (
	"encoding/json"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/driftline/engine/pkg/core"
)

// Course geometry lives in a local planar frame (meters, x right, z down the
// track), so 2D geometry work maps z onto the y axis of the XY plane.

// SegmentOutline returns the rectangular outline of one segment as a closed
// ring in the x/z plane.
func SegmentOutline(s core.TrackSegment) (geom.LineString, error) {
	half := float64(s.Width) / 2
	x0 := float64(s.XOffset) - half
	x1 := float64(s.XOffset) + half
	z0, z1 := float64(s.ZStart), float64(s.ZEnd)

	seq := geom.NewSequence([]float64{
		x0, z0,
		x1, z0,
		x1, z1,
		x0, z1,
		x0, z0,
	}, geom.DimXY)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.LineString{}, fmt.Errorf("segment outline is not a valid ring: %w", err)
	}
	return ls, nil
}

// SegmentPolygon returns the drivable area of one segment as a polygon.
func SegmentPolygon(s core.TrackSegment) (geom.Polygon, error) {
	ring, err := SegmentOutline(s)
	if err != nil {
		return geom.Polygon{}, err
	}
	poly, err := geom.NewPolygon([]geom.LineString{ring})
	if err != nil {
		return geom.Polygon{}, fmt.Errorf("segment outline does not form a polygon: %w", err)
	}
	return poly, nil
}

// Audit checks course geometry for the defects the tooling cares about.
// An empty slice means the course is usable.
func Audit(tr *core.Track) []string {
	var problems []string
	if len(tr.Segments) == 0 {
		problems = append(problems, "course has no segments")
	}
	for i, s := range tr.Segments {
		if s.Width <= 0 {
			problems = append(problems, fmt.Sprintf("segment %d has non-positive width %f", i, s.Width))
			continue
		}
		if s.ZStart == s.ZEnd {
			problems = append(problems, fmt.Sprintf("segment %d has a zero-length z range", i))
			continue
		}
		if _, err := SegmentPolygon(s); err != nil {
			problems = append(problems, fmt.Sprintf("segment %d: %s", i, err))
		}
	}
	if tr.HasFinish {
		if tr.FinishZ >= 0 {
			problems = append(problems, fmt.Sprintf("finish line %f is not past the start line", tr.FinishZ))
		}
		covered := false
		for _, s := range tr.Segments {
			if s.ContainsZ(tr.FinishZ) {
				covered = true
				break
			}
		}
		if !covered {
			problems = append(problems, "no segment reaches the finish line")
		}
	}
	for i, o := range tr.Obstacles {
		onCourse := false
		for _, s := range tr.Segments {
			if s.ContainsZ(o.Position.Z()) {
				onCourse = true
				break
			}
		}
		if !onCourse {
			problems = append(problems, fmt.Sprintf("obstacle %d at z=%f is outside every segment", i, o.Position.Z()))
		}
	}
	return problems
}

// TrajectoryLineString converts recorded samples into a line string in the
// track plane. Used for ghost exports and replay stats.
func TrajectoryLineString(samples []core.TelemetrySample) (geom.LineString, error) {
	if len(samples) < 2 {
		return geom.LineString{}, fmt.Errorf("trajectory needs at least 2 samples, got %d", len(samples))
	}
	flat := make([]float64, 0, len(samples)*2)
	for _, s := range samples {
		flat = append(flat, float64(s.Position.X()), float64(s.Position.Z()))
	}
	ls, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return geom.LineString{}, fmt.Errorf("trajectory is not a valid line string: %w", err)
	}
	return ls, nil
}

// ParseTrajectory parses a JSON array of [x, z] pairs into a line string.
// This is the ghost wire format.
func ParseTrajectory(input []byte) (geom.LineString, error) {
	var coords [][]float64
	if err := json.Unmarshal(input, &coords); err != nil {
		return geom.LineString{}, fmt.Errorf("failed to parse trajectory JSON: %w", err)
	}
	if len(coords) < 2 {
		return geom.LineString{}, fmt.Errorf("trajectory must have at least 2 points, got %d", len(coords))
	}
	flat := make([]float64, 0, len(coords)*2)
	for i, c := range coords {
		if len(c) < 2 {
			return geom.LineString{}, fmt.Errorf("trajectory point %d has insufficient values", i)
		}
		flat = append(flat, c[0], c[1])
	}
	ls, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return geom.LineString{}, fmt.Errorf("trajectory is not a valid line string: %w", err)
	}
	return ls, nil
}

// EncodeTrajectory marshals samples into the ghost wire format.
func EncodeTrajectory(samples []core.TelemetrySample) ([]byte, error) {
	coords := make([][]float64, 0, len(samples))
	for _, s := range samples {
		coords = append(coords, []float64{float64(s.Position.X()), float64(s.Position.Z())})
	}
	return json.Marshal(coords)
}
