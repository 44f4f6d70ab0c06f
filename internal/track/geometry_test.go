package track

import (
	"strings"
	"testing"

	"github.com/driftline/engine/pkg/core"
)

func TestAuditAcceptsBuiltinCourses(t *testing.T) {
	for _, tr := range []*core.Track{Demo(), FreeRoam()} {
		if problems := Audit(tr); len(problems) != 0 {
			t.Fatalf("built-in course %s failed audit: %v", tr.Name, problems)
		}
	}
}

func TestAuditFlagsDefects(t *testing.T) {
	cases := []struct {
		name string
		tr   *core.Track
		want string
	}{
		{
			"no segments",
			&core.Track{Name: "empty"},
			"no segments",
		},
		{
			"bad width",
			&core.Track{Segments: []core.TrackSegment{{ZStart: 0, ZEnd: -10, Width: -1}}},
			"non-positive width",
		},
		{
			"zero z range",
			&core.Track{Segments: []core.TrackSegment{{ZStart: -5, ZEnd: -5, Width: 10}}},
			"zero-length z range",
		},
		{
			"finish uncovered",
			&core.Track{
				HasFinish: true,
				FinishZ:   -500,
				Segments:  []core.TrackSegment{{ZStart: 0, ZEnd: -100, Width: 10}},
			},
			"no segment reaches the finish line",
		},
		{
			"finish before start",
			&core.Track{
				HasFinish: true,
				FinishZ:   10,
				Segments:  []core.TrackSegment{{ZStart: 20, ZEnd: -100, Width: 10}},
			},
			"not past the start line",
		},
		{
			"stray obstacle",
			&core.Track{
				Segments:  []core.TrackSegment{{ZStart: 0, ZEnd: -100, Width: 10}},
				Obstacles: []core.Obstacle{{Position: core.Vec3{0, 0, -400}}},
			},
			"outside every segment",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			problems := Audit(tc.tr)
			if len(problems) == 0 {
				t.Fatal("expected audit problems, got none")
			}
			found := false
			for _, p := range problems {
				if strings.Contains(p, tc.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected a problem containing %q, got %v", tc.want, problems)
			}
		})
	}
}

func TestTrajectoryRoundTrip(t *testing.T) {
	samples := []core.TelemetrySample{
		{Position: core.Vec3{0, 0, 5}},
		{Position: core.Vec3{0.5, 0, -10}},
		{Position: core.Vec3{-1.25, 0, -40}},
	}
	data, err := EncodeTrajectory(samples)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	ls, err := ParseTrajectory(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	seq := ls.Coordinates()
	if seq.Length() != len(samples) {
		t.Fatalf("expected %d points, got=%d", len(samples), seq.Length())
	}
	for i, s := range samples {
		xy := seq.GetXY(i)
		if xy.X != float64(s.Position.X()) || xy.Y != float64(s.Position.Z()) {
			t.Fatalf("point %d mismatch: got=%v want=(%f, %f)", i, xy, s.Position.X(), s.Position.Z())
		}
	}
	if ls.Length() <= 0 {
		t.Fatalf("expected positive trajectory length, got=%f", ls.Length())
	}
}

func TestParseTrajectoryRejectsMalformedInput(t *testing.T) {
	for _, input := range []string{
		"not json",
		"[[1,2]]",
		"[[1],[2,3]]",
	} {
		if _, err := ParseTrajectory([]byte(input)); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestTrajectoryLineStringNeedsTwoSamples(t *testing.T) {
	if _, err := TrajectoryLineString([]core.TelemetrySample{{}}); err == nil {
		t.Fatal("expected error for single-sample trajectory")
	}
	ls, err := TrajectoryLineString([]core.TelemetrySample{
		{Position: core.Vec3{0, 0, 0}},
		{Position: core.Vec3{0, 0, -3}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ls.Length() != 3 {
		t.Fatalf("expected length 3, got=%f", ls.Length())
	}
}

func TestSegmentOutlineIsClosed(t *testing.T) {
	ls, err := SegmentOutline(core.TrackSegment{ZStart: 0, ZEnd: -100, XOffset: 4, Width: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seq := ls.Coordinates()
	if seq.Length() != 5 {
		t.Fatalf("expected 5 outline points, got=%d", seq.Length())
	}
	if seq.GetXY(0) != seq.GetXY(4) {
		t.Fatal("outline ring is not closed")
	}
	wkt := ls.AsText()
	if !strings.HasPrefix(wkt, "LINESTRING") {
		t.Fatalf("unexpected WKT: %s", wkt)
	}
}
