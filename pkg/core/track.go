// pkg/core/track.go
package core

// Obstacle is a static collidable placed on the course. Scale affects the
// rendered model only; the collision trunk is a fixed size regardless.
type Obstacle struct {
	Position Vec3
	Scale    float32
}

// TrackSegment is a longitudinal slice of drivable course: a z range with a
// lateral window. Segments may overlap; membership checks are
// order-independent.
type TrackSegment struct {
	ZStart  float32
	ZEnd    float32
	XOffset float32
	Width   float32
}

// ContainsZ reports whether z lies within the segment's longitudinal range.
// The range is normalized, so ZStart/ZEnd may be given in either order.
func (s TrackSegment) ContainsZ(z float32) bool {
	lo, hi := s.ZStart, s.ZEnd
	if lo > hi {
		lo, hi = hi, lo
	}
	return z >= lo && z <= hi
}

// Contains reports whether the world x/z point lies inside both the
// segment's z range and its lateral window.
func (s TrackSegment) Contains(x, z float32) bool {
	if !s.ContainsZ(z) {
		return false
	}
	half := s.Width / 2
	return x >= s.XOffset-half && x <= s.XOffset+half
}

// Track is the static course geometry. The start line is z=0 and the course
// runs toward negative z, so FinishZ is negative on tracks that have one.
// A track without a finish line (HasFinish false) is a free-drive course.
type Track struct {
	Name      string
	Segments  []TrackSegment
	Obstacles []Obstacle
	FinishZ   float32
	HasFinish bool
	SpawnX    float32
	SpawnZ    float32
}
