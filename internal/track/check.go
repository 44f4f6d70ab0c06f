package track

import (
	"github.com/ethaniccc/float32-cube/cube"

	"github.com/driftline/engine/pkg/core"
)

const (
	// Arcade forgiveness: the vehicle box is shrunk before testing so near
	// misses stay misses.
	vehicleBoxScale float32 = 0.75

	// Obstacle trunks collide at a fixed size regardless of visual scale.
	trunkWidth   float32 = 1.2
	trunkHeight  float32 = 4.0
	trunkDepth   float32 = 1.2
	trunkCenterY float32 = 1.0
)

// Checker evaluates race verdicts against static course geometry.
type Checker struct {
	body cube.BBox // shrunk vehicle box around the origin
}

// NewChecker builds a checker for a vehicle of the given geometry.
func NewChecker(g core.VehicleGeometry) *Checker {
	center := g.BoundsMin.Add(g.BoundsMax).Mul(0.5)
	half := g.BoundsMax.Sub(g.BoundsMin).Mul(0.5 * vehicleBoxScale)
	return &Checker{
		body: cube.Box(
			center.X()-half.X(), center.Y()-half.Y(), center.Z()-half.Z(),
			center.X()+half.X(), center.Y()+half.Y(), center.Z()+half.Z(),
		),
	}
}

// Check returns the verdict for the given pose on tr. It is a pure function
// of its arguments; obstacle and segment scans are order-independent.
func (c *Checker) Check(pose core.Pose, tr *core.Track) core.Verdict {
	body := c.body.Translate(pose.Position)
	for _, o := range tr.Obstacles {
		if body.IntersectsWith(trunkBox(o)) {
			return core.VerdictCrashed
		}
	}

	// Finish is checked before bounds: a vehicle past the line is done even
	// when it is numerically past every segment.
	if tr.HasFinish && pose.Position.Z() < tr.FinishZ {
		return core.VerdictFinished
	}

	// Bounds are not enforced behind the start line.
	if pose.Position.Z() >= 0 {
		return core.VerdictOngoing
	}
	x, z := pose.Position.X(), pose.Position.Z()
	for _, s := range tr.Segments {
		if s.Contains(x, z) {
			return core.VerdictOngoing
		}
	}
	return core.VerdictOutOfBounds
}

// trunkBox returns the fixed collision box for an obstacle. The box is
// centered one unit above the obstacle's ground position; Scale is ignored.
func trunkBox(o core.Obstacle) cube.BBox {
	return cube.Box(
		-trunkWidth/2, -trunkHeight/2, -trunkDepth/2,
		trunkWidth/2, trunkHeight/2, trunkDepth/2,
	).Translate(o.Position.Add(core.Vec3{0, trunkCenterY, 0}))
}
