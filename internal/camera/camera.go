package camera

import (
	"github.com/chewxy/math32"

	"github.com/driftline/engine/pkg/core"
)

// Speed-dependent framing gains. Not host-tunable.
const (
	speedZoom      float32 = 0.01 // trailing distance gain per unit speed
	lookAheadGain  float32 = 0.02 // aim distance gain per unit speed
)

// Rig is the camera pose handed to the render host: a position and a
// look-at point, nothing renderer-specific.
type Rig struct {
	Position core.Vec3
	Target   core.Vec3
}

// Follower computes a smoothed chase view of the vehicle. One goroutine
// owns it.
type Follower struct {
	Tuning core.CameraTuning
}

// New returns a follower with the given tuning.
func New(tuning core.CameraTuning) *Follower {
	return &Follower{Tuning: tuning}
}

// Ideal returns the unsmoothed rig for the given vehicle: trailing behind
// the heading at a speed-widened distance, aiming at a speed-stretched
// point ahead.
func (f *Follower) Ideal(pose core.Pose, state core.VehicleState) Rig {
	t := f.Tuning
	speed := math32.Abs(state.Velocity)
	sin, cos := math32.Sincos(state.Heading)

	back := core.Vec3{-sin, 0, cos}
	fwd := core.Vec3{sin, 0, -cos}

	dist := t.Distance * (1 + speed*speedZoom)
	look := t.LookAhead * (1 + speed*lookAheadGain)

	return Rig{
		Position: pose.Position.Add(back.Mul(dist)).Add(core.Vec3{0, t.Height, 0}),
		Target:   pose.Position.Add(fwd.Mul(look)),
	}
}

// Update moves rig toward the ideal view. With dt > 0 both position and
// target pursue their ideals at Smooth*dt per frame (dt-coupled on purpose,
// like the steering lerp). With dt == 0 the rig snaps exactly to the ideal;
// initial placement and resets rely on that.
func (f *Follower) Update(rig *Rig, pose core.Pose, state core.VehicleState, dt float32) {
	ideal := f.Ideal(pose, state)
	a := f.Tuning.Smooth * dt
	if dt <= 0 || a >= 1 {
		*rig = ideal
		return
	}
	rig.Position = rig.Position.Add(ideal.Position.Sub(rig.Position).Mul(a))
	rig.Target = rig.Target.Add(ideal.Target.Sub(rig.Target).Mul(a))
}
