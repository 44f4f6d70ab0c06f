package sim

import (
	"time"

	"github.com/chewxy/math32"

	"github.com/driftline/engine/pkg/core"
)

// Feel constants. These are deliberately not host-tunable; the tunable
// surface is core.VehicleTuning.
const (
	// MaxStepSeconds caps a single step's dt. Hosts hand us wall-frame
	// deltas, and a backgrounded tab can produce multi-second spikes.
	MaxStepSeconds = 0.1

	driftGateSpeed   float32 = 3.0  // |velocity| needed to engage the slide
	driftRampRate    float32 = 3.0  // driftFactor ramp toward 1, per second
	driftDecayRate   float32 = 2.0  // driftFactor decay toward 0, per second
	driftClearBelow  float32 = 0.1  // IsDrifting clears under this factor
	driftChannelKeep float32 = 0.9  // per-tick keep of driftAngle/driftVelocity when idle
	driftSideRatio   float32 = 0.3  // driftVelocity as a fraction of forward velocity
	driftAngleGain   float32 = 0.05 // slide angle accumulation per unit velocity

	reverseRatio   float32 = 0.3 // reverse cap as a fraction of MaxSpeed
	steerFadeSpeed float32 = 5.0 // full steering authority above this speed
	steerLerpGain  float32 = 3.0

	rollGainDrift  float32 = 0.06
	rollGainNormal float32 = 0.02
	wobbleAmp      float32 = 0.035 // drift yaw shake, radians
	wobbleFreq             = 10.0  // rad/s of wall-clock time
	backPitchGain  float32 = 0.12  // rear-settling pitch at full drift factor
)

// Simulator advances vehicle state one frame at a time. Not safe for
// concurrent use; a single goroutine owns it and the state it mutates.
type Simulator struct {
	Tuning core.VehicleTuning

	// Now supplies wall-clock seconds for the drift wobble. Tests inject a
	// fixed clock; nil falls back to the process monotonic clock.
	Now func() float64
}

// New returns a simulator with the given tuning and a monotonic wall clock.
func New(tuning core.VehicleTuning) *Simulator {
	start := time.Now()
	return &Simulator{
		Tuning: tuning,
		Now:    func() float64 { return time.Since(start).Seconds() },
	}
}

func (s *Simulator) now() float64 {
	if s.Now != nil {
		return s.Now()
	}
	return float64(time.Now().UnixNano()) / 1e9
}

// ClampDT returns dt clamped to the legal step range.
func ClampDT(dt float32) float32 {
	if dt < 0 {
		return 0
	}
	if dt > MaxStepSeconds {
		return MaxStepSeconds
	}
	return dt
}

// Step advances state and pose by one frame of dt seconds, mutating both in
// place. dt is clamped to [0, MaxStepSeconds]. A zero dt produces no motion
// but still refreshes the derived visual pose; the per-tick drift decays
// still apply, which is the intended frame-coupled feel.
func (s *Simulator) Step(state *core.VehicleState, pose *core.Pose, in core.ControlInput, dt float32) {
	dt = ClampDT(dt)
	t := s.Tuning

	// Steering. Contributions are additive, so both keys held cancel and the
	// wheel recenters. The lerp factor is dt-dependent on purpose; true
	// exponential smoothing changes the handling feel.
	var target float32
	if in.SteerLeft {
		target += t.MaxSteerAngle
	}
	if in.SteerRight {
		target -= t.MaxSteerAngle
	}
	state.SteerAngle += (target - state.SteerAngle) * math32.Min(1, t.SteerSpeed*dt*steerLerpGain)

	// Longitudinal. Friction only acts while coasting and never drags the
	// vehicle through zero.
	switch {
	case in.Accelerate:
		state.Velocity += t.Acceleration * dt
	case in.Brake:
		state.Velocity -= t.BrakeForce * dt
	default:
		drag := t.Friction * dt
		switch {
		case state.Velocity > drag:
			state.Velocity -= drag
		case state.Velocity < -drag:
			state.Velocity += drag
		default:
			state.Velocity = 0
		}
	}

	// Drift channel. The slide engages only while the handbrake is held at
	// speed; once the gate drops the factor bleeds off and the flag clears
	// below the threshold.
	var lateral float32
	if in.Handbrake && math32.Abs(state.Velocity) > driftGateSpeed {
		state.IsDrifting = true
		state.DriftFactor = math32.Min(1, state.DriftFactor+driftRampRate*dt)
		state.Velocity *= t.DriftFriction
		switch {
		case in.SteerLeft && !in.SteerRight:
			state.DriftAngle += state.Velocity * driftAngleGain * dt
		case in.SteerRight && !in.SteerLeft:
			state.DriftAngle -= state.Velocity * driftAngleGain * dt
		}
		state.DriftVelocity = driftSideRatio * state.Velocity
		lateral = math32.Sin(state.DriftAngle) * state.DriftVelocity * dt * state.DriftFactor
	} else {
		state.DriftFactor = math32.Max(0, state.DriftFactor-driftDecayRate*dt)
		state.DriftAngle *= driftChannelKeep
		state.DriftVelocity *= driftChannelKeep
		if state.DriftFactor < driftClearBelow {
			state.IsDrifting = false
		}
	}

	// Clamp after the slide friction so nothing breaks the envelope.
	state.Velocity = math32.Max(-t.MaxSpeed*reverseRatio, math32.Min(t.MaxSpeed, state.Velocity))

	// Heading. Steering authority fades to zero at standstill and sharpens
	// while sliding.
	influence := state.SteerAngle * math32.Min(math32.Abs(state.Velocity)/steerFadeSpeed, 1)
	if state.IsDrifting {
		influence *= t.DriftMultiplier
	}
	state.Heading += influence * state.Velocity * dt

	// Position: forward along heading, plus the slide displacement along the
	// local right axis.
	sin, cos := math32.Sincos(state.Heading)
	pos := pose.Position
	pos[0] += sin*state.Velocity*dt + cos*lateral
	pos[2] += -cos*state.Velocity*dt + sin*lateral
	pose.Position = pos

	// Derived visual pose. Pose.Yaw carries the wobble; state.Heading stays
	// clean for the next integration step.
	rollGain := rollGainNormal
	if state.IsDrifting {
		rollGain = rollGainDrift
	}
	pose.Roll = -state.SteerAngle * state.Velocity * rollGain
	if state.IsDrifting {
		pose.Yaw = state.Heading + wobbleAmp*math32.Sin(float32(s.now()*wobbleFreq))
		pose.Pitch = -backPitchGain * state.DriftFactor
	} else {
		pose.Yaw = state.Heading
		pose.Pitch = 0
	}
}

// Reset zeroes the kinematic state and places the pose at the given spawn,
// facing down the track.
func (s *Simulator) Reset(state *core.VehicleState, pose *core.Pose, spawn core.Vec3) {
	*state = core.VehicleState{}
	*pose = core.Pose{Position: spawn}
}
