// pkg/core/vehicle.go
package core

import "github.com/go-gl/mathgl/mgl32"

// Vec3 is the engine's spatial vector type. All world-space quantities are
// float32, matching the render hosts.
type Vec3 = mgl32.Vec3

// ControlInput is one frame's worth of control flags. Flags are
// level-triggered: they mirror key state, not key edges.
type ControlInput struct {
	Accelerate bool
	Brake      bool
	SteerLeft  bool
	SteerRight bool
	Handbrake  bool
}

// Any reports whether any control is held.
func (c ControlInput) Any() bool {
	return c.Accelerate || c.Brake || c.SteerLeft || c.SteerRight || c.Handbrake
}

// Pose is a world-space transform: position plus yaw/pitch/roll in radians.
// Yaw 0 faces -Z (down the track); +X is the vehicle's right at yaw 0.
type Pose struct {
	Position Vec3
	Yaw      float32
	Pitch    float32
	Roll     float32
}

// VehicleState is the kinematic and drift state advanced once per frame.
// Heading is the authoritative direction of travel; Pose.Yaw is Heading plus
// a visual perturbation while sliding and must never feed back into
// integration.
type VehicleState struct {
	Heading    float32 // world heading, radians
	Velocity   float32 // signed scalar along heading, units/s
	SteerAngle float32 // current wheel angle, approaches the target each frame

	IsDrifting    bool
	DriftFactor   float32 // 0..1, ramps while the handbrake slide is engaged
	DriftAngle    float32 // accumulated slide angle, radians
	DriftVelocity float32 // lateral slide speed, derived from Velocity
}

// VehicleTuning holds the constant handling parameters. The integrator reads
// these every step and never mutates them.
type VehicleTuning struct {
	MaxSpeed        float32 // forward cap; reverse is capped at 30% of this
	Acceleration    float32
	Deceleration    float32 // surfaced in host settings; coast-down uses Friction
	BrakeForce      float32
	SteerSpeed      float32
	MaxSteerAngle   float32
	Friction        float32
	DriftFriction   float32 // per-tick multiplicative velocity decay while sliding
	DriftMultiplier float32 // steering gain while sliding
}

// DefaultVehicleTuning returns the stock handling setup.
func DefaultVehicleTuning() VehicleTuning {
	return VehicleTuning{
		MaxSpeed:        40,
		Acceleration:    12,
		Deceleration:    10,
		BrakeForce:      20,
		SteerSpeed:      5,
		MaxSteerAngle:   0.05,
		Friction:        6,
		DriftFriction:   0.98,
		DriftMultiplier: 2.5,
	}
}

// VehicleGeometry is the collision-relevant shape of the vehicle, supplied by
// the asset layer at load time. Bounds are relative to the vehicle origin,
// y up from the wheel contact plane.
type VehicleGeometry struct {
	BoundsMin       Vec3
	BoundsMax       Vec3
	GroundClearance float32
}

// DefaultVehicleGeometry matches the stock car model.
func DefaultVehicleGeometry() VehicleGeometry {
	return VehicleGeometry{
		BoundsMin:       Vec3{-0.9, 0, -2.1},
		BoundsMax:       Vec3{0.9, 1.3, 2.1},
		GroundClearance: 0.15,
	}
}

// GroundLevel returns the resting y of the vehicle origin.
func (g VehicleGeometry) GroundLevel() float32 {
	return g.GroundClearance - g.BoundsMin.Y()
}
