package core

// CameraTuning holds the chase-camera parameters.
type CameraTuning struct {
	Distance  float32 // trailing distance behind the vehicle
	Height    float32
	LookAhead float32 // base aim distance ahead of the vehicle
	Smooth    float32 // pursuit rate; position converges at Smooth*dt per frame
}

// DefaultCameraTuning returns the stock chase-camera setup.
func DefaultCameraTuning() CameraTuning {
	return CameraTuning{
		Distance:  9,
		Height:    4.5,
		LookAhead: 6,
		Smooth:    4,
	}
}
