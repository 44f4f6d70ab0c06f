// pkg/core/race.go
package core

// Phase is the race lifecycle state.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseCountdown
	PhaseRacing
	PhaseWon
	PhaseLost
	PhaseFreeRoam // post-win driving with verdict checks suspended
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseCountdown:
		return "countdown"
	case PhaseRacing:
		return "racing"
	case PhaseWon:
		return "won"
	case PhaseLost:
		return "lost"
	case PhaseFreeRoam:
		return "freeroam"
	default:
		return "unknown"
	}
}

// Verdict is the outcome of one collision/bounds check.
type Verdict int

const (
	VerdictOngoing Verdict = iota
	VerdictCrashed
	VerdictFinished
	VerdictOutOfBounds
)

func (v Verdict) String() string {
	switch v {
	case VerdictOngoing:
		return "ongoing"
	case VerdictCrashed:
		return "crashed"
	case VerdictFinished:
		return "finished"
	case VerdictOutOfBounds:
		return "out_of_bounds"
	default:
		return "unknown"
	}
}

// LossReason tags why a run ended in PhaseLost. Display only; restarts are
// unlimited either way.
type LossReason int

const (
	LossNone LossReason = iota
	LossCrash
	LossOutOfBounds
)

func (r LossReason) String() string {
	switch r {
	case LossCrash:
		return "crash"
	case LossOutOfBounds:
		return "out_of_bounds"
	default:
		return "none"
	}
}
