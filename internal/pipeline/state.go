package pipeline

// Position of a pipeline in its lifecycle.
type State int

const (
	Idle State = iota
	Importing
	Building
	CleaningUp
	Succeeded
	Failed
)

var stateNames = [...]string{
	Idle:       "idle",
	Importing:  "importing",
	Building:   "building",
	CleaningUp: "cleaning-up",
	Succeeded:  "succeeded",
	Failed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

// Whether the pipeline may move from s to next.
//
// Each active state advances to the following stage on success or to
// [Failed]. Terminal states have no transitions.
func (s State) CanTransition(next State) bool {
	switch s {
	case Idle:
		return next == Importing
	case Importing:
		return next == Building || next == Failed
	case Building:
		return next == CleaningUp || next == Failed
	case CleaningUp:
		return next == Succeeded || next == Failed
	default:
		return false
	}
}
