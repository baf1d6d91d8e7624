package pipeline

// State is the orchestrator's position in one run.
//
//	Idle -> Downloading -> Streaming -> Completed
//	Idle -> Streaming -> Completed          (CSV, no download)
//	any non-terminal state -> Failed
type State int

const (
	Idle State = iota
	Downloading
	Streaming
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Downloading:
		return "downloading"
	case Streaming:
		return "streaming"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Completed || s == Failed }

// canTransition lists the allowed edges of the state machine.
func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == Failed {
		return true
	}
	switch from {
	case Idle:
		return to == Downloading || to == Streaming
	case Downloading:
		return to == Streaming
	case Streaming:
		return to == Completed
	}
	return false
}
