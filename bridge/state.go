package bridge

// State is the position of one invocation in the bridge.
type State int

const (
	StateIdle State = iota
	StateBootstrapping
	StateTranslating
	StateAwaitingCompletion
	StateReturning
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateBootstrapping:
		return "Bootstrapping"
	case StateTranslating:
		return "Translating"
	case StateAwaitingCompletion:
		return "AwaitingCompletion"
	case StateReturning:
		return "Returning"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateReturning || s == StateFailed
}
