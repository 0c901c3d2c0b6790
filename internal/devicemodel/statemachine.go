package devicemodel

// State is the shared-buffer single-shot dispatch's state machine
// (spec §4.3.4). The register-window path never leaves Idle: its
// trigger is a synchronous read with no observable intermediate state.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateDispatched
	StateSuccess
	StateFail
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateDispatched:
		return "dispatched"
	case StateSuccess:
		return "success"
	case StateFail:
		return "fail"
	default:
		return "unknown"
	}
}
