package session

// State tracks a delivery session through its lifecycle. Terminal states
// are Completed, Failed and Aborted; reaching any of them triggers the
// session's single teardown routine.
type State int32

const (
	// StateCreated is the initial state before any process is spawned.
	StateCreated State = iota
	// StateRetrieving means the fetch process is live.
	StateRetrieving
	// StateTranscoding means the transcoder has a usable source.
	StateTranscoding
	// StateStreaming means transcoded bytes are flowing to the client.
	StateStreaming
	// StateCompleted is the terminal success state.
	StateCompleted
	// StateFailed is the terminal failure state.
	StateFailed
	// StateAborted is the terminal client-disconnect state.
	StateAborted
)

// Terminal reports whether the state ends the session.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateAborted
}

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRetrieving:
		return "retrieving"
	case StateTranscoding:
		return "transcoding"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}
