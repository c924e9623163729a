package pipeline

// State is the pipeline's lifecycle state.
type State int32

const (
	// StateIdle is the state before Run.
	StateIdle State = iota

	// StateSubscribed means the broker acknowledged the subscription.
	StateSubscribed

	// StateDraining means ingestion and persistence are running.
	StateDraining

	// StateStopped means Run returned after cancellation.
	StateStopped

	// StateTerminated means Run returned with an error.
	StateTerminated
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribed:
		return "subscribed"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
