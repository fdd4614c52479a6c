package pipeline

// State is a stage of a processing pass.
type State int

const (
	Idle State = iota
	Loading
	Filtering
	Requesting
	Writing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Filtering:
		return "filtering"
	case Requesting:
		return "requesting"
	case Writing:
		return "writing"
	default:
		return "unknown"
	}
}
