package domain

// ConnectionState of a session. Transitions are monotonic: Connecting -> Active -> Closed.
type ConnectionState int32

const (
	Connecting ConnectionState = iota
	Active
	Closed
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Active:
		return "ACTIVE"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
