package ws

// State is the lifecycle stage of one relay connection.
type State int

const (
	StateConnecting State = iota
	StateAuthorized
	StateRouted
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthorized:
		return "authorized"
	case StateRouted:
		return "routed"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
