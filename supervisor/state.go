// state.go enumerates the lifecycle states of the supervised pipeline.

package supervisor

import "fmt"

type State int

const (
	StateIdle = State(iota)
	StateRunning
	StateEOS
	StateErrored
	StateStopped
	endOfState
)

func States() []State {
	result := make([]State, 0, endOfState)
	for s := StateIdle; s < endOfState; s++ {
		result = append(result, s)
	}
	return result
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateEOS:
		return "eos"
	case StateErrored:
		return "errored"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("<unknown:%d>", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
