package pipeline

import "fmt"

// State is a pipeline lifecycle state.
type State int

// Pipeline states. A run moves strictly forward through the stages and
// ends in StateEmitted or StateFailed.
const (
	StateEmpty State = iota
	StateLayersLoaded
	StateResolved
	StateValidated
	StateEmitted
	StateFailed
)

var stateNames = [...]string{
	StateEmpty:        "EMPTY",
	StateLayersLoaded: "LAYERS_LOADED",
	StateResolved:     "RESOLVED",
	StateValidated:    "VALIDATED",
	StateEmitted:      "EMITTED",
	StateFailed:       "FAILED",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateEmitted || s == StateFailed
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
