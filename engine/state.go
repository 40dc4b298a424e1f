package engine

import "fmt"

// State is the phase an Engine is in.
type State int

const (
	Idle State = iota
	Loading
	Parsed
	Generating
	Done
	Failed
)

var stateNames = [...]string{"idle", "loading", "parsed", "generating", "done", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// transitions lists the states reachable from each state. Done and Failed
// end an invocation; the next one starts from either.
var transitions = map[State][]State{
	Idle:       {Loading, Generating},
	Loading:    {Parsed, Failed},
	Parsed:     {Generating, Loading},
	Generating: {Done, Failed},
	Done:       {Loading, Generating},
	Failed:     {Loading, Generating},
}

// CanTransition reports whether to may follow from.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
