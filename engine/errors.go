package engine

import "fmt"

// ParseError scopes a load failure to the file it came from.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StateError reports a call the engine cannot serve in its current state,
// usually because another invocation is still in flight.
type StateError struct {
	From State
	To   State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("engine: cannot move from %s to %s", e.From, e.To)
}
