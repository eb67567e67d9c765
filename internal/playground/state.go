package playground

import (
	"errors"

	"github.com/jwtly10/compactbook/internal/compile"
)

// State is the lifecycle state of a block.
//
//	Idle -> Compiling -> Success | Failure | TransportError -> Compiling -> ...
type State int

const (
	StateIdle State = iota
	StateCompiling
	StateSuccess
	StateFailure
	StateTransportError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCompiling:
		return "compiling"
	case StateSuccess:
		return "success"
	case StateFailure:
		return "failure"
	case StateTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether s is the result of a finished run
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure || s == StateTransportError
}

var (
	// ErrBusy is returned when a run is requested while the block is compiling.
	// No request is sent and the in-flight run is unaffected.
	ErrBusy = errors.New("block is already compiling")
	// ErrNotRunnable is returned for runs of snippet blocks, which have no trigger
	ErrNotRunnable = errors.New("block is not a complete program")
	// ErrNotEditable is returned for edits of blocks that were not made editable
	ErrNotEditable = errors.New("block is not editable")
)

func stateFor(o compile.Outcome) State {
	switch o.(type) {
	case compile.Success:
		return StateSuccess
	case compile.Failure:
		return StateFailure
	default:
		return StateTransportError
	}
}
