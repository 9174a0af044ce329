// Package events defines the observable progress stream produced by the
// prover pipeline and the bounded bus that carries it to the headless sink
package events

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Role identifies which stage of the pipeline emitted an event
type Role uint8

const (
	RoleFetcher Role = iota
	RoleProver
	RoleSubmitter
)

// String implements fmt.Stringer
func (r Role) String() string {
	switch r {
	case RoleFetcher:
		return "fetcher"
	case RoleProver:
		return "prover"
	case RoleSubmitter:
		return "submitter"
	default:
		return "unknown"
	}
}

// Worker is the emitting identity: a role plus, for provers, the worker index
type Worker struct {
	Role  Role
	Index int
}

// String implements fmt.Stringer
func (w Worker) String() string {
	if w.Role == RoleProver {
		return fmt.Sprintf("prover-%d", w.Index)
	}
	return w.Role.String()
}

// Kind classifies what an event reports
type Kind uint8

const (
	KindSuccess Kind = iota
	KindError
	KindRefresh
	KindWaiting
	KindStateChange
)

// String implements fmt.Stringer
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	case KindRefresh:
		return "refresh"
	case KindWaiting:
		return "waiting"
	case KindStateChange:
		return "state_change"
	default:
		return "unknown"
	}
}

// ProverState is the coarse worker state carried on StateChange events
type ProverState uint8

const (
	StateNone ProverState = iota
	StateProving
	StateWaiting
)

// String implements fmt.Stringer
func (s ProverState) String() string {
	switch s {
	case StateProving:
		return "proving"
	case StateWaiting:
		return "waiting"
	default:
		return ""
	}
}

// Event is one unit of observable progress
type Event struct {
	Worker    Worker
	Kind      Kind
	Level     zerolog.Level
	Message   string
	Timestamp time.Time
	State     ProverState
}

// New builds a timestamped event
func New(w Worker, kind Kind, level zerolog.Level, msg string) Event {
	return Event{Worker: w, Kind: kind, Level: level, Message: msg, Timestamp: time.Now()}
}

// NewState builds a StateChange event carrying the new prover state
func NewState(w Worker, state ProverState, msg string) Event {
	e := New(w, KindStateChange, zerolog.InfoLevel, msg)
	e.State = state
	return e
}
