package api

import (
	"errors"
	"time"
	"wager-leaderboard/internal/constants"
)

type StateKind int

const (
	StateAttempting StateKind = iota
	StateWaiting
	StateAntiBlockAttempting
	StateDone
	StateFailed
)

func (k StateKind) String() string {
	switch k {
	case StateAttempting:
		return "attempting"
	case StateWaiting:
		return "waiting"
	case StateAntiBlockAttempting:
		return "anti_block_attempting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is one node of the fetch state machine. Attempt is the 1-based
// ordinary attempt number (for Waiting, the attempt to resume with); Rung is
// the 0-based index into the anti-block ladder.
type State struct {
	Kind    StateKind
	Attempt int
	Rung    int
	Delay   time.Duration
}

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTransient
	OutcomeRateLimited
	OutcomeBlocked
	OutcomeApplication
	OutcomeMissingData
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransient:
		return "transient"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeApplication:
		return "application_error"
	case OutcomeMissingData:
		return "missing_data"
	default:
		return "unknown"
	}
}

// OutcomeOf maps an attempt error onto the outcome taxonomy. Unclassified
// errors count as transient.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrRateLimited):
		return OutcomeRateLimited
	case errors.Is(err, ErrBlocked):
		return OutcomeBlocked
	case errors.Is(err, ErrUpstreamApplication):
		return OutcomeApplication
	case errors.Is(err, ErrMissingDataShape):
		return OutcomeMissingData
	default:
		return OutcomeTransient
	}
}

type Policy struct {
	MaxRetries     int
	RateLimitWait  time.Duration
	RetryDelay     time.Duration
	AttemptTimeout time.Duration
	Ladder         []Strategy
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     constants.MaxRetries,
		RateLimitWait:  constants.RateLimitWait,
		RetryDelay:     constants.RetryDelay,
		AttemptTimeout: constants.AttemptTimeout,
		Ladder:         DefaultLadder(),
	}
}

func Start() State {
	return State{Kind: StateAttempting, Attempt: 1}
}

// Next is the pure transition function of the fetch state machine. Waiting
// states resume via Resume; Done and Failed are terminal.
func Next(p Policy, s State, o Outcome) State {
	switch s.Kind {
	case StateAttempting:
		return nextFromAttempt(p, s, o)
	case StateAntiBlockAttempting:
		if o == OutcomeSuccess {
			return State{Kind: StateDone}
		}
		if s.Rung+1 < len(p.Ladder) {
			return State{Kind: StateAntiBlockAttempting, Rung: s.Rung + 1}
		}
		return State{Kind: StateFailed}
	case StateWaiting:
		return Resume(s)
	default:
		return s
	}
}

func nextFromAttempt(p Policy, s State, o Outcome) State {
	last := s.Attempt >= p.MaxRetries

	switch o {
	case OutcomeSuccess:
		return State{Kind: StateDone}
	case OutcomeRateLimited:
		if last {
			return State{Kind: StateFailed}
		}
		return State{Kind: StateWaiting, Attempt: s.Attempt + 1, Delay: p.RateLimitWait}
	case OutcomeBlocked:
		if last {
			if len(p.Ladder) == 0 {
				return State{Kind: StateFailed}
			}
			return State{Kind: StateAntiBlockAttempting, Rung: 0}
		}
		return State{Kind: StateWaiting, Attempt: s.Attempt + 1, Delay: p.RetryDelay}
	default:
		if last {
			return State{Kind: StateFailed}
		}
		return State{Kind: StateWaiting, Attempt: s.Attempt + 1, Delay: p.RetryDelay}
	}
}

func Resume(s State) State {
	if s.Kind != StateWaiting {
		return s
	}
	return State{Kind: StateAttempting, Attempt: s.Attempt}
}
