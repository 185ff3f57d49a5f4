package app

import "time"

// State is a step of the upload protocol.
type State int

const (
	StatePreRequest State = iota
	StateTransfer
	StateStatusCheck
	StateRetry
	StateFinalize
	StateFailed
	StateUnauthorized
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StatePreRequest:
		return "PreRequest"
	case StateTransfer:
		return "Transfer"
	case StateStatusCheck:
		return "StatusCheck"
	case StateRetry:
		return "RetryDecision"
	case StateFinalize:
		return "Finalize"
	case StateFailed:
		return "TerminalFailure"
	case StateUnauthorized:
		return "Unauthorized"
	default:
		return "Unknown"
	}
}

// transition is the result of one protocol step.
type transition struct {
	next State

	// resume is the step to continue with after a retry delay.
	resume State

	// cause describes why a step failed. Nil on progress.
	cause error

	// retryAfter is the server requested delay (429), zero if none.
	retryAfter time.Duration
}

func advance(next State) transition {
	return transition{next: next}
}

func retry(resume State, cause error) transition {
	return transition{next: StateRetry, resume: resume, cause: cause}
}
