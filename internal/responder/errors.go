package responder

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthentication covers signature and receiver id mismatches.
	ErrAuthentication = errors.New("authentication failed")

	// ErrUnroutable means no handler matched. It is never reported to the platform as a failure.
	ErrUnroutable = errors.New("no handler matched")
)

// HandlerError wraps an error returned by an application handler.
type HandlerError struct {
	Kind string
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for %s failed: %v", e.Kind, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// Outcome is the terminal state of one request.
type Outcome int

const (
	// OutcomeRejected: authentication or processing failed; 403 with an empty body.
	OutcomeRejected Outcome = iota
	// OutcomeAccepted: nothing to reply; 200 with an empty body.
	OutcomeAccepted
	// OutcomeReplied: 200 with a body.
	OutcomeReplied
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRejected:
		return "rejected"
	case OutcomeAccepted:
		return "accepted"
	case OutcomeReplied:
		return "replied"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Status returns the HTTP status code for the outcome.
func (o Outcome) Status() int {
	if o == OutcomeRejected {
		return http.StatusForbidden
	}
	return http.StatusOK
}

// Result is what a request resolves to. Err explains a rejection or a
// no-op for logging only and must not be sent to the caller.
type Result struct {
	Outcome Outcome
	Body    []byte
	Err     error
}

func rejected(err error) Result {
	return Result{Outcome: OutcomeRejected, Err: err}
}

func accepted(err error) Result {
	return Result{Outcome: OutcomeAccepted, Err: err}
}
