package upload

import "fmt"

// OutcomeKind classifies one upload attempt.
type OutcomeKind int

const (
	// Delivered means the server confirmed it stored the report.
	Delivered OutcomeKind = iota
	// Rejected means the server answered but declined the report.
	Rejected
	// TransportFailure covers network errors, timeouts, non-2xx statuses, and unreadable answers.
	TransportFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case Rejected:
		return "rejected"
	case TransportFailure:
		return "transport_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the result of one submission.
type Outcome struct {
	Kind       OutcomeKind
	Message    string
	StatusCode int
	Err        error
}

// Delivered reports whether the server accepted the report.
func (o Outcome) Delivered() bool { return o.Kind == Delivered }

// Detail returns the most specific description available.
func (o Outcome) Detail() string {
	switch {
	case o.Message != "":
		return o.Message
	case o.Err != nil:
		return o.Err.Error()
	case o.StatusCode != 0:
		return fmt.Sprintf("status %d", o.StatusCode)
	default:
		return o.Kind.String()
	}
}

func transportFailure(status int, err error) Outcome {
	return Outcome{Kind: TransportFailure, StatusCode: status, Err: err}
}
