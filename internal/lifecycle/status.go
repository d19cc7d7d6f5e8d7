package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the state of a thesis application.
type Status string

const (
	Pending             Status = "pending"
	Accepted            Status = "accepted"
	Rejected            Status = "rejected"
	Canceled            Status = "canceled"
	ConclusionRequested Status = "conclusion_requested"
	ConclusionAccepted  Status = "conclusion_accepted"
	Done                Status = "done"
)

// ErrUnknownStatus is returned by Parse for values outside the enumeration.
var ErrUnknownStatus = errors.New("unknown thesis application status")

// transitions lists, for every status, the statuses it may move to.
// Statuses without an entry are terminal.
var transitions = map[Status][]Status{
	Pending:             {Accepted, Rejected, Canceled},
	Accepted:            {ConclusionRequested},
	ConclusionRequested: {ConclusionAccepted},
	ConclusionAccepted:  {Done},
}

var all = []Status{Pending, Accepted, Rejected, Canceled, ConclusionRequested, ConclusionAccepted, Done}

// All returns every known status in lifecycle order.
func All() []Status {
	out := make([]Status, len(all))
	copy(out, all)
	return out
}

// Terminal returns the statuses from which no further transition occurs.
func Terminal() []Status {
	return []Status{Rejected, Canceled, Done}
}

// Parse converts raw input into a Status. Surrounding spaces and case are ignored.
func Parse(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	for _, known := range all {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s ends the lifecycle.
func (s Status) IsTerminal() bool {
	return s == Rejected || s == Canceled || s == Done
}

// Next returns the statuses reachable from s in one step.
func (s Status) Next() []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
