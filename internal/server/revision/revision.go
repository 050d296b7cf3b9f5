// Package revision is the lifecycle of an application's document set.
//
//	pending -> submitted -> revision_submitted -> accepted | rejected
//
// A revision may be resubmitted any number of times, and a first submission
// may be decided directly.
package revision

import (
	"fmt"

	"github.com/dmitrijs2005/recdocs/internal/common"
)

type Status string

const (
	Pending           Status = "pending"
	Submitted         Status = "submitted"
	RevisionSubmitted Status = "revision_submitted"
	Accepted          Status = "accepted"
	Rejected          Status = "rejected"
)

type Event string

const (
	Submit Event = "submit"
	Accept Event = "accept"
	Reject Event = "reject"
)

var transitions = map[Status]map[Event]Status{
	Pending: {
		Submit: Submitted,
	},
	Submitted: {
		Submit: RevisionSubmitted,
		Accept: Accepted,
		Reject: Rejected,
	},
	RevisionSubmitted: {
		Submit: RevisionSubmitted,
		Accept: Accepted,
		Reject: Rejected,
	},
}

// Next returns the status reached from current on event, or
// common.ErrInvalidTransition. An empty current status is treated as Pending.
func Next(current Status, event Event) (Status, error) {
	if current == "" {
		current = Pending
	}
	next, ok := transitions[current][event]
	if !ok {
		return current, fmt.Errorf("%s on %s: %w", event, current, common.ErrInvalidTransition)
	}
	return next, nil
}

// Terminal reports whether no further event is accepted in s.
func Terminal(s Status) bool {
	return len(transitions[s]) == 0
}

// Parse validates a stored status string.
func Parse(s string) (Status, error) {
	switch st := Status(s); st {
	case Pending, Submitted, RevisionSubmitted, Accepted, Rejected:
		return st, nil
	case "":
		return Pending, nil
	default:
		return "", fmt.Errorf("unknown status %q: %w", s, common.ErrBadRequest)
	}
}
