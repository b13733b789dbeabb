// Package fsm enforces the complaint status lifecycle. Every status change in
// the system goes through Apply; nothing else assigns Status directly.
package fsm

import (
	"fmt"
	"sort"
	"time"

	"github.com/jonesrussell/complaint-engine/internal/domain"
)

// transitions holds the legal status edges.
var transitions = map[domain.Status]map[domain.Status]struct{}{
	domain.StatusSubmitted: {
		domain.StatusUnderReview: {},
	},
	domain.StatusUnderReview: {
		domain.StatusInProgress: {},
		domain.StatusRejected:   {},
	},
	domain.StatusInProgress: {
		domain.StatusResolved:    {},
		domain.StatusUnderReview: {}, // reopened for reassessment
	},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to domain.Status) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// AllowedFrom returns the legal next statuses from the given state, sorted
// for stable error payloads. Terminal states return nil.
func AllowedFrom(from domain.Status) []domain.Status {
	next, ok := transitions[from]
	if !ok {
		return nil
	}
	out := make([]domain.Status, 0, len(next))
	for s := range next {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Apply validates the edge and performs the transition, appending to the
// complaint's history. Fails with domain.ErrTerminalState from resolved or
// rejected, domain.ErrIllegalTransition for any other edge outside the table.
func Apply(c *domain.Complaint, to domain.Status, actor string, at time.Time) error {
	if c.Status.Terminal() {
		return fmt.Errorf("cannot leave %s: %w", c.Status, domain.ErrTerminalState)
	}
	if !CanTransition(c.Status, to) {
		return fmt.Errorf("%s -> %s: %w", c.Status, to, domain.ErrIllegalTransition)
	}

	c.Status = to
	c.UpdatedAt = at
	c.History = append(c.History, domain.Transition{
		Status: to,
		Actor:  actor,
		At:     at,
	})

	return nil
}
