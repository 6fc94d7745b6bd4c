// Package state encodes the order status progression and is the single
// authority on transition validity. Centralizing this here keeps any caller
// (admin handlers, automated jobs, the client dispatcher) from forcing an
// order into an unreachable status.
package state

import (
	"time"

	"chowline/internal/domain"
)

// chain is the happy path. cancelled is a side branch reachable from any
// non-terminal status; delivered and cancelled are terminal.
var chain = []domain.Status{
	domain.StatusPending,
	domain.StatusConfirmed,
	domain.StatusPreparing,
	domain.StatusOutForDelivery,
	domain.StatusDelivered,
}

// Next returns the single successor along the happy-path chain, or false
// when current is terminal or unknown. It drives "advance" actions; the
// server independently validates whatever a caller submits.
func Next(current domain.Status) (domain.Status, bool) {
	for i, s := range chain {
		if s == current && i+1 < len(chain) {
			return chain[i+1], true
		}
	}
	return "", false
}

func IsTerminal(s domain.Status) bool {
	return s == domain.StatusDelivered || s == domain.StatusCancelled
}

// Known reports whether s is one of the defined statuses.
func Known(s domain.Status) bool {
	if s == domain.StatusCancelled {
		return true
	}
	for _, c := range chain {
		if c == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether to is reachable from from: either the
// immediate successor on the chain, or cancelled from a non-terminal state.
func CanTransition(from, to domain.Status) bool {
	if to == domain.StatusCancelled {
		return !IsTerminal(from)
	}
	next, ok := Next(from)
	return ok && next == to
}

// ApplyTransition validates the move and returns a copy of the order with
// the new status and a fresh update timestamp. The input order is not
// modified.
func ApplyTransition(order domain.Order, newStatus domain.Status) (domain.Order, error) {
	if !CanTransition(order.Status, newStatus) {
		return domain.Order{}, &domain.TransitionError{From: order.Status, To: newStatus}
	}
	updated := order
	updated.Status = newStatus
	updated.UpdatedAt = time.Now().UTC()
	return updated, nil
}
