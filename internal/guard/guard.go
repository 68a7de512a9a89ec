// Package guard implements the access and safety checks wrapped around
// fund-moving operations: role capabilities for the privileged resolver and
// fee recipient, and a pausable circuit breaker.
//
// Roles are fixed identities supplied at deployment. Rotation is delegated
// to the deployment configuration rather than a runtime setter, which keeps
// this engine free of its own access-control mutation surface.
package guard

import "sync/atomic"

// Roles holds the privileged identities recognized by the engine.
type Roles struct {
	// Operator may resolve markets, trigger emergency refunds, and toggle
	// the circuit breaker.
	Operator string

	// FeeRecipient is the only identity allowed to withdraw accrued fees,
	// and the identity fees are credited to.
	FeeRecipient string
}

// IsOperator reports whether caller holds the operator capability.
func (r Roles) IsOperator(caller string) bool {
	return r.Operator != "" && caller == r.Operator
}

// IsFeeRecipient reports whether caller holds the fee recipient capability.
func (r Roles) IsFeeRecipient(caller string) bool {
	return r.FeeRecipient != "" && caller == r.FeeRecipient
}

// Switch is the pausable circuit breaker. While paused, market creation and
// submission creation are rejected; resolution, claims, and refunds remain
// allowed so staked funds are never trapped by a pause.
type Switch struct {
	paused atomic.Bool
}

// Pause trips the breaker. Returns false if it was already paused.
func (s *Switch) Pause() bool {
	return s.paused.CompareAndSwap(false, true)
}

// Resume clears the breaker. Returns false if it was not paused.
func (s *Switch) Resume() bool {
	return s.paused.CompareAndSwap(true, false)
}

// Paused reports the breaker state.
func (s *Switch) Paused() bool {
	return s.paused.Load()
}
