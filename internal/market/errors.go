package market

import "errors"

// Sentinel errors returned by engine operations. Every failure aborts the
// whole operation with no partial state change; callers distinguish kinds
// with errors.Is to pick the corrective action (wait, shorten text, use a
// different account).
var (
	// Resource lookups.
	ErrMarketNotFound     = errors.New("market: market not found")
	ErrSubmissionNotFound = errors.New("market: submission not found")

	// Validation.
	ErrInvalidAccount  = errors.New("market: account identity required")
	ErrInvalidSubject  = errors.New("market: subject must be non-empty and within the length cap")
	ErrInvalidDuration = errors.New("market: duration outside allowed bounds")
	ErrStakeTooLow     = errors.New("market: stake below minimum")
	ErrTextTooLong     = errors.New("market: text exceeds maximum length")

	// Phase and lifecycle.
	ErrMarketClosed            = errors.New("market: market is not open for submissions")
	ErrBettingCutoffPassed     = errors.New("market: betting cutoff has passed")
	ErrNotEnded                = errors.New("market: market has not ended")
	ErrAlreadyResolved         = errors.New("market: market already resolved or refunded")
	ErrInsufficientSubmissions = errors.New("market: not enough submissions to resolve")
	ErrNotSingleSubmission     = errors.New("market: market does not have exactly one submission")
	ErrMarketNotResolved       = errors.New("market: market is not resolved")
	ErrEmergencyNotReady       = errors.New("market: emergency delay has not elapsed")

	// Fund safety.
	ErrDuplicateSubmission = errors.New("market: identical text already submitted for this market")
	ErrNotWinner           = errors.New("market: submission is not the winner")
	ErrAlreadyClaimed      = errors.New("market: payout already claimed")
	ErrNoFeesPending       = errors.New("market: no fees pending")

	// Authorization and breaker.
	ErrUnauthorized  = errors.New("market: caller lacks the required role")
	ErrEnginePaused  = errors.New("market: engine is paused")
	ErrAlreadyPaused = errors.New("market: engine already paused")
	ErrNotPaused     = errors.New("market: engine is not paused")
)
