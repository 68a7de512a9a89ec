// Package model defines the core domain types shared across the market engine.
// All monetary values use shopspring/decimal, never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Phase is the lifecycle state of a market. Only terminal phases are stored;
// Open vs AwaitingResolution is derived from endTime at read time.
type Phase string

const (
	PhaseOpen               Phase = "open"
	PhaseAwaitingResolution Phase = "awaiting_resolution"
	PhaseResolved           Phase = "resolved"
	PhaseRefunded           Phase = "refunded"
)

// Market is the authoritative record for one prediction market. It is owned
// by the engine and mutated only under its lock.
type Market struct {
	ID        uint64    `json:"id"`
	Subject   string    `json:"subject"`
	Creator   string    `json:"creator"`
	CreatedAt time.Time `json:"created_at"`
	EndTime   time.Time `json:"end_time"`

	// TotalPool is the sum of stakes over non-refunded submissions.
	// Claims do not reduce it; refunds do.
	TotalPool decimal.Decimal `json:"total_pool"`

	// Terminal is empty until the market reaches Resolved or Refunded.
	Terminal            Phase  `json:"terminal,omitempty"`
	WinningSubmissionID uint64 `json:"winning_submission_id,omitempty"`
	ActualText          string `json:"actual_text,omitempty"`
	WinningDistance     int    `json:"winning_distance,omitempty"`

	// SubmissionIDs preserves insertion order. The order is load-bearing:
	// resolution breaks distance ties in favor of the earlier submission.
	SubmissionIDs []uint64 `json:"submission_ids"`

	// Lifetime accounting, used by the conservation audit.
	StakedTotal   decimal.Decimal `json:"staked_total"`
	PaidOut       decimal.Decimal `json:"paid_out"`
	FeesAccrued   decimal.Decimal `json:"fees_accrued"`
	RefundedTotal decimal.Decimal `json:"refunded_total"`
}

// PhaseAt returns the market's phase as observed at the given time.
func (m *Market) PhaseAt(now time.Time) Phase {
	if m.Terminal != "" {
		return m.Terminal
	}
	if !now.Before(m.EndTime) {
		return PhaseAwaitingResolution
	}
	return PhaseOpen
}

// Submission is an immutable staked prediction. Only the Claimed and
// Refunded flags change after creation, each at most once, false to true.
type Submission struct {
	ID        uint64          `json:"id"`
	MarketID  uint64          `json:"market_id"`
	Submitter string          `json:"submitter"`
	Text      string          `json:"text"`
	Stake     decimal.Decimal `json:"stake"`
	Claimed   bool            `json:"claimed"`
	Refunded  bool            `json:"refunded"`
	CreatedAt time.Time       `json:"created_at"`
}

// MarketView is the read-only snapshot returned to callers. Phase is
// computed at snapshot time and may differ between reads of the same market.
type MarketView struct {
	ID                  uint64          `json:"id"`
	Subject             string          `json:"subject"`
	Creator             string          `json:"creator"`
	Phase               Phase           `json:"phase"`
	CreatedAt           time.Time       `json:"created_at"`
	EndTime             time.Time       `json:"end_time"`
	TotalPool           decimal.Decimal `json:"total_pool"`
	SubmissionCount     int             `json:"submission_count"`
	WinningSubmissionID uint64          `json:"winning_submission_id,omitempty"`
	ActualText          string          `json:"actual_text,omitempty"`
	WinningDistance     int             `json:"winning_distance,omitempty"`
}

// SubmissionView is the read-only snapshot of one submission.
type SubmissionView struct {
	ID        uint64          `json:"id"`
	MarketID  uint64          `json:"market_id"`
	Submitter string          `json:"submitter"`
	Text      string          `json:"text"`
	Stake     decimal.Decimal `json:"stake"`
	Claimed   bool            `json:"claimed"`
	Refunded  bool            `json:"refunded"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditReport is the per-market conservation check. Outstanding is the value
// the engine still owes on the market: staked minus everything that left
// (payouts, fees, refunds). Balanced is false if any identity is violated.
type AuditReport struct {
	MarketID      uint64          `json:"market_id"`
	Phase         Phase           `json:"phase"`
	StakedTotal   decimal.Decimal `json:"staked_total"`
	TotalPool     decimal.Decimal `json:"total_pool"`
	PaidOut       decimal.Decimal `json:"paid_out"`
	FeesAccrued   decimal.Decimal `json:"fees_accrued"`
	RefundedTotal decimal.Decimal `json:"refunded_total"`
	Outstanding   decimal.Decimal `json:"outstanding"`
	Balanced      bool            `json:"balanced"`
}

// EventType identifies the kind of an append-only journal record.
type EventType string

const (
	EventMarketCreated            EventType = "market_created"
	EventSubmissionCreated        EventType = "submission_created"
	EventMarketResolved           EventType = "market_resolved"
	EventPayoutClaimed            EventType = "payout_claimed"
	EventSingleSubmissionRefunded EventType = "single_submission_refunded"
	EventFeesWithdrawn            EventType = "fees_withdrawn"
	EventEmergencyRefunded        EventType = "emergency_refunded"
	EventEnginePaused             EventType = "engine_paused"
	EventEngineResumed            EventType = "engine_resumed"
)

// Event is an immutable journal record. Once appended, events are never
// modified or deleted. The engine rebuilds its entire state by replaying
// them in Seq order, so every field an apply step needs is carried here.
//
// Field use by type:
//   - market_created: MarketID, Account (creator), Subject, EndTime
//   - submission_created: MarketID, SubmissionID, Account (submitter), Text, Amount (stake)
//   - market_resolved: MarketID, SubmissionID (winner), Text (actual), Distance
//   - payout_claimed: MarketID, SubmissionID, Account (submitter), Amount (payout), Fee
//   - single_submission_refunded: MarketID, SubmissionID, Account, Amount
//   - fees_withdrawn: Account (recipient), Amount
//   - emergency_refunded: MarketID, Amount (total refunded), Distance unused
//   - engine_paused / engine_resumed: Account (operator)
type Event struct {
	ID           string          `json:"id" db:"id"`
	Seq          uint64          `json:"seq" db:"seq"`
	Type         EventType       `json:"type" db:"type"`
	MarketID     uint64          `json:"market_id,omitempty" db:"market_id"`
	SubmissionID uint64          `json:"submission_id,omitempty" db:"submission_id"`
	Account      string          `json:"account,omitempty" db:"account"`
	Subject      string          `json:"subject,omitempty" db:"subject"`
	Text         string          `json:"text,omitempty" db:"text"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Fee          decimal.Decimal `json:"fee" db:"fee"`
	Distance     int             `json:"distance,omitempty" db:"distance"`
	EndTime      time.Time       `json:"end_time" db:"end_time"`
	At           time.Time       `json:"at" db:"occurred_at"`
}
