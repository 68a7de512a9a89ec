package market

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/sayso/market-engine/internal/model"
	"github.com/sayso/market-engine/internal/textdist"
)

// ClaimResult reports a completed payout claim. Payout is the amount owed to
// the submitter; Fee is the slice of the pool credited to the fee recipient.
type ClaimResult struct {
	SubmissionID uint64          `json:"submission_id"`
	MarketID     uint64          `json:"market_id"`
	Submitter    string          `json:"submitter"`
	Payout       decimal.Decimal `json:"payout"`
	Fee          decimal.Decimal `json:"fee"`
}

// RefundResult reports a single-submission refund.
type RefundResult struct {
	MarketID     uint64          `json:"market_id"`
	SubmissionID uint64          `json:"submission_id"`
	Submitter    string          `json:"submitter"`
	Amount       decimal.Decimal `json:"amount"`
}

// WithdrawResult reports a fee withdrawal.
type WithdrawResult struct {
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

// EmergencyResult reports an emergency refund of a whole market.
type EmergencyResult struct {
	MarketID      uint64          `json:"market_id"`
	RefundedTotal decimal.Decimal `json:"refunded_total"`
	Refunds       []RefundResult  `json:"refunds"`
}

// ResolveMarket scores every submission against the actual text and records
// the winner. Only the operator may call it, and only once the market's end
// time has passed. Ties in distance go to the earlier submission.
func (e *Engine) ResolveMarket(ctx context.Context, caller string, marketID uint64, actualText string) (model.MarketView, error) {
	if !e.roles.IsOperator(caller) {
		return model.MarketView{}, ErrUnauthorized
	}
	if len(actualText) > e.cfg.MaxTextLength {
		return model.MarketView{}, ErrTextTooLong
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.markets[marketID]
	if !ok {
		return model.MarketView{}, ErrMarketNotFound
	}
	if m.Terminal != "" {
		return model.MarketView{}, ErrAlreadyResolved
	}
	if e.now().Before(m.EndTime) {
		return model.MarketView{}, ErrNotEnded
	}
	if len(m.SubmissionIDs) < e.cfg.MinSubmissions {
		return model.MarketView{}, ErrInsufficientSubmissions
	}

	// Scan in insertion order; only a strict improvement replaces the
	// current best, so the earliest submission wins exact ties.
	var winnerID uint64
	best := -1
	for _, id := range m.SubmissionIDs {
		dist := textdist.Distance(e.subs[id].Text, actualText)
		if best < 0 || dist < best {
			best = dist
			winnerID = id
		}
	}

	ev := e.newEvent(model.EventMarketResolved)
	ev.MarketID = marketID
	ev.SubmissionID = winnerID
	ev.Text = actualText
	ev.Distance = best

	if err := e.commit(ctx, ev); err != nil {
		return model.MarketView{}, err
	}

	slog.Info("market resolved",
		"market_id", marketID,
		"winner_submission_id", winnerID,
		"winning_distance", best,
		"submissions", len(m.SubmissionIDs),
		"pool", m.TotalPool.String(),
	)

	return e.marketView(m), nil
}

// ClaimPayout pays the winning submission: the full pool minus the platform
// fee goes to the submitter, the fee accrues to the fee recipient's pull
// balance. Anyone may trigger the claim; the payout always goes to the
// recorded submitter. A submission is claimable exactly once.
func (e *Engine) ClaimPayout(ctx context.Context, submissionID uint64) (ClaimResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.subs[submissionID]
	if !ok {
		return ClaimResult{}, ErrSubmissionNotFound
	}

	m := e.markets[s.MarketID]
	if m.Terminal != model.PhaseResolved {
		return ClaimResult{}, ErrMarketNotResolved
	}
	if submissionID != m.WinningSubmissionID {
		return ClaimResult{}, ErrNotWinner
	}
	if s.Claimed {
		return ClaimResult{}, ErrAlreadyClaimed
	}

	feeRate := decimal.NewFromInt(e.cfg.FeeRateBps).Div(decimal.NewFromInt(10000))
	payout := m.TotalPool.Mul(decimal.NewFromInt(1).Sub(feeRate))
	fee := m.TotalPool.Sub(payout)

	ev := e.newEvent(model.EventPayoutClaimed)
	ev.MarketID = m.ID
	ev.SubmissionID = submissionID
	ev.Account = s.Submitter
	ev.Amount = payout
	ev.Fee = fee

	if err := e.commit(ctx, ev); err != nil {
		return ClaimResult{}, err
	}

	slog.Info("payout claimed",
		"submission_id", submissionID,
		"market_id", m.ID,
		"submitter", s.Submitter,
		"payout", payout.String(),
		"fee", fee.String(),
	)

	return ClaimResult{
		SubmissionID: submissionID,
		MarketID:     m.ID,
		Submitter:    s.Submitter,
		Payout:       payout,
		Fee:          fee,
	}, nil
}

// RefundSingleSubmission returns the sole submitter's full stake with no fee
// and closes the market. It is the only legal exit for a market that ends
// with exactly one submission.
func (e *Engine) RefundSingleSubmission(ctx context.Context, marketID uint64) (RefundResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.markets[marketID]
	if !ok {
		return RefundResult{}, ErrMarketNotFound
	}
	if m.Terminal != "" {
		return RefundResult{}, ErrAlreadyResolved
	}
	if len(m.SubmissionIDs) != 1 {
		return RefundResult{}, ErrNotSingleSubmission
	}

	s := e.subs[m.SubmissionIDs[0]]

	ev := e.newEvent(model.EventSingleSubmissionRefunded)
	ev.MarketID = marketID
	ev.SubmissionID = s.ID
	ev.Account = s.Submitter
	ev.Amount = s.Stake

	if err := e.commit(ctx, ev); err != nil {
		return RefundResult{}, err
	}

	slog.Info("single submission refunded",
		"market_id", marketID,
		"submission_id", s.ID,
		"submitter", s.Submitter,
		"amount", s.Stake.String(),
	)

	return RefundResult{
		MarketID:     marketID,
		SubmissionID: s.ID,
		Submitter:    s.Submitter,
		Amount:       s.Stake,
	}, nil
}

// WithdrawFees transfers the caller's full accrued fee balance and zeroes
// it. Only the fee recipient may call it.
func (e *Engine) WithdrawFees(ctx context.Context, caller string) (WithdrawResult, error) {
	if !e.roles.IsFeeRecipient(caller) {
		return WithdrawResult{}, ErrUnauthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	bal, ok := e.fees[caller]
	if !ok || bal.IsZero() {
		return WithdrawResult{}, ErrNoFeesPending
	}

	ev := e.newEvent(model.EventFeesWithdrawn)
	ev.Account = caller
	ev.Amount = bal

	if err := e.commit(ctx, ev); err != nil {
		return WithdrawResult{}, err
	}

	slog.Info("fees withdrawn", "recipient", caller, "amount", bal.String())

	return WithdrawResult{Recipient: caller, Amount: bal}, nil
}

// EmergencyWithdraw refunds every submitter of a market the resolver never
// acted on. It unlocks EmergencyDelay after the market's end time and is the
// terminal safety valve: afterwards the market is Refunded and resolution is
// permanently impossible.
func (e *Engine) EmergencyWithdraw(ctx context.Context, caller string, marketID uint64) (EmergencyResult, error) {
	if !e.roles.IsOperator(caller) {
		return EmergencyResult{}, ErrUnauthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.markets[marketID]
	if !ok {
		return EmergencyResult{}, ErrMarketNotFound
	}
	if m.Terminal != "" {
		return EmergencyResult{}, ErrAlreadyResolved
	}
	if e.now().Before(m.EndTime.Add(e.cfg.EmergencyDelay)) {
		return EmergencyResult{}, ErrEmergencyNotReady
	}

	refunds := make([]RefundResult, 0, len(m.SubmissionIDs))
	total := decimal.Zero
	for _, id := range m.SubmissionIDs {
		s := e.subs[id]
		if s.Claimed || s.Refunded {
			continue
		}
		refunds = append(refunds, RefundResult{
			MarketID:     marketID,
			SubmissionID: s.ID,
			Submitter:    s.Submitter,
			Amount:       s.Stake,
		})
		total = total.Add(s.Stake)
	}

	ev := e.newEvent(model.EventEmergencyRefunded)
	ev.MarketID = marketID
	ev.Amount = total

	if err := e.commit(ctx, ev); err != nil {
		return EmergencyResult{}, err
	}

	slog.Warn("emergency refund executed",
		"market_id", marketID,
		"refunded_total", total.String(),
		"submitters", len(refunds),
	)

	return EmergencyResult{
		MarketID:      marketID,
		RefundedTotal: total,
		Refunds:       refunds,
	}, nil
}

// Pause trips the circuit breaker. While paused, market and submission
// creation are rejected; resolution, claims, and refunds stay available so
// staked funds are never trapped.
func (e *Engine) Pause(ctx context.Context, caller string) error {
	if !e.roles.IsOperator(caller) {
		return ErrUnauthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.breaker.Paused() {
		return ErrAlreadyPaused
	}

	ev := e.newEvent(model.EventEnginePaused)
	ev.Account = caller

	if err := e.commit(ctx, ev); err != nil {
		return err
	}

	slog.Warn("engine paused", "operator", caller)
	return nil
}

// Resume clears the circuit breaker.
func (e *Engine) Resume(ctx context.Context, caller string) error {
	if !e.roles.IsOperator(caller) {
		return ErrUnauthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.breaker.Paused() {
		return ErrNotPaused
	}

	ev := e.newEvent(model.EventEngineResumed)
	ev.Account = caller

	if err := e.commit(ctx, ev); err != nil {
		return err
	}

	slog.Info("engine resumed", "operator", caller)
	return nil
}
