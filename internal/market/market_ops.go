package market

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sayso/market-engine/internal/model"
)

// CreateMarket opens a new market for predictions about the given subject.
// The market accepts submissions until BettingCutoff before its end time.
func (e *Engine) CreateMarket(ctx context.Context, creator, subject string, duration time.Duration) (model.MarketView, error) {
	if e.breaker.Paused() {
		return model.MarketView{}, ErrEnginePaused
	}
	if creator == "" {
		return model.MarketView{}, ErrInvalidAccount
	}
	if subject == "" || len(subject) > e.cfg.MaxTextLength {
		return model.MarketView{}, ErrInvalidSubject
	}
	if duration < e.cfg.MinDuration || duration > e.cfg.MaxDuration {
		return model.MarketView{}, ErrInvalidDuration
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ev := e.newEvent(model.EventMarketCreated)
	ev.MarketID = e.lastMarketID + 1
	ev.Account = creator
	ev.Subject = subject
	ev.EndTime = ev.At.Add(duration)

	if err := e.commit(ctx, ev); err != nil {
		return model.MarketView{}, err
	}

	slog.Info("market created",
		"market_id", ev.MarketID,
		"creator", creator,
		"subject", subject,
		"end_time", ev.EndTime,
	)

	return e.marketView(e.markets[ev.MarketID]), nil
}

// CreateSubmission stakes a prediction on an open market. The stake joins
// the market's pool; the submission's position in insertion order is the
// tie-break key at resolution.
func (e *Engine) CreateSubmission(ctx context.Context, submitter string, marketID uint64, text string, stake decimal.Decimal) (model.SubmissionView, error) {
	if e.breaker.Paused() {
		return model.SubmissionView{}, ErrEnginePaused
	}
	if submitter == "" {
		return model.SubmissionView{}, ErrInvalidAccount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.markets[marketID]
	if !ok {
		return model.SubmissionView{}, ErrMarketNotFound
	}

	now := e.now()
	if m.PhaseAt(now) != model.PhaseOpen {
		return model.SubmissionView{}, ErrMarketClosed
	}
	if !now.Before(m.EndTime.Add(-e.cfg.BettingCutoff)) {
		return model.SubmissionView{}, ErrBettingCutoffPassed
	}
	if stake.LessThan(e.cfg.MinStake) {
		return model.SubmissionView{}, ErrStakeTooLow
	}
	if len(text) > e.cfg.MaxTextLength {
		return model.SubmissionView{}, ErrTextTooLong
	}
	if _, dup := e.textSeen[marketID][text]; dup {
		return model.SubmissionView{}, ErrDuplicateSubmission
	}

	ev := e.newEvent(model.EventSubmissionCreated)
	ev.MarketID = marketID
	ev.SubmissionID = e.lastSubmissionID + 1
	ev.Account = submitter
	ev.Text = text
	ev.Amount = stake

	if err := e.commit(ctx, ev); err != nil {
		return model.SubmissionView{}, err
	}

	slog.Info("submission created",
		"submission_id", ev.SubmissionID,
		"market_id", marketID,
		"submitter", submitter,
		"stake", stake.String(),
		"pool", m.TotalPool.String(),
	)

	return submissionView(e.subs[ev.SubmissionID]), nil
}
