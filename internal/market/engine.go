// Package market implements the resolution and fund-custody engine: a
// single-writer actor that owns every market, submission, pooled stake, and
// accrued fee balance. Mutations are serialized behind one lock, validated
// up front, journaled, and only then applied, so each operation either fully
// succeeds or leaves the ledger untouched.
//
// Durability comes from the append-only event journal: the full engine state
// is rebuilt deterministically by replaying it at boot. Time never advances
// inside the engine; every operation compares stored timestamps against an
// injected clock, which keeps the engine timer-free and testable.
//
// All monetary values use shopspring/decimal, never float64 for money.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sayso/market-engine/internal/guard"
	"github.com/sayso/market-engine/internal/model"
	"github.com/sayso/market-engine/internal/store"
)

// Config holds the engine constants. They are fixed at boot and never
// mutated at runtime.
type Config struct {
	// FeeRateBps is the platform fee in basis points taken from the pool
	// when the winner claims (700 = 7%).
	FeeRateBps int64

	// MinStake is the minimum stake per submission.
	MinStake decimal.Decimal

	// BettingCutoff is the window before a market's end time during which
	// new submissions are rejected.
	BettingCutoff time.Duration

	// MinSubmissions is the minimum number of submissions required to
	// resolve a market. Below it the refund paths are the only exits.
	MinSubmissions int

	// MaxTextLength caps submission and actual text length in bytes. The
	// cap bounds the cost of a resolution pass.
	MaxTextLength int

	// EmergencyDelay is how long after a market's end time the emergency
	// refund path stays locked.
	EmergencyDelay time.Duration

	// MinDuration and MaxDuration bound the lifetime of a new market.
	MinDuration time.Duration
	MaxDuration time.Duration

	// Operator resolves markets, triggers emergency refunds, and toggles
	// the circuit breaker. FeeRecipient accrues and withdraws fees.
	Operator     string
	FeeRecipient string
}

// DefaultConfig returns the deployment defaults.
func DefaultConfig() Config {
	return Config{
		FeeRateBps:     700,
		MinStake:       decimal.NewFromFloat(0.01),
		BettingCutoff:  time.Hour,
		MinSubmissions: 2,
		MaxTextLength:  280,
		EmergencyDelay: 7 * 24 * time.Hour,
		MinDuration:    time.Hour,
		MaxDuration:    30 * 24 * time.Hour,
	}
}

// EventSink receives every committed event. Publish must not block; the
// engine calls it while holding its lock.
type EventSink interface {
	Publish(ev model.Event)
}

// Engine owns the authoritative market state. All mutating operations are
// serialized; reads observe consistent snapshots.
type Engine struct {
	cfg     Config
	roles   guard.Roles
	breaker guard.Switch
	journal store.Journal
	sink    EventSink
	now     func() time.Time

	mu          sync.RWMutex
	markets     map[uint64]*model.Market
	marketOrder []uint64
	subs        map[uint64]*model.Submission
	textSeen    map[uint64]map[string]struct{}
	fees        map[string]decimal.Decimal

	lastMarketID     uint64
	lastSubmissionID uint64
	seq              uint64
}

// NewEngine creates an engine backed by the given journal. Pass nil for sink
// if event broadcasting is not needed. Call Restore before serving traffic
// when the journal may hold prior state.
func NewEngine(cfg Config, journal store.Journal, sink EventSink) *Engine {
	return &Engine{
		cfg:      cfg,
		roles:    guard.Roles{Operator: cfg.Operator, FeeRecipient: cfg.FeeRecipient},
		journal:  journal,
		sink:     sink,
		now:      func() time.Time { return time.Now().UTC() },
		markets:  make(map[uint64]*model.Market),
		subs:     make(map[uint64]*model.Submission),
		textSeen: make(map[uint64]map[string]struct{}),
		fees:     make(map[string]decimal.Decimal),
	}
}

// SetClock replaces the engine's time source. Test hook; not for runtime use.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// Restore replays the journal and rebuilds the full engine state. It must
// complete before the engine serves operations.
func (e *Engine) Restore(ctx context.Context) error {
	events, err := e.journal.Events(ctx)
	if err != nil {
		return fmt.Errorf("market: load journal: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range events {
		ev := &events[i]
		if ev.Seq <= e.seq {
			return fmt.Errorf("market: journal not in seq order at seq %d", ev.Seq)
		}
		e.seq = ev.Seq
		e.apply(ev)
	}

	slog.Info("engine state restored",
		"events", len(events),
		"markets", len(e.markets),
		"submissions", len(e.subs),
	)
	return nil
}

// newEvent allocates the next journal record. Caller must hold the write lock.
func (e *Engine) newEvent(typ model.EventType) *model.Event {
	return &model.Event{
		ID:     uuid.New().String(),
		Seq:    e.seq + 1,
		Type:   typ,
		Amount: decimal.Zero,
		Fee:    decimal.Zero,
		At:     e.now(),
	}
}

// commit appends the event to the journal and, only on success, applies it
// to in-memory state and publishes it. A failed append changes nothing.
// Caller must hold the write lock.
func (e *Engine) commit(ctx context.Context, ev *model.Event) error {
	if err := e.journal.Append(ctx, ev); err != nil {
		return fmt.Errorf("market: journal append: %w", err)
	}

	e.seq = ev.Seq
	e.apply(ev)

	if e.sink != nil {
		e.sink.Publish(*ev)
	}
	return nil
}

// apply mutates state from one event. Shared between the live path and
// journal replay, so it must be deterministic and must not fail: every
// precondition was checked (live) or is implied by journal order (replay).
func (e *Engine) apply(ev *model.Event) {
	switch ev.Type {
	case model.EventMarketCreated:
		e.applyMarketCreated(ev)
	case model.EventSubmissionCreated:
		e.applySubmissionCreated(ev)
	case model.EventMarketResolved:
		e.applyMarketResolved(ev)
	case model.EventPayoutClaimed:
		e.applyPayoutClaimed(ev)
	case model.EventSingleSubmissionRefunded:
		e.applySingleSubmissionRefunded(ev)
	case model.EventFeesWithdrawn:
		e.applyFeesWithdrawn(ev)
	case model.EventEmergencyRefunded:
		e.applyEmergencyRefunded(ev)
	case model.EventEnginePaused:
		e.breaker.Pause()
	case model.EventEngineResumed:
		e.breaker.Resume()
	}
}

func (e *Engine) applyMarketCreated(ev *model.Event) {
	m := &model.Market{
		ID:            ev.MarketID,
		Subject:       ev.Subject,
		Creator:       ev.Account,
		CreatedAt:     ev.At,
		EndTime:       ev.EndTime,
		TotalPool:     decimal.Zero,
		StakedTotal:   decimal.Zero,
		PaidOut:       decimal.Zero,
		FeesAccrued:   decimal.Zero,
		RefundedTotal: decimal.Zero,
	}
	e.markets[m.ID] = m
	e.marketOrder = append(e.marketOrder, m.ID)
	e.textSeen[m.ID] = make(map[string]struct{})
	if ev.MarketID > e.lastMarketID {
		e.lastMarketID = ev.MarketID
	}
}

func (e *Engine) applySubmissionCreated(ev *model.Event) {
	s := &model.Submission{
		ID:        ev.SubmissionID,
		MarketID:  ev.MarketID,
		Submitter: ev.Account,
		Text:      ev.Text,
		Stake:     ev.Amount,
		CreatedAt: ev.At,
	}
	e.subs[s.ID] = s

	m := e.markets[ev.MarketID]
	m.SubmissionIDs = append(m.SubmissionIDs, s.ID)
	m.TotalPool = m.TotalPool.Add(ev.Amount)
	m.StakedTotal = m.StakedTotal.Add(ev.Amount)
	e.textSeen[m.ID][ev.Text] = struct{}{}

	if ev.SubmissionID > e.lastSubmissionID {
		e.lastSubmissionID = ev.SubmissionID
	}
}

func (e *Engine) applyMarketResolved(ev *model.Event) {
	m := e.markets[ev.MarketID]
	m.Terminal = model.PhaseResolved
	m.WinningSubmissionID = ev.SubmissionID
	m.ActualText = ev.Text
	m.WinningDistance = ev.Distance
}

func (e *Engine) applyPayoutClaimed(ev *model.Event) {
	s := e.subs[ev.SubmissionID]
	s.Claimed = true

	m := e.markets[ev.MarketID]
	m.PaidOut = m.PaidOut.Add(ev.Amount)
	m.FeesAccrued = m.FeesAccrued.Add(ev.Fee)

	e.fees[e.cfg.FeeRecipient] = e.fees[e.cfg.FeeRecipient].Add(ev.Fee)
}

func (e *Engine) applySingleSubmissionRefunded(ev *model.Event) {
	s := e.subs[ev.SubmissionID]
	s.Refunded = true

	m := e.markets[ev.MarketID]
	m.TotalPool = m.TotalPool.Sub(s.Stake)
	m.RefundedTotal = m.RefundedTotal.Add(s.Stake)
	m.Terminal = model.PhaseRefunded
}

func (e *Engine) applyFeesWithdrawn(ev *model.Event) {
	delete(e.fees, ev.Account)
}

func (e *Engine) applyEmergencyRefunded(ev *model.Event) {
	m := e.markets[ev.MarketID]
	for _, id := range m.SubmissionIDs {
		s := e.subs[id]
		if s.Claimed || s.Refunded {
			continue
		}
		s.Refunded = true
		m.TotalPool = m.TotalPool.Sub(s.Stake)
		m.RefundedTotal = m.RefundedTotal.Add(s.Stake)
	}
	m.Terminal = model.PhaseRefunded
}

// --- Read-only queries ---

// Market returns a snapshot of one market.
func (e *Engine) Market(id uint64) (model.MarketView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, ok := e.markets[id]
	if !ok {
		return model.MarketView{}, ErrMarketNotFound
	}
	return e.marketView(m), nil
}

// Markets returns snapshots of every market in creation order.
func (e *Engine) Markets() []model.MarketView {
	e.mu.RLock()
	defer e.mu.RUnlock()

	views := make([]model.MarketView, 0, len(e.marketOrder))
	for _, id := range e.marketOrder {
		views = append(views, e.marketView(e.markets[id]))
	}
	return views
}

// Submission returns a snapshot of one submission.
func (e *Engine) Submission(id uint64) (model.SubmissionView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.subs[id]
	if !ok {
		return model.SubmissionView{}, ErrSubmissionNotFound
	}
	return submissionView(s), nil
}

// Submissions returns a market's submissions in insertion order.
func (e *Engine) Submissions(marketID uint64) ([]model.SubmissionView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, ok := e.markets[marketID]
	if !ok {
		return nil, ErrMarketNotFound
	}

	views := make([]model.SubmissionView, 0, len(m.SubmissionIDs))
	for _, id := range m.SubmissionIDs {
		views = append(views, submissionView(e.subs[id]))
	}
	return views, nil
}

// PendingFees returns the accrued, withdrawable fee balance for a recipient.
func (e *Engine) PendingFees(recipient string) decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if bal, ok := e.fees[recipient]; ok {
		return bal
	}
	return decimal.Zero
}

// Paused reports the circuit breaker state.
func (e *Engine) Paused() bool {
	return e.breaker.Paused()
}

// MaxTextLength returns the configured text size cap in bytes.
func (e *Engine) MaxTextLength() int {
	return e.cfg.MaxTextLength
}

// ActiveMarketCount returns the number of markets not yet in a terminal
// phase. Used to seed the open-markets gauge after a restore.
func (e *Engine) ActiveMarketCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for _, m := range e.markets {
		if m.Terminal == "" {
			n++
		}
	}
	return n
}

// AuditMarket re-derives the conservation identities for one market:
// the live pool must equal the sum of non-refunded stakes, and everything
// that ever left the market (payouts, fees, refunds) plus what is still
// outstanding must equal everything staked into it.
func (e *Engine) AuditMarket(id uint64) (model.AuditReport, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, ok := e.markets[id]
	if !ok {
		return model.AuditReport{}, ErrMarketNotFound
	}

	live := decimal.Zero
	for _, sid := range m.SubmissionIDs {
		if s := e.subs[sid]; !s.Refunded {
			live = live.Add(s.Stake)
		}
	}

	outstanding := m.StakedTotal.Sub(m.PaidOut).Sub(m.FeesAccrued).Sub(m.RefundedTotal)

	balanced := live.Equal(m.TotalPool) &&
		m.StakedTotal.Equal(m.TotalPool.Add(m.RefundedTotal)) &&
		!outstanding.IsNegative()

	return model.AuditReport{
		MarketID:      m.ID,
		Phase:         m.PhaseAt(e.now()),
		StakedTotal:   m.StakedTotal,
		TotalPool:     m.TotalPool,
		PaidOut:       m.PaidOut,
		FeesAccrued:   m.FeesAccrued,
		RefundedTotal: m.RefundedTotal,
		Outstanding:   outstanding,
		Balanced:      balanced,
	}, nil
}

// --- View builders (callers hold at least the read lock) ---

func (e *Engine) marketView(m *model.Market) model.MarketView {
	return model.MarketView{
		ID:                  m.ID,
		Subject:             m.Subject,
		Creator:             m.Creator,
		Phase:               m.PhaseAt(e.now()),
		CreatedAt:           m.CreatedAt,
		EndTime:             m.EndTime,
		TotalPool:           m.TotalPool,
		SubmissionCount:     len(m.SubmissionIDs),
		WinningSubmissionID: m.WinningSubmissionID,
		ActualText:          m.ActualText,
		WinningDistance:     m.WinningDistance,
	}
}

func submissionView(s *model.Submission) model.SubmissionView {
	return model.SubmissionView{
		ID:        s.ID,
		MarketID:  s.MarketID,
		Submitter: s.Submitter,
		Text:      s.Text,
		Stake:     s.Stake,
		Claimed:   s.Claimed,
		Refunded:  s.Refunded,
		CreatedAt: s.CreatedAt,
	}
}
