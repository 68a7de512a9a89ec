// Package api exposes the market engine over HTTP: market lifecycle
// operations, settlement, read views, the conservation audit, and the
// WebSocket event stream.
//
// All monetary values use shopspring/decimal — never float64 for money.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sayso/market-engine/internal/market"
	"github.com/sayso/market-engine/internal/metrics"
	"github.com/sayso/market-engine/internal/model"
	"github.com/sayso/market-engine/internal/store"
	"github.com/sayso/market-engine/internal/textdist"
)

// Service handles the HTTP surface of the engine. The engine itself
// serializes mutations; the service adds identity extraction, status
// mapping, view caching, and metrics.
type Service struct {
	eng     *market.Engine
	journal store.Journal
	cache   *store.ViewCache // optional; nil disables view caching
}

// NewService creates a new API service. Pass nil for cache if Redis is not
// configured.
func NewService(eng *market.Engine, journal store.Journal, cache *store.ViewCache) *Service {
	return &Service{eng: eng, journal: journal, cache: cache}
}

// --- Request types ---

// CreateMarketRequest is the JSON body for POST /api/v1/markets.
type CreateMarketRequest struct {
	Subject         string `json:"subject"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// CreateSubmissionRequest is the JSON body for POST /api/v1/submissions.
type CreateSubmissionRequest struct {
	MarketID uint64          `json:"market_id"`
	Text     string          `json:"text"`
	Stake    decimal.Decimal `json:"stake"`
}

// ResolveRequest is the JSON body for POST /api/v1/markets/{marketID}/resolve.
type ResolveRequest struct {
	ActualText string `json:"actual_text"`
}

// --- Handlers ---

// CreateMarket handles POST /api/v1/markets
func (s *Service) CreateMarket(w http.ResponseWriter, r *http.Request) {
	creator, ok := s.requireAccount(w, r)
	if !ok {
		return
	}

	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", "bad_request", http.StatusBadRequest)
		return
	}

	duration := time.Duration(req.DurationSeconds) * time.Second
	v, err := s.eng.CreateMarket(r.Context(), creator, req.Subject, duration)
	if err != nil {
		s.engineError(w, "create_market", err)
		return
	}

	metrics.MarketsCreated.Inc()
	metrics.ActiveMarkets.Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(v)
}

// ListMarkets handles GET /api/v1/markets
// Returns all markets, optionally filtered by ?phase=<phase>.
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets := s.eng.Markets()
	if markets == nil {
		markets = []model.MarketView{}
	}

	if phase := r.URL.Query().Get("phase"); phase != "" {
		filtered := []model.MarketView{}
		for _, m := range markets {
			if string(m.Phase) == phase {
				filtered = append(filtered, m)
			}
		}
		markets = filtered
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(markets)
}

// GetMarket handles GET /api/v1/markets/{marketID}
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "marketID")
	if !ok {
		return
	}
	ctx := r.Context()

	if s.cache != nil {
		if v, hit := s.cache.Market(ctx, id); hit {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(v)
			return
		}
	}

	v, err := s.eng.Market(id)
	if err != nil {
		s.engineError(w, "get_market", err)
		return
	}
	if s.cache != nil {
		s.cache.SetMarket(ctx, &v)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// ListSubmissions handles GET /api/v1/markets/{marketID}/submissions
// Returns submissions in insertion order, the resolution scan order.
func (s *Service) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "marketID")
	if !ok {
		return
	}

	subs, err := s.eng.Submissions(id)
	if err != nil {
		s.engineError(w, "list_submissions", err)
		return
	}
	if subs == nil {
		subs = []model.SubmissionView{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(subs)
}

// MarketEvents handles GET /api/v1/markets/{marketID}/events
// Returns the journal slice for one market, the authoritative history.
func (s *Service) MarketEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "marketID")
	if !ok {
		return
	}

	if _, err := s.eng.Market(id); err != nil {
		s.engineError(w, "market_events", err)
		return
	}

	events, err := s.journal.EventsByMarket(r.Context(), id)
	if err != nil {
		slog.Error("failed to load market events", "market_id", id, "err", err)
		writeError(w, "failed to load events", "internal", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []model.Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

// AuditMarket handles GET /api/v1/markets/{marketID}/audit
// Returns the conservation report for one market.
func (s *Service) AuditMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "marketID")
	if !ok {
		return
	}

	report, err := s.eng.AuditMarket(id)
	if err != nil {
		s.engineError(w, "audit_market", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// Resolve handles POST /api/v1/markets/{marketID}/resolve
func (s *Service) Resolve(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "marketID")
	if !ok {
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", "bad_request", http.StatusBadRequest)
		return
	}

	v, err := s.eng.ResolveMarket(r.Context(), caller, id, req.ActualText)
	if err != nil {
		s.engineError(w, "resolve_market", err)
		return
	}

	metrics.ResolutionsTotal.Inc()
	metrics.ActiveMarkets.Dec()
	s.invalidateMarket(r, id)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Refund handles POST /api/v1/markets/{marketID}/refund
// Refunds the stake of a market's only submission.
func (s *Service) Refund(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "marketID")
	if !ok {
		return
	}

	res, err := s.eng.RefundSingleSubmission(r.Context(), id)
	if err != nil {
		s.engineError(w, "refund_single", err)
		return
	}

	metrics.RefundsTotal.WithLabelValues("single").Inc()
	metrics.ActiveMarkets.Dec()
	s.invalidateMarket(r, id)
	s.invalidateSubmission(r, res.SubmissionID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// EmergencyWithdraw handles POST /api/v1/markets/{marketID}/emergency
// Refunds every unclaimed stake of a stuck market after the time lock.
func (s *Service) EmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "marketID")
	if !ok {
		return
	}

	res, err := s.eng.EmergencyWithdraw(r.Context(), caller, id)
	if err != nil {
		s.engineError(w, "emergency_withdraw", err)
		return
	}

	metrics.RefundsTotal.WithLabelValues("emergency").Add(float64(len(res.Refunds)))
	metrics.ActiveMarkets.Dec()
	s.invalidateMarket(r, id)
	for _, ref := range res.Refunds {
		s.invalidateSubmission(r, ref.SubmissionID)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// CreateSubmission handles POST /api/v1/submissions
func (s *Service) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	submitter, ok := s.requireAccount(w, r)
	if !ok {
		return
	}

	var req CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", "bad_request", http.StatusBadRequest)
		return
	}

	v, err := s.eng.CreateSubmission(r.Context(), submitter, req.MarketID, req.Text, req.Stake)
	if err != nil {
		s.engineError(w, "create_submission", err)
		return
	}

	metrics.SubmissionsTotal.Inc()
	metrics.StakedVolume.Add(req.Stake.InexactFloat64())
	s.invalidateMarket(r, req.MarketID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(v)
}

// GetSubmission handles GET /api/v1/submissions/{submissionID}
func (s *Service) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "submissionID")
	if !ok {
		return
	}
	ctx := r.Context()

	if s.cache != nil {
		if v, hit := s.cache.Submission(ctx, id); hit {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(v)
			return
		}
	}

	v, err := s.eng.Submission(id)
	if err != nil {
		s.engineError(w, "get_submission", err)
		return
	}
	if s.cache != nil {
		s.cache.SetSubmission(ctx, &v)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Claim handles POST /api/v1/submissions/{submissionID}/claim
// Pays the winning submission; the payout goes to the recorded submitter
// regardless of who calls.
func (s *Service) Claim(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "submissionID")
	if !ok {
		return
	}

	res, err := s.eng.ClaimPayout(r.Context(), id)
	if err != nil {
		s.engineError(w, "claim_payout", err)
		return
	}

	metrics.PayoutsClaimed.Inc()
	s.invalidateMarket(r, res.MarketID)
	s.invalidateSubmission(r, id)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// WithdrawFees handles POST /api/v1/fees/withdraw
func (s *Service) WithdrawFees(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAccount(w, r)
	if !ok {
		return
	}

	res, err := s.eng.WithdrawFees(r.Context(), caller)
	if err != nil {
		s.engineError(w, "withdraw_fees", err)
		return
	}

	metrics.FeesWithdrawn.Inc()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// Distance handles GET /api/v1/distance?a=…&b=…
// Exposes the resolution metric for clients that want to preview scores.
func (s *Service) Distance(w http.ResponseWriter, r *http.Request) {
	a := r.URL.Query().Get("a")
	b := r.URL.Query().Get("b")
	if limit := s.eng.MaxTextLength(); len(a) > limit || len(b) > limit {
		writeError(w, "text exceeds maximum length", "text_too_long", http.StatusBadRequest)
		return
	}

	resp := map[string]int{"distance": textdist.Distance(a, b)}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Pause handles POST /api/v1/pause
func (s *Service) Pause(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAccount(w, r)
	if !ok {
		return
	}

	if err := s.eng.Pause(r.Context(), caller); err != nil {
		s.engineError(w, "pause", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "paused"})
}

// Resume handles POST /api/v1/resume
func (s *Service) Resume(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAccount(w, r)
	if !ok {
		return
	}

	if err := s.eng.Resume(r.Context(), caller); err != nil {
		s.engineError(w, "resume", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "running"})
}

// --- Helpers ---

// requireAccount extracts the caller identity or writes a 401.
func (s *Service) requireAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	acct := Account(r.Context())
	if acct == "" {
		writeError(w, "account identity required (X-Account-ID)", "identity_required", http.StatusUnauthorized)
		return "", false
	}
	return acct, true
}

// parseID parses a numeric chi URL parameter or writes a 400.
func parseID(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, "invalid "+name, "bad_request", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Service) invalidateMarket(r *http.Request, id uint64) {
	if s.cache != nil {
		s.cache.InvalidateMarket(r.Context(), id)
	}
}

func (s *Service) invalidateSubmission(r *http.Request, id uint64) {
	if s.cache != nil {
		s.cache.InvalidateSubmission(r.Context(), id)
	}
}

// apiErrors maps engine sentinels to stable machine codes and HTTP statuses.
var apiErrors = []struct {
	err    error
	code   string
	status int
}{
	{market.ErrMarketNotFound, "market_not_found", http.StatusNotFound},
	{market.ErrSubmissionNotFound, "submission_not_found", http.StatusNotFound},
	{market.ErrInvalidAccount, "invalid_account", http.StatusBadRequest},
	{market.ErrInvalidSubject, "invalid_subject", http.StatusBadRequest},
	{market.ErrInvalidDuration, "invalid_duration", http.StatusBadRequest},
	{market.ErrStakeTooLow, "stake_too_low", http.StatusBadRequest},
	{market.ErrTextTooLong, "text_too_long", http.StatusBadRequest},
	{market.ErrMarketClosed, "market_closed", http.StatusConflict},
	{market.ErrBettingCutoffPassed, "betting_cutoff_passed", http.StatusConflict},
	{market.ErrNotEnded, "market_not_ended", http.StatusConflict},
	{market.ErrAlreadyResolved, "already_resolved", http.StatusConflict},
	{market.ErrInsufficientSubmissions, "insufficient_submissions", http.StatusConflict},
	{market.ErrNotSingleSubmission, "not_single_submission", http.StatusConflict},
	{market.ErrMarketNotResolved, "market_not_resolved", http.StatusConflict},
	{market.ErrEmergencyNotReady, "emergency_not_ready", http.StatusConflict},
	{market.ErrDuplicateSubmission, "duplicate_submission", http.StatusConflict},
	{market.ErrNotWinner, "not_winner", http.StatusConflict},
	{market.ErrAlreadyClaimed, "already_claimed", http.StatusConflict},
	{market.ErrNoFeesPending, "no_fees_pending", http.StatusConflict},
	{market.ErrAlreadyPaused, "already_paused", http.StatusConflict},
	{market.ErrNotPaused, "not_paused", http.StatusConflict},
	{market.ErrUnauthorized, "unauthorized", http.StatusForbidden},
	{market.ErrEnginePaused, "engine_paused", http.StatusServiceUnavailable},
}

// engineError maps an engine error onto the HTTP response and counts the
// rejection.
func (s *Service) engineError(w http.ResponseWriter, op string, err error) {
	for _, e := range apiErrors {
		if errors.Is(err, e.err) {
			metrics.RejectedOperations.WithLabelValues(op, e.code).Inc()
			writeError(w, err.Error(), e.code, e.status)
			return
		}
	}
	slog.Error("engine operation failed", "op", op, "err", err)
	writeError(w, "internal error", "internal", http.StatusInternalServerError)
}

// writeError writes a JSON error response with a machine-readable code.
func writeError(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
