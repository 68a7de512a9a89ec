package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sayso/market-engine/internal/model"
)

func ev(seq uint64, typ model.EventType, marketID uint64) *model.Event {
	return &model.Event{
		ID:       uuid.New().String(),
		Seq:      seq,
		Type:     typ,
		MarketID: marketID,
		Amount:   decimal.Zero,
		Fee:      decimal.Zero,
		At:       time.Now().UTC(),
	}
}

func TestMemoryJournal_AppendAndReplay(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	if err := j.Append(ctx, ev(1, model.EventMarketCreated, 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := j.Append(ctx, ev(2, model.EventSubmissionCreated, 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := j.Append(ctx, ev(3, model.EventMarketCreated, 2)); err != nil {
		t.Fatalf("append: %v", err)
	}

	events, err := j.Events(ctx)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		if e.Seq != uint64(i+1) {
			t.Errorf("event %d: expected seq %d, got %d", i, i+1, e.Seq)
		}
	}
}

func TestMemoryJournal_RejectsNonMonotonicSeq(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	if err := j.Append(ctx, ev(5, model.EventMarketCreated, 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := j.Append(ctx, ev(5, model.EventSubmissionCreated, 1)); err == nil {
		t.Error("expected error for duplicate seq")
	}
	if err := j.Append(ctx, ev(4, model.EventSubmissionCreated, 1)); err == nil {
		t.Error("expected error for backward seq")
	}

	events, _ := j.Events(ctx)
	if len(events) != 1 {
		t.Errorf("failed appends must leave no trace, got %d events", len(events))
	}
}

func TestMemoryJournal_EventsByMarket(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	j.Append(ctx, ev(1, model.EventMarketCreated, 1))
	j.Append(ctx, ev(2, model.EventMarketCreated, 2))
	j.Append(ctx, ev(3, model.EventSubmissionCreated, 1))
	// Engine-level event, belongs to no market.
	j.Append(ctx, ev(4, model.EventEnginePaused, 0))

	events, err := j.EventsByMarket(ctx, 1)
	if err != nil {
		t.Fatalf("events by market: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events for market 1, got %d", len(events))
	}
	if events[0].Type != model.EventMarketCreated || events[1].Type != model.EventSubmissionCreated {
		t.Errorf("unexpected event types: %s, %s", events[0].Type, events[1].Type)
	}
}

func TestMemoryJournal_ReturnsCopies(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	j.Append(ctx, ev(1, model.EventMarketCreated, 1))

	events, _ := j.Events(ctx)
	events[0].Account = "mutated"

	again, _ := j.Events(ctx)
	if again[0].Account == "mutated" {
		t.Error("journal must not expose internal storage to callers")
	}
}
