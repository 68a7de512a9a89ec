// Package store defines the persistence layer for the market engine. The
// engine's durable state is an append-only event journal; implementations
// include PostgreSQL (source of truth) and in-memory (for testing and
// single-node development). Redis provides a read-side view cache.
package store

import (
	"context"

	"github.com/sayso/market-engine/internal/model"
)

// Journal is the append-only event log. Events are never modified or
// deleted; the engine rebuilds its state by replaying them in Seq order.
type Journal interface {
	// Append persists one event. Called before the corresponding state
	// change is applied, so a failed append must leave no trace.
	Append(ctx context.Context, ev *model.Event) error

	// Events returns every event in ascending Seq order.
	Events(ctx context.Context) ([]model.Event, error)

	// EventsByMarket returns the events belonging to one market in
	// ascending Seq order. Engine-level events (pause, resume, fee
	// withdrawals) are excluded.
	EventsByMarket(ctx context.Context, marketID uint64) ([]model.Event, error)
}
