package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/sayso/market-engine/internal/model"
)

// MemoryJournal implements Journal with an in-memory slice. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryJournal struct {
	mu     sync.RWMutex
	events []model.Event
}

// NewMemoryJournal creates a new in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Append(_ context.Context, ev *model.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if n := len(j.events); n > 0 && ev.Seq <= j.events[n-1].Seq {
		return fmt.Errorf("journal: seq %d not after last seq %d", ev.Seq, j.events[n-1].Seq)
	}

	// Store a copy to avoid external mutation.
	j.events = append(j.events, *ev)
	return nil
}

func (j *MemoryJournal) Events(_ context.Context) ([]model.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]model.Event, len(j.events))
	copy(out, j.events)
	return out, nil
}

func (j *MemoryJournal) EventsByMarket(_ context.Context, marketID uint64) ([]model.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []model.Event
	for _, ev := range j.events {
		if ev.MarketID == marketID {
			out = append(out, ev)
		}
	}
	return out, nil
}
