package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sayso/market-engine/internal/model"
)

// PostgresJournal implements Journal using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
//
// Expected schema:
//
//	CREATE TABLE events (
//	    seq           BIGINT PRIMARY KEY,
//	    id            UUID NOT NULL,
//	    type          TEXT NOT NULL,
//	    market_id     BIGINT NOT NULL DEFAULT 0,
//	    submission_id BIGINT NOT NULL DEFAULT 0,
//	    account       TEXT NOT NULL DEFAULT '',
//	    subject       TEXT NOT NULL DEFAULT '',
//	    text          TEXT NOT NULL DEFAULT '',
//	    amount        NUMERIC NOT NULL DEFAULT 0,
//	    fee           NUMERIC NOT NULL DEFAULT 0,
//	    distance      INT NOT NULL DEFAULT 0,
//	    end_time      TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
//	    occurred_at   TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX events_market_idx ON events (market_id, seq);
type PostgresJournal struct {
	pool *pgxpool.Pool
}

// NewPostgresJournal creates a new PostgreSQL-backed journal.
func NewPostgresJournal(pool *pgxpool.Pool) *PostgresJournal {
	return &PostgresJournal{pool: pool}
}

func (j *PostgresJournal) Append(ctx context.Context, ev *model.Event) error {
	_, err := j.pool.Exec(ctx,
		`INSERT INTO events (seq, id, type, market_id, submission_id, account, subject, text, amount, fee, distance, end_time, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::NUMERIC, $10::NUMERIC, $11, $12, $13)`,
		ev.Seq, ev.ID, string(ev.Type), ev.MarketID, ev.SubmissionID,
		ev.Account, ev.Subject, ev.Text,
		ev.Amount.String(), ev.Fee.String(),
		ev.Distance, ev.EndTime, ev.At,
	)
	if err != nil {
		return fmt.Errorf("append event seq %d: %w", ev.Seq, err)
	}
	return nil
}

func (j *PostgresJournal) Events(ctx context.Context) ([]model.Event, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT seq, id, type, market_id, submission_id, account, subject, text,
		        amount::TEXT, fee::TEXT, distance, end_time, occurred_at
		 FROM events ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (j *PostgresJournal) EventsByMarket(ctx context.Context, marketID uint64) ([]model.Event, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT seq, id, type, market_id, submission_id, account, subject, text,
		        amount::TEXT, fee::TEXT, distance, end_time, occurred_at
		 FROM events WHERE market_id = $1 ORDER BY seq`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// pgxRows is the subset of pgx.Rows that scanEvents needs.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanEvents(rows pgxRows) ([]model.Event, error) {
	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var typ, amountS, feeS string

		if err := rows.Scan(&ev.Seq, &ev.ID, &typ, &ev.MarketID, &ev.SubmissionID,
			&ev.Account, &ev.Subject, &ev.Text,
			&amountS, &feeS, &ev.Distance, &ev.EndTime, &ev.At); err != nil {
			return nil, err
		}

		ev.Type = model.EventType(typ)
		ev.Amount, _ = decimal.NewFromString(amountS)
		ev.Fee, _ = decimal.NewFromString(feeS)

		events = append(events, ev)
	}
	return events, rows.Err()
}
