package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/sudoku-lobby/internal/lobby"
)

const createEventsTable = `
	CREATE TABLE IF NOT EXISTS lobby_events (
		id          UUID PRIMARY KEY,
		kind        TEXT        NOT NULL,
		user_name   TEXT        NOT NULL DEFAULT '',
		room_id     INTEGER     NOT NULL DEFAULT 0,
		detail      JSONB,
		occurred_at TIMESTAMPTZ NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// A replayed event keeps its first row.
const insertEvent = `
	INSERT INTO lobby_events (id, kind, user_name, room_id, detail, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO NOTHING
`

// EventStore persists journal events to Postgres.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore wraps an open pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// EnsureSchema creates the events table when it does not exist yet.
func (s *EventStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createEventsTable); err != nil {
		return fmt.Errorf("creating lobby_events: %w", err)
	}
	return nil
}

// SaveEvents writes the batch in a single transaction. Either every event is
// stored or none is.
func (s *EventStore) SaveEvents(ctx context.Context, events []lobby.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch, err := eventBatch(events)
	if err != nil {
		return err
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

// eventBatch queues one insert per event.
func eventBatch(events []lobby.Event) (*pgx.Batch, error) {
	batch := &pgx.Batch{}
	for _, ev := range events {
		var detail []byte
		if len(ev.Detail) > 0 {
			var err error
			if detail, err = json.Marshal(ev.Detail); err != nil {
				return nil, fmt.Errorf("marshal detail of event %s: %w", ev.ID, err)
			}
		}
		batch.Queue(insertEvent,
			ev.ID, string(ev.Kind), ev.User, ev.RoomID, detail, time.UnixMilli(ev.Timestamp).UTC(),
		)
	}
	return batch, nil
}
