package postgres

import (
	"context"
	"fmt"

	"stream-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// EventRepo implements ports.EventRepository.
type EventRepo struct {
	pool Pool
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(pool Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Append inserts events in order within the transition's transaction.
func (r *EventRepo) Append(ctx context.Context, tx pgx.Tx, events []domain.Event) error {
	query := `INSERT INTO stream_events (id, stream_id, event_type, actor, employer, worker, amount, rate, refund, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for _, e := range events {
		_, err := tx.Exec(ctx, query,
			e.ID, int64(e.StreamID), string(e.Type),
			e.Actor.String(), e.Employer.String(), e.Worker.String(),
			e.Amount.String(), numericArg(e.Rate), numericArg(e.Refund), e.OccurredAt,
		)
		if err != nil {
			return fmt.Errorf("insert %s event: %w", e.Type, err)
		}
	}
	return nil
}

// ListByStream returns a stream's events in insertion order.
func (r *EventRepo) ListByStream(ctx context.Context, id domain.StreamID) ([]domain.Event, error) {
	query := `SELECT id, stream_id, event_type, actor, employer, worker, amount, rate, refund, occurred_at
		FROM stream_events WHERE stream_id = $1 ORDER BY seq`

	rows, err := r.pool.Query(ctx, query, int64(id))
	if err != nil {
		return nil, fmt.Errorf("list stream events: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		var (
			e            domain.Event
			streamID     int64
			typ, amount  string
			rate, refund *string
		)
		err := rows.Scan(&e.ID, &streamID, &typ, &e.Actor, &e.Employer, &e.Worker,
			&amount, &rate, &refund, &e.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.StreamID = domain.StreamID(streamID)
		e.Type = domain.EventType(typ)
		e.OccurredAt = e.OccurredAt.UTC()
		if e.Amount, err = parseNumeric("amount", amount); err != nil {
			return nil, err
		}
		if e.Rate, err = parseNullableNumeric("rate", rate); err != nil {
			return nil, err
		}
		if e.Refund, err = parseNullableNumeric("refund", refund); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}
