package memory

import (
	"context"

	"stream-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// EventRepo implements ports.EventRepository over a Store.
type EventRepo struct {
	store *Store
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(store *Store) *EventRepo {
	return &EventRepo{store: store}
}

// Append stages events for publication at commit.
func (r *EventRepo) Append(_ context.Context, tx pgx.Tx, events []domain.Event) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}
	mtx.events = append(mtx.events, events...)
	return nil
}

// ListByStream returns committed events in emission order.
func (r *EventRepo) ListByStream(_ context.Context, id domain.StreamID) ([]domain.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return append([]domain.Event{}, r.store.events[id]...), nil
}
