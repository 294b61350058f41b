//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

package ports

import (
	"context"
	"errors"

	"stream-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// StreamRepository defines persistence operations for streams.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type StreamRepository interface {
	// Create assigns the next sequential ID to s and inserts it.
	Create(ctx context.Context, tx pgx.Tx, s *domain.Stream) error
	GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id domain.StreamID) (*domain.Stream, error)
	GetByIdempotencyKey(ctx context.Context, employer domain.Address, key string) (*domain.Stream, error)
	Update(ctx context.Context, tx pgx.Tx, s *domain.Stream) error
	List(ctx context.Context, params StreamListParams) ([]domain.Stream, int64, error)
}

// StreamListParams holds filter + pagination for listing a party's streams.
type StreamListParams struct {
	Party    domain.Address
	Role     *domain.Role // nil = either side
	Page     int
	PageSize int
}

// AccountRepository defines persistence operations for party accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByAddress(ctx context.Context, addr domain.Address) (*domain.Account, error)
	// GetForUpdate locks the given accounts in ascending address order.
	// Missing accounts are absent from the result.
	GetForUpdate(ctx context.Context, tx pgx.Tx, addrs ...domain.Address) (map[domain.Address]*domain.Account, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, addr domain.Address, balance decimal.Decimal) error
}

// EventRepository persists stream events alongside the transition that produced them.
type EventRepository interface {
	Append(ctx context.Context, tx pgx.Tx, events []domain.Event) error
	ListByStream(ctx context.Context, id domain.StreamID) ([]domain.Event, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ErrIdempotencyConflict is returned by StreamRepository.Create when the
// employer already created a stream under the same idempotency key.
var ErrIdempotencyConflict = errors.New("idempotency key already used")
