package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stream-ledger/internal/core/domain"
	"stream-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	streamColumns = `id, employer, worker, rate_per_second, start_time, last_settlement,
		deposit, withdrawn, refunded, active, terminated, paused_at, stopped_at, idempotency_key`

	uniqueViolation          = "23505"
	idempotencyKeyConstraint = "streams_employer_idempotency_key"
)

// StreamRepo implements ports.StreamRepository.
type StreamRepo struct {
	pool Pool
}

// NewStreamRepo creates a new StreamRepo.
func NewStreamRepo(pool Pool) *StreamRepo {
	return &StreamRepo{pool: pool}
}

// Create draws the next id from the stream_seq counter and inserts s.
// The counter row stays locked until tx ends, so concurrent creates queue
// behind each other and a rollback never leaves a gap.
func (r *StreamRepo) Create(ctx context.Context, tx pgx.Tx, s *domain.Stream) error {
	var id int64
	err := tx.QueryRow(ctx, `UPDATE stream_seq SET next_id = next_id + 1 RETURNING next_id - 1`).Scan(&id)
	if err != nil {
		return fmt.Errorf("next stream id: %w", err)
	}

	query := `INSERT INTO streams (` + streamColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = tx.Exec(ctx, query,
		id, s.Employer.String(), s.Worker.String(), s.RatePerSecond.String(),
		s.StartTime, s.LastSettlement,
		s.Deposit.String(), s.Withdrawn.String(), s.Refunded.String(),
		s.Active, s.Terminated, s.PausedAt, s.StoppedAt, s.IdempotencyKey,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == idempotencyKeyConstraint {
			return ports.ErrIdempotencyConflict
		}
		return fmt.Errorf("insert stream: %w", err)
	}
	s.ID = domain.StreamID(id)
	return nil
}

// GetByID fetches a stream without locking. Returns nil, nil if not found.
func (r *StreamRepo) GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	query := `SELECT ` + streamColumns + ` FROM streams WHERE id = $1`
	return scanStream(r.pool.QueryRow(ctx, query, int64(id)), "get stream by id")
}

// GetByIDForUpdate fetches a stream with a row lock held until tx ends.
// This MUST be called within a transaction.
func (r *StreamRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id domain.StreamID) (*domain.Stream, error) {
	query := `SELECT ` + streamColumns + ` FROM streams WHERE id = $1 FOR UPDATE`
	return scanStream(tx.QueryRow(ctx, query, int64(id)), "get stream for update")
}

// GetByIdempotencyKey finds the stream an employer created under key.
func (r *StreamRepo) GetByIdempotencyKey(ctx context.Context, employer domain.Address, key string) (*domain.Stream, error) {
	query := `SELECT ` + streamColumns + ` FROM streams WHERE employer = $1 AND idempotency_key = $2`
	return scanStream(r.pool.QueryRow(ctx, query, employer.String(), key), "get stream by idempotency key")
}

// Update writes the mutable columns of s within a transaction.
func (r *StreamRepo) Update(ctx context.Context, tx pgx.Tx, s *domain.Stream) error {
	query := `UPDATE streams SET last_settlement = $1, deposit = $2, withdrawn = $3, refunded = $4,
		active = $5, terminated = $6, paused_at = $7, stopped_at = $8 WHERE id = $9`

	tag, err := tx.Exec(ctx, query,
		s.LastSettlement, s.Deposit.String(), s.Withdrawn.String(), s.Refunded.String(),
		s.Active, s.Terminated, s.PausedAt, s.StoppedAt, int64(s.ID),
	)
	if err != nil {
		return fmt.Errorf("update stream: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("stream not found: %d", s.ID)
	}
	return nil
}

// List fetches a party's streams, newest first, with pagination.
func (r *StreamRepo) List(ctx context.Context, params ports.StreamListParams) ([]domain.Stream, int64, error) {
	var condition string
	switch {
	case params.Role == nil:
		condition = "(employer = $1 OR worker = $1)"
	case *params.Role == domain.RoleEmployer:
		condition = "employer = $1"
	case *params.Role == domain.RoleWorker:
		condition = "worker = $1"
	default:
		return nil, 0, fmt.Errorf("unknown role %q", *params.Role)
	}
	args := []any{params.Party.String()}

	var total int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM streams WHERE "+condition, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count streams: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := `SELECT ` + streamColumns + ` FROM streams WHERE ` + condition + ` ORDER BY id DESC LIMIT $2 OFFSET $3`
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list streams: %w", err)
	}
	defer rows.Close()

	streams := []domain.Stream{}
	for rows.Next() {
		s, err := scanStream(rows, "scan stream row")
		if err != nil {
			return nil, 0, err
		}
		streams = append(streams, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate stream rows: %w", err)
	}
	return streams, total, nil
}

// scanStream reads one row in streamColumns order.
func scanStream(row pgx.Row, op string) (*domain.Stream, error) {
	var (
		id                                 int64
		rate, deposit, withdrawn, refunded string
		s                                  = &domain.Stream{}
	)
	err := row.Scan(
		&id, &s.Employer, &s.Worker, &rate, &s.StartTime, &s.LastSettlement,
		&deposit, &withdrawn, &refunded, &s.Active, &s.Terminated,
		&s.PausedAt, &s.StoppedAt, &s.IdempotencyKey,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.ID = domain.StreamID(id)
	if s.RatePerSecond, err = parseNumeric("rate_per_second", rate); err != nil {
		return nil, err
	}
	if s.Deposit, err = parseNumeric("deposit", deposit); err != nil {
		return nil, err
	}
	if s.Withdrawn, err = parseNumeric("withdrawn", withdrawn); err != nil {
		return nil, err
	}
	if s.Refunded, err = parseNumeric("refunded", refunded); err != nil {
		return nil, err
	}
	s.StartTime = s.StartTime.UTC()
	s.LastSettlement = s.LastSettlement.UTC()
	s.PausedAt = utcPtr(s.PausedAt)
	s.StoppedAt = utcPtr(s.StoppedAt)
	return s, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
