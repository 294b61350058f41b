package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"stream-ledger/internal/core/domain"
	"stream-ledger/internal/core/ports"
	"stream-ledger/pkg/apperror"
	"stream-ledger/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	defaultPageSize       = 20
	maxPageSize           = 100

	// publishStripes bounds the mutexes that order notifications per stream.
	publishStripes = 64
)

// LedgerOptions carries policy knobs for StreamLedgerImpl.
type LedgerOptions struct {
	// SettleOnPause pays the worker's accrual before pausing. When false the
	// settlement point is frozen and the accrual is forfeited on resume.
	SettleOnPause  bool
	IdempotencyTTL time.Duration
}

// StreamLedgerImpl implements ports.StreamLedger.
type StreamLedgerImpl struct {
	streamRepo  ports.StreamRepository
	accountRepo ports.AccountRepository
	eventRepo   ports.EventRepository
	transfer    ports.AssetTransfer
	transactor  ports.DBTransactor
	clock       ports.Clock
	idempCache  ports.IdempotencyCache // optional
	notifier    ports.EventNotifier    // optional
	opts        LedgerOptions
	log         zerolog.Logger

	publishMu [publishStripes]sync.Mutex
}

// NewStreamLedger creates a new StreamLedgerImpl. idempCache and notifier may be nil.
func NewStreamLedger(
	streamRepo ports.StreamRepository,
	accountRepo ports.AccountRepository,
	eventRepo ports.EventRepository,
	transfer ports.AssetTransfer,
	transactor ports.DBTransactor,
	clock ports.Clock,
	idempCache ports.IdempotencyCache,
	notifier ports.EventNotifier,
	opts LedgerOptions,
	log zerolog.Logger,
) *StreamLedgerImpl {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = defaultIdempotencyTTL
	}
	return &StreamLedgerImpl{
		streamRepo:  streamRepo,
		accountRepo: accountRepo,
		eventRepo:   eventRepo,
		transfer:    transfer,
		transactor:  transactor,
		clock:       clock,
		idempCache:  idempCache,
		notifier:    notifier,
		opts:        opts,
		log:         log,
	}
}

// now reads the clock once, at whole-second resolution.
func (s *StreamLedgerImpl) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Second)
}

// CreateStream escrows the employer's deposit and opens a stream.
//
// Flow:
//  1. Replay check (Redis, then DB) when an idempotency key is given
//  2. Validate arguments and the worker account
//  3. BEGIN TX -> allocate ID -> escrow deposit -> append StreamCreated -> COMMIT
//  4. Notify observers, cache the key
func (s *StreamLedgerImpl) CreateStream(ctx context.Context, req ports.CreateStreamRequest) (*ports.OperationResult, error) {
	if req.IdempotencyKey != "" {
		if replay, err := s.findReplay(ctx, req.Employer, req.IdempotencyKey); err != nil || replay != nil {
			return replay, err
		}
	}

	now := s.now()
	st, err := domain.NewStream(req.Employer, req.Worker, req.RatePerSecond, req.Deposit, now)
	if err != nil {
		return nil, err
	}

	workerAcc, err := s.accountRepo.GetByAddress(ctx, req.Worker)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lookup worker: %w", err))
	}
	if workerAcc == nil {
		return nil, apperror.ErrInvalidWorker()
	}

	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		st.IdempotencyKey = &key
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.streamRepo.Create(ctx, dbTx, st); err != nil {
		if errors.Is(err, ports.ErrIdempotencyConflict) {
			_ = dbTx.Rollback(ctx)
			replay, rerr := s.findReplay(ctx, req.Employer, req.IdempotencyKey)
			if rerr == nil && replay == nil {
				rerr = apperror.ErrDatabaseError(fmt.Errorf("create stream: %w", err))
			}
			return replay, rerr
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create stream: %w", err))
	}

	if err := s.move(ctx, dbTx, ports.TransferLeg{
		Party: st.Employer, Amount: st.Deposit, Direction: ports.IntoEscrow,
	}); err != nil {
		return nil, err
	}

	created := domain.NewEvent(st, domain.EventStreamCreated, req.Employer, st.Deposit, now)
	rate := st.RatePerSecond
	created.Rate = &rate
	events := []domain.Event{created}

	if err := s.commit(ctx, dbTx, st.ID, nil, events); err != nil {
		return nil, err
	}

	if st.IdempotencyKey != nil && s.idempCache != nil {
		id := strconv.FormatUint(uint64(st.ID), 10)
		if err := s.idempCache.Set(ctx, createCacheKey(st.Employer, *st.IdempotencyKey), []byte(id), s.opts.IdempotencyTTL); err != nil {
			s.streamLog(st.ID).Warn().Err(err).Msg("failed to cache idempotency key")
		}
	}

	s.streamLog(st.ID).Info().
		Str("employer", st.Employer.String()).
		Str("worker", st.Worker.String()).
		Str("rate_per_second", st.RatePerSecond.String()).
		Str("deposit", st.Deposit.String()).
		Msg("stream created")

	return &ports.OperationResult{Stream: st, Events: events}, nil
}

func createCacheKey(employer domain.Address, key string) string {
	return "stream:create:" + employer.String() + ":" + key
}

// findReplay returns the stream an employer already created under key, or nil.
func (s *StreamLedgerImpl) findReplay(ctx context.Context, employer domain.Address, key string) (*ports.OperationResult, error) {
	if s.idempCache != nil {
		cached, err := s.idempCache.Get(ctx, createCacheKey(employer, key))
		if err != nil {
			s.log.Warn().Err(err).Msg("idempotency cache lookup failed, falling back to database")
		} else if cached != nil {
			if id, perr := strconv.ParseUint(string(cached), 10, 64); perr == nil {
				st, err := s.streamRepo.GetByID(ctx, domain.StreamID(id))
				if err != nil {
					return nil, apperror.ErrDatabaseError(fmt.Errorf("load replayed stream: %w", err))
				}
				if st != nil {
					return &ports.OperationResult{Stream: st, Replay: true}, nil
				}
			}
		}
	}

	st, err := s.streamRepo.GetByIdempotencyKey(ctx, employer, key)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("check idempotency key: %w", err))
	}
	if st == nil {
		return nil, nil
	}
	return &ports.OperationResult{Stream: st, Replay: true}, nil
}

// CalculateEarned returns the worker's unpaid accrual at the current time.
func (s *StreamLedgerImpl) CalculateEarned(ctx context.Context, id domain.StreamID) (decimal.Decimal, error) {
	st, err := s.GetStreamInfo(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return st.Earned(s.now()), nil
}

// Withdraw pays the worker everything earned since the last settlement.
func (s *StreamLedgerImpl) Withdraw(ctx context.Context, caller domain.Address, id domain.StreamID) (*ports.OperationResult, error) {
	return s.mutate(ctx, id, func(dbTx pgx.Tx, st *domain.Stream, now time.Time) ([]domain.Event, error) {
		if err := st.Authorize(caller, domain.RoleWorker); err != nil {
			return nil, err
		}
		amount, err := st.Withdraw(now)
		if err != nil {
			return nil, err
		}
		if err := s.move(ctx, dbTx, ports.TransferLeg{
			Party: st.Worker, Amount: amount, Direction: ports.OutOfEscrow,
		}); err != nil {
			return nil, err
		}
		s.streamLog(st.ID).Info().
			Str("caller", caller.String()).
			Str("amount", amount.String()).
			Msg("withdrawal settled")
		return []domain.Event{domain.NewEvent(st, domain.EventWithdrawn, caller, amount, now)}, nil
	})
}

// PauseStream stops accrual.
func (s *StreamLedgerImpl) PauseStream(ctx context.Context, caller domain.Address, id domain.StreamID) (*ports.OperationResult, error) {
	return s.mutate(ctx, id, func(dbTx pgx.Tx, st *domain.Stream, now time.Time) ([]domain.Event, error) {
		if err := st.Authorize(caller, domain.RoleEmployer); err != nil {
			return nil, err
		}
		paid, err := st.Pause(now, s.opts.SettleOnPause)
		if err != nil {
			return nil, err
		}

		var events []domain.Event
		if paid.IsPositive() {
			if err := s.move(ctx, dbTx, ports.TransferLeg{
				Party: st.Worker, Amount: paid, Direction: ports.OutOfEscrow,
			}); err != nil {
				return nil, err
			}
			events = append(events, domain.NewEvent(st, domain.EventWithdrawn, caller, paid, now))
		}
		events = append(events, domain.NewEvent(st, domain.EventStreamPaused, caller, paid, now))

		s.streamLog(st.ID).Info().
			Bool("settled", s.opts.SettleOnPause).
			Str("paid", paid.String()).
			Msg("stream paused")
		return events, nil
	})
}

// ResumeStream restarts accrual from now.
func (s *StreamLedgerImpl) ResumeStream(ctx context.Context, caller domain.Address, id domain.StreamID) (*ports.OperationResult, error) {
	return s.mutate(ctx, id, func(_ pgx.Tx, st *domain.Stream, now time.Time) ([]domain.Event, error) {
		if err := st.Authorize(caller, domain.RoleEmployer); err != nil {
			return nil, err
		}
		if err := st.Resume(now); err != nil {
			return nil, err
		}
		s.streamLog(st.ID).Info().Msg("stream resumed")
		return []domain.Event{domain.NewEvent(st, domain.EventStreamResumed, caller, decimal.Zero, now)}, nil
	})
}

// StopStream terminates the stream, paying the worker's accrual and
// refunding the remaining escrow to the employer.
func (s *StreamLedgerImpl) StopStream(ctx context.Context, caller domain.Address, id domain.StreamID) (*ports.OperationResult, error) {
	return s.mutate(ctx, id, func(dbTx pgx.Tx, st *domain.Stream, now time.Time) ([]domain.Event, error) {
		if err := st.Authorize(caller, domain.RoleEmployer); err != nil {
			return nil, err
		}
		payout, refund, err := st.Stop(now)
		if err != nil {
			return nil, err
		}
		if err := s.move(ctx, dbTx,
			ports.TransferLeg{Party: st.Worker, Amount: payout, Direction: ports.OutOfEscrow},
			ports.TransferLeg{Party: st.Employer, Amount: refund, Direction: ports.OutOfEscrow},
		); err != nil {
			return nil, err
		}

		var events []domain.Event
		if payout.IsPositive() {
			events = append(events, domain.NewEvent(st, domain.EventWithdrawn, caller, payout, now))
		}
		stopped := domain.NewEvent(st, domain.EventStreamStopped, caller, payout, now)
		stopped.Refund = &refund
		events = append(events, stopped)

		s.streamLog(st.ID).Info().
			Str("payout", payout.String()).
			Str("refund", refund.String()).
			Msg("stream stopped")
		return events, nil
	})
}

// AddDeposit tops up the stream's escrow from the employer's balance.
func (s *StreamLedgerImpl) AddDeposit(ctx context.Context, caller domain.Address, id domain.StreamID, amount decimal.Decimal) (*ports.OperationResult, error) {
	return s.mutate(ctx, id, func(dbTx pgx.Tx, st *domain.Stream, now time.Time) ([]domain.Event, error) {
		if err := st.Authorize(caller, domain.RoleEmployer); err != nil {
			return nil, err
		}
		if err := st.AddDeposit(amount); err != nil {
			return nil, err
		}
		if err := s.move(ctx, dbTx, ports.TransferLeg{
			Party: st.Employer, Amount: amount, Direction: ports.IntoEscrow,
		}); err != nil {
			return nil, err
		}
		s.streamLog(st.ID).Info().
			Str("amount", amount.String()).
			Str("deposit", st.Deposit.String()).
			Msg("deposit added")
		return []domain.Event{domain.NewEvent(st, domain.EventDepositAdded, caller, amount, now)}, nil
	})
}

// GetStreamInfo returns the committed stream record.
func (s *StreamLedgerImpl) GetStreamInfo(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	st, err := s.streamRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get stream: %w", err))
	}
	if st == nil {
		return nil, apperror.ErrNotFound("stream")
	}
	return st, nil
}

// ListStreams returns a page of streams the party employs or works on.
func (s *StreamLedgerImpl) ListStreams(ctx context.Context, params ports.StreamListParams) ([]domain.Stream, int64, error) {
	if !params.Party.Valid() {
		return nil, 0, apperror.Validation("invalid party address")
	}
	if params.Role != nil && *params.Role != domain.RoleEmployer && *params.Role != domain.RoleWorker {
		return nil, 0, apperror.Validation("role must be employer or worker")
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	streams, total, err := s.streamRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrDatabaseError(fmt.Errorf("list streams: %w", err))
	}
	return streams, total, nil
}

// ListEvents returns the stream's events in emission order.
func (s *StreamLedgerImpl) ListEvents(ctx context.Context, id domain.StreamID) ([]domain.Event, error) {
	if _, err := s.GetStreamInfo(ctx, id); err != nil {
		return nil, err
	}
	events, err := s.eventRepo.ListByStream(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list events: %w", err))
	}
	return events, nil
}

type transition func(dbTx pgx.Tx, st *domain.Stream, now time.Time) ([]domain.Event, error)

// mutate runs apply against the locked stream inside one transaction.
// Any error rolls the whole operation back.
func (s *StreamLedgerImpl) mutate(ctx context.Context, id domain.StreamID, apply transition) (*ports.OperationResult, error) {
	now := s.now()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	st, err := s.streamRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock stream: %w", err))
	}
	if st == nil {
		return nil, apperror.ErrNotFound("stream")
	}

	events, err := apply(dbTx, st, now)
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, dbTx, id, st, events); err != nil {
		return nil, err
	}
	return &ports.OperationResult{Stream: st, Events: events}, nil
}

// commit persists the updated stream (if any) and events, commits, and hands
// the events to the notifier. The commit and the hand-off share a per-stream
// mutex so observers receive a stream's events in commit order.
func (s *StreamLedgerImpl) commit(ctx context.Context, dbTx pgx.Tx, id domain.StreamID, st *domain.Stream, events []domain.Event) error {
	if st != nil {
		if err := s.streamRepo.Update(ctx, dbTx, st); err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("update stream: %w", err))
		}
	}
	if err := s.eventRepo.Append(ctx, dbTx, events); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("append events: %w", err))
	}

	mu := &s.publishMu[uint64(id)%publishStripes]
	mu.Lock()
	defer mu.Unlock()

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}
	s.publish(ctx, events)
	return nil
}

// move runs the asset transfer. Ledger errors pass through; anything else
// is reported as a failed transfer.
func (s *StreamLedgerImpl) move(ctx context.Context, dbTx pgx.Tx, legs ...ports.TransferLeg) error {
	err := s.transfer.Transfer(ctx, dbTx, legs...)
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.ErrTransferFailed(err)
}

func (s *StreamLedgerImpl) streamLog(id domain.StreamID) *zerolog.Logger {
	l := logger.ForStream(s.log, uint64(id))
	return &l
}

func (s *StreamLedgerImpl) publish(ctx context.Context, events []domain.Event) {
	if s.notifier == nil || len(events) == 0 {
		return
	}
	s.notifier.Notify(ctx, events)
}
