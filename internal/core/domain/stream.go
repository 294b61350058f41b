package domain

import (
	"time"

	"stream-ledger/pkg/apperror"

	"github.com/shopspring/decimal"
)

// StreamID is the sequential handle of a stream, starting at 0.
type StreamID uint64

// Role is the party a stream operation requires.
type Role string

const (
	RoleEmployer Role = "employer"
	RoleWorker   Role = "worker"
)

// Stream is a continuous per-second payment from an employer to a worker,
// funded by escrowed deposits. Amounts are whole base units.
type Stream struct {
	ID             StreamID        `json:"id"`
	Employer       Address         `json:"employer"`
	Worker         Address         `json:"worker"`
	RatePerSecond  decimal.Decimal `json:"rate_per_second"`
	StartTime      time.Time       `json:"start_time"`
	LastSettlement time.Time       `json:"last_settlement"`
	Deposit        decimal.Decimal `json:"deposit"`
	Withdrawn      decimal.Decimal `json:"withdrawn"`
	Refunded       decimal.Decimal `json:"refunded"`
	Active         bool            `json:"active"`
	Terminated     bool            `json:"terminated"`
	PausedAt       *time.Time      `json:"paused_at,omitempty"`
	StoppedAt      *time.Time      `json:"stopped_at,omitempty"`
	IdempotencyKey *string         `json:"-"`
}

// NewStream validates creation arguments and returns an active stream
// settled at now. The caller assigns the ID.
func NewStream(employer, worker Address, rate, deposit decimal.Decimal, now time.Time) (*Stream, error) {
	if !worker.Valid() {
		return nil, apperror.ErrInvalidWorker()
	}
	if worker == employer {
		return nil, apperror.ErrSelfStream()
	}
	if !ValidAmount(rate) {
		return nil, apperror.ErrInvalidRate()
	}
	if !ValidAmount(deposit) {
		return nil, apperror.ErrInvalidAmount()
	}
	return &Stream{
		Employer:       employer,
		Worker:         worker,
		RatePerSecond:  rate,
		StartTime:      now,
		LastSettlement: now,
		Deposit:        deposit,
		Withdrawn:      decimal.Zero,
		Refunded:       decimal.Zero,
		Active:         true,
	}, nil
}

// Authorize rejects callers that are not the party the role names.
func (s *Stream) Authorize(caller Address, role Role) error {
	switch role {
	case RoleEmployer:
		if caller != s.Employer {
			return apperror.ErrNotEmployer()
		}
	case RoleWorker:
		if caller != s.Worker {
			return apperror.ErrNotWorker()
		}
	default:
		return apperror.Validation("unknown role " + string(role))
	}
	return nil
}

// Locked returns the escrow still held for this stream.
func (s *Stream) Locked() decimal.Decimal {
	return s.Deposit.Sub(s.Withdrawn).Sub(s.Refunded)
}

// Earned returns the unpaid accrual at now, capped by the locked balance.
// Inactive streams earn nothing.
func (s *Stream) Earned(now time.Time) decimal.Decimal {
	if !s.Active || s.Terminated {
		return decimal.Zero
	}
	elapsed := int64(now.Sub(s.LastSettlement) / time.Second)
	if elapsed <= 0 {
		return decimal.Zero
	}
	raw := s.RatePerSecond.Mul(decimal.NewFromInt(elapsed))
	return decimal.Min(raw, s.Locked())
}

func (s *Stream) requireOpen() error {
	if s.Terminated {
		return apperror.ErrStreamTerminated()
	}
	return nil
}

func (s *Stream) requireActive() error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	if !s.Active {
		return apperror.ErrStreamPaused()
	}
	return nil
}

// Withdraw settles the accrual at now and returns the amount owed to the worker.
func (s *Stream) Withdraw(now time.Time) (decimal.Decimal, error) {
	if err := s.requireActive(); err != nil {
		return decimal.Zero, err
	}
	amount := s.Earned(now)
	if amount.IsZero() {
		return decimal.Zero, apperror.ErrNothingToWithdraw()
	}
	s.LastSettlement = now
	s.Withdrawn = s.Withdrawn.Add(amount)
	return amount, nil
}

// Pause stops accrual. With settle set, the accrual up to now is paid out
// first and returned; otherwise lastSettlement stays frozen and the returned
// amount is zero.
func (s *Stream) Pause(now time.Time, settle bool) (decimal.Decimal, error) {
	if err := s.requireActive(); err != nil {
		return decimal.Zero, err
	}
	paid := decimal.Zero
	if settle {
		paid = s.Earned(now)
		s.LastSettlement = now
		s.Withdrawn = s.Withdrawn.Add(paid)
	}
	s.Active = false
	s.PausedAt = &now
	return paid, nil
}

// Resume restarts accrual from now. Paused time is never paid.
func (s *Stream) Resume(now time.Time) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	if s.Active {
		return apperror.ErrStreamAlreadyActive()
	}
	s.Active = true
	s.LastSettlement = now
	s.PausedAt = nil
	return nil
}

// Stop terminates the stream, returning the final payout to the worker and
// the refund to the employer. The two always sum to the locked balance.
func (s *Stream) Stop(now time.Time) (payout, refund decimal.Decimal, err error) {
	if err := s.requireOpen(); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	payout = s.Earned(now)
	s.Withdrawn = s.Withdrawn.Add(payout)
	refund = s.Locked()
	s.Refunded = s.Refunded.Add(refund)
	s.LastSettlement = now
	s.Active = false
	s.Terminated = true
	s.StoppedAt = &now
	return payout, refund, nil
}

// AddDeposit tops up the escrow without touching accrual state.
func (s *Stream) AddDeposit(amount decimal.Decimal) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	if !ValidAmount(amount) {
		return apperror.ErrInvalidAmount()
	}
	s.Deposit = s.Deposit.Add(amount)
	return nil
}

// Clone returns a deep copy safe to mutate independently.
func (s *Stream) Clone() *Stream {
	c := *s
	if s.PausedAt != nil {
		t := *s.PausedAt
		c.PausedAt = &t
	}
	if s.StoppedAt != nil {
		t := *s.StoppedAt
		c.StoppedAt = &t
	}
	if s.IdempotencyKey != nil {
		k := *s.IdempotencyKey
		c.IdempotencyKey = &k
	}
	return &c
}
