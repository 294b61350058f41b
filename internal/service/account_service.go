package service

import (
	"context"
	"fmt"

	"stream-ledger/internal/core/domain"
	"stream-ledger/internal/core/ports"
	"stream-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AccountServiceImpl implements ports.AccountService.
type AccountServiceImpl struct {
	accountRepo  ports.AccountRepository
	transactor   ports.DBTransactor
	allowFunding bool
	log          zerolog.Logger
}

// NewAccountService creates a new AccountServiceImpl. Fund is rejected
// unless allowFunding is set.
func NewAccountService(accountRepo ports.AccountRepository, transactor ports.DBTransactor, allowFunding bool, log zerolog.Logger) *AccountServiceImpl {
	return &AccountServiceImpl{
		accountRepo:  accountRepo,
		transactor:   transactor,
		allowFunding: allowFunding,
		log:          log,
	}
}

func (s *AccountServiceImpl) GetAccount(ctx context.Context, addr domain.Address) (*domain.Account, error) {
	account, err := s.accountRepo.GetByAddress(ctx, addr)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}
	return account, nil
}

// Fund credits amount from outside the ledger (the on-ramp).
func (s *AccountServiceImpl) Fund(ctx context.Context, addr domain.Address, amount decimal.Decimal) (*domain.Account, error) {
	if !s.allowFunding {
		return nil, apperror.ErrFundingDisabled()
	}
	if !domain.ValidAmount(amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.accountRepo.GetForUpdate(ctx, dbTx, addr)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock account: %w", err))
	}
	account, ok := locked[addr]
	if !ok {
		return nil, apperror.ErrNotFound("account")
	}

	next := account.Balance.Add(amount)
	if !domain.ValidAmount(next) {
		return nil, apperror.ErrInvalidAmount()
	}
	account.Balance = next
	if err := s.accountRepo.UpdateBalance(ctx, dbTx, addr, account.Balance); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update balance: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("address", addr.String()).
		Str("amount", amount.String()).
		Str("balance", account.Balance.String()).
		Msg("account funded")
	return account, nil
}
