package service

import (
	"context"
	"fmt"
	"sort"

	"stream-ledger/internal/core/domain"
	"stream-ledger/internal/core/ports"
	"stream-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// EscrowTransferService implements ports.AssetTransfer over party account
// balances. Escrow is not a row of its own: a stream's escrow is its locked
// balance, so moving value only touches the party accounts.
type EscrowTransferService struct {
	accountRepo ports.AccountRepository
	log         zerolog.Logger
}

// NewEscrowTransferService creates a new EscrowTransferService.
func NewEscrowTransferService(accountRepo ports.AccountRepository, log zerolog.Logger) *EscrowTransferService {
	return &EscrowTransferService{accountRepo: accountRepo, log: log}
}

// Transfer applies all legs or none. Zero legs are skipped. Accounts are
// locked in ascending address order.
func (s *EscrowTransferService) Transfer(ctx context.Context, tx pgx.Tx, legs ...ports.TransferLeg) error {
	deltas := make(map[domain.Address]decimal.Decimal)
	for _, leg := range legs {
		if leg.Amount.IsZero() {
			continue
		}
		if !domain.ValidAmount(leg.Amount) {
			return apperror.ErrInvalidAmount()
		}
		delta := leg.Amount
		switch leg.Direction {
		case ports.IntoEscrow:
			delta = delta.Neg()
		case ports.OutOfEscrow:
		default:
			return fmt.Errorf("unknown transfer direction %d", leg.Direction)
		}
		deltas[leg.Party] = deltas[leg.Party].Add(delta)
	}
	if len(deltas) == 0 {
		return nil
	}

	parties := make([]domain.Address, 0, len(deltas))
	for addr := range deltas {
		parties = append(parties, addr)
	}
	sort.Slice(parties, func(i, j int) bool { return parties[i] < parties[j] })

	accounts, err := s.accountRepo.GetForUpdate(ctx, tx, parties...)
	if err != nil {
		return fmt.Errorf("lock accounts: %w", err)
	}

	balances := make(map[domain.Address]decimal.Decimal, len(parties))
	for _, addr := range parties {
		acc, ok := accounts[addr]
		if !ok {
			return apperror.ErrNotFound("account")
		}
		delta := deltas[addr]
		if delta.IsNegative() && !acc.CanCover(delta.Neg()) {
			s.log.Warn().
				Str("party", addr.String()).
				Str("balance", acc.Balance.String()).
				Str("required", delta.Neg().String()).
				Msg("insufficient balance for escrow")
			return apperror.ErrInsufficientFunds()
		}
		balances[addr] = acc.Balance.Add(delta)
	}

	for _, addr := range parties {
		if err := s.accountRepo.UpdateBalance(ctx, tx, addr, balances[addr]); err != nil {
			return fmt.Errorf("update balance %s: %w", addr, err)
		}
	}
	return nil
}
