package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stream-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepo implements ports.AccountRepository over a Store.
type AccountRepo struct {
	store *Store
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(store *Store) *AccountRepo {
	return &AccountRepo{store: store}
}

func accountKey(addr domain.Address) string {
	return "account:" + string(addr)
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

func (r *AccountRepo) Create(_ context.Context, account *domain.Account) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.accounts[account.Address]; exists {
		return fmt.Errorf("account %s already exists", account.Address)
	}
	r.store.accounts[account.Address] = cloneAccount(account)
	return nil
}

// GetByAddress returns nil, nil if not found.
func (r *AccountRepo) GetByAddress(_ context.Context, addr domain.Address) (*domain.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	acc, ok := r.store.accounts[addr]
	if !ok {
		return nil, nil
	}
	return cloneAccount(acc), nil
}

// GetForUpdate locks accounts in ascending address order.
func (r *AccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, addrs ...domain.Address) (map[domain.Address]*domain.Account, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	sorted := append([]domain.Address(nil), addrs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	result := make(map[domain.Address]*domain.Account, len(sorted))
	for _, addr := range sorted {
		if _, seen := result[addr]; seen {
			continue
		}
		if err := mtx.lock(ctx, accountKey(addr)); err != nil {
			return nil, err
		}
		if staged, ok := mtx.accounts[addr]; ok {
			result[addr] = cloneAccount(staged)
			continue
		}
		acc, err := r.GetByAddress(ctx, addr)
		if err != nil {
			return nil, err
		}
		if acc != nil {
			result[addr] = acc
		}
	}
	return result, nil
}

// UpdateBalance stages the new balance. The account must be locked by tx.
func (r *AccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, addr domain.Address, balance decimal.Decimal) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}
	if !mtx.holds(accountKey(addr)) {
		return errNotLocked
	}
	acc, ok := mtx.accounts[addr]
	if !ok {
		acc, err = r.GetByAddress(ctx, addr)
		if err != nil {
			return err
		}
		if acc == nil {
			return fmt.Errorf("account %s not found", addr)
		}
	}
	acc.Balance = balance
	acc.UpdatedAt = time.Now().UTC()
	mtx.accounts[addr] = acc
	return nil
}
