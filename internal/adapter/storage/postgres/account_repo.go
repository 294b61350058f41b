package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"stream-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `address, password_hash, balance, created_at, updated_at`

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts a new account.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `) VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		a.Address.String(), a.PasswordHash, a.Balance.String(), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByAddress fetches an account without locking. Returns nil, nil if not found.
func (r *AccountRepo) GetByAddress(ctx context.Context, addr domain.Address) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE address = $1`

	a, err := scanAccount(r.pool.QueryRow(ctx, query, addr.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// GetForUpdate locks the requested accounts in ascending address order.
// This MUST be called within a transaction.
func (r *AccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, addrs ...domain.Address) (map[domain.Address]*domain.Account, error) {
	result := make(map[domain.Address]*domain.Account, len(addrs))
	if len(addrs) == 0 {
		return result, nil
	}

	keys := make([]string, 0, len(addrs))
	seen := make(map[domain.Address]bool, len(addrs))
	for _, a := range addrs {
		if !seen[a] {
			seen[a] = true
			keys = append(keys, a.String())
		}
	}
	sort.Strings(keys)

	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE address = ANY($1) ORDER BY address FOR UPDATE`

	rows, err := tx.Query(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("lock accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		result[a.Address] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account rows: %w", err)
	}
	return result, nil
}

// UpdateBalance sets an account's available balance within a transaction.
func (r *AccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, addr domain.Address, balance decimal.Decimal) error {
	query := `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE address = $2`

	tag, err := tx.Exec(ctx, query, balance.String(), addr.String())
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", addr)
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var balance string
	a := &domain.Account{}
	if err := row.Scan(&a.Address, &a.PasswordHash, &balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	b, err := parseNumeric("balance", balance)
	if err != nil {
		return nil, err
	}
	a.Balance = b
	return a, nil
}
