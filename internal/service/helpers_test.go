package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"stream-ledger/internal/adapter/storage/memory"
	"stream-ledger/internal/core/domain"
	"stream-ledger/internal/core/ports"
	"stream-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	employerAddr domain.Address = "0xe000000000000000000000000000000000000001"
	workerAddr   domain.Address = "0xa000000000000000000000000000000000000002"
	strangerAddr domain.Address = "0xc000000000000000000000000000000000000003"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

// fakeClock implements ports.Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock { return &fakeClock{now: at} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// mockTx implements pgx.Tx for testing
type mockTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (m *mockTx) Rollback(_ context.Context) error {
	if m.committed {
		return pgx.ErrTxClosed
	}
	m.rolledBack = true
	return nil
}

func (m *mockTx) Commit(_ context.Context) error {
	m.committed = true
	return nil
}

func amt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// wei is 10^18 base units per whole native unit.
var wei = decimal.New(1, 18)

type ledgerEnv struct {
	ledger   *StreamLedgerImpl
	store    *memory.Store
	accounts *memory.AccountRepo
	clock    *fakeClock
}

func newLedgerEnv(t *testing.T, employerBalance decimal.Decimal, opts LedgerOptions) *ledgerEnv {
	t.Helper()
	store := memory.NewStore()
	accounts := memory.NewAccountRepo(store)
	ctx := context.Background()
	for addr, bal := range map[domain.Address]decimal.Decimal{
		employerAddr: employerBalance,
		workerAddr:   decimal.Zero,
		strangerAddr: decimal.Zero,
	} {
		require.NoError(t, accounts.Create(ctx, &domain.Account{Address: addr, Balance: bal}))
	}

	clock := newFakeClock(t0)
	ledger := NewStreamLedger(
		memory.NewStreamRepo(store),
		accounts,
		memory.NewEventRepo(store),
		NewEscrowTransferService(accounts, zerolog.Nop()),
		store,
		clock,
		nil,
		nil,
		opts,
		zerolog.Nop(),
	)
	return &ledgerEnv{ledger: ledger, store: store, accounts: accounts, clock: clock}
}

func (e *ledgerEnv) balance(t *testing.T, addr domain.Address) decimal.Decimal {
	t.Helper()
	acc, err := e.accounts.GetByAddress(context.Background(), addr)
	require.NoError(t, err)
	require.NotNil(t, acc)
	return acc.Balance
}

func (e *ledgerEnv) create(t *testing.T, rate, deposit decimal.Decimal) domain.StreamID {
	t.Helper()
	res, err := e.ledger.CreateStream(context.Background(), createReq(rate, deposit))
	require.NoError(t, err)
	return res.Stream.ID
}

func (e *ledgerEnv) earned(t *testing.T, id domain.StreamID) decimal.Decimal {
	t.Helper()
	v, err := e.ledger.CalculateEarned(context.Background(), id)
	require.NoError(t, err)
	return v
}

func assertAppError(t *testing.T, err error, want *apperror.AppError) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, want.Code, appErr.Code, "got %v", err)
}

func assertDecimal(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, want.Equal(got), "want %s, got %s", want, got)
}

// decimal values are compared numerically, not structurally
type decimalMatcher struct{ want decimal.Decimal }

func (m decimalMatcher) Matches(x any) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalMatcher) String() string { return "is decimal " + m.want.String() }

func decEq(v int64) gomock.Matcher { return decimalMatcher{want: amt(v)} }

type legMatcher struct{ want ports.TransferLeg }

func (m legMatcher) Matches(x any) bool {
	l, ok := x.(ports.TransferLeg)
	return ok && l.Party == m.want.Party && l.Direction == m.want.Direction && l.Amount.Equal(m.want.Amount)
}

func (m legMatcher) String() string {
	return fmt.Sprintf("is leg %s %s dir=%d", m.want.Party, m.want.Amount, m.want.Direction)
}

func legEq(party domain.Address, amount int64, dir ports.TransferDirection) gomock.Matcher {
	return legMatcher{want: ports.TransferLeg{Party: party, Amount: amt(amount), Direction: dir}}
}
