//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

package ports

import (
	"context"
	"time"

	"stream-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Clock supplies the current time. The ledger reads it once per operation.
type Clock interface {
	Now() time.Time
}

// TransferDirection says which way a transfer leg moves value relative to escrow.
type TransferDirection int

const (
	IntoEscrow TransferDirection = iota + 1
	OutOfEscrow
)

// TransferLeg moves Amount between Party's available balance and the ledger escrow.
type TransferLeg struct {
	Party     domain.Address
	Amount    decimal.Decimal
	Direction TransferDirection
}

// AssetTransfer moves value synchronously within the caller's transaction.
// An error means nothing moved and the caller must roll back.
type AssetTransfer interface {
	Transfer(ctx context.Context, tx pgx.Tx, legs ...TransferLeg) error
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(addr domain.Address) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Address domain.Address
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached value or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// RateLimitStore counts requests per key and window.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// EventNotifier fans committed events out to external observers.
type EventNotifier interface {
	Notify(ctx context.Context, events []domain.Event)
}

// --- Service Ports (Business Logic) ---

// StreamLedger is the payment stream state machine.
type StreamLedger interface {
	CreateStream(ctx context.Context, req CreateStreamRequest) (*OperationResult, error)
	CalculateEarned(ctx context.Context, id domain.StreamID) (decimal.Decimal, error)
	Withdraw(ctx context.Context, caller domain.Address, id domain.StreamID) (*OperationResult, error)
	PauseStream(ctx context.Context, caller domain.Address, id domain.StreamID) (*OperationResult, error)
	ResumeStream(ctx context.Context, caller domain.Address, id domain.StreamID) (*OperationResult, error)
	StopStream(ctx context.Context, caller domain.Address, id domain.StreamID) (*OperationResult, error)
	AddDeposit(ctx context.Context, caller domain.Address, id domain.StreamID, amount decimal.Decimal) (*OperationResult, error)
	GetStreamInfo(ctx context.Context, id domain.StreamID) (*domain.Stream, error)
	ListStreams(ctx context.Context, params StreamListParams) ([]domain.Stream, int64, error)
	ListEvents(ctx context.Context, id domain.StreamID) ([]domain.Event, error)
}

// CreateStreamRequest holds validated input for stream creation.
type CreateStreamRequest struct {
	Employer       domain.Address
	Worker         domain.Address
	RatePerSecond  decimal.Decimal
	Deposit        decimal.Decimal
	IdempotencyKey string // optional
}

// OperationResult is the post-commit stream state and the events the
// operation emitted, in order.
type OperationResult struct {
	Stream *domain.Stream
	Events []domain.Event
	Replay bool // true when an idempotent create returned an existing stream
}

// AuthService defines authentication business logic.
type AuthService interface {
	Register(ctx context.Context, password string) (*domain.Account, error)
	Login(ctx context.Context, addr domain.Address, password string) (string, time.Time, error) // token, expiry, error
}

// AccountService exposes party balances and the external on-ramp.
type AccountService interface {
	GetAccount(ctx context.Context, addr domain.Address) (*domain.Account, error)
	Fund(ctx context.Context, addr domain.Address, amount decimal.Decimal) (*domain.Account, error)
}
