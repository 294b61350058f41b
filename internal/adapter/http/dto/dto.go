package dto

import "github.com/shopspring/decimal"

// Amounts are whole base units. They are accepted as JSON strings or numbers
// and always rendered as strings so 18-decimal values survive JavaScript clients.

// RegisterRequest is the request body for account registration. The address
// is generated by the server.
type RegisterRequest struct {
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Address  string `json:"address" binding:"required,ledger_address"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token   string `json:"token"`
	Expiry  int64  `json:"expiry"` // Unix timestamp
	Address string `json:"address"`
}

// CreateStreamRequest is the request body for POST /streams. Value checks
// (valid worker, positive integral rate and deposit) are done by the ledger
// so clients get the specific error code.
type CreateStreamRequest struct {
	Worker         string           `json:"worker" binding:"required"`
	RatePerSecond  *decimal.Decimal `json:"rate_per_second" binding:"required"`
	Deposit        *decimal.Decimal `json:"deposit" binding:"required"`
	IdempotencyKey string           `json:"idempotency_key,omitempty" binding:"omitempty,max=100,safe_id"`
}

// AmountRequest is the body of deposit top-ups and account funding.
type AmountRequest struct {
	Amount *decimal.Decimal `json:"amount" binding:"required"`
}

// AccountResponse is a party's available balance.
type AccountResponse struct {
	Address   string `json:"address"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"created_at"`
}

// StreamResponse renders a stream record.
type StreamResponse struct {
	ID             uint64  `json:"id"`
	Employer       string  `json:"employer"`
	Worker         string  `json:"worker"`
	RatePerSecond  string  `json:"rate_per_second"`
	StartTime      string  `json:"start_time"`
	LastSettlement string  `json:"last_settlement"`
	Deposit        string  `json:"deposit"`
	Withdrawn      string  `json:"withdrawn"`
	Refunded       string  `json:"refunded"`
	Locked         string  `json:"locked"`
	Active         bool    `json:"active"`
	Terminated     bool    `json:"terminated"`
	PausedAt       *string `json:"paused_at,omitempty"`
	StoppedAt      *string `json:"stopped_at,omitempty"`
}

// EventResponse renders one stream event.
type EventResponse struct {
	ID            string  `json:"id"`
	StreamID      uint64  `json:"stream_id"`
	Type          string  `json:"type"`
	Actor         string  `json:"actor"`
	Employer      string  `json:"employer"`
	Worker        string  `json:"worker"`
	Amount        string  `json:"amount"`
	RatePerSecond *string `json:"rate_per_second,omitempty"`
	Refund        *string `json:"refund,omitempty"`
	OccurredAt    string  `json:"occurred_at"`
}

// OperationResponse is returned by every stream mutation.
type OperationResponse struct {
	Stream StreamResponse  `json:"stream"`
	Events []EventResponse `json:"events"`
	Replay bool            `json:"replay,omitempty"`
}

// EarnedResponse is the worker's currently withdrawable amount.
type EarnedResponse struct {
	StreamID uint64 `json:"stream_id"`
	Earned   string `json:"earned"`
}

// StreamListResponse wraps a paginated stream list.
type StreamListResponse struct {
	Items      []StreamResponse `json:"items"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

// EventListResponse wraps a stream's event history.
type EventListResponse struct {
	StreamID uint64          `json:"stream_id"`
	Items    []EventResponse `json:"items"`
}
