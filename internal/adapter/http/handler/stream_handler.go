package handler

import (
	"context"
	"math"
	"strconv"
	"time"

	"stream-ledger/internal/adapter/http/dto"
	"stream-ledger/internal/adapter/http/middleware"
	"stream-ledger/internal/core/domain"
	"stream-ledger/internal/core/ports"
	"stream-ledger/pkg/apperror"
	"stream-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// StreamHandler exposes the stream ledger.
type StreamHandler struct {
	ledger ports.StreamLedger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(ledger ports.StreamLedger) *StreamHandler {
	return &StreamHandler{ledger: ledger}
}

// Create handles POST /api/v1/streams. The caller is the employer.
// A replayed idempotency key answers 200 with the original stream.
func (h *StreamHandler) Create(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	worker, err := domain.ParseAddress(req.Worker)
	if err != nil {
		response.Error(c, apperror.ErrInvalidWorker())
		return
	}

	result, err := h.ledger.CreateStream(c.Request.Context(), ports.CreateStreamRequest{
		Employer:       caller,
		Worker:         worker,
		RatePerSecond:  *req.RatePerSecond,
		Deposit:        *req.Deposit,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Replay {
		response.OK(c, toOperationResponse(result))
		return
	}
	response.Created(c, toOperationResponse(result))
}

// List handles GET /api/v1/streams. The party defaults to the caller and
// role (employer|worker) narrows the match.
func (h *StreamHandler) List(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	party := caller
	if p := c.Query("party"); p != "" {
		parsed, err := domain.ParseAddress(p)
		if err != nil {
			response.Error(c, apperror.Validation("invalid party address"))
			return
		}
		party = parsed
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	params := ports.StreamListParams{Party: party, Page: page, PageSize: pageSize}
	if r := c.Query("role"); r != "" {
		role := domain.Role(r)
		params.Role = &role
	}

	streams, total, err := h.ledger.ListStreams(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.StreamResponse, 0, len(streams))
	for i := range streams {
		items = append(items, toStreamResponse(&streams[i]))
	}

	response.OK(c, dto.StreamListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	})
}

// Get handles GET /api/v1/streams/:id.
func (h *StreamHandler) Get(c *gin.Context) {
	id, ok := streamID(c)
	if !ok {
		return
	}
	st, err := h.ledger.GetStreamInfo(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toStreamResponse(st))
}

// Earned handles GET /api/v1/streams/:id/earned.
func (h *StreamHandler) Earned(c *gin.Context) {
	id, ok := streamID(c)
	if !ok {
		return
	}
	earned, err := h.ledger.CalculateEarned(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.EarnedResponse{StreamID: uint64(id), Earned: earned.String()})
}

// Events handles GET /api/v1/streams/:id/events.
func (h *StreamHandler) Events(c *gin.Context) {
	id, ok := streamID(c)
	if !ok {
		return
	}
	events, err := h.ledger.ListEvents(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.EventListResponse{StreamID: uint64(id), Items: toEventResponses(events)})
}

// Withdraw handles POST /api/v1/streams/:id/withdraw.
func (h *StreamHandler) Withdraw(c *gin.Context) {
	h.lifecycle(c, h.ledger.Withdraw)
}

// Pause handles POST /api/v1/streams/:id/pause.
func (h *StreamHandler) Pause(c *gin.Context) {
	h.lifecycle(c, h.ledger.PauseStream)
}

// Resume handles POST /api/v1/streams/:id/resume.
func (h *StreamHandler) Resume(c *gin.Context) {
	h.lifecycle(c, h.ledger.ResumeStream)
}

// Stop handles POST /api/v1/streams/:id/stop.
func (h *StreamHandler) Stop(c *gin.Context) {
	h.lifecycle(c, h.ledger.StopStream)
}

// Deposit handles POST /api/v1/streams/:id/deposit.
func (h *StreamHandler) Deposit(c *gin.Context) {
	// the body is read only after the caller and path are accepted
	h.lifecycle(c, func(ctx context.Context, caller domain.Address, id domain.StreamID) (*ports.OperationResult, error) {
		var req dto.AmountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, apperror.Validation(err.Error())
		}
		return h.ledger.AddDeposit(ctx, caller, id, *req.Amount)
	})
}

type lifecycleOp func(ctx context.Context, caller domain.Address, id domain.StreamID) (*ports.OperationResult, error)

func (h *StreamHandler) lifecycle(c *gin.Context, op lifecycleOp) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	id, ok := streamID(c)
	if !ok {
		return
	}

	result, err := op(c.Request.Context(), caller, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toOperationResponse(result))
}

// streamID parses the :id path parameter, writing the error response itself.
func streamID(c *gin.Context) (domain.StreamID, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, apperror.Validation("invalid stream id"))
		return 0, false
	}
	return domain.StreamID(id), true
}

func toOperationResponse(r *ports.OperationResult) dto.OperationResponse {
	return dto.OperationResponse{
		Stream: toStreamResponse(r.Stream),
		Events: toEventResponses(r.Events),
		Replay: r.Replay,
	}
}

func toStreamResponse(s *domain.Stream) dto.StreamResponse {
	return dto.StreamResponse{
		ID:             uint64(s.ID),
		Employer:       s.Employer.String(),
		Worker:         s.Worker.String(),
		RatePerSecond:  s.RatePerSecond.String(),
		StartTime:      formatTime(s.StartTime),
		LastSettlement: formatTime(s.LastSettlement),
		Deposit:        s.Deposit.String(),
		Withdrawn:      s.Withdrawn.String(),
		Refunded:       s.Refunded.String(),
		Locked:         s.Locked().String(),
		Active:         s.Active,
		Terminated:     s.Terminated,
		PausedAt:       formatTimePtr(s.PausedAt),
		StoppedAt:      formatTimePtr(s.StoppedAt),
	}
}

func toEventResponses(events []domain.Event) []dto.EventResponse {
	out := make([]dto.EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, dto.EventResponse{
			ID:            e.ID.String(),
			StreamID:      uint64(e.StreamID),
			Type:          string(e.Type),
			Actor:         e.Actor.String(),
			Employer:      e.Employer.String(),
			Worker:        e.Worker.String(),
			Amount:        e.Amount.String(),
			RatePerSecond: decimalPtr(e.Rate),
			Refund:        decimalPtr(e.Refund),
			OccurredAt:    formatTime(e.OccurredAt),
		})
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func decimalPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
