package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stream-ledger/internal/adapter/http/middleware"
	"stream-ledger/internal/core/domain"
	"stream-ledger/internal/core/ports"
	"stream-ledger/internal/core/ports/mocks"
	"stream-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	employer = domain.Address("0xe000000000000000000000000000000000000001")
	worker   = domain.Address("0xa000000000000000000000000000000000000002")
	t0       = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newContext builds a test context, optionally authenticated as caller.
func newContext(method, path, body string, caller domain.Address) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
		r.Header.Set("Content-Type", "application/json")
	}
	c.Request = r
	if caller != "" {
		c.Set(middleware.CtxCallerAddress, caller)
	}
	return c, w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data: %s", w.Body.String())
	return data
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func sampleStream() *domain.Stream {
	return &domain.Stream{
		ID:             3,
		Employer:       employer,
		Worker:         worker,
		RatePerSecond:  decimal.NewFromInt(5),
		StartTime:      t0,
		LastSettlement: t0,
		Deposit:        decimal.NewFromInt(1000),
		Withdrawn:      decimal.NewFromInt(100),
		Refunded:       decimal.Zero,
		Active:         true,
	}
}

// --- Auth Handler Tests ---

func TestRegister_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Register(gomock.Any(), "password123").Return(&domain.Account{
		Address:   worker,
		Balance:   decimal.Zero,
		CreatedAt: t0,
	}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/auth/register", `{"password":"password123"}`, "")
	h.Register(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, worker.String(), data["address"])
	assert.Equal(t, "0", data["balance"])
	assert.NotContains(t, w.Body.String(), "password")
}

func TestRegister_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	c, w := newContext(http.MethodPost, "/api/v1/auth/register", `{"password":"short"}`, "")
	h.Register(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_000", decodeErrorCode(t, w))
}

func TestLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	expiry := t0.Add(24 * time.Hour)
	mockAuth.EXPECT().Login(gomock.Any(), worker, "password123").Return("jwt-token", expiry, nil)

	body := `{"address":"0xA000000000000000000000000000000000000002","password":"password123"}`
	c, w := newContext(http.MethodPost, "/api/v1/auth/login", body, "")
	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "jwt-token", data["token"])
	assert.Equal(t, float64(expiry.Unix()), data["expiry"])
	assert.Equal(t, worker.String(), data["address"])
}

func TestLogin_MalformedAddress(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	c, w := newContext(http.MethodPost, "/api/v1/auth/login", `{"address":"alice","password":"password123"}`, "")
	h.Login(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Login(gomock.Any(), worker, "wrongpass").
		Return("", time.Time{}, apperror.ErrInvalidCredentials())

	body := `{"address":"` + worker.String() + `","password":"wrongpass"}`
	c, w := newContext(http.MethodPost, "/api/v1/auth/login", body, "")
	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_001", decodeErrorCode(t, w))
}

// --- Account Handler Tests ---

func TestAccountMe_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAcc := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(mockAcc)

	mockAcc.EXPECT().GetAccount(gomock.Any(), employer).Return(&domain.Account{
		Address: employer, Balance: decimal.RequireFromString("5000000000000000000000"), CreatedAt: t0,
	}, nil)

	c, w := newContext(http.MethodGet, "/api/v1/accounts/me", "", employer)
	h.Me(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5000000000000000000000", decodeData(t, w)["balance"])
}

func TestAccountMe_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewAccountHandler(mocks.NewMockAccountService(ctrl))

	c, w := newContext(http.MethodGet, "/api/v1/accounts/me", "", "")
	h.Me(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAccountFund(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAcc := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(mockAcc)

	mockAcc.EXPECT().Fund(gomock.Any(), employer, gomock.Any()).
		DoAndReturn(func(_ context.Context, addr domain.Address, amount decimal.Decimal) (*domain.Account, error) {
			assert.Equal(t, "250", amount.String())
			return &domain.Account{Address: addr, Balance: amount, CreatedAt: t0}, nil
		})

	c, w := newContext(http.MethodPost, "/api/v1/accounts/me/fund", `{"amount":"250"}`, employer)
	h.Fund(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "250", decodeData(t, w)["balance"])
}

func TestAccountFund_Disabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAcc := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(mockAcc)

	mockAcc.EXPECT().Fund(gomock.Any(), employer, gomock.Any()).Return(nil, apperror.ErrFundingDisabled())

	c, w := newContext(http.MethodPost, "/api/v1/accounts/me/fund", `{"amount":10}`, employer)
	h.Fund(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

// --- Stream Handler Tests ---

func TestCreateStream_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockStreamLedger(ctrl)
	h := NewStreamHandler(ledger)

	st := sampleStream()
	st.Withdrawn = decimal.Zero
	created := domain.NewEvent(st, domain.EventStreamCreated, employer, st.Deposit, t0)
	created.Rate = &st.RatePerSecond

	ledger.EXPECT().CreateStream(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.CreateStreamRequest) (*ports.OperationResult, error) {
			assert.Equal(t, employer, req.Employer)
			assert.Equal(t, worker, req.Worker)
			assert.Equal(t, "5", req.RatePerSecond.String())
			assert.Equal(t, "1000", req.Deposit.String())
			assert.Equal(t, "payroll-1", req.IdempotencyKey)
			return &ports.OperationResult{Stream: st, Events: []domain.Event{created}}, nil
		})

	body := `{"worker":"` + worker.String() + `","rate_per_second":"5","deposit":1000,"idempotency_key":"payroll-1"}`
	c, w := newContext(http.MethodPost, "/api/v1/streams", body, employer)
	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	stream := data["stream"].(map[string]interface{})
	assert.Equal(t, float64(3), stream["id"])
	assert.Equal(t, "1000", stream["locked"])
	events := data["events"].([]interface{})
	require.Len(t, events, 1)
	ev := events[0].(map[string]interface{})
	assert.Equal(t, "StreamCreated", ev["type"])
	assert.Equal(t, "5", ev["rate_per_second"])
	assert.NotContains(t, data, "replay")
}

func TestCreateStream_ReplayReturns200(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockStreamLedger(ctrl)
	h := NewStreamHandler(ledger)

	ledger.EXPECT().CreateStream(gomock.Any(), gomock.Any()).
		Return(&ports.OperationResult{Stream: sampleStream(), Replay: true}, nil)

	body := `{"worker":"` + worker.String() + `","rate_per_second":"5","deposit":"1000","idempotency_key":"k1"}`
	c, w := newContext(http.MethodPost, "/api/v1/streams", body, employer)
	h.Create(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeData(t, w)["replay"])
}

func TestCreateStream_InvalidWorker(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewStreamHandler(mocks.NewMockStreamLedger(ctrl))

	body := `{"worker":"0x0000000000000000000000000000000000000000","rate_per_second":"5","deposit":"1000"}`
	c, w := newContext(http.MethodPost, "/api/v1/streams", body, employer)
	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_001", decodeErrorCode(t, w))
}

func TestCreateStream_MissingDeposit(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewStreamHandler(mocks.NewMockStreamLedger(ctrl))

	body := `{"worker":"` + worker.String() + `","rate_per_second":"5"}`
	c, w := newContext(http.MethodPost, "/api/v1/streams", body, employer)
	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_000", decodeErrorCode(t, w))
}

func TestCreateStream_LedgerRejects(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockStreamLedger(ctrl)
	h := NewStreamHandler(ledger)

	ledger.EXPECT().CreateStream(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInsufficientFunds())

	body := `{"worker":"` + worker.String() + `","rate_per_second":"5","deposit":"1000"}`
	c, w := newContext(http.MethodPost, "/api/v1/streams", body, employer)
	h.Create(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "ECON_002", decodeErrorCode(t, w))
}

func TestLifecycleHandlers(t *testing.T) {
	tests := []struct {
		name     string
		caller   domain.Address
		call     func(h *StreamHandler, c *gin.Context)
		expect   func(l *mocks.MockStreamLedgerMockRecorder) *gomock.Call
		err      error
		wantCode int
		wantErr  string
	}{
		{
			name:   "withdraw",
			caller: worker,
			call:   (*StreamHandler).Withdraw,
			expect: func(l *mocks.MockStreamLedgerMockRecorder) *gomock.Call {
				return l.Withdraw(gomock.Any(), worker, domain.StreamID(3))
			},
			wantCode: http.StatusOK,
		},
		{
			name:   "withdraw by employer",
			caller: employer,
			call:   (*StreamHandler).Withdraw,
			expect: func(l *mocks.MockStreamLedgerMockRecorder) *gomock.Call {
				return l.Withdraw(gomock.Any(), employer, domain.StreamID(3))
			},
			err:      apperror.ErrNotWorker(),
			wantCode: http.StatusForbidden,
			wantErr:  "AUTHZ_002",
		},
		{
			name:   "withdraw nothing",
			caller: worker,
			call:   (*StreamHandler).Withdraw,
			expect: func(l *mocks.MockStreamLedgerMockRecorder) *gomock.Call {
				return l.Withdraw(gomock.Any(), worker, domain.StreamID(3))
			},
			err:      apperror.ErrNothingToWithdraw(),
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "ECON_001",
		},
		{
			name:   "pause",
			caller: employer,
			call:   (*StreamHandler).Pause,
			expect: func(l *mocks.MockStreamLedgerMockRecorder) *gomock.Call {
				return l.PauseStream(gomock.Any(), employer, domain.StreamID(3))
			},
			wantCode: http.StatusOK,
		},
		{
			name:   "pause paused",
			caller: employer,
			call:   (*StreamHandler).Pause,
			expect: func(l *mocks.MockStreamLedgerMockRecorder) *gomock.Call {
				return l.PauseStream(gomock.Any(), employer, domain.StreamID(3))
			},
			err:      apperror.ErrStreamPaused(),
			wantCode: http.StatusConflict,
			wantErr:  "STATE_001",
		},
		{
			name:   "resume",
			caller: employer,
			call:   (*StreamHandler).Resume,
			expect: func(l *mocks.MockStreamLedgerMockRecorder) *gomock.Call {
				return l.ResumeStream(gomock.Any(), employer, domain.StreamID(3))
			},
			wantCode: http.StatusOK,
		},
		{
			name:   "stop terminated",
			caller: employer,
			call:   (*StreamHandler).Stop,
			expect: func(l *mocks.MockStreamLedgerMockRecorder) *gomock.Call {
				return l.StopStream(gomock.Any(), employer, domain.StreamID(3))
			},
			err:      apperror.ErrStreamTerminated(),
			wantCode: http.StatusConflict,
			wantErr:  "STATE_003",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			ledger := mocks.NewMockStreamLedger(ctrl)
			h := NewStreamHandler(ledger)

			if tt.err != nil {
				tt.expect(ledger.EXPECT()).Return(nil, tt.err)
			} else {
				tt.expect(ledger.EXPECT()).Return(&ports.OperationResult{Stream: sampleStream()}, nil)
			}

			c, w := newContext(http.MethodPost, "/api/v1/streams/3/x", "", tt.caller)
			c.Params = gin.Params{{Key: "id", Value: "3"}}
			tt.call(h, c)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, decodeErrorCode(t, w))
			}
		})
	}
}

func TestLifecycle_InvalidID(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewStreamHandler(mocks.NewMockStreamLedger(ctrl))

	for _, id := range []string{"abc", "-1", "1.5"} {
		c, w := newContext(http.MethodPost, "/api/v1/streams/x/withdraw", "", worker)
		c.Params = gin.Params{{Key: "id", Value: id}}
		h.Withdraw(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, id)
	}
}

func TestLifecycle_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewStreamHandler(mocks.NewMockStreamLedger(ctrl))

	c, w := newContext(http.MethodPost, "/api/v1/streams/3/stop", "", "")
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	h.Stop(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeposit(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockStreamLedger(ctrl)
	h := NewStreamHandler(ledger)

	ledger.EXPECT().AddDeposit(gomock.Any(), employer, domain.StreamID(3), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.Address, _ domain.StreamID, amount decimal.Decimal) (*ports.OperationResult, error) {
			assert.Equal(t, "500", amount.String())
			st := sampleStream()
			st.Deposit = st.Deposit.Add(amount)
			return &ports.OperationResult{Stream: st}, nil
		})

	c, w := newContext(http.MethodPost, "/api/v1/streams/3/deposit", `{"amount":"500"}`, employer)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	h.Deposit(c)

	assert.Equal(t, http.StatusOK, w.Code)
	stream := decodeData(t, w)["stream"].(map[string]interface{})
	assert.Equal(t, "1500", stream["deposit"])
	assert.Equal(t, "1400", stream["locked"])
}

func TestDeposit_MissingAmount(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewStreamHandler(mocks.NewMockStreamLedger(ctrl))

	c, w := newContext(http.MethodPost, "/api/v1/streams/3/deposit", `{}`, employer)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	h.Deposit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeposit_ChecksCallerAndIDBeforeBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewStreamHandler(mocks.NewMockStreamLedger(ctrl))

	t.Run("unauthenticated with bad body", func(t *testing.T) {
		c, w := newContext(http.MethodPost, "/api/v1/streams/3/deposit", `{"amount":`, "")
		c.Params = gin.Params{{Key: "id", Value: "3"}}
		h.Deposit(c)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "AUTH_002", decodeErrorCode(t, w))
	})

	t.Run("bad id with bad body", func(t *testing.T) {
		c, w := newContext(http.MethodPost, "/api/v1/streams/x/deposit", `{}`, employer)
		c.Params = gin.Params{{Key: "id", Value: "x"}}
		h.Deposit(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp struct {
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "invalid stream id", resp.Message)
	})
}

func TestGetStream_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockStreamLedger(ctrl)
	h := NewStreamHandler(ledger)

	ledger.EXPECT().GetStreamInfo(gomock.Any(), domain.StreamID(42)).Return(nil, apperror.ErrNotFound("stream"))

	c, w := newContext(http.MethodGet, "/api/v1/streams/42", "", worker)
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEarned(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockStreamLedger(ctrl)
	h := NewStreamHandler(ledger)

	ledger.EXPECT().CalculateEarned(gomock.Any(), domain.StreamID(3)).Return(decimal.NewFromInt(50), nil)

	c, w := newContext(http.MethodGet, "/api/v1/streams/3/earned", "", worker)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	h.Earned(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "50", data["earned"])
	assert.Equal(t, float64(3), data["stream_id"])
}

func TestEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockStreamLedger(ctrl)
	h := NewStreamHandler(ledger)

	st := sampleStream()
	refund := decimal.NewFromInt(400)
	stopped := domain.NewEvent(st, domain.EventStreamStopped, employer, decimal.NewFromInt(500), t0)
	stopped.Refund = &refund
	ledger.EXPECT().ListEvents(gomock.Any(), domain.StreamID(3)).Return([]domain.Event{stopped}, nil)

	c, w := newContext(http.MethodGet, "/api/v1/streams/3/events", "", worker)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	h.Events(c)

	assert.Equal(t, http.StatusOK, w.Code)
	items := decodeData(t, w)["items"].([]interface{})
	require.Len(t, items, 1)
	ev := items[0].(map[string]interface{})
	assert.Equal(t, "400", ev["refund"])
	assert.NotContains(t, ev, "rate_per_second")
}

func TestListStreams_DefaultsToCaller(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockStreamLedger(ctrl)
	h := NewStreamHandler(ledger)

	ledger.EXPECT().ListStreams(gomock.Any(), ports.StreamListParams{Party: worker, Page: 1, PageSize: 20}).
		Return([]domain.Stream{*sampleStream()}, int64(21), nil)

	c, w := newContext(http.MethodGet, "/api/v1/streams", "", worker)
	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(21), data["total"])
	assert.Equal(t, float64(2), data["total_pages"])
	assert.Len(t, data["items"], 1)
}

func TestListStreams_PartyAndRole(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockStreamLedger(ctrl)
	h := NewStreamHandler(ledger)

	role := domain.RoleEmployer
	ledger.EXPECT().ListStreams(gomock.Any(), ports.StreamListParams{Party: employer, Role: &role, Page: 2, PageSize: 5}).
		Return([]domain.Stream{}, int64(0), nil)

	c, w := newContext(http.MethodGet, "/api/v1/streams?party="+employer.String()+"&role=employer&page=2&page_size=5", "", worker)
	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListStreams_BadParty(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewStreamHandler(mocks.NewMockStreamLedger(ctrl))

	c, w := newContext(http.MethodGet, "/api/v1/streams?party=nobody", "", worker)
	h.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Health & docs ---

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(context.Context) error { return s.err }
func (s stubChecker) Name() string               { return s.name }

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		c, w := newContext(http.MethodGet, "/health", "", "")
		HealthCheck(stubChecker{name: "memory"})(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"healthy"`)
	})

	t.Run("degraded", func(t *testing.T) {
		c, w := newContext(http.MethodGet, "/health", "", "")
		HealthCheck(stubChecker{name: "postgresql"}, stubChecker{name: "redis", err: errors.New("refused")})(c)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "refused")
	})
}

func TestSwagger(t *testing.T) {
	c, w := newContext(http.MethodGet, "/swagger", "", "")
	SwaggerUI(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "swagger-ui")

	c, w = newContext(http.MethodGet, "/swagger/spec", "", "")
	SwaggerSpec(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Stream Ledger API")
	assert.Contains(t, w.Body.String(), "/streams/{id}/withdraw")
}
