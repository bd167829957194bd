package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/card_ledger/internal/apperrors"
	"github.com/SscSPs/card_ledger/internal/core/domain"
	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
	"github.com/SscSPs/card_ledger/internal/dto"
	"github.com/SscSPs/card_ledger/internal/handlers"
	"github.com/SscSPs/card_ledger/internal/middleware"
	"github.com/SscSPs/card_ledger/internal/platform/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type HandlerTestSuite struct {
	suite.Suite
	router          *gin.Engine
	cfg             *config.Config
	authorization   *MockAuthorizationService
	ledger          *MockLedgerService
	spendLimits     *MockSpendLimitService
	holdSweeper     *MockHoldSweeper
	negativeBalance *MockNegativeBalanceService
	operatorID      string
}

func (suite *HandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.cfg = &config.Config{
		JWTSecret:     "test-secret-key-that-is-long-enough",
		WebhookSecret: "network-shared-secret",
	}
	suite.operatorID = uuid.NewString()

	suite.authorization = new(MockAuthorizationService)
	suite.ledger = new(MockLedgerService)
	suite.spendLimits = new(MockSpendLimitService)
	suite.holdSweeper = new(MockHoldSweeper)
	suite.negativeBalance = new(MockNegativeBalanceService)

	services := &portssvc.ServiceContainer{
		Ledger:          suite.ledger,
		SpendLimits:     &spendLimitFacade{MockSpendLimitService: suite.spendLimits},
		Authorization:   suite.authorization,
		HoldSweeper:     suite.holdSweeper,
		NegativeBalance: suite.negativeBalance,
	}
	suite.Require().NoError(handlers.RegisterRoutes(suite.router, suite.cfg, services, nil))
}

func (suite *HandlerTestSuite) TearDownTest() {
	suite.authorization.AssertExpectations(suite.T())
	suite.ledger.AssertExpectations(suite.T())
	suite.spendLimits.AssertExpectations(suite.T())
	suite.holdSweeper.AssertExpectations(suite.T())
	suite.negativeBalance.AssertExpectations(suite.T())
}

// generateTestToken creates a signed operator JWT.
func (suite *HandlerTestSuite) generateTestToken() string {
	claims := jwt.RegisteredClaims{
		Issuer:    "card-ledger-test",
		Subject:   suite.operatorID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(suite.cfg.JWTSecret))
	suite.Require().NoError(err)
	return signed
}

func (suite *HandlerTestSuite) apiRequest(method, url string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+suite.generateTestToken())
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlerTestSuite) webhookRequest(raw []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/network-events", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(middleware.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlerTestSuite) decode(w *httptest.ResponseRecorder, target any) {
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), target), w.Body.String())
}

// --- Network events ---

func (suite *HandlerTestSuite) TestNetworkEvent_DeclineAnsweredWithOK() {
	raw := []byte(`{
		"externalRef": "ev-1",
		"type": "AUTH_REQUEST",
		"cardExternalRef": "card-ext-1",
		"authorizationRef": "auth-1",
		"amount": "25.50",
		"currency": "USD",
		"merchant": {"name": "Corner Shop", "categoryCode": 5411, "country": "USA"},
		"method": "CHIP",
		"verification": {"cvc": "MISMATCH"}
	}`)

	suite.authorization.On("Process", mock.Anything, mock.MatchedBy(func(e domain.NetworkEvent) bool {
		return e.ExternalRef == "ev-1" &&
			e.Type == domain.AuthRequest &&
			e.Amount.Equal(domain.MustAmount(domain.USD, "25.5")) &&
			e.Merchant.CategoryCode == 5411 &&
			e.Verification.CVC == domain.VerificationMismatch &&
			!e.ReceivedAt.IsZero()
	})).Return(&domain.ProcessingOutcome{
		Decision:         domain.Declined,
		Reason:           domain.DeclineCVCMismatch,
		NetworkMessageID: "nm-1",
		DeclineID:        "dec-1",
	}, nil).Once()

	w := suite.webhookRequest(raw, middleware.Sign(suite.cfg.WebhookSecret, raw))

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.NetworkEventResponse
	suite.decode(w, &resp)
	suite.Equal(domain.Declined, resp.Decision)
	suite.Equal(domain.DeclineCVCMismatch, resp.Reason)
	suite.Equal("dec-1", resp.DeclineID)
}

func (suite *HandlerTestSuite) TestNetworkEvent_RejectsBadSignature() {
	raw := []byte(`{"externalRef":"ev-1","type":"AUTH_REQUEST","cardExternalRef":"c","amount":"1","currency":"USD"}`)

	suite.Equal(http.StatusUnauthorized, suite.webhookRequest(raw, "").Code)
	suite.Equal(http.StatusUnauthorized, suite.webhookRequest(raw, middleware.Sign("other-secret", raw)).Code)
	suite.authorization.AssertNotCalled(suite.T(), "Process", mock.Anything, mock.Anything)
}

func (suite *HandlerTestSuite) TestNetworkEvent_InvalidPayload() {
	raw := []byte(`{"externalRef":"ev-1","type":"CHARGEBACK","cardExternalRef":"c","amount":"1","currency":"USD"}`)

	w := suite.webhookRequest(raw, middleware.Sign(suite.cfg.WebhookSecret, raw))

	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlerTestSuite) TestNetworkEvent_ServiceErrors() {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("authorization auth-9: %w", apperrors.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("account acc-1: %w", apperrors.ErrLockTimeout), http.StatusServiceUnavailable},
		{fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}
	for i, tc := range cases {
		raw := []byte(fmt.Sprintf(`{"externalRef":"ev-%d","type":"AUTH_REVERSAL","cardExternalRef":"c","authorizationRef":"auth-9","amount":"1","currency":"USD"}`, i))
		suite.authorization.On("Process", mock.Anything, mock.MatchedBy(func(e domain.NetworkEvent) bool {
			return e.ExternalRef == fmt.Sprintf("ev-%d", i)
		})).Return(nil, tc.err).Once()

		w := suite.webhookRequest(raw, middleware.Sign(suite.cfg.WebhookSecret, raw))
		suite.Equal(tc.status, w.Code, tc.err.Error())
	}
}

// --- Ledger ---

func (suite *HandlerTestSuite) TestGetAccountBalance() {
	suite.ledger.On("LedgerBalance", mock.Anything, "acc-1").Return(domain.MustAmount(domain.USD, "100"), nil).Once()
	suite.ledger.On("AvailableBalance", mock.Anything, "acc-1").Return(domain.MustAmount(domain.USD, "74.5"), nil).Once()

	w := suite.apiRequest(http.MethodGet, "/api/v1/accounts/acc-1/balance", nil)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.BalanceResponse
	suite.decode(w, &resp)
	suite.Equal(domain.USD, resp.Currency)
	suite.True(resp.LedgerBalance.Equal(decimal.NewFromInt(100)))
	suite.True(resp.AvailableBalance.Equal(decimal.RequireFromString("74.5")))
}

func (suite *HandlerTestSuite) TestGetAccountBalance_RequiresToken() {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/acc-1/balance", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlerTestSuite) TestGetAccountBalance_NotFound() {
	suite.ledger.On("LedgerBalance", mock.Anything, "missing").
		Return(domain.Amount{}, fmt.Errorf("account missing: %w", apperrors.ErrNotFound)).Once()

	w := suite.apiRequest(http.MethodGet, "/api/v1/accounts/missing/balance", nil)

	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlerTestSuite) TestListBusinessBalances() {
	suite.ledger.On("BusinessBalances", mock.Anything, "biz-1").Return([]domain.AccountBalance{
		{AccountID: "acc-1", AllocationID: "alloc-1", LedgerBalance: domain.MustAmount(domain.USD, "10"), AvailableBalance: domain.MustAmount(domain.USD, "5")},
		{AccountID: "acc-2", AllocationID: "alloc-2", LedgerBalance: domain.MustAmount(domain.USD, "-3"), AvailableBalance: domain.MustAmount(domain.USD, "-3")},
	}, nil).Once()

	w := suite.apiRequest(http.MethodGet, "/api/v1/businesses/biz-1/balances", nil)

	suite.Equal(http.StatusOK, w.Code)
	var resp []dto.BalanceResponse
	suite.decode(w, &resp)
	suite.Len(resp, 2)
	suite.Equal("alloc-2", resp[1].AllocationID)
	suite.True(resp[1].LedgerBalance.Equal(decimal.NewFromInt(-3)))
}

func (suite *HandlerTestSuite) TestListActivities() {
	suite.ledger.On("ListActivities", mock.Anything, "acc-1", 20, "").Return(&domain.ActivityPage{
		Activities: []domain.AccountActivity{
			{ActivityID: "act-2", Type: domain.ActivityNetworkAuthorization, Status: domain.ActivityPending, Amount: domain.MustAmount(domain.USD, "-4")},
			{ActivityID: "act-1", Type: domain.ActivityDeposit, Status: domain.ActivityProcessed, Amount: domain.MustAmount(domain.USD, "10")},
		},
		NextToken: "cursor-1",
	}, nil).Once()
	suite.ledger.On("ListActivities", mock.Anything, "acc-1", 5, "cursor-1").
		Return(&domain.ActivityPage{Activities: []domain.AccountActivity{}}, nil).Once()

	w := suite.apiRequest(http.MethodGet, "/api/v1/accounts/acc-1/activities", nil)
	suite.Equal(http.StatusOK, w.Code)
	var resp dto.ListActivitiesResponse
	suite.decode(w, &resp)
	suite.Require().Len(resp.Activities, 2)
	suite.Equal(domain.ActivityPending, resp.Activities[0].Status)
	suite.Require().NotNil(resp.NextToken)
	suite.Equal("cursor-1", *resp.NextToken)

	w = suite.apiRequest(http.MethodGet, "/api/v1/accounts/acc-1/activities?limit=5&nextToken=cursor-1", nil)
	suite.Equal(http.StatusOK, w.Code)
	resp = dto.ListActivitiesResponse{}
	suite.decode(w, &resp)
	suite.Empty(resp.Activities)
	suite.Nil(resp.NextToken)

	w = suite.apiRequest(http.MethodGet, "/api/v1/accounts/acc-1/activities?limit=500", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlerTestSuite) TestCreateAdjustment() {
	suite.ledger.On("RecordAdjustment", mock.Anything, mock.MatchedBy(func(p domain.AdjustmentParams) bool {
		return p.AccountID == "acc-1" && p.Type == domain.AdjustmentDeposit && p.Amount.Equal(domain.MustAmount(domain.USD, "250"))
	})).Return(&domain.Adjustment{
		AdjustmentID: "adj-1",
		AccountID:    "acc-1",
		Type:         domain.AdjustmentDeposit,
		Amount:       domain.MustAmount(domain.USD, "250"),
	}, nil).Once()

	w := suite.apiRequest(http.MethodPost, "/api/v1/accounts/acc-1/adjustments", map[string]any{
		"type": "DEPOSIT", "amount": "250", "currency": "USD",
	})

	suite.Equal(http.StatusCreated, w.Code)
	var resp dto.AdjustmentResponse
	suite.decode(w, &resp)
	suite.Equal("adj-1", resp.AdjustmentID)
	suite.True(resp.Amount.Equal(decimal.NewFromInt(250)))
}

func (suite *HandlerTestSuite) TestCreateAdjustment_Rejections() {
	// Reallocations go through their own endpoint.
	w := suite.apiRequest(http.MethodPost, "/api/v1/accounts/acc-1/adjustments", map[string]any{
		"type": "REALLOCATE", "amount": "10", "currency": "USD",
	})
	suite.Equal(http.StatusBadRequest, w.Code)

	suite.ledger.On("RecordAdjustment", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("account acc-1: %w", apperrors.ErrInsufficientFunds)).Once()
	w = suite.apiRequest(http.MethodPost, "/api/v1/accounts/acc-1/adjustments", map[string]any{
		"type": "WITHDRAW", "amount": "-10", "currency": "USD",
	})
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (suite *HandlerTestSuite) TestReallocateFunds() {
	suite.ledger.On("ReallocateFunds", mock.Anything, "biz-1", "alloc-root", "alloc-team", mock.MatchedBy(func(a domain.Amount) bool {
		return a.Equal(domain.MustAmount(domain.USD, "40"))
	})).Return(&domain.Reallocation{
		BusinessID: "biz-1",
		From:       domain.Adjustment{AdjustmentID: "adj-from", Amount: domain.MustAmount(domain.USD, "-40")},
		To:         domain.Adjustment{AdjustmentID: "adj-to", Amount: domain.MustAmount(domain.USD, "40")},
	}, nil).Once()

	w := suite.apiRequest(http.MethodPost, "/api/v1/businesses/biz-1/reallocations", map[string]any{
		"fromAllocationID": "alloc-root", "toAllocationID": "alloc-team", "amount": "40", "currency": "USD",
	})

	suite.Equal(http.StatusCreated, w.Code)
	var resp dto.ReallocationResponse
	suite.decode(w, &resp)
	suite.Equal("adj-from", resp.From.AdjustmentID)
	suite.True(resp.From.Amount.Equal(decimal.NewFromInt(-40)))
}

func (suite *HandlerTestSuite) TestReallocateFunds_SameAllocation() {
	w := suite.apiRequest(http.MethodPost, "/api/v1/businesses/biz-1/reallocations", map[string]any{
		"fromAllocationID": "alloc-root", "toAllocationID": "alloc-root", "amount": "40", "currency": "USD",
	})

	suite.Equal(http.StatusBadRequest, w.Code)
}

// --- Spend limits ---

func (suite *HandlerTestSuite) TestGetSpendLimit() {
	suite.spendLimits.On("GetSpendLimit", mock.Anything, "biz-1", domain.OwnerCard, "card-1").Return(&domain.SpendLimitConfig{
		BusinessID: "biz-1",
		OwnerType:  domain.OwnerCard,
		OwnerID:    "card-1",
		Limits: domain.CurrencyLimits{
			domain.USD: {domain.LimitPurchase: {domain.PeriodDaily: decimal.NewFromInt(500)}},
		},
	}, nil).Once()

	w := suite.apiRequest(http.MethodGet, "/api/v1/businesses/biz-1/spend-limits/card/card-1", nil)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.SpendLimitResponse
	suite.decode(w, &resp)
	suite.True(resp.Limits[domain.USD][domain.LimitPurchase][domain.PeriodDaily].Equal(decimal.NewFromInt(500)))
	suite.NotNil(resp.DisabledMccGroups)
}

func (suite *HandlerTestSuite) TestGetSpendLimit_NotFound() {
	suite.spendLimits.On("GetSpendLimit", mock.Anything, "biz-1", domain.OwnerAllocation, "alloc-9").
		Return(nil, fmt.Errorf("spend limit: %w", apperrors.ErrNotFound)).Once()

	w := suite.apiRequest(http.MethodGet, "/api/v1/businesses/biz-1/spend-limits/ALLOCATION/alloc-9", nil)

	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlerTestSuite) TestPutSpendLimit() {
	suite.spendLimits.On("UpsertSpendLimit", mock.Anything, mock.MatchedBy(func(c domain.SpendLimitConfig) bool {
		return c.BusinessID == "biz-1" &&
			c.OwnerType == domain.OwnerAllocation &&
			c.OwnerID == "alloc-1" &&
			c.Limits[domain.USD][domain.LimitPurchase][domain.PeriodMonthly].Equal(decimal.NewFromInt(1000)) &&
			c.DisablesPaymentType(domain.PaymentManualEntry) &&
			c.DisableForeign
	})).Return(&domain.SpendLimitConfig{BusinessID: "biz-1", OwnerType: domain.OwnerAllocation, OwnerID: "alloc-1"}, nil).Once()

	w := suite.apiRequest(http.MethodPut, "/api/v1/businesses/biz-1/spend-limits/allocation/alloc-1", map[string]any{
		"limits":               map[string]any{"USD": map[string]any{"PURCHASE": map[string]any{"MONTHLY": "1000"}}},
		"disabledPaymentTypes": []string{"MANUAL_ENTRY"},
		"disableForeign":       true,
	})

	suite.Equal(http.StatusOK, w.Code)
}

func (suite *HandlerTestSuite) TestPutSpendLimit_UnknownPaymentType() {
	w := suite.apiRequest(http.MethodPut, "/api/v1/businesses/biz-1/spend-limits/card/card-1", map[string]any{
		"disabledPaymentTypes": []string{"CRYPTO"},
	})

	suite.Equal(http.StatusBadRequest, w.Code)
}

// --- Jobs ---

func (suite *HandlerTestSuite) TestHoldExpiryJob_DefaultsToNow() {
	before := time.Now().UTC()
	suite.holdSweeper.On("SweepExpiredHolds", mock.Anything, mock.MatchedBy(func(now time.Time) bool {
		return !now.Before(before)
	})).Return(&domain.SweepSummary{
		Expired: 3,
		ByBusiness: map[string]domain.BusinessExpiry{
			"biz-b": {Count: 1, Amount: domain.MustAmount(domain.USD, "-5")},
			"biz-a": {Count: 2, Amount: domain.MustAmount(domain.USD, "-20")},
		},
	}, nil).Once()

	w := suite.apiRequest(http.MethodPost, "/api/v1/jobs/hold-expiry", nil)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.HoldSweepResponse
	suite.decode(w, &resp)
	suite.Equal(3, resp.Expired)
	suite.Require().Len(resp.ByBusiness, 2)
	suite.Equal("biz-a", resp.ByBusiness[0].BusinessID)
}

func (suite *HandlerTestSuite) TestHoldExpiryJob_AsOf() {
	asOf := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	suite.holdSweeper.On("SweepExpiredHolds", mock.Anything, mock.MatchedBy(func(now time.Time) bool {
		return now.Equal(asOf)
	})).Return(&domain.SweepSummary{ByBusiness: map[string]domain.BusinessExpiry{}}, nil).Once()

	w := suite.apiRequest(http.MethodPost, "/api/v1/jobs/hold-expiry", map[string]any{"asOf": asOf})

	suite.Equal(http.StatusOK, w.Code)
}

func (suite *HandlerTestSuite) TestNegativeBalanceJob() {
	suite.negativeBalance.On("RunDueCorrections", mock.Anything, mock.AnythingOfType("time.Time")).
		Return(&domain.CorrectionRunSummary{Claimed: 2, Corrected: 1, Failed: 1}, nil).Once()

	w := suite.apiRequest(http.MethodPost, "/api/v1/jobs/negative-balance", nil)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.CorrectionRunResponse
	suite.decode(w, &resp)
	suite.Equal(dto.CorrectionRunResponse{Claimed: 2, Corrected: 1, Failed: 1}, resp)
}

func (suite *HandlerTestSuite) TestCorrectBusiness() {
	suite.negativeBalance.On("CorrectNegativeBalances", mock.Anything, "biz-1").Return(&domain.CorrectionResult{
		BusinessID: "biz-1",
		Suspended:  true,
		Remaining:  domain.MustAmount(domain.USD, "-15"),
	}, nil).Once()

	w := suite.apiRequest(http.MethodPost, "/api/v1/businesses/biz-1/corrections", nil)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.CorrectionResponse
	suite.decode(w, &resp)
	suite.True(resp.Suspended)
	suite.NotNil(resp.Transfers)
}

func TestHandlers(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

// spendLimitFacade satisfies the container's facade; handlers only use the config methods.
type spendLimitFacade struct {
	*MockSpendLimitService
	portssvc.SpendLimitCheckerSvc
}
