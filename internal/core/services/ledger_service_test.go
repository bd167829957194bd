package services_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/card_ledger/internal/apperrors"
	"github.com/SscSPs/card_ledger/internal/core/domain"
)

type LedgerServiceTestSuite struct {
	LedgerSuite
}

func TestLedgerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceTestSuite))
}

func (suite *LedgerServiceTestSuite) TestRecordAdjustment_UpdatesLedgerAndPublishes() {
	biz := suite.seedBusiness("0")
	accountID := biz.root.account.AccountID

	adjustment, err := suite.svc.Ledger.RecordAdjustment(suite.ctx, domain.AdjustmentParams{
		AccountID: accountID,
		Type:      domain.AdjustmentDeposit,
		Amount:    usd("25.50"),
	})

	suite.Require().NoError(err)
	suite.Equal(biz.business.BusinessID, adjustment.BusinessID)
	suite.Equal(biz.root.allocation.AllocationID, adjustment.AllocationID)
	suite.assertBalances(accountID, "25.50", "25.50")

	events := suite.publisher.Drain()
	suite.Require().Len(events, 1)
	suite.Equal(adjustment.AdjustmentID, events[0].AdjustmentID)
	suite.Equal(domain.AdjustmentDeposit, events[0].Type)
}

func (suite *LedgerServiceTestSuite) TestRecordAdjustment_Validation() {
	biz := suite.seedBusiness("10.00")
	accountID := biz.root.account.AccountID

	cases := []struct {
		name   string
		params domain.AdjustmentParams
		err    error
	}{
		{"zero amount", domain.AdjustmentParams{AccountID: accountID, Type: domain.AdjustmentManual, Amount: usd("0")}, apperrors.ErrValidation},
		{"negative deposit", domain.AdjustmentParams{AccountID: accountID, Type: domain.AdjustmentDeposit, Amount: usd("-1")}, apperrors.ErrValidation},
		{"positive withdrawal", domain.AdjustmentParams{AccountID: accountID, Type: domain.AdjustmentWithdraw, Amount: usd("1")}, apperrors.ErrValidation},
		{"reallocate", domain.AdjustmentParams{AccountID: accountID, Type: domain.AdjustmentReallocate, Amount: usd("1")}, apperrors.ErrValidation},
		{"unknown type", domain.AdjustmentParams{AccountID: accountID, Type: "BONUS", Amount: usd("1")}, apperrors.ErrValidation},
		{"wrong currency", domain.AdjustmentParams{AccountID: accountID, Type: domain.AdjustmentDeposit, Amount: domain.MustAmount("EUR", "1")}, apperrors.ErrValidation},
		{"overdrawn withdrawal", domain.AdjustmentParams{AccountID: accountID, Type: domain.AdjustmentWithdraw, Amount: usd("-10.01")}, apperrors.ErrInsufficientFunds},
		{"unknown account", domain.AdjustmentParams{AccountID: "missing", Type: domain.AdjustmentDeposit, Amount: usd("1")}, apperrors.ErrNotFound},
	}
	for _, tc := range cases {
		suite.Run(tc.name, func() {
			_, err := suite.svc.Ledger.RecordAdjustment(suite.ctx, tc.params)
			suite.ErrorIs(err, tc.err)
		})
	}
	suite.assertBalances(accountID, "10.00", "10.00")
}

func (suite *LedgerServiceTestSuite) TestWithdraw_RespectsPlacedHolds() {
	biz := suite.seedBusiness("10.00")
	accountID := biz.root.account.AccountID
	_, err := suite.svc.Holds.Place(suite.ctx, domain.PlaceHoldRequest{
		AccountID:      accountID,
		Amount:         usd("-4.00"),
		ExpirationDate: suite.clock.Now().Add(time.Hour),
	})
	suite.Require().NoError(err)

	_, err = suite.svc.Ledger.RecordAdjustment(suite.ctx, domain.AdjustmentParams{
		AccountID: accountID, Type: domain.AdjustmentWithdraw, Amount: usd("-6.01"),
	})
	suite.ErrorIs(err, apperrors.ErrInsufficientFunds)

	_, err = suite.svc.Ledger.RecordAdjustment(suite.ctx, domain.AdjustmentParams{
		AccountID: accountID, Type: domain.AdjustmentWithdraw, Amount: usd("-6.00"),
	})
	suite.NoError(err)
	suite.assertBalances(accountID, "4.00", "0.00")
}

func (suite *LedgerServiceTestSuite) TestReallocateFunds() {
	biz := suite.seedBusiness("30.00")
	child := suite.seedAllocation(biz.business.BusinessID, biz.root.allocation.AllocationID, "ops", "0")

	reallocation, err := suite.svc.Ledger.ReallocateFunds(suite.ctx, biz.business.BusinessID, biz.root.allocation.AllocationID, child.allocation.AllocationID, usd("12.00"))

	suite.Require().NoError(err)
	suite.True(usd("-12.00").Equal(reallocation.From.Amount))
	suite.True(usd("12.00").Equal(reallocation.To.Amount))
	suite.assertBalances(biz.root.account.AccountID, "18.00", "18.00")
	suite.assertBalances(child.account.AccountID, "12.00", "12.00")
}

func (suite *LedgerServiceTestSuite) TestReallocateFunds_Rejections() {
	biz := suite.seedBusiness("30.00")
	child := suite.seedAllocation(biz.business.BusinessID, biz.root.allocation.AllocationID, "ops", "0")
	stranger := suite.seedBusiness("30.00")
	rootID := biz.root.allocation.AllocationID

	_, err := suite.svc.Ledger.ReallocateFunds(suite.ctx, biz.business.BusinessID, rootID, rootID, usd("1"))
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.svc.Ledger.ReallocateFunds(suite.ctx, biz.business.BusinessID, rootID, child.allocation.AllocationID, usd("-1"))
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.svc.Ledger.ReallocateFunds(suite.ctx, biz.business.BusinessID, rootID, stranger.root.allocation.AllocationID, usd("1"))
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.svc.Ledger.ReallocateFunds(suite.ctx, biz.business.BusinessID, child.allocation.AllocationID, rootID, usd("0.01"))
	suite.ErrorIs(err, apperrors.ErrInsufficientFunds)
}

func (suite *LedgerServiceTestSuite) TestBusinessBalances() {
	biz := suite.seedBusiness("30.00")
	child := suite.seedAllocation(biz.business.BusinessID, biz.root.allocation.AllocationID, "ops", "5.00")
	_, err := suite.svc.Holds.Place(suite.ctx, domain.PlaceHoldRequest{
		AccountID:      child.account.AccountID,
		Amount:         usd("-2.00"),
		ExpirationDate: suite.clock.Now().Add(time.Hour),
	})
	suite.Require().NoError(err)

	balances, err := suite.svc.Ledger.BusinessBalances(suite.ctx, biz.business.BusinessID)

	suite.Require().NoError(err)
	suite.Require().Len(balances, 2)
	byAccount := map[string]domain.AccountBalance{}
	for _, b := range balances {
		byAccount[b.AccountID] = b
	}
	suite.True(usd("30.00").Equal(byAccount[biz.root.account.AccountID].AvailableBalance))
	suite.True(usd("5.00").Equal(byAccount[child.account.AccountID].LedgerBalance))
	suite.True(usd("3.00").Equal(byAccount[child.account.AccountID].AvailableBalance))
}

func (suite *LedgerServiceTestSuite) TestConcurrentWriters_LedgerEqualsAdjustmentSum() {
	biz := suite.seedBusiness("100.00")
	accountID := biz.root.account.AccountID

	var wg sync.WaitGroup
	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			params := domain.AdjustmentParams{AccountID: accountID, Type: domain.AdjustmentDeposit, Amount: usd("1.25")}
			if i%2 == 1 {
				params = domain.AdjustmentParams{AccountID: accountID, Type: domain.AdjustmentManual, Amount: usd("-0.75")}
			}
			_, err := suite.svc.Ledger.RecordAdjustment(suite.ctx, params)
			suite.NoError(err)
		}()
	}
	wg.Wait()

	suite.assertBalances(accountID, "110.00", "110.00")
	suite.assertLedgerMatchesAdjustments(accountID)
}

func (suite *LedgerServiceTestSuite) TestListActivities_PagesNewestFirst() {
	biz := suite.seedBusiness("10.00")
	accountID := biz.root.account.AccountID
	card := suite.seedCard(biz.root, domain.CardActive)
	for _, amount := range []string{"1", "2", "3"} {
		suite.clock.Advance(time.Minute)
		_, err := suite.svc.Ledger.RecordAdjustment(suite.ctx, domain.AdjustmentParams{
			AccountID: accountID,
			Type:      domain.AdjustmentDeposit,
			Amount:    usd(amount),
		})
		suite.Require().NoError(err)
	}
	suite.clock.Advance(time.Minute)
	outcome, err := suite.svc.Authorization.Process(suite.ctx, authRequest(card, "auth-feed", "4"))
	suite.Require().NoError(err)
	suite.Require().Equal(domain.Approved, outcome.Decision)

	page, err := suite.svc.Ledger.ListActivities(suite.ctx, accountID, 2, "")
	suite.Require().NoError(err)
	suite.Require().Len(page.Activities, 2)
	suite.Equal(domain.ActivityNetworkAuthorization, page.Activities[0].Type)
	suite.Equal(domain.ActivityPending, page.Activities[0].Status)
	suite.True(usd("3").Equal(page.Activities[1].Amount))
	suite.Require().NotEmpty(page.NextToken)

	page, err = suite.svc.Ledger.ListActivities(suite.ctx, accountID, 2, page.NextToken)
	suite.Require().NoError(err)
	suite.Require().Len(page.Activities, 2)
	suite.True(usd("2").Equal(page.Activities[0].Amount))
	suite.True(usd("1").Equal(page.Activities[1].Amount))
	suite.Require().NotEmpty(page.NextToken)

	page, err = suite.svc.Ledger.ListActivities(suite.ctx, accountID, 2, page.NextToken)
	suite.Require().NoError(err)
	suite.Require().Len(page.Activities, 1)
	suite.True(usd("10").Equal(page.Activities[0].Amount))
	suite.Empty(page.NextToken)

	// The pending entry disappears once its hold could have lapsed.
	suite.clock.Advance(suite.settings.DefaultHoldExpiration + time.Minute)
	page, err = suite.svc.Ledger.ListActivities(suite.ctx, accountID, 10, "")
	suite.Require().NoError(err)
	suite.Require().Len(page.Activities, 4)
	suite.Equal(domain.ActivityDeposit, page.Activities[0].Type)
	suite.Empty(page.NextToken)
}

func (suite *LedgerServiceTestSuite) TestListActivities_Errors() {
	biz := suite.seedBusiness("10.00")

	_, err := suite.svc.Ledger.ListActivities(suite.ctx, biz.root.account.AccountID, 10, "not-a-token!")
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.svc.Ledger.ListActivities(suite.ctx, "missing", 10, "")
	suite.ErrorIs(err, apperrors.ErrNotFound)

	page, err := suite.svc.Ledger.ListActivities(suite.ctx, biz.root.account.AccountID, 0, "")
	suite.Require().NoError(err)
	suite.Len(page.Activities, 1)
}
