package services_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/card_ledger/internal/core/domain"
	"github.com/SscSPs/card_ledger/internal/core/services"
	"github.com/SscSPs/card_ledger/internal/platform/lock"
)

type HoldSweeperTestSuite struct {
	LedgerSuite
}

func TestHoldSweeperTestSuite(t *testing.T) {
	suite.Run(t, new(HoldSweeperTestSuite))
}

func (suite *HoldSweeperTestSuite) authorize(card domain.Card, ref, amount string) *domain.ProcessingOutcome {
	outcome, err := suite.svc.Authorization.Process(suite.ctx, authRequest(card, ref, amount))
	suite.Require().NoError(err)
	suite.Require().Equal(domain.Approved, outcome.Decision)
	return outcome
}

func (suite *HoldSweeperTestSuite) TestSweep_ExpiresPastDueHolds() {
	biz := suite.seedBusiness("20.00")
	card := suite.seedCard(biz.root, domain.CardActive)
	auth := suite.authorize(card, "auth-1", "10.00")
	suite.assertBalances(biz.root.account.AccountID, "20.00", "10.00")

	suite.clock.Advance(suite.settings.DefaultHoldExpiration + time.Hour)
	summary, err := suite.svc.HoldSweeper.SweepExpiredHolds(suite.ctx, suite.clock.Now())

	suite.Require().NoError(err)
	suite.Equal(1, summary.Expired)
	suite.Equal(0, summary.Failed)
	suite.Require().Contains(summary.ByBusiness, biz.business.BusinessID)
	suite.Equal(1, summary.ByBusiness[biz.business.BusinessID].Count)
	suite.True(usd("10.00").Equal(summary.ByBusiness[biz.business.BusinessID].Amount))

	suite.Equal(domain.HoldExpired, suite.findHold(auth.HoldID).Status)
	suite.Equal(domain.StatusExpired, suite.findMessage(auth.NetworkMessageID).Status)
	suite.assertBalances(biz.root.account.AccountID, "20.00", "20.00")

	suite.Eventually(func() bool {
		notices := suite.notifier.Expired()
		return len(notices) == 1 && notices[0].BusinessID == biz.business.BusinessID && notices[0].Count == 1
	}, time.Second, 10*time.Millisecond)
}

func (suite *HoldSweeperTestSuite) TestSweep_LeavesHoldsNotYetDue() {
	biz := suite.seedBusiness("20.00")
	card := suite.seedCard(biz.root, domain.CardActive)
	auth := suite.authorize(card, "auth-1", "10.00")

	suite.clock.Advance(time.Hour)
	summary, err := suite.svc.HoldSweeper.SweepExpiredHolds(suite.ctx, suite.clock.Now())

	suite.Require().NoError(err)
	suite.Equal(0, summary.Expired)
	suite.Empty(summary.ByBusiness)
	suite.Equal(domain.HoldPlaced, suite.findHold(auth.HoldID).Status)
}

func (suite *HoldSweeperTestSuite) TestSweep_SecondRunIsNoOp() {
	biz := suite.seedBusiness("20.00")
	card := suite.seedCard(biz.root, domain.CardActive)
	suite.authorize(card, "auth-1", "10.00")
	suite.clock.Advance(suite.settings.DefaultHoldExpiration + time.Hour)

	first, err := suite.svc.HoldSweeper.SweepExpiredHolds(suite.ctx, suite.clock.Now())
	suite.Require().NoError(err)
	second, err := suite.svc.HoldSweeper.SweepExpiredHolds(suite.ctx, suite.clock.Now())
	suite.Require().NoError(err)

	suite.Equal(1, first.Expired)
	suite.Equal(0, second.Expired)
	suite.assertBalances(biz.root.account.AccountID, "20.00", "20.00")
}

func (suite *HoldSweeperTestSuite) TestSweep_WalksEveryBatch() {
	biz := suite.seedBusiness("100.00")
	card := suite.seedCard(biz.root, domain.CardActive)
	for i := range 5 {
		suite.authorize(card, fmt.Sprintf("auth-%d", i), "1.00")
	}
	settings := suite.settings
	settings.HoldSweepBatchSize = 2
	settings.HoldSweepConcurrency = 2
	sweeper := services.NewHoldSweeper(suite.store, lock.NewKeyedMutex(time.Second), suite.svc.Holds, suite.notifier, settings)

	suite.clock.Advance(suite.settings.DefaultHoldExpiration + time.Hour)
	summary, err := sweeper.SweepExpiredHolds(suite.ctx, suite.clock.Now())

	suite.Require().NoError(err)
	suite.Equal(5, summary.Expired)
	suite.Equal(5, summary.ByBusiness[biz.business.BusinessID].Count)
	suite.assertBalances(biz.root.account.AccountID, "100.00", "100.00")
}

func (suite *HoldSweeperTestSuite) TestSweep_RacesCaptureWithoutDoubleDebit() {
	biz := suite.seedBusiness("10.00")
	card := suite.seedCard(biz.root, domain.CardActive)
	auth := suite.authorize(card, "auth-1", "10.00")
	suite.clock.Advance(suite.settings.DefaultHoldExpiration + time.Hour)

	var wg sync.WaitGroup
	var summary *domain.SweepSummary
	var captureErr, sweepErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, captureErr = suite.svc.Authorization.Process(suite.ctx, followUp(card, domain.TransactionCreated, "capture-1", "auth-1", "9.00"))
	}()
	go func() {
		defer wg.Done()
		summary, sweepErr = suite.svc.HoldSweeper.SweepExpiredHolds(suite.ctx, suite.clock.Now())
	}()
	wg.Wait()

	suite.Require().NoError(captureErr)
	suite.Require().NoError(sweepErr)
	hold := suite.findHold(auth.HoldID)
	suite.True(hold.Status.IsTerminal())
	if hold.Status == domain.HoldExpired {
		suite.Equal(1, summary.Expired)
	} else {
		suite.Equal(domain.HoldReleased, hold.Status)
		suite.Equal(0, summary.Expired)
	}
	suite.Equal(int64(2), hold.Version)
	suite.assertBalances(biz.root.account.AccountID, "1.00", "1.00")
	suite.assertLedgerMatchesAdjustments(biz.root.account.AccountID)
}
