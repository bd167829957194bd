package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/card_ledger/internal/adapters/database/memory"
	"github.com/SscSPs/card_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/card_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
	"github.com/SscSPs/card_ledger/internal/core/services"
	"github.com/SscSPs/card_ledger/internal/platform/lock"
)

// --- Test clock ---
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- Recording publisher ---
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.AdjustmentPersisted
}

var _ portssvc.AdjustmentPublisher = (*recordingPublisher)(nil)

func (p *recordingPublisher) Publish(event domain.AdjustmentPersisted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// Drain returns and forgets every event published so far.
func (p *recordingPublisher) Drain() []domain.AdjustmentPersisted {
	p.mu.Lock()
	defer p.mu.Unlock()
	events := p.events
	p.events = nil
	return events
}

// --- Recording notifier ---
type recordingNotifier struct {
	mu          sync.Mutex
	expired     []domain.HoldExpiryNotice
	suspensions []domain.BusinessSuspensionNotice
}

var _ portssvc.Notifier = (*recordingNotifier)(nil)

func (n *recordingNotifier) HoldsExpired(_ context.Context, notice domain.HoldExpiryNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired = append(n.expired, notice)
}

func (n *recordingNotifier) BusinessSuspended(_ context.Context, notice domain.BusinessSuspensionNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.suspensions = append(n.suspensions, notice)
}

func (n *recordingNotifier) Expired() []domain.HoldExpiryNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.HoldExpiryNotice(nil), n.expired...)
}

func (n *recordingNotifier) Suspensions() []domain.BusinessSuspensionNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.BusinessSuspensionNotice(nil), n.suspensions...)
}

// --- Ledger fixture ---

// LedgerSuite wires every service over the in-memory store. Suites embed it.
type LedgerSuite struct {
	suite.Suite
	ctx       context.Context
	store     *memory.Store
	clock     *testClock
	publisher *recordingPublisher
	notifier  *recordingNotifier
	settings  services.Settings
	svc       *portssvc.ServiceContainer
}

func (suite *LedgerSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = memory.NewStore()
	suite.clock = newTestClock()
	suite.publisher = &recordingPublisher{}
	suite.notifier = &recordingNotifier{}
	suite.settings = services.DefaultSettings()
	suite.settings.Clock = suite.clock.Now
	suite.svc = services.NewServiceContainer(
		suite.store,
		lock.NewKeyedMutex(5*time.Second),
		suite.notifier,
		suite.publisher,
		suite.settings,
	)
}

func usd(value string) domain.Amount {
	return domain.MustAmount(domain.USD, value)
}

type testBusiness struct {
	business domain.Business
	root     testAllocation
}

type testAllocation struct {
	allocation domain.Allocation
	account    domain.Account
}

// seedBusiness creates an ACTIVE business whose root allocation is funded by a deposit.
func (suite *LedgerSuite) seedBusiness(openingBalance string) testBusiness {
	now := suite.clock.Now()
	business := domain.Business{
		BusinessID:  uuid.NewString(),
		Name:        "Acme",
		Currency:    domain.USD,
		Country:     "USA",
		Status:      domain.BusinessActive,
		AuditFields: domain.AuditFields{CreatedAt: now, LastUpdatedAt: now},
	}
	err := suite.store.WithinTx(suite.ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		return tx.Businesses().SaveBusiness(ctx, business)
	})
	suite.Require().NoError(err)
	root := suite.seedAllocation(business.BusinessID, "", "root", openingBalance)
	return testBusiness{business: business, root: root}
}

// seedAllocation creates an allocation with its account and deposits openingBalance.
func (suite *LedgerSuite) seedAllocation(businessID, parentID, name, openingBalance string, opts ...func(*domain.Allocation)) testAllocation {
	suite.clock.Advance(time.Second)
	now := suite.clock.Now()
	account := domain.Account{
		AccountID:     uuid.NewString(),
		BusinessID:    businessID,
		LedgerBalance: domain.ZeroAmount(domain.USD),
		AuditFields:   domain.AuditFields{CreatedAt: now, LastUpdatedAt: now},
	}
	allocation := domain.Allocation{
		AllocationID:       uuid.NewString(),
		BusinessID:         businessID,
		ParentAllocationID: parentID,
		AccountID:          account.AccountID,
		Name:               name,
		AuditFields:        domain.AuditFields{CreatedAt: now, LastUpdatedAt: now},
	}
	for _, opt := range opts {
		opt(&allocation)
	}
	account.AllocationID = allocation.AllocationID
	err := suite.store.WithinTx(suite.ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		if err := tx.Allocations().SaveAllocation(ctx, allocation); err != nil {
			return err
		}
		return tx.Accounts().SaveAccount(ctx, account)
	})
	suite.Require().NoError(err)

	if opening := decimal.RequireFromString(openingBalance); opening.IsPositive() {
		_, err := suite.svc.Ledger.RecordAdjustment(suite.ctx, domain.AdjustmentParams{
			AccountID: account.AccountID,
			Type:      domain.AdjustmentDeposit,
			Amount:    domain.NewAmount(domain.USD, opening),
		})
		suite.Require().NoError(err)
	}
	suite.publisher.Drain()
	return testAllocation{allocation: allocation, account: account}
}

func (suite *LedgerSuite) seedCard(alloc testAllocation, status domain.CardStatus) domain.Card {
	now := suite.clock.Now()
	card := domain.Card{
		CardID:       uuid.NewString(),
		BusinessID:   alloc.allocation.BusinessID,
		ExternalRef:  "ic_" + uuid.NewString(),
		Status:       status,
		AllocationID: alloc.allocation.AllocationID,
		AccountID:    alloc.account.AccountID,
		AuditFields:  domain.AuditFields{CreatedAt: now, LastUpdatedAt: now},
	}
	err := suite.store.WithinTx(suite.ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		return tx.Cards().SaveCard(ctx, card)
	})
	suite.Require().NoError(err)
	return card
}

func (suite *LedgerSuite) ledger(accountID string) domain.Amount {
	balance, err := suite.svc.Ledger.LedgerBalance(suite.ctx, accountID)
	suite.Require().NoError(err)
	return balance
}

func (suite *LedgerSuite) available(accountID string) domain.Amount {
	balance, err := suite.svc.Ledger.AvailableBalance(suite.ctx, accountID)
	suite.Require().NoError(err)
	return balance
}

func (suite *LedgerSuite) assertBalances(accountID, ledger, available string) {
	suite.True(usd(ledger).Equal(suite.ledger(accountID)), "ledger: want %s got %s", ledger, suite.ledger(accountID))
	suite.True(usd(available).Equal(suite.available(accountID)), "available: want %s got %s", available, suite.available(accountID))
}

// assertLedgerMatchesAdjustments checks that the stored ledger balance equals the sum of the adjustments.
func (suite *LedgerSuite) assertLedgerMatchesAdjustments(accountID string) {
	var adjustments []domain.Adjustment
	err := suite.store.WithinTx(suite.ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		var err error
		adjustments, err = tx.Adjustments().FindAdjustmentsByAccountID(ctx, accountID)
		return err
	})
	suite.Require().NoError(err)
	sum := domain.ZeroAmount(domain.USD)
	for _, adj := range adjustments {
		sum = sum.Add(adj.Amount)
	}
	suite.True(sum.Equal(suite.ledger(accountID)), "adjustments sum %s, ledger %s", sum, suite.ledger(accountID))
}

func (suite *LedgerSuite) findHold(holdID string) domain.Hold {
	var hold *domain.Hold
	err := suite.store.WithinTx(suite.ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		var err error
		hold, err = tx.Holds().FindHoldByID(ctx, holdID)
		return err
	})
	suite.Require().NoError(err)
	return *hold
}

func (suite *LedgerSuite) findMessage(messageID string) domain.NetworkMessage {
	var message *domain.NetworkMessage
	err := suite.store.WithinTx(suite.ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		var err error
		message, err = tx.NetworkMessages().FindNetworkMessageByID(ctx, messageID)
		return err
	})
	suite.Require().NoError(err)
	return *message
}

func (suite *LedgerSuite) findBusiness(businessID string) domain.Business {
	var business *domain.Business
	err := suite.store.WithinTx(suite.ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		var err error
		business, err = tx.Businesses().FindBusinessByID(ctx, businessID)
		return err
	})
	suite.Require().NoError(err)
	return *business
}

func (suite *LedgerSuite) findJob(businessID string) (*domain.CorrectionJob, error) {
	var job *domain.CorrectionJob
	err := suite.store.WithinTx(suite.ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		var err error
		job, err = tx.CorrectionJobs().FindCorrectionJob(ctx, businessID)
		return err
	})
	return job, err
}

// deliverAdjustments hands every published adjustment to the negative balance listener.
func (suite *LedgerSuite) deliverAdjustments() {
	for _, event := range suite.publisher.Drain() {
		suite.Require().NoError(suite.svc.NegativeBalance.OnAdjustment(suite.ctx, event))
	}
}

func authRequest(card domain.Card, ref string, amount string) domain.NetworkEvent {
	return domain.NetworkEvent{
		ExternalRef:      ref,
		Type:             domain.AuthRequest,
		CardExternalRef:  card.ExternalRef,
		AuthorizationRef: ref,
		Amount:           usd(amount),
		Merchant:         domain.Merchant{Name: "Coffee Shop", CategoryCode: 5814, Country: "USA"},
		Method:           domain.MethodChip,
	}
}

func followUp(card domain.Card, eventType domain.NetworkMessageType, ref, authRef, amount string) domain.NetworkEvent {
	event := authRequest(card, ref, amount)
	event.Type = eventType
	event.AuthorizationRef = authRef
	return event
}
