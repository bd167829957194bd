package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/SscSPs/card_ledger/internal/apperrors"
	"github.com/SscSPs/card_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/card_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
	"github.com/SscSPs/card_ledger/internal/platform/metrics"
)

// authorizationService runs the processing state machine for card network events.
// All work for one event happens under the target account's lock in one transaction.
type authorizationService struct {
	BaseService
	store    portsrepo.TransactionManager
	locker   portssvc.Locker
	ledger   portssvc.LedgerTxSvc
	holds    portssvc.HoldTxSvc
	limits   portssvc.SpendLimitCheckerSvc
	settings Settings
	validate *validator.Validate
}

// NewAuthorizationService creates a new AuthorizationService.
func NewAuthorizationService(
	store portsrepo.TransactionManager,
	locker portssvc.Locker,
	ledger portssvc.LedgerTxSvc,
	holds portssvc.HoldTxSvc,
	limits portssvc.SpendLimitCheckerSvc,
	settings Settings,
) portssvc.AuthorizationSvc {
	return &authorizationService{
		BaseService: BaseService{clock: settings.Clock},
		store:       store,
		locker:      locker,
		ledger:      ledger,
		holds:       holds,
		limits:      limits,
		settings:    settings,
		validate:    validator.New(),
	}
}

var _ portssvc.AuthorizationSvc = (*authorizationService)(nil)

// eventContext is everything resolved for one event inside its transaction.
type eventContext struct {
	event      domain.NetworkEvent
	now        time.Time
	card       *domain.Card
	account    *domain.Account
	allocation *domain.Allocation
	business   *domain.Business
	// authMessage is the earliest AUTH_REQUEST of the authorization the event refers to.
	authMessage *domain.NetworkMessage
	priorHold   *domain.Hold
}

func (s *authorizationService) Process(ctx context.Context, event domain.NetworkEvent) (*domain.ProcessingOutcome, error) {
	start := time.Now()
	logger := s.GetLogger(ctx).With(
		slog.String("external_ref", event.ExternalRef),
		slog.String("event_type", string(event.Type)),
	)

	if err := s.validateEvent(event); err != nil {
		logger.Warn("Rejected invalid network event", slog.String("error", err.Error()))
		return nil, err
	}

	stored, err := s.storedOutcome(ctx, event.ExternalRef)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		logger.Info("Duplicate network event, returning stored outcome", slog.String("network_message_id", stored.NetworkMessageID))
		metrics.ObserveNetworkEvent(string(event.Type), string(stored.Decision), true, time.Since(start))
		return stored, nil
	}

	lockKey, err := s.resolveLockKey(ctx, event)
	if err != nil {
		return nil, err
	}

	var outcome *domain.ProcessingOutcome
	err = s.locker.WithLock(ctx, lockKey, func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
			existing, err := tx.NetworkMessages().FindNetworkMessageByExternalRef(ctx, event.ExternalRef)
			if err == nil {
				o := domain.OutcomeFromMessage(*existing)
				o.Duplicate = true
				outcome = &o
				return nil
			}
			if !errors.Is(err, apperrors.ErrNotFound) {
				return err
			}
			outcome, err = s.processTx(ctx, tx, event)
			return err
		})
	})
	if errors.Is(err, apperrors.ErrDuplicate) {
		// Another delivery of the same event committed first; the unique ref decides.
		if stored, lookupErr := s.storedOutcome(ctx, event.ExternalRef); lookupErr == nil && stored != nil {
			metrics.ObserveNetworkEvent(string(event.Type), string(stored.Decision), true, time.Since(start))
			return stored, nil
		}
	}
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) && !errors.Is(err, apperrors.ErrValidation) {
			logger.Error("Failed to process network event", slog.String("error", err.Error()))
		}
		return nil, err
	}

	metrics.ObserveNetworkEvent(string(event.Type), string(outcome.Decision), outcome.Duplicate, time.Since(start))
	if outcome.Decision == domain.Declined && !outcome.Duplicate {
		metrics.IncDecline(string(outcome.Reason))
	}
	logger.Info("Network event processed",
		slog.String("network_message_id", outcome.NetworkMessageID),
		slog.String("decision", string(outcome.Decision)),
		slog.String("reason", string(outcome.Reason)),
		slog.Bool("duplicate", outcome.Duplicate))
	return outcome, nil
}

func (s *authorizationService) validateEvent(event domain.NetworkEvent) error {
	if err := s.validate.Struct(event); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	if !event.Type.Valid() {
		return fmt.Errorf("%w: unknown network message type %q", apperrors.ErrValidation, event.Type)
	}
	if event.Amount.Currency == "" {
		return fmt.Errorf("%w: amount currency is required", apperrors.ErrValidation)
	}
	if event.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must be a non-negative magnitude", apperrors.ErrValidation)
	}
	needsAuthorization := event.Type == domain.AuthUpdated || event.Type == domain.AuthReversal || event.Incremental
	if needsAuthorization && event.AuthorizationRef == "" {
		return fmt.Errorf("%w: %s requires an authorization reference", apperrors.ErrValidation, event.Type)
	}
	return nil
}

func (s *authorizationService) storedOutcome(ctx context.Context, externalRef string) (*domain.ProcessingOutcome, error) {
	var outcome *domain.ProcessingOutcome
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		message, err := tx.NetworkMessages().FindNetworkMessageByExternalRef(ctx, externalRef)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		o := domain.OutcomeFromMessage(*message)
		o.Duplicate = true
		outcome = &o
		return nil
	})
	return outcome, err
}

// resolveLockKey finds the account the event will touch. Events whose card and
// authorization are both unknown serialize on the card reference instead.
func (s *authorizationService) resolveLockKey(ctx context.Context, event domain.NetworkEvent) (string, error) {
	var accountID string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		card, auth, err := s.findCardAndAuthorization(ctx, tx, event)
		if err != nil {
			return err
		}
		accountID = targetAccountID(card, auth)
		return nil
	})
	if err != nil {
		return "", err
	}
	if accountID == "" {
		return cardRefLockKey(event.CardExternalRef), nil
	}
	return AccountLockKey(accountID), nil
}

func (s *authorizationService) findCardAndAuthorization(ctx context.Context, tx portsrepo.Tx, event domain.NetworkEvent) (*domain.Card, *domain.NetworkMessage, error) {
	card, err := tx.Cards().FindCardByExternalRef(ctx, event.CardExternalRef)
	if errors.Is(err, apperrors.ErrNotFound) {
		card = nil
	} else if err != nil {
		return nil, nil, err
	}

	if event.AuthorizationRef == "" || (event.Type == domain.AuthRequest && !event.Incremental) {
		return card, nil, nil
	}
	auth, err := tx.NetworkMessages().FindAuthorizationRequest(ctx, event.AuthorizationRef)
	if errors.Is(err, apperrors.ErrNotFound) {
		return card, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return card, auth, nil
}

// targetAccountID prefers the account recorded on the original authorization so that
// captures land where the funds were held even if the card was relinked since.
func targetAccountID(card *domain.Card, auth *domain.NetworkMessage) string {
	if auth != nil && auth.AccountID != "" {
		return auth.AccountID
	}
	if card != nil {
		return card.AccountID
	}
	return ""
}

func (s *authorizationService) loadContext(ctx context.Context, tx portsrepo.Tx, event domain.NetworkEvent) (*eventContext, error) {
	ec := &eventContext{event: event, now: s.Now()}

	card, auth, err := s.findCardAndAuthorization(ctx, tx, event)
	if err != nil {
		return nil, err
	}
	ec.card, ec.authMessage = card, auth

	if accountID := targetAccountID(card, auth); accountID != "" {
		if ec.account, err = tx.Accounts().FindAccountForUpdate(ctx, accountID); err != nil {
			return nil, err
		}
		if ec.allocation, err = tx.Allocations().FindAllocationByID(ctx, ec.account.AllocationID); err != nil {
			return nil, err
		}
	}

	businessID := ""
	switch {
	case ec.account != nil:
		businessID = ec.account.BusinessID
	case card != nil:
		businessID = card.BusinessID
	}
	if businessID != "" {
		if ec.business, err = tx.Businesses().FindBusinessByID(ctx, businessID); err != nil {
			return nil, err
		}
	}

	if auth != nil {
		if ec.priorHold, err = s.findPriorHold(ctx, tx, *auth); err != nil {
			return nil, err
		}
	}
	return ec, nil
}

// findPriorHold returns the PLACED hold of an authorization. Holds linked from the
// group's messages win; holds matched only by the creating message id are the fallback.
func (s *authorizationService) findPriorHold(ctx context.Context, tx portsrepo.Tx, auth domain.NetworkMessage) (*domain.Hold, error) {
	group, err := tx.NetworkMessages().FindNetworkMessagesByGroupID(ctx, auth.GroupID)
	if err != nil {
		return nil, err
	}
	var linked, messageIDs []string
	for _, m := range group {
		messageIDs = append(messageIDs, m.NetworkMessageID)
		if m.HoldID != "" {
			linked = append(linked, m.HoldID)
		}
	}

	holds, err := tx.Holds().FindHoldsByIDs(ctx, linked)
	if err != nil {
		return nil, err
	}
	if latest := latestPlaced(holds); latest != nil {
		return latest, nil
	}

	byReference, err := tx.Holds().FindPlacedHoldsByNetworkMessageIDs(ctx, messageIDs)
	if err != nil {
		return nil, err
	}
	if latest := latestPlaced(byReference); latest != nil {
		s.GetLogger(ctx).Warn("Prior hold matched by reference, no linked hold placed",
			slog.String("authorization_ref", auth.AuthorizationRef),
			slog.String("hold_id", latest.HoldID))
		return latest, nil
	}
	return nil, nil
}

func latestPlaced(holds []domain.Hold) *domain.Hold {
	var latest *domain.Hold
	for i := range holds {
		h := holds[i]
		if h.Status != domain.HoldPlaced {
			continue
		}
		if latest == nil || h.CreatedAt.After(latest.CreatedAt) ||
			(h.CreatedAt.Equal(latest.CreatedAt) && h.HoldID > latest.HoldID) {
			latest = &h
		}
	}
	return latest
}

func (s *authorizationService) processTx(ctx context.Context, tx portsrepo.Tx, event domain.NetworkEvent) (*domain.ProcessingOutcome, error) {
	ec, err := s.loadContext(ctx, tx, event)
	if err != nil {
		return nil, err
	}
	if ec.account != nil {
		if err := ec.account.LedgerBalance.SameCurrency(event.Amount); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
	}

	msg := s.newMessage(ec)
	switch event.Type {
	case domain.AuthRequest:
		if event.Incremental && ec.priorHold != nil {
			return s.handleIncrementalRequest(ctx, tx, ec, msg)
		}
		return s.handleAuthRequest(ctx, tx, ec, msg)
	case domain.AuthUpdated:
		return s.handleAuthUpdate(ctx, tx, ec, msg)
	case domain.AuthReversal:
		return s.handleReversal(ctx, tx, ec, msg)
	case domain.TransactionCreated, domain.Refund:
		return s.handleSettlement(ctx, tx, ec, msg)
	default:
		return nil, fmt.Errorf("%w: unknown network message type %q", apperrors.ErrValidation, event.Type)
	}
}

func (s *authorizationService) newMessage(ec *eventContext) *domain.NetworkMessage {
	msg := &domain.NetworkMessage{
		NetworkMessageID: uuid.NewString(),
		ExternalRef:      ec.event.ExternalRef,
		AuthorizationRef: ec.event.AuthorizationRef,
		Type:             ec.event.Type,
		Status:           domain.StatusReceived,
		CardExternalRef:  ec.event.CardExternalRef,
		RequestedAmount:  ec.event.Amount,
		PaddedAmount:     domain.ZeroAmount(ec.event.Amount.Currency),
		ApprovedAmount:   domain.ZeroAmount(ec.event.Amount.Currency),
		Merchant:         ec.event.Merchant,
		AuditFields:      domain.AuditFields{CreatedAt: ec.now, LastUpdatedAt: ec.now},
	}
	msg.GroupID = msg.NetworkMessageID
	if ec.authMessage != nil {
		msg.GroupID = ec.authMessage.GroupID
	}
	if ec.card != nil {
		msg.CardID = ec.card.CardID
		msg.BusinessID = ec.card.BusinessID
	}
	if ec.account != nil {
		msg.AccountID = ec.account.AccountID
		msg.AllocationID = ec.account.AllocationID
		msg.BusinessID = ec.account.BusinessID
	}
	return msg
}

// handleAuthRequest evaluates a new authorization. Checks run in a fixed order and the
// first failure becomes the decline reason.
func (s *authorizationService) handleAuthRequest(ctx context.Context, tx portsrepo.Tx, ec *eventContext, msg *domain.NetworkMessage) (*domain.ProcessingOutcome, error) {
	amounts := s.amountsFor(ec, ec.event.Amount, true)
	attempted := amounts.padded.Neg()

	if reason := verificationDecline(ec.event.Verification); reason != "" {
		return s.decline(ctx, tx, ec, msg, reason, domain.DeclineDetails{}, attempted)
	}
	if ec.card == nil {
		return s.decline(ctx, tx, ec, msg, domain.DeclineCardNotFound, domain.DeclineDetails{}, attempted)
	}
	if ec.card.Status != domain.CardActive {
		return s.decline(ctx, tx, ec, msg, domain.DeclineInvalidCardStatus, domain.DeclineDetails{}, attempted)
	}
	if !ec.card.IsLinked() || ec.account == nil || ec.allocation == nil || ec.allocation.Archived {
		return s.decline(ctx, tx, ec, msg, domain.DeclineUnlinkedCard, domain.DeclineDetails{}, attempted)
	}
	if err := msg.Transition(domain.StatusValidated); err != nil {
		return nil, err
	}
	if ec.business.Status != domain.BusinessActive {
		return s.decline(ctx, tx, ec, msg, domain.DeclineBusinessSuspended, domain.DeclineDetails{}, attempted)
	}

	if outcome, err := s.checkLimitsAndFunds(ctx, tx, ec, msg, amounts.postFee.Neg(), attempted, amounts.foreign); outcome != nil || err != nil {
		return outcome, err
	}

	hold, err := s.holds.PlaceTx(ctx, tx, domain.PlaceHoldRequest{
		AccountID:        ec.account.AccountID,
		CardID:           ec.card.CardID,
		NetworkMessageID: msg.NetworkMessageID,
		Amount:           attempted,
		ExpirationDate:   amounts.expiration,
	})
	if err != nil {
		return nil, err
	}

	msg.PaddedAmount = amounts.padded
	msg.ApprovedAmount = amounts.padded
	return s.approveWithHold(ctx, tx, ec, msg, hold)
}

// handleIncrementalRequest grows an existing authorization by the requested amount.
func (s *authorizationService) handleIncrementalRequest(ctx context.Context, tx portsrepo.Tx, ec *eventContext, msg *domain.NetworkMessage) (*domain.ProcessingOutcome, error) {
	amounts := s.amountsFor(ec, ec.event.Amount, false)
	increment := amounts.postFee.Neg()

	if reason := verificationDecline(ec.event.Verification); reason != "" {
		return s.decline(ctx, tx, ec, msg, reason, domain.DeclineDetails{}, increment)
	}
	if ec.card == nil {
		return s.decline(ctx, tx, ec, msg, domain.DeclineCardNotFound, domain.DeclineDetails{}, increment)
	}
	if ec.card.Status != domain.CardActive {
		return s.decline(ctx, tx, ec, msg, domain.DeclineInvalidCardStatus, domain.DeclineDetails{}, increment)
	}
	if !ec.card.IsLinked() || ec.account == nil || ec.allocation == nil || ec.allocation.Archived {
		return s.decline(ctx, tx, ec, msg, domain.DeclineUnlinkedCard, domain.DeclineDetails{}, increment)
	}
	if err := msg.Transition(domain.StatusValidated); err != nil {
		return nil, err
	}
	if ec.business.Status != domain.BusinessActive {
		return s.decline(ctx, tx, ec, msg, domain.DeclineBusinessSuspended, domain.DeclineDetails{}, increment)
	}
	if outcome, err := s.checkLimitsAndFunds(ctx, tx, ec, msg, increment, increment, amounts.foreign); outcome != nil || err != nil {
		return outcome, err
	}

	expiration := ec.priorHold.ExpirationDate
	if amounts.expiration.After(expiration) {
		expiration = amounts.expiration
	}
	hold, err := s.holds.ReplaceTx(ctx, tx, *ec.priorHold, ec.priorHold.Amount.Add(increment), expiration, msg.NetworkMessageID)
	if err != nil {
		return nil, err
	}
	msg.PaddedAmount = hold.Amount.Abs()
	msg.ApprovedAmount = amounts.postFee
	return s.approveWithHold(ctx, tx, ec, msg, hold)
}

// handleAuthUpdate resizes the authorization's hold to the new total. A zero total
// cancels the authorization.
func (s *authorizationService) handleAuthUpdate(ctx context.Context, tx portsrepo.Tx, ec *eventContext, msg *domain.NetworkMessage) (*domain.ProcessingOutcome, error) {
	if ec.authMessage == nil {
		return nil, fmt.Errorf("authorization %s: %w", ec.event.AuthorizationRef, apperrors.ErrNotFound)
	}
	if err := msg.Transition(domain.StatusValidated); err != nil {
		return nil, err
	}
	if ec.priorHold == nil {
		s.GetLogger(ctx).Info("Authorization update without a placed hold, nothing to adjust",
			slog.String("authorization_ref", ec.event.AuthorizationRef))
		return s.approveWithoutChange(ctx, tx, msg)
	}

	if ec.event.Amount.IsZero() {
		if _, err := s.holds.ReleaseTx(ctx, tx, ec.priorHold.HoldID); err != nil {
			return nil, err
		}
		if err := s.transitionAuthorization(ctx, tx, ec, domain.StatusSettled); err != nil {
			return nil, err
		}
		activity, err := s.saveActivity(ctx, tx, ec, msg, domain.ActivityNetworkAuthorization, domain.ActivityCanceled, domain.ZeroAmount(ec.event.Amount.Currency), ec.priorHold.HoldID, "", nil)
		if err != nil {
			return nil, err
		}
		msg.ActivityID = activity.ActivityID
		return s.approve(ctx, tx, msg)
	}

	amounts := s.amountsFor(ec, ec.event.Amount, false)
	newHold := amounts.postFee.Neg()
	expiration := ec.priorHold.ExpirationDate
	if ec.event.Merchant.IsFuelDispenser() {
		expiration = amounts.expiration
	}
	if newHold.Equal(ec.priorHold.Amount) && expiration.Equal(ec.priorHold.ExpirationDate) {
		return s.approveWithoutChange(ctx, tx, msg)
	}

	// Only an increase needs funds and limit headroom; the prior hold is already counted.
	delta := newHold.Sub(ec.priorHold.Amount)
	if delta.IsNegative() {
		if ec.business.Status != domain.BusinessActive {
			return s.decline(ctx, tx, ec, msg, domain.DeclineBusinessSuspended, domain.DeclineDetails{}, delta)
		}
		if outcome, err := s.checkLimitsAndFunds(ctx, tx, ec, msg, delta, delta, amounts.foreign); outcome != nil || err != nil {
			return outcome, err
		}
	}

	hold, err := s.holds.ReplaceTx(ctx, tx, *ec.priorHold, newHold, expiration, msg.NetworkMessageID)
	if err != nil {
		return nil, err
	}
	msg.PaddedAmount = amounts.postFee
	msg.ApprovedAmount = amounts.postFee
	return s.approveWithHold(ctx, tx, ec, msg, hold)
}

func (s *authorizationService) handleReversal(ctx context.Context, tx portsrepo.Tx, ec *eventContext, msg *domain.NetworkMessage) (*domain.ProcessingOutcome, error) {
	if ec.authMessage == nil {
		return nil, fmt.Errorf("authorization %s: %w", ec.event.AuthorizationRef, apperrors.ErrNotFound)
	}
	if err := msg.Transition(domain.StatusValidated); err != nil {
		return nil, err
	}
	if ec.priorHold == nil {
		return s.approveWithoutChange(ctx, tx, msg)
	}
	if _, err := s.holds.ReleaseTx(ctx, tx, ec.priorHold.HoldID); err != nil {
		return nil, err
	}
	if err := s.transitionAuthorization(ctx, tx, ec, domain.StatusReversed); err != nil {
		return nil, err
	}
	activity, err := s.saveActivity(ctx, tx, ec, msg, domain.ActivityNetworkAuthorization, domain.ActivityCanceled, ec.priorHold.Amount, ec.priorHold.HoldID, "", nil)
	if err != nil {
		return nil, err
	}
	msg.ActivityID = activity.ActivityID
	msg.HoldID = ec.priorHold.HoldID
	return s.approve(ctx, tx, msg)
}

// handleSettlement posts captures and refunds. Captures are never declined; they
// release the authorization's hold and may exceed it.
func (s *authorizationService) handleSettlement(ctx context.Context, tx portsrepo.Tx, ec *eventContext, msg *domain.NetworkMessage) (*domain.ProcessingOutcome, error) {
	if ec.account == nil {
		if ec.card == nil {
			return nil, fmt.Errorf("card %s: %w", ec.event.CardExternalRef, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("no account for card %s: %w", ec.event.CardExternalRef, apperrors.ErrNotFound)
	}
	if err := msg.Transition(domain.StatusValidated); err != nil {
		return nil, err
	}

	var holdID string
	if ec.priorHold != nil {
		if _, err := s.holds.ReleaseTx(ctx, tx, ec.priorHold.HoldID); err != nil {
			return nil, err
		}
		holdID = ec.priorHold.HoldID
	}

	adjustmentType := domain.AdjustmentNetworkRefund
	activityType := domain.ActivityNetworkRefund
	activityStatus := domain.ActivityProcessed
	signed := ec.event.Amount
	if ec.event.Type == domain.TransactionCreated {
		amounts := s.amountsFor(ec, ec.event.Amount, false)
		adjustmentType = domain.AdjustmentNetworkCapture
		activityType = domain.ActivityNetworkCapture
		activityStatus = domain.ActivityApproved
		signed = amounts.postFee.Neg()
	}

	cardID := ""
	if ec.card != nil {
		cardID = ec.card.CardID
	}
	adjustment, err := s.ledger.RecordAdjustmentTx(ctx, tx, domain.AdjustmentParams{
		AccountID:        ec.account.AccountID,
		Type:             adjustmentType,
		Amount:           signed,
		CardID:           cardID,
		NetworkMessageID: msg.NetworkMessageID,
	})
	if err != nil {
		return nil, err
	}

	if ec.event.Type == domain.TransactionCreated {
		if err := s.transitionAuthorization(ctx, tx, ec, domain.StatusSettled); err != nil {
			return nil, err
		}
	}

	activity, err := s.saveActivity(ctx, tx, ec, msg, activityType, activityStatus, signed, holdID, adjustment.AdjustmentID, nil)
	if err != nil {
		return nil, err
	}
	msg.HoldID = holdID
	msg.AdjustmentID = adjustment.AdjustmentID
	msg.ActivityID = activity.ActivityID
	msg.ApprovedAmount = signed.Abs()
	if err := msg.Transition(domain.StatusApproved); err != nil {
		return nil, err
	}
	if err := msg.Transition(domain.StatusSettled); err != nil {
		return nil, err
	}
	return s.saveMessage(ctx, tx, msg)
}

// checkLimitsAndFunds declines when a limit is violated or the available balance cannot
// absorb holdAmount. limitAmount is the post-fee amount the limits see.
func (s *authorizationService) checkLimitsAndFunds(ctx context.Context, tx portsrepo.Tx, ec *eventContext, msg *domain.NetworkMessage, limitAmount, holdAmount domain.Amount, foreign bool) (*domain.ProcessingOutcome, error) {
	cardID := ""
	if ec.card != nil {
		cardID = ec.card.CardID
	}
	result, err := s.limits.CheckTx(ctx, tx, domain.SpendCheckRequest{
		BusinessID:   ec.account.BusinessID,
		AllocationID: ec.account.AllocationID,
		AccountID:    ec.account.AccountID,
		CardID:       cardID,
		Amount:       limitAmount,
		MccGroup:     domain.MccGroupOf(ec.event.Merchant.CategoryCode),
		PaymentType:  domain.PaymentTypeOf(ec.event.Method),
		Foreign:      foreign,
		AsOf:         ec.now,
	})
	if err != nil {
		return nil, err
	}
	if !result.Allowed {
		return s.decline(ctx, tx, ec, msg, result.Reason, result.Details, holdAmount)
	}

	available, err := s.ledger.AvailableBalanceTx(ctx, tx, ec.account.AccountID)
	if err != nil {
		return nil, err
	}
	if available.Add(holdAmount).IsNegative() {
		return s.decline(ctx, tx, ec, msg, domain.DeclineInsufficientFunds, domain.DeclineDetails{}, holdAmount)
	}
	return nil, nil
}

func (s *authorizationService) transitionAuthorization(ctx context.Context, tx portsrepo.Tx, ec *eventContext, to domain.ProcessingStatus) error {
	if ec.authMessage == nil {
		return nil
	}
	moved, err := tx.NetworkMessages().TransitionNetworkMessage(ctx, ec.authMessage.NetworkMessageID, domain.StatusApproved, to, ec.now)
	if err != nil {
		return err
	}
	if !moved {
		s.GetLogger(ctx).Debug("Authorization already left APPROVED",
			slog.String("network_message_id", ec.authMessage.NetworkMessageID),
			slog.String("requested_status", string(to)))
	}
	return nil
}

func (s *authorizationService) approveWithHold(ctx context.Context, tx portsrepo.Tx, ec *eventContext, msg *domain.NetworkMessage, hold *domain.Hold) (*domain.ProcessingOutcome, error) {
	hideAfter := hold.ExpirationDate
	activity, err := s.saveActivity(ctx, tx, ec, msg, domain.ActivityNetworkAuthorization, domain.ActivityPending, hold.Amount, hold.HoldID, "", &hideAfter)
	if err != nil {
		return nil, err
	}
	msg.HoldID = hold.HoldID
	msg.ActivityID = activity.ActivityID
	return s.approve(ctx, tx, msg)
}

func (s *authorizationService) approveWithoutChange(ctx context.Context, tx portsrepo.Tx, msg *domain.NetworkMessage) (*domain.ProcessingOutcome, error) {
	return s.approve(ctx, tx, msg)
}

func (s *authorizationService) approve(ctx context.Context, tx portsrepo.Tx, msg *domain.NetworkMessage) (*domain.ProcessingOutcome, error) {
	if err := msg.Transition(domain.StatusApproved); err != nil {
		return nil, err
	}
	return s.saveMessage(ctx, tx, msg)
}

func (s *authorizationService) decline(ctx context.Context, tx portsrepo.Tx, ec *eventContext, msg *domain.NetworkMessage, reason domain.DeclineReason, details domain.DeclineDetails, amount domain.Amount) (*domain.ProcessingOutcome, error) {
	decline := domain.Decline{
		DeclineID:        uuid.NewString(),
		BusinessID:       msg.BusinessID,
		AccountID:        msg.AccountID,
		CardID:           msg.CardID,
		NetworkMessageID: msg.NetworkMessageID,
		Amount:           amount,
		Reason:           reason,
		Details:          details,
		CreatedAt:        ec.now,
	}
	if err := tx.Declines().SaveDecline(ctx, decline); err != nil {
		return nil, fmt.Errorf("failed to save decline: %w", err)
	}

	if msg.BusinessID != "" {
		activity, err := s.saveActivity(ctx, tx, ec, msg, domain.ActivityNetworkAuthorization, domain.ActivityDeclined, amount, "", "", nil)
		if err != nil {
			return nil, err
		}
		msg.ActivityID = activity.ActivityID
	}

	msg.DeclineID = decline.DeclineID
	msg.DeclineReason = reason
	if err := msg.Transition(domain.StatusDeclined); err != nil {
		return nil, err
	}
	return s.saveMessage(ctx, tx, msg)
}

func (s *authorizationService) saveMessage(ctx context.Context, tx portsrepo.Tx, msg *domain.NetworkMessage) (*domain.ProcessingOutcome, error) {
	msg.ProcessedAt = s.Now()
	msg.LastUpdatedAt = msg.ProcessedAt
	if err := tx.NetworkMessages().SaveNetworkMessage(ctx, *msg); err != nil {
		return nil, err
	}
	outcome := domain.OutcomeFromMessage(*msg)
	return &outcome, nil
}

func (s *authorizationService) saveActivity(ctx context.Context, tx portsrepo.Tx, ec *eventContext, msg *domain.NetworkMessage, activityType domain.ActivityType, status domain.ActivityStatus, amount domain.Amount, holdID, adjustmentID string, hideAfter *time.Time) (*domain.AccountActivity, error) {
	activity := domain.AccountActivity{
		ActivityID:       uuid.NewString(),
		BusinessID:       msg.BusinessID,
		AllocationID:     msg.AllocationID,
		AccountID:        msg.AccountID,
		CardID:           msg.CardID,
		NetworkMessageID: msg.NetworkMessageID,
		Type:             activityType,
		Status:           status,
		Amount:           amount,
		MerchantName:     ec.event.Merchant.Name,
		HoldID:           holdID,
		AdjustmentID:     adjustmentID,
		ActivityTime:     ec.now,
		HideAfter:        hideAfter,
	}
	if err := tx.Activities().SaveActivity(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to save activity: %w", err)
	}
	return &activity, nil
}
