package pgsql

import (
	"context"
	"fmt"
	"time"

	"github.com/SscSPs/card_ledger/internal/apperrors"
	"github.com/SscSPs/card_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/card_ledger/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
)

type networkMessageRepository struct {
	BaseRepository
}

var _ portsrepo.NetworkMessageRepositoryFacade = (*networkMessageRepository)(nil)

const networkMessageColumns = `network_message_id, group_id, external_ref, authorization_ref, type, status,
	business_id, allocation_id, account_id, card_id, card_external_ref,
	currency, requested_amount, padded_amount, approved_amount,
	merchant_name, merchant_mcc, merchant_country,
	hold_id, adjustment_id, decline_id, decline_reason, activity_id,
	processed_at, created_at, last_updated_at`

// The three amounts of a message always share the event currency, stored once.
func scanNetworkMessage(row pgx.Row) (domain.NetworkMessage, error) {
	var m domain.NetworkMessage
	var authRef, businessID, allocationID, accountID, cardID *string
	var holdID, adjustmentID, declineID, declineReason, activityID *string
	var currency domain.Currency
	err := row.Scan(
		&m.NetworkMessageID,
		&m.GroupID,
		&m.ExternalRef,
		&authRef,
		&m.Type,
		&m.Status,
		&businessID,
		&allocationID,
		&accountID,
		&cardID,
		&m.CardExternalRef,
		&currency,
		&m.RequestedAmount.Amount,
		&m.PaddedAmount.Amount,
		&m.ApprovedAmount.Amount,
		&m.Merchant.Name,
		&m.Merchant.CategoryCode,
		&m.Merchant.Country,
		&holdID,
		&adjustmentID,
		&declineID,
		&declineReason,
		&activityID,
		&m.ProcessedAt,
		&m.CreatedAt,
		&m.LastUpdatedAt,
	)
	m.AuthorizationRef = deref(authRef)
	m.BusinessID = deref(businessID)
	m.AllocationID = deref(allocationID)
	m.AccountID = deref(accountID)
	m.CardID = deref(cardID)
	m.HoldID = deref(holdID)
	m.AdjustmentID = deref(adjustmentID)
	m.DeclineID = deref(declineID)
	m.DeclineReason = domain.DeclineReason(deref(declineReason))
	m.ActivityID = deref(activityID)
	m.RequestedAmount.Currency = currency
	m.PaddedAmount.Currency = currency
	m.ApprovedAmount.Currency = currency
	return m, err
}

func (r *networkMessageRepository) queryMessages(ctx context.Context, query string, args ...any) ([]domain.NetworkMessage, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query network messages: %w", err)
	}
	messages, err := collect(rows, scanNetworkMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to scan network messages: %w", err)
	}
	return messages, nil
}

// SaveNetworkMessage relies on the unique index on external_ref to detect redelivered events.
func (r *networkMessageRepository) SaveNetworkMessage(ctx context.Context, m domain.NetworkMessage) error {
	query := `
		INSERT INTO network_messages (` + networkMessageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26);
	`
	_, err := r.q.Exec(ctx, query,
		m.NetworkMessageID,
		m.GroupID,
		m.ExternalRef,
		nullable(m.AuthorizationRef),
		m.Type,
		m.Status,
		nullable(m.BusinessID),
		nullable(m.AllocationID),
		nullable(m.AccountID),
		nullable(m.CardID),
		m.CardExternalRef,
		m.RequestedAmount.Currency,
		m.RequestedAmount.Amount,
		m.PaddedAmount.Amount,
		m.ApprovedAmount.Amount,
		m.Merchant.Name,
		m.Merchant.CategoryCode,
		m.Merchant.Country,
		nullable(m.HoldID),
		nullable(m.AdjustmentID),
		nullable(m.DeclineID),
		nullable(string(m.DeclineReason)),
		nullable(m.ActivityID),
		m.ProcessedAt,
		m.CreatedAt,
		m.LastUpdatedAt,
	)
	return mapError(err, "network message ref "+m.ExternalRef)
}

func (r *networkMessageRepository) FindNetworkMessageByID(ctx context.Context, messageID string) (*domain.NetworkMessage, error) {
	query := `SELECT ` + networkMessageColumns + ` FROM network_messages WHERE network_message_id = $1;`
	message, err := scanNetworkMessage(r.q.QueryRow(ctx, query, messageID))
	if err != nil {
		return nil, mapError(err, "network message "+messageID)
	}
	return &message, nil
}

func (r *networkMessageRepository) FindNetworkMessageByExternalRef(ctx context.Context, externalRef string) (*domain.NetworkMessage, error) {
	query := `SELECT ` + networkMessageColumns + ` FROM network_messages WHERE external_ref = $1;`
	message, err := scanNetworkMessage(r.q.QueryRow(ctx, query, externalRef))
	if err != nil {
		return nil, mapError(err, "network message ref "+externalRef)
	}
	return &message, nil
}

func (r *networkMessageRepository) FindAuthorizationRequest(ctx context.Context, authorizationRef string) (*domain.NetworkMessage, error) {
	query := `
		SELECT ` + networkMessageColumns + `
		FROM network_messages
		WHERE authorization_ref = $1 AND type = 'AUTH_REQUEST'
		ORDER BY created_at, network_message_id
		LIMIT 1;
	`
	message, err := scanNetworkMessage(r.q.QueryRow(ctx, query, authorizationRef))
	if err != nil {
		return nil, mapError(err, "authorization "+authorizationRef)
	}
	return &message, nil
}

func (r *networkMessageRepository) FindNetworkMessagesByGroupID(ctx context.Context, groupID string) ([]domain.NetworkMessage, error) {
	query := `
		SELECT ` + networkMessageColumns + `
		FROM network_messages
		WHERE group_id = $1
		ORDER BY created_at, network_message_id;
	`
	return r.queryMessages(ctx, query, groupID)
}

func (r *networkMessageRepository) TransitionNetworkMessage(ctx context.Context, messageID string, from, to domain.ProcessingStatus, now time.Time) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("%w: network message %s from %s to %s",
			apperrors.ErrInvalidStateTransition, messageID, from, to)
	}
	query := `
		UPDATE network_messages
		SET status = $3, last_updated_at = $4
		WHERE network_message_id = $1 AND status = $2;
	`
	tag, err := r.q.Exec(ctx, query, messageID, from, to, now)
	if err != nil {
		return false, fmt.Errorf("failed to transition network message %s: %w", messageID, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	found, err := r.exists(ctx, "network_messages", "network_message_id", messageID)
	if err != nil {
		return false, fmt.Errorf("failed to look up network message %s: %w", messageID, err)
	}
	if !found {
		return false, fmt.Errorf("network message %s: %w", messageID, apperrors.ErrNotFound)
	}
	return false, nil
}

type declineRepository struct {
	BaseRepository
}

var _ portsrepo.DeclineRepositoryFacade = (*declineRepository)(nil)

func (r *declineRepository) SaveDecline(ctx context.Context, d domain.Decline) error {
	query := `
		INSERT INTO declines (decline_id, business_id, account_id, card_id, network_message_id, currency, amount, reason, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`
	_, err := r.q.Exec(ctx, query,
		d.DeclineID,
		nullable(d.BusinessID),
		nullable(d.AccountID),
		nullable(d.CardID),
		d.NetworkMessageID,
		d.Amount.Currency,
		d.Amount.Amount,
		d.Reason,
		d.Details,
		d.CreatedAt,
	)
	return mapError(err, "decline "+d.DeclineID)
}

func (r *declineRepository) FindDeclineByID(ctx context.Context, declineID string) (*domain.Decline, error) {
	query := `
		SELECT decline_id, business_id, account_id, card_id, network_message_id, currency, amount, reason, details, created_at
		FROM declines
		WHERE decline_id = $1;
	`
	var d domain.Decline
	var businessID, accountID, cardID *string
	err := r.q.QueryRow(ctx, query, declineID).Scan(
		&d.DeclineID,
		&businessID,
		&accountID,
		&cardID,
		&d.NetworkMessageID,
		&d.Amount.Currency,
		&d.Amount.Amount,
		&d.Reason,
		&d.Details,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err, "decline "+declineID)
	}
	d.BusinessID = deref(businessID)
	d.AccountID = deref(accountID)
	d.CardID = deref(cardID)
	return &d, nil
}

type activityRepository struct {
	BaseRepository
}

var _ portsrepo.ActivityRepositoryFacade = (*activityRepository)(nil)

const activityColumns = `activity_id, business_id, allocation_id, account_id, card_id, network_message_id,
	type, status, currency, amount, merchant_name, hold_id, adjustment_id, activity_time, hide_after`

func scanActivity(row pgx.Row) (domain.AccountActivity, error) {
	var a domain.AccountActivity
	var businessID, allocationID, accountID, cardID, messageID, merchantName, holdID, adjustmentID *string
	err := row.Scan(
		&a.ActivityID,
		&businessID,
		&allocationID,
		&accountID,
		&cardID,
		&messageID,
		&a.Type,
		&a.Status,
		&a.Amount.Currency,
		&a.Amount.Amount,
		&merchantName,
		&holdID,
		&adjustmentID,
		&a.ActivityTime,
		&a.HideAfter,
	)
	a.BusinessID = deref(businessID)
	a.AllocationID = deref(allocationID)
	a.AccountID = deref(accountID)
	a.CardID = deref(cardID)
	a.NetworkMessageID = deref(messageID)
	a.MerchantName = deref(merchantName)
	a.HoldID = deref(holdID)
	a.AdjustmentID = deref(adjustmentID)
	return a, err
}

func (r *activityRepository) SaveActivity(ctx context.Context, a domain.AccountActivity) error {
	query := `
		INSERT INTO account_activities (` + activityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15);
	`
	_, err := r.q.Exec(ctx, query,
		a.ActivityID,
		nullable(a.BusinessID),
		nullable(a.AllocationID),
		nullable(a.AccountID),
		nullable(a.CardID),
		nullable(a.NetworkMessageID),
		a.Type,
		a.Status,
		a.Amount.Currency,
		a.Amount.Amount,
		nullable(a.MerchantName),
		nullable(a.HoldID),
		nullable(a.AdjustmentID),
		a.ActivityTime,
		a.HideAfter,
	)
	return mapError(err, "activity "+a.ActivityID)
}

func (r *activityRepository) FindActivityByID(ctx context.Context, activityID string) (*domain.AccountActivity, error) {
	query := `SELECT ` + activityColumns + ` FROM account_activities WHERE activity_id = $1;`
	activity, err := scanActivity(r.q.QueryRow(ctx, query, activityID))
	if err != nil {
		return nil, mapError(err, "activity "+activityID)
	}
	return &activity, nil
}

// ListActivities pages with a keyset on (activity_time, activity_id).
func (r *activityRepository) ListActivities(ctx context.Context, q domain.ActivityQuery) ([]domain.AccountActivity, error) {
	var afterTime *time.Time
	var afterID *string
	if q.After != nil {
		afterTime, afterID = &q.After.ActivityTime, &q.After.ActivityID
	}
	query := `
		SELECT ` + activityColumns + `
		FROM account_activities
		WHERE account_id = $1
		  AND (hide_after IS NULL OR hide_after > $2)
		  AND ($3::timestamptz IS NULL OR (activity_time, activity_id) < ($3, $4::text))
		ORDER BY activity_time DESC, activity_id DESC
		LIMIT NULLIF($5::int, 0);
	`
	rows, err := r.q.Query(ctx, query, q.AccountID, q.AsOf, afterTime, afterID, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities of account %s: %w", q.AccountID, err)
	}
	activities, err := collect(rows, scanActivity)
	if err != nil {
		return nil, fmt.Errorf("failed to scan activities of account %s: %w", q.AccountID, err)
	}
	return activities, nil
}
