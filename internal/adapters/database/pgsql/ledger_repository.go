package pgsql

import (
	"context"
	"fmt"
	"time"

	"github.com/SscSPs/card_ledger/internal/apperrors"
	"github.com/SscSPs/card_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/card_ledger/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ownerColumn picks the column a spend usage query filters on.
func ownerColumn(query domain.SpendUsageQuery) (string, string) {
	if query.CardID != "" {
		return "card_id", query.CardID
	}
	return "account_id", query.AccountID
}

type adjustmentRepository struct {
	BaseRepository
}

var _ portsrepo.AdjustmentRepositoryFacade = (*adjustmentRepository)(nil)

const adjustmentColumns = `adjustment_id, business_id, allocation_id, account_id, card_id, network_message_id, type, currency, amount, effective_date, created_at`

func scanAdjustment(row pgx.Row) (domain.Adjustment, error) {
	var a domain.Adjustment
	var cardID, messageID *string
	err := row.Scan(
		&a.AdjustmentID,
		&a.BusinessID,
		&a.AllocationID,
		&a.AccountID,
		&cardID,
		&messageID,
		&a.Type,
		&a.Amount.Currency,
		&a.Amount.Amount,
		&a.EffectiveDate,
		&a.CreatedAt,
	)
	a.CardID = deref(cardID)
	a.NetworkMessageID = deref(messageID)
	return a, err
}

func (r *adjustmentRepository) SaveAdjustment(ctx context.Context, adjustment domain.Adjustment) error {
	query := `
		INSERT INTO adjustments (` + adjustmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err := r.q.Exec(ctx, query,
		adjustment.AdjustmentID,
		adjustment.BusinessID,
		adjustment.AllocationID,
		adjustment.AccountID,
		nullable(adjustment.CardID),
		nullable(adjustment.NetworkMessageID),
		adjustment.Type,
		adjustment.Amount.Currency,
		adjustment.Amount.Amount,
		adjustment.EffectiveDate,
		adjustment.CreatedAt,
	)
	return mapError(err, "adjustment "+adjustment.AdjustmentID)
}

func (r *adjustmentRepository) FindAdjustmentByID(ctx context.Context, adjustmentID string) (*domain.Adjustment, error) {
	query := `SELECT ` + adjustmentColumns + ` FROM adjustments WHERE adjustment_id = $1;`
	adjustment, err := scanAdjustment(r.q.QueryRow(ctx, query, adjustmentID))
	if err != nil {
		return nil, mapError(err, "adjustment "+adjustmentID)
	}
	return &adjustment, nil
}

func (r *adjustmentRepository) FindAdjustmentsByAccountID(ctx context.Context, accountID string) ([]domain.Adjustment, error) {
	query := `SELECT ` + adjustmentColumns + ` FROM adjustments WHERE account_id = $1 ORDER BY created_at, adjustment_id;`
	rows, err := r.q.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments of account %s: %w", accountID, err)
	}
	adjustments, err := collect(rows, scanAdjustment)
	if err != nil {
		return nil, fmt.Errorf("failed to scan adjustments of account %s: %w", accountID, err)
	}
	return adjustments, nil
}

func (r *adjustmentRepository) SumNetworkAdjustments(ctx context.Context, usage domain.SpendUsageQuery) (decimal.Decimal, error) {
	column, owner := ownerColumn(usage)
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM adjustments
		WHERE ` + column + ` = $1
		  AND type IN ('NETWORK_CAPTURE', 'NETWORK_REFUND')
		  AND currency = $2
		  AND effective_date BETWEEN $3 AND $4;
	`
	var sum decimal.Decimal
	if err := r.q.QueryRow(ctx, query, owner, usage.Currency, usage.From, usage.To).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum network adjustments: %w", err)
	}
	return sum, nil
}

type holdRepository struct {
	BaseRepository
}

var _ portsrepo.HoldRepositoryFacade = (*holdRepository)(nil)

const holdColumns = `hold_id, business_id, account_id, card_id, network_message_id, currency, amount, status, expiration_date, version, created_at, last_updated_at`

func scanHold(row pgx.Row) (domain.Hold, error) {
	var h domain.Hold
	var cardID, messageID *string
	err := row.Scan(
		&h.HoldID,
		&h.BusinessID,
		&h.AccountID,
		&cardID,
		&messageID,
		&h.Amount.Currency,
		&h.Amount.Amount,
		&h.Status,
		&h.ExpirationDate,
		&h.Version,
		&h.CreatedAt,
		&h.LastUpdatedAt,
	)
	h.CardID = deref(cardID)
	h.NetworkMessageID = deref(messageID)
	return h, err
}

func (r *holdRepository) queryHolds(ctx context.Context, query string, args ...any) ([]domain.Hold, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holds: %w", err)
	}
	holds, err := collect(rows, scanHold)
	if err != nil {
		return nil, fmt.Errorf("failed to scan holds: %w", err)
	}
	return holds, nil
}

func (r *holdRepository) FindHoldByID(ctx context.Context, holdID string) (*domain.Hold, error) {
	query := `SELECT ` + holdColumns + ` FROM holds WHERE hold_id = $1;`
	hold, err := scanHold(r.q.QueryRow(ctx, query, holdID))
	if err != nil {
		return nil, mapError(err, "hold "+holdID)
	}
	return &hold, nil
}

func (r *holdRepository) FindHoldsByIDs(ctx context.Context, holdIDs []string) ([]domain.Hold, error) {
	if len(holdIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + holdColumns + ` FROM holds WHERE hold_id = ANY($1) ORDER BY created_at, hold_id;`
	return r.queryHolds(ctx, query, holdIDs)
}

func (r *holdRepository) FindPlacedHoldsByNetworkMessageIDs(ctx context.Context, messageIDs []string) ([]domain.Hold, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + holdColumns + `
		FROM holds
		WHERE network_message_id = ANY($1) AND status = 'PLACED'
		ORDER BY created_at, hold_id;
	`
	return r.queryHolds(ctx, query, messageIDs)
}

func (r *holdRepository) SumPlacedHoldsForOwner(ctx context.Context, usage domain.SpendUsageQuery) (decimal.Decimal, error) {
	column, owner := ownerColumn(usage)
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM holds
		WHERE ` + column + ` = $1
		  AND status = 'PLACED'
		  AND currency = $2
		  AND created_at BETWEEN $3 AND $4;
	`
	var sum decimal.Decimal
	if err := r.q.QueryRow(ctx, query, owner, usage.Currency, usage.From, usage.To).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum placed holds: %w", err)
	}
	return sum, nil
}

func (r *holdRepository) FindExpiredPlacedHolds(ctx context.Context, from, to time.Time, limit int) ([]domain.Hold, error) {
	query := `
		SELECT ` + holdColumns + `
		FROM holds
		WHERE status = 'PLACED' AND expiration_date BETWEEN $1 AND $2
		ORDER BY expiration_date, hold_id
		LIMIT NULLIF($3::int, 0);
	`
	return r.queryHolds(ctx, query, from, to, limit)
}

func (r *holdRepository) SaveHold(ctx context.Context, hold domain.Hold) error {
	query := `
		INSERT INTO holds (` + holdColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
	`
	_, err := r.q.Exec(ctx, query,
		hold.HoldID,
		hold.BusinessID,
		hold.AccountID,
		nullable(hold.CardID),
		nullable(hold.NetworkMessageID),
		hold.Amount.Currency,
		hold.Amount.Amount,
		hold.Status,
		hold.ExpirationDate,
		hold.Version,
		hold.CreatedAt,
		hold.LastUpdatedAt,
	)
	return mapError(err, "hold "+hold.HoldID)
}

// TransitionPlacedHold is a conditional update; of two racing callers only one sees a row affected.
func (r *holdRepository) TransitionPlacedHold(ctx context.Context, holdID string, to domain.HoldStatus, now time.Time) (bool, error) {
	query := `
		UPDATE holds
		SET status = $2, version = version + 1, last_updated_at = $3
		WHERE hold_id = $1 AND status = 'PLACED';
	`
	tag, err := r.q.Exec(ctx, query, holdID, to, now)
	if err != nil {
		return false, fmt.Errorf("failed to transition hold %s: %w", holdID, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	found, err := r.exists(ctx, "holds", "hold_id", holdID)
	if err != nil {
		return false, fmt.Errorf("failed to look up hold %s: %w", holdID, err)
	}
	if !found {
		return false, fmt.Errorf("hold %s: %w", holdID, apperrors.ErrNotFound)
	}
	return false, nil
}
