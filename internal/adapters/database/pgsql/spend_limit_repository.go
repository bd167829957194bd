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

type spendLimitRepository struct {
	BaseRepository
}

var _ portsrepo.SpendLimitRepositoryFacade = (*spendLimitRepository)(nil)

func (r *spendLimitRepository) FindSpendLimit(ctx context.Context, ownerType domain.SpendLimitOwnerType, ownerID string) (*domain.SpendLimitConfig, error) {
	query := `
		SELECT business_id, owner_type, owner_id, limits, disabled_mcc_groups, disabled_payment_types, disable_foreign, created_at, last_updated_at
		FROM spend_limits
		WHERE owner_type = $1 AND owner_id = $2;
	`
	var c domain.SpendLimitConfig
	var mccGroups, paymentTypes []string
	err := r.q.QueryRow(ctx, query, ownerType, ownerID).Scan(
		&c.BusinessID,
		&c.OwnerType,
		&c.OwnerID,
		&c.Limits,
		&mccGroups,
		&paymentTypes,
		&c.DisableForeign,
		&c.CreatedAt,
		&c.LastUpdatedAt,
	)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("spend limit %s %s", ownerType, ownerID))
	}
	c.DisabledMccGroups = fromStrings[domain.MccGroup](mccGroups)
	c.DisabledPaymentTypes = fromStrings[domain.PaymentType](paymentTypes)
	return &c, nil
}

// UpsertSpendLimit replaces the configuration of an owner, keeping its original created_at.
func (r *spendLimitRepository) UpsertSpendLimit(ctx context.Context, c domain.SpendLimitConfig) error {
	limits := c.Limits
	if limits == nil {
		limits = domain.CurrencyLimits{}
	}
	query := `
		INSERT INTO spend_limits (business_id, owner_type, owner_id, limits, disabled_mcc_groups, disabled_payment_types, disable_foreign, created_at, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner_type, owner_id) DO UPDATE
		SET limits = EXCLUDED.limits,
		    disabled_mcc_groups = EXCLUDED.disabled_mcc_groups,
		    disabled_payment_types = EXCLUDED.disabled_payment_types,
		    disable_foreign = EXCLUDED.disable_foreign,
		    last_updated_at = EXCLUDED.last_updated_at;
	`
	_, err := r.q.Exec(ctx, query,
		c.BusinessID,
		c.OwnerType,
		c.OwnerID,
		limits,
		toStrings(c.DisabledMccGroups),
		toStrings(c.DisabledPaymentTypes),
		c.DisableForeign,
		c.CreatedAt,
		c.LastUpdatedAt,
	)
	return mapError(err, fmt.Sprintf("spend limit %s %s", c.OwnerType, c.OwnerID))
}

type correctionJobRepository struct {
	BaseRepository
}

var _ portsrepo.CorrectionJobRepositoryFacade = (*correctionJobRepository)(nil)

const correctionJobColumns = `business_id, status, run_at, attempts, last_error, created_at, last_updated_at`

func scanCorrectionJob(row pgx.Row) (domain.CorrectionJob, error) {
	var j domain.CorrectionJob
	var lastError *string
	err := row.Scan(
		&j.BusinessID,
		&j.Status,
		&j.RunAt,
		&j.Attempts,
		&lastError,
		&j.CreatedAt,
		&j.LastUpdatedAt,
	)
	j.LastError = deref(lastError)
	return j, err
}

// ScheduleCorrectionJob inserts a job or revives a FAILED one. A pending job
// makes the conflict clause match no row, so nothing changes.
func (r *correctionJobRepository) ScheduleCorrectionJob(ctx context.Context, businessID string, runAt, now time.Time) (bool, error) {
	query := `
		INSERT INTO correction_jobs (` + correctionJobColumns + `)
		VALUES ($1, 'SCHEDULED', $2, 0, NULL, $3, $3)
		ON CONFLICT (business_id) DO UPDATE
		SET status = 'SCHEDULED',
		    run_at = EXCLUDED.run_at,
		    attempts = 0,
		    last_error = NULL,
		    created_at = EXCLUDED.created_at,
		    last_updated_at = EXCLUDED.last_updated_at
		WHERE correction_jobs.status = 'FAILED';
	`
	tag, err := r.q.Exec(ctx, query, businessID, runAt, now)
	if err != nil {
		return false, fmt.Errorf("failed to schedule correction job for business %s: %w", businessID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimDueCorrectionJobs skips rows claimed by concurrent runners.
func (r *correctionJobRepository) ClaimDueCorrectionJobs(ctx context.Context, now, staleBefore time.Time, limit int) ([]domain.CorrectionJob, error) {
	query := `
		UPDATE correction_jobs
		SET status = 'RUNNING', attempts = attempts + 1, last_updated_at = $1
		WHERE business_id IN (
			SELECT business_id
			FROM correction_jobs
			WHERE (status = 'SCHEDULED' AND run_at <= $1)
			   OR (status = 'RUNNING' AND last_updated_at < $2)
			ORDER BY run_at, business_id
			LIMIT NULLIF($3::int, 0)
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + correctionJobColumns + `;
	`
	rows, err := r.q.Query(ctx, query, now, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim correction jobs: %w", err)
	}
	jobs, err := collect(rows, scanCorrectionJob)
	if err != nil {
		return nil, fmt.Errorf("failed to scan claimed correction jobs: %w", err)
	}
	return jobs, nil
}

func (r *correctionJobRepository) FindCorrectionJob(ctx context.Context, businessID string) (*domain.CorrectionJob, error) {
	query := `SELECT ` + correctionJobColumns + ` FROM correction_jobs WHERE business_id = $1;`
	job, err := scanCorrectionJob(r.q.QueryRow(ctx, query, businessID))
	if err != nil {
		return nil, mapError(err, "correction job "+businessID)
	}
	return &job, nil
}

func (r *correctionJobRepository) DeleteCorrectionJob(ctx context.Context, businessID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM correction_jobs WHERE business_id = $1;`, businessID); err != nil {
		return fmt.Errorf("failed to delete correction job %s: %w", businessID, err)
	}
	return nil
}

func (r *correctionJobRepository) CancelCorrectionJob(ctx context.Context, businessID string) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM correction_jobs WHERE business_id = $1 AND status = 'SCHEDULED';`, businessID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel correction job %s: %w", businessID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *correctionJobRepository) ReleaseCorrectionJob(ctx context.Context, businessID string, now time.Time) error {
	query := `UPDATE correction_jobs SET status = 'SCHEDULED', last_updated_at = $2 WHERE business_id = $1 AND status = 'RUNNING';`
	if _, err := r.q.Exec(ctx, query, businessID, now); err != nil {
		return fmt.Errorf("failed to release correction job %s: %w", businessID, err)
	}
	return nil
}

func (r *correctionJobRepository) FailCorrectionJob(ctx context.Context, businessID string, cause string, now time.Time) error {
	query := `UPDATE correction_jobs SET status = 'FAILED', last_error = $2, last_updated_at = $3 WHERE business_id = $1;`
	tag, err := r.q.Exec(ctx, query, businessID, cause, now)
	if err != nil {
		return fmt.Errorf("failed to mark correction job %s failed: %w", businessID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("correction job %s: %w", businessID, apperrors.ErrNotFound)
	}
	return nil
}
