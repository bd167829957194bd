package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/card_ledger/internal/core/domain"
)

// SpendLimitRepositoryFacade defines persistence operations for spend limit configurations.
type SpendLimitRepositoryFacade interface {
	// FindSpendLimit returns apperrors.ErrNotFound when the owner has no configuration.
	FindSpendLimit(ctx context.Context, ownerType domain.SpendLimitOwnerType, ownerID string) (*domain.SpendLimitConfig, error)
	UpsertSpendLimit(ctx context.Context, config domain.SpendLimitConfig) error
}

// CorrectionJobRepositoryFacade defines persistence operations for negative balance correction jobs.
type CorrectionJobRepositoryFacade interface {
	// ScheduleCorrectionJob creates a SCHEDULED job unless one is already pending for the
	// business. It reports whether a job was scheduled.
	ScheduleCorrectionJob(ctx context.Context, businessID string, runAt, now time.Time) (bool, error)

	// ClaimDueCorrectionJobs atomically moves up to limit jobs to RUNNING and returns them.
	// Due SCHEDULED jobs are claimed, and so are RUNNING jobs last touched before
	// staleBefore, whose runner is presumed dead.
	ClaimDueCorrectionJobs(ctx context.Context, now, staleBefore time.Time, limit int) ([]domain.CorrectionJob, error)

	// ReleaseCorrectionJob puts a RUNNING job back to SCHEDULED without touching run_at.
	ReleaseCorrectionJob(ctx context.Context, businessID string, now time.Time) error

	FindCorrectionJob(ctx context.Context, businessID string) (*domain.CorrectionJob, error)

	// DeleteCorrectionJob removes the job of a business whatever its status.
	DeleteCorrectionJob(ctx context.Context, businessID string) error

	// CancelCorrectionJob removes a SCHEDULED job; running jobs are left alone.
	CancelCorrectionJob(ctx context.Context, businessID string) (bool, error)

	FailCorrectionJob(ctx context.Context, businessID string, cause string, now time.Time) error
}
