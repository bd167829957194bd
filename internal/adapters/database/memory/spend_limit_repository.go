package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SscSPs/card_ledger/internal/apperrors"
	"github.com/SscSPs/card_ledger/internal/core/domain"
)

func spendLimitKey(ownerType domain.SpendLimitOwnerType, ownerID string) string {
	return string(ownerType) + ":" + ownerID
}

func (t *memTx) FindSpendLimit(_ context.Context, ownerType domain.SpendLimitOwnerType, ownerID string) (*domain.SpendLimitConfig, error) {
	config, ok := t.state.spendLimits[spendLimitKey(ownerType, ownerID)]
	if !ok {
		return nil, fmt.Errorf("spend limit %s %s: %w", ownerType, ownerID, apperrors.ErrNotFound)
	}
	return &config, nil
}

func (t *memTx) UpsertSpendLimit(_ context.Context, config domain.SpendLimitConfig) error {
	key := spendLimitKey(config.OwnerType, config.OwnerID)
	if existing, ok := t.state.spendLimits[key]; ok {
		config.CreatedAt = existing.CreatedAt
	}
	t.state.spendLimits[key] = config
	return nil
}

func (t *memTx) ScheduleCorrectionJob(_ context.Context, businessID string, runAt, now time.Time) (bool, error) {
	if existing, ok := t.state.jobs[businessID]; ok && existing.Status.IsPending() {
		return false, nil
	}
	t.state.jobs[businessID] = domain.CorrectionJob{
		BusinessID:  businessID,
		Status:      domain.JobScheduled,
		RunAt:       runAt,
		AuditFields: domain.AuditFields{CreatedAt: now, LastUpdatedAt: now},
	}
	return true, nil
}

func (t *memTx) ClaimDueCorrectionJobs(_ context.Context, now, staleBefore time.Time, limit int) ([]domain.CorrectionJob, error) {
	var due []domain.CorrectionJob
	for _, job := range t.state.jobs {
		switch {
		case job.Status == domain.JobScheduled && !job.RunAt.After(now):
			due = append(due, job)
		case job.Status == domain.JobRunning && job.LastUpdatedAt.Before(staleBefore):
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].RunAt.Equal(due[j].RunAt) {
			return due[i].RunAt.Before(due[j].RunAt)
		}
		return due[i].BusinessID < due[j].BusinessID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for i := range due {
		due[i].Status = domain.JobRunning
		due[i].Attempts++
		due[i].LastUpdatedAt = now
		t.state.jobs[due[i].BusinessID] = due[i]
	}
	return due, nil
}

func (t *memTx) FindCorrectionJob(_ context.Context, businessID string) (*domain.CorrectionJob, error) {
	job, ok := t.state.jobs[businessID]
	if !ok {
		return nil, fmt.Errorf("correction job %s: %w", businessID, apperrors.ErrNotFound)
	}
	return &job, nil
}

func (t *memTx) DeleteCorrectionJob(_ context.Context, businessID string) error {
	delete(t.state.jobs, businessID)
	return nil
}

func (t *memTx) CancelCorrectionJob(_ context.Context, businessID string) (bool, error) {
	job, ok := t.state.jobs[businessID]
	if !ok || job.Status != domain.JobScheduled {
		return false, nil
	}
	delete(t.state.jobs, businessID)
	return true, nil
}

func (t *memTx) ReleaseCorrectionJob(_ context.Context, businessID string, now time.Time) error {
	job, ok := t.state.jobs[businessID]
	if !ok || job.Status != domain.JobRunning {
		return nil
	}
	job.Status = domain.JobScheduled
	job.LastUpdatedAt = now
	t.state.jobs[businessID] = job
	return nil
}

func (t *memTx) FailCorrectionJob(_ context.Context, businessID string, cause string, now time.Time) error {
	job, ok := t.state.jobs[businessID]
	if !ok {
		return fmt.Errorf("correction job %s: %w", businessID, apperrors.ErrNotFound)
	}
	job.Status = domain.JobFailed
	job.LastError = cause
	job.LastUpdatedAt = now
	t.state.jobs[businessID] = job
	return nil
}
