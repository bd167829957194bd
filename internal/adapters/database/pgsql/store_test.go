package pgsql

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/card_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/card_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/card_ledger/pkg/database"
)

// openTestStore connects to PGSQL_TEST_URL and applies the migrations. Tests that need
// it are skipped when the variable is not set.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("PGSQL_TEST_URL")
	if url == "" {
		t.Skip("PGSQL_TEST_URL not set")
	}
	dir, err := filepath.Abs(filepath.Join("..", "..", "..", "..", "migrations"))
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(url, dir, database.MigrateUp, slog.Default()))

	pool, err := database.NewPgxPool(context.Background(), url, 10, true)
	require.NoError(t, err)
	t.Cleanup(func() { database.ClosePgxPool(pool) })
	return NewStore(pool)
}

type seededAccount struct {
	businessID string
	account    domain.Account
}

// seedAccount creates a business with one root allocation whose account holds ledger.
func seedAccount(t *testing.T, store *Store, ledger string) seededAccount {
	t.Helper()
	now := time.Now().UTC()
	audit := domain.AuditFields{CreatedAt: now, LastUpdatedAt: now}
	business := domain.Business{
		BusinessID:  uuid.NewString(),
		Name:        "Acme",
		Currency:    domain.USD,
		Country:     "USA",
		Status:      domain.BusinessActive,
		AuditFields: audit,
	}
	account := domain.Account{
		AccountID:     uuid.NewString(),
		BusinessID:    business.BusinessID,
		AllocationID:  uuid.NewString(),
		LedgerBalance: domain.MustAmount(domain.USD, ledger),
		AuditFields:   audit,
	}
	allocation := domain.Allocation{
		AllocationID: account.AllocationID,
		BusinessID:   business.BusinessID,
		AccountID:    account.AccountID,
		Name:         "root",
		AuditFields:  audit,
	}
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx portsrepo.Tx) error {
		if err := tx.Businesses().SaveBusiness(ctx, business); err != nil {
			return err
		}
		if err := tx.Allocations().SaveAllocation(ctx, allocation); err != nil {
			return err
		}
		return tx.Accounts().SaveAccount(ctx, account)
	})
	require.NoError(t, err)
	return seededAccount{businessID: business.BusinessID, account: account}
}

func placeHold(ctx context.Context, tx portsrepo.Tx, seeded seededAccount, amount string) (string, error) {
	now := time.Now().UTC()
	hold := domain.Hold{
		HoldID:         uuid.NewString(),
		BusinessID:     seeded.businessID,
		AccountID:      seeded.account.AccountID,
		Amount:         domain.MustAmount(domain.USD, amount),
		Status:         domain.HoldPlaced,
		ExpirationDate: now.Add(time.Hour),
		AuditFields:    domain.AuditFields{CreatedAt: now, LastUpdatedAt: now},
	}
	return hold.HoldID, tx.Holds().SaveHold(ctx, hold)
}

// Captures and their inverse keep available at 1.00 while moving the amount between the
// hold and the ledger. A reader must never observe one half of such a transaction.
func TestFindAccountBalance_NeverSeesHalfAppliedCapture(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seeded := seedAccount(t, store, "10.00")
	accountID := seeded.account.AccountID

	var holdID string
	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		var err error
		holdID, err = placeHold(ctx, tx, seeded, "-9.00")
		return err
	}))

	nine := domain.MustAmount(domain.USD, "9.00").Amount
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(stop)
		for range 200 {
			err := store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
				if _, err := tx.Holds().TransitionPlacedHold(ctx, holdID, domain.HoldReleased, time.Now().UTC()); err != nil {
					return err
				}
				return tx.Accounts().AddToLedgerBalance(ctx, accountID, nine.Neg(), time.Now().UTC())
			})
			if !assert.NoError(t, err) {
				return
			}
			err = store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
				if err := tx.Accounts().AddToLedgerBalance(ctx, accountID, nine, time.Now().UTC()); err != nil {
					return err
				}
				var err error
				holdID, err = placeHold(ctx, tx, seeded, "-9.00")
				return err
			})
			if !assert.NoError(t, err) {
				return
			}
		}
	}()

	want := domain.MustAmount(domain.USD, "1.00")
	reads := 0
	for done := false; !done; {
		select {
		case <-stop:
			done = true
		default:
		}
		err := store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
			balance, err := tx.Accounts().FindAccountBalance(ctx, accountID)
			if err != nil {
				return err
			}
			assert.True(t, want.Equal(balance.AvailableBalance), "available %s", balance.AvailableBalance)

			balances, err := tx.Accounts().FindAccountBalancesByBusinessID(ctx, seeded.businessID)
			if err != nil {
				return err
			}
			if assert.Len(t, balances, 1) {
				assert.True(t, want.Equal(balances[0].AvailableBalance), "available %s", balances[0].AvailableBalance)
			}
			return nil
		})
		require.NoError(t, err)
		reads++
	}
	wg.Wait()
	assert.Positive(t, reads)
}

func TestCorrectionJobs_ReleaseAndLeaseReclaim(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seeded := seedAccount(t, store, "-5.00")
	businessID := seeded.businessID
	now := time.Now().UTC()

	claim := func(at, staleBefore time.Time) []domain.CorrectionJob {
		var jobs []domain.CorrectionJob
		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
			var err error
			jobs, err = tx.CorrectionJobs().ClaimDueCorrectionJobs(ctx, at, staleBefore, 0)
			return err
		}))
		var ours []domain.CorrectionJob
		for _, job := range jobs {
			if job.BusinessID == businessID {
				ours = append(ours, job)
			}
		}
		return ours
	}

	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		ids, err := tx.Businesses().FindBusinessIDsNeedingReview(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, businessID)

		scheduled, err := tx.CorrectionJobs().ScheduleCorrectionJob(ctx, businessID, now.Add(-time.Minute), now)
		assert.True(t, scheduled)
		return err
	}))

	claimed := claim(now, now.Add(-time.Hour))
	require.Len(t, claimed, 1)
	assert.Equal(t, domain.JobRunning, claimed[0].Status)
	assert.Empty(t, claim(now, now.Add(-time.Hour)), "a fresh RUNNING job is not claimed twice")

	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		return tx.CorrectionJobs().ReleaseCorrectionJob(ctx, businessID, now)
	}))
	reclaimed := claim(now, now.Add(-time.Hour))
	require.Len(t, reclaimed, 1)
	assert.Equal(t, 2, reclaimed[0].Attempts)

	// The runner vanished; once its lease lapses another run takes the job over.
	stale := claim(now.Add(time.Hour), now.Add(time.Minute))
	require.Len(t, stale, 1)
	assert.Equal(t, 3, stale[0].Attempts)

	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		return tx.CorrectionJobs().DeleteCorrectionJob(ctx, businessID)
	}))
}
