// Package pgsql implements the storage ports on PostgreSQL through pgx.
package pgsql

import (
	"context"
	"fmt"

	portsrepo "github.com/SscSPs/card_ledger/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the PostgreSQL portsrepo.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ portsrepo.Store = (*Store)(nil)

// NewStore creates a store on top of an open pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithinTx runs fn in a READ COMMITTED transaction. Row locks taken with the
// ...ForUpdate reads serialize writers on the same rows.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx portsrepo.Tx) error) error {
	dbTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = dbTx.Rollback(ctx) // no-op after commit
	}()

	tx := newPgTx(dbTx)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

type pgTx struct {
	accounts    *accountRepository
	businesses  *businessRepository
	allocations *allocationRepository
	cards       *cardRepository
	adjustments *adjustmentRepository
	holds       *holdRepository
	messages    *networkMessageRepository
	declines    *declineRepository
	activities  *activityRepository
	spendLimits *spendLimitRepository
	jobs        *correctionJobRepository
	hooks       []func()
}

var _ portsrepo.Tx = (*pgTx)(nil)

func newPgTx(q querier) *pgTx {
	base := BaseRepository{q: q}
	return &pgTx{
		accounts:    &accountRepository{base},
		businesses:  &businessRepository{base},
		allocations: &allocationRepository{base},
		cards:       &cardRepository{base},
		adjustments: &adjustmentRepository{base},
		holds:       &holdRepository{base},
		messages:    &networkMessageRepository{base},
		declines:    &declineRepository{base},
		activities:  &activityRepository{base},
		spendLimits: &spendLimitRepository{base},
		jobs:        &correctionJobRepository{base},
	}
}

func (t *pgTx) Accounts() portsrepo.AccountRepositoryFacade               { return t.accounts }
func (t *pgTx) Businesses() portsrepo.BusinessRepositoryFacade            { return t.businesses }
func (t *pgTx) Allocations() portsrepo.AllocationRepositoryFacade         { return t.allocations }
func (t *pgTx) Cards() portsrepo.CardRepositoryFacade                     { return t.cards }
func (t *pgTx) Adjustments() portsrepo.AdjustmentRepositoryFacade         { return t.adjustments }
func (t *pgTx) Holds() portsrepo.HoldRepositoryFacade                     { return t.holds }
func (t *pgTx) NetworkMessages() portsrepo.NetworkMessageRepositoryFacade { return t.messages }
func (t *pgTx) Declines() portsrepo.DeclineRepositoryFacade               { return t.declines }
func (t *pgTx) Activities() portsrepo.ActivityRepositoryFacade            { return t.activities }
func (t *pgTx) SpendLimits() portsrepo.SpendLimitRepositoryFacade         { return t.spendLimits }
func (t *pgTx) CorrectionJobs() portsrepo.CorrectionJobRepositoryFacade   { return t.jobs }

func (t *pgTx) OnCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}
