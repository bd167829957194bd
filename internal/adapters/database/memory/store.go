// Package memory provides an in-process implementation of the storage ports.
// Transactions are serialized and work on a copy of the state that replaces the
// committed state only when the unit of work succeeds.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/SscSPs/card_ledger/internal/core/domain"
	"github.com/SscSPs/card_ledger/internal/core/ports/repositories"
)

type state struct {
	accounts     map[string]domain.Account
	businesses   map[string]domain.Business
	allocations  map[string]domain.Allocation
	cards        map[string]domain.Card
	adjustments  []domain.Adjustment
	holds        map[string]domain.Hold
	messages     map[string]domain.NetworkMessage
	messageByRef map[string]string
	declines     map[string]domain.Decline
	activities   map[string]domain.AccountActivity
	spendLimits  map[string]domain.SpendLimitConfig
	jobs         map[string]domain.CorrectionJob
}

func newState() *state {
	return &state{
		accounts:     map[string]domain.Account{},
		businesses:   map[string]domain.Business{},
		allocations:  map[string]domain.Allocation{},
		cards:        map[string]domain.Card{},
		holds:        map[string]domain.Hold{},
		messages:     map[string]domain.NetworkMessage{},
		messageByRef: map[string]string{},
		declines:     map[string]domain.Decline{},
		activities:   map[string]domain.AccountActivity{},
		spendLimits:  map[string]domain.SpendLimitConfig{},
		jobs:         map[string]domain.CorrectionJob{},
	}
}

// clone copies every table. Values are structs so a shallow map copy is enough;
// slices inside values are replaced, never mutated in place.
func (s *state) clone() *state {
	return &state{
		accounts:     maps.Clone(s.accounts),
		businesses:   maps.Clone(s.businesses),
		allocations:  maps.Clone(s.allocations),
		cards:        maps.Clone(s.cards),
		adjustments:  slices.Clone(s.adjustments),
		holds:        maps.Clone(s.holds),
		messages:     maps.Clone(s.messages),
		messageByRef: maps.Clone(s.messageByRef),
		declines:     maps.Clone(s.declines),
		activities:   maps.Clone(s.activities),
		spendLimits:  maps.Clone(s.spendLimits),
		jobs:         maps.Clone(s.jobs),
	}
}

// Store is an in-memory repositories.Store.
type Store struct {
	mu    sync.Mutex
	state *state
}

var _ repositories.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// WithinTx runs fn against a private copy of the state. Calls must not be nested.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.run(ctx, fn)
	if err != nil {
		return err
	}
	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

func (s *Store) run(ctx context.Context, fn func(ctx context.Context, tx repositories.Tx) error) (*memTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{state: s.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return nil, err
	}
	s.state = tx.state
	return tx, nil
}

type memTx struct {
	state *state
	hooks []func()
}

var _ repositories.Tx = (*memTx)(nil)

func (t *memTx) Accounts() repositories.AccountRepositoryFacade               { return t }
func (t *memTx) Businesses() repositories.BusinessRepositoryFacade            { return t }
func (t *memTx) Allocations() repositories.AllocationRepositoryFacade         { return t }
func (t *memTx) Cards() repositories.CardRepositoryFacade                     { return t }
func (t *memTx) Adjustments() repositories.AdjustmentRepositoryFacade         { return t }
func (t *memTx) Holds() repositories.HoldRepositoryFacade                     { return t }
func (t *memTx) NetworkMessages() repositories.NetworkMessageRepositoryFacade { return t }
func (t *memTx) Declines() repositories.DeclineRepositoryFacade               { return t }
func (t *memTx) Activities() repositories.ActivityRepositoryFacade            { return t }
func (t *memTx) SpendLimits() repositories.SpendLimitRepositoryFacade         { return t }
func (t *memTx) CorrectionJobs() repositories.CorrectionJobRepositoryFacade   { return t }

func (t *memTx) OnCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}
