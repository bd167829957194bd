package services

import (
	"sort"

	"github.com/SscSPs/card_ledger/internal/core/domain"
)

// traversalOrder lists allocations breadth first from the root, siblings ordered by
// creation time then id. Allocations not reachable from a root are appended as extra roots.
func traversalOrder(allocations []domain.Allocation) []domain.Allocation {
	sorted := make([]domain.Allocation, len(allocations))
	copy(sorted, allocations)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].AllocationID < sorted[j].AllocationID
	})

	children := make(map[string][]domain.Allocation, len(sorted))
	var roots []domain.Allocation
	for _, a := range sorted {
		if a.IsRoot() {
			roots = append(roots, a)
			continue
		}
		children[a.ParentAllocationID] = append(children[a.ParentAllocationID], a)
	}

	order := make([]domain.Allocation, 0, len(sorted))
	visited := make(map[string]bool, len(sorted))
	walk := func(start domain.Allocation) {
		queue := []domain.Allocation{start}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			if visited[current.AllocationID] {
				continue
			}
			visited[current.AllocationID] = true
			order = append(order, current)
			queue = append(queue, children[current.AllocationID]...)
		}
	}
	for _, root := range roots {
		walk(root)
	}
	for _, a := range sorted {
		if !visited[a.AllocationID] {
			walk(a)
		}
	}
	return order
}

// allocationBalance pairs an allocation with the ledger balance of its account.
type allocationBalance struct {
	allocation domain.Allocation
	account    domain.Account
}

// planCorrection covers each negative allocation from positive ones, taking donors in
// traversal order. It returns the transfers and the negative balance left uncovered.
func planCorrection(ordered []allocationBalance, currency domain.Currency) ([]domain.FundsTransfer, domain.Amount) {
	remaining := make(map[string]domain.Amount, len(ordered))
	for _, ab := range ordered {
		remaining[ab.allocation.AllocationID] = ab.account.LedgerBalance
	}

	var transfers []domain.FundsTransfer
	uncovered := domain.ZeroAmount(currency)
	for _, recipient := range ordered {
		rid := recipient.allocation.AllocationID
		if !remaining[rid].IsNegative() {
			continue
		}
		for _, donor := range ordered {
			need := remaining[rid].Abs()
			if need.IsZero() {
				break
			}
			did := donor.allocation.AllocationID
			if did == rid || !remaining[did].IsPositive() {
				continue
			}
			amount := domain.NewAmount(currency, domain.MinDecimal(remaining[did].Amount, need.Amount))
			transfers = append(transfers, domain.FundsTransfer{
				FromAllocationID: did,
				ToAllocationID:   rid,
				Amount:           amount,
			})
			remaining[did] = remaining[did].Sub(amount)
			remaining[rid] = remaining[rid].Add(amount)
		}
		if remaining[rid].IsNegative() {
			uncovered = uncovered.Add(remaining[rid])
		}
	}
	return transfers, uncovered
}
