package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/card_ledger/internal/core/domain"
)

func allocationAt(id, parent string, minute int) domain.Allocation {
	created := time.Date(2025, 1, 1, 0, minute, 0, 0, time.UTC)
	return domain.Allocation{
		AllocationID:       id,
		ParentAllocationID: parent,
		AccountID:          "acc-" + id,
		AuditFields:        domain.AuditFields{CreatedAt: created},
	}
}

func allocationIDs(allocations []domain.Allocation) []string {
	ids := make([]string, len(allocations))
	for i, a := range allocations {
		ids[i] = a.AllocationID
	}
	return ids
}

func TestTraversalOrder_BreadthFirstByCreation(t *testing.T) {
	allocations := []domain.Allocation{
		allocationAt("grandchild", "b", 5),
		allocationAt("c", "root", 3),
		allocationAt("b", "root", 1),
		allocationAt("root", "", 0),
		allocationAt("a", "root", 1),
	}

	order := traversalOrder(allocations)

	assert.Equal(t, []string{"root", "a", "b", "c", "grandchild"}, allocationIDs(order))
}

func TestTraversalOrder_OrphansAndCyclesVisitedOnce(t *testing.T) {
	allocations := []domain.Allocation{
		allocationAt("root", "", 0),
		allocationAt("child", "root", 1),
		allocationAt("orphan", "gone", 2),
		allocationAt("loop-a", "loop-b", 3),
		allocationAt("loop-b", "loop-a", 4),
	}

	order := traversalOrder(allocations)

	assert.Equal(t, []string{"root", "child", "orphan", "loop-a", "loop-b"}, allocationIDs(order))
}

func balanceOf(a domain.Allocation, value string) allocationBalance {
	return allocationBalance{
		allocation: a,
		account:    domain.Account{AccountID: a.AccountID, AllocationID: a.AllocationID, LedgerBalance: domain.MustAmount(domain.USD, value)},
	}
}

func TestPlanCorrection_ExactCoverage(t *testing.T) {
	ordered := []allocationBalance{
		balanceOf(allocationAt("root", "", 0), "45"),
		balanceOf(allocationAt("a", "root", 1), "-10"),
		balanceOf(allocationAt("b", "root", 2), "-15"),
		balanceOf(allocationAt("c", "root", 3), "-20"),
	}

	transfers, remaining := planCorrection(ordered, domain.USD)

	require.Len(t, transfers, 3)
	for i, want := range []string{"10", "15", "20"} {
		assert.Equal(t, "root", transfers[i].FromAllocationID)
		assert.True(t, domain.MustAmount(domain.USD, want).Equal(transfers[i].Amount), "transfer %d", i)
	}
	assert.True(t, remaining.IsZero())
}

func TestPlanCorrection_FallsBackToSiblingsThenReportsShortfall(t *testing.T) {
	ordered := []allocationBalance{
		balanceOf(allocationAt("root", "", 0), "5"),
		balanceOf(allocationAt("a", "root", 1), "-12"),
		balanceOf(allocationAt("b", "root", 2), "4"),
		balanceOf(allocationAt("c", "root", 3), "-3"),
	}

	transfers, remaining := planCorrection(ordered, domain.USD)

	require.Len(t, transfers, 2)
	assert.Equal(t, "root", transfers[0].FromAllocationID)
	assert.Equal(t, "a", transfers[0].ToAllocationID)
	assert.True(t, domain.MustAmount(domain.USD, "5").Equal(transfers[0].Amount))
	assert.Equal(t, "b", transfers[1].FromAllocationID)
	assert.True(t, domain.MustAmount(domain.USD, "4").Equal(transfers[1].Amount))
	assert.True(t, domain.MustAmount(domain.USD, "-6").Equal(remaining))
}

func TestPlanCorrection_NothingNegative(t *testing.T) {
	ordered := []allocationBalance{
		balanceOf(allocationAt("root", "", 0), "5"),
		balanceOf(allocationAt("a", "root", 1), "0"),
	}

	transfers, remaining := planCorrection(ordered, domain.USD)

	assert.Empty(t, transfers)
	assert.True(t, remaining.IsZero())
}
