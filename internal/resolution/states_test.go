// ABOUTME: Tests for the resolution status machine
// ABOUTME: Exhaustively checks the table, terminal states, and priority escalation

package resolution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []Status{
	StatusInvestigating, StatusAwaitingFix, StatusFixInProgress,
	StatusAwaitingDeploy, StatusDeployed, StatusMonitoring,
	StatusResolved, StatusWontFix, StatusDuplicate,
}

func TestCanTransition_ExhaustiveTable(t *testing.T) {
	allowed := map[Status]map[Status]bool{
		StatusInvestigating:  {StatusAwaitingFix: true, StatusFixInProgress: true, StatusResolved: true, StatusWontFix: true, StatusDuplicate: true},
		StatusAwaitingFix:    {StatusFixInProgress: true, StatusInvestigating: true, StatusWontFix: true, StatusDuplicate: true},
		StatusFixInProgress:  {StatusAwaitingDeploy: true, StatusInvestigating: true, StatusResolved: true, StatusWontFix: true},
		StatusAwaitingDeploy: {StatusDeployed: true, StatusFixInProgress: true},
		StatusDeployed:       {StatusMonitoring: true, StatusResolved: true},
		StatusMonitoring:     {StatusResolved: true, StatusInvestigating: true},
		StatusResolved:       {StatusInvestigating: true},
		StatusWontFix:        {},
		StatusDuplicate:      {},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			got := CanTransition(from, to)
			assert.Equal(t, allowed[from][to], got, "%s -> %s", from, to)
			if got {
				assert.NoError(t, checkTransition(from, to))
			} else {
				assert.ErrorIs(t, checkTransition(from, to), ErrInvalidTransition)
			}
		}
	}
}

func TestStatus_Terminal(t *testing.T) {
	terminal := map[Status]bool{StatusResolved: true, StatusWontFix: true, StatusDuplicate: true}
	for _, s := range allStatuses {
		assert.Equal(t, terminal[s], s.Terminal(), "status %s", s)
	}
}

func TestEscalatePriority(t *testing.T) {
	assert.Equal(t, "P2", escalatePriority("P3"))
	assert.Equal(t, "P1", escalatePriority("P2"))
	assert.Equal(t, "P0", escalatePriority("P1"))
	assert.Equal(t, "P0", escalatePriority("P0"))
	assert.Equal(t, "weird", escalatePriority("weird"))
}

func TestStatusNarrative_CoversNonTerminalStatuses(t *testing.T) {
	for _, s := range allStatuses {
		if s.Terminal() {
			continue
		}
		assert.NotEmpty(t, statusNarrative[s], "status %s needs a customer narrative", s)
	}
}
