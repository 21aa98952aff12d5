// ABOUTME: Tests for the conversation state machine table
// ABOUTME: Exhaustively checks every (from, to) pair against the table

package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStates = []State{
	StateOpen, StateAwaitingCustomer, StateAwaitingAgent,
	StateEscalated, StateResolved, StateReopened,
}

func TestCanTransition_ExhaustiveTable(t *testing.T) {
	allowed := map[State]map[State]bool{
		StateOpen:             {StateAwaitingCustomer: true, StateAwaitingAgent: true, StateEscalated: true, StateResolved: true},
		StateAwaitingCustomer: {StateAwaitingAgent: true, StateEscalated: true, StateResolved: true},
		StateAwaitingAgent:    {StateAwaitingCustomer: true, StateEscalated: true, StateResolved: true},
		StateEscalated:        {StateAwaitingCustomer: true, StateAwaitingAgent: true, StateResolved: true},
		StateResolved:         {StateReopened: true},
		StateReopened:         {StateAwaitingCustomer: true, StateAwaitingAgent: true, StateEscalated: true, StateResolved: true},
	}

	for _, from := range allStates {
		for _, to := range allStates {
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

func TestState_Terminal(t *testing.T) {
	for _, s := range allStates {
		assert.Equal(t, s == StateResolved, s.Terminal(), "state %s", s)
	}
}
