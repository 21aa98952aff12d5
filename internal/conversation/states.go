// ABOUTME: Conversation state machine with an explicit transition table
// ABOUTME: Invalid transitions fail with ErrInvalidTransition, never forced

package conversation

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned for any (from, to) pair not in the
// transition table. The aggregate is left unchanged.
var ErrInvalidTransition = errors.New("invalid state transition")

// State of a conversation. RESOLVED is terminal but reopenable.
type State string

const (
	StateOpen             State = "OPEN"
	StateAwaitingCustomer State = "AWAITING_CUSTOMER"
	StateAwaitingAgent    State = "AWAITING_AGENT"
	StateEscalated        State = "ESCALATED"
	StateResolved         State = "RESOLVED"
	StateReopened         State = "REOPENED"
)

// validTransitions is the complete table. Absence means invalid.
var validTransitions = map[State][]State{
	StateOpen:             {StateAwaitingCustomer, StateAwaitingAgent, StateEscalated, StateResolved},
	StateAwaitingCustomer: {StateAwaitingAgent, StateEscalated, StateResolved},
	StateAwaitingAgent:    {StateAwaitingCustomer, StateEscalated, StateResolved},
	StateEscalated:        {StateAwaitingCustomer, StateAwaitingAgent, StateResolved},
	StateResolved:         {StateReopened},
	StateReopened:         {StateAwaitingCustomer, StateAwaitingAgent, StateEscalated, StateResolved},
}

// CanTransition reports whether from -> to is in the table.
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// checkTransition returns a descriptive ErrInvalidTransition when the
// pair is not in the table.
func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Terminal reports whether the state ends the active dialogue.
func (s State) Terminal() bool {
	return s == StateResolved
}
