// ABOUTME: Resolution state machine mirroring an incident-response workflow
// ABOUTME: Terminal states are RESOLVED, WONT_FIX, DUPLICATE

package resolution

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned for any (from, to) pair not in the
// transition table. The aggregate is left unchanged.
var ErrInvalidTransition = errors.New("invalid status transition")

// Status of a resolution.
type Status string

const (
	StatusInvestigating  Status = "INVESTIGATING"
	StatusAwaitingFix    Status = "AWAITING_FIX"
	StatusFixInProgress  Status = "FIX_IN_PROGRESS"
	StatusAwaitingDeploy Status = "AWAITING_DEPLOY"
	StatusDeployed       Status = "DEPLOYED"
	StatusMonitoring     Status = "MONITORING"
	StatusResolved       Status = "RESOLVED"
	StatusWontFix        Status = "WONT_FIX"
	StatusDuplicate      Status = "DUPLICATE"
)

// validTransitions is the complete table. RESOLVED -> INVESTIGATING
// exists only for the late-reopen path; WONT_FIX and DUPLICATE are dead
// ends.
var validTransitions = map[Status][]Status{
	StatusInvestigating:  {StatusAwaitingFix, StatusFixInProgress, StatusResolved, StatusWontFix, StatusDuplicate},
	StatusAwaitingFix:    {StatusFixInProgress, StatusInvestigating, StatusWontFix, StatusDuplicate},
	StatusFixInProgress:  {StatusAwaitingDeploy, StatusInvestigating, StatusResolved, StatusWontFix},
	StatusAwaitingDeploy: {StatusDeployed, StatusFixInProgress},
	StatusDeployed:       {StatusMonitoring, StatusResolved},
	StatusMonitoring:     {StatusResolved, StatusInvestigating},
	StatusResolved:       {StatusInvestigating},
	StatusWontFix:        {},
	StatusDuplicate:      {},
}

// Terminal reports whether the status ends the resolution's lifecycle.
// Terminal resolutions have no timers.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusWontFix || s == StatusDuplicate
}

// CanTransition reports whether from -> to is in the table.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// checkTransition returns a descriptive ErrInvalidTransition when the
// pair is not in the table.
func checkTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// escalatePriority bumps a priority one level toward P0. P0 stays P0.
func escalatePriority(p string) string {
	switch p {
	case "P3":
		return "P2"
	case "P2":
		return "P1"
	case "P1", "P0":
		return "P0"
	default:
		return p
	}
}

// statusNarrative is the customer-facing description per status, used by
// the proactive-update timer.
var statusNarrative = map[Status]string{
	StatusInvestigating:  "Our team is actively investigating your issue.",
	StatusAwaitingFix:    "We have identified the cause and a fix is being scheduled.",
	StatusFixInProgress:  "A fix for your issue is being worked on right now.",
	StatusAwaitingDeploy: "The fix is ready and waiting to be deployed.",
	StatusDeployed:       "The fix has been deployed and we are confirming it resolves your issue.",
	StatusMonitoring:     "The fix is live and we are monitoring to make sure everything stays healthy.",
}
