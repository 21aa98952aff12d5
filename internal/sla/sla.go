// ABOUTME: SLA deadline calculation per customer tier and channel
// ABOUTME: Synchronous channels halve the first-response target

package sla

import (
	"fmt"
	"time"

	"github.com/2389/deskflow/internal/channel"
)

// Tier is a customer's support plan.
type Tier string

const (
	TierEnterprise Tier = "enterprise"
	TierPremium    Tier = "premium"
	TierStandard   Tier = "standard"
	TierFree       Tier = "free"
)

// Deadlines are the SLA targets computed for a new conversation.
type Deadlines struct {
	FirstResponseDueAt time.Time
	ResolutionDueAt    time.Time
}

// Calculator computes SLA deadlines. Implemented here by the static table;
// the interface exists so a contract-driven implementation can replace it.
type Calculator interface {
	Deadlines(tier Tier, kind channel.Kind, now time.Time) (Deadlines, error)
}

// targets holds the per-tier base durations.
type targets struct {
	firstResponse time.Duration
	resolution    time.Duration
}

var tierTargets = map[Tier]targets{
	TierEnterprise: {firstResponse: 30 * time.Minute, resolution: 8 * time.Hour},
	TierPremium:    {firstResponse: 1 * time.Hour, resolution: 24 * time.Hour},
	TierStandard:   {firstResponse: 4 * time.Hour, resolution: 48 * time.Hour},
	TierFree:       {firstResponse: 24 * time.Hour, resolution: 7 * 24 * time.Hour},
}

// TableCalculator is the static-table Calculator.
type TableCalculator struct{}

// NewTableCalculator returns the static SLA table.
func NewTableCalculator() *TableCalculator {
	return &TableCalculator{}
}

// Deadlines computes deadlines from the tier table. Chat-style channels
// halve the first-response target: a customer sitting in a live chat waits
// minutes, not hours.
func (c *TableCalculator) Deadlines(tier Tier, kind channel.Kind, now time.Time) (Deadlines, error) {
	t, ok := tierTargets[tier]
	if !ok {
		return Deadlines{}, fmt.Errorf("unknown SLA tier %q", tier)
	}

	first := t.firstResponse
	if kind.Synchronous() {
		first = first / 2
	}

	return Deadlines{
		FirstResponseDueAt: now.Add(first),
		ResolutionDueAt:    now.Add(t.resolution),
	}, nil
}
