// ABOUTME: Bounded priority queue of conversations waiting for an agent
// ABOUTME: Ordered by urgency score, ties broken by queue entry time

package routing

import (
	"sort"
	"time"
)

// QueueItem is one conversation waiting for assignment.
type QueueItem struct {
	ConversationID  string
	CustomerID      string
	Severity        string
	Sentiment       string
	SLATier         string
	RequiredSkills  []string
	PreferredTeamID string
	SLADueAt        *time.Time
	UrgencyScore    float64
	EscalationLevel int
	QueuedAt        time.Time
	LastEscalatedAt time.Time
}

// urgencyScore computes the item's priority at the given instant.
//
// Severity dominates, then SLA proximity, then sentiment, then customer
// tier. Re-scored on every assignment sweep so an item's priority rises
// as its SLA deadline approaches.
func urgencyScore(item *QueueItem, now time.Time) float64 {
	score := 0.0

	switch item.Severity {
	case "P0":
		score += 100
	case "P1":
		score += 75
	case "P2":
		score += 50
	case "P3":
		score += 25
	}

	if item.SLADueAt != nil {
		remaining := item.SLADueAt.Sub(now)
		switch {
		case remaining <= 0:
			score += 50
		case remaining < 15*time.Minute:
			score += 30
		case remaining < 30*time.Minute:
			score += 15
		}
	}

	switch item.Sentiment {
	case "angry":
		score += 30
	case "negative":
		score += 15
	}

	switch item.SLATier {
	case "enterprise":
		score += 20
	case "premium":
		score += 10
	}

	return score
}

// sortByUrgency orders items highest score first; equal scores keep FIFO
// order by queue entry time.
func sortByUrgency(items []*QueueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].UrgencyScore != items[j].UrgencyScore {
			return items[i].UrgencyScore > items[j].UrgencyScore
		}
		return items[i].QueuedAt.Before(items[j].QueuedAt)
	})
}
