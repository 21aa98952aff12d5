// Package routing admits escalated conversations into a bounded priority
// queue and assigns them to capacity-limited agents.
//
// Urgency scores order the queue: a weighted sum of severity, SLA-breach
// proximity, sentiment, and customer tier. Eligible agents are selected
// by one of three strategies (round-robin, least-busy, skill-based). Two
// periodic sweeps keep the queue moving: a fast one re-scores and
// re-attempts assignment, and a slow one emits advisory escalation events
// for items that have waited too long.
//
// The queue and the agent registry are private to this package; other
// components observe routing only through published events.
package routing
