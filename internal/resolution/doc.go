// Package resolution tracks long-running technical incidents linked to
// conversations.
//
// A resolution moves through an incident-response state machine with an
// explicit transition table. The hard rule is that silence is forbidden:
// every non-terminal resolution carries a recurring proactive-update
// timer and a silence monitor, and the customer hears something even
// when the internal team has gone quiet. Every field change is recorded
// as an immutable append-only update, so the audit trail of a fix is
// never rewritten.
//
// Recurrence within seven days of resolution spawns a new linked
// resolution with escalated priority instead of reopening the original.
package resolution
