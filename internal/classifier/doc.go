// Package classifier is the classification gatekeeper for inbound
// customer messages.
//
// It is a filter with hard failsafes, not a conversational agent. Five
// independent analyses (intent, severity, sentiment, entity extraction,
// and the action decision) are combined deterministically. Classify
// never returns an error: any internal failure produces a failsafe result
// that routes to a human with escalation recommended.
//
// The deflection counter caps automated responses per conversation. The
// escalation recommendation is a separate signal from the chosen action
// and can never block an escalation requested elsewhere.
package classifier
