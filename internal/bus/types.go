// ABOUTME: Event envelope, closed event-type enum, and typed payloads
// ABOUTME: Payloads are tagged variants keyed by EventType, not open dictionaries

package bus

import (
	"time"
)

// EventType identifies the kind of event. The set is closed: components
// switch over these constants and new types must be added here.
type EventType string

const (
	EventMessageReceived       EventType = "message.received"
	EventConversationCreated   EventType = "conversation.created"
	EventConversationState     EventType = "conversation.state_changed"
	EventConversationEscalated EventType = "conversation.escalated"
	EventConversationAssigned  EventType = "conversation.assigned"
	EventChannelSwitched       EventType = "conversation.channel_switched"
	EventClassificationDone    EventType = "classification.completed"
	EventRoutingQueued         EventType = "routing.queued"
	EventRoutingAssigned       EventType = "routing.assigned"
	EventRoutingEscalated      EventType = "routing.escalated"
	EventResolutionCreated     EventType = "resolution.created"
	EventResolutionUpdated     EventType = "resolution.updated"
	EventResolutionResolved    EventType = "resolution.resolved"
	EventSilenceBreached       EventType = "resolution.silence_breached"
	EventDeflectionAttempted   EventType = "deflection.attempted"
)

// Event is the immutable envelope published on the bus. Identity is the ID;
// redelivery of the same ID to a handler that already succeeded is a no-op.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	Payload       any       `json:"payload"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CausationID   string    `json:"causation_id,omitempty"`
}

// PublishOptions carries optional correlation metadata for a publish.
type PublishOptions struct {
	CorrelationID string
	CausationID   string
}

// MessageReceivedPayload accompanies EventMessageReceived.
type MessageReceivedPayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Channel        string `json:"channel"`
	Direction      string `json:"direction"`
	SenderType     string `json:"sender_type"`
}

// ConversationCreatedPayload accompanies EventConversationCreated.
type ConversationCreatedPayload struct {
	ConversationID string `json:"conversation_id"`
	CustomerID     string `json:"customer_id"`
	Channel        string `json:"channel"`
	SLATier        string `json:"sla_tier"`
}

// StateChangedPayload accompanies EventConversationState.
type StateChangedPayload struct {
	ConversationID string `json:"conversation_id"`
	From           string `json:"from"`
	To             string `json:"to"`
	Reason         string `json:"reason"`
}

// EscalatedPayload accompanies EventConversationEscalated. Routing consumes
// it to admit the conversation into the queue.
type EscalatedPayload struct {
	ConversationID  string   `json:"conversation_id"`
	Severity        string   `json:"severity"`
	Sentiment       string   `json:"sentiment"`
	SLATier         string   `json:"sla_tier"`
	RequiredSkills  []string `json:"required_skills,omitempty"`
	PreferredTeamID string   `json:"preferred_team_id,omitempty"`
	// FirstResponseDueAt lets the queue score SLA proximity.
	FirstResponseDueAt *time.Time `json:"first_response_due_at,omitempty"`
	Reason             string     `json:"reason"`
}

// AssignedPayload accompanies EventConversationAssigned and EventRoutingAssigned.
type AssignedPayload struct {
	ConversationID string `json:"conversation_id"`
	AgentID        string `json:"agent_id"`
}

// ChannelSwitchedPayload accompanies EventChannelSwitched. The conversation
// id is preserved across the switch; follow-up continues on ToChannel.
type ChannelSwitchedPayload struct {
	ConversationID string `json:"conversation_id"`
	FromChannel    string `json:"from_channel"`
	ToChannel      string `json:"to_channel"`
	Identity       string `json:"identity"`
	Reason         string `json:"reason"`
}

// ClassificationPayload accompanies EventClassificationDone.
type ClassificationPayload struct {
	ConversationID  string  `json:"conversation_id"`
	MessageID       string  `json:"message_id"`
	Intent          string  `json:"intent"`
	Severity        string  `json:"severity"`
	Sentiment       string  `json:"sentiment"`
	SuggestedAction string  `json:"suggested_action"`
	Confidence      float64 `json:"confidence"`
}

// QueuedPayload accompanies EventRoutingQueued.
type QueuedPayload struct {
	ConversationID string  `json:"conversation_id"`
	UrgencyScore   float64 `json:"urgency_score"`
	QueueDepth     int     `json:"queue_depth"`
}

// RoutingEscalatedPayload accompanies EventRoutingEscalated. Advisory: it
// reports a queue item whose wait exceeded the escalation window; handlers
// decide what to do with it.
type RoutingEscalatedPayload struct {
	ConversationID  string  `json:"conversation_id"`
	EscalationLevel int     `json:"escalation_level"`
	WaitedMinutes   float64 `json:"waited_minutes"`
}

// ResolutionPayload accompanies the resolution.* lifecycle events.
type ResolutionPayload struct {
	ResolutionID   string `json:"resolution_id"`
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
	Priority       string `json:"priority"`
}

// SilenceBreachedPayload accompanies EventSilenceBreached.
type SilenceBreachedPayload struct {
	ResolutionID   string    `json:"resolution_id"`
	ConversationID string    `json:"conversation_id"`
	LastUpdateAt   time.Time `json:"last_update_at"`
}

// DeflectionPayload accompanies EventDeflectionAttempted.
type DeflectionPayload struct {
	ConversationID string `json:"conversation_id"`
	AttemptCount   int    `json:"attempt_count"`
	Successful     bool   `json:"successful"`
}
