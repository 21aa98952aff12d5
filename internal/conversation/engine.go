// ABOUTME: Conversation engine: creation, message ingestion, state transitions
// ABOUTME: Messages are persisted before anything acts on them

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/2389/deskflow/internal/bus"
	"github.com/2389/deskflow/internal/channel"
	"github.com/2389/deskflow/internal/classifier"
	"github.com/2389/deskflow/internal/config"
	"github.com/2389/deskflow/internal/dedupe"
	"github.com/2389/deskflow/internal/sla"
	"github.com/2389/deskflow/internal/store"
)

// reopenWindow is how long after resolution a new customer message still
// reattaches to the resolved conversation.
const reopenWindow = 24 * time.Hour

// ConversationStore defines what the engine needs from storage.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *store.Conversation) error
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	UpdateConversation(ctx context.Context, conv *store.Conversation) error
	ListConversationsByCustomer(ctx context.Context, customerID string, limit int) ([]*store.Conversation, error)
	FindConversationByEmailThread(ctx context.Context, threadID string) (*store.Conversation, error)
	SaveMessage(ctx context.Context, msg *store.Message) error
	ListMessagesByConversation(ctx context.Context, conversationID string, limit int) ([]*store.Message, error)
}

// Gatekeeper defines what the engine needs from classification.
type Gatekeeper interface {
	Classify(ctx context.Context, content string, convCtx classifier.Context) classifier.Result
	RecordDeflection(conversationID string, successful bool) int
}

// Engine owns conversation aggregates. Construct with NewEngine.
type Engine struct {
	cfg      config.ConversationConfig
	store    ConversationStore
	bus      bus.Bus
	gate     Gatekeeper
	slaCalc  sla.Calculator
	channels *channel.Registry
	seen     *dedupe.Cache
	clock    clock.Clock
	logger   *slog.Logger

	timerMu sync.Mutex
	timers  map[string]*clock.Timer

	unsubscribes []func()
}

// NewEngine creates a conversation engine. gate may be nil to disable
// classification; clk may be nil for wall-clock time.
func NewEngine(cfg config.ConversationConfig, st ConversationStore, b bus.Bus, gate Gatekeeper, slaCalc sla.Calculator, channels *channel.Registry, clk clock.Clock, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{
		cfg:      cfg,
		store:    st,
		bus:      b,
		gate:     gate,
		slaCalc:  slaCalc,
		channels: channels,
		seen:     dedupe.New(dedupe.DefaultTTL, dedupe.DefaultMaxEntries),
		clock:    clk,
		logger:   logger.With("component", "conversation"),
		timers:   make(map[string]*clock.Timer),
	}
}

// Start subscribes to routing decisions.
func (e *Engine) Start() {
	e.unsubscribes = append(e.unsubscribes,
		e.bus.Subscribe(bus.EventRoutingAssigned, "conversation-assign", e.handleRoutingAssigned),
	)
}

// Stop cancels chat timers and unsubscribes from the bus.
func (e *Engine) Stop() {
	e.timerMu.Lock()
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
	e.timerMu.Unlock()

	for _, unsub := range e.unsubscribes {
		unsub()
	}
	e.unsubscribes = nil
}

// CreateRequest describes a new conversation.
type CreateRequest struct {
	CustomerID     string
	Channel        channel.Kind
	SLATier        sla.Tier
	CustomerEmail  string
	CustomerPhone  string
	InitialMessage *channel.NormalizedMessage
}

// Create makes a new conversation in OPEN, computes its SLA deadlines,
// optionally ingests the first message, and starts the chat-timeout
// timer for synchronous channels.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*store.Conversation, error) {
	if req.CustomerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}

	now := e.clock.Now()
	deadlines, err := e.slaCalc.Deadlines(req.SLATier, req.Channel, now)
	if err != nil {
		return nil, fmt.Errorf("calculating SLA deadlines: %w", err)
	}

	conv := &store.Conversation{
		ID:                 uuid.New().String(),
		CustomerID:         req.CustomerID,
		State:              string(StateOpen),
		ChannelsUsed:       []string{string(req.Channel)},
		CurrentChannel:     string(req.Channel),
		SLATier:            string(req.SLATier),
		FirstResponseDueAt: &deadlines.FirstResponseDueAt,
		ResolutionDueAt:    &deadlines.ResolutionDueAt,
		CustomerEmail:      req.CustomerEmail,
		CustomerPhone:      req.CustomerPhone,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := e.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	e.logger.Info("conversation created",
		"conversation_id", conv.ID,
		"customer_id", conv.CustomerID,
		"channel", conv.CurrentChannel,
		"sla_tier", conv.SLATier)

	e.publish(ctx, bus.EventConversationCreated, &bus.ConversationCreatedPayload{
		ConversationID: conv.ID,
		CustomerID:     conv.CustomerID,
		Channel:        conv.CurrentChannel,
		SLATier:        conv.SLATier,
	}, conv.ID)

	if req.InitialMessage != nil {
		conv, err = e.AddMessage(ctx, conv.ID, req.InitialMessage)
		if err != nil {
			return nil, err
		}
	}

	if req.Channel.Synchronous() {
		e.armChatTimeout(conv.ID)
	}
	return conv, nil
}

// AddMessage records a message, updates counters and channel continuity,
// and applies the direction-specific transition rules. Duplicate channel
// message ids are dropped without effect.
func (e *Engine) AddMessage(ctx context.Context, conversationID string, msg *channel.NormalizedMessage) (*store.Conversation, error) {
	conv, err := e.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if msg.ID != "" && e.seen.Seen(string(msg.Channel), msg.ID) {
		e.logger.Debug("duplicate message dropped",
			"conversation_id", conversationID,
			"message_id", msg.ID)
		return conv, nil
	}

	// Record first, then act. The message is persisted before any state
	// change or classification so a record exists even if those fail.
	now := e.clock.Now()
	stored := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Channel:        string(msg.Channel),
		Direction:      string(msg.Direction),
		SenderType:     string(msg.SenderType),
		Content:        msg.Content,
		ContentType:    msg.ContentType,
		EmailThreadID:  msg.Hints.EmailThreadID,
		SessionID:      msg.Hints.SessionID,
		CreatedAt:      now,
	}
	if err := e.store.SaveMessage(ctx, stored); err != nil {
		return nil, fmt.Errorf("recording message: %w", err)
	}

	conv.MessageCount++
	conv.LastMessageAt = &now
	conv.CurrentChannel = string(msg.Channel)
	conv.ChannelsUsed = appendUnique(conv.ChannelsUsed, string(msg.Channel))
	if msg.SenderIdentity.Email != "" {
		conv.CustomerEmail = msg.SenderIdentity.Email
	}
	if msg.SenderIdentity.Phone != "" {
		conv.CustomerPhone = msg.SenderIdentity.Phone
	}

	inboundCustomer := msg.Direction == channel.DirectionInbound && msg.SenderType == channel.SenderCustomer
	outboundAgent := msg.Direction == channel.DirectionOutbound && msg.SenderType == channel.SenderAgent

	switch {
	case inboundCustomer && State(conv.State) == StateAwaitingCustomer:
		e.transition(ctx, conv, StateAwaitingAgent, "customer replied")
	case inboundCustomer && State(conv.State) == StateResolved:
		e.reopen(ctx, conv, "customer message after resolution")
	case outboundAgent && (State(conv.State) == StateOpen || State(conv.State) == StateAwaitingAgent):
		if conv.FirstResponseAt == nil {
			conv.FirstResponseAt = &now
			if conv.FirstResponseDueAt != nil && now.After(*conv.FirstResponseDueAt) {
				conv.SLABreached = true
				e.logger.Warn("first response past SLA deadline",
					"conversation_id", conv.ID,
					"due_at", conv.FirstResponseDueAt)
			}
		}
		e.transition(ctx, conv, StateAwaitingCustomer, "agent replied")
	}

	conv.UpdatedAt = now
	if err := e.store.UpdateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("updating conversation: %w", err)
	}

	e.publish(ctx, bus.EventMessageReceived, &bus.MessageReceivedPayload{
		ConversationID: conv.ID,
		MessageID:      stored.ID,
		Channel:        stored.Channel,
		Direction:      stored.Direction,
		SenderType:     stored.SenderType,
	}, conv.ID)

	if inboundCustomer && msg.Channel.Synchronous() {
		e.armChatTimeout(conv.ID)
	}

	if inboundCustomer && e.cfg.AutoClassify && e.gate != nil {
		snapshot := *conv
		go e.classifyAsync(&snapshot, stored)
	}
	return conv, nil
}

// ChangeState validates and applies one transition.
func (e *Engine) ChangeState(ctx context.Context, conversationID string, to State, reason string) (*store.Conversation, error) {
	conv, err := e.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(State(conv.State), to); err != nil {
		return nil, err
	}

	if to == StateReopened {
		e.reopen(ctx, conv, reason)
	} else {
		e.transition(ctx, conv, to, reason)
	}

	conv.UpdatedAt = e.clock.Now()
	if err := e.store.UpdateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("updating conversation: %w", err)
	}
	return conv, nil
}

// Assign attaches an agent to the conversation.
func (e *Engine) Assign(ctx context.Context, conversationID, agentID string) (*store.Conversation, error) {
	conv, err := e.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	conv.AssignedAgentID = agentID
	if from := State(conv.State); from != StateAwaitingAgent && CanTransition(from, StateAwaitingAgent) {
		e.transition(ctx, conv, StateAwaitingAgent, "agent assigned")
	}
	conv.UpdatedAt = e.clock.Now()
	if err := e.store.UpdateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("updating conversation: %w", err)
	}

	e.logger.Info("conversation assigned",
		"conversation_id", conv.ID,
		"agent_id", agentID)
	e.publish(ctx, bus.EventConversationAssigned, &bus.AssignedPayload{
		ConversationID: conv.ID,
		AgentID:        agentID,
	}, conv.ID)
	return conv, nil
}

// Escalate moves the conversation to ESCALATED and announces it with
// enough context for the routing queue to score it.
func (e *Engine) Escalate(ctx context.Context, conversationID, reason string) (*store.Conversation, error) {
	conv, err := e.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(State(conv.State), StateEscalated); err != nil {
		return nil, err
	}

	e.transition(ctx, conv, StateEscalated, reason)
	conv.UpdatedAt = e.clock.Now()
	if err := e.store.UpdateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("updating conversation: %w", err)
	}

	e.publish(ctx, bus.EventConversationEscalated, &bus.EscalatedPayload{
		ConversationID:     conv.ID,
		Severity:           conv.Severity,
		Sentiment:          conv.Sentiment,
		SLATier:            conv.SLATier,
		RequiredSkills:     conv.RequiredSkills,
		FirstResponseDueAt: conv.FirstResponseDueAt,
		Reason:             reason,
	}, conv.ID)
	return conv, nil
}

// Get returns one conversation.
func (e *Engine) Get(ctx context.Context, conversationID string) (*store.Conversation, error) {
	return e.store.GetConversation(ctx, conversationID)
}

// FindOrCreateForMessage reuses an existing conversation for the customer
// when it can. A channel threading hint wins over the recency rule; a
// resolved conversation is reused only within the reopen window.
func (e *Engine) FindOrCreateForMessage(ctx context.Context, msg *channel.NormalizedMessage, customerID string, tier sla.Tier) (*store.Conversation, error) {
	if msg.Hints.EmailThreadID != "" {
		conv, err := e.store.FindConversationByEmailThread(ctx, msg.Hints.EmailThreadID)
		if err == nil {
			return conv, nil
		}
		if err != store.ErrNotFound {
			return nil, err
		}
	}

	convs, err := e.store.ListConversationsByCustomer(ctx, customerID, 10)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	for _, conv := range convs {
		if State(conv.State) != StateResolved {
			return conv, nil
		}
		if conv.ResolvedAt != nil && now.Sub(*conv.ResolvedAt) <= reopenWindow {
			return conv, nil
		}
	}

	return e.Create(ctx, CreateRequest{
		CustomerID:    customerID,
		Channel:       msg.Channel,
		SLATier:       tier,
		CustomerEmail: msg.SenderIdentity.Email,
		CustomerPhone: msg.SenderIdentity.Phone,
	})
}

// Ingest resolves the conversation for an inbound message and records it.
func (e *Engine) Ingest(ctx context.Context, msg *channel.NormalizedMessage, customerID string, tier sla.Tier) (*store.Conversation, error) {
	conv, err := e.FindOrCreateForMessage(ctx, msg, customerID, tier)
	if err != nil {
		return nil, err
	}
	return e.AddMessage(ctx, conv.ID, msg)
}

// HandoffBrief renders a compact summary for the human taking over.
func (e *Engine) HandoffBrief(ctx context.Context, conversationID string) (string, error) {
	conv, err := e.store.GetConversation(ctx, conversationID)
	if err != nil {
		return "", err
	}
	msgs, err := e.store.ListMessagesByConversation(ctx, conversationID, 10)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Handoff: conversation %s\n\n", conv.ID)
	fmt.Fprintf(&b, "Customer: %s (%s tier)\n", conv.CustomerID, conv.SLATier)
	fmt.Fprintf(&b, "State: %s, channel: %s (used: %s)\n",
		conv.State, conv.CurrentChannel, strings.Join(conv.ChannelsUsed, ", "))
	if conv.Intent != "" {
		fmt.Fprintf(&b, "Classified: intent=%s severity=%s sentiment=%s\n",
			conv.Intent, conv.Severity, conv.Sentiment)
	}
	if conv.DeflectionAttempts > 0 {
		fmt.Fprintf(&b, "Automated responses already tried: %d\n", conv.DeflectionAttempts)
	}
	if conv.FirstResponseDueAt != nil {
		fmt.Fprintf(&b, "First response due: %s\n", conv.FirstResponseDueAt.Format(time.RFC3339))
	}

	b.WriteString("\n## Recent messages\n")
	for _, m := range msgs {
		fmt.Fprintf(&b, "- [%s %s/%s] %s\n", m.CreatedAt.Format("15:04"), m.SenderType, m.Channel, m.Content)
	}
	return b.String(), nil
}

// transition mutates the in-memory aggregate and publishes the change.
// Side effects tied to specific states live here.
func (e *Engine) transition(ctx context.Context, conv *store.Conversation, to State, reason string) {
	from := State(conv.State)
	conv.State = string(to)

	if to == StateResolved {
		now := e.clock.Now()
		conv.ResolvedAt = &now
		e.cancelChatTimeout(conv.ID)
	}

	e.logger.Info("conversation state changed",
		"conversation_id", conv.ID,
		"from", from,
		"to", to,
		"reason", reason)
	e.publish(ctx, bus.EventConversationState, &bus.StateChangedPayload{
		ConversationID: conv.ID,
		From:           string(from),
		To:             string(to),
		Reason:         reason,
	}, conv.ID)
}

// reopen applies the REOPENED transition: SLA deadlines are recomputed
// and the breach flag cleared.
func (e *Engine) reopen(ctx context.Context, conv *store.Conversation, reason string) {
	now := e.clock.Now()
	if deadlines, err := e.slaCalc.Deadlines(sla.Tier(conv.SLATier), channel.Kind(conv.CurrentChannel), now); err == nil {
		conv.FirstResponseDueAt = &deadlines.FirstResponseDueAt
		conv.ResolutionDueAt = &deadlines.ResolutionDueAt
	} else {
		e.logger.Warn("recomputing SLA deadlines failed", "conversation_id", conv.ID, "error", err)
	}
	conv.SLABreached = false
	conv.ResolvedAt = nil
	conv.FirstResponseAt = nil
	e.transition(ctx, conv, StateReopened, reason)
}

// handleRoutingAssigned applies a routing decision to the aggregate.
func (e *Engine) handleRoutingAssigned(ctx context.Context, evt *bus.Event) error {
	p, err := bus.DecodePayload[bus.AssignedPayload](evt)
	if err != nil {
		return err
	}
	_, err = e.Assign(ctx, p.ConversationID, p.AgentID)
	return err
}

// publish sends one event, logging instead of propagating failure. Event
// emission is fire-and-forget for the mutation paths.
func (e *Engine) publish(ctx context.Context, t bus.EventType, payload any, correlationID string) {
	if _, err := e.bus.Publish(ctx, t, payload, bus.PublishOptions{CorrelationID: correlationID}); err != nil {
		e.logger.Warn("publishing event failed", "type", t, "error", err)
	}
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
