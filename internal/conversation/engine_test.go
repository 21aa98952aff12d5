// ABOUTME: Tests for the conversation engine
// ABOUTME: Covers message rules, reopen, chat timeout, and classification wiring

package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/deskflow/internal/bus"
	"github.com/2389/deskflow/internal/channel"
	"github.com/2389/deskflow/internal/classifier"
	"github.com/2389/deskflow/internal/config"
	"github.com/2389/deskflow/internal/sla"
	"github.com/2389/deskflow/internal/store"
)

type engineFixture struct {
	engine *Engine
	store  *store.MockStore
	bus    *bus.InProcBus
	clock  *clock.Mock
	chat   *channel.SimulatedAdapter
}

func newFixture(t *testing.T, cfg config.ConversationConfig, gate Gatekeeper) *engineFixture {
	t.Helper()
	if cfg.ChatTimeout == 0 {
		cfg.ChatTimeout = 10 * time.Minute
	}
	if cfg.ClassifyTimeout == 0 {
		cfg.ClassifyTimeout = 5 * time.Second
	}

	st := store.NewMockStore()
	b := bus.NewInProcBus(3, time.Millisecond, 100, nil)
	t.Cleanup(func() { b.Close() })

	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	registry := channel.NewRegistry(nil)
	chat := channel.NewSimulatedAdapter(channel.KindChat, nil)
	registry.Register(chat)
	registry.Register(channel.NewSimulatedAdapter(channel.KindEmail, nil))

	e := NewEngine(cfg, st, b, gate, sla.NewTableCalculator(), registry, clk, nil)
	t.Cleanup(e.Stop)
	return &engineFixture{engine: e, store: st, bus: b, clock: clk, chat: chat}
}

func collectEvents(b *bus.InProcBus, typ bus.EventType) <-chan *bus.Event {
	ch := make(chan *bus.Event, 16)
	b.Subscribe(typ, "test-collector", func(ctx context.Context, evt *bus.Event) error {
		ch <- evt
		return nil
	})
	return ch
}

func waitEvent(t *testing.T, ch <-chan *bus.Event) *bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func inbound(id, content string) *channel.NormalizedMessage {
	return &channel.NormalizedMessage{
		ID:         id,
		Channel:    channel.KindChat,
		Direction:  channel.DirectionInbound,
		SenderType: channel.SenderCustomer,
		Content:    content,
	}
}

func outboundAgent(id, content string) *channel.NormalizedMessage {
	return &channel.NormalizedMessage{
		ID:         id,
		Channel:    channel.KindChat,
		Direction:  channel.DirectionOutbound,
		SenderType: channel.SenderAgent,
		Content:    content,
	}
}

func TestEngine_Create_OpensWithSLADeadlines(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{}, nil)
	created := collectEvents(f.bus, bus.EventConversationCreated)

	conv, err := f.engine.Create(context.Background(), CreateRequest{
		CustomerID:    "cust-1",
		Channel:       channel.KindChat,
		SLATier:       sla.TierStandard,
		CustomerEmail: "jo@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, string(StateOpen), conv.State)
	require.NotNil(t, conv.FirstResponseDueAt)
	require.NotNil(t, conv.ResolutionDueAt)
	// Standard tier on a synchronous channel halves the first-response target.
	assert.Equal(t, f.clock.Now().Add(2*time.Hour), *conv.FirstResponseDueAt)
	assert.Equal(t, f.clock.Now().Add(48*time.Hour), *conv.ResolutionDueAt)

	p, err := bus.DecodePayload[bus.ConversationCreatedPayload](waitEvent(t, created))
	require.NoError(t, err)
	assert.Equal(t, conv.ID, p.ConversationID)

	// Synchronous channel, so a chat timer is armed.
	f.engine.timerMu.Lock()
	_, armed := f.engine.timers[conv.ID]
	f.engine.timerMu.Unlock()
	assert.True(t, armed)
}

func TestEngine_Create_RequiresCustomerID(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{}, nil)
	_, err := f.engine.Create(context.Background(), CreateRequest{Channel: channel.KindChat, SLATier: sla.TierFree})
	assert.Error(t, err)
}

func TestEngine_AddMessage_CustomerReplyMovesToAwaitingAgent(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{}, nil)
	ctx := context.Background()

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID: "cust-1", Channel: channel.KindChat, SLATier: sla.TierStandard})
	require.NoError(t, err)

	// Agent reply parks the conversation on the customer.
	conv, err = f.engine.AddMessage(ctx, conv.ID, outboundAgent("m1", "how can I help?"))
	require.NoError(t, err)
	assert.Equal(t, string(StateAwaitingCustomer), conv.State)
	require.NotNil(t, conv.FirstResponseAt)
	firstResponse := *conv.FirstResponseAt

	conv, err = f.engine.AddMessage(ctx, conv.ID, inbound("m2", "my export is broken"))
	require.NoError(t, err)
	assert.Equal(t, string(StateAwaitingAgent), conv.State)
	assert.Equal(t, 2, conv.MessageCount)
	require.NotNil(t, conv.LastMessageAt)

	// First response timestamp is set once and never moves.
	f.clock.Add(time.Minute)
	conv, err = f.engine.AddMessage(ctx, conv.ID, outboundAgent("m3", "looking into it"))
	require.NoError(t, err)
	assert.Equal(t, firstResponse, *conv.FirstResponseAt)
}

func emailOutboundAgent(id, content string) *channel.NormalizedMessage {
	m := outboundAgent(id, content)
	m.Channel = channel.KindEmail
	return m
}

func TestEngine_AddMessage_LateFirstResponseMarksSLABreached(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{}, nil)
	ctx := context.Background()

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID: "cust-1", Channel: channel.KindEmail, SLATier: sla.TierStandard})
	require.NoError(t, err)
	require.NotNil(t, conv.FirstResponseDueAt)

	// Standard email target is 4h; the first reply lands an hour late.
	f.clock.Add(5 * time.Hour)
	conv, err = f.engine.AddMessage(ctx, conv.ID, emailOutboundAgent("m1", "sorry for the wait"))
	require.NoError(t, err)
	assert.True(t, conv.SLABreached)

	stored, err := f.store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, stored.SLABreached)
}

func TestEngine_AddMessage_FirstResponseInsideDeadlineNotBreached(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{}, nil)
	ctx := context.Background()

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID: "cust-1", Channel: channel.KindEmail, SLATier: sla.TierStandard})
	require.NoError(t, err)

	f.clock.Add(time.Hour)
	conv, err = f.engine.AddMessage(ctx, conv.ID, emailOutboundAgent("m1", "on it"))
	require.NoError(t, err)
	assert.False(t, conv.SLABreached)
}

func TestEngine_AddMessage_DuplicateDeliveryIgnored(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{}, nil)
	ctx := context.Background()

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID: "cust-1", Channel: channel.KindChat, SLATier: sla.TierStandard})
	require.NoError(t, err)

	conv, err = f.engine.AddMessage(ctx, conv.ID, inbound("dup-1", "hello"))
	require.NoError(t, err)
	require.Equal(t, 1, conv.MessageCount)

	conv, err = f.engine.AddMessage(ctx, conv.ID, inbound("dup-1", "hello"))
	require.NoError(t, err)
	assert.Equal(t, 1, conv.MessageCount, "duplicate delivery must not change the aggregate")

	msgs, err := f.store.ListMessagesByConversation(ctx, conv.ID, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestEngine_AddMessage_CustomerMessageAfterResolveReopens(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{}, nil)
	ctx := context.Background()

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID: "cust-1", Channel: channel.KindChat, SLATier: sla.TierStandard})
	require.NoError(t, err)
	conv, err = f.engine.ChangeState(ctx, conv.ID, StateResolved, "fixed")
	require.NoError(t, err)
	require.NotNil(t, conv.ResolvedAt)

	f.clock.Add(3 * time.Hour)
	conv, err = f.engine.AddMessage(ctx, conv.ID, inbound("m1", "it broke again"))
	require.NoError(t, err)

	assert.Equal(t, string(StateReopened), conv.State)
	assert.Nil(t, conv.ResolvedAt)
	assert.Nil(t, conv.FirstResponseAt)
	assert.False(t, conv.SLABreached)
	// SLA deadlines restart from the reopen instant.
	require.NotNil(t, conv.FirstResponseDueAt)
	assert.Equal(t, f.clock.Now().Add(2*time.Hour), *conv.FirstResponseDueAt)
}

func TestEngine_ChangeState_InvalidLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{}, nil)
	ctx := context.Background()

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID: "cust-1", Channel: channel.KindEmail, SLATier: sla.TierFree})
	require.NoError(t, err)

	_, err = f.engine.ChangeState(ctx, conv.ID, StateReopened, "nope")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := f.store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StateOpen), stored.State)
}

func TestEngine_Escalate_PublishesRoutingContext(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{}, nil)
	ctx := context.Background()
	escalated := collectEvents(f.bus, bus.EventConversationEscalated)

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID: "cust-1", Channel: channel.KindChat, SLATier: sla.TierEnterprise})
	require.NoError(t, err)

	// Annotations normally written by classification.
	stored, _ := f.store.GetConversation(ctx, conv.ID)
	stored.Severity = "P1"
	stored.Sentiment = "angry"
	stored.RequiredSkills = []string{"billing"}
	require.NoError(t, f.store.UpdateConversation(ctx, stored))

	_, err = f.engine.Escalate(ctx, conv.ID, "customer is angry")
	require.NoError(t, err)

	p, err := bus.DecodePayload[bus.EscalatedPayload](waitEvent(t, escalated))
	require.NoError(t, err)
	assert.Equal(t, "P1", p.Severity)
	assert.Equal(t, "angry", p.Sentiment)
	assert.Equal(t, "enterprise", p.SLATier)
	assert.Equal(t, []string{"billing"}, p.RequiredSkills)
	// The routing queue scores SLA proximity from this deadline.
	require.NotNil(t, p.FirstResponseDueAt)
	assert.Equal(t, *conv.FirstResponseDueAt, *p.FirstResponseDueAt)
}

func TestEngine_ChatTimeout_SwitchesToEmailSameConversation(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{ChatTimeout: 10 * time.Minute}, nil)
	ctx := context.Background()
	switched := collectEvents(f.bus, bus.EventChannelSwitched)

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID:    "cust-1",
		Channel:       channel.KindChat,
		SLATier:       sla.TierStandard,
		CustomerEmail: "jo@example.com",
	})
	require.NoError(t, err)

	f.clock.Add(11 * time.Minute)

	p, err := bus.DecodePayload[bus.ChannelSwitchedPayload](waitEvent(t, switched))
	require.NoError(t, err)
	assert.Equal(t, conv.ID, p.ConversationID)
	assert.Equal(t, "chat", p.FromChannel)
	assert.Equal(t, "email", p.ToChannel)
	assert.Equal(t, "jo@example.com", p.Identity)

	stored, err := f.store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, stored.ID)
	assert.Equal(t, "email", stored.CurrentChannel)
	assert.ElementsMatch(t, []string{"chat", "email"}, stored.ChannelsUsed)
	assert.Equal(t, string(StateAwaitingCustomer), stored.State)
}

func TestEngine_ChatTimeout_FiresWhileAwaitingCustomer(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{ChatTimeout: 10 * time.Minute}, nil)
	ctx := context.Background()
	switched := collectEvents(f.bus, bus.EventChannelSwitched)

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID:    "cust-1",
		Channel:       channel.KindChat,
		SLATier:       sla.TierStandard,
		CustomerEmail: "jo@example.com",
	})
	require.NoError(t, err)

	// Customer asks, agent answers, customer goes quiet.
	f.clock.Add(time.Minute)
	_, err = f.engine.AddMessage(ctx, conv.ID, inbound("m1", "my card was declined"))
	require.NoError(t, err)
	conv, err = f.engine.AddMessage(ctx, conv.ID, outboundAgent("m2", "checking now"))
	require.NoError(t, err)
	require.Equal(t, string(StateAwaitingCustomer), conv.State)

	f.clock.Add(11 * time.Minute)

	p, err := bus.DecodePayload[bus.ChannelSwitchedPayload](waitEvent(t, switched))
	require.NoError(t, err)
	assert.Equal(t, conv.ID, p.ConversationID)
	assert.Equal(t, "chat", p.FromChannel)
	assert.Equal(t, "email", p.ToChannel)
	assert.Equal(t, "jo@example.com", p.Identity)

	stored, err := f.store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "email", stored.CurrentChannel)
	assert.Equal(t, string(StateAwaitingCustomer), stored.State)
}

func TestEngine_ChatTimeout_InboundMessageRearmsTimer(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{ChatTimeout: 10 * time.Minute}, nil)
	ctx := context.Background()

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID: "cust-1", Channel: channel.KindChat, SLATier: sla.TierStandard,
		CustomerEmail: "jo@example.com"})
	require.NoError(t, err)

	// Activity before the deadline pushes the timeout out.
	f.clock.Add(8 * time.Minute)
	_, err = f.engine.AddMessage(ctx, conv.ID, inbound("m1", "still here"))
	require.NoError(t, err)

	f.clock.Add(8 * time.Minute)
	stored, err := f.store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "chat", stored.CurrentChannel, "timer was re-armed, no switch yet")

	f.clock.Add(3 * time.Minute)
	stored, err = f.store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "email", stored.CurrentChannel)
}

func TestEngine_Resolve_CancelsChatTimer(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{ChatTimeout: 10 * time.Minute}, nil)
	ctx := context.Background()

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID: "cust-1", Channel: channel.KindChat, SLATier: sla.TierStandard,
		CustomerEmail: "jo@example.com"})
	require.NoError(t, err)

	_, err = f.engine.ChangeState(ctx, conv.ID, StateResolved, "done")
	require.NoError(t, err)

	f.engine.timerMu.Lock()
	_, armed := f.engine.timers[conv.ID]
	f.engine.timerMu.Unlock()
	assert.False(t, armed)

	f.clock.Add(time.Hour)
	stored, err := f.store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StateResolved), stored.State)
	assert.Equal(t, "chat", stored.CurrentChannel)
}

func TestEngine_FindOrCreateForMessage_ThreadHintWins(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{}, nil)
	ctx := context.Background()

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID: "cust-1", Channel: channel.KindEmail, SLATier: sla.TierFree})
	require.NoError(t, err)
	msg := &channel.NormalizedMessage{
		ID: "m1", Channel: channel.KindEmail,
		Direction: channel.DirectionInbound, SenderType: channel.SenderCustomer,
		Content: "first", Hints: channel.ConversationHints{EmailThreadID: "thread-7"},
	}
	_, err = f.engine.AddMessage(ctx, conv.ID, msg)
	require.NoError(t, err)

	reply := &channel.NormalizedMessage{
		ID: "m2", Channel: channel.KindEmail,
		Direction: channel.DirectionInbound, SenderType: channel.SenderCustomer,
		Content: "reply", Hints: channel.ConversationHints{EmailThreadID: "thread-7"},
	}
	found, err := f.engine.FindOrCreateForMessage(ctx, reply, "cust-1", sla.TierFree)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, found.ID)
}

func TestEngine_FindOrCreateForMessage_ResolvedWithinWindowReused(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{}, nil)
	ctx := context.Background()

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID: "cust-1", Channel: channel.KindEmail, SLATier: sla.TierFree})
	require.NoError(t, err)
	_, err = f.engine.ChangeState(ctx, conv.ID, StateResolved, "done")
	require.NoError(t, err)

	f.clock.Add(3 * time.Hour)
	msg := inbound("m1", "hello again")
	found, err := f.engine.FindOrCreateForMessage(ctx, msg, "cust-1", sla.TierFree)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, found.ID)
}

func TestEngine_FindOrCreateForMessage_StaleResolvedGetsNewConversation(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{}, nil)
	ctx := context.Background()

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID: "cust-1", Channel: channel.KindEmail, SLATier: sla.TierFree})
	require.NoError(t, err)
	_, err = f.engine.ChangeState(ctx, conv.ID, StateResolved, "done")
	require.NoError(t, err)

	f.clock.Add(25 * time.Hour)
	found, err := f.engine.FindOrCreateForMessage(ctx, inbound("m1", "new issue"), "cust-1", sla.TierFree)
	require.NoError(t, err)
	assert.NotEqual(t, conv.ID, found.ID)
	assert.Equal(t, string(StateOpen), found.State)
}

func TestEngine_HandleRoutingAssigned_AttachesAgent(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{}, nil)
	ctx := context.Background()
	f.engine.Start()

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID: "cust-1", Channel: channel.KindEmail, SLATier: sla.TierPremium})
	require.NoError(t, err)
	_, err = f.engine.Escalate(ctx, conv.ID, "needs a human")
	require.NoError(t, err)

	assigned := collectEvents(f.bus, bus.EventConversationAssigned)
	_, err = f.bus.Publish(ctx, bus.EventRoutingAssigned, &bus.AssignedPayload{
		ConversationID: conv.ID,
		AgentID:        "agent-9",
	}, bus.PublishOptions{})
	require.NoError(t, err)
	waitEvent(t, assigned)

	stored, err := f.store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "agent-9", stored.AssignedAgentID)
	assert.Equal(t, string(StateAwaitingAgent), stored.State)
}

func TestEngine_HandoffBrief_IncludesContext(t *testing.T) {
	f := newFixture(t, config.ConversationConfig{}, nil)
	ctx := context.Background()

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID: "cust-1", Channel: channel.KindChat, SLATier: sla.TierPremium})
	require.NoError(t, err)
	_, err = f.engine.AddMessage(ctx, conv.ID, inbound("m1", "my invoice is wrong"))
	require.NoError(t, err)

	brief, err := f.engine.HandoffBrief(ctx, conv.ID)
	require.NoError(t, err)
	assert.Contains(t, brief, conv.ID)
	assert.Contains(t, brief, "cust-1")
	assert.Contains(t, brief, "premium")
	assert.Contains(t, brief, "my invoice is wrong")
}

// stubGatekeeper returns a fixed result and counts deflections.
type stubGatekeeper struct {
	result   classifier.Result
	attempts int
}

func (s *stubGatekeeper) Classify(ctx context.Context, content string, convCtx classifier.Context) classifier.Result {
	return s.result
}

func (s *stubGatekeeper) RecordDeflection(conversationID string, successful bool) int {
	s.attempts++
	return s.attempts
}

func TestEngine_AutoClassify_EscalatesOnRecommendation(t *testing.T) {
	gate := &stubGatekeeper{result: classifier.Result{
		Intent:                classifier.IntentTransactionFailure,
		IntentConfidence:      0.8,
		Severity:              classifier.SeverityP1,
		Sentiment:             classifier.SentimentNegative,
		SuggestedAction:       classifier.ActionEscalate,
		EscalationRecommended: true,
	}}
	f := newFixture(t, config.ConversationConfig{AutoClassify: true}, gate)
	ctx := context.Background()
	done := collectEvents(f.bus, bus.EventClassificationDone)
	escalated := collectEvents(f.bus, bus.EventConversationEscalated)

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID: "cust-1", Channel: channel.KindChat, SLATier: sla.TierStandard})
	require.NoError(t, err)
	_, err = f.engine.AddMessage(ctx, conv.ID, inbound("m1", "my payment failed"))
	require.NoError(t, err)

	p, err := bus.DecodePayload[bus.ClassificationPayload](waitEvent(t, done))
	require.NoError(t, err)
	assert.Equal(t, "transaction_system_failure", p.Intent)

	ep, err := bus.DecodePayload[bus.EscalatedPayload](waitEvent(t, escalated))
	require.NoError(t, err)
	assert.Equal(t, conv.ID, ep.ConversationID)
	assert.Equal(t, "P1", ep.Severity)
	assert.Equal(t, []string{"billing"}, ep.RequiredSkills)
}

func TestEngine_AutoClassify_DeflectionSendsResponse(t *testing.T) {
	gate := &stubGatekeeper{result: classifier.Result{
		Intent:            classifier.IntentHowTo,
		IntentConfidence:  0.7,
		Severity:          classifier.SeverityP3,
		Sentiment:         classifier.SentimentNeutral,
		SuggestedAction:   classifier.ActionDeflect,
		SuggestedResponse: "Here is how to export your data.",
	}}
	f := newFixture(t, config.ConversationConfig{AutoClassify: true}, gate)
	ctx := context.Background()
	deflected := collectEvents(f.bus, bus.EventDeflectionAttempted)

	conv, err := f.engine.Create(ctx, CreateRequest{
		CustomerID: "cust-1", Channel: channel.KindChat, SLATier: sla.TierFree})
	require.NoError(t, err)
	_, err = f.engine.AddMessage(ctx, conv.ID, inbound("m1", "how do I export my data?"))
	require.NoError(t, err)

	p, err := bus.DecodePayload[bus.DeflectionPayload](waitEvent(t, deflected))
	require.NoError(t, err)
	assert.Equal(t, 1, p.AttemptCount)
	assert.True(t, p.Successful)

	sent := f.chat.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Here is how to export your data.", sent[0].Content)

	stored, err := f.store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.DeflectionAttempts)
	assert.True(t, stored.DeflectionSuccessful)
}
