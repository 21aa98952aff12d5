// ABOUTME: Tests for the resolution orchestrator
// ABOUTME: Covers creation, audited updates, timers, resolve, and reopen paths

package resolution

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/deskflow/internal/bus"
	"github.com/2389/deskflow/internal/channel"
	"github.com/2389/deskflow/internal/config"
	"github.com/2389/deskflow/internal/store"
)

// stubSwarm records swarm calls so tests can assert on them directly.
type stubSwarm struct {
	mu       sync.Mutex
	nextID   int
	created  []string
	topics   map[string]string
	posts    map[string][]string
	archived []string
}

func newStubSwarm() *stubSwarm {
	return &stubSwarm{topics: make(map[string]string), posts: make(map[string][]string)}
}

func (s *stubSwarm) CreateChannel(ctx context.Context, name, topic string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("chan-%d", s.nextID)
	s.created = append(s.created, name)
	s.topics[id] = topic
	return id, nil
}

func (s *stubSwarm) PostMessage(ctx context.Context, channelID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[channelID] = append(s.posts[channelID], text)
	return nil
}

func (s *stubSwarm) ArchiveChannel(ctx context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived = append(s.archived, channelID)
	return nil
}

func (s *stubSwarm) messages(channelID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.posts[channelID]...)
}

type orchFixture struct {
	orch  *Orchestrator
	store *store.MockStore
	bus   *bus.InProcBus
	clock *clock.Mock
	swarm *stubSwarm
	chat  *channel.SimulatedAdapter
}

func newOrchFixture(t *testing.T, cfg config.ResolutionConfig) *orchFixture {
	t.Helper()
	if cfg.DefaultEtaHours == nil {
		cfg.DefaultEtaHours = map[string]int{"P0": 4, "P1": 24, "P2": 72, "P3": 168}
	}
	if cfg.UpdateInterval == 0 {
		cfg.UpdateInterval = 4 * time.Hour
	}
	if cfg.SilenceThreshold == 0 {
		cfg.SilenceThreshold = 8 * time.Hour
	}

	st := store.NewMockStore()
	b := bus.NewInProcBus(3, time.Millisecond, 100, nil)
	t.Cleanup(func() { b.Close() })

	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	registry := channel.NewRegistry(nil)
	chat := channel.NewSimulatedAdapter(channel.KindChat, nil)
	registry.Register(chat)

	sw := newStubSwarm()
	o := NewOrchestrator(cfg, st, b, sw, registry, nil, "support-escalations", clk, nil)
	t.Cleanup(o.Stop)

	require.NoError(t, st.CreateConversation(context.Background(), &store.Conversation{
		ID:             "conv-1",
		CustomerID:     "cust-1",
		State:          "ESCALATED",
		CurrentChannel: "chat",
		CreatedAt:      clk.Now(),
		UpdatedAt:      clk.Now(),
	}))
	return &orchFixture{orch: o, store: st, bus: b, clock: clk, swarm: sw, chat: chat}
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

func statusPtr(s Status) *Status { return &s }
func strPtr(s string) *string    { return &s }

func TestOrchestrator_Create_EtaFromPriorityAndTimersArmed(t *testing.T) {
	f := newOrchFixture(t, config.ResolutionConfig{})
	ctx := context.Background()
	created := collectEvents(f.bus, bus.EventResolutionCreated)

	res, err := f.orch.Create(ctx, CreateRequest{
		ConversationID: "conv-1",
		IssueType:      "payment_failure",
		OwningTeam:     "billing",
		Priority:       "P0",
	})
	require.NoError(t, err)

	assert.Equal(t, string(StatusInvestigating), res.Status)
	assert.Equal(t, 4, res.EtaWindowHours)
	require.NotNil(t, res.ExpectedResolutionAt)
	assert.Equal(t, f.clock.Now().Add(4*time.Hour), *res.ExpectedResolutionAt)
	require.NotNil(t, res.LastInternalUpdateAt)

	update, silence := f.orch.hasTimers(res.ID)
	assert.True(t, update)
	assert.True(t, silence)

	conv, err := f.store.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, res.ID, conv.ResolutionID)

	p, err := bus.DecodePayload[bus.ResolutionPayload](waitEvent(t, created))
	require.NoError(t, err)
	assert.Equal(t, res.ID, p.ResolutionID)
	assert.Equal(t, "P0", p.Priority)
}

func TestOrchestrator_Create_OpensSwarmAndAcknowledgesCustomer(t *testing.T) {
	f := newOrchFixture(t, config.ResolutionConfig{
		OpenSwarm:           true,
		AcknowledgeCustomer: true,
	})
	ctx := context.Background()

	res, err := f.orch.Create(ctx, CreateRequest{
		ConversationID: "conv-1",
		IssueType:      "data_loss",
		OwningTeam:     "engineering",
		Priority:       "P1",
		InitialNote:    "customer reports missing rows",
	})
	require.NoError(t, err)

	// Swarm channel with kickoff message.
	require.Len(t, f.swarm.created, 1)
	assert.Equal(t, "res-"+res.ID[:8], f.swarm.created[0])
	kickoffs := f.swarm.messages("chan-1")
	require.Len(t, kickoffs, 1)
	assert.Contains(t, kickoffs[0], res.ID)

	rec, err := f.store.GetSwarmByResolution(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "chan-1", rec.ChannelID)
	assert.Equal(t, "open", rec.Status)

	// Customer got the acknowledgement on the conversation's channel.
	sent := f.chat.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Content, "We are on it")
	assert.Contains(t, sent[0].Content, "engineering")

	stored, err := f.store.GetResolution(ctx, res.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastCustomerUpdateAt)

	// Initial note and acknowledgement both landed in the audit trail.
	upds, err := f.store.ListResolutionUpdates(ctx, res.ID)
	require.NoError(t, err)
	types := make([]string, 0, len(upds))
	for _, u := range upds {
		types = append(types, u.UpdateType)
	}
	assert.Contains(t, types, UpdateNote)
	assert.Contains(t, types, UpdateCustomerMessage)
}

func TestOrchestrator_Update_OneAuditRecordPerChangedField(t *testing.T) {
	f := newOrchFixture(t, config.ResolutionConfig{})
	ctx := context.Background()

	res, err := f.orch.Create(ctx, CreateRequest{ConversationID: "conv-1", Priority: "P2"})
	require.NoError(t, err)

	res, err = f.orch.Update(ctx, res.ID, UpdateRequest{
		Status:    statusPtr(StatusFixInProgress),
		OwnerID:   strPtr("eng-7"),
		RootCause: strPtr("race in the billing worker"),
		Note:      "repro found",
		AuthorID:  "eng-7",
	})
	require.NoError(t, err)
	assert.Equal(t, string(StatusFixInProgress), res.Status)
	assert.Equal(t, "eng-7", res.OwnerID)

	upds, err := f.store.ListResolutionUpdates(ctx, res.ID)
	require.NoError(t, err)
	types := make(map[string]int)
	for _, u := range upds {
		types[u.UpdateType]++
	}
	assert.Equal(t, 1, types[UpdateOwnerChange])
	assert.Equal(t, 1, types[UpdateRootCause])
	assert.Equal(t, 1, types[UpdateNote])
	assert.Equal(t, 1, types[UpdateStatusChange])

	// Unchanged fields on a second update add no records.
	_, err = f.orch.Update(ctx, res.ID, UpdateRequest{OwnerID: strPtr("eng-7")})
	require.NoError(t, err)
	again, err := f.store.ListResolutionUpdates(ctx, res.ID)
	require.NoError(t, err)
	assert.Len(t, again, len(upds))
}

func TestOrchestrator_Update_InvalidTransitionRejected(t *testing.T) {
	f := newOrchFixture(t, config.ResolutionConfig{})
	ctx := context.Background()

	res, err := f.orch.Create(ctx, CreateRequest{ConversationID: "conv-1", Priority: "P2"})
	require.NoError(t, err)

	_, err = f.orch.Update(ctx, res.ID, UpdateRequest{Status: statusPtr(StatusDeployed)})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := f.store.GetResolution(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusInvestigating), stored.Status)
}

func TestOrchestrator_Update_ResolvedRunsResolveFlow(t *testing.T) {
	f := newOrchFixture(t, config.ResolutionConfig{OpenSwarm: true})
	ctx := context.Background()
	resolved := collectEvents(f.bus, bus.EventResolutionResolved)

	res, err := f.orch.Create(ctx, CreateRequest{ConversationID: "conv-1", Priority: "P1"})
	require.NoError(t, err)

	res, err = f.orch.Update(ctx, res.ID, UpdateRequest{
		Status:         statusPtr(StatusResolved),
		FixDescription: strPtr("reissued the failed charge"),
	})
	require.NoError(t, err)
	require.NotNil(t, res.ResolvedAt)

	// Customer is told, with the fix description folded in.
	sent := f.chat.Sent()
	require.NotEmpty(t, sent)
	last := sent[len(sent)-1]
	assert.Contains(t, last.Content, "resolved")
	assert.Contains(t, last.Content, "reissued the failed charge")

	// Swarm archived, timers gone, learning snapshot written.
	assert.Equal(t, []string{"chan-1"}, f.swarm.archived)
	rec, err := f.store.GetSwarmByResolution(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "archived", rec.Status)

	update, silence := f.orch.hasTimers(res.ID)
	assert.False(t, update)
	assert.False(t, silence)

	archives := f.store.Archives()
	require.Len(t, archives, 1)
	assert.Equal(t, res.ID, archives[0].ResolutionID)
	assert.Contains(t, string(archives[0].Data), res.ID)

	p, err := bus.DecodePayload[bus.ResolutionPayload](waitEvent(t, resolved))
	require.NoError(t, err)
	assert.Equal(t, string(StatusResolved), p.Status)

	// No more customer messages after the terminal state.
	before := len(f.chat.Sent())
	f.clock.Add(48 * time.Hour)
	assert.Len(t, f.chat.Sent(), before)
}

func TestOrchestrator_Update_WontFixCancelsTimersWithoutResolveFlow(t *testing.T) {
	f := newOrchFixture(t, config.ResolutionConfig{})
	ctx := context.Background()

	res, err := f.orch.Create(ctx, CreateRequest{ConversationID: "conv-1", Priority: "P3"})
	require.NoError(t, err)

	res, err = f.orch.Update(ctx, res.ID, UpdateRequest{Status: statusPtr(StatusWontFix)})
	require.NoError(t, err)
	assert.Nil(t, res.ResolvedAt)

	update, silence := f.orch.hasTimers(res.ID)
	assert.False(t, update)
	assert.False(t, silence)
	assert.Empty(t, f.store.Archives())
}

func TestOrchestrator_ProactiveUpdate_RecurringCustomerMessages(t *testing.T) {
	f := newOrchFixture(t, config.ResolutionConfig{
		UpdateInterval:   4 * time.Hour,
		SilenceThreshold: 1000 * time.Hour,
	})
	ctx := context.Background()

	res, err := f.orch.Create(ctx, CreateRequest{ConversationID: "conv-1", Priority: "P2"})
	require.NoError(t, err)

	f.clock.Add(4 * time.Hour)
	sent := f.chat.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Content, "actively investigating")
	assert.Contains(t, sent[0].Content, "Expected resolution by")

	// The timer re-arms itself.
	f.clock.Add(4 * time.Hour)
	assert.Len(t, f.chat.Sent(), 2)

	stored, err := f.store.GetResolution(ctx, res.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastCustomerUpdateAt)
}

func TestOrchestrator_SilenceBreach_WarnsAndStillUpdatesCustomer(t *testing.T) {
	f := newOrchFixture(t, config.ResolutionConfig{
		UpdateInterval:   1000 * time.Hour,
		SilenceThreshold: 8 * time.Hour,
	})
	ctx := context.Background()
	breached := collectEvents(f.bus, bus.EventSilenceBreached)

	res, err := f.orch.Create(ctx, CreateRequest{ConversationID: "conv-1", Priority: "P1"})
	require.NoError(t, err)

	f.clock.Add(8 * time.Hour)

	// Internal channel warned.
	warnings := f.swarm.messages("support-escalations")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], res.ID)

	p, err := bus.DecodePayload[bus.SilenceBreachedPayload](waitEvent(t, breached))
	require.NoError(t, err)
	assert.Equal(t, res.ID, p.ResolutionID)

	// The customer hears from us despite the internal silence.
	sent := f.chat.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Content, "We are still on your case.")

	// The monitor re-arms.
	f.clock.Add(8 * time.Hour)
	assert.Len(t, f.swarm.messages("support-escalations"), 2)
}

func TestOrchestrator_SilenceBreach_InternalUpdateResetsWindow(t *testing.T) {
	f := newOrchFixture(t, config.ResolutionConfig{
		UpdateInterval:   1000 * time.Hour,
		SilenceThreshold: 8 * time.Hour,
	})
	ctx := context.Background()

	res, err := f.orch.Create(ctx, CreateRequest{ConversationID: "conv-1", Priority: "P1"})
	require.NoError(t, err)

	f.clock.Add(5 * time.Hour)
	require.NoError(t, f.orch.AddNote(ctx, res.ID, "still digging", VisibilityInternal, "eng-1"))

	// Five more hours is within the reset window; no breach yet.
	f.clock.Add(5 * time.Hour)
	assert.Empty(t, f.swarm.messages("support-escalations"))

	f.clock.Add(3 * time.Hour)
	assert.Len(t, f.swarm.messages("support-escalations"), 1)
}

func TestOrchestrator_Reopen_WithinWindowCreatesEscalatedRecurrence(t *testing.T) {
	f := newOrchFixture(t, config.ResolutionConfig{})
	ctx := context.Background()

	orig, err := f.orch.Create(ctx, CreateRequest{
		ConversationID: "conv-1", IssueType: "payment_failure", OwningTeam: "billing", Priority: "P1"})
	require.NoError(t, err)
	_, err = f.orch.Update(ctx, orig.ID, UpdateRequest{Status: statusPtr(StatusResolved)})
	require.NoError(t, err)

	f.clock.Add(2 * 24 * time.Hour)
	recurrence, err := f.orch.Reopen(ctx, orig.ID, "charge failed again")
	require.NoError(t, err)

	assert.NotEqual(t, orig.ID, recurrence.ID)
	assert.True(t, recurrence.IsRecurrence)
	assert.Equal(t, orig.ID, recurrence.ParentResolutionID)
	assert.Equal(t, "P0", recurrence.Priority, "recurrence escalates one level")
	assert.Equal(t, string(StatusInvestigating), recurrence.Status)
	assert.Equal(t, "payment_failure", recurrence.IssueType)

	// The original keeps its audit trail and counts the recurrence.
	stored, err := f.store.GetResolution(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusResolved), stored.Status)
	assert.Equal(t, 1, stored.RecurrenceCount)

	conv, err := f.store.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, recurrence.ID, conv.ResolutionID)

	update, silence := f.orch.hasTimers(recurrence.ID)
	assert.True(t, update)
	assert.True(t, silence)
}

func TestOrchestrator_Reopen_AfterWindowReopensInPlace(t *testing.T) {
	f := newOrchFixture(t, config.ResolutionConfig{})
	ctx := context.Background()

	orig, err := f.orch.Create(ctx, CreateRequest{ConversationID: "conv-1", Priority: "P2"})
	require.NoError(t, err)
	_, err = f.orch.Update(ctx, orig.ID, UpdateRequest{Status: statusPtr(StatusResolved)})
	require.NoError(t, err)

	f.clock.Add(10 * 24 * time.Hour)
	reopened, err := f.orch.Reopen(ctx, orig.ID, "came back")
	require.NoError(t, err)

	assert.Equal(t, orig.ID, reopened.ID)
	assert.Equal(t, string(StatusInvestigating), reopened.Status)
	assert.Nil(t, reopened.ResolvedAt)
	assert.False(t, reopened.IsRecurrence)

	// No second aggregate exists for the conversation.
	newest, err := f.store.GetResolutionByConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, orig.ID, newest.ID)

	update, silence := f.orch.hasTimers(orig.ID)
	assert.True(t, update)
	assert.True(t, silence)
}

func TestOrchestrator_Reopen_NotResolvedFails(t *testing.T) {
	f := newOrchFixture(t, config.ResolutionConfig{})
	ctx := context.Background()

	res, err := f.orch.Create(ctx, CreateRequest{ConversationID: "conv-1", Priority: "P2"})
	require.NoError(t, err)

	_, err = f.orch.Reopen(ctx, res.ID, "nope")
	assert.Error(t, err)
}
