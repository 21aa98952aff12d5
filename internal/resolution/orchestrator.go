// ABOUTME: Resolution orchestrator: creation, audited updates, resolve and reopen flows
// ABOUTME: Swarm and customer messaging degrade gracefully; storage failures are fatal

package resolution

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/2389/deskflow/internal/bus"
	"github.com/2389/deskflow/internal/channel"
	"github.com/2389/deskflow/internal/config"
	"github.com/2389/deskflow/internal/llm"
	"github.com/2389/deskflow/internal/store"
	"github.com/2389/deskflow/internal/swarm"
)

// recurrenceWindow is how long after resolution a reopen counts as a
// recurrence of the original incident.
const recurrenceWindow = 7 * 24 * time.Hour

// Update record visibility.
const (
	VisibilityInternal = "internal"
	VisibilityCustomer = "customer"
)

// Update record types.
const (
	UpdateStatusChange    = "status_change"
	UpdateOwnerChange     = "owner_change"
	UpdateEtaChange       = "eta_change"
	UpdateRootCause       = "root_cause"
	UpdateFixDescription  = "fix_description"
	UpdateNote            = "note"
	UpdateCustomerMessage = "customer_message"
)

// ResolutionStore defines what the orchestrator needs from storage.
type ResolutionStore interface {
	CreateResolution(ctx context.Context, res *store.Resolution) error
	GetResolution(ctx context.Context, id string) (*store.Resolution, error)
	UpdateResolution(ctx context.Context, res *store.Resolution) error
	GetResolutionByConversation(ctx context.Context, conversationID string) (*store.Resolution, error)
	SaveResolutionUpdate(ctx context.Context, upd *store.ResolutionUpdate) error
	ListResolutionUpdates(ctx context.Context, resolutionID string) ([]*store.ResolutionUpdate, error)
	CreateSwarmRecord(ctx context.Context, rec *store.SwarmRecord) error
	UpdateSwarmRecord(ctx context.Context, rec *store.SwarmRecord) error
	GetSwarmByResolution(ctx context.Context, resolutionID string) (*store.SwarmRecord, error)
	SaveResolutionArchive(ctx context.Context, arc *store.ResolutionArchive) error
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	UpdateConversation(ctx context.Context, conv *store.Conversation) error
}

// Orchestrator owns resolution aggregates and their timers.
type Orchestrator struct {
	cfg           config.ResolutionConfig
	store         ResolutionStore
	bus           bus.Bus
	swarm         swarm.Service
	channels      *channel.Registry
	completer     llm.Completer
	notifyChannel string
	clock         clock.Clock
	logger        *slog.Logger

	timerMu       sync.Mutex
	updateTimers  map[string]*clock.Timer
	silenceTimers map[string]*clock.Timer
}

// NewOrchestrator creates a resolution orchestrator. swarm, channels and
// completer may each be nil; clk may be nil for wall-clock time.
func NewOrchestrator(cfg config.ResolutionConfig, st ResolutionStore, b bus.Bus, sw swarm.Service, channels *channel.Registry, completer llm.Completer, notifyChannel string, clk clock.Clock, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Orchestrator{
		cfg:           cfg,
		store:         st,
		bus:           b,
		swarm:         sw,
		channels:      channels,
		completer:     completer,
		notifyChannel: notifyChannel,
		clock:         clk,
		logger:        logger.With("component", "resolution"),
		updateTimers:  make(map[string]*clock.Timer),
		silenceTimers: make(map[string]*clock.Timer),
	}
}

// Stop cancels every live timer.
func (o *Orchestrator) Stop() {
	o.timerMu.Lock()
	defer o.timerMu.Unlock()
	for id, t := range o.updateTimers {
		t.Stop()
		delete(o.updateTimers, id)
	}
	for id, t := range o.silenceTimers {
		t.Stop()
		delete(o.silenceTimers, id)
	}
}

// CreateRequest describes a new resolution.
type CreateRequest struct {
	ConversationID string
	IssueType      string
	OwningTeam     string
	OwnerID        string
	Priority       string
	InitialNote    string
}

// Create makes a resolution in INVESTIGATING, computes its ETA from the
// per-priority default table, links it to the conversation, optionally
// opens a swarm channel and acknowledges the customer, and arms both
// timers.
func (o *Orchestrator) Create(ctx context.Context, req CreateRequest) (*store.Resolution, error) {
	if req.ConversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	if req.Priority == "" {
		req.Priority = "P2"
	}

	now := o.clock.Now()
	etaHours, ok := o.cfg.DefaultEtaHours[req.Priority]
	if !ok {
		etaHours = 72
	}
	eta := now.Add(time.Duration(etaHours) * time.Hour)

	res := &store.Resolution{
		ID:                   uuid.New().String(),
		ConversationID:       req.ConversationID,
		IssueType:            req.IssueType,
		OwningTeam:           req.OwningTeam,
		OwnerID:              req.OwnerID,
		Status:               string(StatusInvestigating),
		Priority:             req.Priority,
		EtaWindowHours:       etaHours,
		ExpectedResolutionAt: &eta,
		SLAStartedAt:         now,
		LastInternalUpdateAt: &now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := o.store.CreateResolution(ctx, res); err != nil {
		return nil, fmt.Errorf("creating resolution: %w", err)
	}

	if conv, err := o.store.GetConversation(ctx, req.ConversationID); err == nil {
		conv.ResolutionID = res.ID
		conv.UpdatedAt = now
		if err := o.store.UpdateConversation(ctx, conv); err != nil {
			o.logger.Warn("linking resolution to conversation failed",
				"resolution_id", res.ID, "error", err)
		}
	} else {
		o.logger.Warn("conversation lookup failed during resolution create",
			"conversation_id", req.ConversationID, "error", err)
	}

	if req.InitialNote != "" {
		o.record(ctx, res.ID, UpdateNote, req.InitialNote, VisibilityInternal, req.OwnerID, "api")
	}

	if o.cfg.OpenSwarm {
		o.openSwarm(ctx, res)
	}
	if o.cfg.AcknowledgeCustomer {
		ack := fmt.Sprintf(
			"We are on it. Your issue has been escalated to our %s team and we expect a resolution by %s. We will keep you updated.",
			res.OwningTeam, eta.Format(time.RFC1123))
		o.sendCustomerMessage(ctx, res, ack)
		if err := o.store.UpdateResolution(ctx, res); err != nil {
			o.logger.Warn("persisting acknowledgement timestamp failed",
				"resolution_id", res.ID, "error", err)
		}
	}

	o.armUpdateTimer(res.ID)
	o.armSilenceTimer(res.ID)

	o.logger.Info("resolution created",
		"resolution_id", res.ID,
		"conversation_id", res.ConversationID,
		"priority", res.Priority,
		"eta_hours", etaHours)
	o.publish(ctx, bus.EventResolutionCreated, res)
	return res, nil
}

// UpdateRequest carries the mutable fields of an update. Nil or empty
// fields are left unchanged.
type UpdateRequest struct {
	Status         *Status
	OwnerID        *string
	EtaWindowHours *int
	RootCause      *string
	FixDescription *string
	Note           string
	AuthorID       string
	AuthorSource   string
}

// Update validates any status transition, applies the changed fields, and
// records one append-only update per field that changed. Reaching
// RESOLVED triggers the resolve flow.
func (o *Orchestrator) Update(ctx context.Context, resolutionID string, req UpdateRequest) (*store.Resolution, error) {
	res, err := o.store.GetResolution(ctx, resolutionID)
	if err != nil {
		return nil, err
	}

	if req.Status != nil {
		if err := checkTransition(Status(res.Status), *req.Status); err != nil {
			return nil, err
		}
	}

	now := o.clock.Now()
	author, source := req.AuthorID, req.AuthorSource
	if source == "" {
		source = "api"
	}

	if req.OwnerID != nil && *req.OwnerID != res.OwnerID {
		o.record(ctx, res.ID, UpdateOwnerChange,
			fmt.Sprintf("owner: %s -> %s", res.OwnerID, *req.OwnerID), VisibilityInternal, author, source)
		res.OwnerID = *req.OwnerID
	}
	if req.EtaWindowHours != nil && *req.EtaWindowHours != res.EtaWindowHours {
		eta := res.SLAStartedAt.Add(time.Duration(*req.EtaWindowHours) * time.Hour)
		o.record(ctx, res.ID, UpdateEtaChange,
			fmt.Sprintf("eta: %dh -> %dh", res.EtaWindowHours, *req.EtaWindowHours), VisibilityInternal, author, source)
		res.EtaWindowHours = *req.EtaWindowHours
		res.ExpectedResolutionAt = &eta
	}
	if req.RootCause != nil && *req.RootCause != res.RootCause {
		o.record(ctx, res.ID, UpdateRootCause, *req.RootCause, VisibilityInternal, author, source)
		res.RootCause = *req.RootCause
	}
	if req.FixDescription != nil && *req.FixDescription != res.FixDescription {
		o.record(ctx, res.ID, UpdateFixDescription, *req.FixDescription, VisibilityInternal, author, source)
		res.FixDescription = *req.FixDescription
	}
	if req.Note != "" {
		o.record(ctx, res.ID, UpdateNote, req.Note, VisibilityInternal, author, source)
	}

	statusChanged := false
	if req.Status != nil && string(*req.Status) != res.Status {
		o.record(ctx, res.ID, UpdateStatusChange,
			fmt.Sprintf("status: %s -> %s", res.Status, *req.Status), VisibilityInternal, author, source)
		res.Status = string(*req.Status)
		statusChanged = true
	}

	res.LastInternalUpdateAt = &now
	res.UpdatedAt = now

	if statusChanged && Status(res.Status) == StatusResolved {
		return o.resolve(ctx, res)
	}

	if err := o.store.UpdateResolution(ctx, res); err != nil {
		return nil, fmt.Errorf("updating resolution: %w", err)
	}

	if Status(res.Status).Terminal() {
		o.cancelTimers(res.ID)
	} else {
		// Any internal update resets the silence window.
		o.armSilenceTimer(res.ID)
	}

	o.publish(ctx, bus.EventResolutionUpdated, res)
	return res, nil
}

// AddNote appends one audit record without touching the aggregate fields.
// Internal notes reset the silence monitor.
func (o *Orchestrator) AddNote(ctx context.Context, resolutionID, content, visibility, authorID string) error {
	res, err := o.store.GetResolution(ctx, resolutionID)
	if err != nil {
		return err
	}
	if visibility != VisibilityCustomer {
		visibility = VisibilityInternal
	}
	o.record(ctx, res.ID, UpdateNote, content, visibility, authorID, "api")

	now := o.clock.Now()
	if visibility == VisibilityInternal {
		res.LastInternalUpdateAt = &now
		if !Status(res.Status).Terminal() {
			o.armSilenceTimer(res.ID)
		}
	} else {
		res.LastCustomerUpdateAt = &now
	}
	res.UpdatedAt = now
	return o.store.UpdateResolution(ctx, res)
}

// Get returns one resolution.
func (o *Orchestrator) Get(ctx context.Context, resolutionID string) (*store.Resolution, error) {
	return o.store.GetResolution(ctx, resolutionID)
}

// Reopen handles a complaint about an already-resolved issue. Within the
// recurrence window a new linked resolution is created with escalated
// priority so the original audit trail stays intact; after the window the
// original is moved back to INVESTIGATING in place.
func (o *Orchestrator) Reopen(ctx context.Context, resolutionID, reason string) (*store.Resolution, error) {
	orig, err := o.store.GetResolution(ctx, resolutionID)
	if err != nil {
		return nil, err
	}
	if Status(orig.Status) != StatusResolved || orig.ResolvedAt == nil {
		return nil, fmt.Errorf("resolution %s is not resolved, cannot reopen", resolutionID)
	}

	now := o.clock.Now()
	if now.Sub(*orig.ResolvedAt) <= recurrenceWindow {
		return o.reopenAsRecurrence(ctx, orig, reason, now)
	}

	// Late reopen: the incident is old enough to be a fresh investigation
	// of the same record.
	o.record(ctx, orig.ID, UpdateStatusChange,
		fmt.Sprintf("status: %s -> %s (reopened: %s)", orig.Status, StatusInvestigating, reason),
		VisibilityInternal, "", "system")
	orig.Status = string(StatusInvestigating)
	orig.ResolvedAt = nil
	orig.LastInternalUpdateAt = &now
	orig.UpdatedAt = now
	if err := o.store.UpdateResolution(ctx, orig); err != nil {
		return nil, fmt.Errorf("reopening resolution: %w", err)
	}

	o.armUpdateTimer(orig.ID)
	o.armSilenceTimer(orig.ID)
	o.logger.Info("resolution reopened in place", "resolution_id", orig.ID)
	o.publish(ctx, bus.EventResolutionUpdated, orig)
	return orig, nil
}

// reopenAsRecurrence creates the new linked resolution and bumps the
// original's recurrence counter.
func (o *Orchestrator) reopenAsRecurrence(ctx context.Context, orig *store.Resolution, reason string, now time.Time) (*store.Resolution, error) {
	priority := escalatePriority(orig.Priority)
	etaHours, ok := o.cfg.DefaultEtaHours[priority]
	if !ok {
		etaHours = 72
	}
	eta := now.Add(time.Duration(etaHours) * time.Hour)

	recurrence := &store.Resolution{
		ID:                   uuid.New().String(),
		ConversationID:       orig.ConversationID,
		IssueType:            orig.IssueType,
		OwningTeam:           orig.OwningTeam,
		Status:               string(StatusInvestigating),
		Priority:             priority,
		EtaWindowHours:       etaHours,
		ExpectedResolutionAt: &eta,
		SLAStartedAt:         now,
		IsRecurrence:         true,
		ParentResolutionID:   orig.ID,
		LastInternalUpdateAt: &now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := o.store.CreateResolution(ctx, recurrence); err != nil {
		return nil, fmt.Errorf("creating recurrence resolution: %w", err)
	}

	orig.RecurrenceCount++
	orig.UpdatedAt = now
	if err := o.store.UpdateResolution(ctx, orig); err != nil {
		return nil, fmt.Errorf("updating original resolution: %w", err)
	}

	o.record(ctx, recurrence.ID, UpdateNote,
		fmt.Sprintf("recurrence of %s: %s", orig.ID, reason), VisibilityInternal, "", "system")

	if conv, err := o.store.GetConversation(ctx, orig.ConversationID); err == nil {
		conv.ResolutionID = recurrence.ID
		conv.UpdatedAt = now
		if err := o.store.UpdateConversation(ctx, conv); err != nil {
			o.logger.Warn("relinking conversation to recurrence failed",
				"resolution_id", recurrence.ID, "error", err)
		}
	}

	o.armUpdateTimer(recurrence.ID)
	o.armSilenceTimer(recurrence.ID)

	o.logger.Warn("resolution recurred",
		"original_id", orig.ID,
		"recurrence_id", recurrence.ID,
		"priority", priority,
		"recurrence_count", orig.RecurrenceCount)
	o.publish(ctx, bus.EventResolutionCreated, recurrence)
	return recurrence, nil
}

// resolve runs the terminal flow: summary, customer notification, swarm
// archive, timer cancellation, and the learning archive.
func (o *Orchestrator) resolve(ctx context.Context, res *store.Resolution) (*store.Resolution, error) {
	now := o.clock.Now()
	res.ResolvedAt = &now

	summary := o.summarize(ctx, res)
	o.sendCustomerMessage(ctx, res, summary)

	if err := o.store.UpdateResolution(ctx, res); err != nil {
		return nil, fmt.Errorf("updating resolution: %w", err)
	}

	o.closeSwarm(ctx, res)
	o.cancelTimers(res.ID)
	o.archive(ctx, res)

	o.logger.Info("resolution resolved",
		"resolution_id", res.ID,
		"conversation_id", res.ConversationID)
	o.publish(ctx, bus.EventResolutionResolved, res)
	return res, nil
}

// summarize produces the customer-facing resolution summary, preferring
// the text completer and falling back to a template.
func (o *Orchestrator) summarize(ctx context.Context, res *store.Resolution) string {
	fallback := resolvedTemplate(res)
	if o.completer == nil {
		return fallback
	}

	prompt := fmt.Sprintf(
		"Issue type: %s\nRoot cause: %s\nFix: %s\n\nWrite a short, friendly message telling the customer their issue is resolved.",
		res.IssueType, res.RootCause, res.FixDescription)
	reply, err := o.completer.Complete(ctx,
		"You write concise customer support updates. No internal jargon.", prompt)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			o.logger.Warn("summary generation failed, using template",
				"resolution_id", res.ID, "error", err)
		}
		return fallback
	}
	return reply
}

func resolvedTemplate(res *store.Resolution) string {
	var b strings.Builder
	b.WriteString("Good news: your issue has been resolved.")
	if res.FixDescription != "" {
		fmt.Fprintf(&b, " What we did: %s.", res.FixDescription)
	}
	b.WriteString(" Reply to this message if anything still looks wrong.")
	return b.String()
}

// openSwarm creates the collaboration channel and its tracking record.
// Failures are logged; the resolution proceeds without a swarm.
func (o *Orchestrator) openSwarm(ctx context.Context, res *store.Resolution) {
	if o.swarm == nil {
		return
	}
	name := "res-" + shortID(res.ID)
	topic := fmt.Sprintf("%s %s for conversation %s", res.Priority, res.IssueType, res.ConversationID)
	channelID, err := o.swarm.CreateChannel(ctx, name, topic)
	if err != nil {
		o.logger.Warn("opening swarm channel failed", "resolution_id", res.ID, "error", err)
		return
	}

	rec := &store.SwarmRecord{
		ID:           uuid.New().String(),
		ResolutionID: res.ID,
		ChannelID:    channelID,
		Status:       "open",
		CreatedAt:    o.clock.Now(),
	}
	if err := o.store.CreateSwarmRecord(ctx, rec); err != nil {
		o.logger.Warn("recording swarm channel failed", "resolution_id", res.ID, "error", err)
	}

	kickoff := fmt.Sprintf("Swarm for resolution %s (%s, %s). ETA window: %dh.",
		res.ID, res.IssueType, res.Priority, res.EtaWindowHours)
	if err := o.swarm.PostMessage(ctx, channelID, kickoff); err != nil {
		o.logger.Warn("posting swarm kickoff failed", "resolution_id", res.ID, "error", err)
	}
}

// closeSwarm archives the collaboration channel if one was opened.
func (o *Orchestrator) closeSwarm(ctx context.Context, res *store.Resolution) {
	rec, err := o.store.GetSwarmByResolution(ctx, res.ID)
	if err != nil {
		if err != store.ErrNotFound {
			o.logger.Warn("swarm record lookup failed", "resolution_id", res.ID, "error", err)
		}
		return
	}
	if rec.Status == "archived" {
		return
	}

	if o.swarm != nil {
		if err := o.swarm.ArchiveChannel(ctx, rec.ChannelID); err != nil {
			o.logger.Warn("archiving swarm channel failed",
				"resolution_id", res.ID, "channel_id", rec.ChannelID, "error", err)
		}
	}
	now := o.clock.Now()
	rec.Status = "archived"
	rec.ArchivedAt = &now
	if err := o.store.UpdateSwarmRecord(ctx, rec); err != nil {
		o.logger.Warn("updating swarm record failed", "resolution_id", res.ID, "error", err)
	}
}

// archive writes the structured snapshot kept for offline learning.
func (o *Orchestrator) archive(ctx context.Context, res *store.Resolution) {
	updates, err := o.store.ListResolutionUpdates(ctx, res.ID)
	if err != nil {
		o.logger.Warn("listing updates for archive failed", "resolution_id", res.ID, "error", err)
	}

	snapshot := struct {
		Resolution *store.Resolution         `json:"resolution"`
		Updates    []*store.ResolutionUpdate `json:"updates"`
	}{res, updates}
	data, err := json.Marshal(snapshot)
	if err != nil {
		o.logger.Warn("encoding archive failed", "resolution_id", res.ID, "error", err)
		return
	}

	arc := &store.ResolutionArchive{
		ID:           uuid.New().String(),
		ResolutionID: res.ID,
		Data:         data,
		CreatedAt:    o.clock.Now(),
	}
	if err := o.store.SaveResolutionArchive(ctx, arc); err != nil {
		o.logger.Warn("saving archive failed", "resolution_id", res.ID, "error", err)
	}
}

// sendCustomerMessage delivers text on the conversation's current channel
// and records a customer-visible update. The caller persists the
// timestamp change.
func (o *Orchestrator) sendCustomerMessage(ctx context.Context, res *store.Resolution, text string) {
	conv, err := o.store.GetConversation(ctx, res.ConversationID)
	if err != nil {
		o.logger.Warn("conversation lookup failed for customer message",
			"resolution_id", res.ID, "error", err)
		return
	}

	if o.channels != nil {
		if _, err := o.channels.Send(ctx, channel.Kind(conv.CurrentChannel), channel.OutboundMessage{
			Content:     text,
			ContentType: "text/plain",
			RecipientID: conv.CustomerID,
		}); err != nil {
			o.logger.Warn("customer message delivery failed",
				"resolution_id", res.ID, "channel", conv.CurrentChannel, "error", err)
		}
	}

	o.record(ctx, res.ID, UpdateCustomerMessage, text, VisibilityCustomer, "", "system")
	now := o.clock.Now()
	res.LastCustomerUpdateAt = &now
}

// record appends one audit row. Append-only; failures are logged since an
// audit miss must not abort the mutation that caused it.
func (o *Orchestrator) record(ctx context.Context, resolutionID, updateType, content, visibility, authorID, authorSource string) {
	upd := &store.ResolutionUpdate{
		ID:           uuid.New().String(),
		ResolutionID: resolutionID,
		UpdateType:   updateType,
		Content:      content,
		Visibility:   visibility,
		AuthorID:     authorID,
		AuthorSource: authorSource,
		CreatedAt:    o.clock.Now(),
	}
	if err := o.store.SaveResolutionUpdate(ctx, upd); err != nil {
		o.logger.Error("saving resolution update failed",
			"resolution_id", resolutionID, "type", updateType, "error", err)
	}
}

// publish emits one resolution lifecycle event.
func (o *Orchestrator) publish(ctx context.Context, t bus.EventType, res *store.Resolution) {
	if _, err := o.bus.Publish(ctx, t, &bus.ResolutionPayload{
		ResolutionID:   res.ID,
		ConversationID: res.ConversationID,
		Status:         res.Status,
		Priority:       res.Priority,
	}, bus.PublishOptions{CorrelationID: res.ConversationID}); err != nil {
		o.logger.Warn("publishing event failed", "type", t, "error", err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
