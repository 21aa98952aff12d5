// ABOUTME: Routing engine: bounded queue admission, agent assignment, sweeps
// ABOUTME: Consumes conversation.escalated, emits routing.queued/assigned/escalated

package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"

	"github.com/2389/deskflow/internal/bus"
	"github.com/2389/deskflow/internal/config"
)

// ErrQueueFull indicates the routing queue is at capacity. The caller
// keeps the conversation in its current state and retries later.
var ErrQueueFull = errors.New("routing queue full")

// ErrAlreadyQueued indicates the conversation is already waiting.
var ErrAlreadyQueued = errors.New("conversation already queued")

// Engine owns the waiting queue and the agent registry.
type Engine struct {
	cfg    config.RoutingConfig
	bus    bus.Bus
	agents *agentRegistry
	clock  clock.Clock
	logger *slog.Logger
	cron   *cron.Cron

	mu      sync.Mutex
	queue   []*QueueItem
	byAgent map[string]string // conversationID -> agentID
	cursors map[string]int    // round-robin cursor per team

	unsubscribes []func()
}

// NewEngine creates a routing engine. clk may be nil for wall-clock time.
func NewEngine(cfg config.RoutingConfig, b bus.Bus, clk clock.Clock, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{
		cfg:     cfg,
		bus:     b,
		agents:  newAgentRegistry(logger.With("component", "routing")),
		clock:   clk,
		logger:  logger.With("component", "routing"),
		byAgent: make(map[string]string),
		cursors: make(map[string]int),
	}
}

// Start subscribes to escalation and lifecycle events and schedules the
// assignment and escalation sweeps.
func (e *Engine) Start(ctx context.Context) error {
	e.unsubscribes = append(e.unsubscribes,
		e.bus.Subscribe(bus.EventConversationEscalated, "routing-admit", e.handleEscalated),
		e.bus.Subscribe(bus.EventConversationState, "routing-release", e.handleStateChanged),
	)

	e.cron = cron.New()
	if _, err := e.cron.AddFunc(e.cfg.AssignmentSweepSchedule, func() {
		e.RunAssignmentSweep(context.Background())
	}); err != nil {
		return fmt.Errorf("scheduling assignment sweep: %w", err)
	}
	if _, err := e.cron.AddFunc(e.cfg.EscalationSweepSchedule, func() {
		e.RunEscalationSweep(context.Background())
	}); err != nil {
		return fmt.Errorf("scheduling escalation sweep: %w", err)
	}
	e.cron.Start()

	e.logger.Info("routing engine started",
		"strategy", e.cfg.Strategy,
		"max_queue_size", e.cfg.MaxQueueSize)
	return nil
}

// Stop cancels the sweeps and unsubscribes from the bus.
func (e *Engine) Stop() {
	if e.cron != nil {
		e.cron.Stop()
	}
	for _, unsub := range e.unsubscribes {
		unsub()
	}
	e.unsubscribes = nil
}

// RegisterAgent adds or replaces an agent.
func (e *Engine) RegisterAgent(agent *Agent) {
	e.agents.upsert(agent)
}

// SetAgentStatus updates an agent's availability.
func (e *Engine) SetAgentStatus(agentID string, status AgentStatus) error {
	return e.agents.setStatus(agentID, status)
}

// Agents returns a snapshot of all registered agents.
func (e *Engine) Agents() []*Agent {
	return e.agents.snapshot()
}

// Agent returns a copy of one agent.
func (e *Engine) Agent(agentID string) (*Agent, bool) {
	return e.agents.get(agentID)
}

// handleEscalated admits an escalated conversation into the queue.
func (e *Engine) handleEscalated(ctx context.Context, evt *bus.Event) error {
	p, err := bus.DecodePayload[bus.EscalatedPayload](evt)
	if err != nil {
		return err
	}

	err = e.Enqueue(ctx, &QueueItem{
		ConversationID:  p.ConversationID,
		Severity:        p.Severity,
		Sentiment:       p.Sentiment,
		SLATier:         p.SLATier,
		RequiredSkills:  p.RequiredSkills,
		PreferredTeamID: p.PreferredTeamID,
		SLADueAt:        p.FirstResponseDueAt,
	})
	if errors.Is(err, ErrAlreadyQueued) {
		return nil
	}
	return err
}

// handleStateChanged releases the assigned agent's capacity slot when a
// conversation reaches a resting state.
func (e *Engine) handleStateChanged(ctx context.Context, evt *bus.Event) error {
	p, err := bus.DecodePayload[bus.StateChangedPayload](evt)
	if err != nil {
		return err
	}
	if p.To != "RESOLVED" {
		return nil
	}

	e.mu.Lock()
	agentID, assigned := e.byAgent[p.ConversationID]
	delete(e.byAgent, p.ConversationID)
	e.removeLocked(p.ConversationID)
	e.mu.Unlock()

	if assigned {
		if err := e.agents.release(agentID); err != nil {
			e.logger.Warn("releasing agent capacity failed",
				"agent_id", agentID, "error", err)
		}
	}
	return nil
}

// Enqueue admits one conversation into the waiting queue, scores it, and
// immediately attempts assignment.
func (e *Engine) Enqueue(ctx context.Context, item *QueueItem) error {
	e.mu.Lock()
	for _, existing := range e.queue {
		if existing.ConversationID == item.ConversationID {
			e.mu.Unlock()
			return ErrAlreadyQueued
		}
	}
	if e.cfg.MaxQueueSize > 0 && len(e.queue) >= e.cfg.MaxQueueSize {
		e.mu.Unlock()
		e.logger.Error("routing queue full, rejecting conversation",
			"conversation_id", item.ConversationID,
			"queue_depth", e.cfg.MaxQueueSize)
		return ErrQueueFull
	}

	now := e.clock.Now()
	item.QueuedAt = now
	item.UrgencyScore = urgencyScore(item, now)
	e.queue = append(e.queue, item)
	depth := len(e.queue)
	e.mu.Unlock()

	e.logger.Info("conversation queued",
		"conversation_id", item.ConversationID,
		"urgency_score", item.UrgencyScore,
		"queue_depth", depth)

	if _, err := e.bus.Publish(ctx, bus.EventRoutingQueued, &bus.QueuedPayload{
		ConversationID: item.ConversationID,
		UrgencyScore:   item.UrgencyScore,
		QueueDepth:     depth,
	}, bus.PublishOptions{CorrelationID: item.ConversationID}); err != nil {
		e.logger.Warn("publishing routing.queued failed", "error", err)
	}

	e.RunAssignmentSweep(ctx)
	return nil
}

// QueueDepth returns the number of waiting conversations.
func (e *Engine) QueueDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// QueueSnapshot returns copies of the waiting items in urgency order.
func (e *Engine) QueueSnapshot() []*QueueItem {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*QueueItem, 0, len(e.queue))
	for _, item := range e.queue {
		cp := *item
		out = append(out, &cp)
	}
	sortByUrgency(out)
	return out
}

// RunAssignmentSweep re-scores every waiting item and assigns as many as
// agent capacity allows, highest urgency first.
func (e *Engine) RunAssignmentSweep(ctx context.Context) {
	now := e.clock.Now()

	e.mu.Lock()
	for _, item := range e.queue {
		item.UrgencyScore = urgencyScore(item, now)
	}
	candidates := make([]*QueueItem, len(e.queue))
	copy(candidates, e.queue)
	sortByUrgency(candidates)
	e.mu.Unlock()

	for _, item := range candidates {
		e.tryAssign(ctx, item)
	}
}

// tryAssign selects and reserves one agent for the item. Reservation can
// race with another sweep; losing the race leaves the item queued.
func (e *Engine) tryAssign(ctx context.Context, item *QueueItem) bool {
	eligible := e.agents.eligible(item, e.cfg.SkillMatching)
	if len(eligible) == 0 {
		return false
	}

	var selected *Agent
	e.mu.Lock()
	switch e.cfg.Strategy {
	case StrategyRoundRobin:
		selected = selectRoundRobin(eligible, e.cursors, item.PreferredTeamID)
	case StrategyLeastBusy:
		selected = selectLeastBusy(eligible)
	default:
		selected = selectSkillBased(eligible, item.RequiredSkills)
	}
	e.mu.Unlock()
	if selected == nil {
		return false
	}

	if err := e.agents.reserve(selected.ID); err != nil {
		return false
	}

	e.mu.Lock()
	if !e.removeLocked(item.ConversationID) {
		// Another sweep assigned it first; give the slot back.
		e.mu.Unlock()
		e.agents.release(selected.ID)
		return false
	}
	e.byAgent[item.ConversationID] = selected.ID
	e.mu.Unlock()

	e.logger.Info("conversation assigned",
		"conversation_id", item.ConversationID,
		"agent_id", selected.ID,
		"urgency_score", item.UrgencyScore)

	if _, err := e.bus.Publish(ctx, bus.EventRoutingAssigned, &bus.AssignedPayload{
		ConversationID: item.ConversationID,
		AgentID:        selected.ID,
	}, bus.PublishOptions{CorrelationID: item.ConversationID}); err != nil {
		e.logger.Warn("publishing routing.assigned failed", "error", err)
	}
	return true
}

// RunEscalationSweep emits an advisory routing.escalated event for every
// item whose wait exceeds the escalation window. The window widens with
// each escalation level so one slow item does not fire every sweep.
func (e *Engine) RunEscalationSweep(ctx context.Context) {
	now := e.clock.Now()
	window := time.Duration(e.cfg.EscalationTimeoutMinutes) * time.Minute

	type breach struct {
		conversationID string
		level          int
		waited         time.Duration
	}
	var breaches []breach

	e.mu.Lock()
	for _, item := range e.queue {
		since := item.QueuedAt
		if !item.LastEscalatedAt.IsZero() {
			since = item.LastEscalatedAt
		}
		if now.Sub(since) < window*time.Duration(item.EscalationLevel+1) {
			continue
		}
		item.EscalationLevel++
		item.LastEscalatedAt = now
		breaches = append(breaches, breach{
			conversationID: item.ConversationID,
			level:          item.EscalationLevel,
			waited:         now.Sub(item.QueuedAt),
		})
	}
	e.mu.Unlock()

	for _, b := range breaches {
		e.logger.Warn("queue wait exceeded escalation window",
			"conversation_id", b.conversationID,
			"escalation_level", b.level,
			"waited", b.waited)
		if _, err := e.bus.Publish(ctx, bus.EventRoutingEscalated, &bus.RoutingEscalatedPayload{
			ConversationID:  b.conversationID,
			EscalationLevel: b.level,
			WaitedMinutes:   b.waited.Minutes(),
		}, bus.PublishOptions{CorrelationID: b.conversationID}); err != nil {
			e.logger.Warn("publishing routing.escalated failed", "error", err)
		}
	}
}

// removeLocked deletes one item from the queue. Caller holds e.mu.
func (e *Engine) removeLocked(conversationID string) bool {
	for i, item := range e.queue {
		if item.ConversationID == conversationID {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			return true
		}
	}
	return false
}
