// ABOUTME: Per-resolution timers: recurring proactive updates and the silence monitor
// ABOUTME: Silence is forbidden; the silence monitor sends a customer update even as it warns

package resolution

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/2389/deskflow/internal/bus"
)

// timerHandlerBudget bounds the work done by a fired timer.
const timerHandlerBudget = 30 * time.Second

// armUpdateTimer starts (or restarts) the recurring proactive-update
// timer. One live timer per resolution id.
func (o *Orchestrator) armUpdateTimer(resolutionID string) {
	o.armTimer(o.updateTimers, resolutionID, o.cfg.UpdateInterval, o.handleProactiveUpdate)
}

// armSilenceTimer starts (or restarts) the silence monitor. Called on
// every internal update: reset means cancel-then-restart.
func (o *Orchestrator) armSilenceTimer(resolutionID string) {
	o.armTimer(o.silenceTimers, resolutionID, o.cfg.SilenceThreshold, o.handleSilenceBreach)
}

func (o *Orchestrator) armTimer(timers map[string]*clock.Timer, resolutionID string, d time.Duration, fn func(string)) {
	o.timerMu.Lock()
	defer o.timerMu.Unlock()

	if t, ok := timers[resolutionID]; ok {
		t.Stop()
	}
	timers[resolutionID] = o.clock.AfterFunc(d, func() {
		fn(resolutionID)
	})
}

// cancelTimers stops both timers for a resolution. In-flight callbacks
// are not aborted; only future firings are prevented.
func (o *Orchestrator) cancelTimers(resolutionID string) {
	o.timerMu.Lock()
	defer o.timerMu.Unlock()

	if t, ok := o.updateTimers[resolutionID]; ok {
		t.Stop()
		delete(o.updateTimers, resolutionID)
	}
	if t, ok := o.silenceTimers[resolutionID]; ok {
		t.Stop()
		delete(o.silenceTimers, resolutionID)
	}
}

// hasTimers reports whether both timers are armed. Test hook.
func (o *Orchestrator) hasTimers(resolutionID string) (update, silence bool) {
	o.timerMu.Lock()
	defer o.timerMu.Unlock()
	_, update = o.updateTimers[resolutionID]
	_, silence = o.silenceTimers[resolutionID]
	return update, silence
}

// handleProactiveUpdate sends the customer a status message derived from
// the current state, then re-arms itself.
func (o *Orchestrator) handleProactiveUpdate(resolutionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), timerHandlerBudget)
	defer cancel()

	res, err := o.store.GetResolution(ctx, resolutionID)
	if err != nil {
		o.logger.Warn("proactive update fired for unavailable resolution",
			"resolution_id", resolutionID, "error", err)
		return
	}
	if Status(res.Status).Terminal() {
		o.cancelTimers(resolutionID)
		return
	}

	narrative, ok := statusNarrative[Status(res.Status)]
	if !ok {
		narrative = "Your issue is still being worked on."
	}
	if res.ExpectedResolutionAt != nil {
		narrative += " Expected resolution by " + res.ExpectedResolutionAt.Format(time.RFC1123) + "."
	}
	o.sendCustomerMessage(ctx, res, narrative)
	res.UpdatedAt = o.clock.Now()
	if err := o.store.UpdateResolution(ctx, res); err != nil {
		o.logger.Warn("persisting proactive update failed",
			"resolution_id", resolutionID, "error", err)
	}

	o.armUpdateTimer(resolutionID)
}

// handleSilenceBreach fires when no internal update arrived within the
// silence window. It warns, notifies the internal channel, and still
// sends the customer an update anyway before re-arming.
func (o *Orchestrator) handleSilenceBreach(resolutionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), timerHandlerBudget)
	defer cancel()

	res, err := o.store.GetResolution(ctx, resolutionID)
	if err != nil {
		o.logger.Warn("silence monitor fired for unavailable resolution",
			"resolution_id", resolutionID, "error", err)
		return
	}
	if Status(res.Status).Terminal() {
		o.cancelTimers(resolutionID)
		return
	}

	var lastUpdate time.Time
	if res.LastInternalUpdateAt != nil {
		lastUpdate = *res.LastInternalUpdateAt
	}
	o.logger.Warn("resolution silence threshold breached",
		"resolution_id", res.ID,
		"conversation_id", res.ConversationID,
		"last_internal_update", lastUpdate)

	if o.swarm != nil && o.notifyChannel != "" {
		msg := "Silence breach on resolution " + res.ID + " (" + res.Priority + "): no internal update within the window. Customer has been sent a holding update."
		if err := o.swarm.PostMessage(ctx, o.notifyChannel, msg); err != nil {
			o.logger.Warn("silence-breach notification failed",
				"resolution_id", res.ID, "error", err)
		}
	}

	if _, err := o.bus.Publish(ctx, bus.EventSilenceBreached, &bus.SilenceBreachedPayload{
		ResolutionID:   res.ID,
		ConversationID: res.ConversationID,
		LastUpdateAt:   lastUpdate,
	}, bus.PublishOptions{CorrelationID: res.ConversationID}); err != nil {
		o.logger.Warn("publishing silence breach failed", "resolution_id", res.ID, "error", err)
	}

	// The customer hears from us even when the internal team is quiet.
	narrative, ok := statusNarrative[Status(res.Status)]
	if !ok {
		narrative = "Your issue is still being worked on."
	}
	o.sendCustomerMessage(ctx, res, "We are still on your case. "+narrative)
	res.UpdatedAt = o.clock.Now()
	if err := o.store.UpdateResolution(ctx, res); err != nil {
		o.logger.Warn("persisting silence-breach update failed",
			"resolution_id", resolutionID, "error", err)
	}

	o.armSilenceTimer(resolutionID)
}
