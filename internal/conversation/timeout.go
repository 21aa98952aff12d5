// ABOUTME: Chat-timeout timers keyed by conversation id
// ABOUTME: On expiry the conversation moves to email continuation, never silence

package conversation

import (
	"context"
	"time"

	"github.com/2389/deskflow/internal/bus"
	"github.com/2389/deskflow/internal/channel"
)

// timeoutHandlerBudget bounds the work done by a fired timer.
const timeoutHandlerBudget = 10 * time.Second

// armChatTimeout starts (or restarts) the conversation's chat timer.
// Reset means cancel-then-restart; there is never more than one live
// timer per conversation id.
func (e *Engine) armChatTimeout(conversationID string) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()

	if t, ok := e.timers[conversationID]; ok {
		t.Stop()
	}
	e.timers[conversationID] = e.clock.AfterFunc(e.cfg.ChatTimeout, func() {
		e.handleChatTimeout(conversationID)
	})
}

// cancelChatTimeout stops the timer. An in-flight callback is not
// aborted; only future firings are prevented.
func (e *Engine) cancelChatTimeout(conversationID string) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()

	if t, ok := e.timers[conversationID]; ok {
		t.Stop()
		delete(e.timers, conversationID)
	}
}

// handleChatTimeout fires when a synchronous conversation has gone quiet.
// If the customer is reachable asynchronously, follow-up continues under
// the same conversation id on that channel; either way the conversation
// does not stay parked in a live-chat state.
func (e *Engine) handleChatTimeout(conversationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), timeoutHandlerBudget)
	defer cancel()

	e.timerMu.Lock()
	delete(e.timers, conversationID)
	e.timerMu.Unlock()

	conv, err := e.store.GetConversation(ctx, conversationID)
	if err != nil {
		e.logger.Warn("chat timeout fired for unavailable conversation",
			"conversation_id", conversationID, "error", err)
		return
	}
	// Resolved conversations are done; every other state still needs the
	// channel continuation, AWAITING_CUSTOMER included. A customer who went
	// quiet after the agent replied is the common dead-chat case.
	state := State(conv.State)
	if state == StateResolved {
		return
	}

	identity := channel.Identity{Email: conv.CustomerEmail, Phone: conv.CustomerPhone}
	if identity.HasAsync() && channel.Kind(conv.CurrentChannel) != channel.KindEmail {
		from := conv.CurrentChannel
		conv.CurrentChannel = string(channel.KindEmail)
		conv.ChannelsUsed = appendUnique(conv.ChannelsUsed, string(channel.KindEmail))

		e.logger.Info("chat timed out, continuing on email",
			"conversation_id", conv.ID,
			"from_channel", from,
			"identity", conv.CustomerEmail)
		e.publish(ctx, bus.EventChannelSwitched, &bus.ChannelSwitchedPayload{
			ConversationID: conv.ID,
			FromChannel:    from,
			ToChannel:      string(channel.KindEmail),
			Identity:       conv.CustomerEmail,
			Reason:         "chat timeout",
		}, conv.ID)
	} else {
		e.logger.Info("chat timed out", "conversation_id", conv.ID)
	}

	if CanTransition(state, StateAwaitingCustomer) {
		e.transition(ctx, conv, StateAwaitingCustomer, "chat timeout")
	}
	conv.UpdatedAt = e.clock.Now()
	if err := e.store.UpdateConversation(ctx, conv); err != nil {
		e.logger.Warn("persisting chat timeout failed",
			"conversation_id", conv.ID, "error", err)
	}
}
