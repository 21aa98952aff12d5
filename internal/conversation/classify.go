// ABOUTME: Asynchronous classification of inbound customer messages
// ABOUTME: Failures are logged and swallowed, never returned to the ingest path

package conversation

import (
	"context"

	"github.com/2389/deskflow/internal/bus"
	"github.com/2389/deskflow/internal/channel"
	"github.com/2389/deskflow/internal/classifier"
	"github.com/2389/deskflow/internal/store"
)

// skillsForIntent maps a classified intent to the skills routing should
// match against.
var skillsForIntent = map[classifier.Intent][]string{
	classifier.IntentAccountAccess:      {"accounts"},
	classifier.IntentTransactionFailure: {"billing"},
	classifier.IntentTechnicalDefect:    {"engineering"},
	classifier.IntentUrgent:             {"engineering", "incident-response"},
}

// classifyAsync runs the gatekeeper on one inbound message and applies
// the outcome. It runs on its own goroutine with a bounded-time context;
// the message is already persisted, so every failure path here is safe
// to swallow.
func (e *Engine) classifyAsync(conv *store.Conversation, msg *store.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ClassifyTimeout)
	defer cancel()

	result := e.gate.Classify(ctx, msg.Content, classifier.Context{
		ConversationID: conv.ID,
		MessageCount:   conv.MessageCount,
		PriorIntent:    classifier.Intent(conv.Intent),
	})

	fresh, err := e.store.GetConversation(ctx, conv.ID)
	if err != nil {
		e.logger.Warn("classification result dropped, conversation unavailable",
			"conversation_id", conv.ID, "error", err)
		return
	}
	fresh.Intent = string(result.Intent)
	fresh.Severity = string(result.Severity)
	fresh.Sentiment = string(result.Sentiment)
	if skills, ok := skillsForIntent[result.Intent]; ok {
		fresh.RequiredSkills = skills
	}
	fresh.UpdatedAt = e.clock.Now()
	if err := e.store.UpdateConversation(ctx, fresh); err != nil {
		e.logger.Warn("persisting classification failed",
			"conversation_id", conv.ID, "error", err)
		return
	}

	e.publish(ctx, bus.EventClassificationDone, &bus.ClassificationPayload{
		ConversationID:  fresh.ID,
		MessageID:       msg.ID,
		Intent:          string(result.Intent),
		Severity:        string(result.Severity),
		Sentiment:       string(result.Sentiment),
		SuggestedAction: string(result.SuggestedAction),
		Confidence:      result.IntentConfidence,
	}, fresh.ID)

	switch result.SuggestedAction {
	case classifier.ActionEscalate:
		if _, err := e.Escalate(ctx, fresh.ID, result.Reasoning); err != nil {
			e.logger.Warn("auto-escalation failed", "conversation_id", fresh.ID, "error", err)
		}
	case classifier.ActionResolve:
		if _, err := e.ChangeState(ctx, fresh.ID, StateResolved, result.Reasoning); err != nil {
			e.logger.Warn("auto-resolve failed", "conversation_id", fresh.ID, "error", err)
		}
	case classifier.ActionDeflect:
		e.deflect(ctx, fresh, &result)
	}
}

// deflect sends the suggested automated response and bumps the attempt
// counter. The counter only moves forward.
func (e *Engine) deflect(ctx context.Context, conv *store.Conversation, result *classifier.Result) {
	if result.SuggestedResponse == "" {
		return
	}

	delivered := false
	if e.channels != nil {
		res, err := e.channels.Send(ctx, channel.Kind(conv.CurrentChannel), channel.OutboundMessage{
			Content:     result.SuggestedResponse,
			ContentType: "text/markdown",
			RecipientID: conv.CustomerID,
		})
		if err != nil {
			e.logger.Warn("deflection delivery failed",
				"conversation_id", conv.ID, "error", err)
		}
		delivered = err == nil && res.Success
	}

	attempts := e.gate.RecordDeflection(conv.ID, delivered)
	now := e.clock.Now()
	conv.DeflectionAttempts = attempts
	conv.LastDeflectionAt = &now
	conv.DeflectionSuccessful = delivered
	conv.UpdatedAt = now
	if err := e.store.UpdateConversation(ctx, conv); err != nil {
		e.logger.Warn("persisting deflection attempt failed",
			"conversation_id", conv.ID, "error", err)
	}

	e.publish(ctx, bus.EventDeflectionAttempted, &bus.DeflectionPayload{
		ConversationID: conv.ID,
		AttemptCount:   attempts,
		Successful:     delivered,
	}, conv.ID)
}
