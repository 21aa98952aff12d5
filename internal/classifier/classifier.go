// ABOUTME: Classification gatekeeper combining five deterministic analyses
// ABOUTME: Intent, severity, sentiment, entities, and a strict action precedence

package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/2389/deskflow/internal/knowledge"
	"github.com/2389/deskflow/internal/llm"
)

// Intent is the closed classification taxonomy.
type Intent string

const (
	IntentHowTo              Intent = "how_to"
	IntentAccountAccess      Intent = "account_access"
	IntentTransactionFailure Intent = "transaction_system_failure"
	IntentTechnicalDefect    Intent = "technical_defect"
	IntentUrgent             Intent = "urgent_high_risk"
	IntentNoise              Intent = "noise"
	IntentUnknown            Intent = "unknown"
)

// Severity levels, P0 most severe.
type Severity string

const (
	SeverityP0 Severity = "P0"
	SeverityP1 Severity = "P1"
	SeverityP2 Severity = "P2"
	SeverityP3 Severity = "P3"
)

// Sentiment buckets with a numeric score in [-1, 1].
type Sentiment string

const (
	SentimentAngry    Sentiment = "angry"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentPositive Sentiment = "positive"
)

// Action is the gatekeeper's proposal for what to do with the message.
type Action string

const (
	ActionDeflect  Action = "deflect"
	ActionRoute    Action = "route"
	ActionEscalate Action = "escalate"
	ActionResolve  Action = "resolve"
)

// Result is the full classification of one inbound message.
type Result struct {
	Intent             Intent
	IntentConfidence   float64
	Severity           Severity
	SeverityConfidence float64
	Sentiment          Sentiment
	SentimentScore     float64
	Entities           Entities
	SuggestedAction    Action
	SuggestedResponse  string
	SuggestedArticles  []knowledge.Article
	// EscalationRecommended is independent of SuggestedAction. It may be
	// true even when the action is deflect, and it can never block an
	// escalation requested through any other path.
	EscalationRecommended bool
	Reasoning             string
}

// Context is what the gatekeeper knows about the conversation.
type Context struct {
	ConversationID string
	MessageCount   int
	PriorIntent    Intent
}

// Config tunes the gatekeeper.
type Config struct {
	ConfidenceThreshold   float64
	MaxDeflectionAttempts int
	KnowledgeLimit        int
}

// Gatekeeper classifies inbound text. Construct with NewGatekeeper.
type Gatekeeper struct {
	cfg       Config
	kb        knowledge.Searcher
	completer llm.Completer
	logger    *slog.Logger

	mu          sync.Mutex
	deflections map[string]*deflectionState
}

// deflectionState is the per-conversation automated-response counter.
// The count is capped, never reset.
type deflectionState struct {
	attempts      int
	lastAttemptAt time.Time
	successful    bool
}

// NewGatekeeper creates a gatekeeper. kb may be nil (no deflection
// candidates); completer may be nil (template responses only).
func NewGatekeeper(cfg Config, kb knowledge.Searcher, completer llm.Completer, logger *slog.Logger) *Gatekeeper {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = 0.6
	}
	if cfg.MaxDeflectionAttempts == 0 {
		cfg.MaxDeflectionAttempts = 2
	}
	if cfg.KnowledgeLimit == 0 {
		cfg.KnowledgeLimit = 3
	}
	return &Gatekeeper{
		cfg:         cfg,
		kb:          kb,
		completer:   completer,
		logger:      logger.With("component", "classifier"),
		deflections: make(map[string]*deflectionState),
	}
}

// Failsafe is the result returned on any internal failure: route to a
// human, recommend escalation, claim no confidence.
func Failsafe(reason string) Result {
	return Result{
		Intent:                IntentUnknown,
		IntentConfidence:      0,
		Severity:              SeverityP2,
		SeverityConfidence:    0,
		Sentiment:             SentimentNeutral,
		SuggestedAction:       ActionRoute,
		EscalationRecommended: true,
		Reasoning:             "failsafe: " + reason,
	}
}

// Classify runs the full pipeline. It always returns a Result; internal
// failures (including panics) degrade to the failsafe.
func (g *Gatekeeper) Classify(ctx context.Context, content string, convCtx Context) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("classification panicked, using failsafe", "panic", r)
			result = Failsafe(fmt.Sprintf("panic: %v", r))
		}
	}()

	if strings.TrimSpace(content) == "" {
		return Failsafe("empty content")
	}

	lower := strings.ToLower(content)

	intent, intentConf := classifyIntent(lower)
	urgency := detectUrgency(content, lower)
	severity, sevConf := deriveSeverity(intent, urgency)
	sentiment, score := scoreSentiment(content, lower)
	entities := ExtractEntities(content)

	result = Result{
		Intent:             intent,
		IntentConfidence:   intentConf,
		Severity:           severity,
		SeverityConfidence: sevConf,
		Sentiment:          sentiment,
		SentimentScore:     score,
		Entities:           entities,
	}

	result.SuggestedAction, result.Reasoning = g.decideAction(&result, urgency, convCtx)
	result.EscalationRecommended = recommendEscalation(&result, urgency)

	if result.SuggestedAction == ActionDeflect {
		g.prepareDeflection(ctx, content, &result)
	}

	g.logger.Debug("message classified",
		"conversation_id", convCtx.ConversationID,
		"intent", result.Intent,
		"severity", result.Severity,
		"sentiment", result.Sentiment,
		"action", result.SuggestedAction)
	return result
}

// decideAction applies the strict precedence order. Deflection is only
// offered while the conversation's attempt counter is under the cap.
func (g *Gatekeeper) decideAction(r *Result, urgency urgencyLevel, convCtx Context) (Action, string) {
	switch {
	case r.IntentConfidence < g.cfg.ConfidenceThreshold:
		return ActionEscalate, fmt.Sprintf("confidence %.2f below threshold %.2f", r.IntentConfidence, g.cfg.ConfidenceThreshold)
	case r.Severity == SeverityP0:
		return ActionEscalate, "severity P0"
	case r.Sentiment == SentimentAngry:
		return ActionEscalate, "customer is angry"
	case urgency == urgencyCritical:
		return ActionEscalate, "critical urgency indicators in text"
	case r.Intent == IntentNoise && r.IntentConfidence >= 0.8:
		return ActionResolve, "high-confidence noise, auto-closing"
	case r.Intent == IntentHowTo && g.DeflectionAllowed(convCtx.ConversationID):
		return ActionDeflect, "how-to question with deflection attempts remaining"
	default:
		return ActionRoute, "routing to a human"
	}
}

// recommendEscalation sets the independent escalation signal.
func recommendEscalation(r *Result, urgency urgencyLevel) bool {
	return r.Severity == SeverityP0 ||
		r.Severity == SeverityP1 ||
		r.Sentiment == SentimentAngry ||
		urgency == urgencyCritical ||
		r.IntentConfidence == 0
}

// prepareDeflection attaches knowledge candidates and a suggested reply.
func (g *Gatekeeper) prepareDeflection(ctx context.Context, content string, r *Result) {
	if g.kb == nil {
		return
	}
	articles, err := g.kb.Search(ctx, content, g.cfg.KnowledgeLimit)
	if err != nil {
		g.logger.Warn("knowledge search failed", "error", err)
		return
	}
	r.SuggestedArticles = articles
	if len(articles) == 0 {
		return
	}

	r.SuggestedResponse = templateResponse(articles)
	if g.completer != nil {
		reply, err := g.completer.Complete(ctx,
			"You are a support assistant. Answer briefly using only the provided articles.",
			fmt.Sprintf("Question: %s\n\nArticles:\n%s", content, articleDigest(articles)))
		if err == nil && strings.TrimSpace(reply) != "" {
			r.SuggestedResponse = reply
		}
	}
}

// templateResponse is the deterministic fallback reply.
func templateResponse(articles []knowledge.Article) string {
	var b strings.Builder
	b.WriteString("These articles may answer your question:\n")
	for _, a := range articles {
		fmt.Fprintf(&b, "- %s\n", a.Title)
	}
	b.WriteString("If none of these help, reply and we will connect you with an agent.")
	return b.String()
}

// articleDigest flattens articles into prompt context.
func articleDigest(articles []knowledge.Article) string {
	var b strings.Builder
	for _, a := range articles {
		fmt.Fprintf(&b, "## %s\n%s\n\n", a.Title, a.Body)
	}
	return b.String()
}

// DeflectionAllowed reports whether the conversation may still receive an
// automated response.
func (g *Gatekeeper) DeflectionAllowed(conversationID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.deflections[conversationID]
	if !ok {
		return true
	}
	return st.attempts < g.cfg.MaxDeflectionAttempts
}

// RecordDeflection increments the conversation's attempt counter. The
// counter only goes up; exhaustion permanently disables deflection for
// the conversation.
func (g *Gatekeeper) RecordDeflection(conversationID string, successful bool) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.deflections[conversationID]
	if !ok {
		st = &deflectionState{}
		g.deflections[conversationID] = st
	}
	st.attempts++
	st.lastAttemptAt = time.Now()
	st.successful = successful
	return st.attempts
}

// DeflectionAttempts returns the conversation's attempt count.
func (g *Gatekeeper) DeflectionAttempts(conversationID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok := g.deflections[conversationID]; ok {
		return st.attempts
	}
	return 0
}
