// ABOUTME: Tests for the classification gatekeeper
// ABOUTME: Covers the action precedence, failsafe, and the deflection cap

package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/deskflow/internal/knowledge"
)

func newTestGatekeeper(t *testing.T) *Gatekeeper {
	t.Helper()
	return NewGatekeeper(Config{
		ConfidenceThreshold:   0.6,
		MaxDeflectionAttempts: 2,
		KnowledgeLimit:        3,
	}, knowledge.NewStaticIndex(knowledge.DefaultArticles()), nil, nil)
}

func TestGatekeeper_Classify_PaymentFailureScenario(t *testing.T) {
	g := newTestGatekeeper(t)

	result := g.Classify(context.Background(),
		"my payment of $500 failed, error E123, I need this fixed now!!!",
		Context{ConversationID: "conv-1"})

	assert.Equal(t, IntentTransactionFailure, result.Intent)
	assert.Equal(t, SeverityP1, result.Severity)
	assert.NotEqual(t, SentimentPositive, result.Sentiment)
	assert.Equal(t, ActionEscalate, result.SuggestedAction)
	assert.True(t, result.EscalationRecommended)

	require.Len(t, result.Entities.Amounts, 1)
	assert.Equal(t, 500.0, result.Entities.Amounts[0].Value)
	assert.Equal(t, "USD", result.Entities.Amounts[0].Currency)
	assert.Contains(t, result.Entities.ErrorCodes, "E123")
}

func TestGatekeeper_Classify_EmptyContentIsFailsafe(t *testing.T) {
	g := newTestGatekeeper(t)

	result := g.Classify(context.Background(), "   ", Context{})

	assert.Equal(t, IntentUnknown, result.Intent)
	assert.Equal(t, 0.0, result.IntentConfidence)
	assert.Equal(t, ActionRoute, result.SuggestedAction)
	assert.True(t, result.EscalationRecommended)
}

func TestGatekeeper_Classify_UrgentIsP0Escalate(t *testing.T) {
	g := newTestGatekeeper(t)

	result := g.Classify(context.Background(),
		"production down, all users affected, this is an outage",
		Context{ConversationID: "conv-2"})

	assert.Equal(t, IntentUrgent, result.Intent)
	assert.Equal(t, SeverityP0, result.Severity)
	assert.Equal(t, ActionEscalate, result.SuggestedAction)
	assert.True(t, result.EscalationRecommended)
}

func TestGatekeeper_Classify_AngryCustomerEscalates(t *testing.T) {
	g := newTestGatekeeper(t)

	result := g.Classify(context.Background(),
		"this is unacceptable and ridiculous, the worst service, I am fed up and calling my lawyer",
		Context{ConversationID: "conv-3"})

	assert.Equal(t, SentimentAngry, result.Sentiment)
	assert.Equal(t, ActionEscalate, result.SuggestedAction)
	assert.True(t, result.EscalationRecommended)
}

func TestGatekeeper_Classify_NoiseAutoResolves(t *testing.T) {
	g := newTestGatekeeper(t)

	result := g.Classify(context.Background(), "ok thanks!", Context{ConversationID: "conv-4"})

	assert.Equal(t, IntentNoise, result.Intent)
	assert.Equal(t, ActionResolve, result.SuggestedAction)
}

func TestGatekeeper_Classify_HowToDeflectsWithArticles(t *testing.T) {
	g := newTestGatekeeper(t)

	result := g.Classify(context.Background(),
		"how can I invite teammates to my workspace?",
		Context{ConversationID: "conv-5"})

	assert.Equal(t, ActionDeflect, result.SuggestedAction)
	assert.NotEmpty(t, result.SuggestedArticles)
	assert.NotEmpty(t, result.SuggestedResponse)
}

func TestGatekeeper_Classify_DeflectionCapStopsDeflecting(t *testing.T) {
	g := newTestGatekeeper(t)
	const conv = "conv-6"
	content := "how do I export my data?"

	for i := 0; i < 2; i++ {
		result := g.Classify(context.Background(), content, Context{ConversationID: conv})
		require.Equal(t, ActionDeflect, result.SuggestedAction, "attempt %d", i+1)
		g.RecordDeflection(conv, false)
	}

	// Cap reached; deflection is never offered again for this conversation.
	result := g.Classify(context.Background(), content, Context{ConversationID: conv})
	assert.Equal(t, ActionRoute, result.SuggestedAction)
	assert.Equal(t, 2, g.DeflectionAttempts(conv))
	assert.False(t, g.DeflectionAllowed(conv))
}

func TestGatekeeper_Classify_UnknownIntentEscalatesOnLowConfidence(t *testing.T) {
	g := newTestGatekeeper(t)

	result := g.Classify(context.Background(),
		"qwerty asdf zxcv mumble jumble",
		Context{ConversationID: "conv-7"})

	assert.Equal(t, IntentUnknown, result.Intent)
	assert.Less(t, result.IntentConfidence, 0.6)
	assert.Equal(t, ActionEscalate, result.SuggestedAction)
}

func TestFailsafe_AlwaysRoutesToHuman(t *testing.T) {
	r := Failsafe("backend exploded")

	assert.Equal(t, ActionRoute, r.SuggestedAction)
	assert.True(t, r.EscalationRecommended)
	assert.Equal(t, 0.0, r.IntentConfidence)
	assert.Contains(t, r.Reasoning, "backend exploded")
}

func TestExtractEntities_Patterns(t *testing.T) {
	e := ExtractEntities("txn-ABC123 for order #98765 failed with E45 on account acct-777, " +
		"email me at jo@example.com or +1 (555) 123-4567, see https://status.example.com. " +
		"Charged €20.50 and 30 USD.")

	assert.Contains(t, e.TransactionIDs, "ABC123")
	assert.Contains(t, e.OrderIDs, "98765")
	assert.Contains(t, e.ErrorCodes, "E45")
	assert.Contains(t, e.AccountIDs, "777")
	assert.Contains(t, e.Emails, "jo@example.com")
	require.NotEmpty(t, e.Phones)
	assert.Contains(t, e.URLs, "https://status.example.com")

	require.Len(t, e.Amounts, 2)
	assert.Equal(t, Amount{Value: 20.5, Currency: "EUR"}, e.Amounts[0])
	assert.Equal(t, Amount{Value: 30, Currency: "USD"}, e.Amounts[1])
}

func TestScoreSentiment_Buckets(t *testing.T) {
	angry, score := scoreSentiment("THIS IS UNACCEPTABLE AND RIDICULOUS, ABSOLUTELY TERRIBLE", "this is unacceptable and ridiculous, absolutely terrible")
	assert.Equal(t, SentimentAngry, angry)
	assert.LessOrEqual(t, score, -0.6)

	positive, score := scoreSentiment("thanks, this is great and really helpful", "thanks, this is great and really helpful")
	assert.Equal(t, SentimentPositive, positive)
	assert.GreaterOrEqual(t, score, 0.3)

	neutral, _ := scoreSentiment("I changed my plan yesterday", "i changed my plan yesterday")
	assert.Equal(t, SentimentNeutral, neutral)
}
