// ABOUTME: Keyword heuristics for intent, urgency, severity, and sentiment
// ABOUTME: Deterministic scoring; no model involvement

package classifier

import (
	"strings"
)

// urgencyLevel grades the urgency indicators found in the text.
type urgencyLevel int

const (
	urgencyNone urgencyLevel = iota
	urgencyElevated
	urgencyCritical
)

var intentKeywords = map[Intent][]string{
	IntentHowTo: {
		"how do i", "how to", "how can i", "where do i", "where can i",
		"what is", "can you explain", "guide", "tutorial", "documentation",
	},
	IntentAccountAccess: {
		"login", "log in", "password", "locked out", "can't sign in",
		"cannot sign in", "2fa", "two-factor", "reset my", "account locked",
		"access my account",
	},
	IntentTransactionFailure: {
		"payment", "charge", "charged", "refund", "declined", "transaction",
		"billing", "invoice", "failed", "double charged", "money",
	},
	IntentTechnicalDefect: {
		"bug", "error", "crash", "broken", "doesn't work", "does not work",
		"not working", "500", "exception", "stack trace", "glitch",
	},
	IntentUrgent: {
		"production down", "outage", "data loss", "security breach",
		"hacked", "fraud", "unauthorized", "everything is down",
		"all users affected",
	},
	IntentNoise: {
		"thanks", "thank you", "ok", "okay", "got it", "test", "hello",
		"hi there", "never mind", "nevermind",
	},
}

var criticalUrgencyPhrases = []string{
	"right now", "immediately", "urgent", "asap", "emergency",
	"fixed now", "need this fixed", "critical", "losing money",
	"losing customers", "escalate",
}

var elevatedUrgencyPhrases = []string{
	"soon", "today", "quickly", "as soon as possible", "time sensitive",
	"deadline", "waiting for days",
}

var angryWords = []string{
	"furious", "unacceptable", "ridiculous", "terrible", "worst",
	"outraged", "disgusted", "fed up", "sick of", "useless", "scam",
	"lawyer", "sue",
}

var negativeWords = []string{
	"failed", "broken", "frustrated", "disappointed", "annoying", "bad",
	"wrong", "problem", "issue", "upset", "unhappy", "slow", "stuck",
}

var positiveWords = []string{
	"great", "thanks", "thank you", "awesome", "love", "perfect",
	"excellent", "helpful", "appreciate", "wonderful",
}

// classifyIntent scores the closed taxonomy against the lowercased text
// and returns the best intent with a confidence.
func classifyIntent(lower string) (Intent, float64) {
	best := IntentUnknown
	bestMatches := 0

	// Fixed iteration order so ties resolve deterministically: the most
	// operationally severe intent wins.
	order := []Intent{
		IntentUrgent,
		IntentTransactionFailure,
		IntentAccountAccess,
		IntentTechnicalDefect,
		IntentHowTo,
		IntentNoise,
	}
	for _, intent := range order {
		matches := 0
		for _, kw := range intentKeywords[intent] {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if matches > bestMatches {
			best = intent
			bestMatches = matches
		}
	}

	if best == IntentUnknown {
		return IntentUnknown, 0.3
	}

	conf := 0.5 + 0.15*float64(bestMatches)
	if conf > 0.95 {
		conf = 0.95
	}
	// Pure pleasantries in a short message are confidently noise
	if best == IntentNoise && len(lower) < 40 {
		conf = 0.9
	}
	return best, conf
}

// detectUrgency grades urgency indicators: critical phrases or a run of
// three exclamation marks outrank elevated phrases.
func detectUrgency(content, lower string) urgencyLevel {
	for _, p := range criticalUrgencyPhrases {
		if strings.Contains(lower, p) {
			return urgencyCritical
		}
	}
	if strings.Contains(content, "!!!") {
		return urgencyCritical
	}
	for _, p := range elevatedUrgencyPhrases {
		if strings.Contains(lower, p) {
			return urgencyElevated
		}
	}
	return urgencyNone
}

// deriveSeverity forces severity for certain intents, otherwise derives
// it from the urgency indicators.
func deriveSeverity(intent Intent, urgency urgencyLevel) (Severity, float64) {
	switch intent {
	case IntentUrgent:
		return SeverityP0, 0.9
	case IntentTransactionFailure:
		return SeverityP1, 0.85
	case IntentNoise:
		return SeverityP3, 0.9
	}

	switch urgency {
	case urgencyCritical:
		return SeverityP1, 0.7
	case urgencyElevated:
		return SeverityP2, 0.6
	default:
		return SeverityP3, 0.6
	}
}

// scoreSentiment produces a bucket and a score in [-1, 1].
func scoreSentiment(content, lower string) (Sentiment, float64) {
	score := 0.0
	for _, w := range angryWords {
		if strings.Contains(lower, w) {
			score -= 0.4
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			score -= 0.15
		}
	}
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			score += 0.25
		}
	}
	// Shouting counts against
	if strings.Contains(content, "!!!") {
		score -= 0.2
	}
	if isMostlyUpper(content) {
		score -= 0.2
	}

	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}

	switch {
	case score <= -0.6:
		return SentimentAngry, score
	case score <= -0.2:
		return SentimentNegative, score
	case score >= 0.3:
		return SentimentPositive, score
	default:
		return SentimentNeutral, score
	}
}

// isMostlyUpper reports whether the letters in s are predominantly
// uppercase. Short strings never qualify.
func isMostlyUpper(s string) bool {
	upper, letters := 0, 0
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			upper++
			letters++
		case r >= 'a' && r <= 'z':
			letters++
		}
	}
	return letters >= 12 && float64(upper) > 0.7*float64(letters)
}
