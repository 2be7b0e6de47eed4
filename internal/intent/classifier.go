// Package intent classifies inbound customer messages and scores their
// routing priority. Classification is keyword driven so it stays cheap
// enough to run on every message before any model call.
package intent

import (
	"context"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

var tracer = otel.Tracer("support/intent-classifier")

// Intent is the coarse category assigned to a user message.
type Intent string

const (
	Escalation Intent = "ESCALATION"
	Complaint  Intent = "COMPLAINT"
	Support    Intent = "SUPPORT"
	Sales      Intent = "SALES"
	FAQ        Intent = "FAQ"
	Feedback   Intent = "FEEDBACK"
	General    Intent = "GENERAL"
)

// Classification is the outcome of classifying one message.
type Classification struct {
	Intent     Intent
	Confidence float64
}

// Classifier detects message intent from keyword patterns.
type Classifier struct {
	logger *logging.Logger
}

// NewClassifier creates a new intent classifier.
func NewClassifier(logger *logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{logger: logger}
}

var escalationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(urgent|emergency|immediately|asap|critical|help me now)\b`),
	regexp.MustCompile(`(?i)\b((talk|speak) to (a|an|the|my) (manager|supervisor|boss))\b`),
	regexp.MustCompile(`(?i)\b(not (satisfied|happy)|unsatisfied|unhappy)\b`),
}

var complaintPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(complaint|complain|issue|problem|broken|not working|doesn't work)\b`),
	regexp.MustCompile(`(?i)\b(terrible|awful|horrible|worst|bad (service|experience))\b`),
	regexp.MustCompile(`(?i)\b(disappointed|frustrat(ed|ing)|annoyed|angry)\b`),
}

// scoredIntents are evaluated in order so equal scores resolve the same
// way on every run.
var scoredIntents = []struct {
	intent   Intent
	patterns []*regexp.Regexp
}{
	{Support, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(help|support|assist|trouble|can't|cannot|unable to)\b`),
		regexp.MustCompile(`(?i)\b(how (do|can) i|how to)\b`),
		regexp.MustCompile(`(?i)\b(not sure|confused|don't understand)\b`),
		regexp.MustCompile(`(?i)\b(fix|solve|resolve)\b`),
	}},
	{Sales, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(buy|purchase|order|price|cost|pay|payment)\b`),
		regexp.MustCompile(`(?i)\b(discount|promo|offer|deal)\b`),
		regexp.MustCompile(`(?i)\b(available|in stock|shipping)\b`),
		regexp.MustCompile(`(?i)\b(product|service|package)\b`),
	}},
	{FAQ, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(what is|what are|tell me about|explain)\b`),
		regexp.MustCompile(`(?i)\b(hours|open|closed|location|address)\b`),
		regexp.MustCompile(`(?i)\b(when|where|who|why)\b`),
	}},
	{Feedback, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(feedback|suggestion|recommend|improve)\b`),
		regexp.MustCompile(`(?i)\b(like|love|great|excellent|amazing|good)\b`),
		regexp.MustCompile(`(?i)\b(thank|thanks|appreciate)\b`),
	}},
}

// Classify assigns an intent and confidence to a message. Escalation and
// complaint patterns short-circuit; the remaining categories are scored
// by pattern hit count.
func (c *Classifier) Classify(ctx context.Context, text string) Classification {
	_, span := tracer.Start(ctx, "intent.classify")
	defer span.End()

	normalized := strings.ToLower(strings.TrimSpace(text))

	for _, pattern := range escalationPatterns {
		if pattern.MatchString(normalized) {
			return c.finish(span, Classification{Intent: Escalation, Confidence: 0.9})
		}
	}
	for _, pattern := range complaintPatterns {
		if pattern.MatchString(normalized) {
			return c.finish(span, Classification{Intent: Complaint, Confidence: 0.85})
		}
	}

	top := General
	maxScore := 0
	for _, candidate := range scoredIntents {
		score := 0
		for _, pattern := range candidate.patterns {
			if pattern.MatchString(normalized) {
				score++
			}
		}
		if score > maxScore {
			maxScore = score
			top = candidate.intent
		}
	}

	confidence := 0.5
	if maxScore > 0 {
		confidence = 0.75 + float64(maxScore)*0.1
		if confidence > 0.95 {
			confidence = 0.95
		}
	}

	return c.finish(span, Classification{Intent: top, Confidence: confidence})
}

func (c *Classifier) finish(span spanSetter, result Classification) Classification {
	span.SetAttributes(
		attribute.String("intent.type", string(result.Intent)),
		attribute.Float64("intent.confidence", result.Confidence),
	)
	c.logger.Debug("intent classified",
		"intent", result.Intent,
		"confidence", result.Confidence,
	)
	return result
}

type spanSetter interface {
	SetAttributes(...attribute.KeyValue)
}

// ShouldEscalate reports whether the classification alone warrants an
// immediate handoff to a human.
func ShouldEscalate(intent Intent, confidence float64) bool {
	return (intent == Escalation || intent == Complaint) && confidence > 0.8
}

// RequiresHumanAttention reports whether the conversation needs a human,
// factoring in how long the user has been going back and forth.
func RequiresHumanAttention(intent Intent, messageCount int) bool {
	if intent == Escalation || intent == Complaint {
		return true
	}
	// Support issues that persist past a few messages.
	return intent == Support && messageCount > 3
}
