package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyShortCircuits(t *testing.T) {
	c := NewClassifier(nil)
	ctx := context.Background()

	tests := []struct {
		name       string
		text       string
		intent     Intent
		confidence float64
	}{
		{"urgent keyword", "This is URGENT, respond now", Escalation, 0.9},
		{"manager request", "I want to talk to a manager about this", Escalation, 0.9},
		{"speak to a manager", "I want to speak to a manager now", Escalation, 0.9},
		{"supervisor request", "let me speak to the supervisor please", Escalation, 0.9},
		{"unhappy customer", "I am very unhappy with you", Escalation, 0.9},
		{"broken product", "The dashboard is broken again", Complaint, 0.85},
		{"bad service", "This is terrible, worst experience ever", Complaint, 0.85},
		{"frustrated", "I'm so frustrated with this tool", Complaint, 0.85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(ctx, tt.text)
			assert.Equal(t, tt.intent, got.Intent)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-9)
		})
	}
}

func TestClassifyEscalationBeatsComplaint(t *testing.T) {
	c := NewClassifier(nil)
	// Matches both escalation and complaint patterns; escalation is checked first.
	got := c.Classify(context.Background(), "urgent problem with my account")
	assert.Equal(t, Escalation, got.Intent)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
}

func TestClassifyScoredCategories(t *testing.T) {
	c := NewClassifier(nil)
	ctx := context.Background()

	tests := []struct {
		name       string
		text       string
		intent     Intent
		confidence float64
	}{
		{"single support hit", "Can you help with onboarding?", Support, 0.85},
		{"two support hits", "How do I fix the webhook setup?", Support, 0.95},
		{"sales inquiry", "Is there a promo code?", Sales, 0.85},
		{"sales two hits", "What does the premium package cost?", Sales, 0.95},
		{"faq question", "What are your business hours?", FAQ, 0.95},
		{"feedback", "Thanks, the new release is great", Feedback, 0.95},
		{"no match", "xyzzy", General, 0.5},
		{"empty", "", General, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(ctx, tt.text)
			assert.Equal(t, tt.intent, got.Intent)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-9)
		})
	}
}

func TestClassifyConfidenceCapped(t *testing.T) {
	c := NewClassifier(nil)
	// Hits all four support patterns: 0.75 + 0.4 would exceed the cap.
	got := c.Classify(context.Background(), "help, how do I fix this, I'm confused and can't resolve it")
	assert.Equal(t, Support, got.Intent)
	assert.InDelta(t, 0.95, got.Confidence, 1e-9)
}

func TestClassifyDeterministicTieBreak(t *testing.T) {
	c := NewClassifier(nil)
	// One support hit and one sales hit; support is evaluated first.
	first := c.Classify(context.Background(), "help me order")
	for i := 0; i < 50; i++ {
		got := c.Classify(context.Background(), "help me order")
		assert.Equal(t, first.Intent, got.Intent)
	}
	assert.Equal(t, Support, first.Intent)
}

func TestShouldEscalate(t *testing.T) {
	assert.True(t, ShouldEscalate(Escalation, 0.9))
	assert.True(t, ShouldEscalate(Complaint, 0.85))
	assert.False(t, ShouldEscalate(Escalation, 0.8))
	assert.False(t, ShouldEscalate(Support, 0.95))
}

func TestRequiresHumanAttention(t *testing.T) {
	assert.True(t, RequiresHumanAttention(Escalation, 1))
	assert.True(t, RequiresHumanAttention(Complaint, 1))
	assert.False(t, RequiresHumanAttention(Support, 3))
	assert.True(t, RequiresHumanAttention(Support, 4))
	assert.False(t, RequiresHumanAttention(FAQ, 10))
}
