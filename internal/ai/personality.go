package ai

import "strings"

// Mode is one personality configuration: framing instructions plus
// per-mode sampling overrides.
type Mode struct {
	Name        string
	Prefix      string
	Suffix      string
	Style       string
	Temperature float32
	MaxTokens   int32
}

// Modes is the closed set of personality modes.
var Modes = map[string]Mode{
	"default": {
		Name:        "default",
		Prefix:      "As the founder of ShadowSpark Technologies, ",
		Suffix:      " Let me help you move forward.",
		Style:       "calm, confident, strategic, business-oriented, polite",
		Temperature: 0.65,
		MaxTokens:   280,
	},
	"confused": {
		Name:        "confused",
		Prefix:      "I understand this can seem complex at first — ",
		Suffix:      " Take your time, I'm here to clarify step by step.",
		Style:       "patient, explanatory, reassuring",
		Temperature: 0.75,
		MaxTokens:   300,
	},
	"enterprise": {
		Name:        "enterprise",
		Prefix:      "Understood. From a strategic enterprise perspective, ",
		Suffix:      " This aligns well with scalable, production-grade deployment.",
		Style:       "formal, precise, executive-level",
		Temperature: 0.5,
		MaxTokens:   280,
	},
	"sme": {
		Name:        "sme",
		Prefix:      "For a growing business like yours, ",
		Suffix:      " This setup is cost-effective and quick to implement.",
		Style:       "practical, value-driven, direct",
		Temperature: 0.6,
		MaxTokens:   280,
	},
	"sales": {
		Name:        "sales",
		Prefix:      "This is exactly the kind of challenge ShadowSpark solves for companies like yours. ",
		Suffix:      " Would you like a quick live demo or pricing overview?",
		Style:       "persuasive, opportunity-focused, subtle close",
		Temperature: 0.7,
		MaxTokens:   280,
	},
	"devops": {
		Name:        "devops",
		Prefix:      "From a DevOps and infrastructure standpoint, ",
		Suffix:      " Let's ensure this is production-ready, observable, and resilient.",
		Style:       "technical, systematic, infrastructure-focused, reliability-oriented",
		Temperature: 0.45,
		MaxTokens:   320,
	},
	"security": {
		Name:        "security",
		Prefix:      "From a security and hardening perspective, ",
		Suffix:      " Always validate inputs, enforce least privilege, and monitor for anomalies.",
		Style:       "precise, risk-aware, defense-in-depth oriented",
		Temperature: 0.4,
		MaxTokens:   300,
	},
	"growth": {
		Name:        "growth",
		Prefix:      "Looking at this through a SaaS growth and monetization lens, ",
		Suffix:      " Position this as a scalable revenue stream targeting both Nigerian and global markets.",
		Style:       "strategic, opportunity-driven, market-aware, monetization-focused",
		Temperature: 0.7,
		MaxTokens:   300,
	},
}

// PersonalityPolicy picks the personality mode for a message. The
// Generator takes it as a dependency so tenants can swap detection
// strategies without touching prompt assembly.
type PersonalityPolicy interface {
	ModeFor(message string) Mode
}

// KeywordPolicy is the stock policy: broad keyword matching with a
// fixed evaluation order, falling back to the default founder voice.
type KeywordPolicy struct{}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ModeFor detects the personality mode from the user's message.
func (KeywordPolicy) ModeFor(message string) Mode {
	lower := strings.ToLower(message)

	switch {
	case containsAny(lower, "confused", "not understand", "don't understand", "how does", "explain"):
		return Modes["confused"]
	case containsAny(lower, "enterprise", "company", "scale", "production"):
		return Modes["enterprise"]
	case containsAny(lower, "small", "startup", "affordable"):
		return Modes["sme"]
	case containsAny(lower, "price", "cost", "demo", "show me", "how much"):
		return Modes["sales"]
	case containsAny(lower, "security", "vulnerability", "rate limit", "auth token", "brute force"):
		return Modes["security"]
	case containsAny(lower, "deploy", "webhook", "pipeline", "ci/cd", "railway", "environment variable"):
		return Modes["devops"]
	case containsAny(lower, "monetize", "monetization", "revenue model", "saas pricing", "grow my"):
		return Modes["growth"]
	default:
		return Modes["default"]
	}
}

// FixedPolicy always returns one mode. Useful for tenants that want a
// single voice, and for tests.
type FixedPolicy struct {
	Mode Mode
}

func (p FixedPolicy) ModeFor(string) Mode { return p.Mode }
