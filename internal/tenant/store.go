// Package tenant holds per-client configuration and the usage guards
// that cap what each client can spend on the model.
package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultTokenCap applies when a client has no explicit monthly cap.
const DefaultTokenCap int64 = 100_000

// DefaultHandoffMessage is sent when a conversation escalates and the
// client has not configured its own wording.
const DefaultHandoffMessage = "Your request has been escalated to a human agent. " +
	"Someone from our team will reach you shortly. " +
	"Please hold on and do not send further messages — your conversation has been saved."

// DefaultSystemPrompt drives clients that have not supplied a prompt.
const DefaultSystemPrompt = `You are SHADOWSPARK OPERATIONS ENGINE — a senior-level AI technical strategist and infrastructure architect built by ShadowSpark Technologies, headquartered in Owerri, Imo State, Nigeria.

You operate simultaneously as:
- Senior DevOps Engineer
- Principal Backend Architect
- Twilio Solutions Architect
- AI Systems Engineer
- SaaS Growth Strategist
- Security Auditor
- GitHub Profile Optimizer
- Technical Documentation Specialist

Your mission is to help build, deploy, optimize, and scale ShadowSpark Technologies into a production-grade AI automation company.

Core Objectives:
- Ensure all systems are production-ready
- Eliminate architectural weaknesses
- Prioritize execution over theory
- Detect bottlenecks automatically
- Suggest improvements before being asked
- Always optimize for scalability and monetization

General Guidelines:
- Keep responses concise; standard replies under 300 words, technical/audit responses under 400 words
- Use naira (₦) for price references; be culturally aware of Nigerian business context
- Never sound robotic or overly casual — reason like a CTO
- If you don't know something, say so and offer to connect with a human agent
- For complaints, acknowledge, empathise, and offer a clear resolution path
- If a task can be executed fully without clarification, execute it
- If execution requires credentials or environment variables, request them explicitly`

// ClientConfig is one tenant's settings and usage counters.
type ClientConfig struct {
	ClientID          string
	SystemPrompt      string
	FallbackMessage   string
	MonthlyTokenUsage int64
	MonthlyTokenCap   int64
	LastResetMonth    string
	DailyCostUsage    float64
	DailyCostCap      float64
	MonthlyCostUsage  float64
	MonthlyCostCap    float64
	LastCostResetDate string
	UpdatedAt         time.Time
}

// Store reads and writes client configuration rows.
type Store struct {
	db *sql.DB
}

// NewStore creates a client config store.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// ErrNotFound is returned when a client has no configuration row.
var ErrNotFound = sql.ErrNoRows

// Get loads a client's configuration. prompt and fallback default when
// the row leaves them empty.
func (s *Store) Get(ctx context.Context, clientID string) (*ClientConfig, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("tenant: store not configured")
	}

	var cfg ClientConfig
	var prompt, fallback, resetMonth, resetDate sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT client_id, system_prompt, fallback_message,
		       monthly_token_usage, monthly_token_cap, last_reset_month,
		       daily_cost_usage, daily_cost_cap,
		       monthly_cost_usage, monthly_cost_cap, last_cost_reset_date,
		       updated_at
		FROM client_configs
		WHERE client_id = $1
	`, clientID).Scan(
		&cfg.ClientID, &prompt, &fallback,
		&cfg.MonthlyTokenUsage, &cfg.MonthlyTokenCap, &resetMonth,
		&cfg.DailyCostUsage, &cfg.DailyCostCap,
		&cfg.MonthlyCostUsage, &cfg.MonthlyCostCap, &resetDate,
		&cfg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tenant: get config: %w", err)
	}

	cfg.SystemPrompt = prompt.String
	cfg.FallbackMessage = fallback.String
	cfg.LastResetMonth = resetMonth.String
	cfg.LastCostResetDate = resetDate.String
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.FallbackMessage == "" {
		cfg.FallbackMessage = DefaultHandoffMessage
	}
	return &cfg, nil
}
