package tenant

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

// CostPerToken is the blended per-token price used for estimates,
// based on GPT-4o-mini input/output pricing.
const CostPerToken = 0.0000015

// DefaultExpectedOutputTokens pads estimates when the reply length is
// unknown.
const DefaultExpectedOutputTokens = 500

// systemPromptTokenOverhead is added to every context estimate.
const systemPromptTokenOverhead = 100

// CostEstimate is the projected spend of one model call.
type CostEstimate struct {
	EstimatedTokens int
	EstimatedCost   float64
	Model           string
}

// EstimateContextTokens roughly converts message history to tokens at
// four characters per token, plus system prompt overhead.
func EstimateContextTokens(contents []string) int {
	totalChars := 0
	for _, c := range contents {
		totalChars += len(c)
	}
	return int(math.Ceil(float64(totalChars)/4)) + systemPromptTokenOverhead
}

// EstimateCost projects the cost of a call from its context size.
func EstimateCost(contextTokens, expectedOutputTokens int) CostEstimate {
	if expectedOutputTokens <= 0 {
		expectedOutputTokens = DefaultExpectedOutputTokens
	}
	total := contextTokens + expectedOutputTokens
	return CostEstimate{
		EstimatedTokens: total,
		EstimatedCost:   float64(total) * CostPerToken,
		Model:           "gpt-4o-mini",
	}
}

// TokenStatus reports a client's monthly token budget.
type TokenStatus struct {
	Exceeded     bool
	CurrentUsage int64
	Cap          int64 // 0 means no cap configured
	Remaining    int64
}

// EffectiveCap is the cap the pipeline enforces: the configured cap, or
// DefaultTokenCap when none is set.
func (t TokenStatus) EffectiveCap() int64 {
	if t.Cap > 0 {
		return t.Cap
	}
	return DefaultTokenCap
}

// CostDecision is the outcome of a cost guard check.
type CostDecision struct {
	Allowed          bool
	Reason           string
	CurrentDailyCost float64
	DailyCostCap     float64
	CurrentMonthly   float64
	MonthlyCostCap   float64
	EstimatedCost    float64
}

// Guard enforces per-client token and cost budgets. Every check fails
// OPEN: a guard that cannot read its counters must not take the bot
// offline.
type Guard struct {
	db     *sql.DB
	logger *logging.Logger
	now    func() time.Time
}

// NewGuard creates a usage guard.
func NewGuard(db *sql.DB, logger *logging.Logger) *Guard {
	if logger == nil {
		logger = logging.Default()
	}
	return &Guard{db: db, logger: logger, now: time.Now}
}

func (g *Guard) currentDate() string  { return g.now().Format("2006-01-02") }
func (g *Guard) currentMonth() string { return g.now().Format("2006-01") }

// CheckTokenCap reports the client's monthly token usage, resetting the
// counter when the month has rolled over.
func (g *Guard) CheckTokenCap(ctx context.Context, clientID string) TokenStatus {
	var usage, cap int64
	var resetMonth sql.NullString
	err := g.db.QueryRowContext(ctx, `
		SELECT monthly_token_usage, monthly_token_cap, last_reset_month
		FROM client_configs
		WHERE client_id = $1
	`, clientID).Scan(&usage, &cap, &resetMonth)
	if err == sql.ErrNoRows {
		g.logger.Warn("client config not found for token cap check", "client_id", clientID)
		return TokenStatus{}
	}
	if err != nil {
		g.logger.Error("token cap check failed, allowing request", "client_id", clientID, "error", err)
		return TokenStatus{}
	}

	month := g.currentMonth()
	if resetMonth.String != month {
		g.logger.Info("resetting monthly token usage", "client_id", clientID, "month", month)
		if _, err := g.db.ExecContext(ctx, `
			UPDATE client_configs
			SET monthly_token_usage = 0, last_reset_month = $1
			WHERE client_id = $2
		`, month, clientID); err != nil {
			g.logger.Error("token usage reset failed", "client_id", clientID, "error", err)
		}
		usage = 0
	}

	status := TokenStatus{CurrentUsage: usage, Cap: cap}
	if cap > 0 {
		status.Exceeded = usage >= cap
		if remaining := cap - usage; remaining > 0 {
			status.Remaining = remaining
		}
		if status.Exceeded {
			g.logger.Warn("monthly token cap exceeded",
				"client_id", clientID, "usage", usage, "cap", cap)
		}
	}
	return status
}

// IncrementTokenUsage adds tokens to the client's monthly counter,
// applying the month rollover first. Failures are logged, not returned:
// usage tracking never blocks a reply that was already generated.
func (g *Guard) IncrementTokenUsage(ctx context.Context, clientID string, tokens int64) {
	if tokens < 0 {
		g.logger.Warn("ignoring negative token increment", "client_id", clientID, "tokens", tokens)
		tokens = 0
	}

	var usage int64
	var resetMonth sql.NullString
	err := g.db.QueryRowContext(ctx, `
		SELECT monthly_token_usage, last_reset_month
		FROM client_configs
		WHERE client_id = $1
	`, clientID).Scan(&usage, &resetMonth)
	if err != nil {
		g.logger.Error("token increment read failed", "client_id", clientID, "error", err)
		return
	}

	month := g.currentMonth()
	if resetMonth.String != month {
		usage = 0
	}
	newUsage := usage + tokens

	if _, err := g.db.ExecContext(ctx, `
		UPDATE client_configs
		SET monthly_token_usage = $1, last_reset_month = $2
		WHERE client_id = $3
	`, newUsage, month, clientID); err != nil {
		g.logger.Error("token increment write failed", "client_id", clientID, "error", err)
		return
	}

	g.logger.Info("token usage incremented",
		"client_id", clientID, "tokens", tokens, "total", newUsage)
}

// CheckCostGuard decides whether a call with the given estimated cost
// may proceed. The daily cap is checked before the monthly cap, and
// counters roll over lazily based on the stored reset date.
func (g *Guard) CheckCostGuard(ctx context.Context, clientID string, estimatedCost float64) CostDecision {
	var dailyUsage, dailyCap, monthlyUsage, monthlyCap float64
	var resetDate sql.NullString
	err := g.db.QueryRowContext(ctx, `
		SELECT daily_cost_usage, daily_cost_cap,
		       monthly_cost_usage, monthly_cost_cap, last_cost_reset_date
		FROM client_configs
		WHERE client_id = $1
	`, clientID).Scan(&dailyUsage, &dailyCap, &monthlyUsage, &monthlyCap, &resetDate)
	if err == sql.ErrNoRows {
		g.logger.Warn("client config not found for cost guard", "client_id", clientID)
		return CostDecision{Allowed: true}
	}
	if err != nil {
		g.logger.Error("cost guard check failed, allowing request", "client_id", clientID, "error", err)
		return CostDecision{Allowed: true}
	}

	date := g.currentDate()
	month := g.currentMonth()
	if resetDate.String != date {
		dailyUsage = 0
		if lastMonth(resetDate.String) != month {
			monthlyUsage = 0
		}
	}

	if dailyCap > 0 && dailyUsage+estimatedCost > dailyCap {
		g.logger.Warn("daily cost cap would be exceeded",
			"client_id", clientID,
			"daily_cost", dailyUsage,
			"daily_cap", dailyCap,
			"estimated_cost", estimatedCost)
		return CostDecision{
			Reason:           "Daily cost limit reached",
			CurrentDailyCost: dailyUsage,
			DailyCostCap:     dailyCap,
			EstimatedCost:    estimatedCost,
		}
	}

	if monthlyCap > 0 && monthlyUsage+estimatedCost > monthlyCap {
		g.logger.Warn("monthly cost cap would be exceeded",
			"client_id", clientID,
			"monthly_cost", monthlyUsage,
			"monthly_cap", monthlyCap,
			"estimated_cost", estimatedCost)
		return CostDecision{
			Reason:         "Monthly cost limit reached",
			CurrentMonthly: monthlyUsage,
			MonthlyCostCap: monthlyCap,
			EstimatedCost:  estimatedCost,
		}
	}

	return CostDecision{
		Allowed:          true,
		CurrentDailyCost: dailyUsage,
		DailyCostCap:     dailyCap,
		CurrentMonthly:   monthlyUsage,
		MonthlyCostCap:   monthlyCap,
		EstimatedCost:    estimatedCost,
	}
}

// IncrementCostUsage adds actual spend to the client's counters,
// applying rollovers first. Best effort.
func (g *Guard) IncrementCostUsage(ctx context.Context, clientID string, actualCost float64) {
	var dailyUsage, monthlyUsage float64
	var resetDate sql.NullString
	err := g.db.QueryRowContext(ctx, `
		SELECT daily_cost_usage, monthly_cost_usage, last_cost_reset_date
		FROM client_configs
		WHERE client_id = $1
	`, clientID).Scan(&dailyUsage, &monthlyUsage, &resetDate)
	if err != nil {
		g.logger.Error("cost increment read failed", "client_id", clientID, "error", err)
		return
	}

	date := g.currentDate()
	month := g.currentMonth()
	if resetDate.String != date {
		dailyUsage = 0
		if lastMonth(resetDate.String) != month {
			monthlyUsage = 0
		}
	}

	if _, err := g.db.ExecContext(ctx, `
		UPDATE client_configs
		SET daily_cost_usage = $1, monthly_cost_usage = $2, last_cost_reset_date = $3
		WHERE client_id = $4
	`, dailyUsage+actualCost, monthlyUsage+actualCost, date, clientID); err != nil {
		g.logger.Error("cost increment write failed", "client_id", clientID, "error", err)
		return
	}

	g.logger.Info("cost usage incremented",
		"client_id", clientID,
		"actual_cost", actualCost,
		"new_daily_cost", dailyUsage+actualCost,
		"new_monthly_cost", monthlyUsage+actualCost)
}

// lastMonth extracts the YYYY-MM prefix of a YYYY-MM-DD reset date.
func lastMonth(resetDate string) string {
	if len(resetDate) < 7 {
		return ""
	}
	return resetDate[:7]
}

// CostLimitMessage is the customer-facing reply when the cost guard
// rejects a call.
func CostLimitMessage(reason string) string {
	if strings.Contains(reason, "Daily") {
		return "Our automated assistant has reached its daily usage limit. " +
			"Please try again tomorrow or contact us directly for immediate assistance."
	}
	return "Our automated assistant has reached its monthly usage limit. " +
		"Please contact us directly for assistance."
}

// TokenLimitMessage is the customer-facing reply when the monthly token
// cap has been hit.
const TokenLimitMessage = "Our automated assistant is temporarily unavailable. " +
	"Please contact us directly for assistance."
