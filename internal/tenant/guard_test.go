package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedGuard(t *testing.T, at time.Time) (*Guard, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	g := NewGuard(db, nil)
	g.now = func() time.Time { return at }
	return g, mock
}

var march15 = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func TestEstimateContextTokens(t *testing.T) {
	assert.Equal(t, 100, EstimateContextTokens(nil))
	assert.Equal(t, 101, EstimateContextTokens([]string{"hey"}))
	assert.Equal(t, 110, EstimateContextTokens([]string{"0123456789", "012345678901234567890123456789"}))
}

func TestEstimateCost(t *testing.T) {
	est := EstimateCost(1000, 0)
	assert.Equal(t, 1500, est.EstimatedTokens)
	assert.InDelta(t, 1500*CostPerToken, est.EstimatedCost, 1e-12)
	assert.Equal(t, "gpt-4o-mini", est.Model)

	est = EstimateCost(200, 300)
	assert.Equal(t, 500, est.EstimatedTokens)
}

func TestCheckTokenCapWithinBudget(t *testing.T) {
	g, mock := fixedGuard(t, march15)
	mock.ExpectQuery("SELECT monthly_token_usage, monthly_token_cap, last_reset_month").
		WithArgs("client-1").
		WillReturnRows(sqlmock.NewRows([]string{"monthly_token_usage", "monthly_token_cap", "last_reset_month"}).
			AddRow(4000, 100000, "2026-03"))

	status := g.CheckTokenCap(context.Background(), "client-1")
	assert.False(t, status.Exceeded)
	assert.Equal(t, int64(4000), status.CurrentUsage)
	assert.Equal(t, int64(100000), status.Cap)
	assert.Equal(t, int64(96000), status.Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckTokenCapMonthRollover(t *testing.T) {
	g, mock := fixedGuard(t, march15)
	mock.ExpectQuery("SELECT monthly_token_usage, monthly_token_cap, last_reset_month").
		WithArgs("client-1").
		WillReturnRows(sqlmock.NewRows([]string{"monthly_token_usage", "monthly_token_cap", "last_reset_month"}).
			AddRow(99999, 100000, "2026-02"))
	mock.ExpectExec("UPDATE client_configs").
		WithArgs("2026-03", "client-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	status := g.CheckTokenCap(context.Background(), "client-1")
	assert.False(t, status.Exceeded)
	assert.Equal(t, int64(0), status.CurrentUsage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckTokenCapExceeded(t *testing.T) {
	g, mock := fixedGuard(t, march15)
	mock.ExpectQuery("SELECT monthly_token_usage, monthly_token_cap, last_reset_month").
		WithArgs("client-1").
		WillReturnRows(sqlmock.NewRows([]string{"monthly_token_usage", "monthly_token_cap", "last_reset_month"}).
			AddRow(100001, 100000, "2026-03"))

	status := g.CheckTokenCap(context.Background(), "client-1")
	assert.True(t, status.Exceeded)
	assert.Equal(t, int64(0), status.Remaining)
}

func TestCheckTokenCapFailsOpen(t *testing.T) {
	g, mock := fixedGuard(t, march15)
	mock.ExpectQuery("SELECT monthly_token_usage, monthly_token_cap, last_reset_month").
		WithArgs("client-1").
		WillReturnError(errors.New("connection refused"))

	status := g.CheckTokenCap(context.Background(), "client-1")
	assert.False(t, status.Exceeded, "guard errors must not block the pipeline")
	assert.Equal(t, DefaultTokenCap, status.EffectiveCap())
}

func TestCheckTokenCapMissingConfig(t *testing.T) {
	g, mock := fixedGuard(t, march15)
	mock.ExpectQuery("SELECT monthly_token_usage, monthly_token_cap, last_reset_month").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"monthly_token_usage", "monthly_token_cap", "last_reset_month"}))

	status := g.CheckTokenCap(context.Background(), "ghost")
	assert.False(t, status.Exceeded)
}

func TestIncrementTokenUsage(t *testing.T) {
	g, mock := fixedGuard(t, march15)
	mock.ExpectQuery("SELECT monthly_token_usage, last_reset_month").
		WithArgs("client-1").
		WillReturnRows(sqlmock.NewRows([]string{"monthly_token_usage", "last_reset_month"}).
			AddRow(500, "2026-03"))
	mock.ExpectExec("UPDATE client_configs").
		WithArgs(int64(750), "2026-03", "client-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	g.IncrementTokenUsage(context.Background(), "client-1", 250)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementTokenUsageMonthRollover(t *testing.T) {
	g, mock := fixedGuard(t, march15)
	mock.ExpectQuery("SELECT monthly_token_usage, last_reset_month").
		WithArgs("client-1").
		WillReturnRows(sqlmock.NewRows([]string{"monthly_token_usage", "last_reset_month"}).
			AddRow(90000, "2026-02"))
	mock.ExpectExec("UPDATE client_configs").
		WithArgs(int64(250), "2026-03", "client-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	g.IncrementTokenUsage(context.Background(), "client-1", 250)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func costRows(daily, dailyCap, monthly, monthlyCap float64, resetDate string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"daily_cost_usage", "daily_cost_cap",
		"monthly_cost_usage", "monthly_cost_cap", "last_cost_reset_date",
	}).AddRow(daily, dailyCap, monthly, monthlyCap, resetDate)
}

func TestCheckCostGuardAllows(t *testing.T) {
	g, mock := fixedGuard(t, march15)
	mock.ExpectQuery("SELECT daily_cost_usage, daily_cost_cap").
		WithArgs("client-1").
		WillReturnRows(costRows(0.10, 1.00, 2.00, 10.00, "2026-03-15"))

	decision := g.CheckCostGuard(context.Background(), "client-1", 0.05)
	assert.True(t, decision.Allowed)
	assert.InDelta(t, 0.10, decision.CurrentDailyCost, 1e-9)
}

func TestCheckCostGuardDailyBeforeMonthly(t *testing.T) {
	g, mock := fixedGuard(t, march15)
	// Both caps would be breached; the daily reason must win.
	mock.ExpectQuery("SELECT daily_cost_usage, daily_cost_cap").
		WithArgs("client-1").
		WillReturnRows(costRows(0.99, 1.00, 9.99, 10.00, "2026-03-15"))

	decision := g.CheckCostGuard(context.Background(), "client-1", 0.05)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "Daily cost limit reached", decision.Reason)
}

func TestCheckCostGuardMonthlyCap(t *testing.T) {
	g, mock := fixedGuard(t, march15)
	mock.ExpectQuery("SELECT daily_cost_usage, daily_cost_cap").
		WithArgs("client-1").
		WillReturnRows(costRows(0.01, 1.00, 9.99, 10.00, "2026-03-15"))

	decision := g.CheckCostGuard(context.Background(), "client-1", 0.05)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "Monthly cost limit reached", decision.Reason)
}

func TestCheckCostGuardDailyResetAllowsAgain(t *testing.T) {
	g, mock := fixedGuard(t, march15)
	// Yesterday maxed the daily budget; a new day starts from zero.
	mock.ExpectQuery("SELECT daily_cost_usage, daily_cost_cap").
		WithArgs("client-1").
		WillReturnRows(costRows(1.00, 1.00, 5.00, 10.00, "2026-03-14"))

	decision := g.CheckCostGuard(context.Background(), "client-1", 0.05)
	assert.True(t, decision.Allowed)
	assert.InDelta(t, 0, decision.CurrentDailyCost, 1e-9)
	assert.InDelta(t, 5.00, decision.CurrentMonthly, 1e-9)
}

func TestCheckCostGuardMonthResetClearsBoth(t *testing.T) {
	g, mock := fixedGuard(t, march15)
	mock.ExpectQuery("SELECT daily_cost_usage, daily_cost_cap").
		WithArgs("client-1").
		WillReturnRows(costRows(1.00, 1.00, 10.00, 10.00, "2026-02-28"))

	decision := g.CheckCostGuard(context.Background(), "client-1", 0.05)
	assert.True(t, decision.Allowed)
	assert.InDelta(t, 0, decision.CurrentMonthly, 1e-9)
}

func TestCheckCostGuardFailsOpen(t *testing.T) {
	g, mock := fixedGuard(t, march15)
	mock.ExpectQuery("SELECT daily_cost_usage, daily_cost_cap").
		WithArgs("client-1").
		WillReturnError(errors.New("timeout"))

	decision := g.CheckCostGuard(context.Background(), "client-1", 0.05)
	assert.True(t, decision.Allowed)
}

func TestCheckCostGuardZeroCapsUnlimited(t *testing.T) {
	g, mock := fixedGuard(t, march15)
	mock.ExpectQuery("SELECT daily_cost_usage, daily_cost_cap").
		WithArgs("client-1").
		WillReturnRows(costRows(500.0, 0, 9000.0, 0, "2026-03-15"))

	decision := g.CheckCostGuard(context.Background(), "client-1", 100.0)
	assert.True(t, decision.Allowed)
}

func TestIncrementCostUsage(t *testing.T) {
	g, mock := fixedGuard(t, march15)
	mock.ExpectQuery("SELECT daily_cost_usage, monthly_cost_usage, last_cost_reset_date").
		WithArgs("client-1").
		WillReturnRows(sqlmock.NewRows([]string{"daily_cost_usage", "monthly_cost_usage", "last_cost_reset_date"}).
			AddRow(0.25, 1.50, "2026-03-15"))
	mock.ExpectExec("UPDATE client_configs").
		WithArgs(0.5, 1.75, "2026-03-15", "client-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	g.IncrementCostUsage(context.Background(), "client-1", 0.25)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCostLimitMessage(t *testing.T) {
	daily := CostLimitMessage("Daily cost limit reached")
	monthly := CostLimitMessage("Monthly cost limit reached")
	assert.Contains(t, daily, "daily usage limit")
	assert.Contains(t, daily, "try again tomorrow")
	assert.Contains(t, monthly, "monthly usage limit")
	assert.NotEqual(t, daily, monthly)
}
