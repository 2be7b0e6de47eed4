package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configRows(prompt, fallback string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"client_id", "system_prompt", "fallback_message",
		"monthly_token_usage", "monthly_token_cap", "last_reset_month",
		"daily_cost_usage", "daily_cost_cap",
		"monthly_cost_usage", "monthly_cost_cap", "last_cost_reset_date",
		"updated_at",
	}).AddRow("client-1", prompt, fallback, 1000, 100000, "2026-03",
		0.1, 1.0, 2.0, 10.0, "2026-03-15", time.Now())
}

func TestGetConfig(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT client_id, system_prompt, fallback_message").
		WithArgs("client-1").
		WillReturnRows(configRows("You are a tailored bot.", "Hold on for a human."))

	store := NewStore(db)
	cfg, err := store.Get(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, "You are a tailored bot.", cfg.SystemPrompt)
	assert.Equal(t, "Hold on for a human.", cfg.FallbackMessage)
	assert.Equal(t, int64(100000), cfg.MonthlyTokenCap)
}

func TestGetConfigDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT client_id, system_prompt, fallback_message").
		WithArgs("client-1").
		WillReturnRows(configRows("", ""))

	store := NewStore(db)
	cfg, err := store.Get(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt, cfg.SystemPrompt)
	assert.Equal(t, DefaultHandoffMessage, cfg.FallbackMessage)
}

func TestGetConfigNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT client_id, system_prompt, fallback_message").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"client_id"}))

	store := NewStore(db)
	_, err = store.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
