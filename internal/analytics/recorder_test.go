package analytics

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadowspark/support-ai-platform/internal/intent"
	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

func newRecorder(t *testing.T) (*Recorder, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRecorder(db, logging.New("error")), mock
}

func TestRecordUserMessageInsertsFirstRow(t *testing.T) {
	rec, mock := newRecorder(t)
	convID := uuid.New()

	mock.ExpectQuery(`SELECT avg_response_time_ms, intent`).
		WithArgs(convID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO conversation_analytics`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec.RecordUserMessage(context.Background(), UserMessageEvent{
		ConversationID: convID,
		ClientID:       "client-1",
		Intent:         intent.Support,
		ResponseTimeMs: 900,
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordUserMessageBlendsResponseTime(t *testing.T) {
	rec, mock := newRecorder(t)
	convID := uuid.New()

	mock.ExpectQuery(`SELECT avg_response_time_ms, intent`).
		WithArgs(convID).
		WillReturnRows(sqlmock.NewRows([]string{"avg_response_time_ms", "intent"}).
			AddRow(int64(1000), "SUPPORT"))
	// 1000*0.8 + 500*0.2 = 900
	mock.ExpectExec(`UPDATE conversation_analytics SET`).
		WithArgs(sqlmock.AnyArg(), int64(120), 0.001, int64(900), sqlmock.AnyArg(), convID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec.RecordUserMessage(context.Background(), UserMessageEvent{
		ConversationID: convID,
		ClientID:       "client-1",
		Intent:         intent.Sales,
		TokensUsed:     120,
		CostUsed:       0.001,
		ResponseTimeMs: 500,
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordUserMessageKeepsAverageWithoutSample(t *testing.T) {
	rec, mock := newRecorder(t)
	convID := uuid.New()

	mock.ExpectQuery(`SELECT avg_response_time_ms, intent`).
		WithArgs(convID).
		WillReturnRows(sqlmock.NewRows([]string{"avg_response_time_ms", "intent"}).
			AddRow(int64(750), "FAQ"))
	mock.ExpectExec(`UPDATE conversation_analytics SET`).
		WithArgs(sqlmock.AnyArg(), int64(0), 0.0, int64(750), sqlmock.AnyArg(), convID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec.RecordUserMessage(context.Background(), UserMessageEvent{
		ConversationID: convID,
		ClientID:       "client-1",
		Intent:         intent.FAQ,
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordUserMessageSwallowsFailures(t *testing.T) {
	rec, mock := newRecorder(t)
	convID := uuid.New()

	mock.ExpectQuery(`SELECT avg_response_time_ms, intent`).
		WithArgs(convID).
		WillReturnError(assert.AnError)

	// Must not panic or surface the error.
	rec.RecordUserMessage(context.Background(), UserMessageEvent{
		ConversationID: convID,
		ClientID:       "client-1",
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAIResponse(t *testing.T) {
	rec, mock := newRecorder(t)
	convID := uuid.New()

	mock.ExpectExec(`UPDATE conversation_analytics SET`).
		WithArgs(int64(640), 0.00096, sqlmock.AnyArg(), convID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec.RecordAIResponse(context.Background(), convID, 640, 0.00096)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordHandoff(t *testing.T) {
	rec, mock := newRecorder(t)
	convID := uuid.New()

	mock.ExpectExec(`UPDATE conversation_analytics SET handoff_reason`).
		WithArgs("user requested human agent", sqlmock.AnyArg(), convID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec.RecordHandoff(context.Background(), convID, "user requested human agent")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryAggregatesClient(t *testing.T) {
	rec, mock := newRecorder(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\),`).
		WithArgs("client-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"count", "messages", "tokens", "cost", "avg", "handoffs",
		}).AddRow(12, int64(188), int64(54000), 0.081, 845.4, 3))
	mock.ExpectQuery(`SELECT intent, COUNT\(\*\)`).
		WithArgs("client-1").
		WillReturnRows(sqlmock.NewRows([]string{"intent", "count"}).
			AddRow("SUPPORT", 7).
			AddRow("SALES", 3).
			AddRow("COMPLAINT", 2))

	summary, err := rec.Summary(context.Background(), "client-1")
	require.NoError(t, err)

	assert.Equal(t, 12, summary.TotalConversations)
	assert.Equal(t, int64(188), summary.TotalMessages)
	assert.Equal(t, int64(54000), summary.TotalTokensUsed)
	assert.InDelta(t, 0.081, summary.TotalCostUsed, 1e-9)
	assert.Equal(t, int64(845), summary.AvgResponseTimeMs)
	assert.Equal(t, 3, summary.HandoffCount)
	assert.Equal(t, map[string]int{"SUPPORT": 7, "SALES": 3, "COMPLAINT": 2}, summary.IntentBreakdown)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryReturnsQueryErrors(t *testing.T) {
	rec, mock := newRecorder(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\),`).
		WithArgs("client-1").
		WillReturnError(assert.AnError)

	_, err := rec.Summary(context.Background(), "client-1")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
