package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haiwise/knowledge-cli/internal/model"
)

func now() time.Time {
	return time.Now().UTC()
}

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO query_runs`).
		WithArgs(pgxmock.AnyArg(), "what is the fill rate?", "dev", "complete",
			pgxmock.AnyArg(), 0.87, 3, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run := &model.QueryRun{
		Question:   "what is the fill rate?",
		Agent:      "dev",
		Status:     model.RunStatusComplete,
		Payload:    &model.AnswerPayload{Answer: "97%", Confidence: 0.87},
		Confidence: 0.87,
		Retrieved:  3,
	}
	require.NoError(t, s.SaveRun(context.Background(), run))
	assert.NotEmpty(t, run.ID, "id assigned on save")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, question, agent, status, payload, confidence, retrieved, created_at, updated_at FROM query_runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{
		"id", "question", "agent", "status", "payload", "confidence", "retrieved", "created_at", "updated_at",
	}).AddRow("run-1", "q1", "dev", "complete", []byte(`{"answer":"a1","confidence":0.9}`), 0.9, 2, now(), now())

	mock.ExpectQuery(`SELECT .+ FROM query_runs WHERE 1=1 AND status = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("complete", 10).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusComplete, Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	require.NotNil(t, runs[0].Payload)
	assert.Equal(t, "a1", runs[0].Payload.Answer)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS query_runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
