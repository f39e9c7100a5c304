package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/resilience"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), testStoreCompany())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, company, status, score, error, cost_usd, created_at, updated_at`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, company, status, score, error, cost_usd, created_at, updated_at`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "company", "status", "score", "error", "cost_usd", "created_at", "updated_at"}).
			AddRow("run-1", []byte(`{"id":"co-1","name":"Acme","domain":"acme.com"}`), model.RunStatus("complete"),
				[]byte(`{"overall":42.5}`), (*string)(nil), 0.05, now, now))

	mock.ExpectQuery(`SELECT question_id, raw_text, citation_urls, degraded, fetched_at`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"question_id", "raw_text", "citation_urls", "degraded", "fetched_at"}).
			AddRow("q-1", "answer text", []byte(`["https://acme.com"]`), false, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", run.Company.Name)
	require.NotNil(t, run.Score)
	assert.Equal(t, 42.5, run.Score.Overall)
	require.Len(t, run.Answers, 1)
	assert.Equal(t, []string{"https://acme.com"}, run.Answers[0].CitationURLs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("querying", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusQuerying)
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveScore(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET score`).
		WithArgs(pgxmock.AnyArg(), 0.25, "complete", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.SaveScore(context.Background(), "run-1", &model.VisibilityScore{Overall: 50}, 0.25)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveAnswerRecords(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM answers`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"answers"},
		[]string{"id", "run_id", "seq", "question_id", "raw_text", "citation_urls", "degraded", "fetched_at"}).
		WillReturnResult(2)

	records := []model.AnswerRecord{
		{QuestionID: "q-1", RawText: "one", FetchedAt: time.Now()},
		{QuestionID: "q-2", RawText: "two", FetchedAt: time.Now()},
	}
	err := s.SaveAnswerRecords(context.Background(), "run-1", records)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddDLQ(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO dlq`).
		WithArgs("dlq-1", "run-1", pgxmock.AnyArg(), "timeout", "transient",
			0, 3, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	entry := resilience.DLQEntry{
		ID:           "dlq-1",
		RunID:        "run-1",
		Question:     model.Question{ID: "q-1", Text: "hello", Type: model.QuestionTypeDirect},
		Error:        "timeout",
		ErrorType:    "transient",
		MaxRetries:   3,
		CreatedAt:    time.Now(),
		LastFailedAt: time.Now(),
	}
	require.NoError(t, s.AddDLQ(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, company, status, score, error, cost_usd, created_at, updated_at`).
		WithArgs("complete", 100).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "company", "status", "score", "error", "cost_usd", "created_at", "updated_at"}).
			AddRow("run-1", []byte(`{"id":"co-1","name":"Acme","domain":"acme.com"}`), model.RunStatus("complete"),
				[]byte(nil), (*string)(nil), 0.0, now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Nil(t, runs[0].Score)
	assert.NoError(t, mock.ExpectationsWereMet())
}
