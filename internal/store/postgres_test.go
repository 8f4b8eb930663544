package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/eal-scorer/internal/model"
	"github.com/sells-group/eal-scorer/internal/resilience"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{
		pool:  mock,
		retry: resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond},
	}
	return s, mock
}

var runColumns = []string{"id", "config", "config_hash", "status", "summary", "error", "created_at", "updated_at"}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "0123456789abcdef", "baseline", "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), testRunParams("baseline"))
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.Equal(t, "0123456789abcdef", run.ConfigHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun_RetriesTransient(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	mock.ExpectExec(`INSERT INTO runs`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	_, err := s.CreateRun(context.Background(), testRunParams("baseline"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun_PermanentError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

	_, err := s.CreateRun(context.Background(), testRunParams("baseline"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: insert run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	configJSON, err := json.Marshal(testRunParams("baseline").Config)
	require.NoError(t, err)
	summaryJSON, err := json.Marshal(model.CorpusSummary{Documents: 3, MacroCombined: 0.75})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, config, config_hash, status, summary, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-1", configJSON, "0123456789abcdef", "complete", summaryJSON, "", now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, "baseline", run.Config.SystemName)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 3, run.Summary.Documents)
	assert.InDelta(t, 0.75, run.Summary.MacroCombined, 1e-12)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, summary = \$2`).
		WithArgs("complete", pgxmock.AnyArg(), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteRun(context.Background(), "run-1", model.CorpusSummary{Documents: 1})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, error = \$2`).
		WithArgs("failed", "boom", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FailRun(context.Background(), "missing", "boom")
	require.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveDocumentScores(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	scores := testDocumentScores()

	mock.ExpectBegin()
	for _, d := range scores {
		mock.ExpectExec(`INSERT INTO document_scores .* ON CONFLICT \(run_id, doc_id\) DO UPDATE SET`).
			WithArgs(documentScoreArgs("run-1", d)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, s.SaveDocumentScores(context.Background(), "run-1", scores))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveDocumentScores_RollsBackOnError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO document_scores`).
		WillReturnError(&pgconn.PgError{Code: "23502", Message: "null value"})
	mock.ExpectRollback()

	err := s.SaveDocumentScores(context.Background(), "run-1", testDocumentScores())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert document score doc2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	configJSON, err := json.Marshal(testRunParams("baseline").Config)
	require.NoError(t, err)

	mock.ExpectQuery(`FROM runs WHERE true AND status = \$1 AND system_name = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("complete", "baseline", 10, 5).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-1", configJSON, "0123456789abcdef", "complete", []byte(`{"documents":2}`), "", now, now).
			AddRow("run-2", configJSON, "0123456789abcdef", "complete", []byte(`{"documents":4}`), "", now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{
		Status:     model.RunStatusComplete,
		SystemName: "baseline",
		Limit:      10,
		Offset:     5,
	})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[1].ID)
	assert.Equal(t, 4, runs[1].Summary.Documents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDocumentScores(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	cols := documentScoreColumns[1:]
	mock.ExpectQuery(`FROM document_scores WHERE run_id = \$1 ORDER BY doc_id`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("doc1", 3, 1, 0, 1, 2.75, 0.9166666666666666, 3, 1.0, 1.0, 3.0, 1.0, 3, 0.9583333333333333))

	scores, err := s.ListDocumentScores(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, model.DocumentID("doc1"), scores[0].DocID)
	assert.Equal(t, 3, scores[0].TruePositives)
	assert.Equal(t, 3, scores[0].LinkingNormalizer)
	assert.InDelta(t, 0.9583333333333333, scores[0].Combined, 1e-12)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
