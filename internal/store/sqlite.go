package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/eal-scorer/internal/model"
	"github.com/sells-group/eal-scorer/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	retry resilience.RetryConfig
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, retry: resilience.DefaultRetryConfig()}, nil
}

// WithRetry replaces the retry policy applied to writes.
func (s *SQLiteStore) WithRetry(cfg resilience.RetryConfig) *SQLiteStore {
	s.retry = cfg
	return s
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	config      TEXT NOT NULL,
	config_hash TEXT NOT NULL,
	system_name TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'running',
	summary     TEXT,
	error       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS document_scores (
	run_id              TEXT NOT NULL,
	doc_id              TEXT NOT NULL,
	true_positives      INTEGER NOT NULL,
	false_positives     INTEGER NOT NULL,
	false_negatives     INTEGER NOT NULL,
	unassessed          INTEGER NOT NULL,
	unscaled_argument   REAL NOT NULL,
	scaled_argument     REAL NOT NULL,
	argument_normalizer INTEGER NOT NULL,
	linking_precision   REAL NOT NULL,
	linking_recall      REAL NOT NULL,
	unscaled_linking    REAL NOT NULL,
	scaled_linking      REAL NOT NULL,
	linking_normalizer  INTEGER NOT NULL,
	combined            REAL NOT NULL,
	PRIMARY KEY (run_id, doc_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_system_name ON runs(system_name);
CREATE INDEX IF NOT EXISTS idx_runs_config_hash ON runs(config_hash);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) retryConfig(op string) resilience.RetryConfig {
	cfg := s.retry
	cfg.OnRetry = resilience.RetryLogger("sqlite", op)
	return cfg
}

func (s *SQLiteStore) CreateRun(ctx context.Context, params RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	configJSON, err := json.Marshal(params.Config)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal run config")
	}

	err = resilience.Do(ctx, s.retryConfig("create_run"), func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO runs (id, config, config_hash, system_name, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, string(configJSON), params.ConfigHash, params.Config.SystemName, string(model.RunStatusRunning), now, now,
		)
		return err
	})
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:         id,
		Config:     params.Config,
		ConfigHash: params.ConfigHash,
		Status:     model.RunStatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *SQLiteStore) SaveDocumentScores(ctx context.Context, runID string, scores []model.DocumentScore) error {
	query := `INSERT OR REPLACE INTO document_scores (` + strings.Join(documentScoreColumns, ", ") +
		`) VALUES (?` + strings.Repeat(", ?", len(documentScoreColumns)-1) + `)`

	return resilience.Do(ctx, s.retryConfig("save_document_scores"), func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return eris.Wrap(err, "sqlite: begin tx")
		}
		defer tx.Rollback() //nolint:errcheck

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare document score insert")
		}
		defer stmt.Close() //nolint:errcheck

		for _, d := range scores {
			if _, err := stmt.ExecContext(ctx, documentScoreArgs(runID, d)...); err != nil {
				return eris.Wrapf(err, "sqlite: insert document score %s", d.DocID)
			}
		}
		return eris.Wrap(tx.Commit(), "sqlite: commit document scores")
	})
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary model.CorpusSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}
	return s.updateRun(ctx, "complete_run", runID,
		`UPDATE runs SET status = ?, summary = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(summaryJSON), time.Now().UTC(), runID,
	)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, msg string) error {
	return s.updateRun(ctx, "fail_run", runID,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
}

func (s *SQLiteStore) updateRun(ctx context.Context, op, runID, query string, args ...any) error {
	var res sql.Result
	err := resilience.Do(ctx, s.retryConfig(op), func(ctx context.Context) error {
		var err error
		res, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s %s", op, runID)
	}
	return checkRowsAffected(res, "run", runID)
}

const sqliteRunColumns = `id, config, config_hash, status, summary, error, created_at, updated_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanSQLiteRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.SystemName != "" {
		query += ` AND system_name = ?`
		args = append(args, filter.SystemName)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) ListDocumentScores(ctx context.Context, runID string) ([]model.DocumentScore, error) {
	rows, err := s.db.QueryContext(ctx,
		selectDocumentScores+` WHERE run_id = ? ORDER BY doc_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list document scores %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var scores []model.DocumentScore
	for rows.Next() {
		d, err := scanDocumentScore(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document score")
		}
		scores = append(scores, d)
	}
	return scores, eris.Wrap(rows.Err(), "sqlite: iterate document scores")
}

func scanSQLiteRun(row scannable) (*model.Run, error) {
	var r model.Run
	var configJSON string
	var summaryJSON sql.NullString

	err := row.Scan(&r.ID, &configJSON, &r.ConfigHash, &r.Status, &summaryJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(configJSON), &r.Config); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run config")
	}
	if summaryJSON.Valid {
		r.Summary = &model.CorpusSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	return &r, nil
}
