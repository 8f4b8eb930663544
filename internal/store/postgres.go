package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/eal-scorer/internal/model"
	"github.com/sells-group/eal-scorer/internal/resilience"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock pools satisfy
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
	retry   resilience.RetryConfig
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_run":   `INSERT INTO runs (id, config, config_hash, system_name, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"get_run":      `SELECT ` + postgresRunColumns + ` FROM runs WHERE id = $1`,
	"complete_run": `UPDATE runs SET status = $1, summary = $2, updated_at = $3 WHERE id = $4`,
	"fail_run":     `UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{
		pool:    pool,
		closeFn: pool.Close,
		retry:   resilience.DefaultRetryConfig(),
	}, nil
}

// WithRetry replaces the retry policy applied to writes.
func (s *PostgresStore) WithRetry(cfg resilience.RetryConfig) *PostgresStore {
	s.retry = cfg
	return s
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	config      JSONB NOT NULL,
	config_hash TEXT NOT NULL,
	system_name TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'running',
	summary     JSONB,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS document_scores (
	run_id              TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	doc_id              TEXT NOT NULL,
	true_positives      INTEGER NOT NULL,
	false_positives     INTEGER NOT NULL,
	false_negatives     INTEGER NOT NULL,
	unassessed          INTEGER NOT NULL,
	unscaled_argument   DOUBLE PRECISION NOT NULL,
	scaled_argument     DOUBLE PRECISION NOT NULL,
	argument_normalizer INTEGER NOT NULL,
	linking_precision   DOUBLE PRECISION NOT NULL,
	linking_recall      DOUBLE PRECISION NOT NULL,
	unscaled_linking    DOUBLE PRECISION NOT NULL,
	scaled_linking      DOUBLE PRECISION NOT NULL,
	linking_normalizer  INTEGER NOT NULL,
	combined            DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, doc_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_system_name ON runs(system_name);
CREATE INDEX IF NOT EXISTS idx_runs_config_hash ON runs(config_hash);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) retryConfig(op string) resilience.RetryConfig {
	cfg := s.retry
	cfg.OnRetry = resilience.RetryLogger("postgres", op)
	return cfg
}

func (s *PostgresStore) CreateRun(ctx context.Context, params RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	configJSON, err := json.Marshal(params.Config)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal run config")
	}

	err = resilience.Do(ctx, s.retryConfig("create_run"), func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO runs (id, config, config_hash, system_name, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, configJSON, params.ConfigHash, params.Config.SystemName, string(model.RunStatusRunning), now, now,
		)
		return err
	})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

// upsertDocumentScore replaces a document's score when a run is re-saved.
var upsertDocumentScore = func() string {
	placeholders := make([]string, len(documentScoreColumns))
	var updates []string
	for i, col := range documentScoreColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col != "run_id" && col != "doc_id" {
			updates = append(updates, col+" = EXCLUDED."+col)
		}
	}
	return `INSERT INTO document_scores (` + strings.Join(documentScoreColumns, ", ") + `) VALUES (` +
		strings.Join(placeholders, ", ") + `) ON CONFLICT (run_id, doc_id) DO UPDATE SET ` +
		strings.Join(updates, ", ")
}()

func (s *PostgresStore) SaveDocumentScores(ctx context.Context, runID string, scores []model.DocumentScore) error {
	return resilience.Do(ctx, s.retryConfig("save_document_scores"), func(ctx context.Context) error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return eris.Wrap(err, "postgres: begin tx")
		}
		defer tx.Rollback(ctx) //nolint:errcheck

		for _, d := range scores {
			if _, err := tx.Exec(ctx, upsertDocumentScore, documentScoreArgs(runID, d)...); err != nil {
				return eris.Wrapf(err, "postgres: upsert document score %s", d.DocID)
			}
		}
		return eris.Wrap(tx.Commit(ctx), "postgres: commit document scores")
	})
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary model.CorpusSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}
	return s.updateRun(ctx, "complete_run", runID,
		`UPDATE runs SET status = $1, summary = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusComplete), summaryJSON, time.Now().UTC(), runID,
	)
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, msg string) error {
	return s.updateRun(ctx, "fail_run", runID,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
}

func (s *PostgresStore) updateRun(ctx context.Context, op, runID, query string, args ...any) error {
	tag, err := resilience.DoVal(ctx, s.retryConfig(op), func(ctx context.Context) (pgconn.CommandTag, error) {
		return s.pool.Exec(ctx, query, args...)
	})
	if err != nil {
		return eris.Wrapf(err, "postgres: %s %s", op, runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

const postgresRunColumns = `id, config, config_hash, status, summary, error, created_at, updated_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPostgresRun(s.pool.QueryRow(ctx,
		`SELECT `+postgresRunColumns+` FROM runs WHERE id = $1`,
		runID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.SystemName != "" {
		query += fmt.Sprintf(` AND system_name = $%d`, argIdx)
		args = append(args, filter.SystemName)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) ListDocumentScores(ctx context.Context, runID string) ([]model.DocumentScore, error) {
	rows, err := s.pool.Query(ctx,
		selectDocumentScores+` WHERE run_id = $1 ORDER BY doc_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list document scores %s", runID)
	}
	defer rows.Close()

	var scores []model.DocumentScore
	for rows.Next() {
		d, err := scanDocumentScore(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan document score")
		}
		scores = append(scores, d)
	}
	return scores, eris.Wrap(rows.Err(), "postgres: iterate document scores")
}

func scanPostgresRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	var configJSON, summaryJSON []byte

	if err := row.Scan(&r.ID, &configJSON, &r.ConfigHash, &status, &summaryJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)

	if err := json.Unmarshal(configJSON, &r.Config); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run config")
	}
	if summaryJSON != nil {
		r.Summary = &model.CorpusSummary{}
		if err := json.Unmarshal(summaryJSON, r.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
	}
	return &r, nil
}
