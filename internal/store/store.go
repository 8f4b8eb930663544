// Package store persists scoring runs and their per-document scores.
package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/eal-scorer/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status     model.RunStatus `json:"status,omitempty"`
	SystemName string          `json:"system_name,omitempty"`
	Limit      int             `json:"limit,omitempty"`
	Offset     int             `json:"offset,omitempty"`
}

// RunParams describes a run at creation time.
type RunParams struct {
	Config     model.RunConfig
	ConfigHash string
}

// Store defines the persistence interface for scoring runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, params RunParams) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary model.CorpusSummary) error
	FailRun(ctx context.Context, runID string, msg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Document scores
	SaveDocumentScores(ctx context.Context, runID string, scores []model.DocumentScore) error
	ListDocumentScores(ctx context.Context, runID string) ([]model.DocumentScore, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// documentScoreColumns is the column order shared by both backends.
var documentScoreColumns = []string{
	"run_id",
	"doc_id",
	"true_positives",
	"false_positives",
	"false_negatives",
	"unassessed",
	"unscaled_argument",
	"scaled_argument",
	"argument_normalizer",
	"linking_precision",
	"linking_recall",
	"unscaled_linking",
	"scaled_linking",
	"linking_normalizer",
	"combined",
}

func documentScoreArgs(runID string, d model.DocumentScore) []any {
	return []any{
		runID,
		string(d.DocID),
		d.TruePositives,
		d.FalsePositives,
		d.FalseNegatives,
		d.Unassessed,
		d.UnscaledArgument,
		d.ScaledArgument,
		d.ArgumentNormalizer,
		d.LinkingPrecision,
		d.LinkingRecall,
		d.UnscaledLinking,
		d.ScaledLinking,
		d.LinkingNormalizer,
		d.Combined,
	}
}

// selectDocumentScores selects every column but run_id.
var selectDocumentScores = "SELECT " + strings.Join(documentScoreColumns[1:], ", ") + " FROM document_scores"

type scannable interface {
	Scan(dest ...any) error
}

func scanDocumentScore(row scannable) (model.DocumentScore, error) {
	var d model.DocumentScore
	var docID string
	err := row.Scan(
		&docID,
		&d.TruePositives,
		&d.FalsePositives,
		&d.FalseNegatives,
		&d.Unassessed,
		&d.UnscaledArgument,
		&d.ScaledArgument,
		&d.ArgumentNormalizer,
		&d.LinkingPrecision,
		&d.LinkingRecall,
		&d.UnscaledLinking,
		&d.ScaledLinking,
		&d.LinkingNormalizer,
		&d.Combined,
	)
	d.DocID = model.DocumentID(docID)
	return d, err
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
