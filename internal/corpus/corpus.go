// Package corpus scores many documents concurrently and folds their results into
// corpus-level summaries.
package corpus

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/eal-scorer/internal/model"
	"github.com/sells-group/eal-scorer/internal/scorer"
)

// DocumentScorer scores one document.
type DocumentScorer interface {
	ScoreDocument(in scorer.DocumentInput) (*scorer.Result, error)
}

// Failure records a document that could not be scored.
type Failure struct {
	DocID model.DocumentID
	Err   error
}

// Report holds the outcome of scoring a corpus. Results and Failures are sorted by docID.
type Report struct {
	Results  []*scorer.Result
	Failures []Failure
}

// Aggregate folds every result and failure of the report.
func (r *Report) Aggregate() Aggregate {
	var agg Aggregate
	for _, res := range r.Results {
		agg = agg.Add(res)
	}
	for range r.Failures {
		agg = agg.AddFailure()
	}
	return agg
}

// ScoreAll scores docs with at most concurrency documents in flight. A document that fails
// is recorded in the report and does not stop the others. Only context cancellation
// returns an error.
func ScoreAll(ctx context.Context, s DocumentScorer, docs []scorer.DocumentInput, concurrency int) (*Report, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("scoring corpus",
		zap.Int("documents", len(docs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var (
		mu        sync.Mutex
		report    Report
		succeeded atomic.Int64
		failed    atomic.Int64
	)

	for _, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docID := doc.AnswerKey.DocID

			res, err := s.ScoreDocument(doc)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed.Add(1)
				zap.L().Warn("document scoring failed", zap.String("doc_id", string(docID)), zap.Error(err))
				report.Failures = append(report.Failures, Failure{DocID: docID, Err: err})
				return nil // don't abort corpus on individual failure
			}
			succeeded.Add(1)
			report.Results = append(report.Results, res)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "corpus: score documents")
	}

	slices.SortFunc(report.Results, func(a, b *scorer.Result) int { return cmp.Compare(a.DocID, b.DocID) })
	slices.SortFunc(report.Failures, func(a, b Failure) int { return cmp.Compare(a.DocID, b.DocID) })

	zap.L().Info("corpus scored",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return &report, nil
}
