package corpus

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/eal-scorer/internal/model"
	"github.com/sells-group/eal-scorer/internal/scorer"
)

type fakeScorer struct {
	calls atomic.Int64
	fail  map[model.DocumentID]bool
}

func (f *fakeScorer) ScoreDocument(in scorer.DocumentInput) (*scorer.Result, error) {
	f.calls.Add(1)
	if f.fail[in.AnswerKey.DocID] {
		return nil, eris.Errorf("scorer: align %s: bad input", in.AnswerKey.DocID)
	}
	return &scorer.Result{DocID: in.AnswerKey.DocID, Combined: 0.5}, nil
}

func inputs(ids ...string) []scorer.DocumentInput {
	out := make([]scorer.DocumentInput, len(ids))
	for i, id := range ids {
		out[i] = scorer.DocumentInput{AnswerKey: model.AnswerKey{DocID: model.DocumentID(id)}}
	}
	return out
}

func TestScoreAll(t *testing.T) {
	f := &fakeScorer{fail: map[model.DocumentID]bool{"doc3": true, "doc0": true}}

	report, err := ScoreAll(context.Background(), f, inputs("doc4", "doc3", "doc1", "doc0", "doc2"), 2)
	require.NoError(t, err)

	assert.Equal(t, int64(5), f.calls.Load())
	require.Len(t, report.Results, 3)
	assert.Equal(t, model.DocumentID("doc1"), report.Results[0].DocID)
	assert.Equal(t, model.DocumentID("doc2"), report.Results[1].DocID)
	assert.Equal(t, model.DocumentID("doc4"), report.Results[2].DocID)

	require.Len(t, report.Failures, 2)
	assert.Equal(t, model.DocumentID("doc0"), report.Failures[0].DocID)
	assert.Contains(t, report.Failures[1].Err.Error(), "doc3")

	agg := report.Aggregate()
	assert.Equal(t, 3, agg.Documents)
	assert.Equal(t, 2, agg.Failed)
}

func TestScoreAll_ManyDocuments(t *testing.T) {
	var ids []string
	for i := range 100 {
		ids = append(ids, fmt.Sprintf("doc%03d", i))
	}
	f := &fakeScorer{}
	report, err := ScoreAll(context.Background(), f, inputs(ids...), 8)
	require.NoError(t, err)
	require.Len(t, report.Results, 100)
	assert.Equal(t, model.DocumentID("doc000"), report.Results[0].DocID)
	assert.Equal(t, model.DocumentID("doc099"), report.Results[99].DocID)
}

func TestScoreAll_ZeroConcurrency(t *testing.T) {
	report, err := ScoreAll(context.Background(), &fakeScorer{}, inputs("a", "b"), 0)
	require.NoError(t, err)
	assert.Len(t, report.Results, 2)
}

func TestScoreAll_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeScorer{}
	_, err := ScoreAll(ctx, f, inputs("a", "b", "c"), 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.calls.Load())
}

func TestScoreAll_Empty(t *testing.T) {
	report, err := ScoreAll(context.Background(), &fakeScorer{}, nil, 4)
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Empty(t, report.Failures)
}
