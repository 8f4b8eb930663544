package linking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/eal-scorer/internal/eqclass"
)

func cluster(cas ...string) []eqclass.Key {
	out := make([]eqclass.Key, len(cas))
	for i, c := range cas {
		out[i] = eqclass.Key{DocID: "doc1", EventType: "Conflict.Attack", Role: "Attacker", Realis: "actual", CAS: c}
	}
	return out
}

func clustering(cs ...[]eqclass.Key) EventArgumentLinking {
	return EventArgumentLinking{DocID: "doc1", Clusters: cs}
}

func TestScorePairwise_SplitCluster(t *testing.T) {
	gold := clustering(cluster("a", "b", "c"))
	pred := clustering(cluster("a", "b"), cluster("c"))

	s, err := ScorePairwise(pred, gold)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, s.Precision, 1e-9)
	// Item recalls are 1/2, 1/2 and 0.
	assert.InDelta(t, 1.0/3.0, s.Recall, 1e-9)
	assert.InDelta(t, 4.0/9.0, s.F1, 1e-9)
	assert.Equal(t, 3, s.PredictedItems)
	assert.Equal(t, 3, s.GoldItems)
}

func TestScorePairwise_Identical(t *testing.T) {
	gold := clustering(cluster("a", "b"), cluster("c"), cluster("d", "e", "f"))
	s, err := ScorePairwise(gold, gold)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.Precision, 1e-9)
	assert.InDelta(t, 1.0, s.Recall, 1e-9)
	assert.InDelta(t, 1.0, s.F1, 1e-9)
}

func TestScorePairwise_MissingItemsHurtRecallOnly(t *testing.T) {
	gold := clustering(cluster("a", "b"), cluster("c"))
	pred := clustering(cluster("a", "b"))

	s, err := ScorePairwise(pred, gold)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, s.Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, s.F1, 1e-9)
}

func TestScorePairwise_OverMerged(t *testing.T) {
	gold := clustering(cluster("a"), cluster("b"))
	pred := clustering(cluster("a", "b"))

	s, err := ScorePairwise(pred, gold)
	require.NoError(t, err)
	assert.Zero(t, s.Precision)
	assert.Zero(t, s.Recall)
	assert.Zero(t, s.F1)
}

func TestScorePairwise_Degenerate(t *testing.T) {
	empty := clustering()
	some := clustering(cluster("a", "b"))

	tests := []struct {
		name       string
		pred, gold EventArgumentLinking
		want       float64
	}{
		{"both empty", empty, empty, 1},
		{"empty predicted", empty, some, 0},
		{"empty gold", some, empty, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ScorePairwise(tt.pred, tt.gold)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, s.Precision, 1e-9)
			assert.InDelta(t, tt.want, s.Recall, 1e-9)
			assert.InDelta(t, tt.want, s.F1, 1e-9)
		})
	}
}

func TestScorePairwise_UnknownPredictedKey(t *testing.T) {
	_, err := ScorePairwise(clustering(cluster("a", "z")), clustering(cluster("a")))
	assert.ErrorIs(t, err, ErrUnknownPredictedKey)
}
