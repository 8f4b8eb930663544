package linking

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/eal-scorer/internal/eqclass"
)

// ErrUnknownPredictedKey is returned when the predicted clustering holds a class the gold
// clustering does not.
var ErrUnknownPredictedKey = eris.New("linking: predicted class missing from gold clustering")

// Score is the pairwise-neighbor linking score of one document.
type Score struct {
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
	PredictedItems int     `json:"predicted_items"`
	GoldItems      int     `json:"gold_items"`
}

// ScorePairwise compares the neighbors of every gold class in the two clusterings.
//
// Each gold class k contributes an item precision, recall and F1 computed from its
// predicted and gold neighbors (the other members of its cluster). A class absent from
// pred contributes 0; a class that is a singleton on both sides contributes 1. Precision
// is averaged over the number of predicted classes, recall and F1 over the number of
// gold classes, so unlinked gold classes lower recall but not precision.
//
// Two empty clusterings score 1. When exactly one side is empty the score is 0.
func ScorePairwise(pred, gold EventArgumentLinking) (Score, error) {
	predKeys := pred.Keys()
	goldKeys := gold.Keys()

	s := Score{PredictedItems: len(predKeys), GoldItems: len(goldKeys)}
	switch {
	case len(goldKeys) == 0 && len(predKeys) == 0:
		s.Precision, s.Recall, s.F1 = 1, 1, 1
		return s, nil
	case len(goldKeys) == 0 || len(predKeys) == 0:
		return s, nil
	}

	for _, k := range predKeys.Sorted() {
		if !goldKeys.Contains(k) {
			return Score{}, eris.Wrapf(ErrUnknownPredictedKey, "linking: doc %s: %s", gold.DocID, k)
		}
	}

	predNeighbors := neighbors(pred)
	goldNeighbors := neighbors(gold)

	var sumP, sumR, sumF float64
	// Sorted iteration keeps the floating-point sums reproducible.
	for _, k := range goldKeys.Sorted() {
		pn, ok := predNeighbors[k]
		if !ok {
			continue
		}
		gn := goldNeighbors[k]
		if len(pn) == 0 && len(gn) == 0 {
			sumP++
			sumR++
			sumF++
			continue
		}
		tp := len(pn.Intersect(gn))
		fp := len(pn) - tp
		fn := len(gn) - tp
		p := ratio(tp, tp+fp)
		r := ratio(tp, tp+fn)
		sumP += p
		sumR += r
		sumF += harmonic(p, r)
	}

	s.Precision = sumP / float64(len(predKeys))
	s.Recall = sumR / float64(len(goldKeys))
	s.F1 = sumF / float64(len(goldKeys))
	return s, nil
}

// neighbors maps every clustered key to the other members of its cluster.
func neighbors(l EventArgumentLinking) map[eqclass.Key]eqclass.KeySet {
	out := make(map[eqclass.Key]eqclass.KeySet)
	for _, c := range l.Clusters {
		members := eqclass.NewKeySet(c...)
		for k := range members {
			out[k] = members.Minus(eqclass.NewKeySet(k))
		}
	}
	return out
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func harmonic(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}
