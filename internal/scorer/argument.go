package scorer

import "github.com/sells-group/eal-scorer/internal/alignment"

// ArgumentScore is the argument-extraction score of one document.
type ArgumentScore struct {
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	FalseNegatives int `json:"false_negatives"`
	Unassessed     int `json:"unassessed"`

	// Unscaled is |TP| - beta*|FP|.
	Unscaled float64 `json:"unscaled"`
	// Normalizer is |TP ∪ FN|, the number of correct gold classes.
	Normalizer int `json:"normalizer"`
	// Scaled is Unscaled/Normalizer floored at -beta, or 0 when Normalizer is 0.
	Scaled float64 `json:"scaled"`
}

// Defined reports whether the document has gold classes to normalize by. Documents
// without them score 0 and are left out of macro averages.
func (s ArgumentScore) Defined() bool {
	return s.Normalizer > 0
}

// ScoreArguments scores an alignment. Unassessed classes never count.
func ScoreArguments(a *alignment.Alignment, beta float64) ArgumentScore {
	s := ArgumentScore{
		TruePositives:  len(a.TruePositives),
		FalsePositives: len(a.FalsePositives),
		FalseNegatives: len(a.FalseNegatives),
		Unassessed:     len(a.Unassessed),
		Normalizer:     len(a.Scorable()),
	}
	s.Unscaled = float64(s.TruePositives) - beta*float64(s.FalsePositives)
	if s.Normalizer > 0 {
		s.Scaled = max(s.Unscaled/float64(s.Normalizer), -beta)
	}
	return s
}
