package scorer

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/eal-scorer/internal/alignment"
	"github.com/sells-group/eal-scorer/internal/config"
	"github.com/sells-group/eal-scorer/internal/eqclass"
	"github.com/sells-group/eal-scorer/internal/linking"
	"github.com/sells-group/eal-scorer/internal/model"
)

// DocumentInput is everything needed to score one document.
type DocumentInput struct {
	AnswerKey      model.AnswerKey
	SystemMentions []model.ScoredMention
	SystemLinking  model.ResponseLinking
	GoldLinking    model.ResponseLinking
}

// Result is the score of one document.
type Result struct {
	DocID     model.DocumentID     `json:"doc_id"`
	Alignment *alignment.Alignment `json:"alignment"`
	Argument  ArgumentScore        `json:"argument"`

	Linking          linking.Score                `json:"linking"`
	PredictedLinking linking.EventArgumentLinking `json:"predicted_linking"`
	GoldLinking      linking.EventArgumentLinking `json:"gold_linking"`

	// ScaledLinking is the document linking F1; UnscaledLinking is F1 times the number
	// of gold linkable classes (LinkingNormalizer).
	ScaledLinking     float64 `json:"scaled_linking"`
	UnscaledLinking   float64 `json:"unscaled_linking"`
	LinkingNormalizer int     `json:"linking_normalizer"`

	Combined float64 `json:"combined"`
}

// Record flattens r for persistence and export.
func (r *Result) Record() model.DocumentScore {
	return model.DocumentScore{
		DocID:              r.DocID,
		TruePositives:      r.Argument.TruePositives,
		FalsePositives:     r.Argument.FalsePositives,
		FalseNegatives:     r.Argument.FalseNegatives,
		Unassessed:         r.Argument.Unassessed,
		UnscaledArgument:   r.Argument.Unscaled,
		ScaledArgument:     r.Argument.Scaled,
		ArgumentNormalizer: r.Argument.Normalizer,
		LinkingPrecision:   r.Linking.Precision,
		LinkingRecall:      r.Linking.Recall,
		UnscaledLinking:    r.UnscaledLinking,
		ScaledLinking:      r.ScaledLinking,
		LinkingNormalizer:  r.LinkingNormalizer,
		Combined:           r.Combined,
	}
}

// Combine weights the scaled argument and linking scores: (1-lambda)*arg + lambda*link.
func Combine(argument, link, lambda float64) float64 {
	return (1-lambda)*argument + lambda*link
}

// EALScorer scores documents under one configuration. It holds no per-document state and
// is safe for concurrent use.
type EALScorer struct {
	cfg      config.ScoringConfig
	policy   alignment.Policy
	excluded []model.Realis
}

// NewEALScorer validates cfg and returns a scorer.
func NewEALScorer(cfg config.ScoringConfig) (*EALScorer, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	policy := alignment.PolicyLenient
	if cfg.Strict {
		policy = alignment.PolicyStrict
	}
	return &EALScorer{cfg: cfg, policy: policy, excluded: ExcludedRealis(cfg)}, nil
}

// Config returns the scoring configuration.
func (s *EALScorer) Config() config.ScoringConfig {
	return s.cfg
}

// Normalizer builds the CAS normalizer for one answer key.
func (s *EALScorer) Normalizer(key model.AnswerKey) eqclass.Normalizer {
	var n eqclass.Normalizer = eqclass.IdentityNormalizer{}
	if s.cfg.Normalizer == NormalizerCoreference {
		n = eqclass.NewCoreferenceNormalizer(key)
	}
	if s.cfg.FoldCase {
		n = eqclass.FoldingNormalizer{Next: n}
	}
	return n
}

// ScoreDocument aligns, scores and combines one document. Any precondition violation
// aborts the document with no partial result.
func (s *EALScorer) ScoreDocument(in DocumentInput) (*Result, error) {
	docID := in.AnswerKey.DocID
	n := s.Normalizer(in.AnswerKey)

	a, err := alignment.NewAligner(n, s.policy).Align(in.AnswerKey, in.SystemMentions)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: align %s", docID)
	}
	arg := ScoreArguments(a, s.cfg.Beta)

	pred, gold, err := linking.NewAligner(n, s.excluded...).Align(a, in.SystemLinking, in.GoldLinking)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: align linking %s", docID)
	}
	link, err := linking.ScorePairwise(pred, gold)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: score linking %s", docID)
	}

	return &Result{
		DocID:             docID,
		Alignment:         a,
		Argument:          arg,
		Linking:           link,
		PredictedLinking:  pred,
		GoldLinking:       gold,
		ScaledLinking:     link.F1,
		UnscaledLinking:   link.F1 * float64(link.GoldItems),
		LinkingNormalizer: link.GoldItems,
		Combined:          Combine(arg.Scaled, link.F1, s.cfg.Lambda),
	}, nil
}
