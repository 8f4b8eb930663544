package corpus

import (
	"maps"

	"github.com/sells-group/eal-scorer/internal/eqclass"
	"github.com/sells-group/eal-scorer/internal/model"
	"github.com/sells-group/eal-scorer/internal/scorer"
)

// Aggregate sums per-document counts and scores. The zero value is the empty aggregate;
// Add and Merge never modify their receiver, and Merge is commutative and associative, so
// partial aggregates from any partition of the corpus combine to the same total.
type Aggregate struct {
	Documents      int
	MacroDocuments int
	Failed         int

	TruePositives  int
	FalsePositives int
	FalseNegatives int
	Unassessed     int

	UnscaledArgument   float64
	ArgumentNormalizer int
	UnscaledLinking    float64
	LinkingNormalizer  int

	// Sums of per-document scaled scores over documents with gold classes.
	MacroArgument float64
	MacroLinking  float64
	MacroCombined float64

	ByEventType map[string]model.EventTypeCounts
}

// Add returns a with r folded in.
func (a Aggregate) Add(r *scorer.Result) Aggregate {
	b := Aggregate{
		Documents:          1,
		TruePositives:      r.Argument.TruePositives,
		FalsePositives:     r.Argument.FalsePositives,
		FalseNegatives:     r.Argument.FalseNegatives,
		Unassessed:         r.Argument.Unassessed,
		UnscaledArgument:   r.Argument.Unscaled,
		ArgumentNormalizer: r.Argument.Normalizer,
		UnscaledLinking:    r.UnscaledLinking,
		LinkingNormalizer:  r.LinkingNormalizer,
		ByEventType:        eventTypeCounts(r),
	}
	if r.Argument.Defined() {
		b.MacroDocuments = 1
		b.MacroArgument = r.Argument.Scaled
		b.MacroLinking = r.ScaledLinking
		b.MacroCombined = r.Combined
	}
	return a.Merge(b)
}

// AddFailure returns a with one more failed document.
func (a Aggregate) AddFailure() Aggregate {
	return a.Merge(Aggregate{Failed: 1})
}

// Merge returns the sum of a and o.
func (a Aggregate) Merge(o Aggregate) Aggregate {
	out := Aggregate{
		Documents:          a.Documents + o.Documents,
		MacroDocuments:     a.MacroDocuments + o.MacroDocuments,
		Failed:             a.Failed + o.Failed,
		TruePositives:      a.TruePositives + o.TruePositives,
		FalsePositives:     a.FalsePositives + o.FalsePositives,
		FalseNegatives:     a.FalseNegatives + o.FalseNegatives,
		Unassessed:         a.Unassessed + o.Unassessed,
		UnscaledArgument:   a.UnscaledArgument + o.UnscaledArgument,
		ArgumentNormalizer: a.ArgumentNormalizer + o.ArgumentNormalizer,
		UnscaledLinking:    a.UnscaledLinking + o.UnscaledLinking,
		LinkingNormalizer:  a.LinkingNormalizer + o.LinkingNormalizer,
		MacroArgument:      a.MacroArgument + o.MacroArgument,
		MacroLinking:       a.MacroLinking + o.MacroLinking,
		MacroCombined:      a.MacroCombined + o.MacroCombined,
	}
	if len(a.ByEventType)+len(o.ByEventType) > 0 {
		out.ByEventType = maps.Clone(a.ByEventType)
		if out.ByEventType == nil {
			out.ByEventType = make(map[string]model.EventTypeCounts, len(o.ByEventType))
		}
		for et, c := range o.ByEventType {
			cur := out.ByEventType[et]
			cur.TruePositives += c.TruePositives
			cur.FalsePositives += c.FalsePositives
			cur.FalseNegatives += c.FalseNegatives
			out.ByEventType[et] = cur
		}
	}
	return out
}

// Summary computes micro scores (ratios of sums) and macro scores (means over documents
// with gold classes). Micro combined uses lambda; macro combined averages the per-document
// combined scores.
//
// Only per-document scaled argument scores are floored at -beta. MicroArgument is the raw
// ratio of summed unscaled scores to summed normalizers and goes below -beta when false
// positives outweigh the corpus's gold classes.
func (a Aggregate) Summary(lambda float64) model.CorpusSummary {
	s := model.CorpusSummary{
		Documents:      a.Documents,
		MacroDocuments: a.MacroDocuments,
		Failed:         a.Failed,
		TruePositives:  a.TruePositives,
		FalsePositives: a.FalsePositives,
		FalseNegatives: a.FalseNegatives,
		Unassessed:     a.Unassessed,
		ByEventType:    maps.Clone(a.ByEventType),
	}
	if a.ArgumentNormalizer > 0 {
		s.MicroArgument = a.UnscaledArgument / float64(a.ArgumentNormalizer)
	}
	if a.LinkingNormalizer > 0 {
		s.MicroLinking = a.UnscaledLinking / float64(a.LinkingNormalizer)
	}
	s.MicroCombined = scorer.Combine(s.MicroArgument, s.MicroLinking, lambda)
	if a.MacroDocuments > 0 {
		n := float64(a.MacroDocuments)
		s.MacroArgument = a.MacroArgument / n
		s.MacroLinking = a.MacroLinking / n
		s.MacroCombined = a.MacroCombined / n
	}
	return s
}

func eventTypeCounts(r *scorer.Result) map[string]model.EventTypeCounts {
	if r.Alignment == nil {
		return nil
	}
	out := make(map[string]model.EventTypeCounts)
	bump := func(keys eqclass.KeySet, f func(*model.EventTypeCounts)) {
		for k := range keys {
			c := out[k.EventType]
			f(&c)
			out[k.EventType] = c
		}
	}
	bump(r.Alignment.TruePositives, func(c *model.EventTypeCounts) { c.TruePositives++ })
	bump(r.Alignment.FalsePositives, func(c *model.EventTypeCounts) { c.FalsePositives++ })
	bump(r.Alignment.FalseNegatives, func(c *model.EventTypeCounts) { c.FalseNegatives++ })
	return out
}
