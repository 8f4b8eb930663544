// Package linking lifts mention-level event frames to equivalence-class clusterings and
// scores a predicted clustering against the gold one with pairwise-neighbor F1.
package linking

import (
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/eal-scorer/internal/alignment"
	"github.com/sells-group/eal-scorer/internal/eqclass"
	"github.com/sells-group/eal-scorer/internal/model"
)

var (
	// ErrIncompleteLinking is returned when a linking still has unplaced mentions.
	ErrIncompleteLinking = eris.New("linking: incomplete response linking")
	// ErrDuplicateClusterKey is returned when one class appears in two clusters of one side.
	ErrDuplicateClusterKey = eris.New("linking: class in more than one cluster")
)

// EventArgumentLinking is a partition of equivalence classes into event frames.
type EventArgumentLinking struct {
	DocID      model.DocumentID `json:"doc_id"`
	Clusters   [][]eqclass.Key  `json:"clusters"`
	Incomplete []eqclass.Key    `json:"incomplete,omitempty"`
}

// Keys returns every clustered key.
func (l EventArgumentLinking) Keys() eqclass.KeySet {
	out := make(eqclass.KeySet)
	for _, c := range l.Clusters {
		for _, k := range c {
			out.Add(k)
		}
	}
	return out
}

// LinkedAsSetOfSets returns the clusters as key sets.
func (l EventArgumentLinking) LinkedAsSetOfSets() []eqclass.KeySet {
	out := make([]eqclass.KeySet, len(l.Clusters))
	for i, c := range l.Clusters {
		out[i] = eqclass.NewKeySet(c...)
	}
	return out
}

// Filter returns a copy keeping only keys in keep. Clusters left empty are dropped.
func (l EventArgumentLinking) Filter(keep eqclass.KeySet) EventArgumentLinking {
	out := EventArgumentLinking{DocID: l.DocID}
	for _, c := range l.Clusters {
		var kept []eqclass.Key
		for _, k := range c {
			if keep.Contains(k) {
				kept = append(kept, k)
			}
		}
		if len(kept) > 0 {
			out.Clusters = append(out.Clusters, kept)
		}
	}
	for _, k := range l.Incomplete {
		if keep.Contains(k) {
			out.Incomplete = append(out.Incomplete, k)
		}
	}
	return out
}

// Aligner converts response linkings to linkable equivalence-class clusterings.
type Aligner struct {
	normalizer eqclass.Normalizer
	excluded   map[model.Realis]struct{}
}

// NewAligner returns an Aligner that classifies with n (identity when nil) and excludes
// classes whose realis is in excluded from linking.
func NewAligner(n eqclass.Normalizer, excluded ...model.Realis) *Aligner {
	if n == nil {
		n = eqclass.IdentityNormalizer{}
	}
	ex := make(map[model.Realis]struct{}, len(excluded))
	for _, r := range excluded {
		ex[r] = struct{}{}
	}
	return &Aligner{normalizer: n, excluded: ex}
}

// Linkable returns TP ∪ FN of the alignment without classes of an excluded realis.
func (la *Aligner) Linkable(a *alignment.Alignment) eqclass.KeySet {
	out := make(eqclass.KeySet)
	for k := range a.Scorable() {
		if _, skip := la.excluded[k.Realis]; !skip {
			out.Add(k)
		}
	}
	return out
}

// Align lifts the system and gold linkings of a document to equivalence classes restricted
// to the linkable classes of a. It returns the predicted and the gold clustering.
func (la *Aligner) Align(a *alignment.Alignment, system, gold model.ResponseLinking) (EventArgumentLinking, EventArgumentLinking, error) {
	if system.DocID != a.DocID {
		return EventArgumentLinking{}, EventArgumentLinking{}, eris.Wrapf(model.ErrDocIDMismatch,
			"linking: system linking for %s, answer key for %s", system.DocID, a.DocID)
	}
	if gold.DocID != a.DocID {
		return EventArgumentLinking{}, EventArgumentLinking{}, eris.Wrapf(model.ErrDocIDMismatch,
			"linking: gold linking for %s, answer key for %s", gold.DocID, a.DocID)
	}

	pred, err := la.lift(system, "system")
	if err != nil {
		return EventArgumentLinking{}, EventArgumentLinking{}, err
	}
	ref, err := la.lift(gold, "gold")
	if err != nil {
		return EventArgumentLinking{}, EventArgumentLinking{}, err
	}

	linkable := la.Linkable(a)
	return pred.Filter(linkable), ref.Filter(linkable), nil
}

func (la *Aligner) lift(l model.ResponseLinking, side string) (EventArgumentLinking, error) {
	if len(l.Incomplete) > 0 {
		return EventArgumentLinking{}, eris.Wrapf(ErrIncompleteLinking, "linking: doc %s: %s linking has %d unplaced mentions, first %s",
			l.DocID, side, len(l.Incomplete), l.Incomplete[0].ID())
	}

	out := EventArgumentLinking{DocID: l.DocID}
	owner := make(map[eqclass.Key]int)
	for i, set := range l.Sets {
		cluster := make(eqclass.KeySet)
		for _, m := range set.Mentions {
			if m.DocID != l.DocID {
				return EventArgumentLinking{}, eris.Wrapf(model.ErrDocIDMismatch,
					"linking: doc %s: %s mention %s", l.DocID, side, m.ID())
			}
			k := eqclass.Classify(m, la.normalizer)
			if prev, ok := owner[k]; ok && prev != i {
				return EventArgumentLinking{}, eris.Wrapf(ErrDuplicateClusterKey, "linking: doc %s: %s class %s in sets %d and %d",
					l.DocID, side, k, prev, i)
			}
			owner[k] = i
			cluster.Add(k)
		}
		out.Clusters = append(out.Clusters, cluster.Sorted())
	}
	slices.SortFunc(out.Clusters, compareClusters)
	return out, nil
}

func compareClusters(a, b []eqclass.Key) int {
	return slices.CompareFunc(a, b, eqclass.Compare)
}
