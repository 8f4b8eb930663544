// Package alignment partitions a document's gold and system equivalence classes into true
// positives, false positives, false negatives and unassessed classes.
package alignment

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/eal-scorer/internal/eqclass"
	"github.com/sells-group/eal-scorer/internal/model"
)

// ErrUnassessedClass is returned under PolicyStrict when the system produced a class the
// assessors never judged.
var ErrUnassessedClass = eris.New("alignment: unassessed equivalence class")

// Policy decides what happens to system classes that only unassessed gold mentions support.
type Policy string

const (
	// PolicyLenient excludes unassessed classes from every score bucket.
	PolicyLenient Policy = "lenient"
	// PolicyStrict fails the document.
	PolicyStrict Policy = "strict"
)

// Alignment is the per-document partition of equivalence classes, with the mentions that
// produced each class.
type Alignment struct {
	DocID model.DocumentID

	TruePositives  eqclass.KeySet
	FalsePositives eqclass.KeySet
	FalseNegatives eqclass.KeySet
	Unassessed     eqclass.KeySet

	GoldCorrect    eqclass.KeySet
	GoldUnassessed eqclass.KeySet
	System         eqclass.KeySet

	GoldMentions    map[eqclass.Key][]model.ArgumentMention
	SystemMentions  map[eqclass.Key][]model.ScoredMention
	Representatives map[eqclass.Key]model.ScoredMention
}

// Scorable returns TP ∪ FN, the classes the argument normalizer counts.
func (a *Alignment) Scorable() eqclass.KeySet {
	return a.TruePositives.Union(a.FalseNegatives)
}

// Covered returns the union of the four partition sets.
func (a *Alignment) Covered() eqclass.KeySet {
	return a.TruePositives.Union(a.FalsePositives).Union(a.FalseNegatives).Union(a.Unassessed)
}

// Representative is the system mention chosen for one class.
type Representative struct {
	Key     eqclass.Key         `json:"key"`
	Mention model.ScoredMention `json:"mention"`
}

// SortedRepresentatives returns the representative of every system class, ordered by key.
func (a *Alignment) SortedRepresentatives() []Representative {
	out := make([]Representative, 0, len(a.System))
	for _, k := range a.System.Sorted() {
		out = append(out, Representative{Key: k, Mention: a.Representatives[k]})
	}
	return out
}

// MarshalJSON renders the partition as sorted key lists, with the representative
// mention of each system class.
func (a *Alignment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DocID           model.DocumentID `json:"doc_id"`
		TruePositives   []eqclass.Key    `json:"true_positives"`
		FalsePositives  []eqclass.Key    `json:"false_positives"`
		FalseNegatives  []eqclass.Key    `json:"false_negatives"`
		Unassessed      []eqclass.Key    `json:"unassessed"`
		Representatives []Representative `json:"representatives"`
	}{
		DocID:           a.DocID,
		TruePositives:   a.TruePositives.Sorted(),
		FalsePositives:  a.FalsePositives.Sorted(),
		FalseNegatives:  a.FalseNegatives.Sorted(),
		Unassessed:      a.Unassessed.Sorted(),
		Representatives: a.SortedRepresentatives(),
	})
}

// Aligner aligns answer keys with system output under one normalizer and policy.
type Aligner struct {
	normalizer eqclass.Normalizer
	policy     Policy
}

// NewAligner returns an Aligner. A nil normalizer means identity.
func NewAligner(n eqclass.Normalizer, policy Policy) *Aligner {
	if n == nil {
		n = eqclass.IdentityNormalizer{}
	}
	if policy == "" {
		policy = PolicyLenient
	}
	return &Aligner{normalizer: n, policy: policy}
}

// Normalizer returns the normalizer keys are classified with.
func (al *Aligner) Normalizer() eqclass.Normalizer {
	return al.normalizer
}

// Align classifies gold and system mentions and partitions the resulting keys. System
// mentions may be raw; they are deduplicated here.
func (al *Aligner) Align(key model.AnswerKey, system []model.ScoredMention) (*Alignment, error) {
	if err := key.Validate(); err != nil {
		return nil, eris.Wrap(err, "alignment: validate answer key")
	}
	for _, sm := range system {
		if sm.Mention.DocID != key.DocID {
			return nil, eris.Wrapf(model.ErrDocIDMismatch,
				"alignment: doc %s: system mention %s", key.DocID, sm.Mention.ID())
		}
	}

	a := &Alignment{
		DocID:          key.DocID,
		GoldCorrect:    make(eqclass.KeySet),
		System:         make(eqclass.KeySet),
		GoldMentions:   make(map[eqclass.Key][]model.ArgumentMention),
		SystemMentions: make(map[eqclass.Key][]model.ScoredMention),
	}

	judged := make(eqclass.KeySet)
	unjudged := make(eqclass.KeySet)
	for _, am := range key.Assessed {
		k := eqclass.Classify(am.Mention, al.normalizer)
		a.GoldMentions[k] = append(a.GoldMentions[k], am.Mention)
		switch {
		case am.IsCorrect():
			a.GoldCorrect.Add(k)
			judged.Add(k)
		case am.Assessment.IsJudged():
			judged.Add(k)
		default:
			unjudged.Add(k)
		}
	}
	for _, m := range key.Unassessed {
		k := eqclass.Classify(m, al.normalizer)
		a.GoldMentions[k] = append(a.GoldMentions[k], m)
		unjudged.Add(k)
	}
	// A class is unassessed only when no mention of it carries a judgment.
	a.GoldUnassessed = unjudged.Minus(judged)

	for _, sm := range system {
		k := eqclass.Classify(sm.Mention, al.normalizer)
		a.SystemMentions[k] = append(a.SystemMentions[k], sm)
	}
	deduped := eqclass.Deduplicate(system, al.normalizer)
	a.Representatives = make(map[eqclass.Key]model.ScoredMention, len(deduped))
	for _, sm := range deduped {
		k := eqclass.Classify(sm.Mention, al.normalizer)
		a.Representatives[k] = sm
		a.System.Add(k)
	}

	a.TruePositives = a.GoldCorrect.Intersect(a.System)
	a.FalseNegatives = a.GoldCorrect.Minus(a.System)
	a.FalsePositives = a.System.Minus(a.GoldCorrect).Minus(a.GoldUnassessed)
	a.Unassessed = a.System.Intersect(a.GoldUnassessed)

	if al.policy == PolicyStrict && len(a.Unassessed) > 0 {
		first := a.Unassessed.Sorted()[0]
		return nil, eris.Wrapf(ErrUnassessedClass, "alignment: doc %s: %d unassessed classes, first %s",
			key.DocID, len(a.Unassessed), first)
	}
	return a, nil
}
