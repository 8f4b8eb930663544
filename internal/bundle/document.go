// Package bundle reads gold and system documents from JSON or YAML files and converts them
// into scorer inputs.
package bundle

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/eal-scorer/internal/assess"
	"github.com/sells-group/eal-scorer/internal/model"
	"github.com/sells-group/eal-scorer/internal/scorer"
)

// AssessedEntry is a gold mention with its judgment. A nil Assessment means the mention
// was not judged.
type AssessedEntry struct {
	Mention    model.ArgumentMention `json:"mention" yaml:"mention"`
	Assessment *model.Judgment       `json:"assessment,omitempty" yaml:"assessment,omitempty"`
}

// Linking is the file form of a response linking: each set is a list of mentions.
type Linking struct {
	Sets       [][]model.ArgumentMention `json:"sets" yaml:"sets"`
	Incomplete []model.ArgumentMention   `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`
}

// GoldDocument is the annotation of one document.
type GoldDocument struct {
	DocID       model.DocumentID        `json:"doc_id" yaml:"doc_id"`
	Assessed    []AssessedEntry         `json:"assessed" yaml:"assessed"`
	Unassessed  []model.ArgumentMention `json:"unassessed,omitempty" yaml:"unassessed,omitempty"`
	Coreference []model.CorefEntry      `json:"coreference,omitempty" yaml:"coreference,omitempty"`
	Linking     Linking                 `json:"linking" yaml:"linking"`
}

// SystemDocument is one system's output for one document.
type SystemDocument struct {
	DocID    model.DocumentID      `json:"doc_id" yaml:"doc_id"`
	Mentions []model.ScoredMention `json:"mentions" yaml:"mentions"`
	Linking  Linking               `json:"linking" yaml:"linking"`
}

// AnswerKey converts the gold document. With repair set, judgments that break a field
// dependency rule are repaired instead of rejected.
func (g *GoldDocument) AnswerKey(repair bool) (model.AnswerKey, assess.Report, error) {
	if g.DocID == "" {
		return model.AnswerKey{}, assess.Report{}, eris.New("bundle: gold document has no doc_id")
	}
	key := model.AnswerKey{DocID: g.DocID, Coreference: g.Coreference}
	var report assess.Report

	for i, e := range g.Assessed {
		m, err := mention(g.DocID, e.Mention)
		if err != nil {
			return model.AnswerKey{}, assess.Report{}, eris.Wrapf(err, "bundle: doc %s: assessed[%d]", g.DocID, i)
		}
		am, r, err := assess.Assess(m, e.Assessment, repair)
		if err != nil {
			return model.AnswerKey{}, assess.Report{}, eris.Wrapf(err, "bundle: doc %s: assessed[%d] %s", g.DocID, i, m.ID())
		}
		report = report.Merge(r)
		key.Assessed = append(key.Assessed, am)
	}
	for i, raw := range g.Unassessed {
		m, err := mention(g.DocID, raw)
		if err != nil {
			return model.AnswerKey{}, assess.Report{}, eris.Wrapf(err, "bundle: doc %s: unassessed[%d]", g.DocID, i)
		}
		key.Unassessed = append(key.Unassessed, m)
	}
	for i, c := range g.Coreference {
		if err := c.Span.Validate(); err != nil {
			return model.AnswerKey{}, assess.Report{}, eris.Wrapf(err, "bundle: doc %s: coreference[%d]", g.DocID, i)
		}
	}
	return key, report, nil
}

// ResponseLinking converts the gold linking.
func (g *GoldDocument) ResponseLinking() (model.ResponseLinking, error) {
	return g.Linking.convert(g.DocID)
}

// ScoredMentions converts the system mentions.
func (s *SystemDocument) ScoredMentions() ([]model.ScoredMention, error) {
	out := make([]model.ScoredMention, 0, len(s.Mentions))
	for i, sm := range s.Mentions {
		if math.IsNaN(sm.Confidence) || math.IsInf(sm.Confidence, 0) {
			return nil, eris.Errorf("bundle: doc %s: mentions[%d]: confidence %v is not finite", s.DocID, i, sm.Confidence)
		}
		m, err := mention(s.DocID, sm.Mention)
		if err != nil {
			return nil, eris.Wrapf(err, "bundle: doc %s: mentions[%d]", s.DocID, i)
		}
		out = append(out, model.ScoredMention{Mention: m, Confidence: sm.Confidence})
	}
	return out, nil
}

// ResponseLinking converts the system linking.
func (s *SystemDocument) ResponseLinking() (model.ResponseLinking, error) {
	return s.Linking.convert(s.DocID)
}

func (l Linking) convert(docID model.DocumentID) (model.ResponseLinking, error) {
	out := model.ResponseLinking{DocID: docID}
	for i, set := range l.Sets {
		rs := model.ResponseSet{Mentions: make([]model.ArgumentMention, 0, len(set))}
		for j, raw := range set {
			m, err := mention(docID, raw)
			if err != nil {
				return model.ResponseLinking{}, eris.Wrapf(err, "bundle: doc %s: linking set %d mention %d", docID, i, j)
			}
			rs.Mentions = append(rs.Mentions, m)
		}
		out.Sets = append(out.Sets, rs)
	}
	for i, raw := range l.Incomplete {
		m, err := mention(docID, raw)
		if err != nil {
			return model.ResponseLinking{}, eris.Wrapf(err, "bundle: doc %s: incomplete mention %d", docID, i)
		}
		out.Incomplete = append(out.Incomplete, m)
	}
	return out, nil
}

// mention fills a missing doc_id from the enclosing document and validates the mention.
func mention(docID model.DocumentID, m model.ArgumentMention) (model.ArgumentMention, error) {
	if m.DocID == "" {
		m.DocID = docID
	}
	return model.NewArgumentMention(m)
}

// Input pairs a gold document with a system document. A nil system document is scored as
// empty output with an empty linking.
func Input(gold *GoldDocument, system *SystemDocument, repair bool) (scorer.DocumentInput, assess.Report, error) {
	key, report, err := gold.AnswerKey(repair)
	if err != nil {
		return scorer.DocumentInput{}, assess.Report{}, err
	}
	goldLinking, err := gold.ResponseLinking()
	if err != nil {
		return scorer.DocumentInput{}, assess.Report{}, err
	}

	in := scorer.DocumentInput{
		AnswerKey:     key,
		GoldLinking:   goldLinking,
		SystemLinking: model.ResponseLinking{DocID: gold.DocID},
	}
	if system == nil {
		return in, report, nil
	}

	if system.DocID != gold.DocID {
		return scorer.DocumentInput{}, assess.Report{}, eris.Wrapf(model.ErrDocIDMismatch,
			"bundle: gold %s paired with system %s", gold.DocID, system.DocID)
	}
	if in.SystemMentions, err = system.ScoredMentions(); err != nil {
		return scorer.DocumentInput{}, assess.Report{}, err
	}
	if in.SystemLinking, err = system.ResponseLinking(); err != nil {
		return scorer.DocumentInput{}, assess.Report{}, err
	}
	return in, report, nil
}
