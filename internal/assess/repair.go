// Package assess repairs assessor judgments that break the field-dependency rules in
// model.JudgmentRules.
package assess

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/eal-scorer/internal/model"
)

// Fix records one change made by Repair.
type Fix struct {
	MentionID string              `json:"mention_id,omitempty"`
	Field     model.JudgmentField `json:"field"`
	Kind      model.ViolationKind `json:"kind"`
}

// Report lists the fixes applied by a repair pass.
type Report struct {
	Fixes []Fix `json:"fixes"`
}

// Empty reports whether no fixes were applied.
func (r Report) Empty() bool {
	return len(r.Fixes) == 0
}

// Merge returns a report holding the fixes of r followed by those of o.
func (r Report) Merge(o Report) Report {
	out := make([]Fix, 0, len(r.Fixes)+len(o.Fixes))
	out = append(out, r.Fixes...)
	return Report{Fixes: append(out, o.Fixes...)}
}

// Counts tallies fixes by violation kind.
func (r Report) Counts() map[model.ViolationKind]int {
	out := make(map[model.ViolationKind]int)
	for _, f := range r.Fixes {
		out[f.Kind]++
	}
	return out
}

// Repair walks model.JudgmentRules in order and returns a judgment that satisfies all of
// them, plus the fixes it made. Fields judged without an acceptable dependency are
// dropped. Required fields left unjudged are filled as incorrect, which in turn forbids
// every field that depends on them.
func Repair(j model.Judgment) (model.Judgment, Report) {
	var rep Report
	for _, r := range model.JudgmentRules {
		allowed := r.Requires == "" || j.Acceptable(r.Requires)
		present := j.Present(r.Field)
		switch {
		case allowed && r.Required && !present:
			j = j.WithField(r.Field, model.FieldIncorrect)
			rep.Fixes = append(rep.Fixes, Fix{Field: r.Field, Kind: model.ViolationMissing})
		case !allowed && present:
			j = j.Without(r.Field)
			rep.Fixes = append(rep.Fixes, Fix{Field: r.Field, Kind: model.ViolationExtra})
		}
	}
	return j, rep
}

// Assess builds the assessed form of m. A nil judgment yields an unjudged assessment.
// With repair set, an invalid judgment is repaired and the fixes are reported against m;
// otherwise it is rejected with model.ErrInvalidJudgment.
func Assess(m model.ArgumentMention, j *model.Judgment, repair bool) (model.AssessedMention, Report, error) {
	if j == nil {
		return model.AssessedMention{Mention: m, Assessment: model.Unjudged()}, Report{}, nil
	}

	jj, err := j.Canonical()
	if err != nil {
		return model.AssessedMention{}, Report{}, eris.Wrapf(err, "assess: mention %s", m.ID())
	}
	var rep Report
	if repair {
		jj, rep = Repair(jj)
		id := m.ID()
		for i := range rep.Fixes {
			rep.Fixes[i].MentionID = id
		}
	}

	a, err := model.Judged(jj)
	if err != nil {
		return model.AssessedMention{}, rep, err
	}
	return model.AssessedMention{Mention: m, Assessment: a}, rep, nil
}
