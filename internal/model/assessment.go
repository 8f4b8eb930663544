package model

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidJudgment is returned when a judgment violates a field-dependency rule.
var ErrInvalidJudgment = eris.New("model: invalid judgment")

// FieldAssessment is an assessor's verdict on one field of a mention. The zero value
// means the field was not judged.
type FieldAssessment string

const (
	FieldCorrect   FieldAssessment = "correct"
	FieldIncorrect FieldAssessment = "incorrect"
	FieldInexact   FieldAssessment = "inexact"
)

// IsAcceptable reports whether the verdict counts toward correctness. Inexact
// justifications are acceptable.
func (f FieldAssessment) IsAcceptable() bool {
	return f == FieldCorrect || f == FieldInexact
}

// MentionType is the assessor's classification of the argument's surface form.
type MentionType string

const (
	MentionTypeName    MentionType = "name"
	MentionTypeNominal MentionType = "nominal"
)

// JudgmentField names one field of a Judgment.
type JudgmentField string

const (
	JudgedEventType   JudgmentField = "event_type"
	JudgedRole        JudgmentField = "role"
	JudgedCAS         JudgmentField = "cas"
	JudgedRealis      JudgmentField = "realis"
	JudgedBaseFiller  JudgmentField = "base_filler"
	JudgedMentionType JudgmentField = "mention_type"
)

// FieldRule states that Field may only be judged when Requires was judged acceptable.
// When Required is set the field must also be present whenever Requires is acceptable.
// A rule with an empty Requires applies unconditionally.
type FieldRule struct {
	Field    JudgmentField
	Requires JudgmentField
	Required bool
}

// JudgmentRules is the field-dependency table for judgments, in dependency order: a rule
// only refers to fields constrained by earlier rules.
var JudgmentRules = []FieldRule{
	{Field: JudgedEventType, Required: true},
	{Field: JudgedRole, Requires: JudgedEventType, Required: true},
	{Field: JudgedCAS, Requires: JudgedRole, Required: true},
	{Field: JudgedRealis, Requires: JudgedRole},
	{Field: JudgedBaseFiller, Requires: JudgedCAS, Required: true},
	{Field: JudgedMentionType, Requires: JudgedCAS},
}

// ViolationKind distinguishes an absent required field from a present forbidden one.
type ViolationKind string

const (
	ViolationMissing ViolationKind = "missing"
	ViolationExtra   ViolationKind = "extra"
)

// Violation is one broken FieldRule.
type Violation struct {
	Rule FieldRule
	Kind ViolationKind
}

func (v Violation) String() string {
	if v.Rule.Requires == "" {
		return fmt.Sprintf("%s %s", v.Kind, v.Rule.Field)
	}
	return fmt.Sprintf("%s %s (requires acceptable %s)", v.Kind, v.Rule.Field, v.Rule.Requires)
}

// Judgment is the bundle of assessor verdicts for one mention.
type Judgment struct {
	EventType   FieldAssessment `json:"event_type" yaml:"event_type"`
	Role        FieldAssessment `json:"role,omitempty" yaml:"role,omitempty"`
	CAS         FieldAssessment `json:"cas,omitempty" yaml:"cas,omitempty"`
	Realis      Realis          `json:"realis,omitempty" yaml:"realis,omitempty"`
	BaseFiller  FieldAssessment `json:"base_filler,omitempty" yaml:"base_filler,omitempty"`
	MentionType MentionType     `json:"mention_type,omitempty" yaml:"mention_type,omitempty"`
}

// NewJudgment canonicalizes j and validates it against JudgmentRules.
func NewJudgment(j Judgment) (Judgment, error) {
	j, err := j.Canonical()
	if err != nil {
		return Judgment{}, err
	}
	if vs := j.Violations(); len(vs) > 0 {
		parts := make([]string, len(vs))
		for i, v := range vs {
			parts[i] = v.String()
		}
		return Judgment{}, eris.Wrap(ErrInvalidJudgment, strings.Join(parts, "; "))
	}
	return j, nil
}

// Canonical returns j with every verdict lowercased and trimmed. Unknown values are
// rejected with ErrInvalidJudgment.
func (j Judgment) Canonical() (Judgment, error) {
	for _, f := range []JudgmentField{JudgedEventType, JudgedRole, JudgedCAS, JudgedBaseFiller} {
		v := FieldAssessment(canonicalValue(string(j.field(f))))
		switch v {
		case "", FieldCorrect, FieldIncorrect, FieldInexact:
		default:
			return Judgment{}, eris.Wrapf(ErrInvalidJudgment, "unknown %s verdict %q", f, j.field(f))
		}
		j = j.WithField(f, v)
	}
	if j.Realis != "" {
		r, err := ParseRealis(string(j.Realis))
		if err != nil {
			return Judgment{}, eris.Wrapf(ErrInvalidJudgment, "unknown realis %q", j.Realis)
		}
		j.Realis = r
	}
	switch mt := MentionType(canonicalValue(string(j.MentionType))); mt {
	case "", MentionTypeName, MentionTypeNominal:
		j.MentionType = mt
	default:
		return Judgment{}, eris.Wrapf(ErrInvalidJudgment, "unknown mention type %q", j.MentionType)
	}
	return j, nil
}

func canonicalValue(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Violations checks j against every rule in JudgmentRules.
func (j Judgment) Violations() []Violation {
	var out []Violation
	for _, r := range JudgmentRules {
		allowed := r.Requires == "" || j.Acceptable(r.Requires)
		present := j.Present(r.Field)
		switch {
		case allowed && r.Required && !present:
			out = append(out, Violation{Rule: r, Kind: ViolationMissing})
		case !allowed && present:
			out = append(out, Violation{Rule: r, Kind: ViolationExtra})
		}
	}
	return out
}

// Present reports whether field f carries a verdict.
func (j Judgment) Present(f JudgmentField) bool {
	switch f {
	case JudgedRealis:
		return j.Realis != ""
	case JudgedMentionType:
		return j.MentionType != ""
	default:
		return j.field(f) != ""
	}
}

// Acceptable reports whether field f was judged acceptable. Realis and mention type
// are acceptable whenever present.
func (j Judgment) Acceptable(f JudgmentField) bool {
	switch f {
	case JudgedRealis, JudgedMentionType:
		return j.Present(f)
	default:
		return j.field(f).IsAcceptable()
	}
}

// WithField returns a copy of j with an assessment-valued field set to v.
func (j Judgment) WithField(f JudgmentField, v FieldAssessment) Judgment {
	switch f {
	case JudgedEventType:
		j.EventType = v
	case JudgedRole:
		j.Role = v
	case JudgedCAS:
		j.CAS = v
	case JudgedBaseFiller:
		j.BaseFiller = v
	}
	return j
}

// Without returns a copy of j with field f cleared.
func (j Judgment) Without(f JudgmentField) Judgment {
	switch f {
	case JudgedRealis:
		j.Realis = ""
	case JudgedMentionType:
		j.MentionType = ""
	default:
		j = j.WithField(f, "")
	}
	return j
}

func (j Judgment) field(f JudgmentField) FieldAssessment {
	switch f {
	case JudgedEventType:
		return j.EventType
	case JudgedRole:
		return j.Role
	case JudgedCAS:
		return j.CAS
	case JudgedBaseFiller:
		return j.BaseFiller
	}
	return ""
}

// CorrectFor reports whether the judgment makes m a correct answer: event type, role,
// CAS and base filler acceptable and the judged realis equal to the mention's realis.
func (j Judgment) CorrectFor(m ArgumentMention) bool {
	return j.EventType.IsAcceptable() &&
		j.Role.IsAcceptable() &&
		j.CAS.IsAcceptable() &&
		j.BaseFiller.IsAcceptable() &&
		j.Realis != "" && j.Realis == m.Realis
}

// Assessment is either unjudged or carries a validated Judgment.
type Assessment struct {
	judgment *Judgment
}

// Unjudged returns the assessment of a mention the assessors did not judge.
func Unjudged() Assessment {
	return Assessment{}
}

// Judged wraps a validated judgment.
func Judged(j Judgment) (Assessment, error) {
	v, err := NewJudgment(j)
	if err != nil {
		return Assessment{}, err
	}
	return Assessment{judgment: &v}, nil
}

// Judgment returns the judgment and true, or false for an unjudged assessment.
func (a Assessment) Judgment() (Judgment, bool) {
	if a.judgment == nil {
		return Judgment{}, false
	}
	return *a.judgment, true
}

// IsJudged reports whether a judgment is present.
func (a Assessment) IsJudged() bool {
	return a.judgment != nil
}

// AssessedMention pairs a gold mention with its assessment.
type AssessedMention struct {
	Mention    ArgumentMention
	Assessment Assessment
}

// IsCorrect reports whether the mention was judged fully correct.
func (am AssessedMention) IsCorrect() bool {
	j, ok := am.Assessment.Judgment()
	return ok && j.CorrectFor(am.Mention)
}
