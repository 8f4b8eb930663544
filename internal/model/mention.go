package model

import (
	"cmp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrDocIDMismatch is returned when inputs that must describe the same document disagree on its ID.
var ErrDocIDMismatch = eris.New("model: document id mismatch")

// DocumentID identifies a document. All mentions, keys and linkings are scoped to one document.
type DocumentID string

// Realis records whether a mention denotes an actual occurrence, a generic statement,
// or some other non-actual status.
type Realis string

const (
	RealisActual  Realis = "actual"
	RealisGeneric Realis = "generic"
	RealisOther   Realis = "other"
)

// ParseRealis parses a realis name case-insensitively.
func ParseRealis(s string) (Realis, error) {
	switch r := Realis(strings.ToLower(strings.TrimSpace(s))); r {
	case RealisActual, RealisGeneric, RealisOther:
		return r, nil
	default:
		return "", eris.Errorf("model: unknown realis %q", s)
	}
}

// ArgumentMention is one extracted event-argument assertion: an event type, the role an
// argument plays in it, the canonical argument string (CAS) filling that role, and the
// spans justifying it.
//
// Mentions are value objects. Build them with NewArgumentMention so that the justification
// span sets are canonical; equality, set membership and tie-breaking all use ID and
// CompareMentions, never object identity.
type ArgumentMention struct {
	DocID                    DocumentID `json:"doc_id" yaml:"doc_id"`
	EventType                string     `json:"event_type" yaml:"event_type"`
	Role                     string     `json:"role" yaml:"role"`
	CAS                      string     `json:"cas" yaml:"cas"`
	CASSpan                  CharSpan   `json:"cas_span" yaml:"cas_span"`
	BaseFillerSpan           CharSpan   `json:"base_filler_span" yaml:"base_filler_span"`
	PredicateJustifications  []CharSpan `json:"predicate_justifications" yaml:"predicate_justifications"`
	AdditionalJustifications []CharSpan `json:"additional_justifications,omitempty" yaml:"additional_justifications,omitempty"`
	Realis                   Realis     `json:"realis" yaml:"realis"`
}

// NewArgumentMention validates m and returns a copy with sorted, deduplicated
// justification span sets.
func NewArgumentMention(m ArgumentMention) (ArgumentMention, error) {
	if m.DocID == "" {
		return ArgumentMention{}, eris.New("model: mention has no document id")
	}
	if err := m.CASSpan.Validate(); err != nil {
		return ArgumentMention{}, eris.Wrapf(err, "model: cas span of %q", m.CAS)
	}
	if err := m.BaseFillerSpan.Validate(); err != nil {
		return ArgumentMention{}, eris.Wrapf(err, "model: base filler span of %q", m.CAS)
	}
	r, err := ParseRealis(string(m.Realis))
	if err != nil {
		return ArgumentMention{}, err
	}
	m.Realis = r

	pj, err := normalizeSpanSet(m.PredicateJustifications)
	if err != nil {
		return ArgumentMention{}, eris.Wrapf(err, "model: predicate justification of %q", m.CAS)
	}
	aj, err := normalizeSpanSet(m.AdditionalJustifications)
	if err != nil {
		return ArgumentMention{}, eris.Wrapf(err, "model: additional justification of %q", m.CAS)
	}
	m.PredicateJustifications = pj
	m.AdditionalJustifications = aj
	return m, nil
}

// CompareMentions is the total order over mention identity: lexicographic over
// (docID, eventType, role, CAS, CAS span, base filler span, predicate justifications,
// additional justifications, realis). Span sets are compared element-wise in sorted order.
func CompareMentions(a, b ArgumentMention) int {
	if c := cmp.Compare(a.DocID, b.DocID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.EventType, b.EventType); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Role, b.Role); c != 0 {
		return c
	}
	if c := cmp.Compare(a.CAS, b.CAS); c != 0 {
		return c
	}
	if c := CompareSpans(a.CASSpan, b.CASSpan); c != 0 {
		return c
	}
	if c := CompareSpans(a.BaseFillerSpan, b.BaseFillerSpan); c != 0 {
		return c
	}
	if c := compareSpanSets(a.PredicateJustifications, b.PredicateJustifications); c != 0 {
		return c
	}
	if c := compareSpanSets(a.AdditionalJustifications, b.AdditionalJustifications); c != 0 {
		return c
	}
	return cmp.Compare(a.Realis, b.Realis)
}

// ID returns a canonical string for the mention, equal for two mentions exactly when
// CompareMentions returns 0. It is used as a map key.
func (m ArgumentMention) ID() string {
	var b strings.Builder
	b.WriteString(strconv.Quote(string(m.DocID)))
	for _, f := range []string{strconv.Quote(m.EventType), strconv.Quote(m.Role), strconv.Quote(m.CAS), m.CASSpan.String(), m.BaseFillerSpan.String()} {
		b.WriteByte('|')
		b.WriteString(f)
	}
	writeSpans(&b, m.PredicateJustifications)
	writeSpans(&b, m.AdditionalJustifications)
	b.WriteByte('|')
	b.WriteString(string(m.Realis))
	return b.String()
}

func writeSpans(b *strings.Builder, spans []CharSpan) {
	b.WriteByte('|')
	for i, s := range spans {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s.String())
	}
}

// ScoredMention is a system-produced mention with the system's confidence in it.
type ScoredMention struct {
	Mention    ArgumentMention `json:"mention" yaml:"mention"`
	Confidence float64         `json:"confidence" yaml:"confidence"`
}
