package model

import "github.com/rotisserie/eris"

// CorefEntry places one canonical argument string occurrence in a coreference cluster.
type CorefEntry struct {
	CAS     string   `json:"cas" yaml:"cas"`
	Span    CharSpan `json:"span" yaml:"span"`
	Cluster string   `json:"cluster" yaml:"cluster"`
}

// AnswerKey is the gold annotation of one document: assessed mentions, mentions the
// assessors never judged, and the coreference clustering of argument strings.
type AnswerKey struct {
	DocID       DocumentID
	Assessed    []AssessedMention
	Unassessed  []ArgumentMention
	Coreference []CorefEntry
}

// Validate checks that every mention belongs to the key's document.
func (k AnswerKey) Validate() error {
	for _, am := range k.Assessed {
		if am.Mention.DocID != k.DocID {
			return eris.Wrapf(ErrDocIDMismatch, "answer key %s: assessed mention %s", k.DocID, am.Mention.ID())
		}
	}
	for _, m := range k.Unassessed {
		if m.DocID != k.DocID {
			return eris.Wrapf(ErrDocIDMismatch, "answer key %s: unassessed mention %s", k.DocID, m.ID())
		}
	}
	return nil
}

// AllMentions returns assessed and unassessed mentions, assessed first.
func (k AnswerKey) AllMentions() []ArgumentMention {
	out := make([]ArgumentMention, 0, len(k.Assessed)+len(k.Unassessed))
	for _, am := range k.Assessed {
		out = append(out, am.Mention)
	}
	return append(out, k.Unassessed...)
}
