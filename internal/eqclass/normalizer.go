package eqclass

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/eal-scorer/internal/model"
)

// Normalizer maps a canonical argument string, in context, to the string it is scored
// under. Implementations must be deterministic: the result is used as part of a map key.
type Normalizer interface {
	Normalize(docID model.DocumentID, cas string, span model.CharSpan) string
}

// IdentityNormalizer scores every CAS as written.
type IdentityNormalizer struct{}

// Normalize returns cas unchanged.
func (IdentityNormalizer) Normalize(_ model.DocumentID, cas string, _ model.CharSpan) string {
	return cas
}

type corefKey struct {
	docID model.DocumentID
	cas   string
	span  model.CharSpan
}

// CoreferenceNormalizer maps each argument in a gold coreference cluster to the cluster's
// representative, the lexicographically smallest CAS in it. Arguments outside every
// cluster keep their CAS.
type CoreferenceNormalizer struct {
	reps map[corefKey]string
}

// NewCoreferenceNormalizer indexes the coreference entries of the given answer keys.
func NewCoreferenceNormalizer(keys ...model.AnswerKey) *CoreferenceNormalizer {
	type clusterID struct {
		docID   model.DocumentID
		cluster string
	}
	smallest := make(map[clusterID]string)
	members := make(map[corefKey]clusterID)

	for _, k := range keys {
		for _, e := range k.Coreference {
			id := clusterID{docID: k.DocID, cluster: e.Cluster}
			if cur, ok := smallest[id]; !ok || e.CAS < cur {
				smallest[id] = e.CAS
			}
			members[corefKey{docID: k.DocID, cas: e.CAS, span: e.Span}] = id
		}
	}

	reps := make(map[corefKey]string, len(members))
	for ck, id := range members {
		reps[ck] = smallest[id]
	}
	return &CoreferenceNormalizer{reps: reps}
}

// Normalize returns the representative of the argument's cluster, or cas if the argument
// is not clustered.
func (c *CoreferenceNormalizer) Normalize(docID model.DocumentID, cas string, span model.CharSpan) string {
	if rep, ok := c.reps[corefKey{docID: docID, cas: cas, span: span}]; ok {
		return rep
	}
	return cas
}

// FoldingNormalizer applies Next (identity when nil), then NFKC normalization and Unicode
// case folding, so that strings differing only in width, compatibility form or case
// share a key.
type FoldingNormalizer struct {
	Next Normalizer
}

// Normalize folds the result of Next.
func (f FoldingNormalizer) Normalize(docID model.DocumentID, cas string, span model.CharSpan) string {
	if f.Next != nil {
		cas = f.Next.Normalize(docID, cas, span)
	}
	return cases.Fold().String(norm.NFKC.String(cas))
}
