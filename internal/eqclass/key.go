// Package eqclass reduces argument mentions to the equivalence-class keys they are
// scored under, and picks one system mention per key.
package eqclass

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/sells-group/eal-scorer/internal/model"
)

// Key identifies the fact a mention asserts. All mentions that re-justify the same
// (document, event type, role, realis, normalized CAS) share one key.
type Key struct {
	DocID     model.DocumentID `json:"doc_id"`
	EventType string           `json:"event_type"`
	Role      string           `json:"role"`
	Realis    model.Realis     `json:"realis"`
	CAS       string           `json:"cas"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%q", k.DocID, k.EventType, k.Role, k.Realis, k.CAS)
}

// Compare orders keys lexicographically by their fields.
func Compare(a, b Key) int {
	if c := cmp.Compare(a.DocID, b.DocID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.EventType, b.EventType); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Role, b.Role); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Realis, b.Realis); c != 0 {
		return c
	}
	return cmp.Compare(a.CAS, b.CAS)
}

// Classify maps a mention to its key, normalizing the CAS with n.
func Classify(m model.ArgumentMention, n Normalizer) Key {
	return Key{
		DocID:     m.DocID,
		EventType: m.EventType,
		Role:      m.Role,
		Realis:    m.Realis,
		CAS:       n.Normalize(m.DocID, m.CAS, m.CASSpan),
	}
}

// KeySet is a set of keys.
type KeySet map[Key]struct{}

// NewKeySet returns a set holding keys.
func NewKeySet(keys ...Key) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Add inserts k.
func (s KeySet) Add(k Key) {
	s[k] = struct{}{}
}

// Contains reports whether k is in s.
func (s KeySet) Contains(k Key) bool {
	_, ok := s[k]
	return ok
}

// Union returns a new set with the keys of s and o.
func (s KeySet) Union(o KeySet) KeySet {
	out := make(KeySet, len(s)+len(o))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range o {
		out[k] = struct{}{}
	}
	return out
}

// Intersect returns a new set with the keys in both s and o.
func (s KeySet) Intersect(o KeySet) KeySet {
	out := make(KeySet)
	for k := range s {
		if o.Contains(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

// Minus returns a new set with the keys of s not in o.
func (s KeySet) Minus(o KeySet) KeySet {
	out := make(KeySet)
	for k := range s {
		if !o.Contains(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

// Sorted returns the keys in Compare order.
func (s KeySet) Sorted() []Key {
	out := make([]Key, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	slices.SortFunc(out, Compare)
	return out
}
