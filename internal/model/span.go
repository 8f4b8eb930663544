package model

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/rotisserie/eris"
)

// ErrInvalidSpan is returned when a span's start offset is past its end offset.
var ErrInvalidSpan = eris.New("model: invalid span")

// CharSpan is an inclusive character offset range into a document's text.
type CharSpan struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// NewCharSpan returns the span [start, end], rejecting start > end.
func NewCharSpan(start, end int) (CharSpan, error) {
	s := CharSpan{Start: start, End: end}
	if err := s.Validate(); err != nil {
		return CharSpan{}, err
	}
	return s, nil
}

// Validate checks the start <= end invariant.
func (s CharSpan) Validate() error {
	if s.Start > s.End {
		return eris.Wrapf(ErrInvalidSpan, "start %d > end %d", s.Start, s.End)
	}
	return nil
}

func (s CharSpan) String() string {
	return fmt.Sprintf("%d-%d", s.Start, s.End)
}

// CompareSpans orders spans by start, then end.
func CompareSpans(a, b CharSpan) int {
	if c := cmp.Compare(a.Start, b.Start); c != 0 {
		return c
	}
	return cmp.Compare(a.End, b.End)
}

// compareSpanSets orders two sorted span sets lexicographically, shorter first on a shared prefix.
func compareSpanSets(a, b []CharSpan) int {
	return slices.CompareFunc(a, b, CompareSpans)
}

// normalizeSpanSet returns a sorted copy of spans with duplicates removed.
func normalizeSpanSet(spans []CharSpan) ([]CharSpan, error) {
	out := make([]CharSpan, 0, len(spans))
	for _, s := range spans {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	slices.SortFunc(out, CompareSpans)
	return slices.Compact(out), nil
}
