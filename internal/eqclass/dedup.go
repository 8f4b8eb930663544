package eqclass

import (
	"github.com/sells-group/eal-scorer/internal/model"
)

// Deduplicate keeps one system mention per key. The mention with the highest confidence
// wins; on an exact tie the mention that sorts last under model.CompareMentions wins.
// The result is ordered by key and does not depend on the order of the input, so
// applying Deduplicate to its own output returns it unchanged.
func Deduplicate(mentions []model.ScoredMention, n Normalizer) []model.ScoredMention {
	reps := Representatives(mentions, n)
	keys := make(KeySet, len(reps))
	for k := range reps {
		keys.Add(k)
	}

	out := make([]model.ScoredMention, 0, len(reps))
	for _, k := range keys.Sorted() {
		out = append(out, reps[k])
	}
	return out
}

// Representatives returns the winning mention for every key among mentions.
func Representatives(mentions []model.ScoredMention, n Normalizer) map[Key]model.ScoredMention {
	out := make(map[Key]model.ScoredMention)
	for _, sm := range mentions {
		k := Classify(sm.Mention, n)
		cur, ok := out[k]
		if !ok || Prefer(sm, cur) {
			out[k] = sm
		}
	}
	return out
}

// Prefer reports whether a should represent its key instead of b.
func Prefer(a, b model.ScoredMention) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return model.CompareMentions(a.Mention, b.Mention) > 0
}
