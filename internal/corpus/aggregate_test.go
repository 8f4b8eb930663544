package corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/eal-scorer/internal/alignment"
	"github.com/sells-group/eal-scorer/internal/eqclass"
	"github.com/sells-group/eal-scorer/internal/model"
	"github.com/sells-group/eal-scorer/internal/scorer"
)

func key(eventType, cas string) eqclass.Key {
	return eqclass.Key{DocID: "d", EventType: eventType, Role: "r", Realis: model.RealisActual, CAS: cas}
}

// result builds a Result whose argument and linking fields are consistent with the given
// counts.
func result(docID string, tp, fp, fn int, linkF1 float64, linkGold int) *scorer.Result {
	a := &alignment.Alignment{
		DocID:          model.DocumentID(docID),
		TruePositives:  eqclass.NewKeySet(),
		FalsePositives: eqclass.NewKeySet(),
		FalseNegatives: eqclass.NewKeySet(),
		Unassessed:     eqclass.NewKeySet(),
	}
	for i := range tp {
		a.TruePositives.Add(key("Conflict.Attack", string(rune('a'+i))))
	}
	for i := range fp {
		a.FalsePositives.Add(key("Movement.Transport", string(rune('a'+i))))
	}
	for i := range fn {
		a.FalseNegatives.Add(key("Conflict.Attack", string(rune('m'+i))))
	}
	arg := scorer.ScoreArguments(a, 0.25)
	return &scorer.Result{
		DocID:             model.DocumentID(docID),
		Alignment:         a,
		Argument:          arg,
		ScaledLinking:     linkF1,
		UnscaledLinking:   linkF1 * float64(linkGold),
		LinkingNormalizer: linkGold,
		Combined:          scorer.Combine(arg.Scaled, linkF1, 0.5),
	}
}

func TestAggregate_Summary(t *testing.T) {
	r1 := result("doc1", 2, 1, 0, 4.0/9.0, 3) // argument 0.875
	r2 := result("doc2", 1, 0, 1, 1, 1)       // argument 0.5
	empty := result("doc3", 0, 2, 0, 0, 0)    // no gold classes

	var agg Aggregate
	agg = agg.Add(r1).Add(r2).Add(empty).AddFailure()
	s := agg.Summary(0.5)

	assert.Equal(t, 3, s.Documents)
	assert.Equal(t, 2, s.MacroDocuments)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 3, s.TruePositives)
	assert.Equal(t, 3, s.FalsePositives)
	assert.Equal(t, 1, s.FalseNegatives)

	// Micro: (1.75 + 1 - 0.5) / (2 + 2).
	assert.InDelta(t, 2.25/4, s.MicroArgument, 1e-9)
	// Micro linking: (4/3 + 1) / (3 + 1).
	assert.InDelta(t, (4.0/3.0+1)/4, s.MicroLinking, 1e-9)
	assert.InDelta(t, 0.5*s.MicroArgument+0.5*s.MicroLinking, s.MicroCombined, 1e-9)

	assert.InDelta(t, (0.875+0.5)/2, s.MacroArgument, 1e-9)
	assert.InDelta(t, (4.0/9.0+1)/2, s.MacroLinking, 1e-9)
	assert.InDelta(t, (r1.Combined+r2.Combined)/2, s.MacroCombined, 1e-9)

	assert.Equal(t, model.EventTypeCounts{TruePositives: 3, FalseNegatives: 1}, s.ByEventType["Conflict.Attack"])
	assert.Equal(t, model.EventTypeCounts{FalsePositives: 3}, s.ByEventType["Movement.Transport"])
}

func TestAggregate_OrderIndependent(t *testing.T) {
	rs := []*scorer.Result{
		result("doc1", 2, 1, 0, 0.5, 2),
		result("doc2", 1, 0, 1, 1, 1),
		result("doc3", 0, 2, 3, 0, 3),
		result("doc4", 4, 0, 0, 0.75, 4),
	}

	var forward Aggregate
	for _, r := range rs {
		forward = forward.Add(r)
	}

	// Two partial folds merged in the opposite order.
	left := Aggregate{}.Add(rs[3]).Add(rs[1])
	right := Aggregate{}.Add(rs[2]).Add(rs[0])
	merged := right.Merge(left)

	fs, ms := forward.Summary(0.5), merged.Summary(0.5)
	assert.Equal(t, fs.Documents, ms.Documents)
	assert.Equal(t, fs.TruePositives, ms.TruePositives)
	assert.Equal(t, fs.ByEventType, ms.ByEventType)
	assert.InDelta(t, fs.MicroArgument, ms.MicroArgument, 1e-9)
	assert.InDelta(t, fs.MicroLinking, ms.MicroLinking, 1e-9)
	assert.InDelta(t, fs.MacroCombined, ms.MacroCombined, 1e-9)
}

func TestAggregate_MergeDoesNotAlias(t *testing.T) {
	a := Aggregate{}.Add(result("doc1", 1, 0, 0, 1, 1))
	b := a.Merge(a)

	require.Equal(t, 2, b.ByEventType["Conflict.Attack"].TruePositives)
	assert.Equal(t, 1, a.ByEventType["Conflict.Attack"].TruePositives)
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate{}.Summary(0.5)
	assert.Zero(t, s.Documents)
	assert.Zero(t, s.MicroArgument)
	assert.Zero(t, s.MacroCombined)
	assert.Nil(t, s.ByEventType)
}

func TestAggregate_MicroArgumentNotFloored(t *testing.T) {
	r := result("doc1", 1, 8, 0, 0, 0) // unscaled 1 - 0.25*8 = -1 over one gold class

	s := Aggregate{}.Add(r).Summary(0.5)

	assert.InDelta(t, -0.25, r.Argument.Scaled, 1e-9)
	assert.InDelta(t, -0.25, s.MacroArgument, 1e-9)
	assert.InDelta(t, -1.0, s.MicroArgument, 1e-9)
}
