package bundle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/eal-scorer/internal/model"
	"github.com/sells-group/eal-scorer/internal/scorer"
)

func TestFormatOf(t *testing.T) {
	f, ok := FormatOf("a/b/doc.JSON")
	assert.True(t, ok)
	assert.Equal(t, FormatJSON, f)

	f, ok = FormatOf("doc.yml")
	assert.True(t, ok)
	assert.Equal(t, FormatYAML, f)

	_, ok = FormatOf("README.txt")
	assert.False(t, ok)
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	var g GoldDocument
	err := Decode(strings.NewReader(`{"doc_id":"d","assesed":[]}`), FormatJSON, &g)
	assert.Error(t, err)

	err = Decode(strings.NewReader("doc_id: d\nassesed: []\n"), FormatYAML, &g)
	assert.Error(t, err)

	err = Decode(strings.NewReader("{}"), Format("xml"), &g)
	assert.Error(t, err)
}

func TestReadGoldFile(t *testing.T) {
	g, err := ReadGoldFile(filepath.Join("testdata", "gold", "doc1.json"))
	require.NoError(t, err)
	assert.Equal(t, model.DocumentID("doc1"), g.DocID)
	require.Len(t, g.Assessed, 3)
	assert.Nil(t, g.Assessed[0].Mention.AdditionalJustifications)

	key, report, err := g.AnswerKey(false)
	require.NoError(t, err)
	assert.True(t, report.Empty())
	assert.Equal(t, model.DocumentID("doc1"), key.Assessed[0].Mention.DocID, "doc_id is filled from the document")
	assert.True(t, key.Assessed[0].IsCorrect())
	assert.True(t, key.Assessed[1].IsCorrect(), "inexact cas is acceptable")
	assert.False(t, key.Assessed[2].IsCorrect())
	assert.Len(t, key.Unassessed, 1)
}

func TestGoldDocument_AnswerKeyRepair(t *testing.T) {
	g, err := ReadGoldFile(filepath.Join("testdata", "gold", "doc2.yaml"))
	require.NoError(t, err)

	_, _, err = g.AnswerKey(false)
	assert.ErrorIs(t, err, model.ErrInvalidJudgment)

	key, report, err := g.AnswerKey(true)
	require.NoError(t, err)
	require.Len(t, report.Fixes, 2)
	assert.Equal(t, model.JudgedCAS, report.Fixes[0].Field)
	assert.Equal(t, model.ViolationMissing, report.Fixes[0].Kind)
	assert.Equal(t, model.JudgedBaseFiller, report.Fixes[1].Field)
	assert.Equal(t, model.ViolationExtra, report.Fixes[1].Kind)
	assert.Equal(t, key.Assessed[0].Mention.ID(), report.Fixes[0].MentionID)

	j, ok := key.Assessed[0].Assessment.Judgment()
	require.True(t, ok)
	assert.Equal(t, model.FieldIncorrect, j.CAS)
	assert.Empty(t, j.BaseFiller)
}

func TestInput_Validation(t *testing.T) {
	gold := &GoldDocument{DocID: "doc1"}

	_, _, err := Input(gold, &SystemDocument{DocID: "doc2"}, false)
	assert.ErrorIs(t, err, model.ErrDocIDMismatch)

	bad := &SystemDocument{DocID: "doc1", Mentions: []model.ScoredMention{{
		Mention: model.ArgumentMention{EventType: "E", Role: "R", CAS: "x", CASSpan: model.CharSpan{Start: 5, End: 2}, Realis: model.RealisActual},
	}}}
	_, _, err = Input(gold, bad, false)
	assert.ErrorIs(t, err, model.ErrInvalidSpan)

	_, _, err = Input(&GoldDocument{}, nil, false)
	assert.Error(t, err)

	in, _, err := Input(gold, nil, false)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentID("doc1"), in.SystemLinking.DocID)
	assert.Empty(t, in.SystemMentions)
}

func TestLoadCorpus(t *testing.T) {
	c, err := LoadCorpus(filepath.Join("testdata", "gold"), filepath.Join("testdata", "system"), true)
	require.NoError(t, err)

	require.Len(t, c.Inputs, 3)
	assert.Equal(t, model.DocumentID("doc1"), c.Inputs[0].AnswerKey.DocID)
	assert.Equal(t, model.DocumentID("doc2"), c.Inputs[1].AnswerKey.DocID)
	assert.Equal(t, model.DocumentID("doc3"), c.Inputs[2].AnswerKey.DocID)
	assert.Empty(t, c.Rejected)
	assert.Equal(t, []model.DocumentID{"doc9"}, c.Orphans)
	assert.Equal(t, []model.DocumentID{"doc3"}, c.MissingSystem)
	assert.Len(t, c.Repairs.Fixes, 2)
}

func TestLoadCorpus_RejectsInvalidDocumentOnly(t *testing.T) {
	c, err := LoadCorpus(filepath.Join("testdata", "gold"), filepath.Join("testdata", "system"), false)
	require.NoError(t, err)

	assert.Len(t, c.Inputs, 2)
	require.Len(t, c.Rejected, 1)
	assert.Equal(t, model.DocumentID("doc2"), c.Rejected[0].DocID)
	assert.ErrorIs(t, c.Rejected[0].Err, model.ErrInvalidJudgment)
}

func TestLoadCorpus_DuplicateDocID(t *testing.T) {
	dir := t.TempDir()
	doc := []byte(`{"doc_id": "doc1", "assessed": [], "linking": {"sets": []}}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), doc, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), doc, 0644))

	_, err := LoadCorpus(dir, t.TempDir(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defined in both")
}

func TestLoadCorpus_MissingDir(t *testing.T) {
	_, err := LoadCorpus(filepath.Join(t.TempDir(), "nope"), t.TempDir(), false)
	assert.Error(t, err)
}

func TestLoadCorpus_EndToEnd(t *testing.T) {
	c, err := LoadCorpus(filepath.Join("testdata", "gold"), filepath.Join("testdata", "system"), true)
	require.NoError(t, err)

	s, err := scorer.NewEALScorer(scorer.DefaultScoringConfig())
	require.NoError(t, err)

	want := map[model.DocumentID]float64{"doc1": 0.9375, "doc2": 1, "doc3": 0}
	for _, in := range c.Inputs {
		r, err := s.ScoreDocument(in)
		require.NoError(t, err, "doc %s", in.AnswerKey.DocID)
		assert.InDelta(t, want[r.DocID], r.Combined, 1e-9, "doc %s", r.DocID)
	}
}
