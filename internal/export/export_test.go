package export

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/eal-scorer/internal/model"
)

func testScores() []model.DocumentScore {
	return []model.DocumentScore{
		{
			DocID: "doc1", TruePositives: 2, FalsePositives: 1, ArgumentNormalizer: 2,
			UnscaledArgument: 1.75, ScaledArgument: 0.875,
			LinkingPrecision: 2.0 / 3.0, LinkingRecall: 1.0 / 3.0, ScaledLinking: 4.0 / 9.0,
			LinkingNormalizer: 3, Combined: 0.6597,
		},
		{DocID: "a-very-long-document-identifier-0001", FalseNegatives: 1, ArgumentNormalizer: 1},
	}
}

func testSummary() model.CorpusSummary {
	return model.CorpusSummary{
		Documents: 2, MacroDocuments: 2, TruePositives: 2, FalsePositives: 1, FalseNegatives: 1,
		MicroArgument: 1.75 / 3, MacroCombined: 0.5,
		ByEventType: map[string]model.EventTypeCounts{
			"Movement.Transport": {FalseNegatives: 1},
			"Conflict.Attack":    {TruePositives: 2, FalsePositives: 1},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testScores()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, documentColumns, rows[0])
	assert.Equal(t, []string{"doc1", "2", "1", "0", "0", "2", "0.8750", "0.6667", "0.3333", "0.4444", "3", "0.6597"}, rows[1])
	assert.Equal(t, "a-very-long-document-identifier-0001", rows[2][0])
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, testScores(), testSummary()))

	out := buf.String()
	assert.Contains(t, out, "Document")
	assert.Contains(t, out, "doc1")
	assert.Contains(t, out, "a-very-long-document-...")
	assert.Contains(t, out, "0.8750")
	assert.Contains(t, out, "macro_combined:  0.5000")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Conflict.Attack")), bytes.Index(buf.Bytes(), []byte("Movement.Transport")))
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.xlsx")
	require.NoError(t, WriteXLSX(path, testScores(), testSummary()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	docs, ok := f.Sheet["documents"]
	require.True(t, ok)
	require.Len(t, docs.Rows, 3)
	assert.Equal(t, "doc_id", docs.Rows[0].Cells[0].String())
	assert.Equal(t, "doc1", docs.Rows[1].Cells[0].String())
	assert.Len(t, docs.Rows[1].Cells, len(documentColumns))

	sum, ok := f.Sheet["summary"]
	require.True(t, ok)
	assert.Equal(t, "documents", sum.Rows[1].Cells[0].String())
	assert.Equal(t, "2", sum.Rows[1].Cells[1].String())

	ets, ok := f.Sheet["event_types"]
	require.True(t, ok)
	assert.Equal(t, "Conflict.Attack", ets.Rows[1].Cells[0].String())
}

func TestWriteXLSX_NoEventTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.xlsx")
	require.NoError(t, WriteXLSX(path, nil, model.CorpusSummary{}))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	_, ok := f.Sheet["event_types"]
	assert.False(t, ok)
	assert.Len(t, f.Sheets, 2)
}
