// Package export renders per-document scores and corpus summaries as text tables, CSV and
// XLSX workbooks.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/eal-scorer/internal/model"
)

// Output formats.
const (
	FormatTable = "table"
	FormatCSV   = "csv"
	FormatXLSX  = "xlsx"
)

// documentColumns defines the ordered per-document output columns.
var documentColumns = []string{
	"doc_id",
	"tp",
	"fp",
	"fn",
	"unassessed",
	"arg_normalizer",
	"scaled_argument",
	"link_precision",
	"link_recall",
	"scaled_linking",
	"link_normalizer",
	"combined",
}

func documentRow(s model.DocumentScore) []string {
	return []string{
		string(s.DocID),
		strconv.Itoa(s.TruePositives),
		strconv.Itoa(s.FalsePositives),
		strconv.Itoa(s.FalseNegatives),
		strconv.Itoa(s.Unassessed),
		strconv.Itoa(s.ArgumentNormalizer),
		formatScore(s.ScaledArgument),
		formatScore(s.LinkingPrecision),
		formatScore(s.LinkingRecall),
		formatScore(s.ScaledLinking),
		strconv.Itoa(s.LinkingNormalizer),
		formatScore(s.Combined),
	}
}

// summaryRows lists the corpus summary as label/value pairs.
func summaryRows(s model.CorpusSummary) [][2]string {
	return [][2]string{
		{"documents", strconv.Itoa(s.Documents)},
		{"macro_documents", strconv.Itoa(s.MacroDocuments)},
		{"failed", strconv.Itoa(s.Failed)},
		{"true_positives", strconv.Itoa(s.TruePositives)},
		{"false_positives", strconv.Itoa(s.FalsePositives)},
		{"false_negatives", strconv.Itoa(s.FalseNegatives)},
		{"unassessed", strconv.Itoa(s.Unassessed)},
		{"micro_argument", formatScore(s.MicroArgument)},
		{"micro_linking", formatScore(s.MicroLinking)},
		{"micro_combined", formatScore(s.MicroCombined)},
		{"macro_argument", formatScore(s.MacroArgument)},
		{"macro_linking", formatScore(s.MacroLinking)},
		{"macro_combined", formatScore(s.MacroCombined)},
	}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// WriteCSV writes one header row and one row per document.
func WriteCSV(w io.Writer, scores []model.DocumentScore) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(documentColumns); err != nil {
		return eris.Wrap(err, "export: write CSV header")
	}
	for _, s := range scores {
		if err := cw.Write(documentRow(s)); err != nil {
			return eris.Wrapf(err, "export: write CSV row %s", s.DocID)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush CSV")
	}
	return nil
}

// WriteTable writes a fixed-width table of documents followed by the corpus summary.
func WriteTable(w io.Writer, scores []model.DocumentScore, summary model.CorpusSummary) error {
	header := fmt.Sprintf("%-24s %5s %5s %5s %5s %9s %9s %9s\n",
		"Document", "TP", "FP", "FN", "UNA", "Argument", "Linking", "Combined")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "export: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 78)); err != nil {
		return eris.Wrap(err, "export: write table separator")
	}

	for _, s := range scores {
		id := string(s.DocID)
		if len(id) > 24 {
			id = id[:21] + "..."
		}
		line := fmt.Sprintf("%-24s %5d %5d %5d %5d %9.4f %9.4f %9.4f\n",
			id, s.TruePositives, s.FalsePositives, s.FalseNegatives, s.Unassessed,
			s.ScaledArgument, s.ScaledLinking, s.Combined)
		if _, err := fmt.Fprint(w, line); err != nil {
			return eris.Wrap(err, "export: write table row")
		}
	}

	if _, err := fmt.Fprintf(w, "\n--- Summary ---\n"); err != nil {
		return eris.Wrap(err, "export: write summary")
	}
	for _, kv := range summaryRows(summary) {
		if _, err := fmt.Fprintf(w, "%-16s %s\n", kv[0]+":", kv[1]); err != nil {
			return eris.Wrap(err, "export: write summary")
		}
	}
	if len(summary.ByEventType) > 0 {
		if _, err := fmt.Fprintf(w, "\n%-32s %5s %5s %5s\n", "Event type", "TP", "FP", "FN"); err != nil {
			return eris.Wrap(err, "export: write event types")
		}
		for _, et := range sortedEventTypes(summary) {
			c := summary.ByEventType[et]
			if _, err := fmt.Fprintf(w, "%-32s %5d %5d %5d\n", et, c.TruePositives, c.FalsePositives, c.FalseNegatives); err != nil {
				return eris.Wrap(err, "export: write event types")
			}
		}
	}
	return nil
}

// WriteXLSX saves a workbook with a "documents" sheet, a "summary" sheet and, when the
// summary has per-event-type counts, an "event_types" sheet.
func WriteXLSX(path string, scores []model.DocumentScore, summary model.CorpusSummary) error {
	f := xlsx.NewFile()

	docs, err := f.AddSheet("documents")
	if err != nil {
		return eris.Wrap(err, "export: add documents sheet")
	}
	addStringRow(docs, documentColumns)
	for _, s := range scores {
		row := docs.AddRow()
		row.AddCell().SetString(string(s.DocID))
		for _, n := range []int{s.TruePositives, s.FalsePositives, s.FalseNegatives, s.Unassessed, s.ArgumentNormalizer} {
			row.AddCell().SetInt(n)
		}
		for _, v := range []float64{s.ScaledArgument, s.LinkingPrecision, s.LinkingRecall, s.ScaledLinking} {
			row.AddCell().SetFloat(v)
		}
		row.AddCell().SetInt(s.LinkingNormalizer)
		row.AddCell().SetFloat(s.Combined)
	}

	sum, err := f.AddSheet("summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	addStringRow(sum, []string{"metric", "value"})
	for _, kv := range summaryRows(summary) {
		addStringRow(sum, kv[:])
	}

	if len(summary.ByEventType) > 0 {
		ets, err := f.AddSheet("event_types")
		if err != nil {
			return eris.Wrap(err, "export: add event_types sheet")
		}
		addStringRow(ets, []string{"event_type", "tp", "fp", "fn"})
		for _, et := range sortedEventTypes(summary) {
			c := summary.ByEventType[et]
			row := ets.AddRow()
			row.AddCell().SetString(et)
			row.AddCell().SetInt(c.TruePositives)
			row.AddCell().SetInt(c.FalsePositives)
			row.AddCell().SetInt(c.FalseNegatives)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func sortedEventTypes(s model.CorpusSummary) []string {
	out := make([]string, 0, len(s.ByEventType))
	for et := range s.ByEventType {
		out = append(out, et)
	}
	slices.Sort(out)
	return out
}
