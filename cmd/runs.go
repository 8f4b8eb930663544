package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/eal-scorer/internal/export"
	"github.com/sells-group/eal-scorer/internal/model"
	"github.com/sells-group/eal-scorer/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved scoring runs",
	Long:  "Commands for listing and viewing runs saved with score --save.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scoring runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		system, _ := cmd.Flags().GetString("system")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status:     model.RunStatus(status),
			SystemName: system,
			Limit:      limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

// runDetail is the JSON shape of runs show and GET /v1/runs/{id}.
type runDetail struct {
	Run       *model.Run            `json:"run"`
	Documents []model.DocumentScore `json:"documents"`
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its document scores",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		docs, err := st.ListDocumentScores(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		if asTable, _ := cmd.Flags().GetBool("table"); asTable {
			var summary model.CorpusSummary
			if run.Summary != nil {
				summary = *run.Summary
			}
			return export.WriteTable(os.Stdout, docs, summary)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runDetail{Run: run, Documents: docs})
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().String("system", "", "filter by system name")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsShowCmd.Flags().Bool("table", false, "print document scores as a table instead of JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSYSTEM\tSTATUS\tDOCS\tFAILED\tMACRO_COMBINED\tCONFIG\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t----\t------\t--------------\t------\t-------")

	for _, r := range runs {
		docs, failed, combined := "-", "-", "-"
		if r.Summary != nil {
			docs = fmt.Sprintf("%d", r.Summary.Documents)
			failed = fmt.Sprintf("%d", r.Summary.Failed)
			combined = fmt.Sprintf("%.4f", r.Summary.MacroCombined)
		}

		system := r.Config.SystemName
		if len(system) > 30 {
			system = system[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			system,
			r.Status,
			docs,
			failed,
			combined,
			truncateID(r.ConfigHash),
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of an ID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
