package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/eal-scorer/internal/bundle"
	"github.com/sells-group/eal-scorer/internal/config"
	"github.com/sells-group/eal-scorer/internal/corpus"
	"github.com/sells-group/eal-scorer/internal/export"
	"github.com/sells-group/eal-scorer/internal/model"
	"github.com/sells-group/eal-scorer/internal/scorer"
	"github.com/sells-group/eal-scorer/internal/store"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a system output directory against a gold directory",
	Long: `Score system event argument and linking output against assessed gold documents.

Gold and system directories hold one document per file (.json, .yaml or .yml),
paired by doc_id. Gold documents with no system file are scored as empty output;
system files with no gold document are skipped.

Each document gets a scaled argument score, a linking F1 and their combination
(1-lambda)*argument + lambda*linking. The corpus headline is the macro average
of the combined score.

Examples:
  # Print a table for a system run
  score --gold data/gold --system runs/baseline

  # Strict mode, custom weights, CSV output
  score --gold data/gold --system runs/baseline --strict --beta 0.5 --lambda 0.25 --format csv --output scores.csv

  # Write a workbook and persist the run
  score --gold data/gold --system runs/baseline --format xlsx --output scores.xlsx --save`,
	RunE: runScore,
}

func init() {
	addScoreFlags(scoreCmd)
	_ = scoreCmd.MarkFlagRequired("gold")
	_ = scoreCmd.MarkFlagRequired("system")

	rootCmd.AddCommand(scoreCmd)
}

func addScoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("gold", "", "directory of gold documents (required)")
	f.String("system", "", "directory of system documents (required)")
	f.String("name", "", "system name recorded with saved runs (default: system directory name)")
	f.String("output", "", "output file path (default: stdout; required for xlsx)")
	f.String("format", export.FormatTable, "output format: table, csv or xlsx")
	f.Bool("save", false, "persist the run and document scores to the configured store")
	f.Bool("strict", false, "fail documents whose system output hits unassessed gold (overrides config)")
	f.Bool("repair", false, "repair inconsistent gold judgments instead of rejecting them (overrides config)")
	f.Float64("beta", -1, "false positive weight (overrides config)")
	f.Float64("lambda", -1, "linking weight in the combined score (overrides config)")
	f.String("excluded-realis", "", "comma-separated realis values excluded from linking (overrides config)")
	f.String("normalizer", "", "CAS normalizer: identity or coreference (overrides config)")
	f.Bool("fold-case", false, "case-fold CAS strings before comparison (overrides config)")
	f.Int("concurrency", 0, "maximum documents scored in parallel (overrides config)")
}

// corpusOutcome is the scored form of one gold/system directory pair.
type corpusOutcome struct {
	Scores   []model.DocumentScore
	Summary  model.CorpusSummary
	Failures []corpus.Failure
}

func runScore(cmd *cobra.Command, _ []string) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("score"); err != nil {
		return err
	}

	goldDir, _ := cmd.Flags().GetString("gold")
	systemDir, _ := cmd.Flags().GetString("system")
	name, _ := cmd.Flags().GetString("name")
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	save, _ := cmd.Flags().GetBool("save")

	switch format {
	case export.FormatTable, export.FormatCSV:
	case export.FormatXLSX:
		if outputPath == "" {
			return eris.New("score: --output is required for xlsx")
		}
	default:
		return eris.Errorf("score: --format must be table, csv or xlsx (got %q)", format)
	}

	scoringCfg := applyScoringOverrides(cmd, cfg.Scoring)
	s, err := scorer.NewEALScorer(scoringCfg)
	if err != nil {
		return err
	}

	concurrency := cfg.Batch.MaxConcurrentDocuments
	if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
		concurrency = v
	}
	repair := cfg.Input.RepairJudgments
	if cmd.Flags().Changed("repair") {
		repair, _ = cmd.Flags().GetBool("repair")
	}
	if name == "" {
		name = filepath.Base(filepath.Clean(systemDir))
	}

	log := zap.L().With(
		zap.String("command", "score"),
		zap.String("system", name),
		zap.String("config_hash", scorer.ConfigHash(scoringCfg)),
	)

	var st store.Store
	var run *model.Run
	if save {
		st, err = openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err = st.CreateRun(ctx, store.RunParams{
			Config:     runConfig(goldDir, systemDir, name, scoringCfg),
			ConfigHash: scorer.ConfigHash(scoringCfg),
		})
		if err != nil {
			return eris.Wrap(err, "score: create run")
		}
		log = log.With(zap.String("run_id", run.ID))

		// Any error from here on marks the saved run failed.
		defer func() {
			if err == nil {
				return
			}
			if ferr := st.FailRun(context.WithoutCancel(ctx), run.ID, err.Error()); ferr != nil {
				log.Error("failed to mark run failed", zap.Error(ferr))
			}
		}()
	}

	out, err := scoreCorpus(ctx, s, goldDir, systemDir, repair, concurrency)
	if err != nil {
		return err
	}

	log.Info("scoring complete",
		zap.Int("documents", out.Summary.Documents),
		zap.Int("failed", out.Summary.Failed),
		zap.Float64("macro_combined", out.Summary.MacroCombined),
	)

	if err := outputScores(out, format, outputPath); err != nil {
		return err
	}
	printFailures(os.Stderr, out.Failures)

	if run != nil {
		if err := st.SaveDocumentScores(ctx, run.ID, out.Scores); err != nil {
			return eris.Wrap(err, "score: save document scores")
		}
		if err := st.CompleteRun(ctx, run.ID, out.Summary); err != nil {
			return eris.Wrap(err, "score: complete run")
		}
		log.Info("run saved", zap.Int("documents", len(out.Scores)))
		fmt.Fprintf(os.Stderr, "Saved run %s\n", run.ID)
	}
	return nil
}

// scoreCorpus loads and scores a gold/system directory pair. Documents rejected while
// loading count as failures alongside documents that fail to score.
func scoreCorpus(ctx context.Context, s *scorer.EALScorer, goldDir, systemDir string, repair bool, concurrency int) (*corpusOutcome, error) {
	c, err := bundle.LoadCorpus(goldDir, systemDir, repair)
	if err != nil {
		return nil, eris.Wrap(err, "score: load corpus")
	}

	report, err := corpus.ScoreAll(ctx, s, c.Inputs, concurrency)
	if err != nil {
		return nil, err
	}

	agg := report.Aggregate()
	for range c.Rejected {
		agg = agg.AddFailure()
	}

	failures := append(slices.Clone(c.Rejected), report.Failures...)
	slices.SortFunc(failures, func(a, b corpus.Failure) int {
		return strings.Compare(string(a.DocID), string(b.DocID))
	})

	scores := make([]model.DocumentScore, len(report.Results))
	for i, r := range report.Results {
		scores[i] = r.Record()
	}

	return &corpusOutcome{
		Scores:   scores,
		Summary:  agg.Summary(s.Config().Lambda),
		Failures: failures,
	}, nil
}

// applyScoringOverrides returns a copy of the base config with CLI flag overrides applied.
func applyScoringOverrides(cmd *cobra.Command, base config.ScoringConfig) config.ScoringConfig {
	c := base
	c.ExcludedRealis = slices.Clone(base.ExcludedRealis)

	if v, _ := cmd.Flags().GetFloat64("beta"); v >= 0 {
		c.Beta = v
	}
	if v, _ := cmd.Flags().GetFloat64("lambda"); v >= 0 {
		c.Lambda = v
	}
	if cmd.Flags().Changed("strict") {
		c.Strict, _ = cmd.Flags().GetBool("strict")
	}
	if cmd.Flags().Changed("fold-case") {
		c.FoldCase, _ = cmd.Flags().GetBool("fold-case")
	}
	if v, _ := cmd.Flags().GetString("normalizer"); v != "" {
		c.Normalizer = v
	}
	if cmd.Flags().Changed("excluded-realis") {
		v, _ := cmd.Flags().GetString("excluded-realis")
		c.ExcludedRealis = splitAndTrim(v)
	}
	return c
}

func runConfig(goldDir, systemDir, name string, c config.ScoringConfig) model.RunConfig {
	return model.RunConfig{
		GoldPath:       goldDir,
		SystemPath:     systemDir,
		SystemName:     name,
		Beta:           c.Beta,
		Lambda:         c.Lambda,
		Strict:         c.Strict,
		Normalizer:     c.Normalizer,
		FoldCase:       c.FoldCase,
		ExcludedRealis: c.ExcludedRealis,
	}
}

func outputScores(out *corpusOutcome, format, outputPath string) error {
	if format == export.FormatXLSX {
		if err := export.WriteXLSX(outputPath, out.Scores, out.Summary); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %d documents to %s\n", len(out.Scores), outputPath)
		return nil
	}

	var w io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return eris.Wrap(err, "score: create output file")
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	if format == export.FormatCSV {
		return export.WriteCSV(w, out.Scores)
	}
	return export.WriteTable(w, out.Scores, out.Summary)
}

func printFailures(w io.Writer, failures []corpus.Failure) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d document(s) not scored:\n", len(failures))
	for _, f := range failures {
		fmt.Fprintf(w, "  %s: %v\n", f.DocID, f.Err)
	}
}

// splitAndTrim splits a comma-separated string and trims whitespace from each element.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
