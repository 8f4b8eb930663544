package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/eal-scorer/internal/config"
)

var cfg *config.Config

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "eal-scorer",
	Short: "Event argument and linking scorer",
	Long: `Scores event argument extraction and event argument linking output against assessed gold answer keys.

Settings are read from ./config.yaml and EAL_* environment variables
(EAL_SCORING_BETA=0.5, EAL_STORE_DRIVER=postgres, ...). Run "eal-scorer config show"
to print the effective configuration.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if cmd.Flags().Changed("log-level") {
			c.Log.Level = logLevel
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn or error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
