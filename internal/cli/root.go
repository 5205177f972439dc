// Package cli implements the addok command line: bulk loading from files,
// stdin or Kafka, and token frequency lookups.
package cli

import (
	"context"
	"fmt"

	"github.com/AntoineBreitwillerCSTB/addok/pkg/config"
	apperrors "github.com/AntoineBreitwillerCSTB/addok/pkg/errors"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "addok",
	Short: "Address geocoder indexer",
	Long: `addok builds and maintains the Redis index of an address geocoder.

Example usage:
  addok batch addresses.ndjson.gz     # Index a file
  addok batch 'data/**/*.jsonl'       # Index every file matching a glob
  cat updates.jsonl | addok batch     # Index from stdin
  addok consume                       # Index records from Kafka
  addok frequency "rue de rivoli"     # Count postings per token`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
		}
		logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
		return nil
	},
}

// Execute runs the command selected by the process arguments. Cancelling ctx
// stops a running load after the chunks in flight.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults plus ADDOK_* environment overrides when empty)")
	rootCmd.AddCommand(batchCmd, consumeCmd, frequencyCmd)
}
