package cli

import (
	"os"
	"time"

	"github.com/AntoineBreitwillerCSTB/addok/internal/source"
	apperrors "github.com/AntoineBreitwillerCSTB/addok/pkg/errors"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	chunkSize int
	workers   int
	throttle  time.Duration
	sinks     []string
)

var batchCmd = &cobra.Command{
	Use:   "batch [path|glob ...]",
	Short: "Index documents from files or stdin",
	Long: `Index documents from line-delimited JSON files (.json, .jsonl, .ndjson,
.geojson), MessagePack streams (.msgpack), optionally compressed (.gz, .zst).
Patterns support ** globs. Without arguments, records are read from stdin.

Each record may carry an "_action" of index (default), update or delete.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyBatchFlags(cmd)

		var records source.Records
		if len(args) > 0 {
			var err error
			if records, err = source.Files(args); err != nil {
				return err
			}
		} else {
			fd := os.Stdin.Fd()
			if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
				return apperrors.New(apperrors.ErrInvalidConfig, "no input: pass files or pipe records on stdin")
			}
			records = source.Stdin()
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()
		return a.load(cmd.Context(), records, cmd.ErrOrStderr())
	},
}

func applyBatchFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("chunk-size") {
		cfg.Batch.ChunkSize = chunkSize
	}
	if flags.Changed("workers") {
		cfg.Batch.Workers = workers
	}
	if flags.Changed("throttle") {
		cfg.Batch.Throttle = throttle
	}
	if flags.Changed("progress") {
		cfg.Batch.Progress = sinks
	}
}

func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 1000, "documents per chunk")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent chunks (default GOMAXPROCS)")
	cmd.Flags().DurationVar(&throttle, "throttle", time.Second, "minimum interval between chunk dispatches")
	cmd.Flags().StringSliceVar(&sinks, "progress", nil, "progress sinks: log, bar, kafka")
}

func init() {
	addBatchFlags(batchCmd)
}
