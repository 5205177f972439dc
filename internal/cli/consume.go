package cli

import (
	"github.com/AntoineBreitwillerCSTB/addok/internal/source"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/kafka"
	"github.com/spf13/cobra"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Index JSON records consumed from Kafka",
	Long: `Consume JSON records from the documents topic and index them. The command
returns once no message arrived for kafka.idleTimeout (0 waits forever).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyBatchFlags(cmd)
		ctx := cmd.Context()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Documents)
		defer consumer.Close()
		return a.load(ctx, source.Kafka(ctx, consumer), cmd.ErrOrStderr())
	},
}

func init() {
	addBatchFlags(consumeCmd)
}
