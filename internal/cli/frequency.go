package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	pkgredis "github.com/AntoineBreitwillerCSTB/addok/pkg/redis"
	"github.com/spf13/cobra"
)

var frequencyCmd = &cobra.Command{
	Use:   "frequency <text>",
	Short: "Print how many documents hold each token of text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ix, err := newIndexer(cfg.Index)
		if err != nil {
			return err
		}
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, token := range ix.Cache().Preprocess(strings.Join(args, " ")) {
			n, err := ix.TokenFrequency(ctx, client, token)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%d\n", token, n)
		}
		return w.Flush()
	},
}
