package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/vizeval-cli/internal/dataset"
	"github.com/KaramelBytes/vizeval-cli/internal/pipeline"
	"github.com/KaramelBytes/vizeval-cli/internal/selector"
)

var selectCmd = &cobra.Command{
	Use:   "select <dataset.csv>",
	Short: "Ask the model for the two most chartable columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		if err := c.RequireAPIKey(); err != nil {
			return err
		}
		opt := dataset.DefaultOptions()
		opt.Sheet = c.DatasetSheet
		tbl, err := dataset.Load(args[0], opt)
		if err != nil {
			return err
		}
		rt, err := pipeline.RuntimeFromConfig(c, nil)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		sel, err := (&selector.Selector{Runtime: rt, Model: c.Model}).Select(ctx, tbl.ColumnNames())
		if err != nil {
			return explain(ctx, err)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "✓ Selected columns: %s\n", sel.Selected)
		fmt.Fprintf(w, "Other column pairs (%d):\n", len(sel.Remaining))
		for _, p := range sel.Remaining {
			fmt.Fprintf(w, "  - %s\n", p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(selectCmd)
}
