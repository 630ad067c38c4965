package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/vizeval-cli/internal/report"
)

var aggOutput string

var aggregateCmd = &cobra.Command{
	Use:   "aggregate [run.csv ...]",
	Short: "Summarize per-run score files into one result table",
	Long: `Summarize per-run score CSVs. Without arguments the run files derived from
recommendation_counts and output_dir are used, and the summary goes to summary_file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		inputs := args
		if len(inputs) == 0 {
			inputs = c.RunFiles()
		}
		output := aggOutput
		if output == "" {
			output = c.SummaryPath()
		}
		sum, err := report.CreateResultTable(inputs, output, nil)
		w := cmd.OutOrStdout()
		for _, s := range sum.Skipped {
			fmt.Fprintf(w, "⚠ Skipped %s\n", s)
		}
		if errors.Is(err, report.ErrNoData) {
			fmt.Fprintln(w, "⚠ No data to save")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "✓ Output file saved as %s (%d rows)\n", sum.Output, len(sum.Rows))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(aggregateCmd)
	aggregateCmd.Flags().StringVarP(&aggOutput, "output", "o", "", "summary CSV path (default from config)")
}
