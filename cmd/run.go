package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/vizeval-cli/internal/ai"
	"github.com/KaramelBytes/vizeval-cli/internal/pipeline"
	"github.com/KaramelBytes/vizeval-cli/internal/selector"
)

var runQuiet bool

var runCmd = &cobra.Command{
	Use:   "run [dataset.csv]",
	Short: "Run the full evaluation: select columns, score every pair, summarize",
	Example: `  vizeval run seattle-weather.csv
  VIZEVAL_DRACO_MODE=exec VIZEVAL_DRACO_COMMAND=python3 vizeval run data.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			c.Dataset = args[0]
		}
		if c.Dataset == "" {
			return errors.New("no dataset: pass a CSV path or set dataset in config")
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := c.RequireAPIKey(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := pipeline.New(c, nil)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !runQuiet {
			p.OnSelect = func(sel selector.Selection) {
				fmt.Fprintf(out, "✓ Selected columns: %s (%d other pairs)\n", sel.Selected, len(sel.Remaining))
			}
			p.Progress = func(i, total int, pair selector.Pair, n int) {
				fmt.Fprintf(out, "[%d/%d] top %d: scoring %s\n", i, total, n, pair)
			}
		}
		m, err := p.Run(ctx)
		if err != nil {
			return explain(ctx, err)
		}
		for _, f := range m.RunFiles {
			fmt.Fprintf(out, "✓ Wrote %s (%d rows)\n", f.Path, f.Rows)
		}
		if m.SummaryFile != "" {
			fmt.Fprintf(out, "✓ Summary saved as %s\n", m.SummaryFile)
		} else {
			fmt.Fprintln(out, "⚠ No data to save")
		}
		fmt.Fprintf(out, "Run ID: %s\n", m.RunID)
		return nil
	},
}

// explain adds a user hint to known provider errors.
func explain(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("interrupted: %w", err)
	}
	if hint := ai.Hint(err); hint != "" {
		return fmt.Errorf("%w (hint: %s)", err, hint)
	}
	return err
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "suppress per-pair progress output")
}
