package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/vizeval-cli/internal/dataset"
	"github.com/KaramelBytes/vizeval-cli/internal/facts"
)

var (
	schemaPair     string
	schemaMaxRows  int
	schemaDecimal  string
	schemaThousand string
	schemaSheet    string
)

var schemaCmd = &cobra.Command{
	Use:   "schema <dataset.csv|dataset.xlsx>",
	Short: "Print the Draco facts for a dataset",
	Example: `  vizeval schema cars.csv
  vizeval schema cars.csv --pair "Horsepower,Miles_per_Gallon"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt := dataset.DefaultOptions()
		opt.MaxRows = schemaMaxRows
		opt.Sheet = schemaSheet
		switch strings.ToLower(strings.TrimSpace(schemaDecimal)) {
		case ",", "comma":
			opt.DecimalSeparator = ','
		case ".", "dot", "":
		default:
			return fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", schemaDecimal)
		}
		switch strings.ToLower(strings.TrimSpace(schemaThousand)) {
		case ",":
			opt.ThousandsSeparator = ','
		case ".":
			opt.ThousandsSeparator = '.'
		case "space", " ":
			opt.ThousandsSeparator = ' '
		case "":
		default:
			return fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", schemaThousand)
		}

		tbl, err := dataset.Load(args[0], opt)
		if err != nil {
			return err
		}
		out := facts.FromTable(tbl)
		if schemaPair != "" {
			parts := strings.Split(schemaPair, ",")
			if len(parts) != 2 {
				return fmt.Errorf("--pair wants two comma-separated columns, got %q", schemaPair)
			}
			c1, c2 := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
			for _, c := range []string{c1, c2} {
				if _, ok := tbl.Column(c); !ok {
					return fmt.Errorf("unknown column %q", c)
				}
			}
			out = facts.PartialSpec(out, c1, c2)
		}
		w := cmd.OutOrStdout()
		for _, f := range out {
			fmt.Fprintln(w, f)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().StringVar(&schemaPair, "pair", "", "append the partial chart for two columns, e.g. \"a,b\"")
	schemaCmd.Flags().IntVar(&schemaMaxRows, "max-rows", 0, "read at most this many rows (0 = all)")
	schemaCmd.Flags().StringVar(&schemaDecimal, "decimal", "", "decimal separator: '.'|'comma'")
	schemaCmd.Flags().StringVar(&schemaSheet, "sheet", "", "workbook sheet name for .xlsx input (default first sheet)")
	schemaCmd.Flags().StringVar(&schemaThousand, "thousands", "", "thousands separator: ','|'.'|'space'")
}
