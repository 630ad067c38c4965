package scoring

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/KaramelBytes/vizeval-cli/internal/selector"
	"github.com/KaramelBytes/vizeval-cli/internal/utils"
)

// Header is the per-run CSV header.
var Header = []string{"col1", "col2", "chart_count", "lida_score", "draco_cost", "final_score", "llm_selected"}

// Row is one scored pair as persisted.
type Row struct {
	Pair       selector.Pair
	ChartCount int
	Triple
	Selected bool
}

// Record formats the row in Header order.
func (r Row) Record() []string {
	return []string{
		r.Pair[0],
		r.Pair[1],
		strconv.Itoa(r.ChartCount),
		formatFloat(r.MeanQuality),
		formatFloat(r.MeanCost),
		formatFloat(r.Final),
		strconv.FormatBool(r.Selected),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// RunResult summarizes one written CSV.
type RunResult struct {
	ChartCount int
	Path       string
	Rows       int
}

// Runner scores all pairs and persists the results.
type Runner struct {
	Scorer *Scorer
	Logger *slog.Logger
	// Progress, if set, is called before each pair is scored.
	Progress func(i, total int, pair selector.Pair, n int)
}

func (r *Runner) log() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// ScoreAndSave writes path with the header, the selected pair's row and one
// row per remaining pair. Rows are flushed as written so a later failure
// leaves the earlier rows on disk.
func (r *Runner) ScoreAndSave(ctx context.Context, selected selector.Pair, remaining []selector.Pair, path string, n int) (RunResult, error) {
	res := RunResult{ChartCount: n, Path: path}
	if err := utils.EnsureParentDir(path); err != nil {
		return res, err
	}
	f, err := os.Create(path)
	if err != nil {
		return res, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	write := func(rec []string) error {
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	}
	if err := write(Header); err != nil {
		return res, err
	}

	pairs := append([]selector.Pair{selected}, remaining...)
	for i, p := range pairs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if r.Progress != nil {
			r.Progress(i+1, len(pairs), p, n)
		}
		triple, err := r.Scorer.Score(ctx, p, n)
		if err != nil {
			return res, err
		}
		row := Row{Pair: p, ChartCount: n, Triple: triple, Selected: i == 0}
		if err := write(row.Record()); err != nil {
			return res, err
		}
		res.Rows++
		r.log().Debug("pair scored", "pair", p.String(), "chart_count", n,
			"draco_cost", triple.MeanCost, "lida_score", triple.MeanQuality, "final_score", triple.Final)
	}
	if err := f.Close(); err != nil {
		return res, fmt.Errorf("close %s: %w", path, err)
	}
	return res, nil
}

// RunAll calls ScoreAndSave once per recommendation count, pairing counts
// with paths by position.
func (r *Runner) RunAll(ctx context.Context, selected selector.Pair, remaining []selector.Pair, counts []int, paths []string) ([]RunResult, error) {
	if len(counts) != len(paths) {
		return nil, fmt.Errorf("got %d recommendation counts but %d output paths", len(counts), len(paths))
	}
	seen := map[string]bool{}
	for _, p := range paths {
		if seen[p] {
			return nil, fmt.Errorf("output path %s used more than once", p)
		}
		seen[p] = true
	}
	var out []RunResult
	for i, n := range counts {
		res, err := r.ScoreAndSave(ctx, selected, remaining, paths[i], n)
		if err != nil {
			return out, err
		}
		r.log().Info("run saved", "chart_count", n, "path", res.Path, "rows", res.Rows)
		out = append(out, res)
	}
	return out, nil
}
