// Package report condenses per-run score files into one summary table.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	logging "github.com/KaramelBytes/vizeval-cli/internal/logger"
	"github.com/KaramelBytes/vizeval-cli/internal/scoring"
	"github.com/KaramelBytes/vizeval-cli/internal/utils"
)

// ErrNoData means no input file produced a summary row; no output is written.
var ErrNoData = errors.New("no data to save")

// Header is the summary CSV header.
var Header = []string{"chart_count", "final_score_selected_pair", "highest_scoring_column_pair", "highest_final_score"}

// Row summarizes one run file. Empty strings mark missing values.
type Row struct {
	ChartCount    string
	SelectedScore string
	BestPair      string
	BestScore     string
	Source        string
}

func (r Row) record() []string {
	return []string{r.ChartCount, r.SelectedScore, r.BestPair, r.BestScore}
}

// Summary is the outcome of CreateResultTable.
type Summary struct {
	Rows    []Row
	Skipped []string
	Output  string
}

// MissingColumnsError reports a run file lacking required columns.
type MissingColumnsError struct {
	Path    string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("file %s skipped, missing columns: %v", e.Path, e.Missing)
}

// CreateResultTable reads each input file and writes one summary row per
// usable file to output. Unusable files are logged and skipped.
func CreateResultTable(inputs []string, output string, logger *slog.Logger) (Summary, error) {
	log := logging.OrDefault(logger)
	var sum Summary
	for _, path := range inputs {
		row, err := summarizeFile(path)
		if err != nil {
			var mc *MissingColumnsError
			if errors.As(err, &mc) {
				log.Warn("skipped, missing columns", "file", path, "missing", mc.Missing)
			} else {
				log.Warn("error processing file", "file", path, "error", err)
			}
			sum.Skipped = append(sum.Skipped, path)
			continue
		}
		log.Info("processed file", "file", path)
		sum.Rows = append(sum.Rows, row)
	}
	if len(sum.Rows) == 0 {
		return sum, ErrNoData
	}
	if err := writeSummary(output, sum.Rows); err != nil {
		return sum, err
	}
	sum.Output = output
	return sum, nil
}

func summarizeFile(path string) (Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return Row{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return Row{}, fmt.Errorf("%s: no columns to parse", path)
	}
	if err != nil {
		return Row{}, fmt.Errorf("%s: %w", path, err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	var missing []string
	for _, col := range scoring.Header {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return Row{}, &MissingColumnsError{Path: path, Missing: missing}
	}
	records, err := r.ReadAll()
	if err != nil {
		return Row{}, fmt.Errorf("%s: %w", path, err)
	}

	row := Row{Source: path}
	if len(records) == 0 {
		return row, nil
	}
	get := func(rec []string, col string) string {
		if i := idx[col]; i < len(rec) {
			return rec[i]
		}
		return ""
	}
	row.ChartCount = get(records[0], "chart_count")

	best := -1
	var bestScore float64
	selectedSeen := false
	for i, rec := range records {
		score, ok, err := parseScore(get(rec, "final_score"))
		if err != nil {
			return Row{}, fmt.Errorf("%s: row %d: final_score: %w", path, i+2, err)
		}
		if ok && (best < 0 || score > bestScore) {
			best, bestScore = i, score
		}
		if !selectedSeen {
			if sel, err := strconv.ParseBool(get(rec, "llm_selected")); err == nil && sel {
				selectedSeen = true
				if ok {
					row.SelectedScore = formatFloat(score)
				}
			}
		}
	}
	if best >= 0 {
		row.BestPair = get(records[best], "col1") + "," + get(records[best], "col2")
		row.BestScore = formatFloat(bestScore)
	}
	return row, nil
}

// parseScore reads a final_score cell. Empty and non-finite values are
// reported as absent rather than as errors.
func parseScore(cell string) (float64, bool, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, nil
	}
	return f, true, nil
}

func writeSummary(path string, rows []Row) error {
	if err := utils.EnsureParentDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write(r.record()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
