package report

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "col1,col2,chart_count,lida_score,draco_cost,final_score,llm_selected\n"

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func quietLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestCreateResultTable(t *testing.T) {
	dir := t.TempDir()
	top3 := writeFile(t, dir, "top3.csv", header+
		"a,b,3,7,2,0.52,true\n"+
		"a,c,3,9,1,0.7,false\n"+
		"b,c,3,9,1,0.7,false\n")
	top5 := writeFile(t, dir, "top5.csv", header+
		"a,b,5,8,0,0.9,True\n"+
		"a,c,5,2,4,0.2,false\n")
	out := filepath.Join(dir, "out", "result_table.csv")

	var logs bytes.Buffer
	sum, err := CreateResultTable([]string{top3, top5}, out, quietLogger(&logs))
	require.NoError(t, err)
	assert.Equal(t, out, sum.Output)
	assert.Empty(t, sum.Skipped)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "chart_count,final_score_selected_pair,highest_scoring_column_pair,highest_final_score\n"+
		"3,0.52,\"a,c\",0.7\n"+
		"5,0.9,\"a,b\",0.9\n", string(b))
	assert.Contains(t, logs.String(), "processed file")
}

func TestSelectedMissing(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "top3.csv", header+"a,b,3,7,2,0.5,false\n")
	out := filepath.Join(dir, "summary.csv")

	sum, err := CreateResultTable([]string{in}, out, quietLogger(&bytes.Buffer{}))
	require.NoError(t, err)
	require.Len(t, sum.Rows, 1)
	assert.Equal(t, "", sum.Rows[0].SelectedScore)
	assert.Equal(t, "a,b", sum.Rows[0].BestPair)
}

func TestMissingColumnSkipsFile(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.csv", "col1,col2,chart_count,lida_score,final_score,llm_selected\na,b,3,7,0.5,true\n")
	good := writeFile(t, dir, "good.csv", header+"x,y,5,7,2,0.6,true\n")
	out := filepath.Join(dir, "summary.csv")

	var logs bytes.Buffer
	sum, err := CreateResultTable([]string{bad, good}, out, quietLogger(&logs))
	require.NoError(t, err)
	assert.Equal(t, []string{bad}, sum.Skipped)
	require.Len(t, sum.Rows, 1)
	assert.Equal(t, "5", sum.Rows[0].ChartCount)
	assert.Contains(t, logs.String(), "skipped, missing columns")
	assert.Contains(t, logs.String(), "draco_cost")
}

func TestZeroRowsRecordsMissing(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "empty.csv", header)
	out := filepath.Join(dir, "summary.csv")

	sum, err := CreateResultTable([]string{in}, out, quietLogger(&bytes.Buffer{}))
	require.NoError(t, err)
	require.Len(t, sum.Rows, 1)
	assert.Equal(t, Row{Source: in}, sum.Rows[0])

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(b), "\n,,,\n"))
}

func TestNoDataWritesNothing(t *testing.T) {
	dir := t.TempDir()
	notNumeric := writeFile(t, dir, "nan.csv", header+"a,b,3,7,2,high,true\n")
	out := filepath.Join(dir, "summary.csv")

	sum, err := CreateResultTable([]string{notNumeric, filepath.Join(dir, "absent.csv")}, out, quietLogger(&bytes.Buffer{}))
	assert.ErrorIs(t, err, ErrNoData)
	assert.Len(t, sum.Skipped, 2)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestBestPairSkipsMissingScores(t *testing.T) {
	dir := t.TempDir()
	nanFirst := writeFile(t, dir, "top3.csv", header+
		"a,b,3,7,2,NaN,true\n"+
		"a,c,3,9,1,0.7,false\n")
	emptyCell := writeFile(t, dir, "top5.csv", header+
		"a,b,5,7,2,,false\n"+
		"b,c,5,9,1,0.4,true\n")
	allMissing := writeFile(t, dir, "top7.csv", header+
		"a,b,7,7,2,,true\n"+
		"a,c,7,9,1,NaN,false\n")
	out := filepath.Join(dir, "summary.csv")

	sum, err := CreateResultTable([]string{nanFirst, emptyCell, allMissing}, out, quietLogger(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.Empty(t, sum.Skipped)
	require.Len(t, sum.Rows, 3)

	assert.Equal(t, "", sum.Rows[0].SelectedScore)
	assert.Equal(t, "a,c", sum.Rows[0].BestPair)
	assert.Equal(t, "0.7", sum.Rows[0].BestScore)

	assert.Equal(t, "0.4", sum.Rows[1].SelectedScore)
	assert.Equal(t, "b,c", sum.Rows[1].BestPair)
	assert.Equal(t, "0.4", sum.Rows[1].BestScore)

	assert.Equal(t, "7", sum.Rows[2].ChartCount)
	assert.Equal(t, "", sum.Rows[2].SelectedScore)
	assert.Equal(t, "", sum.Rows[2].BestPair)
	assert.Equal(t, "", sum.Rows[2].BestScore)
}
