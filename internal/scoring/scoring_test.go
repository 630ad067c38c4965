package scoring

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/vizeval-cli/internal/recommend"
	"github.com/KaramelBytes/vizeval-cli/internal/selector"
)

// fakeRecommender returns recommendations keyed by the two encoded fields.
type fakeRecommender struct {
	byPair map[string][]recommend.Recommendation
	fail   map[string]error
	calls  []int
}

func (f *fakeRecommender) Recommend(_ context.Context, partial []string, n int) ([]recommend.Recommendation, error) {
	f.calls = append(f.calls, n)
	// last two field bindings of the partial spec
	key := fieldOf(partial[len(partial)-3]) + "," + fieldOf(partial[len(partial)-1])
	if err := f.fail[key]; err != nil {
		return nil, err
	}
	return f.byPair[key], nil
}

func fieldOf(atom string) string {
	// attribute((encoding,field),eN,<name>).
	return atom[len("attribute((encoding,field),e0,") : len(atom)-2]
}

type fakeJudge map[string]float64

func (j fakeJudge) Quality(_ context.Context, spec string) (float64, error) {
	q, ok := j[spec]
	if !ok {
		return 0, errors.New("unknown spec")
	}
	return q, nil
}

func TestNormalizeScore(t *testing.T) {
	assert.Equal(t, 1.0, NormalizedCost(0))
	assert.Equal(t, 0.5, NormalizedCost(1))
	assert.Equal(t, 0.75, NormalizeScore(5, 0))
	assert.InDelta(t, 0.45, NormalizeScore(8, 9), 1e-12)
	assert.Equal(t, 0.5, NormalizeScore(0, 0))
	assert.InDelta(t, 0.5, NormalizeScore(10, 1e12), 1e-9)
}

func TestNormalizeScoreBounds(t *testing.T) {
	costs := []float64{0, 0.01, 0.5, 1, 2, 3.5, 10, 250, 1e6, 1e12}
	for i := 1; i < len(costs); i++ {
		assert.Greater(t, NormalizedCost(costs[i-1]), NormalizedCost(costs[i]), "cost %v vs %v", costs[i-1], costs[i])
		assert.Greater(t, NormalizedCost(costs[i]), 0.0)
	}
	for q := 0.0; q <= 10; q += 0.25 {
		for _, c := range costs {
			got := NormalizeScore(q, c)
			assert.Greater(t, got, 0.0, "quality %v cost %v", q, c)
			if q == 10 && c == 0 {
				assert.Equal(t, 1.0, got)
				continue
			}
			assert.Less(t, got, 1.0, "quality %v cost %v", q, c)
		}
	}
}

func TestScoreLogsPerChart(t *testing.T) {
	rec := &fakeRecommender{byPair: map[string][]recommend.Recommendation{
		"a,b": {{Name: "CHART 1", Specification: "s1", Cost: 2}},
	}}
	var logs bytes.Buffer
	s := &Scorer{
		Recommender: rec,
		Judge:       fakeJudge{"s1": 6},
		Logger:      slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
	_, err := s.Score(context.Background(), selector.Pair{"a", "b"}, 1)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `msg="chart scored" pair=a,b chart="CHART 1" cost=2 quality=6`)
	assert.Contains(t, logs.String(), `msg="pair scored"`)
}

func TestScoreMeans(t *testing.T) {
	rec := &fakeRecommender{byPair: map[string][]recommend.Recommendation{
		"a,b": {
			{Name: "CHART 1", Specification: "s1", Cost: 2},
			{Name: "CHART 2", Specification: "s2", Cost: 4},
		},
	}}
	s := &Scorer{Schema: []string{"attribute(number_rows,root,1)."}, Recommender: rec, Judge: fakeJudge{"s1": 6, "s2": 8}}

	got, err := s.Score(context.Background(), selector.Pair{"a", "b"}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.MeanCost)
	assert.Equal(t, 7.0, got.MeanQuality)
	assert.InDelta(t, (0.7+0.25)/2, got.Final, 1e-12)
	assert.Equal(t, []int{2}, rec.calls)
}

func TestScoreNoRecommendations(t *testing.T) {
	s := &Scorer{Recommender: &fakeRecommender{}, Judge: fakeJudge{}}
	_, err := s.Score(context.Background(), selector.Pair{"a", "b"}, 3)
	assert.ErrorIs(t, err, ErrNoRecommendations)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestScoreAndSave(t *testing.T) {
	rec := &fakeRecommender{byPair: map[string][]recommend.Recommendation{
		"a,b": {{Specification: "good", Cost: 0}},
		"a,c": {{Specification: "ok", Cost: 1}},
	}}
	var progress []string
	r := &Runner{
		Scorer: &Scorer{Recommender: rec, Judge: fakeJudge{"good": 10, "ok": 5}},
		Progress: func(i, total int, p selector.Pair, _ int) {
			progress = append(progress, p.String())
		},
	}
	path := filepath.Join(t.TempDir(), "nested", "chart_scores_top3.csv")

	res, err := r.ScoreAndSave(context.Background(), selector.Pair{"a", "b"}, []selector.Pair{{"a", "c"}}, path, 3)
	require.NoError(t, err)
	assert.Equal(t, RunResult{ChartCount: 3, Path: path, Rows: 2}, res)
	assert.Equal(t, []string{"a,b", "a,c"}, progress)

	assert.Equal(t, [][]string{
		Header,
		{"a", "b", "3", "10", "0", "1", "true"},
		{"a", "c", "3", "5", "1", "0.5", "false"},
	}, readCSV(t, path))
}

func TestScoreAndSaveKeepsEarlierRowsOnFailure(t *testing.T) {
	boom := errors.New("solver down")
	rec := &fakeRecommender{
		byPair: map[string][]recommend.Recommendation{"a,b": {{Specification: "good", Cost: 0}}},
		fail:   map[string]error{"a,c": boom},
	}
	r := &Runner{Scorer: &Scorer{Recommender: rec, Judge: fakeJudge{"good": 10}}}
	path := filepath.Join(t.TempDir(), "out.csv")

	res, err := r.ScoreAndSave(context.Background(), selector.Pair{"a", "b"}, []selector.Pair{{"a", "c"}, {"b", "c"}}, path, 1)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, res.Rows)
	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, "true", rows[1][6])
}

func TestRunAll(t *testing.T) {
	rec := &fakeRecommender{byPair: map[string][]recommend.Recommendation{"x,y": {{Specification: "s", Cost: 3}}}}
	r := &Runner{Scorer: &Scorer{Recommender: rec, Judge: fakeJudge{"s": 4}}}
	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "top3.csv"), filepath.Join(dir, "top5.csv")}

	results, err := r.RunAll(context.Background(), selector.Pair{"x", "y"}, nil, []int{3, 5}, paths)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []int{3, 5}, rec.calls)
	assert.Equal(t, "5", readCSV(t, paths[1])[1][2])

	_, err = r.RunAll(context.Background(), selector.Pair{"x", "y"}, nil, []int{3}, paths)
	assert.Error(t, err)
	_, err = r.RunAll(context.Background(), selector.Pair{"x", "y"}, nil, []int{3, 5}, []string{paths[0], paths[0]})
	assert.Error(t, err)
}

func TestScoreAndSaveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Runner{Scorer: &Scorer{Recommender: &fakeRecommender{}, Judge: fakeJudge{}}}
	path := filepath.Join(t.TempDir(), "out.csv")
	_, err := r.ScoreAndSave(ctx, selector.Pair{"a", "b"}, nil, path, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, [][]string{Header}, readCSV(t, path))
}
