package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("VIZEVAL_API_KEY", "")
	t.Setenv("VIZEVAL_MODEL", "")
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Provider)
	assert.Equal(t, "gpt-4", c.Model)
	assert.Equal(t, "gpt-4", c.EvaluatorModel)
	assert.Equal(t, []int{3, 5}, c.RecommendationCounts)
	assert.Equal(t, "scoring_results", c.OutputDir)
	assert.Equal(t, "result_table.csv", c.SummaryFile)
	assert.Equal(t, 6000, c.EvaluatorMaxSpecTokens)
	assert.True(t, c.ValidateSpecs)
	assert.Equal(t, "http", c.DracoMode)
	assert.Equal(t, 3, c.RetryMaxAttempts)
	assert.NoError(t, c.Validate())
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	body := "model: gpt-4o\nrecommendation_counts: [2, 4, 6]\noutput_dir: out\ndraco_mode: exec\ndraco_command: python3\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("VIZEVAL_MODEL", "gpt-4o-mini")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", c.Model, "env wins over file")
	assert.Equal(t, []int{2, 4, 6}, c.RecommendationCounts)
	assert.Equal(t, "sk-test", c.APIKey)
	assert.NoError(t, c.RequireAPIKey())
	assert.Equal(t, []string{
		filepath.Join("out", "chart_scores_top2.csv"),
		filepath.Join("out", "chart_scores_top4.csv"),
		filepath.Join("out", "chart_scores_top6.csv"),
	}, c.RunFiles())
	assert.Equal(t, filepath.Join("out", "result_table.csv"), c.SummaryPath())
	assert.NoError(t, c.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	c, err := Load("")
	require.NoError(t, err)
	c.Model = "gpt-4-turbo"
	c.RecommendationCounts = []int{7}
	require.NoError(t, Save(c, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4-turbo", got.Model)
	assert.Equal(t, []int{7}, got.RecommendationCounts)
}

func TestSaveDefaultLocation(t *testing.T) {
	home := isolate(t)
	c, err := Load("")
	require.NoError(t, err)
	require.NoError(t, Save(c, ""))
	_, err = os.Stat(filepath.Join(home, ".vizeval", "config.yaml"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Global {
		return Global{RecommendationCounts: []int{3}, OutputDir: "o", SummaryFile: "s.csv", DracoMode: "http", DracoURL: "http://x"}
	}
	tests := map[string]func(*Global){
		"empty counts":  func(g *Global) { g.RecommendationCounts = nil },
		"zero count":    func(g *Global) { g.RecommendationCounts = []int{0} },
		"dup count":     func(g *Global) { g.RecommendationCounts = []int{3, 3} },
		"no output dir": func(g *Global) { g.OutputDir = "" },
		"no summary":    func(g *Global) { g.SummaryFile = "" },
		"bad mode":      func(g *Global) { g.DracoMode = "grpc" },
		"exec no cmd":   func(g *Global) { g.DracoMode = "exec" },
		"http no url":   func(g *Global) { g.DracoURL = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			g := base()
			mutate(&g)
			assert.Error(t, g.Validate())
		})
	}
	g := base()
	assert.NoError(t, g.Validate())
}

func TestRequireAPIKey(t *testing.T) {
	c := &Global{Provider: "openai"}
	assert.ErrorIs(t, c.RequireAPIKey(), ErrMissingAPIKey)
	c.Provider = "ollama"
	assert.NoError(t, c.RequireAPIKey())
}
