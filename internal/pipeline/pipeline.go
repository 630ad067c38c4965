// Package pipeline runs the end-to-end evaluation: load a dataset, pick a
// column pair, score every pair at each recommendation count and summarize.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/vizeval-cli/internal/ai"
	"github.com/KaramelBytes/vizeval-cli/internal/config"
	"github.com/KaramelBytes/vizeval-cli/internal/dataset"
	"github.com/KaramelBytes/vizeval-cli/internal/draco"
	"github.com/KaramelBytes/vizeval-cli/internal/evaluate"
	"github.com/KaramelBytes/vizeval-cli/internal/facts"
	"github.com/KaramelBytes/vizeval-cli/internal/recommend"
	"github.com/KaramelBytes/vizeval-cli/internal/render"
	"github.com/KaramelBytes/vizeval-cli/internal/report"
	"github.com/KaramelBytes/vizeval-cli/internal/scoring"
	"github.com/KaramelBytes/vizeval-cli/internal/selector"
	"github.com/KaramelBytes/vizeval-cli/internal/utils"
)

// RunFile records one per-run CSV.
type RunFile struct {
	ChartCount int    `json:"chart_count"`
	Path       string `json:"path"`
	Rows       int    `json:"rows"`
}

// Manifest describes one pipeline invocation.
type Manifest struct {
	RunID          string          `json:"run_id"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	Dataset        string          `json:"dataset"`
	Model          string          `json:"model"`
	EvaluatorModel string          `json:"evaluator_model"`
	Columns        []string        `json:"columns"`
	SelectedPair   selector.Pair   `json:"selected_pair"`
	RemainingPairs []selector.Pair `json:"remaining_pairs"`
	RunFiles       []RunFile       `json:"run_files"`
	SummaryFile    string          `json:"summary_file,omitempty"`
}

// Pipeline wires the stages together. Chat serves both column selection and
// chart evaluation.
type Pipeline struct {
	Config *config.Global
	Chat   ai.Runtime
	Engine draco.Completer
	Logger *slog.Logger
	// Progress, if set, is called before each pair is scored.
	Progress func(i, total int, pair selector.Pair, n int)
	// OnSelect, if set, is called once the column pair is chosen.
	OnSelect func(sel selector.Selection)
	// Now defaults to time.Now.
	Now func() time.Time
}

// New builds a pipeline whose chat runtime and solver come from c.
func New(c *config.Global, logger *slog.Logger) (*Pipeline, error) {
	rt, err := RuntimeFromConfig(c, logger)
	if err != nil {
		return nil, err
	}
	engine, err := draco.NewFromConfig(c, logger)
	if err != nil {
		return nil, err
	}
	return &Pipeline{Config: c, Chat: rt, Engine: engine, Logger: logger}, nil
}

// RuntimeFromConfig creates the chat runtime named by c.Provider.
func RuntimeFromConfig(c *config.Global, logger *slog.Logger) (ai.Runtime, error) {
	rt, ok := ai.GetRuntime(c.Provider, ai.RuntimeConfig{
		HTTPTimeout:       time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:          c.RetryMaxAttempts,
		BaseDelay:         time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:          time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		RequestsPerSecond: c.LLMRequestsPerSecond,
		Logger:            logger,
		APIKey:            c.APIKey,
		BaseURL:           c.BaseURL,
		Host:              c.OllamaHost,
	})
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", c.Provider)
	}
	return rt, nil
}

func (p *Pipeline) log() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now()
}

// Run executes every stage for the configured dataset and writes the run
// manifest. Per-run CSV rows written before a failure are kept.
func (p *Pipeline) Run(ctx context.Context) (*Manifest, error) {
	c := p.Config
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Dataset == "" {
		return nil, errors.New("no dataset configured")
	}
	m := &Manifest{
		RunID:          uuid.NewString(),
		StartedAt:      p.now(),
		Dataset:        c.Dataset,
		Model:          c.Model,
		EvaluatorModel: c.EvaluatorModel,
	}
	log := p.log().With("run_id", m.RunID)

	opt := dataset.DefaultOptions()
	opt.Sheet = c.DatasetSheet
	tbl, err := dataset.Load(c.Dataset, opt)
	if err != nil {
		return nil, err
	}
	m.Columns = tbl.ColumnNames()
	schema := facts.FromTable(tbl)
	log.Info("dataset loaded", "dataset", c.Dataset, "rows", tbl.Rows, "columns", len(m.Columns), "facts", len(schema))

	sel, err := (&selector.Selector{Runtime: p.Chat, Model: c.Model, Logger: log}).Select(ctx, m.Columns)
	if err != nil {
		return nil, err
	}
	m.SelectedPair, m.RemainingPairs = sel.Selected, sel.Remaining
	log.Info("columns selected", "pair", sel.Selected.String(), "remaining", len(sel.Remaining))
	if p.OnSelect != nil {
		p.OnSelect(sel)
	}

	runner := &scoring.Runner{
		Scorer: &scoring.Scorer{
			Schema: schema,
			Recommender: &recommend.Generator{
				Engine:   p.Engine,
				Renderer: &render.Renderer{},
				Table:    tbl,
				Validate: c.ValidateSpecs,
				Logger:   log,
			},
			Judge: scoring.EvaluatorJudge{Evaluator: &evaluate.Evaluator{
				Runtime:       p.Chat,
				Model:         c.EvaluatorModel,
				Goal:          c.EvaluationGoal,
				MaxSpecTokens: c.EvaluatorMaxSpecTokens,
				Logger:        log,
			}},
			Logger: log,
		},
		Logger:   log,
		Progress: p.Progress,
	}
	paths := c.RunFiles()
	results, runErr := runner.RunAll(ctx, sel.Selected, sel.Remaining, c.RecommendationCounts, paths)
	for _, r := range results {
		m.RunFiles = append(m.RunFiles, RunFile{ChartCount: r.ChartCount, Path: r.Path, Rows: r.Rows})
	}
	if runErr != nil {
		m.FinishedAt = p.now()
		if err := writeManifest(c.ManifestPath(), m); err != nil {
			log.Warn("write manifest", "error", err)
		}
		return m, runErr
	}

	sum, err := report.CreateResultTable(paths, c.SummaryPath(), log)
	switch {
	case errors.Is(err, report.ErrNoData):
		log.Warn("no data to save")
	case err != nil:
		return m, err
	default:
		m.SummaryFile = sum.Output
	}

	m.FinishedAt = p.now()
	if err := writeManifest(c.ManifestPath(), m); err != nil {
		return m, err
	}
	return m, nil
}

func writeManifest(path string, m *Manifest) error {
	b, err := utils.PrettyJSON(m)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, b)
}
