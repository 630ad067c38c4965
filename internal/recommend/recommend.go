// Package recommend completes partial chart specifications into ranked
// Vega-Lite recommendations.
package recommend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KaramelBytes/vizeval-cli/internal/dataset"
	"github.com/KaramelBytes/vizeval-cli/internal/draco"
	"github.com/KaramelBytes/vizeval-cli/internal/facts"
	"github.com/KaramelBytes/vizeval-cli/internal/logger"
	"github.com/KaramelBytes/vizeval-cli/internal/render"
)

// FacetViewSize bounds each facet cell of column-faceted charts.
const FacetViewSize = 130

// Recommendation is one rendered completion.
type Recommendation struct {
	Name string
	// Specification is the cleaned Vega-Lite JSON.
	Specification string
	Cost          float64
}

// Generator turns solver completions into recommendations over one dataset.
type Generator struct {
	Engine   draco.Completer
	Renderer *render.Renderer
	Table    *dataset.Table
	// Validate checks each cleaned specification against the chart schema.
	Validate bool
	Logger   *slog.Logger
}

// Recommend asks the engine for up to n completions of partial and returns
// them in engine order. Fewer than n results is not an error.
func (g *Generator) Recommend(ctx context.Context, partial []string, n int) ([]Recommendation, error) {
	if n <= 0 {
		return nil, fmt.Errorf("recommendation count must be positive, got %d", n)
	}
	log := logger.OrDefault(g.Logger)
	renderer := g.Renderer
	if renderer == nil {
		renderer = &render.Renderer{}
	}

	completions, err := g.Engine.Complete(ctx, partial, n)
	if err != nil {
		return nil, fmt.Errorf("complete spec: %w", err)
	}
	out := make([]Recommendation, 0, len(completions))
	for i, c := range completions {
		name := Label(i)
		spec, err := facts.AnswerSetToSpec(c.AnswerSet)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		chart, err := renderer.Render(spec, g.Table)
		if err != nil {
			return nil, fmt.Errorf("%s: render: %w", name, err)
		}
		if chart.HasColumnFacet() {
			chart.ConfigureView(FacetViewSize, FacetViewSize)
		}
		raw, err := chart.JSON()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		cleaned, err := render.CleanSpec(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if g.Validate {
			if err := render.ValidateSpec(cleaned); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}
		cost, err := c.PrimaryCost()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, Recommendation{Name: name, Specification: cleaned, Cost: float64(cost)})
	}
	log.Debug("recommendations generated", "requested", n, "returned", len(out))
	return out, nil
}

// Label names the i-th recommendation, counting from zero.
func Label(i int) string {
	return fmt.Sprintf("CHART %d", i+1)
}
