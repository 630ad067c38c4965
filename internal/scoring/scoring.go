// Package scoring rates column pairs by combining solver cost with LLM-judged
// chart quality and writes one CSV row per pair.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KaramelBytes/vizeval-cli/internal/facts"
	"github.com/KaramelBytes/vizeval-cli/internal/logger"
	"github.com/KaramelBytes/vizeval-cli/internal/recommend"
	"github.com/KaramelBytes/vizeval-cli/internal/selector"
)

// ErrNoRecommendations is returned when the engine completes a pair into zero charts.
var ErrNoRecommendations = errors.New("no recommendations to score")

// Recommender produces ranked recommendations for a partial specification.
type Recommender interface {
	Recommend(ctx context.Context, partial []string, n int) ([]recommend.Recommendation, error)
}

// QualityJudge returns a chart's mean quality on a 0-10 scale.
type QualityJudge interface {
	Quality(ctx context.Context, spec string) (float64, error)
}

// Triple is the scoring outcome for one pair.
type Triple struct {
	MeanCost    float64
	MeanQuality float64
	Final       float64
}

// NormalizedCost maps a cost >= 0 into (0,1], decreasing in cost.
func NormalizedCost(cost float64) float64 {
	return 1 / (1 + cost)
}

// NormalizeScore averages quality/10 with the normalized cost.
func NormalizeScore(quality, cost float64) float64 {
	return (quality/10 + NormalizedCost(cost)) / 2
}

// Scorer scores column pairs against one dataset's facts.
type Scorer struct {
	Schema      []string
	Recommender Recommender
	Judge       QualityJudge
	Logger      *slog.Logger
}

// Score builds the partial specification for pair, gets n recommendations
// and averages their cost and quality.
func (s *Scorer) Score(ctx context.Context, pair selector.Pair, n int) (Triple, error) {
	partial := facts.PartialSpec(s.Schema, pair[0], pair[1])
	recs, err := s.Recommender.Recommend(ctx, partial, n)
	if err != nil {
		return Triple{}, fmt.Errorf("pair %s: %w", pair, err)
	}
	if len(recs) == 0 {
		return Triple{}, fmt.Errorf("pair %s: %w", pair, ErrNoRecommendations)
	}
	log := logger.OrDefault(s.Logger)
	var cost, quality float64
	for _, r := range recs {
		q, err := s.Judge.Quality(ctx, r.Specification)
		if err != nil {
			return Triple{}, fmt.Errorf("pair %s: %s: %w", pair, r.Name, err)
		}
		log.Debug("chart scored", "pair", pair.String(), "chart", r.Name, "cost", r.Cost, "quality", q)
		cost += r.Cost
		quality += q
	}
	cost /= float64(len(recs))
	quality /= float64(len(recs))
	t := Triple{MeanCost: cost, MeanQuality: quality, Final: NormalizeScore(quality, cost)}
	log.Debug("pair scored", "pair", pair.String(), "charts", len(recs), "mean_cost", t.MeanCost, "mean_quality", t.MeanQuality, "final", t.Final)
	return t, nil
}
