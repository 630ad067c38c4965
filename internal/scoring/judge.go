package scoring

import (
	"context"

	"github.com/KaramelBytes/vizeval-cli/internal/evaluate"
)

// EvaluatorJudge adapts an evaluate.Evaluator to QualityJudge.
type EvaluatorJudge struct {
	Evaluator *evaluate.Evaluator
}

func (j EvaluatorJudge) Quality(ctx context.Context, spec string) (float64, error) {
	ev, err := j.Evaluator.Evaluate(ctx, spec)
	if err != nil {
		return 0, err
	}
	return ev.Mean, nil
}
