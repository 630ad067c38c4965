// Package evaluate scores a Vega-Lite chart with a language model acting as a
// visualization reviewer.
package evaluate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/KaramelBytes/vizeval-cli/internal/ai"
	"github.com/KaramelBytes/vizeval-cli/internal/logger"
	"github.com/KaramelBytes/vizeval-cli/internal/utils"
)

// Score bounds for a single dimension.
const (
	MinScore = 0
	MaxScore = 10
)

// dimension is one aspect every chart is scored on.
type dimension struct {
	Key, Name, Question string
}

var dimensions = []dimension{
	{"bugs", "bugs", "are there bugs, logic errors, invalid properties or typos? If the specification would fail to render, the score MUST be less than 5."},
	{"transformation", "data transformation", "is the data aggregated, binned or otherwise transformed appropriately for the visualization type?"},
	{"compliance", "goal compliance", "how well does the chart meet the stated visualization goal?"},
	{"type", "visualization type", "is the mark type appropriate for the data and intent? If a different chart type would communicate the data much better, the score MUST be less than 5."},
	{"encoding", "data encoding", "are the fields mapped to appropriate channels with appropriate encoding types?"},
	{"aesthetics", "aesthetics", "is the chart readable and appropriate in size, scale and layout?"},
}

var systemPrompt = buildSystemPrompt()

func buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant highly skilled in evaluating the quality of a given visualization by providing a score from 1 (bad) to 10 (good) along with a clear rationale. CONSIDER VISUALIZATION BEST PRACTICES in every evaluation. Evaluate the Vega-Lite specification across the following dimensions:\n")
	for _, d := range dimensions {
		fmt.Fprintf(&b, "- %s (%s): %s\n", d.Name, d.Key, d.Question)
	}
	b.WriteString(`
Score every dimension. Return ONLY a JSON array of objects, one per dimension, in this format:
[{"dimension": "bugs", "score": 1, "rationale": "..."}]
Use the dimension keys shown in parentheses.`)
	return b.String()
}

// Score is one dimension's verdict.
type Score struct {
	Dimension string  `mapstructure:"dimension" json:"dimension"`
	Score     float64 `mapstructure:"score" json:"score"`
	Rationale string  `mapstructure:"rationale" json:"rationale"`
}

// Evaluation is the per-dimension scores and their mean.
type Evaluation struct {
	Scores []Score
	Mean   float64
}

// Evaluator asks a model to review chart specifications.
type Evaluator struct {
	Runtime ai.Runtime
	Model   string
	// Goal is the question the chart should answer; empty means no stated goal.
	Goal string
	// MaxSpecTokens bounds the spec text placed in the prompt; 0 disables truncation.
	MaxSpecTokens int
	Logger        *slog.Logger
}

// Evaluate scores spec and returns the mean over all dimensions returned.
func (e *Evaluator) Evaluate(ctx context.Context, spec string) (Evaluation, error) {
	log := logger.OrDefault(e.Logger)
	prompt := e.userPrompt(spec)
	reply, err := ai.Complete(ctx, e.Runtime, ai.GenerateRequest{
		Model: e.Model,
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: ai.Temperature(0),
	})
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluate chart: %w", err)
	}
	scores, err := ParseScores(reply)
	if err != nil {
		return Evaluation{}, err
	}
	var sum float64
	for _, s := range scores {
		sum += s.Score
	}
	ev := Evaluation{Scores: scores, Mean: sum / float64(len(scores))}
	log.Debug("chart evaluated", "prompt_tokens", utils.CountTokens(prompt), "dimensions", len(scores), "mean", ev.Mean)
	return ev, nil
}

func (e *Evaluator) userPrompt(spec string) string {
	var b strings.Builder
	b.WriteString("Generate an evaluation given the goal and the chart specification below.\n\n")
	b.WriteString("Goal: " + strings.TrimSpace(e.Goal) + "\n\n")
	b.WriteString("Vega-Lite specification:\n")
	b.WriteString(utils.TruncateToTokenLimit(spec, e.MaxSpecTokens))
	b.WriteString("\n\nEvaluation (JSON array):")
	return b.String()
}

// ParseScores extracts the first JSON array from a model reply and decodes
// its objects. Numeric strings are accepted for scores; every score must be a
// finite number in [MinScore, MaxScore].
func ParseScores(reply string) ([]Score, error) {
	raw, err := firstJSONArray(reply)
	if err != nil {
		return nil, err
	}
	var items []map[string]any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode evaluation: %w", err)
	}
	var scores []Score
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &scores,
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(items); err != nil {
		return nil, fmt.Errorf("decode evaluation: %w", err)
	}
	if len(scores) == 0 {
		return nil, errors.New("evaluation has no dimensions")
	}
	for _, sc := range scores {
		if math.IsNaN(sc.Score) || sc.Score < MinScore || sc.Score > MaxScore {
			return nil, fmt.Errorf("evaluation dimension %q: score %v outside [%d,%d]", sc.Dimension, sc.Score, MinScore, MaxScore)
		}
	}
	return scores, nil
}

// firstJSONArray returns the first balanced [...] block in s, skipping
// brackets inside JSON strings.
func firstJSONArray(s string) (string, error) {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return "", errors.New("evaluation reply has no JSON array")
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errors.New("evaluation reply has an unterminated JSON array")
}
