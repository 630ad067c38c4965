// Package draco talks to a Draco constraint solver that completes partial
// chart specifications. The solver runs out of process, reached either over
// HTTP or through a command that reads a request on stdin.
package draco

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Completion is one solver model: its cost vector and the atoms of the answer set.
type Completion struct {
	Cost      []int    `json:"cost"`
	AnswerSet []string `json:"answer_set"`
}

// PrimaryCost is the first cost component, the one charts are ranked by.
func (c Completion) PrimaryCost() (int, error) {
	if len(c.Cost) == 0 {
		return 0, errors.New("completion has no cost")
	}
	return c.Cost[0], nil
}

// Completer returns up to n lowest-cost completions of a partial specification.
type Completer interface {
	Complete(ctx context.Context, facts []string, n int) ([]Completion, error)
}

// Request is the JSON body sent to the solver.
type Request struct {
	Spec      []string `json:"spec"`
	NumModels int      `json:"num_models"`
}

func newRequest(facts []string, n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("num_models must be positive, got %d", n)
	}
	b, err := json.Marshal(Request{Spec: facts, NumModels: n})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return b, nil
}

func decodeCompletions(b []byte) ([]Completion, error) {
	var out []Completion
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode completions: %w", err)
	}
	for i, c := range out {
		if len(c.Cost) == 0 {
			return nil, fmt.Errorf("completion %d has no cost", i)
		}
	}
	return out, nil
}
