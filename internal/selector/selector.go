// Package selector asks a language model which two dataset columns make the
// most meaningful chart and enumerates every other column pair.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KaramelBytes/vizeval-cli/internal/ai"
	"github.com/KaramelBytes/vizeval-cli/internal/logger"
)

// ErrInvalidSelection is returned when the model reply does not name exactly
// two distinct columns of the dataset.
var ErrInvalidSelection = errors.New("invalid column selection")

const systemPrompt = "You are a helpful assistant for data analysis."

// Pair is an ordered column pair.
type Pair [2]string

// String renders the pair as "col1,col2".
func (p Pair) String() string { return p[0] + "," + p[1] }

// SameSet reports whether both pairs hold the same columns in any order.
func (p Pair) SameSet(q Pair) bool {
	return (p[0] == q[0] && p[1] == q[1]) || (p[0] == q[1] && p[1] == q[0])
}

// Selection is the model's pick plus every other pair in dataset order.
type Selection struct {
	Selected  Pair
	Remaining []Pair
	// Reply is the raw model output.
	Reply string
}

// Selector wraps the chat runtime used for column selection.
type Selector struct {
	Runtime ai.Runtime
	Model   string
	Logger  *slog.Logger
}

// BuildPrompt renders the user prompt listing each column.
func BuildPrompt(columns []string) string {
	var b strings.Builder
	b.WriteString("You are a data visualization expert. Given the following list of columns in a dataset and their types, ")
	b.WriteString("select two columns that are the most suitable for creating a meaningful visualization. ")
	b.WriteString("Respond only with the names of the two selected columns, separated by a comma. ")
	b.WriteString("Here is the list of columns:\n\n")
	for _, c := range columns {
		b.WriteString("- " + c + "\n")
	}
	b.WriteString("\nPlease return only the two selected column names, separated by a comma.")
	return b.String()
}

// Select prompts the model and validates its reply against columns.
func (s *Selector) Select(ctx context.Context, columns []string) (Selection, error) {
	if len(columns) < 2 {
		return Selection{}, fmt.Errorf("need at least two columns, got %d", len(columns))
	}
	log := logger.OrDefault(s.Logger)
	reply, err := ai.Complete(ctx, s.Runtime, ai.GenerateRequest{
		Model: s.Model,
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(columns)},
		},
	})
	if err != nil {
		return Selection{}, fmt.Errorf("column selection: %w", err)
	}
	log.Debug("column selection reply", "reply", reply)

	picked, err := ParseReply(reply, columns)
	if err != nil {
		return Selection{Reply: reply}, err
	}
	return Selection{
		Selected:  picked,
		Remaining: PossiblePairs(columns, picked),
		Reply:     reply,
	}, nil
}

// ParseReply splits the reply on commas and checks that it names exactly two
// distinct columns from columns.
func ParseReply(reply string, columns []string) (Pair, error) {
	known := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		known[c] = struct{}{}
	}
	var names []string
	for _, part := range strings.Split(reply, ",") {
		name := cleanName(part)
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) != 2 {
		return Pair{}, fmt.Errorf("%w: expected two names, got %d in %q", ErrInvalidSelection, len(names), reply)
	}
	if names[0] == names[1] {
		return Pair{}, fmt.Errorf("%w: column %q chosen twice", ErrInvalidSelection, names[0])
	}
	for _, n := range names {
		if _, ok := known[n]; !ok {
			return Pair{}, fmt.Errorf("%w: unknown column %q in %q", ErrInvalidSelection, n, reply)
		}
	}
	return Pair{names[0], names[1]}, nil
}

func cleanName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "- ")
	return strings.TrimSpace(strings.Trim(s, "\"'`*"))
}

// PossiblePairs returns every 2-combination of columns in dataset order
// except the one holding the same columns as picked.
func PossiblePairs(columns []string, picked Pair) []Pair {
	var out []Pair
	for i := 0; i < len(columns); i++ {
		for j := i + 1; j < len(columns); j++ {
			p := Pair{columns[i], columns[j]}
			if p.SameSet(picked) {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
