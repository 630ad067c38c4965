package utils_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KaramelBytes/vizeval-cli/internal/utils"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		min  int
	}{
		{"empty", "", 0},
		{"tiny", "{}", 1},
		{"simple", `{"mark": "bar"}`, 3},
		{"long", strings.Repeat("a", 4000), 900},
	}
	for _, c := range cases {
		assert.GreaterOrEqual(t, utils.CountTokens(c.in), c.min, c.name)
	}
}

func TestTruncateToTokenLimit(t *testing.T) {
	text := strings.Repeat(`{"x": 1} `, 1000)
	trunc := utils.TruncateToTokenLimit(text, 300)
	assert.LessOrEqual(t, utils.CountTokens(trunc), 300)
	assert.NotEmpty(t, trunc)

	assert.Equal(t, text, utils.TruncateToTokenLimit(text, 0), "zero limit keeps text")
	assert.Equal(t, "short", utils.TruncateToTokenLimit("short", 100))
}
