package utils

// Token estimation helpers used to keep prompts within model context limits.
// The 4 characters per token heuristic is close enough for JSON chart specs.

// CountTokens estimates the number of tokens in the given text.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit truncates text to roughly fit within a token limit.
// A limit <= 0 means no limit.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	charLimit := limit * 4
	if charLimit >= len(runes) {
		return text
	}
	return string(runes[:charLimit])
}
