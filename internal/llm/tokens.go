package llm

// CharsPerToken is the fixed character-based token approximation. Context
// budgeting only needs a stable estimate, not a real tokenizer.
const CharsPerToken = 4

// CountTokens estimates the token count of s as len(s)/4, rounded down.
func CountTokens(s string) int {
	return len(s) / CharsPerToken
}
