package domain

// GenerationResult is the language model's answer with token usage.
type GenerationResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
