package budget

import (
	"unicode/utf8"

	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
)

const (
	charsPerToken = 4.0

	// tokens charged per attachment when no usage is known yet
	imageTokenEstimate    = 1000
	documentTokenEstimate = 3000

	defaultOutputTokens = 1024
)

// EstimateTokens approximates the token count of text at four runes per token
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return int(float64(utf8.RuneCountInString(text))/charsPerToken + 0.5)
}

// EstimateRequestTokens approximates input and output tokens for a request
// sent to cfg before any usage is reported.
func EstimateRequestTokens(cfg providers.ProviderConfig, req providers.AIRequest) (input, output int) {
	input = EstimateTokens(req.Prompt) + EstimateTokens(req.SystemPrompt)
	input += len(req.Images)*imageTokenEstimate + len(req.Documents)*documentTokenEstimate

	output = req.MaxTokens
	if output <= 0 {
		output = cfg.MaxTokens
	}
	if output <= 0 {
		output = defaultOutputTokens
	}
	return input, output
}
