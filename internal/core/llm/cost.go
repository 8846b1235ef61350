package llm

import "strings"

// Cost per 1M tokens (in USD) for the models the cascade routes to.
// Approximate; update as pricing changes.
const (
	costGPT4OPromptPer1M     = 2.50
	costGPT4OCompletionPer1M = 10.00
	costGPT4OMiniPrompt      = 0.15
	costGPT4OMiniComplete    = 0.60

	costClaudeSonnetPrompt   = 3.00
	costClaudeSonnetComplete = 15.00
	costClaudeHaikuPrompt    = 1.00
	costClaudeHaikuComplete  = 5.00

	costDefaultPrompt   = 1.00
	costDefaultComplete = 2.00

	tokensPerMillion = 1000000.0
)

// estimateCost calculates an estimated USD cost for a request.
func estimateCost(model string, promptTokens, completionTokens int) float64 {
	promptRate, completionRate := costRates(model)

	return float64(promptTokens)*promptRate/tokensPerMillion +
		float64(completionTokens)*completionRate/tokensPerMillion
}

// costRates returns prompt and completion cost per 1M tokens for a model.
func costRates(model string) (promptRate, completionRate float64) {
	m := strings.ToLower(model)

	switch {
	case strings.Contains(m, "gpt-4o-mini"):
		return costGPT4OMiniPrompt, costGPT4OMiniComplete
	case strings.Contains(m, "gpt-4o"):
		return costGPT4OPromptPer1M, costGPT4OCompletionPer1M
	case strings.Contains(m, "haiku"):
		return costClaudeHaikuPrompt, costClaudeHaikuComplete
	case strings.Contains(m, "sonnet"):
		return costClaudeSonnetPrompt, costClaudeSonnetComplete
	default:
		return costDefaultPrompt, costDefaultComplete
	}
}
