package openai

import "github.com/davidbz/tokenledger/internal/domain"

const (
	// GPT-4.1 pricing per 1M tokens
	gpt41InputPerMillion  = 2.0
	gpt41OutputPerMillion = 8.0

	// GPT-4.1 mini pricing per 1M tokens
	gpt41MiniInputPerMillion  = 0.4
	gpt41MiniOutputPerMillion = 1.6

	// GPT-4.1 nano pricing per 1M tokens
	gpt41NanoInputPerMillion  = 0.1
	gpt41NanoOutputPerMillion = 0.4

	// GPT-4o pricing per 1M tokens
	gpt4oInputPerMillion  = 2.5
	gpt4oOutputPerMillion = 10.0

	// GPT-4o mini pricing per 1M tokens
	gpt4oMiniInputPerMillion  = 0.15
	gpt4oMiniOutputPerMillion = 0.6
)

// Pricing returns OpenAI model rates keyed by model prefix. Every family in
// SupportedModels has its own entry.
func Pricing() map[string]domain.ModelRate {
	return map[string]domain.ModelRate{
		"gpt-4.1": {
			InputPerMillion:  gpt41InputPerMillion,
			OutputPerMillion: gpt41OutputPerMillion,
		},
		"gpt-4.1-mini": {
			InputPerMillion:  gpt41MiniInputPerMillion,
			OutputPerMillion: gpt41MiniOutputPerMillion,
		},
		"gpt-4.1-nano": {
			InputPerMillion:  gpt41NanoInputPerMillion,
			OutputPerMillion: gpt41NanoOutputPerMillion,
		},
		"gpt-4o": {
			InputPerMillion:  gpt4oInputPerMillion,
			OutputPerMillion: gpt4oOutputPerMillion,
		},
		"gpt-4o-mini": {
			InputPerMillion:  gpt4oMiniInputPerMillion,
			OutputPerMillion: gpt4oMiniOutputPerMillion,
		},
	}
}
