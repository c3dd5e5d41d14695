package openai

import "strings"

// SupportedModels returns the model families routed to the OpenAI provider.
func SupportedModels() []string {
	return []string{
		"gpt-4.1",
		"gpt-4.1-mini",
		"gpt-4.1-nano",
		"gpt-4o",
		"gpt-4o-mini",
	}
}

// matchesModel reports whether model is a known family or a dated variant of one.
func matchesModel(models []string, model string) bool {
	if model == "" {
		return false
	}
	for _, known := range models {
		if strings.HasPrefix(model, known) {
			return true
		}
	}
	return false
}
