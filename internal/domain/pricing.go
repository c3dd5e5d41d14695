package domain

import "context"

// DefaultPricingKey is the mandatory fallback entry of every pricing table.
const DefaultPricingKey = "default"

// ModelRate contains model pricing information.
type ModelRate struct {
	InputPerMillion  float64 `json:"input"  yaml:"input"`  // USD per 1M input tokens
	OutputPerMillion float64 `json:"output" yaml:"output"` // USD per 1M output tokens
}

// PricingResolver maps a model name to the rate that applies to it.
type PricingResolver interface {
	// Resolve returns the rate for a model. It never fails.
	Resolve(model string) ModelRate
}

// CostCalculator calculates cost based on token usage.
type CostCalculator interface {
	// Calculate returns the total cost for a given model and usage.
	Calculate(ctx context.Context, model string, usage Usage) float64
}
