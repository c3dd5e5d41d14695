package domain

import "context"

const tokensPerMillion = 1_000_000.0

// StandardCostCalculator implements standard token-based cost calculation.
type StandardCostCalculator struct {
	resolver PricingResolver
}

// NewStandardCostCalculator creates a new cost calculator.
func NewStandardCostCalculator(resolver PricingResolver) *StandardCostCalculator {
	return &StandardCostCalculator{
		resolver: resolver,
	}
}

// Calculate computes the total cost based on token usage and model pricing.
func (c *StandardCostCalculator) Calculate(
	_ context.Context,
	model string,
	usage Usage,
) float64 {
	rate := c.resolver.Resolve(model)

	inputCost := float64(usage.InputTokens) / tokensPerMillion * rate.InputPerMillion
	outputCost := float64(usage.OutputTokens) / tokensPerMillion * rate.OutputPerMillion

	return inputCost + outputCost
}
