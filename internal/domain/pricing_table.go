package domain

import (
	"fmt"
	"maps"
	"strings"
)

// PricingTable is an immutable model-prefix to rate mapping.
type PricingTable struct {
	rates map[string]ModelRate
}

// NewPricingTable validates entries and builds a pricing table.
// The entries map is copied; later changes to it are not observed.
func NewPricingTable(entries map[string]ModelRate) (*PricingTable, error) {
	if _, ok := entries[DefaultPricingKey]; !ok {
		return nil, ErrMissingDefaultPricing
	}

	rates := make(map[string]ModelRate, len(entries))
	for model, rate := range entries {
		if model == "" {
			return nil, fmt.Errorf("%w: model cannot be empty", ErrInvalidPricing)
		}
		if rate.InputPerMillion < 0 || rate.OutputPerMillion < 0 {
			return nil, fmt.Errorf("%w: negative rate for model %s", ErrInvalidPricing, model)
		}
		rates[model] = rate
	}

	return &PricingTable{rates: rates}, nil
}

// Resolve returns the rate for a model: exact match, then the longest
// matching key prefix, then the default entry.
func (t *PricingTable) Resolve(model string) ModelRate {
	if rate, ok := t.rates[model]; ok {
		return rate
	}

	best := ""
	for key := range t.rates {
		if len(key) > len(best) && strings.HasPrefix(model, key) {
			best = key
		}
	}
	if best != "" {
		return t.rates[best]
	}

	return t.rates[DefaultPricingKey]
}

// Entries returns a copy of the table.
func (t *PricingTable) Entries() map[string]ModelRate {
	return maps.Clone(t.rates)
}

// Len returns the number of entries, default included.
func (t *PricingTable) Len() int {
	return len(t.rates)
}
