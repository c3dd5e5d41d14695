// Package pricing assembles the immutable pricing table used by the ledger
// from built-in provider rates and an optional YAML file.
package pricing

import (
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/davidbz/tokenledger/internal/domain"
)

const (
	// Fallback pricing per 1M tokens for models nobody registered.
	defaultInputPerMillion  = 1.0
	defaultOutputPerMillion = 2.0
)

// File is the on-disk pricing document.
//
//	pricing:
//	  gpt-4.1-mini: {input: 0.4, output: 1.6}
//	  default: {input: 1.0, output: 2.0}
type File struct {
	Pricing map[string]domain.ModelRate `yaml:"pricing"`
}

// DefaultRate returns the built-in fallback rate.
func DefaultRate() domain.ModelRate {
	return domain.ModelRate{
		InputPerMillion:  defaultInputPerMillion,
		OutputPerMillion: defaultOutputPerMillion,
	}
}

// LoadFile reads pricing entries from a YAML file.
func LoadFile(path string) (map[string]domain.ModelRate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing file %q: %w", path, err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pricing file %q: %w", path, err)
	}

	if len(file.Pricing) == 0 {
		return nil, fmt.Errorf("pricing file %q has no entries", path)
	}

	return file.Pricing, nil
}

// Merge overlays the given rate sets; later sets win on equal keys.
func Merge(sets ...map[string]domain.ModelRate) map[string]domain.ModelRate {
	merged := make(map[string]domain.ModelRate)
	for _, set := range sets {
		maps.Copy(merged, set)
	}
	return merged
}

// NewTable builds the pricing table from the built-in default rate, the
// provider rate sets and, when path is not empty, the pricing file on top.
func NewTable(path string, builtin ...map[string]domain.ModelRate) (*domain.PricingTable, error) {
	sets := make([]map[string]domain.ModelRate, 0, len(builtin)+2)
	sets = append(sets, map[string]domain.ModelRate{domain.DefaultPricingKey: DefaultRate()})
	sets = append(sets, builtin...)

	if path != "" {
		fromFile, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		sets = append(sets, fromFile)
	}

	table, err := domain.NewPricingTable(Merge(sets...))
	if err != nil {
		return nil, fmt.Errorf("failed to build pricing table: %w", err)
	}

	return table, nil
}
