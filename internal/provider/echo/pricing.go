package echo

import "github.com/davidbz/tokenledger/internal/domain"

const (
	echo4InputPerMillion  = 0.0
	echo4OutputPerMillion = 0.0
)

// Pricing returns echo model rates.
// Echo models have zero cost as they are for testing purposes only.
func Pricing() map[string]domain.ModelRate {
	return map[string]domain.ModelRate{
		modelName: {
			InputPerMillion:  echo4InputPerMillion,
			OutputPerMillion: echo4OutputPerMillion,
		},
	}
}
