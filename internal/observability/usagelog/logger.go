// Package usagelog writes every ledger entry to the structured log.
package usagelog

import (
	"context"

	"github.com/davidbz/tokenledger/internal/domain"
	"github.com/davidbz/tokenledger/internal/observability"
)

// Logger implements domain.UsageObserver on top of the context logger.
type Logger struct{}

// NewLogger creates a usage logger.
func NewLogger() *Logger {
	return &Logger{}
}

// ObserveUsage logs the recorded entry at debug level.
func (l *Logger) ObserveUsage(ctx context.Context, entry domain.LogEntry) {
	observability.FromContext(ctx).Debug("usage recorded",
		observability.String("phase", entry.Phase),
		observability.String("model", entry.Model),
		observability.String("description", entry.DescriptionOrEmpty()),
		observability.Int("input_tokens", entry.InputTokens),
		observability.Int("output_tokens", entry.OutputTokens),
		observability.Float64("cost", entry.Cost),
	)
}
